package monitor

import "testing"

func TestStatsRingSnapshotOrderBeforeWrap(t *testing.T) {
	r := &statsRing{}
	for i := 0; i < 5; i++ {
		r.append(sample{cpuPercent: float64(i)})
	}
	snap := r.snapshot()
	if len(snap) != 5 {
		t.Fatalf("len(snapshot) = %d, want 5", len(snap))
	}
	for i, s := range snap {
		if s.cpuPercent != float64(i) {
			t.Fatalf("snapshot[%d].cpuPercent = %v, want %v", i, s.cpuPercent, i)
		}
	}
}

func TestStatsRingWrapsAndEvictsOldest(t *testing.T) {
	r := &statsRing{}
	for i := 0; i < historyCap+10; i++ {
		r.append(sample{cpuPercent: float64(i)})
	}
	snap := r.snapshot()
	if len(snap) != historyCap {
		t.Fatalf("len(snapshot) = %d, want %d", len(snap), historyCap)
	}
	if snap[0].cpuPercent != 10 {
		t.Fatalf("oldest retained sample = %v, want 10 (first 10 evicted)", snap[0].cpuPercent)
	}
	if snap[len(snap)-1].cpuPercent != float64(historyCap+9) {
		t.Fatalf("newest sample = %v, want %v", snap[len(snap)-1].cpuPercent, historyCap+9)
	}
}

func TestStatsRingLatest(t *testing.T) {
	r := &statsRing{}
	if _, ok := r.latest(); ok {
		t.Fatal("empty ring should have no latest sample")
	}
	r.append(sample{cpuPercent: 1})
	r.append(sample{cpuPercent: 2})
	s, ok := r.latest()
	if !ok || s.cpuPercent != 2 {
		t.Fatalf("latest() = %v, %v; want 2, true", s.cpuPercent, ok)
	}
}
