package timeouts

import (
	"testing"
	"time"
)

func TestHeapSchedOrdersByWhen(t *testing.T) {
	s := newHeapSched()
	now := time.Now()
	s.push(3, now.Add(30*time.Millisecond))
	s.push(1, now.Add(10*time.Millisecond))
	s.push(2, now.Add(20*time.Millisecond))

	for _, want := range []uint32{1, 2, 3} {
		pid, _, ok := s.next()
		if !ok || pid != want {
			t.Fatalf("next() = %d, want %d", pid, want)
		}
		s.pop()
	}
	if _, _, ok := s.next(); ok {
		t.Fatal("expected empty scheduler")
	}
}

func TestHeapSchedPushReplacesExisting(t *testing.T) {
	s := newHeapSched()
	now := time.Now()
	s.push(1, now.Add(100*time.Millisecond))
	s.push(1, now.Add(5*time.Millisecond))

	if len(s.h) != 1 {
		t.Fatalf("len(h) = %d, want 1 after replacing pid 1", len(s.h))
	}
	pid, when, ok := s.next()
	if !ok || pid != 1 || when.After(now.Add(10*time.Millisecond)) {
		t.Fatalf("next() = %d/%v, want the replaced earlier deadline", pid, when)
	}
}

func TestHeapSchedRemove(t *testing.T) {
	s := newHeapSched()
	now := time.Now()
	s.push(1, now.Add(10*time.Millisecond))
	s.push(2, now.Add(20*time.Millisecond))
	s.remove(1)

	pid, _, ok := s.next()
	if !ok || pid != 2 {
		t.Fatalf("next() = %d, want 2 after removing 1", pid)
	}
	s.remove(1) // idempotent
}
