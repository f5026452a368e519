package services

import "testing"

func TestBackoffMsDoubles(t *testing.T) {
	if got := backoffMs(1000, 0); got != 1000 {
		t.Fatalf("backoffMs(1000, 0) = %d, want 1000", got)
	}
	if got := backoffMs(1000, 1); got != 2000 {
		t.Fatalf("backoffMs(1000, 1) = %d, want 2000", got)
	}
	if got := backoffMs(1000, 3); got != 8000 {
		t.Fatalf("backoffMs(1000, 3) = %d, want 8000", got)
	}
}

func TestBackoffMsSaturatesAtCap(t *testing.T) {
	if got := backoffMs(1000, 10); got != maxBackoffMs {
		t.Fatalf("backoffMs(1000, 10) = %d, want capped at %d", got, maxBackoffMs)
	}
}

func TestBackoffMsNeverOverflows(t *testing.T) {
	if got := backoffMs(1000, 1000); got != maxBackoffMs {
		t.Fatalf("backoffMs(1000, 1000) = %d, want capped at %d (no overflow)", got, maxBackoffMs)
	}
	if got := backoffMs(1<<40, 40); got != maxBackoffMs {
		t.Fatalf("backoffMs(huge base, 40) = %d, want capped at %d", got, maxBackoffMs)
	}
}

func TestBackoffMsDefaultsNonPositiveBase(t *testing.T) {
	if got := backoffMs(0, 0); got != 1000 {
		t.Fatalf("backoffMs(0, 0) = %d, want default base 1000", got)
	}
	if got := backoffMs(-5, 0); got != 1000 {
		t.Fatalf("backoffMs(-5, 0) = %d, want default base 1000", got)
	}
}
