package timeouts

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRegisterTimeoutFires(t *testing.T) {
	m := New(zap.NewNop(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	var mu sync.Mutex
	fired := uint32(0)
	done := make(chan struct{})
	m.RegisterTimeout(7, 10, func(pid uint32) {
		mu.Lock()
		fired = pid
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout callback did not fire in time")
	}
	mu.Lock()
	defer mu.Unlock()
	if fired != 7 {
		t.Fatalf("fired pid = %d, want 7", fired)
	}
}

func TestClearTimeoutPreventsFiring(t *testing.T) {
	m := New(zap.NewNop(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	fired := make(chan struct{}, 1)
	m.RegisterTimeout(1, 30, func(pid uint32) { fired <- struct{}{} })
	m.ClearTimeout(1)

	select {
	case <-fired:
		t.Fatal("cleared timeout should not fire")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestExtendTimeoutUnknownPid(t *testing.T) {
	m := New(zap.NewNop(), 0)
	if m.ExtendTimeout(999, 1000) {
		t.Fatal("ExtendTimeout on unknown pid should return false")
	}
}

func TestGetRemainingTimeAndHasExceeded(t *testing.T) {
	m := New(zap.NewNop(), 0)
	m.RegisterTimeout(5, 60_000, nil)

	remaining, ok := m.GetRemainingTime(5)
	if !ok || remaining <= 0 {
		t.Fatalf("GetRemainingTime() = %d, %v; want positive remaining", remaining, ok)
	}
	if m.HasExceededTimeout(5) {
		t.Fatal("fresh 60s timeout should not be exceeded")
	}

	if !m.ExtendTimeout(5, 5000) {
		t.Fatal("ExtendTimeout should succeed for known pid")
	}

	m.ClearAll()
	if _, ok := m.GetRemainingTime(5); ok {
		t.Fatal("ClearAll should have removed the entry")
	}
}
