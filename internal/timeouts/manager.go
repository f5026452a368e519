package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type timeoutEntry struct {
	pid        uint32
	start      time.Time
	durationMs int64
	when       time.Time
	triggered  bool
	callback   func(pid uint32)
}

// Manager implements spec §4.7: registerTimeout/extendTimeout/clearTimeout/
// getRemainingTime/hasExceededTimeout/clearAll, backed by the min-heap
// scheduler.
type Manager struct {
	log       *zap.Logger
	defaultMs int64

	mu      sync.Mutex
	sched   *heapSched
	entries map[uint32]*timeoutEntry

	timer *time.Timer
	wake  chan struct{}
}

// New builds a Manager. defaultMs is the supervisor-wide default used when
// RegisterTimeout is called with ms == 0 (spec default: 5 minutes).
func New(log *zap.Logger, defaultMs int64) *Manager {
	if defaultMs <= 0 {
		defaultMs = 5 * 60 * 1000
	}
	m := &Manager{
		log:       log.Named("timeouts"),
		defaultMs: defaultMs,
		sched:     newHeapSched(),
		entries:   make(map[uint32]*timeoutEntry),
		timer:     time.NewTimer(time.Hour),
		wake:      make(chan struct{}, 1),
	}
	m.timer.Stop()
	return m
}

// Run drives the scheduler until ctx is cancelled. Exactly one goroutine
// should call Run.
func (m *Manager) Run(ctx context.Context) {
	for {
		m.mu.Lock()
		_, when, ok := m.sched.next()
		m.mu.Unlock()

		var timerC <-chan time.Time
		if ok {
			d := time.Until(when)
			if d < 0 {
				d = 0
			}
			if !m.timer.Stop() {
				select {
				case <-m.timer.C:
				default:
				}
			}
			m.timer.Reset(d)
			timerC = m.timer.C
		}

		select {
		case <-ctx.Done():
			return
		case <-m.wake:
			continue
		case <-timerC:
			m.fireDue()
		}
	}
}

func (m *Manager) fireDue() {
	now := time.Now()
	var fired []*timeoutEntry
	m.mu.Lock()
	for {
		pid, when, ok := m.sched.next()
		if !ok || when.After(now) {
			break
		}
		m.sched.pop()
		if e, ok := m.entries[pid]; ok {
			e.triggered = true
			fired = append(fired, e)
		}
	}
	m.mu.Unlock()

	for _, e := range fired {
		if e.callback != nil {
			go e.callback(e.pid)
		}
	}
}

func (m *Manager) nudge() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// RegisterTimeout schedules a single-shot deadline for pid.
func (m *Manager) RegisterTimeout(pid uint32, ms int64, callback func(pid uint32)) {
	if ms == 0 {
		ms = m.defaultMs
	}
	now := time.Now()
	e := &timeoutEntry{
		pid: pid, start: now, durationMs: ms,
		when: now.Add(time.Duration(ms) * time.Millisecond),
		callback: callback,
	}
	m.mu.Lock()
	m.entries[pid] = e
	m.sched.push(pid, e.when)
	m.mu.Unlock()
	m.nudge()
}

// ExtendTimeout reschedules pid's deadline to remaining + addMs from now.
// It fails (returns false) if pid is unknown or already fired.
func (m *Manager) ExtendTimeout(pid uint32, addMs int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[pid]
	if !ok || e.triggered {
		return false
	}
	remaining := time.Until(e.when)
	if remaining < 0 {
		remaining = 0
	}
	e.durationMs = remaining.Milliseconds() + addMs
	e.start = time.Now()
	e.when = time.Now().Add(remaining + time.Duration(addMs)*time.Millisecond)
	m.sched.push(pid, e.when)
	m.nudge()
	return true
}

// ClearTimeout idempotently cancels pid's timeout.
func (m *Manager) ClearTimeout(pid uint32) {
	m.mu.Lock()
	delete(m.entries, pid)
	m.sched.remove(pid)
	m.mu.Unlock()
	m.nudge()
}

// GetRemainingTime returns milliseconds left, 0 if already fired, and ok
// false if pid is unknown.
func (m *Manager) GetRemainingTime(pid uint32) (ms int64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, exists := m.entries[pid]
	if !exists {
		return 0, false
	}
	if e.triggered {
		return 0, true
	}
	remaining := time.Until(e.when)
	if remaining < 0 {
		remaining = 0
	}
	return remaining.Milliseconds(), true
}

// HasExceededTimeout is true iff the timeout has fired or its deadline has
// already elapsed.
func (m *Manager) HasExceededTimeout(pid uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[pid]
	if !ok {
		return false
	}
	return e.triggered || !time.Now().Before(e.when)
}

// ClearAll tears down every pending timeout (supervisor shutdown).
func (m *Manager) ClearAll() {
	m.mu.Lock()
	m.entries = make(map[uint32]*timeoutEntry)
	m.sched = newHeapSched()
	m.mu.Unlock()
	m.nudge()
}
