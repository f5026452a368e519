// Package timeouts implements per-pid deadlines with extend/clear/callback
// semantics (spec §4.7). The heap is lifted directly from the teacher's
// scheduler.go: a min-heap ordered by fire time with an index map for O(log
// n) removal, generalized from process-restart scheduling to arbitrary
// timeout callbacks.
package timeouts

import (
	"container/heap"
	"time"
)

type timeoutEvent struct {
	pid   uint32
	when  time.Time
	index int
}

type eventHeap []*timeoutEvent

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *eventHeap) Push(x any) {
	ev := x.(*timeoutEvent)
	ev.index = len(*h)
	*h = append(*h, ev)
}
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	ev.index = -1
	*h = old[:n-1]
	return ev
}

// heapSched is the bare min-heap, used under Manager's mutex.
type heapSched struct {
	h       eventHeap
	entries map[uint32]*timeoutEvent
}

func newHeapSched() *heapSched {
	h := eventHeap{}
	heap.Init(&h)
	return &heapSched{h: h, entries: make(map[uint32]*timeoutEvent)}
}

func (s *heapSched) push(pid uint32, when time.Time) {
	if old, ok := s.entries[pid]; ok {
		heap.Remove(&s.h, old.index)
		delete(s.entries, pid)
	}
	ev := &timeoutEvent{pid: pid, when: when}
	s.entries[pid] = ev
	heap.Push(&s.h, ev)
}

func (s *heapSched) next() (pid uint32, when time.Time, ok bool) {
	if len(s.h) == 0 {
		return 0, time.Time{}, false
	}
	ev := s.h[0]
	return ev.pid, ev.when, true
}

func (s *heapSched) pop() {
	if len(s.h) == 0 {
		return
	}
	ev := heap.Pop(&s.h).(*timeoutEvent)
	delete(s.entries, ev.pid)
}

func (s *heapSched) remove(pid uint32) {
	ev, ok := s.entries[pid]
	if !ok {
		return
	}
	heap.Remove(&s.h, ev.index)
	delete(s.entries, pid)
}
