package timeline

import (
	"container/heap"
	"time"

	"github.com/rmoroz/gcalcache/internal/model"
)

// item is one schedulable entry of the merged sequence: its normalized span
// plus a deferred builder for the full event. Recurrence instances are only
// materialized when an item is actually consumed.
type item struct {
	start, end time.Time
	src, seq   int
	build      func() model.Event
}

// less orders items by start, then end, then source/insertion order. The
// tie-break is deterministic and part of the timeline contract.
func (a item) less(b item) bool {
	if !a.start.Equal(b.start) {
		return a.start.Before(b.start)
	}
	if !a.end.Equal(b.end) {
		return a.end.Before(b.end)
	}
	if a.src != b.src {
		return a.src < b.src
	}
	return a.seq < b.seq
}

// cursor yields items of one source in ascending start order.
type cursor func() (item, bool)

type mergeEntry struct {
	head item
	next cursor
}

type mergeHeap []mergeEntry

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].head.less(h[j].head) }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)         { *h = append(*h, x.(mergeEntry)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// merge is a k-way merge over per-source cursors: the lowest next item wins
// at every step.
type merge struct {
	h mergeHeap
}

func newMerge(sources []func() cursor) *merge {
	m := &merge{h: make(mergeHeap, 0, len(sources))}
	for _, src := range sources {
		next := src()
		if head, ok := next(); ok {
			m.h = append(m.h, mergeEntry{head: head, next: next})
		}
	}
	heap.Init(&m.h)
	return m
}

func (m *merge) pop() (item, bool) {
	if len(m.h) == 0 {
		return item{}, false
	}
	out := m.h[0].head
	if head, ok := m.h[0].next(); ok {
		m.h[0].head = head
		heap.Fix(&m.h, 0)
	} else {
		heap.Pop(&m.h)
	}
	return out, true
}
