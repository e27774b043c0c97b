package residency

import (
	"container/heap"
	"math"
	"sort"

	"github.com/Voskan/rvjit/internal/directory"
)

// Manager is the interface pkg/engine depends on; both Queue (the
// reference O(Q²) re-sort implementation) and HeapQueue (the O(log Q)
// alternative spec.md §9 explicitly permits) satisfy it.
type Manager interface {
	OnNativeExecute(e *directory.Entry, now uint64) (hit bool)
	Attenuate()
	Len() int
	Max() int
	Snapshot() []*directory.Entry
}

var (
	_ Manager = (*Queue)(nil)
	_ Manager = (*HeapQueue)(nil)
)

// HeapQueue is a binary min-heap keyed by Priority, giving O(log Q)
// insert/evict instead of Queue's O(Q²) full re-sort. Observable semantics
// (which entry is evicted, inDRAM transitions, Snapshot ordering) are
// identical to Queue — only the internal representation differs, as
// spec.md §9 allows.
type HeapQueue struct {
	h     minHeap
	index map[uint64]int // pc -> position in h, kept in sync by heap ops
	max   int
	alpha float64
}

// NewHeap constructs an empty heap-backed Residency Manager.
func NewHeap(cfg Config) *HeapQueue {
	alpha := cfg.Alpha
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	q := &HeapQueue{
		h:     make(minHeap, 0, cfg.Max),
		index: make(map[uint64]int, cfg.Max),
		max:   cfg.Max,
		alpha: alpha,
	}
	heap.Init(&q.h)
	return q
}

type minHeap []*directory.Entry

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].Priority < h[j].Priority }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(*directory.Entry)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (q *HeapQueue) scoreDelta(reusedDistance uint64) float64 {
	return sigmoid(math.Exp(-float64(reusedDistance) / float64(q.max)))
}

// OnNativeExecute mirrors Queue.OnNativeExecute exactly, backed by a heap.
func (q *HeapQueue) OnNativeExecute(e *directory.Entry, now uint64) (hit bool) {
	e.ReusedDistance = now - e.LastLogicalTime
	e.LastLogicalTime = now
	delta := q.scoreDelta(e.ReusedDistance)
	e.Priority += delta
	e.PeriodPriority += delta

	if pos, ok := q.index[e.PC]; ok {
		q.h[pos] = e
		heap.Fix(&q.h, pos)
		q.reindex()
		return true
	}

	if q.h.Len() < q.max {
		heap.Push(&q.h, e)
		q.reindex()
		return false
	}

	evictee := q.h[0]
	evictee.InDRAM = false
	heap.Pop(&q.h)
	heap.Push(&q.h, e)
	e.InDRAM = true
	q.reindex()
	return false
}

// reindex rebuilds the pc->position map after any structural heap change.
// Q is tiny (default 16), so a full rebuild is cheaper than threading index
// maintenance through container/heap's Push/Pop/Fix callbacks.
func (q *HeapQueue) reindex() {
	for pc := range q.index {
		delete(q.index, pc)
	}
	for i, e := range q.h {
		q.index[e.PC] = i
	}
}

// Attenuate applies the same blend as Queue.Attenuate.
func (q *HeapQueue) Attenuate() {
	for _, e := range q.h {
		e.Priority = q.alpha*e.Priority + (1-q.alpha)*e.PeriodPriority
		e.PeriodPriority = 0
	}
	heap.Init(&q.h)
	q.reindex()
}

// Len returns the current heap size (≤ Max).
func (q *HeapQueue) Len() int { return q.h.Len() }

// Max returns the configured capacity Q.
func (q *HeapQueue) Max() int { return q.max }

// Snapshot returns entry pointers sorted by Priority descending, matching
// Queue.Snapshot's observable order.
func (q *HeapQueue) Snapshot() []*directory.Entry {
	out := make([]*directory.Entry, len(q.h))
	copy(out, q.h)
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}
