// Package residency implements the Residency Manager: a bounded priority
// queue that decides which translated blocks remain in the fast (in-DRAM)
// tier once capacity is exceeded. Admission is driven by a reuse-distance
// weighted score that decays exponentially over periodic attenuation
// windows.
//
// Structurally this plays the role the teacher repo's internal/genring
// (TTL-bounded generation ring) and internal/clockpro (hot/cold/test ring
// with an eviction hand) played together: genring answered "when does
// memory get reclaimed," clockpro answered "what gets demoted first."
// Here a single component answers both, because spec.md defines one
// continuous priority rather than a discrete state machine.
//
// © 2025 rvjit authors. MIT License.
package residency

import (
	"math"
	"sort"

	"github.com/Voskan/rvjit/internal/directory"
)

// Queue holds at most Max entry references, kept sorted by Priority
// descending. Every referenced entry is non-vacant and lives in the
// Directory this Queue was paired with; the Queue itself does not own
// entries, only pointers into the Directory's backing array.
type Queue struct {
	items []*directory.Entry
	max   int
	alpha float64 // attenuation blend factor
}

// Config bundles the two tunables the Residency Manager needs.
type Config struct {
	// Max is the bound Q on queue size (QUEUE_MAX_SIZE, default 16). The
	// same constant also shapes the reuse-distance score (spec.md §4.4).
	Max int
	// Alpha is the attenuation blend factor α (default 0.95).
	Alpha float64
}

// DefaultAlpha matches the reference's attenuation factor.
const DefaultAlpha = 0.95

// New constructs an empty Residency Queue.
func New(cfg Config) *Queue {
	alpha := cfg.Alpha
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	return &Queue{
		items: make([]*directory.Entry, 0, cfg.Max),
		max:   cfg.Max,
		alpha: alpha,
	}
}

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

// scoreDelta computes Δ = σ(exp(-reusedDistance/Q)) per spec.md §4.4. Q is
// the queue's own capacity, reused both as the admission bound and as the
// decay shape parameter, exactly as spec.md defines it.
func (q *Queue) scoreDelta(reusedDistance uint64) float64 {
	return sigmoid(math.Exp(-float64(reusedDistance) / float64(q.max)))
}

// OnNativeExecute updates e's timing and priority fields for a native
// execution observed at logical tick `now`, then inserts-or-updates e in
// the queue. It returns true when e was already resident (a "hit") and
// false when this call admitted it, either into free space or by evicting
// the lowest-priority entry. pkg/engine counts only the eviction case as a
// residency miss.
func (q *Queue) OnNativeExecute(e *directory.Entry, now uint64) (hit bool) {
	e.ReusedDistance = now - e.LastLogicalTime
	e.LastLogicalTime = now
	delta := q.scoreDelta(e.ReusedDistance)
	e.Priority += delta
	e.PeriodPriority += delta

	return q.insertOrUpdate(e)
}

func (q *Queue) indexOf(e *directory.Entry) int {
	for i, it := range q.items {
		if it == e || it.PC == e.PC {
			return i
		}
	}
	return -1
}

// insertOrUpdate implements spec.md §4.4's admission rule. The score update
// itself already happened in OnNativeExecute; this only handles queue
// membership and the inDRAM flag transition.
func (q *Queue) insertOrUpdate(e *directory.Entry) (hit bool) {
	if idx := q.indexOf(e); idx >= 0 {
		q.resort()
		return true
	}

	if len(q.items) < q.max {
		q.items = append(q.items, e)
		// Per spec.md §9's open question, inDRAM is left untouched on the
		// first-admission path: entries admitted before the queue is full
		// are "queued but not yet promoted to DRAM." Documented in
		// DESIGN.md.
		q.resort()
		return false
	}

	minIdx := 0
	for i := 1; i < len(q.items); i++ {
		if q.items[i].Priority < q.items[minIdx].Priority {
			minIdx = i
		}
	}
	evictee := q.items[minIdx]
	evictee.InDRAM = false
	q.items[minIdx] = e
	e.InDRAM = true
	q.resort()
	return false
}

// resort re-sorts the queue by Priority descending. spec.md §9 notes the
// reference re-sorts on every update (O(Q²) per update, acceptable since Q
// is tiny); a heap-based Queue with the same observable ordering is provided
// in heap.go for callers who need a larger Q.
func (q *Queue) resort() {
	sort.Slice(q.items, func(i, j int) bool {
		return q.items[i].Priority > q.items[j].Priority
	})
}

// Attenuate applies the periodic exponential blend from spec.md §4.4 to
// every entry currently resident in the queue:
//
//	priority ← α·priority + (1−α)·period_priority
//	period_priority ← 0
//
// Callers choose their own trigger (a wall-clock ticker or a logical-time
// epoch); this package has no built-in schedule, per spec.md §9.
func (q *Queue) Attenuate() {
	for _, e := range q.items {
		e.Priority = q.alpha*e.Priority + (1-q.alpha)*e.PeriodPriority
		e.PeriodPriority = 0
	}
	q.resort()
}

// Len returns the current queue size (≤ Max).
func (q *Queue) Len() int { return len(q.items) }

// Max returns the configured capacity Q.
func (q *Queue) Max() int { return q.max }

// Snapshot returns a copy of the queue's entry pointers in priority order,
// for diagnostics and tests. Mutating the returned slice does not affect
// the queue; mutating the pointed-to entries does.
func (q *Queue) Snapshot() []*directory.Entry {
	out := make([]*directory.Entry, len(q.items))
	copy(out, q.items)
	return out
}
