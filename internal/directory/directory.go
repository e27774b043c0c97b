// Package directory implements the Directory Table and the Hotness
// Promoter: an open-addressed hash table keyed by guest program counter,
// mapping to an offset inside the Code Arena plus per-entry metadata
// (hotness, timing, priority, tier flag).
//
// Entries are never removed: the arena itself cannot reclaim space, so
// there is no correctness motive to reclaim directory slots either — the
// same reasoning the teacher repo used to justify never deleting CLOCK-Pro
// ring nodes until a generation is entirely freed.
//
// All operations assume a single-threaded caller, exactly like
// internal/clockpro and internal/genring in the teacher repo assumed their
// shard's mutex was already held.
//
// © 2025 rvjit authors. MIT License.
package directory

import (
	"errors"
	"fmt"
)

// Sentinel is the reserved GuestPC value meaning "vacant slot". It must
// never be a legitimate guest PC.
const Sentinel uint64 = 0

// ErrZeroPC is returned (and should be treated as fatal by the caller, per
// spec.md §7) whenever a guest PC of 0 is presented to Lookup, Entry,
// IsHot or MarkCompiled.
var ErrZeroPC = errors.New("directory: pc 0 is reserved and must never be looked up, added, or promoted")

// ErrProbeLimitExceeded indicates the directory is undersized for the
// workload: probing for a slot walked past the configured maximum without
// finding either a match or a vacancy. Per spec.md §7 this is fatal.
var ErrProbeLimitExceeded = errors.New("directory: probe limit exceeded")

// Entry is one directory slot — CacheEntry in spec.md §3.
type Entry struct {
	PC               uint64  // key; Sentinel when vacant
	Offset           uint64  // byte offset into the Code Arena; valid only once Compiled
	Hot              uint16  // interpretation visit count, saturates at the promotion threshold
	Compiled         bool    // true once Offset has been written by MarkCompiled
	LastLogicalTime  uint64  // logical tick this entry was last executed natively
	ReusedDistance   uint64  // tick delta between the two most recent native executions
	Priority         float64 // cumulative, exponentially decayed residency score
	PeriodPriority   float64 // score accumulated within the current decay window
	InDRAM           bool    // fast-tier residency flag (see internal/residency)
}

func (e *Entry) vacant() bool { return e.PC == Sentinel }

// Table is the fixed-size open-addressed Directory. N is sized by the
// caller well above the expected number of distinct blocks so the load
// factor stays low and probe chains stay short (spec.md §9).
type Table struct {
	slots       []Entry
	n           uint64
	maxProbe    uint64
	hotCount    uint16
}

// Config bundles the two tunables the Directory needs at construction time.
type Config struct {
	// N is the fixed slot count (CACHE_ENTRY_SIZE in spec.md §6).
	N uint64
	// MaxProbe bounds linear probing (MAX_SEARCH_COUNT, default 32).
	MaxProbe uint64
	// HotCount is the promotion threshold H (CACHE_HOT_COUNT, default 16).
	HotCount uint16
}

// New allocates a Table per cfg. All slots start vacant.
func New(cfg Config) (*Table, error) {
	if cfg.N == 0 {
		return nil, fmt.Errorf("directory: N must be > 0")
	}
	if cfg.MaxProbe == 0 {
		return nil, fmt.Errorf("directory: MaxProbe must be > 0")
	}
	if cfg.HotCount == 0 {
		return nil, fmt.Errorf("directory: HotCount must be > 0")
	}
	return &Table{
		slots:    make([]Entry, cfg.N),
		n:        cfg.N,
		maxProbe: cfg.MaxProbe,
		hotCount: cfg.HotCount,
	}, nil
}

func (t *Table) hash(pc uint64) uint64 { return pc % t.n }

// find walks the probe sequence for pc, returning the slot index of either
// the matching entry or the first vacant slot encountered, whichever comes
// first. found is false and err is ErrProbeLimitExceeded if the probe limit
// is exceeded first.
func (t *Table) find(pc uint64) (idx uint64, found bool, err error) {
	idx = t.hash(pc)
	for probes := uint64(0); probes <= t.maxProbe; probes++ {
		e := &t.slots[idx]
		if e.vacant() {
			return idx, false, nil
		}
		if e.PC == pc {
			return idx, true, nil
		}
		idx = t.hash(idx + 1)
	}
	return 0, false, ErrProbeLimitExceeded
}

// Lookup returns the arena offset for pc and true, but only when the entry
// exists, has been compiled, and has crossed the hotness threshold — the
// combined gate spec.md §4.1 and §4.2 describe. It returns false for cold,
// uncompiled, or absent PCs. pc == 0 is a programmer error (ErrZeroPC).
func (t *Table) Lookup(pc uint64) (offset uint64, ok bool, err error) {
	if pc == Sentinel {
		return 0, false, ErrZeroPC
	}
	idx, found, err := t.find(pc)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}
	e := &t.slots[idx]
	if e.Compiled && e.Hot >= t.hotCount {
		return e.Offset, true, nil
	}
	return 0, false, nil
}

// Entry returns a pointer to the live directory slot for pc, creating it
// (as a fresh cold entry) if absent. The returned pointer is valid until the
// Table is resized, which this implementation never does.
func (t *Table) Entry(pc uint64) (*Entry, error) {
	if pc == Sentinel {
		return nil, ErrZeroPC
	}
	idx, found, err := t.find(pc)
	if err != nil {
		return nil, err
	}
	e := &t.slots[idx]
	if !found {
		e.PC = pc
	}
	return e, nil
}

// IsHot increments the interpretation counter for pc (creating the entry on
// first visit), saturating at the promotion threshold H, and reports
// whether the entry has reached H. Filters JIT work: callers must not
// attempt compilation unless IsHot returns true.
func (t *Table) IsHot(pc uint64) (bool, error) {
	e, err := t.Entry(pc)
	if err != nil {
		return false, err
	}
	if e.Hot < t.hotCount {
		e.Hot++
	}
	return e.Hot >= t.hotCount, nil
}

// MarkCompiled records that pc's translated block now lives at offset
// within the Code Arena and stamps the logical time of this (first)
// compilation-triggering visit. Engine.Step in pkg/engine calls this after a
// successful arena.Append.
func (t *Table) MarkCompiled(pc uint64, offset uint64, now uint64) error {
	e, err := t.Entry(pc)
	if err != nil {
		return err
	}
	e.Offset = offset
	e.Compiled = true
	e.LastLogicalTime = now
	return nil
}

// HotCount exposes the configured promotion threshold H.
func (t *Table) HotCount() uint16 { return t.hotCount }

// Len returns the fixed slot count N.
func (t *Table) Len() uint64 { return t.n }
