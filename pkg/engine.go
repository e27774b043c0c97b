// Package engine implements the hot-path execution core described in
// SPEC_FULL.md: the Directory Table, the Code Arena, the Residency
// Manager, and the Execution Loop that stitches interpretation and native
// dispatch together across guest branches.
//
// This is the generalisation of the teacher repo's pkg/cache.go: where
// arena-cache's Cache sharded a key/value store across N independent
// shards to cut lock contention, Engine is deliberately unsharded — the
// guest program counter space belongs to exactly one guest thread of
// control (spec.md §5), so there is nothing to shard and no lock to avoid
// on the Step path.
//
// © 2025 rvjit authors. MIT License.
package engine

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	arena "github.com/Voskan/rvjit/internal/arena"
	"github.com/Voskan/rvjit/internal/directory"
	"github.com/Voskan/rvjit/internal/residency"
)

// FrontEnd produces an opaque intermediate form for the basic block
// beginning at state.PC. It is the Go-interface equivalent of spec.md §6's
// genblock(machine) -> source contract; rvjit never inspects the source
// value itself.
type FrontEnd interface {
	GenBlock(state *MachineState) (source string, err error)
}

// BackEnd turns the FrontEnd's intermediate form into host-code bytes ready
// to append to the Code Arena — spec.md §6's compile(machine, source)
// contract.
type BackEnd interface {
	Compile(state *MachineState, source string) (code []byte, err error)
}

// Interpreter steps one basic block of guest code using the guest machine
// state — spec.md §6's exec_block_interp(state) contract. Exec must set
// state.ExitReason (and state.ReenterPC, for every reason except none)
// before returning.
type Interpreter interface {
	Exec(state *MachineState)
}

// Engine is the top-level execution core: one Directory, one Code Arena,
// one Residency Manager, and the loop that dispatches through them. Fields
// are never package-level globals (spec.md §9's explicit design note) so
// that multiple Engines — e.g. several guest images under test — can
// coexist in one process; each Engine's own Step is still single-threaded
// per spec.md §5.
type Engine struct {
	table     *directory.Table
	arena     *arena.Arena
	residency residency.Manager

	frontend FrontEnd
	backend  BackEnd
	interp   Interpreter

	logicalClock    atomic.Uint64
	modeSwitches    atomic.Uint64
	lookups         atomic.Uint64
	promotions      atomic.Uint64
	residencyHits   atomic.Uint64
	residencyMisses atomic.Uint64
	prevInterp      bool

	traceFile   *os.File
	traceWriter *bufio.Writer

	logger  *zap.Logger
	metrics metricsSink

	verboseResidency bool
	attenuationEpoch uint64
}

// New wires a fresh Engine: it maps the Code Arena, allocates the
// Directory, constructs the Residency Manager, and opens the PC-trace log.
// frontend/backend/interp are the external collaborators spec.md §1 treats
// as out of scope for this core.
func New(frontend FrontEnd, backend BackEnd, interp Interpreter, opts ...Option) (*Engine, error) {
	if frontend == nil || backend == nil || interp == nil {
		return nil, fmt.Errorf("rvjit: frontend, backend, and interp must all be non-nil")
	}

	cfg := defaultConfig()
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	ar, err := arena.New(cfg.cacheSize, cfg.backingFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackingFileSetup, err)
	}

	table, err := directory.New(directory.Config{
		N:        cfg.entrySize,
		MaxProbe: cfg.maxSearchCount,
		HotCount: cfg.hotCount,
	})
	if err != nil {
		ar.Close()
		return nil, err
	}

	var resid residency.Manager
	rcfg := residency.Config{Max: cfg.queueMax, Alpha: cfg.alpha}
	if cfg.useHeapResidency {
		resid = residency.NewHeap(rcfg)
	} else {
		resid = residency.New(rcfg)
	}

	f, err := os.OpenFile(cfg.traceLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		ar.Close()
		return nil, fmt.Errorf("%w: %v", ErrTraceLogSetup, err)
	}

	e := &Engine{
		table:            table,
		arena:            ar,
		residency:        resid,
		frontend:         frontend,
		backend:          backend,
		interp:           interp,
		traceFile:        f,
		traceWriter:      bufio.NewWriter(f),
		logger:           cfg.logger,
		metrics:          newMetricsSink(cfg.registry),
		verboseResidency: cfg.verboseResidency,
		attenuationEpoch: cfg.attenuationEpoch,
		prevInterp:       true, // the tier before the first dispatch counts as interpreted, so a native first dispatch records one switch
	}
	return e, nil
}

// writeTrace appends pc as a raw little-endian u64 to the PC-trace log —
// spec.md §6's record format, one record before every block dispatch.
func (e *Engine) writeTrace(pc uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], pc)
	_, err := e.traceWriter.Write(buf[:])
	return err
}

// Step runs the outer/inner dispatch loop of spec.md §4.3 starting from
// state.PC, and returns only once the guest issues ecall (or a fatal
// condition makes continuing impossible).
func (e *Engine) Step(state *MachineState) (ExitReason, error) {
	for {
		if state.PC == directory.Sentinel {
			return 0, ErrZeroPC
		}

		offset, hot, err := e.table.Lookup(state.PC)
		if err != nil {
			return 0, translateDirectoryErr(err)
		}
		e.lookups.Add(1)
		e.metrics.incLookup()

		if !hot {
			hotNow, err := e.table.IsHot(state.PC)
			if err != nil {
				return 0, translateDirectoryErr(err)
			}
			if hotNow {
				source, err := e.frontend.GenBlock(state)
				if err != nil {
					return 0, fmt.Errorf("rvjit: genblock: %w", err)
				}
				code, err := e.backend.Compile(state, source)
				if err != nil {
					return 0, fmt.Errorf("rvjit: compile: %w", err)
				}
				off, err := e.arena.Append(code)
				if err != nil {
					return 0, fmt.Errorf("%w: %v", ErrArenaExhausted, err)
				}
				if err := e.table.MarkCompiled(state.PC, off, e.logicalClock.Load()); err != nil {
					return 0, translateDirectoryErr(err)
				}
				e.promotions.Add(1)
				e.metrics.incPromotion()
				e.metrics.setArenaBytesUsed(e.arena.Offset())
				offset = off
				hot = true
			}
		}

		isNative := hot
		useOffset := offset
		dispatchPC := state.PC // tracks the block actually about to run

		for { // inner loop
			state.ExitReason = ExitNone

			curInterp := !isNative
			if curInterp != e.prevInterp {
				e.modeSwitches.Add(1)
				e.metrics.incModeSwitch()
			}
			e.prevInterp = curInterp

			// Per spec.md §4.3, the trace record is keyed on the guest pc
			// as it stands at this point in the loop — which on the fast
			// "cache hit, stay in the inner loop" path is not the PC of
			// the block about to run (dispatchPC), only the PC of the
			// block that led us here. This is faithful to
			// original_source/src/machine.c, which logs m->state.pc
			// without refreshing it on that path.
			if err := e.writeTrace(state.PC); err != nil {
				return 0, fmt.Errorf("rvjit: pc-trace write: %w", err)
			}

			if isNative {
				now := e.logicalClock.Add(1)
				entry, err := e.table.Entry(dispatchPC)
				if err != nil {
					return 0, translateDirectoryErr(err)
				}
				wasFull := e.residency.Len() >= e.residency.Max()
				hit := e.residency.OnNativeExecute(entry, now)
				if hit {
					e.residencyHits.Add(1)
					e.metrics.incResidencyHit()
				} else if wasFull {
					e.residencyMisses.Add(1)
					e.metrics.incResidencyMiss()
					if e.verboseResidency {
						e.logger.Debug("residency admitted new block",
							zap.Uint64("pc", dispatchPC),
							zap.Float64("priority", entry.Priority))
					}
				}
				e.metrics.setResidencySize(e.residency.Len())
				if e.attenuationEpoch != 0 && now%e.attenuationEpoch == 0 {
					e.residency.Attenuate()
				}
				e.arena.Invoke(useOffset, unsafe.Pointer(state))
			} else {
				e.interp.Exec(state)
			}

			switch state.ExitReason {
			case ExitNone:
				return 0, ErrExitReasonUnset

			case ExitDirectBranch, ExitIndirectBranch:
				nextOffset, nextHot, err := e.table.Lookup(state.ReenterPC)
				if err != nil {
					return 0, translateDirectoryErr(err)
				}
				if nextHot {
					useOffset = nextOffset
					isNative = true
					dispatchPC = state.ReenterPC
					continue
				}

			case ExitInterp:
				state.PC = state.ReenterPC
				dispatchPC = state.ReenterPC
				isNative = false
				continue
			}
			break
		}

		state.PC = state.ReenterPC
		switch state.ExitReason {
		case ExitDirectBranch, ExitIndirectBranch:
			continue
		case ExitEcall:
			return ExitEcall, nil
		default:
			return 0, fmt.Errorf("%w: %s", ErrUnknownExitReason, state.ExitReason)
		}
	}
}

func translateDirectoryErr(err error) error {
	switch err {
	case directory.ErrZeroPC:
		return ErrZeroPC
	case directory.ErrProbeLimitExceeded:
		return fmt.Errorf("%w: %v", ErrProbeLimitExceeded, err)
	default:
		return err
	}
}

// Attenuate applies the Residency Manager's periodic exponential blend
// (spec.md §4.4). Callers choose their own schedule unless
// WithAttenuationEpoch was used at construction.
func (e *Engine) Attenuate() { e.residency.Attenuate() }

// ModeSwitches returns the number of interp<->native transitions observed
// so far (spec.md §4.5).
func (e *Engine) ModeSwitches() uint64 { return e.modeSwitches.Load() }

// LogicalClock returns the current logical time (spec.md §3).
func (e *Engine) LogicalClock() uint64 { return e.logicalClock.Load() }

// Lookups returns the number of outer-loop Directory lookups performed so
// far (one per outer-loop iteration of Step). The inner loop's lookups of
// branch targets are not counted.
func (e *Engine) Lookups() uint64 { return e.lookups.Load() }

// Promotions returns the number of PCs promoted from cold to hot and
// compiled so far.
func (e *Engine) Promotions() uint64 { return e.promotions.Load() }

// ResidencyHits returns the number of native executions of an
// already-resident block so far.
func (e *Engine) ResidencyHits() uint64 { return e.residencyHits.Load() }

// ResidencyMisses returns the number of native executions that evicted
// another block to admit one so far.
func (e *Engine) ResidencyMisses() uint64 { return e.residencyMisses.Load() }

// ArenaBytesUsed returns the Code Arena's current bump offset.
func (e *Engine) ArenaBytesUsed() uint64 { return e.arena.Offset() }

// ArenaCapacity returns the Code Arena's total size.
func (e *Engine) ArenaCapacity() uint64 { return e.arena.Size() }

// ResidencySnapshot returns the PCs currently resident in the fast tier, in
// priority order — a best-effort read with no synchronisation against a
// concurrently running Step, mirroring the teacher's shard.len() comment
// ("may slightly undercount during rotation"): safe only because the only
// legitimate caller is a diagnostic poller, never another Step.
func (e *Engine) ResidencySnapshot() []uint64 {
	entries := e.residency.Snapshot()
	pcs := make([]uint64, len(entries))
	for i, ent := range entries {
		pcs[i] = ent.PC
	}
	return pcs
}

// Close flushes and closes the PC-trace log and unmaps the Code Arena.
func (e *Engine) Close() error {
	if err := e.traceWriter.Flush(); err != nil {
		return err
	}
	if err := e.traceFile.Close(); err != nil {
		return err
	}
	return e.arena.Close()
}
