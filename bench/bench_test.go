// Package bench provides reproducible micro-benchmarks for the rvjit
// execution core. Run via: go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// Benchmarks use a tiny synthetic guest program (a chain of direct branches
// ending in ecall) rather than real RISC-V code, since front-end/back-end
// codegen is out of this core's scope — see pkg/engine.FrontEnd/BackEnd.
// What's measured is the Directory/Arena/Residency/loop machinery itself:
//
//  1. StepInterpOnly   — every block stays interpreted (HotCount never hit)
//  2. DirectoryPromotionPath — IsHot + arena.Append + MarkCompiled in
//     isolation, bypassing Step (no front end or back end is called)
//  3. StepParallel     — independent Engines in concurrent goroutines, since
//     spec.md §5 forbids sharing one Engine across goroutines
//
// NOTE: Unit tests live alongside each package; this file is only for
// performance.
//
// © 2025 rvjit authors. MIT License.
package bench

import (
	"path/filepath"
	"testing"

	"github.com/Voskan/rvjit/internal/arena"
	"github.com/Voskan/rvjit/internal/directory"
	engine "github.com/Voskan/rvjit/pkg"
)

const (
	capBytes = 16 << 20
	blockA   = 0x1000
	blockB   = 0x1004
	blockC   = 0x1008
	blockD   = 0x100C
)

// chainInterp is the benchmarks' synthetic guest program: three direct
// branches followed by an ecall back to the start.
type chainInterp struct{}

func (chainInterp) Exec(state *engine.MachineState) {
	switch state.PC {
	case blockA, blockB, blockC:
		state.ExitReason = engine.ExitDirectBranch
		state.ReenterPC = state.PC + 4
	default:
		state.ExitReason = engine.ExitEcall
		state.ReenterPC = blockA
	}
}

type panicFrontend struct{}

func (panicFrontend) GenBlock(*engine.MachineState) (string, error) { panic("unused in StepInterpOnly") }

type panicBackend struct{}

func (panicBackend) Compile(*engine.MachineState, string) ([]byte, error) {
	panic("unused in StepInterpOnly")
}

func newBenchEngine(b *testing.B, hotCount uint16) *engine.Engine {
	b.Helper()
	dir := b.TempDir()
	e, err := engine.New(panicFrontend{}, panicBackend{}, chainInterp{},
		engine.WithCacheSize(capBytes),
		engine.WithHotCount(hotCount),
		engine.WithBackingFile(filepath.Join(dir, "cache_file")),
		engine.WithTraceLog(filepath.Join(dir, "log.txt")),
	)
	if err != nil {
		b.Fatal(err)
	}
	return e
}

func BenchmarkStepInterpOnly(b *testing.B) {
	const hotCount = 1 << 15
	e := newBenchEngine(b, hotCount) // never promotes across b.N short runs
	defer func() { e.Close() }()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Each Step visits every block once, so swap in a fresh Engine
		// before any block's hotness counter can reach hotCount.
		if i > 0 && i%(hotCount-1) == 0 {
			b.StopTimer()
			e.Close()
			e = newBenchEngine(b, hotCount)
			b.StartTimer()
		}
		state := &engine.MachineState{PC: blockA}
		if _, err := e.Step(state); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDirectoryPromotionPath measures IsHot + arena.Append +
// MarkCompiled in isolation — the cost of admitting one new block — one
// promotion per iteration, using a distinct PC per iteration so the
// Directory never reuses a slot. It deliberately bypasses engine.Step and
// arena.Invoke: Invoke executes the arena's bytes as native machine code,
// and a benchmark has no real compiled block to hand it.
func BenchmarkDirectoryPromotionPath(b *testing.B) {
	ar, err := arena.New(256<<20, filepath.Join(b.TempDir(), "cache_file"))
	if err != nil {
		b.Fatal(err)
	}
	defer ar.Close()

	tbl, err := directory.New(directory.Config{N: 1 << 20, MaxProbe: 32, HotCount: 1})
	if err != nil {
		b.Fatal(err)
	}

	placeholderBlock := make([]byte, 16)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pc := uint64(0x10000 + i*4)
		if _, err := tbl.IsHot(pc); err != nil {
			b.Fatal(err)
		}
		off, err := ar.Append(placeholderBlock)
		if err != nil {
			b.Fatal(err)
		}
		if err := tbl.MarkCompiled(pc, off, uint64(i)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStepParallel(b *testing.B) {
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		dir := b.TempDir()
		e, err := engine.New(panicFrontend{}, panicBackend{}, chainInterp{},
			engine.WithCacheSize(capBytes),
			engine.WithHotCount(1<<15),
			engine.WithBackingFile(filepath.Join(dir, "cache_file")),
			engine.WithTraceLog(filepath.Join(dir, "log.txt")),
		)
		if err != nil {
			b.Fatal(err)
		}
		defer e.Close()
		for pb.Next() {
			state := &engine.MachineState{PC: blockA}
			if _, err := e.Step(state); err != nil {
				b.Fatal(err)
			}
		}
	})
}
