// Command rvjit is a minimal end-to-end runner for the execution core: it
// replays a workload file produced by tools/workload_gen (one hex guest PC
// per line) through engine.Step and prints the resulting statistics.
//
// There is no real RISC-V front end or back end wired in here — codegen is
// out of this core's scope per SPEC_FULL.md §1 — so every dispatch stays
// interpreted only while -hot-count is above every per-PC visit count in
// the workload file. The value is clamped to 65535 (the Directory's
// uint16 counter), so the default of 1<<20 acts as 65535: a workload that
// visits one PC 65535 times or more reaches the placeholder front end, which
// panics. A real embedder supplies its own engine.FrontEnd and
// engine.BackEnd and can lower -hot-count to whatever promotion threshold
// its guest workload calls for.
//
// Usage:
//
//	rvjit -workload trace.txt
//
// © 2025 rvjit authors. MIT License.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	engine "github.com/Voskan/rvjit/pkg"
)

// echoInterp treats every presented PC as a complete one-instruction guest
// program that immediately issues ecall back to itself. This is enough to
// exercise the Directory's hotness counter and the Residency Manager's
// reuse-distance scoring over a realistic PC distribution without needing
// any real guest semantics.
type echoInterp struct{}

func (echoInterp) Exec(state *engine.MachineState) {
	state.ExitReason = engine.ExitEcall
	state.ReenterPC = state.PC
}

type unreachableFrontend struct{}

func (unreachableFrontend) GenBlock(*engine.MachineState) (string, error) {
	panic("rvjit: no front end configured for this run (see -hot-count)")
}

type unreachableBackend struct{}

func (unreachableBackend) Compile(*engine.MachineState, string) ([]byte, error) {
	panic("rvjit: no back end configured for this run (see -hot-count)")
}

func main() {
	workloadPath := flag.String("workload", "", "path to a newline-separated hex-PC workload file (required)")
	hotCount := flag.Uint64("hot-count", 1<<20, "promotion threshold H; keep above the workload's max per-PC visit count")
	cacheSize := flag.Uint64("cache-size", 16<<20, "Code Arena size in bytes")
	queueMax := flag.Int("queue-max", engine.DefaultQueueMaxSize, "Residency Queue bound Q")
	flag.Parse()

	if *workloadPath == "" {
		fmt.Fprintln(os.Stderr, "usage: rvjit -workload trace.txt")
		os.Exit(2)
	}

	f, err := os.Open(*workloadPath)
	if err != nil {
		log.Fatalf("open workload: %v", err)
	}
	defer f.Close()

	dir, err := os.MkdirTemp("", "rvjit-run-*")
	if err != nil {
		log.Fatalf("scratch dir: %v", err)
	}
	defer os.RemoveAll(dir)

	eng, err := engine.New(unreachableFrontend{}, unreachableBackend{}, echoInterp{},
		engine.WithCacheSize(*cacheSize),
		engine.WithHotCount(uint16(min64(*hotCount, 0xFFFF))),
		engine.WithQueueMaxSize(*queueMax),
		engine.WithBackingFile(filepath.Join(dir, "cache_file")),
		engine.WithTraceLog(filepath.Join(dir, "log.txt")),
	)
	if err != nil {
		log.Fatalf("engine init: %v", err)
	}
	defer eng.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var steps int
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		pc, err := strconv.ParseUint(line, 0, 64)
		if err != nil {
			log.Fatalf("line %d: invalid pc %q: %v", steps+1, line, err)
		}
		state := &engine.MachineState{PC: pc}
		if _, err := eng.Step(state); err != nil {
			log.Fatalf("line %d: step(pc=%#x): %v", steps+1, pc, err)
		}
		steps++
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("reading workload: %v", err)
	}

	fmt.Printf("steps:            %d\n", steps)
	fmt.Printf("logical_clock:    %d\n", eng.LogicalClock())
	fmt.Printf("mode_switches:    %d\n", eng.ModeSwitches())
	fmt.Printf("arena_bytes_used: %d / %d\n", eng.ArenaBytesUsed(), eng.ArenaCapacity())
	fmt.Printf("residency_size:   %d\n", len(eng.ResidencySnapshot()))
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
