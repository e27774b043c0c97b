// Command workload_gen emits a deterministic synthetic sequence of guest PCs
// for driving rvjit's Directory/Residency benchmarks outside `go test`: a
// "uniform" distribution stresses the Directory's probe chains evenly,
// while a "zipf" distribution concentrates dispatches on a small hot set —
// the access pattern the Residency Manager's priority score is meant to
// exploit (spec.md §4.4).
//
// This is the direct generalisation of the teacher repo's
// tools/dataset_gen.go: the same uniform/zipf key-generation idea, retargeted
// from cache-benchmark keys to guest program counters, and scaled into a
// fixed block range instead of the full uint64 space so the output can
// stand in for a bounded guest code segment.
//
// Usage:
//
//	workload_gen -n 1000000 -dist=zipf -blocks=4096 -seed=42 -out trace.txt
//
// Flags:
//
//	-n       number of PCs to generate (default 1e6)
//	-blocks  number of distinct 4-byte-aligned block PCs in the guest range
//	-dist    distribution: "uniform" or "zipf" (default uniform)
//	-zipfs   Zipf s parameter (>1)  (default 1.2)
//	-zipfv   Zipf v parameter (>=1) (default 1.0)
//	-seed    PRNG seed (default current time)
//	-out     output file (default stdout), one hex PC per line
//
// © 2025 rvjit authors. MIT License.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

const guestBase = 0x10000

func main() {
	var (
		n       = flag.Int("n", 1_000_000, "number of guest PCs to generate")
		blocks  = flag.Uint64("blocks", 4096, "number of distinct block PCs in the guest range")
		dist    = flag.String("dist", "uniform", "distribution: uniform or zipf")
		zipfS   = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV   = flag.Float64("zipfv", 1.0, "zipf v parameter (>=1)")
		seedVal = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		outPath = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	if *blocks == 0 {
		fmt.Fprintln(os.Stderr, "-blocks must be > 0")
		os.Exit(1)
	}

	rnd := rand.New(rand.NewSource(*seedVal))

	var gen func() uint64
	switch *dist {
	case "uniform":
		gen = func() uint64 { return rnd.Uint64() % *blocks }
	case "zipf":
		if *zipfS <= 1.0 || *zipfV < 1 {
			fmt.Fprintln(os.Stderr, "zipfs must be >1 and zipfv >=1")
			os.Exit(1)
		}
		z := rand.NewZipf(rnd, *zipfS, *zipfV, *blocks-1)
		gen = z.Uint64
	default:
		fmt.Fprintln(os.Stderr, "unknown dist:", *dist)
		os.Exit(1)
	}

	var out *os.File
	var err error
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()

	for i := 0; i < *n; i++ {
		pc := guestBase + gen()*4 // keep block PCs 4-byte aligned, never 0
		fmt.Fprintf(w, "%#x\n", pc)
	}
}
