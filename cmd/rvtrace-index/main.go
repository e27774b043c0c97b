// Command rvtrace-index builds a queryable Badger index over a PC-trace log
// (pkg/engine's log.txt: a flat sequence of little-endian u64 guest PCs, one
// per block dispatch) and answers "which offsets in the trace did this PC
// occur at" and "what is the hottest PC in this trace" without loading the
// whole log into memory.
//
// This is the satellite tool that gives the teacher repo's BadgerDB
// dependency (examples/disk_eject in arena-cache used it as an L2 cache
// tier) a home that does not conflict with this engine's own non-goal of a
// genuine persistent cold tier: the Code Arena and Directory stay in-memory
// only, exactly as before; Badger here indexes a side artifact — the trace
// log — for offline analysis, never anything the running Engine reads back.
//
// Usage:
//
//	rvtrace-index -log ./rvjit-demo/log.txt -db ./rvtrace.db build
//	rvtrace-index -db ./rvtrace.db query -pc 0x1000
//	rvtrace-index -db ./rvtrace.db top -n 10
//
// © 2025 rvjit authors. MIT License.
package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"

	badger "github.com/dgraph-io/badger/v4"
)

func main() {
	dbPath := flag.String("db", "./rvtrace.db", "badger index directory")
	logPath := flag.String("log", "", "path to a pc-trace log (required for the build command)")
	pcFlag := flag.String("pc", "", "guest pc to query, e.g. 0x1000 (for the query command)")
	topN := flag.Int("n", 10, "number of hottest PCs to print (for the top command)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: rvtrace-index [-db path] [-log path] [-pc pc] [-n n] {build|query|top}")
		os.Exit(2)
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithLogger(nil))
	if err != nil {
		log.Fatalf("badger open: %v", err)
	}
	defer db.Close()

	switch flag.Arg(0) {
	case "build":
		if *logPath == "" {
			log.Fatal("-log is required for build")
		}
		n, err := build(db, *logPath)
		if err != nil {
			log.Fatalf("build: %v", err)
		}
		fmt.Printf("indexed %d trace records\n", n)

	case "query":
		if *pcFlag == "" {
			log.Fatal("-pc is required for query")
		}
		pc, err := strconv.ParseUint(*pcFlag, 0, 64)
		if err != nil {
			log.Fatalf("invalid -pc: %v", err)
		}
		offsets, err := query(db, pc)
		if err != nil {
			log.Fatalf("query: %v", err)
		}
		fmt.Printf("pc %#x occurred at %d record offsets: %v\n", pc, len(offsets), offsets)

	case "top":
		hottest, err := top(db, *topN)
		if err != nil {
			log.Fatalf("top: %v", err)
		}
		for _, h := range hottest {
			fmt.Printf("%#016x\t%d\n", h.pc, h.count)
		}

	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
}

// pcKey maps a guest pc to the Badger key its count is stored under.
func pcKey(pc uint64) []byte {
	key := make([]byte, 9)
	key[0] = 'c' // "count" namespace, distinct from the per-occurrence "o" namespace
	binary.BigEndian.PutUint64(key[1:], pc)
	return key
}

// occurrenceKey maps (pc, record index) to the key an individual occurrence
// is stored under, ordered so a prefix scan over the "o" namespace lists
// every offset for one pc in ascending order.
func occurrenceKey(pc, recordIdx uint64) []byte {
	key := make([]byte, 17)
	key[0] = 'o'
	binary.BigEndian.PutUint64(key[1:9], pc)
	binary.BigEndian.PutUint64(key[9:], recordIdx)
	return key
}

// build streams the trace log and writes one occurrence marker per record,
// recording that pc appeared at this record index, while tallying per-pc
// counts in memory; once the log is read it writes one count entry per
// distinct pc. Batched via badger.WriteBatch the same
// way the teacher's Badger-backed examples used transactions, scaled up for
// a log that may be far larger than available memory.
func build(db *badger.DB, logPath string) (int, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)
	wb := db.NewWriteBatch()
	defer wb.Cancel()

	counts := make(map[uint64]uint64)
	var idx uint64
	var buf [8]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return int(idx), fmt.Errorf("read record %d: %w", idx, err)
		}
		pc := binary.LittleEndian.Uint64(buf[:])
		counts[pc]++
		if err := wb.Set(occurrenceKey(pc, idx), nil); err != nil {
			return int(idx), err
		}
		idx++
	}

	for pc, n := range counts {
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], n)
		if err := wb.Set(pcKey(pc), v[:]); err != nil {
			return int(idx), err
		}
	}
	if err := wb.Flush(); err != nil {
		return int(idx), err
	}
	return int(idx), nil
}

// query returns every record index at which pc was dispatched.
func query(db *badger.DB, pc uint64) ([]uint64, error) {
	var offsets []uint64
	err := db.View(func(txn *badger.Txn) error {
		prefix := make([]byte, 9)
		prefix[0] = 'o'
		binary.BigEndian.PutUint64(prefix[1:], pc)

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			offsets = append(offsets, binary.BigEndian.Uint64(key[9:]))
		}
		return nil
	})
	return offsets, err
}

type pcCount struct {
	pc    uint64
	count uint64
}

// top scans every per-pc count entry and returns the n with the highest
// counts, descending.
func top(db *badger.DB, n int) ([]pcCount, error) {
	var all []pcCount
	err := db.View(func(txn *badger.Txn) error {
		prefix := []byte{'c'}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			pc := binary.BigEndian.Uint64(key[1:])
			var count uint64
			if err := item.Value(func(v []byte) error {
				count = binary.BigEndian.Uint64(v)
				return nil
			}); err != nil {
				return err
			}
			all = append(all, pcCount{pc: pc, count: count})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].count > all[j].count })
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}
