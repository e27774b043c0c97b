package directory

import (
	"errors"
	"testing"
)

func TestNewValidatesConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zeroN", Config{N: 0, MaxProbe: 8, HotCount: 4}},
		{"zeroMaxProbe", Config{N: 64, MaxProbe: 0, HotCount: 4}},
		{"zeroHotCount", Config{N: 64, MaxProbe: 8, HotCount: 0}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := New(c.cfg); err == nil {
				t.Fatalf("expected error for config %+v", c.cfg)
			}
		})
	}
}

func TestLookupRejectsZeroPC(t *testing.T) {
	tbl, err := New(Config{N: 64, MaxProbe: 8, HotCount: 4})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := tbl.Lookup(Sentinel); !errors.Is(err, ErrZeroPC) {
		t.Fatalf("Lookup(0) = %v, want ErrZeroPC", err)
	}
	if _, err := tbl.IsHot(Sentinel); !errors.Is(err, ErrZeroPC) {
		t.Fatalf("IsHot(0) = %v, want ErrZeroPC", err)
	}
}

func TestLookupMissUntilCompiledAndHot(t *testing.T) {
	tbl, err := New(Config{N: 64, MaxProbe: 8, HotCount: 4})
	if err != nil {
		t.Fatal(err)
	}
	const pc = 0x1000

	if _, ok, err := tbl.Lookup(pc); err != nil || ok {
		t.Fatalf("Lookup on absent pc: ok=%v err=%v, want ok=false", ok, err)
	}

	for i := 0; i < 3; i++ {
		hot, err := tbl.IsHot(pc)
		if err != nil {
			t.Fatal(err)
		}
		if hot {
			t.Fatalf("visit %d: IsHot returned true before reaching threshold", i)
		}
	}
	if _, ok, err := tbl.Lookup(pc); err != nil || ok {
		t.Fatalf("Lookup before compile: ok=%v err=%v, want ok=false", ok, err)
	}

	hot, err := tbl.IsHot(pc)
	if err != nil {
		t.Fatal(err)
	}
	if !hot {
		t.Fatalf("4th visit should cross HotCount=4")
	}
	// Still not visible to Lookup until MarkCompiled runs.
	if _, ok, err := tbl.Lookup(pc); err != nil || ok {
		t.Fatalf("Lookup before MarkCompiled: ok=%v err=%v, want ok=false", ok, err)
	}

	if err := tbl.MarkCompiled(pc, 0x4000, 7); err != nil {
		t.Fatal(err)
	}
	offset, ok, err := tbl.Lookup(pc)
	if err != nil || !ok {
		t.Fatalf("Lookup after MarkCompiled: ok=%v err=%v, want ok=true", ok, err)
	}
	if offset != 0x4000 {
		t.Fatalf("offset = %#x, want 0x4000", offset)
	}
}

func TestHotCountSaturates(t *testing.T) {
	tbl, err := New(Config{N: 64, MaxProbe: 8, HotCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	const pc = 42
	for i := 0; i < 10; i++ {
		if _, err := tbl.IsHot(pc); err != nil {
			t.Fatal(err)
		}
	}
	e, err := tbl.Entry(pc)
	if err != nil {
		t.Fatal(err)
	}
	if e.Hot != 2 {
		t.Fatalf("Hot = %d, want saturated at 2", e.Hot)
	}
}

func TestProbeLimitExceeded(t *testing.T) {
	// N=4, MaxProbe=2: fill slots 0-2 by colliding on the same hash bucket,
	// then confirm the probe limit trips on a further distinct miss before
	// probing reaches the still-vacant slot 3.
	tbl, err := New(Config{N: 4, MaxProbe: 2, HotCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, pc := range []uint64{4, 8, 12} { // all hash to bucket 0 mod 4
		if _, err := tbl.Entry(pc); err != nil {
			t.Fatalf("Entry(%d) unexpected error: %v", pc, err)
		}
	}
	if _, err := tbl.Entry(16); !errors.Is(err, ErrProbeLimitExceeded) {
		t.Fatalf("Entry(16) = %v, want ErrProbeLimitExceeded", err)
	}
}

func TestEntryCreatesColdSlotOnFirstAccess(t *testing.T) {
	tbl, err := New(Config{N: 64, MaxProbe: 8, HotCount: 4})
	if err != nil {
		t.Fatal(err)
	}
	e, err := tbl.Entry(99)
	if err != nil {
		t.Fatal(err)
	}
	if e.PC != 99 || e.Compiled || e.Hot != 0 {
		t.Fatalf("fresh entry = %+v, want cold uncompiled PC=99", e)
	}
}
