// Package unsafehelpers centralises the Code Arena's unavoidable usage of
// the `unsafe` standard-library package so the rest of rvjit stays clean
// and easier to audit: every direct offset/pointer computation over the
// arena's mmap'd region goes through here.
//
// This package started as a direct copy of the teacher repo's
// unsafehelpers, which additionally offered zero-copy string/[]byte
// conversions and an arbitrary-pointer-to-slice view, grounded in
// arena-cache's map shards being keyed by generic []byte/string keys. rvjit
// has no such keys — the Directory is keyed by a uint64 guest PC, and the
// Code Arena already exposes its memory as an ordinary, bounds-checked
// []byte — so those conversions had no caller anywhere in this tree and
// were dropped rather than kept unused; what remains is exactly what
// internal/arena's bump allocator needs.
//
// © 2025 rvjit authors. MIT License.
package unsafehelpers

// AlignUp rounds x up to the nearest multiple of align (which must be a power
// of two). Used by the Code Arena to page-align every block it appends.
func AlignUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}

// IsPowerOfTwo returns true if x is a power of two (exactly one bit set).
// Used by the Code Arena to validate the host's page size at construction.
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && (x&(x-1)) == 0
}
