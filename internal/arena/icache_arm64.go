//go:build arm64

package arena

import "unsafe"

// arm64 cache line size assumed by the invalidation loop below. Real CPUs
// report this via CTR_EL0; 64 bytes covers every mainstream core currently
// targeted and only affects how many redundant DC/IC ops are issued, never
// correctness (issuing them more often than strictly needed is harmless).
const cacheLineSize = 64

// invalidateICache cleans the data cache and invalidates the instruction
// cache for the given range, then issues the barrier sequence required
// before the core is guaranteed to fetch the freshly written bytes. This is
// the Go-assembly equivalent of the C reference's
// `__builtin___clear_cache`, required per spec.md §4.1 because aarch64 does
// not keep I$ and D$ coherent for self-modifying code.
func invalidateICache(code []byte) {
	if len(code) == 0 {
		return
	}
	base := uintptr(unsafe.Pointer(&code[0]))
	end := base + uintptr(len(code))
	for addr := base &^ (cacheLineSize - 1); addr < end; addr += cacheLineSize {
		cleanAndInvalidateLine(addr)
	}
	icacheBarrier()
}

// cleanAndInvalidateLine and icacheBarrier are implemented in icache_arm64.s.
func cleanAndInvalidateLine(addr uintptr)
func icacheBarrier()
