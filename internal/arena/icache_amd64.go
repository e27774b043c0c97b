//go:build amd64

package arena

// invalidateICache is a no-op on amd64: x86-64 maintains coherency between
// the data and instruction cache automatically (per spec.md §4.1's
// rationale, invalidation is only required on architectures where the two
// are not coherent for freshly written code).
func invalidateICache(code []byte) {}
