//go:build amd64 || arm64

package arena

import "unsafe"

// callNative is implemented in invoke_<arch>.s for every architecture that
// has a native back-end. Architectures without an assembly trampoline fall
// back to invoke_unsupported.go, whose callNative panics; pkg/engine does
// not gate compilation by architecture.
func callNative(entry uintptr, state unsafe.Pointer)
