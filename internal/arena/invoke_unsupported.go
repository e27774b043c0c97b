//go:build !amd64 && !arm64

package arena

import "unsafe"

// callNative has no assembly trampoline on this architecture and panics.
// pkg/engine does not check the architecture before asking the back-end to
// compile, so on this architecture any block that becomes hot ends here.
func callNative(entry uintptr, state unsafe.Pointer) {
	panic("arena: native invocation unsupported on this architecture")
}
