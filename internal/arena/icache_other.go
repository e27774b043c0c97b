//go:build !amd64 && !arm64

package arena

// invalidateICache has no implementation for this architecture and is a
// no-op. pkg/engine does not check the architecture before compiling, so a
// promoted block is still appended here; invoking it then reaches the
// panicking callNative in invoke_unsupported.go. The interpreter-only path
// never calls Append.
func invalidateICache(code []byte) {}
