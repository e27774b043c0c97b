package arena

import "unsafe"

// HostFunc is the calling convention every compiled block and the
// interpreter entry point must honor: one pointer argument (the guest
// machine state), no return value. The callee communicates its outcome by
// mutating the state it was handed (exit_reason, reenter_pc) — see
// pkg/engine for the contract.
//
// This mirrors the invocation shape used by the pack's Go JIT engines
// (e.g. wazero's jit engine calls into native code via a small assembly
// trampoline taking a function address and a context pointer); Invoke here
// is that trampoline, implemented per architecture in invoke_<arch>.s.
type HostFunc func(state unsafe.Pointer)

// Invoke calls the host code living at the given arena offset, passing
// state as its single argument. The code at offset must have been written
// by Append and must honor the HostFunc calling convention.
func (a *Arena) Invoke(offset uint64, state unsafe.Pointer) {
	entry := a.Pointer(offset)
	callNative(entry, state)
}
