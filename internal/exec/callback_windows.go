//go:build windows

package exec

import "syscall"

// NewCallback turns a Go function into a raw, stdcall-ABI-compatible
// pointer the emitted code can call directly — the mechanism
// internal/jit uses to hand backend.Runtime's ResolveGlobal/NewHashTable/
// HashTableGet fields a real address instead of a C function, since this
// module has no cgo layer of its own.
func NewCallback(fn interface{}) uintptr {
	return syscall.NewCallback(fn)
}
