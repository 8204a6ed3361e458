// Package exec publishes a finished code buffer from internal/backend into
// a page the CPU is allowed to execute, and turns an already-ABI-compatible
// Go function into a raw pointer the emitted code can call through (the
// callback mechanism internal/jit threads into backend.Runtime).
//
// Machine code never starts writable-and-executable: every platform maps
// the page read-write first, copies the bytes in, then flips it to
// read-execute, mirroring compiler.c's copy_to_executable.
package exec

import "errors"

// CompiledFunction is a published, page-backed copy of a compiled function's code.
// Entry is the address of its first byte, suitable for casting into a
// callable function pointer via reflect/unsafe at the internal/jit layer.
type CompiledFunction struct {
	mem   []byte
	Entry uintptr
}

// Code returns the published bytes, for callers that want to inspect or
// hex-dump them (e.g. cmd/ojit's --dump flag). The backing page is mapped
// read-execute, not write, so the returned slice must not be mutated.
func (x *CompiledFunction) Code() []byte {
	return x.mem
}

// Release unmaps the backing page. Calling it twice, or releasing code that
// was never published, is an error.
func (x *CompiledFunction) Release() error {
	if x.mem == nil {
		return errors.New("exec: already released")
	}
	err := munmapCodeSegment(x.mem)
	x.mem = nil
	x.Entry = 0
	return err
}

// Publish copies code into a fresh executable page and returns a handle to
// it. code must be non-empty.
func Publish(code []byte) (*CompiledFunction, error) {
	if len(code) == 0 {
		panic("exec: Publish with zero length")
	}
	mem, err := mmapCodeSegment(code)
	if err != nil {
		return nil, err
	}
	return &CompiledFunction{mem: mem, Entry: firstByteAddr(mem)}, nil
}
