package jit

import (
	"sync"
	"unsafe"

	"github.com/Totillity/ojit-sub000/internal/intern"
	"github.com/Totillity/ojit-sub000/internal/value"
)

// hostRuntime holds the Go-side trampolines backend.Runtime's function
// pointers resolve to. Each method's signature is uintptr-in/uintptr-out
// only, the shape exec.NewCallback (syscall.NewCallback on Windows)
// requires; the emitted code's argument registers (RCX, RDX per
// lower.go's lowerGlobal/lowerNewObject/lowerGetAttr) are what populate
// these parameters.
//
// A method closes over its *Facade directly rather than decoding the
// jitCtx/memCtx argument back into a pointer: there is exactly one façade
// per process, and doing it this way keeps the façade reachable by an
// ordinary Go reference for as long as any compiled code that might call
// back into it is alive, instead of relying on a raw address staying
// valid.
type hostRuntime struct {
	facade *Facade

	mu      sync.Mutex
	objects []*Object // kept alive for the process lifetime; see NewObject
}

// resolveGlobal backs emit_instr.h's emit_global: look up name (an
// interned Symbol smuggled through as a uintptr) and return its compiled
// entry point, compiling on first demand by re-entering the façade.
func (rt *hostRuntime) resolveGlobal(_jitCtx, name uintptr) uintptr {
	sym := intern.Symbol(name)
	cf, err := rt.facade.GetCompiledFunction(rt.facade.symbols.String(sym))
	if err != nil {
		rt.facade.log.WithError(err).WithField("symbol", sym).Error("jit: global resolution failed")
		return 0
	}
	return cf.Entry
}

// newHashTable backs emit_instr.h's emit_new_object: allocate a fresh
// Object and keep it reachable for the rest of the process's life, since
// the only reference to it from here on is the raw address baked into
// emitted code.
func (rt *hostRuntime) newHashTable(_memCtx uintptr) uintptr {
	obj := NewObject()
	rt.mu.Lock()
	rt.objects = append(rt.objects, obj)
	rt.mu.Unlock()
	return uintptr(unsafe.Pointer(obj))
}

// hashTableGet backs emit_instr.h's emit_get_attr: resolve name to the
// address of its value slot within the object at table.
func (rt *hostRuntime) hashTableGet(table, name uintptr) uintptr {
	obj := (*Object)(unsafe.Pointer(table))
	return uintptr(obj.SlotAddr(intern.Symbol(name)))
}

// jitError backs the guard-failure trampoline (compiler.c's
// ojit_jit_error): log the code and hand back the error sentinel, which
// the trampoline returns to the compiled function's caller. Guards surface
// errors this way instead of aborting the process (spec.md §7).
func (rt *hostRuntime) jitError(code uintptr) uintptr {
	rt.facade.log.WithField("code", code).Error("jit: runtime type guard failed")
	return uintptr(value.Error())
}
