// Package jit is the external-interface component spec.md §4.8 names: a
// process-wide cache from function name to IR and, lazily, to published
// machine code, plus the host-side trampolines emitted code calls out to
// for Global resolution, object allocation, and attribute lookup
// (spec.md §9's "callbacks for cross-function resolution" note).
package jit

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Totillity/ojit-sub000/internal/backend"
	"github.com/Totillity/ojit-sub000/internal/exec"
	"github.com/Totillity/ojit-sub000/internal/intern"
	"github.com/Totillity/ojit-sub000/internal/ir"
)

type funcEntry struct {
	fn       *ir.Function
	compiled *exec.CompiledFunction
}

// Facade is the JIT façade. The zero value is not usable; construct with
// New.
type Facade struct {
	mu       sync.Mutex
	symbols  *intern.Table
	funcs    map[intern.Symbol]*funcEntry
	optimize bool
	log      *logrus.Logger
	rt       *hostRuntime
}

// New constructs a façade over the given symbol table. optimize controls
// whether Optimize runs on a function before it is first compiled
// (cmd/ojit's `--no-optimize` flag threads through to this).
func New(symbols *intern.Table, log *logrus.Logger, optimize bool) *Facade {
	f := &Facade{
		symbols:  symbols,
		funcs:    make(map[intern.Symbol]*funcEntry),
		optimize: optimize,
		log:      log,
	}
	f.rt = &hostRuntime{facade: f}
	return f
}

// Register adds fn to the façade's function table under name. It does not
// compile fn; compilation is lazy, triggered by GetCompiledFunction or by
// another function's Global reference resolving to name.
func (f *Facade) Register(name string, fn *ir.Function) {
	sym := f.symbols.Intern(name)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funcs[sym] = &funcEntry{fn: fn}
}

// GetCompiledFunction returns name's published machine code, compiling it
// on first demand (spec.md §4.8). Re-entrant: compiling name may itself
// call GetCompiledFunction for another name via the Global callback, which
// is why the lock is released before backend.Compile/exec.Publish run.
func (f *Facade) GetCompiledFunction(name string) (*exec.CompiledFunction, error) {
	sym := f.symbols.Intern(name)

	f.mu.Lock()
	e, ok := f.funcs[sym]
	if !ok {
		f.mu.Unlock()
		return nil, errors.Errorf("jit: unknown function %q", name)
	}
	if e.compiled != nil {
		cf := e.compiled
		f.mu.Unlock()
		f.log.WithField("function", name).Debug("jit: cache hit")
		return cf, nil
	}
	f.mu.Unlock()

	f.log.WithField("function", name).Info("jit: compiling")
	if f.optimize {
		ir.Optimize(e.fn)
	}

	rt := backend.Runtime{
		ResolveGlobal: uint64(exec.NewCallback(f.rt.resolveGlobal)),
		JITContext:    uint64(uintptr(unsafe.Pointer(f))),
		NewHashTable:  uint64(exec.NewCallback(f.rt.newHashTable)),
		MemContext:    0,
		HashTableGet:  uint64(exec.NewCallback(f.rt.hashTableGet)),
		JITError:      uint64(exec.NewCallback(f.rt.jitError)),
	}
	code := backend.Compile(e.fn, rt)

	cf, err := exec.Publish(code)
	if err != nil {
		return nil, errors.Wrapf(err, "jit: publishing %q", name)
	}

	f.mu.Lock()
	e.compiled = cf
	f.mu.Unlock()
	return cf, nil
}
