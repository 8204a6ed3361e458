// Package intern implements the process-wide string interning table used to
// turn source-level names (variables, object attributes, globals) into a
// small stable handle so that later equality checks and hash-table lookups
// are integer comparisons rather than string comparisons.
package intern

import "sync"

// Symbol is an interned string handle. The zero Symbol is never produced by
// Table.Intern and is reserved to mean "no symbol" (e.g. an unnamed block
// parameter).
type Symbol uint32

// Table interns strings to Symbols. Construct one with NewTable: the zero
// Table has no map and does not reserve Symbol 0, so it is not usable.
//
// Table is safe for concurrent use: the JIT façade's function-name table and
// the per-compilation parser share a single process-wide Table, and
// compilation requests that re-enter through the Global-resolution callback
// (see internal/jit) may run on a caller's goroutine while another
// compilation is in flight.
type Table struct {
	mu      sync.RWMutex
	byName  map[string]Symbol
	strings []string
}

// NewTable constructs an empty interning table.
func NewTable() *Table {
	return &Table{byName: make(map[string]Symbol), strings: []string{""}}
}

// Intern returns the Symbol for name, allocating a fresh one if name hasn't
// been seen before. Equal strings always produce equal Symbols.
func (t *Table) Intern(name string) Symbol {
	t.mu.RLock()
	if s, ok := t.byName[name]; ok {
		t.mu.RUnlock()
		return s
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.byName[name]; ok {
		return s
	}
	s := Symbol(len(t.strings))
	t.strings = append(t.strings, name)
	t.byName[name] = s
	return s
}

// String returns the name a Symbol was interned from. It panics if the
// Symbol did not come from this Table.
func (t *Table) String(s Symbol) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.strings[s]
}
