// Package symtab implements the small open-addressing hash table used for a
// block's per-block variable map: interned name (intern.Symbol) to whatever
// value the builder is tracking for it (an *ir.Instruction, in practice).
// It is deliberately not Go's builtin map: the IR spec singles this table out
// as a distinct component, mirroring the original implementation's
// hash_table.c. Clone copies a table; the builder does not use it, since
// every new block starts with an empty variable map.
package symtab

import "github.com/Totillity/ojit-sub000/internal/intern"

const minCapacity = 8

type entry[V any] struct {
	key      intern.Symbol
	value    V
	occupied bool
}

// Table maps intern.Symbol to V using linear-probed open addressing.
type Table[V any] struct {
	entries []entry[V]
	count   int
}

// New constructs an empty Table.
func New[V any]() *Table[V] {
	return &Table[V]{entries: make([]entry[V], minCapacity)}
}

// Len returns the number of keys currently stored.
func (t *Table[V]) Len() int { return t.count }

// Get returns the value stored for key and whether it was present.
func (t *Table[V]) Get(key intern.Symbol) (V, bool) {
	idx := t.index(key)
	for {
		e := &t.entries[idx]
		if !e.occupied {
			var zero V
			return zero, false
		}
		if e.key == key {
			return e.value, true
		}
		idx = (idx + 1) % len(t.entries)
	}
}

// Set stores value for key, overwriting any previous value.
func (t *Table[V]) Set(key intern.Symbol, value V) {
	if (t.count+1)*2 > len(t.entries) {
		t.grow()
	}
	idx := t.index(key)
	for {
		e := &t.entries[idx]
		if !e.occupied {
			*e = entry[V]{key: key, value: value, occupied: true}
			t.count++
			return
		}
		if e.key == key {
			e.value = value
			return
		}
		idx = (idx + 1) % len(t.entries)
	}
}

// Clone returns a Table holding the same key/value pairs as t, independent
// of subsequent mutation of either.
func (t *Table[V]) Clone() *Table[V] {
	c := &Table[V]{entries: make([]entry[V], len(t.entries)), count: t.count}
	copy(c.entries, t.entries)
	return c
}

func (t *Table[V]) index(key intern.Symbol) int {
	return int(key) % len(t.entries)
}

func (t *Table[V]) grow() {
	old := t.entries
	t.entries = make([]entry[V], len(old)*2)
	t.count = 0
	for _, e := range old {
		if e.occupied {
			t.Set(e.key, e.value)
		}
	}
}
