package jit

import (
	"sync"
	"unsafe"

	"github.com/Totillity/ojit-sub000/internal/arena"
	"github.com/Totillity/ojit-sub000/internal/intern"
)

// Object is the runtime representation a `NewObject` IR instruction
// allocates and `GetAttr` indexes into: a small table from attribute name
// to a NaN-boxed value slot, grounded on the original implementation's
// hash_table.c, which backs TableEntry.value with arena (LAList) storage
// specifically so a returned slot address stays valid for the object's
// entire lifetime — a Go map's values are not addressable and a growing
// slice would invalidate addresses handed to emitted code, so the
// compile-time internal/symtab table (which trades address stability for
// open-addressing speed) is the wrong tool here.
type Object struct {
	mu      sync.Mutex
	storage arena.LAList[objectEntry]
	index   map[intern.Symbol]*objectEntry
}

type objectEntry struct {
	key   intern.Symbol
	value uint64
}

// NewObject allocates an empty object.
func NewObject() *Object {
	return &Object{index: make(map[intern.Symbol]*objectEntry)}
}

// SlotAddr returns the address of name's value slot, creating a
// zero-valued one on first access (matching emit_instr.h's emit_get_attr,
// which always succeeds — lookups never fail, they allocate).
func (o *Object) SlotAddr(name intern.Symbol) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.index[name]
	if !ok {
		e = o.storage.Append()
		e.key = name
		o.index[name] = e
	}
	return uint64(uintptr(unsafe.Pointer(&e.value)))
}
