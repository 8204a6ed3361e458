package regalloc

import "fmt"

// Loc is a machine location: either a register or a stack-frame slot index.
// It is the Go rendering of spec.md's VLoc — a small, value-sized tagged
// union, not a pointer-heavy structure, so it can be copied freely the way
// the backend copies it in and out of Instruction.loc and a parameter's
// entry location.
type Loc struct {
	reg      Reg
	slot     int32
	isStack  bool
	assigned bool
}

// Unassigned is the zero Loc: no register, no slot. Reads are forbidden
// before a Loc has been assigned; Assigned reports whether that has
// happened yet.
var Unassigned = Loc{}

// InReg constructs a Loc pinned to register r.
func InReg(r Reg) Loc {
	return Loc{reg: r, assigned: true}
}

// OnStack constructs a Loc referring to frame slot index i (an index into
// the per-function stack-slot array, not a byte offset; the encoder
// multiplies by the slot width when emitting RBP-relative addressing).
func OnStack(i int32) Loc {
	return Loc{reg: SpilledReg, slot: i, isStack: true, assigned: true}
}

// Assigned reports whether this Loc has been given a concrete register or
// stack slot, i.e. it is not the Unassigned sentinel.
func (l Loc) Assigned() bool {
	return l.assigned
}

// IsReg reports whether l names a register (and if so, which one via Reg()).
func (l Loc) IsReg() bool {
	return l.Assigned() && !l.isStack
}

// IsStack reports whether l names a stack slot.
func (l Loc) IsStack() bool {
	return l.isStack
}

// Reg returns the register this Loc names. Only valid when IsReg is true.
func (l Loc) Reg() Reg {
	return l.reg
}

// Slot returns the stack-slot index this Loc names. Only valid when IsStack
// is true.
func (l Loc) Slot() int32 {
	return l.slot
}

// Equal reports whether two Locs name the same location.
func (l Loc) Equal(o Loc) bool {
	return l == o
}

func (l Loc) String() string {
	switch {
	case !l.Assigned():
		return "<unassigned>"
	case l.isStack:
		return fmt.Sprintf("stack[%d]", l.slot)
	default:
		return l.reg.String()
	}
}
