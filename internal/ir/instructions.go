// Package ir implements the per-function intermediate representation: blocks
// with an instruction stream and a single terminator, SSA-style values with
// block-parameter phis, the append-only builder consumed by the parser, and
// the peephole optimizer that runs over a built function before it reaches
// the backend.
//
// Instructions are a flattened sum type (one struct, fields reinterpreted
// per Opcode) rather than a Go interface hierarchy, the same tradeoff the
// SSA IR in this repo's teacher project makes for its own instruction type:
// it keeps every instruction arena-allocable as a fixed-size value and makes
// the optimizer's in-place rewrites (replacing an Add with a folded Int, for
// example) a matter of overwriting fields instead of swapping node types.
package ir

import (
	"fmt"

	"github.com/Totillity/ojit-sub000/internal/intern"
	"github.com/Totillity/ojit-sub000/internal/regalloc"
)

// Opcode identifies the operation an Instruction performs.
type Opcode uint8

const (
	OpInvalid Opcode = iota
	// OpParameter is a block-parameter phi. Name is the optional
	// source-level variable name; EntryLoc communicates the caller-side
	// target location to predecessors once the backend has assigned it.
	OpParameter
	// OpInt is a 32-bit integer constant.
	OpInt
	// OpAdd is a, b: 32-bit integer addition on NaN-boxed integers.
	OpAdd
	// OpSub is a, b: 32-bit integer subtraction on NaN-boxed integers.
	OpSub
	// OpCmp is a, b with a CmpKind: produces a condition consumed by CBranch.
	OpCmp
	// OpGlobal resolves a top-level name to a compiled function pointer via
	// the host callback (the JIT façade).
	OpGlobal
	// OpCall is an indirect call: A is the callee, Args the arguments
	// (arity <= 4).
	OpCall
	// OpNewObject allocates a fresh hash-table object.
	OpNewObject
	// OpGetAttr is A.Name: returns a location handle (address of a table
	// slot) for attribute Name on object A.
	OpGetAttr
	// OpGetLoc reads through a location handle (A).
	OpGetLoc
	// OpSetLoc writes B through a location handle (A).
	OpSetLoc
)

func (op Opcode) String() string {
	switch op {
	case OpParameter:
		return "Parameter"
	case OpInt:
		return "Int"
	case OpAdd:
		return "Add"
	case OpSub:
		return "Sub"
	case OpCmp:
		return "Cmp"
	case OpGlobal:
		return "Global"
	case OpCall:
		return "Call"
	case OpNewObject:
		return "NewObject"
	case OpGetAttr:
		return "GetAttr"
	case OpGetLoc:
		return "GetLoc"
	case OpSetLoc:
		return "SetLoc"
	default:
		return "Invalid"
	}
}

// CmpKind identifies the comparison an OpCmp instruction performs.
type CmpKind uint8

const (
	CmpLess CmpKind = iota
	CmpGreater
	CmpEqual
	CmpNotEqual
	CmpLessEq
	CmpGreaterEq
)

func (k CmpKind) String() string {
	switch k {
	case CmpLess:
		return "<"
	case CmpGreater:
		return ">"
	case CmpEqual:
		return "=="
	case CmpNotEqual:
		return "!="
	case CmpLessEq:
		return "<="
	case CmpGreaterEq:
		return ">="
	default:
		return "?"
	}
}

// Invert returns the negation of k. The backend does not call it: it
// negates the lowered asmx64.Cond instead when it swaps a CBranch's
// true/false targets.
func (k CmpKind) Invert() CmpKind {
	switch k {
	case CmpLess:
		return CmpGreaterEq
	case CmpGreater:
		return CmpLessEq
	case CmpEqual:
		return CmpNotEqual
	case CmpNotEqual:
		return CmpEqual
	case CmpLessEq:
		return CmpGreater
	case CmpGreaterEq:
		return CmpLess
	default:
		return k
	}
}

// Instruction is a single SSA value. Every Instruction carries its kind tag,
// a use-count (Refs), a reference index assigned by the enclosing Block, and
// a backend location (Loc) filled in during lowering.
type Instruction struct {
	opcode Opcode
	block  *Block

	// index is this instruction's position in its Block's instruction
	// stream (also its parameter ordinal, for OpParameter instructions,
	// since parameters are always the block's leading instructions).
	index int

	a, b *Instruction
	args []*Instruction

	name     intern.Symbol
	constant int32
	cmp      CmpKind

	refs     int
	disabled bool

	// hasEffect marks instructions that must be emitted even with zero
	// value-uses: calls, stores through location handles, object
	// allocation, and global resolution all do observable work beyond
	// producing a value, so a bare `f();` or `o.x = 1;` statement whose
	// result nothing reads still has to run. Pure values (Int, Add, Sub,
	// Cmp, ...) leave this false and are elided when unused.
	hasEffect bool

	loc         regalloc.Loc
	entryLoc    regalloc.Loc // OpParameter only
}

// Opcode returns this instruction's operation.
func (i *Instruction) Opcode() Opcode { return i.opcode }

// Block returns the block this instruction was appended to.
func (i *Instruction) Block() *Block { return i.block }

// Index returns the instruction's position within its block's stream.
func (i *Instruction) Index() int { return i.index }

// A returns the first operand (meaning depends on Opcode; see each Op's doc).
func (i *Instruction) A() *Instruction { return i.a }

// B returns the second operand.
func (i *Instruction) B() *Instruction { return i.b }

// Args returns the OpCall argument list.
func (i *Instruction) Args() []*Instruction { return i.args }

// Name returns the interned name (OpParameter's optional var name,
// OpGlobal's or OpGetAttr's name).
func (i *Instruction) Name() intern.Symbol { return i.name }

// HasName reports whether Name is meaningful (non-zero Symbol).
func (i *Instruction) HasName() bool { return i.name != 0 }

// Constant returns the OpInt constant.
func (i *Instruction) Constant() int32 { return i.constant }

// SetConstant overwrites the OpInt constant; used by the optimizer to fold
// an instruction in place into a new Int value without reallocating it.
func (i *Instruction) SetConstant(c int32) { i.constant = c }

// CmpKind returns the OpCmp comparison kind.
func (i *Instruction) CmpKind() CmpKind { return i.cmp }

// Refs returns the current use-count.
func (i *Instruction) Refs() int { return i.refs }

// AddRef increments the use-count; called by the builder each time this
// instruction is used as an operand.
func (i *Instruction) AddRef() { i.refs++ }

// DecRef decrements the use-count; called by the optimizer when it displaces
// an operand (e.g. constant-folding an Add consumes its Int operands).
func (i *Instruction) DecRef() {
	i.refs--
}

// Disabled reports whether the emitter should skip this instruction: either
// it was explicitly disabled by the optimizer, or it has zero uses and no
// side effect that would make dropping it observable.
func (i *Instruction) Disabled() bool {
	return i.disabled || (i.refs <= 0 && !i.hasEffect)
}

// HasEffect reports whether this instruction does observable work beyond
// producing its value; the backend emits such instructions even when their
// result location was never demanded by a consumer.
func (i *Instruction) HasEffect() bool { return i.hasEffect }

// Disable marks the instruction dead; the emitter will not give it a Loc and
// will skip emitting its bytes.
func (i *Instruction) Disable() { i.disabled = true }

// Loc returns the machine location assigned to this instruction's result
// during backend lowering. Before lowering it is regalloc.Unassigned.
func (i *Instruction) Loc() regalloc.Loc { return i.loc }

// SetLoc assigns this instruction's result location. Per spec.md's
// invariants a value's Loc is assigned at most once; callers must check
// Loc().Assigned() before calling SetLoc.
func (i *Instruction) SetLoc(l regalloc.Loc) { i.loc = l }

// EntryLoc returns the caller-side target location communicated to
// predecessors for an OpParameter instruction.
func (i *Instruction) EntryLoc() regalloc.Loc { return i.entryLoc }

// SetEntryLoc assigns the OpParameter entry location.
func (i *Instruction) SetEntryLoc(l regalloc.Loc) { i.entryLoc = l }

func (i *Instruction) String() string {
	switch i.opcode {
	case OpParameter:
		return fmt.Sprintf("Parameter#%d", i.index)
	case OpInt:
		return fmt.Sprintf("Int(%d)", i.constant)
	case OpAdd:
		return fmt.Sprintf("Add(%s, %s)", i.a, i.b)
	case OpSub:
		return fmt.Sprintf("Sub(%s, %s)", i.a, i.b)
	case OpCmp:
		return fmt.Sprintf("Cmp(%s %s %s)", i.a, i.cmp, i.b)
	case OpGlobal:
		return "Global"
	case OpCall:
		return fmt.Sprintf("Call(%s, %d args)", i.a, len(i.args))
	case OpNewObject:
		return "NewObject"
	case OpGetAttr:
		return fmt.Sprintf("GetAttr(%s)", i.a)
	case OpGetLoc:
		return fmt.Sprintf("GetLoc(%s)", i.a)
	case OpSetLoc:
		return fmt.Sprintf("SetLoc(%s, %s)", i.a, i.b)
	default:
		return "?"
	}
}
