// Package backend lowers an optimized internal/ir.Function to x86-64 machine
// code using a single backwards pass per block: the block's terminator and
// then its instructions are visited from last to first, so that by the time
// an instruction is reached every one of its consumers has already demanded
// a location for it. Each instruction's machine code is assembled in normal
// left-to-right byte order and then prepended to the block's running code
// buffer, which reproduces the same net effect as the original compiler's
// decrementing-pointer writer without needing one: processing order is
// reversed, byte order within each instruction is not.
package backend

import (
	"github.com/Totillity/ojit-sub000/internal/ir"
	"github.com/Totillity/ojit-sub000/internal/regalloc"
)

// SlotWidth is the byte width of one stack slot (a full 64-bit NaN-boxed
// value), used to convert a Loc's logical slot index into an RBP-relative
// byte offset.
const SlotWidth = 8

// FramePtr is the register the backend addresses spilled locations through.
// It is RBP: the prologue the stitcher prepends to every function sets up a
// standard frame (push rbp; mov rbp, rsp), matching spec.md §6's ABI.
const FramePtr = regalloc.SpilledReg

// scratch1/scratch2 are the two registers carved out of the numbering
// specifically as encoder scratch (spec.md §4.4); the backend never assigns
// them to a value, only uses them transiently inside a single instruction's
// lowering.
const (
	scratch1 = regalloc.Tmp1
	scratch2 = regalloc.Tmp2
)

// Runtime bundles the raw, already-ABI-compatible function pointers the
// emitted code calls out to for operations with no cheap inline encoding:
// resolving a Global, allocating a NewObject, and reading through a
// GetAttr location. internal/jit constructs these (typically via a
// platform callback trampoline) and passes them in per compilation.
type Runtime struct {
	ResolveGlobal uint64 // (jitCtx uint64, name uint32) -> uint64, Windows x64 ABI
	JITContext    uint64
	NewHashTable  uint64 // (memCtx uint64) -> uint64
	MemContext    uint64
	HashTableGet  uint64 // (table uint64, name uint32) -> uint64 (slot address)
	JITError      uint64 // (code uint32) -> uint64 (error sentinel returned to the caller)
}

// ErrCodeTypeTag is the guard-failure code passed to Runtime.JITError when
// an arithmetic operand's tag check fails at run time (spec.md §7's runtime
// guard error class).
const ErrCodeTypeTag uint32 = 1

// state is the per-block assembler state: which registers are currently
// marked in-use, how many stack slots have been handed out, and the code
// accumulated so far for the block being lowered.
type state struct {
	fn   *ir.Function
	rt   Runtime
	used [16]bool
	// numSlots is the count of distinct stack slots allocated in this
	// function so far; slots are never reused across blocks (spec.md §9's
	// "may stack slots be reused" open question — see DESIGN.md).
	numSlots int32

	// parts accumulates the block currently being lowered, in final
	// forward order, built up by prepending as the backwards instruction
	// walk proceeds.
	parts []blockPart

	// currentBlock is the block currently being lowered; resolveBranch
	// consults its variable map to find each argument flowing across an
	// edge (spec.md §4.2: the IR never materializes branch arguments as a
	// separate list for CBranch, only for Branch).
	currentBlock *ir.Block

	// errorLabel anchors the function's shared guard-failure trampoline;
	// every tag guard's jne targets it. The trampoline itself is only
	// appended to the chain when usedErrorLabel reports at least one guard
	// was emitted, so a guard-free function carries no trailing dead code.
	errorLabel     *segment
	usedErrorLabel bool
}

func newState(fn *ir.Function, rt Runtime) *state {
	s := &state{fn: fn, rt: rt}
	s.resetBlock()
	return s
}

// reservedRegs marks the registers that are never available to the
// allocator: the NO_REG/SPILLED_REG sentinels, the two encoder scratch
// registers, and the callee-saved registers (spec.md §4.4's "Initial
// marking").
func (s *state) reservedRegs() {
	s.used[regalloc.RBX] = true
	s.used[regalloc.NoReg] = true
	s.used[regalloc.SpilledReg] = true
	s.used[regalloc.RSI] = true
	s.used[regalloc.RDI] = true
	s.used[scratch1] = true
	s.used[scratch2] = true
	s.used[regalloc.R14] = true
	s.used[regalloc.R15] = true
}

// resetBlock clears the per-block part list and restores register marking
// to its initial state: spec.md §4.4 marks the reserved set at block start
// and leaves the caller-saved pool free, so a value live only within one
// block never keeps its register pinned for the rest of the function.
// Stack slot allocation (numSlots) is function-wide and is not reset here
// (spec.md §9's "may stack slots be reused" open question — see DESIGN.md).
func (s *state) resetBlock() {
	s.parts = nil
	s.used = [16]bool{}
	s.reservedRegs()
}

func (s *state) markReg(r regalloc.Reg) {
	s.used[r] = true
}

func (s *state) unmarkReg(r regalloc.Reg) {
	s.used[r] = false
}

func (s *state) markLoc(l regalloc.Loc) {
	if l.IsReg() {
		s.markReg(l.Reg())
	}
}

func (s *state) unmarkLoc(l regalloc.Loc) {
	if l.IsReg() {
		s.unmarkReg(l.Reg())
	}
}

func (s *state) locMarked(l regalloc.Loc) bool {
	return l.IsReg() && s.used[l.Reg()]
}

// getUnused returns a free general-purpose register from the allocator's
// pool, in the fixed preference order spec.md §4.4 names, or NoReg if none
// remain (the caller then spills to a fresh stack slot).
func (s *state) getUnused() regalloc.Reg {
	for _, r := range regalloc.CallerSavedPool {
		if !s.used[r] {
			return r
		}
	}
	return regalloc.NoReg
}

func (s *state) allocSlot() int32 {
	slot := s.numSlots
	s.numSlots++
	return slot
}

// prependParts inserts newParts (in the order given) ahead of everything
// emitted for this block so far: the backwards traversal visits later
// instructions first, so each new chunk belongs earlier in the final,
// forward-ordered block.
func (s *state) prependParts(newParts []blockPart) {
	s.parts = append(append([]blockPart{}, newParts...), s.parts...)
}

// prependCode is prependParts for the common case of a single instruction
// that produces no jumps.
func (s *state) prependCode(b []byte) {
	s.prependParts([]blockPart{{kind: partCode, code: b}})
}
