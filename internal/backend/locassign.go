package backend

import (
	"github.com/Totillity/ojit-sub000/internal/asmx64"
	"github.com/Totillity/ojit-sub000/internal/ir"
	"github.com/Totillity/ojit-sub000/internal/regalloc"
)

// assignLoc gives an unassigned Loc a concrete home: the suggested location
// if it's free and not the "no register" sentinel, otherwise the next free
// register from the pool, otherwise a fresh stack slot. It is the single
// point of contact with "running out of registers" in the whole backend;
// spilling is never a separate pass, just this fallback.
func (s *state) assignLoc(cur regalloc.Loc, suggested regalloc.Loc) regalloc.Loc {
	if cur.Assigned() {
		return cur
	}
	if suggested.Assigned() && !s.locMarked(suggested) && suggested.IsReg() {
		s.markLoc(suggested)
		return suggested
	}
	if r := s.getUnused(); r != regalloc.NoReg {
		loc := regalloc.InReg(r)
		s.markLoc(loc)
		return loc
	}
	loc := regalloc.OnStack(s.allocSlot())
	s.markLoc(loc)
	return loc
}

// instrAssignLoc is assignLoc specialized for an operand instruction: a
// block parameter with an already-negotiated entry location takes that
// location (if it's still free) ahead of the caller's suggestion, since
// honoring the entry location is what lets the parallel-move resolver at
// the predecessor skip a move entirely.
func (s *state) instrAssignLoc(instr *ir.Instruction, suggested regalloc.Loc) regalloc.Loc {
	if instr.Loc().Assigned() {
		return instr.Loc()
	}
	if instr.Opcode() == ir.OpParameter && instr.EntryLoc().Assigned() && !s.locMarked(instr.EntryLoc()) {
		instr.SetLoc(instr.EntryLoc())
		s.markLoc(instr.Loc())
		return instr.Loc()
	}
	loc := s.assignLoc(regalloc.Unassigned, suggested)
	instr.SetLoc(loc)
	return loc
}

// postloadLoc is assignLoc plus a register to build the result in when the
// location landed on the stack (the first encoder scratch). It is the
// write-side helper: the caller produces the value in the returned
// register and, for a stack location, stores it to the slot afterward. To
// *read* a possibly spilled value, use loadLoc, which emits the frame load.
func (s *state) postloadLoc(loc regalloc.Loc, suggested regalloc.Loc) (regalloc.Loc, regalloc.Reg) {
	loc = s.assignLoc(loc, suggested)
	if loc.IsReg() {
		return loc, loc.Reg()
	}
	return loc, scratch1
}

// loadLoc returns a register holding loc's current value for a read,
// emitting the frame load into scratch when loc is a stack slot. This is
// the read-side counterpart of postloadLoc, which picks a register for a
// value about to be *written*: a read of a spilled value must actually
// materialize it, not just name a scratch register.
func loadLoc(e *asmx64.Emitter, loc regalloc.Loc, scratch regalloc.Reg) regalloc.Reg {
	if loc.IsReg() {
		return loc.Reg()
	}
	e.LoadMem(scratch, FramePtr, slotOffsetFor(loc))
	return scratch
}

// freeLoc unmarks loc's register, if it has one, making it available for a
// later instruction earlier in program order (later in this backwards
// traversal) to reuse.
func (s *state) freeLoc(loc regalloc.Loc) {
	s.unmarkLoc(loc)
}
