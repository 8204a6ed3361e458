package backend

import (
	"github.com/Totillity/ojit-sub000/internal/asmx64"
	"github.com/Totillity/ojit-sub000/internal/ir"
	"github.com/Totillity/ojit-sub000/internal/regalloc"
	"github.com/Totillity/ojit-sub000/internal/value"
)

// lowerInstruction emits instr's machine code into a fresh part builder and
// prepends the result to the block's accumulated parts. Disabled
// instructions (dead per the optimizer, or pure values nothing references)
// are skipped entirely: they were never assigned a Loc, so there is nothing
// to emit. Side-effecting instructions are never Disabled by mere lack of
// uses, so a bare call or attribute-store statement still reaches its
// lowering, which emits the work and drops the unwanted result.
// Arithmetic lowering can produce guard jumps alongside plain code, which
// is why this goes through a partBuilder rather than a bare Emitter.
func (s *state) lowerInstruction(instr *ir.Instruction) {
	if instr.Disabled() || instr.Opcode() == ir.OpParameter {
		return
	}
	pb := newPartBuilder()
	switch instr.Opcode() {
	case ir.OpInt:
		s.lowerInt(pb.e, instr)
	case ir.OpAdd:
		s.lowerAdd(pb, instr)
	case ir.OpSub:
		s.lowerSub(pb, instr)
	case ir.OpCmp:
		// A comparison with no assigned location was either dead or already
		// inlined into its CBranch's conditional jump by the terminator
		// emitter; re-emitting it here would duplicate the compare.
		if instr.Loc().Assigned() {
			s.lowerCmp(pb, instr)
		}
	case ir.OpGlobal:
		s.lowerGlobal(pb.e, instr)
	case ir.OpCall:
		s.lowerCall(pb.e, instr)
	case ir.OpNewObject:
		s.lowerNewObject(pb.e, instr)
	case ir.OpGetAttr:
		s.lowerGetAttr(pb.e, instr)
	case ir.OpGetLoc:
		s.lowerGetLoc(pb.e, instr)
	case ir.OpSetLoc:
		s.lowerSetLoc(pb.e, instr)
	}
	s.prependParts(pb.finish())
}

// staticallyInt reports whether instr's result is known at compile time to
// carry the integer tag, making a runtime guard on it redundant: literal
// constants are boxed by construction, and Add/Sub/Cmp results are re-boxed
// by their own lowering after their operands were guarded.
func staticallyInt(instr *ir.Instruction) bool {
	switch instr.Opcode() {
	case ir.OpInt, ir.OpAdd, ir.OpSub, ir.OpCmp:
		return true
	default:
		return false
	}
}

// guardInt emits the tag check spec.md §4.4 requires for an arithmetic
// operand whose producer is not statically an integer: isolate the tag with
// a 48-bit shift, compare against the integer tag, and jump to the
// function's shared guard-failure trampoline on mismatch.
func (s *state) guardInt(pb *partBuilder, operand *ir.Instruction, loc regalloc.Loc) {
	if staticallyInt(operand) {
		return
	}
	e := pb.e
	e.MovLocToReg(scratch1, loc, FramePtr, SlotWidth)
	e.ShrRegImm8(scratch1, value.TagShift)
	e.CmpRegImm32(scratch1, int32(value.TagInt))
	ne := asmx64.CondNE
	pb.jumpToSeg(&ne, s.errorLabel)
	s.usedErrorLabel = true
}

// reboxInt re-boxes reg after a 64-bit add/sub over two boxed integers:
// zero-extend the 32-bit payload (discarding whatever carry/borrow leaked
// into the tag bits) and OR the integer tag back in through scratch2. This
// is the "re-box after each op" choice for spec.md §9's overflow question;
// see DESIGN.md.
func reboxInt(e *asmx64.Emitter, reg regalloc.Reg) {
	e.MovRegReg32(reg, reg)
	e.MovRegImm64(scratch2, uint64(value.Int(0)))
	e.OrRegReg64(reg, scratch2)
}

// lowerInt materializes the instruction's boxed constant into its assigned
// location. A constant with no location was either dead or folded into a
// consumer's immediate operand and emits nothing (emit_int's IS_ASSIGNED
// gate).
func (s *state) lowerInt(e *asmx64.Emitter, instr *ir.Instruction) {
	loc := instr.Loc()
	if !loc.Assigned() {
		return
	}
	s.freeLoc(loc)
	boxed := uint64(value.Int(instr.Constant()))
	_, reg := s.postloadLoc(loc, regalloc.Unassigned)
	e.MovRegImm64(reg, boxed)
	if !loc.IsReg() {
		e.StoreMem(FramePtr, slotOffsetFor(loc), reg)
	}
}

func slotOffsetFor(l regalloc.Loc) int32 {
	return -(l.Slot() + 1) * SlotWidth
}

// lowerAdd lowers a, b -> a+b. When one operand is a known constant it is
// folded into an immediate add on the other operand's register, matching
// the instruction-selection shortcut spec.md §4.4 calls out; otherwise both
// operands are materialized and added via whichever register already holds
// the result location to avoid an extra move. Non-constant operands get a
// tag guard ahead of the op.
func (s *state) lowerAdd(pb *partBuilder, instr *ir.Instruction) {
	thisLoc := instr.Loc()
	if !thisLoc.Assigned() {
		return
	}
	s.freeLoc(thisLoc)

	a, b := instr.A(), instr.B()
	if a.Opcode() == ir.OpInt || b.Opcode() == ir.OpInt {
		var other *ir.Instruction
		var constant int32
		if a.Opcode() == ir.OpInt {
			other, constant = b, a.Constant()
		} else {
			other, constant = a, b.Constant()
		}
		otherLoc := s.instrAssignLoc(other, thisLoc)
		s.guardInt(pb, other, otherLoc)
		e := pb.e
		_, reg := s.postloadLoc(thisLoc, regalloc.Unassigned)
		e.MovLoc(regalloc.InReg(reg), otherLoc, scratch1, FramePtr, SlotWidth)
		e.AddRegImm64(reg, constant)
		reboxInt(e, reg)
		if !thisLoc.IsReg() {
			e.StoreMem(FramePtr, slotOffsetFor(thisLoc), reg)
		}
		return
	}

	aLoc := s.instrAssignLoc(a, thisLoc)
	bLoc := s.instrAssignLoc(b, thisLoc)
	s.guardInt(pb, a, aLoc)
	s.guardInt(pb, b, bLoc)
	e := pb.e
	_, reg := s.postloadLoc(thisLoc, regalloc.Unassigned)
	e.MovLoc(regalloc.InReg(reg), aLoc, scratch1, FramePtr, SlotWidth)
	e.AddLoc(regalloc.InReg(reg), bLoc, FramePtr, scratch1, SlotWidth)
	reboxInt(e, reg)
	if !thisLoc.IsReg() {
		e.StoreMem(FramePtr, slotOffsetFor(thisLoc), reg)
	}
}

// lowerSub lowers a, b -> a-b. The immediate fold only applies when the
// subtrahend (b) is the constant: subtraction is not commutative, so a
// constant minuend goes through the general path instead (see DESIGN.md on
// the original's fold-either-side bug).
func (s *state) lowerSub(pb *partBuilder, instr *ir.Instruction) {
	thisLoc := instr.Loc()
	if !thisLoc.Assigned() {
		return
	}
	s.freeLoc(thisLoc)

	a, b := instr.A(), instr.B()
	if b.Opcode() == ir.OpInt && a.Opcode() != ir.OpInt {
		aLoc := s.instrAssignLoc(a, thisLoc)
		s.guardInt(pb, a, aLoc)
		e := pb.e
		_, reg := s.postloadLoc(thisLoc, regalloc.Unassigned)
		e.MovLoc(regalloc.InReg(reg), aLoc, scratch1, FramePtr, SlotWidth)
		e.SubRegImm64(reg, b.Constant())
		reboxInt(e, reg)
		if !thisLoc.IsReg() {
			e.StoreMem(FramePtr, slotOffsetFor(thisLoc), reg)
		}
		return
	}

	aLoc := s.instrAssignLoc(a, thisLoc)
	bLoc := s.instrAssignLoc(b, thisLoc)
	s.guardInt(pb, a, aLoc)
	s.guardInt(pb, b, bLoc)
	e := pb.e
	_, reg := s.postloadLoc(thisLoc, regalloc.Unassigned)
	e.MovLoc(regalloc.InReg(reg), aLoc, scratch1, FramePtr, SlotWidth)
	e.SubLoc(regalloc.InReg(reg), bLoc, FramePtr, scratch1, SlotWidth)
	reboxInt(e, reg)
	if !thisLoc.IsReg() {
		e.StoreMem(FramePtr, slotOffsetFor(thisLoc), reg)
	}
}

// lowerCmp emits a 32-bit `cmp` over the operands' integer payloads; the
// flags it leaves are consumed by a following setcc (when the comparison's
// boolean value is used directly) or by the terminator emitter's
// conditional jumps (when it feeds a CBranch directly, the common case,
// handled as an optimization in terminator.go). A constant right operand is
// folded into the immediate form, so `x < 10` compares against 10 directly
// with no materialized constant.
func (s *state) lowerCmp(pb *partBuilder, instr *ir.Instruction) {
	thisLoc := instr.Loc()
	if thisLoc.Assigned() {
		s.freeLoc(thisLoc)
	}
	a, b := instr.A(), instr.B()

	if b.Opcode() == ir.OpInt && a.Opcode() != ir.OpInt {
		aLoc := s.instrAssignLoc(a, regalloc.Unassigned)
		s.guardInt(pb, a, aLoc)
		e := pb.e
		reg := loadLoc(e, aLoc, scratch1)
		e.CmpRegImm32(reg, b.Constant())
	} else {
		aLoc := s.instrAssignLoc(a, regalloc.Unassigned)
		bLoc := s.instrAssignLoc(b, regalloc.Unassigned)
		s.guardInt(pb, a, aLoc)
		s.guardInt(pb, b, bLoc)
		pb.e.CmpLocs32(aLoc, bLoc, FramePtr, scratch1, SlotWidth)
	}

	if thisLoc.Assigned() {
		cond := cmpKindToCond(instr.CmpKind())
		e := pb.e
		_, reg := s.postloadLoc(thisLoc, regalloc.Unassigned)
		e.SetCC(cond, reg)
		reboxInt(e, reg)
		if !thisLoc.IsReg() {
			e.StoreMem(FramePtr, slotOffsetFor(thisLoc), reg)
		}
	}
}

func cmpKindToCond(k ir.CmpKind) asmx64.Cond {
	switch k {
	case ir.CmpLess:
		return asmx64.CondL
	case ir.CmpGreater:
		return asmx64.CondG
	case ir.CmpEqual:
		return asmx64.CondE
	case ir.CmpNotEqual:
		return asmx64.CondNE
	case ir.CmpLessEq:
		return asmx64.CondLE
	case ir.CmpGreaterEq:
		return asmx64.CondGE
	default:
		return asmx64.CondE
	}
}

// saveCallerSaved emits pushes/pops around a runtime call for every
// caller-saved register currently holding a live value, so the call can
// clobber RAX/RCX/RDX/R8-R11 freely; shadow space is reserved/released with
// a plain `sub rsp, 32` / `add rsp, 32` pair per the Windows x64 ABI
// (spec.md §6).
func (s *state) saveCallerSaved(e *asmx64.Emitter) []regalloc.Reg {
	var saved []regalloc.Reg
	for _, r := range regalloc.CallerSavedPool {
		if s.used[r] {
			saved = append(saved, r)
		}
	}
	for _, r := range saved {
		e.PushReg64(r)
	}
	e.SubRegImm64(regalloc.NoReg, 32)
	return saved
}

func (s *state) restoreCallerSaved(e *asmx64.Emitter, saved []regalloc.Reg) {
	e.AddRegImm64(regalloc.NoReg, 32)
	for i := len(saved) - 1; i >= 0; i-- {
		e.PopReg64(saved[i])
	}
}

func (s *state) lowerGlobal(e *asmx64.Emitter, instr *ir.Instruction) {
	thisLoc := instr.Loc()
	if thisLoc.Assigned() {
		s.freeLoc(thisLoc)
	} else if !instr.HasEffect() {
		return
	}

	saved := s.saveCallerSaved(e)
	e.MovRegImm64(regalloc.RCX, s.rt.JITContext)
	e.MovRegImm64(regalloc.RDX, uint64(instr.Name()))
	e.MovRegImm64(regalloc.RAX, s.rt.ResolveGlobal)
	e.CallReg64(regalloc.RAX)
	s.restoreCallerSaved(e, saved)

	s.storeCallResult(e, thisLoc)
}

// storeCallResult moves a runtime call's RAX result into the instruction's
// demanded location. A call emitted only for its side effects has no
// location, and the result is simply dropped.
func (s *state) storeCallResult(e *asmx64.Emitter, thisLoc regalloc.Loc) {
	if !thisLoc.Assigned() {
		return
	}
	_, reg := s.postloadLoc(thisLoc, regalloc.InReg(regalloc.RAX))
	e.MovRegReg64(reg, regalloc.RAX)
	if !thisLoc.IsReg() {
		e.StoreMem(FramePtr, slotOffsetFor(thisLoc), reg)
	}
}

// lowerCall lowers an indirect call with up to 4 arguments through the
// Windows x64 integer argument registers (spec.md §6).
//
// The callee's location and each argument's location were assigned for
// whatever instruction produced them, independent of the fixed ABI slots
// (RCX/RDX/R8/R9) this call must land them in, so the straightforward "mov
// each argument into its slot" sequence can clobber a still-unread operand:
// the callee might itself sit in RCX, or one argument's location might be
// another argument's destination register. The callee is therefore staged
// in scratch2 (never assigned to a value, so the argument moves can't touch
// it) before any argument is moved, and the argument moves themselves go
// through the parallel-move resolver (the same cycle-safe mov/xchg sequence
// spec.md §4.5 uses for branch arguments) instead of a naive sequential
// loop, so two arguments that would otherwise clobber each other's
// destination get an xchg instead.
func (s *state) lowerCall(e *asmx64.Emitter, instr *ir.Instruction) {
	thisLoc := instr.Loc()
	if thisLoc.Assigned() {
		s.freeLoc(thisLoc)
	} else if !instr.HasEffect() {
		return
	}

	calleeLoc := s.instrAssignLoc(instr.A(), regalloc.Unassigned)
	var argLocs []regalloc.Loc
	for _, arg := range instr.Args() {
		argLocs = append(argLocs, s.instrAssignLoc(arg, regalloc.Unassigned))
	}

	saved := s.saveCallerSaved(e)
	e.MovLoc(regalloc.InReg(scratch2), calleeLoc, scratch1, FramePtr, SlotWidth)

	from := make([]regalloc.Loc, len(argLocs))
	to := make([]regalloc.Loc, len(argLocs))
	for i, argLoc := range argLocs {
		from[i] = argLoc
		to[i] = regalloc.InReg(regalloc.ParamRegs[i])
	}
	s.mapRegisters(e, from, to)

	e.CallReg64(scratch2)
	s.restoreCallerSaved(e, saved)

	s.storeCallResult(e, thisLoc)
}

func (s *state) lowerNewObject(e *asmx64.Emitter, instr *ir.Instruction) {
	thisLoc := instr.Loc()
	if thisLoc.Assigned() {
		s.freeLoc(thisLoc)
	} else if !instr.HasEffect() {
		return
	}

	saved := s.saveCallerSaved(e)
	e.MovRegImm64(regalloc.RCX, s.rt.MemContext)
	e.MovRegImm64(regalloc.RAX, s.rt.NewHashTable)
	e.CallReg64(regalloc.RAX)
	s.restoreCallerSaved(e, saved)

	s.storeCallResult(e, thisLoc)
}

// lowerGetAttr resolves obj.name to the address of the table slot backing
// that attribute (allocating the slot on first access), via the runtime
// hash-table lookup. The result is a location *handle*, not a value: a
// following OpGetLoc/OpSetLoc dereferences it.
func (s *state) lowerGetAttr(e *asmx64.Emitter, instr *ir.Instruction) {
	thisLoc := instr.Loc()
	if !thisLoc.Assigned() {
		return
	}
	s.freeLoc(thisLoc)

	objLoc := s.instrAssignLoc(instr.A(), regalloc.InReg(regalloc.RCX))

	saved := s.saveCallerSaved(e)
	e.MovLoc(regalloc.InReg(regalloc.RCX), objLoc, scratch1, FramePtr, SlotWidth)
	e.MovRegImm64(regalloc.RDX, uint64(instr.Name()))
	e.MovRegImm64(regalloc.RAX, s.rt.HashTableGet)
	e.CallReg64(regalloc.RAX)
	s.restoreCallerSaved(e, saved)

	s.storeCallResult(e, thisLoc)
}

// lowerGetLoc dereferences a location handle: the value at the address
// instr.A() resolved to. The handle is a read operand and must actually be
// materialized into a register before it can be used as an addressing base.
func (s *state) lowerGetLoc(e *asmx64.Emitter, instr *ir.Instruction) {
	thisLoc := instr.Loc()
	if !thisLoc.Assigned() {
		return
	}
	s.freeLoc(thisLoc)
	locLoc := s.instrAssignLoc(instr.A(), thisLoc)
	addrReg := loadLoc(e, locLoc, scratch2)
	_, reg := s.postloadLoc(thisLoc, regalloc.Unassigned)
	e.LoadMem(reg, addrReg, 0)
	if !thisLoc.IsReg() {
		e.StoreMem(FramePtr, slotOffsetFor(thisLoc), reg)
	}
}

// lowerSetLoc writes instr.B() through the location handle instr.A().
// Both operands are reads; each goes through its own scratch register when
// spilled so neither load clobbers the other.
func (s *state) lowerSetLoc(e *asmx64.Emitter, instr *ir.Instruction) {
	thisLoc := instr.Loc()
	if thisLoc.Assigned() {
		s.freeLoc(thisLoc)
	}
	locLoc := s.instrAssignLoc(instr.A(), regalloc.Unassigned)
	valLoc := s.instrAssignLoc(instr.B(), regalloc.Unassigned)
	addrReg := loadLoc(e, locLoc, scratch1)
	valReg := loadLoc(e, valLoc, scratch2)
	e.StoreMem(addrReg, 0, valReg)
}
