package backend

import (
	"github.com/Totillity/ojit-sub000/internal/asmx64"
	"github.com/Totillity/ojit-sub000/internal/ir"
	"github.com/Totillity/ojit-sub000/internal/regalloc"
)

// lowerTerminator emits blk's terminator. It runs before any of the block's
// ordinary instructions are visited (the backwards pass processes the
// terminator first), so every value it demands a Loc for is seen by the
// allocator before the instructions that produce them.
func (s *state) lowerTerminator(blk *ir.Block) {
	term := blk.Terminator()
	switch term.Kind() {
	case ir.TermReturn:
		e := asmx64.NewEmitter()
		s.lowerReturn(e, term)
		s.prependCode(e.Bytes())
	case ir.TermBranch:
		s.lowerBranch(term)
	case ir.TermCBranch:
		s.lowerCBranch(term)
	}
}

// lowerReturn moves the return value into RAX, tears down the frame
// (spec.md §6's prologue/epilogue: `mov rsp, rbp; pop rbp`), and returns.
func (s *state) lowerReturn(e *asmx64.Emitter, term *ir.Terminator) {
	valLoc := s.instrAssignLoc(term.ReturnValue(), regalloc.InReg(regalloc.RAX))
	e.MovLoc(regalloc.InReg(regalloc.RAX), valLoc, scratch1, FramePtr, SlotWidth)
	e.MovRegReg64(regalloc.NoReg, regalloc.SpilledReg) // mov rsp, rbp
	e.PopReg64(regalloc.SpilledReg)
	e.Ret()
}

// lowerBranch lowers an unconditional branch: resolve the target's
// parameters, then jump.
func (s *state) lowerBranch(term *ir.Terminator) {
	pb := newPartBuilder()
	target := term.BranchTarget()
	s.resolveBranch(pb.e, target, term.BranchArgs())
	pb.jump(nil, target)
	s.prependParts(pb.finish())
}

// lowerCBranch lowers the two-way branch as: materialize the condition
// (a bare cmp/test, or a full comparison if the condition value is also
// used elsewhere); resolve the false target's parameters; a conditional
// jump to the false target; resolve the true target's parameters; a
// conditional jump to the true target. Both targets' parameter resolution
// runs unconditionally ahead of whichever jump actually fires — safe here
// since moves never touch condition flags — which avoids needing a
// separate trampoline block for either side (spec.md §4.5).
func (s *state) lowerCBranch(term *ir.Terminator) {
	pb := newPartBuilder()
	cond := term.Cond()

	var trueCond, falseCond asmx64.Cond
	if cond.Opcode() == ir.OpCmp && !cond.Loc().Assigned() {
		s.lowerCmp(pb, cond)
		trueCond = cmpKindToCond(cond.CmpKind())
		falseCond = trueCond.Invert()
	} else {
		// Truthiness of a boxed value is "payload non-zero": shifting the
		// tag bits out leaves the 48-bit payload, so a boxed integer zero
		// tests false while any non-null pointer tests true. Testing the
		// raw 64-bit word would never see zero, since the tag bits of a
		// properly boxed integer are always set.
		condLoc := s.instrAssignLoc(cond, regalloc.Unassigned)
		reg := loadLoc(pb.e, condLoc, scratch1)
		pb.e.MovRegReg64(scratch2, reg)
		pb.e.ShlRegImm8(scratch2, 16)
		pb.e.TestRegReg64(scratch2, scratch2)
		trueCond = asmx64.CondNE
		falseCond = asmx64.CondE
	}

	s.resolveBranch(pb.e, term.FalseTarget(), nil)
	fc := falseCond
	pb.jump(&fc, term.FalseTarget())
	s.resolveBranch(pb.e, term.TrueTarget(), nil)
	tc := trueCond
	pb.jump(&tc, term.TrueTarget())

	s.prependParts(pb.finish())
}

// resolveBranch computes, for every live parameter of target, the argument
// value the current block supplies, then runs the parallel-move resolver
// to get every argument into its parameter's entry location — handling the
// case where two parameters would otherwise clobber each other (e.g. a
// loop's `a, b = b, a`) via xchg instead of a naive sequence of movs
// (spec.md §4.5).
func (s *state) resolveBranch(e *asmx64.Emitter, target *ir.Block, args []*ir.Instruction) {
	n := target.NumParams()
	if n == 0 {
		return
	}
	from := make([]regalloc.Loc, 0, n)
	to := make([]regalloc.Loc, 0, n)

	it := target.Instructions()
	for i := 0; i < n; i++ {
		param := it.Next()
		if param == nil || param.Disabled() {
			continue
		}
		arg := s.branchArgumentFor(param, args, i)
		if arg == nil {
			continue
		}
		argLoc := s.instrAssignLoc(arg, param.EntryLoc())
		paramLoc := param.EntryLoc()
		if !paramLoc.Assigned() {
			paramLoc = s.pickParamLoc(argLoc, to)
			param.SetEntryLoc(paramLoc)
		}
		from = append(from, argLoc)
		to = append(to, paramLoc)
	}
	s.mapRegisters(e, from, to)
}

// branchArgumentFor returns the value supplied for param across this edge:
// the positional Branch argument at index when args is non-nil, or (for a
// CBranch, which carries no argument list) whatever value param's name is
// currently bound to in the block being lowered — the cross-block variable
// map the builder maintains for exactly this purpose (spec.md §4.2).
func (s *state) branchArgumentFor(param *ir.Instruction, args []*ir.Instruction, index int) *ir.Instruction {
	if args != nil {
		if index < len(args) {
			return args[index]
		}
		return nil
	}
	if !param.HasName() || s.currentBlock == nil {
		return nil
	}
	if v, ok := s.currentBlock.GetVariable(param.Name()); ok {
		return v
	}
	return nil
}

// pickParamLoc chooses a fresh location for a parameter whose argument's
// natural location collides with one already claimed by an earlier
// parameter of the same target, preferring caller-saved registers in the
// fixed allocation order before falling back to a stack slot.
func (s *state) pickParamLoc(argLoc regalloc.Loc, claimed []regalloc.Loc) regalloc.Loc {
	collides := false
	for _, c := range claimed {
		if c.Equal(argLoc) {
			collides = true
			break
		}
	}
	if !collides {
		return argLoc
	}
	for _, r := range regalloc.CallerSavedPool {
		candidate := regalloc.InReg(r)
		free := true
		for _, c := range claimed {
			if c.Equal(candidate) {
				free = false
				break
			}
		}
		if free {
			return candidate
		}
	}
	return regalloc.OnStack(s.allocSlot())
}

// mapRegisters is the parallel-move resolver: given parallel from/to lists
// (row i means "move from[i] into to[i]", all logically simultaneous), it
// emits a sequence of movs and xchgs that achieves the same effect with
// ordinary sequential instructions, breaking cycles with an xchg exactly
// where a plain mov would clobber a value still needed by an earlier row
// (spec.md §4.5). Walking from the last row backwards and following the
// rename chain (the `moves_from`/`moves_to` bookkeeping below) is what lets
// a single xchg stand in for what would otherwise be a 3-instruction swap
// sequence.
func (s *state) mapRegisters(e *asmx64.Emitter, from, to []regalloc.Loc) {
	rows := len(from)
	if rows == 0 {
		return
	}
	movesFrom := make([]*regalloc.Loc, rows)
	movesTo := make([]*regalloc.Loc, rows)

	for i := rows - 1; i >= 0; i-- {
		mustXchg := false
		for k := i - 1; k >= 0; k-- {
			if to[k].Equal(from[i]) {
				mustXchg = true
				break
			}
		}
		locInto := to[i]
		for k := rows - 1; k >= 0; k-- {
			if movesFrom[k] != nil && locInto.Equal(*movesFrom[k]) {
				locInto = *movesTo[k]
				movesFrom[k], movesTo[k] = nil, nil
				break
			}
		}
		if mustXchg {
			for k := rows - 1; k >= 0; k-- {
				if movesFrom[k] == nil {
					f, t := from[i], locInto
					movesFrom[k], movesTo[k] = &f, &t
					break
				}
			}
			e.XchgLoc(locInto, from[i], FramePtr, scratch1, SlotWidth)
		} else {
			e.MovLoc(locInto, from[i], scratch1, FramePtr, SlotWidth)
		}
	}
}
