package ir

// Optimize runs the peephole optimizer over every block of fn, then a
// single backwards dead-parameter-pruning pass over the whole function, per
// spec.md §4.3. It mutates fn's instructions in place; rerunning Optimize on
// an already-optimized function is a no-op (spec.md §8, idempotence).
func Optimize(fn *Function) {
	for it := fn.Blocks(); ; {
		blk := it.Next()
		if blk == nil {
			break
		}
		optimizeBlock(blk)
	}
	pruneDeadParameters(fn)
}

// optimizeBlock applies the local algebraic rewrites to every instruction in
// blk, each run to a fixed point before moving to the next instruction, the
// same iteration order the original peephole pass uses: since later
// instructions reference earlier ones by pointer, rewriting an earlier
// instruction in place is immediately visible to instructions that already
// hold a pointer to it.
func optimizeBlock(blk *Block) {
	for it := blk.Instructions(); ; {
		instr := it.Next()
		if instr == nil {
			break
		}
		for foldOnce(instr) {
		}
	}
}

// foldOnce applies at most one rewrite to instr and reports whether instr
// needs another fold pass (the caller loops until it returns false,
// mirroring the REPEAT_FOLD/CONTINUE_FOLD state machine of the original
// optimizer). Folding Int+Int into a single Int returns false, since no
// rewrite applies to an Int.
func foldOnce(instr *Instruction) bool {
	if instr.opcode != OpAdd {
		return false
	}
	a, b := instr.a, instr.b

	if a.opcode == OpInt && b.opcode == OpInt {
		sum := a.constant + b.constant
		a.DecRef()
		b.DecRef()
		foldToInt(instr, sum)
		return false
	}

	if a.opcode == OpInt && b.opcode == OpAdd && b.refs == 1 {
		return foldCommutative(instr, a, b)
	}
	if b.opcode == OpInt && a.opcode == OpAdd && a.refs == 1 {
		return foldCommutative(instr, b, a)
	}
	return false
}

// foldCommutative rewrites `outerConst + innerAdd` (or the symmetric
// `innerAdd + outerConst`) into `Int(outerConst+innerConst) + val` when
// innerAdd has exactly one of its own operands be a constant and is
// otherwise single-use, matching spec.md's associativity rule. It reports
// whether a rewrite fired (it always requests one more fold pass on instr
// when it does, since the result is itself a fresh Add(Int, x) that may
// combine further).
func foldCommutative(instr *Instruction, outerConst, innerAdd *Instruction) bool {
	var innerConst, val *Instruction
	switch {
	case innerAdd.a.opcode == OpInt:
		innerConst, val = innerAdd.a, innerAdd.b
	case innerAdd.b.opcode == OpInt:
		innerConst, val = innerAdd.b, innerAdd.a
	default:
		return false
	}

	newConst := outerConst.constant + innerConst.constant
	innerAdd.DecRef()
	innerConst.DecRef()
	foldToInt(outerConst, newConst)
	instr.opcode = OpAdd
	instr.a, instr.b = outerConst, val
	return true
}

func foldToInt(instr *Instruction, constant int32) {
	instr.opcode = OpInt
	instr.a, instr.b = nil, nil
	instr.constant = constant
}

// pruneDeadParameters walks every block backwards, and for each branch
// terminator decrements the use-count of any branch argument whose target
// parameter has zero references. This can only be done after all blocks
// have been visited at least once in program order since a later block's
// pruning can make an earlier argument value dead in turn (spec.md §4.3).
//
// The pass itself does not special-case side-effecting argument
// expressions; a Call passed as a branch argument to a now-dead parameter
// has its ref-count decremented like any other value. Dropping the last
// reference still cannot elide it, though: Disabled() keeps instructions
// with observable effects alive regardless of their count, so pruning only
// ever discards the value, never the work (see DESIGN.md's open-question
// notes).
func pruneDeadParameters(fn *Function) {
	for it := fn.BlocksReverse(); ; {
		blk := it.Next()
		if blk == nil {
			break
		}
		switch blk.term.kind {
		case TermBranch:
			pruneBranchParams(blk.term.branchTarget, blk.term.args)
		case TermCBranch:
			// CBranch carries no positional arguments (spec.md §3); nothing
			// to prune here.
		}
	}
}

func pruneBranchParams(target *Block, args []*Instruction) {
	i := 0
	for it := target.Instructions(); i < len(args); i++ {
		param := it.Next()
		if param == nil || param.opcode != OpParameter {
			break
		}
		if param.Disabled() && args[i] != nil {
			args[i].DecRef()
			args[i] = nil
		}
	}
}
