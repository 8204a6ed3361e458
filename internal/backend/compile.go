package backend

import (
	"github.com/Totillity/ojit-sub000/internal/asmx64"
	"github.com/Totillity/ojit-sub000/internal/ir"
	"github.com/Totillity/ojit-sub000/internal/regalloc"
)

// Compile lowers fn (already optimized by the caller) to a contiguous
// buffer of x86-64 machine code under the Windows x64 calling convention,
// ready to be copied to an executable page by internal/exec.
//
// The pipeline is: bind entry-block parameters to their ABI registers, then
// lower every block's terminator and instructions (each block independently,
// terminator first, instructions in reverse — spec.md §4.4), recording each
// block's output as a segment chain, then stitch the chains into one buffer
// with jump relaxation (compiler.c's ojit_compile_function/stitch_segments).
func Compile(fn *ir.Function, rt Runtime) []byte {
	assignFunctionParameters(fn)

	s := newState(fn, rt)
	s.errorLabel = &segment{kind: segLabel}

	labels := make(map[int]*segment, fn.NumBlocks())
	for it := fn.Blocks(); ; {
		blk := it.Next()
		if blk == nil {
			break
		}
		lbl := &segment{kind: segLabel}
		labels[blk.ID()] = lbl
		blk.Segment = lbl
	}

	// prologueSeg anchors the chain; its code is filled in once s.numSlots is
	// known, after every block has been lowered. Each block's label is
	// spliced in immediately before that block's own code, not chained up
	// front — a jump's target has to sit at the position where its block's
	// code actually starts.
	prologueSeg := &segment{kind: segCode}
	tail := prologueSeg
	for it := fn.Blocks(); ; {
		blk := it.Next()
		if blk == nil {
			break
		}
		s.resetBlock()
		s.currentBlock = blk
		s.lowerTerminator(blk)
		for ri := blk.InstructionsReverse(); ; {
			instr := ri.Next()
			if instr == nil {
				break
			}
			if instr.Opcode() == ir.OpParameter {
				continue
			}
			s.lowerInstruction(instr)
		}

		label := labels[blk.ID()]
		tail.next = label
		tail = label
		for _, part := range s.parts {
			var seg *segment
			switch part.kind {
			case partCode:
				if len(part.code) == 0 {
					continue
				}
				seg = &segment{kind: segCode, code: part.code, maxSize: uint32(len(part.code))}
			case partJump:
				tgt := part.targetSeg
				if tgt == nil {
					tgt = labels[part.target.ID()]
				}
				seg = &segment{kind: segJump, cond: part.cond, target: tgt}
				if part.cond != nil {
					seg.maxSize = asmx64.JccLongLen
				} else {
					seg.maxSize = asmx64.JmpLongLen
				}
			}
			tail.next = seg
			tail = seg
		}
	}

	// The guard-failure trampoline sits once per function, after every
	// block (compiler.c chains errs_label/err_return_label after the last
	// block label the same way): report the failure to the host, then
	// return its error sentinel through the normal epilogue. Skipped
	// entirely when no guard was emitted.
	if s.usedErrorLabel {
		tail.next = s.errorLabel
		tail = s.errorLabel
		te := asmx64.NewEmitter()
		te.MovRegImm32(regalloc.RCX, uint32(ErrCodeTypeTag))
		te.MovRegImm64(regalloc.RAX, s.rt.JITError)
		te.SubRegImm64(regalloc.NoReg, 32)
		te.CallReg64(regalloc.RAX)
		te.MovRegReg64(regalloc.NoReg, regalloc.SpilledReg) // mov rsp, rbp
		te.PopReg64(regalloc.SpilledReg)
		te.Ret()
		tramp := &segment{kind: segCode, code: te.Bytes(), maxSize: uint32(te.Len())}
		tail.next = tramp
		tail = tramp
	}

	prologue := buildPrologue(s.numSlots)
	prologueSeg.code = prologue
	prologueSeg.maxSize = uint32(len(prologue))

	return stitch(prologueSeg)
}

// assignFunctionParameters binds the entry block's leading OpParameter
// instructions to the Windows x64 integer argument registers, in order
// (compiler.c's assign_function_parameters). Parameters beyond the fourth
// have no ABI register to land in (this backend never passes arguments on
// the stack); internal/parser rejects a function definition with more than
// four parameters before it ever reaches here.
func assignFunctionParameters(fn *ir.Function) {
	entry := fn.Entry()
	if entry == nil {
		return
	}
	it := entry.Instructions()
	for paramNum := 0; paramNum < entry.NumParams(); paramNum++ {
		param := it.Next()
		if param == nil {
			break
		}
		// paramNum tracks this parameter's ABI argument-register slot, which
		// is purely positional (spec.md §6) and must advance even for an
		// unused parameter — only the SetEntryLoc call itself is skippable,
		// since a disabled parameter never gets read back by anything.
		if param.Disabled() {
			continue
		}
		if paramNum < len(regalloc.ParamRegs) {
			param.SetEntryLoc(regalloc.InReg(regalloc.ParamRegs[paramNum]))
		}
	}
}

// buildPrologue emits the standard frame setup (push rbp; mov rbp, rsp) and
// reserves stack space for every spill slot the function ended up using
// (spec.md §6). The slot count is only known once every block has been
// lowered, so the prologue is assembled last and linked in as the segment
// chain's head.
func buildPrologue(numSlots int32) []byte {
	e := asmx64.NewEmitter()
	e.PushReg64(regalloc.SpilledReg)
	e.MovRegReg64(regalloc.SpilledReg, regalloc.NoReg) // mov rbp, rsp
	if numSlots > 0 {
		e.SubRegImm64(regalloc.NoReg, numSlots*SlotWidth)
	}
	return e.Bytes()
}
