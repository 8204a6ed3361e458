package asmx64

import "github.com/Totillity/ojit-sub000/internal/regalloc"

// locOp is the family of two-operand ALU ops expressible over arbitrary
// Loc/Loc pairs by picking among the four reg/reg, reg/mem, mem/reg, mem/mem
// forms, materializing through the Tmp1 scratch register for the mem/mem
// case exactly as the original emitter's asm_emit_add/sub/cmp do.
type locOp struct {
	regReg func(e *Emitter, dst, src regalloc.Reg)
	// regMem: dst is a register, src lives at [fp+off]
	regMem func(e *Emitter, dst, fp regalloc.Reg, off int32)
	// memReg: dst lives at [fp+off], src is a register
	memReg func(e *Emitter, fp regalloc.Reg, off int32, src regalloc.Reg)
}

func slotOffset(slot int32, slotWidth int32) int32 {
	return -(slot + 1) * slotWidth
}

func (op locOp) apply(e *Emitter, dst, src regalloc.Loc, fp, scratch regalloc.Reg, slotWidth int32) {
	switch {
	case dst.IsReg() && src.IsReg():
		op.regReg(e, dst.Reg(), src.Reg())
	case dst.IsReg():
		op.regMem(e, dst.Reg(), fp, slotOffset(src.Slot(), slotWidth))
	case src.IsReg():
		op.memReg(e, fp, slotOffset(dst.Slot(), slotWidth), src.Reg())
	default:
		e.LoadMem(scratch, fp, slotOffset(src.Slot(), slotWidth))
		op.memReg(e, fp, slotOffset(dst.Slot(), slotWidth), scratch)
	}
}

func addLocOp() locOp {
	return locOp{
		regReg: func(e *Emitter, dst, src regalloc.Reg) { e.AddRegReg64(dst, src) },
		regMem: func(e *Emitter, dst, fp regalloc.Reg, off int32) {
			e.emit(rex(1, extBit(dst), 0, extBit(fp)), 0x03)
			e.memOperand(dst, fp, off)
		},
		memReg: func(e *Emitter, fp regalloc.Reg, off int32, src regalloc.Reg) {
			e.emit(rex(1, extBit(src), 0, extBit(fp)), 0x01)
			e.memOperand(src, fp, off)
		},
	}
}

func subLocOp() locOp {
	return locOp{
		regReg: func(e *Emitter, dst, src regalloc.Reg) { e.SubRegReg64(dst, src) },
		regMem: func(e *Emitter, dst, fp regalloc.Reg, off int32) {
			e.emit(rex(1, extBit(dst), 0, extBit(fp)), 0x2B)
			e.memOperand(dst, fp, off)
		},
		memReg: func(e *Emitter, fp regalloc.Reg, off int32, src regalloc.Reg) {
			e.emit(rex(1, extBit(src), 0, extBit(fp)), 0x29)
			e.memOperand(src, fp, off)
		},
	}
}

func cmp32LocOp() locOp {
	return locOp{
		regReg: func(e *Emitter, a, b regalloc.Reg) { e.CmpRegReg32(a, b) },
		regMem: func(e *Emitter, a, fp regalloc.Reg, off int32) {
			if extBit(a)|extBit(fp) != 0 {
				e.emit(rex(0, extBit(a), 0, extBit(fp)))
			}
			e.emit(0x3B)
			e.memOperand(a, fp, off)
		},
		memReg: func(e *Emitter, fp regalloc.Reg, off int32, b regalloc.Reg) {
			if extBit(b)|extBit(fp) != 0 {
				e.emit(rex(0, extBit(b), 0, extBit(fp)))
			}
			e.emit(0x39)
			e.memOperand(b, fp, off)
		},
	}
}

// AddLoc encodes `dst += src` over arbitrary register/stack Locs.
func (e *Emitter) AddLoc(dst, src regalloc.Loc, fp, scratch regalloc.Reg, slotWidth int32) {
	addLocOp().apply(e, dst, src, fp, scratch, slotWidth)
}

// SubLoc encodes `dst -= src` over arbitrary register/stack Locs.
func (e *Emitter) SubLoc(dst, src regalloc.Loc, fp, scratch regalloc.Reg, slotWidth int32) {
	subLocOp().apply(e, dst, src, fp, scratch, slotWidth)
}

// CmpLocs32 encodes the 32-bit `cmp a, b` over arbitrary register/stack
// Locs, comparing only the integer payloads of two boxed values so that
// signed orderings come out right.
func (e *Emitter) CmpLocs32(a, b regalloc.Loc, fp, scratch regalloc.Reg, slotWidth int32) {
	cmp32LocOp().apply(e, a, b, fp, scratch, slotWidth)
}

// XchgLoc encodes an exchange between two arbitrary register/stack Locs,
// materializing through scratch for the stack/stack case (there is no
// memory/memory xchg form), matching asm_emit_xchg's four-way dispatch.
//
// The stack/stack case's three steps must run load, then xchg, then store:
// scratch has to hold src's value before the xchg hands dst's old value to
// src's slot, and dst's slot needs that xchg before src's slot is
// overwritten with it. asm_emit_xchg's own three calls (emit_x64.h:446-448)
// are ordered store/xchg/load in the source text, but that original writer
// emits backwards (a decrementing pointer, per this package's own doc
// comment), so its last call lands first in the final byte stream — store,
// xchg, load in the call list is load, xchg, store once actually executed.
// This package's Emitter builds forward, so the call order has to be that
// execution order directly, not a literal copy of the original's call list.
func (e *Emitter) XchgLoc(dst, src regalloc.Loc, fp, scratch regalloc.Reg, slotWidth int32) {
	switch {
	case dst.IsReg() && src.IsReg():
		e.XchgRegReg64(dst.Reg(), src.Reg())
	case dst.IsReg():
		e.xchgRegMem(dst.Reg(), fp, slotOffset(src.Slot(), slotWidth))
	case src.IsReg():
		e.xchgRegMem(src.Reg(), fp, slotOffset(dst.Slot(), slotWidth))
	default:
		e.LoadMem(scratch, fp, slotOffset(src.Slot(), slotWidth))
		e.xchgRegMem(scratch, fp, slotOffset(dst.Slot(), slotWidth))
		e.StoreMem(fp, slotOffset(src.Slot(), slotWidth), scratch)
	}
}

func (e *Emitter) xchgRegMem(reg, fp regalloc.Reg, off int32) {
	e.emit(rex(1, extBit(reg), 0, extBit(fp)), 0x87)
	e.memOperand(reg, fp, off)
}

