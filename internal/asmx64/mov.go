package asmx64

import "github.com/Totillity/ojit-sub000/internal/regalloc"

// MovRegReg64 encodes `mov dst, src` (64-bit, register to register).
func (e *Emitter) MovRegReg64(dst, src regalloc.Reg) {
	e.emit(rex(1, extBit(src), 0, extBit(dst)), 0x89, modrm(0b11, src.Low3(), dst.Low3()))
}

// MovRegReg32 encodes the 32-bit form; per the NaN-boxed value model this is
// only used where the caller knows the upper 32 bits don't matter (and
// relies on the implicit zero-extension the 32-bit form gives on amd64).
func (e *Emitter) MovRegReg32(dst, src regalloc.Reg) {
	if extBit(src)|extBit(dst) != 0 {
		e.emit(rex(0, extBit(src), 0, extBit(dst)))
	}
	e.emit(0x89, modrm(0b11, src.Low3(), dst.Low3()))
}

// MovRegImm32 encodes `mov dst, imm32`, zero-extending into the full 64-bit
// register (the one-instruction idiom for loading a small non-negative
// constant without touching the REX.W path).
func (e *Emitter) MovRegImm32(dst regalloc.Reg, imm uint32) {
	if extBit(dst) != 0 {
		e.emit(rex(0, 0, 0, extBit(dst)))
	}
	b := le32(imm)
	e.emit(0xB8+dst.Low3(), b[0], b[1], b[2], b[3])
}

// MovRegImm64 encodes a 64-bit register load, picking the shortest
// equivalent form: `xor r, r` for zero, the 32-bit zero-extending form for
// any non-negative value that fits in 32 bits, and the full 10-byte
// mov-immediate form otherwise.
func (e *Emitter) MovRegImm64(dst regalloc.Reg, imm uint64) {
	switch {
	case imm == 0:
		e.XorRegReg32(dst, dst)
	case imm <= 0xFFFFFFFF:
		e.MovRegImm32(dst, uint32(imm))
	default:
		e.emit(rex(1, 0, 0, extBit(dst)), 0xB8+dst.Low3())
		b := le64(imm)
		e.emit(b[:]...)
	}
}

// LoadMem encodes `mov dst, [base+offset]` (64-bit).
func (e *Emitter) LoadMem(dst, base regalloc.Reg, offset int32) {
	e.emit(rex(1, extBit(dst), 0, extBit(base)), 0x8B)
	e.memOperand(dst, base, offset)
}

// StoreMem encodes `mov [base+offset], src` (64-bit).
func (e *Emitter) StoreMem(base regalloc.Reg, offset int32, src regalloc.Reg) {
	e.emit(rex(1, extBit(src), 0, extBit(base)), 0x89)
	e.memOperand(src, base, offset)
}

// memOperand appends the ModRM (+ SIB if base is RSP-numbered) and
// displacement bytes for `[base+offset]` with reg as the non-memory operand,
// picking the disp8 form when offset fits and disp32 otherwise. base must
// never be NoReg/SpilledReg's literal RSP/RBP-with-mod=00 special cases
// since those slots are never used as addressing bases by this backend
// (stack-relative addressing always goes through a dedicated frame-pointer
// register passed explicitly by the caller).
func (e *Emitter) memOperand(reg, base regalloc.Reg, offset int32) {
	e.memOperandExt(reg.Low3(), base, offset)
}

// memOperandExt is memOperand generalized to take a raw 3-bit ModRM.reg
// field, for opcode-extension forms (e.g. CALL /2, SHR /5) where that field
// selects the operation rather than naming a register.
func (e *Emitter) memOperandExt(regField byte, base regalloc.Reg, offset int32) {
	mod := byte(0b01)
	if !fitsInt8(offset) {
		mod = 0b10
	}
	e.emit(modrm(mod, regField, base.Low3()))
	if base.Low3() == 0b100 {
		// SIB byte required: rm=100 otherwise selects the SIB-addressing
		// escape; base,base encodes "no index, scale 1".
		e.emit((0b100 << 3) | base.Low3())
	}
	if mod == 0b01 {
		e.emit(byte(int8(offset)))
	} else {
		b := le32(uint32(offset))
		e.emit(b[:]...)
	}
}

// MovLocToReg loads src (a register or stack slot, via frame pointer fp at
// slotWidth bytes per slot) into dst, emitting the copy even when src is
// already a register — the tag guard wants its own clobberable copy of the
// operand to shift.
func (e *Emitter) MovLocToReg(dst regalloc.Reg, src regalloc.Loc, fp regalloc.Reg, slotWidth int32) {
	if src.IsReg() {
		e.MovRegReg64(dst, src.Reg())
		return
	}
	e.LoadMem(dst, fp, -(src.Slot() + 1) * slotWidth)
}

// MovLoc encodes a location-to-location move, materializing through scratch
// when both sides are stack slots (a direct memory-to-memory mov does not
// exist on x86-64).
func (e *Emitter) MovLoc(dst, src regalloc.Loc, scratch, fp regalloc.Reg, slotWidth int32) {
	switch {
	case dst.Equal(src):
		return
	case dst.IsReg() && src.IsReg():
		e.MovRegReg64(dst.Reg(), src.Reg())
	case dst.IsReg():
		e.LoadMem(dst.Reg(), fp, -(src.Slot()+1)*slotWidth)
	case src.IsReg():
		e.StoreMem(fp, -(dst.Slot()+1)*slotWidth, src.Reg())
	default:
		e.LoadMem(scratch, fp, -(src.Slot()+1)*slotWidth)
		e.StoreMem(fp, -(dst.Slot()+1)*slotWidth, scratch)
	}
}
