package asmx64

import "github.com/Totillity/ojit-sub000/internal/regalloc"

// aluOp is the ModRM.reg extension-field value each `r/m64, imm32` ALU
// opcode uses under the shared 0x81/0x83 opcode group, matching the
// original emitter's per-operation constant.
type aluOp byte

const (
	aluAdd aluOp = 0
	aluAnd aluOp = 4
	aluSub aluOp = 5
	aluCmp aluOp = 7
)

// AddRegReg64 encodes `add dst, src`.
func (e *Emitter) AddRegReg64(dst, src regalloc.Reg) {
	e.emit(rex(1, extBit(src), 0, extBit(dst)), 0x01, modrm(0b11, src.Low3(), dst.Low3()))
}

// SubRegReg64 encodes `sub dst, src`.
func (e *Emitter) SubRegReg64(dst, src regalloc.Reg) {
	e.emit(rex(1, extBit(src), 0, extBit(dst)), 0x29, modrm(0b11, src.Low3(), dst.Low3()))
}

// CmpRegReg32 encodes the 32-bit `cmp a, b`, comparing the integer payloads
// of two boxed values with correct signed semantics (the upper tag bits
// would turn a signed comparison of negatives into nonsense in the 64-bit
// form).
func (e *Emitter) CmpRegReg32(a, b regalloc.Reg) {
	if extBit(a)|extBit(b) != 0 {
		e.emit(rex(0, extBit(b), 0, extBit(a)))
	}
	e.emit(0x39, modrm(0b11, b.Low3(), a.Low3()))
}

// OrRegReg64 encodes `or dst, src` (64-bit).
func (e *Emitter) OrRegReg64(dst, src regalloc.Reg) {
	e.emit(rex(1, extBit(src), 0, extBit(dst)), 0x09, modrm(0b11, src.Low3(), dst.Low3()))
}

// XorRegReg32 encodes the 32-bit `xor dst, src` (the zeroing idiom used by
// MovRegImm64; 32-bit xor also zero-extends, clearing the full register).
func (e *Emitter) XorRegReg32(dst, src regalloc.Reg) {
	if extBit(src)|extBit(dst) != 0 {
		e.emit(rex(0, extBit(src), 0, extBit(dst)))
	}
	e.emit(0x31, modrm(0b11, src.Low3(), dst.Low3()))
}

// TestRegReg64 encodes `test a, b`, used to check a NaN-boxed boolean result
// for zero without materializing a separate compare.
func (e *Emitter) TestRegReg64(a, b regalloc.Reg) {
	e.emit(rex(1, extBit(b), 0, extBit(a)), 0x85, modrm(0b11, b.Low3(), a.Low3()))
}

// aluRegImm32 encodes `op dst, imm32` (64-bit), with the 8-bit-immediate
// shortening the original emitter applies whenever imm fits. Add/Sub into
// RAX always take the RAX-only accumulator form with a full imm32 instead
// (one byte shorter than the generic imm32 form, longer than the 8-bit
// form), matching emit_x64.h's add_r64_i32/sub_r64_i32 special cases.
func (e *Emitter) aluRegImm32(op aluOp, dst regalloc.Reg, imm int32) {
	if dst == regalloc.RAX {
		switch op {
		case aluAdd:
			e.emit(rex(1, 0, 0, 0), 0x05)
			b := le32(uint32(imm))
			e.emit(b[:]...)
			return
		case aluSub:
			e.emit(rex(1, 0, 0, 0), 0x2D)
			b := le32(uint32(imm))
			e.emit(b[:]...)
			return
		}
	}
	if fitsInt8(imm) {
		e.emit(rex(1, 0, 0, extBit(dst)), 0x83, modrm(0b11, byte(op), dst.Low3()), byte(int8(imm)))
		return
	}
	e.emit(rex(1, 0, 0, extBit(dst)), 0x81, modrm(0b11, byte(op), dst.Low3()))
	b := le32(uint32(imm))
	e.emit(b[:]...)
}

// AddRegImm64 encodes `add dst, imm32` sign-extended to 64 bits.
func (e *Emitter) AddRegImm64(dst regalloc.Reg, imm int32) { e.aluRegImm32(aluAdd, dst, imm) }

// SubRegImm64 encodes `sub dst, imm32` sign-extended to 64 bits.
func (e *Emitter) SubRegImm64(dst regalloc.Reg, imm int32) { e.aluRegImm32(aluSub, dst, imm) }

// AndRegImm64 encodes `and dst, imm32` sign-extended to 64 bits.
func (e *Emitter) AndRegImm64(dst regalloc.Reg, imm int32) { e.aluRegImm32(aluAnd, dst, imm) }

// CmpRegImm32 encodes the 32-bit form of compare-with-immediate, used after
// a `shr` has isolated a NaN-box tag into the low bits of a register.
func (e *Emitter) CmpRegImm32(dst regalloc.Reg, imm int32) {
	if dst == regalloc.RAX {
		e.emit(0x3D)
		b := le32(uint32(imm))
		e.emit(b[:]...)
		return
	}
	if extBit(dst) != 0 {
		e.emit(rex(0, 0, 0, extBit(dst)))
	}
	if fitsInt8(imm) {
		e.emit(0x83, modrm(0b11, byte(aluCmp), dst.Low3()), byte(int8(imm)))
		return
	}
	e.emit(0x81, modrm(0b11, byte(aluCmp), dst.Low3()))
	b := le32(uint32(imm))
	e.emit(b[:]...)
}

// ShrRegImm8 encodes `shr dst, imm8`.
func (e *Emitter) ShrRegImm8(dst regalloc.Reg, imm uint8) {
	e.emit(rex(1, 0, 0, extBit(dst)), 0xC1, modrm(0b11, 5, dst.Low3()), imm)
}

// ShlRegImm8 encodes `shl dst, imm8`.
func (e *Emitter) ShlRegImm8(dst regalloc.Reg, imm uint8) {
	e.emit(rex(1, 0, 0, extBit(dst)), 0xC1, modrm(0b11, 4, dst.Low3()), imm)
}

// XchgRegReg64 encodes `xchg a, b`, the parallel-move resolver's cycle-break
// primitive (spec.md §4.5).
func (e *Emitter) XchgRegReg64(a, b regalloc.Reg) {
	if a == regalloc.RAX || b == regalloc.RAX {
		other := a
		if a == regalloc.RAX {
			other = b
		}
		e.emit(rex(1, 0, 0, extBit(other)), 0x90+other.Low3())
		return
	}
	e.emit(rex(1, extBit(b), 0, extBit(a)), 0x87, modrm(0b11, b.Low3(), a.Low3()))
}
