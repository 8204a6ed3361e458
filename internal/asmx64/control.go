package asmx64

import "github.com/Totillity/ojit-sub000/internal/regalloc"

// Cond is an x86-64 condition code, valued so that 0x80|Cond is the second
// opcode byte of the near (Jcc rel32) form and 0x70|Cond is the single
// opcode byte of the short (Jcc rel8) form — the same numbering the
// original emitter's `enum Comparison` uses, which is why Invert there and
// here both just flip bit 0.
type Cond byte

const (
	CondO  Cond = 0x0
	CondNO Cond = 0x1
	CondB  Cond = 0x2 // below / carry
	CondAE Cond = 0x3
	CondE  Cond = 0x4
	CondNE Cond = 0x5
	CondBE Cond = 0x6
	CondA  Cond = 0x7
	CondL  Cond = 0xC
	CondGE Cond = 0xD
	CondLE Cond = 0xE
	CondG  Cond = 0xF
)

// Invert returns the negated condition.
func (c Cond) Invert() Cond { return c ^ 1 }

// PushReg64 encodes `push reg`.
func (e *Emitter) PushReg64(reg regalloc.Reg) {
	if extBit(reg) != 0 {
		e.emit(rex(0, 0, 0, 1))
	}
	e.emit(0x50 + reg.Low3())
}

// PopReg64 encodes `pop reg`.
func (e *Emitter) PopReg64(reg regalloc.Reg) {
	if extBit(reg) != 0 {
		e.emit(rex(0, 0, 0, 1))
	}
	e.emit(0x58 + reg.Low3())
}

// CallReg64 encodes an indirect `call reg`.
func (e *Emitter) CallReg64(reg regalloc.Reg) {
	if extBit(reg) != 0 {
		e.emit(rex(0, 0, 0, 1))
	}
	e.emit(0xFF, modrm(0b11, 2, reg.Low3()))
}

// Ret encodes `ret`.
func (e *Emitter) Ret() {
	e.emit(0xC3)
}

// SetCC encodes `setcc reg8` (the low byte of reg) reading the flags a
// preceding compare left set, then masks off the rest of the register so
// the result is usable as a full NaN-boxed boolean without a separate
// movzx. The mask must come after setcc, not a xor-to-zero before it: xor
// clobbers flags, which would make setcc read the xor's always-zero flags
// instead of the comparison's.
func (e *Emitter) SetCC(cond Cond, reg regalloc.Reg) {
	if extBit(reg) != 0 {
		e.emit(rex(0, 0, 0, extBit(reg)))
	}
	e.emit(0x0F, 0x90|byte(cond), modrm(0b11, 0, reg.Low3()))
	e.AndRegImm64(reg, 0xFF)
}

// JmpShort encodes an unconditional short jump with rel8 displacement disp,
// measured from the byte after this instruction.
func (e *Emitter) JmpShort(disp int8) {
	e.emit(0xEB, byte(disp))
}

// JmpLong encodes an unconditional near jump with rel32 displacement disp.
func (e *Emitter) JmpLong(disp int32) {
	e.emit(0xE9)
	b := le32(uint32(disp))
	e.emit(b[:]...)
}

// JccShort encodes a conditional short jump.
func (e *Emitter) JccShort(cond Cond, disp int8) {
	e.emit(0x70|byte(cond), byte(disp))
}

// JccLong encodes a conditional near jump.
func (e *Emitter) JccLong(cond Cond, disp int32) {
	e.emit(0x0F, 0x80|byte(cond))
	b := le32(uint32(disp))
	e.emit(b[:]...)
}

// JmpShortLen and friends let the stitcher size a jump segment before the
// final displacement is known.
const (
	JmpShortLen = 2
	JmpLongLen  = 5
	JccShortLen = 2
	JccLongLen  = 6
)
