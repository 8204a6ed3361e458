// Package asmx64 is a forward-emitting x86-64 byte encoder for the small
// instruction subset the backend needs: register-register and
// register-memory moves, the arithmetic/compare family, shifts, push/pop,
// call/ret, and short+long dual-form jumps. It has no notion of labels or
// relocations — internal/backend owns the segment chain and asks for a
// concrete displacement each time it encodes a jump; see stitch.go there for
// how a placeholder displacement gets relaxed into a final one.
//
// Every method appends to the Emitter's own buffer and returns nothing; read
// it back with Bytes. The encoding here mirrors the REX/ModRM construction
// the original baseline compiler's emitter uses, just built front-to-back
// instead of the original's backwards byte-pushing.
package asmx64

import "github.com/Totillity/ojit-sub000/internal/regalloc"

// Emitter accumulates encoded machine code.
type Emitter struct {
	buf []byte
}

// NewEmitter returns an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Bytes returns the bytes encoded so far.
func (e *Emitter) Bytes() []byte { return e.buf }

// Len returns the number of bytes encoded so far.
func (e *Emitter) Len() int { return len(e.buf) }

func (e *Emitter) emit(b ...byte) {
	e.buf = append(e.buf, b...)
}

// rex builds a REX prefix byte from the w, r, x and b bits (the caller
// passes 1 or 0 for each). It always returns a byte, 0x40 when all four
// bits are clear; whether to emit it is up to the caller.
func rex(w, r, x, b byte) byte {
	return 0x40 | (w << 3) | (r << 2) | (x << 1) | b
}

func extBit(reg regalloc.Reg) byte {
	if reg.IsExtended() {
		return 1
	}
	return 0
}

func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 0b111) << 3) | (rm & 0b111)
}

func le32(v uint32) [4]byte {
	return [4]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func le64(v uint64) [8]byte {
	return [8]byte{
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
	}
}

// fitsInt8 reports whether v is representable as a sign-extended 8-bit
// immediate, the encoder's trigger for the shorter 0x83-style immediate
// forms.
func fitsInt8(v int32) bool {
	return v >= -128 && v <= 127
}
