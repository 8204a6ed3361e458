package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Totillity/ojit-sub000/internal/asmx64"
)

func chain(segs ...*segment) *segment {
	for i := 0; i < len(segs)-1; i++ {
		segs[i].next = segs[i+1]
	}
	return segs[0]
}

func codeSeg(b []byte) *segment {
	return &segment{kind: segCode, code: b, maxSize: uint32(len(b))}
}

func TestStitchElidesJumpToNextLabel(t *testing.T) {
	lbl := &segment{kind: segLabel}
	jmp := &segment{kind: segJump, target: lbl, maxSize: asmx64.JmpLongLen}

	buf := stitch(chain(jmp, lbl, codeSeg([]byte{0xC3})))
	require.Equal(t, []byte{0xC3}, buf, "a jump to the immediately following label is dropped entirely")
}

func TestStitchShortensJumpAtPositiveBoundary(t *testing.T) {
	// 127 filler bytes between the jump's pessimistic end and its target is
	// the largest forward distance the rel8 form can express.
	lbl := &segment{kind: segLabel}
	jmp := &segment{kind: segJump, target: lbl, maxSize: asmx64.JmpLongLen}
	filler := codeSeg(make([]byte, 127))

	buf := stitch(chain(jmp, filler, lbl, codeSeg([]byte{0xC3})))
	require.Equal(t, byte(0xEB), buf[0], "distance 127 must use the short form")
	require.Equal(t, byte(0x7F), buf[1])
	require.Len(t, buf, 2+127+1)
}

func TestStitchKeepsLongJumpPastPositiveBoundary(t *testing.T) {
	lbl := &segment{kind: segLabel}
	jmp := &segment{kind: segJump, target: lbl, maxSize: asmx64.JmpLongLen}
	filler := codeSeg(make([]byte, 128))

	buf := stitch(chain(jmp, filler, lbl, codeSeg([]byte{0xC3})))
	require.Equal(t, byte(0xE9), buf[0], "distance 128 no longer fits rel8")
	require.Equal(t, []byte{0x80, 0x00, 0x00, 0x00}, buf[1:5])
}

func TestStitchShortensBackwardJumpWithinRange(t *testing.T) {
	lbl := &segment{kind: segLabel}
	filler := codeSeg(make([]byte, 100))
	jmp := &segment{kind: segJump, target: lbl, maxSize: asmx64.JmpLongLen}

	buf := stitch(chain(lbl, filler, jmp))
	require.Equal(t, byte(0xEB), buf[100], "a -105 backward distance fits rel8")
	require.Equal(t, byte(0x9A), buf[101], "displacement is -102 once the jump shrinks to two bytes")
}

func TestStitchConditionalJumpUsesJccEncodings(t *testing.T) {
	ne := asmx64.CondNE
	lbl := &segment{kind: segLabel}
	jcc := &segment{kind: segJump, cond: &ne, target: lbl, maxSize: asmx64.JccLongLen}
	filler := codeSeg(make([]byte, 200))

	buf := stitch(chain(jcc, filler, lbl, codeSeg([]byte{0xC3})))
	require.Equal(t, []byte{0x0F, 0x85}, buf[0:2], "distance 200 keeps the near Jcc form")

	lbl2 := &segment{kind: segLabel}
	jcc2 := &segment{kind: segJump, cond: &ne, target: lbl2, maxSize: asmx64.JccLongLen}
	buf2 := stitch(chain(jcc2, codeSeg(make([]byte, 10)), lbl2, codeSeg([]byte{0xC3})))
	require.Equal(t, byte(0x75), buf2[0], "short distances relax to the rel8 Jcc form")
	require.Equal(t, byte(0x0A), buf2[1])
}

// TestStitchIsIdempotent is spec.md §8's round-trip property: stitching an
// already-stitched chain reproduces identical bytes, because pass 1 always
// re-lays out from maxSize and relaxation re-derives the same final sizes.
func TestStitchIsIdempotent(t *testing.T) {
	build := func() *segment {
		lbl := &segment{kind: segLabel}
		jmp := &segment{kind: segJump, target: lbl, maxSize: asmx64.JmpLongLen}
		return chain(jmp, codeSeg(make([]byte, 40)), lbl, codeSeg([]byte{0xC3}))
	}
	first := build()
	once := stitch(first)
	again := stitch(first)
	require.Equal(t, once, again)
}
