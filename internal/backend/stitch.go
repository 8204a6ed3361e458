package backend

import "github.com/Totillity/ojit-sub000/internal/asmx64"

// stitch converts a function's segment chain into a single contiguous code
// buffer. It runs two linear passes over the chain (compiler.c's
// stitch_segments): a pessimistic layout pass that assigns every segment an
// offset assuming every jump takes its longest encoding, then a relaxation
// pass that shrinks jumps whose target turns out to be close enough for the
// short (rel8) form, or drops them to zero bytes entirely when the target
// immediately follows. Because offsets only ever shrink from their
// pessimistic maximum, no jump that relaxation marks short can later need to
// grow back to long — the pass is a single monotonic sweep, not a fixpoint
// iteration.
func stitch(first *segment) []byte {
	offset := uint32(0)
	for seg := first; seg != nil; seg = seg.next {
		seg.offsetFromStart = offset
		offset += seg.maxSize
		seg.finalSize = seg.maxSize
	}

	savedSpace := uint32(0)
	for seg := first; seg != nil; seg = seg.next {
		seg.offsetFromStart -= savedSpace
		if seg.kind != segJump {
			continue
		}
		jumpTo := seg.target.offsetFromStart
		if jumpTo > seg.offsetFromStart+seg.maxSize {
			jumpTo -= savedSpace
		}
		jumpDist := int32(jumpTo) - int32(seg.offsetFromStart+seg.maxSize)
		switch {
		case jumpDist == 0:
			seg.finalSize = 0
			savedSpace += seg.maxSize
		case jumpDist >= -128 && jumpDist < 128:
			seg.finalSize = 2
			savedSpace += seg.maxSize - 2
		default:
			seg.finalSize = seg.maxSize
		}
	}

	total := offset - savedSpace
	buf := make([]byte, total)
	for seg := first; seg != nil; seg = seg.next {
		switch seg.kind {
		case segLabel:
			// zero-size anchor, nothing to copy
		case segCode:
			copy(buf[seg.offsetFromStart:], seg.code)
		case segJump:
			writeJump(buf, seg)
		}
	}
	return buf
}

// writeJump materializes seg's relaxed encoding at its final offset. The
// displacement is always measured from the byte immediately following the
// jump instruction to the target's final offset.
func writeJump(buf []byte, seg *segment) {
	if seg.finalSize == 0 {
		return
	}
	dist := int32(seg.target.offsetFromStart) - int32(seg.offsetFromStart+seg.finalSize)
	w := asmx64.NewEmitter()
	if seg.finalSize == 2 {
		if seg.cond != nil {
			w.JccShort(*seg.cond, int8(dist))
		} else {
			w.JmpShort(int8(dist))
		}
	} else {
		if seg.cond != nil {
			w.JccLong(*seg.cond, dist)
		} else {
			w.JmpLong(dist)
		}
	}
	copy(buf[seg.offsetFromStart:], w.Bytes())
}
