package backend

import (
	"github.com/Totillity/ojit-sub000/internal/asmx64"
	"github.com/Totillity/ojit-sub000/internal/ir"
)

// segKind identifies which of the three segment shapes a segment is.
type segKind int

const (
	// segLabel is a zero-size anchor: every block gets one at its entry so
	// jumps targeting it have something stable to resolve against
	// regardless of how the stitcher later shrinks neighboring segments.
	segLabel segKind = iota
	// segCode is a fixed run of already-encoded bytes.
	segCode
	// segJump is a jump whose final form (short or long encoding) is not
	// yet known: it is sized pessimistically at layout time and relaxed
	// once every segment's preceding size is known (see stitch.go).
	segJump
)

// segment is one link in a function's linear code layout. Segments form a
// singly-linked chain in final program order; a jump segment's target
// points at a segLabel segment elsewhere in the same chain (forward or
// backward).
type segment struct {
	kind segKind
	next *segment

	code []byte // segCode

	cond   *asmx64.Cond // segJump; nil means an unconditional jmp
	target *segment     // segJump: the label segment to branch to

	offsetFromStart uint32
	maxSize         uint32
	finalSize       uint32
}

// partKind distinguishes the two kinds of chunk a block's lowering can
// produce before it's known which chain position (and therefore distance)
// a jump will resolve to.
type partKind int

const (
	partCode partKind = iota
	partJump
)

type blockPart struct {
	kind   partKind
	code   []byte
	cond   *asmx64.Cond
	target *ir.Block
	// targetSeg, when non-nil, points the jump at a label segment that has
	// no backing ir.Block — the function's shared guard-failure trampoline.
	// Exactly one of target/targetSeg is set for a partJump.
	targetSeg *segment
}

// partBuilder accumulates a terminator's lowering as an ordered sequence of
// code and jump parts: every call to jump flushes whatever bytes have been
// emitted into the shared Emitter so far into a code part ahead of the jump
// part, then hands the caller a fresh Emitter to keep writing into.
type partBuilder struct {
	e     *asmx64.Emitter
	parts []blockPart
}

func newPartBuilder() *partBuilder {
	return &partBuilder{e: asmx64.NewEmitter()}
}

func (pb *partBuilder) jump(cond *asmx64.Cond, target *ir.Block) {
	pb.parts = append(pb.parts, blockPart{kind: partCode, code: pb.e.Bytes()})
	pb.parts = append(pb.parts, blockPart{kind: partJump, cond: cond, target: target})
	pb.e = asmx64.NewEmitter()
}

// jumpToSeg is jump for a target that is a bare label segment rather than a
// block (the guard-failure trampoline).
func (pb *partBuilder) jumpToSeg(cond *asmx64.Cond, target *segment) {
	pb.parts = append(pb.parts, blockPart{kind: partCode, code: pb.e.Bytes()})
	pb.parts = append(pb.parts, blockPart{kind: partJump, cond: cond, targetSeg: target})
	pb.e = asmx64.NewEmitter()
}

func (pb *partBuilder) finish() []blockPart {
	pb.parts = append(pb.parts, blockPart{kind: partCode, code: pb.e.Bytes()})
	return pb.parts
}
