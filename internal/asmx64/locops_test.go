package asmx64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Totillity/ojit-sub000/internal/regalloc"
)

// TestXchgLocStackStackLoadsBeforeStoring guards against reproducing
// asm_emit_xchg's call order literally: that original emits backwards, so
// its source-order store/xchg/load calls land in the buffer as load/xchg/
// store once actually executed, but this package's Emitter builds forward,
// where call order is execution order.
func TestXchgLocStackStackLoadsBeforeStoring(t *testing.T) {
	e := NewEmitter()
	dst := regalloc.OnStack(0)
	src := regalloc.OnStack(1)
	e.XchgLoc(dst, src, regalloc.SpilledReg, regalloc.Tmp1, 8)

	code := e.Bytes()
	require.NotEmpty(t, code)

	loadIdx := indexOfOpcode(code, 0x8B)
	xchgIdx := indexOfOpcode(code, 0x87)
	storeIdx := indexOfOpcode(code, 0x89)

	require.GreaterOrEqual(t, loadIdx, 0, "expected a mov-load (0x8B) into scratch")
	require.GreaterOrEqual(t, xchgIdx, 0, "expected an xchg (0x87) against dst's slot")
	require.GreaterOrEqual(t, storeIdx, 0, "expected a mov-store (0x89) into src's slot")

	require.Less(t, loadIdx, xchgIdx, "scratch must be loaded from src before the xchg touches it")
	require.Less(t, xchgIdx, storeIdx, "dst's old value must reach scratch via xchg before it's stored to src")
}

// indexOfOpcode returns the position of the first byte in code equal to op.
// 0x87/0x89/0x8B never collide with a REX prefix byte (0x40-0x4F), so a
// plain scan is enough to locate the real opcode.
func indexOfOpcode(code []byte, op byte) int {
	for i, b := range code {
		if b == op {
			return i
		}
	}
	return -1
}
