//go:build windows

package jit

import (
	"testing"
	"unsafe"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Totillity/ojit-sub000/internal/intern"
	"github.com/Totillity/ojit-sub000/internal/ir"
	"github.com/Totillity/ojit-sub000/internal/value"
)

// buildReturnSum builds `def f() { return 1 + 2; }` directly against the
// IR builder, bypassing the parser (spec.md §8's first testable property).
func buildReturnSum(symbols *intern.Table) *ir.Function {
	fn := ir.NewFunction(symbols.Intern("f"))
	b := ir.NewBuilder(fn)
	entry := b.AddBlock()
	b.EnterBlock(entry)
	one := b.Int(1)
	two := b.Int(2)
	sum := b.Add(one, two)
	b.Return(sum)
	return fn
}

// buildReturnComparison builds `def f() { return 2 == 2; }`, materializing
// an OpCmp's boolean result as a returned value rather than feeding it
// straight into a CBranch — the path that exercises setcc reading the
// comparison's own flags rather than a CBranch's inlined jump.
func buildReturnComparison(symbols *intern.Table) *ir.Function {
	fn := ir.NewFunction(symbols.Intern("f"))
	b := ir.NewBuilder(fn)
	entry := b.AddBlock()
	b.EnterBlock(entry)
	eq := b.Cmp(ir.CmpEqual, b.Int(2), b.Int(2))
	b.Return(eq)
	return fn
}

func TestGetCompiledFunctionComparisonAsValue(t *testing.T) {
	symbols := intern.NewTable()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	f := New(symbols, log, true)
	f.Register("f", buildReturnComparison(symbols))

	cf, err := f.GetCompiledFunction("f")
	require.NoError(t, err)

	var call func() uint64
	*(*uintptr)(unsafe.Pointer(&call)) = cf.Entry
	result := value.Boxed(call())
	require.Equal(t, int32(1), result.AsInt(), "2 == 2 must evaluate true (1), not a constant left over from setcc's own zeroing")
}

func TestGetCompiledFunction(t *testing.T) {
	symbols := intern.NewTable()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	f := New(symbols, log, true)
	f.Register("f", buildReturnSum(symbols))

	cf, err := f.GetCompiledFunction("f")
	require.NoError(t, err)
	require.NotZero(t, cf.Entry)

	var call func() uint64
	*(*uintptr)(unsafe.Pointer(&call)) = cf.Entry
	result := value.Boxed(call())
	require.Equal(t, int32(3), result.AsInt())

	// A second request must hit the cache, not recompile.
	cf2, err := f.GetCompiledFunction("f")
	require.NoError(t, err)
	require.Same(t, cf, cf2)
}
