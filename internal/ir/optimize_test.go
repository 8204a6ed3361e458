package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Totillity/ojit-sub000/internal/intern"
)

func TestOptimizeFoldsConstantAdd(t *testing.T) {
	symbols := intern.NewTable()
	fn := NewFunction(symbols.Intern("f"))
	b := NewBuilder(fn)
	entry := b.AddBlock()
	b.EnterBlock(entry)
	sum := b.Add(b.Int(1), b.Int(2))
	b.Return(sum)

	Optimize(fn)

	require.Equal(t, OpInt, sum.Opcode())
	require.Equal(t, int32(3), sum.Constant())
}

func TestOptimizeFoldsAssociativeChain(t *testing.T) {
	symbols := intern.NewTable()
	fn := NewFunction(symbols.Intern("f"))
	b := NewBuilder(fn)
	entry := b.AddBlock()
	b.EnterBlock(entry)
	x := b.AddParameter(symbols.Intern("x"))
	// (x + 1) + 2 should fold to 3 + x.
	inner := b.Add(x, b.Int(1))
	outer := b.Add(inner, b.Int(2))
	b.Return(outer)

	Optimize(fn)

	require.Equal(t, OpAdd, outer.Opcode())
	require.Same(t, x, outer.B())
	require.Equal(t, OpInt, outer.A().Opcode())
	require.Equal(t, int32(3), outer.A().Constant())
}

func TestOptimizeIsIdempotent(t *testing.T) {
	symbols := intern.NewTable()
	fn := NewFunction(symbols.Intern("f"))
	b := NewBuilder(fn)
	entry := b.AddBlock()
	b.EnterBlock(entry)
	sum := b.Add(b.Int(1), b.Int(2))
	b.Return(sum)

	Optimize(fn)
	Optimize(fn)

	require.Equal(t, OpInt, sum.Opcode())
	require.Equal(t, int32(3), sum.Constant())
}

func TestOptimizePrunesDeadBranchParameter(t *testing.T) {
	symbols := intern.NewTable()
	fn := NewFunction(symbols.Intern("f"))
	b := NewBuilder(fn)

	entry := b.AddBlock()
	target := b.AddBlock()

	b.EnterBlock(target)
	p := b.AddParameter(symbols.Intern("unused"))
	b.Return(b.Int(0))
	_ = p

	b.EnterBlock(entry)
	arg := b.Int(42)
	b.Branch(target, arg)

	require.Equal(t, 1, arg.Refs())
	Optimize(fn)
	require.Equal(t, 0, arg.Refs())
}

func TestGetVariableUndefined(t *testing.T) {
	symbols := intern.NewTable()
	fn := NewFunction(symbols.Intern("f"))
	b := NewBuilder(fn)
	entry := b.AddBlock()
	b.EnterBlock(entry)
	_, err := b.GetVariable(symbols.Intern("missing"))
	require.ErrorIs(t, err, ErrUndefinedVariable)
}
