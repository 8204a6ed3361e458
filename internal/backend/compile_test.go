package backend

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Totillity/ojit-sub000/internal/asmx64"
	"github.com/Totillity/ojit-sub000/internal/intern"
	"github.com/Totillity/ojit-sub000/internal/ir"
	"github.com/Totillity/ojit-sub000/internal/regalloc"
)

// shrTagScratch1 is the encoding of `shr r12, 48`, the tag-isolating shift
// every emitted type guard starts with (r12 is the encoder's first scratch
// register).
var shrTagScratch1 = []byte{0x49, 0xC1, 0xEC, 0x30}

// buildReturnConst builds `def f() { return 1+2; }` directly against the IR
// builder (spec.md §8's canonical testable program).
func buildReturnConst(symbols *intern.Table) *ir.Function {
	fn := ir.NewFunction(symbols.Intern("f"))
	b := ir.NewBuilder(fn)
	entry := b.AddBlock()
	b.EnterBlock(entry)
	b.Return(b.Add(b.Int(1), b.Int(2)))
	return fn
}

func TestCompileReturnConstantEndsInRet(t *testing.T) {
	symbols := intern.NewTable()
	fn := buildReturnConst(symbols)
	ir.Optimize(fn)

	code := Compile(fn, Runtime{})
	require.NotEmpty(t, code)
	require.Equal(t, byte(0xC3), code[len(code)-1], "last byte should be the epilogue's ret")
}

// buildDiamond builds a function with an if/join diamond to exercise
// multi-block lowering and the stitcher's label resolution:
//
//	def f(a) {
//	  let x = 1;
//	  if (a) { x = 2; } else { x = 3; }
//	  return x;
//	}
func buildDiamond(symbols *intern.Table) *ir.Function {
	fn := ir.NewFunction(symbols.Intern("f"))
	b := ir.NewBuilder(fn)

	entry := b.AddBlock()
	thenBlk := b.AddBlock()
	elseBlk := b.AddBlock()
	joinBlk := b.AddBlock()

	xName := symbols.Intern("x")

	b.EnterBlock(joinBlk)
	xParam := b.AddParameter(xName)

	b.EnterBlock(entry)
	a := b.AddParameter(symbols.Intern("a"))
	b.SetVariable(xName, b.Int(1))
	b.CBranch(a, thenBlk, elseBlk)

	b.EnterBlock(thenBlk)
	b.Branch(joinBlk, b.Int(2))

	b.EnterBlock(elseBlk)
	b.Branch(joinBlk, b.Int(3))

	b.EnterBlock(joinBlk)
	b.Return(xParam)

	return fn
}

func TestCompileDiamondProducesNonEmptyCode(t *testing.T) {
	symbols := intern.NewTable()
	fn := buildDiamond(symbols)
	ir.Optimize(fn)

	code := Compile(fn, Runtime{})
	require.NotEmpty(t, code)
	require.Equal(t, byte(0xC3), code[len(code)-1])
}

// buildUnusedLeadingParam builds `def f(a, b) { return b; }`: `a` is never
// read, so it ends up Disabled() by the time the backend assigns entry
// locations. The ABI still delivers `b` in RDX (the second integer argument
// register) regardless of whether `a` is used; assignFunctionParameters must
// not let a's dead status skip b's register slot.
func buildUnusedLeadingParam(symbols *intern.Table) *ir.Function {
	fn := ir.NewFunction(symbols.Intern("f"))
	b := ir.NewBuilder(fn)
	entry := b.AddBlock()
	b.EnterBlock(entry)
	b.AddParameter(symbols.Intern("a"))
	bParam := b.AddParameter(symbols.Intern("b"))
	b.Return(bParam)
	return fn
}

func TestCompileConstantFunctionHasNoGuard(t *testing.T) {
	symbols := intern.NewTable()
	fn := buildReturnConst(symbols)
	ir.Optimize(fn)

	code := Compile(fn, Runtime{})
	require.False(t, bytes.Contains(code, shrTagScratch1),
		"a function whose arithmetic folded to a constant needs no tag guard and no trampoline")
}

// buildAddParam builds `def g(x) { return x+1; }` (spec.md §8 scenario 2):
// the parameter's producer isn't statically an integer, so its use as an
// Add operand must be guarded.
func buildAddParam(symbols *intern.Table) *ir.Function {
	fn := ir.NewFunction(symbols.Intern("g"))
	b := ir.NewBuilder(fn)
	entry := b.AddBlock()
	b.EnterBlock(entry)
	x := b.AddParameter(symbols.Intern("x"))
	b.Return(b.Add(x, b.Int(1)))
	return fn
}

func TestCompileParameterAddEmitsTagGuardAndTrampoline(t *testing.T) {
	symbols := intern.NewTable()
	fn := buildAddParam(symbols)
	ir.Optimize(fn)

	code := Compile(fn, Runtime{})
	require.True(t, bytes.Contains(code, shrTagScratch1),
		"adding a parameter must guard its tag bits")
	require.True(t, bytes.Contains(code, []byte{0xB9, 0x01, 0x00, 0x00, 0x00}),
		"the trampoline loads the guard error code into ecx")
	require.Equal(t, byte(0xC3), code[len(code)-1],
		"the trampoline's ret is the function's last byte")
}

// buildCmpConstBranch builds `def f(x) { if (x < 10) { return 1; } return 0; }`
// through the builder (spec.md §8 scenario 6): an unconsumed comparison
// feeding a CBranch must lower to `cmp x, 10` plus conditional jumps, with
// no setcc materializing the boolean.
func buildCmpConstBranch(symbols *intern.Table) *ir.Function {
	fn := ir.NewFunction(symbols.Intern("f"))
	b := ir.NewBuilder(fn)
	entry := b.AddBlock()
	thenBlk := b.AddBlock()
	elseBlk := b.AddBlock()

	b.EnterBlock(entry)
	x := b.AddParameter(symbols.Intern("x"))
	cond := b.Cmp(ir.CmpLess, x, b.Int(10))
	b.CBranch(cond, thenBlk, elseBlk)

	b.EnterBlock(thenBlk)
	b.Return(b.Int(1))

	b.EnterBlock(elseBlk)
	b.Return(b.Int(0))
	return fn
}

func TestCompileCmpConstUsesImmediateFormWithoutSetcc(t *testing.T) {
	symbols := intern.NewTable()
	fn := buildCmpConstBranch(symbols)
	ir.Optimize(fn)

	code := Compile(fn, Runtime{})
	require.True(t, bytes.Contains(code, []byte{0x83, 0xF9, 0x0A}),
		"x arrives in rcx, so the fold must emit `cmp ecx, 10`")
	require.False(t, bytes.Contains(code, []byte{0x0F, 0x9C}),
		"a compare consumed only by its CBranch must not emit setl")
}

// buildUnusedAttrStore builds `def f() { let o = {}; o.x = 1; return 0; }`:
// the store's value is never read, so every instruction feeding it has zero
// value-uses by the time lowering runs, and only their side effects keep
// them alive.
func buildUnusedAttrStore(symbols *intern.Table) *ir.Function {
	fn := ir.NewFunction(symbols.Intern("f"))
	b := ir.NewBuilder(fn)
	entry := b.AddBlock()
	b.EnterBlock(entry)
	o := b.NewObject()
	attr := b.GetAttr(o, symbols.Intern("x"))
	b.SetLoc(attr, b.Int(1))
	b.Return(b.Int(0))
	return fn
}

func TestCompileEmitsUnusedAttributeStore(t *testing.T) {
	symbols := intern.NewTable()
	fn := buildUnusedAttrStore(symbols)
	ir.Optimize(fn)

	code := Compile(fn, Runtime{})
	require.GreaterOrEqual(t, bytes.Count(code, []byte{0xFF, 0xD0}), 2,
		"the NewObject and GetAttr runtime calls must be emitted even though the store's value is unused")
}

// TestMapRegistersSwapEmitsSingleXchg is spec.md §8 scenario 5: arguments in
// (rcx, rdx) whose target parameters want (rdx, rcx) must resolve to one
// xchg and nothing else.
func TestMapRegistersSwapEmitsSingleXchg(t *testing.T) {
	s := &state{}
	s.resetBlock()
	e := asmx64.NewEmitter()

	from := []regalloc.Loc{regalloc.InReg(regalloc.RCX), regalloc.InReg(regalloc.RDX)}
	to := []regalloc.Loc{regalloc.InReg(regalloc.RDX), regalloc.InReg(regalloc.RCX)}
	s.mapRegisters(e, from, to)

	require.Equal(t, []byte{0x48, 0x87, 0xD1}, e.Bytes(), "expected exactly `xchg rcx, rdx`")
}

func TestAssignFunctionParametersSkipsDisabledWithoutSkippingSlot(t *testing.T) {
	symbols := intern.NewTable()
	fn := buildUnusedLeadingParam(symbols)
	ir.Optimize(fn)

	assignFunctionParameters(fn)

	it := fn.Entry().Instructions()
	aParam := it.Next()
	require.True(t, aParam.Disabled(), "a has no uses and should be dead")
	gotB := it.Next()
	require.True(t, gotB.EntryLoc().IsReg())
	require.Equal(t, regalloc.RDX, gotB.EntryLoc().Reg(), "b must bind to RDX, its positional ABI slot, regardless of a's dead status")
}
