package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Totillity/ojit-sub000/internal/intern"
	"github.com/Totillity/ojit-sub000/internal/ir"
)

func parse(t *testing.T, src string) map[string]*ir.Function {
	t.Helper()
	symbols := intern.NewTable()
	funcs, err := New(src, symbols).ParseProgram()
	require.NoError(t, err)
	return funcs
}

func TestParseSimpleReturn(t *testing.T) {
	funcs := parse(t, "def f() { return 1+2; }")
	fn, ok := funcs["f"]
	require.True(t, ok)
	require.Equal(t, 0, fn.Arity)
	require.Equal(t, 1, fn.NumBlocks())

	entry := fn.Entry()
	require.Equal(t, ir.TermReturn, entry.Terminator().Kind())
}

func TestParseParameters(t *testing.T) {
	funcs := parse(t, "def add(a, b) { return a+b; }")
	fn := funcs["add"]
	require.Equal(t, 2, fn.Arity)
	require.Equal(t, 2, fn.Entry().NumParams())
}

func TestParseLetAndAssignment(t *testing.T) {
	funcs := parse(t, `
		def f() {
			let x = 1;
			x = x + 1;
			return x;
		}
	`)
	fn := funcs["f"]
	require.Equal(t, ir.TermReturn, fn.Entry().Terminator().Kind())
}

func TestParseIfElseBuildsFourBlocks(t *testing.T) {
	funcs := parse(t, `
		def f(a) {
			let x = 0;
			if (a) {
				x = 1;
			} else {
				x = 2;
			}
			return x;
		}
	`)
	fn := funcs["f"]
	// entry, then, join, else (all four), no implicit 5th since the parser
	// builds exactly one block per diamond arm.
	require.Equal(t, 4, fn.NumBlocks())

	entry := fn.Entry()
	require.Equal(t, ir.TermCBranch, entry.Terminator().Kind())
}

func TestParseIfWithoutElse(t *testing.T) {
	funcs := parse(t, `
		def f(a) {
			let x = 0;
			if (a) {
				x = 1;
			}
			return x;
		}
	`)
	fn := funcs["f"]
	require.Equal(t, 4, fn.NumBlocks())
}

func TestParseWhileLoop(t *testing.T) {
	funcs := parse(t, `
		def f(n) {
			let i = 0;
			while (i < n) {
				i = i + 1;
			}
			return i;
		}
	`)
	fn := funcs["f"]
	// entry, header, body, after
	require.Equal(t, 4, fn.NumBlocks())
	require.Equal(t, ir.TermBranch, fn.Entry().Terminator().Kind())
}

func TestParseForLoopDesugarsToWhile(t *testing.T) {
	funcs := parse(t, `
		def f() {
			let sum = 0;
			for (let i = 0; i < 10; i = i + 1) {
				sum = sum + i;
			}
			return sum;
		}
	`)
	fn := funcs["f"]
	require.Equal(t, 4, fn.NumBlocks())
}

func TestParseAndOrShortCircuit(t *testing.T) {
	funcs := parse(t, `
		def f(a, b) {
			return a and b or a;
		}
	`)
	fn := funcs["f"]
	// one join block per 'and'/'or' plus their rhs blocks, beyond entry.
	require.True(t, fn.NumBlocks() >= 3)
}

func TestParseObjectAttributes(t *testing.T) {
	funcs := parse(t, `
		def f() {
			let o = {};
			o.x = 1;
			return o.x;
		}
	`)
	fn := funcs["f"]
	require.Equal(t, ir.TermReturn, fn.Entry().Terminator().Kind())

	// The store's own result is unused; the SetLoc must survive dead-value
	// elision anyway, or the assignment silently vanishes.
	ir.Optimize(fn)
	setLoc := findOpcode(fn.Entry(), ir.OpSetLoc)
	require.NotNil(t, setLoc, "o.x = 1 must lower to a SetLoc")
	require.False(t, setLoc.Disabled(), "an attribute store is emitted even with zero value uses")
}

func TestParseBareCallStatementIsKeptAlive(t *testing.T) {
	funcs := parse(t, `
		def g() { return 1; }
		def f() { g(); return 0; }
	`)
	fn := funcs["f"]
	ir.Optimize(fn)
	call := findOpcode(fn.Entry(), ir.OpCall)
	require.NotNil(t, call, "g(); must lower to a Call")
	require.False(t, call.Disabled(), "a call statement runs for its side effects even though nothing reads its result")
}

// findOpcode returns the last instruction of the given opcode in blk, or nil.
func findOpcode(blk *ir.Block, op ir.Opcode) *ir.Instruction {
	var found *ir.Instruction
	for it := blk.Instructions(); ; {
		instr := it.Next()
		if instr == nil {
			return found
		}
		if instr.Opcode() == op {
			found = instr
		}
	}
}

func TestParseCall(t *testing.T) {
	funcs := parse(t, `
		def g() { return 1; }
		def f() { return g(); }
	`)
	require.Len(t, funcs, 2)
}

func TestParseUndefinedVariableIsError(t *testing.T) {
	symbols := intern.NewTable()
	_, err := New("def f() { return x; }", symbols).ParseProgram()
	require.Error(t, err)
}

func TestParseUnexpectedTokenIsError(t *testing.T) {
	symbols := intern.NewTable()
	_, err := New("def f() { return +; }", symbols).ParseProgram()
	require.Error(t, err)
}

func TestParseAssignToNonLvalueIsError(t *testing.T) {
	symbols := intern.NewTable()
	_, err := New("def f() { return (1+2) = 3; }", symbols).ParseProgram()
	require.Error(t, err)
}

func TestParseFifthParameterIsError(t *testing.T) {
	symbols := intern.NewTable()
	_, err := New("def f(a, b, c, d, e) { return a; }", symbols).ParseProgram()
	require.Error(t, err, "the backend has only 4 ABI argument registers to bind parameters to")
}

func TestParseFourParametersIsOK(t *testing.T) {
	funcs := parse(t, "def f(a, b, c, d) { return a; }")
	require.Equal(t, 4, funcs["f"].Arity)
}
