package ir

import (
	"github.com/pkg/errors"

	"github.com/Totillity/ojit-sub000/internal/intern"
	"github.com/Totillity/ojit-sub000/internal/regalloc"
)

// ErrUndefinedVariable is returned by GetVariable when a name has no binding
// in the current block's variable map (spec.md §7, semantic errors).
var ErrUndefinedVariable = errors.New("undefined variable")

// Builder is the append-only construction API the parser drives while
// reading the source tokens (there is no AST). Every method appends a new value to the current
// block's instruction stream and returns it; the parser is responsible for
// maintaining control flow (adding blocks, parameters, and branch arguments)
// since the builder itself never looks at predecessor blocks.
type Builder struct {
	fn      *Function
	current *Block
}

// NewBuilder constructs a Builder that will append to fn, starting with no
// current block (the caller must EnterBlock before building any value).
func NewBuilder(fn *Function) *Builder {
	return &Builder{fn: fn}
}

// Function returns the function under construction.
func (b *Builder) Function() *Function { return b.fn }

// AddBlock adds a new, empty block to the function and returns it; it does
// not change the current block.
func (b *Builder) AddBlock() *Block {
	return b.fn.AddBlock()
}

// EnterBlock makes blk the current block that subsequent builder calls
// append to.
func (b *Builder) EnterBlock(blk *Block) {
	b.current = blk
}

// CurrentBlock returns the block new instructions are appended to.
func (b *Builder) CurrentBlock() *Block {
	return b.current
}

// AddParameter appends an OpParameter instruction to the current block. It
// must be called before any non-parameter instruction is appended to the
// same block (spec.md §3 invariant). name may be the zero Symbol for an
// unnamed parameter.
func (b *Builder) AddParameter(name intern.Symbol) *Instruction {
	blk := b.current
	if blk.paramsClosed {
		panic("ir: AddParameter called after the parameter prefix was closed")
	}
	p := blk.append(OpParameter)
	p.name = name
	p.entryLoc = regalloc.Unassigned
	blk.numParams++
	if name != 0 {
		blk.SetVariable(name, p)
	}
	return p
}

// AddVariable binds name to value in the current block without emitting any
// instruction; used by the parser for `let` bindings.
func (b *Builder) AddVariable(name intern.Symbol, value *Instruction) {
	b.current.SetVariable(name, value)
	b.closeParamPrefix()
}

// SetVariable rebinds an existing name to a new value in the current block
// (used by the parser for plain assignment, `x = expr;`).
func (b *Builder) SetVariable(name intern.Symbol, value *Instruction) {
	b.current.SetVariable(name, value)
}

// GetVariable resolves name in the current block's variable map. The
// builder never consults predecessor blocks; the parser is responsible for
// having already materialized a block parameter for any name that needs to
// flow across a control-flow join.
func (b *Builder) GetVariable(name intern.Symbol) (*Instruction, error) {
	v, ok := b.current.GetVariable(name)
	if !ok {
		return nil, errors.Wrapf(ErrUndefinedVariable, "%q", name)
	}
	return v, nil
}

func (b *Builder) closeParamPrefix() {
	b.current.paramsClosed = true
}

func (b *Builder) use(operand *Instruction) {
	operand.AddRef()
}

// Int appends an OpInt constant instruction.
func (b *Builder) Int(v int32) *Instruction {
	b.closeParamPrefix()
	i := b.current.append(OpInt)
	i.constant = v
	return i
}

// Add appends an OpAdd instruction over a, b.
func (b *Builder) Add(a, b2 *Instruction) *Instruction {
	b.closeParamPrefix()
	i := b.current.append(OpAdd)
	i.a, i.b = a, b2
	b.use(a)
	b.use(b2)
	return i
}

// Sub appends an OpSub instruction over a, b.
func (b *Builder) Sub(a, b2 *Instruction) *Instruction {
	b.closeParamPrefix()
	i := b.current.append(OpSub)
	i.a, i.b = a, b2
	b.use(a)
	b.use(b2)
	return i
}

// Cmp appends an OpCmp instruction of the given kind over a, b.
func (b *Builder) Cmp(kind CmpKind, a, b2 *Instruction) *Instruction {
	b.closeParamPrefix()
	i := b.current.append(OpCmp)
	i.cmp = kind
	i.a, i.b = a, b2
	b.use(a)
	b.use(b2)
	return i
}

// Global appends an OpGlobal instruction resolving name. Resolution is an
// upcall into the JIT façade that may compile the named function, so the
// instruction survives even if its result goes unused.
func (b *Builder) Global(name intern.Symbol) *Instruction {
	b.closeParamPrefix()
	i := b.current.append(OpGlobal)
	i.name = name
	i.hasEffect = true
	return i
}

// GetAttr appends an OpGetAttr instruction for obj.name.
func (b *Builder) GetAttr(obj *Instruction, name intern.Symbol) *Instruction {
	b.closeParamPrefix()
	i := b.current.append(OpGetAttr)
	i.a = obj
	i.name = name
	b.use(obj)
	return i
}

// GetLoc appends an OpGetLoc instruction reading through loc.
func (b *Builder) GetLoc(loc *Instruction) *Instruction {
	b.closeParamPrefix()
	i := b.current.append(OpGetLoc)
	i.a = loc
	b.use(loc)
	return i
}

// SetLoc appends an OpSetLoc instruction writing val through loc. The store
// is a side effect: an attribute assignment statement is emitted whether or
// not anything reads the assignment's value.
func (b *Builder) SetLoc(loc, val *Instruction) *Instruction {
	b.closeParamPrefix()
	i := b.current.append(OpSetLoc)
	i.a, i.b = loc, val
	i.hasEffect = true
	b.use(loc)
	b.use(val)
	return i
}

// NewObject appends an OpNewObject instruction. Allocation goes through the
// host runtime, so the instruction survives even as a bare `{};` statement.
func (b *Builder) NewObject() *Instruction {
	b.closeParamPrefix()
	i := b.current.append(OpNewObject)
	i.hasEffect = true
	return i
}

// Call appends an OpCall instruction with callee and no arguments yet; use
// CallArgument to append each argument in turn (arity <= 4, spec.md §3).
// A call runs for its side effects regardless of whether the result is
// consumed, so a bare `f();` statement is never elided.
func (b *Builder) Call(callee *Instruction) *Instruction {
	b.closeParamPrefix()
	i := b.current.append(OpCall)
	i.a = callee
	i.hasEffect = true
	b.use(callee)
	return i
}

// CallArgument appends arg to call's argument list.
func (b *Builder) CallArgument(call, arg *Instruction) {
	if len(call.args) >= 4 {
		panic("ir: Call arity exceeds 4")
	}
	call.args = append(call.args, arg)
	b.use(arg)
}

// Return terminates the current block with a Return of v.
func (b *Builder) Return(v *Instruction) {
	b.closeParamPrefix()
	b.use(v)
	b.current.term = Terminator{kind: TermReturn, value: v}
}

// Branch terminates the current block with an unconditional jump to target,
// passing args positionally bound to target's parameters.
func (b *Builder) Branch(target *Block, args ...*Instruction) {
	b.closeParamPrefix()
	for _, a := range args {
		b.use(a)
	}
	b.current.term = Terminator{kind: TermBranch, branchTarget: target, args: args}
}

// CBranch terminates the current block with a conditional jump: trueTarget
// if cond is nonzero, falseTarget otherwise. Neither target receives
// arguments through the terminator; values cross via each block's variable
// map, resolved at lowering time (spec.md §4.5).
func (b *Builder) CBranch(cond *Instruction, trueTarget, falseTarget *Block) {
	b.closeParamPrefix()
	b.use(cond)
	b.current.term = Terminator{kind: TermCBranch, cond: cond, trueTarget: trueTarget, falseTarget: falseTarget}
}
