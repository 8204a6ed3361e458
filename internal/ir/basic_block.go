package ir

import (
	"github.com/Totillity/ojit-sub000/internal/arena"
	"github.com/Totillity/ojit-sub000/internal/intern"
	"github.com/Totillity/ojit-sub000/internal/symtab"
)

// TerminatorKind identifies which of Return/Branch/CBranch a Block ends
// with.
type TerminatorKind uint8

const (
	TermNone TerminatorKind = iota
	TermReturn
	TermBranch
	TermCBranch
)

// Terminator is the single instruction that ends a Block: Return, Branch
// (with positional arguments bound to the target's parameters), or CBranch
// (no arguments; values flow via each block's variable map, resolved at
// lowering time per spec.md §4.5).
type Terminator struct {
	kind TerminatorKind

	value *Instruction // TermReturn

	branchTarget *Block
	args         []*Instruction // TermBranch arguments, positional

	cond                     *Instruction // TermCBranch
	trueTarget, falseTarget  *Block
}

func (t *Terminator) Kind() TerminatorKind     { return t.kind }
func (t *Terminator) ReturnValue() *Instruction { return t.value }
func (t *Terminator) BranchTarget() *Block      { return t.branchTarget }
func (t *Terminator) BranchArgs() []*Instruction { return t.args }
func (t *Terminator) Cond() *Instruction         { return t.cond }
func (t *Terminator) TrueTarget() *Block         { return t.trueTarget }
func (t *Terminator) FalseTarget() *Block        { return t.falseTarget }

// Block is a sequence of instructions ending in exactly one terminator. The
// prefix of the instruction stream may contain zero or more OpParameter
// instructions; the first non-parameter instruction ends that prefix.
type Block struct {
	fn   *Function
	id   int
	instrs arena.LAList[Instruction]
	numParams int
	paramsClosed bool

	term Terminator

	// vars is the per-block mapping from interned variable name to the
	// instruction value most recently bound to it, used by the builder for
	// name resolution during parsing. The builder never walks predecessor
	// blocks: the parser is responsible for inserting block parameters and
	// Branch/CBranch arguments itself (spec.md §4.2).
	vars *symtab.Table[*Instruction]

	// Segment is an opaque pointer the backend assigns during lowering (see
	// internal/backend): the block's label segment in the stitcher's
	// segment chain. The ir package never interprets it.
	Segment any
}

// ID returns the block's index within its function.
func (b *Block) ID() int { return b.id }

// Function returns the owning function.
func (b *Block) Function() *Function { return b.fn }

// NumParams returns the number of leading OpParameter instructions.
func (b *Block) NumParams() int { return b.numParams }

// Instructions returns a forward iterator over the block's instruction
// stream (parameters first, then the body, in append order).
func (b *Block) Instructions() *arena.Iterator[Instruction] {
	return b.instrs.Forward()
}

// InstructionsReverse returns an iterator over the block's instruction
// stream from last-appended to first; this is the order the backend's
// register allocator/emitter walks a block in (spec.md §4.4).
func (b *Block) InstructionsReverse() *arena.Iterator[Instruction] {
	return b.instrs.Reverse()
}

// NumInstructions returns the number of instructions (including parameters)
// in the block.
func (b *Block) NumInstructions() int { return b.instrs.Len() }

// Terminator returns the block's terminator. It is TermNone until the
// builder terminates the block.
func (b *Block) Terminator() *Terminator { return &b.term }

// GetVariable resolves a name in this block's variable map.
func (b *Block) GetVariable(name intern.Symbol) (*Instruction, bool) {
	return b.vars.Get(name)
}

// SetVariable rebinds name to value in this block's variable map.
func (b *Block) SetVariable(name intern.Symbol, value *Instruction) {
	b.vars.Set(name, value)
}

func (b *Block) append(opcode Opcode) *Instruction {
	instr := b.instrs.Append()
	*instr = Instruction{opcode: opcode, block: b, index: b.instrs.Len() - 1}
	return instr
}

// Function is an ordered, doubly-linked sequence of blocks with a
// designated entry (the first block). It owns all IR storage for its
// blocks via the arena-backed block and instruction lists.
type Function struct {
	Name   intern.Symbol
	Arity  int
	blocks arena.LAList[Block]
}

// NewFunction constructs an empty function. The entry block is added by the
// first call to AddBlock.
func NewFunction(name intern.Symbol) *Function {
	return &Function{Name: name}
}

// AddBlock appends a fresh, empty block (no parameters, no terminator) to
// the function and returns it. The first block added is the function's
// entry block.
func (f *Function) AddBlock() *Block {
	b := f.blocks.Append()
	*b = Block{fn: f, id: f.blocks.Len() - 1, vars: symtab.New[*Instruction]()}
	return b
}

// Entry returns the function's entry block (the first block added), or nil
// if the function has no blocks yet.
func (f *Function) Entry() *Block {
	it := f.blocks.Forward()
	return it.Next()
}

// Blocks returns a forward iterator over the function's blocks in the order
// they were added.
func (f *Function) Blocks() *arena.Iterator[Block] {
	return f.blocks.Forward()
}

// BlocksReverse returns an iterator over the function's blocks from last to
// first, the order the optimizer's dead-parameter-pruning pass walks
// terminators in (spec.md §4.3).
func (f *Function) BlocksReverse() *arena.Iterator[Block] {
	return f.blocks.Reverse()
}

// NumBlocks returns the number of blocks in the function.
func (f *Function) NumBlocks() int { return f.blocks.Len() }
