// Package parser turns source text into IR by driving internal/ir.Builder
// directly, one token at a time — there is no separate AST stage, mirroring
// the original implementation's single-pass parser (original_source's
// parser.c) extended to the rest of spec.md §6's grammar.
package parser

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Totillity/ojit-sub000/internal/intern"
	"github.com/Totillity/ojit-sub000/internal/ir"
	"github.com/Totillity/ojit-sub000/internal/lexer"
)

// Parser builds one or more ir.Function values from source text. It carries
// no lookahead beyond the lexer's single-token buffer; control flow
// (blocks, parameters, branch arguments) is built as source is consumed, in
// the order internal/ir.Builder requires.
type Parser struct {
	lex     tokenSource
	symbols *intern.Table
	b       *ir.Builder

	vars    []intern.Symbol
	seen    map[intern.Symbol]bool
	freshN  int
}

// New constructs a Parser over src, interning identifiers into symbols.
func New(src string, symbols *intern.Table) *Parser {
	return &Parser{lex: lexer.New(src), symbols: symbols}
}

// ParseProgram parses a sequence of function definitions and returns them
// keyed by name.
func (p *Parser) ParseProgram() (map[string]*ir.Function, error) {
	funcs := map[string]*ir.Function{}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == lexer.TokenEOF {
			return funcs, nil
		}
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		funcs[p.symbols.String(fn.Name)] = fn
	}
}

func (p *Parser) parseFunction() (*ir.Function, error) {
	if _, err := p.expect(lexer.TokenDef); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.TokenIdent)
	if err != nil {
		return nil, err
	}

	fn := ir.NewFunction(p.symbols.Intern(nameTok.Text))
	p.b = ir.NewBuilder(fn)
	p.vars = nil
	p.seen = map[intern.Symbol]bool{}
	entry := p.b.AddBlock()
	p.b.EnterBlock(entry)

	if _, err := p.expect(lexer.TokenLeftParen); err != nil {
		return nil, err
	}
	arity := 0
	if ok, err := p.peekIs(lexer.TokenRightParen); err != nil {
		return nil, err
	} else if !ok {
		for {
			pTok, err := p.expect(lexer.TokenIdent)
			if err != nil {
				return nil, err
			}
			if arity >= 4 {
				return nil, errors.Errorf("parser: line %d: function %q takes more than 4 parameters, the Windows x64 integer argument registers this backend supports", pTok.Line, nameTok.Text)
			}
			name := p.symbols.Intern(pTok.Text)
			p.b.AddParameter(name)
			p.declare(name)
			arity++
			more, err := p.peekIs(lexer.TokenComma)
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
			if _, err := p.lex.Next(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(lexer.TokenRightParen); err != nil {
		return nil, err
	}
	fn.Arity = arity

	if err := p.parseBraceBlock(); err != nil {
		return nil, err
	}
	return fn, nil
}

// parseBraceBlock parses `{ stmt* }`, appending to the current block; it
// does not create a new ir.Block (this language has no block scoping beyond
// the control-flow constructs that actually branch).
func (p *Parser) parseBraceBlock() error {
	if _, err := p.expect(lexer.TokenLeftBrace); err != nil {
		return err
	}
	for {
		ok, err := p.peekIs(lexer.TokenRightBrace)
		if err != nil {
			return err
		}
		if ok {
			break
		}
		if err := p.parseStatement(); err != nil {
			return err
		}
	}
	_, err := p.expect(lexer.TokenRightBrace)
	return err
}

func (p *Parser) parseStatement() error {
	tok, err := p.lex.Peek()
	if err != nil {
		return err
	}
	switch tok.Type {
	case lexer.TokenLet:
		return p.parseLet()
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseWhile()
	case lexer.TokenFor:
		return p.parseFor()
	case lexer.TokenLeftBrace:
		return p.parseBraceBlock()
	default:
		if _, err := p.parseExpression(); err != nil {
			return err
		}
		_, err := p.expect(lexer.TokenSemicolon)
		return err
	}
}

func (p *Parser) parseLet() error {
	if _, err := p.expect(lexer.TokenLet); err != nil {
		return err
	}
	nameTok, err := p.expect(lexer.TokenIdent)
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenEqual); err != nil {
		return err
	}
	val, err := p.parseExpression()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenSemicolon); err != nil {
		return err
	}
	name := p.symbols.Intern(nameTok.Text)
	p.b.AddVariable(name, val)
	p.declare(name)
	return nil
}

func (p *Parser) parseReturn() error {
	if _, err := p.expect(lexer.TokenReturn); err != nil {
		return err
	}
	val, err := p.parseExpression()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenSemicolon); err != nil {
		return err
	}
	p.b.Return(val)
	return nil
}

// parseIf builds a diamond: cond block -> {then, else-or-join} -> join.
// Every block the parser creates starts with an empty variable map, so
// each one receives a phi parameter for every variable live at the branch
// point; the optimizer prunes the ones that turn out to be redundant.
func (p *Parser) parseIf() error {
	if _, err := p.expect(lexer.TokenIf); err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenLeftParen); err != nil {
		return err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenRightParen); err != nil {
		return err
	}

	origin := p.b.CurrentBlock()
	live := p.currentLiveVars()
	thenBlk := p.b.AddBlock()
	p.addPhiParams(thenBlk, live)
	joinBlk := p.b.AddBlock()
	p.addPhiParams(joinBlk, live)
	elseBlk := p.b.AddBlock()
	p.addPhiParams(elseBlk, live)

	p.b.EnterBlock(origin)
	p.b.CBranch(cond, thenBlk, elseBlk)

	p.b.EnterBlock(thenBlk)
	if err := p.parseBraceBlock(); err != nil {
		return err
	}
	if p.b.CurrentBlock().Terminator().Kind() == ir.TermNone {
		p.b.Branch(joinBlk, p.branchArgsFor(live)...)
	}

	p.b.EnterBlock(elseBlk)
	elseTok, err := p.lex.Peek()
	if err != nil {
		return err
	}
	if elseTok.Type == lexer.TokenElse {
		if _, err := p.lex.Next(); err != nil {
			return err
		}
		ifTok, err := p.lex.Peek()
		if err != nil {
			return err
		}
		if ifTok.Type == lexer.TokenIf {
			if err := p.parseIfInto(joinBlk, live); err != nil {
				return err
			}
		} else if err := p.parseBraceBlock(); err != nil {
			return err
		}
	}
	if p.b.CurrentBlock().Terminator().Kind() == ir.TermNone {
		p.b.Branch(joinBlk, p.branchArgsFor(live)...)
	}

	p.b.EnterBlock(joinBlk)
	return nil
}

// parseIfInto parses `else if (...) {...} [else ...]` as a nested if whose
// "after" point is the enclosing if's join block, rather than a fresh one —
// the fall-through case, not its own construct.
func (p *Parser) parseIfInto(outerJoin *ir.Block, outerLive []intern.Symbol) error {
	if err := p.parseIf(); err != nil {
		return err
	}
	if p.b.CurrentBlock().Terminator().Kind() == ir.TermNone {
		p.b.Branch(outerJoin, p.branchArgsFor(outerLive)...)
	}
	return nil
}

func (p *Parser) parseWhile() error {
	if _, err := p.expect(lexer.TokenWhile); err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenLeftParen); err != nil {
		return err
	}
	return p.buildLoop(
		func() (*ir.Instruction, error) {
			cond, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			_, err = p.expect(lexer.TokenRightParen)
			return cond, err
		},
		p.parseBraceBlock,
	)
}

// parseFor desugars `for (init; cond; step) { body }` into
// `init; while (cond) { body step; }`. Since this parser emits code as it
// scans tokens left to right, the step clause's tokens are scanned once
// (between the two semicolons) but must be emitted after the body, so they
// are buffered and replayed through bufferedTokens at the point the body's
// code finishes generating.
func (p *Parser) parseFor() error {
	if _, err := p.expect(lexer.TokenFor); err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenLeftParen); err != nil {
		return err
	}

	initTok, err := p.lex.Peek()
	if err != nil {
		return err
	}
	if initTok.Type == lexer.TokenLet {
		if err := p.parseLet(); err != nil {
			return err
		}
	} else {
		if _, err := p.parseExpression(); err != nil {
			return err
		}
		if _, err := p.expect(lexer.TokenSemicolon); err != nil {
			return err
		}
	}

	condToks, err := p.captureUntil(lexer.TokenSemicolon, false)
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenSemicolon); err != nil {
		return err
	}
	stepToks, err := p.captureUntil(lexer.TokenRightParen, true)
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenRightParen); err != nil {
		return err
	}

	return p.buildLoop(
		func() (*ir.Instruction, error) {
			saved := p.lex
			p.lex = &bufferedTokens{toks: condToks}
			defer func() { p.lex = saved }()
			return p.parseExpression()
		},
		func() error {
			if err := p.parseBraceBlock(); err != nil {
				return err
			}
			saved := p.lex
			p.lex = &bufferedTokens{toks: stepToks}
			_, err := p.parseExpression()
			p.lex = saved
			return err
		},
	)
}

// buildLoop wires a natural loop: a header block (with a phi parameter per
// live variable) tested by parseCond, a body entered when the condition
// holds, and an after-block entered once it doesn't. parseBody appends the
// loop body to the already-entered body block.
func (p *Parser) buildLoop(parseCond func() (*ir.Instruction, error), parseBody func() error) error {
	origin := p.b.CurrentBlock()
	live := p.currentLiveVars()

	header := p.b.AddBlock()
	p.addPhiParams(header, live)
	body := p.b.AddBlock()
	p.addPhiParams(body, live)
	after := p.b.AddBlock()
	p.addPhiParams(after, live)

	p.b.EnterBlock(origin)
	p.b.Branch(header, p.branchArgsFor(live)...)
	p.b.EnterBlock(header)

	cond, err := parseCond()
	if err != nil {
		return err
	}
	p.b.CBranch(cond, body, after)

	p.b.EnterBlock(body)
	if err := parseBody(); err != nil {
		return err
	}
	if p.b.CurrentBlock().Terminator().Kind() == ir.TermNone {
		p.b.Branch(header, p.branchArgsFor(live)...)
	}

	p.b.EnterBlock(after)
	return nil
}

// captureUntil scans tokens from the real lexer up to (not including) a
// token of type stop, returning the captured slice. When balanced is true,
// '(' / ')' nesting is tracked so a stop token nested inside a call or
// grouped expression doesn't end the capture early (used for the for-loop
// step clause, which ends at the for-statement's own closing paren).
func (p *Parser) captureUntil(stop lexer.TokenType, balanced bool) ([]lexer.Token, error) {
	var toks []lexer.Token
	depth := 0
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if depth == 0 && tok.Type == stop {
			return toks, nil
		}
		if tok.Type == lexer.TokenEOF {
			return nil, errors.Errorf("parser: line %d: unexpected EOF while scanning for %s", tok.Line, stop.Name())
		}
		if balanced {
			if tok.Type == lexer.TokenLeftParen {
				depth++
			} else if tok.Type == lexer.TokenRightParen {
				depth--
			}
		}
		if _, err := p.lex.Next(); err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
}

// --- expressions ---

type lvalueKind int

const (
	lvNone lvalueKind = iota
	lvIdent
	lvAttr
)

type exprValue struct {
	rvalue *ir.Instruction
	kind   lvalueKind
	name   intern.Symbol
	obj    *ir.Instruction
}

func (p *Parser) parseExpression() (*ir.Instruction, error) {
	v, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return v.rvalue, nil
}

// parseAssign is right-associative and lowest precedence: `a.b = c = d` is
// `a.b = (c = d)`.
func (p *Parser) parseAssign() (exprValue, error) {
	left, err := p.parseOr()
	if err != nil {
		return exprValue{}, err
	}
	ok, err := p.peekIs(lexer.TokenEqual)
	if err != nil {
		return exprValue{}, err
	}
	if !ok {
		return left, nil
	}
	if _, err := p.lex.Next(); err != nil {
		return exprValue{}, err
	}
	rhs, err := p.parseAssign()
	if err != nil {
		return exprValue{}, err
	}
	switch left.kind {
	case lvIdent:
		p.b.SetVariable(left.name, rhs.rvalue)
		return exprValue{rvalue: rhs.rvalue}, nil
	case lvAttr:
		loc := p.b.GetAttr(left.obj, left.name)
		p.b.SetLoc(loc, rhs.rvalue)
		return exprValue{rvalue: rhs.rvalue}, nil
	default:
		return exprValue{}, errors.New("parser: left-hand side of '=' is not assignable")
	}
}

func (p *Parser) parseOr() (exprValue, error) {
	return p.parseShortCircuit(p.parseAnd, lexer.TokenOr, true)
}

func (p *Parser) parseAnd() (exprValue, error) {
	return p.parseShortCircuit(p.parseComparison, lexer.TokenAnd, false)
}

// parseShortCircuit lowers `a and b` / `a or b` to a CBranch over a join
// block carrying a phi for the result, equivalent to `a ? b : false` (and)
// or `a ? true : b` (or). The short-circuited constant is bound under a
// synthetic name in the current block before branching, since CBranch edges
// never carry positional arguments — only the name-based variable map does.
func (p *Parser) parseShortCircuit(higher func() (exprValue, error), tok lexer.TokenType, shortCircuitIsTrue bool) (exprValue, error) {
	left, err := higher()
	if err != nil {
		return exprValue{}, err
	}
	for {
		ok, err := p.peekIs(tok)
		if err != nil {
			return exprValue{}, err
		}
		if !ok {
			return left, nil
		}
		if _, err := p.lex.Next(); err != nil {
			return exprValue{}, err
		}

		origin := p.b.CurrentBlock()
		live := p.currentLiveVars()
		tmp := p.fresh("sc")

		shortVal := int32(0)
		if shortCircuitIsTrue {
			shortVal = 1
		}
		p.b.SetVariable(tmp, p.b.Int(shortVal))

		rhsBlk := p.b.AddBlock()
		p.addPhiParams(rhsBlk, live)
		joinBlk := p.b.AddBlock()
		joinParams := p.addPhiParams(joinBlk, append(append([]intern.Symbol(nil), live...), tmp))

		p.b.EnterBlock(origin)
		if shortCircuitIsTrue {
			p.b.CBranch(left.rvalue, joinBlk, rhsBlk)
		} else {
			p.b.CBranch(left.rvalue, rhsBlk, joinBlk)
		}

		p.b.EnterBlock(rhsBlk)
		rhs, err := higher()
		if err != nil {
			return exprValue{}, err
		}
		if p.b.CurrentBlock().Terminator().Kind() == ir.TermNone {
			args := append(p.branchArgsFor(live), rhs.rvalue)
			p.b.Branch(joinBlk, args...)
		}

		p.b.EnterBlock(joinBlk)
		result := joinParams[len(joinParams)-1]
		left = exprValue{rvalue: result}
	}
}

func cmpKindFor(t lexer.TokenType) (ir.CmpKind, bool) {
	switch t {
	case lexer.TokenLess:
		return ir.CmpLess, true
	case lexer.TokenGreater:
		return ir.CmpGreater, true
	case lexer.TokenLessEqual:
		return ir.CmpLessEq, true
	case lexer.TokenGreaterEqual:
		return ir.CmpGreaterEq, true
	case lexer.TokenEqualEqual:
		return ir.CmpEqual, true
	case lexer.TokenBangEqual:
		return ir.CmpNotEqual, true
	default:
		return 0, false
	}
}

// parseComparison is non-associative: `a < b < c` is rejected by the
// grammar (each comparison produces a boolean, not a chainable operand),
// matching spec.md §6's flat comparison level.
func (p *Parser) parseComparison() (exprValue, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return exprValue{}, err
	}
	tok, err := p.lex.Peek()
	if err != nil {
		return exprValue{}, err
	}
	kind, ok := cmpKindFor(tok.Type)
	if !ok {
		return left, nil
	}
	if _, err := p.lex.Next(); err != nil {
		return exprValue{}, err
	}
	right, err := p.parseAdditive()
	if err != nil {
		return exprValue{}, err
	}
	return exprValue{rvalue: p.b.Cmp(kind, left.rvalue, right.rvalue)}, nil
}

func (p *Parser) parseAdditive() (exprValue, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return exprValue{}, err
	}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return exprValue{}, err
		}
		if tok.Type != lexer.TokenPlus && tok.Type != lexer.TokenMinus {
			return left, nil
		}
		if _, err := p.lex.Next(); err != nil {
			return exprValue{}, err
		}
		right, err := p.parsePostfix()
		if err != nil {
			return exprValue{}, err
		}
		var v *ir.Instruction
		if tok.Type == lexer.TokenPlus {
			v = p.b.Add(left.rvalue, right.rvalue)
		} else {
			v = p.b.Sub(left.rvalue, right.rvalue)
		}
		left = exprValue{rvalue: v}
	}
}

// parsePostfix handles `.attr` and `(args)` chains. Only the unadorned
// terminal (an identifier or an attribute access) can be an lvalue; a
// call's result cannot.
func (p *Parser) parsePostfix() (exprValue, error) {
	left, err := p.parseTerminal()
	if err != nil {
		return exprValue{}, err
	}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return exprValue{}, err
		}
		switch tok.Type {
		case lexer.TokenDot:
			if _, err := p.lex.Next(); err != nil {
				return exprValue{}, err
			}
			nameTok, err := p.expect(lexer.TokenIdent)
			if err != nil {
				return exprValue{}, err
			}
			name := p.symbols.Intern(nameTok.Text)
			loc := p.b.GetAttr(left.rvalue, name)
			val := p.b.GetLoc(loc)
			left = exprValue{rvalue: val, kind: lvAttr, name: name, obj: left.rvalue}
		case lexer.TokenLeftParen:
			if _, err := p.lex.Next(); err != nil {
				return exprValue{}, err
			}
			call := p.b.Call(left.rvalue)
			closeParen, err := p.peekIs(lexer.TokenRightParen)
			if err != nil {
				return exprValue{}, err
			}
			if !closeParen {
				for {
					arg, err := p.parseExpression()
					if err != nil {
						return exprValue{}, err
					}
					p.b.CallArgument(call, arg)
					more, err := p.peekIs(lexer.TokenComma)
					if err != nil {
						return exprValue{}, err
					}
					if !more {
						break
					}
					if _, err := p.lex.Next(); err != nil {
						return exprValue{}, err
					}
				}
			}
			if _, err := p.expect(lexer.TokenRightParen); err != nil {
				return exprValue{}, err
			}
			left = exprValue{rvalue: call}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseTerminal() (exprValue, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return exprValue{}, err
	}
	switch tok.Type {
	case lexer.TokenIdent:
		if _, err := p.lex.Next(); err != nil {
			return exprValue{}, err
		}
		name := p.symbols.Intern(tok.Text)
		v, err := p.b.GetVariable(name)
		if err != nil {
			// A name with no local binding that is immediately called is a
			// top-level function, resolved at run time through Global.
			next, perr := p.lex.Peek()
			if perr != nil {
				return exprValue{}, perr
			}
			if next.Type == lexer.TokenLeftParen {
				return exprValue{rvalue: p.b.Global(name)}, nil
			}
			return exprValue{}, errors.Wrapf(err, "parser: line %d", tok.Line)
		}
		return exprValue{rvalue: v, kind: lvIdent, name: name}, nil
	case lexer.TokenNumber:
		if _, err := p.lex.Next(); err != nil {
			return exprValue{}, err
		}
		n, err := strconv.ParseInt(tok.Text, 10, 32)
		if err != nil {
			return exprValue{}, errors.Wrapf(err, "parser: line %d: invalid number %q", tok.Line, tok.Text)
		}
		return exprValue{rvalue: p.b.Int(int32(n))}, nil
	case lexer.TokenLeftParen:
		if _, err := p.lex.Next(); err != nil {
			return exprValue{}, err
		}
		v, err := p.parseExpression()
		if err != nil {
			return exprValue{}, err
		}
		if _, err := p.expect(lexer.TokenRightParen); err != nil {
			return exprValue{}, err
		}
		return exprValue{rvalue: v}, nil
	case lexer.TokenLeftBrace:
		if _, err := p.lex.Next(); err != nil {
			return exprValue{}, err
		}
		if _, err := p.expect(lexer.TokenRightBrace); err != nil {
			return exprValue{}, err
		}
		return exprValue{rvalue: p.b.NewObject()}, nil
	default:
		return exprValue{}, errors.Errorf("parser: line %d: unexpected %s, want an expression", tok.Line, tok.Type.Name())
	}
}

// --- helpers ---

func (p *Parser) expect(t lexer.TokenType) (lexer.Token, error) {
	tok, err := p.lex.Next()
	if err != nil {
		return lexer.Token{}, err
	}
	if tok.Type != t {
		return lexer.Token{}, errors.Errorf("parser: line %d: expected %s, got %s", tok.Line, t.Name(), tok.Type.Name())
	}
	return tok, nil
}

func (p *Parser) peekIs(t lexer.TokenType) (bool, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return false, err
	}
	return tok.Type == t, nil
}

func (p *Parser) declare(name intern.Symbol) {
	if !p.seen[name] {
		p.seen[name] = true
		p.vars = append(p.vars, name)
	}
}

func (p *Parser) currentLiveVars() []intern.Symbol {
	return append([]intern.Symbol(nil), p.vars...)
}

// addPhiParams adds one block parameter per name, in order, and returns the
// resulting instructions (so callers can grab, e.g., the last one for a
// synthetic short-circuit result).
func (p *Parser) addPhiParams(blk *ir.Block, names []intern.Symbol) []*ir.Instruction {
	p.b.EnterBlock(blk)
	params := make([]*ir.Instruction, len(names))
	for i, name := range names {
		params[i] = p.b.AddParameter(name)
	}
	return params
}

// branchArgsFor reads names out of the current block's variable map, in
// order, for use as a Branch's positional arguments into a block whose
// parameters were built from the same name list.
func (p *Parser) branchArgsFor(names []intern.Symbol) []*ir.Instruction {
	args := make([]*ir.Instruction, len(names))
	for i, name := range names {
		v, err := p.b.GetVariable(name)
		if err != nil {
			panic(fmt.Sprintf("parser: internal error: live variable %q unbound", name))
		}
		args[i] = v
	}
	return args
}

func (p *Parser) fresh(prefix string) intern.Symbol {
	p.freshN++
	return p.symbols.Intern(fmt.Sprintf("$%s%d", prefix, p.freshN))
}
