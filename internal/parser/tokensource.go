package parser

import "github.com/Totillity/ojit-sub000/internal/lexer"

// tokenSource is the interface both the real lexer and a replayed token
// buffer satisfy, letting the parser swap in a pre-scanned slice of tokens
// when it needs to parse the same span of source more than once in a
// different position in the generated code — the for-loop's step clause
// (see bufferedTokens).
type tokenSource interface {
	Peek() (lexer.Token, error)
	Next() (lexer.Token, error)
}

// bufferedTokens replays a fixed slice of already-scanned tokens. Used for
// a for-loop's step clause: the clause is scanned once, in source order,
// but its code must be emitted at the end of the loop body — after
// statements that appear later in the source text — so the tokens are
// captured once and re-walked through this type when the body's code has
// finished generating (internal/parser's parseFor).
type bufferedTokens struct {
	toks []lexer.Token
	pos  int
}

func (b *bufferedTokens) Peek() (lexer.Token, error) {
	if b.pos >= len(b.toks) {
		return lexer.Token{Type: lexer.TokenEOF}, nil
	}
	return b.toks[b.pos], nil
}

func (b *bufferedTokens) Next() (lexer.Token, error) {
	tok, err := b.Peek()
	if err != nil {
		return lexer.Token{}, err
	}
	if b.pos < len(b.toks) {
		b.pos++
	}
	return tok, nil
}
