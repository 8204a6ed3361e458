package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func allTokens(t *testing.T, src string) []Token {
	l := New(src)
	var toks []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks
		}
	}
}

func TestLexerKeywordsAndPunctuation(t *testing.T) {
	toks := allTokens(t, "def f(a,b){ return a+b; }")
	types := make([]TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	require.Equal(t, []TokenType{
		TokenDef, TokenIdent, TokenLeftParen, TokenIdent, TokenComma, TokenIdent, TokenRightParen,
		TokenLeftBrace, TokenReturn, TokenIdent, TokenPlus, TokenIdent, TokenSemicolon, TokenRightBrace,
		TokenEOF,
	}, types)
}

func TestLexerComparisonOperators(t *testing.T) {
	toks := allTokens(t, "< > <= >= == !=")
	require.Equal(t, []TokenType{
		TokenLess, TokenGreater, TokenLessEqual, TokenGreaterEqual, TokenEqualEqual, TokenBangEqual, TokenEOF,
	}, []TokenType{toks[0].Type, toks[1].Type, toks[2].Type, toks[3].Type, toks[4].Type, toks[5].Type, toks[6].Type})
}

func TestLexerNumberAndIdent(t *testing.T) {
	toks := allTokens(t, "x123 456")
	require.Equal(t, TokenIdent, toks[0].Type)
	require.Equal(t, "x123", toks[0].Text)
	require.Equal(t, TokenNumber, toks[1].Type)
	require.Equal(t, "456", toks[1].Text)
}

func TestLexerSkipsLineComments(t *testing.T) {
	toks := allTokens(t, "let x = 1; // trailing comment\nreturn x;")
	require.Equal(t, TokenLet, toks[0].Type)
	last := toks[len(toks)-1]
	require.Equal(t, TokenEOF, last.Type)
}

func TestLexerPeekDoesNotConsume(t *testing.T) {
	l := New("let")
	p1, err := l.Peek()
	require.NoError(t, err)
	p2, err := l.Peek()
	require.NoError(t, err)
	require.Equal(t, p1, p2)
	n, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, p1, n)
}

func TestLexerRejectsUnknownCharacter(t *testing.T) {
	_, err := allTokensErr("@")
	require.Error(t, err)
}

func allTokensErr(src string) ([]Token, error) {
	l := New(src)
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return toks, err
		}
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks, nil
		}
	}
}
