package lsp

import "kestrel/internal/token"

// semantic token type indices (must match TokenTypes order)
const (
	ttKeyword   = 0
	ttString    = 1
	ttNumber    = 2
	ttOperator  = 3
	ttFunction  = 4
	ttVariable  = 5
	ttParameter = 6
	ttType      = 7
	ttMethod    = 8
)

const (
	modDecl     = 1 << 0
	modReadonly = 1 << 1
	modStatic   = 1 << 2
)

// TokenTypes and TokenModifiers form the legend advertised to clients.
var (
	TokenTypes     = []string{"keyword", "string", "number", "operator", "function", "variable", "parameter", "type", "method"}
	TokenModifiers = []string{"declaration", "readonly", "static"}
)

type SemTok struct {
	Line   int
	Col    int
	Length int
	Type   int
	Mods   int
}

func Classify(tok token.Token) (int, bool) {
	switch tok.Type {
	case token.LET, token.CONST, token.FN, token.RETURN, token.IF, token.ELSE,
		token.WHILE, token.DO, token.FOR, token.IN, token.LOOP, token.BREAK,
		token.CONTINUE, token.CASE, token.OF, token.DEFAULT, token.DEF,
		token.STATIC, token.BASE, token.SELF, token.TRUE, token.FALSE,
		token.NIL, token.AND, token.OR, token.NOT:
		return ttKeyword, true

	case token.STRING, token.TEMPLATE:
		return ttString, true
	case token.INT, token.FLOAT:
		return ttNumber, true

	case token.ASSIGN, token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.STAR_ASSIGN,
		token.SLASH_ASSIGN, token.PERCENT_ASSIGN, token.PLUS, token.MINUS,
		token.STAR, token.SLASH, token.PERCENT, token.INCR, token.DECR,
		token.BANG, token.EQ, token.NE, token.LT, token.LE, token.GT, token.GE,
		token.DOTDOT, token.ELLIPSIS, token.ARROW:
		return ttOperator, true

	case token.IDENT:
		return ttVariable, true
	}
	return 0, false
}
