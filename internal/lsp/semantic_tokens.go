package lsp

import (
	"strings"

	"kestrel/internal/lexer"
	"kestrel/internal/token"
)

type paramScope struct {
	names map[string]bool
	depth int
	expr  bool
}

// semState walks the token stream once, tracking just enough context to tell
// declarations, parameters, methods and definitions apart.
type semState struct {
	toks []token.Token
	out  []SemTok

	types  map[string]bool
	consts map[string]bool

	depth     int
	scopes    []paramScope
	defDepths []int

	expectFnName bool
	staticNext   bool
	expectType   bool
	afterDefName bool

	paramDepth int // 0 when not inside a parameter list
	inPipes    bool
	pending    map[string]bool
	openBody   bool
}

// SemanticTokensForText returns unencoded semantic tokens for the given source text.
func SemanticTokensForText(text string) []SemTok {
	lx := lexer.New(text)
	s := &semState{types: map[string]bool{}, consts: map[string]bool{}}
	for {
		tok := lx.NextToken()
		if tok.Type == token.EOF {
			break
		}
		s.toks = append(s.toks, tok)
	}
	for i, tok := range s.toks {
		if tok.Type != token.IDENT || i == 0 {
			continue
		}
		switch s.toks[i-1].Type {
		case token.DEF:
			s.types[tok.Literal] = true
		case token.CONST:
			s.consts[tok.Literal] = true
		}
	}
	for i := range s.toks {
		s.step(i)
	}
	return s.out
}

func (s *semState) prev(i int) token.Type {
	if i == 0 {
		return ""
	}
	return s.toks[i-1].Type
}

func (s *semState) next(i int) token.Type {
	if i+1 >= len(s.toks) {
		return token.EOF
	}
	return s.toks[i+1].Type
}

func (s *semState) emit(tok token.Token, typ, mods int) {
	length := len(tok.Literal)
	if tok.Raw != "" {
		length = len(tok.Raw)
	}
	if length == 0 {
		length = 1
	}
	s.out = append(s.out, SemTok{Line: tok.Line, Col: tok.Col, Length: length, Type: typ, Mods: mods})
}

func (s *semState) isParam(name string) bool {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if s.scopes[i].names[name] {
			return true
		}
	}
	return false
}

func (s *semState) step(i int) {
	tok := s.toks[i]

	if s.openBody {
		s.openBody = false
		if tok.Type == token.LBRACE {
			s.scopes = append(s.scopes, paramScope{names: s.pending, depth: s.depth + 1})
		} else {
			s.scopes = append(s.scopes, paramScope{names: s.pending, depth: s.depth, expr: true})
		}
		s.pending = nil
	}

	switch tok.Type {
	case token.IDENT:
		s.ident(i, tok)
	case token.FN:
		s.expectFnName = true
		s.emit(tok, ttKeyword, 0)
	case token.STATIC:
		s.staticNext = true
		s.emit(tok, ttKeyword, 0)
	case token.DEF:
		s.expectType = true
		s.emit(tok, ttKeyword, 0)
	case token.PIPE:
		if s.inPipes {
			s.inPipes = false
			s.openBody = true
		} else if s.paramDepth == 0 {
			s.inPipes = true
			s.pending = map[string]bool{}
		}
	case token.LPAREN, token.LBRACKET, token.LBRACE:
		s.depth++
		if tok.Type == token.LPAREN && s.prev(i) == token.FN || tok.Type == token.LPAREN && s.expectFnName {
			s.paramDepth = s.depth
			s.pending = map[string]bool{}
		}
		if tok.Type == token.LBRACE && s.afterDefName {
			s.defDepths = append(s.defDepths, s.depth)
		}
		s.expectFnName = false
		s.afterDefName = false
	case token.RPAREN, token.RBRACKET, token.RBRACE:
		if tok.Type == token.RPAREN && s.paramDepth > 0 && s.depth == s.paramDepth {
			s.paramDepth = 0
			s.openBody = true
		}
		s.depth--
		for len(s.defDepths) > 0 && s.depth < s.defDepths[len(s.defDepths)-1] {
			s.defDepths = s.defDepths[:len(s.defDepths)-1]
		}
	default:
		if tt, ok := Classify(tok); ok {
			s.emit(tok, tt, 0)
			if tok.Type == token.TEMPLATE {
				s.out = append(s.out, templateTokens(tok)...)
			}
		}
	}

	for len(s.scopes) > 0 {
		top := s.scopes[len(s.scopes)-1]
		closed := s.depth < top.depth
		if top.expr && s.depth == top.depth {
			switch tok.Type {
			case token.COMMA, token.SEMICOLON:
				closed = true
			}
		}
		if !closed {
			break
		}
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

func (s *semState) ident(i int, tok token.Token) {
	prev := s.prev(i)

	if s.expectFnName {
		s.expectFnName = prev == token.FN
		mods := modDecl
		if s.staticNext {
			mods |= modStatic
		}
		s.staticNext = false
		if n := len(s.defDepths); n > 0 && s.depth == s.defDepths[n-1] {
			s.emit(tok, ttMethod, mods)
		} else {
			s.emit(tok, ttFunction, mods)
		}
		return
	}
	if s.expectType {
		s.expectType = false
		s.afterDefName = true
		s.emit(tok, ttType, modDecl)
		return
	}
	if s.afterDefName && prev == token.COLON {
		s.emit(tok, ttType, 0)
		return
	}

	inParams := s.inPipes || (s.paramDepth > 0 && s.depth == s.paramDepth)
	if inParams && (prev == token.LPAREN || prev == token.PIPE || prev == token.COMMA || prev == token.ELLIPSIS) {
		s.pending[tok.Literal] = true
		s.emit(tok, ttParameter, modDecl)
		return
	}

	switch prev {
	case token.LET, token.CONST:
		if n := len(s.scopes); n > 0 && s.scopes[n-1].names[tok.Literal] {
			delete(s.scopes[n-1].names, tok.Literal)
		}
		mods := modDecl
		if prev == token.CONST {
			mods |= modReadonly
		}
		s.emit(tok, ttVariable, mods)
		return
	case token.DOT:
		if s.next(i) == token.LPAREN {
			s.emit(tok, ttMethod, 0)
		} else {
			s.emit(tok, ttVariable, 0)
		}
		return
	}

	switch {
	case s.isParam(tok.Literal):
		s.emit(tok, ttParameter, 0)
	case s.types[tok.Literal]:
		s.emit(tok, ttType, 0)
	case s.next(i) == token.LPAREN:
		s.emit(tok, ttFunction, 0)
	case s.consts[tok.Literal]:
		s.emit(tok, ttVariable, modReadonly)
	default:
		s.emit(tok, ttVariable, 0)
	}
}

// templateTokens classifies the expressions embedded in a single-line
// interpolated string.
func templateTokens(tok token.Token) []SemTok {
	parts, err := lexer.SplitTemplate(tok.Literal)
	if err != nil || strings.Contains(tok.Literal, "\n") {
		return nil
	}
	var out []SemTok
	for _, part := range parts {
		if !part.IsExpr {
			continue
		}
		lx := lexer.New(part.Text)
		for {
			sub := lx.NextToken()
			if sub.Type == token.EOF {
				break
			}
			tt, ok := Classify(sub)
			if !ok {
				continue
			}
			length := len(sub.Literal)
			if sub.Raw != "" {
				length = len(sub.Raw)
			}
			out = append(out, SemTok{
				Line:   tok.Line,
				Col:    tok.Col + 1 + part.Offset + sub.Col - 1,
				Length: length,
				Type:   tt,
			})
		}
	}
	return out
}
