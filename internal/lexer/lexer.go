package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"kestrel/internal/numlit"
	"kestrel/internal/token"
)

type Lexer struct {
	input string

	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination

	line int // 1-based
	col  int // 1-based column of current char
}

func New(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0, // readChar() will advance to col=1 for first char
	}
	l.readChar()
	return l
}

// NewAt starts a lexer whose positions are offset to line/col, used for
// expressions embedded in interpolated strings.
func NewAt(input string, line, col int) *Lexer {
	l := &Lexer{input: input, line: line, col: col - 1}
	l.readChar()
	return l
}

func (l *Lexer) NextToken() token.Token {
	for {
		l.skipWhitespace()

		if l.ch == '/' && l.peekChar() == '/' {
			l.skipLineComment()
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.skipBlockComment()
			continue
		}
		break
	}

	if l.ch == 0 {
		return l.newToken(token.EOF, "", l.line, l.col)
	}

	startLine, startCol := l.line, l.col
	startIdx := l.position

	switch l.ch {
	case ';':
		return l.single(token.SEMICOLON, startLine, startCol)
	case '(':
		return l.single(token.LPAREN, startLine, startCol)
	case ')':
		return l.single(token.RPAREN, startLine, startCol)
	case '{':
		return l.single(token.LBRACE, startLine, startCol)
	case '}':
		return l.single(token.RBRACE, startLine, startCol)
	case '[':
		return l.single(token.LBRACKET, startLine, startCol)
	case ']':
		return l.single(token.RBRACKET, startLine, startCol)
	case ',':
		return l.single(token.COMMA, startLine, startCol)
	case ':':
		return l.single(token.COLON, startLine, startCol)
	case '|':
		return l.single(token.PIPE, startLine, startCol)

	case '.':
		if l.peekChar() == '.' {
			l.readChar()
			if l.peekChar() == '.' {
				l.readChar()
				return l.single(token.ELLIPSIS, startLine, startCol)
			}
			return l.single(token.DOTDOT, startLine, startCol)
		}
		return l.single(token.DOT, startLine, startCol)

	case '+':
		switch l.peekChar() {
		case '+':
			return l.double(token.INCR, startLine, startCol)
		case '=':
			return l.double(token.PLUS_ASSIGN, startLine, startCol)
		}
		return l.single(token.PLUS, startLine, startCol)
	case '-':
		switch l.peekChar() {
		case '-':
			return l.double(token.DECR, startLine, startCol)
		case '=':
			return l.double(token.MINUS_ASSIGN, startLine, startCol)
		}
		return l.single(token.MINUS, startLine, startCol)
	case '*':
		if l.peekChar() == '=' {
			return l.double(token.STAR_ASSIGN, startLine, startCol)
		}
		return l.single(token.STAR, startLine, startCol)
	case '/':
		if l.peekChar() == '=' {
			return l.double(token.SLASH_ASSIGN, startLine, startCol)
		}
		return l.single(token.SLASH, startLine, startCol)
	case '%':
		if l.peekChar() == '=' {
			return l.double(token.PERCENT_ASSIGN, startLine, startCol)
		}
		return l.single(token.PERCENT, startLine, startCol)

	case '=':
		switch l.peekChar() {
		case '=':
			return l.double(token.EQ, startLine, startCol)
		case '>':
			return l.double(token.ARROW, startLine, startCol)
		}
		return l.single(token.ASSIGN, startLine, startCol)
	case '!':
		if l.peekChar() == '=' {
			return l.double(token.NE, startLine, startCol)
		}
		return l.single(token.BANG, startLine, startCol)
	case '<':
		if l.peekChar() == '=' {
			return l.double(token.LE, startLine, startCol)
		}
		return l.single(token.LT, startLine, startCol)
	case '>':
		if l.peekChar() == '=' {
			return l.double(token.GE, startLine, startCol)
		}
		return l.single(token.GT, startLine, startCol)

	case '"':
		return l.readStringToken(startLine, startCol, startIdx)
	}

	if isIdentStart(l.ch) {
		lit := l.readIdentifier()
		tt := token.LookupIdent(lit)
		return l.newToken(tt, lit, startLine, startCol)
	}

	if isDigit(l.ch) {
		raw, isFloat := l.readNumber()
		return l.numberToken(raw, isFloat, startLine, startCol)
	}

	illegal := string(l.ch)
	tok := l.newToken(token.ILLEGAL, illegal, startLine, startCol)
	l.readChar()
	return tok
}

func (l *Lexer) single(t token.Type, line, col int) token.Token {
	tok := l.newToken(t, string(t), line, col)
	l.readChar()
	return tok
}

func (l *Lexer) double(t token.Type, line, col int) token.Token {
	l.readChar()
	tok := l.newToken(t, string(t), line, col)
	l.readChar()
	return tok
}

func (l *Lexer) newToken(t token.Type, lit string, line, col int) token.Token {
	return token.Token{
		Type:    t,
		Literal: lit,
		Line:    line,
		Col:     col,
	}
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		return
	}

	l.ch = l.input[l.readPosition]
	l.position = l.readPosition
	l.readPosition++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}

func (l *Lexer) skipLineComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

func (l *Lexer) skipBlockComment() {
	l.readChar() // consume '/'
	l.readChar() // consume '*'

	for l.ch != 0 {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return
		}
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber() (string, bool) {
	start := l.position
	if l.ch == '0' && strings.IndexByte("xXbBoO", l.peekChar()) >= 0 {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		return l.input[start:l.position], false
	}
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	isFloat := false
	// "1..3" is a range, not a float.
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) || l.ch == '_' {
				l.readChar()
			}
		}
	}
	return l.input[start:l.position], isFloat
}

// numberToken validates a numeric lexeme. Literal carries the decimal form
// the parser expects; Raw keeps the source spelling.
func (l *Lexer) numberToken(raw string, isFloat bool, line, col int) token.Token {
	if isFloat {
		f, err := numlit.NormalizeFloat(raw)
		if err != nil {
			return l.newToken(token.ILLEGAL, err.Error(), line, col)
		}
		tok := l.newToken(token.FLOAT, f, line, col)
		tok.Raw = raw
		return tok
	}
	v, err := numlit.ParseInt(raw)
	if err != nil {
		return l.newToken(token.ILLEGAL, err.Error(), line, col)
	}
	tok := l.newToken(token.INT, strconv.FormatInt(v, 10), line, col)
	tok.Raw = raw
	return tok
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

// readStringToken scans a double-quoted literal. Strings without ${...} are
// unescaped into a STRING token; strings with interpolation come back as a
// TEMPLATE whose literal is the raw body, split later by SplitTemplate.
func (l *Lexer) readStringToken(startLine, startCol, startIdx int) token.Token {
	l.readChar() // move past opening quote
	bodyStart := l.position
	template := false
	depth := 0

	for {
		if l.ch == 0 {
			return l.newToken(token.ILLEGAL, "unterminated string", startLine, startCol)
		}
		if depth == 0 && l.ch == '"' {
			break
		}
		if l.ch == '\\' {
			l.readChar()
			if l.ch != 0 {
				l.readChar()
			}
			continue
		}
		if l.ch == '$' && l.peekChar() == '{' {
			template = true
			depth++
			l.readChar()
			l.readChar()
			continue
		}
		if depth > 0 {
			switch l.ch {
			case '{':
				depth++
			case '}':
				depth--
			case '"':
				l.skipNestedString()
				continue
			}
		}
		l.readChar()
	}

	body := l.input[bodyStart:l.position]
	l.readChar() // consume closing quote
	raw := l.input[startIdx:l.position]

	if template {
		tok := l.newToken(token.TEMPLATE, body, startLine, startCol)
		tok.Raw = raw
		return tok
	}
	s, err := Unescape(body)
	if err != nil {
		return l.newToken(token.ILLEGAL, err.Error(), startLine, startCol)
	}
	tok := l.newToken(token.STRING, s, startLine, startCol)
	tok.Raw = raw
	return tok
}

func (l *Lexer) skipNestedString() {
	l.readChar() // opening quote
	for l.ch != 0 && l.ch != '"' {
		if l.ch == '\\' {
			l.readChar()
		}
		l.readChar()
	}
	l.readChar() // closing quote
}

// Unescape resolves the escapes allowed in string literals.
func Unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' {
			b.WriteByte(ch)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("unterminated escape")
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case '$':
			b.WriteByte('$')
		case '0':
			b.WriteByte(0)
		default:
			return "", fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return b.String(), nil
}

// TemplatePart is one literal run or embedded expression of an
// interpolated string.
type TemplatePart struct {
	Text   string
	IsExpr bool
	// Offset is the byte offset of the part inside the template body.
	Offset int
}

// SplitTemplate splits a TEMPLATE body into literal and expression parts.
// Literal parts are unescaped.
func SplitTemplate(body string) ([]TemplatePart, error) {
	var parts []TemplatePart
	var lit strings.Builder
	litStart := 0
	flush := func() error {
		if lit.Len() == 0 {
			return nil
		}
		s, err := Unescape(lit.String())
		if err != nil {
			return err
		}
		parts = append(parts, TemplatePart{Text: s, Offset: litStart})
		lit.Reset()
		return nil
	}

	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch == '\\' && i+1 < len(body) {
			if lit.Len() == 0 {
				litStart = i
			}
			lit.WriteByte(ch)
			lit.WriteByte(body[i+1])
			i++
			continue
		}
		if ch == '$' && i+1 < len(body) && body[i+1] == '{' {
			if err := flush(); err != nil {
				return nil, err
			}
			start := i + 2
			depth := 1
			j := start
			for ; j < len(body) && depth > 0; j++ {
				switch body[j] {
				case '{':
					depth++
				case '}':
					depth--
				case '"':
					j++
					for j < len(body) && body[j] != '"' {
						if body[j] == '\\' {
							j++
						}
						j++
					}
				}
			}
			if depth != 0 {
				return nil, fmt.Errorf("unterminated ${ in string")
			}
			expr := body[start : j-1]
			if strings.TrimSpace(expr) == "" {
				return nil, fmt.Errorf("empty ${} in string")
			}
			parts = append(parts, TemplatePart{Text: expr, IsExpr: true, Offset: start})
			i = j - 1
			continue
		}
		if lit.Len() == 0 {
			litStart = i
		}
		lit.WriteByte(ch)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return parts, nil
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= 128 && unicode.IsLetter(rune(ch)))
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
