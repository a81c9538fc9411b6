package token

type Type string

type Token struct {
	Type    Type
	Literal string
	// Raw preserves the original lexeme when Literal is normalized (e.g., strings).
	Raw  string
	Line int
	Col  int
}

const (
	// Special
	ILLEGAL Type = "ILLEGAL"
	EOF     Type = "EOF"

	SEMICOLON Type = ";"

	// Identifiers + literals
	IDENT  Type = "IDENT"
	INT    Type = "INT"
	FLOAT  Type = "FLOAT"
	STRING Type = "STRING"
	// TEMPLATE is a string literal containing ${...} parts; Literal holds the
	// raw body between the quotes.
	TEMPLATE Type = "TEMPLATE"

	// Keywords
	LET      Type = "LET"
	CONST    Type = "CONST"
	FN       Type = "FN"
	RETURN   Type = "RETURN"
	IF       Type = "IF"
	ELSE     Type = "ELSE"
	WHILE    Type = "WHILE"
	DO       Type = "DO"
	FOR      Type = "FOR"
	IN       Type = "IN"
	LOOP     Type = "LOOP"
	BREAK    Type = "BREAK"
	CONTINUE Type = "CONTINUE"
	CASE     Type = "CASE"
	OF       Type = "OF"
	DEFAULT  Type = "DEFAULT"
	DEF      Type = "DEF"
	STATIC   Type = "STATIC"
	BASE     Type = "BASE"
	SELF     Type = "SELF"
	TRUE     Type = "TRUE"
	FALSE    Type = "FALSE"
	NIL      Type = "NIL"
	AND      Type = "AND"
	OR       Type = "OR"
	NOT      Type = "NOT"

	// Operators
	ASSIGN         Type = "="
	PLUS_ASSIGN    Type = "+="
	MINUS_ASSIGN   Type = "-="
	STAR_ASSIGN    Type = "*="
	SLASH_ASSIGN   Type = "/="
	PERCENT_ASSIGN Type = "%="
	PLUS           Type = "+"
	MINUS          Type = "-"
	STAR           Type = "*"
	SLASH          Type = "/"
	PERCENT        Type = "%"
	INCR           Type = "++"
	DECR           Type = "--"
	BANG           Type = "!"

	EQ Type = "=="
	NE Type = "!="
	LT Type = "<"
	LE Type = "<="
	GT Type = ">"
	GE Type = ">="

	// Delimiters
	COMMA    Type = ","
	COLON    Type = ":"
	DOT      Type = "."
	DOTDOT   Type = ".."
	ELLIPSIS Type = "..."
	ARROW    Type = "=>"
	PIPE     Type = "|"
	LPAREN   Type = "("
	RPAREN   Type = ")"
	LBRACKET Type = "["
	RBRACKET Type = "]"
	LBRACE   Type = "{"
	RBRACE   Type = "}"
)

var keywords = map[string]Type{
	"let":      LET,
	"const":    CONST,
	"fn":       FN,
	"return":   RETURN,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"do":       DO,
	"for":      FOR,
	"in":       IN,
	"loop":     LOOP,
	"break":    BREAK,
	"continue": CONTINUE,
	"case":     CASE,
	"of":       OF,
	"default":  DEFAULT,
	"def":      DEF,
	"static":   STATIC,
	"base":     BASE,
	"self":     SELF,
	"true":     TRUE,
	"false":    FALSE,
	"nil":      NIL,
	"and":      AND,
	"or":       OR,
	"not":      NOT,
}

func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Keywords returns the reserved words, used by the LSP for completion.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	return out
}
