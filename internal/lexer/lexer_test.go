package lexer

import (
	"testing"

	"kestrel/internal/token"
)

func TestLexer_TourProgram(t *testing.T) {
	input := `fn add(a, b = 1, ...rest) {
  return a + b
}

let x = add(2, 3);
x += 1.5
/* block
   comment */
i++ // trailing
1..3 != 2.0e3
|y| y => not !x
def P : Q { static fn s() {} }`

	tests := []struct {
		typ  token.Type
		lit  string
		line int
	}{
		{token.FN, "fn", 1},
		{token.IDENT, "add", 1},
		{token.LPAREN, "(", 1},
		{token.IDENT, "a", 1},
		{token.COMMA, ",", 1},
		{token.IDENT, "b", 1},
		{token.ASSIGN, "=", 1},
		{token.INT, "1", 1},
		{token.COMMA, ",", 1},
		{token.ELLIPSIS, "...", 1},
		{token.IDENT, "rest", 1},
		{token.RPAREN, ")", 1},
		{token.LBRACE, "{", 1},

		{token.RETURN, "return", 2},
		{token.IDENT, "a", 2},
		{token.PLUS, "+", 2},
		{token.IDENT, "b", 2},
		{token.RBRACE, "}", 3},

		{token.LET, "let", 5},
		{token.IDENT, "x", 5},
		{token.ASSIGN, "=", 5},
		{token.IDENT, "add", 5},
		{token.LPAREN, "(", 5},
		{token.INT, "2", 5},
		{token.COMMA, ",", 5},
		{token.INT, "3", 5},
		{token.RPAREN, ")", 5},
		{token.SEMICOLON, ";", 5},

		{token.IDENT, "x", 6},
		{token.PLUS_ASSIGN, "+=", 6},
		{token.FLOAT, "1.5", 6},

		{token.IDENT, "i", 9},
		{token.INCR, "++", 9},

		{token.INT, "1", 10},
		{token.DOTDOT, "..", 10},
		{token.INT, "3", 10},
		{token.NE, "!=", 10},
		{token.FLOAT, "2.0e3", 10},

		{token.PIPE, "|", 11},
		{token.IDENT, "y", 11},
		{token.PIPE, "|", 11},
		{token.IDENT, "y", 11},
		{token.ARROW, "=>", 11},
		{token.NOT, "not", 11},
		{token.BANG, "!", 11},
		{token.IDENT, "x", 11},

		{token.DEF, "def", 12},
		{token.IDENT, "P", 12},
		{token.COLON, ":", 12},
		{token.IDENT, "Q", 12},
		{token.LBRACE, "{", 12},
		{token.STATIC, "static", 12},
		{token.FN, "fn", 12},
		{token.IDENT, "s", 12},
		{token.LPAREN, "(", 12},
		{token.RPAREN, ")", 12},
		{token.LBRACE, "{", 12},
		{token.RBRACE, "}", 12},
		{token.RBRACE, "}", 12},
		{token.EOF, "", 12},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.typ {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (lit=%q)", i, tt.typ, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.lit {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.lit, tok.Literal)
		}
		if tok.Line != tt.line {
			t.Fatalf("tests[%d] - line wrong. expected=%d, got=%d", i, tt.line, tok.Line)
		}
	}
}

func TestLexer_StringEscapes(t *testing.T) {
	l := New(`"a\n\t\"b\"\\ \$x"`)
	tok := l.NextToken()
	if tok.Type != token.STRING {
		t.Fatalf("expected STRING, got %q", tok.Type)
	}
	if tok.Literal != "a\n\t\"b\"\\ $x" {
		t.Fatalf("unexpected literal %q", tok.Literal)
	}
	if tok.Raw != `"a\n\t\"b\"\\ \$x"` {
		t.Fatalf("unexpected raw %q", tok.Raw)
	}
}

func TestLexer_UnterminatedString(t *testing.T) {
	tok := New(`"abc`).NextToken()
	if tok.Type != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL, got %q", tok.Type)
	}
}

func TestLexer_Template(t *testing.T) {
	tok := New(`"sum: ${a + b["k"]}!"`).NextToken()
	if tok.Type != token.TEMPLATE {
		t.Fatalf("expected TEMPLATE, got %q", tok.Type)
	}
	parts, err := SplitTemplate(tok.Literal)
	if err != nil {
		t.Fatalf("split error: %v", err)
	}
	want := []TemplatePart{
		{Text: "sum: "},
		{Text: `a + b["k"]`, IsExpr: true},
		{Text: "!"},
	}
	if len(parts) != len(want) {
		t.Fatalf("expected %d parts, got %d", len(want), len(parts))
	}
	for i, w := range want {
		if parts[i].Text != w.Text || parts[i].IsExpr != w.IsExpr {
			t.Fatalf("parts[%d] - expected %+v, got %+v", i, w, parts[i])
		}
	}
}

func TestLexer_EscapedDollarIsNotTemplate(t *testing.T) {
	tok := New(`"\${x}"`).NextToken()
	if tok.Type != token.STRING {
		t.Fatalf("expected STRING, got %q", tok.Type)
	}
	if tok.Literal != "${x}" {
		t.Fatalf("unexpected literal %q", tok.Literal)
	}
}

func TestSplitTemplate_Empty(t *testing.T) {
	if _, err := SplitTemplate("a ${ } b"); err == nil {
		t.Fatal("expected error for empty interpolation")
	}
}

func TestLexer_NumberUnderscores(t *testing.T) {
	tok := New("1_000_000").NextToken()
	if tok.Type != token.INT || tok.Literal != "1000000" {
		t.Fatalf("expected INT 1000000, got %q %q", tok.Type, tok.Literal)
	}
}

func TestLexer_NumberBasesAndRaw(t *testing.T) {
	tests := []struct {
		input string
		typ   token.Type
		lit   string
	}{
		{"0xff", token.INT, "255"},
		{"0b1010", token.INT, "10"},
		{"0o17", token.INT, "15"},
		{"1_5.2_5", token.FLOAT, "15.25"},
		{"2e3", token.FLOAT, "2e3"},
	}
	for _, tt := range tests {
		tok := New(tt.input).NextToken()
		if tok.Type != tt.typ || tok.Literal != tt.lit {
			t.Fatalf("%s: expected %s %q, got %s %q", tt.input, tt.typ, tt.lit, tok.Type, tok.Literal)
		}
		if tok.Raw != tt.input {
			t.Fatalf("%s: expected raw to keep the source spelling, got %q", tt.input, tok.Raw)
		}
	}
}

func TestLexer_MalformedNumbers(t *testing.T) {
	for _, input := range []string{"1__0", "0b12", "0x", "1_"} {
		if tok := New(input).NextToken(); tok.Type != token.ILLEGAL {
			t.Fatalf("%s: expected ILLEGAL, got %s %q", input, tok.Type, tok.Literal)
		}
	}
}
