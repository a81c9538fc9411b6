package lsp

import (
	"reflect"
	"testing"
)

func TestSemanticTokensParameters(t *testing.T) {
	text := `fn area(w, h = 2) {
  let a = w * h;
  return a;
}
`

	toks := SemanticTokensForText(text)

	if !hasToken(toks, 1, 1, ttKeyword, 0) {
		t.Fatalf("expected keyword token at 1:1")
	}
	if !hasToken(toks, 1, 4, ttFunction, modDecl) {
		t.Fatalf("expected function declaration token at 1:4")
	}
	if !hasToken(toks, 1, 9, ttParameter, modDecl) || !hasToken(toks, 1, 12, ttParameter, modDecl) {
		t.Fatalf("expected parameter declaration tokens at 1:9 and 1:12")
	}
	if !hasToken(toks, 2, 7, ttVariable, modDecl) {
		t.Fatalf("expected variable declaration token at 2:7")
	}
	if !hasToken(toks, 2, 11, ttParameter, 0) || !hasToken(toks, 2, 15, ttParameter, 0) {
		t.Fatalf("expected parameter usage tokens at 2:11 and 2:15")
	}
	if !hasToken(toks, 3, 10, ttVariable, 0) {
		t.Fatalf("expected variable usage token at 3:10")
	}
}

func TestSemanticTokensDefinitionsAndLambdas(t *testing.T) {
	text := `def Point : Base {
  static fn origin() { return Point(0, 0); }
  fn init(x, y) { self.x = x; }
}
let f = |n| n + 1;
const LIMIT = 10;
print(LIMIT);
`

	toks := SemanticTokensForText(text)

	if !hasToken(toks, 1, 5, ttType, modDecl) || !hasToken(toks, 1, 13, ttType, 0) {
		t.Fatalf("expected definition and base type tokens on line 1")
	}
	if !hasToken(toks, 2, 13, ttMethod, modDecl|modStatic) {
		t.Fatalf("expected static method declaration at 2:13")
	}
	if !hasToken(toks, 2, 31, ttType, 0) {
		t.Fatalf("expected definition reference at 2:31")
	}
	if !hasToken(toks, 3, 6, ttMethod, modDecl) || !hasToken(toks, 3, 11, ttParameter, modDecl) {
		t.Fatalf("expected method and parameter declarations on line 3")
	}
	if !hasToken(toks, 3, 24, ttVariable, 0) || !hasToken(toks, 3, 28, ttParameter, 0) {
		t.Fatalf("expected property at 3:24 and parameter usage at 3:28")
	}
	if !hasToken(toks, 5, 10, ttParameter, modDecl) || !hasToken(toks, 5, 13, ttParameter, 0) {
		t.Fatalf("expected lambda parameter tokens on line 5")
	}
	if !hasToken(toks, 6, 7, ttVariable, modDecl|modReadonly) {
		t.Fatalf("expected readonly declaration at 6:7")
	}
	if !hasToken(toks, 7, 1, ttFunction, 0) || !hasToken(toks, 7, 7, ttVariable, modReadonly) {
		t.Fatalf("expected call and constant usage on line 7")
	}
}

func TestSemanticTokensLambdaScopeEnds(t *testing.T) {
	text := `let g = |n| n;
let n = 3;
n;
`
	toks := SemanticTokensForText(text)
	if !hasToken(toks, 3, 1, ttVariable, 0) {
		t.Fatalf("lambda parameter should not leak past its statement")
	}
}

func TestSemanticTokensTemplate(t *testing.T) {
	toks := SemanticTokensForText(`let s = "v=${x + 1}";`)
	if !hasToken(toks, 1, 9, ttString, 0) {
		t.Fatalf("expected string token at 1:9")
	}
	if !hasToken(toks, 1, 14, ttVariable, 0) {
		t.Fatalf("expected interpolated identifier at 1:14")
	}
}

func TestEncodeSemanticTokens(t *testing.T) {
	lines := SplitLines("fn main() {\n  let x = 1;\n}")
	toks := []SemTok{
		{Line: 2, Col: 3, Length: 3, Type: ttKeyword},
		{Line: 1, Col: 1, Length: 2, Type: ttKeyword},
		{Line: 1, Col: 4, Length: 4, Type: ttFunction, Mods: modDecl},
	}
	got := EncodeSemanticTokens(lines, toks)
	want := []uint32{0, 0, 2, 0, 0, 0, 3, 4, 4, 1, 1, 2, 3, 0, 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEncodeSemanticTokensUsesUTF16(t *testing.T) {
	text := "let s = \"é\"; s;"
	got := EncodeSemanticTokens(SplitLines(text), SemanticTokensForText(text))
	// let, s, =, "é", s: the string is four bytes but three UTF-16 units,
	// and the last s starts at character 13 rather than byte 14.
	want := []uint32{
		0, 0, 3, ttKeyword, 0,
		0, 4, 1, ttVariable, modDecl,
		0, 2, 1, ttOperator, 0,
		0, 2, 3, ttString, 0,
		0, 5, 1, ttVariable, 0,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func hasToken(toks []SemTok, line, col, typ, mods int) bool {
	for _, tok := range toks {
		if tok.Line == line && tok.Col == col && tok.Type == typ && tok.Mods == mods {
			return true
		}
	}
	return false
}
