package repl

import (
	"bytes"
	"strings"
	"testing"

	"kestrel/internal/limits"
)

func runREPL(t *testing.T, input string) string {
	t.Helper()
	var out bytes.Buffer
	Start(strings.NewReader(input), &out, Options{Limits: limits.Default(), Quiet: true})
	return out.String()
}

func TestGlobalsPersistAcrossLines(t *testing.T) {
	out := runREPL(t, "let x = 40;\nx + 2;\n")
	if out != "42\n" {
		t.Fatalf("expected 42, got %q", out)
	}
}

func TestOnlyTrailingExpressionIsEchoed(t *testing.T) {
	out := runREPL(t, "1 + 1;\nlet y = 3;\n\"s\";\nnil;\n")
	if out != "2\n\"s\"\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestMultiLineInput(t *testing.T) {
	input := `fn add(a, b) {
  return a + b;
}
let xs = [
  1,
  2
];
add(xs[0], xs[1]);
`
	out := runREPL(t, input)
	if out != "3\n" {
		t.Fatalf("expected 3, got %q", out)
	}
}

func TestRecoversAfterRuntimeError(t *testing.T) {
	out := runREPL(t, "let a = 1;\n1 / 0;\na + 1;\n")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 || !strings.Contains(out, "[line 1] in script") {
		t.Fatalf("expected runtime report, got %q", out)
	}
	if lines[len(lines)-1] != "2" {
		t.Fatalf("expected recovery to print 2, got %q", out)
	}
}

func TestCompileAndParseErrorsDoNotStopSession(t *testing.T) {
	out := runREPL(t, "const c = 1;\nc = 2;\nlet = ;\nc;\n")
	if !strings.Contains(out, "compile error: ") {
		t.Fatalf("expected compile error, got %q", out)
	}
	if !strings.Contains(out, "parse error: ") {
		t.Fatalf("expected parse error, got %q", out)
	}
	if !strings.HasSuffix(out, "1\n") {
		t.Fatalf("expected session to continue, got %q", out)
	}
}

func TestFailedCompileForgetsConsts(t *testing.T) {
	out := runREPL(t, "const k = 1; break;\nlet k = 2;\nk;\n")
	if !strings.Contains(out, "compile error: ") {
		t.Fatalf("expected compile error, got %q", out)
	}
	if strings.Contains(out, "already declared") || !strings.HasSuffix(out, "2\n") {
		t.Fatalf("expected k to be redeclarable, got %q", out)
	}
}

func TestClosureSurvivesRuntimeError(t *testing.T) {
	out := runREPL(t, "let g = nil;\n{ let x = 10; g = fn() { return x; }; let z = 1 / 0; }\nlet a = 1; let b = 2; g();\n")
	if !strings.Contains(out, "division by zero") {
		t.Fatalf("expected runtime report, got %q", out)
	}
	if !strings.HasSuffix(out, "\n10\n") {
		t.Fatalf("expected closure to return 10, got %q", out)
	}
}

func TestExitCommand(t *testing.T) {
	out := runREPL(t, "print(1);\nexit\nprint(2);\n")
	if out != "1\n" {
		t.Fatalf("expected exit to stop the session, got %q", out)
	}
}

func TestBalanceIgnoresStringsAndComments(t *testing.T) {
	var b balance
	b.update(`let s = "{ not a block"; // {`)
	if !b.complete() {
		t.Fatalf("strings and comments should not open blocks: %+v", b)
	}
	b.update(`fn f() { /* } */`)
	if b.complete() {
		t.Fatalf("expected open brace, got %+v", b)
	}
	b.update(`}`)
	if !b.complete() {
		t.Fatalf("expected balanced input, got %+v", b)
	}
}
