package scripttest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"kestrel/internal/limits"
)

func TestScripts(t *testing.T) {
	files, err := CollectFiles([]string{"testdata"})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(files) < 8 {
		t.Fatalf("expected the testdata scripts, got %d files", len(files))
	}
	for _, path := range files {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			exp, res, err := RunFile(context.Background(), path, Options{})
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			ok, reason, err := Check(exp, res, filepath.Dir(path))
			if err != nil {
				t.Fatalf("check failed: %v", err)
			}
			if !ok {
				t.Fatal(reason)
			}
		})
	}
}

func TestParseExpectation(t *testing.T) {
	exp, err := ParseExpectation("a.kes", "// expect: error contains \"boom\"\n// expect: stdout \"x\\n\"\nprint(1);\n// expect: ok\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.Outcome != OutcomeErrorContains || exp.Substring != "boom" {
		t.Fatalf("unexpected outcome %+v", exp)
	}
	if exp.Stdout.Mode != StdoutExact || exp.Stdout.Value != "x\n" {
		t.Fatalf("unexpected stdout expectation %+v", exp.Stdout)
	}

	bad := []string{
		"// expect: ok\n// expect: error\n",
		"// expect: stdout \"a\"\n// expect: stdout contains \"b\"\n",
		"// expect: sometimes\n",
		"// expect: stdout unquoted\n",
	}
	for _, src := range bad {
		if _, err := ParseExpectation("bad.kes", src); err == nil {
			t.Fatalf("expected error for %q", src)
		}
	}
}

func TestCheckReportsMismatches(t *testing.T) {
	res := Run(context.Background(), `print("hi");`, Options{})
	ok, reason, err := Check(&Expectation{Outcome: OutcomeOK, Stdout: StdoutExpectation{Mode: StdoutExact, Value: "bye\n"}}, res, "")
	if err != nil || ok {
		t.Fatalf("expected stdout mismatch, got ok=%v err=%v", ok, err)
	}
	if !strings.Contains(reason, "stdout mismatch") {
		t.Fatalf("unexpected reason %q", reason)
	}

	ok, reason, _ = Check(&Expectation{Outcome: OutcomeError}, res, "")
	if ok || reason != "expected error, got ok" {
		t.Fatalf("expected missing error to be reported, got %q", reason)
	}
}

func TestRunHonoursLimits(t *testing.T) {
	res := Run(context.Background(), `loop {}`, Options{Limits: limits.Limits{MaxSteps: 1000}})
	ok, reason, _ := Check(&Expectation{Outcome: OutcomeErrorKind, Substring: "step limit exceeded"}, res, "")
	if !ok {
		t.Fatal(reason)
	}
}

func TestRunReportsParseErrors(t *testing.T) {
	res := Run(context.Background(), `let = ;`, Options{})
	var pe *ParseError
	if !errors.As(res.Err, &pe) || len(pe.Messages) == 0 {
		t.Fatalf("expected ParseError, got %T (%v)", res.Err, res.Err)
	}
}

func TestIsTestFile(t *testing.T) {
	sep := string(filepath.Separator)
	cases := []struct {
		path string
		want bool
	}{
		{"a.test.kes", true},
		{"tests" + sep + "a.kes", true},
		{"x" + sep + "tests" + sep + "b.kes", true},
		{"src" + sep + "main.kes", false},
		{"tests" + sep + "notes.txt", false},
	}
	for _, tc := range cases {
		if got := IsTestFile(tc.path); got != tc.want {
			t.Fatalf("IsTestFile(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
