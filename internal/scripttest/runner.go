package scripttest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kestrel/internal/compiler"
	"kestrel/internal/lexer"
	"kestrel/internal/limits"
	"kestrel/internal/object"
	"kestrel/internal/parser"
	"kestrel/internal/vm"
)

// ParseError collects every parser message for a script.
type ParseError struct {
	Messages []string
}

func (e *ParseError) Error() string {
	return "parse error: " + strings.Join(e.Messages, "; ")
}

type Options struct {
	Limits   limits.Limits
	Builtins map[string]*object.Builtin
}

type Result struct {
	Stdout string
	Err    error
}

// Run compiles and executes src with print output captured.
func Run(ctx context.Context, src string, opts Options) Result {
	p := parser.New(lexer.New(src))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return Result{Err: &ParseError{Messages: errs}}
	}

	in := object.NewInterner()
	fn, err := compiler.New(in).Compile(program)
	if err != nil {
		return Result{Err: err}
	}

	if opts.Limits == (limits.Limits{}) {
		opts.Limits = limits.Default()
	}
	var out bytes.Buffer
	m := vm.New(fn, vm.WithInterner(in), vm.WithLimits(opts.Limits), vm.WithOutput(&out))
	if opts.Builtins != nil {
		m.DefineBuiltins(opts.Builtins)
	}
	err = m.RunContext(ctx)
	return Result{Stdout: out.String(), Err: err}
}

// RunFile reads path, parses its expectation header and runs it.
func RunFile(ctx context.Context, path string, opts Options) (*Expectation, Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, Result{}, err
	}
	exp, err := ParseExpectation(path, string(b))
	if err != nil {
		return nil, Result{}, err
	}
	return exp, Run(ctx, string(b), opts), nil
}

// Check reports whether res satisfies exp, with a reason when it does not.
func Check(exp *Expectation, res Result, baseDir string) (bool, string, error) {
	gotErr := ""
	if res.Err != nil {
		gotErr = res.Err.Error()
	}

	switch exp.Outcome {
	case OutcomeOK:
		if res.Err != nil {
			return false, "expected ok, got error: " + gotErr, nil
		}
	case OutcomeError:
		if res.Err == nil {
			return false, "expected error, got ok", nil
		}
	case OutcomeErrorContains:
		if res.Err == nil {
			return false, "expected error, got ok", nil
		}
		if !strings.Contains(gotErr, exp.Substring) {
			return false, fmt.Sprintf("error mismatch: expected to contain %q, got %q", exp.Substring, gotErr), nil
		}
	case OutcomeErrorKind:
		var re *vm.RuntimeError
		if !errors.As(res.Err, &re) {
			return false, fmt.Sprintf("expected runtime error of kind %q, got %v", exp.Substring, res.Err), nil
		}
		if re.Kind.Error() != exp.Substring {
			return false, fmt.Sprintf("error kind mismatch: expected %q, got %q", exp.Substring, re.Kind.Error()), nil
		}
	default:
		return false, "unknown expectation", nil
	}

	return MatchStdout(res.Stdout, exp.Stdout, baseDir)
}

// CollectFiles expands targets into script test files: *.test.kes anywhere,
// and any .kes file below a tests directory except tests/fixtures.
func CollectFiles(targets []string) ([]string, error) {
	var files []string
	seen := map[string]bool{}
	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if !seen[abs] {
			seen[abs] = true
			files = append(files, abs)
		}
		return nil
	}

	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if strings.HasSuffix(target, ".kes") {
				if err := add(target); err != nil {
					return nil, err
				}
			}
			continue
		}

		err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				switch d.Name() {
				case ".git", "node_modules", "fixtures":
					return filepath.SkipDir
				}
				return nil
			}
			if IsTestFile(path) {
				return add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func IsTestFile(path string) bool {
	if strings.HasSuffix(path, ".test.kes") {
		return true
	}
	if !strings.HasSuffix(path, ".kes") {
		return false
	}
	sep := string(os.PathSeparator)
	return strings.Contains(path, sep+"tests"+sep) || strings.HasPrefix(path, "tests"+sep)
}
