package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"kestrel/internal/ast"
	"kestrel/internal/compiler"
	"kestrel/internal/lexer"
	"kestrel/internal/limits"
	"kestrel/internal/logging"
	"kestrel/internal/object"
	"kestrel/internal/parser"
	"kestrel/internal/vm"
)

const (
	prompt1 = "kestrel> "
	prompt2 = "......> "
)

type Options struct {
	Limits limits.Limits
	// Quiet drops the banner and prompts, for piped input.
	Quiet bool
	Trace bool
}

// Session keeps compiler and VM state alive between inputs so globals and
// constants carry over.
type Session struct {
	interner *object.Interner
	compiler *compiler.Compiler
	machine  *vm.VM
	out      io.Writer
	opts     Options
}

func NewSession(out io.Writer, opts Options) *Session {
	in := object.NewInterner()
	return &Session{
		interner: in,
		compiler: compiler.New(in),
		out:      out,
		opts:     opts,
	}
}

// Eval runs one complete chunk of source. Errors are printed, not returned;
// the result reports whether the chunk ran cleanly.
func (s *Session) Eval(src string) bool {
	log := logging.Repl()

	p := parser.New(lexer.New(src))
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		printParserErrors(s.out, p.Errors())
		return false
	}

	fn, err := s.compiler.Compile(program)
	if err != nil {
		fmt.Fprintf(s.out, "compile error: %s\n", err)
		return false
	}

	if s.machine == nil {
		s.machine = vm.New(fn,
			vm.WithInterner(s.interner),
			vm.WithLimits(s.opts.Limits),
			vm.WithOutput(s.out),
			vm.WithTrace(s.opts.Trace),
		)
	} else {
		s.machine.Reinitialize(fn)
	}

	if err := s.machine.Run(); err != nil {
		var re *vm.RuntimeError
		if errors.As(err, &re) {
			fmt.Fprintln(s.out, re.Report())
		} else {
			fmt.Fprintln(s.out, err)
		}
		log.Debugf("clearing fault: %v", err)
		s.machine.ClearFault()
		return false
	}

	if endsWithExpression(program) {
		result := s.machine.LastPopped()
		if result != nil && result.Type() != object.NIL_OBJ {
			fmt.Fprintln(s.out, object.Repr(result))
		}
	}
	return true
}

func endsWithExpression(program *ast.Program) bool {
	if len(program.Statements) == 0 {
		return false
	}
	_, ok := program.Statements[len(program.Statements)-1].(*ast.ExpressionStatement)
	return ok
}

func Start(in io.Reader, out io.Writer, opts Options) {
	scanner := bufio.NewScanner(in)
	session := NewSession(out, opts)

	if !opts.Quiet {
		fmt.Fprint(out, "Kestrel REPL (Ctrl+D to exit)\n")
	}

	var buf strings.Builder
	var bal balance

	for {
		if !opts.Quiet {
			if buf.Len() == 0 {
				fmt.Fprint(out, prompt1)
			} else {
				fmt.Fprint(out, prompt2)
			}
		}

		if !scanner.Scan() {
			if !opts.Quiet {
				fmt.Fprint(out, "\n")
			}
			if buf.Len() > 0 {
				session.Eval(buf.String())
			}
			return
		}

		line := scanner.Text()
		trim := strings.TrimSpace(line)

		if buf.Len() == 0 && (trim == "exit" || trim == "quit") {
			return
		}

		buf.WriteString(line)
		buf.WriteString("\n")

		bal.update(line)
		if !bal.complete() {
			continue
		}

		src := buf.String()
		buf.Reset()
		bal = balance{}
		if strings.TrimSpace(src) == "" {
			continue
		}
		session.Eval(src)
	}
}

// balance tracks open brackets, strings and block comments across lines
// so a multi-line definition is read as one chunk.
type balance struct {
	braces, parens, brackets int
	inString, escaped        bool
	inBlockComment           bool
}

func (b *balance) complete() bool {
	return b.braces == 0 && b.parens == 0 && b.brackets == 0 && !b.inString && !b.inBlockComment
}

func (b *balance) update(line string) {
	for i := 0; i < len(line); i++ {
		ch := line[i]

		if b.inBlockComment {
			if ch == '*' && i+1 < len(line) && line[i+1] == '/' {
				b.inBlockComment = false
				i++
			}
			continue
		}

		if b.inString {
			if b.escaped {
				b.escaped = false
				continue
			}
			if ch == '\\' {
				b.escaped = true
				continue
			}
			if ch == '"' {
				b.inString = false
			}
			continue
		}

		if ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			break
		}
		if ch == '/' && i+1 < len(line) && line[i+1] == '*' {
			b.inBlockComment = true
			i++
			continue
		}

		switch ch {
		case '"':
			b.inString = true
		case '{':
			b.braces++
		case '}':
			if b.braces > 0 {
				b.braces--
			}
		case '(':
			b.parens++
		case ')':
			if b.parens > 0 {
				b.parens--
			}
		case '[':
			b.brackets++
		case ']':
			if b.brackets > 0 {
				b.brackets--
			}
		}
	}
}

func printParserErrors(out io.Writer, errs []string) {
	for _, e := range errs {
		fmt.Fprintf(out, "parse error: %s\n", e)
	}
}
