package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"kestrel/internal/compiler"
	"kestrel/internal/config"
	"kestrel/internal/diag"
	"kestrel/internal/gfx"
	"kestrel/internal/lexer"
	"kestrel/internal/limits"
	"kestrel/internal/logging"
	"kestrel/internal/lsp"
	"kestrel/internal/object"
	"kestrel/internal/parser"
	"kestrel/internal/repl"
	"kestrel/internal/runtimeio"
	"kestrel/internal/token"
	"kestrel/internal/vm"
)

// cli carries the process streams so commands can be driven from tests.
type cli struct {
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	interactive bool
}

func main() {
	c := cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, interactive: runtimeio.IsInteractive()}
	os.Exit(c.run(os.Args[1:]))
}

type runFlags struct {
	tokens    bool
	ast       bool
	trace     bool
	verbosity int
	logFile   string
	maxSteps  int64
	maxFrames int
	maxMemory int64
}

func (c cli) run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "init":
			return c.runInit(args[1:])
		case "test":
			return c.runTest(args[1:])
		}
	}

	var f runFlags
	fs := flag.NewFlagSet("kestrel", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.BoolVar(&f.tokens, "tokens", false, "print tokens instead of running")
	fs.BoolVar(&f.ast, "ast", false, "print AST instead of running")
	fs.BoolVar(&f.trace, "trace", false, "log every executed instruction (needs -v 4)")
	fs.IntVar(&f.verbosity, "v", -1, "log verbosity, overrides kestrel.toml")
	fs.StringVar(&f.logFile, "log", "", "log file, overrides kestrel.toml")
	fs.Int64Var(&f.maxSteps, "max-steps", -1, "instruction budget, 0 for unlimited")
	fs.IntVar(&f.maxFrames, "max-frames", -1, "call depth limit")
	fs.Int64Var(&f.maxMemory, "max-memory", -1, "allocation budget in bytes, 0 for unlimited")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	cmd := "repl"
	if len(rest) > 0 {
		cmd = rest[0]
		rest = rest[1:]
		switch cmd {
		case "run", "repl", "dis", "check", "gfx":
		default:
			cmd = "run"
			rest = fs.Args()
		}
	}

	if cmd == "repl" {
		if len(rest) != 0 || f.tokens || f.ast {
			fmt.Fprintln(c.stderr, "usage: kestrel repl")
			return 2
		}
		man, err := config.FindAndLoad(".")
		if err != nil {
			fmt.Fprintln(c.stderr, "config error:", err)
			return 1
		}
		c.configureLogging(man, f)
		repl.Start(c.stdin, c.stdout, repl.Options{
			Limits: c.limits(man, f),
			Quiet:  !c.interactive,
			Trace:  f.trace,
		})
		return 0
	}

	if cmd == "check" {
		targets := rest
		if len(targets) == 0 {
			_, entry, err := resolveTarget("")
			if err != nil {
				fmt.Fprintln(c.stderr, "check error:", err)
				return 1
			}
			targets = []string{entry}
		}
		return c.runCheck(targets)
	}

	if len(rest) > 1 {
		fmt.Fprintf(c.stderr, "usage: kestrel %s [file|dir]\n", cmd)
		return 2
	}
	target := ""
	if len(rest) == 1 {
		target = rest[0]
	}
	man, entry, err := resolveTarget(target)
	if err != nil {
		fmt.Fprintf(c.stderr, "%s error: %v\n", cmd, err)
		return 1
	}
	c.configureLogging(man, f)

	src, err := os.ReadFile(entry)
	if err != nil {
		fmt.Fprintln(c.stderr, "read error:", err)
		return 1
	}

	if f.tokens {
		l := lexer.New(string(src))
		for {
			tok := l.NextToken()
			fmt.Fprintf(c.stdout, "%4d:%-3d  %-10s  %q\n", tok.Line, tok.Col, tok.Type, tok.Literal)
			if tok.Type == token.EOF {
				break
			}
		}
		return 0
	}

	p := parser.New(lexer.New(string(src)))
	program := p.ParseProgram()
	if len(p.Errors()) > 0 {
		for _, d := range p.Diagnostics() {
			fmt.Fprintln(c.stderr, d.Format(entry))
		}
		return 1
	}
	if f.ast {
		fmt.Fprintln(c.stdout, program.String())
		return 0
	}

	in := object.NewInterner()
	fn, err := compiler.New(in).Compile(program)
	if err != nil {
		fmt.Fprintln(c.stderr, compileMessage(entry, err))
		return 1
	}
	logging.Compiler().Debugf("compiled %s", entry)

	if cmd == "dis" {
		fmt.Fprint(c.stdout, compiler.Disassemble(fn))
		return 0
	}

	m := vm.New(fn,
		vm.WithInterner(in),
		vm.WithLimits(c.limits(man, f)),
		vm.WithTrace(f.trace),
		vm.WithOutput(c.stdout),
	)

	if cmd == "gfx" {
		err = gfx.RunScript(m)
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err = m.RunContext(ctx)
		stop()
	}
	if err != nil {
		var re *vm.RuntimeError
		if errors.As(err, &re) {
			fmt.Fprintln(c.stderr, re.Report())
		} else {
			fmt.Fprintf(c.stderr, "%s error: %v\n", cmd, err)
		}
		return 1
	}
	return 0
}

func (c cli) configureLogging(man *config.Manifest, f runFlags) {
	verbosity := man.Log.Verbosity
	if f.verbosity >= 0 {
		verbosity = f.verbosity
	}
	path := man.Log.File
	if f.logFile != "" {
		path = f.logFile
	}
	logging.Configure(verbosity, path)
}

// limits starts from the manifest and applies any flag that was set.
func (c cli) limits(man *config.Manifest, f runFlags) limits.Limits {
	l := man.VMLimits()
	if f.maxSteps >= 0 {
		l.MaxSteps = f.maxSteps
	}
	if f.maxFrames > 0 {
		l.MaxFrames = f.maxFrames
	}
	if f.maxMemory >= 0 {
		l.MaxMemory = f.maxMemory
	}
	return l
}

// resolveTarget finds the script to run and the manifest that governs it.
// An empty target means the entry of the enclosing project; a directory
// must hold a kestrel.toml naming its entry.
func resolveTarget(target string) (*config.Manifest, string, error) {
	if target == "" {
		man, err := config.FindAndLoad(".")
		if err != nil {
			return nil, "", err
		}
		entry := man.EntryPath()
		if entry == "" {
			return nil, "", errors.New("no script given and no project.entry in " + config.FileName)
		}
		return man, entry, nil
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("path not found: %s", target)
		}
		return nil, "", err
	}
	if info.IsDir() {
		manifestPath := filepath.Join(target, config.FileName)
		man, err := config.LoadManifest(manifestPath)
		if err != nil {
			return nil, "", err
		}
		entry := man.EntryPath()
		if strings.TrimSpace(entry) == "" {
			return nil, "", fmt.Errorf("%s: missing project.entry", manifestPath)
		}
		return man, entry, nil
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, "", err
	}
	man, err := config.FindAndLoad(filepath.Dir(abs))
	if err != nil {
		return nil, "", err
	}
	return man, abs, nil
}

func compileMessage(path string, err error) string {
	d := diag.Diagnostic{Code: diag.CodeCompile, Message: err.Error()}
	var ce *compiler.Error
	if errors.As(err, &ce) {
		d.Message = ce.Message
		d.Range.Line = ce.Line
	}
	return d.Format(path)
}

// runCheck parses and compiles each file without running it.
func (c cli) runCheck(paths []string) int {
	failed := false
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(c.stderr, "check error:", err)
			failed = true
			continue
		}
		ds := lsp.Analyze(string(src))
		diag.Sort(ds)
		for _, d := range ds {
			fmt.Fprintln(c.stdout, d.Format(path))
		}
		if diag.HasErrors(ds) {
			failed = true
		}
	}
	if failed {
		return 1
	}
	return 0
}
