package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"sort"

	"kestrel/internal/config"
	"kestrel/internal/scripttest"
)

// runTest runs every script test under the given paths and reports a
// summary. Each file states its expected outcome in `// expect:` comments.
func (c cli) runTest(args []string) int {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	verbose := fs.Bool("v", false, "print passing tests too")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(c.stderr, "usage: kestrel test [-v] [path|dir]...")
		return 2
	}

	targets := fs.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}
	files, err := scripttest.CollectFiles(targets)
	if err != nil {
		fmt.Fprintln(c.stderr, "test error:", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintln(c.stdout, "no tests found")
		return 0
	}
	sort.Strings(files)

	man, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintln(c.stderr, "test error:", err)
		return 1
	}
	opts := scripttest.Options{Limits: man.VMLimits()}

	passed, failed := 0, 0
	for _, path := range files {
		exp, res, err := scripttest.RunFile(context.Background(), path, opts)
		if err != nil {
			failed++
			fmt.Fprintf(c.stdout, "FAIL %s: %v\n", path, err)
			continue
		}
		ok, reason, err := scripttest.Check(exp, res, filepath.Dir(path))
		if err != nil {
			reason = err.Error()
		}
		if !ok || err != nil {
			failed++
			fmt.Fprintf(c.stdout, "FAIL %s: %s\n", path, reason)
			continue
		}
		passed++
		if *verbose {
			fmt.Fprintf(c.stdout, "ok   %s\n", path)
		}
	}
	fmt.Fprintf(c.stdout, "passed %d, failed %d\n", passed, failed)
	if failed > 0 {
		return 1
	}
	return 0
}
