// Package scripttest runs .kes scripts against the directives in their
// leading comments. It backs both `kestrel test` and the Go tests over
// testdata scripts.
package scripttest

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeError
	OutcomeErrorContains
	OutcomeErrorKind
)

// Expectation is what a script's header asks of its run.
//
//	// expect: ok
//	// expect: error
//	// expect: error contains "division by zero"
//	// expect: error kind "stack overflow"
//	// expect: stdout "3\n"
//	// expect: stdout contains "done"
//	// expect: stdout file "out.txt"
//
// Directives must appear before the first non-comment line.
type Expectation struct {
	Outcome   Outcome
	Substring string
	Stdout    StdoutExpectation

	hasOutcome bool
}

func ParseExpectation(name, src string) (*Expectation, error) {
	exp := &Expectation{Outcome: OutcomeOK, Stdout: StdoutExpectation{Mode: StdoutNone}}
	hasStdout := false

	sc := bufio.NewScanner(strings.NewReader(src))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "//") {
			break
		}
		comment := strings.TrimSpace(strings.TrimPrefix(line, "//"))
		if !strings.HasPrefix(strings.ToLower(comment), "expect:") {
			continue
		}
		body := strings.TrimSpace(comment[len("expect:"):])
		lower := strings.ToLower(body)

		fail := func(format string, args ...any) error {
			return fmt.Errorf("%s:%d: %s", name, lineNo, fmt.Sprintf(format, args...))
		}
		outcome := func(o Outcome, prefix string) error {
			if exp.hasOutcome {
				return fail("multiple outcome expect directives")
			}
			exp.hasOutcome = true
			exp.Outcome = o
			if prefix == "" {
				return nil
			}
			sub, err := parseQuoted(body[len(prefix):])
			if err != nil {
				return fail("%v", err)
			}
			exp.Substring = sub
			return nil
		}
		stdout := func(mode StdoutMode, prefix string) error {
			if hasStdout {
				return fail("multiple stdout expect directives")
			}
			hasStdout = true
			val, err := parseQuoted(body[len(prefix):])
			if err != nil {
				return fail("%v", err)
			}
			exp.Stdout = StdoutExpectation{Mode: mode, Value: val}
			return nil
		}

		var err error
		switch {
		case lower == "ok":
			err = outcome(OutcomeOK, "")
		case lower == "error":
			err = outcome(OutcomeError, "")
		case strings.HasPrefix(lower, "error contains"):
			err = outcome(OutcomeErrorContains, "error contains")
		case strings.HasPrefix(lower, "error kind"):
			err = outcome(OutcomeErrorKind, "error kind")
		case strings.HasPrefix(lower, "stdout file"):
			err = stdout(StdoutFile, "stdout file")
		case strings.HasPrefix(lower, "stdout contains"):
			err = stdout(StdoutContains, "stdout contains")
		case strings.HasPrefix(lower, "stdout"):
			err = stdout(StdoutExact, "stdout")
		default:
			err = fail("invalid expect directive")
		}
		if err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return exp, nil
}

func parseQuoted(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw[0] != '"' {
		return "", fmt.Errorf("expected quoted string")
	}
	return strconv.Unquote(raw)
}
