// Package runtimeio reads from the controlling terminal for the input and
// getpass builtins and for REPL prompt decisions.
package runtimeio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrNotInteractive = errors.New("stdin is not a terminal")

var stdin = bufio.NewReader(os.Stdin)

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Input prints prompt and reads one line. Piped input is accepted as long
// as a line is available.
func Input(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(os.Stdout, prompt)
	}
	line, err := stdin.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("input: end of input")
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// GetPass reads a line without echo. It needs a terminal.
func GetPass(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNotInteractive
	}
	if prompt != "" {
		fmt.Fprint(os.Stdout, prompt)
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stdout)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
