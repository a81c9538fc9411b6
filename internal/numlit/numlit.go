// Package numlit validates numeric literals as written in source: decimal,
// 0x, 0b and 0o integers, decimal floats with an optional exponent, and
// underscores between digits.
package numlit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrSyntax = errors.New("invalid number literal")
	ErrRange  = errors.New("number literal out of range")
)

func splitBase(lit string) (int, string) {
	if len(lit) < 2 || lit[0] != '0' {
		return 10, lit
	}
	switch lit[1] {
	case 'x', 'X':
		return 16, lit[2:]
	case 'b', 'B':
		return 2, lit[2:]
	case 'o', 'O':
		return 8, lit[2:]
	}
	return 10, lit
}

// ParseInt converts an integer literal, prefix and underscores included.
func ParseInt(lit string) (int64, error) {
	base, digits := splitBase(lit)
	clean, err := digitRun(digits, base)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(clean, base, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %s", ErrRange, lit)
		}
		return 0, fmt.Errorf("%w: %s", ErrSyntax, lit)
	}
	return v, nil
}

// NormalizeFloat checks a float literal and returns it with underscores
// removed, ready for strconv.ParseFloat.
func NormalizeFloat(lit string) (string, error) {
	if base, _ := splitBase(lit); base != 10 {
		return "", fmt.Errorf("%w: float cannot use a base prefix", ErrSyntax)
	}

	mantissa, exp, hasExp := strings.Cut(strings.ToLower(lit), "e")
	whole, frac, hasDot := strings.Cut(mantissa, ".")

	var b strings.Builder
	part, err := digitRun(whole, 10)
	if err != nil {
		return "", err
	}
	b.WriteString(part)
	if hasDot {
		part, err = digitRun(frac, 10)
		if err != nil {
			return "", err
		}
		b.WriteByte('.')
		b.WriteString(part)
	}
	if hasExp {
		b.WriteByte('e')
		if exp != "" && (exp[0] == '+' || exp[0] == '-') {
			b.WriteByte(exp[0])
			exp = exp[1:]
		}
		part, err = digitRun(exp, 10)
		if err != nil {
			return "", fmt.Errorf("%w: bad exponent", err)
		}
		b.WriteString(part)
	}
	return b.String(), nil
}

func ParseFloat(lit string) (float64, error) {
	norm, err := NormalizeFloat(lit)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %s", ErrRange, lit)
		}
		return 0, fmt.Errorf("%w: %s", ErrSyntax, lit)
	}
	return v, nil
}

// digitRun strips underscores from s after checking every digit is valid
// for base and each underscore sits between two digits.
func digitRun(s string, base int) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: digits required", ErrSyntax)
	}
	if s[0] == '_' || s[len(s)-1] == '_' || strings.Contains(s, "__") {
		return "", fmt.Errorf("%w: underscores must separate digits", ErrSyntax)
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '_' && digitValue(s[i]) >= base {
			return "", fmt.Errorf("%w: digit %q in base %d", ErrSyntax, s[i], base)
		}
	}
	return strings.ReplaceAll(s, "_", ""), nil
}

func digitValue(ch byte) int {
	switch {
	case '0' <= ch && ch <= '9':
		return int(ch - '0')
	case 'a' <= ch && ch <= 'f':
		return int(ch-'a') + 10
	case 'A' <= ch && ch <= 'F':
		return int(ch-'A') + 10
	}
	return 99
}
