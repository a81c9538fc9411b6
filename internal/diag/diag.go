// Package diag holds source diagnostics shared by the parser, the compiler
// front end, `kestrel check` and the language server.
package diag

import (
	"fmt"
	"sort"
)

// Codes identify the stage that produced a diagnostic.
const (
	CodeParse   = "KP0001"
	CodeCompile = "KC0001"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Range is a 1-based line and byte column. Length is in bytes and may be 0
// when only the line is known.
type Range struct {
	Line   int
	Col    int
	Length int
}

type Diagnostic struct {
	Code     string
	Message  string
	Severity Severity
	Range    Range
}

// Format renders d as path:line:col: severity code: message.
func (d Diagnostic) Format(path string) string {
	loc := fmt.Sprintf("%s:%d:%d", path, d.Range.Line, max(d.Range.Col, 1))
	if d.Code == "" {
		return fmt.Sprintf("%s: %s: %s", loc, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s %s: %s", loc, d.Severity, d.Code, d.Message)
}

func HasErrors(ds []Diagnostic) bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Sort orders ds by position, keeping the original order for ties.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Range.Line != ds[j].Range.Line {
			return ds[i].Range.Line < ds[j].Range.Line
		}
		return ds[i].Range.Col < ds[j].Range.Col
	})
}
