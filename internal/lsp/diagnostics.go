package lsp

import (
	"errors"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"kestrel/internal/compiler"
	"kestrel/internal/diag"
	"kestrel/internal/lexer"
	"kestrel/internal/object"
	"kestrel/internal/parser"
)

// Analyze parses text and, when it parses cleanly, compiles it. Only the
// first compile error is reported since compilation stops there.
func Analyze(text string) []diag.Diagnostic {
	p := parser.New(lexer.New(text))
	program := p.ParseProgram()
	diags := append([]diag.Diagnostic{}, p.Diagnostics()...)
	if len(diags) > 0 || len(p.Errors()) > 0 {
		return diags
	}

	_, err := compiler.New(object.NewInterner()).Compile(program)
	if err == nil {
		return diags
	}
	d := diag.Diagnostic{
		Code:     diag.CodeCompile,
		Message:  err.Error(),
		Severity: diag.SeverityError,
		Range:    diag.Range{Line: 1, Col: 1},
	}
	var ce *compiler.Error
	if errors.As(err, &ce) {
		d.Message = ce.Message
		d.Range.Line = ce.Line
	}
	return append(diags, d)
}

func ToLspDiagnostics(text string, ds []diag.Diagnostic) []protocol.Diagnostic {
	lines := SplitLines(text)
	out := make([]protocol.Diagnostic, 0, len(ds))
	for _, d := range ds {
		var rng protocol.Range
		if d.Code == diag.CodeCompile {
			rng = lines.LineRange(d.Range.Line)
		} else {
			rng = lines.Range(d.Range.Line, d.Range.Col, max(1, d.Range.Length))
		}

		severity := protocol.DiagnosticSeverityError
		switch d.Severity {
		case diag.SeverityWarning:
			severity = protocol.DiagnosticSeverityWarning
		case diag.SeverityInfo:
			severity = protocol.DiagnosticSeverityInformation
		}

		pd := protocol.Diagnostic{
			Range:    rng,
			Severity: &severity,
			Source:   ptrString("kestrel"),
			Message:  d.Message,
		}
		if d.Code != "" {
			code := protocol.IntegerOrString{Value: d.Code}
			pd.Code = &code
		}
		out = append(out, pd)
	}
	return out
}

func ptrString(s string) *string { return &s }
