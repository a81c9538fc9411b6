package lsp

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"kestrel/internal/ast"
	"kestrel/internal/lexer"
	"kestrel/internal/parser"
	"kestrel/internal/token"
)

// DocumentSymbols lists the top-level functions, definitions and variables
// of text. Definitions carry their methods as children. Statements that
// fail to parse are skipped.
func DocumentSymbols(text string) []protocol.DocumentSymbol {
	p := parser.New(lexer.New(text))
	program := p.ParseProgram()
	lines := SplitLines(text)

	out := []protocol.DocumentSymbol{}
	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *ast.FunctionStatement:
			if s.Name == nil || s.Function == nil {
				continue
			}
			out = append(out, symbol(lines, s.Token, s.Name, protocol.SymbolKindFunction, signature(s.Function)))
		case *ast.DefinitionStatement:
			if s.Name == nil {
				continue
			}
			detail := ""
			if s.Base != nil {
				detail = ": " + s.Base.Value
			}
			def := symbol(lines, s.Token, s.Name, protocol.SymbolKindClass, detail)
			for _, m := range s.Methods {
				if m == nil || m.Name == nil || m.Function == nil {
					continue
				}
				kind := protocol.SymbolKindMethod
				switch {
				case m.Name.Value == "init":
					kind = protocol.SymbolKindConstructor
				case m.Static:
					kind = protocol.SymbolKindFunction
				}
				child := symbol(lines, m.Function.Token, m.Name, kind, signature(m.Function))
				def.Children = append(def.Children, child)
				def.Range.End = child.Range.End
			}
			out = append(out, def)
		case *ast.LetStatement:
			if s.Name == nil {
				continue
			}
			kind := protocol.SymbolKindVariable
			if s.Const {
				kind = protocol.SymbolKindConstant
			}
			out = append(out, symbol(lines, s.Token, s.Name, kind, ""))
		}
	}
	return out
}

func symbol(lines Lines, start token.Token, name *ast.Identifier, kind protocol.SymbolKind, detail string) protocol.DocumentSymbol {
	sel := lines.Range(name.Token.Line, name.Token.Col, len(name.Value))
	sym := protocol.DocumentSymbol{
		Name:           name.Value,
		Kind:           kind,
		Range:          protocol.Range{Start: lines.Position(start.Line, start.Col), End: sel.End},
		SelectionRange: sel,
	}
	if detail != "" {
		sym.Detail = &detail
	}
	return sym
}

func signature(fn *ast.FunctionLiteral) string {
	names := make([]string, 0, len(fn.Parameters))
	for i, p := range fn.Parameters {
		if p == nil || p.Name == nil {
			continue
		}
		n := p.Name.Value
		if fn.Variadic && i == len(fn.Parameters)-1 {
			n = "..." + n
		} else if p.Default != nil {
			n += "?"
		}
		names = append(names, n)
	}
	return "(" + strings.Join(names, ", ") + ")"
}
