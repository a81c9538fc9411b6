package lsp

import (
	"strings"
	"unicode/utf16"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Lines indexes a document so 1-based byte positions from the lexer can be
// turned into LSP positions, which count UTF-16 code units.
type Lines []string

func SplitLines(text string) Lines {
	return strings.Split(text, "\n")
}

func byteColToUTF16(lineText string, byteCol int) uint32 {
	if byteCol <= 1 {
		return 0
	}
	limit := byteCol - 1
	if limit > len(lineText) {
		limit = len(lineText)
	}
	return uint32(utf16Len(lineText[:limit]))
}

func utf16Len(s string) int {
	count := 0
	for _, r := range s {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		count += n
	}
	return count
}

// Position converts a 1-based line and byte column.
func (ls Lines) Position(line, col int) protocol.Position {
	if line <= 0 {
		return protocol.Position{}
	}
	if line > len(ls) {
		return protocol.Position{Line: uint32(line - 1)}
	}
	return protocol.Position{Line: uint32(line - 1), Character: byteColToUTF16(ls[line-1], col)}
}

// Range covers byteLen bytes from line:col, at least one unit wide.
func (ls Lines) Range(line, col, byteLen int) protocol.Range {
	start := ls.Position(line, col)
	end := ls.Position(line, col+byteLen)
	if end.Character <= start.Character {
		end.Character = start.Character + 1
	}
	return protocol.Range{Start: start, End: end}
}

// LineRange covers the text of line, ignoring leading indentation.
func (ls Lines) LineRange(line int) protocol.Range {
	if line <= 0 || line > len(ls) {
		return ls.Range(line, 1, 1)
	}
	text := strings.TrimRight(ls[line-1], "\r")
	indent := len(text) - len(strings.TrimLeft(text, " \t"))
	return ls.Range(line, indent+1, len(text)-indent)
}

// End is the position just past the last character.
func (ls Lines) End() protocol.Position {
	if len(ls) == 0 {
		return protocol.Position{}
	}
	last := ls[len(ls)-1]
	return protocol.Position{Line: uint32(len(ls) - 1), Character: uint32(utf16Len(last))}
}
