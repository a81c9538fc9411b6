package lsp

import "sort"

// EncodeSemanticTokens packs toks into the relative five-integer form of
// textDocument/semanticTokens. Columns and lengths are converted from bytes
// to UTF-16 units using lines.
func EncodeSemanticTokens(lines Lines, toks []SemTok) []uint32 {
	sort.SliceStable(toks, func(i, j int) bool {
		if toks[i].Line != toks[j].Line {
			return toks[i].Line < toks[j].Line
		}
		return toks[i].Col < toks[j].Col
	})

	data := make([]uint32, 0, len(toks)*5)
	var prevLine, prevChar uint32
	for _, t := range toks {
		if t.Length <= 0 || t.Line <= 0 {
			continue
		}
		start := lines.Position(t.Line, t.Col)
		end := lines.Position(t.Line, t.Col+t.Length)
		length := end.Character - start.Character
		if length == 0 {
			continue
		}

		deltaChar := start.Character
		if start.Line == prevLine {
			deltaChar -= prevChar
		}
		data = append(data, start.Line-prevLine, deltaChar, length, uint32(t.Type), uint32(t.Mods))
		prevLine, prevChar = start.Line, start.Character
	}
	return data
}
