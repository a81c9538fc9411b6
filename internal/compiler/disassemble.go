package compiler

import (
	"fmt"
	"strings"

	"kestrel/internal/object"
)

func FormatConstants(constants []object.Object) string {
	var b strings.Builder
	b.WriteString("== constants ==\n")
	for i, c := range constants {
		switch v := c.(type) {
		case *object.Integer:
			fmt.Fprintf(&b, "%04d INTEGER %d\n", i, v.Value)
		case *object.Float:
			fmt.Fprintf(&b, "%04d FLOAT %s\n", i, v.Inspect())
		case *object.String:
			fmt.Fprintf(&b, "%04d STRING %q\n", i, v.Value)
		case *object.Function:
			fmt.Fprintf(&b, "%04d FUNCTION %s (arity=%d defaults=%d upvalues=%d ins=%dB)\n",
				i, v.DisplayName(), v.Arity, v.DefaultCount, v.UpvalueCount, v.Code.Len())
		default:
			fmt.Fprintf(&b, "%04d %s %s\n", i, c.Type(), c.Inspect())
		}
	}
	return b.String()
}

// Disassemble renders fn and every function nested in its constants.
func Disassemble(fn *object.Function) string {
	var b strings.Builder
	disassemble(&b, fn, "script")
	return b.String()
}

func disassemble(b *strings.Builder, fn *object.Function, name string) {
	b.WriteString(fn.Code.Disassemble(name, func(i int) string {
		if i < 0 || i >= len(fn.Constants) {
			return "?"
		}
		return fn.Constants[i].Inspect()
	}))
	if len(fn.Constants) > 0 {
		b.WriteString(FormatConstants(fn.Constants))
	}
	for _, c := range fn.Constants {
		if nested, ok := c.(*object.Function); ok {
			b.WriteString("\n")
			disassemble(b, nested, nested.DisplayName())
		}
	}
}
