package code

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

func ReadOperands(def *Definition, ins Instructions) ([]int, int) {
	operands := make([]int, len(def.OperandWidths))
	offset := 0

	for i, w := range def.OperandWidths {
		switch w {
		case 1:
			operands[i] = int(ins[offset])
		case 2:
			operands[i] = int(binary.BigEndian.Uint16(ins[offset:]))
		default:
			panic("unsupported operand width")
		}
		offset += w
	}
	return operands, offset
}

func (ins Instructions) String() string {
	var out bytes.Buffer

	i := 0
	for i < len(ins) {
		op := Opcode(ins[i])
		def, ok := Lookup(op)
		if !ok {
			fmt.Fprintf(&out, "%04d UNKNOWN_OPCODE %d\n", i, op)
			i++
			continue
		}

		operands, read := ReadOperands(def, Instructions(ins[i+1:]))

		fmt.Fprintf(&out, "%04d %s", i, def.Name)
		for _, o := range operands {
			fmt.Fprintf(&out, " %d", o)
		}
		fmt.Fprintf(&out, "\n")

		i += 1 + read
	}

	return out.String()
}

// Disassemble renders the buffer with source lines and resolved jump
// targets. constant, when non-nil, describes the constant at an index.
func (c *Code) Disassemble(name string, constant func(int) string) string {
	var out bytes.Buffer
	fmt.Fprintf(&out, "== %s ==\n", name)

	ins := c.Instructions
	lastLine := -1
	i := 0
	for i < len(ins) {
		op := Opcode(ins[i])
		def, ok := Lookup(op)
		if !ok {
			fmt.Fprintf(&out, "%04d    | UNKNOWN_OPCODE %d\n", i, op)
			i++
			continue
		}

		line := c.LineAt(i)
		if line == lastLine {
			fmt.Fprintf(&out, "%04d    | ", i)
		} else {
			fmt.Fprintf(&out, "%04d %4d ", i, line)
			lastLine = line
		}

		operands, read := ReadOperands(def, ins[i+1:])
		fmt.Fprintf(&out, "%-20s", def.Name)
		for _, o := range operands {
			fmt.Fprintf(&out, " %d", o)
		}

		next := i + 1 + read
		switch {
		case IsForwardJump(op):
			fmt.Fprintf(&out, " -> %04d", next+operands[0])
		case op == OpLoop:
			fmt.Fprintf(&out, " -> %04d", next-operands[0])
		case constant != nil && len(def.OperandWidths) > 0 && def.OperandWidths[0] == 2 &&
			op != OpList && op != OpDict:
			fmt.Fprintf(&out, " '%s'", constant(operands[0]))
		}
		out.WriteString("\n")

		i = next
	}

	return out.String()
}
