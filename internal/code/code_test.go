package code

import (
	"strings"
	"testing"
)

func TestMake(t *testing.T) {
	tests := []struct {
		op       Opcode
		operands []int
		expected []byte
	}{
		{OpConstant, []int{65534}, []byte{byte(OpConstant), 255, 254}},
		{OpAdd, []int{}, []byte{byte(OpAdd)}},
		{OpGetLocal, []int{255}, []byte{byte(OpGetLocal), 255}},
		{OpInvoke, []int{65535, 3}, []byte{byte(OpInvoke), 255, 255, 3}},
		{OpClosure, []int{1}, []byte{byte(OpClosure), 0, 1}},
	}

	for _, tt := range tests {
		ins := Make(tt.op, tt.operands...)
		if len(ins) != len(tt.expected) {
			t.Fatalf("instruction has wrong length. want=%d, got=%d", len(tt.expected), len(ins))
		}
		for i, b := range tt.expected {
			if ins[i] != b {
				t.Fatalf("wrong byte at pos %d. want=%d, got=%d", i, b, ins[i])
			}
		}
	}
}

func TestReadOperands(t *testing.T) {
	tests := []struct {
		op        Opcode
		operands  []int
		bytesRead int
	}{
		{OpConstant, []int{65535}, 2},
		{OpPopN, []int{7}, 1},
		{OpInvokeBase, []int{300, 2}, 3},
	}

	for _, tt := range tests {
		ins := Make(tt.op, tt.operands...)
		def, ok := Lookup(tt.op)
		if !ok {
			t.Fatalf("definition not found: %d", tt.op)
		}
		operandsRead, n := ReadOperands(def, ins[1:])
		if n != tt.bytesRead {
			t.Fatalf("n wrong. want=%d, got=%d", tt.bytesRead, n)
		}
		for i, want := range tt.operands {
			if operandsRead[i] != want {
				t.Fatalf("operand wrong. want=%d, got=%d", want, operandsRead[i])
			}
		}
	}
}

func TestEveryOpcodeHasDefinition(t *testing.T) {
	for op := OpConstant; op <= OpMethod; op++ {
		if _, ok := Lookup(op); !ok {
			t.Fatalf("opcode %d has no definition", op)
		}
	}
}

func TestCodeWriteTracksLines(t *testing.T) {
	c := &Code{}
	c.Write(Make(OpConstant, 0), 1)
	pos := c.Write(Make(OpPop), 2)
	if pos != 3 {
		t.Fatalf("expected offset 3, got %d", pos)
	}
	if len(c.Lines) != len(c.Instructions) {
		t.Fatalf("lines/instructions length mismatch: %d vs %d", len(c.Lines), len(c.Instructions))
	}
	if c.LineAt(1) != 1 || c.LineAt(3) != 2 {
		t.Fatalf("unexpected lines %v", c.Lines)
	}
	if c.LineAt(99) != 0 {
		t.Fatal("expected 0 for out of range offset")
	}
}

func TestInstructionsString(t *testing.T) {
	c := &Code{}
	c.Write(Make(OpConstant, 2), 1)
	c.Write(Make(OpConstant, 65535), 1)
	c.Write(Make(OpAdd), 1)

	expected := `0000 OpConstant 2
0003 OpConstant 65535
0006 OpAdd
`
	if got := c.Instructions.String(); got != expected {
		t.Fatalf("instructions wrongly formatted.\nwant=%q\ngot=%q", expected, got)
	}
}

func TestDisassembleResolvesJumps(t *testing.T) {
	c := &Code{}
	c.Write(Make(OpTrue), 1)            // 0000
	c.Write(Make(OpJumpIfFalse, 1), 1)  // 0001 -> 0005
	c.Write(Make(OpNull), 2)            // 0004
	c.Write(Make(OpLoop, 8), 3)         // 0005 -> 0000
	c.Write(Make(OpGetGlobal, 0), 3)    // 0008
	out := c.Disassemble("main", func(i int) string { return "x" })

	for _, want := range []string{"== main ==", "OpJumpIfFalse", "-> 0005", "-> 0000", "'x'"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in disassembly:\n%s", want, out)
		}
	}
}
