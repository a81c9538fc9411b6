package code

import "encoding/binary"

type Opcode byte

const (
	OpConstant Opcode = iota // push constants[operand]
	OpNull
	OpTrue
	OpFalse
	OpPop
	OpPopN // operand: count (1 byte); closes upvalues above the new top
	OpDup
	OpDupTwo
	OpRotate // operand: depth (1 byte); moves the top value below the next depth values

	OpDefineGlobal // operand: nameConst (2 bytes)
	OpGetGlobal
	OpSetGlobal
	OpDefineLocal // operand: slot (1 byte); marker, value already in place
	OpGetLocal
	OpSetLocal
	OpGetUpvalue // operand: upvalue index (1 byte)
	OpSetUpvalue

	OpGetProperty // operand: nameConst (2 bytes)
	OpSetProperty
	OpGetBase
	OpGetIndex
	OpSetIndex

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNegate
	OpNot
	OpStringify // converts the top value to its display string (interpolation)

	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual

	OpJump             // operand: forward offset from the end of the operand
	OpJumpIfFalse      // pops the condition
	OpJumpIfFalseOrPop // keeps a falsy condition, pops a truthy one (and)
	OpJumpIfFalseNoPop // never pops (or)
	OpLoop             // operand: backward offset from the start of the instruction + 3

	OpCall         // operand: argc (1 byte)
	OpInvoke       // operands: nameConst (2 bytes), argc (1 byte)
	OpInvokeBase   // operands: nameConst (2 bytes), argc (1 byte)
	OpClosure      // operand: functionConst (2 bytes); followed by one capture per upvalue
	OpCaptureLocal // operand: enclosing local slot (1 byte)
	OpCaptureUpvalue
	OpReturn

	OpList  // operand: elementCount (2 bytes)
	OpDict  // operand: pairCount (2 bytes)
	OpRange // no operands (expects: start, end)

	OpDefinition // operand: nameConst (2 bytes)
	OpDerive     // no operands (expects: base, child); pops child
	OpMethod     // operand: nameConst (2 bytes) (expects: definition, closure)
)

type Instructions []byte

type Definition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*Definition{
	OpConstant:         {"OpConstant", []int{2}},
	OpNull:             {"OpNull", nil},
	OpTrue:             {"OpTrue", nil},
	OpFalse:            {"OpFalse", nil},
	OpPop:              {"OpPop", nil},
	OpPopN:             {"OpPopN", []int{1}},
	OpDup:              {"OpDup", nil},
	OpDupTwo:           {"OpDupTwo", nil},
	OpRotate:           {"OpRotate", []int{1}},
	OpDefineGlobal:     {"OpDefineGlobal", []int{2}},
	OpGetGlobal:        {"OpGetGlobal", []int{2}},
	OpSetGlobal:        {"OpSetGlobal", []int{2}},
	OpDefineLocal:      {"OpDefineLocal", []int{1}},
	OpGetLocal:         {"OpGetLocal", []int{1}},
	OpSetLocal:         {"OpSetLocal", []int{1}},
	OpGetUpvalue:       {"OpGetUpvalue", []int{1}},
	OpSetUpvalue:       {"OpSetUpvalue", []int{1}},
	OpGetProperty:      {"OpGetProperty", []int{2}},
	OpSetProperty:      {"OpSetProperty", []int{2}},
	OpGetBase:          {"OpGetBase", []int{2}},
	OpGetIndex:         {"OpGetIndex", nil},
	OpSetIndex:         {"OpSetIndex", nil},
	OpAdd:              {"OpAdd", nil},
	OpSub:              {"OpSub", nil},
	OpMul:              {"OpMul", nil},
	OpDiv:              {"OpDiv", nil},
	OpMod:              {"OpMod", nil},
	OpNegate:           {"OpNegate", nil},
	OpNot:              {"OpNot", nil},
	OpStringify:        {"OpStringify", nil},
	OpEqual:            {"OpEqual", nil},
	OpNotEqual:         {"OpNotEqual", nil},
	OpGreater:          {"OpGreater", nil},
	OpGreaterEqual:     {"OpGreaterEqual", nil},
	OpLess:             {"OpLess", nil},
	OpLessEqual:        {"OpLessEqual", nil},
	OpJump:             {"OpJump", []int{2}},
	OpJumpIfFalse:      {"OpJumpIfFalse", []int{2}},
	OpJumpIfFalseOrPop: {"OpJumpIfFalseOrPop", []int{2}},
	OpJumpIfFalseNoPop: {"OpJumpIfFalseNoPop", []int{2}},
	OpLoop:             {"OpLoop", []int{2}},
	OpCall:             {"OpCall", []int{1}},
	OpInvoke:           {"OpInvoke", []int{2, 1}},
	OpInvokeBase:       {"OpInvokeBase", []int{2, 1}},
	OpClosure:          {"OpClosure", []int{2}},
	OpCaptureLocal:     {"OpCaptureLocal", []int{1}},
	OpCaptureUpvalue:   {"OpCaptureUpvalue", []int{1}},
	OpReturn:           {"OpReturn", nil},
	OpList:             {"OpList", []int{2}},
	OpDict:             {"OpDict", []int{2}},
	OpRange:            {"OpRange", nil},
	OpDefinition:       {"OpDefinition", []int{2}},
	OpDerive:           {"OpDerive", nil},
	OpMethod:           {"OpMethod", []int{2}},
}

func Lookup(op Opcode) (*Definition, bool) {
	def, ok := definitions[op]
	return def, ok
}

// IsForwardJump reports whether op carries a forward offset patched by the
// compiler.
func IsForwardJump(op Opcode) bool {
	switch op {
	case OpJump, OpJumpIfFalse, OpJumpIfFalseOrPop, OpJumpIfFalseNoPop:
		return true
	}
	return false
}

func Make(op Opcode, operands ...int) Instructions {
	def, ok := definitions[op]
	if !ok {
		return Instructions{}
	}
	insLen := 1
	for _, w := range def.OperandWidths {
		insLen += w
	}

	ins := make([]byte, insLen)
	ins[0] = byte(op)

	offset := 1
	for i, o := range operands {
		w := def.OperandWidths[i]
		switch w {
		case 1:
			ins[offset] = byte(o)
		case 2:
			binary.BigEndian.PutUint16(ins[offset:], uint16(o))
		}
		offset += w
	}
	return ins
}

func ReadUint16(ins Instructions) uint16 {
	return binary.BigEndian.Uint16(ins)
}

func ReadUint8(ins Instructions) uint8 { return uint8(ins[0]) }

// JumpPatch records a patched forward jump: the operand slot and the byte
// offset it lands on.
type JumpPatch struct {
	Slot   int
	Target int
}

// Code is the instruction buffer of one function: bytes, a line per byte and
// the log of patched jumps.
type Code struct {
	Instructions Instructions
	Lines        []int
	Jumps        []JumpPatch
}

// Write appends an encoded instruction at line and returns its offset.
func (c *Code) Write(ins Instructions, line int) int {
	pos := len(c.Instructions)
	c.Instructions = append(c.Instructions, ins...)
	for range ins {
		c.Lines = append(c.Lines, line)
	}
	return pos
}

// Len is the current end of the buffer.
func (c *Code) Len() int { return len(c.Instructions) }

// LineAt returns the source line for byte offset ip, or 0 when unknown.
func (c *Code) LineAt(ip int) int {
	if ip < 0 || ip >= len(c.Lines) {
		return 0
	}
	return c.Lines[ip]
}

// PutUint16 overwrites the 2-byte operand at slot.
func (c *Code) PutUint16(slot int, v uint16) {
	binary.BigEndian.PutUint16(c.Instructions[slot:], v)
}
