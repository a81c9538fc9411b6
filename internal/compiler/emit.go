package compiler

import (
	"math"

	"kestrel/internal/code"
	"kestrel/internal/object"
)

const maxConstants = 65536

func (c *Compiler) code() *code.Code { return c.fs.fn.Code }

func (c *Compiler) emit(op code.Opcode, operands ...int) int {
	return c.code().Write(code.Make(op, operands...), c.line)
}

// emitJump emits a forward branch with a placeholder operand and returns the
// operand slot for patchJump.
func (c *Compiler) emitJump(op code.Opcode) int {
	pos := c.emit(op, 0xffff)
	return pos + 1
}

func (c *Compiler) patchJump(slot int) error {
	return c.patchJumpTo(slot, c.code().Len())
}

func (c *Compiler) patchJumpTo(slot, target int) error {
	dist := target - (slot + 2)
	if dist > math.MaxUint16 {
		return c.errorf(ErrJumpTooLarge, "body too large to jump over")
	}
	cd := c.code()
	cd.PutUint16(slot, uint16(dist))
	cd.Jumps = append(cd.Jumps, code.JumpPatch{Slot: slot, Target: target})
	return nil
}

func (c *Compiler) emitLoop(loopStart int) error {
	offset := c.code().Len() - loopStart + 3
	if offset > math.MaxUint16 {
		return c.errorf(ErrLoopTooLarge, "loop body too large")
	}
	c.emit(code.OpLoop, offset)
	return nil
}

func (c *Compiler) addConstant(obj object.Object) (int, error) {
	fn := c.fs.fn
	if len(fn.Constants) >= maxConstants {
		return 0, c.errorf(ErrTooManyConstants, "too many constants in one function")
	}
	fn.Constants = append(fn.Constants, obj)
	return len(fn.Constants) - 1, nil
}

// makeConstant adds a scalar constant, reusing an equal earlier entry.
func (c *Compiler) makeConstant(obj object.Object) (int, error) {
	var key constKey
	switch v := obj.(type) {
	case *object.Integer, *object.Float:
		key = constKey{t: v.Type(), s: v.Inspect()}
	case *object.String:
		key = constKey{t: v.Type(), s: v.Value}
	default:
		return c.addConstant(obj)
	}
	if idx, ok := c.fs.constIndex[key]; ok {
		return idx, nil
	}
	idx, err := c.addConstant(obj)
	if err != nil {
		return 0, err
	}
	c.fs.constIndex[key] = idx
	return idx, nil
}

func (c *Compiler) emitConstant(obj object.Object) error {
	idx, err := c.makeConstant(obj)
	if err != nil {
		return err
	}
	c.emit(code.OpConstant, idx)
	return nil
}

// identifierConstant returns the constant index of an interned name.
func (c *Compiler) identifierConstant(name string) (int, error) {
	return c.makeConstant(c.interner.Intern(name))
}
