package vm

import (
	"kestrel/internal/code"
	"kestrel/internal/object"
)

// Frame is one active call. slot is the stack index of the callee (or
// receiver) and where the return value lands.
type Frame struct {
	cl   *object.Closure
	ip   int
	slot int
}

func NewFrame(cl *object.Closure, slot int) *Frame {
	return &Frame{cl: cl, ip: -1, slot: slot}
}

func (f *Frame) Instructions() code.Instructions { return f.cl.Fn.Code.Instructions }

func (f *Frame) constants() []object.Object { return f.cl.Fn.Constants }

func (f *Frame) line() int {
	ip := f.ip
	if ip < 0 {
		ip = 0
	}
	return f.cl.Fn.Code.LineAt(ip)
}
