package compiler

import (
	"errors"
	"fmt"
)

var (
	ErrJumpTooLarge        = errors.New("jump too large")
	ErrLoopTooLarge        = errors.New("loop too large")
	ErrTooManyConstants    = errors.New("too many constants")
	ErrTooManyLocals       = errors.New("too many locals")
	ErrTooManyUpvalues     = errors.New("too many upvalues")
	ErrTooManyParameters   = errors.New("too many parameters")
	ErrTooManyEntries      = errors.New("too many entries")
	ErrInvalidAssignTarget = errors.New("invalid assignment target")
	ErrUninitialized       = errors.New("uninitialized variable")
	ErrConstAssign         = errors.New("assignment to constant")
	ErrRedeclared          = errors.New("redeclared variable")
	ErrLoopControl         = errors.New("loop control outside loop")
	ErrInvalidReturn       = errors.New("invalid return")
	ErrSelfOutsideMethod   = errors.New("self outside method")
	ErrBaseMisuse          = errors.New("invalid use of base")
	ErrUnsupported         = errors.New("unsupported node")
)

// Error is a compile error. It is fatal to the compilation unit only.
type Error struct {
	Kind    error
	Line    int
	Message string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

func (c *Compiler) errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Line: c.line, Message: fmt.Sprintf(format, args...)}
}
