package vm

import (
	"errors"
	"fmt"
	"strings"

	"kestrel/internal/semantics"
)

var (
	ErrTypeMismatch    = semantics.ErrTypeMismatch
	ErrDivisionByZero  = semantics.ErrDivisionByZero
	ErrArity           = errors.New("arity mismatch")
	ErrUndefinedGlobal = errors.New("undefined variable")
	ErrUndefinedAssign = errors.New("assignment to undefined variable")
	ErrMissingProperty = errors.New("undefined property")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNotCallable     = errors.New("not callable")
	ErrStackOverflow   = errors.New("stack overflow")
	ErrStepLimit       = errors.New("step limit exceeded")
	ErrMemoryLimit     = errors.New("memory limit exceeded")
	ErrCancelled       = errors.New("cancelled")
	ErrRaised          = errors.New("raised")
	ErrRuntime         = errors.New("runtime error")

	// ErrFaulted is returned when a faulted VM is asked to run again
	// before ClearFault.
	ErrFaulted = errors.New("vm is faulted")
)

var errorKinds = []error{
	ErrTypeMismatch,
	ErrDivisionByZero,
	ErrArity,
	ErrUndefinedGlobal,
	ErrUndefinedAssign,
	ErrMissingProperty,
	ErrIndexOutOfRange,
	ErrNotCallable,
	ErrStackOverflow,
	ErrStepLimit,
	ErrMemoryLimit,
	ErrCancelled,
	ErrRaised,
}

func kindOf(err error) error {
	for _, k := range errorKinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrRuntime
}

// RuntimeError is returned by Run once the VM faults. Trace holds one line
// per active frame, innermost first.
type RuntimeError struct {
	Kind    error
	Message string
	Trace   []string
}

func (e *RuntimeError) Error() string { return e.Message }

func (e *RuntimeError) Unwrap() error { return e.Kind }

// Report is the message followed by the backtrace.
func (e *RuntimeError) Report() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, line := range e.Trace {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

// minRepeat is the shortest run of identical trace lines that gets folded.
const minRepeat = 7

func collapseTrace(lines []string) []string {
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); {
		j := i + 1
		for j < len(lines) && lines[j] == lines[i] {
			j++
		}
		run := j - i
		if run >= minRepeat {
			out = append(out, lines[i])
			out = append(out, fmt.Sprintf("... previous frame repeated %d more times", run-1))
		} else {
			out = append(out, lines[i:j]...)
		}
		i = j
	}
	return out
}

func (m *VM) backtrace() []string {
	lines := make([]string, 0, len(m.frames))
	for i := len(m.frames) - 1; i >= 0; i-- {
		f := m.frames[i]
		if f.cl.Fn == m.script {
			lines = append(lines, fmt.Sprintf("[line %d] in script", f.line()))
			continue
		}
		lines = append(lines, fmt.Sprintf("[line %d] in %s()", f.line(), f.cl.Fn.DisplayName()))
	}
	return collapseTrace(lines)
}

// fault raises a runtime error: it records the backtrace, marks the VM
// faulted and unwinds every frame.
func (m *VM) fault(kind error, format string, args ...any) error {
	return m.raise(&RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// faultFrom turns an error from the operator layer or a builtin into a
// runtime error. An error that already faulted the VM passes through.
func (m *VM) faultFrom(err error) error {
	var re *RuntimeError
	if errors.As(err, &re) && m.faulted {
		return err
	}
	return m.raise(&RuntimeError{Kind: kindOf(err), Message: err.Error()})
}

func (m *VM) raise(re *RuntimeError) error {
	re.Trace = m.backtrace()
	m.faulted = true
	m.log.Debugf("fault: %s (%d frames)", re.Message, len(m.frames))
	m.unwind()
	return re
}

// unwind drops every frame. Open upvalues are closed first so closures that
// outlive the fault keep their values rather than aliasing reused slots.
func (m *VM) unwind() {
	m.closeUpvalues(0)
	for i := 0; i < m.sp; i++ {
		m.stack[i] = nil
	}
	m.sp = 0
	m.frames = m.frames[:0]
	m.openUpvalues = m.openUpvalues[:0]
}
