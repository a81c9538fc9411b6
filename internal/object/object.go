package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"kestrel/internal/code"
)

type Type string

const (
	INTEGER_OBJ      Type = "INTEGER"
	FLOAT_OBJ        Type = "FLOAT"
	STRING_OBJ       Type = "STRING"
	BOOLEAN_OBJ      Type = "BOOLEAN"
	NIL_OBJ          Type = "NIL"
	LIST_OBJ         Type = "LIST"
	DICT_OBJ         Type = "DICT"
	RANGE_OBJ        Type = "RANGE"
	FUNCTION_OBJ     Type = "FUNCTION"
	CLOSURE_OBJ      Type = "CLOSURE"
	DEFINITION_OBJ   Type = "DEFINITION"
	INSTANCE_OBJ     Type = "INSTANCE"
	BOUND_METHOD_OBJ Type = "BOUND_METHOD"
	BUILTIN_OBJ      Type = "BUILTIN"
	ITERATOR_OBJ     Type = "ITERATOR"
	RESULT_OBJ       Type = "RESULT"
)

type Object interface {
	Type() Type
	Inspect() string
}

var (
	NIL   = &Nil{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

// Bool returns the shared boolean value for b.
func Bool(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

type Integer struct{ Value int64 }

func (*Integer) Type() Type        { return INTEGER_OBJ }
func (i *Integer) Inspect() string { return strconv.FormatInt(i.Value, 10) }

type Float struct{ Value float64 }

func (*Float) Type() Type { return FLOAT_OBJ }

// Inspect keeps a trailing ".0" on integral values so 3.0 never prints as an
// integer.
func (f *Float) Inspect() string {
	s := strconv.FormatFloat(f.Value, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

type String struct{ Value string }

func (*String) Type() Type        { return STRING_OBJ }
func (s *String) Inspect() string { return s.Value }

type Boolean struct{ Value bool }

func (*Boolean) Type() Type { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string {
	if b.Value {
		return "true"
	}
	return "false"
}

type Nil struct{}

func (*Nil) Type() Type      { return NIL_OBJ }
func (*Nil) Inspect() string { return "nil" }

type List struct {
	Elements []Object
}

func (*List) Type() Type { return LIST_OBJ }
func (l *List) Inspect() string {
	var out bytes.Buffer
	out.WriteString("[")
	for i, el := range l.Elements {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(Repr(el))
	}
	out.WriteString("]")
	return out.String()
}

// Range is the half-open integer interval [Start, End).
type Range struct {
	Start int64
	End   int64
}

func (*Range) Type() Type { return RANGE_OBJ }
func (r *Range) Inspect() string {
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// Len is the number of integers in the range, never negative.
func (r *Range) Len() int64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Function is a compiled prototype. It is a constant of the enclosing
// function; the runtime value is a Closure over it.
type Function struct {
	Name         string
	Arity        int
	Code         *code.Code
	Constants    []Object
	IsLambda     bool
	IsVariadic   bool
	IsStatic     bool
	DefaultCount int
	UpvalueCount int
}

func (*Function) Type() Type { return FUNCTION_OBJ }
func (f *Function) Inspect() string {
	return fmt.Sprintf("<fn %s>", f.DisplayName())
}

// DisplayName is the name used in backtraces.
func (f *Function) DisplayName() string {
	switch {
	case f.Name != "":
		return f.Name
	case f.IsLambda:
		return "<lambda>"
	default:
		return "<anonymous>"
	}
}

// Upvalue is a captured variable. While Open it aliases stack slot Slot of a
// live frame; once closed it owns Value.
type Upvalue struct {
	Slot  int
	Open  bool
	Value Object
}

type Closure struct {
	Fn       *Function
	Upvalues []*Upvalue
	// Defaults maps a 1-based parameter position to its default value.
	Defaults map[int]Object
}

func (*Closure) Type() Type         { return CLOSURE_OBJ }
func (c *Closure) Inspect() string { return c.Fn.Inspect() }

type Definition struct {
	Name    string
	Methods map[string]*Closure
	Base    *Definition
}

func NewDefinition(name string) *Definition {
	return &Definition{Name: name, Methods: map[string]*Closure{}}
}

func (*Definition) Type() Type { return DEFINITION_OBJ }
func (d *Definition) Inspect() string {
	return fmt.Sprintf("<def %s>", d.Name)
}

// Derive copies every base method into d and records the base. Methods added
// to base afterwards are not seen through d.
func (d *Definition) Derive(base *Definition) {
	for name, m := range base.Methods {
		d.Methods[name] = m
	}
	d.Base = base
}

type Instance struct {
	Def    *Definition
	Fields map[string]Object
}

func NewInstance(def *Definition) *Instance {
	return &Instance{Def: def, Fields: map[string]Object{}}
}

func (*Instance) Type() Type { return INSTANCE_OBJ }
func (i *Instance) Inspect() string {
	return fmt.Sprintf("<%s instance>", i.Def.Name)
}

// BoundMethod pairs a receiver with a Closure or Builtin method.
type BoundMethod struct {
	Receiver Object
	Method   Object
}

func (*BoundMethod) Type() Type { return BOUND_METHOD_OBJ }
func (b *BoundMethod) Inspect() string {
	switch m := b.Method.(type) {
	case *Closure:
		return fmt.Sprintf("<bound %s>", m.Fn.DisplayName())
	case *Builtin:
		return fmt.Sprintf("<bound %s>", m.Name)
	}
	return "<bound>"
}

// Host is the part of the VM a builtin may call back into.
type Host interface {
	Call(callee Object, args ...Object) (Object, error)
}

type BuiltinFunction func(h Host, args []Object) (Object, error)

// Builtin is a native callable. Arity -1 accepts any argument count.
type Builtin struct {
	Name  string
	Arity int
	Fn    BuiltinFunction
}

func (*Builtin) Type() Type         { return BUILTIN_OBJ }
func (b *Builtin) Inspect() string { return fmt.Sprintf("<builtin %s>", b.Name) }

// Iterator produces values until Next reports false.
type Iterator struct {
	Next func() (Object, bool)
}

func (*Iterator) Type() Type      { return ITERATOR_OBJ }
func (*Iterator) Inspect() string { return "<iterator>" }

type Result struct {
	Ok    bool
	Value Object
}

func (*Result) Type() Type { return RESULT_OBJ }
func (r *Result) Inspect() string {
	if r.Ok {
		return "Ok(" + Repr(r.Value) + ")"
	}
	return "Err(" + Repr(r.Value) + ")"
}

// Repr is Inspect with strings quoted, used inside containers.
func Repr(o Object) string {
	if s, ok := o.(*String); ok {
		return strconv.Quote(s.Value)
	}
	if o == nil {
		return "nil"
	}
	return o.Inspect()
}

// IteratorStep builds the {"done", "value"} record returned by __next__.
func IteratorStep(in *Interner, done bool, value Object) *Dict {
	d := NewDict()
	d.Set(in.Intern("done"), Bool(done))
	d.Set(in.Intern("value"), value)
	return d
}
