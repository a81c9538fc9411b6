package vm

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"kestrel/internal/numlit"
	"kestrel/internal/object"
	"kestrel/internal/runtimeio"
	"kestrel/internal/semantics"
)

// stdlib is the builtin table every VM starts with.
func (m *VM) stdlib() map[string]*object.Builtin {
	table := map[string]*object.Builtin{}
	for _, b := range []*object.Builtin{
		{Name: "print", Arity: -1, Fn: m.builtinPrint},
		{Name: "len", Arity: 1, Fn: builtinLen},
		{Name: "str", Arity: 1, Fn: builtinStr},
		{Name: "type", Arity: 1, Fn: builtinType},
		{Name: "clock", Arity: 0, Fn: m.builtinClock},
		{Name: "int", Arity: 1, Fn: builtinInt},
		{Name: "float", Arity: 1, Fn: builtinFloat},
		{Name: "range", Arity: -1, Fn: builtinRange},
		{Name: "input", Arity: -1, Fn: builtinInput},
		{Name: "getpass", Arity: -1, Fn: builtinGetPass},
		{Name: "raise", Arity: 1, Fn: builtinRaise},
		{Name: "Ok", Arity: 1, Fn: builtinOk},
		{Name: "Err", Arity: 1, Fn: builtinErr},
		{Name: "map", Arity: 2, Fn: builtinMap},
		{Name: "filter", Arity: 2, Fn: builtinFilter},
	} {
		table[b.Name] = b
	}
	return table
}

func (m *VM) builtinPrint(_ object.Host, args []object.Object) (object.Object, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = semantics.Stringify(a)
	}
	if _, err := fmt.Fprintln(m.out, strings.Join(parts, " ")); err != nil {
		return nil, fmt.Errorf("%w: print: %v", ErrRuntime, err)
	}
	return object.NIL, nil
}

func builtinLen(_ object.Host, args []object.Object) (object.Object, error) {
	return lengthOf(args[0])
}

func builtinStr(_ object.Host, args []object.Object) (object.Object, error) {
	if s, ok := args[0].(*object.String); ok {
		return s, nil
	}
	return &object.String{Value: semantics.Stringify(args[0])}, nil
}

func builtinType(_ object.Host, args []object.Object) (object.Object, error) {
	return &object.String{Value: semantics.TypeName(args[0])}, nil
}

// builtinClock is seconds since the VM was created.
func (m *VM) builtinClock(_ object.Host, _ []object.Object) (object.Object, error) {
	return &object.Float{Value: time.Since(m.start).Seconds()}, nil
}

func builtinInt(_ object.Host, args []object.Object) (object.Object, error) {
	switch v := args[0].(type) {
	case *object.Integer:
		return v, nil
	case *object.Float:
		return &object.Integer{Value: int64(v.Value)}, nil
	case *object.Boolean:
		if v.Value {
			return &object.Integer{Value: 1}, nil
		}
		return &object.Integer{Value: 0}, nil
	case *object.String:
		s := strings.TrimSpace(v.Value)
		sign := int64(1)
		if rest, ok := strings.CutPrefix(s, "-"); ok {
			s, sign = rest, -1
		} else {
			s = strings.TrimPrefix(s, "+")
		}
		if n, err := numlit.ParseInt(s); err == nil {
			return &object.Integer{Value: sign * n}, nil
		}
		if f, err := numlit.ParseFloat(s); err == nil {
			return &object.Integer{Value: sign * int64(f)}, nil
		}
		return nil, typeError("cannot convert %q to int", v.Value)
	}
	return nil, typeError("cannot convert %s to int", semantics.TypeName(args[0]))
}

func builtinFloat(_ object.Host, args []object.Object) (object.Object, error) {
	switch v := args[0].(type) {
	case *object.Float:
		return v, nil
	case *object.Integer, *object.Boolean:
		return &object.Float{Value: semantics.ToFloat(v)}, nil
	case *object.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
		if err != nil {
			return nil, typeError("cannot convert %q to float", v.Value)
		}
		return &object.Float{Value: f}, nil
	}
	return nil, typeError("cannot convert %s to float", semantics.TypeName(args[0]))
}

// builtinRange is range(end) or range(start, end).
func builtinRange(_ object.Host, args []object.Object) (object.Object, error) {
	switch len(args) {
	case 1:
		end, err := intArg("range", args[0])
		if err != nil {
			return nil, err
		}
		return &object.Range{Start: 0, End: end}, nil
	case 2:
		start, err := intArg("range", args[0])
		if err != nil {
			return nil, err
		}
		end, err := intArg("range", args[1])
		if err != nil {
			return nil, err
		}
		return &object.Range{Start: start, End: end}, nil
	}
	return nil, fmt.Errorf("%w: range() expects 1 or 2 arguments but got %d", ErrArity, len(args))
}

func promptArg(name string, args []object.Object) (string, error) {
	switch len(args) {
	case 0:
		return "", nil
	case 1:
		return stringArg(name, args[0])
	}
	return "", fmt.Errorf("%w: %s() expects at most 1 argument but got %d", ErrArity, name, len(args))
}

func builtinInput(_ object.Host, args []object.Object) (object.Object, error) {
	prompt, err := promptArg("input", args)
	if err != nil {
		return nil, err
	}
	line, err := runtimeio.Input(prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: input: %v", ErrRuntime, err)
	}
	return &object.String{Value: line}, nil
}

func builtinGetPass(_ object.Host, args []object.Object) (object.Object, error) {
	prompt, err := promptArg("getpass", args)
	if err != nil {
		return nil, err
	}
	line, err := runtimeio.GetPass(prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: getpass: %v", ErrRuntime, err)
	}
	return &object.String{Value: line}, nil
}

func builtinRaise(_ object.Host, args []object.Object) (object.Object, error) {
	return nil, fmt.Errorf("%w: %s", ErrRaised, semantics.Stringify(args[0]))
}

func builtinOk(_ object.Host, args []object.Object) (object.Object, error) {
	return &object.Result{Ok: true, Value: args[0]}, nil
}

func builtinErr(_ object.Host, args []object.Object) (object.Object, error) {
	return &object.Result{Ok: false, Value: args[0]}, nil
}

func builtinMap(h object.Host, args []object.Object) (object.Object, error) {
	it, err := iterate(args[1])
	if err != nil {
		return nil, err
	}
	var out []object.Object
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		res, err := h.Call(args[0], v)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return &object.List{Elements: out}, nil
}

func builtinFilter(h object.Host, args []object.Object) (object.Object, error) {
	it, err := iterate(args[1])
	if err != nil {
		return nil, err
	}
	var out []object.Object
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		keep, err := h.Call(args[0], v)
		if err != nil {
			return nil, err
		}
		if semantics.IsTruthy(keep) {
			out = append(out, v)
		}
	}
	return &object.List{Elements: out}, nil
}
