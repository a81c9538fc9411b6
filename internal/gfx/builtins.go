package gfx

import (
	"fmt"
	"image/color"

	"kestrel/internal/object"
	"kestrel/internal/semantics"
	"kestrel/internal/vm"
)

// Builtins is the gfx_* function table. Install it with VM.DefineBuiltins
// before running the script.
func Builtins() map[string]*object.Builtin {
	table := map[string]*object.Builtin{}
	for _, b := range []*object.Builtin{
		{Name: "gfx_open", Arity: -1, Fn: builtinOpen},
		{Name: "gfx_close", Arity: 0, Fn: builtinClose},
		{Name: "gfx_should_close", Arity: 0, Fn: builtinShouldClose},
		{Name: "gfx_clear", Arity: -1, Fn: builtinClear},
		{Name: "gfx_rect", Arity: -1, Fn: builtinRect},
		{Name: "gfx_pixel", Arity: -1, Fn: builtinPixel},
		{Name: "gfx_line", Arity: -1, Fn: builtinLine},
		{Name: "gfx_circle", Arity: -1, Fn: builtinCircle},
		{Name: "gfx_time", Arity: 0, Fn: builtinTime},
		{Name: "gfx_key_down", Arity: 1, Fn: builtinKeyDown},
		{Name: "gfx_mouse_x", Arity: 0, Fn: builtinMouseX},
		{Name: "gfx_mouse_y", Arity: 0, Fn: builtinMouseY},
	} {
		table[b.Name] = b
	}
	return table
}

func backendError(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", vm.ErrRuntime, name, err)
}

func numbers(name string, args []object.Object) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		if !semantics.IsNumeric(a) {
			return nil, fmt.Errorf("%w: %s argument %d must be a number, got %s",
				vm.ErrTypeMismatch, name, i+1, semantics.TypeName(a))
		}
		out[i] = semantics.ToFloat(a)
	}
	return out, nil
}

// shapeArgs splits n geometry values from a trailing r, g, b[, a] color.
func shapeArgs(name string, n int, args []object.Object) ([]float64, color.RGBA, error) {
	if len(args) != n+3 && len(args) != n+4 {
		return nil, color.RGBA{}, fmt.Errorf("%w: %s() expects %d or %d arguments but got %d",
			vm.ErrArity, name, n+3, n+4, len(args))
	}
	vals, err := numbers(name, args)
	if err != nil {
		return nil, color.RGBA{}, err
	}
	alpha := 255.0
	if len(vals) == n+4 {
		alpha = vals[n+3]
	}
	c, err := RGBA(vals[n], vals[n+1], vals[n+2], alpha)
	if err != nil {
		return nil, color.RGBA{}, fmt.Errorf("%w: %s: %v", vm.ErrTypeMismatch, name, err)
	}
	return vals[:n], c, nil
}

func builtinOpen(_ object.Host, args []object.Object) (object.Object, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, fmt.Errorf("%w: gfx_open() expects 2 or 3 arguments but got %d", vm.ErrArity, len(args))
	}
	w, ok1 := args[0].(*object.Integer)
	h, ok2 := args[1].(*object.Integer)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: gfx_open expects int width and height", vm.ErrTypeMismatch)
	}
	title := ""
	if len(args) == 3 {
		s, ok := args[2].(*object.String)
		if !ok {
			return nil, fmt.Errorf("%w: gfx_open title must be a string", vm.ErrTypeMismatch)
		}
		title = s.Value
	}
	if err := Open(int(w.Value), int(h.Value), title); err != nil {
		return nil, backendError("gfx_open", err)
	}
	return object.NIL, nil
}

func builtinClose(_ object.Host, _ []object.Object) (object.Object, error) {
	if err := Close(); err != nil {
		return nil, backendError("gfx_close", err)
	}
	return object.NIL, nil
}

func builtinShouldClose(_ object.Host, _ []object.Object) (object.Object, error) {
	return object.Bool(ShouldClose()), nil
}

func builtinClear(_ object.Host, args []object.Object) (object.Object, error) {
	_, c, err := shapeArgs("gfx_clear", 0, args)
	if err != nil {
		return nil, err
	}
	if err := Clear(c); err != nil {
		return nil, backendError("gfx_clear", err)
	}
	return object.NIL, nil
}

func builtinRect(_ object.Host, args []object.Object) (object.Object, error) {
	v, c, err := shapeArgs("gfx_rect", 4, args)
	if err != nil {
		return nil, err
	}
	if err := Rect(v[0], v[1], v[2], v[3], c); err != nil {
		return nil, backendError("gfx_rect", err)
	}
	return object.NIL, nil
}

func builtinPixel(_ object.Host, args []object.Object) (object.Object, error) {
	v, c, err := shapeArgs("gfx_pixel", 2, args)
	if err != nil {
		return nil, err
	}
	if err := Pixel(int(v[0]), int(v[1]), c); err != nil {
		return nil, backendError("gfx_pixel", err)
	}
	return object.NIL, nil
}

func builtinLine(_ object.Host, args []object.Object) (object.Object, error) {
	v, c, err := shapeArgs("gfx_line", 4, args)
	if err != nil {
		return nil, err
	}
	if err := Line(v[0], v[1], v[2], v[3], c); err != nil {
		return nil, backendError("gfx_line", err)
	}
	return object.NIL, nil
}

func builtinCircle(_ object.Host, args []object.Object) (object.Object, error) {
	v, c, err := shapeArgs("gfx_circle", 3, args)
	if err != nil {
		return nil, err
	}
	if err := Circle(v[0], v[1], v[2], c); err != nil {
		return nil, backendError("gfx_circle", err)
	}
	return object.NIL, nil
}

func builtinTime(_ object.Host, _ []object.Object) (object.Object, error) {
	t, err := TimeSeconds()
	if err != nil {
		return nil, backendError("gfx_time", err)
	}
	return &object.Float{Value: t}, nil
}

func builtinKeyDown(_ object.Host, args []object.Object) (object.Object, error) {
	key, ok := args[0].(*object.String)
	if !ok {
		return nil, fmt.Errorf("%w: gfx_key_down expects a key name", vm.ErrTypeMismatch)
	}
	down, err := KeyDown(key.Value)
	if err != nil {
		return nil, backendError("gfx_key_down", err)
	}
	return object.Bool(down), nil
}

func builtinMouseX(_ object.Host, _ []object.Object) (object.Object, error) {
	x, _, err := Mouse()
	if err != nil {
		return nil, backendError("gfx_mouse_x", err)
	}
	return &object.Integer{Value: int64(x)}, nil
}

func builtinMouseY(_ object.Host, _ []object.Object) (object.Object, error) {
	_, y, err := Mouse()
	if err != nil {
		return nil, backendError("gfx_mouse_y", err)
	}
	return &object.Integer{Value: int64(y)}, nil
}
