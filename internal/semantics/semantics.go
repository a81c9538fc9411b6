package semantics

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"kestrel/internal/object"
)

var (
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrDivisionByZero = errors.New("division by zero")
)

func IsTruthy(obj object.Object) bool {
	switch v := obj.(type) {
	case *object.Boolean:
		return v.Value
	case *object.Nil:
		return false
	case nil:
		return false
	default:
		return true
	}
}

// BinaryOp applies an arithmetic operator. Integers stay integers except
// under "/", any float promotes to float, booleans count as 0 or 1.
func BinaryOp(op string, left, right object.Object) (object.Object, error) {
	if ls, ok := left.(*object.String); ok {
		if rs, ok := right.(*object.String); ok && op == "+" {
			return &object.String{Value: ls.Value + rs.Value}, nil
		}
		if ri, ok := right.(*object.Integer); ok && op == "*" {
			out, err := repeatString(ls.Value, ri.Value)
			if err != nil {
				return nil, err
			}
			return &object.String{Value: out}, nil
		}
	}
	if ll, ok := left.(*object.List); ok && op == "+" {
		if rl, ok := right.(*object.List); ok {
			elems := make([]object.Object, 0, len(ll.Elements)+len(rl.Elements))
			elems = append(elems, ll.Elements...)
			elems = append(elems, rl.Elements...)
			return &object.List{Elements: elems}, nil
		}
	}

	if !isNumeric(left) || !isNumeric(right) {
		return nil, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, left.Type(), op, right.Type())
	}

	if isIntLike(left) && isIntLike(right) && op != "/" {
		li, ri := toInt(left), toInt(right)
		switch op {
		case "+":
			return &object.Integer{Value: li + ri}, nil
		case "-":
			return &object.Integer{Value: li - ri}, nil
		case "*":
			return &object.Integer{Value: li * ri}, nil
		case "%":
			if ri == 0 {
				return nil, fmt.Errorf("%w: modulo by zero", ErrDivisionByZero)
			}
			return &object.Integer{Value: li % ri}, nil
		}
		return nil, fmt.Errorf("unknown operator for integers: %s", op)
	}

	lf, rf := toFloat(left), toFloat(right)
	switch op {
	case "+":
		return &object.Float{Value: lf + rf}, nil
	case "-":
		return &object.Float{Value: lf - rf}, nil
	case "*":
		return &object.Float{Value: lf * rf}, nil
	case "/":
		if rf == 0 {
			return nil, ErrDivisionByZero
		}
		return &object.Float{Value: lf / rf}, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("%w: modulo by zero", ErrDivisionByZero)
		}
		return &object.Float{Value: math.Mod(lf, rf)}, nil
	}
	return nil, fmt.Errorf("unknown operator for numbers: %s", op)
}

func repeatString(s string, count int64) (string, error) {
	if count < 0 {
		return "", fmt.Errorf("repeat count must be non-negative")
	}
	if count == 0 || s == "" {
		return "", nil
	}
	maxInt := int64(int(^uint(0) >> 1))
	size := int64(len(s))
	if size > 0 && size > maxInt/count {
		return "", fmt.Errorf("repeat count too large")
	}
	return strings.Repeat(s, int(count)), nil
}

func Negate(right object.Object) (object.Object, error) {
	switch v := right.(type) {
	case *object.Integer:
		return &object.Integer{Value: -v.Value}, nil
	case *object.Float:
		return &object.Float{Value: -v.Value}, nil
	case *object.Boolean:
		return &object.Integer{Value: -toInt(v)}, nil
	}
	return nil, fmt.Errorf("%w: -%s", ErrTypeMismatch, right.Type())
}

// Compare evaluates an ordering operator on numbers or strings.
func Compare(op string, left, right object.Object) (bool, error) {
	if ls, ok := left.(*object.String); ok {
		if rs, ok := right.(*object.String); ok {
			c := strings.Compare(ls.Value, rs.Value)
			return ordered(op, c)
		}
	}
	if !isNumeric(left) || !isNumeric(right) {
		return false, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, left.Type(), op, right.Type())
	}
	if isIntLike(left) && isIntLike(right) {
		li, ri := toInt(left), toInt(right)
		c := 0
		if li < ri {
			c = -1
		} else if li > ri {
			c = 1
		}
		return ordered(op, c)
	}
	lf, rf := toFloat(left), toFloat(right)
	switch op {
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return false, fmt.Errorf("unknown comparison operator: %s", op)
}

func ordered(op string, c int) (bool, error) {
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, fmt.Errorf("unknown comparison operator: %s", op)
}

// Equal is structural for primitives, strings, ranges and results,
// element-wise for lists and dicts, and identity for every other kind.
func Equal(left, right object.Object) bool {
	if left == nil || right == nil {
		return left == right
	}

	switch l := left.(type) {
	case *object.Nil:
		_, ok := right.(*object.Nil)
		return ok
	case *object.Boolean:
		r, ok := right.(*object.Boolean)
		return ok && l.Value == r.Value
	case *object.Integer:
		switch r := right.(type) {
		case *object.Integer:
			return l.Value == r.Value
		case *object.Float:
			return float64(l.Value) == r.Value
		}
		return false
	case *object.Float:
		switch r := right.(type) {
		case *object.Float:
			return l.Value == r.Value
		case *object.Integer:
			return l.Value == float64(r.Value)
		}
		return false
	case *object.String:
		r, ok := right.(*object.String)
		return ok && l.Value == r.Value
	case *object.Range:
		r, ok := right.(*object.Range)
		return ok && l.Start == r.Start && l.End == r.End
	case *object.List:
		r, ok := right.(*object.List)
		if !ok {
			return false
		}
		if l == r {
			return true
		}
		if len(l.Elements) != len(r.Elements) {
			return false
		}
		for i := range l.Elements {
			if !Equal(l.Elements[i], r.Elements[i]) {
				return false
			}
		}
		return true
	case *object.Dict:
		r, ok := right.(*object.Dict)
		if !ok {
			return false
		}
		if l == r {
			return true
		}
		if l.Len() != r.Len() {
			return false
		}
		for _, lp := range l.Ordered() {
			rv, ok := r.Get(lp.Key)
			if !ok || !Equal(lp.Value, rv) {
				return false
			}
		}
		return true
	case *object.Result:
		r, ok := right.(*object.Result)
		return ok && l.Ok == r.Ok && Equal(l.Value, r.Value)
	case *object.BoundMethod:
		r, ok := right.(*object.BoundMethod)
		return ok && l.Receiver == r.Receiver && l.Method == r.Method
	default:
		return left == right
	}
}

// Stringify is the text print and str produce: strings unquoted, containers
// with quoted string elements.
func Stringify(o object.Object) string {
	if o == nil {
		return "nil"
	}
	return o.Inspect()
}

// TypeName is the user-facing kind name returned by type().
func TypeName(o object.Object) string {
	switch v := o.(type) {
	case *object.Integer:
		return "int"
	case *object.Float:
		return "float"
	case *object.Boolean:
		return "bool"
	case *object.Nil:
		return "nil"
	case *object.String:
		return "string"
	case *object.List:
		return "list"
	case *object.Dict:
		return "dict"
	case *object.Range:
		return "range"
	case *object.Function, *object.Closure, *object.Builtin, *object.BoundMethod:
		return "function"
	case *object.Definition:
		return "definition"
	case *object.Instance:
		return v.Def.Name
	case *object.Iterator:
		return "iterator"
	case *object.Result:
		return "result"
	}
	return strings.ToLower(string(o.Type()))
}

func IsNumeric(o object.Object) bool { return isNumeric(o) }

// ToFloat converts a numeric value (booleans included) to float64.
func ToFloat(o object.Object) float64 { return toFloat(o) }

func isNumeric(o object.Object) bool {
	switch o.(type) {
	case *object.Integer, *object.Float, *object.Boolean:
		return true
	default:
		return false
	}
}

func isIntLike(o object.Object) bool {
	switch o.(type) {
	case *object.Integer, *object.Boolean:
		return true
	default:
		return false
	}
}

func toInt(o object.Object) int64 {
	switch v := o.(type) {
	case *object.Integer:
		return v.Value
	case *object.Boolean:
		if v.Value {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func toFloat(o object.Object) float64 {
	switch v := o.(type) {
	case *object.Float:
		return v.Value
	case *object.Integer:
		return float64(v.Value)
	case *object.Boolean:
		return float64(toInt(v))
	default:
		return 0
	}
}
