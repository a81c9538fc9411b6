package vm

import (
	"fmt"

	"kestrel/internal/object"
	"kestrel/internal/semantics"
)

func sliceIterator(items []object.Object) *object.Iterator {
	i := 0
	return &object.Iterator{Next: func() (object.Object, bool) {
		if i >= len(items) {
			return object.NIL, false
		}
		v := items[i]
		i++
		return v, true
	}}
}

// iterate builds a native iterator over a list, dict keys, string runes or
// a range. Lists are walked live, so elements pushed during iteration are
// visited.
func iterate(o object.Object) (*object.Iterator, error) {
	switch v := o.(type) {
	case *object.List:
		i := 0
		return &object.Iterator{Next: func() (object.Object, bool) {
			if i >= len(v.Elements) {
				return object.NIL, false
			}
			el := v.Elements[i]
			i++
			return el, true
		}}, nil

	case *object.Dict:
		pairs := v.Ordered()
		keys := make([]object.Object, len(pairs))
		for i, p := range pairs {
			keys[i] = p.Key
		}
		return sliceIterator(keys), nil

	case *object.String:
		runes := []rune(v.Value)
		chars := make([]object.Object, len(runes))
		for i, r := range runes {
			chars[i] = &object.String{Value: string(r)}
		}
		return sliceIterator(chars), nil

	case *object.Range:
		cur := v.Start
		return &object.Iterator{Next: func() (object.Object, bool) {
			if cur >= v.End {
				return object.NIL, false
			}
			n := cur
			cur++
			return &object.Integer{Value: n}, true
		}}, nil

	case *object.Iterator:
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s is not iterable", ErrTypeMismatch, semantics.TypeName(o))
}

func (m *VM) iterMethod(_ object.Host, args []object.Object) (object.Object, error) {
	return iterate(args[0])
}

func (m *VM) iteratorNext(_ object.Host, args []object.Object) (object.Object, error) {
	it := args[0].(*object.Iterator)
	v, ok := it.Next()
	step := object.IteratorStep(m.interner, !ok, v)
	if err := m.charge(step); err != nil {
		return nil, err
	}
	return step, nil
}
