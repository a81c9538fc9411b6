package vm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"kestrel/internal/object"
	"kestrel/internal/semantics"
)

type nativeTable map[object.Type]map[string]*object.Builtin

// nativeMethod finds the built-in method name of recv's kind. The receiver
// arrives as args[0].
func (m *VM) nativeMethod(recv object.Object, name string) *object.Builtin {
	if m.natives == nil {
		m.natives = m.buildNatives()
	}
	return m.natives[recv.Type()][name]
}

func method(name string, arity int, fn object.BuiltinFunction) *object.Builtin {
	return &object.Builtin{Name: name, Arity: arity, Fn: fn}
}

func (m *VM) buildNatives() nativeTable {
	t := nativeTable{}
	add := func(typ object.Type, methods ...*object.Builtin) {
		if t[typ] == nil {
			t[typ] = map[string]*object.Builtin{}
		}
		for _, b := range methods {
			t[typ][b.Name] = b
		}
	}

	add(object.LIST_OBJ,
		method("push", -1, listPush),
		method("pop", 0, listPop),
		method("len", 0, methodLen),
		method("insert", 2, listInsert),
		method("remove", 1, listRemove),
		method("contains", 1, listContains),
		method("join", 1, listJoin),
		method("reverse", 0, listReverse),
		method("__iter__", 0, m.iterMethod),
	)
	add(object.DICT_OBJ,
		method("keys", 0, dictKeys),
		method("values", 0, dictValues),
		method("has", 1, dictHas),
		method("get", -1, dictGet),
		method("remove", 1, dictRemove),
		method("len", 0, methodLen),
		method("__iter__", 0, m.iterMethod),
	)
	add(object.STRING_OBJ,
		method("len", 0, methodLen),
		method("upper", 0, caseMethod(cases.Upper(language.Und))),
		method("lower", 0, caseMethod(cases.Lower(language.Und))),
		method("title", 0, caseMethod(cases.Title(language.Und))),
		method("split", -1, stringSplit),
		method("trim", 0, stringTrim),
		method("contains", 1, stringContains),
		method("starts_with", 1, stringStartsWith),
		method("ends_with", 1, stringEndsWith),
		method("matches", 1, m.stringMatches),
		method("replace_re", 2, m.stringReplaceRe),
		method("__iter__", 0, m.iterMethod),
	)
	add(object.RANGE_OBJ,
		method("len", 0, methodLen),
		method("contains", 1, rangeContains),
		method("__iter__", 0, m.iterMethod),
	)
	add(object.ITERATOR_OBJ,
		method("__next__", 0, m.iteratorNext),
		method("__iter__", 0, func(_ object.Host, args []object.Object) (object.Object, error) {
			return args[0], nil
		}),
	)
	add(object.RESULT_OBJ,
		method("is_ok", 0, resultIsOk),
		method("is_err", 0, resultIsErr),
		method("unwrap", 0, resultUnwrap),
		method("unwrap_or", 1, resultUnwrapOr),
		method("error", 0, resultError),
	)
	return t
}

func typeError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrTypeMismatch}, args...)...)
}

func stringArg(name string, o object.Object) (string, error) {
	s, ok := o.(*object.String)
	if !ok {
		return "", typeError("%s expects a string, got %s", name, semantics.TypeName(o))
	}
	return s.Value, nil
}

func intArg(name string, o object.Object) (int64, error) {
	i, ok := o.(*object.Integer)
	if !ok {
		return 0, typeError("%s expects an int, got %s", name, semantics.TypeName(o))
	}
	return i.Value, nil
}

func methodLen(_ object.Host, args []object.Object) (object.Object, error) {
	return lengthOf(args[0])
}

func lengthOf(o object.Object) (object.Object, error) {
	switch v := o.(type) {
	case *object.String:
		return &object.Integer{Value: int64(utf8.RuneCountInString(v.Value))}, nil
	case *object.List:
		return &object.Integer{Value: int64(len(v.Elements))}, nil
	case *object.Dict:
		return &object.Integer{Value: int64(v.Len())}, nil
	case *object.Range:
		return &object.Integer{Value: v.Len()}, nil
	}
	return nil, typeError("len() not supported for %s", semantics.TypeName(o))
}

func listPush(_ object.Host, args []object.Object) (object.Object, error) {
	l := args[0].(*object.List)
	l.Elements = append(l.Elements, args[1:]...)
	return l, nil
}

func listPop(_ object.Host, args []object.Object) (object.Object, error) {
	l := args[0].(*object.List)
	if len(l.Elements) == 0 {
		return nil, fmt.Errorf("%w: pop from empty list", ErrIndexOutOfRange)
	}
	last := l.Elements[len(l.Elements)-1]
	l.Elements = l.Elements[:len(l.Elements)-1]
	return last, nil
}

func listInsert(_ object.Host, args []object.Object) (object.Object, error) {
	l := args[0].(*object.List)
	i, err := intArg("insert", args[1])
	if err != nil {
		return nil, err
	}
	if i < 0 || i > int64(len(l.Elements)) {
		return nil, fmt.Errorf("%w: insert position %d out of range for length %d", ErrIndexOutOfRange, i, len(l.Elements))
	}
	l.Elements = append(l.Elements, nil)
	copy(l.Elements[i+1:], l.Elements[i:])
	l.Elements[i] = args[2]
	return object.NIL, nil
}

func listRemove(_ object.Host, args []object.Object) (object.Object, error) {
	l := args[0].(*object.List)
	i, err := intArg("remove", args[1])
	if err != nil {
		return nil, err
	}
	if i < 0 {
		i += int64(len(l.Elements))
	}
	if i < 0 || i >= int64(len(l.Elements)) {
		return nil, fmt.Errorf("%w: remove index %d out of range for length %d", ErrIndexOutOfRange, i, len(l.Elements))
	}
	removed := l.Elements[i]
	l.Elements = append(l.Elements[:i], l.Elements[i+1:]...)
	return removed, nil
}

func listContains(_ object.Host, args []object.Object) (object.Object, error) {
	for _, el := range args[0].(*object.List).Elements {
		if semantics.Equal(el, args[1]) {
			return object.TRUE, nil
		}
	}
	return object.FALSE, nil
}

func listJoin(_ object.Host, args []object.Object) (object.Object, error) {
	sep, err := stringArg("join", args[1])
	if err != nil {
		return nil, err
	}
	elems := args[0].(*object.List).Elements
	parts := make([]string, len(elems))
	for i, el := range elems {
		parts[i] = semantics.Stringify(el)
	}
	return &object.String{Value: strings.Join(parts, sep)}, nil
}

func listReverse(_ object.Host, args []object.Object) (object.Object, error) {
	l := args[0].(*object.List)
	for i, j := 0, len(l.Elements)-1; i < j; i, j = i+1, j-1 {
		l.Elements[i], l.Elements[j] = l.Elements[j], l.Elements[i]
	}
	return l, nil
}

func dictKeys(_ object.Host, args []object.Object) (object.Object, error) {
	pairs := args[0].(*object.Dict).Ordered()
	keys := make([]object.Object, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key
	}
	return &object.List{Elements: keys}, nil
}

func dictValues(_ object.Host, args []object.Object) (object.Object, error) {
	pairs := args[0].(*object.Dict).Ordered()
	values := make([]object.Object, len(pairs))
	for i, p := range pairs {
		values[i] = p.Value
	}
	return &object.List{Elements: values}, nil
}

func dictHas(_ object.Host, args []object.Object) (object.Object, error) {
	_, ok := args[0].(*object.Dict).Get(args[1])
	return object.Bool(ok), nil
}

// dictGet is get(key) or get(key, fallback).
func dictGet(_ object.Host, args []object.Object) (object.Object, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("%w: get() expects 1 or 2 arguments but got %d", ErrArity, len(args)-1)
	}
	if v, ok := args[0].(*object.Dict).Get(args[1]); ok {
		return v, nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return object.NIL, nil
}

func dictRemove(_ object.Host, args []object.Object) (object.Object, error) {
	if v, ok := args[0].(*object.Dict).Delete(args[1]); ok {
		return v, nil
	}
	return object.NIL, nil
}

func caseMethod(c cases.Caser) object.BuiltinFunction {
	return func(_ object.Host, args []object.Object) (object.Object, error) {
		return &object.String{Value: c.String(args[0].(*object.String).Value)}, nil
	}
}

// stringSplit is split() on whitespace or split(sep).
func stringSplit(_ object.Host, args []object.Object) (object.Object, error) {
	s := args[0].(*object.String).Value
	var parts []string
	switch len(args) {
	case 1:
		parts = strings.Fields(s)
	case 2:
		sep, err := stringArg("split", args[1])
		if err != nil {
			return nil, err
		}
		parts = strings.Split(s, sep)
	default:
		return nil, fmt.Errorf("%w: split() expects 0 or 1 arguments but got %d", ErrArity, len(args)-1)
	}
	out := make([]object.Object, len(parts))
	for i, p := range parts {
		out[i] = &object.String{Value: p}
	}
	return &object.List{Elements: out}, nil
}

func stringTrim(_ object.Host, args []object.Object) (object.Object, error) {
	return &object.String{Value: strings.TrimSpace(args[0].(*object.String).Value)}, nil
}

func stringPredicate(name string, pred func(s, arg string) bool) object.BuiltinFunction {
	return func(_ object.Host, args []object.Object) (object.Object, error) {
		arg, err := stringArg(name, args[1])
		if err != nil {
			return nil, err
		}
		return object.Bool(pred(args[0].(*object.String).Value, arg)), nil
	}
}

var (
	stringContains   = stringPredicate("contains", strings.Contains)
	stringStartsWith = stringPredicate("starts_with", strings.HasPrefix)
	stringEndsWith   = stringPredicate("ends_with", strings.HasSuffix)
)

// regexp compiles pattern once per VM.
func (m *VM) regexp(pattern string) (*regexp2.Regexp, error) {
	if re, ok := m.regexps[pattern]; ok {
		return re, nil
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pattern %q: %v", ErrRuntime, pattern, err)
	}
	m.regexps[pattern] = re
	return re, nil
}

func (m *VM) stringMatches(_ object.Host, args []object.Object) (object.Object, error) {
	pattern, err := stringArg("matches", args[1])
	if err != nil {
		return nil, err
	}
	re, err := m.regexp(pattern)
	if err != nil {
		return nil, err
	}
	ok, err := re.MatchString(args[0].(*object.String).Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntime, err)
	}
	return object.Bool(ok), nil
}

func (m *VM) stringReplaceRe(_ object.Host, args []object.Object) (object.Object, error) {
	pattern, err := stringArg("replace_re", args[1])
	if err != nil {
		return nil, err
	}
	repl, err := stringArg("replace_re", args[2])
	if err != nil {
		return nil, err
	}
	re, err := m.regexp(pattern)
	if err != nil {
		return nil, err
	}
	out, err := re.Replace(args[0].(*object.String).Value, repl, -1, -1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntime, err)
	}
	return &object.String{Value: out}, nil
}

func rangeContains(_ object.Host, args []object.Object) (object.Object, error) {
	r := args[0].(*object.Range)
	i, ok := args[1].(*object.Integer)
	return object.Bool(ok && i.Value >= r.Start && i.Value < r.End), nil
}

func resultIsOk(_ object.Host, args []object.Object) (object.Object, error) {
	return object.Bool(args[0].(*object.Result).Ok), nil
}

func resultIsErr(_ object.Host, args []object.Object) (object.Object, error) {
	return object.Bool(!args[0].(*object.Result).Ok), nil
}

func resultUnwrap(_ object.Host, args []object.Object) (object.Object, error) {
	r := args[0].(*object.Result)
	if !r.Ok {
		return nil, fmt.Errorf("%w: unwrap on Err(%s)", ErrRaised, semantics.Stringify(r.Value))
	}
	return r.Value, nil
}

func resultUnwrapOr(_ object.Host, args []object.Object) (object.Object, error) {
	r := args[0].(*object.Result)
	if r.Ok {
		return r.Value, nil
	}
	return args[1], nil
}

func resultError(_ object.Host, args []object.Object) (object.Object, error) {
	r := args[0].(*object.Result)
	if r.Ok {
		return object.NIL, nil
	}
	return r.Value, nil
}
