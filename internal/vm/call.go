package vm

import (
	"kestrel/internal/object"
	"kestrel/internal/semantics"
)

func (m *VM) callValue(callee object.Object, argc int) error {
	switch c := callee.(type) {
	case *object.Closure:
		return m.callClosure(c, argc)

	case *object.Builtin:
		return m.callBuiltin(c, argc, false)

	case *object.BoundMethod:
		m.stack[m.sp-argc-1] = c.Receiver
		switch method := c.Method.(type) {
		case *object.Closure:
			return m.callClosure(method, argc)
		case *object.Builtin:
			return m.callBuiltin(method, argc, true)
		}

	case *object.Definition:
		inst := object.NewInstance(c)
		if err := m.charge(inst); err != nil {
			return err
		}
		m.stack[m.sp-argc-1] = inst
		if init, ok := c.Methods[m.names.init.Value]; ok && !init.Fn.IsStatic {
			return m.callClosure(init, argc)
		}
		if argc != 0 {
			return m.fault(ErrArity, "%s() takes no arguments but got %d", c.Name, argc)
		}
		return nil
	}
	return m.fault(ErrNotCallable, "can only call functions and definitions, got %s", semantics.TypeName(callee))
}

// callClosure applies the call convention and pushes a frame whose window
// starts at the callee slot.
func (m *VM) callClosure(cl *object.Closure, argc int) error {
	fn := cl.Fn

	if argc < fn.Arity && len(cl.Defaults) > 0 {
		last := fn.Arity
		if fn.IsVariadic {
			last = fn.Arity - 1
		}
		for pos := argc + 1; pos <= last; pos++ {
			v, ok := cl.Defaults[pos]
			if !ok {
				break
			}
			if err := m.push(v); err != nil {
				return err
			}
			argc++
		}
	}

	switch {
	case fn.IsVariadic:
		fixed := fn.Arity - 1
		if argc < fixed {
			return m.fault(ErrArity, "%s() expects at least %d arguments but got %d", fn.DisplayName(), fixed, argc)
		}
		rest := make([]object.Object, argc-fixed)
		copy(rest, m.stack[m.sp-len(rest):m.sp])
		m.dropTo(m.sp - len(rest))
		list := &object.List{Elements: rest}
		if err := m.charge(list); err != nil {
			return err
		}
		if err := m.push(list); err != nil {
			return err
		}
		argc = fn.Arity
	case argc != fn.Arity:
		return m.fault(ErrArity, "%s() expects %d arguments but got %d", fn.DisplayName(), fn.Arity, argc)
	}

	if m.trace {
		m.log.Debugf("call %s depth=%d", fn.DisplayName(), len(m.frames)+1)
	}
	return m.pushFrame(NewFrame(cl, m.sp-argc-1))
}

// callBuiltin runs a native function. With a receiver the callee slot holds
// it and it is passed as the first argument.
func (m *VM) callBuiltin(b *object.Builtin, argc int, withReceiver bool) error {
	if b.Arity >= 0 && argc != b.Arity {
		return m.fault(ErrArity, "%s() expects %d arguments but got %d", b.Name, b.Arity, argc)
	}
	first := m.sp - argc
	if withReceiver {
		first--
	}
	args := make([]object.Object, m.sp-first)
	copy(args, m.stack[first:m.sp])

	res, err := b.Fn(m, args)
	if err != nil {
		return m.faultFrom(err)
	}
	if res == nil {
		res = object.NIL
	}
	m.dropTo(m.sp - argc - 1)
	return m.push(res)
}

// invoke is get-property followed by call without materialising a bound
// method.
func (m *VM) invoke(name *object.String, argc int) error {
	recvSlot := m.sp - argc - 1
	recv := m.stack[recvSlot]

	switch o := recv.(type) {
	case *object.Instance:
		if v, ok := o.Fields[name.Value]; ok {
			m.stack[recvSlot] = v
			return m.callValue(v, argc)
		}
		if method, ok := o.Def.Methods[name.Value]; ok {
			return m.callClosure(method, argc)
		}
		return m.fault(ErrMissingProperty, "undefined property '%s' on %s", name.Value, o.Def.Name)

	case *object.Definition:
		if method, ok := o.Methods[name.Value]; ok {
			return m.callClosure(method, argc)
		}
		return m.fault(ErrMissingProperty, "undefined method '%s' on %s", name.Value, o.Name)

	case *object.Dict:
		if v, ok := o.Get(name); ok {
			m.stack[recvSlot] = v
			return m.callValue(v, argc)
		}
	}

	if native := m.nativeMethod(recv, name.Value); native != nil {
		return m.callBuiltin(native, argc, true)
	}
	return m.fault(ErrMissingProperty, "undefined method '%s' on %s", name.Value, semantics.TypeName(recv))
}

func (m *VM) getProperty(obj object.Object, name *object.String) (object.Object, error) {
	switch o := obj.(type) {
	case *object.Instance:
		if v, ok := o.Fields[name.Value]; ok {
			return v, nil
		}
		if method, ok := o.Def.Methods[name.Value]; ok {
			if method.Fn.IsStatic {
				return method, nil
			}
			return &object.BoundMethod{Receiver: o, Method: method}, nil
		}
		return nil, m.fault(ErrMissingProperty, "undefined property '%s' on %s", name.Value, o.Def.Name)

	case *object.Definition:
		if method, ok := o.Methods[name.Value]; ok {
			return method, nil
		}
		return nil, m.fault(ErrMissingProperty, "undefined method '%s' on %s", name.Value, o.Name)

	case *object.Dict:
		if v, ok := o.Get(name); ok {
			return v, nil
		}
	}

	if native := m.nativeMethod(obj, name.Value); native != nil {
		return &object.BoundMethod{Receiver: obj, Method: native}, nil
	}
	return nil, m.fault(ErrMissingProperty, "undefined property '%s' on %s", name.Value, semantics.TypeName(obj))
}

func (m *VM) setProperty(obj object.Object, name *object.String, val object.Object) error {
	switch o := obj.(type) {
	case *object.Instance:
		o.Fields[name.Value] = val
		return nil
	case *object.Dict:
		o.Set(name, val)
		return nil
	}
	return m.fault(ErrTypeMismatch, "cannot set property '%s' on %s", name.Value, semantics.TypeName(obj))
}

func (m *VM) listIndex(n, length int64) (int, error) {
	if n < 0 {
		n += length
	}
	if n < 0 || n >= length {
		return 0, m.fault(ErrIndexOutOfRange, "index %d out of range for length %d", n, length)
	}
	return int(n), nil
}

func (m *VM) index(left, idx object.Object) (object.Object, error) {
	switch l := left.(type) {
	case *object.List:
		i, ok := idx.(*object.Integer)
		if !ok {
			return nil, m.fault(ErrTypeMismatch, "list index must be int, got %s", semantics.TypeName(idx))
		}
		n, err := m.listIndex(i.Value, int64(len(l.Elements)))
		if err != nil {
			return nil, err
		}
		return l.Elements[n], nil

	case *object.String:
		i, ok := idx.(*object.Integer)
		if !ok {
			return nil, m.fault(ErrTypeMismatch, "string index must be int, got %s", semantics.TypeName(idx))
		}
		runes := []rune(l.Value)
		n, err := m.listIndex(i.Value, int64(len(runes)))
		if err != nil {
			return nil, err
		}
		return &object.String{Value: string(runes[n])}, nil

	case *object.Range:
		i, ok := idx.(*object.Integer)
		if !ok {
			return nil, m.fault(ErrTypeMismatch, "range index must be int, got %s", semantics.TypeName(idx))
		}
		n, err := m.listIndex(i.Value, l.Len())
		if err != nil {
			return nil, err
		}
		return &object.Integer{Value: l.Start + int64(n)}, nil

	case *object.Dict:
		if _, ok := object.HashKeyOf(idx); !ok {
			return nil, m.fault(ErrTypeMismatch, "unusable as dict key: %s", semantics.TypeName(idx))
		}
		if v, ok := l.Get(idx); ok {
			return v, nil
		}
		return object.NIL, nil
	}
	return nil, m.fault(ErrTypeMismatch, "cannot index %s", semantics.TypeName(left))
}

func (m *VM) setIndex(left, idx, val object.Object) error {
	switch l := left.(type) {
	case *object.List:
		i, ok := idx.(*object.Integer)
		if !ok {
			return m.fault(ErrTypeMismatch, "list index must be int, got %s", semantics.TypeName(idx))
		}
		n, err := m.listIndex(i.Value, int64(len(l.Elements)))
		if err != nil {
			return err
		}
		l.Elements[n] = val
		return nil

	case *object.Dict:
		if !l.Set(idx, val) {
			return m.fault(ErrTypeMismatch, "unusable as dict key: %s", semantics.TypeName(idx))
		}
		return nil
	}
	return m.fault(ErrTypeMismatch, "cannot assign index on %s", semantics.TypeName(left))
}
