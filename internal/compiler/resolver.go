package compiler

import (
	"kestrel/internal/code"
	"kestrel/internal/object"
)

const (
	maxLocals   = 256
	maxUpvalues = 256
)

type funcKind int

const (
	kindScript funcKind = iota
	kindFunction
	kindMethod
	kindInitializer
	kindStatic
)

type local struct {
	name        string
	depth       int
	initialized bool
	captured    bool
	isConst     bool
}

type upvalueRef struct {
	index   int
	isLocal bool
}

// funcState is the compilation context of one function. States form a stack
// through enclosing.
type funcState struct {
	enclosing  *funcState
	fn         *object.Function
	kind       funcKind
	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
	loops      []*loopContext
	constIndex map[constKey]int
}

type constKey struct {
	t object.Type
	s string
}

func newFuncState(enclosing *funcState, kind funcKind, name string) *funcState {
	fs := &funcState{
		enclosing:  enclosing,
		fn:         &object.Function{Name: name, Code: &code.Code{}},
		kind:       kind,
		constIndex: map[constKey]int{},
	}
	// Slot 0 holds the callee, or the receiver inside methods.
	slot0 := ""
	if kind == kindMethod || kind == kindInitializer {
		slot0 = "self"
	}
	fs.locals = append(fs.locals, local{name: slot0, initialized: true})
	return fs
}

func (c *Compiler) beginScope() {
	c.fs.scopeDepth++
}

func (c *Compiler) endScope() {
	fs := c.fs
	fs.scopeDepth--
	n := 0
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		fs.locals = fs.locals[:len(fs.locals)-1]
		n++
	}
	if n > 0 {
		c.emit(code.OpPopN, n)
	}
}

// localsAbove counts the locals deeper than depth without discarding them.
func (fs *funcState) localsAbove(depth int) int {
	n := 0
	for i := len(fs.locals) - 1; i >= 0 && fs.locals[i].depth > depth; i-- {
		n++
	}
	return n
}

// addLocal declares name in the current scope, uninitialized.
func (c *Compiler) addLocal(name string, isConst bool) (int, error) {
	fs := c.fs
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := fs.locals[i]
		if l.depth < fs.scopeDepth {
			break
		}
		if l.name == name {
			return 0, c.errorf(ErrRedeclared, "variable %q already declared in this scope", name)
		}
	}
	if len(fs.locals) >= maxLocals {
		return 0, c.errorf(ErrTooManyLocals, "too many local variables in function")
	}
	fs.locals = append(fs.locals, local{name: name, depth: fs.scopeDepth, isConst: isConst})
	return len(fs.locals) - 1, nil
}

func (fs *funcState) markInitialized() {
	if fs.scopeDepth == 0 {
		return
	}
	fs.locals[len(fs.locals)-1].initialized = true
}

func (c *Compiler) resolveLocal(fs *funcState, name string) (int, error) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := fs.locals[i]
		if l.name != name {
			continue
		}
		if !l.initialized {
			return 0, c.errorf(ErrUninitialized, "can't read local variable %q in its own initializer", name)
		}
		return i, nil
	}
	return -1, nil
}

func (c *Compiler) resolveUpvalue(fs *funcState, name string) (int, error) {
	if fs.enclosing == nil {
		return -1, nil
	}
	idx, err := c.resolveLocal(fs.enclosing, name)
	if err != nil {
		return 0, err
	}
	if idx >= 0 {
		fs.enclosing.locals[idx].captured = true
		return c.addUpvalue(fs, idx, true)
	}
	idx, err = c.resolveUpvalue(fs.enclosing, name)
	if err != nil || idx < 0 {
		return idx, err
	}
	return c.addUpvalue(fs, idx, false)
}

func (c *Compiler) addUpvalue(fs *funcState, index int, isLocal bool) (int, error) {
	for i, uv := range fs.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i, nil
		}
	}
	if len(fs.upvalues) >= maxUpvalues {
		return 0, c.errorf(ErrTooManyUpvalues, "too many closure variables in function")
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{index: index, isLocal: isLocal})
	fs.fn.UpvalueCount = len(fs.upvalues)
	return len(fs.upvalues) - 1, nil
}

// isConstUpvalue follows an upvalue chain back to the local it captures.
func (fs *funcState) isConstUpvalue(idx int) bool {
	uv := fs.upvalues[idx]
	if uv.isLocal {
		return fs.enclosing.locals[uv.index].isConst
	}
	return fs.enclosing.isConstUpvalue(uv.index)
}

type scopeKind int

const (
	scopeGlobal scopeKind = iota
	scopeLocal
	scopeUpvalue
)

type binding struct {
	kind    scopeKind
	index   int
	isConst bool
}

func (c *Compiler) resolve(name string) (binding, error) {
	fs := c.fs
	idx, err := c.resolveLocal(fs, name)
	if err != nil {
		return binding{}, err
	}
	if idx >= 0 {
		return binding{kind: scopeLocal, index: idx, isConst: fs.locals[idx].isConst}, nil
	}
	idx, err = c.resolveUpvalue(fs, name)
	if err != nil {
		return binding{}, err
	}
	if idx >= 0 {
		return binding{kind: scopeUpvalue, index: idx, isConst: fs.isConstUpvalue(idx)}, nil
	}
	nameIdx, err := c.identifierConstant(name)
	if err != nil {
		return binding{}, err
	}
	return binding{kind: scopeGlobal, index: nameIdx, isConst: c.isGlobalConst(name)}, nil
}
