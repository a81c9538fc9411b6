package compiler

import (
	"github.com/tliron/commonlog"

	"kestrel/internal/ast"
	"kestrel/internal/code"
	"kestrel/internal/logging"
	"kestrel/internal/object"
)

const (
	maxParameters = 255
	maxEntries    = 65535
)

type jumpKind int

const (
	jumpBreak jumpKind = iota
	jumpContinue
)

type pendingJump struct {
	slot int
	kind jumpKind
}

type loopContext struct {
	start   int  // continue target of while/for/loop
	depth   int  // scope depth outside the loop body
	doWhile bool // continue jumps forward to the condition
	pending []pendingJump
}

// Compiler turns a parsed program into a tree of function prototypes. One
// Compiler may compile many programs against the same globals, as the REPL
// does; const globals are remembered between them once a compilation
// succeeds.
type Compiler struct {
	interner      *object.Interner
	fs            *funcState
	line          int
	tempIndex     int
	globalConsts  map[string]bool
	pendingConsts map[string]bool // declared by the program being compiled
	log           commonlog.Logger
}

func New(interner *object.Interner) *Compiler {
	return &Compiler{
		interner:     interner,
		globalConsts: map[string]bool{},
		log:          logging.Compiler(),
	}
}

// Compile compiles program into the top-level script function.
func (c *Compiler) Compile(program *ast.Program) (*object.Function, error) {
	c.fs = newFuncState(nil, kindScript, "")
	c.pendingConsts = map[string]bool{}
	defer func() {
		c.fs = nil
		c.pendingConsts = nil
	}()
	c.line = program.Line()

	for _, s := range program.Statements {
		if err := c.compileNode(s); err != nil {
			return nil, err
		}
	}
	c.emit(code.OpNull)
	c.emit(code.OpReturn)

	for name := range c.pendingConsts {
		c.globalConsts[name] = true
	}

	fn := c.fs.fn
	c.logFunction(fn)
	return fn, nil
}

func (c *Compiler) isGlobalConst(name string) bool {
	return c.globalConsts[name] || c.pendingConsts[name]
}

func (c *Compiler) logFunction(fn *object.Function) {
	if !logging.Tracing(c.log) {
		return
	}
	c.log.Debugf("compiled %s: %d bytes, %d constants, %d upvalues",
		fn.DisplayName(), fn.Code.Len(), len(fn.Constants), fn.UpvalueCount)
}

func (c *Compiler) setLine(n ast.Node) {
	if l := n.Line(); l > 0 {
		c.line = l
	}
}

func (c *Compiler) compileNode(node ast.Node) error {
	c.setLine(node)

	switch n := node.(type) {
	case *ast.Program:
		for _, s := range n.Statements {
			if err := c.compileNode(s); err != nil {
				return err
			}
		}

	case *ast.ExpressionStatement:
		if err := c.compileNode(n.Expression); err != nil {
			return err
		}
		c.emit(code.OpPop)

	case *ast.BlockStatement:
		c.beginScope()
		for _, s := range n.Statements {
			if err := c.compileNode(s); err != nil {
				return err
			}
		}
		c.endScope()

	case *ast.LetStatement:
		return c.compileLet(n)

	case *ast.FunctionStatement:
		return c.compileFunctionStatement(n)

	case *ast.DefinitionStatement:
		return c.compileDefinition(n)

	case *ast.IfStatement:
		if err := c.compileNode(n.Condition); err != nil {
			return err
		}
		elseJump := c.emitJump(code.OpJumpIfFalse)
		if err := c.compileNode(n.Consequence); err != nil {
			return err
		}
		if n.Alternative == nil {
			return c.patchJump(elseJump)
		}
		endJump := c.emitJump(code.OpJump)
		if err := c.patchJump(elseJump); err != nil {
			return err
		}
		if err := c.compileNode(n.Alternative); err != nil {
			return err
		}
		return c.patchJump(endJump)

	case *ast.WhileStatement:
		loopStart := c.code().Len()
		if err := c.compileNode(n.Condition); err != nil {
			return err
		}
		exitJump := c.emitJump(code.OpJumpIfFalse)
		loop := c.pushLoop(loopStart, false)
		if err := c.compileNode(n.Body); err != nil {
			return err
		}
		if err := c.emitLoop(loopStart); err != nil {
			return err
		}
		if err := c.patchJump(exitJump); err != nil {
			return err
		}
		return c.popLoop(loop, -1)

	case *ast.DoWhileStatement:
		loopStart := c.code().Len()
		loop := c.pushLoop(loopStart, true)
		if err := c.compileNode(n.Body); err != nil {
			return err
		}
		condStart := c.code().Len()
		c.setLine(n.Condition)
		if err := c.compileNode(n.Condition); err != nil {
			return err
		}
		exitJump := c.emitJump(code.OpJumpIfFalse)
		if err := c.emitLoop(loopStart); err != nil {
			return err
		}
		if err := c.patchJump(exitJump); err != nil {
			return err
		}
		return c.popLoop(loop, condStart)

	case *ast.ForStatement:
		return c.compileFor(n)

	case *ast.LoopStatement:
		loopStart := c.code().Len()
		loop := c.pushLoop(loopStart, false)
		if err := c.compileNode(n.Body); err != nil {
			return err
		}
		if err := c.emitLoop(loopStart); err != nil {
			return err
		}
		return c.popLoop(loop, -1)

	case *ast.ForInStatement:
		return c.compileNode(c.lowerForIn(n))

	case *ast.CaseStatement:
		return c.compileNode(c.lowerCase(n))

	case *ast.BreakStatement:
		loop := c.currentLoop()
		if loop == nil {
			return c.errorf(ErrLoopControl, "break used outside of loop")
		}
		c.popLoopLocals(loop)
		slot := c.emitJump(code.OpJump)
		loop.pending = append(loop.pending, pendingJump{slot: slot, kind: jumpBreak})

	case *ast.ContinueStatement:
		loop := c.currentLoop()
		if loop == nil {
			return c.errorf(ErrLoopControl, "continue used outside of loop")
		}
		c.popLoopLocals(loop)
		if !loop.doWhile {
			return c.emitLoop(loop.start)
		}
		slot := c.emitJump(code.OpJump)
		loop.pending = append(loop.pending, pendingJump{slot: slot, kind: jumpContinue})

	case *ast.ReturnStatement:
		return c.compileReturn(n)

	case *ast.Identifier:
		b, err := c.resolve(n.Value)
		if err != nil {
			return err
		}
		c.emitGet(b)

	case *ast.SelfExpression:
		if !c.inMethod() {
			return c.errorf(ErrSelfOutsideMethod, "self used outside of a method")
		}
		b, err := c.resolve("self")
		if err != nil {
			return err
		}
		c.emitGet(b)

	case *ast.BaseExpression:
		if err := c.loadBase(); err != nil {
			return err
		}
		nameIdx, err := c.identifierConstant(n.Method.Value)
		if err != nil {
			return err
		}
		c.emit(code.OpGetBase, nameIdx)

	case *ast.IntegerLiteral:
		return c.emitConstant(&object.Integer{Value: n.Value})

	case *ast.FloatLiteral:
		return c.emitConstant(&object.Float{Value: n.Value})

	case *ast.StringLiteral:
		return c.emitConstant(c.interner.Intern(n.Value))

	case *ast.Interpolation:
		return c.compileInterpolation(n)

	case *ast.BooleanLiteral:
		if n.Value {
			c.emit(code.OpTrue)
		} else {
			c.emit(code.OpFalse)
		}

	case *ast.NilLiteral:
		c.emit(code.OpNull)

	case *ast.ListLiteral:
		if len(n.Elements) > maxEntries {
			return c.errorf(ErrTooManyEntries, "too many elements in list literal")
		}
		for _, el := range n.Elements {
			if err := c.compileNode(el); err != nil {
				return err
			}
		}
		c.emit(code.OpList, len(n.Elements))

	case *ast.DictLiteral:
		if len(n.Entries) > maxEntries {
			return c.errorf(ErrTooManyEntries, "too many entries in dict literal")
		}
		for _, e := range n.Entries {
			// A bare identifier key is its own name.
			if id, ok := e.Key.(*ast.Identifier); ok {
				if err := c.emitConstant(c.interner.Intern(id.Value)); err != nil {
					return err
				}
			} else if err := c.compileNode(e.Key); err != nil {
				return err
			}
			if err := c.compileNode(e.Value); err != nil {
				return err
			}
		}
		c.emit(code.OpDict, len(n.Entries))

	case *ast.RangeExpression:
		if err := c.compileNode(n.Start); err != nil {
			return err
		}
		if err := c.compileNode(n.End); err != nil {
			return err
		}
		c.emit(code.OpRange)

	case *ast.PrefixExpression:
		if err := c.compileNode(n.Right); err != nil {
			return err
		}
		switch n.Operator {
		case "-":
			c.emit(code.OpNegate)
		case "not", "!":
			c.emit(code.OpNot)
		default:
			return c.errorf(ErrUnsupported, "unknown operator %s", n.Operator)
		}

	case *ast.InfixExpression:
		if err := c.compileNode(n.Left); err != nil {
			return err
		}
		if err := c.compileNode(n.Right); err != nil {
			return err
		}
		op, ok := infixOps[n.Operator]
		if !ok {
			return c.errorf(ErrUnsupported, "unknown operator %s", n.Operator)
		}
		c.setLine(n)
		c.emit(op)

	case *ast.LogicalExpression:
		return c.compileLogical(n)

	case *ast.AssignExpression:
		return c.compileAssign(n)

	case *ast.PostfixExpression:
		return c.compilePostfix(n)

	case *ast.CallExpression:
		return c.compileCall(n)

	case *ast.PropertyExpression:
		if err := c.compileNode(n.Object); err != nil {
			return err
		}
		nameIdx, err := c.identifierConstant(n.Property.Value)
		if err != nil {
			return err
		}
		c.setLine(n)
		c.emit(code.OpGetProperty, nameIdx)

	case *ast.IndexExpression:
		if err := c.compileNode(n.Left); err != nil {
			return err
		}
		if err := c.compileNode(n.Index); err != nil {
			return err
		}
		c.setLine(n)
		c.emit(code.OpGetIndex)

	case *ast.FunctionLiteral:
		return c.compileFunction(n, kindFunction, n.Name)

	default:
		return c.errorf(ErrUnsupported, "cannot compile %T", node)
	}

	return nil
}

var infixOps = map[string]code.Opcode{
	"+":  code.OpAdd,
	"-":  code.OpSub,
	"*":  code.OpMul,
	"/":  code.OpDiv,
	"%":  code.OpMod,
	"==": code.OpEqual,
	"!=": code.OpNotEqual,
	">":  code.OpGreater,
	">=": code.OpGreaterEqual,
	"<":  code.OpLess,
	"<=": code.OpLessEqual,
}

func (c *Compiler) pushLoop(start int, doWhile bool) *loopContext {
	loop := &loopContext{start: start, depth: c.fs.scopeDepth, doWhile: doWhile}
	c.fs.loops = append(c.fs.loops, loop)
	return loop
}

func (c *Compiler) currentLoop() *loopContext {
	if len(c.fs.loops) == 0 {
		return nil
	}
	return c.fs.loops[len(c.fs.loops)-1]
}

// popLoop resolves every pending jump of loop. Breaks land on the current end
// of the buffer, forward continues on continueTarget.
func (c *Compiler) popLoop(loop *loopContext, continueTarget int) error {
	c.fs.loops = c.fs.loops[:len(c.fs.loops)-1]
	end := c.code().Len()
	for _, p := range loop.pending {
		target := end
		if p.kind == jumpContinue {
			target = continueTarget
		}
		if err := c.patchJumpTo(p.slot, target); err != nil {
			return err
		}
	}
	return nil
}

// popLoopLocals discards the locals declared inside loop without forgetting
// them; the code after the jump still sees them in scope.
func (c *Compiler) popLoopLocals(loop *loopContext) {
	if n := c.fs.localsAbove(loop.depth); n > 0 {
		c.emit(code.OpPopN, n)
	}
}

func (c *Compiler) compileFor(n *ast.ForStatement) error {
	c.beginScope()
	if n.Init != nil {
		if err := c.compileNode(n.Init); err != nil {
			return err
		}
	}

	loopStart := c.code().Len()
	exitJump := -1
	if n.Condition != nil {
		if err := c.compileNode(n.Condition); err != nil {
			return err
		}
		exitJump = c.emitJump(code.OpJumpIfFalse)
	}

	if n.Post != nil {
		bodyJump := c.emitJump(code.OpJump)
		postStart := c.code().Len()
		if err := c.compileNode(n.Post); err != nil {
			return err
		}
		c.emit(code.OpPop)
		if err := c.emitLoop(loopStart); err != nil {
			return err
		}
		loopStart = postStart
		if err := c.patchJump(bodyJump); err != nil {
			return err
		}
	}

	loop := c.pushLoop(loopStart, false)
	if err := c.compileNode(n.Body); err != nil {
		return err
	}
	if err := c.emitLoop(loopStart); err != nil {
		return err
	}
	if exitJump >= 0 {
		if err := c.patchJump(exitJump); err != nil {
			return err
		}
	}
	if err := c.popLoop(loop, -1); err != nil {
		return err
	}
	c.endScope()
	return nil
}

func (c *Compiler) compileLet(n *ast.LetStatement) error {
	name := n.Name.Value
	if c.fs.scopeDepth == 0 {
		if c.isGlobalConst(name) {
			return c.errorf(ErrRedeclared, "constant %q already declared", name)
		}
		if err := c.compileValue(n.Value); err != nil {
			return err
		}
		nameIdx, err := c.identifierConstant(name)
		if err != nil {
			return err
		}
		c.emit(code.OpDefineGlobal, nameIdx)
		if n.Const {
			c.pendingConsts[name] = true
		}
		return nil
	}

	slot, err := c.addLocal(name, n.Const)
	if err != nil {
		return err
	}
	if err := c.compileValue(n.Value); err != nil {
		return err
	}
	c.fs.markInitialized()
	c.emit(code.OpDefineLocal, slot)
	return nil
}

func (c *Compiler) compileValue(v ast.Expression) error {
	if v == nil {
		c.emit(code.OpNull)
		return nil
	}
	return c.compileNode(v)
}

// declareNamed binds name for a function or definition statement before its
// value is built. A local stays uninitialized until the caller marks it, so
// parameter defaults cannot read it. It returns a finisher that emits the
// define instruction.
func (c *Compiler) declareNamed(name string) (func() error, error) {
	if c.fs.scopeDepth == 0 {
		if c.isGlobalConst(name) {
			return nil, c.errorf(ErrRedeclared, "constant %q already declared", name)
		}
		nameIdx, err := c.identifierConstant(name)
		if err != nil {
			return nil, err
		}
		return func() error {
			c.emit(code.OpDefineGlobal, nameIdx)
			return nil
		}, nil
	}
	slot, err := c.addLocal(name, false)
	if err != nil {
		return nil, err
	}
	return func() error {
		c.emit(code.OpDefineLocal, slot)
		return nil
	}, nil
}

// compileFunctionStatement marks a local function name initialized after its
// defaults are built and before its body, so only the body may recurse.
func (c *Compiler) compileFunctionStatement(n *ast.FunctionStatement) error {
	define, err := c.declareNamed(n.Name.Value)
	if err != nil {
		return err
	}
	defaults, err := c.compileDefaults(n.Function)
	if err != nil {
		return err
	}
	c.fs.markInitialized()
	if err := c.compileClosure(n.Function, kindFunction, n.Name.Value, defaults); err != nil {
		return err
	}
	return define()
}

func (c *Compiler) compileDefinition(n *ast.DefinitionStatement) error {
	name := n.Name.Value
	nameIdx, err := c.identifierConstant(name)
	if err != nil {
		return err
	}
	define, err := c.declareNamed(name)
	if err != nil {
		return err
	}
	c.fs.markInitialized()
	c.emit(code.OpDefinition, nameIdx)
	if err := define(); err != nil {
		return err
	}

	if n.Base != nil {
		if n.Base.Value == name {
			return c.errorf(ErrBaseMisuse, "definition %q cannot derive from itself", name)
		}
		if err := c.compileNode(n.Base); err != nil {
			return err
		}
		c.beginScope()
		if _, err := c.addLocal("base", false); err != nil {
			return err
		}
		c.fs.markInitialized()
		if err := c.compileNode(n.Name); err != nil {
			return err
		}
		c.emit(code.OpDerive)
	}

	if err := c.compileNode(n.Name); err != nil {
		return err
	}
	for _, m := range n.Methods {
		c.setLine(m.Function)
		kind := kindMethod
		switch {
		case m.Static:
			kind = kindStatic
		case m.Name.Value == "init":
			kind = kindInitializer
		}
		if err := c.compileFunction(m.Function, kind, m.Name.Value); err != nil {
			return err
		}
		methodIdx, err := c.identifierConstant(m.Name.Value)
		if err != nil {
			return err
		}
		c.emit(code.OpMethod, methodIdx)
	}
	c.emit(code.OpPop)

	if n.Base != nil {
		c.endScope()
	}
	return nil
}

func (c *Compiler) compileFunction(fl *ast.FunctionLiteral, kind funcKind, name string) error {
	defaults, err := c.compileDefaults(fl)
	if err != nil {
		return err
	}
	return c.compileClosure(fl, kind, name, defaults)
}

// compileDefaults emits the default values of fl as (value, position) pairs.
// The enclosing function evaluates them when the closure is made.
func (c *Compiler) compileDefaults(fl *ast.FunctionLiteral) (int, error) {
	if len(fl.Parameters) > maxParameters {
		return 0, c.errorf(ErrTooManyParameters, "can't have more than %d parameters", maxParameters)
	}
	defaults := 0
	for i, p := range fl.Parameters {
		if p.Default == nil {
			continue
		}
		if err := c.compileNode(p.Default); err != nil {
			return 0, err
		}
		if err := c.emitConstant(&object.Integer{Value: int64(i + 1)}); err != nil {
			return 0, err
		}
		defaults++
	}
	return defaults, nil
}

func (c *Compiler) compileClosure(fl *ast.FunctionLiteral, kind funcKind, name string, defaults int) error {
	fs := newFuncState(c.fs, kind, name)
	fs.fn.Arity = len(fl.Parameters)
	fs.fn.IsLambda = fl.Lambda
	fs.fn.IsVariadic = fl.Variadic
	fs.fn.IsStatic = kind == kindStatic
	fs.fn.DefaultCount = defaults

	c.fs = fs
	err := c.compileFunctionBody(fl, kind)
	c.fs = fs.enclosing
	if err != nil {
		return err
	}
	c.logFunction(fs.fn)

	fnIdx, err := c.addConstant(fs.fn)
	if err != nil {
		return err
	}
	c.setLine(fl)
	c.emit(code.OpClosure, fnIdx)
	for _, uv := range fs.upvalues {
		if uv.isLocal {
			c.emit(code.OpCaptureLocal, uv.index)
		} else {
			c.emit(code.OpCaptureUpvalue, uv.index)
		}
	}
	return nil
}

func (c *Compiler) compileFunctionBody(fl *ast.FunctionLiteral, kind funcKind) error {
	c.beginScope()
	for _, p := range fl.Parameters {
		if _, err := c.addLocal(p.Name.Value, false); err != nil {
			return err
		}
		c.fs.markInitialized()
	}
	for _, s := range fl.Body.Statements {
		if err := c.compileNode(s); err != nil {
			return err
		}
	}
	c.emitImplicitReturn(kind)
	return nil
}

func (c *Compiler) emitImplicitReturn(kind funcKind) {
	if kind == kindInitializer {
		c.emit(code.OpGetLocal, 0)
	} else {
		c.emit(code.OpNull)
	}
	c.emit(code.OpReturn)
}

func (c *Compiler) compileReturn(n *ast.ReturnStatement) error {
	switch c.fs.kind {
	case kindScript:
		return c.errorf(ErrInvalidReturn, "can't return from top-level code")
	case kindInitializer:
		if n.ReturnValue != nil {
			return c.errorf(ErrInvalidReturn, "can't return a value from an initializer")
		}
		c.emitImplicitReturn(kindInitializer)
		return nil
	}
	if err := c.compileValue(n.ReturnValue); err != nil {
		return err
	}
	c.emit(code.OpReturn)
	return nil
}

// inMethod reports whether self is visible: the nearest enclosing method
// must be an instance method.
func (c *Compiler) inMethod() bool {
	for fs := c.fs; fs != nil; fs = fs.enclosing {
		switch fs.kind {
		case kindMethod, kindInitializer:
			return true
		case kindStatic, kindScript:
			return false
		}
	}
	return false
}

// loadBase pushes self and then the base definition of the enclosing
// definition.
func (c *Compiler) loadBase() error {
	if !c.inMethod() {
		return c.errorf(ErrBaseMisuse, "base used outside of a method")
	}
	self, err := c.resolve("self")
	if err != nil {
		return err
	}
	base, err := c.resolve("base")
	if err != nil {
		return err
	}
	if base.kind == scopeGlobal {
		return c.errorf(ErrBaseMisuse, "base used in a definition without a base")
	}
	c.emitGet(self)
	c.emitGet(base)
	return nil
}

func (c *Compiler) emitGet(b binding) {
	switch b.kind {
	case scopeLocal:
		c.emit(code.OpGetLocal, b.index)
	case scopeUpvalue:
		c.emit(code.OpGetUpvalue, b.index)
	default:
		c.emit(code.OpGetGlobal, b.index)
	}
}

func (c *Compiler) emitSet(b binding) {
	switch b.kind {
	case scopeLocal:
		c.emit(code.OpSetLocal, b.index)
	case scopeUpvalue:
		c.emit(code.OpSetUpvalue, b.index)
	default:
		c.emit(code.OpSetGlobal, b.index)
	}
}

func (c *Compiler) compileLogical(n *ast.LogicalExpression) error {
	if err := c.compileNode(n.Left); err != nil {
		return err
	}
	c.setLine(n)
	switch n.Operator {
	case "and":
		endJump := c.emitJump(code.OpJumpIfFalseOrPop)
		if err := c.compileNode(n.Right); err != nil {
			return err
		}
		return c.patchJump(endJump)
	case "or":
		elseJump := c.emitJump(code.OpJumpIfFalseNoPop)
		endJump := c.emitJump(code.OpJump)
		if err := c.patchJump(elseJump); err != nil {
			return err
		}
		c.emit(code.OpPop)
		if err := c.compileNode(n.Right); err != nil {
			return err
		}
		return c.patchJump(endJump)
	}
	return c.errorf(ErrUnsupported, "unknown operator %s", n.Operator)
}

func (c *Compiler) binaryOp(op string) (code.Opcode, error) {
	if opc, ok := infixOps[op]; ok {
		return opc, nil
	}
	return 0, c.errorf(ErrUnsupported, "unknown operator %s=", op)
}

func (c *Compiler) assignable(name string) (binding, error) {
	b, err := c.resolve(name)
	if err != nil {
		return b, err
	}
	if b.isConst {
		return b, c.errorf(ErrConstAssign, "cannot assign to constant %q", name)
	}
	return b, nil
}

func (c *Compiler) compileAssign(n *ast.AssignExpression) error {
	compound := n.Operator != "="
	var op code.Opcode
	if compound {
		var err error
		if op, err = c.binaryOp(n.Operator); err != nil {
			return err
		}
	}

	switch t := n.Target.(type) {
	case *ast.Identifier:
		b, err := c.assignable(t.Value)
		if err != nil {
			return err
		}
		if compound {
			c.emitGet(b)
		}
		if err := c.compileNode(n.Value); err != nil {
			return err
		}
		c.setLine(n)
		if compound {
			c.emit(op)
		}
		c.emitSet(b)

	case *ast.PropertyExpression:
		if err := c.compileNode(t.Object); err != nil {
			return err
		}
		nameIdx, err := c.identifierConstant(t.Property.Value)
		if err != nil {
			return err
		}
		if compound {
			c.emit(code.OpDup)
			c.emit(code.OpGetProperty, nameIdx)
		}
		if err := c.compileNode(n.Value); err != nil {
			return err
		}
		c.setLine(n)
		if compound {
			c.emit(op)
		}
		c.emit(code.OpSetProperty, nameIdx)

	case *ast.IndexExpression:
		if err := c.compileNode(t.Left); err != nil {
			return err
		}
		if err := c.compileNode(t.Index); err != nil {
			return err
		}
		if compound {
			c.emit(code.OpDupTwo)
			c.emit(code.OpGetIndex)
		}
		if err := c.compileNode(n.Value); err != nil {
			return err
		}
		c.setLine(n)
		if compound {
			c.emit(op)
		}
		c.emit(code.OpSetIndex)

	default:
		return c.errorf(ErrInvalidAssignTarget, "invalid assignment target %s", n.Target.String())
	}
	return nil
}

// compilePostfix leaves the old value on the stack.
func (c *Compiler) compilePostfix(n *ast.PostfixExpression) error {
	op := code.OpAdd
	if n.Operator == "--" {
		op = code.OpSub
	}
	one, err := c.makeConstant(&object.Integer{Value: 1})
	if err != nil {
		return err
	}

	switch t := n.Target.(type) {
	case *ast.Identifier:
		b, err := c.assignable(t.Value)
		if err != nil {
			return err
		}
		c.emitGet(b)
		c.emit(code.OpDup)
		c.emit(code.OpConstant, one)
		c.emit(op)
		c.emitSet(b)
		c.emit(code.OpPop)

	case *ast.PropertyExpression:
		if err := c.compileNode(t.Object); err != nil {
			return err
		}
		nameIdx, err := c.identifierConstant(t.Property.Value)
		if err != nil {
			return err
		}
		c.setLine(n)
		c.emit(code.OpDup)
		c.emit(code.OpGetProperty, nameIdx)
		c.emit(code.OpDup)
		c.emit(code.OpRotate, 2)
		c.emit(code.OpConstant, one)
		c.emit(op)
		c.emit(code.OpSetProperty, nameIdx)
		c.emit(code.OpPop)

	case *ast.IndexExpression:
		if err := c.compileNode(t.Left); err != nil {
			return err
		}
		if err := c.compileNode(t.Index); err != nil {
			return err
		}
		c.setLine(n)
		c.emit(code.OpDupTwo)
		c.emit(code.OpGetIndex)
		c.emit(code.OpDup)
		c.emit(code.OpRotate, 3)
		c.emit(code.OpConstant, one)
		c.emit(op)
		c.emit(code.OpSetIndex)
		c.emit(code.OpPop)

	default:
		return c.errorf(ErrInvalidAssignTarget, "invalid %s target %s", n.Operator, n.Target.String())
	}
	return nil
}

func (c *Compiler) compileArguments(args []ast.Expression) error {
	if len(args) > maxParameters {
		return c.errorf(ErrTooManyParameters, "can't have more than %d arguments", maxParameters)
	}
	for _, a := range args {
		if err := c.compileNode(a); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileCall(n *ast.CallExpression) error {
	switch fn := n.Function.(type) {
	case *ast.PropertyExpression:
		if err := c.compileNode(fn.Object); err != nil {
			return err
		}
		nameIdx, err := c.identifierConstant(fn.Property.Value)
		if err != nil {
			return err
		}
		if err := c.compileArguments(n.Arguments); err != nil {
			return err
		}
		c.setLine(n)
		c.emit(code.OpInvoke, nameIdx, len(n.Arguments))

	case *ast.BaseExpression:
		if !c.inMethod() {
			return c.errorf(ErrBaseMisuse, "base used outside of a method")
		}
		self, err := c.resolve("self")
		if err != nil {
			return err
		}
		c.emitGet(self)
		if err := c.compileArguments(n.Arguments); err != nil {
			return err
		}
		base, err := c.resolve("base")
		if err != nil {
			return err
		}
		if base.kind == scopeGlobal {
			return c.errorf(ErrBaseMisuse, "base used in a definition without a base")
		}
		c.emitGet(base)
		nameIdx, err := c.identifierConstant(fn.Method.Value)
		if err != nil {
			return err
		}
		c.setLine(n)
		c.emit(code.OpInvokeBase, nameIdx, len(n.Arguments))

	default:
		if err := c.compileNode(n.Function); err != nil {
			return err
		}
		if err := c.compileArguments(n.Arguments); err != nil {
			return err
		}
		c.setLine(n)
		c.emit(code.OpCall, len(n.Arguments))
	}
	return nil
}

// compileInterpolation concatenates the literal parts with str(expr) of each
// embedded expression. str is looked up as a global, bypassing locals.
func (c *Compiler) compileInterpolation(n *ast.Interpolation) error {
	if len(n.Parts) == 0 {
		return c.emitConstant(c.interner.Intern(""))
	}
	for i, part := range n.Parts {
		if lit, ok := part.(*ast.StringLiteral); ok {
			if err := c.emitConstant(c.interner.Intern(lit.Value)); err != nil {
				return err
			}
		} else {
			if err := c.compileNode(part); err != nil {
				return err
			}
			c.setLine(n)
			c.emit(code.OpStringify)
		}
		if i > 0 {
			c.emit(code.OpAdd)
		}
	}
	return nil
}
