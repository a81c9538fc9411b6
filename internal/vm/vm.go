package vm

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/tliron/commonlog"

	"kestrel/internal/code"
	"kestrel/internal/limits"
	"kestrel/internal/logging"
	"kestrel/internal/object"
	"kestrel/internal/semantics"
)

const (
	StackSize = limits.DefaultStackSize
	MaxFrames = limits.DefaultMaxFrames
)

// cancelCheckEvery is how many instructions run between context checks.
const cancelCheckEvery = 256

type VM struct {
	interner *object.Interner

	stack []object.Object
	sp    int

	frames       []*Frame
	maxFrames    int
	openUpvalues []*object.Upvalue

	script     *object.Function
	globals    map[*object.String]object.Object
	builtins   map[*object.String]object.Object
	lastPopped object.Object
	faulted    bool

	maxSteps int64
	steps    int64
	budget   *limits.Budget
	ctx      context.Context

	out     io.Writer
	start   time.Time
	regexps map[string]*regexp2.Regexp
	natives nativeTable

	names struct {
		init, done, value *object.String
	}

	log   commonlog.Logger
	trace bool
}

type Option func(*VM)

// WithInterner shares the interner the compiler used. Without it the VM
// cannot resolve globals compiled elsewhere.
func WithInterner(in *object.Interner) Option {
	return func(m *VM) { m.interner = in }
}

func WithLimits(l limits.Limits) Option {
	return func(m *VM) {
		if l.StackSize > 0 {
			m.stack = make([]object.Object, l.StackSize)
		}
		if l.MaxFrames > 0 {
			m.maxFrames = l.MaxFrames
		}
		m.maxSteps = l.MaxSteps
		if l.MaxMemory > 0 {
			m.budget = limits.NewBudget(l.MaxMemory)
		}
	}
}

func WithMaxFrames(n int) Option { return func(m *VM) { m.maxFrames = n } }

func WithMaxSteps(n int64) Option { return func(m *VM) { m.maxSteps = n } }

func WithStackSize(n int) Option {
	return func(m *VM) { m.stack = make([]object.Object, n) }
}

func WithOutput(w io.Writer) Option { return func(m *VM) { m.out = w } }

// WithTrace logs every executed instruction at debug level.
func WithTrace(on bool) Option { return func(m *VM) { m.trace = on } }

// New prepares a VM to run the top-level function fn.
func New(fn *object.Function, opts ...Option) *VM {
	m := &VM{
		stack:     make([]object.Object, StackSize),
		maxFrames: MaxFrames,
		globals:   map[*object.String]object.Object{},
		builtins:  map[*object.String]object.Object{},
		ctx:       context.Background(),
		out:       os.Stdout,
		start:     time.Now(),
		regexps:   map[string]*regexp2.Regexp{},
		log:       logging.VM(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.interner == nil {
		m.interner = object.NewInterner()
	}
	m.names.init = m.interner.Intern("init")
	m.names.done = m.interner.Intern("done")
	m.names.value = m.interner.Intern("value")
	m.DefineBuiltins(m.stdlib())
	m.Reinitialize(fn)
	return m
}

// Reinitialize installs fn as a fresh top-level frame. Globals survive.
func (m *VM) Reinitialize(fn *object.Function) {
	m.unwind()
	m.script = fn
	if fn == nil {
		return
	}
	cl := &object.Closure{Fn: fn}
	m.stack[0] = cl
	m.sp = 1
	m.frames = append(m.frames, NewFrame(cl, 0))
}

// DefineBuiltins adds native functions visible as globals. A script global
// of the same name shadows them.
func (m *VM) DefineBuiltins(table map[string]*object.Builtin) {
	for name, b := range table {
		m.builtins[m.interner.Intern(name)] = b
	}
}

func (m *VM) Faulted() bool { return m.faulted }

// ClearFault makes a faulted VM usable again. Globals are kept.
func (m *VM) ClearFault() {
	m.faulted = false
	m.unwind()
}

func (m *VM) LastPopped() object.Object { return m.lastPopped }

func (m *VM) Interner() *object.Interner { return m.interner }

func (m *VM) Global(name string) (object.Object, bool) {
	key := m.interner.Intern(name)
	if v, ok := m.globals[key]; ok {
		return v, true
	}
	v, ok := m.builtins[key]
	return v, ok
}

func (m *VM) Run() error {
	return m.RunContext(context.Background())
}

// RunContext runs until the top-level function returns. Cancelling ctx
// stops the VM between instructions with ErrCancelled.
func (m *VM) RunContext(ctx context.Context) error {
	if m.faulted {
		return ErrFaulted
	}
	if len(m.frames) == 0 {
		return nil
	}
	m.ctx = ctx
	m.steps = 0
	if err := m.run(0); err != nil {
		return err
	}
	// The script's return value is left on the stack.
	m.sp = 0
	m.stack[0] = nil
	return nil
}

// Call invokes callee with args from the host, running script code to
// completion. Builtins use it to call back into the script.
func (m *VM) Call(callee object.Object, args ...object.Object) (object.Object, error) {
	if m.faulted {
		return nil, ErrFaulted
	}
	if err := m.push(callee); err != nil {
		return nil, err
	}
	for _, a := range args {
		if err := m.push(a); err != nil {
			return nil, err
		}
	}
	depth := len(m.frames)
	if err := m.callValue(callee, len(args)); err != nil {
		return nil, err
	}
	if len(m.frames) > depth {
		if err := m.run(depth); err != nil {
			return nil, err
		}
	}
	return m.pop(), nil
}

func (m *VM) currentFrame() *Frame {
	return m.frames[len(m.frames)-1]
}

func (m *VM) pushFrame(f *Frame) error {
	if len(m.frames) >= m.maxFrames {
		return m.fault(ErrStackOverflow, "stack overflow (%d frames)", m.maxFrames)
	}
	m.frames = append(m.frames, f)
	return nil
}

func (m *VM) popFrame() *Frame {
	f := m.frames[len(m.frames)-1]
	m.frames[len(m.frames)-1] = nil
	m.frames = m.frames[:len(m.frames)-1]
	return f
}

func (m *VM) push(o object.Object) error {
	if m.sp >= len(m.stack) {
		return m.fault(ErrStackOverflow, "stack overflow (%d values)", len(m.stack))
	}
	m.stack[m.sp] = o
	m.sp++
	return nil
}

func (m *VM) pop() object.Object {
	m.sp--
	o := m.stack[m.sp]
	m.stack[m.sp] = nil
	return o
}

func (m *VM) peek(distance int) object.Object {
	return m.stack[m.sp-1-distance]
}

// dropTo discards every value at or above index top.
func (m *VM) dropTo(top int) {
	for i := top; i < m.sp; i++ {
		m.stack[i] = nil
	}
	m.sp = top
}

func (m *VM) tick() error {
	m.steps++
	if m.maxSteps > 0 && m.steps > m.maxSteps {
		return m.fault(ErrStepLimit, "step limit exceeded (%d)", m.maxSteps)
	}
	if m.steps%cancelCheckEvery == 0 {
		if err := m.ctx.Err(); err != nil {
			return m.fault(ErrCancelled, "execution cancelled: %v", err)
		}
	}
	return nil
}

// run executes instructions until the frame stack shrinks to stop frames.
func (m *VM) run(stop int) error {
	for len(m.frames) > stop {
		if err := m.tick(); err != nil {
			return err
		}
		frame := m.currentFrame()
		ins := frame.Instructions()
		frame.ip++
		op := code.Opcode(ins[frame.ip])

		if m.trace {
			if def, ok := code.Lookup(op); ok {
				m.log.Debugf("%04d %-20s sp=%d frames=%d", frame.ip, def.Name, m.sp, len(m.frames))
			}
		}

		switch op {
		case code.OpConstant:
			idx := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			if err := m.push(frame.constants()[idx]); err != nil {
				return err
			}

		case code.OpNull:
			if err := m.push(object.NIL); err != nil {
				return err
			}

		case code.OpTrue:
			if err := m.push(object.TRUE); err != nil {
				return err
			}

		case code.OpFalse:
			if err := m.push(object.FALSE); err != nil {
				return err
			}

		case code.OpPop:
			m.lastPopped = m.pop()

		case code.OpPopN:
			n := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			m.closeUpvalues(m.sp - n)
			m.dropTo(m.sp - n)

		case code.OpDup:
			if err := m.push(m.peek(0)); err != nil {
				return err
			}

		case code.OpDupTwo:
			a, b := m.peek(1), m.peek(0)
			if err := m.push(a); err != nil {
				return err
			}
			if err := m.push(b); err != nil {
				return err
			}

		case code.OpRotate:
			depth := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			top := m.stack[m.sp-1]
			copy(m.stack[m.sp-depth:m.sp], m.stack[m.sp-depth-1:m.sp-1])
			m.stack[m.sp-depth-1] = top

		case code.OpDefineGlobal:
			name := frame.constants()[code.ReadUint16(ins[frame.ip+1:])].(*object.String)
			frame.ip += 2
			m.globals[name] = m.pop()

		case code.OpGetGlobal:
			name := frame.constants()[code.ReadUint16(ins[frame.ip+1:])].(*object.String)
			frame.ip += 2
			v, ok := m.globals[name]
			if !ok {
				v, ok = m.builtins[name]
			}
			if !ok {
				return m.fault(ErrUndefinedGlobal, "undefined variable '%s'", name.Value)
			}
			if err := m.push(v); err != nil {
				return err
			}

		case code.OpSetGlobal:
			name := frame.constants()[code.ReadUint16(ins[frame.ip+1:])].(*object.String)
			frame.ip += 2
			if _, ok := m.globals[name]; !ok {
				return m.fault(ErrUndefinedAssign, "assignment to undefined variable '%s'", name.Value)
			}
			m.globals[name] = m.peek(0)

		case code.OpDefineLocal:
			frame.ip++

		case code.OpGetLocal:
			slot := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			if err := m.push(m.stack[frame.slot+slot]); err != nil {
				return err
			}

		case code.OpSetLocal:
			slot := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			m.stack[frame.slot+slot] = m.peek(0)

		case code.OpGetUpvalue:
			idx := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			if err := m.push(m.upvalueGet(frame.cl.Upvalues[idx])); err != nil {
				return err
			}

		case code.OpSetUpvalue:
			idx := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			m.upvalueSet(frame.cl.Upvalues[idx], m.peek(0))

		case code.OpGetProperty:
			name := frame.constants()[code.ReadUint16(ins[frame.ip+1:])].(*object.String)
			frame.ip += 2
			v, err := m.getProperty(m.pop(), name)
			if err != nil {
				return err
			}
			if err := m.push(v); err != nil {
				return err
			}

		case code.OpSetProperty:
			name := frame.constants()[code.ReadUint16(ins[frame.ip+1:])].(*object.String)
			frame.ip += 2
			val := m.pop()
			obj := m.pop()
			if err := m.setProperty(obj, name, val); err != nil {
				return err
			}
			if err := m.push(val); err != nil {
				return err
			}

		case code.OpGetBase:
			name := frame.constants()[code.ReadUint16(ins[frame.ip+1:])].(*object.String)
			frame.ip += 2
			base := m.pop().(*object.Definition)
			self := m.pop()
			method, ok := base.Methods[name.Value]
			if !ok {
				return m.fault(ErrMissingProperty, "undefined method '%s' on base %s", name.Value, base.Name)
			}
			if err := m.push(&object.BoundMethod{Receiver: self, Method: method}); err != nil {
				return err
			}

		case code.OpGetIndex:
			idx := m.pop()
			left := m.pop()
			v, err := m.index(left, idx)
			if err != nil {
				return err
			}
			if err := m.push(v); err != nil {
				return err
			}

		case code.OpSetIndex:
			val := m.pop()
			idx := m.pop()
			left := m.pop()
			if err := m.setIndex(left, idx, val); err != nil {
				return err
			}
			if err := m.push(val); err != nil {
				return err
			}

		case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv, code.OpMod:
			right := m.pop()
			left := m.pop()
			res, err := semantics.BinaryOp(arithmetic[op], left, right)
			if err != nil {
				return m.faultFrom(err)
			}
			if err := m.charge(res); err != nil {
				return err
			}
			if err := m.push(res); err != nil {
				return err
			}

		case code.OpNegate:
			res, err := semantics.Negate(m.pop())
			if err != nil {
				return m.faultFrom(err)
			}
			if err := m.push(res); err != nil {
				return err
			}

		case code.OpNot:
			if err := m.push(object.Bool(!semantics.IsTruthy(m.pop()))); err != nil {
				return err
			}

		case code.OpStringify:
			v := m.pop()
			s, ok := v.(*object.String)
			if !ok {
				s = &object.String{Value: semantics.Stringify(v)}
				if err := m.charge(s); err != nil {
					return err
				}
			}
			if err := m.push(s); err != nil {
				return err
			}

		case code.OpEqual, code.OpNotEqual:
			right := m.pop()
			left := m.pop()
			eq := semantics.Equal(left, right)
			if op == code.OpNotEqual {
				eq = !eq
			}
			if err := m.push(object.Bool(eq)); err != nil {
				return err
			}

		case code.OpGreater, code.OpGreaterEqual, code.OpLess, code.OpLessEqual:
			right := m.pop()
			left := m.pop()
			ok, err := semantics.Compare(comparison[op], left, right)
			if err != nil {
				return m.faultFrom(err)
			}
			if err := m.push(object.Bool(ok)); err != nil {
				return err
			}

		case code.OpJump:
			off := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2 + off

		case code.OpJumpIfFalse:
			off := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			if !semantics.IsTruthy(m.pop()) {
				frame.ip += off
			}

		case code.OpJumpIfFalseOrPop:
			off := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			if semantics.IsTruthy(m.peek(0)) {
				m.pop()
			} else {
				frame.ip += off
			}

		case code.OpJumpIfFalseNoPop:
			off := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			if !semantics.IsTruthy(m.peek(0)) {
				frame.ip += off
			}

		case code.OpLoop:
			off := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2 - off

		case code.OpCall:
			argc := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			if err := m.callValue(m.peek(argc), argc); err != nil {
				return err
			}

		case code.OpInvoke:
			name := frame.constants()[code.ReadUint16(ins[frame.ip+1:])].(*object.String)
			argc := int(code.ReadUint8(ins[frame.ip+3:]))
			frame.ip += 3
			if err := m.invoke(name, argc); err != nil {
				return err
			}

		case code.OpInvokeBase:
			name := frame.constants()[code.ReadUint16(ins[frame.ip+1:])].(*object.String)
			argc := int(code.ReadUint8(ins[frame.ip+3:]))
			frame.ip += 3
			base := m.pop().(*object.Definition)
			method, ok := base.Methods[name.Value]
			if !ok {
				return m.fault(ErrMissingProperty, "undefined method '%s' on base %s", name.Value, base.Name)
			}
			if err := m.callClosure(method, argc); err != nil {
				return err
			}

		case code.OpClosure:
			fn := frame.constants()[code.ReadUint16(ins[frame.ip+1:])].(*object.Function)
			frame.ip += 2
			cl := &object.Closure{Fn: fn, Upvalues: make([]*object.Upvalue, fn.UpvalueCount)}
			if fn.DefaultCount > 0 {
				cl.Defaults = make(map[int]object.Object, fn.DefaultCount)
				for i := 0; i < fn.DefaultCount; i++ {
					pos := m.pop().(*object.Integer)
					cl.Defaults[int(pos.Value)] = m.pop()
				}
			}
			for i := range cl.Upvalues {
				capture := code.Opcode(ins[frame.ip+1])
				idx := int(ins[frame.ip+2])
				frame.ip += 2
				if capture == code.OpCaptureLocal {
					cl.Upvalues[i] = m.captureUpvalue(frame.slot + idx)
				} else {
					cl.Upvalues[i] = frame.cl.Upvalues[idx]
				}
			}
			if err := m.charge(cl); err != nil {
				return err
			}
			if err := m.push(cl); err != nil {
				return err
			}

		case code.OpReturn:
			result := m.pop()
			f := m.popFrame()
			m.closeUpvalues(f.slot)
			m.dropTo(f.slot)
			if err := m.push(result); err != nil {
				return err
			}

		case code.OpList:
			n := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			elems := make([]object.Object, n)
			copy(elems, m.stack[m.sp-n:m.sp])
			m.dropTo(m.sp - n)
			list := &object.List{Elements: elems}
			if err := m.charge(list); err != nil {
				return err
			}
			if err := m.push(list); err != nil {
				return err
			}

		case code.OpDict:
			n := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			start := m.sp - 2*n
			d := object.NewDict()
			for i := start; i < m.sp; i += 2 {
				key := m.stack[i]
				if !d.Set(key, m.stack[i+1]) {
					return m.fault(ErrTypeMismatch, "unusable as dict key: %s", semantics.TypeName(key))
				}
			}
			m.dropTo(start)
			if err := m.charge(d); err != nil {
				return err
			}
			if err := m.push(d); err != nil {
				return err
			}

		case code.OpRange:
			end := m.pop()
			start := m.pop()
			s, ok1 := start.(*object.Integer)
			e, ok2 := end.(*object.Integer)
			if !ok1 || !ok2 {
				return m.fault(ErrTypeMismatch, "range bounds must be int, got %s..%s",
					semantics.TypeName(start), semantics.TypeName(end))
			}
			if err := m.push(&object.Range{Start: s.Value, End: e.Value}); err != nil {
				return err
			}

		case code.OpDefinition:
			name := frame.constants()[code.ReadUint16(ins[frame.ip+1:])].(*object.String)
			frame.ip += 2
			if err := m.push(object.NewDefinition(name.Value)); err != nil {
				return err
			}

		case code.OpDerive:
			child := m.pop().(*object.Definition)
			base, ok := m.peek(0).(*object.Definition)
			if !ok {
				return m.fault(ErrTypeMismatch, "%s cannot derive from %s", child.Name, semantics.TypeName(m.peek(0)))
			}
			child.Derive(base)

		case code.OpMethod:
			name := frame.constants()[code.ReadUint16(ins[frame.ip+1:])].(*object.String)
			frame.ip += 2
			method := m.pop().(*object.Closure)
			def := m.peek(0).(*object.Definition)
			def.Methods[name.Value] = method

		default:
			return m.fault(ErrRuntime, "unknown opcode %d", op)
		}
	}
	return nil
}

var arithmetic = map[code.Opcode]string{
	code.OpAdd: "+",
	code.OpSub: "-",
	code.OpMul: "*",
	code.OpDiv: "/",
	code.OpMod: "%",
}

var comparison = map[code.Opcode]string{
	code.OpGreater:      ">",
	code.OpGreaterEqual: ">=",
	code.OpLess:         "<",
	code.OpLessEqual:    "<=",
}

func (m *VM) upvalueGet(uv *object.Upvalue) object.Object {
	if uv.Open {
		return m.stack[uv.Slot]
	}
	return uv.Value
}

func (m *VM) upvalueSet(uv *object.Upvalue, v object.Object) {
	if uv.Open {
		m.stack[uv.Slot] = v
		return
	}
	uv.Value = v
}

// captureUpvalue returns the open upvalue for slot, creating it once so
// every closure over the same live variable shares it.
func (m *VM) captureUpvalue(slot int) *object.Upvalue {
	for _, uv := range m.openUpvalues {
		if uv.Slot == slot {
			return uv
		}
	}
	uv := &object.Upvalue{Slot: slot, Open: true}
	m.openUpvalues = append(m.openUpvalues, uv)
	return uv
}

// closeUpvalues moves the value of every open upvalue at or above last into
// the upvalue itself.
func (m *VM) closeUpvalues(last int) {
	kept := m.openUpvalues[:0]
	for _, uv := range m.openUpvalues {
		if uv.Slot >= last {
			uv.Value = m.stack[uv.Slot]
			uv.Open = false
			continue
		}
		kept = append(kept, uv)
	}
	for i := len(kept); i < len(m.openUpvalues); i++ {
		m.openUpvalues[i] = nil
	}
	m.openUpvalues = kept
}
