package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"kestrel/internal/compiler"
	"kestrel/internal/lexer"
	"kestrel/internal/object"
	"kestrel/internal/parser"
)

func compileWith(t *testing.T, c *compiler.Compiler, input string) *object.Function {
	t.Helper()
	p := parser.New(lexer.New(input))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	fn, err := c.Compile(program)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return fn
}

// runVM compiles and runs input, returning the VM, everything print wrote
// and the run error.
func runVM(t *testing.T, input string, opts ...Option) (*VM, string, error) {
	t.Helper()
	in := object.NewInterner()
	fn := compileWith(t, compiler.New(in), input)
	var out bytes.Buffer
	opts = append([]Option{WithInterner(in), WithOutput(&out)}, opts...)
	m := New(fn, opts...)
	err := m.Run()
	return m, out.String(), err
}

func newTestVM(t *testing.T, input string, opts ...Option) *VM {
	t.Helper()
	in := object.NewInterner()
	fn := compileWith(t, compiler.New(in), input)
	opts = append([]Option{WithInterner(in), WithOutput(&bytes.Buffer{})}, opts...)
	return New(fn, opts...)
}

func mustRun(t *testing.T, input string, opts ...Option) (*VM, string) {
	t.Helper()
	m, out, err := runVM(t, input, opts...)
	if err != nil {
		var re *RuntimeError
		if errors.As(err, &re) {
			t.Fatalf("runtime error: %s", re.Report())
		}
		t.Fatalf("runtime error: %v", err)
	}
	return m, out
}

func global(t *testing.T, m *VM, name string) object.Object {
	t.Helper()
	v, ok := m.Global(name)
	if !ok {
		t.Fatalf("global %s not defined", name)
	}
	return v
}

func expectInt(t *testing.T, m *VM, name string, want int64) {
	t.Helper()
	v := global(t, m, name)
	i, ok := v.(*object.Integer)
	if !ok || i.Value != want {
		t.Fatalf("expected %s=%d int, got %T (%v)", name, want, v, v)
	}
}

func expectFloat(t *testing.T, m *VM, name string, want float64) {
	t.Helper()
	v := global(t, m, name)
	f, ok := v.(*object.Float)
	if !ok || f.Value != want {
		t.Fatalf("expected %s=%v float, got %T (%v)", name, want, v, v)
	}
}

func expectString(t *testing.T, m *VM, name, want string) {
	t.Helper()
	v := global(t, m, name)
	s, ok := v.(*object.String)
	if !ok || s.Value != want {
		t.Fatalf("expected %s=%q string, got %T (%v)", name, want, v, v)
	}
}

func expectBool(t *testing.T, m *VM, name string, want bool) {
	t.Helper()
	v := global(t, m, name)
	b, ok := v.(*object.Boolean)
	if !ok || b.Value != want {
		t.Fatalf("expected %s=%t bool, got %T (%v)", name, want, v, v)
	}
}

// expectInspect compares the printed form, which is enough for lists and
// dicts.
func expectInspect(t *testing.T, m *VM, name, want string) {
	t.Helper()
	v := global(t, m, name)
	if got := v.Inspect(); got != want {
		t.Fatalf("expected %s=%s, got %T (%s)", name, want, v, got)
	}
}

func TestArithmeticPromotion(t *testing.T) {
	m, _ := mustRun(t, `
let a = 1 + 2.0;
let b = 5 / 2;
let c = 5 % 2;
let d = 4 / 2;
let e = true + 1;
let f = 7.5 % 2;
let g = 2 * 3;
let h = -(1 + 1);
let s = "ab" * 3;
`)
	expectFloat(t, m, "a", 3.0)
	if got := global(t, m, "a").Inspect(); got != "3.0" {
		t.Fatalf("expected a to print as 3.0, got %s", got)
	}
	expectFloat(t, m, "b", 2.5)
	expectInt(t, m, "c", 1)
	expectFloat(t, m, "d", 2.0)
	expectInt(t, m, "e", 2)
	expectFloat(t, m, "f", 1.5)
	expectInt(t, m, "g", 6)
	expectInt(t, m, "h", -2)
	expectString(t, m, "s", "ababab")
}

func TestEqualityAndComparison(t *testing.T) {
	m, _ := mustRun(t, `
let a = 1 == 1.0;
let b = true == 1;
let c = 1 < 2.5;
let d = [1, 2] == [1, 2];
let e = nil == false;
let f = "x" != "y";
`)
	expectBool(t, m, "a", true)
	expectBool(t, m, "b", false)
	expectBool(t, m, "c", true)
	expectBool(t, m, "d", true)
	expectBool(t, m, "e", false)
	expectBool(t, m, "f", true)
}

func TestDivisionByZeroIsRecoverable(t *testing.T) {
	for _, src := range []string{`let x = 5 / 0;`, `let x = 5 % 0;`, `let x = 5.0 / 0;`} {
		in := object.NewInterner()
		c := compiler.New(in)
		var out bytes.Buffer
		m := New(compileWith(t, c, "let a = 1;\n"+src), WithInterner(in), WithOutput(&out))

		err := m.Run()
		if !errors.Is(err, ErrDivisionByZero) {
			t.Fatalf("%s: expected ErrDivisionByZero, got %v", src, err)
		}
		if !m.Faulted() {
			t.Fatalf("%s: vm should be faulted", src)
		}
		if err := m.Run(); !errors.Is(err, ErrFaulted) {
			t.Fatalf("%s: expected ErrFaulted before ClearFault, got %v", src, err)
		}

		m.ClearFault()
		m.Reinitialize(compileWith(t, c, `let b = a + 1;`))
		if err := m.Run(); err != nil {
			t.Fatalf("%s: rerun failed: %v", src, err)
		}
		expectInt(t, m, "b", 2)
	}
}

func TestClosureKeepsValueAfterFault(t *testing.T) {
	in := object.NewInterner()
	c := compiler.New(in)
	src := `let g = nil; { let x = 10; g = fn() { return x; }; let z = 1 / 0; }`
	m := New(compileWith(t, c, src), WithInterner(in), WithOutput(&bytes.Buffer{}))
	if err := m.Run(); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}

	m.ClearFault()
	m.Reinitialize(compileWith(t, c, `let a = 1; let b = 2; let r = g();`))
	if err := m.Run(); err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	expectInt(t, m, "r", 10)
}

func TestLoopContinueScenario(t *testing.T) {
	m, _ := mustRun(t, `let out = []; for (let i = 0; i < 3; i++) { if (i == 1) { continue; } out = out + [i]; }`)
	expectInspect(t, m, "out", "[0, 2]")
}

func TestLoops(t *testing.T) {
	m, _ := mustRun(t, `
let w = 0;
while (w < 10) { w++; if (w == 4) { break; } }

let d = 0;
let visits = 0;
do { d++; if (d % 2 == 0) { continue; } visits++; } while (d < 5);

let l = 0;
loop { l += 3; if (l > 10) { break; } }

let nested = [];
for (let i = 0; i < 3; i++) {
  for (let j = 0; j < 3; j++) {
    if (j > i) { break; }
    nested.push(i * 10 + j);
  }
}
`)
	expectInt(t, m, "w", 4)
	expectInt(t, m, "d", 5)
	expectInt(t, m, "visits", 3)
	expectInt(t, m, "l", 12)
	expectInspect(t, m, "nested", "[0, 10, 11, 20, 21, 22]")
}

func TestShadowing(t *testing.T) {
	m, _ := mustRun(t, `
let seen = [];
{
  let x = 1;
  {
    let x = 2;
    seen.push(x);
  }
  seen.push(x);
}
let x = 3;
seen.push(x);
`)
	expectInspect(t, m, "seen", "[2, 1, 3]")
}

func TestLogicalOperators(t *testing.T) {
	m, _ := mustRun(t, `
let a = nil or "fallback";
let b = 0 and "second";
let c = false and missing();
let d = true or missing();
let e = !nil;
`)
	expectString(t, m, "a", "fallback")
	expectString(t, m, "b", "second")
	expectBool(t, m, "c", false)
	expectBool(t, m, "d", true)
	expectBool(t, m, "e", true)
}

func TestArityLattice(t *testing.T) {
	m, _ := mustRun(t, `
fn f(a, b = 2, c = 3) { return [a, b, c]; }
let r1 = f(1);
let r2 = f(1, 5);
let r3 = f(1, 5, 6);

fn g(a, ...rest) { return rest; }
let r4 = g(1);
let r5 = g(1, 2, 3);

fn h(a, b = 9, ...rest) { return [b, rest]; }
let r6 = h(1);
let r7 = h(1, 2, 3, 4);
`)
	expectInspect(t, m, "r1", "[1, 2, 3]")
	expectInspect(t, m, "r2", "[1, 5, 3]")
	expectInspect(t, m, "r3", "[1, 5, 6]")
	expectInspect(t, m, "r4", "[]")
	expectInspect(t, m, "r5", "[2, 3]")
	expectInspect(t, m, "r6", "[9, []]")
	expectInspect(t, m, "r7", "[2, [3, 4]]")
}

func TestArityErrors(t *testing.T) {
	tests := []string{
		`fn f(a, b) { return a; } f(1);`,
		`fn f(a, b) { return a; } f(1, 2, 3);`,
		`fn f(a, b = 2) { return a; } f();`,
		`fn g(a, b, ...rest) { return a; } g(1);`,
		`let l = |x| x; l();`,
		`def P {} P(1);`,
		`len(1, 2);`,
		`[1].pop(1);`,
	}
	for _, src := range tests {
		_, _, err := runVM(t, src)
		if !errors.Is(err, ErrArity) {
			t.Fatalf("%s: expected ErrArity, got %v", src, err)
		}
	}
}

func TestDefaultsEvaluatedAtClosureCreation(t *testing.T) {
	m, _ := mustRun(t, `
let seed = 10;
fn f(x = seed) { return x; }
seed = 20;
let a = f();
let b = f(1);
`)
	expectInt(t, m, "a", 10)
	expectInt(t, m, "b", 1)
}

func TestClosuresCaptureByReference(t *testing.T) {
	m, _ := mustRun(t, `
fn counter() {
  let n = 0;
  fn inc() { n = n + 1; return n; }
  return inc;
}
let c = counter();
c();
c();
let count = c();

fn pair() {
  let v = 1;
  fn get() { return v; }
  fn set(x) { v = x; }
  return [get, set];
}
let p = pair();
p[1](42);
let shared = p[0]();

fn later() {
  let x = 1;
  let read = fn() { return x; };
  x = 2;
  return read();
}
let mutated = later();
`)
	expectInt(t, m, "count", 3)
	expectInt(t, m, "shared", 42)
	expectInt(t, m, "mutated", 2)
}

func TestLoopIterationsCaptureIndependently(t *testing.T) {
	m, _ := mustRun(t, `
let loopVar = [];
let bodyVar = [];
for (let i = 0; i < 3; i++) {
  let j = i;
  loopVar.push(fn() { return i; });
  bodyVar.push(fn() { return j; });
}
let a = [loopVar[0](), loopVar[1](), loopVar[2]()];
let b = [bodyVar[0](), bodyVar[1](), bodyVar[2]()];

let each = [];
for (x in [4, 5, 6]) { each.push(|| x); }
let c = map(|f| f(), each);
`)
	expectInspect(t, m, "a", "[3, 3, 3]")
	expectInspect(t, m, "b", "[0, 1, 2]")
	expectInspect(t, m, "c", "[4, 5, 6]")
}

func TestRecursion(t *testing.T) {
	m, _ := mustRun(t, `
fn fib(n) { if (n < 2) { return n; } return fib(n - 1) + fib(n - 2); }
let r = fib(15);
let local = 0;
{
  fn fact(n, acc = 1) { if (n < 2) { return acc; } return fact(n - 1, acc * n); }
  local = fact(5);
}
`)
	expectInt(t, m, "r", 610)
	expectInt(t, m, "local", 120)
}

func TestForInIterates(t *testing.T) {
	m, _ := mustRun(t, `
let sum = 0;
for (x in [1, 2, 3]) { sum += x; }

let keys = [];
for (k in {"a": 1, "b": 2}) { keys.push(k); }

let chars = [];
for (ch in "héy") { chars.push(ch); }

let total = 0;
for (n in 0..4) { total += n; }

let viaBuiltin = 0;
for (n in range(2, 5)) { viaBuiltin += n; }

def Countdown {
  fn init(n) { self.n = n; }
  fn __iter__() { return self; }
  fn __next__() {
    if (self.n == 0) { return {"done": true, "value": nil}; }
    self.n -= 1;
    return {"done": false, "value": self.n + 1};
  }
}
let seen = [];
for (v in Countdown(3)) { seen.push(v); }

let early = nil;
for (v in [7, 8, 9]) { if (v > 7) { early = v; break; } }
`)
	expectInt(t, m, "sum", 6)
	expectInspect(t, m, "keys", `["a", "b"]`)
	expectInspect(t, m, "chars", `["h", "é", "y"]`)
	expectInt(t, m, "total", 6)
	expectInt(t, m, "viaBuiltin", 9)
	expectInspect(t, m, "seen", "[3, 2, 1]")
	expectInt(t, m, "early", 8)
}

func TestForInRejectsNonIterable(t *testing.T) {
	_, _, err := runVM(t, `for (x in 5) { print(x); }`)
	if !errors.Is(err, ErrMissingProperty) {
		t.Fatalf("expected ErrMissingProperty, got %v", err)
	}
}

func TestCaseOf(t *testing.T) {
	_, out := mustRun(t, `
for (n in [1, 3, 7]) {
  case n of {
    1, 2 => print("low");
    3 => print("three");
    default => print("other");
  }
}
let v = 4;
case of {
  v > 3 => print("big");
  v > 1, v < 0 => print("mid");
}
case 9 of { 1 => print("never"); }
`)
	if out != "low\nthree\nother\nbig\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestPostfixAndCompoundTargets(t *testing.T) {
	m, _ := mustRun(t, `
def Box { fn init() { self.n = 1; } }
let b = Box();
let old = b.n++;
let afterInc = b.n;
b.n += 10;
let boxed = b.n;

let xs = [1, 2, 3];
let o2 = xs[1]++;
xs[0] *= 5;
xs[-1] -= 1;

let d = {"k": 1};
d["k"] -= 3;
d.k += 1;
let dk = d["k"];

let i = 5;
let pre = i--;
i /= 2;
`)
	expectInt(t, m, "old", 1)
	expectInt(t, m, "afterInc", 2)
	expectInt(t, m, "boxed", 12)
	expectInt(t, m, "o2", 2)
	expectInspect(t, m, "xs", "[5, 3, 2]")
	expectInt(t, m, "dk", -1)
	expectInt(t, m, "pre", 5)
	expectFloat(t, m, "i", 2.0)
}

func TestIndexing(t *testing.T) {
	m, _ := mustRun(t, `
let xs = [1, 2, 3];
let last = xs[-1];
let ch = "héllo"[1];
let r = (10..20)[3];
let d = {"a": 1, b: 2};
let missing = d["zzz"];
let bare = d["b"];
`)
	expectInt(t, m, "last", 3)
	expectString(t, m, "ch", "é")
	expectInt(t, m, "r", 13)
	if v := global(t, m, "missing"); v != object.NIL {
		t.Fatalf("expected nil for missing key, got %T (%v)", v, v)
	}
	expectInt(t, m, "bare", 2)

	_, _, err := runVM(t, `let xs = [1, 2]; xs[5];`)
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	_, _, err = runVM(t, `let xs = [1, 2]; xs["a"];`)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestInterpolationAndPrint(t *testing.T) {
	m, out := mustRun(t, `
let name = "kes";
let n = 2;
let s = "hi ${name}, ${n + 1.5} times";
print(1, "a", [1, "b"], nil, 2.0);
print();
`)
	expectString(t, m, "s", "hi kes, 3.5 times")
	if out != "1 a [1, \"b\"] nil 2.0\n\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRuntimeErrorKinds(t *testing.T) {
	tests := []struct {
		input string
		kind  error
	}{
		{`print(nope);`, ErrUndefinedGlobal},
		{`nope = 1;`, ErrUndefinedAssign},
		{`let d = {}; let v = d.foo;`, ErrMissingProperty},
		{`def A {} let a = A(); a.nothing();`, ErrMissingProperty},
		{`let x = 1; x();`, ErrNotCallable},
		{`let x = "a" + 1;`, ErrTypeMismatch},
		{`let x = -"a";`, ErrTypeMismatch},
		{`let x = 1 < "a";`, ErrTypeMismatch},
		{`let x = 5; x.y = 1;`, ErrTypeMismatch},
		{`raise("boom");`, ErrRaised},
		{`Err("bad").unwrap();`, ErrRaised},
		{`[].pop();`, ErrIndexOutOfRange},
	}
	for _, tt := range tests {
		m, _, err := runVM(t, tt.input)
		if !errors.Is(err, tt.kind) {
			t.Fatalf("%s: expected %v, got %v", tt.input, tt.kind, err)
		}
		var re *RuntimeError
		if !errors.As(err, &re) {
			t.Fatalf("%s: expected *RuntimeError, got %T", tt.input, err)
		}
		if !m.Faulted() {
			t.Fatalf("%s: vm should be faulted", tt.input)
		}
	}
}

func TestErrorReportNamesVariable(t *testing.T) {
	_, _, err := runVM(t, "let a = 1;\nprint(nope);")
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuntimeError, got %T (%v)", err, err)
	}
	report := re.Report()
	if !strings.Contains(report, "undefined variable 'nope'") {
		t.Fatalf("expected variable name in report:\n%s", report)
	}
	if !strings.Contains(report, "[line 2] in script") {
		t.Fatalf("expected script frame in report:\n%s", report)
	}
}

func TestErrorTraceListsFrames(t *testing.T) {
	_, _, err := runVM(t, `
fn inner() { return 1 / 0; }
fn outer() { return inner(); }
outer();
`)
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuntimeError, got %T (%v)", err, err)
	}
	want := []string{"[line 2] in inner()", "[line 3] in outer()", "[line 4] in script"}
	if len(re.Trace) != len(want) {
		t.Fatalf("expected %d trace lines, got %q", len(want), re.Trace)
	}
	for i, line := range want {
		if re.Trace[i] != line {
			t.Fatalf("trace[%d]: expected %q, got %q", i, line, re.Trace[i])
		}
	}
}

func TestLastPopped(t *testing.T) {
	m, _ := mustRun(t, `1 + 2;`)
	v, ok := m.LastPopped().(*object.Integer)
	if !ok || v.Value != 3 {
		t.Fatalf("expected last popped 3, got %T (%v)", m.LastPopped(), m.LastPopped())
	}
}

func TestGlobalsSurviveReinitialize(t *testing.T) {
	in := object.NewInterner()
	c := compiler.New(in)
	m := New(compileWith(t, c, `let total = 1; const limit = 3;`), WithInterner(in), WithOutput(&bytes.Buffer{}))
	if err := m.Run(); err != nil {
		t.Fatalf("first run: %v", err)
	}
	for i := 0; i < 2; i++ {
		m.Reinitialize(compileWith(t, c, `total = total + limit;`))
		if err := m.Run(); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	expectInt(t, m, "total", 7)
}

func TestHostCall(t *testing.T) {
	m, _ := mustRun(t, `
fn add(a, b = 10) { return a + b; }
def Greeter { fn init(name) { self.name = name; } fn hello() { return "hi " + self.name; } }
let g = Greeter("ada");
`)
	res, err := m.Call(global(t, m, "add"), &object.Integer{Value: 2}, &object.Integer{Value: 3})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if v, ok := res.(*object.Integer); !ok || v.Value != 5 {
		t.Fatalf("expected 5, got %T (%v)", res, res)
	}

	res, err = m.Call(global(t, m, "add"), &object.Integer{Value: 2})
	if err != nil {
		t.Fatalf("call with default failed: %v", err)
	}
	if v, ok := res.(*object.Integer); !ok || v.Value != 12 {
		t.Fatalf("expected 12, got %T (%v)", res, res)
	}

	res, err = m.Call(global(t, m, "len"), &object.String{Value: "four"})
	if err != nil {
		t.Fatalf("builtin call failed: %v", err)
	}
	if v, ok := res.(*object.Integer); !ok || v.Value != 4 {
		t.Fatalf("expected 4, got %T (%v)", res, res)
	}

	g := global(t, m, "g").(*object.Instance)
	hello := &object.BoundMethod{Receiver: g, Method: g.Def.Methods["hello"]}
	res, err = m.Call(hello)
	if err != nil {
		t.Fatalf("bound call failed: %v", err)
	}
	if s, ok := res.(*object.String); !ok || s.Value != "hi ada" {
		t.Fatalf("expected hi ada, got %T (%v)", res, res)
	}

	if _, err := m.Call(global(t, m, "add")); !errors.Is(err, ErrArity) {
		t.Fatalf("expected ErrArity, got %v", err)
	}
	if _, err := m.Call(global(t, m, "add"), object.NIL); !errors.Is(err, ErrFaulted) {
		t.Fatalf("expected ErrFaulted on faulted vm, got %v", err)
	}
}

func TestBuiltinsShadowedByGlobals(t *testing.T) {
	m, _ := mustRun(t, `
let before = type(len);
fn len(x) { return 99; }
let after = len([1]);
`)
	expectString(t, m, "before", "function")
	expectInt(t, m, "after", 99)
}

func TestInterpolationIgnoresStrGlobal(t *testing.T) {
	m, _ := mustRun(t, `
fn str(x) { return "shadowed"; }
let n = 4;
let w = "raw";
let s = "n=${n} ok=${true} s=${w}";
let direct = str(n);
`)
	expectString(t, m, "s", "n=4 ok=true s=raw")
	expectString(t, m, "direct", "shadowed")
}
