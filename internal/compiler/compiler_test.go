package compiler

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"kestrel/internal/ast"
	"kestrel/internal/code"
	"kestrel/internal/lexer"
	"kestrel/internal/object"
	"kestrel/internal/parser"
)

func compile(t *testing.T, input string) (*object.Function, error) {
	t.Helper()
	p := parser.New(lexer.New(input))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	return New(object.NewInterner()).Compile(program)
}

func mustCompile(t *testing.T, input string) *object.Function {
	t.Helper()
	fn, err := compile(t, input)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return fn
}

func findFunction(fn *object.Function, name string) *object.Function {
	for _, c := range fn.Constants {
		nested, ok := c.(*object.Function)
		if !ok {
			continue
		}
		if nested.Name == name {
			return nested
		}
		if found := findFunction(nested, name); found != nil {
			return found
		}
	}
	return nil
}

type op struct {
	code     code.Opcode
	operands []int
}

func decode(ins code.Instructions) []op {
	var out []op
	for i := 0; i < len(ins); {
		def, ok := code.Lookup(code.Opcode(ins[i]))
		if !ok {
			panic(fmt.Sprintf("unknown opcode %d", ins[i]))
		}
		operands, n := code.ReadOperands(def, ins[i+1:])
		out = append(out, op{code.Opcode(ins[i]), operands})
		i += 1 + n
	}
	return out
}

func containsSequence(ins code.Instructions, want ...op) bool {
	ops := decode(ins)
	for i := 0; i+len(want) <= len(ops); i++ {
		match := true
		for j, w := range want {
			got := ops[i+j]
			if got.code != w.code || fmt.Sprint(got.operands) != fmt.Sprint(w.operands) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func checkJumps(t *testing.T, fn *object.Function) int {
	t.Helper()
	ins := fn.Code.Instructions
	for _, j := range fn.Code.Jumps {
		if !code.IsForwardJump(code.Opcode(ins[j.Slot-1])) {
			t.Fatalf("%s: slot %d does not belong to a forward jump", fn.DisplayName(), j.Slot)
		}
		dist := int(code.ReadUint16(ins[j.Slot:]))
		if dist == 0xffff {
			t.Fatalf("%s: jump at slot %d left unpatched", fn.DisplayName(), j.Slot)
		}
		if j.Slot+2+dist != j.Target {
			t.Fatalf("%s: jump at slot %d lands on %d, recorded %d", fn.DisplayName(), j.Slot, j.Slot+2+dist, j.Target)
		}
	}
	n := len(fn.Code.Jumps)
	for _, c := range fn.Constants {
		if nested, ok := c.(*object.Function); ok {
			n += checkJumps(t, nested)
		}
	}
	return n
}

func TestJumpPatchesRoundTrip(t *testing.T) {
	inputs := []string{
		`if (1 < 2) { print(1); } else { print(2); }`,
		`let i = 0; while (i < 10) { if (i == 5) { break; } i++; }`,
		`for (let i = 0; i < 3; i++) { if (i == 1) { continue; } print(i); }`,
		`let n = 0; do { n++; if (n == 2) { continue; } } while (n < 5);`,
		`loop { break; }`,
		`let x = true and false or nil;`,
		`case 3 of { 1, 2 => print("low"); 3 => print("three"); default => print("other"); }`,
		`let v = 4; case of { v > 3 => print("big"); v > 1, v < 0 => print("mid"); }`,
		`fn f(xs) { for (x in xs) { if (x) { return x; } } return nil; }`,
	}

	for _, input := range inputs {
		fn := mustCompile(t, input)
		if n := checkJumps(t, fn); n == 0 {
			t.Fatalf("expected patched jumps for %q", input)
		}
	}
}

func TestDoWhileContinueTargetsCondition(t *testing.T) {
	fn := mustCompile(t, `let n = 0; do { n++; continue; } while (n < 3);`)
	ins := fn.Code.Instructions
	var cont *code.JumpPatch
	for i, j := range fn.Code.Jumps {
		if code.Opcode(ins[j.Slot-1]) == code.OpJump {
			cont = &fn.Code.Jumps[i]
		}
	}
	if cont == nil {
		t.Fatal("expected a forward continue jump")
	}
	// The condition starts by loading n.
	if code.Opcode(ins[cont.Target]) != code.OpGetGlobal {
		t.Fatalf("continue lands on %d, expected the condition", ins[cont.Target])
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		input string
		kind  error
	}{
		{`break;`, ErrLoopControl},
		{`fn f() { continue; }`, ErrLoopControl},
		{`{ let x = 1; let x = 2; }`, ErrRedeclared},
		{`{ let x = x; }`, ErrUninitialized},
		{`{ fn f(a = f) { return a; } }`, ErrUninitialized},
		{`const c = 1; c = 2;`, ErrConstAssign},
		{`const c = 1; c += 2;`, ErrConstAssign},
		{`const c = 1; const c = 2;`, ErrRedeclared},
		{`fn f() { const k = 1; fn g() { k = 2; } }`, ErrConstAssign},
		{`{ const k = 1; k++; }`, ErrConstAssign},
		{`1 = 2;`, ErrInvalidAssignTarget},
		{`f() = 2;`, ErrInvalidAssignTarget},
		{`return 1;`, ErrInvalidReturn},
		{`self;`, ErrSelfOutsideMethod},
		{`def A { static fn s() { return self; } }`, ErrSelfOutsideMethod},
		{`def A { fn m() { return base.m(); } }`, ErrBaseMisuse},
		{`def A { fn init() { return 1; } }`, ErrInvalidReturn},
		{`def A : A {}`, ErrBaseMisuse},
	}

	for _, tt := range tests {
		_, err := compile(t, tt.input)
		if err == nil {
			t.Fatalf("expected error for %q", tt.input)
		}
		if !errors.Is(err, tt.kind) {
			t.Fatalf("expected %v for %q, got %v", tt.kind, tt.input, err)
		}
		var cerr *Error
		if !errors.As(err, &cerr) || cerr.Line == 0 {
			t.Fatalf("expected *Error with a line for %q, got %T (%v)", tt.input, err, err)
		}
	}
}

func TestFailedCompileDoesNotRecordConsts(t *testing.T) {
	c := New(object.NewInterner())
	parse := func(src string) *ast.Program {
		p := parser.New(lexer.New(src))
		program := p.ParseProgram()
		if errs := p.Errors(); len(errs) > 0 {
			t.Fatalf("parser errors: %v", errs)
		}
		return program
	}

	if _, err := c.Compile(parse(`const k = 1; break;`)); !errors.Is(err, ErrLoopControl) {
		t.Fatalf("expected ErrLoopControl, got %v", err)
	}
	if _, err := c.Compile(parse(`let k = 2; k = 3;`)); err != nil {
		t.Fatalf("expected k to be free after the failed compile, got %v", err)
	}

	if _, err := c.Compile(parse(`const limit = 1;`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Compile(parse(`limit = 2;`)); !errors.Is(err, ErrConstAssign) {
		t.Fatalf("expected ErrConstAssign, got %v", err)
	}
}

func TestCompileErrorLine(t *testing.T) {
	_, err := compile(t, "let a = 1;\nlet b = 2;\nbreak;")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if cerr.Line != 3 {
		t.Fatalf("expected line 3, got %d", cerr.Line)
	}
	if !strings.HasPrefix(cerr.Error(), "line 3: ") {
		t.Fatalf("unexpected message %q", cerr.Error())
	}
}

func TestJumpTooLarge(t *testing.T) {
	input := "let x = 0; if (true) {" + strings.Repeat("x = 1;", 10000) + "}"
	_, err := compile(t, input)
	if !errors.Is(err, ErrJumpTooLarge) {
		t.Fatalf("expected ErrJumpTooLarge, got %v", err)
	}
}

func TestLoopTooLarge(t *testing.T) {
	input := "let x = 0; while (true) {" + strings.Repeat("x = 1;", 10000) + "}"
	_, err := compile(t, input)
	if !errors.Is(err, ErrLoopTooLarge) {
		t.Fatalf("expected ErrLoopTooLarge, got %v", err)
	}
}

func TestTooManyLocals(t *testing.T) {
	var b strings.Builder
	b.WriteString("{")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&b, "let a%d = 0;", i)
	}
	b.WriteString("}")
	_, err := compile(t, b.String())
	if !errors.Is(err, ErrTooManyLocals) {
		t.Fatalf("expected ErrTooManyLocals, got %v", err)
	}
}

func TestTooManyConstants(t *testing.T) {
	var b strings.Builder
	for i := 0; i <= maxConstants; i++ {
		fmt.Fprintf(&b, "x = %d;", i)
	}
	_, err := compile(t, b.String())
	if !errors.Is(err, ErrTooManyConstants) {
		t.Fatalf("expected ErrTooManyConstants, got %v", err)
	}
}

func TestTooManyEntries(t *testing.T) {
	elems := make([]string, maxEntries+1)
	for i := range elems {
		elems[i] = "1"
	}
	_, err := compile(t, "let l = ["+strings.Join(elems, ", ")+"];")
	if !errors.Is(err, ErrTooManyEntries) {
		t.Fatalf("expected ErrTooManyEntries, got %v", err)
	}
}

func TestTooManyParameters(t *testing.T) {
	params := make([]string, maxParameters+1)
	for i := range params {
		params[i] = fmt.Sprintf("p%d", i)
	}
	_, err := compile(t, "fn f("+strings.Join(params, ", ")+") {}")
	if !errors.Is(err, ErrTooManyParameters) {
		t.Fatalf("expected ErrTooManyParameters, got %v", err)
	}
}

func TestUpvalueChain(t *testing.T) {
	fn := mustCompile(t, `
fn outer() {
  let a = 1;
  fn mid() {
    fn inner() { return a; }
    return inner;
  }
  return mid;
}`)
	outer := findFunction(fn, "outer")
	mid := findFunction(fn, "mid")
	inner := findFunction(fn, "inner")
	if outer == nil || mid == nil || inner == nil {
		t.Fatal("nested functions not found in constants")
	}
	if mid.UpvalueCount != 1 || inner.UpvalueCount != 1 {
		t.Fatalf("expected one upvalue each, got mid=%d inner=%d", mid.UpvalueCount, inner.UpvalueCount)
	}
	if !containsSequence(outer.Code.Instructions, op{code.OpCaptureLocal, []int{1}}) {
		t.Fatalf("outer should capture local slot 1:\n%s", outer.Code.Instructions)
	}
	if !containsSequence(mid.Code.Instructions, op{code.OpCaptureUpvalue, []int{0}}) {
		t.Fatalf("mid should forward upvalue 0:\n%s", mid.Code.Instructions)
	}
	if !containsSequence(inner.Code.Instructions, op{code.OpGetUpvalue, []int{0}}, op{code.OpReturn, []int{}}) {
		t.Fatalf("inner should read upvalue 0:\n%s", inner.Code.Instructions)
	}
}

func TestUpvaluesAreDeduplicated(t *testing.T) {
	fn := mustCompile(t, `fn f() { let a = 1; return |x| a + a + x; }`)
	lambda := findFunction(fn, "")
	if lambda == nil || lambda.UpvalueCount != 1 {
		t.Fatalf("expected one shared upvalue, got %+v", lambda)
	}
}

func TestShadowingScopes(t *testing.T) {
	fn := mustCompile(t, `let x = 1; { let x = 2; { let x = 3; print(x); } print(x); } print(x);`)
	if !containsSequence(fn.Code.Instructions, op{code.OpGetLocal, []int{2}}) {
		t.Fatalf("innermost x should be slot 2:\n%s", fn.Code.Instructions)
	}
	if !containsSequence(fn.Code.Instructions, op{code.OpGetLocal, []int{1}}) {
		t.Fatalf("middle x should be slot 1:\n%s", fn.Code.Instructions)
	}
	if !containsSequence(fn.Code.Instructions, op{code.OpGetGlobal, []int{1}}) {
		t.Fatalf("outer x should be global:\n%s", fn.Code.Instructions)
	}
}

func TestBreakPopsLoopLocals(t *testing.T) {
	fn := mustCompile(t, `while (true) { let a = 1; let b = 2; break; }`)
	if !containsSequence(fn.Code.Instructions,
		op{code.OpPopN, []int{2}},
		op{code.OpJump, []int{5}},
	) {
		t.Fatalf("expected locals popped before break:\n%s", fn.Code.Instructions)
	}
}

func TestDefaultsCompiledInEnclosingFunction(t *testing.T) {
	fn := mustCompile(t, `fn f(a, b = 5, ...rest) { return a; }`)
	f := findFunction(fn, "f")
	if f.Arity != 3 || f.DefaultCount != 1 || !f.IsVariadic {
		t.Fatalf("unexpected prototype %+v", f)
	}
	var ints []int64
	for _, c := range fn.Constants {
		if i, ok := c.(*object.Integer); ok {
			ints = append(ints, i.Value)
		}
	}
	if fmt.Sprint(ints) != "[5 2]" {
		t.Fatalf("expected default value then position, got %v", ints)
	}
}

func TestLambdaFlags(t *testing.T) {
	fn := mustCompile(t, `let add = |a, b| a + b;`)
	lambda := findFunction(fn, "")
	if lambda == nil || !lambda.IsLambda || lambda.Arity != 2 {
		t.Fatalf("unexpected lambda %+v", lambda)
	}
	if lambda.DisplayName() != "<lambda>" {
		t.Fatalf("expected <lambda>, got %s", lambda.DisplayName())
	}
}

func TestDefinitionCompilesMethods(t *testing.T) {
	fn := mustCompile(t, `
def Shape { fn area() { return 0; } }
def Square : Shape {
  fn init(s) { self.s = s; }
  fn area() { return self.s * self.s; }
  fn describe() { return base.area(); }
  static fn unit() { return Square(1); }
}`)
	unit := findFunction(fn, "unit")
	if unit == nil || !unit.IsStatic {
		t.Fatalf("expected static unit, got %+v", unit)
	}
	describe := findFunction(fn, "describe")
	if describe == nil || describe.UpvalueCount != 1 {
		t.Fatalf("describe should capture base, got %+v", describe)
	}
	ops := decode(describe.Code.Instructions)
	found := false
	for _, o := range ops {
		if o.code == code.OpInvokeBase {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected OpInvokeBase in describe:\n%s", describe.Code.Instructions)
	}
	if !containsSequence(fn.Code.Instructions, op{code.OpDerive, []int{}}) {
		t.Fatalf("expected OpDerive:\n%s", fn.Code.Instructions)
	}
}

func TestDisassembleListsNestedFunctions(t *testing.T) {
	fn := mustCompile(t, `fn greet(name) { return "hi ${name}"; }`)
	out := Disassemble(fn)
	for _, want := range []string{"== script ==", "== greet ==", "OpClosure", "FUNCTION greet", "OpStringify"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}
