package vm

import (
	"errors"
	"testing"
)

func TestListMethods(t *testing.T) {
	m, _ := mustRun(t, `
let xs = [3, 1];
xs.push(4, 1);
let popped = xs.pop();
xs.insert(0, 9);
let removed = xs.remove(1);
let has = xs.contains(4);
let joined = xs.join("-");
let size = xs.len();
let rev = [1, 2, 3].reverse();
let viaLen = len(xs);
`)
	expectInt(t, m, "popped", 1)
	expectInt(t, m, "removed", 3)
	expectInspect(t, m, "xs", "[9, 1, 4]")
	expectBool(t, m, "has", true)
	expectString(t, m, "joined", "9-1-4")
	expectInt(t, m, "size", 3)
	expectInspect(t, m, "rev", "[3, 2, 1]")
	expectInt(t, m, "viaLen", 3)
}

func TestDictMethods(t *testing.T) {
	m, _ := mustRun(t, `
let d = {"a": 1, "b": 2};
d["c"] = 3;
let keys = d.keys();
let values = d.values();
let has = d.has("b");
let got = d.get("zz", 0);
let plain = d.get("a");
let removed = d.remove("b");
let size = d.len();
`)
	expectInspect(t, m, "keys", `["a", "b", "c"]`)
	expectInspect(t, m, "values", "[1, 2, 3]")
	expectBool(t, m, "has", true)
	expectInt(t, m, "got", 0)
	expectInt(t, m, "plain", 1)
	expectInt(t, m, "removed", 2)
	expectInt(t, m, "size", 2)
}

func TestStringMethods(t *testing.T) {
	m, _ := mustRun(t, `
let title = "hello world".title();
let upper = "straße".upper();
let lower = "ABC".lower();
let parts = "a,b,c".split(",");
let words = "  one  two ".split();
let trimmed = "  pad  ".trim();
let starts = "kestrel".starts_with("kes");
let ends = "kestrel".ends_with("rel");
let inside = "kestrel".contains("str");
let size = "héllo".len();
let matched = "abc123".matches("^[a-z]+[0-9]+$");
let unmatched = "123".matches("^[a-z]+$");
let replaced = "a1b22c".replace_re("[0-9]+", "#");
`)
	expectString(t, m, "title", "Hello World")
	expectString(t, m, "upper", "STRASSE")
	expectString(t, m, "lower", "abc")
	expectInspect(t, m, "parts", `["a", "b", "c"]`)
	expectInspect(t, m, "words", `["one", "two"]`)
	expectString(t, m, "trimmed", "pad")
	expectBool(t, m, "starts", true)
	expectBool(t, m, "ends", true)
	expectBool(t, m, "inside", true)
	expectInt(t, m, "size", 5)
	expectBool(t, m, "matched", true)
	expectBool(t, m, "unmatched", false)
	expectString(t, m, "replaced", "a#b#c")
}

func TestInvalidRegexpFaults(t *testing.T) {
	_, _, err := runVM(t, `"x".matches("(");`)
	if err == nil {
		t.Fatalf("expected an error for an invalid pattern")
	}
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuntimeError, got %T (%v)", err, err)
	}
}

func TestConversions(t *testing.T) {
	m, _ := mustRun(t, `
let a = int("42");
let b = int(3.9);
let c = float("2.5");
let d = float(2);
let e = str([1, "x"]);
let f = type(1.0);
let g = type(nil);
let h = int("1_000");
let i = int(" -0x10 ");
let j = int("-7.9");
let k = 0b11 + 0o10;
`)
	expectInt(t, m, "a", 42)
	expectInt(t, m, "b", 3)
	expectFloat(t, m, "c", 2.5)
	expectFloat(t, m, "d", 2.0)
	expectString(t, m, "e", `[1, "x"]`)
	expectString(t, m, "f", "float")
	expectString(t, m, "g", "nil")
	expectInt(t, m, "h", 1000)
	expectInt(t, m, "i", -16)
	expectInt(t, m, "j", -7)
	expectInt(t, m, "k", 11)

	_, _, err := runVM(t, `int("nope");`)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestRangeBuiltin(t *testing.T) {
	m, _ := mustRun(t, `
let r = range(3);
let size = r.len();
let has = r.contains(2);
let hasNot = r.contains(3);
let empty = range(5, 2).len();
`)
	expectInspect(t, m, "r", "0..3")
	expectInt(t, m, "size", 3)
	expectBool(t, m, "has", true)
	expectBool(t, m, "hasNot", false)
	expectInt(t, m, "empty", 0)
}

func TestMapAndFilterCallBack(t *testing.T) {
	m, _ := mustRun(t, `
let doubled = map(|x| x * 2, [1, 2, 3]);
let odd = filter(|x| x % 2 == 1, range(6));
fn shout(s) { return s.upper() + "!"; }
let loud = map(shout, "ab");
def Scale { fn init(k) { self.k = k; } fn apply(x) { return x * self.k; } }
let scaled = map(Scale(10).apply, [1, 2]);
`)
	expectInspect(t, m, "doubled", "[2, 4, 6]")
	expectInspect(t, m, "odd", "[1, 3, 5]")
	expectInspect(t, m, "loud", `["A!", "B!"]`)
	expectInspect(t, m, "scaled", "[10, 20]")
}

func TestCallbackErrorPropagates(t *testing.T) {
	_, _, err := runVM(t, `map(|x| x / 0, [1]);`)
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestResultMethods(t *testing.T) {
	m, _ := mustRun(t, `
let ok = Ok(5);
let bad = Err("nope");
let a = ok.unwrap();
let b = bad.unwrap_or(0);
let c = ok.is_ok();
let d = bad.is_err();
let e = bad.error();
let shown = str(bad);
`)
	expectInt(t, m, "a", 5)
	expectInt(t, m, "b", 0)
	expectBool(t, m, "c", true)
	expectBool(t, m, "d", true)
	expectString(t, m, "e", "nope")
	expectString(t, m, "shown", `Err("nope")`)
}

func TestIteratorProtocolOnNatives(t *testing.T) {
	m, _ := mustRun(t, `
let it = [10, 20].__iter__();
let first = it.__next__();
let second = it.__next__();
let third = it.__next__();
let v1 = first.value;
let v2 = second["value"];
let done = third.done;
`)
	expectInt(t, m, "v1", 10)
	expectInt(t, m, "v2", 20)
	expectBool(t, m, "done", true)
}

func TestRaiseMessage(t *testing.T) {
	_, _, err := runVM(t, `raise("custom failure");`)
	var re *RuntimeError
	if !errors.As(err, &re) || !errors.Is(err, ErrRaised) {
		t.Fatalf("expected raised RuntimeError, got %T (%v)", err, err)
	}
	if re.Message != "raised: custom failure" {
		t.Fatalf("unexpected message %q", re.Message)
	}
}
