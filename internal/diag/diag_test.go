package diag

import "testing"

func TestFormat(t *testing.T) {
	d := Diagnostic{Code: CodeParse, Message: "expected ;", Range: Range{Line: 3, Col: 7}}
	if got := d.Format("main.kes"); got != "main.kes:3:7: error KP0001: expected ;" {
		t.Fatalf("unexpected format %q", got)
	}
	d = Diagnostic{Message: "unused", Severity: SeverityWarning, Range: Range{Line: 1}}
	if got := d.Format("a.kes"); got != "a.kes:1:1: warning: unused" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestSortAndHasErrors(t *testing.T) {
	ds := []Diagnostic{
		{Message: "c", Severity: SeverityInfo, Range: Range{Line: 2, Col: 1}},
		{Message: "a", Severity: SeverityWarning, Range: Range{Line: 1, Col: 5}},
		{Message: "b", Severity: SeverityWarning, Range: Range{Line: 1, Col: 5}},
	}
	Sort(ds)
	if ds[0].Message != "a" || ds[1].Message != "b" || ds[2].Message != "c" {
		t.Fatalf("unexpected order %+v", ds)
	}
	if HasErrors(ds) {
		t.Fatalf("expected no errors")
	}
	ds = append(ds, Diagnostic{Severity: SeverityError})
	if !HasErrors(ds) {
		t.Fatalf("expected errors")
	}
}
