package diag

import (
	"testing"

	"lf/internal/source"
)

func TestFormatShortDiagnostics(t *testing.T) {
	fs := source.NewFileSet()
	fs.SetBaseDir("/workspace")

	userFile := fs.Add("/workspace/examples/demo.lf", []byte("a\nb\n"), 0)

	diags := []Diagnostic{
		{
			Severity: SevError,
			Code:     LexUnterminatedQuote,
			Message:  "first line\nsecond",
			Primary:  source.Span{File: userFile, Start: 0, End: 1},
			Line:     1,
			Notes: []Note{
				{Span: source.Span{File: userFile, Start: 2, End: 3}, Msg: "note line"},
			},
		},
		{
			Severity: SevWarning,
			Code:     ExeStderr,
			Message:  "stderr output",
			Line:     7,
			Lang:     "cpp",
		},
	}

	expected := "warning EXE4005 cpp:7 stderr output\n" +
		"error LEX1002 examples/demo.lf:1:1 first line second\n" +
		"note LEX1002 examples/demo.lf:2:1 note line"

	if got := FormatShortDiagnostics(diags, fs, true); got != expected {
		t.Fatalf("unexpected short diagnostics:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

func TestBagLimitAndSort(t *testing.T) {
	bag := NewBag(2)
	if !bag.Add(AtLine(SevWarning, ExeStderr, 5, "late")) {
		t.Fatal("first Add rejected")
	}
	if !bag.Add(AtLine(SevError, ExeCompileFailed, 2, "early")) {
		t.Fatal("second Add rejected")
	}
	if bag.Add(AtLine(SevError, ExeTimeout, 9, "dropped")) {
		t.Fatal("limit not enforced")
	}
	if bag.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", bag.Dropped())
	}

	bag.Sort()
	items := bag.Items()
	if items[0].Line != 2 || items[1].Line != 5 {
		t.Errorf("unexpected order: %d, %d", items[0].Line, items[1].Line)
	}
	if !bag.HasErrors() || !bag.HasWarnings() {
		t.Error("expected errors and warnings")
	}
	if bag.Count(SevWarning) != 1 {
		t.Errorf("Count(SevWarning) = %d", bag.Count(SevWarning))
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(BagReporter{Bag: bag})

	d := AtLine(SevWarning, SecDangerousCall, 3, "call of eval")
	r.Report(d)
	r.Report(d)
	r.Report(AtLine(SevWarning, SecDangerousCall, 4, "call of eval"))

	if bag.Len() != 2 {
		t.Fatalf("expected 2 unique diagnostics, got %d", bag.Len())
	}
}

func TestCodeID(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{LexUnparseableLine, "LEX1001"},
		{MrgUnitAtEOF, "MRG2001"},
		{SecPolicyViolation, "SEC3010"},
		{ExeTimeout, "EXE4003"},
		{PkgBadFormat, "PKG5003"},
		{ObsTimings, "OBS6001"},
		{UnknownCode, "E0000"},
	}
	for _, tt := range tests {
		if got := tt.code.ID(); got != tt.want {
			t.Errorf("%d.ID() = %q, want %q", tt.code, got, tt.want)
		}
	}
	if ExeTimeout.Title() == "" {
		t.Error("missing title for ExeTimeout")
	}
}
