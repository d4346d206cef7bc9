package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"lf/internal/diag"
	"lf/internal/source"
)

// TestPathModes проверяет различные режимы форматирования путей
func TestPathModes(t *testing.T) {
	fs := source.NewFileSet()
	content := []byte("#name \"unterminated\n")
	fileID := fs.AddVirtual("/home/user/project/src/test.lf", content)
	fs.SetBaseDir("/home/user/project")

	bag := diag.NewBag(10)
	bag.Add(diag.New(
		diag.SevError,
		diag.LexUnterminatedQuote,
		source.Span{File: fileID, Start: 6, End: 19},
		"Unterminated quoted value",
	))

	tests := []struct {
		name     string
		mode     PathMode
		contains string
	}{
		{name: "Absolute path", mode: PathModeAbsolute, contains: "/home/user/project/src/test.lf"},
		{name: "Relative path", mode: PathModeRelative, contains: "src/test.lf:1:7"},
		{name: "Basename only", mode: PathModeBasename, contains: "test.lf:1:7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Pretty(&buf, bag, fs, PrettyOpts{Context: 1, PathMode: tt.mode})
			output := buf.String()

			if !strings.Contains(output, tt.contains) {
				t.Errorf("Expected output to contain %q, got:\n%s", tt.contains, output)
			}
			if !strings.Contains(output, "ERROR") {
				t.Error("Expected ERROR in output")
			}
			if !strings.Contains(output, "LEX1002") {
				t.Error("Expected LEX1002 code in output")
			}
		})
	}
}

func TestPrettyUnderline(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("demo.lf", []byte("x = 1\npy.eval(\"2\")\n"))

	bag := diag.NewBag(0)
	bag.Add(diag.New(diag.SevWarning, diag.SecDangerousCall,
		source.Span{File: fileID, Start: 9, End: 13}, "call of eval"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename})
	output := buf.String()

	if !strings.Contains(output, "demo.lf:2:4: WARNING SEC3003: call of eval") {
		t.Fatalf("unexpected header:\n%s", output)
	}
	if !strings.Contains(output, "2 | py.eval(\"2\")") {
		t.Fatalf("expected source line, got:\n%s", output)
	}
	if !strings.Contains(output, "   ^~~~") {
		t.Fatalf("expected underline, got:\n%s", output)
	}
}

func TestPrettyLineOnlyDiagnostic(t *testing.T) {
	bag := diag.NewBag(0)
	bag.Add(diag.AtLine(diag.SevError, diag.ExeCompileFailed, 12, "expected ';'").WithLang("cpp"))

	var buf bytes.Buffer
	Pretty(&buf, bag, nil, PrettyOpts{})
	if got := buf.String(); got != "cpp:12: ERROR EXE4002: expected ';'\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestPrettyNotesAndFixes(t *testing.T) {
	fs := source.NewFileSet()
	content := []byte("pyx.print(1)\n")
	fileID := fs.AddVirtual("test.lf", content)

	bag := diag.NewBag(4)
	primary := source.Span{File: fileID, Start: 0, End: 3}
	d := diag.New(diag.SevWarning, diag.LexUnknownLanguagePrefix, primary, "unknown language prefix \"pyx\"")
	d = d.WithNote(source.Span{File: fileID, Start: 4, End: 9}, "treated as a code line")
	d = d.WithFix("use py", diag.FixEdit{Span: primary, NewText: "py"})
	bag.Add(d)

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename, ShowNotes: true, ShowFixes: true})
	output := buf.String()

	if !strings.Contains(output, "note: test.lf:1:5") {
		t.Fatalf("expected note with location, got:\n%s", output)
	}
	if !strings.Contains(output, "fix #1: use py") {
		t.Fatalf("expected fix entry, got:\n%s", output)
	}
	if !strings.Contains(output, "apply=\"py\"") {
		t.Fatalf("expected fix edit, got:\n%s", output)
	}
}

func TestPrettyDroppedFooter(t *testing.T) {
	bag := diag.NewBag(1)
	bag.Add(diag.AtLine(diag.SevWarning, diag.ExeStderr, 1, "a"))
	bag.Add(diag.AtLine(diag.SevWarning, diag.ExeStderr, 2, "b"))

	var buf bytes.Buffer
	Pretty(&buf, bag, nil, PrettyOpts{})
	if !strings.Contains(buf.String(), "1 more diagnostic(s) suppressed") {
		t.Fatalf("missing footer:\n%s", buf.String())
	}
}

func TestStreamReporterFiltersBySeverity(t *testing.T) {
	var buf bytes.Buffer
	r := NewStreamReporter(&buf, nil, PrettyOpts{}, diag.SevWarning)
	r.Report(diag.AtLine(diag.SevInfo, diag.ExeInfo, 1, "skipped"))
	r.Report(diag.AtLine(diag.SevWarning, diag.ExeStderr, 2, "shown").WithLang("js"))

	if strings.Contains(buf.String(), "skipped") {
		t.Fatalf("info diagnostic should be filtered:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "js:2: WARNING EXE4005: shown") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
	if r.Count(diag.SevWarning) != 1 {
		t.Fatalf("Count = %d", r.Count(diag.SevWarning))
	}
}
