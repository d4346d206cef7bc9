package security

import (
	"context"
	"errors"
	"testing"

	"lf/internal/diag"
	"lf/internal/program"
)

func rulesOf(fs []Finding) map[string]Finding {
	out := make(map[string]Finding, len(fs))
	for _, f := range fs {
		out[f.Rule] = f
	}
	return out
}

func TestScreenCleanCode(t *testing.T) {
	s := NewScreener()
	defer s.Close()
	tests := []struct{ lang, code string }{
		{"py", "x = 10\nprint(x)"},
		{"js", "console.log('Hello')"},
		{"cpp", `printf("Hello World");`},
		{"rust", `println!("{}", 1);`},
	}
	for _, tt := range tests {
		if got := s.Screen(tt.code, tt.lang, 1); len(got) != 0 {
			t.Errorf("%s %q: unexpected findings %v", tt.lang, tt.code, got)
		}
	}
}

func TestScreenPython(t *testing.T) {
	s := NewScreener()
	defer s.Close()
	got := rulesOf(s.Screen("import os\nos.system('ls')", "py", 10))
	if f, ok := got["py.import"]; !ok || f.Line != 10 || f.Detail != "os" || f.Kind != KindImport {
		t.Errorf("py.import = %+v", f)
	}
	if f, ok := got["os-access"]; !ok || f.Line != 11 {
		t.Errorf("os-access = %+v", f)
	}
	if _, ok := got["import-os"]; !ok {
		t.Errorf("missing generic import-os: %v", got)
	}
}

func TestScreenPythonCallsAndFromImports(t *testing.T) {
	s := NewScreener()
	defer s.Close()
	fs := s.Screen("from subprocess import run\ndata = open('f')\n", "py", 1)
	var imports, calls int
	for _, f := range fs {
		switch f.Kind {
		case KindImport:
			imports++
		case KindCall:
			calls++
			if f.Detail != "open" || f.Line != 2 {
				t.Errorf("call finding = %+v", f)
			}
		}
	}
	if imports != 1 || calls != 1 {
		t.Errorf("imports=%d calls=%d in %v", imports, calls, fs)
	}
}

func TestScreenPythonSyntaxError(t *testing.T) {
	s := NewScreener()
	defer s.Close()
	fs := s.Screen("def broken(:\n    pass", "py", 3)
	found := false
	for _, f := range fs {
		if f.Kind == KindSyntax {
			found = true
			if f.Level != LevelMedium {
				t.Errorf("syntax finding level = %s", f.Level)
			}
		}
	}
	if !found {
		t.Errorf("expected syntax finding, got %v", fs)
	}
}

func TestScreenGuestLanguages(t *testing.T) {
	s := NewScreener()
	defer s.Close()
	tests := []struct {
		lang, code, rule string
	}{
		{"js", `eval('console.log("test")')`, "js.eval"},
		{"js", `const cp = require('child_process')`, "js.child-process"},
		{"cpp", "#include <cstdlib>\nsystem(\"ls\");", "cpp.system"},
		{"java", `Runtime.getRuntime().exec("ls");`, "java.runtime-exec"},
		{"php", `echo shell_exec("ls");`, "php.shell"},
		{"rust", `unsafe { ptr::read(p) }`, "rust.unsafe"},
	}
	for _, tt := range tests {
		got := rulesOf(s.Screen(tt.code, tt.lang, 1))
		if f, ok := got[tt.rule]; !ok || f.Kind != KindLanguageRule || f.Lang != tt.lang {
			t.Errorf("%s: missing %s in %v", tt.lang, tt.rule, got)
		}
	}
}

func TestScreenDeterministic(t *testing.T) {
	s := NewScreener()
	defer s.Close()
	code := "import os\nimport socket\neval('1')\nos.getcwd()"
	a := s.Screen(code, "py", 1)
	b := s.Screen(code, "py", 1)
	if len(a) != len(b) {
		t.Fatalf("lengths differ")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("finding %d differs: %v vs %v", i, a[i], b[i])
		}
		if i > 0 && a[i].Line < a[i-1].Line {
			t.Errorf("findings not sorted by line")
		}
	}
}

func TestScreenModelAndPolicy(t *testing.T) {
	m, err := program.ParseString(context.Background(), "s.lf", "py.x = 1\njs.eval('2')\n", program.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	s := NewScreener()
	defer s.Close()
	fs := s.ScreenModel(context.Background(), m)
	if len(fs) == 0 || fs[0].Line != 2 {
		t.Fatalf("findings = %v", fs)
	}
	if err := Enforce(PolicyAdvisory, fs); err != nil {
		t.Errorf("advisory should not fail: %v", err)
	}
	err = Enforce(PolicyStrict, fs)
	var pe *PolicyError
	if !errors.As(err, &pe) || len(pe.Findings) != len(fs) {
		t.Fatalf("strict: got %v", err)
	}

	bag := diag.NewBag(0)
	Report(&diag.BagReporter{Bag: bag}, PolicyStrict, fs)
	if !bag.HasErrors() {
		t.Errorf("strict findings should be errors")
	}
	bag = diag.NewBag(0)
	Report(&diag.BagReporter{Bag: bag}, PolicyAdvisory, fs)
	if bag.HasErrors() || !bag.HasWarnings() {
		t.Errorf("advisory findings should be warnings")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want Policy
		ok   bool
	}{
		{"", PolicyAdvisory, true},
		{"Strict", PolicyStrict, true},
		{"off", PolicyOff, true},
		{"paranoid", PolicyAdvisory, false},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, %v", tt.in, got, err)
		}
	}
}
