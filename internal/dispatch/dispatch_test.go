package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"lf/internal/diag"
	"lf/internal/executor"
	"lf/internal/janitor"
	"lf/internal/program"
	"lf/internal/security"
	"lf/internal/toolchain"
	"lf/internal/trace"
	"lf/internal/value"
)

// noToolchains resolves every tool to a path that does not exist.
func noToolchains(t *testing.T) *executor.Env {
	t.Helper()
	dir := t.TempDir()
	overrides := make(map[string]string)
	for _, tool := range toolchain.All() {
		overrides[tool.Name] = filepath.Join(dir, "none-"+tool.Name)
		for _, c := range tool.Candidates {
			overrides[c] = filepath.Join(dir, "none-"+c)
		}
	}
	return &executor.Env{Locator: toolchain.NewLocator(overrides)}
}

type fixture struct {
	d      *Dispatcher
	stdout *bytes.Buffer
	bag    *diag.Bag
	jan    *janitor.Janitor
}

func newFixture(t *testing.T, policy security.Policy) *fixture {
	t.Helper()
	f := &fixture{
		stdout: &bytes.Buffer{},
		bag:    diag.NewBag(0),
		jan:    janitor.New(t.TempDir(), "lf-test-"),
	}
	f.d = New(Options{
		Stdout:   f.stdout,
		Policy:   policy,
		Reporter: diag.BagReporter{Bag: f.bag},
		Janitor:  f.jan,
		Env:      noToolchains(t),
	})
	return f
}

func model(frags ...program.Fragment) *program.Model {
	return &program.Model{Fragments: frags}
}

func frag(line uint32, tag, content string) program.Fragment {
	return program.Fragment{Line: line, Lang: tag, Content: content}
}

func TestRunSharesStateAndSurvivesFailures(t *testing.T) {
	f := newFixture(t, security.PolicyAdvisory)
	sum, err := f.d.Run(context.Background(), model(
		frag(1, "py", "x = 5"),
		frag(2, "cpp", `printf("val=%d\n", x);`),
		frag(3, "js", "console.log(x)"),
		frag(4, "py", "print(x + 1)"),
	))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := f.stdout.String(); got != "val=5\n6\n" {
		t.Fatalf("stdout %q", got)
	}
	if sum.Fragments != 4 || sum.Failed != 1 || sum.OK() {
		t.Fatalf("summary %+v", sum)
	}
	if len(sum.Failures) != 1 || sum.Failures[0].Line != 3 || sum.Failures[0].Kind != executor.ErrToolchainMissing {
		t.Fatalf("failures %+v", sum.Failures)
	}
	if sum.Vars != 1 {
		t.Fatalf("vars = %d", sum.Vars)
	}
	if v, ok := f.d.State().Var("x"); !ok || !v.Equal(value.Int(5)) {
		t.Fatalf("x = %v, %v", v, ok)
	}

	var found bool
	for _, d := range f.bag.Items() {
		if d.Code == diag.ExeToolchainMissing && d.Line == 3 && d.Lang == "js" && d.Severity == diag.SevError {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing toolchain diagnostic not reported: %+v", f.bag.Items())
	}
	if f.jan.Pending() != 0 {
		t.Fatalf("janitor still tracks %d objects", f.jan.Pending())
	}

	var langs []string
	for _, ls := range sum.Languages {
		langs = append(langs, ls.Lang)
	}
	if strings.Join(langs, ",") != "py,cpp,js" {
		t.Fatalf("language order %v", langs)
	}
}

func TestRunIntegerOverflowLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, security.PolicyAdvisory)
	sum, err := f.d.Run(context.Background(), model(
		frag(1, "py", "big = 3000000000 * 4000000000"),
		frag(2, "py", "small = 3000000000 * 3"),
		frag(3, "py", "print(small)"),
	))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// без интерпретатора фрагмент с переполнением падает, а не заворачивается
	if sum.Failed != 1 || sum.Failures[0].Line != 1 || sum.Failures[0].Kind != executor.ErrToolchainMissing {
		t.Fatalf("summary %+v", sum)
	}
	if _, ok := f.d.State().Var("big"); ok {
		t.Fatalf("overflowed value stored")
	}
	if got := f.stdout.String(); got != "9000000000\n" {
		t.Fatalf("stdout %q", got)
	}
}

func TestSingleLineFragmentsTrimmedForExecution(t *testing.T) {
	f := newFixture(t, security.PolicyAdvisory)
	sum, err := f.d.Run(context.Background(), model(
		frag(1, "py", "    x = 5   "),
		frag(2, "cpp", "  printf(\"%d\\n\", x);"),
		frag(3, "py", "if x:\n    print(x)"),
	))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Failed != 1 || sum.Failures[0].Line != 3 {
		t.Fatalf("summary %+v", sum)
	}
	if got := f.stdout.String(); got != "5\n" {
		t.Fatalf("stdout %q", got)
	}

	tests := []struct{ in, want string }{
		{"  x = 1 ", "x = 1"},
		{"\tprint(1)", "print(1)"},
		{"if x:\n    y = 1", "if x:\n    y = 1"},
	}
	for _, tt := range tests {
		if got := executable(frag(1, "py", tt.in)); got != tt.want {
			t.Errorf("executable(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRunTracesFragments(t *testing.T) {
	f := newFixture(t, security.PolicyOff)
	ring := trace.NewRing(32, trace.LevelDetail)
	ctx := trace.WithTracer(context.Background(), ring)
	if _, err := f.d.Run(ctx, model(
		frag(1, "py", "x = 1"),
		frag(2, "js", "console.log(x)"),
	)); err != nil {
		t.Fatalf("run: %v", err)
	}

	var ends []string
	for _, ev := range ring.Events() {
		if ev.Kind != trace.KindSpanEnd || ev.Scope != trace.ScopeFragment {
			continue
		}
		if ev.Fragment == nil {
			t.Fatalf("fragment span without attributes: %+v", ev)
		}
		ends = append(ends, fmt.Sprintf("%s:%d %s", ev.Fragment.Lang, ev.Fragment.Line, ev.Detail))
	}
	if got := strings.Join(ends, "; "); got != "py:1 inline; js:2 toolchain missing" {
		t.Fatalf("fragment spans %q", got)
	}
}

func TestRunStrictPolicyStopsBeforeExecution(t *testing.T) {
	f := newFixture(t, security.PolicyStrict)
	sum, err := f.d.Run(context.Background(), model(
		frag(1, "py", `print("before")`),
		frag(2, "py", "import os"),
	))
	var perr *security.PolicyError
	if !errors.As(err, &perr) {
		t.Fatalf("expected policy error, got %v", err)
	}
	if f.stdout.Len() != 0 {
		t.Fatalf("fragments ran under strict policy: %q", f.stdout.String())
	}
	if sum.Fragments != 0 || sum.Findings == 0 {
		t.Fatalf("summary %+v", sum)
	}
	if !f.bag.HasErrors() {
		t.Fatalf("policy violation not reported")
	}
}

func TestRunAdvisoryFindingsAreWarnings(t *testing.T) {
	f := newFixture(t, security.PolicyAdvisory)
	sum, err := f.d.Run(context.Background(), model(
		frag(1, "py", `msg = "pickle jar"`),
		frag(2, "py", "print(msg)"),
	))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.stdout.String() != "pickle jar\n" {
		t.Fatalf("stdout %q", f.stdout.String())
	}
	if sum.Findings == 0 || !sum.OK() {
		t.Fatalf("summary %+v", sum)
	}
	if f.bag.HasErrors() || !f.bag.HasWarnings() {
		t.Fatalf("findings must be warnings: %+v", f.bag.Items())
	}
}

func TestRunPolicyOffSkipsScreening(t *testing.T) {
	f := newFixture(t, security.PolicyOff)
	sum, err := f.d.Run(context.Background(), model(frag(1, "py", `msg = "pickle"`)))
	if err != nil || sum.Findings != 0 || f.bag.Len() != 0 {
		t.Fatalf("sum %+v, err %v, diags %+v", sum, err, f.bag.Items())
	}
}

func TestRunUnknownLanguage(t *testing.T) {
	f := newFixture(t, security.PolicyOff)
	sum, err := f.d.Run(context.Background(), model(frag(7, "go", `fmt.Println(1)`)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Failed != 1 || sum.Failures[0].Kind != executor.ErrNoExecutor {
		t.Fatalf("summary %+v", sum)
	}
}

func TestRunInterrupted(t *testing.T) {
	f := newFixture(t, security.PolicyOff)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := f.d.Run(ctx, model(frag(1, "py", "x = 1"), frag(2, "py", "y = 2")))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !sum.Interrupted || sum.Skipped != 2 || sum.Fragments != 0 {
		t.Fatalf("summary %+v", sum)
	}
}

func TestExecuteForShell(t *testing.T) {
	f := newFixture(t, security.PolicyOff)
	ctx := context.Background()
	if err := f.d.Execute(ctx, frag(1, "py", "n = 2")); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := f.d.Execute(ctx, frag(2, "py", "n *= 21")); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if v, _ := f.d.State().Var("n"); !v.Equal(value.Int(42)) {
		t.Fatalf("n = %v", v)
	}
	err := f.d.Execute(ctx, frag(3, "php", "echo 1;"))
	var ee *executor.ExecutionError
	if !errors.As(err, &ee) || ee.Line != 3 {
		t.Fatalf("expected execution error, got %v", err)
	}
	if s := f.d.Summary(); s.Fragments != 3 || s.Failed != 1 {
		t.Fatalf("summary %+v", s)
	}
	if err := f.d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSummaryPrint(t *testing.T) {
	f := newFixture(t, security.PolicyOff)
	sum, _ := f.d.Run(context.Background(), model(
		frag(1, "py", "x = 1"),
		frag(2, "js", "console.log(x)"),
	))
	var out bytes.Buffer
	sum.Print(&out, false)
	text := out.String()
	for _, want := range []string{"execution summary", "py       1 fragment(s), 1 inline", "js       1 fragment(s), 1 failed", "1 variable(s), 0 function(s)", "1 of 2 fragment(s) failed"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}

func TestPackagedProgramRunsLikeSource(t *testing.T) {
	src := "py.x = 5\ncpp.printf(\"val=%d\\n\", x);\npy.print(x * 2)\n"
	m, err := program.ParseString(context.Background(), "roundtrip.lf", src, program.ParseOptions{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	direct := newFixture(t, security.PolicyAdvisory)
	if _, err := direct.d.Run(context.Background(), m); err != nil {
		t.Fatalf("run source: %v", err)
	}

	var buf bytes.Buffer
	man, err := program.BuildPackage(&buf, program.Serialize(m, program.SerializeOptions{}), nil)
	if err != nil {
		t.Fatalf("package: %v", err)
	}
	if len(man.Files) != 2 {
		t.Fatalf("manifest files %+v", man.Files)
	}
	pkg, err := program.ReadPackage(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read package: %v", err)
	}

	packaged := newFixture(t, security.PolicyAdvisory)
	if _, err := packaged.d.Run(context.Background(), pkg.Model()); err != nil {
		t.Fatalf("run package: %v", err)
	}
	if direct.stdout.String() != "val=5\n10\n" {
		t.Fatalf("direct stdout %q", direct.stdout.String())
	}
	if packaged.stdout.String() != direct.stdout.String() {
		t.Fatalf("packaged stdout %q, direct %q", packaged.stdout.String(), direct.stdout.String())
	}
}
