package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"lf/internal/buildpipeline"
	"lf/internal/config"
	"lf/internal/diag"
	"lf/internal/dispatch"
	"lf/internal/lexer"
	"lf/internal/program"
	"lf/internal/security"
)

func policyCmd(t *testing.T, value string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("policy", "", "")
	if value != "" {
		if err := cmd.Flags().Set("policy", value); err != nil {
			t.Fatal(err)
		}
	}
	return cmd
}

func TestResolvePolicyPrecedence(t *testing.T) {
	strictCfg := config.Default()
	strictCfg.Run.Policy = "strict"

	cases := []struct {
		name      string
		flag      string
		cfg       *config.Config
		directive string
		want      security.Policy
	}{
		{"default", "", config.Default(), "", security.PolicyAdvisory},
		{"directive", "", config.Default(), "strict", security.PolicyStrict},
		{"config over directive", "", strictCfg, "advisory", security.PolicyStrict},
		{"flag over config", "off", strictCfg, "strict", security.PolicyOff},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolvePolicy(policyCmd(t, tc.flag), tc.cfg, tc.directive)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("policy = %v, want %v", got, tc.want)
			}
		})
	}
	if _, err := resolvePolicy(policyCmd(t, ""), config.Default(), "paranoid"); err == nil {
		t.Errorf("expected error for bad #security value")
	}
}

func newTestSession(t *testing.T) (*shellSession, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	d := newDispatcher(config.Default(), dispatch.Options{Stdout: &out, Policy: security.PolicyOff})
	t.Cleanup(func() { _ = d.Close() })
	return newShellSession(d, &out, false), &out
}

func TestShellSessionExecutesFragments(t *testing.T) {
	sess, out := newTestSession(t)
	ctx := context.Background()

	if sess.handle(ctx, "py.x = 5") {
		t.Fatalf("assignment should not quit")
	}
	sess.handle(ctx, `cpp.printf("x=%d\n", x);`)
	if got := out.String(); got != "x=5\n" {
		t.Fatalf("output = %q", got)
	}

	out.Reset()
	sess.handle(ctx, "vars")
	if got := out.String(); got != "x = 5\n" {
		t.Errorf("vars = %q", got)
	}

	out.Reset()
	sess.handle(ctx, "funcs")
	if got := out.String(); got != "no functions\n" {
		t.Errorf("funcs = %q", got)
	}

	out.Reset()
	sess.handle(ctx, "stats")
	if !strings.Contains(out.String(), "state: 1 variable(s), 0 function(s)") {
		t.Errorf("stats = %q", out.String())
	}
}

func TestShellSessionRejectsUnprefixedInput(t *testing.T) {
	sess, out := newTestSession(t)
	sess.handle(context.Background(), "print(1)")
	if !strings.Contains(out.String(), "expected <lang>.<code>") {
		t.Errorf("output = %q", out.String())
	}
	if sess.d.Summary().Fragments != 0 {
		t.Errorf("rejected input was executed")
	}
}

func TestShellSessionQuit(t *testing.T) {
	sess, _ := newTestSession(t)
	for _, in := range []string{"exit", "quit", "  QUIT  "} {
		if !sess.handle(context.Background(), in) {
			t.Errorf("%q should quit", in)
		}
	}
}

func TestShellComplete(t *testing.T) {
	sess, _ := newTestSession(t)
	got := sess.complete("p")
	want := map[string]bool{"py.": true, "php.": true}
	if len(got) != len(want) {
		t.Fatalf("complete(p) = %v", got)
	}
	for _, c := range got {
		if !want[c] {
			t.Errorf("unexpected completion %q", c)
		}
	}
	if got := sess.complete("st"); len(got) != 1 || got[0] != "stats" {
		t.Errorf("complete(st) = %v", got)
	}
}

func TestBuildAnalysis(t *testing.T) {
	src := "#name demo\n// c\npy.import os\npy.x = 1\njs.console.log(x)"
	m, err := program.ParseString(context.Background(), "demo.lf", src, program.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	scr := security.NewScreener()
	findings := scr.ScreenModel(context.Background(), m)
	scr.Close()

	r := buildAnalysis("demo.lf", m, lexer.SegmentString(src, nil), findings)
	if r.Name != "demo" || r.Fragments != 3 {
		t.Errorf("name/fragments = %q/%d", r.Name, r.Fragments)
	}
	if r.Lines.Directives != 1 || r.Lines.Comments != 1 || r.Lines.Code["py"] != 2 || r.Lines.Code["js"] != 1 {
		t.Errorf("lines = %+v", r.Lines)
	}
	if r.Findings == 0 || r.FindingsBy["import-os"] == 0 {
		t.Errorf("findings = %d %v", r.Findings, r.FindingsBy)
	}
}

func TestSortedTagsFollowsRegistry(t *testing.T) {
	got := sortedTags(map[string]int{"rust": 1, "zz": 1, "py": 1, "aa": 1, "cpp": 1})
	want := []string{"py", "cpp", "rust", "aa", "zz"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("sortedTags = %v, want %v", got, want)
	}
}

func TestReportExit(t *testing.T) {
	var buf bytes.Buffer
	if code := reportExit(&buf, &exitError{code: 130}); code != 130 || buf.Len() != 0 {
		t.Errorf("silent exit: code=%d out=%q", code, buf.String())
	}
	buf.Reset()
	if code := reportExit(&buf, errors.New("boom")); code != 1 || !strings.Contains(buf.String(), "boom") {
		t.Errorf("plain error: code=%d out=%q", code, buf.String())
	}
}

func TestPrintStageTimings(t *testing.T) {
	var tm buildpipeline.Timings
	tm.Set(buildpipeline.StageParse, 1500*time.Microsecond)
	tm.Set(buildpipeline.StageRun, 2*time.Millisecond)
	var buf bytes.Buffer
	printStageTimings(&buf, tm)
	if got := buf.String(); got != "parsed 1.5 ms\nran 2.0 ms\n" {
		t.Errorf("timings = %q", got)
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "ON": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Errorf("expected error")
	}
}

func TestPrintDiagnosticsFormats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"pretty", []string{"py:3", "boom"}},
		{"short", []string{"py:3 boom"}},
		{"json", []string{`"count": 1`, `"message": "boom"`}},
	}
	for _, tt := range tests {
		bag := diag.NewBag(10)
		bag.Add(diag.AtLine(diag.SevError, diag.ExeRuntimeFailed, 3, "boom").WithLang("py"))
		bag.Add(diag.AtLine(diag.SevInfo, diag.ExeInfo, 1, "quiet note").WithLang("py"))
		var buf bytes.Buffer
		printDiagnostics(&buf, globalOptions{maxDiagnostics: 10, diagFormat: tt.format}, bag, nil, nil)
		out := buf.String()
		for _, w := range tt.want {
			if !strings.Contains(out, w) {
				t.Errorf("%s: output %q lacks %q", tt.format, out, w)
			}
		}
		if strings.Contains(out, "quiet note") {
			t.Errorf("%s: info diagnostic should be filtered: %q", tt.format, out)
		}
	}
}
