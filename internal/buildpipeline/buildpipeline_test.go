package buildpipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"lf/internal/program"
	"lf/internal/security"
)

const cleanSource = `#name demo
py.x = 5
cpp.printf("%d\n", x);
js.console.log(x)
`

const riskySource = `#name risky
py.import subprocess
py.x = 1
`

type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordSink) OnEvent(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordSink) statuses(file string) []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Status
	for _, evt := range s.events {
		if evt.File == file {
			out = append(out, evt.Status)
		}
	}
	return out
}

func writeSource(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCompileWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	a := writeSource(t, dir, "a.lf", cleanSource)
	b := writeSource(t, dir, "b.lf", strings.Replace(cleanSource, "demo", "second", 1))
	sink := &recordSink{}

	res, err := Compile(context.Background(), &CompileRequest{
		Files:    []string{a, b},
		OutDir:   out,
		Jobs:     2,
		Progress: sink,
		Compiler: "lf test",
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(res.Files))
	}
	for i, name := range []string{"a", "b"} {
		fr := res.Files[i]
		if fr.Err != nil {
			t.Fatalf("%s: %v", name, fr.Err)
		}
		if fr.Document != filepath.Join(out, name+".lsf") {
			t.Errorf("%s document = %s", name, fr.Document)
		}
		doc, err := program.ReadDocument(fr.Document)
		if err != nil {
			t.Fatalf("read %s: %v", fr.Document, err)
		}
		if doc.Metadata.Compiler != "lf test" {
			t.Errorf("compiler = %q", doc.Metadata.Compiler)
		}
		pkg, err := program.OpenPackage(fr.Package)
		if err != nil {
			t.Fatalf("open %s: %v", fr.Package, err)
		}
		if got := len(pkg.Model().Fragments); got != 3 {
			t.Errorf("%s fragments = %d, want 3", name, got)
		}
		if fr.Manifest == nil {
			t.Errorf("%s: manifest missing", name)
		}
		if !fr.Timings.Has(StageParse) || !fr.Timings.Has(StagePackage) {
			t.Errorf("%s: stage timings missing", name)
		}
		got := sink.statuses(fr.Display)
		if len(got) == 0 || got[0] != StatusQueued || got[len(got)-1] != StatusDone {
			t.Errorf("%s statuses = %v", name, got)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "a.lsf")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("document written next to source despite OutDir")
	}
}

func TestCompileNoPackage(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.lf", cleanSource)
	res, err := Compile(context.Background(), &CompileRequest{Files: []string{src}, NoPackage: true})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	fr := res.Files[0]
	if fr.Package != "" || fr.Manifest != nil {
		t.Errorf("package written with NoPackage: %q", fr.Package)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.lsf")); err != nil {
		t.Errorf("document missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.lfp")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("unexpected package: %v", err)
	}
}

func TestCompileStrictFailsOnlyRiskyFile(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.lf", cleanSource)
	bad := writeSource(t, dir, "bad.lf", riskySource)

	res, err := Compile(context.Background(), &CompileRequest{
		Files:  []string{good, bad},
		Policy: security.PolicyStrict,
		Jobs:   2,
	})
	if err == nil {
		t.Fatalf("expected strict failure")
	}
	var perr *security.PolicyError
	if !errors.As(err, &perr) {
		t.Fatalf("error %v is not a PolicyError", err)
	}
	if res.Files[0].Err != nil {
		t.Errorf("clean file failed: %v", res.Files[0].Err)
	}
	if res.Files[1].Err == nil || len(res.Files[1].Findings) == 0 {
		t.Errorf("risky file: err=%v findings=%d", res.Files[1].Err, len(res.Files[1].Findings))
	}
	if !res.Files[1].Bag.HasErrors() {
		t.Errorf("strict findings should be errors")
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.lsf")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("document written for rejected file")
	}
}

func TestCompileAdvisoryWarns(t *testing.T) {
	dir := t.TempDir()
	bad := writeSource(t, dir, "bad.lf", riskySource)
	res, err := Compile(context.Background(), &CompileRequest{Files: []string{bad}, NoPackage: true})
	if err != nil {
		t.Fatalf("advisory compile failed: %v", err)
	}
	fr := res.Files[0]
	if !fr.Bag.HasWarnings() || fr.Bag.HasErrors() {
		t.Errorf("want warnings only, got %d diagnostics", fr.Bag.Len())
	}
}

func TestCompileRejectsInputs(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.lf", cleanSource)
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o750); err != nil {
		t.Fatal(err)
	}
	a2 := writeSource(t, sub, "a.lf", cleanSource)

	cases := []struct {
		name string
		req  *CompileRequest
		want string
	}{
		{"no files", &CompileRequest{}, "no input files"},
		{"wrong kind", &CompileRequest{Files: []string{filepath.Join(dir, "a.lsf")}}, "expected a .lf source"},
		{"collision", &CompileRequest{Files: []string{a, a2}, OutDir: filepath.Join(dir, "out")}, "both compile to"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(context.Background(), tc.req)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestCompileParseErrorIsPerFile(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.lf", cleanSource)
	broken := writeSource(t, dir, "broken.lf", "#name \"unterminated\npy.x = 1\n")
	res, err := Compile(context.Background(), &CompileRequest{Files: []string{good, broken}, NoPackage: true})
	if err == nil {
		t.Fatalf("expected parse failure")
	}
	if res.Files[0].Err != nil {
		t.Errorf("good file: %v", res.Files[0].Err)
	}
	if res.Files[1].Err == nil || res.Files[1].Model != nil {
		t.Errorf("broken file should fail without a model")
	}
}

func TestBundleEmbedsPackage(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "demo.lf", cleanSource)
	if _, err := Compile(context.Background(), &CompileRequest{Files: []string{src}}); err != nil {
		t.Fatalf("compile: %v", err)
	}
	pkgPath := filepath.Join(dir, "demo.lfp")
	sink := &recordSink{}
	res, err := Bundle(context.Background(), &BundleRequest{
		Package:  pkgPath,
		Runtime:  "/opt/lf bin/lf",
		Progress: sink,
	})
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	if res.OutputPath != filepath.Join(dir, "demo") || res.Name != "demo" {
		t.Errorf("result = %+v", res)
	}
	info, err := os.Stat(res.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Errorf("bundle not executable: %v", info.Mode())
	}
	script, err := os.ReadFile(res.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	text := string(script)
	if !strings.HasPrefix(text, "#!/bin/sh\n") {
		t.Errorf("missing shebang")
	}
	if !strings.Contains(text, `LF_BIN="${LF_BIN:-/opt/lf bin/lf}"`) {
		t.Errorf("runtime not embedded:\n%s", text)
	}
	_, payload, ok := strings.Cut(text, "\n"+BundleMarker+"\n")
	if !ok {
		t.Fatalf("marker missing")
	}
	for _, line := range strings.Split(strings.TrimSpace(payload), "\n") {
		if len(line) > bundleLineWidth {
			t.Fatalf("payload line too long: %d", len(line))
		}
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload, "\n", ""))
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	want, err := os.ReadFile(pkgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, want) {
		t.Errorf("payload differs from package")
	}
	if got := sink.statuses(DisplayNames([]string{pkgPath}, "")[0]); len(got) != 2 || got[1] != StatusDone {
		t.Errorf("bundle statuses = %v", got)
	}
}

func TestBundleRejectsInvalidPackage(t *testing.T) {
	dir := t.TempDir()
	bogus := writeSource(t, dir, "bogus.lfp", "not a zip")
	if _, err := Bundle(context.Background(), &BundleRequest{Package: bogus}); err == nil {
		t.Fatalf("expected error for invalid package")
	}
	if _, err := os.Stat(filepath.Join(dir, "bogus")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("bundle written for invalid package")
	}
	if _, err := Bundle(context.Background(), &BundleRequest{Package: filepath.Join(dir, "x.lf")}); err == nil {
		t.Errorf("expected error for non-package path")
	}
}

func TestShellEscape(t *testing.T) {
	if got := shellEscape("a\"b$c`d\\e"); got != "a\\\"b\\$c\\`d\\\\e" {
		t.Errorf("shellEscape = %q", got)
	}
}

func TestDisplayNames(t *testing.T) {
	base := t.TempDir()
	got := DisplayNames([]string{
		filepath.Join(base, "a.lf"),
		filepath.Join(base, "sub", "b.lf"),
		filepath.Join(filepath.Dir(base), "outside.lf"),
	}, base)
	if got[0] != "a.lf" || got[1] != "sub/b.lf" {
		t.Errorf("relative names = %v", got)
	}
	if !strings.HasSuffix(got[2], "/outside.lf") || strings.HasPrefix(got[2], "..") {
		t.Errorf("outside name = %q", got[2])
	}
}

func TestTimingsMerge(t *testing.T) {
	var a, b Timings
	a.Set(StageParse, 2)
	b.Set(StageParse, 3)
	b.Set(StageSerialize, 4)
	a.Merge(b)
	if a.Duration(StageParse) != 5 || a.Duration(StageSerialize) != 4 {
		t.Errorf("merged = %v/%v", a.Duration(StageParse), a.Duration(StageSerialize))
	}
	if a.Sum(CompileStages...) != 9 {
		t.Errorf("sum = %v", a.Sum(CompileStages...))
	}
	if a.Has(StageBundle) {
		t.Errorf("bundle stage should be absent")
	}
}
