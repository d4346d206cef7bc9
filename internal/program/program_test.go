package program

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lf/internal/diag"
	"lf/internal/lexer"
)

const sample = `#name demo
#security strict
#python_import json
// comment
py.x = 5
py.def twice(n):
    return n * 2
cpp.printf("%d\n", x);
js.console.log(x)
py.print(twice(x))
`

func parseSample(t *testing.T, src string) (*Model, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(0)
	m, err := ParseString(context.Background(), "sample.lf", src, ParseOptions{Reporter: &diag.BagReporter{Bag: bag}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return m, bag
}

func TestParseModel(t *testing.T) {
	m, bag := parseSample(t, sample)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %d", bag.Len())
	}
	if len(m.Directives) != 3 {
		t.Fatalf("directives = %d, want 3", len(m.Directives))
	}
	if m.Name() != "demo" || m.SecurityLevel() != "strict" {
		t.Errorf("name/security = %q/%q", m.Name(), m.SecurityLevel())
	}
	if got := m.PythonImports(); len(got) != 1 || got[0] != "json" {
		t.Errorf("python imports = %v", got)
	}
	wantLines := []uint32{5, 6, 8, 9, 10}
	if len(m.Fragments) != len(wantLines) {
		t.Fatalf("fragments = %d, want %d", len(m.Fragments), len(wantLines))
	}
	for i, l := range wantLines {
		if m.Fragments[i].Line != l {
			t.Errorf("fragment %d line = %d, want %d", i, m.Fragments[i].Line, l)
		}
	}
	if m.Fragments[1].Content != "def twice(n):\n    return n * 2" {
		t.Errorf("merged content = %q", m.Fragments[1].Content)
	}
	if m.Stats.FragmentCount != 5 || m.Stats.DirectiveCount != 3 {
		t.Errorf("stats = %+v", m.Stats)
	}
	if m.Stats.Languages["py"] != 3 || m.Stats.Languages["cpp"] != 1 || m.Stats.Languages["js"] != 1 {
		t.Errorf("languages = %v", m.Stats.Languages)
	}
	if len(m.SourceHash) != 16 {
		t.Errorf("source hash %q", m.SourceHash)
	}
}

func TestSourceHashStable(t *testing.T) {
	a, _ := parseSample(t, sample)
	b, _ := parseSample(t, sample)
	c, _ := parseSample(t, sample+"py.y = 1\n")
	if a.SourceHash != b.SourceHash {
		t.Errorf("hash differs for identical input")
	}
	if a.SourceHash == c.SourceHash {
		t.Errorf("hash equal for different input")
	}
}

func TestParseFatalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code diag.Code
		line uint32
	}{
		{"unterminated quote", "py.x = 1\n#name \"demo\n", diag.LexUnterminatedQuote, 2},
		{"bad import", "#python_import os;rm\n", diag.LexInvalidIdentifier, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(context.Background(), "bad.lf", tt.src, ParseOptions{})
			var pe *lexer.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("want ParseError, got %v", err)
			}
			if pe.Code != tt.code || pe.Line != tt.line {
				t.Errorf("got code %s line %d, want %s line %d", pe.Code, pe.Line, tt.code, tt.line)
			}
		})
	}
}

func TestDuplicateDirectiveWarns(t *testing.T) {
	m, bag := parseSample(t, "#name one\n#name two\n#python_import a\n#python_import b\n")
	if m.Name() != "two" {
		t.Errorf("last value should win, got %q", m.Name())
	}
	if bag.Len() != 1 {
		t.Fatalf("diagnostics = %d, want 1", bag.Len())
	}
	d := bag.Items()[0]
	if d.Code != diag.LexDuplicateDirective || d.Line != 2 {
		t.Errorf("got %s at %d", d.Code, d.Line)
	}
}

func TestUnparseableIsWarning(t *testing.T) {
	m, bag := parseSample(t, "py.x = 1\nhello world\npy.y = 2\n")
	if len(m.Fragments) != 2 {
		t.Fatalf("fragments = %d", len(m.Fragments))
	}
	if !bag.HasWarnings() || bag.HasErrors() {
		t.Errorf("expected a warning only")
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	m, _ := parseSample(t, sample)
	built := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := Serialize(m, SerializeOptions{SourcePath: "dir/sample.lf", BuildTime: built})
	if doc.FormatVersion != DocumentFormat || doc.Metadata.SourceFile != "sample.lf" {
		t.Fatalf("metadata = %+v", doc.Metadata)
	}
	if doc.Metadata.SecurityLevel != "strict" || doc.Metadata.BuildTime != "2024-05-01T12:00:00Z" {
		t.Errorf("metadata = %+v", doc.Metadata)
	}

	path := filepath.Join(t.TempDir(), "sample.lsf")
	if err := WriteDocument(doc, path); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Program.Fragments) != len(m.Fragments) {
		t.Fatalf("fragments = %d", len(got.Program.Fragments))
	}
	for i := range m.Fragments {
		if got.Program.Fragments[i] != m.Fragments[i] {
			t.Errorf("fragment %d = %+v, want %+v", i, got.Program.Fragments[i], m.Fragments[i])
		}
	}
	if got.Program.SourceHash != m.SourceHash || !got.BuildTimeValue().Equal(built) {
		t.Errorf("hash/time mismatch")
	}
}

func TestDecodeDocumentRejectsVersion(t *testing.T) {
	_, err := DecodeDocument(strings.NewReader(`{"format_version":"LSF-2.0","program":{}}`))
	var be *BuildError
	if !errors.As(err, &be) || be.Code != diag.PkgVersionMismatch {
		t.Fatalf("got %v", err)
	}
	_, err = DecodeDocument(strings.NewReader(`not json`))
	if !errors.As(err, &be) || be.Code != diag.PkgBadFormat {
		t.Fatalf("got %v", err)
	}
}

func TestPackageRoundTrip(t *testing.T) {
	m, _ := parseSample(t, sample)
	doc := Serialize(m, SerializeOptions{SourcePath: "sample.lf"})

	var buf bytes.Buffer
	man, err := BuildPackage(&buf, doc, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	wantFiles := []string{"code.py", "code.cpp", "code.js"}
	if len(man.Files) != len(wantFiles) {
		t.Fatalf("files = %+v", man.Files)
	}
	for i, name := range wantFiles {
		if man.Files[i].Name != name {
			t.Errorf("file %d = %s, want %s", i, man.Files[i].Name, name)
		}
	}
	if len(man.ExecutionOrder) != 5 || man.ExecutionOrder[2].Type != "cpp" || man.ExecutionOrder[2].Line != 8 {
		t.Errorf("execution order = %+v", man.ExecutionOrder)
	}

	pkg, err := ReadPackage(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	py := pkg.Sources["code.py"]
	if py != "x = 5\ndef twice(n):\n    return n * 2\nprint(twice(x))" {
		t.Errorf("code.py = %q", py)
	}
	if man.Files[0].Size != len(py) {
		t.Errorf("size = %d, want %d", man.Files[0].Size, len(py))
	}
	if pkg.Manifest.FormatVersion != PackageFormat || pkg.Manifest.Metadata.SourceHash != m.SourceHash {
		t.Errorf("manifest = %+v", pkg.Manifest.Metadata)
	}
	if len(pkg.Model().Fragments) != 5 {
		t.Errorf("embedded program has %d fragments", len(pkg.Model().Fragments))
	}
}

func TestPackageManifestStable(t *testing.T) {
	m, _ := parseSample(t, sample)
	a, err := BuildPackage(&bytes.Buffer{}, Serialize(m, SerializeOptions{BuildTime: time.Unix(1, 0)}), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := BuildPackage(&bytes.Buffer{}, Serialize(m, SerializeOptions{BuildTime: time.Unix(99, 0)}), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Files) != len(b.Files) || len(a.ExecutionOrder) != len(b.ExecutionOrder) {
		t.Fatalf("manifests differ in shape")
	}
	for i := range a.Files {
		if a.Files[i] != b.Files[i] {
			t.Errorf("file %d differs", i)
		}
	}
	for i := range a.ExecutionOrder {
		if a.ExecutionOrder[i] != b.ExecutionOrder[i] {
			t.Errorf("entry %d differs", i)
		}
	}
	if a.Metadata.BuildTime == b.Metadata.BuildTime {
		t.Errorf("build time should differ")
	}
}

func TestMinimalPackageOmitsSources(t *testing.T) {
	m, _ := parseSample(t, "#package minimal\npy.x = 1\n")
	var buf bytes.Buffer
	man, err := BuildPackage(&buf, Serialize(m, SerializeOptions{}), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !man.Minimal || len(man.Files) != 0 {
		t.Errorf("manifest = %+v", man)
	}
	pkg, err := ReadPackage(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(pkg.Sources) != 0 {
		t.Errorf("sources = %v", pkg.Sources)
	}
}

func TestPreviewTruncates(t *testing.T) {
	long := strings.Repeat("a", 150)
	if got := Preview(long); len(got) != PreviewWidth {
		t.Errorf("preview len = %d", len(got))
	}
	if got := Preview("short"); got != "short" {
		t.Errorf("preview = %q", got)
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.lf")
	if err := os.WriteFile(src, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	art, err := Load(ctx, nil, src, LoadOptions{})
	if err != nil {
		t.Fatalf("load source: %v", err)
	}
	if art.Kind != ArtifactSource || art.Name() != "demo" {
		t.Errorf("artifact = %v %q", art.Kind, art.Name())
	}

	doc := Serialize(art.Model, SerializeOptions{SourcePath: src})
	if err := WriteDocument(doc, DocumentPath(src)); err != nil {
		t.Fatal(err)
	}
	if _, err := WritePackage(doc, PackagePath(src), nil); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{DocumentPath(src), PackagePath(src)} {
		got, err := Load(ctx, nil, p, LoadOptions{})
		if err != nil {
			t.Fatalf("load %s: %v", p, err)
		}
		if len(got.Model.Fragments) != len(art.Model.Fragments) {
			t.Errorf("%s: fragments = %d", p, len(got.Model.Fragments))
		}
	}

	if _, err := Load(ctx, nil, filepath.Join(dir, "x.txt"), LoadOptions{}); err == nil {
		t.Errorf("expected error for unknown extension")
	}
}

func TestParseCache(t *testing.T) {
	cache, err := OpenParseCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(t.TempDir(), "c.lf")
	if err := os.WriteFile(src, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	first, err := Load(ctx, nil, src, LoadOptions{Cache: cache})
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Fatalf("first load should miss")
	}
	second, err := Load(ctx, nil, src, LoadOptions{Cache: cache})
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Fatalf("second load should hit")
	}
	if len(second.Model.Fragments) != len(first.Model.Fragments) || second.Model.Fragments[1] != first.Model.Fragments[1] {
		t.Errorf("cached model differs")
	}
	if second.Model.Stats.Languages["py"] != 3 {
		t.Errorf("cached stats = %+v", second.Model.Stats)
	}
	if err := cache.DropAll(); err != nil {
		t.Fatal(err)
	}
}

func TestParseCacheSkipsDirtyParses(t *testing.T) {
	cache, err := OpenParseCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(t.TempDir(), "w.lf")
	if err := os.WriteFile(src, []byte("oops\npy.x = 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		bag := diag.NewBag(0)
		art, err := Load(context.Background(), nil, src, LoadOptions{Cache: cache, Parse: ParseOptions{Reporter: &diag.BagReporter{Bag: bag}}})
		if err != nil {
			t.Fatal(err)
		}
		if art.Cached || bag.Len() == 0 {
			t.Errorf("run %d: cached=%v diagnostics=%d", i, art.Cached, bag.Len())
		}
	}
}
