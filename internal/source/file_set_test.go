package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSetVersioning(t *testing.T) {
	fs := NewFileSet()

	id1 := fs.Add("demo.lf", []byte("py.x = 1"), 0)
	id2 := fs.Add("demo.lf", []byte("py.x = 2"), 0)
	if id1 == id2 {
		t.Fatalf("expected distinct ids, got %d twice", id1)
	}

	latest, ok := fs.GetLatest("demo.lf")
	if !ok || latest != id2 {
		t.Fatalf("GetLatest = %d,%v; want %d,true", latest, ok, id2)
	}
	if got := string(fs.Get(id1).Content); got != "py.x = 1" {
		t.Errorf("old version content = %q", got)
	}
}

// TestAddVirtualLineIdx проверяет правильность построения LineIdx для AddVirtual
func TestAddVirtualLineIdx(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("a.lf", []byte("a\nb\n"))
	file := fs.Get(id)

	expected := []uint32{1, 3}
	if len(file.LineIdx) != len(expected) {
		t.Fatalf("Expected LineIdx length %d, got %d", len(expected), len(file.LineIdx))
	}
	for i, val := range expected {
		if file.LineIdx[i] != val {
			t.Errorf("Expected LineIdx[%d] = %d, got %d", i, val, file.LineIdx[i])
		}
	}
	if file.Flags&FileVirtual == 0 {
		t.Error("Expected FileVirtual flag to be set")
	}
}

func TestAddVirtualNormalizesCRLFAndBOM(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("bom.lf", []byte("\xEF\xBB\xBFpy.x = 1\r\ncpp.printf(\"hi\");\r\n"))
	file := fs.Get(id)

	if got := string(file.Content); got != "py.x = 1\ncpp.printf(\"hi\");\n" {
		t.Fatalf("unexpected normalized content %q", got)
	}
	if !file.HadBOM() {
		t.Error("expected FileHadBOM flag")
	}
	if file.Flags&FileNormalizedCRLF == 0 {
		t.Error("expected FileNormalizedCRLF flag")
	}
}

func TestLoadUTF16(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wide.lf")
	// UTF-16LE BOM + "py.x\n"
	data := []byte{0xFF, 0xFE, 'p', 0, 'y', 0, '.', 0, 'x', 0, '\n', 0}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	fs := NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	file := fs.Get(id)
	if got := string(file.Content); got != "py.x\n" {
		t.Fatalf("decoded content = %q", got)
	}
	if file.Flags&FileDecodedUTF16 == 0 {
		t.Error("expected FileDecodedUTF16 flag")
	}
}

func TestLoadRejectsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.lf")
	if err := os.WriteFile(path, []byte{'p', 'y', '.', 0xC3, 0x28}, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFileSet().Load(path); err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
}

func TestResolveAndLineSpan(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("r.lf", []byte("#name demo\npy.x = 5\n\ncpp.printf(\"%d\", x);"))
	file := fs.Get(id)

	tests := []struct {
		line uint32
		text string
	}{
		{1, "#name demo"},
		{2, "py.x = 5"},
		{3, ""},
		{4, "cpp.printf(\"%d\", x);"},
	}
	for _, tt := range tests {
		if got := file.GetLine(tt.line); got != tt.text {
			t.Errorf("GetLine(%d) = %q, want %q", tt.line, got, tt.text)
		}
		span, ok := file.LineSpan(tt.line)
		if !ok {
			t.Errorf("LineSpan(%d) not found", tt.line)
			continue
		}
		start, _ := fs.Resolve(span)
		if start.Line != tt.line || start.Col != 1 {
			t.Errorf("Resolve(LineSpan(%d)) = %+v", tt.line, start)
		}
	}
	if _, ok := file.LineSpan(9); ok {
		t.Error("LineSpan beyond EOF should fail")
	}
	if got := len(file.Lines()); got != 4 {
		t.Errorf("Lines() = %d, want 4", got)
	}
}

func TestDigestIsStable(t *testing.T) {
	fs := NewFileSet()
	a := fs.Get(fs.AddVirtual("a.lf", []byte("py.x = 1\n")))
	b := fs.Get(fs.AddVirtual("b.lf", []byte("py.x = 1\n")))
	c := fs.Get(fs.AddVirtual("c.lf", []byte("py.x = 2\n")))

	if a.Digest() != b.Digest() {
		t.Errorf("identical input produced %s and %s", a.Digest(), b.Digest())
	}
	if a.Digest() == c.Digest() {
		t.Error("different input produced the same digest")
	}
	if len(a.Digest()) != 16 {
		t.Errorf("digest length = %d, want 16", len(a.Digest()))
	}
}
