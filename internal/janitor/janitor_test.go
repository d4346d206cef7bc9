package janitor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestReleaseIsIdempotent(t *testing.T) {
	j := New(t.TempDir(), "")
	f, h, err := j.TempFile("*.py")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if j.Pending() != 1 {
		t.Fatalf("pending = %d", j.Pending())
	}
	if err := j.Release(h); err != nil {
		t.Fatalf("release: %v", err)
	}
	if exists(h.Path) {
		t.Errorf("file still exists")
	}
	if err := j.Release(h); err != nil {
		t.Errorf("second release: %v", err)
	}
	if j.Pending() != 0 {
		t.Errorf("pending = %d", j.Pending())
	}
}

func TestCleanupRemovesEverything(t *testing.T) {
	j := New(t.TempDir(), "test-")
	dir, _, err := j.TempDir("build-*")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Main.java"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	f, _, err := j.TempFile("*.cpp")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if filepath.Base(dir)[:5] != "test-" {
		t.Errorf("prefix not applied: %s", dir)
	}
	if err := j.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if exists(dir) || exists(f.Name()) {
		t.Errorf("resources left behind")
	}
	if j.Pending() != 0 {
		t.Errorf("pending = %d", j.Pending())
	}
	if err := j.Cleanup(); err != nil {
		t.Errorf("second cleanup: %v", err)
	}
}

func TestAlreadyRemovedIsNotAFailure(t *testing.T) {
	j := New(t.TempDir(), "")
	f, h, err := j.TempFile("*")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	os.Remove(h.Path)
	if err := j.Cleanup(); err != nil {
		t.Errorf("cleanup: %v", err)
	}
}

func TestCleanupErrorUnwraps(t *testing.T) {
	e := &CleanupError{Failures: []Failure{{Path: "a", Err: os.ErrPermission}, {Path: "b", Err: os.ErrClosed}}}
	if !errors.Is(e, os.ErrPermission) || !errors.Is(e, os.ErrClosed) {
		t.Errorf("unwrap failed")
	}
	if e.Error() == "" {
		t.Errorf("empty message")
	}
}
