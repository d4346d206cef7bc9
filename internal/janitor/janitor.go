// Package janitor tracks temporary files and directories created while
// executing fragments and removes each of them exactly once.
package janitor

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Kind of a tracked resource.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
)

// Handle identifies one tracked resource.
type Handle struct {
	ID   uint64
	Path string
	Kind Kind
}

// CleanupError collects removal failures. It is never fatal.
type CleanupError struct {
	Failures []Failure
}

// Failure is one resource that could not be removed.
type Failure struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("cleanup %s: %v", e.Failures[0].Path, e.Failures[0].Err)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Path)
	}
	return fmt.Sprintf("cleanup failed for %d resources: %s", len(e.Failures), strings.Join(parts, ", "))
}

// Unwrap exposes the individual errors to errors.Is/As.
func (e *CleanupError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}

// Janitor is safe for concurrent use.
type Janitor struct {
	mu      sync.Mutex
	dir     string // "" - os.TempDir()
	prefix  string
	next    uint64
	pending map[uint64]Handle
	// OnFailure, если задан, получает каждую ошибку удаления.
	OnFailure func(Failure)
}

// New returns a janitor creating resources under dir with the given name prefix.
func New(dir, prefix string) *Janitor {
	if prefix == "" {
		prefix = "lf-"
	}
	return &Janitor{dir: dir, prefix: prefix, pending: make(map[uint64]Handle)}
}

// TempFile creates and registers a temp file; pattern follows os.CreateTemp.
// The caller owns the open file and must close it.
func (j *Janitor) TempFile(pattern string) (*os.File, Handle, error) {
	f, err := os.CreateTemp(j.dir, j.prefix+pattern)
	if err != nil {
		return nil, Handle{}, err
	}
	return f, j.track(f.Name(), KindFile), nil
}

// TempDir creates and registers a temp directory.
func (j *Janitor) TempDir(pattern string) (string, Handle, error) {
	dir, err := os.MkdirTemp(j.dir, j.prefix+pattern)
	if err != nil {
		return "", Handle{}, err
	}
	return dir, j.track(dir, KindDir), nil
}

// Track registers an externally created path.
func (j *Janitor) Track(path string, kind Kind) Handle {
	return j.track(path, kind)
}

func (j *Janitor) track(path string, kind Kind) Handle {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.next++
	h := Handle{ID: j.next, Path: path, Kind: kind}
	j.pending[h.ID] = h
	return h
}

// Release removes the resource now. Releasing twice is a no-op.
func (j *Janitor) Release(h Handle) error {
	j.mu.Lock()
	_, ok := j.pending[h.ID]
	delete(j.pending, h.ID)
	j.mu.Unlock()
	if !ok {
		return nil
	}
	if err := remove(h); err != nil {
		f := Failure{Path: h.Path, Err: err}
		j.notify(f)
		return &CleanupError{Failures: []Failure{f}}
	}
	return nil
}

// Cleanup removes everything still pending. It always attempts every resource.
func (j *Janitor) Cleanup() error {
	j.mu.Lock()
	handles := make([]Handle, 0, len(j.pending))
	for _, h := range j.pending {
		handles = append(handles, h)
	}
	clear(j.pending)
	j.mu.Unlock()

	// сначала файлы, потом каталоги, в обратном порядке создания
	sort.Slice(handles, func(a, b int) bool {
		if handles[a].Kind != handles[b].Kind {
			return handles[a].Kind < handles[b].Kind
		}
		return handles[a].ID > handles[b].ID
	})
	var failures []Failure
	for _, h := range handles {
		if err := remove(h); err != nil {
			f := Failure{Path: h.Path, Err: err}
			j.notify(f)
			failures = append(failures, f)
		}
	}
	if len(failures) > 0 {
		return &CleanupError{Failures: failures}
	}
	return nil
}

// Pending returns the number of unreleased resources.
func (j *Janitor) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

func (j *Janitor) notify(f Failure) {
	if j.OnFailure != nil {
		j.OnFailure(f)
	}
}

func remove(h Handle) error {
	var err error
	if h.Kind == KindDir {
		err = os.RemoveAll(h.Path)
	} else {
		err = os.Remove(h.Path)
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
