package program

import (
	"fmt"

	"lf/internal/diag"
)

// BuildError is a fatal failure while writing or reading an artifact.
type BuildError struct {
	Op   string // write, package, load
	Path string
	Code diag.Code
	Err  error
}

func (e *BuildError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

func buildErr(op, path string, code diag.Code, err error) error {
	return &BuildError{Op: op, Path: path, Code: code, Err: err}
}
