package executor

import (
	"fmt"

	"lf/internal/diag"
)

// ErrorKind classifies an ExecutionError.
type ErrorKind uint8

const (
	ErrToolchainMissing ErrorKind = iota
	ErrCompile
	ErrTimeout
	ErrRuntime
	ErrInterrupted
	ErrNoExecutor
)

func (k ErrorKind) String() string {
	switch k {
	case ErrToolchainMissing:
		return "toolchain missing"
	case ErrCompile:
		return "compile failure"
	case ErrTimeout:
		return "timeout"
	case ErrRuntime:
		return "runtime failure"
	case ErrInterrupted:
		return "interrupted"
	case ErrNoExecutor:
		return "no executor"
	}
	return "unknown"
}

// Code maps the kind onto its diagnostic code.
func (k ErrorKind) Code() diag.Code {
	switch k {
	case ErrToolchainMissing, ErrNoExecutor:
		return diag.ExeToolchainMissing
	case ErrCompile:
		return diag.ExeCompileFailed
	case ErrTimeout:
		return diag.ExeTimeout
	case ErrInterrupted:
		return diag.ExeInterrupted
	}
	return diag.ExeRuntimeFailed
}

// ExecutionError is a fragment-scoped failure. It never aborts a run.
type ExecutionError struct {
	Kind   ErrorKind
	Lang   string
	Line   uint32
	Tool   string
	Detail string // сжатый вывод компилятора или stderr
	Err    error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s:%d: %s", e.Lang, e.Line, e.Kind)
	if e.Tool != "" {
		msg += " (" + e.Tool + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Diagnostic converts the error into a line-attributed error diagnostic.
func (e *ExecutionError) Diagnostic() diag.Diagnostic {
	msg := e.Kind.String()
	if e.Tool != "" {
		msg += " (" + e.Tool + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += "\n" + e.Detail
	}
	return diag.AtLine(diag.SevError, e.Kind.Code(), e.Line, msg).WithLang(e.Lang)
}

func execErr(kind ErrorKind, req *Request, tool string, err error) *ExecutionError {
	return &ExecutionError{Kind: kind, Lang: req.Lang, Line: req.Line, Tool: tool, Err: err}
}
