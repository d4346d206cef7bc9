// Package executor runs single fragments: simple cases in-process, everything
// else through the language's compiler or interpreter.
package executor

import (
	"context"
	"io"
	"time"

	"lf/internal/janitor"
	"lf/internal/state"
	"lf/internal/toolchain"
)

// Request is one fragment to execute.
type Request struct {
	Lang    string
	Content string
	Line    uint32
	State   *state.Snapshot // только чтение
	Imports []string        // #python_import
	Stdout  io.Writer
}

// Result describes a successful execution.
type Result struct {
	Update  state.Update // только для основного языка
	Inline  bool         // выполнено без внешнего процесса
	Stderr  string
	Compile time.Duration
	Run     time.Duration
}

// Executor runs fragments of one language.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// Timeouts bound one compile and one run step.
type Timeouts struct {
	Compile time.Duration
	Run     time.Duration
}

// DefaultTimeouts per language tag.
func DefaultTimeouts() map[string]Timeouts {
	return map[string]Timeouts{
		"py":   {Run: 30 * time.Second},
		"cpp":  {Compile: 30 * time.Second, Run: 20 * time.Second},
		"java": {Compile: 20 * time.Second, Run: 10 * time.Second},
		"js":   {Run: 10 * time.Second},
		"php":  {Run: 10 * time.Second},
		"rust": {Compile: 60 * time.Second, Run: 10 * time.Second},
	}
}

// Env is what executors share.
type Env struct {
	Locator  *toolchain.Locator
	Janitor  *janitor.Janitor
	Timeouts map[string]Timeouts // nil - DefaultTimeouts
}

func (e *Env) timeouts(tag string) Timeouts {
	def := DefaultTimeouts()[tag]
	if e == nil || e.Timeouts == nil {
		return def
	}
	t, ok := e.Timeouts[tag]
	if !ok {
		return def
	}
	if t.Compile <= 0 {
		t.Compile = def.Compile
	}
	if t.Run <= 0 {
		t.Run = def.Run
	}
	return t
}

// Set maps language tags to executors.
type Set struct {
	byLang map[string]Executor
}

// NewSet builds the executors for every built-in language.
func NewSet(env *Env) *Set {
	if env.Locator == nil {
		env.Locator = toolchain.NewLocator(nil)
	}
	if env.Janitor == nil {
		env.Janitor = janitor.New("", "")
	}
	s := &Set{byLang: make(map[string]Executor)}
	s.Register("py", &Python{env: env})
	s.Register("cpp", &CPP{guest: newGuest(env, cppRecipe)})
	for _, recipe := range []*langRecipe{jsRecipe, javaRecipe, phpRecipe, rustRecipe} {
		s.Register(recipe.tag, newGuest(env, recipe))
	}
	return s
}

// Register adds or replaces the executor for tag.
func (s *Set) Register(tag string, ex Executor) {
	s.byLang[tag] = ex
}

// Lookup returns the executor for tag.
func (s *Set) Lookup(tag string) (Executor, bool) {
	ex, ok := s.byLang[tag]
	return ex, ok
}
