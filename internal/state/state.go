// Package state holds the bindings shared between fragments of one run.
//
// State is owned by the dispatcher and mutated only between fragments.
// Executors get a Snapshot, which is an immutable copy.
package state

import (
	"slices"

	"lf/internal/value"
)

// Function is a primary-language callable, kept as source so that later
// external invocations can re-declare it.
type Function struct {
	Name   string
	Source string
	Line   uint32 // фрагмент, где функция была определена последний раз
}

// Binding is a named variable.
type Binding struct {
	Name  string
	Value value.Value
}

// Update is what a primary-language fragment changed.
type Update struct {
	Vars    []Binding
	Funcs   []Function
	Deleted []string
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return len(u.Vars) == 0 && len(u.Funcs) == 0 && len(u.Deleted) == 0
}

// State is the mutable store. Names keep their first-insertion order.
type State struct {
	vars      map[string]value.Value
	varOrder  []string
	funcs     map[string]Function
	funcOrder []string
}

// New returns an empty state.
func New() *State {
	return &State{
		vars:  make(map[string]value.Value),
		funcs: make(map[string]Function),
	}
}

// SetVar binds name to v. A function with the same name is removed.
func (s *State) SetVar(name string, v value.Value) {
	s.dropFunc(name)
	if _, ok := s.vars[name]; !ok {
		s.varOrder = append(s.varOrder, name)
	}
	s.vars[name] = v
}

// SetFunc records a function. A variable with the same name is removed.
func (s *State) SetFunc(f Function) {
	s.dropVar(f.Name)
	if _, ok := s.funcs[f.Name]; !ok {
		s.funcOrder = append(s.funcOrder, f.Name)
	}
	s.funcs[f.Name] = f
}

// Delete removes name from both namespaces.
func (s *State) Delete(name string) {
	s.dropVar(name)
	s.dropFunc(name)
}

func (s *State) dropVar(name string) {
	if _, ok := s.vars[name]; !ok {
		return
	}
	delete(s.vars, name)
	s.varOrder = slices.DeleteFunc(s.varOrder, func(n string) bool { return n == name })
}

func (s *State) dropFunc(name string) {
	if _, ok := s.funcs[name]; !ok {
		return
	}
	delete(s.funcs, name)
	s.funcOrder = slices.DeleteFunc(s.funcOrder, func(n string) bool { return n == name })
}

// Apply merges an executor update: deletions first, then variables, then functions.
func (s *State) Apply(u Update) {
	for _, name := range u.Deleted {
		s.Delete(name)
	}
	for _, b := range u.Vars {
		s.SetVar(b.Name, b.Value)
	}
	for _, f := range u.Funcs {
		s.SetFunc(f)
	}
}

// Var returns the variable bound to name.
func (s *State) Var(name string) (value.Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Func returns the function named name.
func (s *State) Func(name string) (Function, bool) {
	f, ok := s.funcs[name]
	return f, ok
}

// VarCount and FuncCount feed the run summary.
func (s *State) VarCount() int { return len(s.vars) }
func (s *State) FuncCount() int { return len(s.funcs) }

// Reset drops every binding.
func (s *State) Reset() {
	*s = *New()
}

// Snapshot copies the current bindings.
func (s *State) Snapshot() *Snapshot {
	snap := &Snapshot{
		vars:  make([]Binding, 0, len(s.varOrder)),
		funcs: make([]Function, 0, len(s.funcOrder)),
		index: make(map[string]int, len(s.varOrder)),
	}
	for _, name := range s.varOrder {
		snap.index[name] = len(snap.vars)
		snap.vars = append(snap.vars, Binding{Name: name, Value: s.vars[name]})
	}
	for _, name := range s.funcOrder {
		snap.funcs = append(snap.funcs, s.funcs[name])
	}
	return snap
}
