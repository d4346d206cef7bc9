package state

import "lf/internal/value"

// Snapshot is a read-only view of State taken before a fragment runs.
type Snapshot struct {
	vars  []Binding
	funcs []Function
	index map[string]int
}

// EmptySnapshot is a snapshot with no bindings.
func EmptySnapshot() *Snapshot {
	return &Snapshot{index: map[string]int{}}
}

// Var looks a variable up by exact name.
func (s *Snapshot) Var(name string) (value.Value, bool) {
	if s == nil {
		return value.Value{}, false
	}
	idx, ok := s.index[name]
	if !ok {
		return value.Value{}, false
	}
	return s.vars[idx].Value, true
}

// Vars returns the variables in insertion order.
func (s *Snapshot) Vars() []Binding {
	if s == nil {
		return nil
	}
	return append([]Binding(nil), s.vars...)
}

// Funcs returns the functions in insertion order.
func (s *Snapshot) Funcs() []Function {
	if s == nil {
		return nil
	}
	return append([]Function(nil), s.funcs...)
}

// HasFunc reports whether a function named name exists.
func (s *Snapshot) HasFunc(name string) bool {
	if s == nil {
		return false
	}
	for _, f := range s.funcs {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Env builds the evaluator environment: supported variables as Go natives.
func (s *Snapshot) Env() map[string]any {
	env := make(map[string]any, len(s.Vars()))
	for _, b := range s.Vars() {
		if b.Value.Supported() {
			env[b.Name] = b.Value.Native()
		}
	}
	return env
}
