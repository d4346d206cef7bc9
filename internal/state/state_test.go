package state

import (
	"testing"

	"lf/internal/value"
)

func TestApplyMovesNamesBetweenNamespaces(t *testing.T) {
	s := New()
	s.Apply(Update{Vars: []Binding{{Name: "x", Value: value.Int(5)}, {Name: "f", Value: value.Int(1)}}})
	s.Apply(Update{Funcs: []Function{{Name: "f", Source: "def f():\n    return 1", Line: 3}}})

	if _, ok := s.Var("f"); ok {
		t.Error("f should no longer be a variable")
	}
	if f, ok := s.Func("f"); !ok || f.Line != 3 {
		t.Errorf("Func(f) = %+v, %v", f, ok)
	}
	if s.VarCount() != 1 || s.FuncCount() != 1 {
		t.Errorf("counts = %d vars, %d funcs", s.VarCount(), s.FuncCount())
	}

	s.Apply(Update{Vars: []Binding{{Name: "f", Value: value.String("now a var")}}, Deleted: []string{"x"}})
	if s.FuncCount() != 0 || s.VarCount() != 1 {
		t.Errorf("after rebinding: %d vars, %d funcs", s.VarCount(), s.FuncCount())
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := New()
	s.SetVar("a", value.Int(1))
	s.SetVar("b", value.String("two"))
	snap := s.Snapshot()

	s.SetVar("a", value.Int(100))
	s.SetVar("c", value.Bool(true))

	if v, _ := snap.Var("a"); !v.Equal(value.Int(1)) {
		t.Errorf("snapshot a = %v", v)
	}
	if _, ok := snap.Var("c"); ok {
		t.Error("snapshot must not see later bindings")
	}
	vars := snap.Vars()
	if len(vars) != 2 || vars[0].Name != "a" || vars[1].Name != "b" {
		t.Errorf("order = %+v", vars)
	}
}

func TestSnapshotEnvSkipsUnsupported(t *testing.T) {
	s := New()
	s.SetVar("n", value.Int(3))
	s.SetVar("d", value.Unsupported("{'k': 1}", true))
	env := s.Snapshot().Env()
	if _, ok := env["d"]; ok {
		t.Error("unsupported value leaked into env")
	}
	if env["n"] != 3 {
		t.Errorf("env[n] = %v", env["n"])
	}
}

func TestInsertionOrderSurvivesUpdate(t *testing.T) {
	s := New()
	s.SetVar("first", value.Int(1))
	s.SetVar("second", value.Int(2))
	s.SetVar("first", value.Int(10))
	vars := s.Snapshot().Vars()
	if vars[0].Name != "first" || !vars[0].Value.Equal(value.Int(10)) {
		t.Errorf("vars = %+v", vars)
	}
	var nilSnap *Snapshot
	if _, ok := nilSnap.Var("x"); ok {
		t.Error("nil snapshot lookup")
	}
}
