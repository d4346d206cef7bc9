package observ

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	tm.Add("compile", 2*time.Millisecond, "")
	tm.Add("execute", 3*time.Millisecond, "3 fragments")
	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("phases = %d", len(r.Phases))
	}
	if r.TotalMS != 5 {
		t.Errorf("total = %v, want 5", r.TotalMS)
	}
	if r.Phases[1].Note != "3 fragments" {
		t.Errorf("note = %q", r.Phases[1].Note)
	}
	s := tm.Summary()
	for _, want := range []string{"compile", "execute", "// 3 fragments", "total", "5.00 ms"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestTimerMeasure(t *testing.T) {
	tm := NewTimer()
	boom := errors.New("boom")
	if err := tm.Measure("run", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if err := tm.Measure("run", func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Note != "failed" || r.Phases[1].Note != "" {
		t.Errorf("phases = %+v", r.Phases)
	}
	if tm.Duration("missing") != 0 {
		t.Errorf("unknown phase has duration")
	}
}

func TestTimerEndOutOfRange(t *testing.T) {
	tm := NewTimer()
	tm.End(3, "x")
	idx := tm.Begin("a")
	tm.End(idx, "ok")
	if r := tm.Report(); len(r.Phases) != 1 || r.Phases[0].Note != "ok" {
		t.Errorf("report = %+v", r)
	}
}

func TestEmptyReport(t *testing.T) {
	r := NewTimer().Report()
	if r.TotalMS != 0 || len(r.Phases) != 0 {
		t.Errorf("report = %+v", r)
	}
}
