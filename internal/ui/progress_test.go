package ui

import (
	"errors"
	"strings"
	"testing"

	"lf/internal/buildpipeline"
)

func newTestModel(files ...string) *progressModel {
	ch := make(chan buildpipeline.Event)
	return NewProgressModel("compiling", files, ch).(*progressModel)
}

func TestApplyEventTracksStages(t *testing.T) {
	m := newTestModel("a.lf", "b.lf")
	m.applyEvent(buildpipeline.Event{File: "a.lf", Stage: buildpipeline.StageScreen, Status: buildpipeline.StatusWorking})
	if m.items[0].status != "screening" {
		t.Fatalf("status = %q", m.items[0].status)
	}
	if got := m.overall(); got != 0.2 {
		t.Errorf("overall = %v, want 0.2", got)
	}

	m.applyEvent(buildpipeline.Event{File: "a.lf", Stage: buildpipeline.StagePackage, Status: buildpipeline.StatusDone})
	m.applyEvent(buildpipeline.Event{File: "b.lf", Stage: buildpipeline.StageParse, Status: buildpipeline.StatusError, Err: errors.New("b.lf: unmatched quote\nmore")})
	if got := m.overall(); got != 1 {
		t.Errorf("overall = %v, want 1", got)
	}
	finished, failed := m.counts()
	if finished != 2 || failed != 1 {
		t.Errorf("counts = %d/%d", finished, failed)
	}
	if m.items[1].detail != "b.lf: unmatched quote" {
		t.Errorf("detail = %q", m.items[1].detail)
	}
}

func TestApplyEventIgnoresUnknownFiles(t *testing.T) {
	m := newTestModel("a.lf")
	if cmd := m.applyEvent(buildpipeline.Event{File: "zzz.lf", Stage: buildpipeline.StageParse, Status: buildpipeline.StatusWorking}); cmd != nil {
		t.Errorf("unexpected command for unknown file")
	}
	if m.items[0].status != "queued" {
		t.Errorf("status changed: %q", m.items[0].status)
	}
}

func TestViewShowsRowsAndTotals(t *testing.T) {
	m := newTestModel("a.lf", "b.lf")
	m.applyEvent(buildpipeline.Event{File: "a.lf", Stage: buildpipeline.StagePackage, Status: buildpipeline.StatusDone})
	m.applyEvent(buildpipeline.Event{File: "b.lf", Stage: buildpipeline.StageParse, Status: buildpipeline.StatusError, Err: errors.New("boom")})
	m.Update(doneMsg{})
	view := m.View()
	for _, want := range []string{"done: compiling", "a.lf", "b.lf", "boom", "2/2 finished", "1 failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 8, "abcde..."},
		{"abcdef", 3, "abc"},
		{"anything", 0, "anything"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.width); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}
