package dispatch

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"

	"lf/internal/executor"
)

// LangStats are per-language counters of one run.
type LangStats struct {
	Lang      string        `json:"lang"`
	Fragments int           `json:"fragments"`
	Inline    int           `json:"inline"`
	Failed    int           `json:"failed"`
	Compile   time.Duration `json:"compile_ns"`
	Run       time.Duration `json:"run_ns"`
}

// Summary aggregates a run.
type Summary struct {
	Languages       []*LangStats               `json:"languages"`
	Fragments       int                        `json:"fragments"`
	Failed          int                        `json:"failed"`
	Skipped         int                        `json:"skipped"`
	Findings        int                        `json:"findings"`
	Vars            int                        `json:"variables"`
	Funcs           int                        `json:"functions"`
	CleanupFailures int                        `json:"cleanup_failures"`
	Interrupted     bool                       `json:"interrupted"`
	Elapsed         time.Duration              `json:"elapsed_ns"`
	Failures        []*executor.ExecutionError `json:"-"`
}

func newSummary() *Summary { return &Summary{} }

// lang returns the counters for tag, creating them in first-seen order.
func (s *Summary) lang(tag string) *LangStats {
	for _, ls := range s.Languages {
		if ls.Lang == tag {
			return ls
		}
	}
	ls := &LangStats{Lang: tag}
	s.Languages = append(s.Languages, ls)
	return ls
}

func (s *Summary) clone() *Summary {
	out := *s
	out.Languages = make([]*LangStats, len(s.Languages))
	for i, ls := range s.Languages {
		cp := *ls
		out.Languages[i] = &cp
	}
	out.Failures = append([]*executor.ExecutionError(nil), s.Failures...)
	return &out
}

// OK reports a run without fragment failures or interruption.
func (s *Summary) OK() bool { return s.Failed == 0 && !s.Interrupted }

// Print writes the human-readable summary.
func (s *Summary) Print(w io.Writer, useColor bool) {
	title := color.New(color.Bold)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed, color.Bold)
	dim := color.New(color.FgHiBlack)
	for _, c := range []*color.Color{title, good, bad, dim} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	fmt.Fprintln(w, title.Sprint("execution summary"))
	langs := append([]*LangStats(nil), s.Languages...)
	sort.SliceStable(langs, func(i, j int) bool { return langs[i].Fragments > langs[j].Fragments })
	for _, ls := range langs {
		line := fmt.Sprintf("  %-6s %3d fragment(s)", ls.Lang, ls.Fragments)
		if ls.Inline > 0 {
			line += dim.Sprintf(", %d inline", ls.Inline)
		}
		if ls.Failed > 0 {
			line += bad.Sprintf(", %d failed", ls.Failed)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "  state: %d variable(s), %d function(s)\n", s.Vars, s.Funcs)
	if s.Findings > 0 {
		fmt.Fprintf(w, "  security findings: %d\n", s.Findings)
	}
	if s.CleanupFailures > 0 {
		fmt.Fprintf(w, "  cleanup failures: %d\n", s.CleanupFailures)
	}
	status := good.Sprint("ok")
	switch {
	case s.Interrupted:
		status = bad.Sprintf("interrupted, %d fragment(s) skipped", s.Skipped)
	case s.Failed > 0:
		status = bad.Sprintf("%d of %d fragment(s) failed", s.Failed, s.Fragments)
	}
	fmt.Fprintf(w, "  %s in %s\n", status, s.Elapsed.Round(time.Millisecond))
}
