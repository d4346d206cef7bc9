package diagfmt

import (
	"io"
	"sync"

	"lf/internal/diag"
	"lf/internal/source"
)

// StreamReporter печатает диагностики сразу при получении.
// Используется при исполнении, где предупреждения должны идти вперемешку с выводом фрагментов.
type StreamReporter struct {
	mu      sync.Mutex
	w       io.Writer
	fs      *source.FileSet
	opts    PrettyOpts
	minSev  diag.Severity
	counter map[diag.Severity]int
}

// NewStreamReporter creates a reporter that writes every diagnostic at or above minSev.
func NewStreamReporter(w io.Writer, fs *source.FileSet, opts PrettyOpts, minSev diag.Severity) *StreamReporter {
	return &StreamReporter{
		w:       w,
		fs:      fs,
		opts:    opts,
		minSev:  minSev,
		counter: make(map[diag.Severity]int),
	}
}

func (r *StreamReporter) Report(d diag.Diagnostic) {
	if r == nil || d.Severity < r.minSev {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter[d.Severity]++
	PrettyOne(r.w, &d, r.fs, r.opts)
}

// Count returns how many diagnostics of the given severity were written.
func (r *StreamReporter) Count(sev diag.Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter[sev]
}
