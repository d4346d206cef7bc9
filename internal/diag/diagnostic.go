package diag

import (
	"lf/internal/source"
)

type Note struct {
	Span source.Span
	Line uint32
	Msg  string
}

type FixEdit struct {
	Span    source.Span
	NewText string
}

type Fix struct {
	Title string
	Edits []FixEdit
}

// Diagnostic is a single finding. Primary is set when the diagnostic points into a
// loaded source file; Line carries the 1-based source line in every case, so that
// diagnostics produced while running a serialized program stay line-attributed.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Line     uint32
	Lang     string
	Notes    []Note
	Fixes    []Fix
}

// HasSpan reports whether Primary refers to real source bytes.
func (d Diagnostic) HasSpan() bool {
	return d.Primary != (source.Span{})
}
