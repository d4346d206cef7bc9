// Package diag defines the diagnostic model shared by every lf phase.
//
// # Purpose
//
//   - Provide deterministic data structures for findings produced by the lexer,
//     the block merger, the security screener and the executors.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to storage or formatting.
//
// Package diag does not render anything except the single-line short form used by
// tests and quiet output. Pretty and JSON rendering lives in internal/diagfmt.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity: Info, Warning or Error.
//   - Code: compact numeric identifier (see codes.go) with a stable string form
//     such as LEX1002 or EXE4003.
//   - Message: short, actionable text.
//   - Primary: the source.Span of the issue when the source file is loaded.
//   - Line and Lang: 1-based source line and fragment language. They are always
//     set for executor diagnostics because a serialized program has no spans.
//   - Notes and Fixes: optional secondary context.
//
// # Emitting diagnostics
//
// Phases receive a diag.Reporter. ReportBuilder (ReportError / ReportWarning /
// ReportInfo) chains AtLine, ForLang and WithNote before Emit. BagReporter collects
// into a Bag, DedupReporter filters repeats, MultiReporter fans out.
package diag
