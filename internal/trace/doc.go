// Package trace follows an lf run from the CLI command down to every fragment
// and every compiler or interpreter the fragment starts.
//
// Events carry the fragment they belong to (language tag and source line) and,
// for process spans, the executable and its exit code, so a slow or hanging
// toolchain shows up together with the line that started it:
//
//	lf run --trace=- --trace-level=debug program.lf
//
//	[12:00:01.204]     → fragment {cpp:4}
//	[12:00:01.205]       → exec {cpp:4 /usr/bin/g++}
//	[12:00:02.391]       ← exec (exit status 1) 1.186s {cpp:4 /usr/bin/g++ exit=1}
//	[12:00:02.391]     ← fragment (compile failure) 1.187s {cpp:4}
//
// LevelPhase emits ScopeCommand and ScopePass spans (parse, screen, run).
// LevelDetail adds ScopeFragment, LevelDebug adds ScopeProcess.
//
// Sinks are selected by StorageMode: a stream written as events happen, a ring
// buffer dumped when the command ends, or both. A Heartbeat wraps any sink and
// periodically names the spans that are still open.
package trace
