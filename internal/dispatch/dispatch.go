// Package dispatch executes a parsed program fragment by fragment, carrying
// primary-language bindings from one fragment to the next.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"lf/internal/diag"
	"lf/internal/executor"
	"lf/internal/janitor"
	"lf/internal/lang"
	"lf/internal/program"
	"lf/internal/security"
	"lf/internal/source"
	"lf/internal/state"
	"lf/internal/trace"
)

// Options configure a Dispatcher. Zero values are usable.
type Options struct {
	Stdout    io.Writer
	Policy    security.Policy
	NoScreen  bool               // пропустить экранирование в advisory-режиме
	Reporter  diag.Reporter
	Registry  *lang.Registry
	Executors *executor.Set
	Janitor   *janitor.Janitor
	Screener  *security.Screener
	Env       *executor.Env      // используется, если Executors == nil
}

// line-attributed diagnostics carry no span
var noSpan source.Span

// Dispatcher is the run state machine. It is not safe for concurrent use.
type Dispatcher struct {
	opts    Options
	state   *state.State
	imports []string
	stats   *Summary
	started time.Time
	ownScr  bool
}

// New prepares a dispatcher with an empty state.
func New(opts Options) *Dispatcher {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	if opts.Registry == nil {
		opts.Registry = lang.Default()
	}
	if opts.Janitor == nil {
		opts.Janitor = janitor.New("", "")
	}
	if opts.Executors == nil {
		env := opts.Env
		if env == nil {
			env = &executor.Env{}
		}
		env.Janitor = opts.Janitor
		opts.Executors = executor.NewSet(env)
	}
	d := &Dispatcher{
		opts:    opts,
		state:   state.New(),
		stats:   newSummary(),
		started: time.Now(),
	}
	if opts.Screener == nil && d.screening() {
		d.opts.Screener = security.NewScreener()
		d.ownScr = true
	}
	opts.Janitor.OnFailure = func(f janitor.Failure) {
		diag.ReportWarning(d.opts.Reporter, diag.ExeCleanupFailed, noSpan,
			fmt.Sprintf("could not remove %s: %v", f.Path, f.Err)).Emit()
	}
	return d
}

func (d *Dispatcher) screening() bool {
	switch d.opts.Policy {
	case security.PolicyOff:
		return false
	case security.PolicyStrict:
		return true
	}
	return !d.opts.NoScreen
}

// State exposes the shared bindings.
func (d *Dispatcher) State() *state.State { return d.state }

// Summary returns the statistics gathered so far.
func (d *Dispatcher) Summary() *Summary {
	s := d.stats.clone()
	s.Vars = d.state.VarCount()
	s.Funcs = d.state.FuncCount()
	s.Elapsed = time.Since(d.started)
	return s
}

// Run executes every fragment of m in source order. Fragment failures are
// reported and counted; only a strict-policy violation or an interrupt is
// returned as an error. Temp objects are cleaned up on every path.
func (d *Dispatcher) Run(ctx context.Context, m *program.Model) (sum *Summary, err error) {
	ctx, span := trace.StartSpan(ctx, trace.ScopePass, "run")
	defer func() {
		if cerr := d.Close(); cerr != nil {
			d.stats.CleanupFailures += len(cleanupFailures(cerr))
		}
		sum = d.Summary()
		span.End(fmt.Sprintf("%s: %d fragments, %d failed", statusOf(err), sum.Fragments, sum.Failed))
	}()

	d.imports = m.PythonImports()
	if d.opts.Policy == security.PolicyStrict {
		findings := d.opts.Screener.ScreenModel(ctx, m)
		d.stats.Findings += len(findings)
		security.Report(d.opts.Reporter, d.opts.Policy, findings)
		if perr := security.Enforce(d.opts.Policy, findings); perr != nil {
			diag.ReportError(d.opts.Reporter, diag.SecPolicyViolation, noSpan, perr.Error()).Emit()
			return nil, perr
		}
	}

	for _, f := range m.Fragments {
		if ctx.Err() != nil {
			d.stats.Skipped++
			continue
		}
		_ = d.step(ctx, f, d.opts.Policy != security.PolicyStrict)
	}
	if cerr := ctx.Err(); cerr != nil {
		d.stats.Interrupted = true
		return nil, fmt.Errorf("run interrupted: %w", cerr)
	}
	return nil, nil
}

// Execute runs a single fragment against the current state, as the shell does.
// The returned error is an *executor.ExecutionError when the fragment failed.
func (d *Dispatcher) Execute(ctx context.Context, f program.Fragment) error {
	return d.step(ctx, f, true)
}

// SetImports replaces the modules every external Python invocation imports.
func (d *Dispatcher) SetImports(mods []string) { d.imports = append([]string(nil), mods...) }

// Close removes every temp object that is still registered. The returned
// error is informational; failures were already reported as warnings.
func (d *Dispatcher) Close() error {
	if d.ownScr && d.opts.Screener != nil {
		d.opts.Screener.Close()
		d.opts.Screener = nil
		d.ownScr = false
	}
	return d.opts.Janitor.Cleanup()
}

func (d *Dispatcher) step(ctx context.Context, f program.Fragment, screen bool) error {
	ls := d.stats.lang(f.Lang)
	ls.Fragments++
	d.stats.Fragments++

	ctx, span := trace.StartFragment(ctx, f.Lang, f.Line)
	if screen && d.screening() {
		if d.opts.Screener == nil {
			d.opts.Screener = security.NewScreener()
			d.ownScr = true
		}
		findings := d.opts.Screener.Screen(f.Content, f.Lang, f.Line)
		d.stats.Findings += len(findings)
		security.Report(d.opts.Reporter, d.opts.Policy, findings)
	}

	res, err := d.invoke(ctx, f)
	if err != nil {
		var ee *executor.ExecutionError
		if !errors.As(err, &ee) {
			ee = &executor.ExecutionError{Kind: executor.ErrRuntime, Lang: f.Lang, Line: f.Line, Err: err}
		}
		ls.Failed++
		d.stats.Failed++
		d.stats.Failures = append(d.stats.Failures, ee)
		d.opts.Reporter.Report(ee.Diagnostic())
		span.End(ee.Kind.String())
		return ee
	}

	if res.Inline {
		ls.Inline++
	}
	ls.Compile += res.Compile
	ls.Run += res.Run
	if d.opts.Registry.IsPrimary(f.Lang) {
		d.state.Apply(res.Update)
	}
	if res.Stderr != "" {
		diag.ReportWarning(d.opts.Reporter, diag.ExeStderr, noSpan, res.Stderr).
			AtLine(f.Line).ForLang(f.Lang).Emit()
	}
	if res.Inline {
		span.End("inline")
	} else {
		span.End("ok")
	}
	return nil
}

func (d *Dispatcher) invoke(ctx context.Context, f program.Fragment) (*executor.Result, error) {
	ex, ok := d.opts.Executors.Lookup(f.Lang)
	if !ok {
		return nil, &executor.ExecutionError{
			Kind: executor.ErrNoExecutor,
			Lang: f.Lang,
			Line: f.Line,
			Err:  fmt.Errorf("no executor for language %q", f.Lang),
		}
	}
	return ex.Execute(ctx, &executor.Request{
		Lang:    f.Lang,
		Content: executable(f),
		Line:    f.Line,
		State:   d.state.Snapshot(),
		Imports: d.imports,
		Stdout:  d.opts.Stdout,
	})
}

// executable is the code handed to an executor. Single-line fragments keep
// their text after the prefix verbatim and are trimmed only here.
func executable(f program.Fragment) string {
	if strings.Contains(f.Content, "\n") {
		return f.Content
	}
	return strings.TrimSpace(f.Content)
}

func cleanupFailures(err error) []janitor.Failure {
	var ce *janitor.CleanupError
	if errors.As(err, &ce) {
		return ce.Failures
	}
	return nil
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
