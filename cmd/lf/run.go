package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lf/internal/buildpipeline"
	"lf/internal/config"
	"lf/internal/diag"
	"lf/internal/diagfmt"
	"lf/internal/dispatch"
	"lf/internal/executor"
	"lf/internal/janitor"
	"lf/internal/lang"
	"lf/internal/program"
	"lf/internal/security"
	"lf/internal/source"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <file.lf|file.lsf|file.lfp>",
	Short: "Execute an lf program fragment by fragment",
	Long: `Load a source, document or package and execute its fragments in source order.
Python bindings are carried from fragment to fragment and passed to guest languages.`,
	Args: cobra.ExactArgs(1),
	RunE: runExecution,
}

func init() {
	runCmd.Flags().String("policy", "", "security policy (advisory|strict|off); default from lf.toml or #security")
	runCmd.Flags().Bool("no-screen", false, "skip per-fragment screening in advisory mode")
	runCmd.Flags().Bool("fail-on-error", false, "exit non-zero when any fragment fails")
}

// exitInterrupted is the conventional status for SIGINT.
const exitInterrupted = 130

func runExecution(cmd *cobra.Command, args []string) error {
	g, err := readGlobals(cmd)
	if err != nil {
		return err
	}
	path := args[0]
	cfg, err := loadConfig(g, path)
	if err != nil {
		return err
	}
	noScreen, err := cmd.Flags().GetBool("no-screen")
	if err != nil {
		return fmt.Errorf("failed to get no-screen flag: %w", err)
	}
	failOnError, err := cmd.Flags().GetBool("fail-on-error")
	if err != nil {
		return fmt.Errorf("failed to get fail-on-error flag: %w", err)
	}
	failOnError = failOnError || cfg.Run.FailOnError

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := source.NewFileSet()
	stream := diagfmt.NewStreamReporter(os.Stderr, fs, prettyOpts(g), minSeverity(g))

	var timings buildpipeline.Timings
	start := time.Now()
	art, err := program.Load(ctx, fs, path, program.LoadOptions{
		Parse: program.ParseOptions{Reporter: stream, Registry: lang.Default()},
		Cache: openCache(cfg),
	})
	if err != nil {
		printDiagnostics(os.Stderr, g, nil, fs, err)
		if reported(err) {
			return &exitError{code: 1}
		}
		return err
	}
	timings.Set(buildpipeline.StageParse, time.Since(start))

	policy, err := resolvePolicy(cmd, cfg, art.Model.SecurityLevel())
	if err != nil {
		return err
	}

	d := newDispatcher(cfg, dispatch.Options{
		Stdout:   os.Stdout,
		Policy:   policy,
		NoScreen: noScreen || !cfg.Screen(),
		Reporter: stream,
	})
	start = time.Now()
	sum, runErr := d.Run(ctx, art.Model)
	timings.Set(buildpipeline.StageRun, time.Since(start))

	if !g.quiet {
		sum.Print(os.Stderr, g.useColor)
	}
	if g.timings {
		printStageTimings(os.Stderr, timings)
	}

	var perr *security.PolicyError
	switch {
	case errors.As(runErr, &perr):
		return &exitError{code: 1}
	case errors.Is(runErr, context.Canceled):
		return &exitError{code: exitInterrupted}
	case runErr != nil:
		return runErr
	case failOnError && sum.Failed > 0:
		return &exitError{code: 1, err: fmt.Errorf("%d of %d fragment(s) failed", sum.Failed, sum.Fragments)}
	}
	return nil
}

// newDispatcher wires configuration into dispatcher options.
func newDispatcher(cfg *config.Config, opts dispatch.Options) *dispatch.Dispatcher {
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	opts.Registry = lang.Default()
	opts.Janitor = janitor.New("", "lf-")
	opts.Env = &executor.Env{
		Locator:  cfg.Locator(),
		Timeouts: cfg.ExecutorTimeouts(),
	}
	return dispatch.New(opts)
}
