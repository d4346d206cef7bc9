package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lf/internal/config"
	"lf/internal/diag"
	"lf/internal/diagfmt"
	"lf/internal/lexer"
	"lf/internal/program"
	"lf/internal/source"
)

// globalOptions are the persistent root flags.
type globalOptions struct {
	useColor       bool
	quiet          bool
	timings        bool
	maxDiagnostics int
	configPath     string
	diagFormat     string
}

func readGlobals(cmd *cobra.Command) (globalOptions, error) {
	var g globalOptions
	flags := cmd.Root().PersistentFlags()
	colorFlag, err := flags.GetString("color")
	if err != nil {
		return g, fmt.Errorf("failed to get color flag: %w", err)
	}
	g.useColor = colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout))
	if g.quiet, err = flags.GetBool("quiet"); err != nil {
		return g, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if g.timings, err = flags.GetBool("timings"); err != nil {
		return g, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if g.maxDiagnostics, err = flags.GetInt("max-diagnostics"); err != nil {
		return g, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if g.configPath, err = flags.GetString("config"); err != nil {
		return g, fmt.Errorf("failed to get config flag: %w", err)
	}
	if g.diagFormat, err = flags.GetString("diag-format"); err != nil {
		return g, fmt.Errorf("failed to get diag-format flag: %w", err)
	}
	switch g.diagFormat = strings.ToLower(g.diagFormat); g.diagFormat {
	case "pretty", "json", "short":
	default:
		return g, fmt.Errorf("invalid --diag-format value %q (expected pretty|json|short)", g.diagFormat)
	}
	return g, nil
}

// applyColorFlag sets the fatih/color switch once for the whole process.
func applyColorFlag(cmd *cobra.Command) error {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(colorFlag) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorFlag)
	}
	return nil
}

// loadConfig finds lf.toml next to (or above) the input, unless --config is set.
func loadConfig(g globalOptions, input string) (*config.Config, error) {
	start := "."
	if input != "" {
		start = filepath.Dir(input)
	}
	return config.Discover(start, g.configPath)
}

// openCache returns nil when caching is disabled or the cache dir is unusable.
func openCache(cfg *config.Config) *program.ParseCache {
	if cfg.Cache.Disabled {
		return nil
	}
	var (
		cache *program.ParseCache
		err   error
	)
	if cfg.Cache.Dir != "" {
		cache, err = program.OpenParseCacheAt(cfg.Cache.Dir)
	} else {
		cache, err = program.OpenParseCache("lf")
	}
	if err != nil {
		return nil
	}
	return cache
}

func prettyOpts(g globalOptions) diagfmt.PrettyOpts {
	return diagfmt.PrettyOpts{Color: g.useColor, Context: 1, ShowNotes: true}
}

// minSeverity is what streamed diagnostics are filtered to.
func minSeverity(g globalOptions) diag.Severity {
	if g.quiet {
		return diag.SevError
	}
	return diag.SevWarning
}

// printDiagnostics renders bag, plus err when it carries a diagnostic of its own.
func printDiagnostics(w io.Writer, g globalOptions, bag *diag.Bag, fs *source.FileSet, err error) {
	if bag == nil {
		bag = diag.NewBag(g.maxDiagnostics)
	}
	if d, ok := fatalDiagnostic(err); ok {
		bag.Add(d)
	}
	if bag.Len() == 0 {
		return
	}
	bag.Sort()
	out := diag.NewBag(g.maxDiagnostics)
	for _, d := range bag.Items() {
		if d.Severity >= minSeverity(g) {
			out.Add(d)
		}
	}
	switch g.diagFormat {
	case "json":
		if err := diagfmt.JSON(w, out, fs, diagfmt.JSONOpts{IncludePositions: true, IncludeNotes: true}); err != nil {
			fmt.Fprintf(w, "failed to render diagnostics: %v\n", err)
		}
	case "short":
		fmt.Fprintln(w, diag.FormatShortDiagnostics(out.Items(), fs, false))
	default:
		diagfmt.Pretty(w, out, fs, prettyOpts(g))
	}
}

func fatalDiagnostic(err error) (diag.Diagnostic, bool) {
	var pe *lexer.ParseError
	if errors.As(err, &pe) {
		return pe.Diagnostic(), true
	}
	var be *program.BuildError
	if errors.As(err, &be) {
		return diag.AtLine(diag.SevError, be.Code, 0, be.Error()), true
	}
	return diag.Diagnostic{}, false
}

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// reportExit prints err unless it was already reported and returns the exit code.
func reportExit(w io.Writer, err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(w, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(w, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
	return 1
}

// printReporter streams diagnostics to w as they are reported.
func printReporter(w io.Writer, g globalOptions, fs *source.FileSet) diag.Reporter {
	return diagfmt.NewStreamReporter(w, fs, prettyOpts(g), minSeverity(g))
}
