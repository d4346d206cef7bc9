package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"lf/internal/dispatch"
	"lf/internal/lang"
	"lf/internal/observ"
	"lf/internal/program"
	"lf/internal/source"
	"lf/internal/version"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark [flags] <file.lf>",
	Short: "Measure compile and execution time of a source",
	Long: `Compile the source in memory (parse, document, package) and execute it,
then report compile time, execution time and the total.`,
	Args: cobra.ExactArgs(1),
	RunE: runBenchmark,
}

func init() {
	benchmarkCmd.Flags().String("format", "pretty", "report format (pretty|json)")
	benchmarkCmd.Flags().Bool("show-output", true, "print program output")
	benchmarkCmd.Flags().String("policy", "", "security policy (advisory|strict|off)")
}

// benchmarkReport is the json form of a benchmark.
type benchmarkReport struct {
	File        string               `json:"file"`
	CompileMS   float64              `json:"compile_ms"`
	ExecuteMS   float64              `json:"execute_ms"`
	TotalMS     float64              `json:"total_ms"`
	Fragments   int                  `json:"fragments"`
	Failed      int                  `json:"failed"`
	PackageSize int                  `json:"package_bytes"`
	Phases      []observ.PhaseReport `json:"phases"`
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	g, err := readGlobals(cmd)
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	showOutput, err := cmd.Flags().GetBool("show-output")
	if err != nil {
		return fmt.Errorf("failed to get show-output flag: %w", err)
	}
	path := args[0]
	if kind, ok := program.KindOf(path); !ok || kind != program.ArtifactSource {
		return fmt.Errorf("%s: benchmark expects a %s source", path, program.SourceExt)
	}
	cfg, err := loadConfig(g, path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := source.NewFileSet()
	reporter := printReporter(os.Stderr, g, fs)
	timer := observ.NewTimer()
	var (
		art     *program.Artifact
		pkgSize int
	)
	// кэш разбора не используется: замеряем честный разбор
	err = timer.Measure("compile", func() error {
		var lerr error
		art, lerr = program.Load(ctx, fs, path, program.LoadOptions{
			Parse: program.ParseOptions{Reporter: reporter, Registry: lang.Default()},
		})
		if lerr != nil {
			return lerr
		}
		doc := program.Serialize(art.Model, program.SerializeOptions{Compiler: version.Compiler(), SourcePath: path})
		var buf bytes.Buffer
		if _, lerr = program.BuildPackage(&buf, doc, lang.Default()); lerr != nil {
			return lerr
		}
		pkgSize = buf.Len()
		return nil
	})
	if err != nil {
		printDiagnostics(os.Stderr, g, nil, fs, err)
		if reported(err) {
			return &exitError{code: 1}
		}
		return err
	}

	policy, err := resolvePolicy(cmd, cfg, art.Model.SecurityLevel())
	if err != nil {
		return err
	}
	var stdout io.Writer = os.Stdout
	if !showOutput {
		stdout = io.Discard
	}
	d := newDispatcher(cfg, dispatch.Options{Stdout: stdout, Policy: policy, NoScreen: !cfg.Screen(), Reporter: reporter})
	var sum *dispatch.Summary
	runErr := timer.Measure("execute", func() error {
		var rerr error
		sum, rerr = d.Run(ctx, art.Model)
		return rerr
	})

	report := timer.Report()
	out := benchmarkReport{
		File:        path,
		CompileMS:   observ.Millis(timer.Duration("compile")),
		ExecuteMS:   observ.Millis(timer.Duration("execute")),
		TotalMS:     report.TotalMS,
		Fragments:   sum.Fragments,
		Failed:      sum.Failed,
		PackageSize: pkgSize,
		Phases:      report.Phases,
	}
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		w := cmd.ErrOrStderr()
		if !g.quiet {
			sum.Print(w, g.useColor)
		}
		fmt.Fprint(w, timer.Summary())
		fmt.Fprintf(w, "  %-20s %9d bytes\n", "package", pkgSize)
	}
	if runErr != nil {
		return &exitError{code: 1, err: runErr}
	}
	return nil
}
