package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"lf/internal/buildpipeline"
	"lf/internal/lang"
	"lf/internal/security"
	"lf/internal/version"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] <file.lf>...",
	Short: "Compile lf sources into .lsf documents and .lfp packages",
	Long: `Parse each source, screen its fragments, write the LSF-3.0 document and,
unless --no-package is given, the .lfp package next to it (or into -o dir).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringP("output", "o", "", "output directory (default: next to each source)")
	compileCmd.Flags().Bool("no-package", false, "write only the .lsf document")
	compileCmd.Flags().Int("jobs", 0, "max parallel files (0=one per CPU)")
	compileCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	compileCmd.Flags().String("policy", "", "security policy for screening (advisory|strict|off)")
	compileCmd.Flags().Bool("no-screen", false, "skip security screening")
}

func runCompile(cmd *cobra.Command, args []string) error {
	g, err := readGlobals(cmd)
	if err != nil {
		return err
	}
	outDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	noPackage, err := cmd.Flags().GetBool("no-package")
	if err != nil {
		return fmt.Errorf("failed to get no-package flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if jobs <= 0 {
		jobs = defaultJobs()
	}
	tui, err := useTUI(cmd, g.quiet)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(g, args[0])
	if err != nil {
		return err
	}
	policy, err := resolvePolicy(cmd, cfg, "")
	if err != nil {
		return err
	}
	noScreen, err := cmd.Flags().GetBool("no-screen")
	if err != nil {
		return fmt.Errorf("failed to get no-screen flag: %w", err)
	}
	if (noScreen || !cfg.Screen()) && policy != security.PolicyStrict {
		policy = security.PolicyOff
	}

	req := &buildpipeline.CompileRequest{
		Files:          args,
		OutDir:         outDir,
		NoPackage:      noPackage,
		Jobs:           jobs,
		Registry:       lang.Default(),
		Cache:          openCache(cfg),
		Policy:         policy,
		MaxDiagnostics: g.maxDiagnostics,
		Compiler:       version.Compiler(),
	}

	var result buildpipeline.CompileResult
	if tui {
		result, err = runCompileWithUI(cmd.Context(), "compiling", req)
	} else {
		result, err = buildpipeline.Compile(cmd.Context(), req)
	}
	if len(result.Files) == 0 {
		return err
	}

	printCompileResults(os.Stderr, g, result)
	if g.timings {
		printStageTimings(os.Stderr, result.Timings)
	}
	if err != nil {
		return &exitError{code: 1}
	}
	return nil
}

func printCompileResults(w io.Writer, g globalOptions, result buildpipeline.CompileResult) {
	multi := len(result.Files) > 1
	for _, fr := range result.Files {
		if fr == nil {
			continue
		}
		if multi && (fr.Bag.Len() > 0 || fr.Err != nil) {
			fmt.Fprintf(w, "== %s ==\n", fr.Display)
		}
		printDiagnostics(w, g, fr.Bag, fr.FileSet, fr.Err)
		if fr.Err != nil && !reported(fr.Err) {
			fmt.Fprintf(w, "error: %v\n", fr.Err)
		}
		if fr.Err == nil && !g.quiet {
			out := fr.Document
			if fr.Package != "" {
				out += ", " + fr.Package
			}
			cached := ""
			if fr.Cached {
				cached = " (cached parse)"
			}
			fmt.Fprintf(w, "compiled %s -> %s%s\n", fr.Display, out, cached)
		}
	}
}

// reported: the error is already visible through its diagnostics.
func reported(err error) bool {
	if _, ok := fatalDiagnostic(err); ok {
		return true
	}
	var pe *security.PolicyError
	return errors.As(err, &pe)
}

func defaultJobs() int {
	return max(runtime.NumCPU(), 1)
}
