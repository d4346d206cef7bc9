package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lf/internal/buildpipeline"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle [flags] <file.lfp>",
	Short: "Wrap a package into a self-contained launcher script",
	Long: `Write an executable sh script that embeds the package and runs it with
lf run. The lf binary used at run time is --runtime or $LF_BIN, default lf.`,
	Args: cobra.ExactArgs(1),
	RunE: runBundle,
}

func init() {
	bundleCmd.Flags().StringP("output", "o", "", "launcher path (default: package path without extension)")
	bundleCmd.Flags().String("runtime", "", "lf binary the launcher invokes (default: lf from PATH)")
}

func runBundle(cmd *cobra.Command, args []string) error {
	g, err := readGlobals(cmd)
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	runtimePath, err := cmd.Flags().GetString("runtime")
	if err != nil {
		return fmt.Errorf("failed to get runtime flag: %w", err)
	}

	req := &buildpipeline.BundleRequest{
		Package: args[0],
		Output:  output,
		Runtime: runtimePath,
	}
	if !g.quiet {
		req.Progress = &buildpipeline.LineSink{W: os.Stderr}
	}
	res, err := buildpipeline.Bundle(cmd.Context(), req)
	if err != nil {
		printDiagnostics(os.Stderr, g, nil, nil, err)
		if reported(err) {
			return &exitError{code: 1}
		}
		return err
	}
	if !g.quiet {
		fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", res.OutputPath, res.Size)
	}
	if g.timings {
		printStageTimings(os.Stderr, res.Timings)
	}
	return nil
}
