package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the parse cache",
	Long:  "Remove every cached parse result. Sources are parsed again on the next compile or run.",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	g, err := readGlobals(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(g, "")
	if err != nil {
		return err
	}
	if cfg.Cache.Disabled {
		if !g.quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "parse cache is disabled; nothing to clean")
		}
		return nil
	}
	cache := openCache(cfg)
	if cache == nil {
		return fmt.Errorf("parse cache directory is not available")
	}
	if err := cache.DropAll(); err != nil {
		return fmt.Errorf("failed to clean parse cache: %w", err)
	}
	if !g.quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "removed parse cache at %s\n", cache.Dir())
	}
	return nil
}
