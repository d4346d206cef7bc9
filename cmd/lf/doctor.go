package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lf/internal/toolchain"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check which language toolchains are installed",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

type doctorReport struct {
	Config    string             `json:"config,omitempty"`
	Overrides []string           `json:"overrides,omitempty"`
	Tools     []toolchain.Status `json:"tools"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
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
	cfg, err := loadConfig(g, "")
	if err != nil {
		return err
	}
	loc := cfg.Locator()
	report := doctorReport{
		Config:    cfg.Path,
		Overrides: loc.Overrides(),
		Tools:     loc.Probe(cmd.Context(), toolchain.All()),
	}
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	renderDoctor(cmd.OutOrStdout(), report)
	return nil
}

func renderDoctor(w io.Writer, r doctorReport) {
	ok := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)
	if r.Config != "" {
		fmt.Fprintf(w, "config: %s\n", r.Config)
	}
	for _, o := range r.Overrides {
		fmt.Fprintf(w, "override: %s\n", o)
	}
	missing := 0
	for _, st := range r.Tools {
		label := fmt.Sprintf("%-6s %-6s %-11s", st.Tool, st.Lang, st.Role)
		if st.Found {
			ver := st.Version
			if ver == "" {
				ver = "version unknown"
			}
			fmt.Fprintf(w, "%s %s %s %s\n", ok.Sprint("ok  "), label, st.Path, dim.Sprintf("(%s)", ver))
			continue
		}
		missing++
		fmt.Fprintf(w, "%s %s not found\n", bad.Sprint("miss"), label)
		if st.Guidance != "" {
			fmt.Fprintf(w, "     %s\n", dim.Sprint(st.Guidance))
		}
	}
	if missing == 0 {
		fmt.Fprintln(w, "all toolchains found")
		return
	}
	fmt.Fprintf(w, "%d of %d tool(s) missing; fragments of those languages will fail at run time\n", missing, len(r.Tools))
}
