package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"lf/internal/diag"
	"lf/internal/lang"
	"lf/internal/lexer"
	"lf/internal/program"
	"lf/internal/security"
	"lf/internal/source"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] <file.lf>",
	Short: "Report line, fragment and screening statistics for a source",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("format", "pretty", "output format (pretty|json|yaml)")
}

// analysisReport is the machine-readable analyze output.
type analysisReport struct {
	File          string              `json:"file" yaml:"file"`
	Name          string              `json:"name,omitempty" yaml:"name,omitempty"`
	SourceHash    string              `json:"source_hash" yaml:"source_hash"`
	SecurityLevel string              `json:"security_level" yaml:"security_level"`
	Lines         lexer.Counts        `json:"lines" yaml:"lines"`
	Directives    []program.Directive `json:"directives" yaml:"directives"`
	Fragments     int                 `json:"fragments" yaml:"fragments"`
	ByLanguage    map[string]int      `json:"fragments_by_language" yaml:"fragments_by_language"`
	PythonImports []string            `json:"python_imports,omitempty" yaml:"python_imports,omitempty"`
	Findings      int                 `json:"findings" yaml:"findings"`
	FindingsBy    map[string]int      `json:"findings_by_rule,omitempty" yaml:"findings_by_rule,omitempty"`
	Warnings      int                 `json:"warnings" yaml:"warnings"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	g, err := readGlobals(cmd)
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	switch format {
	case "pretty", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty, json or yaml)", format)
	}
	path := args[0]
	if kind, ok := program.KindOf(path); !ok || kind != program.ArtifactSource {
		return fmt.Errorf("%s: analyze expects a %s source", path, program.SourceExt)
	}

	fs := source.NewFileSet()
	bag := diag.NewBag(g.maxDiagnostics)
	reg := lang.Default()
	art, err := program.Load(cmd.Context(), fs, path, program.LoadOptions{
		Parse: program.ParseOptions{Reporter: &diag.BagReporter{Bag: bag}, Registry: reg},
	})
	if err != nil {
		printDiagnostics(os.Stderr, g, bag, fs, err)
		if reported(err) {
			return &exitError{code: 1}
		}
		return err
	}

	scr := security.NewScreener()
	findings := scr.ScreenModel(cmd.Context(), art.Model)
	scr.Close()

	report := buildAnalysis(path, art.Model, lexer.Segment(fs.Get(art.FileID), reg), findings)
	report.Warnings = bag.Count(diag.SevWarning)

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	}
	printDiagnostics(os.Stderr, g, bag, fs, nil)
	security.Report(printReporter(os.Stderr, g, fs), security.PolicyAdvisory, findings)
	renderAnalysis(out, report)
	return nil
}

func buildAnalysis(path string, m *program.Model, lines []lexer.Line, findings []security.Finding) analysisReport {
	r := analysisReport{
		File:          path,
		Name:          m.Name(),
		SourceHash:    m.SourceHash,
		SecurityLevel: m.SecurityLevel(),
		Lines:         lexer.Count(lines),
		Directives:    m.Directives,
		Fragments:     len(m.Fragments),
		ByLanguage:    m.Stats.Languages,
		PythonImports: m.PythonImports(),
		Findings:      len(findings),
	}
	if len(findings) > 0 {
		r.FindingsBy = make(map[string]int)
		for _, f := range findings {
			r.FindingsBy[f.Rule]++
		}
	}
	return r
}

func renderAnalysis(w io.Writer, r analysisReport) {
	head := color.New(color.Bold)
	label := color.New(color.FgCyan)
	title := r.File
	if r.Name != "" {
		title = fmt.Sprintf("%s (%s)", r.Name, r.File)
	}
	head.Fprintln(w, title)
	fmt.Fprintf(w, "  %s %s\n", label.Sprintf("%-14s", "source hash"), r.SourceHash)
	fmt.Fprintf(w, "  %s %s\n", label.Sprintf("%-14s", "security"), r.SecurityLevel)

	head.Fprintln(w, "lines")
	row := func(name string, n int) {
		fmt.Fprintf(w, "  %s %5d\n", label.Sprintf("%-14s", name), n)
	}
	row("total", r.Lines.Total)
	row("directives", r.Lines.Directives)
	row("comments", r.Lines.Comments)
	row("blank", r.Lines.Blank)
	for _, tag := range sortedTags(r.Lines.Code) {
		row(tag, r.Lines.Code[tag])
	}
	if r.Lines.Unparseable > 0 {
		row("other", r.Lines.Unparseable)
	}

	head.Fprintln(w, "fragments")
	row("total", r.Fragments)
	for _, tag := range sortedTags(r.ByLanguage) {
		row(tag, r.ByLanguage[tag])
	}

	head.Fprintln(w, "screening")
	findings := fmt.Sprintf("%d finding(s)", r.Findings)
	if r.Findings > 0 {
		findings = color.YellowString(findings)
	}
	fmt.Fprintf(w, "  %s\n", findings)
}

// sortedTags orders language tags the way the registry lists them; unknown
// tags go last, alphabetically.
func sortedTags(m map[string]int) []string {
	order := make(map[string]int)
	for i, tag := range lang.Default().Tags() {
		order[tag] = i
	}
	tags := make([]string, 0, len(m))
	for tag := range m {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		oi, iok := order[tags[i]]
		oj, jok := order[tags[j]]
		if iok != jok {
			return iok
		}
		if iok && oi != oj {
			return oi < oj
		}
		return tags[i] < tags[j]
	})
	return tags
}
