// Package version carries build metadata for the lf CLI.
package version

import (
	"fmt"
	"io"
	"runtime"

	"github.com/fatih/color"

	"lf/internal/program"
)

// These variables can be overridden at build time via -ldflags.
var (
	// Version is the semantic version of the CLI.
	Version = "0.3.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Info is the machine-readable build description.
type Info struct {
	Version        string `json:"version"`
	GitCommit      string `json:"git_commit,omitempty"`
	BuildDate      string `json:"build_date,omitempty"`
	GoVersion      string `json:"go_version"`
	Platform       string `json:"platform"`
	DocumentFormat string `json:"document_format"`
	PackageFormat  string `json:"package_format"`
}

// Current collects the build metadata.
func Current() Info {
	return Info{
		Version:        Version,
		GitCommit:      GitCommit,
		BuildDate:      BuildDate,
		GoVersion:      runtime.Version(),
		Platform:       runtime.GOOS + "/" + runtime.GOARCH,
		DocumentFormat: program.DocumentFormat,
		PackageFormat:  program.PackageFormat,
	}
}

// Compiler is the string recorded in document metadata.
func Compiler() string {
	return "lf " + Version
}

var (
	nameColor    = color.New(color.FgCyan, color.Bold)
	versionColor = color.New(color.FgYellow, color.Bold)
	labelColor   = color.New(color.Faint)
)

// Print writes the pretty form of info.
func Print(w io.Writer, info Info) {
	fmt.Fprintf(w, "%s %s\n", nameColor.Sprint("lf"), versionColor.Sprint(info.Version))
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %s %s\n", labelColor.Sprintf("%-10s", label), value)
		}
	}
	row("commit", info.GitCommit)
	row("built", info.BuildDate)
	row("go", info.GoVersion)
	row("platform", info.Platform)
	row("formats", info.DocumentFormat+", "+info.PackageFormat)
}
