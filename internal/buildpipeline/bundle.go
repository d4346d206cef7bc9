package buildpipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lf/internal/program"
)

// BundleMarker separates the launcher script from its base64 payload.
const BundleMarker = "__LF_PACKAGE__"

const bundleLineWidth = 76

// BundleRequest configures a self-contained launcher for a package.
type BundleRequest struct {
	Package  string
	Output   string // "" - имя пакета без расширения
	Runtime  string // "" - lf из PATH
	Progress ProgressSink
}

// BundleResult describes the written launcher.
type BundleResult struct {
	OutputPath string
	Name       string
	Size       int64
	Timings    Timings
}

// Bundle writes an executable shell script that carries the package and hands
// it to the lf runtime. The package is validated before anything is written.
func Bundle(ctx context.Context, req *BundleRequest) (BundleResult, error) {
	var result BundleResult
	if req == nil || req.Package == "" {
		return result, fmt.Errorf("missing package path")
	}
	if kind, ok := program.KindOf(req.Package); !ok || kind != program.ArtifactPackage {
		return result, fmt.Errorf("%s: expected a %s package", req.Package, program.PackageExt)
	}
	name := DisplayNames([]string{req.Package}, "")[0]
	emitFile(req.Progress, name, StageBundle, StatusWorking, nil, 0)
	start := time.Now()
	fail := func(err error) (BundleResult, error) {
		emitFile(req.Progress, name, StageBundle, StatusError, err, 0)
		return result, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	// #nosec G304 -- path comes from the command line
	data, err := os.ReadFile(req.Package)
	if err != nil {
		return fail(fmt.Errorf("failed to read package: %w", err))
	}
	pkg, err := program.ReadPackage(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fail(err)
	}
	result.Name = pkg.Model().Name()

	out := req.Output
	if out == "" {
		out = strings.TrimSuffix(req.Package, filepath.Ext(req.Package))
	}
	script := bundleScript(result.Name, req.Runtime, data)
	if err := os.WriteFile(out, []byte(script), 0o600); err != nil {
		return fail(fmt.Errorf("failed to write bundle: %w", err))
	}
	// #nosec G302 -- launcher must be executable
	if err := os.Chmod(out, 0o700); err != nil {
		return fail(fmt.Errorf("failed to chmod bundle: %w", err))
	}

	result.OutputPath = out
	result.Size = int64(len(script))
	result.Timings.Set(StageBundle, time.Since(start))
	emitFile(req.Progress, name, StageBundle, StatusDone, nil, result.Timings.Duration(StageBundle))
	return result, nil
}

func bundleScript(name, runtime string, payload []byte) string {
	if runtime == "" {
		runtime = "lf"
	}
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "# lf bundle: %s\n", strings.ReplaceAll(name, "\n", " "))
	fmt.Fprintf(&b, "LF_BIN=\"${LF_BIN:-%s}\"\n", shellEscape(runtime))
	b.WriteString("tmp=$(mktemp -d \"${TMPDIR:-/tmp}/lf-bundle.XXXXXX\") || exit 1\n")
	b.WriteString("trap 'rm -rf \"$tmp\"' EXIT\n")
	b.WriteString("trap 'exit 130' INT TERM\n")
	fmt.Fprintf(&b, "sed '1,/^%s$/d' \"$0\" | base64 -d > \"$tmp/program.lfp\" || exit 1\n", BundleMarker)
	b.WriteString("status=0\n")
	b.WriteString("\"$LF_BIN\" run \"$tmp/program.lfp\" \"$@\" || status=$?\n")
	b.WriteString("exit $status\n")
	b.WriteString(BundleMarker)
	b.WriteByte('\n')

	enc := base64.StdEncoding.EncodeToString(payload)
	for len(enc) > bundleLineWidth {
		b.WriteString(enc[:bundleLineWidth])
		b.WriteByte('\n')
		enc = enc[bundleLineWidth:]
	}
	if enc != "" {
		b.WriteString(enc)
		b.WriteByte('\n')
	}
	return b.String()
}

// shellEscape quotes s for use inside a double-quoted sh word.
func shellEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return r.Replace(s)
}
