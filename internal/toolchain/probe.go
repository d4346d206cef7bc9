package toolchain

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// probeTimeout bounds one `--version` call.
const probeTimeout = 5 * time.Second

// Status is the doctor report for one tool.
type Status struct {
	Tool     string `json:"tool"`
	Lang     string `json:"lang"`
	Role     Role   `json:"role"`
	Found    bool   `json:"found"`
	Path     string `json:"path,omitempty"`
	Version  string `json:"version,omitempty"`
	Guidance string `json:"guidance,omitempty"`
}

// Probe locates every tool concurrently and asks each found one for its version.
// Results keep the order of tools.
func (l *Locator) Probe(ctx context.Context, tools []Tool) []Status {
	out := make([]Status, len(tools))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, t := range tools {
		g.Go(func() error {
			st := Status{Tool: t.Name, Lang: t.Lang, Role: t.Role}
			path, err := l.Find(t)
			if err != nil {
				var me *MissingError
				if errors.As(err, &me) {
					st.Guidance = me.Guidance
				}
				out[i] = st
				return nil
			}
			st.Found, st.Path = true, path
			st.Version = versionOf(gctx, path, t.VersionArgs)
			out[i] = st
			return nil
		})
	}
	_ = g.Wait() // воркеры ошибок не возвращают
	return out
}

func versionOf(ctx context.Context, path string, args []string) string {
	if len(args) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	// #nosec G204 -- path comes from the locator
	cmd := exec.CommandContext(ctx, path, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf // java -version пишет в stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil && buf.Len() == 0 {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(buf.String()), "\n")
	return strings.TrimSpace(line)
}
