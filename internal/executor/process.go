package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"lf/internal/trace"
)

// waitDelay bounds how long Wait blocks after the context fires.
const waitDelay = 2 * time.Second

// maxCaptured caps captured stderr/compiler output.
const maxCaptured = 64 << 10

// command is one external invocation.
type command struct {
	path    string
	args    []string
	dir     string
	timeout time.Duration
	stdout  io.Writer // nil - захватить
}

// outcome of a finished command.
type outcome struct {
	stdout   string // только если stdout не был задан
	stderr   string
	exitCode int
	elapsed  time.Duration
}

// errTimedOut and errInterrupted classify context failures.
var (
	errTimedOut    = errors.New("timed out")
	errInterrupted = errors.New("interrupted")
)

// run executes c and never blocks past timeout+waitDelay.
func run(ctx context.Context, c command) (outcome, error) {
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	span := trace.StartProcess(ctx, c.path)

	// #nosec G204 -- path comes from the toolchain locator
	cmd := exec.CommandContext(runCtx, c.path, c.args...)
	cmd.Dir = c.dir
	cmd.WaitDelay = waitDelay
	var stdout bytes.Buffer
	if c.stdout != nil {
		cmd.Stdout = c.stdout
	} else {
		cmd.Stdout = &limitedBuffer{buf: &stdout, max: maxCaptured}
	}
	var stderr bytes.Buffer
	cmd.Stderr = &limitedBuffer{buf: &stderr, max: maxCaptured}

	start := time.Now()
	err := cmd.Run()
	out := outcome{
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		exitCode: -1,
		elapsed:  time.Since(start),
	}
	if cmd.ProcessState != nil {
		out.exitCode = cmd.ProcessState.ExitCode()
	}
	err = runError(ctx, runCtx, c.timeout, err)
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	span.Exited(out.exitCode).End(detail)
	return out, err
}

// runError turns an exec error into errInterrupted, errTimedOut or an
// "exit status N" error.
func runError(ctx, runCtx context.Context, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case ctx.Err() != nil:
		return errInterrupted
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", errTimedOut, timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("exit status %d", exitErr.ExitCode())
	}
	return err
}

// classify maps a run error onto an ExecutionError kind.
func classify(err error, fallback ErrorKind) ErrorKind {
	switch {
	case errors.Is(err, errInterrupted):
		return ErrInterrupted
	case errors.Is(err, errTimedOut):
		return ErrTimeout
	}
	return fallback
}

// limitedBuffer drops output past max but reports full writes so the child never blocks.
type limitedBuffer struct {
	buf *bytes.Buffer
	max int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.max - l.buf.Len(); room > 0 {
		if len(p) > room {
			l.buf.Write(p[:room])
		} else {
			l.buf.Write(p)
		}
	}
	return len(p), nil
}

// maxCompileErrors is how many error lines survive trimming.
const maxCompileErrors = 5

var errorLineRE = regexp.MustCompile(`(?i)\berror\b[:\[]?`)

// trimCompileErrors keeps the first error lines of compiler output and
// replaces temp source locations with "line N".
func trimCompileErrors(output string, line uint32, paths ...string) string {
	var kept []string
	for _, l := range strings.Split(output, "\n") {
		if !errorLineRE.MatchString(l) {
			continue
		}
		kept = append(kept, strings.TrimRight(replaceLocations(l, line, paths...), " \r"))
		if len(kept) == maxCompileErrors {
			break
		}
	}
	if len(kept) == 0 {
		return strings.TrimSpace(output)
	}
	return strings.Join(kept, "\n")
}

// replaceLocations rewrites `path[:row[:col]]` into "line N". Rows and
// columns point into the generated program, not the lf source.
func replaceLocations(s string, line uint32, paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		re := regexp.MustCompile(regexp.QuoteMeta(p) + `(?::\d+){0,2}`)
		s = re.ReplaceAllLiteralString(s, "line "+itoa(line))
	}
	return s
}

func itoa(n uint32) string { return strconv.FormatUint(uint64(n), 10) }
