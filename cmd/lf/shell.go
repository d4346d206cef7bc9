package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"lf/internal/dispatch"
	"lf/internal/lang"
	"lf/internal/lexer"
	"lf/internal/program"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive fragment shell",
	Long: `Read prefixed single-line fragments (py.x = 1, cpp.printf("%d", x);) and execute
them against one shared state. Commands: stats, vars, funcs, help, exit, quit.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

const historyFile = ".lf_history"

func init() {
	shellCmd.Flags().String("policy", "", "security policy (advisory|strict|off)")
	shellCmd.Flags().Bool("no-screen", false, "skip per-fragment screening")
}

func runShell(cmd *cobra.Command, args []string) error {
	g, err := readGlobals(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(g, "")
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

	d := newDispatcher(cfg, dispatch.Options{
		Stdout:   os.Stdout,
		Policy:   policy,
		NoScreen: noScreen || !cfg.Screen(),
		Reporter: printReporter(os.Stderr, g, nil),
	})
	defer d.Close()
	sess := newShellSession(d, os.Stdout, g.useColor)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(sess.complete)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	if !g.quiet {
		fmt.Fprintln(os.Stdout, "lf shell. Type help for commands, exit to leave.")
	}
	for {
		line, err := ln.Prompt("lf> ")
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(os.Stdout)
			return nil
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return fmt.Errorf("shell: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)

		// Ctrl+C во время выполнения прерывает только текущий фрагмент
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		quit := sess.handle(ctx, line)
		stop()
		if quit {
			return nil
		}
	}
}

// shellSession executes shell input against one dispatcher.
type shellSession struct {
	d        *dispatch.Dispatcher
	out      io.Writer
	useColor bool
	reg      *lang.Registry
	line     uint32
}

func newShellSession(d *dispatch.Dispatcher, out io.Writer, useColor bool) *shellSession {
	return &shellSession{d: d, out: out, useColor: useColor, reg: lang.Default()}
}

var shellCommands = []string{"stats", "vars", "funcs", "help", "exit", "quit"}

// handle runs one input line and reports whether the shell should exit.
func (s *shellSession) handle(ctx context.Context, input string) bool {
	s.line++
	text := strings.TrimSpace(input)
	switch strings.ToLower(text) {
	case "exit", "quit":
		return true
	case "help":
		s.help()
		return false
	case "stats":
		s.d.Summary().Print(s.out, s.useColor)
		return false
	case "vars":
		s.vars()
		return false
	case "funcs":
		s.funcs()
		return false
	}

	lines := lexer.SegmentString(text, s.reg)
	if len(lines) != 1 || lines[0].Kind != lexer.KindCode {
		fmt.Fprintf(s.out, "expected <lang>.<code> with one of %s, or a command (help)\n",
			strings.Join(s.reg.Tags(), ", "))
		return false
	}
	l := lines[0]
	// ошибка уже выведена репортером диспетчера
	_ = s.d.Execute(ctx, program.Fragment{Line: s.line, Lang: l.Lang, Content: l.Content})
	return false
}

func (s *shellSession) help() {
	fmt.Fprintln(s.out, "Enter one fragment per line, prefixed with its language:")
	for _, tag := range s.reg.Tags() {
		fmt.Fprintf(s.out, "  %s.<code>\n", tag)
	}
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  stats   fragment counters")
	fmt.Fprintln(s.out, "  vars    shared variables")
	fmt.Fprintln(s.out, "  funcs   shared functions")
	fmt.Fprintln(s.out, "  exit    leave the shell (also quit, Ctrl+D)")
}

func (s *shellSession) vars() {
	snap := s.d.State().Snapshot()
	bindings := snap.Vars()
	if len(bindings) == 0 {
		fmt.Fprintln(s.out, "no variables")
		return
	}
	name := color.New(color.FgCyan)
	if !s.useColor {
		name.DisableColor()
	}
	for _, b := range bindings {
		fmt.Fprintf(s.out, "%s = %s\n", name.Sprint(b.Name), b.Value.Repr())
	}
}

func (s *shellSession) funcs() {
	fns := s.d.State().Snapshot().Funcs()
	if len(fns) == 0 {
		fmt.Fprintln(s.out, "no functions")
		return
	}
	names := make([]string, len(fns))
	for i, f := range fns {
		names[i] = f.Name
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(s.out, "%s()\n", n)
	}
}

// complete offers commands and language prefixes.
func (s *shellSession) complete(line string) []string {
	var out []string
	for _, c := range shellCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	for _, tag := range s.reg.Tags() {
		if p := tag + "."; strings.HasPrefix(p, line) {
			out = append(out, p)
		}
	}
	return out
}
