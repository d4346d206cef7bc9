package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"lf/internal/diag"
	"lf/internal/source"
)

type palette struct {
	err, warn, info, note, gutter, caret, code *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgCyan, color.Bold),
		note:   color.New(color.FgBlue),
		gutter: color.New(color.FgHiBlack),
		caret:  color.New(color.FgGreen, color.Bold),
		code:   color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.note, p.gutter, p.caret, p.code} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes с аналогичным форматом.
// Диагностики без Span печатаются как <lang>:<line>.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	if bag == nil {
		return
	}
	p := newPalette(opts.Color)
	for _, d := range bag.Items() {
		writeDiagnostic(w, &d, fs, opts, p)
	}
	if dropped := bag.Dropped(); dropped > 0 {
		fmt.Fprintf(w, "... %d more diagnostic(s) suppressed\n", dropped)
	}
}

// PrettyOne renders a single diagnostic; used by streaming reporters.
func PrettyOne(w io.Writer, d *diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	writeDiagnostic(w, d, fs, opts, newPalette(opts.Color))
}

func writeDiagnostic(w io.Writer, d *diag.Diagnostic, fs *source.FileSet, opts PrettyOpts, p palette) {
	loc := locationLabel(fs, d.Primary, d.Line, d.Lang, opts.PathMode)
	sevColor := p.severity(d.Severity)
	fmt.Fprintf(w, "%s: %s %s: %s\n",
		loc,
		sevColor.Sprint(d.Severity.String()),
		p.code.Sprint(d.Code.ID()),
		truncate(d.Message, opts.Width),
	)

	if d.HasSpan() && fs != nil {
		writeContext(w, fs, d.Primary, opts, p)
	}

	if opts.ShowNotes {
		for _, n := range d.Notes {
			nloc := locationLabel(fs, n.Span, n.Line, d.Lang, opts.PathMode)
			fmt.Fprintf(w, "  %s %s: %s\n", p.note.Sprint("note:"), nloc, n.Msg)
		}
	}

	if opts.ShowFixes {
		for i, fix := range d.Fixes {
			fmt.Fprintf(w, "  fix #%d: %s\n", i+1, fix.Title)
			for _, edit := range fix.Edits {
				eloc := locationLabel(fs, edit.Span, 0, d.Lang, opts.PathMode)
				fmt.Fprintf(w, "    %s apply=%q\n", eloc, edit.NewText)
			}
		}
	}
}

func locationLabel(fs *source.FileSet, span source.Span, line uint32, lang string, mode PathMode) string {
	if fs != nil && span != (source.Span{}) {
		if f := fs.Get(span.File); f != nil {
			start, _ := fs.Resolve(span)
			return fmt.Sprintf("%s:%d:%d", f.FormatPath(mode.formatMode(), fs.BaseDir()), start.Line, start.Col)
		}
	}
	if lang == "" {
		lang = "line"
	}
	return fmt.Sprintf("%s:%d", lang, line)
}

func writeContext(w io.Writer, fs *source.FileSet, span source.Span, opts PrettyOpts, p palette) {
	f := fs.Get(span.File)
	if f == nil {
		return
	}
	start, end := fs.Resolve(span)
	ctx := uint32(max(opts.Context, 0))
	lines := f.Lines()

	first := uint32(1)
	if start.Line > ctx+1 {
		first = start.Line - ctx
	}
	last := min(start.Line+ctx, uint32(len(lines)))
	width := len(fmt.Sprint(last))

	for ln := first; ln <= last; ln++ {
		text := strings.ReplaceAll(f.GetLine(ln), "\t", " ")
		fmt.Fprintf(w, " %s %s\n", p.gutter.Sprintf("%*d |", width, ln), truncate(text, opts.Width))
		if ln != start.Line {
			continue
		}
		startIdx := min(int(start.Col)-1, len(text))
		prefix := text[:startIdx]
		underline := 1
		if end.Line == start.Line && end.Col > start.Col {
			segEnd := min(int(end.Col)-1, len(text))
			if segEnd > startIdx {
				underline = max(runewidth.StringWidth(text[startIdx:segEnd]), 1)
			}
		}
		pad := strings.Repeat(" ", runewidth.StringWidth(prefix))
		marks := "^" + strings.Repeat("~", underline-1)
		fmt.Fprintf(w, " %s %s%s\n", p.gutter.Sprintf("%*s |", width, ""), pad, p.caret.Sprint(marks))
	}
}

func truncate(s string, width uint8) string {
	if width == 0 {
		return s
	}
	return runewidth.Truncate(s, int(width), "…")
}
