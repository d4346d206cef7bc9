package program

import (
	"context"
	"fmt"
	"strings"

	"lf/internal/diag"
	"lf/internal/lang"
	"lf/internal/lexer"
	"lf/internal/merge"
	"lf/internal/source"
	"lf/internal/trace"
)

// ParseOptions configures Parse.
type ParseOptions struct {
	Reporter diag.Reporter  // предупреждения; nil - игнорировать
	Registry *lang.Registry // nil - lang.Default()
}

// Parse segments, merges and validates the file. The returned error is a
// *lexer.ParseError for fatal source problems.
func Parse(ctx context.Context, fs *source.FileSet, id source.FileID, opts ParseOptions) (*Model, error) {
	_, span := trace.StartSpan(ctx, trace.ScopePass, "parse")
	detail := "error"
	defer func() { span.End(detail) }()

	file := fs.Get(id)
	if file == nil {
		return nil, fmt.Errorf("parse: unknown file id %d", id)
	}
	reg := opts.Registry
	if reg == nil {
		reg = lang.Default()
	}
	r := opts.Reporter
	if r == nil {
		r = diag.NopReporter{}
	}

	lines := lexer.Segment(file, reg)
	items := merge.Merge(lines, reg, r)

	m := &Model{
		Directives: make([]Directive, 0),
		Fragments:  make([]Fragment, 0, len(items)),
		SourceHash: file.Digest(),
	}
	seen := make(map[string]lexer.Directive)
	for _, it := range items {
		switch it.Kind {
		case merge.ItemDirective:
			d, ok, err := lexer.ParseDirective(it.Line, r)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			key := strings.ToLower(d.Key)
			if prev, dup := seen[key]; dup && !lexer.RepeatableKey(key) && prev.Value != d.Value {
				diag.ReportWarning(r, diag.LexDuplicateDirective, d.Span,
					fmt.Sprintf("#%s redefined (was %q on line %d); the last value wins", d.Key, prev.Value, prev.Line)).
					AtLine(d.Line).
					WithNote(prev.Span, "previous definition").
					Emit()
			}
			seen[key] = d
			m.Directives = append(m.Directives, Directive{Line: d.Line, Key: d.Key, Value: d.Value})
		case merge.ItemUnparseable:
			lexer.ReportUnparseable(r, reg, it.Line)
		case merge.ItemFragment:
			f := it.Fragment
			m.Fragments = append(m.Fragments, Fragment{Line: f.Line, Lang: f.Lang, Content: f.Content})
		}
	}
	m.Stats = computeStats(len(file.Lines()), m.Directives, m.Fragments)
	detail = fmt.Sprintf("%d fragments", len(m.Fragments))
	return m, nil
}

// ParseString parses in-memory text, e.g. a shell line or a test fixture.
func ParseString(ctx context.Context, name, text string, opts ParseOptions) (*Model, error) {
	fs := source.NewFileSet()
	id := fs.AddVirtual(name, []byte(text))
	return Parse(ctx, fs, id, opts)
}
