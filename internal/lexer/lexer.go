// Package lexer splits lf source into classified lines and parses directives.
package lexer

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"lf/internal/lang"
	"lf/internal/source"
)

// Segment classifies every physical line of file. It never fails: directive
// values are validated later by ParseDirective, once the merger has decided which
// lines belong to a block.
func Segment(file *source.File, reg *lang.Registry) []Line {
	if reg == nil {
		reg = lang.Default()
	}
	raw := file.Lines()
	lines := make([]Line, 0, len(raw))
	for i, text := range raw {
		num := toU32(i + 1)
		span, _ := file.LineSpan(num)
		lines = append(lines, classify(num, text, span, reg))
	}
	return lines
}

// SegmentString is Segment over an in-memory string.
func SegmentString(text string, reg *lang.Registry) []Line {
	fs := source.NewFileSet()
	id := fs.AddVirtual("<input>", []byte(text))
	return Segment(fs.Get(id), reg)
}

func classify(num uint32, text string, span source.Span, reg *lang.Registry) Line {
	indent := leadingSpace(text)
	body := strings.TrimRight(text[indent:], " \t\r")
	l := Line{Num: num, Raw: text, Indent: indent, Span: span}

	switch {
	case body == "":
		l.Kind = KindBlank
	case strings.HasPrefix(body, "//"):
		l.Kind = KindComment
		l.Content = body
	case body[0] == '#':
		l.Content = body[1:]
		if isDirectiveStart(body) {
			l.Kind = KindDirective
		} else {
			l.Kind = KindComment
		}
	default:
		if language, rest, ok := reg.MatchPrefix(body); ok {
			l.Kind = KindCode
			l.Lang = language.Tag
			// Content сохраняет собственный отступ кода после префикса
			l.Content = rest
		} else {
			l.Kind = KindUnparseable
			l.Content = body
		}
	}
	return l
}

// isDirectiveStart: "#key", но не "#", "# text", "#!shebang".
func isDirectiveStart(body string) bool {
	if len(body) < 2 {
		return false
	}
	switch body[1] {
	case ' ', '\t', '!', '#':
		return false
	}
	return true
}

func toU32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("lexer: offset overflow: %w", err))
	}
	return v
}
