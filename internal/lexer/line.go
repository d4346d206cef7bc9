package lexer

import (
	"strings"

	"lf/internal/source"
)

// Kind classifies one physical source line.
type Kind uint8

const (
	// KindBlank is an empty or whitespace-only line.
	KindBlank Kind = iota
	// KindComment is a `//` line, or a `#` line that is not a directive (`# text`, `#`, `#!`).
	KindComment
	// KindDirective is `#key value`.
	KindDirective
	// KindCode is `<tag>.<code>` with a registered tag.
	KindCode
	// KindUnparseable is anything else. The merger may still absorb it as an
	// unprefixed body line of a primary-language block.
	KindUnparseable
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindComment:
		return "comment"
	case KindDirective:
		return "directive"
	case KindCode:
		return "code"
	case KindUnparseable:
		return "unparseable"
	}
	return "unknown"
}

// Line is a classified physical line.
type Line struct {
	Num    uint32 // 1-based
	Kind   Kind
	Raw    string
	Indent int // ширина ведущих пробелов Raw, таб = 1
	// Lang is the language tag of a code line.
	Lang string
	// Content is the text after the prefix for code lines, after '#' for
	// directives, and the trimmed line otherwise.
	Content string
	Span    source.Span
}

// EffectiveIndent is the indentation before the prefix plus the indentation of
// the code after it. For non-code lines it is Indent.
func (l Line) EffectiveIndent() int {
	if l.Kind != KindCode {
		return l.Indent
	}
	return l.Indent + leadingSpace(l.Content)
}

// Normalized returns the line with the language prefix removed and the original
// indentation kept.
func (l Line) Normalized() string {
	if l.Kind != KindCode {
		return l.Raw
	}
	return l.Raw[:l.Indent] + l.Content
}

// Trimmed returns the code or text of the line without surrounding whitespace.
func (l Line) Trimmed() string {
	return strings.TrimSpace(l.Content)
}

func leadingSpace(s string) int {
	n := 0
	for n < len(s) && (s[n] == ' ' || s[n] == '\t') {
		n++
	}
	return n
}
