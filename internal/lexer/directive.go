package lexer

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"lf/internal/diag"
	"lf/internal/lang"
	"lf/internal/source"
)

// Directive is a parsed `#key value` line.
type Directive struct {
	Line  uint32
	Key   string
	Value string
	Span  source.Span
}

// ParseError is a fatal error in the source text.
type ParseError struct {
	Line uint32
	Code diag.Code
	Msg  string
	Span source.Span
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Diagnostic converts the error into an error diagnostic.
func (e *ParseError) Diagnostic() diag.Diagnostic {
	d := diag.New(diag.SevError, e.Code, e.Span, e.Msg)
	d.Line = e.Line
	return d
}

// Well-known directive keys.
const (
	KeyName         = "name"
	KeyVersion      = "version"
	KeyAuthor       = "author"
	KeyDescription  = "description"
	KeySecurity     = "security"
	KeyPackage      = "package"
	KeyPythonImport = "python_import"
	KeyImport       = "import"
	KeyModule       = "module"
)

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// identifierKeys hold module names and must be identifiers.
var identifierKeys = map[string]bool{
	KeyPythonImport: true,
	KeyImport:       true,
	KeyModule:       true,
}

// enumKeys restrict the value to a fixed set; a violation is a warning.
var enumKeys = map[string][]string{
	KeySecurity: {"advisory", "strict", "off"},
	KeyPackage:  {"full", "minimal"},
}

// RepeatableKey reports whether key may legitimately appear several times.
func RepeatableKey(key string) bool {
	return identifierKeys[strings.ToLower(key)]
}

// ParseDirective parses a KindDirective line. Malformed keys and unexpected enum
// values are reported as warnings through r; the returned bool is false when the
// line was skipped. Unterminated quotes and invalid identifiers are fatal.
func ParseDirective(l Line, r diag.Reporter) (Directive, bool, error) {
	if r == nil {
		r = diag.NopReporter{}
	}
	body := l.Content
	keyEnd := 0
	for keyEnd < len(body) && isKeyByte(body[keyEnd], keyEnd == 0) {
		keyEnd++
	}
	if keyEnd == 0 {
		diag.ReportWarning(r, diag.LexEmptyDirective, l.Span, fmt.Sprintf("directive without a key: %q", "#"+body)).
			AtLine(l.Num).
			Emit()
		return Directive{}, false, nil
	}
	key := body[:keyEnd]
	rest := body[keyEnd:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		diag.ReportWarning(r, diag.LexInvalidDirectiveValue, l.Span,
			fmt.Sprintf("malformed directive %q: expected whitespace after the key", "#"+body)).
			AtLine(l.Num).
			Emit()
		return Directive{}, false, nil
	}

	value, err := parseValue(strings.TrimLeft(rest, " \t"))
	if err != nil {
		return Directive{}, false, &ParseError{
			Line: l.Num,
			Code: diag.LexUnterminatedQuote,
			Msg:  fmt.Sprintf("unmatched quote in directive #%s", key),
			Span: l.Span,
		}
	}

	lower := strings.ToLower(key)
	if identifierKeys[lower] && !identifierRE.MatchString(value) {
		return Directive{}, false, &ParseError{
			Line: l.Num,
			Code: diag.LexInvalidIdentifier,
			Msg:  fmt.Sprintf("invalid module name %q in directive #%s", value, key),
			Span: l.Span,
		}
	}
	if allowed, ok := enumKeys[lower]; ok && !slices.Contains(allowed, strings.ToLower(value)) {
		diag.ReportWarning(r, diag.LexInvalidDirectiveValue, l.Span,
			fmt.Sprintf("#%s %q is not one of %s", key, value, strings.Join(allowed, ", "))).
			AtLine(l.Num).
			Emit()
	}

	return Directive{Line: l.Num, Key: key, Value: value, Span: l.Span}, true, nil
}

var errUnterminated = errors.New("unterminated quote")

// parseValue: значение в кавычках идёт до следующей неэкранированной такой же кавычки,
// без кавычек - до неэкранированного `//`, с обрезкой пробелов.
func parseValue(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if q := s[0]; q == '"' || q == '\'' {
		var b strings.Builder
		for i := 1; i < len(s); i++ {
			c := s[i]
			switch {
			case c == '\\' && i+1 < len(s) && (s[i+1] == q || s[i+1] == '\\'):
				b.WriteByte(s[i+1])
				i++
			case c == q:
				return b.String(), nil
			default:
				b.WriteByte(c)
			}
		}
		return "", errUnterminated
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && s[i+1] == '/' {
			b.WriteByte('/')
			i++
			continue
		}
		if c == '/' && i+1 < len(s) && s[i+1] == '/' {
			break
		}
		b.WriteByte(c)
	}
	return strings.TrimSpace(b.String()), nil
}

// ReportUnparseable emits the warning for a line that is neither a directive nor a
// code line. A mistyped language prefix gets its own code and a fix suggestion.
func ReportUnparseable(r diag.Reporter, reg *lang.Registry, l Line) {
	if r == nil {
		return
	}
	if reg == nil {
		reg = lang.Default()
	}
	if cand, ok := lang.CandidatePrefix(l.Content); ok {
		if tag, ok := reg.Closest(cand); ok {
			start := l.Span.Start + toU32(l.Indent)
			prefixSpan := source.Span{File: l.Span.File, Start: start, End: start + toU32(len(cand))}
			diag.ReportWarning(r, diag.LexUnknownLanguagePrefix, prefixSpan,
				fmt.Sprintf("unknown language prefix %q", cand)).
				AtLine(l.Num).
				WithFix("use "+tag, diag.FixEdit{Span: prefixSpan, NewText: tag}).
				Emit()
			return
		}
	}
	diag.ReportWarning(r, diag.LexUnparseableLine, l.Span, fmt.Sprintf("unparseable line: %s", l.Content)).
		AtLine(l.Num).
		Emit()
}

func isKeyByte(c byte, first bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		return true
	case !first && (c >= '0' && c <= '9' || c == '-'):
		return true
	}
	return false
}
