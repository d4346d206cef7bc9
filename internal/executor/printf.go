package executor

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"lf/internal/state"
	"lf/internal/trace"
	"lf/internal/value"
)

// CPP runs C++ fragments. A lone printf with a literal format string and flat
// arguments is formatted in-process; everything else is compiled.
type CPP struct {
	guest *guest
}

func (c *CPP) Execute(ctx context.Context, req *Request) (*Result, error) {
	out, err := inlinePrintf(req.Content, req.State)
	if err == nil {
		trace.Point(ctx, trace.ScopeFragment, "inline", "printf")
		if _, werr := io.WriteString(req.Stdout, out); werr != nil {
			return nil, execErr(ErrRuntime, req, "", werr)
		}
		return &Result{Inline: true}, nil
	}
	trace.Point(ctx, trace.ScopeFragment, "compiled", err.Error())
	return c.guest.Execute(ctx, req)
}

// Render exposes the compiled form of the fragment.
func (c *CPP) Render(req *Request) string { return c.guest.Render(req) }

var printfCallRE = regexp.MustCompile(`^printf\s*\((.*)\)\s*;?$`)

// inlinePrintf formats a printf call without a compiler, or returns errDeclined.
func inlinePrintf(content string, snap *state.Snapshot) (string, error) {
	code := strings.TrimSpace(content)
	if strings.Contains(code, "\n") || strings.Contains(code, "<<") || strings.Contains(code, "cout") {
		return "", fmt.Errorf("%w: not a single printf", errDeclined)
	}
	m := printfCallRE.FindStringSubmatch(code)
	if m == nil || countUnquoted(code, ';') > 1 {
		return "", fmt.Errorf("%w: not a single printf", errDeclined)
	}
	parts, err := splitTopLevel(m[1])
	if err != nil || len(parts) == 0 {
		return "", fmt.Errorf("%w: unbalanced arguments", errDeclined)
	}
	format, ok := cStringLiteral(parts[0])
	if !ok {
		return "", fmt.Errorf("%w: format is not a string literal", errDeclined)
	}
	return formatPrintf(format, parts[1:], newArgEvaluator(snap))
}

// splitTopLevel splits s on commas outside brackets and quotes.
func splitTopLevel(s string) ([]string, error) {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'':
			end := closingQuote(s, i)
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote at %d", i)
			}
			i = end
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q at %d", c, i)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unclosed bracket")
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" || len(parts) > 0 {
		parts = append(parts, rest)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty argument")
		}
	}
	return parts, nil
}

func countUnquoted(s string, c byte) int {
	n := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			if end := closingQuote(s, i); end > 0 {
				i = end
			}
		case c:
			n++
		}
	}
	return n
}

// cStringLiteral decodes a double-quoted C string literal.
func cStringLiteral(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' || closingQuote(s, 0) != len(s)-1 {
		return "", false
	}
	out, err := strconv.Unquote(strings.ReplaceAll(s, `\'`, `'`))
	if err != nil {
		return "", false
	}
	return out, true
}

var verbRE = regexp.MustCompile(`%([-+ #0]*)(\d+|\*)?(?:\.(\d*|\*))?(hh|h|ll|l|L|z|j|t|q)?([a-zA-Z%])`)

// formatPrintf substitutes args into format with C conversion rules.
func formatPrintf(format string, args []string, ev *argEvaluator) (string, error) {
	var (
		b    strings.Builder
		next int
		last int
	)
	for _, loc := range verbRE.FindAllStringSubmatchIndex(format, -1) {
		b.WriteString(format[last:loc[0]])
		last = loc[1]
		spec := func(g int) string {
			if loc[2*g] < 0 {
				return ""
			}
			return format[loc[2*g]:loc[2*g+1]]
		}
		flags, width, prec, verb := spec(1), spec(2), spec(3), spec(5)
		if verb == "%" {
			b.WriteByte('%')
			continue
		}
		if width == "*" || prec == "*" {
			return "", fmt.Errorf("%w: dynamic width", errDeclined)
		}
		if next >= len(args) {
			return "", fmt.Errorf("%w: missing argument for %%%s", errDeclined, verb)
		}
		v, err := ev.arg(args[next])
		if err != nil {
			return "", err
		}
		next++
		head := "%" + flags + width
		if loc[6] >= 0 {
			head += "." + prec
		}
		s, err := convert(head, verb, v)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteString(format[last:])
	return b.String(), nil
}

// convert renders one argument for one C conversion.
func convert(head, verb string, v value.Value) (string, error) {
	decline := func() (string, error) {
		return "", fmt.Errorf("%w: %%%s with %s argument", errDeclined, verb, v.Kind())
	}
	switch verb {
	case "d", "i", "u", "o", "x", "X":
		n, ok := integerArg(v)
		if !ok || (n < 0 && verb != "d" && verb != "i") {
			return decline()
		}
		gv := map[string]string{"d": "d", "i": "d", "u": "d", "o": "o", "x": "x", "X": "X"}[verb]
		return fmt.Sprintf(head+gv, n), nil
	case "f", "F", "e", "E", "g", "G":
		f, ok := v.Number()
		if !ok {
			return decline()
		}
		if (verb == "g" || verb == "G") && !strings.Contains(head, ".") {
			head += ".6"
		}
		return fmt.Sprintf(head+verb, f), nil
	case "c":
		switch v.Kind() {
		case value.KindInt:
			return fmt.Sprintf(head+"c", rune(v.AsInt())), nil
		case value.KindString:
			if utf8.RuneCountInString(v.AsString()) == 1 {
				return fmt.Sprintf(head+"s", v.AsString()), nil
			}
		}
		return decline()
	case "s":
		if v.Kind() == value.KindString {
			return fmt.Sprintf(head+"s", v.AsString()), nil
		}
		return fmt.Sprintf(head+"s", v.Str()), nil
	}
	return decline()
}

// integerArg accepts ints, bools and single characters.
func integerArg(v value.Value) (int64, bool) {
	switch v.Kind() {
	case value.KindInt:
		return v.AsInt(), true
	case value.KindBool:
		if v.AsBool() {
			return 1, true
		}
		return 0, true
	case value.KindString:
		if r, size := utf8.DecodeRuneInString(v.AsString()); size > 0 && size == len(v.AsString()) {
			return int64(r), true
		}
	}
	return 0, false
}

// argEvaluator resolves printf arguments against the shared state.
type argEvaluator struct {
	snap *state.Snapshot
	ev   *evaluator
}

func newArgEvaluator(snap *state.Snapshot) *argEvaluator {
	return &argEvaluator{snap: snap, ev: newEvaluator(snap)}
}

var (
	lenCallRE   = regexp.MustCompile(`^(?:len|strlen|size)\(\s*([A-Za-z_]\w*)\s*\)$`)
	lenMethodRE = regexp.MustCompile(`^([A-Za-z_]\w*)\s*\.\s*(?:size|length)\(\s*\)$`)
	numberRE    = regexp.MustCompile(`^[-+]?(?:0[xX][0-9a-fA-F]+|\d+\.?\d*(?:[eE][-+]?\d+)?|\.\d+(?:[eE][-+]?\d+)?)[fFlLuU]*$`)
)

// arg evaluates one argument: variable, quoted literal, length-of, number,
// then restricted expression.
func (a *argEvaluator) arg(s string) (value.Value, error) {
	if v, ok := a.snap.Var(s); ok && v.Supported() {
		return v, nil
	}
	if lit, ok := cStringLiteral(s); ok {
		return value.String(lit), nil
	}
	if len(s) >= 3 && s[0] == '\'' && closingQuote(s, 0) == len(s)-1 {
		if lit, err := strconv.Unquote(s); err == nil {
			return value.String(lit), nil
		}
	}
	if m := lenCallRE.FindStringSubmatch(s); m != nil {
		return a.length(m[1])
	}
	if m := lenMethodRE.FindStringSubmatch(s); m != nil {
		return a.length(m[1])
	}
	if numberRE.MatchString(s) {
		if v, ok := parseNumber(s); ok {
			return v, nil
		}
	}
	out, err := a.ev.eval(s)
	if err != nil {
		return value.Value{}, err
	}
	v := value.FromNative(out)
	if !v.Supported() {
		return value.Value{}, fmt.Errorf("%w: unsupported result for %q", errDeclined, s)
	}
	return v, nil
}

func (a *argEvaluator) length(name string) (value.Value, error) {
	v, ok := a.snap.Var(name)
	if !ok {
		return value.Value{}, fmt.Errorf("%w: unknown variable %s", errDeclined, name)
	}
	switch v.Kind() {
	case value.KindString:
		return value.Int(int64(utf8.RuneCountInString(v.AsString()))), nil
	case value.KindList:
		return value.Int(int64(v.Len())), nil
	}
	return value.Value{}, fmt.Errorf("%w: %s has no length", errDeclined, name)
}

// parseNumber parses a C numeric literal, dropping type suffixes.
func parseNumber(s string) (value.Value, bool) {
	hex := strings.HasPrefix(strings.TrimLeft(s, "+-"), "0x") || strings.HasPrefix(strings.TrimLeft(s, "+-"), "0X")
	if !hex {
		s = strings.TrimRight(s, "fFlLuU")
	} else {
		s = strings.TrimRight(s, "lLuU")
	}
	if !hex && strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return value.Value{}, false
		}
		return value.Float(f), true
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return value.Value{}, false
	}
	return value.Int(n), true
}
