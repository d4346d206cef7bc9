package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"lf/internal/state"
	"lf/internal/value"
)

// declarer renders one binding in a guest language; ok=false skips it.
type declarer func(name string, v value.Value) (string, bool)

// declarations renders every representable variable of snap.
func declarations(snap *state.Snapshot, reserved map[string]bool, decl declarer) []string {
	var out []string
	for _, b := range snap.Vars() {
		if reserved[b.Name] || !b.Value.Supported() {
			continue
		}
		if s, ok := decl(b.Name, b.Value); ok {
			out = append(out, s)
		}
	}
	return out
}

func words(s string) map[string]bool {
	m := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		m[w] = true
	}
	return m
}

// cEscape renders s as a double-quoted C-family literal.
func cEscape(s string, ctrl func(r rune) string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				b.WriteString(ctrl(r))
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func octalEscape(r rune) string { return fmt.Sprintf(`\%03o`, r) }
func rustEscape(r rune) string { return fmt.Sprintf(`\u{%x}`, r) }
func finite(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }
func fitsInt32(i int64) bool { return i >= math.MinInt32 && i <= math.MaxInt32 }
func intLiteral(i int64) string { return strconv.FormatInt(i, 10) }
func floatLiteral(f float64) string { return value.FormatFloat(f) }

// listElems joins the element literals produced by lit.
func listElems(v value.Value, lit func(value.Value) (string, bool)) (string, bool) {
	parts := make([]string, 0, v.Len())
	for _, e := range v.Elems() {
		s, ok := lit(e)
		if !ok {
			return "", false
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), true
}

// ---- C++ ----

var cppReserved = words(`alignas alignof and asm auto bool break case catch char class const
	constexpr continue default delete do double else enum explicit extern false float for friend
	goto if inline int long main namespace new not nullptr operator or private protected public
	register return short signed sizeof static string struct switch template this throw true try
	typedef typename union unsigned using vector virtual void volatile while std`)

func cppScalar(v value.Value) (typ, lit string, ok bool) {
	switch v.Kind() {
	case value.KindBool:
		return "bool", strconv.FormatBool(v.AsBool()), true
	case value.KindInt:
		if fitsInt32(v.AsInt()) {
			return "int", intLiteral(v.AsInt()), true
		}
		return "long long", intLiteral(v.AsInt()) + "LL", true
	case value.KindFloat:
		if !finite(v.AsFloat()) {
			return "", "", false
		}
		return "double", floatLiteral(v.AsFloat()), true
	case value.KindString:
		return "string", cEscape(v.AsString(), octalEscape), true
	}
	return "", "", false
}

func declareCPP(name string, v value.Value) (string, bool) {
	if v.Kind() != value.KindList {
		typ, lit, ok := cppScalar(v)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s %s = %s;", typ, name, lit), true
	}
	if v.Len() == 0 {
		return "", false
	}
	typ := map[value.Kind]string{value.KindBool: "bool", value.KindInt: "long long", value.KindFloat: "double", value.KindString: "string"}[v.ElemKind()]
	elems, ok := listElems(v, func(e value.Value) (string, bool) {
		e = e.AsElem(v.ElemKind())
		if e.Kind() == value.KindInt {
			return intLiteral(e.AsInt()), true
		}
		_, lit, ok := cppScalar(e)
		return lit, ok
	})
	if !ok || typ == "" {
		return "", false
	}
	return fmt.Sprintf("vector<%s> %s = {%s};", typ, name, elems), true
}

// ---- Java ----

var javaReserved = words(`abstract assert boolean break byte case catch char class const continue
	default do double else enum extends final finally float for goto if implements import instanceof
	int interface long native new package private protected public return short static strictfp
	super switch synchronized this throw throws transient try void volatile while true false null
	var record yield args Main String System`)

func javaScalar(v value.Value) (typ, lit string, ok bool) {
	switch v.Kind() {
	case value.KindBool:
		return "boolean", strconv.FormatBool(v.AsBool()), true
	case value.KindInt:
		if fitsInt32(v.AsInt()) {
			return "int", intLiteral(v.AsInt()), true
		}
		return "long", intLiteral(v.AsInt()) + "L", true
	case value.KindFloat:
		f := v.AsFloat()
		switch {
		case math.IsNaN(f):
			return "double", "Double.NaN", true
		case math.IsInf(f, 1):
			return "double", "Double.POSITIVE_INFINITY", true
		case math.IsInf(f, -1):
			return "double", "Double.NEGATIVE_INFINITY", true
		}
		return "double", floatLiteral(f), true
	case value.KindString:
		return "String", cEscape(v.AsString(), octalEscape), true
	}
	return "", "", false
}

func declareJava(name string, v value.Value) (string, bool) {
	if v.Kind() != value.KindList {
		typ, lit, ok := javaScalar(v)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("static %s %s = %s;", typ, name, lit), true
	}
	if v.Len() == 0 {
		return "", false
	}
	typ := map[value.Kind]string{value.KindBool: "boolean", value.KindInt: "long", value.KindFloat: "double", value.KindString: "String"}[v.ElemKind()]
	elems, ok := listElems(v, func(e value.Value) (string, bool) {
		e = e.AsElem(v.ElemKind())
		if e.Kind() == value.KindInt {
			return intLiteral(e.AsInt()) + "L", true
		}
		_, lit, ok := javaScalar(e)
		return lit, ok
	})
	if !ok || typ == "" {
		return "", false
	}
	return fmt.Sprintf("static %s[] %s = {%s};", typ, name, elems), true
}

// ---- JavaScript ----

var jsReserved = words(`break case catch class const continue debugger default delete do else
	enum export extends false finally for function if import in instanceof let new null return
	super switch this throw true try typeof var void while with yield await static implements
	interface package private protected public arguments eval undefined console require module
	process`)

func jsLiteral(v value.Value) (string, bool) {
	if v.Kind() == value.KindFloat && !finite(v.AsFloat()) {
		f := v.AsFloat()
		switch {
		case math.IsNaN(f):
			return "NaN", true
		case f > 0:
			return "Infinity", true
		}
		return "-Infinity", true
	}
	if v.Kind() == value.KindList {
		elems, ok := listElems(v, jsLiteral)
		return "[" + elems + "]", ok
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v.Native()); err != nil {
		return "", false
	}
	return strings.TrimSpace(buf.String()), true
}

func declareJS(name string, v value.Value) (string, bool) {
	lit, ok := jsLiteral(v)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("const %s = %s;", name, lit), true
}

// ---- PHP ----

var phpReserved = words(`this GLOBALS _SERVER _GET _POST _FILES _COOKIE _SESSION _REQUEST _ENV`)

func phpLiteral(v value.Value) (string, bool) {
	switch v.Kind() {
	case value.KindBool:
		return strconv.FormatBool(v.AsBool()), true
	case value.KindInt:
		return intLiteral(v.AsInt()), true
	case value.KindFloat:
		f := v.AsFloat()
		switch {
		case math.IsNaN(f):
			return "NAN", true
		case math.IsInf(f, 1):
			return "INF", true
		case math.IsInf(f, -1):
			return "-INF", true
		}
		return floatLiteral(f), true
	case value.KindString:
		s := strings.ReplaceAll(v.AsString(), `\`, `\\`)
		return "'" + strings.ReplaceAll(s, "'", `\'`) + "'", true
	case value.KindList:
		elems, ok := listElems(v, phpLiteral)
		return "[" + elems + "]", ok
	}
	return "", false
}

func declarePHP(name string, v value.Value) (string, bool) {
	lit, ok := phpLiteral(v)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("$%s = %s;", name, lit), true
}

// ---- Rust ----

var rustReserved = words(`as async await break const continue crate dyn else enum extern false fn
	for if impl in let loop match mod move mut pub ref return self Self static struct super trait
	true type unsafe use where while abstract become box do final macro override priv typeof
	unsized virtual yield try main`)

func rustScalar(v value.Value) (typ, lit string, ok bool) {
	switch v.Kind() {
	case value.KindBool:
		return "bool", strconv.FormatBool(v.AsBool()), true
	case value.KindInt:
		return "i64", intLiteral(v.AsInt()), true
	case value.KindFloat:
		f := v.AsFloat()
		switch {
		case math.IsNaN(f):
			return "f64", "f64::NAN", true
		case math.IsInf(f, 1):
			return "f64", "f64::INFINITY", true
		case math.IsInf(f, -1):
			return "f64", "f64::NEG_INFINITY", true
		}
		return "f64", floatLiteral(f), true
	case value.KindString:
		return "&str", cEscape(v.AsString(), rustEscape), true
	}
	return "", "", false
}

func declareRust(name string, v value.Value) (string, bool) {
	if v.Kind() != value.KindList {
		typ, lit, ok := rustScalar(v)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("let %s: %s = %s;", name, typ, lit), true
	}
	if v.Len() == 0 {
		return "", false
	}
	typ := map[value.Kind]string{value.KindBool: "bool", value.KindInt: "i64", value.KindFloat: "f64", value.KindString: "&str"}[v.ElemKind()]
	elems, ok := listElems(v, func(e value.Value) (string, bool) {
		_, lit, ok := rustScalar(e.AsElem(v.ElemKind()))
		return lit, ok
	})
	if !ok || typ == "" {
		return "", false
	}
	return fmt.Sprintf("let %s: Vec<%s> = vec![%s];", name, typ, elems), true
}
