// Package value defines the closed set of values that cross fragment boundaries.
//
// A Value is assigned its Kind once, when it enters the shared state; guest
// executors translate it through per-language tables and skip KindUnsupported.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the tag of a Value.
type Kind uint8

const (
	KindUnsupported Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "str"
	case KindList:
		return "list"
	}
	return "unsupported"
}

// Value is a tagged variant. The zero Value is an unsupported value with an empty repr.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string // строка, либо repr для unsupported
	elem Kind   // тип элементов списка
	list []Value
	// literal: repr неподдерживаемого значения можно снова вычислить как литерал Python
	literal bool
}

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Unsupported(repr string, literal bool) Value {
	return Value{kind: KindUnsupported, s: repr, literal: literal}
}

// List builds a homogeneous flat list. Ints mixed with floats make a numeric
// list with ElemKind float, but each element keeps its own kind so that repr
// stays Python's; typed guest languages promote with AsElem. Any other mix, or
// a nested list, yields an unsupported value whose repr is still the Python
// list display.
func List(elems ...Value) Value {
	if len(elems) == 0 {
		return Value{kind: KindList, elem: KindUnsupported, list: []Value{}}
	}
	elem := elems[0].kind
	for _, e := range elems[1:] {
		switch {
		case e.kind == elem:
		case e.kind == KindFloat && elem == KindInt, e.kind == KindInt && elem == KindFloat:
			elem = KindFloat
		default:
			elem = KindUnsupported
		}
	}
	if elem == KindUnsupported || elem == KindList {
		return Unsupported(listRepr(elems), allLiteral(elems))
	}
	return Value{kind: KindList, elem: elem, list: append([]Value(nil), elems...)}
}

// AsElem converts a list element to the list's element kind: ints in a
// numeric list become floats. Other values are returned unchanged.
func (v Value) AsElem(elem Kind) Value {
	if elem == KindFloat && v.kind == KindInt {
		return Float(float64(v.i))
	}
	return v
}

func allLiteral(elems []Value) bool {
	for _, e := range elems {
		if !e.Literal() {
			return false
		}
	}
	return true
}

func (v Value) Kind() Kind { return v.kind }

// Supported reports whether v can be translated into guest declarations.
func (v Value) Supported() bool { return v.kind != KindUnsupported }

func (v Value) AsBool() bool { return v.b }
func (v Value) AsInt() int64 { return v.i }
func (v Value) AsFloat() float64 { return v.f }
func (v Value) AsString() string { return v.s }
func (v Value) ElemKind() Kind { return v.elem }
func (v Value) Len() int { return len(v.list) }
func (v Value) Elems() []Value { return append([]Value(nil), v.list...) }
func (v Value) IsEmptyList() bool { return v.kind == KindList && len(v.list) == 0 }

// Literal reports whether Repr is a valid Python literal.
func (v Value) Literal() bool {
	switch v.kind {
	case KindUnsupported:
		return v.literal
	case KindFloat:
		return !math.IsInf(v.f, 0) && !math.IsNaN(v.f)
	case KindList:
		return allLiteral(v.list)
	}
	return true
}

// Number returns the value as float64 for int and float kinds.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || math.IsNaN(v.f) && math.IsNaN(o.f)
	case KindString:
		return v.s == o.s
	case KindList:
		if v.elem != o.elem || len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return v.s == o.s && v.literal == o.literal
}

// Repr renders the value the way Python's repr() does.
func (v Value) Repr() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return FormatFloat(v.f)
	case KindString:
		return Quote(v.s)
	case KindList:
		return listRepr(v.list)
	}
	return v.s
}

// Str renders the value the way Python's str() does.
func (v Value) Str() string {
	if v.kind == KindString {
		return v.s
	}
	return v.Repr()
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%s)", v.kind, v.Repr())
}

func listRepr(elems []Value) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = e.Repr()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatFloat formats f like Python's float repr: scientific notation outside
// [1e-4, 1e16), otherwise positional with at least one fractional digit.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// Quote renders s as a Python string literal.
func Quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteByte(q)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}
