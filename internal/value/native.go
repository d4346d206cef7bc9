package value

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Native converts v into the Go value used by the expression evaluator.
// Unsupported values map to nil.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return int(v.i)
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Native()
		}
		return out
	}
	return nil
}

// FromNative tags a Go value produced by the evaluator.
func FromNative(x any) Value {
	switch n := x.(type) {
	case nil:
		return Unsupported("None", true)
	case Value:
		return n
	case bool:
		return Bool(n)
	case int:
		return Int(int64(n))
	case int8:
		return Int(int64(n))
	case int16:
		return Int(int64(n))
	case int32:
		return Int(int64(n))
	case int64:
		return Int(n)
	case uint8:
		return Int(int64(n))
	case uint16:
		return Int(int64(n))
	case uint32:
		return Int(int64(n))
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return Int(int64(n))
		}
		return Unsupported(strconv.FormatUint(uint64(n), 10), true)
	case uint64:
		if n <= math.MaxInt64 {
			return Int(int64(n))
		}
		return Unsupported(strconv.FormatUint(n, 10), true)
	case float32:
		return Float(float64(n))
	case float64:
		return Float(n)
	case string:
		return String(n)
	case []any:
		elems := make([]Value, len(n))
		for i, e := range n {
			elems[i] = FromNative(e)
		}
		return List(elems...)
	case map[string]any:
		return Unsupported(mapRepr(n, FromNative), false)
	}

	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		elems := make([]Value, rv.Len())
		for i := range elems {
			elems[i] = FromNative(rv.Index(i).Interface())
		}
		return List(elems...)
	}
	return Unsupported(fmt.Sprintf("%v", x), false)
}

func mapRepr(m map[string]any, conv func(any) Value) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = Quote(k) + ": " + conv(m[k]).Repr()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FromJSON tags a value decoded with json.Decoder.UseNumber. A number with a
// fraction or exponent is a float, otherwise an int; nested arrays and objects
// are unsupported.
func FromJSON(x any) Value {
	switch n := x.(type) {
	case json.Number:
		s := n.String()
		if strings.ContainsAny(s, ".eE") {
			f, err := n.Float64()
			if err != nil {
				return Unsupported(s, false)
			}
			return Float(f)
		}
		i, err := n.Int64()
		if err != nil {
			// int вне int64 остаётся литералом Python
			return Unsupported(s, true)
		}
		return Int(i)
	case []any:
		elems := make([]Value, len(n))
		for i, e := range n {
			elems[i] = FromJSON(e)
		}
		return List(elems...)
	case map[string]any:
		return Unsupported(mapRepr(n, FromJSON), false)
	}
	return FromNative(x)
}
