package executor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/expr-lang/expr"

	"lf/internal/state"
	"lf/internal/value"
)

// errDeclined means the in-process path cannot handle the code; the caller
// falls back to the external toolchain.
var errDeclined = errors.New("not evaluable in-process")

// evaluator runs restricted expressions over a copy of the shared state.
type evaluator struct {
	env map[string]any
}

func newEvaluator(snap *state.Snapshot) *evaluator {
	env := snap.Env()
	env["True"] = true
	env["False"] = false
	env["None"] = nil
	return &evaluator{env: env}
}

func (e *evaluator) options() []expr.Option {
	// все встроенные функции expr выключены; доступны только эти, с семантикой Python
	return []expr.Option{
		expr.Env(e.env),
		expr.DisableAllBuiltins(),
		expr.Patch(arithPatcher{}),
		expr.Function(opAdd, pyAdd),
		expr.Function(opSub, pySub),
		expr.Function(opMul, pyMul),
		expr.Function(opNeg, pyNeg),
		expr.Function("abs", pyAbs),
		expr.Function("min", pyMin),
		expr.Function("max", pyMax),
		expr.Function("sum", pySum),
		expr.Function("len", pyLen),
		expr.Function("str", pyStr),
		expr.Function("int", pyInt),
		expr.Function("float", pyFloat),
		expr.Function("bool", pyBool),
		expr.Function("round", pyRound),
	}
}

// eval evaluates code; any failure is reported as errDeclined.
func (e *evaluator) eval(code string) (any, error) {
	if err := checkRestricted(code); err != nil {
		return nil, err
	}
	prog, err := expr.Compile(code, e.options()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDeclined, err)
	}
	out, err := expr.Run(prog, e.env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDeclined, err)
	}
	if f, ok := out.(float64); ok && !finite(f) {
		return nil, fmt.Errorf("%w: non-finite result", errDeclined)
	}
	return out, nil
}

func (e *evaluator) set(name string, v any) { e.env[name] = v }

func (e *evaluator) has(name string) bool {
	_, ok := e.env[name]
	return ok
}

// reservedWords are identifiers that change meaning between Python and expr.
var reservedWords = words(`lambda if else elif for while let matches contains startsWith
	endsWith nil true false is await yield import from as with global nonlocal def class
	return raise try except finally assert del pass break continue async`)

// checkRestricted rejects syntax outside the shared subset of Python and expr.
func checkRestricted(code string) error {
	decline := func(what string) error { return fmt.Errorf("%w: %s", errDeclined, what) }
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c == '"' || c == '\'':
			if strings.HasPrefix(code[i:], `"""`) || strings.HasPrefix(code[i:], `'''`) {
				return decline("triple-quoted string")
			}
			end := closingQuote(code, i)
			if end < 0 {
				return decline("unterminated string")
			}
			i = end
		case isIdentStart(c):
			j := i
			for j < len(code) && isIdentByte(code[j]) {
				j++
			}
			word := code[i:j]
			if reservedWords[word] {
				return decline("keyword " + word)
			}
			if j < len(code) && (code[j] == '"' || code[j] == '\'') {
				return decline("string prefix " + word)
			}
			i = j - 1
		case c == '.':
			prevDigit := i > 0 && isDigit(code[i-1])
			nextDigit := i+1 < len(code) && isDigit(code[i+1])
			if !prevDigit && !nextDigit {
				return decline("attribute access")
			}
			if i+1 < len(code) && code[i+1] == '.' {
				return decline("range operator")
			}
		case c == '!':
			if i+1 >= len(code) || code[i+1] != '=' {
				return decline("operator !")
			}
		case c == '*' && i+1 < len(code) && code[i+1] == '*':
			return decline("operator **")
		case c == '/' && i+1 < len(code) && code[i+1] == '/':
			return decline("operator //")
		case c == ':' && i+1 < len(code) && code[i+1] == '=':
			return decline("operator :=")
		case c == '<' && i+1 < len(code) && code[i+1] == '<',
			c == '>' && i+1 < len(code) && code[i+1] == '>':
			return decline("shift operator")
		case strings.IndexByte("%?&|^~#;{}`$@\\", c) >= 0:
			return decline("operator " + string(c))
		}
	}
	return nil
}

// closingQuote returns the index of the quote closing the one at open, or -1.
func closingQuote(s string, open int) int {
	q := s[open]
	for i := open + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case q:
			return i
		case '\n':
			return -1
		}
	}
	return -1
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

// Builtins with Python semantics.

func arity(name string, params []any, lo, hi int) error {
	if len(params) < lo || len(params) > hi {
		return fmt.Errorf("%s() takes %d to %d arguments (%d given)", name, lo, hi, len(params))
	}
	return nil
}

func pyLen(params ...any) (any, error) {
	if err := arity("len", params, 1, 1); err != nil {
		return nil, err
	}
	switch x := params[0].(type) {
	case string:
		return utf8.RuneCountInString(x), nil
	case []any:
		return len(x), nil
	}
	return nil, fmt.Errorf("object of type %T has no len()", params[0])
}

func pyStr(params ...any) (any, error) {
	if len(params) == 0 {
		return "", nil
	}
	if err := arity("str", params, 1, 1); err != nil {
		return nil, err
	}
	return value.FromNative(params[0]).Str(), nil
}

func pyInt(params ...any) (any, error) {
	if len(params) == 0 {
		return 0, nil
	}
	if err := arity("int", params, 1, 1); err != nil {
		return nil, err
	}
	switch x := params[0].(type) {
	case int:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case float64:
		if !finite(x) || math.Abs(x) >= math.MaxInt64 {
			return nil, fmt.Errorf("cannot convert %v to integer", x)
		}
		return int(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid literal for int(): %s", value.Quote(x))
		}
		return int(n), nil
	}
	return nil, fmt.Errorf("int() argument must be a string or a number, not %T", params[0])
}

func pyFloat(params ...any) (any, error) {
	if len(params) == 0 {
		return 0.0, nil
	}
	if err := arity("float", params, 1, 1); err != nil {
		return nil, err
	}
	switch x := params[0].(type) {
	case int:
		return float64(x), nil
	case float64:
		return x, nil
	case bool:
		if x {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("could not convert string to float: %s", value.Quote(x))
		}
		return f, nil
	}
	return nil, fmt.Errorf("float() argument must be a string or a number, not %T", params[0])
}

func pyBool(params ...any) (any, error) {
	if len(params) == 0 {
		return false, nil
	}
	if err := arity("bool", params, 1, 1); err != nil {
		return nil, err
	}
	return truthy(params[0]), nil
}

func truthy(x any) bool {
	switch v := x.(type) {
	case nil:
		return false
	case bool:
		return v
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	}
	return true
}

func pyRound(params ...any) (any, error) {
	if err := arity("round", params, 1, 2); err != nil {
		return nil, err
	}
	var f float64
	switch x := params[0].(type) {
	case int:
		if len(params) == 1 {
			return x, nil
		}
		f = float64(x)
	case float64:
		f = x
	default:
		return nil, fmt.Errorf("type %T doesn't define __round__", params[0])
	}
	if len(params) == 1 {
		r := math.RoundToEven(f)
		if !finite(f) || math.Abs(r) >= math.MaxInt64 {
			return nil, fmt.Errorf("cannot round %v to a 64-bit integer", f)
		}
		return int(r), nil
	}
	n, ok := params[1].(int)
	if !ok {
		return nil, fmt.Errorf("round() ndigits must be an integer")
	}
	p := math.Pow(10, float64(n))
	return math.RoundToEven(f*p) / p, nil
}
