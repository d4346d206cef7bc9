package executor

import (
	"errors"
	"fmt"
	"math"

	"github.com/expr-lang/expr/ast"
)

// Arithmetic in the fast path follows Python, not Go: ints never wrap. When a
// result would leave int64 the builtin fails and the fragment goes to the
// interpreter, which has arbitrary precision.

var errIntOverflow = errors.New("integer result does not fit in 64 bits")

// Names of the functions arithmetic operators are rewritten to.
const (
	opAdd = "_lf_add"
	opSub = "_lf_sub"
	opMul = "_lf_mul"
	opNeg = "_lf_neg"
)

// arithPatcher replaces `+ - *` and unary minus with calls to checked builtins.
type arithPatcher struct{}

func (arithPatcher) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.BinaryNode:
		name := map[string]string{"+": opAdd, "-": opSub, "*": opMul}[n.Operator]
		if name == "" {
			return
		}
		ast.Patch(node, &ast.CallNode{
			Callee:    &ast.IdentifierNode{Value: name},
			Arguments: []ast.Node{n.Left, n.Right},
		})
	case *ast.UnaryNode:
		if n.Operator != "-" {
			return
		}
		ast.Patch(node, &ast.CallNode{
			Callee:    &ast.IdentifierNode{Value: opNeg},
			Arguments: []ast.Node{n.Node},
		})
	}
}

func addInt(a, b int) (int, error) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, errIntOverflow
	}
	return c, nil
}

func subInt(a, b int) (int, error) {
	c := a - b
	if (b > 0 && c > a) || (b < 0 && c < a) {
		return 0, errIntOverflow
	}
	return c, nil
}

func mulInt(a, b int) (int, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		return 0, errIntOverflow
	}
	c := a * b
	if c/b != a {
		return 0, errIntOverflow
	}
	return c, nil
}

// numeric splits a number into its int or float form. Bools are rejected:
// Python treats them as ints, expr does not, so they go to the interpreter.
func numeric(x any) (i int, f float64, isInt, ok bool) {
	switch v := x.(type) {
	case int:
		return v, float64(v), true, true
	case float64:
		return 0, v, false, true
	}
	return 0, 0, false, false
}

func unsupportedOperands(op string, a, b any) error {
	return fmt.Errorf("unsupported operand type(s) for %s: %T and %T", op, a, b)
}

func pyArith(op string, intOp func(a, b int) (int, error), floatOp func(a, b float64) float64) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("operator %s takes 2 operands", op)
		}
		a, b := params[0], params[1]
		ai, af, aInt, aOK := numeric(a)
		bi, bf, bInt, bOK := numeric(b)
		switch {
		case aOK && bOK && aInt && bInt:
			return intOp(ai, bi)
		case aOK && bOK:
			return floatOp(af, bf), nil
		}
		if op == "+" {
			switch av := a.(type) {
			case string:
				if bv, ok := b.(string); ok {
					return av + bv, nil
				}
			case []any:
				if bv, ok := b.([]any); ok {
					out := make([]any, 0, len(av)+len(bv))
					return append(append(out, av...), bv...), nil
				}
			}
		}
		return nil, unsupportedOperands(op, a, b)
	}
}

var (
	pyAdd = pyArith("+", addInt, func(a, b float64) float64 { return a + b })
	pySub = pyArith("-", subInt, func(a, b float64) float64 { return a - b })
	pyMul = pyArith("*", mulInt, func(a, b float64) float64 { return a * b })
)

func pyNeg(params ...any) (any, error) {
	if err := arity("-", params, 1, 1); err != nil {
		return nil, err
	}
	i, f, isInt, ok := numeric(params[0])
	switch {
	case !ok:
		return nil, fmt.Errorf("bad operand type for unary -: %T", params[0])
	case isInt:
		return subInt(0, i)
	}
	return -f, nil
}

func pyAbs(params ...any) (any, error) {
	if err := arity("abs", params, 1, 1); err != nil {
		return nil, err
	}
	i, f, isInt, ok := numeric(params[0])
	switch {
	case !ok:
		return nil, fmt.Errorf("bad operand type for abs(): %T", params[0])
	case isInt && i < 0:
		return subInt(0, i)
	case isInt:
		return i, nil
	}
	return math.Abs(f), nil
}

// pyLess orders two values the way Python's < does for numbers and strings.
func pyLess(a, b any) (bool, error) {
	ai, af, aInt, aOK := numeric(a)
	bi, bf, bInt, bOK := numeric(b)
	switch {
	case aInt && bInt:
		return ai < bi, nil
	case aOK && bOK:
		return af < bf, nil
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return as < bs, nil
	}
	return false, fmt.Errorf("'<' not supported between instances of %T and %T", a, b)
}

// pyExtreme implements min and max: one list argument or several values.
// The first extreme element wins, as in Python.
func pyExtreme(name string, wantMax bool) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		items := params
		if len(params) == 1 {
			list, ok := params[0].([]any)
			if !ok {
				return nil, fmt.Errorf("%T object is not iterable", params[0])
			}
			items = list
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%s() arg is an empty sequence", name)
		}
		best := items[0]
		for _, x := range items[1:] {
			var (
				replace bool
				err     error
			)
			if wantMax {
				replace, err = pyLess(best, x)
			} else {
				replace, err = pyLess(x, best)
			}
			if err != nil {
				return nil, err
			}
			if replace {
				best = x
			}
		}
		return best, nil
	}
}

var (
	pyMin = pyExtreme("min", false)
	pyMax = pyExtreme("max", true)
)

// pySum adds the items of a list to start (default 0). Strings are refused as
// Python does.
func pySum(params ...any) (any, error) {
	if err := arity("sum", params, 1, 2); err != nil {
		return nil, err
	}
	list, ok := params[0].([]any)
	if !ok {
		return nil, fmt.Errorf("%T object is not iterable", params[0])
	}
	var total any = 0
	if len(params) == 2 {
		total = params[1]
	}
	if _, isStr := total.(string); isStr {
		return nil, errors.New("sum() can't sum strings")
	}
	for _, x := range list {
		if _, isStr := x.(string); isStr {
			return nil, errors.New("sum() can't sum strings")
		}
		next, err := pyAdd(total, x)
		if err != nil {
			return nil, err
		}
		total = next
	}
	return total, nil
}
