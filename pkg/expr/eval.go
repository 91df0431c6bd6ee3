package expr

import (
	"errors"
	"fmt"
	"math"
	"sort"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/leoneifler/ipet/pkg/frame"
)

// Error definitions
var (
	ErrUnknownColumn = errors.New("unknown column in formula")
	ErrTypeMismatch  = errors.New("type mismatch in formula")
)

// valueKind discriminates the per-row value variants.
type valueKind uint8

const (
	missingValue valueKind = iota
	numberValue
	stringValue
	boolValue
)

// value is the result of evaluating an expression for one row.
// A missing value carries no payload and absorbs every operation.
type value struct {
	kind valueKind
	num  float64
	str  string
	b    bool
}

var missing = value{kind: missingValue}

func number(f float64) value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return missing
	}
	return value{kind: numberValue, num: f}
}

func str(s string) value { return value{kind: stringValue, str: s} }

func boolean(b bool) value { return value{kind: boolValue, b: b} }

// Evaluate computes the expression for every row of df and returns a new
// series named name. The result type follows the first non-missing row
// value: numbers become a SeriesFloat64 with nil for missing rows, bools
// a generic bool series, strings a SeriesString.
func Evaluate(e Expr, df *dataframe.DataFrame, name string) (dataframe.Series, error) {
	cols := make(map[string]dataframe.Series)
	for _, ref := range Refs(e) {
		s, ok := frame.Column(df, ref)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, ref)
		}
		cols[ref] = s
	}

	n := frame.NRows(df)
	results := make([]value, n)
	for i := 0; i < n; i++ {
		results[i] = evalRow(e, cols, i)
	}

	return materialize(name, results), nil
}

// materialize converts per-row values into a series of the dominant kind.
func materialize(name string, results []value) dataframe.Series {
	kind := missingValue
	for _, v := range results {
		if v.kind != missingValue {
			kind = v.kind
			break
		}
	}

	switch kind {
	case boolValue:
		vals := make([]bool, len(results))
		for i, v := range results {
			vals[i] = v.kind == boolValue && v.b
		}
		return frame.NewBoolSeries(name, vals)
	case stringValue:
		vals := make([]string, len(results))
		present := make([]bool, len(results))
		for i, v := range results {
			if v.kind == stringValue {
				vals[i] = v.str
				present[i] = true
			}
		}
		return frame.NewStringSeries(name, vals, present)
	default:
		// numbers, or all-missing
		vals := make([]float64, len(results))
		present := make([]bool, len(results))
		for i, v := range results {
			if v.kind == numberValue {
				vals[i] = v.num
				present[i] = true
			}
		}
		return frame.NewFloat64Series(name, vals, present)
	}
}

func columnValue(s dataframe.Series, row int) value {
	if frame.IsMissing(s, row) {
		return missing
	}
	if f, ok := frame.Float64At(s, row); ok {
		return number(f)
	}
	if b, ok := frame.BoolAt(s, row); ok {
		return boolean(b)
	}
	if sv, ok := frame.StringAt(s, row); ok {
		return str(sv)
	}
	return missing
}

func evalRow(e Expr, cols map[string]dataframe.Series, row int) value {
	switch n := e.(type) {
	case *NumberLit:
		return number(n.Value)
	case *StringLit:
		return str(n.Value)
	case *BoolLit:
		return boolean(n.Value)
	case *ColumnRef:
		return columnValue(cols[n.Name], row)
	case *UnaryExpr:
		return evalUnary(n, cols, row)
	case *BinaryExpr:
		return evalBinary(n, cols, row)
	case *CallExpr:
		return evalCall(n, cols, row)
	default:
		return missing
	}
}

func evalUnary(e *UnaryExpr, cols map[string]dataframe.Series, row int) value {
	v := evalRow(e.Right, cols, row)
	if v.kind == missingValue {
		return missing
	}
	switch e.Op {
	case TokenMinus:
		if v.kind != numberValue {
			return missing
		}
		return number(-v.num)
	case TokenNot:
		if v.kind != boolValue {
			return missing
		}
		return boolean(!v.b)
	}
	return missing
}

func evalBinary(e *BinaryExpr, cols map[string]dataframe.Series, row int) value {
	// and/or short-circuit on a decided left side even when the right
	// side would be missing
	if e.Op == TokenAnd || e.Op == TokenOr {
		return evalLogical(e, cols, row)
	}

	l := evalRow(e.Left, cols, row)
	r := evalRow(e.Right, cols, row)
	if l.kind == missingValue || r.kind == missingValue {
		return missing
	}

	switch e.Op {
	case TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent:
		if l.kind != numberValue || r.kind != numberValue {
			return missing
		}
		return evalArith(e.Op, l.num, r.num)
	case TokenEQ:
		return compareEqual(l, r, false)
	case TokenNE:
		return compareEqual(l, r, true)
	case TokenLT, TokenLE, TokenGT, TokenGE:
		return compareOrder(e.Op, l, r)
	}
	return missing
}

func evalLogical(e *BinaryExpr, cols map[string]dataframe.Series, row int) value {
	l := evalRow(e.Left, cols, row)
	if l.kind == boolValue {
		if e.Op == TokenAnd && !l.b {
			return boolean(false)
		}
		if e.Op == TokenOr && l.b {
			return boolean(true)
		}
	}
	r := evalRow(e.Right, cols, row)
	if l.kind != boolValue || r.kind != boolValue {
		return missing
	}
	if e.Op == TokenAnd {
		return boolean(l.b && r.b)
	}
	return boolean(l.b || r.b)
}

func evalArith(op TokenType, a, b float64) value {
	switch op {
	case TokenPlus:
		return number(a + b)
	case TokenMinus:
		return number(a - b)
	case TokenStar:
		return number(a * b)
	case TokenSlash:
		if b == 0 {
			return missing
		}
		return number(a / b)
	case TokenPercent:
		if b == 0 {
			return missing
		}
		return number(math.Mod(a, b))
	}
	return missing
}

func compareEqual(l, r value, negate bool) value {
	var eq bool
	switch {
	case l.kind == numberValue && r.kind == numberValue:
		eq = l.num == r.num
	case l.kind == stringValue && r.kind == stringValue:
		eq = l.str == r.str
	case l.kind == boolValue && r.kind == boolValue:
		eq = l.b == r.b
	default:
		// comparing across types is always unequal
		eq = false
	}
	if negate {
		eq = !eq
	}
	return boolean(eq)
}

func compareOrder(op TokenType, l, r value) value {
	var cmp int
	switch {
	case l.kind == numberValue && r.kind == numberValue:
		switch {
		case l.num < r.num:
			cmp = -1
		case l.num > r.num:
			cmp = 1
		}
	case l.kind == stringValue && r.kind == stringValue:
		switch {
		case l.str < r.str:
			cmp = -1
		case l.str > r.str:
			cmp = 1
		}
	default:
		return missing
	}

	switch op {
	case TokenLT:
		return boolean(cmp < 0)
	case TokenLE:
		return boolean(cmp <= 0)
	case TokenGT:
		return boolean(cmp > 0)
	case TokenGE:
		return boolean(cmp >= 0)
	}
	return missing
}

func evalCall(e *CallExpr, cols map[string]dataframe.Series, row int) value {
	if e.Func == "if" {
		if len(e.Args) != 3 {
			return missing
		}
		cond := evalRow(e.Args[0], cols, row)
		if cond.kind != boolValue {
			return missing
		}
		if cond.b {
			return evalRow(e.Args[1], cols, row)
		}
		return evalRow(e.Args[2], cols, row)
	}

	args := make([]value, len(e.Args))
	for i, arg := range e.Args {
		args[i] = evalRow(arg, cols, row)
		if args[i].kind == missingValue {
			return missing
		}
		if args[i].kind != numberValue {
			return missing
		}
	}

	switch e.Func {
	case "log":
		if len(args) != 1 || args[0].num <= 0 {
			return missing
		}
		return number(math.Log(args[0].num))
	case "log10":
		if len(args) != 1 || args[0].num <= 0 {
			return missing
		}
		return number(math.Log10(args[0].num))
	case "exp":
		if len(args) != 1 {
			return missing
		}
		return number(math.Exp(args[0].num))
	case "sqrt":
		if len(args) != 1 || args[0].num < 0 {
			return missing
		}
		return number(math.Sqrt(args[0].num))
	case "abs":
		if len(args) != 1 {
			return missing
		}
		return number(math.Abs(args[0].num))
	case "min":
		return reduceArgs(args, math.Min)
	case "max":
		return reduceArgs(args, math.Max)
	case "mean":
		if len(args) == 0 {
			return missing
		}
		var sum float64
		for _, a := range args {
			sum += a.num
		}
		return number(sum / float64(len(args)))
	case "median":
		if len(args) == 0 {
			return missing
		}
		nums := make([]float64, len(args))
		for i, a := range args {
			nums[i] = a.num
		}
		sort.Float64s(nums)
		mid := len(nums) / 2
		if len(nums)%2 == 0 {
			return number((nums[mid-1] + nums[mid]) / 2)
		}
		return number(nums[mid])
	}
	return missing
}

func reduceArgs(args []value, f func(a, b float64) float64) value {
	if len(args) == 0 {
		return missing
	}
	acc := args[0].num
	for _, a := range args[1:] {
		acc = f(acc, a.num)
	}
	return number(acc)
}
