package evaluation

import (
	"fmt"
	"regexp"
	"strconv"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/leoneifler/ipet/pkg/frame"
)

// FilterOp is the comparison a filter applies to one column value.
type FilterOp string

const (
	OpEq        FilterOp = "eq"
	OpNeq       FilterOp = "neq"
	OpLt        FilterOp = "lt"
	OpLe        FilterOp = "le"
	OpGt        FilterOp = "gt"
	OpGe        FilterOp = "ge"
	OpRange     FilterOp = "range"
	OpMatch     FilterOp = "match"
	OpIsMissing FilterOp = "ismissing"
)

// Filter is a pure predicate over a single column of the enriched
// table. A row with a missing value never satisfies a filter, except
// under OpIsMissing.
type Filter struct {
	Column string
	Op     FilterOp
	Value  string // operand; numeric when it parses as a number
	Upper  string // range upper bound

	num      float64 // parsed Value
	numOK    bool
	upperNum float64
	re       *regexp.Regexp
}

// NewFilter builds a filter and validates the operator and operands.
func NewFilter(column string, op FilterOp, value, upper string) (*Filter, error) {
	f := &Filter{Column: column, Op: op, Value: value, Upper: upper}

	switch op {
	case OpEq, OpNeq, OpLt, OpLe, OpGt, OpGe:
		f.num, f.numOK = parseNumber(value)
	case OpRange:
		var loOK, hiOK bool
		f.num, loOK = parseNumber(value)
		f.upperNum, hiOK = parseNumber(upper)
		if !loOK || !hiOK {
			return nil, fmt.Errorf("%w: range bounds %q..%q are not numeric (column %s)",
				ErrSpecParse, value, upper, column)
		}
	case OpMatch:
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q (column %s): %v",
				ErrSpecParse, value, column, err)
		}
		f.re = re
	case OpIsMissing:
	default:
		return nil, fmt.Errorf("%w: %q (column %s)", ErrBadFilterOperator, op, column)
	}

	return f, nil
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// Evaluate applies the filter to one row. Total over any row: an
// absent column behaves like a missing value.
func (f *Filter) Evaluate(df *dataframe.DataFrame, row int) bool {
	s, ok := frame.Column(df, f.Column)
	if !ok {
		return f.Op == OpIsMissing
	}

	if frame.IsMissing(s, row) {
		return f.Op == OpIsMissing
	}
	if f.Op == OpIsMissing {
		return false
	}

	if cell, ok := frame.Float64At(s, row); ok {
		return f.evalNumeric(cell)
	}
	if cell, ok := frame.StringAt(s, row); ok {
		return f.evalString(cell)
	}
	if cell, ok := frame.BoolAt(s, row); ok {
		return f.evalString(strconv.FormatBool(cell))
	}
	return false
}

func (f *Filter) evalNumeric(cell float64) bool {
	switch f.Op {
	case OpRange:
		return cell >= f.num && cell <= f.upperNum
	case OpMatch:
		return f.re.MatchString(strconv.FormatFloat(cell, 'g', -1, 64))
	}

	// Numeric cells compare against non-numeric operands as strings.
	if !f.numOK {
		return f.evalString(strconv.FormatFloat(cell, 'g', -1, 64))
	}

	switch f.Op {
	case OpEq:
		return cell == f.num
	case OpNeq:
		return cell != f.num
	case OpLt:
		return cell < f.num
	case OpLe:
		return cell <= f.num
	case OpGt:
		return cell > f.num
	case OpGe:
		return cell >= f.num
	}
	return false
}

func (f *Filter) evalString(cell string) bool {
	switch f.Op {
	case OpEq:
		return cell == f.Value
	case OpNeq:
		return cell != f.Value
	case OpLt:
		return cell < f.Value
	case OpLe:
		return cell <= f.Value
	case OpGt:
		return cell > f.Value
	case OpGe:
		return cell >= f.Value
	case OpMatch:
		return f.re.MatchString(cell)
	case OpRange:
		return false
	}
	return false
}
