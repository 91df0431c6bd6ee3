package evaluation

import (
	"fmt"
	"strconv"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/leoneifler/ipet/pkg/expr"
	"github.com/leoneifler/ipet/pkg/frame"
	"github.com/leoneifler/ipet/pkg/keys"
)

// Column declares one evaluated column. Exactly one of DataKey,
// Formula, Constant, or Regex defines where its values come from:
//
//   - DataKey: a raw column of the experiment data table
//   - Formula: a derived formula over other columns (pkg/expr)
//   - Constant: a literal value repeated for every row
//   - Regex: all raw data keys matching the pattern, each materialized
//     under its own name
//
// NaNRep, MinVal and MaxVal post-process the materialized values; Comp
// requests a per-instance comparison ("Q") column against the named
// baseline setting.
type Column struct {
	Name     string
	DataKey  string
	Formula  string
	Constant *float64
	Regex    string

	FormatStr string
	NaNRep    string // literal replacement, or the name of a fallback column
	MinVal    *float64
	MaxVal    *float64
	Comp      string

	Aggregations []Aggregation

	formulaExpr expr.Expr
}

// DisplayName infers the name for this column: the explicit name when
// set, else the raw data key, else a constructed name.
func (c *Column) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.DataKey != "":
		return c.DataKey
	case c.Constant != nil:
		return "Const_" + strconv.FormatFloat(*c.Constant, 'g', -1, 64)
	case c.Formula != "":
		return c.Formula
	default:
		return c.Regex
	}
}

// compile parses the formula once, at declaration time, so that a
// malformed formula fails before any table is produced.
func (c *Column) compile() error {
	if c.Formula == "" {
		return nil
	}
	e, err := expr.Parse(c.Formula)
	if err != nil {
		return fmt.Errorf("%w: column %s: %v", ErrSpecParse, c.DisplayName(), err)
	}
	c.formulaExpr = e
	return nil
}

// Dependencies returns the columns the formula reads. Raw, constant
// and regex columns have none.
func (c *Column) Dependencies() []string {
	if c.formulaExpr == nil {
		return nil
	}
	return expr.Refs(c.formulaExpr)
}

// keyDefinition translates the column into its registry entry.
func (c *Column) keyDefinition() (keys.Definition, error) {
	name := c.DisplayName()
	switch {
	case c.Formula != "":
		return keys.Definition{Name: name, Kind: keys.Derived, Formula: c.formulaExpr}, nil
	case c.Constant != nil:
		return keys.ConstDef(name, *c.Constant), nil
	default:
		return keys.RawDef(name, c.DataKey), nil
	}
}

// materialize computes the column's series over the enriched table.
// Dependencies must already be present in df.
func (c *Column) materialize(df *dataframe.DataFrame) (dataframe.Series, error) {
	name := c.DisplayName()
	n := frame.NRows(df)

	var s dataframe.Series
	switch {
	case c.formulaExpr != nil:
		var err error
		s, err = expr.Evaluate(c.formulaExpr, df, name)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
	case c.Constant != nil:
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = *c.Constant
		}
		s = frame.NewFloat64Series(name, vals, nil)
	default:
		raw, ok := frame.Column(df, c.DataKey)
		if !ok {
			return nil, fmt.Errorf("%w: %s (column %s)", keys.ErrUnknownKey, c.DataKey, name)
		}
		s = frame.TakeSeries(raw, identityRows(n))
		s.Rename(name)
	}

	return c.postProcess(s, df), nil
}

// postProcess applies the nanrep replacement and min/max clamping.
func (c *Column) postProcess(s dataframe.Series, df *dataframe.DataFrame) dataframe.Series {
	if c.NaNRep == "" && c.MinVal == nil && c.MaxVal == nil {
		return s
	}

	n := s.NRows()
	name := s.Name()

	var nanrepNum float64
	var nanrepIsNum bool
	var nanrepCol dataframe.Series
	if c.NaNRep != "" {
		nanrepNum, nanrepIsNum = parseNumber(c.NaNRep)
		if !nanrepIsNum {
			nanrepCol, _ = frame.Column(df, c.NaNRep)
		}
	}

	vals := make([]float64, n)
	present := make([]bool, n)
	for i := 0; i < n; i++ {
		v, ok := frame.Float64At(s, i)
		if !ok {
			switch {
			case nanrepIsNum:
				v, ok = nanrepNum, true
			case nanrepCol != nil:
				v, ok = frame.Float64At(nanrepCol, i)
			}
		}
		if !ok {
			continue
		}
		if c.MinVal != nil && v < *c.MinVal {
			v = *c.MinVal
		}
		if c.MaxVal != nil && v > *c.MaxVal {
			v = *c.MaxVal
		}
		vals[i] = v
		present[i] = true
	}

	return frame.NewFloat64Series(name, vals, present)
}

func identityRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
