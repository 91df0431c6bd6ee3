package evaluation

import (
	"fmt"
	"strconv"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/leoneifler/ipet/pkg/frame"
)

// pivotTable reshapes the long table into the instance-wise output.
// The first split index levels stay row levels; the remaining levels
// pivot into column headers of the form "<level values>:<column>".
// Row and header order follow first appearance in table row order.
//
// The returned map links each pivoted header back to its source column
// name, so per-column formats carry over. A negative split means no
// pivot was requested and the table is returned unchanged; a split of
// zero pivots every level into column headers, leaving a single row.
func pivotTable(df *dataframe.DataFrame, levels []string, split int) (*dataframe.DataFrame, map[string]string, error) {
	for _, level := range levels {
		if !frame.HasColumn(df, level) {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingIndexColumn, level)
		}
	}
	if split < 0 || split >= len(levels) {
		return df, nil, nil
	}

	rowLevels := levels[:split]
	colLevels := levels[split:]
	isLevel := make(map[string]bool, len(levels))
	for _, level := range levels {
		isLevel[level] = true
	}
	var valueCols []string
	for _, name := range frame.ColumnNames(df) {
		if !isLevel[name] {
			valueCols = append(valueCols, name)
		}
	}

	n := frame.NRows(df)
	rowKeyOf := keyFunc(df, rowLevels)
	colKeyOf := keyFunc(df, colLevels)

	rowIdx := make(map[string]int)
	var rowKeys []string
	rowLevelVals := make([][]interface{}, len(rowLevels))
	colIdx := make(map[string]int)
	var colKeys []string

	// cells[colKey][valueCol][rowIdx]
	cells := make(map[string]map[string]map[int]interface{})

	levelSeries := make([]dataframe.Series, len(rowLevels))
	for i, level := range rowLevels {
		levelSeries[i], _ = frame.Column(df, level)
	}

	for r := 0; r < n; r++ {
		rkey := rowKeyOf(r)
		ri, seen := rowIdx[rkey]
		if !seen {
			ri = len(rowKeys)
			rowIdx[rkey] = ri
			rowKeys = append(rowKeys, rkey)
			for i, s := range levelSeries {
				rowLevelVals[i] = append(rowLevelVals[i], s.Value(r))
			}
		}

		ckey := colKeyOf(r)
		if _, seen := colIdx[ckey]; !seen {
			colIdx[ckey] = len(colKeys)
			colKeys = append(colKeys, ckey)
			cells[ckey] = make(map[string]map[int]interface{})
			for _, vc := range valueCols {
				cells[ckey][vc] = make(map[int]interface{})
			}
		}

		for _, vc := range valueCols {
			s, _ := frame.Column(df, vc)
			if _, dup := cells[ckey][vc][ri]; !dup {
				cells[ckey][vc][ri] = s.Value(r)
			}
		}
	}

	series := make([]dataframe.Series, 0, len(rowLevels)+len(colKeys)*len(valueCols))
	for i, level := range rowLevels {
		series = append(series, frame.NewSeriesLike(levelSeries[i], level, rowLevelVals[i]))
	}

	headerSource := make(map[string]string)
	for _, ckey := range colKeys {
		for _, vc := range valueCols {
			header := ckey + ":" + vc
			headerSource[header] = vc
			src, _ := frame.Column(df, vc)
			vals := make([]interface{}, len(rowKeys))
			for ri := range rowKeys {
				vals[ri] = cells[ckey][vc][ri]
			}
			series = append(series, frame.NewSeriesLike(src, header, vals))
		}
	}

	return dataframe.NewDataFrame(series...), headerSource, nil
}

// keyFunc builds the composite key of the given levels for one row.
// Multi-level keys join their parts with "|".
func keyFunc(df *dataframe.DataFrame, levels []string) func(int) string {
	cols := make([]dataframe.Series, len(levels))
	for i, level := range levels {
		cols[i], _ = frame.Column(df, level)
	}
	return func(r int) string {
		parts := make([]string, len(cols))
		for i, s := range cols {
			parts[i] = cellString(s.Value(r))
		}
		return strings.Join(parts, "|")
	}
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
