// Package frame provides typed accessors and constructors for
// dataframe-go frames as used throughout the evaluation pipeline.
//
// Missing values are nil series values. Every numeric extraction goes
// through a (value, ok) pair so that missing data never turns into a
// silent zero.
package frame

import (
	"math"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// DataType represents the type of data in a series.
type DataType uint8

const (
	TypeInt64 DataType = iota
	TypeFloat64
	TypeString
	TypeBool
	TypeUnknown
)

// String returns the string representation of the data type.
func (t DataType) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// SeriesType returns the DataType for a dataframe-go Series.
func SeriesType(s dataframe.Series) DataType {
	if s == nil {
		return TypeUnknown
	}
	switch s.(type) {
	case *dataframe.SeriesInt64:
		return TypeInt64
	case *dataframe.SeriesFloat64:
		return TypeFloat64
	case *dataframe.SeriesString:
		return TypeString
	default:
		if sg, ok := s.(*dataframe.SeriesGeneric); ok && sg.NRows() > 0 {
			if _, ok := sg.Value(0).(bool); ok {
				return TypeBool
			}
		}
		return TypeUnknown
	}
}

// IsMissing checks if the value at index i is missing (nil, or NaN in a
// float series).
func IsMissing(s dataframe.Series, i int) bool {
	if s == nil || i < 0 || i >= s.NRows() {
		return true
	}
	v := s.Value(i)
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok {
		return math.IsNaN(f)
	}
	return false
}

// Float64At extracts a float64 value from a Series at index i.
// Returns (value, ok) where ok is false if missing or non-numeric.
func Float64At(s dataframe.Series, i int) (float64, bool) {
	if s == nil || i < 0 || i >= s.NRows() {
		return 0, false
	}
	v := s.Value(i)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) {
			return 0, false
		}
		return val, true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	default:
		return 0, false
	}
}

// StringAt extracts a string value from a Series at index i.
func StringAt(s dataframe.Series, i int) (string, bool) {
	if s == nil || i < 0 || i >= s.NRows() {
		return "", false
	}
	v := s.Value(i)
	if v == nil {
		return "", false
	}
	if str, ok := v.(string); ok {
		return str, true
	}
	return "", false
}

// BoolAt extracts a bool value from a Series at index i.
func BoolAt(s dataframe.Series, i int) (bool, bool) {
	if s == nil || i < 0 || i >= s.NRows() {
		return false, false
	}
	v := s.Value(i)
	if v == nil {
		return false, false
	}
	if b, ok := v.(bool); ok {
		return b, true
	}
	return false, false
}

// NewFloat64Series creates a SeriesFloat64 from values with explicit
// missing markers. vals and present must have equal length.
func NewFloat64Series(name string, vals []float64, present []bool) *dataframe.SeriesFloat64 {
	ivals := make([]interface{}, len(vals))
	for i, v := range vals {
		if present == nil || present[i] {
			ivals[i] = v
		} else {
			ivals[i] = nil
		}
	}
	return dataframe.NewSeriesFloat64(name, nil, ivals...)
}

// NewStringSeries creates a SeriesString with missing markers.
func NewStringSeries(name string, vals []string, present []bool) *dataframe.SeriesString {
	ivals := make([]interface{}, len(vals))
	for i, v := range vals {
		if present == nil || present[i] {
			ivals[i] = v
		} else {
			ivals[i] = nil
		}
	}
	return dataframe.NewSeriesString(name, nil, ivals...)
}

// NewBoolSeries creates a generic series holding bool values.
func NewBoolSeries(name string, vals []bool) dataframe.Series {
	ivals := make([]interface{}, len(vals))
	for i, v := range vals {
		ivals[i] = v
	}
	return dataframe.NewSeriesGeneric(name, false, nil, ivals...)
}

// Column retrieves a Series from a DataFrame by name.
func Column(df *dataframe.DataFrame, name string) (dataframe.Series, bool) {
	if df == nil {
		return nil, false
	}
	idx, err := df.NameToColumn(name)
	if err != nil {
		return nil, false
	}
	return df.Series[idx], true
}

// ColumnNames returns the names of all Series in a DataFrame.
func ColumnNames(df *dataframe.DataFrame) []string {
	if df == nil {
		return nil
	}
	names := make([]string, len(df.Series))
	for i, s := range df.Series {
		names[i] = s.Name()
	}
	return names
}

// HasColumn reports whether the DataFrame has a column of the given name.
func HasColumn(df *dataframe.DataFrame, name string) bool {
	_, ok := Column(df, name)
	return ok
}

// NRows returns the number of rows in a DataFrame.
func NRows(df *dataframe.DataFrame) int {
	if df == nil || len(df.Series) == 0 {
		return 0
	}
	return df.Series[0].NRows()
}

// SelectRows builds a new DataFrame containing the given row indices of
// every column, in the order given.
func SelectRows(df *dataframe.DataFrame, rows []int) *dataframe.DataFrame {
	series := make([]dataframe.Series, len(df.Series))
	for c, s := range df.Series {
		vals := make([]interface{}, len(rows))
		for i, r := range rows {
			vals[i] = s.Value(r)
		}
		series[c] = sameTypeSeries(s, s.Name(), vals)
	}
	return dataframe.NewDataFrame(series...)
}

// TakeSeries builds a new series containing the given row indices of s.
func TakeSeries(s dataframe.Series, rows []int) dataframe.Series {
	vals := make([]interface{}, len(rows))
	for i, r := range rows {
		vals[i] = s.Value(r)
	}
	return sameTypeSeries(s, s.Name(), vals)
}

// NewSeriesLike builds a series of the same concrete type as like,
// holding the given values.
func NewSeriesLike(like dataframe.Series, name string, vals []interface{}) dataframe.Series {
	return sameTypeSeries(like, name, vals)
}

func sameTypeSeries(like dataframe.Series, name string, vals []interface{}) dataframe.Series {
	switch SeriesType(like) {
	case TypeInt64:
		return dataframe.NewSeriesInt64(name, nil, vals...)
	case TypeFloat64:
		return dataframe.NewSeriesFloat64(name, nil, vals...)
	case TypeString:
		return dataframe.NewSeriesString(name, nil, vals...)
	default:
		if sg, ok := like.(*dataframe.SeriesGeneric); ok && sg.NRows() > 0 {
			return dataframe.NewSeriesGeneric(name, sg.Value(0), nil, vals...)
		}
		return dataframe.NewSeriesGeneric(name, nil, nil, vals...)
	}
}

// AddColumn appends a Series to a DataFrame, replacing any column of the
// same name.
func AddColumn(df *dataframe.DataFrame, s dataframe.Series) error {
	if idx, err := df.NameToColumn(s.Name()); err == nil {
		df.Series[idx] = s
		return nil
	}
	return df.AddSeries(s, nil)
}
