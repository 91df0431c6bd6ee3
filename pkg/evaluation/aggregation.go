package evaluation

import (
	"fmt"
	"math"
	"sort"
)

// Statistic names accepted by an Aggregation.
const (
	StatMean         = "mean"
	StatMedian       = "median"
	StatSum          = "sum"
	StatMin          = "min"
	StatMax          = "max"
	StatCount        = "count"
	StatCountMissing = "countmissing"
	StatShMean       = "shmean"
)

// DefaultShift is the shift constant for the shifted geometric mean
// when the spec does not set one.
const DefaultShift = 1.0

// Aggregation reduces the non-missing values of one column within a
// filter group to a single number.
type Aggregation struct {
	Name    string  // display name; defaults to the statistic name
	Stat    string  // one of the Stat* constants
	ShiftBy float64 // shmean only
	Format  string  // numeric format for rendering, e.g. "%.1f"
}

// NewAggregation builds an aggregation and validates the statistic.
func NewAggregation(stat string, shiftBy float64) (Aggregation, error) {
	switch stat {
	case StatMean, StatMedian, StatSum, StatMin, StatMax,
		StatCount, StatCountMissing, StatShMean:
	default:
		return Aggregation{}, fmt.Errorf("%w: %s", ErrUnknownStatistic, stat)
	}
	if shiftBy <= 0 {
		shiftBy = DefaultShift
	}
	return Aggregation{Stat: stat, ShiftBy: shiftBy}, nil
}

// DisplayName returns the name used in aggregated column headers.
// shmean carries its shift so that "shmean(10)" and "shmean(1)" stay
// distinguishable.
func (a Aggregation) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.Stat == StatShMean && a.ShiftBy != DefaultShift {
		return fmt.Sprintf("%s(%g)", a.Stat, a.ShiftBy)
	}
	return a.Stat
}

// Apply reduces the given non-missing values. missingCount is the
// number of rows excluded as missing; only countmissing reads it.
// ok is false when the aggregate itself is undefined (no values).
func (a Aggregation) Apply(vals []float64, missingCount int) (float64, bool) {
	switch a.Stat {
	case StatCount:
		return float64(len(vals)), true
	case StatCountMissing:
		return float64(missingCount), true
	}

	if len(vals) == 0 {
		return 0, false
	}

	switch a.Stat {
	case StatMean:
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals)), true
	case StatMedian:
		sorted := make([]float64, len(vals))
		copy(sorted, vals)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 0 {
			return (sorted[mid-1] + sorted[mid]) / 2, true
		}
		return sorted[mid], true
	case StatSum:
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum, true
	case StatMin:
		min := vals[0]
		for _, v := range vals[1:] {
			if v < min {
				min = v
			}
		}
		return min, true
	case StatMax:
		max := vals[0]
		for _, v := range vals[1:] {
			if v > max {
				max = v
			}
		}
		return max, true
	case StatShMean:
		return shiftedGeoMean(vals, a.ShiftBy)
	}
	return 0, false
}

// shiftedGeoMean adds the shift to every value, takes the geometric
// mean, and subtracts the shift again. The log-domain sum keeps large
// products from overflowing. Shifted values at or below zero make the
// aggregate undefined.
func shiftedGeoMean(vals []float64, shift float64) (float64, bool) {
	var logSum float64
	for _, v := range vals {
		shifted := v + shift
		if shifted <= 0 {
			return 0, false
		}
		logSum += math.Log(shifted)
	}
	return math.Exp(logSum/float64(len(vals))) - shift, true
}

// AggregationSpec binds an aggregation to the column it reduces.
type AggregationSpec struct {
	Column string
	Aggregation
}

// ColumnHeader returns the aggregated table column name for this spec,
// e.g. "SolvingTime_shmean".
func (s AggregationSpec) ColumnHeader() string {
	return s.Column + "_" + s.DisplayName()
}
