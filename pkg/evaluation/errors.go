package evaluation

import "errors"

// Error definitions
var (
	ErrSpecParse          = errors.New("malformed evaluation spec")
	ErrDuplicateGroup     = errors.New("duplicate filter group")
	ErrUnknownGroup       = errors.New("unknown filter group")
	ErrCyclicDependency   = errors.New("cyclic dependency")
	ErrMissingIndexColumn = errors.New("index column not in table")
	ErrBaselineNotFound   = errors.New("baseline row not found")
	ErrUnknownStatistic   = errors.New("unknown aggregation statistic")
	ErrBadFilterOperator  = errors.New("unknown filter operator")
	ErrNotEvaluated       = errors.New("no evaluation has been run")
)
