// Package experiment holds the collection of testrun records an
// evaluation runs over. A testrun is one table of per-instance rows
// collected for one solver setting; the experiment concatenates all
// testruns into a single data table.
package experiment

import (
	"errors"
	"fmt"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/leoneifler/ipet/pkg/frame"
)

// Column names every testrun table is expected to provide.
const (
	ColProblemName = "ProblemName"
	ColSettings    = "Settings"
	ColStatus      = "Status"
	ColSolvingTime = "SolvingTime"
	ColTimeLimit   = "TimeLimit"
)

// Error definitions
var (
	ErrNoTestRuns    = errors.New("experiment has no testruns")
	ErrMissingColumn = errors.New("testrun table is missing a required column")
	ErrRaggedTables  = errors.New("testrun tables have incompatible columns")
)

// TestRun is one parsed solver run: a settings label and a table with
// one row per problem instance.
type TestRun struct {
	Settings string
	Data     *dataframe.DataFrame
}

// Experiment is the collection of testruns to evaluate. The core reads
// it, never mutates it.
type Experiment struct {
	runs []*TestRun
}

// New creates an empty experiment.
func New() *Experiment {
	return &Experiment{}
}

// AddTestRun adds a testrun to the experiment. The table must carry a
// ProblemName column; a Settings column is synthesized from the label
// if absent.
func (e *Experiment) AddTestRun(tr *TestRun) error {
	if !frame.HasColumn(tr.Data, ColProblemName) {
		return fmt.Errorf("%w: %s (testrun %s)", ErrMissingColumn, ColProblemName, tr.Settings)
	}
	if !frame.HasColumn(tr.Data, ColSettings) {
		n := frame.NRows(tr.Data)
		vals := make([]interface{}, n)
		for i := range vals {
			vals[i] = tr.Settings
		}
		if err := tr.Data.AddSeries(dataframe.NewSeriesString(ColSettings, nil, vals...), nil); err != nil {
			return err
		}
	}
	e.runs = append(e.runs, tr)
	return nil
}

// TestRuns returns the testruns in insertion order.
func (e *Experiment) TestRuns() []*TestRun {
	return e.runs
}

// DataKeys returns the union of raw column names over all testruns, in
// first appearance order.
func (e *Experiment) DataKeys() []string {
	var names []string
	seen := make(map[string]bool)
	for _, tr := range e.runs {
		for _, name := range frame.ColumnNames(tr.Data) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// DataTable concatenates all testrun tables along the rows. Columns are
// the union over all testruns; a testrun lacking a column contributes
// missing values for it. Row order is testrun insertion order, then the
// testrun's own row order.
func (e *Experiment) DataTable() (*dataframe.DataFrame, error) {
	if len(e.runs) == 0 {
		return nil, ErrNoTestRuns
	}

	columns := e.DataKeys()
	total := 0
	for _, tr := range e.runs {
		total += frame.NRows(tr.Data)
	}

	series := make([]dataframe.Series, 0, len(columns))
	for _, name := range columns {
		vals := make([]interface{}, 0, total)
		var like dataframe.Series
		for _, tr := range e.runs {
			s, ok := frame.Column(tr.Data, name)
			n := frame.NRows(tr.Data)
			if !ok {
				for i := 0; i < n; i++ {
					vals = append(vals, nil)
				}
				continue
			}
			if like == nil {
				like = s
			}
			for i := 0; i < n; i++ {
				vals = append(vals, s.Value(i))
			}
		}
		if like == nil {
			return nil, fmt.Errorf("%w: column %s", ErrRaggedTables, name)
		}
		series = append(series, frame.NewSeriesLike(like, name, vals))
	}

	return dataframe.NewDataFrame(series...), nil
}
