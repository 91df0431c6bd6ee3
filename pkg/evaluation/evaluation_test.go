package evaluation

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/leoneifler/ipet/internal/testutil"
	"github.com/leoneifler/ipet/pkg/experiment"
	"github.com/leoneifler/ipet/pkg/frame"
)

// twoSettingExperiment builds an experiment with a "default" and a
// "fast" testrun. Instance p3 only exists in the fast run.
func twoSettingExperiment(t *testing.T) *experiment.Experiment {
	t.Helper()
	exp := experiment.New()

	def := dataframe.NewDataFrame(
		dataframe.NewSeriesString("ProblemName", nil, "p1", "p2"),
		dataframe.NewSeriesString("Status", nil, "solved", "solved"),
		dataframe.NewSeriesFloat64("SolvingTime", nil, 5.0, 100.0),
		dataframe.NewSeriesFloat64("TimeLimit", nil, 3600.0, 3600.0),
	)
	fast := dataframe.NewDataFrame(
		dataframe.NewSeriesString("ProblemName", nil, "p1", "p3"),
		dataframe.NewSeriesString("Status", nil, "solved", "solved"),
		dataframe.NewSeriesFloat64("SolvingTime", nil, 10.0, 7.0),
		dataframe.NewSeriesFloat64("TimeLimit", nil, 3600.0, 3600.0),
	)

	if err := exp.AddTestRun(&experiment.TestRun{Settings: "default", Data: def}); err != nil {
		t.Fatalf("add default run: %v", err)
	}
	if err := exp.AddTestRun(&experiment.TestRun{Settings: "fast", Data: fast}); err != nil {
		t.Fatalf("add fast run: %v", err)
	}
	return exp
}

func cellAt(t *testing.T, df *dataframe.DataFrame, column string, row int) (float64, bool) {
	t.Helper()
	s, ok := frame.Column(df, column)
	if !ok {
		t.Fatalf("column %s not in table (have %v)", column, frame.ColumnNames(df))
	}
	return frame.Float64At(s, row)
}

// aggCell finds the aggregated table cell for one (group, setting) row.
func aggCell(t *testing.T, df *dataframe.DataFrame, group, setting, column string) (float64, bool) {
	t.Helper()
	groups, _ := frame.Column(df, "Group")
	settings, _ := frame.Column(df, "Settings")
	for i := 0; i < frame.NRows(df); i++ {
		g, _ := frame.StringAt(groups, i)
		s, _ := frame.StringAt(settings, i)
		if g == group && s == setting {
			return cellAt(t, df, column, i)
		}
	}
	t.Fatalf("no aggregated row for group %s setting %s", group, setting)
	return 0, false
}

func TestEvaluation_Pipeline(t *testing.T) {
	exp := twoSettingExperiment(t)

	ev := NewEvaluation()
	mean, _ := NewAggregation(StatMean, 0)
	count, _ := NewAggregation(StatCount, 0)
	if err := ev.AddColumn(&Column{Name: "T", DataKey: "SolvingTime", Comp: "quot",
		Aggregations: []Aggregation{mean, count}}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if err := ev.AddFilterGroup(NewFilterGroup("all")); err != nil {
		t.Fatalf("add group: %v", err)
	}

	instance, agg, err := ev.Evaluate(exp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	// Instance-wise table: one row per instance, settings pivoted.
	if n := frame.NRows(instance); n != 3 {
		t.Fatalf("expected 3 instance rows, got %d", n)
	}
	names, _ := frame.Column(instance, "ProblemName")
	for i, want := range []string{"p1", "p2", "p3"} {
		if got, _ := frame.StringAt(names, i); got != want {
			t.Errorf("instance row %d: expected %s, got %s", i, want, got)
		}
	}

	// p1: fast 10 vs default 5 gives a quotient of 2.
	if q, ok := cellAt(t, instance, "fast:TQ", 0); !ok || q != 2.0 {
		t.Errorf("p1 fast quotient: expected 2.0, got %g (ok=%v)", q, ok)
	}
	// p3 has no baseline row, so its quotient is missing.
	if _, ok := cellAt(t, instance, "fast:TQ", 2); ok {
		t.Error("p3 fast quotient: expected missing")
	}

	// Aggregated table: means per (group, setting) plus the quotient.
	if v, ok := aggCell(t, agg, "all", "default", "T_mean"); !ok || v != 52.5 {
		t.Errorf("default mean: expected 52.5, got %g (ok=%v)", v, ok)
	}
	if v, ok := aggCell(t, agg, "all", "fast", "T_mean"); !ok || v != 8.5 {
		t.Errorf("fast mean: expected 8.5, got %g (ok=%v)", v, ok)
	}
	if v, ok := aggCell(t, agg, "all", "fast", "T_meanQ"); !ok || v != 8.5/52.5 {
		t.Errorf("fast mean quotient: expected %g, got %g (ok=%v)", 8.5/52.5, v, ok)
	}
	if v, ok := aggCell(t, agg, "all", "default", "T_meanQ"); !ok || v != 1.0 {
		t.Errorf("default mean quotient: expected 1.0, got %g (ok=%v)", v, ok)
	}
	if v, ok := aggCell(t, agg, "all", "fast", "_count_"); !ok || v != 2 {
		t.Errorf("fast count: expected 2, got %g (ok=%v)", v, ok)
	}
}

func TestEvaluation_DerivedColumn(t *testing.T) {
	exp := experiment.New()
	run := testutil.MakeTestRunFrame()
	if err := exp.AddTestRun(&experiment.TestRun{Settings: "default", Data: run}); err != nil {
		t.Fatalf("add run: %v", err)
	}

	ev := NewEvaluation()
	if err := ev.AddColumn(&Column{Name: "NPS", Formula: "Nodes / SolvingTime"}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if err := ev.AddFilterGroup(NewFilterGroup("all")); err != nil {
		t.Fatalf("add group: %v", err)
	}

	if _, _, err := ev.Evaluate(exp); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if v, ok := cellAt(t, ev.longTable, "NPS", 0); !ok || v != 10 {
		t.Errorf("NPS row 0: expected 10, got %g (ok=%v)", v, ok)
	}
}

func TestEvaluation_DerivedColumnChain(t *testing.T) {
	exp := twoSettingExperiment(t)

	ev := NewEvaluation()
	// Declared out of dependency order on purpose.
	if err := ev.AddColumn(&Column{Name: "double2", Formula: "double * 2"}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if err := ev.AddColumn(&Column{Name: "double", Formula: "SolvingTime * 2"}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if err := ev.AddFilterGroup(NewFilterGroup("all")); err != nil {
		t.Fatalf("add group: %v", err)
	}

	if _, _, err := ev.Evaluate(exp); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v, ok := cellAt(t, ev.longTable, "double2", 0); !ok || v != 20 {
		t.Errorf("double2 row 0: expected 20, got %g (ok=%v)", v, ok)
	}
}

func TestEvaluation_CyclicColumns(t *testing.T) {
	exp := twoSettingExperiment(t)

	ev := NewEvaluation()
	if err := ev.AddColumn(&Column{Name: "A", Formula: "B + 1"}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if err := ev.AddColumn(&Column{Name: "B", Formula: "A + 1"}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if err := ev.AddFilterGroup(NewFilterGroup("all")); err != nil {
		t.Fatalf("add group: %v", err)
	}

	if _, _, err := ev.Evaluate(exp); !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestEvaluation_MissingIndexColumn(t *testing.T) {
	exp := twoSettingExperiment(t)

	ev := NewEvaluation()
	ev.SetIndex("NoSuchColumn", "Settings")
	if err := ev.AddFilterGroup(NewFilterGroup("all")); err != nil {
		t.Fatalf("add group: %v", err)
	}

	if _, _, err := ev.Evaluate(exp); !errors.Is(err, ErrMissingIndexColumn) {
		t.Errorf("expected ErrMissingIndexColumn, got %v", err)
	}
}

func TestEvaluation_DuplicateGroup(t *testing.T) {
	ev := NewEvaluation()
	if err := ev.AddFilterGroup(NewFilterGroup("g")); err != nil {
		t.Fatalf("add group: %v", err)
	}
	if err := ev.AddFilterGroup(NewFilterGroup("g")); !errors.Is(err, ErrDuplicateGroup) {
		t.Errorf("expected ErrDuplicateGroup, got %v", err)
	}
}

func TestEvaluation_NotEvaluated(t *testing.T) {
	ev := NewEvaluation()
	if _, err := ev.InstanceGroupData("g"); !errors.Is(err, ErrNotEvaluated) {
		t.Errorf("expected ErrNotEvaluated, got %v", err)
	}
	if _, err := ev.AggregatedTable(); !errors.Is(err, ErrNotEvaluated) {
		t.Errorf("expected ErrNotEvaluated, got %v", err)
	}
}

func TestEvaluation_MeanExcludesMissing(t *testing.T) {
	exp := experiment.New()
	run := dataframe.NewDataFrame(
		dataframe.NewSeriesString("ProblemName", nil, "p1", "p2", "p3"),
		dataframe.NewSeriesString("Status", nil, "solved", "solved", "solved"),
		dataframe.NewSeriesFloat64("SolvingTime", nil, 1.0, 1.0, 1.0),
		dataframe.NewSeriesFloat64("TimeLimit", nil, 3600.0, 3600.0, 3600.0),
		dataframe.NewSeriesFloat64("Nodes", nil, 2.0, nil, 4.0),
	)
	if err := exp.AddTestRun(&experiment.TestRun{Settings: "default", Data: run}); err != nil {
		t.Fatalf("add run: %v", err)
	}

	ev := NewEvaluation()
	mean, _ := NewAggregation(StatMean, 0)
	count, _ := NewAggregation(StatCount, 0)
	if err := ev.AddColumn(&Column{DataKey: "Nodes", Aggregations: []Aggregation{mean, count}}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if err := ev.AddFilterGroup(NewFilterGroup("all")); err != nil {
		t.Fatalf("add group: %v", err)
	}

	_, agg, err := ev.Evaluate(exp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v, ok := aggCell(t, agg, "all", "default", "Nodes_mean"); !ok || v != 3 {
		t.Errorf("mean: expected 3, got %g (ok=%v)", v, ok)
	}
	if v, ok := aggCell(t, agg, "all", "default", "Nodes_count"); !ok || v != 2 {
		t.Errorf("count: expected 2, got %g (ok=%v)", v, ok)
	}
}

func TestEvaluation_Deterministic(t *testing.T) {
	exp := twoSettingExperiment(t)

	ev := NewEvaluation()
	mean, _ := NewAggregation(StatMean, 0)
	if err := ev.AddColumn(&Column{Name: "T", DataKey: "SolvingTime", Comp: "quot",
		Aggregations: []Aggregation{mean}}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if err := ev.AddFilterGroup(NewFilterGroup("all")); err != nil {
		t.Fatalf("add group: %v", err)
	}

	inst1, agg1, err := ev.Evaluate(exp)
	if err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	inst2, agg2, err := ev.Evaluate(exp)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}

	assertFramesEqual(t, inst1, inst2)
	assertFramesEqual(t, agg1, agg2)
}

func assertFramesEqual(t *testing.T, a, b *dataframe.DataFrame) {
	t.Helper()
	aCols := frame.ColumnNames(a)
	bCols := frame.ColumnNames(b)
	if len(aCols) != len(bCols) {
		t.Fatalf("column count differs: %v vs %v", aCols, bCols)
	}
	for i := range aCols {
		if aCols[i] != bCols[i] {
			t.Fatalf("column %d differs: %s vs %s", i, aCols[i], bCols[i])
		}
	}
	if frame.NRows(a) != frame.NRows(b) {
		t.Fatalf("row count differs: %d vs %d", frame.NRows(a), frame.NRows(b))
	}
	for _, name := range aCols {
		sa, _ := frame.Column(a, name)
		sb, _ := frame.Column(b, name)
		for i := 0; i < frame.NRows(a); i++ {
			va, vb := sa.Value(i), sb.Value(i)
			if va != vb {
				t.Errorf("column %s row %d differs: %v vs %v", name, i, va, vb)
			}
		}
	}
}

func TestEvaluation_OptAuto(t *testing.T) {
	exp := twoSettingExperiment(t)

	ev := NewEvaluation()
	ev.SetOptAutoBaseline(0, 0)
	if err := ev.AddColumn(&Column{Name: "T", DataKey: "SolvingTime", Comp: "quot"}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if err := ev.AddFilterGroup(NewFilterGroup("all")); err != nil {
		t.Fatalf("add group: %v", err)
	}

	instance, _, err := ev.Evaluate(exp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	// p1 runs in 5s under default and 10s under fast; the synthetic
	// setting takes the minimum solving time.
	if v, ok := cellAt(t, instance, OptAuto+":T", 0); !ok || v != 5 {
		t.Errorf("opt auto time for p1: expected 5, got %g (ok=%v)", v, ok)
	}
	// Quotients are computed against the synthetic baseline.
	if q, ok := cellAt(t, instance, "fast:TQ", 0); !ok || q != 2.0 {
		t.Errorf("fast quotient for p1: expected 2.0, got %g (ok=%v)", q, ok)
	}
}

func TestEvaluation_OptAutoColumnMinima(t *testing.T) {
	exp := experiment.New()
	def := dataframe.NewDataFrame(
		dataframe.NewSeriesString("ProblemName", nil, "p1"),
		dataframe.NewSeriesString("Status", nil, "ok"),
		dataframe.NewSeriesFloat64("SolvingTime", nil, 5.0),
		dataframe.NewSeriesFloat64("TimeLimit", nil, 3600.0),
		dataframe.NewSeriesFloat64("Nodes", nil, 1000.0),
	)
	slow := dataframe.NewDataFrame(
		dataframe.NewSeriesString("ProblemName", nil, "p1"),
		dataframe.NewSeriesString("Status", nil, "timeout"),
		dataframe.NewSeriesFloat64("SolvingTime", nil, 10.0),
		dataframe.NewSeriesFloat64("TimeLimit", nil, 1800.0),
		dataframe.NewSeriesFloat64("Nodes", nil, 10.0),
	)
	if err := exp.AddTestRun(&experiment.TestRun{Settings: "default", Data: def}); err != nil {
		t.Fatalf("add default run: %v", err)
	}
	if err := exp.AddTestRun(&experiment.TestRun{Settings: "slow", Data: slow}); err != nil {
		t.Fatalf("add slow run: %v", err)
	}

	ev := NewEvaluation()
	ev.SetOptAutoBaseline(0, 0)
	if err := ev.AddColumn(&Column{Name: "N", DataKey: "Nodes"}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if err := ev.AddColumn(&Column{Name: "T", DataKey: "SolvingTime"}); err != nil {
		t.Fatalf("add column: %v", err)
	}

	instance, _, err := ev.Evaluate(exp)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	// Each synthetic cell is the column-wise minimum over the
	// instance's runs, not a copy of the fastest run.
	if v, ok := cellAt(t, instance, OptAuto+":N", 0); !ok || v != 10 {
		t.Errorf("opt auto nodes: expected 10, got %g (ok=%v)", v, ok)
	}
	if v, ok := cellAt(t, instance, OptAuto+":T", 0); !ok || v != 5 {
		t.Errorf("opt auto time: expected 5, got %g (ok=%v)", v, ok)
	}
	// The best status among the runs wins and the time limit averages.
	long := ev.longTable
	st, _ := frame.Column(long, "Status")
	if v, ok := frame.StringAt(st, frame.NRows(long)-1); !ok || v != "ok" {
		t.Errorf("opt auto status: expected ok, got %q (ok=%v)", v, ok)
	}
	lim, _ := frame.Column(long, "TimeLimit")
	if v, ok := frame.Float64At(lim, frame.NRows(long)-1); !ok || v != 2700 {
		t.Errorf("opt auto time limit: expected 2700, got %g (ok=%v)", v, ok)
	}
}

func TestEvaluation_RetainedGroupTables(t *testing.T) {
	exp := twoSettingExperiment(t)

	ev := NewEvaluation()
	solved := NewFilterGroup("fastruns")
	solved.AddFilter(mustFilter(t, "SolvingTime", OpLt, "50", ""))
	if err := ev.AddFilterGroup(solved); err != nil {
		t.Fatalf("add group: %v", err)
	}

	if _, _, err := ev.Evaluate(exp); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	sub, err := ev.InstanceGroupData("fastruns")
	if err != nil {
		t.Fatalf("group data: %v", err)
	}
	// Rows with SolvingTime < 50: p1/default (5), p1/fast (10), p3/fast (7).
	if n := frame.NRows(sub); n != 3 {
		t.Errorf("expected 3 member rows, got %d", n)
	}

	if _, err := ev.InstanceGroupData("nosuch"); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("expected ErrUnknownGroup, got %v", err)
	}
}

func TestAddBookkeeping(t *testing.T) {
	df := dataframe.NewDataFrame(
		dataframe.NewSeriesString("ProblemName", nil, "p1", "p2", "p3", "p4", "p5"),
		dataframe.NewSeriesString("Status", nil, "solved", "timeout", "fail_readerror", "abort", nil),
		dataframe.NewSeriesFloat64("SolvingTime", nil, 10.0, 3600.0, 1.0, 1.0, nil),
		dataframe.NewSeriesFloat64("TimeLimit", nil, 3600.0, 3600.0, 3600.0, 3600.0, 3600.0),
	)
	if err := addBookkeeping(df); err != nil {
		t.Fatalf("bookkeeping: %v", err)
	}

	expect := map[string][]float64{
		ColSolved:  {1, 0, 0, 0, 0},
		ColTimeout: {0, 1, 0, 0, 0},
		ColFail:    {0, 0, 1, 0, 0},
		ColAbort:   {0, 0, 0, 1, 0},
		ColUnknown: {0, 0, 0, 0, 1},
		ColCount:   {1, 1, 1, 1, 1},
	}
	for name, want := range expect {
		s, ok := frame.Column(df, name)
		if !ok {
			t.Fatalf("missing column %s", name)
		}
		for i, w := range want {
			if v, _ := frame.Float64At(s, i); v != w {
				t.Errorf("%s row %d: expected %g, got %g", name, i, w, v)
			}
		}
	}
}

func TestEvaluation_MissingBaselineWarns(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	exp := twoSettingExperiment(t)
	ev := NewEvaluation()
	if err := ev.AddColumn(&Column{Name: "T", DataKey: "SolvingTime", Comp: "quot"}); err != nil {
		t.Fatalf("add column: %v", err)
	}

	if _, _, err := ev.Evaluate(exp); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	// p3 only exists in the fast run, so its baseline lookup fails and
	// gets logged with the sentinel instead of aborting the run.
	out := buf.String()
	if !strings.Contains(out, ErrBaselineNotFound.Error()) {
		t.Errorf("expected a %q warning, got %q", ErrBaselineNotFound, out)
	}
	if !strings.Contains(out, "p3") {
		t.Errorf("expected the instance name in the warning, got %q", out)
	}
}
