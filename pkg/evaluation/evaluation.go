// Package evaluation implements the benchmark evaluation engine: it
// interprets a declarative specification of columns, filter groups and
// aggregations, applies it to an experiment's testrun data, and
// produces an instance-wise table and a per-group aggregated table.
package evaluation

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/leoneifler/ipet/pkg/experiment"
	"github.com/leoneifler/ipet/pkg/frame"
	"github.com/leoneifler/ipet/pkg/keys"
)

// Defaults applied by NewEvaluation.
const (
	DefaultGroupKey      = experiment.ColSettings
	DefaultGroupName     = "default"
	DefaultCompareFormat = "%.3f"
)

// OptAuto is the synthetic settings label for the per-instance optimal
// virtual setting.
const OptAuto = "OPT. AUTO"

// Bookkeeping columns derived from each instance's status and timing,
// always part of the aggregated table's general part.
const (
	ColSolved  = "_solved_"
	ColTimeout = "_time_"
	ColFail    = "_fail_"
	ColAbort   = "_abort_"
	ColUnknown = "_unkn_"
	ColCount   = "_count_"
)

var bookkeepingColumns = []string{ColSolved, ColTimeout, ColFail, ColAbort, ColUnknown, ColCount}

// Evaluation is the orchestrator. Build it from a parsed evaluation
// file (or programmatically), optionally override index, default group and
// compare format, then run Evaluate over an experiment. The tables of
// the last run stay available until the next Evaluate call overwrites
// them wholesale.
type Evaluation struct {
	Columns []*Column
	Groups  []*FilterGroup

	groupKey      string
	defaultGroup  string
	compareFormat string
	indexLevels   []string
	indexSplit    int

	optAuto       bool
	optAutoAbsTol float64
	optAutoRelTol float64

	evaluated     bool
	longTable     *dataframe.DataFrame
	instanceTable *dataframe.DataFrame
	aggTable      *dataframe.DataFrame
	groupInstance map[string]*dataframe.DataFrame
	groupAgg      map[string]*dataframe.DataFrame
	formats       map[string]string
}

// NewEvaluation creates an evaluation with the standard defaults:
// grouped by Settings, compared against the "default" setting, indexed
// by (ProblemName, Settings) with the settings level pivoted into
// column headers.
func NewEvaluation() *Evaluation {
	return &Evaluation{
		groupKey:      DefaultGroupKey,
		defaultGroup:  DefaultGroupName,
		compareFormat: DefaultCompareFormat,
		indexLevels:   []string{experiment.ColProblemName, DefaultGroupKey},
		indexSplit:    1,
	}
}

// AddColumn appends a column declaration. Formulas are parsed here so
// that a malformed formula fails before any evaluation runs.
func (e *Evaluation) AddColumn(c *Column) error {
	if err := c.compile(); err != nil {
		return err
	}
	e.Columns = append(e.Columns, c)
	return nil
}

// AddFilterGroup appends an active filter group. Group names must be
// unique.
func (e *Evaluation) AddFilterGroup(g *FilterGroup) error {
	for _, have := range e.Groups {
		if have.Name == g.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateGroup, g.Name)
		}
	}
	e.Groups = append(e.Groups, g)
	return nil
}

// SetIndex overrides the index levels of the instance-wise table.
func (e *Evaluation) SetIndex(levels ...string) {
	e.indexLevels = levels
}

// SetIndexSplit sets how many leading index levels stay row levels;
// the remaining levels are pivoted into column headers. Zero pivots
// every level; a negative value disables the pivot.
func (e *Evaluation) SetIndexSplit(pos int) {
	e.indexSplit = pos
}

// SetDefaultGroup overrides the baseline settings value used for all
// comparison columns.
func (e *Evaluation) SetDefaultGroup(name string) {
	e.defaultGroup = name
	e.optAuto = name == OptAuto
}

// SetOptAutoBaseline enables the synthetic per-instance optimal
// setting and makes it the comparison baseline. Nonzero abstol and
// reltol restrict the column-wise minima to the runs whose solving
// time lies within that tolerance of the instance's best time.
func (e *Evaluation) SetOptAutoBaseline(abstol, reltol float64) {
	e.optAuto = true
	e.optAutoAbsTol = abstol
	e.optAutoRelTol = reltol
	e.defaultGroup = OptAuto
}

// SetCompareColumnFormat overrides the numeric format applied to all
// comparison ("Q") columns.
func (e *Evaluation) SetCompareColumnFormat(format string) {
	e.compareFormat = format
}

// ActiveFilterGroups returns the filter groups in declaration order.
func (e *Evaluation) ActiveFilterGroups() []*FilterGroup {
	groups := make([]*FilterGroup, len(e.Groups))
	copy(groups, e.Groups)
	return groups
}

// Evaluate runs the full pipeline over the experiment: enrich the
// concatenated data table with every declared column, append the
// bookkeeping and comparison columns, then filter and aggregate per
// group. It returns the instance-wise table and the aggregated table;
// the per-group sub-tables are retained on the receiver.
func (e *Evaluation) Evaluate(exp *experiment.Experiment) (*dataframe.DataFrame, *dataframe.DataFrame, error) {
	df, err := exp.DataTable()
	if err != nil {
		return nil, nil, err
	}

	cols, err := e.effectiveColumns(exp)
	if err != nil {
		return nil, nil, err
	}
	ordered, err := orderColumns(cols)
	if err != nil {
		return nil, nil, err
	}
	for _, c := range ordered {
		s, err := c.materialize(df)
		if err != nil {
			return nil, nil, err
		}
		if err := frame.AddColumn(df, s); err != nil {
			return nil, nil, err
		}
	}

	if e.optAuto {
		df = e.appendOptAutoRows(df)
	}
	if err := addBookkeeping(df); err != nil {
		return nil, nil, err
	}

	formats := make(map[string]string)
	for _, c := range cols {
		if c.FormatStr != "" {
			formats[c.DisplayName()] = c.FormatStr
		}
	}
	e.addCompareColumns(df, cols, formats)

	instance, headerSource, err := pivotTable(df, e.indexLevels, e.indexSplit)
	if err != nil {
		return nil, nil, err
	}
	for header, source := range headerSource {
		if f, ok := formats[source]; ok {
			formats[header] = f
		}
	}

	agg, groupAgg, groupInstance, err := e.aggregate(df, cols, formats)
	if err != nil {
		return nil, nil, err
	}

	e.longTable = df
	e.instanceTable = instance
	e.aggTable = agg
	e.groupInstance = groupInstance
	e.groupAgg = groupAgg
	e.formats = formats
	e.evaluated = true
	return instance, agg, nil
}

// InstanceWiseTable returns the last run's instance-wise table.
func (e *Evaluation) InstanceWiseTable() (*dataframe.DataFrame, error) {
	if !e.evaluated {
		return nil, ErrNotEvaluated
	}
	return e.instanceTable, nil
}

// AggregatedTable returns the last run's aggregated table.
func (e *Evaluation) AggregatedTable() (*dataframe.DataFrame, error) {
	if !e.evaluated {
		return nil, ErrNotEvaluated
	}
	return e.aggTable, nil
}

// InstanceGroupData returns the filtered instance-wise sub-table of
// one group from the last run.
func (e *Evaluation) InstanceGroupData(group string) (*dataframe.DataFrame, error) {
	if !e.evaluated {
		return nil, ErrNotEvaluated
	}
	df, ok := e.groupInstance[group]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}
	return df, nil
}

// AggregatedGroupData returns the aggregated sub-table of one group
// from the last run.
func (e *Evaluation) AggregatedGroupData(group string) (*dataframe.DataFrame, error) {
	if !e.evaluated {
		return nil, ErrNotEvaluated
	}
	df, ok := e.groupAgg[group]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}
	return df, nil
}

// Formats returns the per-column numeric format strings of the last
// run, for format-aware rendering.
func (e *Evaluation) Formats() map[string]string {
	return e.formats
}

// effectiveColumns expands regex column declarations against the
// experiment's raw keys and registers every column in a fresh key
// registry, catching duplicate names.
func (e *Evaluation) effectiveColumns(exp *experiment.Experiment) ([]*Column, error) {
	reg := keys.NewRegistry()
	for _, name := range exp.DataKeys() {
		if err := reg.Register(keys.RawDef(name, ""), false); err != nil {
			return nil, err
		}
	}

	var cols []*Column
	declared := make(map[string]bool)
	add := func(c *Column) error {
		name := c.DisplayName()
		if declared[name] {
			return fmt.Errorf("%w: column %s", keys.ErrDuplicateKey, name)
		}
		def, err := c.keyDefinition()
		if err != nil {
			return err
		}
		// A declared column may shadow a raw experiment key of the
		// same name, but never another declared column.
		if err := reg.Register(def, reg.Has(name)); err != nil {
			return err
		}
		declared[name] = true
		cols = append(cols, c)
		return nil
	}

	for _, c := range e.Columns {
		if c.Regex == "" {
			if err := add(c); err != nil {
				return nil, err
			}
			continue
		}
		matches, err := reg.MatchingKeys(c.Regex)
		if err != nil {
			return nil, err
		}
		for name := range matches {
			if declared[name] {
				continue
			}
			expanded := &Column{
				DataKey:      name,
				FormatStr:    c.FormatStr,
				NaNRep:       c.NaNRep,
				MinVal:       c.MinVal,
				MaxVal:       c.MaxVal,
				Comp:         c.Comp,
				Aggregations: c.Aggregations,
			}
			if err := add(expanded); err != nil {
				return nil, err
			}
		}
	}
	return cols, nil
}

// orderColumns topologically orders the declared columns so every
// formula sees its dependencies materialized first. Dependencies on
// undeclared names are assumed to be raw table columns and resolved at
// materialization time.
func orderColumns(cols []*Column) ([]*Column, error) {
	byName := make(map[string]*Column, len(cols))
	for _, c := range cols {
		byName[c.DisplayName()] = c
	}

	var ordered []*Column
	done := make(map[string]bool)
	onPath := make(map[string]bool)
	var stack []string

	var visit func(c *Column) error
	visit = func(c *Column) error {
		name := c.DisplayName()
		if done[name] {
			return nil
		}
		if onPath[name] {
			cycle := append(append([]string{}, stack...), name)
			return fmt.Errorf("%w: column %s", ErrCyclicDependency, strings.Join(cycle, " -> "))
		}
		onPath[name] = true
		stack = append(stack, name)
		for _, dep := range c.Dependencies() {
			if next, ok := byName[dep]; ok {
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		delete(onPath, name)
		done[name] = true
		ordered = append(ordered, c)
		return nil
	}

	for _, c := range cols {
		if err := visit(c); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// addBookkeeping appends the status columns. Exactly one of the five
// outcome columns is 1 per row; _count_ is always 1 so that its sum is
// the cell size.
func addBookkeeping(df *dataframe.DataFrame) error {
	n := frame.NRows(df)
	status, _ := frame.Column(df, experiment.ColStatus)
	times, _ := frame.Column(df, experiment.ColSolvingTime)
	limits, _ := frame.Column(df, experiment.ColTimeLimit)

	out := make(map[string][]float64, len(bookkeepingColumns))
	for _, name := range bookkeepingColumns {
		out[name] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		st, stOK := frame.StringAt(status, i)
		t, tOK := frame.Float64At(times, i)
		lim, limOK := frame.Float64At(limits, i)

		switch {
		case stOK && strings.Contains(st, "fail"):
			out[ColFail][i] = 1
		case stOK && st == "abort":
			out[ColAbort][i] = 1
		case (stOK && st == "timeout") || (tOK && limOK && t >= lim):
			out[ColTimeout][i] = 1
		case !stOK || st == "unknown":
			out[ColUnknown][i] = 1
		default:
			out[ColSolved][i] = 1
		}
		out[ColCount][i] = 1
	}

	for _, name := range bookkeepingColumns {
		if err := frame.AddColumn(df, frame.NewFloat64Series(name, out[name], nil)); err != nil {
			return err
		}
	}
	return nil
}

// statusPriority orders status values from best to worst outcome. The
// synthetic row of an instance carries the best status any of its runs
// reached.
var statusPriority = []string{"ok", "solved", "timelimit", "timeout", "nodelimit", "memlimit", "unknown", "fail", "abort"}

// bestStatus picks the highest-priority status among the given rows,
// falling back to the first present value for unlisted statuses.
func bestStatus(s dataframe.Series, rows []int) interface{} {
	present := make(map[string]bool)
	var first interface{}
	for _, r := range rows {
		if v, ok := frame.StringAt(s, r); ok {
			present[v] = true
			if first == nil {
				first = v
			}
		}
	}
	for _, status := range statusPriority {
		if present[status] {
			return status
		}
	}
	return first
}

// appendOptAutoRows synthesizes, per instance, one row under the
// OptAuto settings label: the best status among the instance's runs,
// the minimum solving time, the mean time limit, and the column-wise
// minimum of every other numeric column. String columns carry their
// first present value. When tolerances are set, the minima of the
// non-reserved columns are taken over the runs whose solving time lies
// within abstol/reltol of the instance's best time.
func (e *Evaluation) appendOptAutoRows(df *dataframe.DataFrame) *dataframe.DataFrame {
	n := frame.NRows(df)
	names, _ := frame.Column(df, experiment.ColProblemName)
	times, _ := frame.Column(df, experiment.ColSolvingTime)

	byInstance := make(map[string][]int)
	var instances []string
	for i := 0; i < n; i++ {
		name, ok := frame.StringAt(names, i)
		if !ok {
			continue
		}
		if _, seen := byInstance[name]; !seen {
			instances = append(instances, name)
		}
		byInstance[name] = append(byInstance[name], i)
	}

	windows := make(map[string][]int, len(instances))
	for _, name := range instances {
		windows[name] = e.optAutoWindow(times, byInstance[name])
	}

	series := make([]dataframe.Series, len(df.Series))
	for c, s := range df.Series {
		vals := make([]interface{}, 0, n+len(instances))
		for i := 0; i < n; i++ {
			vals = append(vals, s.Value(i))
		}
		for _, name := range instances {
			vals = append(vals, e.optAutoCell(s, byInstance[name], windows[name], name))
		}
		series[c] = frame.NewSeriesLike(s, s.Name(), vals)
	}
	return dataframe.NewDataFrame(series...)
}

// optAutoWindow returns the instance rows whose solving time lies
// within the configured tolerance of the instance's best time. With
// zero tolerances every run qualifies.
func (e *Evaluation) optAutoWindow(times dataframe.Series, rows []int) []int {
	if e.optAutoAbsTol == 0 && e.optAutoRelTol == 0 {
		return rows
	}
	best, ok := minOver(times, rows)
	if !ok {
		return rows
	}
	bound := best*(1+e.optAutoRelTol) + e.optAutoAbsTol
	var in []int
	for _, r := range rows {
		if t, tOK := frame.Float64At(times, r); tOK && t <= bound {
			in = append(in, r)
		}
	}
	if len(in) == 0 {
		return rows
	}
	return in
}

// optAutoCell reduces one column over the runs of one instance.
func (e *Evaluation) optAutoCell(s dataframe.Series, rows, window []int, instance string) interface{} {
	switch s.Name() {
	case e.groupKey:
		return OptAuto
	case experiment.ColProblemName:
		return instance
	case experiment.ColStatus:
		return bestStatus(s, rows)
	case experiment.ColSolvingTime:
		if v, ok := minOver(s, rows); ok {
			return v
		}
		return nil
	case experiment.ColTimeLimit:
		var sum float64
		var cnt int
		for _, r := range rows {
			if v, ok := frame.Float64At(s, r); ok {
				sum += v
				cnt++
			}
		}
		if cnt == 0 {
			return nil
		}
		return sum / float64(cnt)
	}
	if frame.SeriesType(s) == frame.TypeString {
		for _, r := range window {
			if v, ok := frame.StringAt(s, r); ok {
				return v
			}
		}
		return nil
	}
	if v, ok := minOver(s, window); ok {
		return v
	}
	return nil
}

// minOver returns the minimum present value of the series over the
// given rows.
func minOver(s dataframe.Series, rows []int) (float64, bool) {
	min, found := 0.0, false
	for _, r := range rows {
		v, ok := frame.Float64At(s, r)
		if !ok {
			continue
		}
		if !found || v < min {
			min, found = v, true
		}
	}
	return min, found
}

// parseComp interprets a column's comparison request: "quot" for the
// plain per-instance quotient, "quot shift. by <x>" for a shifted one.
func parseComp(comp string) (shift float64, ok bool) {
	if !strings.HasPrefix(comp, "quot") {
		return 0, false
	}
	fields := strings.Fields(comp)
	if len(fields) > 1 {
		if v, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
			shift = v
		}
	}
	return shift, true
}

// addCompareColumns appends, per column with a comparison request, a
// "<name>Q" column holding the shifted quotient of the row's value
// against the default group's value for the same instance. A missing
// baseline row is logged and yields a missing quotient.
func (e *Evaluation) addCompareColumns(df *dataframe.DataFrame, cols []*Column, formats map[string]string) {
	n := frame.NRows(df)
	names, _ := frame.Column(df, experiment.ColProblemName)
	groupCol, _ := frame.Column(df, e.groupKey)

	// Baseline row per instance, first match in table order.
	baseline := make(map[string]int)
	for i := 0; i < n; i++ {
		g, _ := frame.StringAt(groupCol, i)
		if g != e.defaultGroup {
			continue
		}
		name, ok := frame.StringAt(names, i)
		if !ok {
			continue
		}
		if _, seen := baseline[name]; !seen {
			baseline[name] = i
		}
	}

	warned := make(map[string]bool)
	for _, c := range cols {
		shift, ok := parseComp(c.Comp)
		if !ok {
			continue
		}
		src, ok := frame.Column(df, c.DisplayName())
		if !ok {
			continue
		}

		vals := make([]float64, n)
		present := make([]bool, n)
		for i := 0; i < n; i++ {
			v, vOK := frame.Float64At(src, i)
			if !vOK {
				continue
			}
			name, nameOK := frame.StringAt(names, i)
			if !nameOK {
				continue
			}
			b, found := baseline[name]
			if !found {
				if !warned[name] {
					warned[name] = true
					slog.Warn("comparison value left missing",
						"err", ErrBaselineNotFound, "instance", name, "baseline", e.defaultGroup)
				}
				continue
			}
			base, baseOK := frame.Float64At(src, b)
			if !baseOK || base+shift == 0 {
				continue
			}
			vals[i] = (v + shift) / (base + shift)
			present[i] = true
		}

		q := c.DisplayName() + "Q"
		frame.AddColumn(df, frame.NewFloat64Series(q, vals, present))
		formats[q] = e.compareFormat
	}
}

// aggregationSpecs merges the column-level aggregations, applied to
// every group, with the per-group specs, deduplicated by header in
// first appearance order.
func (e *Evaluation) aggregationSpecs(cols []*Column) []AggregationSpec {
	var specs []AggregationSpec
	seen := make(map[string]bool)
	add := func(s AggregationSpec) {
		h := s.ColumnHeader()
		if !seen[h] {
			seen[h] = true
			specs = append(specs, s)
		}
	}
	for _, c := range cols {
		for _, a := range c.Aggregations {
			add(AggregationSpec{Column: c.DisplayName(), Aggregation: a})
		}
	}
	for _, g := range e.Groups {
		for _, s := range g.Aggregations {
			add(s)
		}
	}
	return specs
}

// aggregate produces the aggregated table: one row per (filter group,
// settings value), holding the bookkeeping sums, every aggregation
// spec, and per spec a "Q" quotient against the default group's row of
// the same filter group.
func (e *Evaluation) aggregate(df *dataframe.DataFrame, cols []*Column, formats map[string]string) (*dataframe.DataFrame, map[string]*dataframe.DataFrame, map[string]*dataframe.DataFrame, error) {
	nrows := frame.NRows(df)
	specs := e.aggregationSpecs(cols)
	groupCol, _ := frame.Column(df, e.groupKey)

	type aggRow struct {
		group   string
		setting string
		general []float64
		vals    []float64
		valsOK  []bool
		quots   []float64
		quotsOK []bool
	}

	resolver := newGroupResolver(e.Groups, df, nrows)
	groupInstance := make(map[string]*dataframe.DataFrame, len(e.Groups))
	groupAgg := make(map[string]*dataframe.DataFrame, len(e.Groups))

	var rows []*aggRow
	perGroup := make(map[string][]*aggRow, len(e.Groups))

	for _, g := range e.Groups {
		mask, err := resolver.mask(g.Name)
		if err != nil {
			return nil, nil, nil, err
		}
		members := maskRows(mask)
		groupInstance[g.Name] = frame.SelectRows(df, members)

		// Partition members by settings value, first appearance order.
		bySetting := make(map[string][]int)
		var settings []string
		for _, r := range members {
			sv, _ := frame.StringAt(groupCol, r)
			if _, seen := bySetting[sv]; !seen {
				settings = append(settings, sv)
			}
			bySetting[sv] = append(bySetting[sv], r)
		}

		var baseRow *aggRow
		for _, sv := range settings {
			cell := bySetting[sv]
			row := &aggRow{
				group:   g.Name,
				setting: sv,
				general: make([]float64, len(bookkeepingColumns)),
				vals:    make([]float64, len(specs)),
				valsOK:  make([]bool, len(specs)),
				quots:   make([]float64, len(specs)),
				quotsOK: make([]bool, len(specs)),
			}

			for bi, name := range bookkeepingColumns {
				s, _ := frame.Column(df, name)
				var sum float64
				for _, r := range cell {
					if v, ok := frame.Float64At(s, r); ok {
						sum += v
					}
				}
				row.general[bi] = sum
			}

			for si, spec := range specs {
				s, ok := frame.Column(df, spec.Column)
				if !ok {
					continue
				}
				var vals []float64
				missing := 0
				for _, r := range cell {
					if v, ok := frame.Float64At(s, r); ok {
						vals = append(vals, v)
					} else {
						missing++
					}
				}
				row.vals[si], row.valsOK[si] = spec.Apply(vals, missing)
			}

			if sv == e.defaultGroup {
				baseRow = row
			}
			rows = append(rows, row)
			perGroup[g.Name] = append(perGroup[g.Name], row)
		}

		for _, row := range perGroup[g.Name] {
			if baseRow == nil {
				continue
			}
			for si := range specs {
				if !row.valsOK[si] || !baseRow.valsOK[si] || baseRow.vals[si] == 0 {
					continue
				}
				row.quots[si] = row.vals[si] / baseRow.vals[si]
				row.quotsOK[si] = true
			}
		}
	}

	build := func(rows []*aggRow) *dataframe.DataFrame {
		groupVals := make([]string, len(rows))
		settingVals := make([]string, len(rows))
		for i, r := range rows {
			groupVals[i] = r.group
			settingVals[i] = r.setting
		}
		series := []dataframe.Series{
			frame.NewStringSeries("Group", groupVals, nil),
			frame.NewStringSeries(e.groupKey, settingVals, nil),
		}
		for bi, name := range bookkeepingColumns {
			vals := make([]float64, len(rows))
			for i, r := range rows {
				vals[i] = r.general[bi]
			}
			series = append(series, frame.NewFloat64Series(name, vals, nil))
		}
		for si, spec := range specs {
			vals := make([]float64, len(rows))
			present := make([]bool, len(rows))
			quots := make([]float64, len(rows))
			quotsPresent := make([]bool, len(rows))
			for i, r := range rows {
				vals[i], present[i] = r.vals[si], r.valsOK[si]
				quots[i], quotsPresent[i] = r.quots[si], r.quotsOK[si]
			}
			header := spec.ColumnHeader()
			series = append(series,
				frame.NewFloat64Series(header, vals, present),
				frame.NewFloat64Series(header+"Q", quots, quotsPresent))
		}
		return dataframe.NewDataFrame(series...)
	}

	for _, spec := range specs {
		header := spec.ColumnHeader()
		if spec.Format != "" {
			formats[header] = spec.Format
		}
		formats[header+"Q"] = e.compareFormat
	}

	for name, groupRows := range perGroup {
		groupAgg[name] = build(groupRows)
	}
	return build(rows), groupAgg, groupInstance, nil
}
