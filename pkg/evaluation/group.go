package evaluation

import (
	"fmt"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// GroupOp combines the children of a filter group.
type GroupOp string

const (
	GroupAnd GroupOp = "and"
	GroupOr  GroupOp = "or"
)

// FilterGroup is a named, composable predicate over instances. Its
// children are filters and references to other groups, combined with
// the group operator; Negate inverts the result against the full
// table. A group additionally carries the aggregation specs evaluated
// over its member rows.
type FilterGroup struct {
	Name     string
	Operator GroupOp
	Negate   bool
	Filters  []*Filter
	Children []string // referenced group names, resolved at evaluation time

	// Aggregations local to this group; specs derived from column
	// declarations are appended at evaluation time.
	Aggregations []AggregationSpec
}

// NewFilterGroup creates a group with the default AND operator.
func NewFilterGroup(name string) *FilterGroup {
	return &FilterGroup{Name: name, Operator: GroupAnd}
}

// AddFilter appends a filter child.
func (g *FilterGroup) AddFilter(f *Filter) {
	g.Filters = append(g.Filters, f)
}

// AddChild appends a reference to another group.
func (g *FilterGroup) AddChild(name string) {
	g.Children = append(g.Children, name)
}

// groupResolver computes group memberships over one table with
// memoization and cycle detection. Memberships are boolean masks in
// table row order.
type groupResolver struct {
	groups map[string]*FilterGroup
	df     *dataframe.DataFrame
	nrows  int
	memo   map[string][]bool
	stack  []string
	onPath map[string]bool
}

func newGroupResolver(groups []*FilterGroup, df *dataframe.DataFrame, nrows int) *groupResolver {
	byName := make(map[string]*FilterGroup, len(groups))
	for _, g := range groups {
		byName[g.Name] = g
	}
	return &groupResolver{
		groups: byName,
		df:     df,
		nrows:  nrows,
		memo:   make(map[string][]bool),
		onPath: make(map[string]bool),
	}
}

// mask returns the membership mask for the named group.
func (r *groupResolver) mask(name string) ([]bool, error) {
	if m, ok := r.memo[name]; ok {
		return m, nil
	}
	if r.onPath[name] {
		cycle := append(append([]string{}, r.stack...), name)
		return nil, fmt.Errorf("%w: filter group %s", ErrCyclicDependency, strings.Join(cycle, " -> "))
	}

	g, ok := r.groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, name)
	}

	r.onPath[name] = true
	r.stack = append(r.stack, name)
	m, err := r.evalGroup(g)
	r.stack = r.stack[:len(r.stack)-1]
	delete(r.onPath, name)
	if err != nil {
		return nil, err
	}

	r.memo[name] = m
	return m, nil
}

func (r *groupResolver) evalGroup(g *FilterGroup) ([]bool, error) {
	// AND of no children is the identity, OR of no children is empty.
	mask := make([]bool, r.nrows)
	if g.Operator != GroupOr {
		for i := range mask {
			mask[i] = true
		}
	}

	combine := func(child []bool) {
		if g.Operator == GroupOr {
			for i := range mask {
				mask[i] = mask[i] || child[i]
			}
		} else {
			for i := range mask {
				mask[i] = mask[i] && child[i]
			}
		}
	}

	for _, f := range g.Filters {
		child := make([]bool, r.nrows)
		for i := 0; i < r.nrows; i++ {
			child[i] = f.Evaluate(r.df, i)
		}
		combine(child)
	}

	for _, ref := range g.Children {
		child, err := r.mask(ref)
		if err != nil {
			return nil, err
		}
		combine(child)
	}

	if g.Negate {
		for i := range mask {
			mask[i] = !mask[i]
		}
	}

	return mask, nil
}

// rows converts a mask to row indices in table order.
func maskRows(mask []bool) []int {
	var rows []int
	for i, set := range mask {
		if set {
			rows = append(rows, i)
		}
	}
	return rows
}
