package evaluation

import (
	"fmt"
	"strings"
)

// evalDoc is the serialized form of an Evaluation. The struct tags
// carry both the XML attribute layout of the native evaluation file
// format and an equivalent YAML layout.
type evalDoc struct {
	XMLName       struct{}    `xml:"Evaluation" yaml:"-"`
	Index         string      `xml:"index,attr,omitempty" yaml:"index,omitempty"`
	IndexSplit    int         `xml:"indexsplit,attr,omitempty" yaml:"indexsplit,omitempty"`
	GroupKey      string      `xml:"groupkey,attr,omitempty" yaml:"groupkey,omitempty"`
	DefaultGroup  string      `xml:"defaultgroup,attr,omitempty" yaml:"defaultgroup,omitempty"`
	CompareFormat string      `xml:"comparecolformat,attr,omitempty" yaml:"comparecolformat,omitempty"`
	OptAutoAbsTol float64     `xml:"optautoabstol,attr,omitempty" yaml:"optautoabstol,omitempty"`
	OptAutoRelTol float64     `xml:"optautoreltol,attr,omitempty" yaml:"optautoreltol,omitempty"`
	Columns       []columnDoc `xml:"Column" yaml:"columns"`
	Groups        []groupDoc  `xml:"FilterGroup" yaml:"filtergroups"`
}

type columnDoc struct {
	Name         string           `xml:"name,attr,omitempty" yaml:"name,omitempty"`
	OrigColName  string           `xml:"origcolname,attr,omitempty" yaml:"origcolname,omitempty"`
	Formula      string           `xml:"formula,attr,omitempty" yaml:"formula,omitempty"`
	Constant     *float64         `xml:"constant,attr,omitempty" yaml:"constant,omitempty"`
	Regex        string           `xml:"regex,attr,omitempty" yaml:"regex,omitempty"`
	FormatStr    string           `xml:"formatstr,attr,omitempty" yaml:"formatstr,omitempty"`
	NaNRep       string           `xml:"nanrep,attr,omitempty" yaml:"nanrep,omitempty"`
	MinVal       *float64         `xml:"minval,attr,omitempty" yaml:"minval,omitempty"`
	MaxVal       *float64         `xml:"maxval,attr,omitempty" yaml:"maxval,omitempty"`
	Comp         string           `xml:"comp,attr,omitempty" yaml:"comp,omitempty"`
	Aggregations []aggregationDoc `xml:"Aggregation" yaml:"aggregations,omitempty"`
}

type aggregationDoc struct {
	Column    string  `xml:"column,attr,omitempty" yaml:"column,omitempty"`
	Statistic string  `xml:"statistic,attr" yaml:"statistic"`
	ShiftBy   float64 `xml:"shiftby,attr,omitempty" yaml:"shiftby,omitempty"`
	FormatStr string  `xml:"formatstr,attr,omitempty" yaml:"formatstr,omitempty"`
}

type groupDoc struct {
	Name         string           `xml:"name,attr" yaml:"name"`
	Operator     string           `xml:"operator,attr,omitempty" yaml:"operator,omitempty"`
	Negate       bool             `xml:"negate,attr,omitempty" yaml:"negate,omitempty"`
	Filters      []filterDoc      `xml:"Filter" yaml:"filters,omitempty"`
	GroupRefs    []groupRefDoc    `xml:"GroupRef" yaml:"grouprefs,omitempty"`
	Aggregations []aggregationDoc `xml:"Aggregation" yaml:"aggregations,omitempty"`
}

type filterDoc struct {
	Column   string `xml:"column,attr" yaml:"column"`
	Operator string `xml:"operator,attr" yaml:"operator"`
	Value    string `xml:"value,attr,omitempty" yaml:"value,omitempty"`
	Upper    string `xml:"upper,attr,omitempty" yaml:"upper,omitempty"`
}

type groupRefDoc struct {
	Name string `xml:"name,attr" yaml:"name"`
}

// toEvaluation builds the runtime Evaluation from a parsed document.
func (d *evalDoc) toEvaluation() (*Evaluation, error) {
	e := NewEvaluation()
	if d.Index != "" {
		e.SetIndex(strings.Fields(d.Index)...)
	}
	if d.IndexSplit != 0 {
		e.SetIndexSplit(d.IndexSplit)
	}
	if d.GroupKey != "" {
		e.groupKey = d.GroupKey
	}
	if d.DefaultGroup != "" {
		e.SetDefaultGroup(d.DefaultGroup)
	}
	if d.DefaultGroup == OptAuto {
		e.SetOptAutoBaseline(d.OptAutoAbsTol, d.OptAutoRelTol)
	}
	if d.CompareFormat != "" {
		e.SetCompareColumnFormat(d.CompareFormat)
	}

	for _, cd := range d.Columns {
		c, err := cd.toColumn()
		if err != nil {
			return nil, err
		}
		if err := e.AddColumn(c); err != nil {
			return nil, err
		}
	}
	for _, gd := range d.Groups {
		g, err := gd.toGroup()
		if err != nil {
			return nil, err
		}
		if err := e.AddFilterGroup(g); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (cd columnDoc) toColumn() (*Column, error) {
	sources := 0
	for _, set := range []bool{cd.OrigColName != "", cd.Formula != "", cd.Constant != nil, cd.Regex != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, fmt.Errorf("%w: column %q needs exactly one of origcolname, formula, constant, regex",
			ErrSpecParse, cd.Name)
	}

	c := &Column{
		Name:      cd.Name,
		DataKey:   cd.OrigColName,
		Formula:   cd.Formula,
		Constant:  cd.Constant,
		Regex:     cd.Regex,
		FormatStr: cd.FormatStr,
		NaNRep:    cd.NaNRep,
		MinVal:    cd.MinVal,
		MaxVal:    cd.MaxVal,
		Comp:      cd.Comp,
	}
	for _, ad := range cd.Aggregations {
		a, err := ad.toAggregation()
		if err != nil {
			return nil, err
		}
		c.Aggregations = append(c.Aggregations, a)
	}
	return c, nil
}

func (ad aggregationDoc) toAggregation() (Aggregation, error) {
	a, err := NewAggregation(ad.Statistic, ad.ShiftBy)
	if err != nil {
		return Aggregation{}, fmt.Errorf("%w: %v", ErrSpecParse, err)
	}
	a.Format = ad.FormatStr
	return a, nil
}

func (gd groupDoc) toGroup() (*FilterGroup, error) {
	g := NewFilterGroup(gd.Name)
	switch gd.Operator {
	case "", string(GroupAnd):
	case string(GroupOr):
		g.Operator = GroupOr
	default:
		return nil, fmt.Errorf("%w: group %s: unknown operator %q", ErrSpecParse, gd.Name, gd.Operator)
	}
	g.Negate = gd.Negate

	for _, fd := range gd.Filters {
		f, err := NewFilter(fd.Column, FilterOp(fd.Operator), fd.Value, fd.Upper)
		if err != nil {
			return nil, err
		}
		g.AddFilter(f)
	}
	for _, rd := range gd.GroupRefs {
		g.AddChild(rd.Name)
	}
	for _, ad := range gd.Aggregations {
		if ad.Column == "" {
			return nil, fmt.Errorf("%w: group %s: aggregation without a column", ErrSpecParse, gd.Name)
		}
		a, err := ad.toAggregation()
		if err != nil {
			return nil, err
		}
		g.Aggregations = append(g.Aggregations, AggregationSpec{Column: ad.Column, Aggregation: a})
	}
	return g, nil
}

// toDoc converts the runtime Evaluation back to its document form.
func (e *Evaluation) toDoc() *evalDoc {
	d := &evalDoc{
		Index:         strings.Join(e.indexLevels, " "),
		IndexSplit:    e.indexSplit,
		DefaultGroup:  e.defaultGroup,
		CompareFormat: e.compareFormat,
	}
	if e.groupKey != DefaultGroupKey {
		d.GroupKey = e.groupKey
	}
	if e.optAuto {
		d.OptAutoAbsTol = e.optAutoAbsTol
		d.OptAutoRelTol = e.optAutoRelTol
	}

	for _, c := range e.Columns {
		cd := columnDoc{
			Name:        c.Name,
			OrigColName: c.DataKey,
			Formula:     c.Formula,
			Constant:    c.Constant,
			Regex:       c.Regex,
			FormatStr:   c.FormatStr,
			NaNRep:      c.NaNRep,
			MinVal:      c.MinVal,
			MaxVal:      c.MaxVal,
			Comp:        c.Comp,
		}
		for _, a := range c.Aggregations {
			cd.Aggregations = append(cd.Aggregations, aggregationDoc{
				Statistic: a.Stat,
				ShiftBy:   a.ShiftBy,
				FormatStr: a.Format,
			})
		}
		d.Columns = append(d.Columns, cd)
	}

	for _, g := range e.Groups {
		gd := groupDoc{
			Name:     g.Name,
			Operator: string(g.Operator),
			Negate:   g.Negate,
		}
		for _, f := range g.Filters {
			gd.Filters = append(gd.Filters, filterDoc{
				Column:   f.Column,
				Operator: string(f.Op),
				Value:    f.Value,
				Upper:    f.Upper,
			})
		}
		for _, child := range g.Children {
			gd.GroupRefs = append(gd.GroupRefs, groupRefDoc{Name: child})
		}
		for _, s := range g.Aggregations {
			gd.Aggregations = append(gd.Aggregations, aggregationDoc{
				Column:    s.Column,
				Statistic: s.Stat,
				ShiftBy:   s.ShiftBy,
				FormatStr: s.Format,
			})
		}
		d.Groups = append(d.Groups, gd)
	}
	return d
}
