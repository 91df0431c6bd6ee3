package evaluation

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const sampleXML = `<Evaluation index="ProblemName Settings" indexsplit="1" defaultgroup="default" comparecolformat="%.3f">
  <Column name="T" origcolname="SolvingTime" formatstr="%.1f" nanrep="3600" minval="0.5" maxval="3600" comp="quot shift. by 10">
    <Aggregation statistic="shmean" shiftby="10" formatstr="%.1f"></Aggregation>
  </Column>
  <Column name="NPS" formula="Nodes / SolvingTime"></Column>
  <FilterGroup name="clean">
    <Filter column="_fail_" operator="eq" value="0"></Filter>
  </FilterGroup>
  <FilterGroup name="hard" operator="or" negate="true">
    <GroupRef name="clean"></GroupRef>
    <Aggregation column="T" statistic="mean"></Aggregation>
  </FilterGroup>
</Evaluation>`

func TestParseXML(t *testing.T) {
	ev, err := ParseXML(strings.NewReader(sampleXML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(ev.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(ev.Columns))
	}
	c := ev.Columns[0]
	if c.Name != "T" || c.DataKey != "SolvingTime" {
		t.Errorf("unexpected first column: %+v", c)
	}
	if c.MinVal == nil || *c.MinVal != 0.5 {
		t.Errorf("expected minval 0.5, got %v", c.MinVal)
	}
	if len(c.Aggregations) != 1 || c.Aggregations[0].Stat != StatShMean || c.Aggregations[0].ShiftBy != 10 {
		t.Errorf("unexpected aggregations: %+v", c.Aggregations)
	}

	if len(ev.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(ev.Groups))
	}
	hard := ev.Groups[1]
	if hard.Operator != GroupOr || !hard.Negate {
		t.Errorf("unexpected group flags: %+v", hard)
	}
	if len(hard.Children) != 1 || hard.Children[0] != "clean" {
		t.Errorf("unexpected group children: %v", hard.Children)
	}
	if len(hard.Aggregations) != 1 || hard.Aggregations[0].Column != "T" {
		t.Errorf("unexpected group aggregations: %+v", hard.Aggregations)
	}
}

func TestXML_RoundTrip(t *testing.T) {
	ev, err := ParseXML(strings.NewReader(sampleXML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var buf bytes.Buffer
	if err := ev.WriteXML(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	again, err := ParseXML(&buf)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}

	var first, second bytes.Buffer
	if err := again.WriteXML(&second); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := ev.WriteXML(&first); err != nil {
		t.Fatalf("rewrite original: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("round trip not stable:\n%s\nvs\n%s", first.String(), second.String())
	}
}

func TestYAML_RoundTrip(t *testing.T) {
	ev, err := ParseXML(strings.NewReader(sampleXML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var buf bytes.Buffer
	if err := ev.WriteYAML(&buf); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	again, err := ParseYAML(&buf)
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}

	if len(again.Columns) != len(ev.Columns) || len(again.Groups) != len(ev.Groups) {
		t.Errorf("yaml round trip lost declarations: %d/%d columns, %d/%d groups",
			len(again.Columns), len(ev.Columns), len(again.Groups), len(ev.Groups))
	}
	if again.defaultGroup != ev.defaultGroup || again.compareFormat != ev.compareFormat {
		t.Errorf("yaml round trip lost settings: %q %q", again.defaultGroup, again.compareFormat)
	}
}

func TestParseXML_Errors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"malformed xml", `<Evaluation><Column`},
		{"no column source", `<Evaluation><Column name="x"></Column></Evaluation>`},
		{"two column sources", `<Evaluation><Column origcolname="a" formula="b"></Column></Evaluation>`},
		{"bad statistic", `<Evaluation><Column origcolname="a"><Aggregation statistic="nope"></Aggregation></Column></Evaluation>`},
		{"bad operator", `<Evaluation><FilterGroup name="g" operator="xor"></FilterGroup></Evaluation>`},
		{"bad formula", `<Evaluation><Column name="x" formula="a +"></Column></Evaluation>`},
		{"blank formula", `<Evaluation><Column name="x" formula=" "></Column></Evaluation>`},
	}
	for _, tt := range tests {
		if _, err := ParseXML(strings.NewReader(tt.xml)); !errors.Is(err, ErrSpecParse) {
			t.Errorf("%s: expected ErrSpecParse, got %v", tt.name, err)
		}
	}
}

func TestParseXML_OptAuto(t *testing.T) {
	doc := `<Evaluation defaultgroup="OPT. AUTO" optautoreltol="0.1"></Evaluation>`
	ev, err := ParseXML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !ev.optAuto {
		t.Error("expected opt auto baseline to be enabled")
	}
	if ev.optAutoRelTol != 0.1 {
		t.Errorf("expected reltol 0.1, got %g", ev.optAutoRelTol)
	}
}
