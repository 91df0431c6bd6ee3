package experiment

import (
	"errors"
	"testing"

	"github.com/leoneifler/ipet/internal/testutil"
	"github.com/leoneifler/ipet/pkg/frame"
)

func TestLoadTestRun_CSV(t *testing.T) {
	path := testutil.TempCSV(t, "fast", testutil.TestRunCSV())

	tr, err := LoadTestRun(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tr.Settings != "fast" {
		t.Errorf("expected settings fast, got %s", tr.Settings)
	}
	if n := frame.NRows(tr.Data); n != 3 {
		t.Errorf("expected 3 rows, got %d", n)
	}
	if !frame.HasColumn(tr.Data, ColProblemName) {
		t.Error("expected ProblemName column")
	}

	times, ok := frame.Column(tr.Data, ColSolvingTime)
	if !ok {
		t.Fatal("expected SolvingTime column")
	}
	if v, ok := frame.Float64At(times, 1); !ok || v != 200 {
		t.Errorf("expected SolvingTime 200, got %g (ok=%v)", v, ok)
	}
}

func TestLoadTestRun_CSVWithMissingValues(t *testing.T) {
	path := testutil.TempCSV(t, "gaps", `ProblemName,SolvingTime
p1,10
p2,
p3,30`)

	tr, err := LoadTestRun(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	times, _ := frame.Column(tr.Data, ColSolvingTime)
	if _, ok := frame.Float64At(times, 1); ok {
		t.Error("expected missing value for empty cell")
	}
}

func TestLoadTestRun_JSON(t *testing.T) {
	path := testutil.TempFile(t, `[
  {"ProblemName": "p1", "SolvingTime": 10},
  {"ProblemName": "p2", "SolvingTime": 20}
]`, ".json")

	tr, err := LoadTestRun(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tr.Settings != "test" {
		t.Errorf("expected settings test, got %s", tr.Settings)
	}
	if n := frame.NRows(tr.Data); n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}
}

func TestLoadTestRun_BadExtension(t *testing.T) {
	if _, err := LoadTestRun("run.out"); !errors.Is(err, ErrBadExtension) {
		t.Errorf("expected ErrBadExtension, got %v", err)
	}
}

func TestLoadTestRun_MissingFile(t *testing.T) {
	if _, err := LoadTestRun("/nonexistent/run.csv"); err == nil {
		t.Error("expected error for missing file")
	}
}
