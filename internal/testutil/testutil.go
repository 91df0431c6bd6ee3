// Package testutil provides testing utilities for ipet tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// TempCSV creates a temporary CSV file and returns its path.
// The file is automatically cleaned up when the test finishes.
func TempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp CSV: %v", err)
	}
	return path
}

// TempFile creates a temporary file with the given content and extension.
func TempFile(t *testing.T, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+ext)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// TestRunCSV returns standard testrun CSV content for one setting.
func TestRunCSV() string {
	return `ProblemName,Status,SolvingTime,TimeLimit,Nodes
p1,solved,10,3600,100
p2,solved,200,3600,5000
p3,timeout,3600,3600,90000`
}

// MakeTestRunFrame creates a standard testrun frame: three instances,
// two solved and one timeout.
func MakeTestRunFrame() *dataframe.DataFrame {
	return dataframe.NewDataFrame(
		dataframe.NewSeriesString("ProblemName", nil, "p1", "p2", "p3"),
		dataframe.NewSeriesString("Status", nil, "solved", "solved", "timeout"),
		dataframe.NewSeriesFloat64("SolvingTime", nil, 10.0, 200.0, 3600.0),
		dataframe.NewSeriesFloat64("TimeLimit", nil, 3600.0, 3600.0, 3600.0),
		dataframe.NewSeriesInt64("Nodes", nil, 100, 5000, 90000),
	)
}

// MakeRunFrame creates a testrun frame from parallel slices. times and
// nodes may contain nil for missing values.
func MakeRunFrame(problems, statuses []string, times, nodes []interface{}, timelimit float64) *dataframe.DataFrame {
	limits := make([]interface{}, len(problems))
	probs := make([]interface{}, len(problems))
	stats := make([]interface{}, len(problems))
	for i := range problems {
		limits[i] = timelimit
		probs[i] = problems[i]
		stats[i] = statuses[i]
	}
	return dataframe.NewDataFrame(
		dataframe.NewSeriesString("ProblemName", nil, probs...),
		dataframe.NewSeriesString("Status", nil, stats...),
		dataframe.NewSeriesFloat64("SolvingTime", nil, times...),
		dataframe.NewSeriesFloat64("TimeLimit", nil, limits...),
		dataframe.NewSeriesFloat64("Nodes", nil, nodes...),
	)
}

// AssertFloat64Near checks if two float64 values are approximately equal.
func AssertFloat64Near(t *testing.T, expected, actual, tolerance float64) {
	t.Helper()
	if actual < expected-tolerance || actual > expected+tolerance {
		t.Errorf("expected %.6f, got %.6f (tolerance: %.6f)", expected, actual, tolerance)
	}
}

// AssertStringEqual checks if two strings are equal.
func AssertStringEqual(t *testing.T, expected, actual string) {
	t.Helper()
	if expected != actual {
		t.Errorf("expected %q, got %q", expected, actual)
	}
}
