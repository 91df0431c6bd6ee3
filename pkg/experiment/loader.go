package experiment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/xitongsys/parquet-go-source/local"
)

// Loader errors
var (
	ErrEmptyTable   = errors.New("empty testrun table")
	ErrBadExtension = errors.New("unsupported testrun file extension")
)

// LoadTestRun reads a preparsed testrun table and wraps it as a TestRun
// whose settings label is the file's base name (without extension).
// Supported formats: .csv, .json, .parquet.
func LoadTestRun(path string) (*TestRun, error) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	settings := strings.TrimSuffix(base, filepath.Ext(base))

	var (
		df  *dataframe.DataFrame
		err error
	)
	switch ext {
	case ".csv":
		df, err = LoadCSV(path)
	case ".json":
		df, err = LoadJSON(path)
	case ".parquet":
		df, err = LoadParquet(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrBadExtension, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("loading testrun %s: %w", path, err)
	}

	return &TestRun{Settings: settings, Data: df}, nil
}

// LoadCSV reads a CSV testrun table.
// - First row is header (column names)
// - Auto-detects column types (int64, float64, bool, string)
// - Empty values become missing
func LoadCSV(path string) (*dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ctx := context.Background()
	df, err := imports.LoadFromCSV(ctx, file, imports.CSVLoadOptions{
		InferDataTypes: true,
	})
	if err != nil {
		return nil, err
	}

	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyTable
	}

	return df, nil
}

// LoadJSON reads a testrun table from a JSON array of objects:
// [{"ProblemName": ..., "SolvingTime": ...}, ...]. Column types are
// inferred automatically.
func LoadJSON(path string) (*dataframe.DataFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, ErrEmptyTable
	}

	reader := bytes.NewReader(data)
	ctx := context.Background()

	df, err := imports.LoadFromJSON(ctx, reader)
	if err != nil {
		return nil, err
	}

	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyTable
	}

	return df, nil
}

// LoadParquet reads a Parquet testrun table using the dataframe-go
// imports package with the parquet-go backend.
func LoadParquet(path string) (*dataframe.DataFrame, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	ctx := context.Background()

	df, err := imports.LoadFromParquet(ctx, fr)
	if err != nil {
		return nil, err
	}

	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyTable
	}

	return df, nil
}
