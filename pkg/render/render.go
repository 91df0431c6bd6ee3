// Package render streams evaluation tables to the supported output
// sinks: console, CSV, LaTeX and plain text. Rendering is format
// aware: numeric cells honor their column's format string, missing
// cells render as a placeholder.
package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/leoneifler/ipet/pkg/frame"
)

// Format selects the output sink.
type Format string

const (
	FormatConsole Format = "stdout"
	FormatCSV     Format = "csv"
	FormatLaTeX   Format = "tex"
	FormatText    Format = "txt"
)

// DefaultPlaceholder stands in for missing cells.
const DefaultPlaceholder = "-"

// Options controls cell rendering. Formats maps column names to
// fmt-style numeric format strings; columns without an entry use a
// minimal float representation.
type Options struct {
	Formats     map[string]string
	Placeholder string
}

// Stream writes the table to w in the requested format. name labels
// the table where the format has room for it.
func Stream(w io.Writer, df *dataframe.DataFrame, name string, format Format, opts Options) error {
	if opts.Placeholder == "" {
		opts.Placeholder = DefaultPlaceholder
	}
	headers := frame.ColumnNames(df)
	rows := renderRows(df, headers, opts)

	switch format {
	case FormatConsole:
		return writeConsole(w, name, headers, rows, true)
	case FormatText:
		return writeConsole(w, name, headers, rows, false)
	case FormatCSV:
		return writeCSV(w, headers, rows)
	case FormatLaTeX:
		return writeLaTeX(w, name, headers, rows)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// renderRows materializes every cell as a string.
func renderRows(df *dataframe.DataFrame, headers []string, opts Options) [][]string {
	n := frame.NRows(df)
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = make([]string, len(headers))
	}
	for c, header := range headers {
		s, _ := frame.Column(df, header)
		format := opts.Formats[header]
		for i := 0; i < n; i++ {
			rows[i][c] = renderCell(s, i, format, opts.Placeholder)
		}
	}
	return rows
}

func renderCell(s dataframe.Series, i int, format, placeholder string) string {
	if frame.IsMissing(s, i) {
		return placeholder
	}
	if v, ok := frame.Float64At(s, i); ok {
		if format != "" {
			return fmt.Sprintf(format, v)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if v, ok := frame.StringAt(s, i); ok {
		return v
	}
	if v, ok := frame.BoolAt(s, i); ok {
		return strconv.FormatBool(v)
	}
	return fmt.Sprintf("%v", s.Value(i))
}

func writeConsole(w io.Writer, name string, headers []string, rows [][]string, borders bool) error {
	if name != "" {
		if _, err := fmt.Fprintf(w, "%s\n", name); err != nil {
			return err
		}
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	if !borders {
		table.SetBorder(false)
		table.SetColumnSeparator(" ")
		table.SetCenterSeparator(" ")
		table.SetHeaderLine(false)
	}
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	return nil
}

func writeCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeLaTeX(w io.Writer, name string, headers []string, rows [][]string) error {
	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%% %s\n", name)
	}
	b.WriteString(`\begin{tabular}{`)
	if len(headers) > 0 {
		b.WriteString("l")
		b.WriteString(strings.Repeat("r", len(headers)-1))
	}
	b.WriteString("}\n\\hline\n")

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = latexEscape(h)
	}
	b.WriteString(strings.Join(cells, " & "))
	b.WriteString(" \\\\\n\\hline\n")

	for _, row := range rows {
		for i, cell := range row {
			cells[i] = latexEscape(cell)
		}
		b.WriteString(strings.Join(cells, " & "))
		b.WriteString(" \\\\\n")
	}
	b.WriteString("\\hline\n\\end{tabular}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

var latexReplacer = strings.NewReplacer(
	"&", `\&`,
	"%", `\%`,
	"_", `\_`,
	"#", `\#`,
	"$", `\$`,
)

func latexEscape(s string) string {
	return latexReplacer.Replace(s)
}
