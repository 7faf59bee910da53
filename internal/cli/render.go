package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JonMunkholm/dataprep/internal/engine"
)

// Output formats for commands that print structured results.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// profileReport is the JSON shape of `dataprep profile -o json`.
type profileReport struct {
	File     string                    `json:"file"`
	MemoryMB float64                   `json:"memory_mb"`
	Profile  *engine.DatasetProfile    `json:"profile"`
	Flags    map[string]engine.FlagSet `json:"flags"`
}

func fmtFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'g', 6, 64)
}

func fmtString(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// renderProfile prints the dataset summary and one row per column.
func renderProfile(w io.Writer, name string, p *engine.DatasetProfile, flags map[string]engine.FlagSet) {
	_, _ = fmt.Fprintf(w, "%s: %d rows, %d columns, %.2f MB\n", name, p.Rows, p.Cols, p.MemoryMB())

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Type", "Missing", "Missing %", "Unique",
		"Mean", "Std", "Min", "25%", "Median", "75%", "Max", "Mode", "Flags"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Missing", Align: text.AlignRight},
		{Name: "Missing %", Align: text.AlignRight},
		{Name: "Unique", Align: text.AlignRight},
	})

	for _, c := range p.Columns {
		f := flags[c.Name]
		t.AppendRow(table.Row{
			c.Name, c.Type, c.Missing, fmt.Sprintf("%.2f", c.MissingPct), c.Unique,
			fmtFloat(c.Mean), fmtFloat(c.Std), fmtFloat(c.Min), fmtFloat(c.Q1), fmtFloat(c.Median), fmtFloat(c.Q3), fmtFloat(c.Max),
			fmtString(c.Mode), f.String(),
		})
	}
	t.Render()
}

// renderPreview prints the first rows of h.
func renderPreview(w io.Writer, h *engine.Handle, n int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, 0, h.ColumnCount())
	for _, c := range h.Columns() {
		header = append(header, c)
	}
	t.AppendHeader(header)

	rows := h.Head(n)
	for _, r := range rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = v
		}
		t.AppendRow(row)
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d of %d rows)\n", len(rows), h.RowCount())
}

// renderChartSummary prints what a chart plan contains.
func renderChartSummary(w io.Writer, spec *engine.ChartSpec) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendRows([]table.Row{
		{"Kind", spec.Kind},
		{"Columns", strings.Join(spec.Columns, ", ")},
		{"Theme", spec.Theme},
		{"Legend", spec.Encoding.Legend},
		{"Series", len(spec.Series)},
		{"Rows used", spec.RowsUsed},
		{"Rows skipped", spec.RowsSkipped},
	})
	t.Render()
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
