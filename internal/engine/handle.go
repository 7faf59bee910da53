package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ColumnType is the primitive type tag derived from a column's cells.
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeOther       ColumnType = "other"
)

// numericRegex is the grammar a trimmed cell must match to count as a number.
// Integers, decimals and scientific notation; no currency or grouping marks.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// parseNumber reports the numeric value of s, if s is a number.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// formatNumber renders a computed value with the shortest exact decimal form.
func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Cell is a single value: its raw text and whether it counts as missing.
// The raw text of missing cells is kept so exports reproduce the input.
type Cell struct {
	Text    string
	Missing bool
}

type column struct {
	name  string
	typ   ColumnType
	cells []Cell
	nums  []float64 // parsed values for numeric columns, NaN where missing
	nMiss int
}

// Column is a read-only view of one column of a Handle.
type Column struct {
	c *column
}

// Name returns the column header.
func (c Column) Name() string { return c.c.name }

// Type returns the derived type tag.
func (c Column) Type() ColumnType { return c.c.typ }

// Len returns the number of cells, equal to the handle's row count.
func (c Column) Len() int { return len(c.c.cells) }

// Cell returns the cell at row i.
func (c Column) Cell(i int) Cell { return c.c.cells[i] }

// MissingCount returns the number of missing cells.
func (c Column) MissingCount() int { return c.c.nMiss }

// Float returns the numeric value at row i. ok is false for missing cells and
// for columns that are not numeric.
func (c Column) Float(i int) (f float64, ok bool) {
	if c.c.typ != TypeNumeric || c.c.cells[i].Missing {
		return 0, false
	}
	return c.c.nums[i], true
}

// Handle is an immutable in-memory table. Every column has exactly RowCount
// cells. Transformations return a new Handle and leave the receiver intact.
type Handle struct {
	cols   []*column
	index  map[string]int
	rows   int
	delim  rune
	tokens missingTokens
}

// newHandle builds a Handle from header names and per-column cells, deriving
// each column's type. It panics if column lengths differ; callers construct
// cells from a rectangular source so that is a programming error.
func newHandle(names []string, cells [][]Cell, delim rune, tokens missingTokens) *Handle {
	h := &Handle{
		cols:   make([]*column, len(names)),
		index:  make(map[string]int, len(names)),
		delim:  delim,
		tokens: tokens,
	}
	for i, name := range names {
		if i == 0 {
			h.rows = len(cells[i])
		} else if len(cells[i]) != h.rows {
			panic(fmt.Sprintf("engine: column %q has %d cells, want %d", name, len(cells[i]), h.rows))
		}
		h.cols[i] = buildColumn(name, cells[i])
		h.index[name] = i
	}
	return h
}

// buildColumn derives the type tag and numeric values for a column.
func buildColumn(name string, cells []Cell) *column {
	c := &column{name: name, cells: cells}

	present := 0
	numeric := true
	nums := make([]float64, len(cells))
	for i, cell := range cells {
		if cell.Missing {
			c.nMiss++
			nums[i] = math.NaN()
			continue
		}
		present++
		if !numeric {
			continue
		}
		f, ok := parseNumber(cell.Text)
		if !ok {
			numeric = false
			continue
		}
		nums[i] = f
	}

	switch {
	case present == 0:
		c.typ = TypeOther
	case numeric:
		c.typ = TypeNumeric
		c.nums = nums
	default:
		c.typ = TypeCategorical
	}
	return c
}

// derive builds a Handle with the same load settings as h.
func (h *Handle) derive(names []string, cells [][]Cell) *Handle {
	return newHandle(names, cells, h.delim, h.tokens)
}

// Columns returns the column names in order.
func (h *Handle) Columns() []string {
	names := make([]string, len(h.cols))
	for i, c := range h.cols {
		names[i] = c.name
	}
	return names
}

// RowCount returns the number of data rows (the header is not counted).
func (h *Handle) RowCount() int { return h.rows }

// ColumnCount returns the number of columns.
func (h *Handle) ColumnCount() int { return len(h.cols) }

// Delimiter returns the field separator used by Bytes.
func (h *Handle) Delimiter() rune { return h.delim }

// Column looks up a column by name.
func (h *Handle) Column(name string) (Column, bool) {
	i, ok := h.index[name]
	if !ok {
		return Column{}, false
	}
	return Column{c: h.cols[i]}, true
}

// ColumnAt returns the i-th column.
func (h *Handle) ColumnAt(i int) Column { return Column{c: h.cols[i]} }

// ColumnsOfType returns the names of all columns with the given type, in
// schema order.
func (h *Handle) ColumnsOfType(t ColumnType) []string {
	var names []string
	for _, c := range h.cols {
		if c.typ == t {
			names = append(names, c.name)
		}
	}
	return names
}

// Row returns the raw cell text of row i in column order.
func (h *Handle) Row(i int) []string {
	row := make([]string, len(h.cols))
	for j, c := range h.cols {
		row[j] = c.cells[i].Text
	}
	return row
}

// Head returns up to n rows from the top of the table.
func (h *Handle) Head(n int) [][]string {
	if n > h.rows {
		n = h.rows
	}
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, h.Row(i))
	}
	return rows
}

// cellsOf returns the backing cells of every column. The slices are shared
// with h and must not be modified.
func (h *Handle) cellsOf() [][]Cell {
	out := make([][]Cell, len(h.cols))
	for i, c := range h.cols {
		out[i] = c.cells
	}
	return out
}

// newCell classifies raw text against the handle's missing tokens.
func (h *Handle) newCell(text string) Cell {
	return Cell{Text: text, Missing: h.tokens.isMissing(text)}
}

// ColumnSchema is the (name, type) pair of a column.
type ColumnSchema struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is the ordered column layout of a Handle.
type Schema []ColumnSchema

// Schema returns the handle's column layout.
func (h *Handle) Schema() Schema {
	s := make(Schema, len(h.cols))
	for i, c := range h.cols {
		s[i] = ColumnSchema{Name: c.name, Type: c.typ}
	}
	return s
}

// Equal reports whether both schemas list the same columns, in the same
// order, with the same types.
func (s Schema) Equal(o Schema) bool {
	return s.diff(o) == ""
}

// diff describes the first difference between s (expected) and o (actual).
func (s Schema) diff(o Schema) string {
	if len(s) != len(o) {
		return fmt.Sprintf("expected %d columns, dataset has %d", len(s), len(o))
	}
	for i := range s {
		if s[i].Name != o[i].Name {
			return fmt.Sprintf("column %d is %q, expected %q", i+1, o[i].Name, s[i].Name)
		}
		if s[i].Type != o[i].Type {
			return fmt.Sprintf("column %q is %s, expected %s", s[i].Name, o[i].Type, s[i].Type)
		}
	}
	return ""
}

// Fingerprint returns a stable hex digest of the schema, suitable as a
// version token across a session boundary.
func (s Schema) Fingerprint() string {
	sum := sha256.New()
	for _, c := range s {
		// Length prefixes keep ("ab","c") distinct from ("a","bc").
		fmt.Fprintf(sum, "%d:%s|%s\n", len(c.Name), c.Name, c.Type)
	}
	return hex.EncodeToString(sum.Sum(nil))
}
