package engine

import "math"

// Memory estimate costs, in bytes.
const (
	numericCellBytes  = 8  // one float64
	stringHeaderBytes = 16 // Go string header; text bytes are added on top
)

// ColumnProfile holds the statistics of one column. Pointer fields are nil
// when the statistic does not apply or is undefined (for example the mean of
// a numeric column with no values).
type ColumnProfile struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	Missing    int        `json:"missing"`
	MissingPct float64    `json:"missing_pct"`
	Unique     int        `json:"unique"`
	Sample     string     `json:"sample,omitempty"`

	Mean   *float64 `json:"mean,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Q1     *float64 `json:"q1,omitempty"`
	Median *float64 `json:"median,omitempty"`
	Q3     *float64 `json:"q3,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Std    *float64 `json:"std,omitempty"`

	Mode *string `json:"mode,omitempty"`
}

// DatasetProfile summarizes a Handle. Columns are in the handle's order.
type DatasetProfile struct {
	Rows        int             `json:"rows"`
	Cols        int             `json:"cols"`
	MemoryBytes int64           `json:"memory_bytes"`
	Columns     []ColumnProfile `json:"columns"`
	Schema      Schema          `json:"schema"`
}

// MemoryMB returns the memory estimate in mebibytes rounded to two places.
func (p *DatasetProfile) MemoryMB() float64 {
	return math.Round(float64(p.MemoryBytes)/(1024*1024)*100) / 100
}

// Column returns the profile of the named column.
func (p *DatasetProfile) Column(name string) (ColumnProfile, bool) {
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnProfile{}, false
}

// Profile computes dataset- and column-level statistics. It only reads h.
func Profile(h *Handle) *DatasetProfile {
	p := &DatasetProfile{
		Rows:    h.rows,
		Cols:    len(h.cols),
		Columns: make([]ColumnProfile, len(h.cols)),
		Schema:  h.Schema(),
	}
	for i, c := range h.cols {
		p.Columns[i] = profileColumn(c, h.rows)
		p.MemoryBytes += columnBytes(c)
	}
	return p
}

func profileColumn(c *column, rows int) ColumnProfile {
	cp := ColumnProfile{
		Name:    c.name,
		Type:    c.typ,
		Missing: c.nMiss,
	}
	if rows > 0 {
		cp.MissingPct = float64(c.nMiss) / float64(rows) * 100
	}
	for _, cell := range c.cells {
		if !cell.Missing {
			cp.Sample = cell.Text
			break
		}
	}

	switch c.typ {
	case TypeNumeric:
		vals := presentValues(c)
		cp.Unique = distinctFloats(vals)
		if len(vals) > 0 {
			sorted := sortedCopy(vals)
			cp.Mean = floatPtr(mean(vals))
			cp.Min = floatPtr(sorted[0])
			cp.Max = floatPtr(sorted[len(sorted)-1])
			cp.Q1 = floatPtr(quantile(sorted, 0.25))
			cp.Median = floatPtr(quantile(sorted, 0.5))
			cp.Q3 = floatPtr(quantile(sorted, 0.75))
			cp.Std = floatPtr(stddev(vals))
		}
	case TypeCategorical:
		cp.Unique = distinctTexts(c)
		if m, ok := modeOf(c); ok {
			cp.Mode = &m
		}
	}
	return cp
}

func distinctFloats(vals []float64) int {
	seen := make(map[float64]struct{}, len(vals))
	for _, v := range vals {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func distinctTexts(c *column) int {
	seen := make(map[string]struct{})
	for _, cell := range c.cells {
		if !cell.Missing {
			seen[cell.Text] = struct{}{}
		}
	}
	return len(seen)
}

// modeOf returns the most frequent non-missing text. Ties go to the value
// encountered first in row order.
func modeOf(c *column) (string, bool) {
	counts := make(map[string]int)
	var order []string
	for _, cell := range c.cells {
		if cell.Missing {
			continue
		}
		if _, ok := counts[cell.Text]; !ok {
			order = append(order, cell.Text)
		}
		counts[cell.Text]++
	}
	if len(order) == 0 {
		return "", false
	}
	best := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, true
}

// columnBytes estimates the in-memory footprint of a column.
func columnBytes(c *column) int64 {
	n := int64(len(c.name) + stringHeaderBytes)
	if c.typ == TypeNumeric {
		return n + int64(len(c.cells))*numericCellBytes
	}
	for _, cell := range c.cells {
		n += int64(len(cell.Text) + stringHeaderBytes)
	}
	return n
}
