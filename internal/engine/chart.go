package engine

import (
	"encoding/json"
	"math"
	"sort"
)

// ChartKind names a chart type the planner knows how to build.
type ChartKind string

const (
	ChartHistogram ChartKind = "histogram"
	ChartBox       ChartKind = "box"
	ChartScatter   ChartKind = "scatter"
	ChartLine      ChartKind = "line"
	ChartHeatmap   ChartKind = "heatmap"
	ChartScatter3D ChartKind = "scatter3d"
	ChartBar       ChartKind = "bar"
)

// DefaultTheme is the color scale used when a request names none.
const DefaultTheme = "viridis"

// barRowLimit caps the number of rows a bar chart considers.
const barRowLimit = 20

// LegendPlacement says where a renderer should draw the legend.
type LegendPlacement string

const (
	LegendNone    LegendPlacement = "none"
	LegendInside  LegendPlacement = "inside"
	LegendOutside LegendPlacement = "outside"
)

// ChartRequest asks the planner for a chart.
type ChartRequest struct {
	Kind    ChartKind `json:"kind"`
	Columns []string  `json:"columns"`
	Color   string    `json:"color,omitempty"`
	Theme   string    `json:"theme,omitempty"`
}

// Encoding assigns columns to visual channels.
type Encoding struct {
	X      string          `json:"x,omitempty"`
	Y      string          `json:"y,omitempty"`
	Z      string          `json:"z,omitempty"`
	Color  string          `json:"color,omitempty"`
	Legend LegendPlacement `json:"legend"`
}

// Series is one aligned numeric sequence; Values[i] across every series of a
// spec belongs to the same point.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// BoxStats summarizes a distribution for a box plot. Whiskers extend to the
// most extreme values within 1.5 IQR of the quartiles.
type BoxStats struct {
	Min          float64   `json:"min"`
	Q1           float64   `json:"q1"`
	Median       float64   `json:"median"`
	Q3           float64   `json:"q3"`
	Max          float64   `json:"max"`
	LowerWhisker float64   `json:"lower_whisker"`
	UpperWhisker float64   `json:"upper_whisker"`
	Outliers     []float64 `json:"outliers"`
}

// CorrelationMatrix holds pairwise Pearson coefficients. Undefined entries
// are NaN and encode as JSON null.
type CorrelationMatrix struct {
	Columns []string
	Values  [][]float64
}

// At returns the coefficient between columns i and j.
func (m *CorrelationMatrix) At(i, j int) float64 { return m.Values[i][j] }

// MarshalJSON encodes NaN entries as null.
func (m *CorrelationMatrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			values[i][j] = floatPtr(v)
		}
	}
	return json.Marshal(struct {
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
	}{m.Columns, values})
}

// ChartSpec is a renderer-independent chart description with its data
// already materialized.
type ChartSpec struct {
	Kind       ChartKind          `json:"kind"`
	Columns    []string           `json:"columns"`
	Encoding   Encoding           `json:"encoding"`
	Theme      string             `json:"theme"`
	Series     []Series           `json:"series,omitempty"`
	Categories []string           `json:"categories,omitempty"`
	Labels     []string           `json:"labels,omitempty"`
	Box        *BoxStats          `json:"box,omitempty"`
	Matrix     *CorrelationMatrix `json:"matrix,omitempty"`
	// RowsUsed + RowsSkipped is the number of rows the chart considered.
	RowsUsed    int `json:"rows_used"`
	RowsSkipped int `json:"rows_skipped"`
}

type chartRule func(h *Handle, req ChartRequest, color *column) (*ChartSpec, error)

var chartRules = map[ChartKind]chartRule{
	ChartHistogram: planHistogram,
	ChartBox:       planBox,
	ChartScatter:   planXY,
	ChartLine:      planXY,
	ChartHeatmap:   planHeatmap,
	ChartScatter3D: planScatter3D,
	ChartBar:       planBar,
}

// ChartKinds returns every supported chart kind in alphabetical order.
func ChartKinds() []ChartKind {
	kinds := make([]ChartKind, 0, len(chartRules))
	for k := range chartRules {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Plan validates req against h and materializes the chart's data. Rows
// missing any plotted column are skipped for this chart only. Failures are
// *InvalidChartRequestError.
func Plan(h *Handle, req ChartRequest) (*ChartSpec, error) {
	rule, ok := chartRules[req.Kind]
	if !ok {
		return nil, invalidChart(req.Kind, "unknown chart kind")
	}

	var color *column
	if req.Color != "" {
		idx, ok := h.index[req.Color]
		if !ok {
			return nil, invalidChart(req.Kind, "color column %q not found", req.Color)
		}
		color = h.cols[idx]
	}

	spec, err := rule(h, req, color)
	if err != nil {
		return nil, err
	}
	spec.Kind = req.Kind
	spec.Theme = req.Theme
	if spec.Theme == "" {
		spec.Theme = DefaultTheme
	}
	spec.Encoding.Color = req.Color
	if spec.Encoding.Legend == "" {
		spec.Encoding.Legend = LegendNone
		if color != nil {
			spec.Encoding.Legend = LegendInside
		}
	}
	return spec, nil
}

// numericColumns resolves names to numeric columns, requiring exactly want.
func numericColumns(h *Handle, kind ChartKind, names []string, want int) ([]*column, error) {
	if len(names) != want {
		return nil, invalidChart(kind, "needs exactly %d numeric column(s), got %d", want, len(names))
	}
	return resolveNumeric(h, kind, names)
}

func resolveNumeric(h *Handle, kind ChartKind, names []string) ([]*column, error) {
	cols := make([]*column, len(names))
	for i, name := range names {
		idx, ok := h.index[name]
		if !ok {
			return nil, invalidChart(kind, "column %q not found", name)
		}
		c := h.cols[idx]
		if c.typ != TypeNumeric {
			return nil, invalidChart(kind, "column %q is %s, not numeric", name, c.typ)
		}
		cols[i] = c
	}
	return cols, nil
}

// points gathers the aligned values of cols over the first limit rows
// (every row when limit <= 0), skipping rows where any of them, or the color
// column, is missing.
func points(h *Handle, cols []*column, color *column, limit int) (series []Series, labels []string, used, skipped int) {
	n := h.rows
	if limit > 0 && limit < n {
		n = limit
	}
	series = make([]Series, len(cols))
	for k, c := range cols {
		series[k] = Series{Name: c.name, Values: make([]float64, 0, n)}
	}
	if color != nil {
		labels = make([]string, 0, n)
	}

rows:
	for i := 0; i < n; i++ {
		if color != nil && color.cells[i].Missing {
			skipped++
			continue
		}
		for _, c := range cols {
			if c.cells[i].Missing {
				skipped++
				continue rows
			}
		}
		for k, c := range cols {
			series[k].Values = append(series[k].Values, c.nums[i])
		}
		if color != nil {
			labels = append(labels, color.cells[i].Text)
		}
		used++
	}
	return series, labels, used, skipped
}

func planHistogram(h *Handle, req ChartRequest, color *column) (*ChartSpec, error) {
	cols, err := numericColumns(h, req.Kind, req.Columns, 1)
	if err != nil {
		return nil, err
	}
	series, labels, used, skipped := points(h, cols, color, 0)
	return &ChartSpec{
		Columns:     req.Columns,
		Encoding:    Encoding{X: cols[0].name},
		Series:      series,
		Labels:      labels,
		RowsUsed:    used,
		RowsSkipped: skipped,
	}, nil
}

func planBox(h *Handle, req ChartRequest, color *column) (*ChartSpec, error) {
	cols, err := numericColumns(h, req.Kind, req.Columns, 1)
	if err != nil {
		return nil, err
	}
	series, labels, used, skipped := points(h, cols, color, 0)
	if used == 0 {
		return nil, invalidChart(req.Kind, "column %q has no values", cols[0].name)
	}
	return &ChartSpec{
		Columns:     req.Columns,
		Encoding:    Encoding{Y: cols[0].name},
		Series:      series,
		Labels:      labels,
		Box:         boxStats(series[0].Values),
		RowsUsed:    used,
		RowsSkipped: skipped,
	}, nil
}

func boxStats(vals []float64) *BoxStats {
	sorted := sortedCopy(vals)
	b := &BoxStats{
		Min:      sorted[0],
		Q1:       quantile(sorted, 0.25),
		Median:   quantile(sorted, 0.5),
		Q3:       quantile(sorted, 0.75),
		Max:      sorted[len(sorted)-1],
		Outliers: []float64{},
	}
	iqr := b.Q3 - b.Q1
	lo, hi := b.Q1-1.5*iqr, b.Q3+1.5*iqr
	b.LowerWhisker, b.UpperWhisker = b.Max, b.Min
	for _, v := range sorted {
		if v < lo || v > hi {
			b.Outliers = append(b.Outliers, v)
			continue
		}
		b.LowerWhisker = math.Min(b.LowerWhisker, v)
		b.UpperWhisker = math.Max(b.UpperWhisker, v)
	}
	return b
}

// planXY serves scatter and line charts. Line points are sorted by x.
func planXY(h *Handle, req ChartRequest, color *column) (*ChartSpec, error) {
	cols, err := numericColumns(h, req.Kind, req.Columns, 2)
	if err != nil {
		return nil, err
	}
	series, labels, used, skipped := points(h, cols, color, 0)
	if req.Kind == ChartLine {
		sortByX(series, labels)
	}
	return &ChartSpec{
		Columns:     req.Columns,
		Encoding:    Encoding{X: cols[0].name, Y: cols[1].name},
		Series:      series,
		Labels:      labels,
		RowsUsed:    used,
		RowsSkipped: skipped,
	}, nil
}

// sortByX reorders every series (and labels) by ascending series[0] values,
// keeping row order among equal x.
func sortByX(series []Series, labels []string) {
	n := len(series[0].Values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	xs := series[0].Values
	sort.SliceStable(order, func(a, b int) bool { return xs[order[a]] < xs[order[b]] })

	for k := range series {
		vals := make([]float64, n)
		for i, o := range order {
			vals[i] = series[k].Values[o]
		}
		series[k].Values = vals
	}
	if labels != nil {
		sorted := make([]string, n)
		for i, o := range order {
			sorted[i] = labels[o]
		}
		copy(labels, sorted)
	}
}

func planHeatmap(h *Handle, req ChartRequest, _ *column) (*ChartSpec, error) {
	names := req.Columns
	if len(names) == 0 {
		names = h.ColumnsOfType(TypeNumeric)
	}
	if len(names) < 2 {
		return nil, invalidChart(req.Kind, "needs at least 2 numeric columns, got %d", len(names))
	}
	cols, err := resolveNumeric(h, req.Kind, names)
	if err != nil {
		return nil, err
	}

	m := &CorrelationMatrix{Columns: names, Values: make([][]float64, len(cols))}
	for i := range cols {
		m.Values[i] = make([]float64, len(cols))
	}
	for i := range cols {
		m.Values[i][i] = 1
		for j := i + 1; j < len(cols); j++ {
			r := pearson(cols[i], cols[j])
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}

	_, _, used, skipped := points(h, cols, nil, 0)
	return &ChartSpec{
		Columns:     names,
		Encoding:    Encoding{Legend: LegendOutside},
		Matrix:      m,
		RowsUsed:    used,
		RowsSkipped: skipped,
	}, nil
}

func planScatter3D(h *Handle, req ChartRequest, color *column) (*ChartSpec, error) {
	names := req.Columns
	if len(names) == 0 {
		numeric := h.ColumnsOfType(TypeNumeric)
		if len(numeric) < 3 {
			return nil, invalidChart(req.Kind, "needs 3 numeric columns, dataset has %d", len(numeric))
		}
		names = numeric[:3]
	}
	cols, err := numericColumns(h, req.Kind, names, 3)
	if err != nil {
		return nil, err
	}
	series, labels, used, skipped := points(h, cols, color, 0)
	return &ChartSpec{
		Columns:     names,
		Encoding:    Encoding{X: cols[0].name, Y: cols[1].name, Z: cols[2].name},
		Series:      series,
		Labels:      labels,
		RowsUsed:    used,
		RowsSkipped: skipped,
	}, nil
}

// planBar plots a numeric y against any x over the first rows of the dataset.
func planBar(h *Handle, req ChartRequest, color *column) (*ChartSpec, error) {
	if len(req.Columns) != 2 {
		return nil, invalidChart(req.Kind, "needs an x column and a numeric y column, got %d column(s)", len(req.Columns))
	}
	xi, ok := h.index[req.Columns[0]]
	if !ok {
		return nil, invalidChart(req.Kind, "column %q not found", req.Columns[0])
	}
	x := h.cols[xi]
	if x.typ == TypeOther {
		return nil, invalidChart(req.Kind, "column %q has no values", x.name)
	}
	ys, err := resolveNumeric(h, req.Kind, req.Columns[1:])
	if err != nil {
		return nil, err
	}
	y := ys[0]

	n := min(h.rows, barRowLimit)
	spec := &ChartSpec{
		Columns:  req.Columns,
		Encoding: Encoding{X: x.name, Y: y.name},
		Series:   []Series{{Name: y.name, Values: make([]float64, 0, n)}},
	}
	for i := 0; i < n; i++ {
		if x.cells[i].Missing || y.cells[i].Missing || (color != nil && color.cells[i].Missing) {
			spec.RowsSkipped++
			continue
		}
		spec.Categories = append(spec.Categories, x.cells[i].Text)
		spec.Series[0].Values = append(spec.Series[0].Values, y.nums[i])
		if color != nil {
			spec.Labels = append(spec.Labels, color.cells[i].Text)
		}
		spec.RowsUsed++
	}
	return spec, nil
}
