package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xyz = "x,y,z,label\n1,2,9,a\n2,4,7,b\n3,6,8,c\n4,8,1,d\n"

func requireChartError(t *testing.T, err error) *InvalidChartRequestError {
	t.Helper()
	var ice *InvalidChartRequestError
	require.True(t, errors.As(err, &ice), "got %v, want *InvalidChartRequestError", err)
	return ice
}

func TestPlan_Validation(t *testing.T) {
	h := mustLoad(t, xyz)
	twoNumeric := mustLoad(t, "a,b,c\n1,2,x\n3,4,y\n")

	tests := []struct {
		name string
		h    *Handle
		req  ChartRequest
	}{
		{"unknown kind", h, ChartRequest{Kind: "pie", Columns: []string{"x"}}},
		{"histogram needs one column", h, ChartRequest{Kind: ChartHistogram, Columns: []string{"x", "y"}}},
		{"histogram on text", h, ChartRequest{Kind: ChartHistogram, Columns: []string{"label"}}},
		{"scatter unknown column", h, ChartRequest{Kind: ChartScatter, Columns: []string{"x", "nope"}}},
		{"line needs two", h, ChartRequest{Kind: ChartLine, Columns: []string{"x"}}},
		{"heatmap needs two", h, ChartRequest{Kind: ChartHeatmap, Columns: []string{"x"}}},
		{"heatmap rejects text", h, ChartRequest{Kind: ChartHeatmap, Columns: []string{"x", "label"}}},
		{"scatter3d on two numeric", twoNumeric, ChartRequest{Kind: ChartScatter3D}},
		{"scatter3d explicit two", h, ChartRequest{Kind: ChartScatter3D, Columns: []string{"x", "y"}}},
		{"bar needs numeric y", h, ChartRequest{Kind: ChartBar, Columns: []string{"x", "label"}}},
		{"unknown color", h, ChartRequest{Kind: ChartScatter, Columns: []string{"x", "y"}, Color: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.h, tt.req)
			requireChartError(t, err)
		})
	}
}

func TestPlan_Heatmap(t *testing.T) {
	spec, err := Plan(mustLoad(t, xyz), ChartRequest{Kind: ChartHeatmap})
	require.NoError(t, err)

	m := spec.Matrix
	require.NotNil(t, m)
	assert.Equal(t, []string{"x", "y", "z"}, m.Columns)
	require.Len(t, m.Values, 3)
	for i := 0; i < 3; i++ {
		require.Len(t, m.Values[i], 3)
		assert.Equal(t, 1.0, m.At(i, i))
		for j := 0; j < 3; j++ {
			assert.Equal(t, m.At(i, j), m.At(j, i), "symmetry at %d,%d", i, j)
			assert.True(t, m.At(i, j) >= -1 && m.At(i, j) <= 1)
		}
	}
	assert.Equal(t, 1.0, m.At(0, 1), "x and y are perfectly correlated")
	assert.Equal(t, LegendOutside, spec.Encoding.Legend)
	assert.Equal(t, DefaultTheme, spec.Theme)
}

func TestPlan_HeatmapExtremeValues(t *testing.T) {
	h := mustLoad(t, "a,b\n1e308,5e307\n-1e308,-5e307\n2e307,1e307\n")
	spec, err := Plan(h, ChartRequest{Kind: ChartHeatmap})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, spec.Matrix.At(0, 1), 1e-9)
	_, err = json.Marshal(spec)
	assert.NoError(t, err)
}

func TestPlan_HeatmapUndefinedIsNull(t *testing.T) {
	h := mustLoad(t, "a,b\n1,5\n2,5\n3,5\n")
	spec, err := Plan(h, ChartRequest{Kind: ChartHeatmap, Columns: []string{"a", "b"}})
	require.NoError(t, err)

	assert.True(t, math.IsNaN(spec.Matrix.At(0, 1)))

	b, err := json.Marshal(spec)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"values":[[1,null],[null,1]]`)
}

func TestPlan_ScatterSkipsMissing(t *testing.T) {
	h := mustLoad(t, "x,y,g\n1,10,a\n,20,b\n3,,c\n4,40,d\n")
	spec, err := Plan(h, ChartRequest{Kind: ChartScatter, Columns: []string{"x", "y"}, Color: "g", Theme: "plasma"})
	require.NoError(t, err)

	require.Len(t, spec.Series, 2)
	assert.Equal(t, []float64{1, 4}, spec.Series[0].Values)
	assert.Equal(t, []float64{10, 40}, spec.Series[1].Values)
	assert.Equal(t, []string{"a", "d"}, spec.Labels)
	assert.Equal(t, 2, spec.RowsUsed)
	assert.Equal(t, 2, spec.RowsSkipped)
	assert.Equal(t, Encoding{X: "x", Y: "y", Color: "g", Legend: LegendInside}, spec.Encoding)
	assert.Equal(t, "plasma", spec.Theme)

	// the handle itself keeps every row
	assert.Equal(t, 4, h.RowCount())
}

func TestPlan_SkipsMissingColor(t *testing.T) {
	h := mustLoad(t, "x,y,g\n1,10,a\n2,20,NA\n3,30,\n4,40,b\n")

	spec, err := Plan(h, ChartRequest{Kind: ChartScatter, Columns: []string{"x", "y"}, Color: "g"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4}, spec.Series[0].Values)
	assert.Equal(t, []string{"a", "b"}, spec.Labels)
	assert.Equal(t, 2, spec.RowsSkipped)

	bar, err := Plan(h, ChartRequest{Kind: ChartBar, Columns: []string{"x", "y"}, Color: "g"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4"}, bar.Categories)
	assert.Equal(t, []string{"a", "b"}, bar.Labels)
	assert.Equal(t, 2, bar.RowsSkipped)

	// without a color column every row is plotted
	plain, err := Plan(h, ChartRequest{Kind: ChartScatter, Columns: []string{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, 4, plain.RowsUsed)
}

func TestPlan_LineSortedByX(t *testing.T) {
	h := mustLoad(t, "x,y,g\n3,30,c\n1,10,a\n2,20,b\n")
	spec, err := Plan(h, ChartRequest{Kind: ChartLine, Columns: []string{"x", "y"}, Color: "g"})
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 2, 3}, spec.Series[0].Values)
	assert.Equal(t, []float64{10, 20, 30}, spec.Series[1].Values)
	assert.Equal(t, []string{"a", "b", "c"}, spec.Labels)
}

func TestPlan_Box(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("v\n")
	for i := 1; i <= 9; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	sb.WriteString("100\n")

	spec, err := Plan(mustLoad(t, sb.String()), ChartRequest{Kind: ChartBox, Columns: []string{"v"}})
	require.NoError(t, err)

	b := spec.Box
	require.NotNil(t, b)
	assert.Equal(t, 1.0, b.Min)
	assert.Equal(t, 100.0, b.Max)
	assert.InDelta(t, 3.25, b.Q1, 1e-9)
	assert.InDelta(t, 5.5, b.Median, 1e-9)
	assert.InDelta(t, 7.75, b.Q3, 1e-9)
	assert.Equal(t, 1.0, b.LowerWhisker)
	assert.Equal(t, 9.0, b.UpperWhisker)
	assert.Equal(t, []float64{100}, b.Outliers)
	assert.Equal(t, "v", spec.Encoding.Y)
}

func TestPlan_Histogram(t *testing.T) {
	spec, err := Plan(mustLoad(t, ageCity), ChartRequest{Kind: ChartHistogram, Columns: []string{"age"}})
	require.NoError(t, err)

	assert.Equal(t, []float64{25, 40}, spec.Series[0].Values)
	assert.Equal(t, 1, spec.RowsSkipped)
	assert.Equal(t, LegendNone, spec.Encoding.Legend)
}

func TestPlan_Scatter3DDefaults(t *testing.T) {
	spec, err := Plan(mustLoad(t, xyz), ChartRequest{Kind: ChartScatter3D})
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y", "z"}, spec.Columns)
	assert.Equal(t, "z", spec.Encoding.Z)
	assert.Len(t, spec.Series, 3)
}

func TestPlan_BarFirstRows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("name,value\n")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&sb, "item%d,%d\n", i, i*10)
	}

	spec, err := Plan(mustLoad(t, sb.String()), ChartRequest{Kind: ChartBar, Columns: []string{"name", "value"}})
	require.NoError(t, err)

	assert.Len(t, spec.Categories, barRowLimit)
	assert.Equal(t, "item0", spec.Categories[0])
	assert.Equal(t, 190.0, spec.Series[0].Values[19])
	assert.Equal(t, barRowLimit, spec.RowsUsed)
}

func TestChartKinds(t *testing.T) {
	kinds := ChartKinds()
	assert.Len(t, kinds, 7)
	assert.Contains(t, kinds, ChartScatter3D)
	assert.Contains(t, kinds, ChartBar)
}
