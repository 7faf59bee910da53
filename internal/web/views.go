package web

//go:generate templ generate -f views.templ

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/JonMunkholm/dataprep/internal/core"
	"github.com/JonMunkholm/dataprep/internal/engine"
)

// Themes offered by the chart form.
var chartThemes = []string{engine.DefaultTheme, "plasma", "inferno", "magma", "cividis", "coolwarm"}

var encodingMethods = []engine.EncodingMethod{engine.EncodeLabel, engine.EncodeOrdinal, engine.EncodeOneHot}

// chartAxis is one column picker of the chart form.
type chartAxis struct {
	Field string
	Label string
}

var chartAxes = []chartAxis{
	{Field: "x_col", Label: "X"},
	{Field: "y_col", Label: "Y"},
	{Field: "z_col", Label: "Z"},
	{Field: "color_col", Label: "Color"},
}

// dashboardData is everything the dashboard renders.
type dashboardData struct {
	View      *core.DatasetView
	History   []core.HistoryEntry
	Chart     *engine.ChartSpec
	MapColumn string
	MapValues []string
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', 6, 64)
}

func optString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func categoricalColumns(v *core.DatasetView) []string {
	var out []string
	for _, c := range v.Profile.Columns {
		if c.Type == engine.TypeCategorical {
			out = append(out, c.Name)
		}
	}
	return out
}

// chartJSON is the indented spec shown under a planned chart.
func chartJSON(spec *engine.ChartSpec) (string, error) {
	payload, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode chart: %w", err)
	}
	return string(payload), nil
}

// transformURL links to the value-mapping form for column.
func transformURL(column string) string {
	return "/transform?column=" + url.QueryEscape(column)
}
