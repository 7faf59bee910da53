package core

import (
	"path/filepath"
	"strings"
)

// ModifiedFileName derives the download name for an edited dataset:
// "sales.csv" becomes "sales_modified.csv".
func ModifiedFileName(uploaded string) string {
	base := filepath.Base(strings.ReplaceAll(uploaded, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == "/" {
		base = "dataset"
	}
	return base + "_modified.csv"
}
