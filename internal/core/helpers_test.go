package core

import "testing"

func TestModifiedFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"sales.csv", "sales_modified.csv"},
		{"report.2024.csv", "report.2024_modified.csv"},
		{"data", "data_modified.csv"},
		{"/tmp/uploads/people.tsv", "people_modified.csv"},
		{`C:\Users\me\orders.csv`, "orders_modified.csv"},
		{"", "dataset_modified.csv"},
		{".csv", "dataset_modified.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ModifiedFileName(tt.input); got != tt.want {
				t.Errorf("ModifiedFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
