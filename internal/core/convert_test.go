package core

import (
	"testing"

	"github.com/google/uuid"
)

func TestToPgText(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantStr   string
	}{
		{"empty", "", false, ""},
		{"whitespace only", "   \t", false, ""},
		{"ip address", "10.0.0.1", true, "10.0.0.1"},
		{"trimmed", "  192.168.1.5 ", true, "192.168.1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPgText(tt.input)
			if got.Valid != tt.wantValid {
				t.Errorf("ToPgText(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if got.String != tt.wantStr {
				t.Errorf("ToPgText(%q).String = %q, want %q", tt.input, got.String, tt.wantStr)
			}
		})
	}
}

func TestPgUUIDRoundTrip(t *testing.T) {
	id := uuid.New().String()

	pg := ToPgUUID(id)
	if !pg.Valid {
		t.Fatalf("ToPgUUID(%q) is invalid", id)
	}
	if got := PgUUIDToString(pg); got != id {
		t.Errorf("PgUUIDToString = %q, want %q", got, id)
	}
}

func TestToPgUUID_Invalid(t *testing.T) {
	for _, s := range []string{"", "not-a-uuid", "1234"} {
		if got := ToPgUUID(s); got.Valid {
			t.Errorf("ToPgUUID(%q).Valid = true, want false", s)
		}
	}
	if got := PgUUIDToString(ToPgUUID("")); got != "" {
		t.Errorf("PgUUIDToString(invalid) = %q, want empty", got)
	}
}
