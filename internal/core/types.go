package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/dataprep/internal/engine"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DatasetView is everything a dashboard needs to render a session: the
// profile, per-column defect flags, a preview of the first rows and the
// schema fingerprint to echo back with the next operation.
type DatasetView struct {
	ID          string                    `json:"id"`
	FileName    string                    `json:"file_name"`
	Columns     []string                  `json:"columns"`
	Profile     *engine.DatasetProfile    `json:"profile"`
	Flags       map[string]engine.FlagSet `json:"flags"`
	Preview     [][]string                `json:"preview"`
	Fingerprint string                    `json:"fingerprint"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// MissingColumns returns the names of columns with at least one missing cell.
func (v *DatasetView) MissingColumns() []string {
	var out []string
	for _, c := range v.Profile.Columns {
		if c.Missing > 0 {
			out = append(out, c.Name)
		}
	}
	return out
}

// NumericColumns returns the names of numeric columns in schema order.
func (v *DatasetView) NumericColumns() []string {
	var out []string
	for _, c := range v.Profile.Columns {
		if c.Type == engine.TypeNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// ApplyRequest is an operation plus the schema the caller last saw. Either
// ExpectedSchema or Fingerprint may be given; both empty skips the check.
type ApplyRequest struct {
	Operation      engine.Operation `json:"operation"`
	ExpectedSchema engine.Schema    `json:"expected_schema,omitempty"`
	Fingerprint    string           `json:"fingerprint,omitempty"`
}

// OperationResult is returned after a successful operation.
type OperationResult struct {
	Message string       `json:"message"`
	View    *DatasetView `json:"dataset"`
}

// ServiceStatus is reported by the health endpoint.
type ServiceStatus struct {
	Sessions int                 `json:"sessions"`
	Uploads  UploadLimiterStatus `json:"uploads"`
}
