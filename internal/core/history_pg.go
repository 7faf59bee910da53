package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/dataprep/internal/engine"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS dataset_operations (
    id          UUID PRIMARY KEY,
    session_id  UUID NOT NULL,
    action      TEXT NOT NULL,
    operation   JSONB,
    message     TEXT NOT NULL,
    row_count   INTEGER NOT NULL,
    col_count   INTEGER NOT NULL,
    ip_address  TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS dataset_operations_session_idx
    ON dataset_operations (session_id, created_at);
`

const insertHistory = `
INSERT INTO dataset_operations
    (id, session_id, action, operation, message, row_count, col_count, ip_address, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const listHistory = `
SELECT id, session_id, action, operation, message, row_count, col_count, ip_address, created_at
FROM dataset_operations
WHERE session_id = $1
ORDER BY created_at, id`

const purgeHistory = `DELETE FROM dataset_operations WHERE session_id = $1`

// PgHistory stores session history in PostgreSQL.
type PgHistory struct {
	db DBTX
}

// NewPgHistory wraps a pool or transaction.
func NewPgHistory(db DBTX) *PgHistory {
	return &PgHistory{db: db}
}

// EnsureSchema creates the history table if it does not exist.
func (p *PgHistory) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, historySchema); err != nil {
		return fmt.Errorf("create dataset_operations: %w", err)
	}
	return nil
}

func (p *PgHistory) Record(ctx context.Context, e HistoryEntry) error {
	var opJSON []byte
	if e.Operation != nil {
		var err error
		opJSON, err = json.Marshal(e.Operation)
		if err != nil {
			return fmt.Errorf("encode operation: %w", err)
		}
	}

	_, err := p.db.Exec(ctx, insertHistory,
		ToPgUUID(e.ID),
		ToPgUUID(e.SessionID),
		string(e.Action),
		opJSON,
		e.Message,
		int32(e.Rows),
		int32(e.Cols),
		ToPgText(e.IPAddress),
		pgtype.Timestamptz{Time: e.CreatedAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (p *PgHistory) List(ctx context.Context, sessionID string) ([]HistoryEntry, error) {
	rows, err := p.db.Query(ctx, listHistory, ToPgUUID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		e, err := scanHistoryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

func (p *PgHistory) Purge(ctx context.Context, sessionID string) error {
	if _, err := p.db.Exec(ctx, purgeHistory, ToPgUUID(sessionID)); err != nil {
		return fmt.Errorf("purge history: %w", err)
	}
	return nil
}

func scanHistoryRow(rows pgx.Rows) (*HistoryEntry, error) {
	var (
		id        pgtype.UUID
		sessionID pgtype.UUID
		action    string
		opJSON    []byte
		message   string
		rowCount  int32
		colCount  int32
		ipAddress pgtype.Text
		createdAt pgtype.Timestamptz
	)
	if err := rows.Scan(&id, &sessionID, &action, &opJSON, &message, &rowCount, &colCount, &ipAddress, &createdAt); err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}

	e := &HistoryEntry{
		ID:        PgUUIDToString(id),
		SessionID: PgUUIDToString(sessionID),
		Action:    HistoryAction(action),
		Message:   message,
		Rows:      int(rowCount),
		Cols:      int(colCount),
		CreatedAt: createdAt.Time,
	}
	if ipAddress.Valid {
		e.IPAddress = ipAddress.String
	}
	if len(opJSON) > 0 {
		var op engine.Operation
		if err := json.Unmarshal(opJSON, &op); err != nil {
			return nil, fmt.Errorf("decode operation: %w", err)
		}
		e.Operation = &op
	}
	return e, nil
}
