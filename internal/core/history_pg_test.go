package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/dataprep/internal/engine"
)

// fakeDB keeps inserted dataset_operations rows in memory. Rows hold the
// exact values passed to Exec so Scan hands back the same pgtype values.
type fakeDB struct {
	rows [][]any
	err  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	switch {
	case strings.Contains(sql, "INSERT INTO dataset_operations"):
		f.rows = append(f.rows, args)
	case strings.Contains(sql, "DELETE FROM dataset_operations"):
		kept := f.rows[:0]
		for _, r := range f.rows {
			if r[1] != args[0] {
				kept = append(kept, r)
			}
		}
		f.rows = kept
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(_ context.Context, _ string, args ...interface{}) (pgx.Rows, error) {
	if f.err != nil {
		return nil, f.err
	}
	var matched [][]any
	for _, r := range f.rows {
		if r[1] == args[0] {
			matched = append(matched, r)
		}
	}
	return &fakeRows{rows: matched, pos: -1}, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...interface{}) pgx.Row { return nil }

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos], nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}

func TestPgHistory_RecordAndList(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	h := NewPgHistory(db)
	if err := h.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	s1, s2 := uuid.NewString(), uuid.NewString()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	op := &engine.Operation{
		Kind:    engine.OpMapValues,
		Column:  "city",
		Mapping: map[string]string{"NY": "New York"},
	}
	entries := []HistoryEntry{
		{ID: uuid.NewString(), SessionID: s1, Action: ActionUpload, Message: "uploaded", Rows: 3, Cols: 2, CreatedAt: at},
		{ID: uuid.NewString(), SessionID: s1, Action: ActionOperation, Operation: op, Message: "mapped", Rows: 3, Cols: 2,
			IPAddress: "10.0.0.1", CreatedAt: at.Add(time.Second)},
		{ID: uuid.NewString(), SessionID: s2, Action: ActionUpload, Message: "other", CreatedAt: at},
	}
	for _, e := range entries {
		if err := h.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := h.List(ctx, s1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(got))
	}

	first, second := got[0], got[1]
	if first.ID != entries[0].ID || first.SessionID != s1 {
		t.Errorf("ids = %s/%s, want %s/%s", first.ID, first.SessionID, entries[0].ID, s1)
	}
	if first.Operation != nil {
		t.Errorf("upload entry has operation %+v", first.Operation)
	}
	if first.IPAddress != "" {
		t.Errorf("empty ip stored as %q", first.IPAddress)
	}
	if first.Rows != 3 || first.Cols != 2 || first.Action != ActionUpload {
		t.Errorf("first = %+v", first)
	}
	if !first.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", first.CreatedAt, at)
	}

	if second.Operation == nil {
		t.Fatal("operation was not decoded")
	}
	if !reflect.DeepEqual(*second.Operation, *op) {
		t.Errorf("operation = %+v, want %+v", *second.Operation, *op)
	}
	if second.IPAddress != "10.0.0.1" {
		t.Errorf("IPAddress = %q", second.IPAddress)
	}

	if err := h.Purge(ctx, s1); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if got, _ := h.List(ctx, s1); len(got) != 0 {
		t.Errorf("after purge: %d entries", len(got))
	}
	if got, _ := h.List(ctx, s2); len(got) != 1 {
		t.Errorf("other session lost entries: %d", len(got))
	}
}

func TestPgHistory_BadOperationJSON(t *testing.T) {
	sid := ToPgUUID(uuid.NewString())
	db := &fakeDB{rows: [][]any{{
		ToPgUUID(uuid.NewString()), sid, "operation", []byte(`{"kind":`), "msg",
		int32(1), int32(1), pgtype.Text{}, pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}}}

	_, err := NewPgHistory(db).List(context.Background(), PgUUIDToString(sid))
	if err == nil || !strings.Contains(err.Error(), "decode operation") {
		t.Errorf("List error = %v, want decode operation error", err)
	}
}

func TestPgHistory_DatabaseErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	h := NewPgHistory(&fakeDB{err: boom})

	if err := h.Record(ctx, HistoryEntry{ID: uuid.NewString(), SessionID: uuid.NewString()}); !errors.Is(err, boom) {
		t.Errorf("Record error = %v", err)
	}
	if _, err := h.List(ctx, uuid.NewString()); !errors.Is(err, boom) {
		t.Errorf("List error = %v", err)
	}
	if err := h.EnsureSchema(ctx); !errors.Is(err, boom) {
		t.Errorf("EnsureSchema error = %v", err)
	}
}
