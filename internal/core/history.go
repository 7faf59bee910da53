package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dataprep/internal/engine"
)

// HistoryAction is the kind of event recorded for a session.
type HistoryAction string

const (
	ActionUpload    HistoryAction = "upload"
	ActionOperation HistoryAction = "operation"
	ActionExport    HistoryAction = "export"
)

// HistoryEntry records one event in a dataset session. Operation is set for
// ActionOperation entries and carries the applied mapping for map_values.
type HistoryEntry struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Action    HistoryAction     `json:"action"`
	Operation *engine.Operation `json:"operation,omitempty"`
	Message   string            `json:"message"`
	Rows      int               `json:"rows"`
	Cols      int               `json:"cols"`
	IPAddress string            `json:"ip_address,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// HistoryStore persists session history. Implementations must be safe for
// concurrent use.
type HistoryStore interface {
	Record(ctx context.Context, entry HistoryEntry) error
	List(ctx context.Context, sessionID string) ([]HistoryEntry, error)
	Purge(ctx context.Context, sessionID string) error
}

// newHistoryEntry fills the fields every entry shares.
func newHistoryEntry(ctx context.Context, sessionID string, action HistoryAction, h *engine.Handle) HistoryEntry {
	return HistoryEntry{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Action:    action,
		Rows:      h.RowCount(),
		Cols:      h.ColumnCount(),
		IPAddress: RequestMetaFrom(ctx).IPAddress,
		CreatedAt: time.Now().UTC(),
	}
}

// MemoryHistory is a HistoryStore kept in process memory. It is the default
// when no database is configured; entries are lost on restart.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[string][]HistoryEntry
}

// NewMemoryHistory creates an empty in-memory store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]HistoryEntry)}
}

func (m *MemoryHistory) Record(_ context.Context, entry HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.SessionID] = append(m.entries[entry.SessionID], entry)
	return nil
}

// List returns a session's entries oldest first.
func (m *MemoryHistory) List(_ context.Context, sessionID string) ([]HistoryEntry, error) {
	m.mu.RLock()
	src := m.entries[sessionID]
	out := make([]HistoryEntry, len(src))
	copy(out, src)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryHistory) Purge(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.entries, sessionID)
	m.mu.Unlock()
	return nil
}
