package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dataprep/internal/engine"
	"github.com/JonMunkholm/dataprep/internal/logging"
)

var (
	// ErrSessionNotFound is returned for unknown or evicted session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrFileTooLarge is returned when an upload exceeds Options.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when an upload carries no file.
	ErrNoFile = errors.New("no file provided")

	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("empty file")
)

const (
	DefaultMaxFileSize = 100 << 20
	DefaultSessionTTL  = 2 * time.Hour
	DefaultPreviewRows = 5
)

// Options configures a Service. Zero values fall back to package defaults.
type Options struct {
	MaxFileSize          int64
	MaxConcurrentUploads int
	MaxUploadWait        time.Duration
	SessionTTL           time.Duration
	PreviewRows          int

	// Engine settings
	HighCardinality float64
	Delimiter       rune
	// ExtraMissingTokens are treated as missing on top of the engine defaults.
	ExtraMissingTokens []string
	Theme              string
}

func (o Options) withDefaults() Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
	if o.PreviewRows <= 0 {
		o.PreviewRows = DefaultPreviewRows
	}
	if o.Delimiter == 0 {
		o.Delimiter = engine.DefaultDelimiter
	}
	if o.Theme == "" {
		o.Theme = engine.DefaultTheme
	}
	return o
}

// Service owns the dataset sessions. Each session maps an id to the current
// Handle; handles are immutable, so a session moves forward by swapping in
// the Handle an operation returns. Writes to one session are serialized by
// the session's own mutex.
type Service struct {
	opts    Options
	history HistoryStore
	limiter *UploadLimiter
	metrics *Metrics

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	id        string
	fileName  string
	createdAt time.Time
	lastUsed  atomic.Int64 // unix nanoseconds

	mu     sync.Mutex
	handle *engine.Handle
}

func (s *session) touch(now time.Time) { s.lastUsed.Store(now.UnixNano()) }

func (s *session) idleSince() time.Time { return time.Unix(0, s.lastUsed.Load()) }

// NewService creates a Service. A nil history uses NewMemoryHistory and a nil
// metrics uses NewMetrics.
func NewService(history HistoryStore, metrics *Metrics, opts Options) *Service {
	opts = opts.withDefaults()
	if history == nil {
		history = NewMemoryHistory()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	limiter := NewUploadLimiter(opts.MaxConcurrentUploads, opts.MaxUploadWait)
	limiter.OnChange(func(active int) { metrics.uploadsInFlight.Set(float64(active)) })

	return &Service{
		opts:     opts,
		history:  history,
		limiter:  limiter,
		metrics:  metrics,
		sessions: make(map[string]*session),
	}
}

// Metrics returns the service's collectors.
func (s *Service) Metrics() *Metrics { return s.metrics }

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

func (s *Service) loadOptions() []engine.LoadOption {
	tokens := append(append([]string{}, engine.DefaultMissingTokens...), s.opts.ExtraMissingTokens...)
	return []engine.LoadOption{
		engine.WithDelimiter(s.opts.Delimiter),
		engine.WithMissingTokens(tokens),
	}
}

// Upload parses r into a new session. The read is capped at MaxFileSize and
// parsing waits for an upload slot.
func (s *Service) Upload(ctx context.Context, fileName string, r io.Reader) (view *DatasetView, err error) {
	size := 0
	defer func() { s.metrics.observeUpload(size, err) }()

	if r == nil {
		return nil, ErrNoFile
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("upload %s: %w", fileName, err)
	}
	defer s.limiter.Release()

	data, err := io.ReadAll(io.LimitReader(r, s.opts.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	size = len(data)
	if int64(size) > s.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, fileName, s.opts.MaxFileSize)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	h, err := engine.Load(data, s.loadOptions()...)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", fileName, err)
	}

	now := time.Now()
	sess := &session{
		id:        uuid.New().String(),
		fileName:  fileName,
		createdAt: now,
		handle:    h,
	}
	sess.touch(now)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	s.metrics.activeSessions.Set(float64(n))

	entry := newHistoryEntry(ctx, sess.id, ActionUpload, h)
	entry.Message = fmt.Sprintf("Uploaded %s (%d rows, %d columns).", fileName, h.RowCount(), h.ColumnCount())
	s.record(ctx, entry)

	logging.WithFields(ctx, "session_id", sess.id, "file", fileName).Info("dataset uploaded",
		"rows", h.RowCount(),
		"cols", h.ColumnCount(),
		"bytes", size,
		"user_agent", RequestMetaFrom(ctx).UserAgent,
	)

	return s.view(sess, h), nil
}

// lookup returns the session for id and marks it used.
func (s *Service) lookup(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch(time.Now())
	return sess, nil
}

// current returns the session's handle under its lock.
func (s *Service) current(id string) (*session, *engine.Handle, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	sess.mu.Lock()
	h := sess.handle
	sess.mu.Unlock()
	return sess, h, nil
}

// Dataset profiles the session's current handle.
func (s *Service) Dataset(_ context.Context, id string) (*DatasetView, error) {
	sess, h, err := s.current(id)
	if err != nil {
		return nil, err
	}
	return s.view(sess, h), nil
}

func (s *Service) view(sess *session, h *engine.Handle) *DatasetView {
	p := engine.Profile(h)
	return &DatasetView{
		ID:          sess.id,
		FileName:    sess.fileName,
		Columns:     h.Columns(),
		Profile:     p,
		Flags:       engine.Classify(p, engine.ClassifyOptions{HighCardinalityThreshold: s.opts.HighCardinality}),
		Preview:     h.Head(s.opts.PreviewRows),
		Fingerprint: p.Schema.Fingerprint(),
		UpdatedAt:   sess.idleSince(),
	}
}

// Apply runs one operation against the session. The expected schema check
// and the swap happen under the session lock, so concurrent writers see each
// other's results and a stale caller gets *engine.SchemaMismatchError.
func (s *Service) Apply(ctx context.Context, id string, req ApplyRequest) (res *OperationResult, err error) {
	start := time.Now()
	defer func() { s.metrics.observeOperation(opLabel(req.Operation.Kind), start, err) }()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	before := sess.handle
	if req.Fingerprint != "" && len(req.ExpectedSchema) == 0 {
		if actual := before.Schema(); actual.Fingerprint() != req.Fingerprint {
			sess.mu.Unlock()
			return nil, &engine.SchemaMismatchError{
				Actual: actual,
				Reason: "dataset changed since it was last profiled",
			}
		}
	}
	after, err := engine.Apply(before, req.Operation, req.ExpectedSchema)
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	sess.handle = after
	sess.mu.Unlock()

	msg := engine.Summarize(req.Operation, before, after)
	op := req.Operation
	entry := newHistoryEntry(ctx, sess.id, ActionOperation, after)
	entry.Operation = &op
	entry.Message = msg
	s.record(ctx, entry)

	logging.WithFields(ctx, "session_id", sess.id).Info("operation applied",
		"op", req.Operation.String(),
		"rows", after.RowCount(),
		"cols", after.ColumnCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &OperationResult{Message: msg, View: s.view(sess, after)}, nil
}

// Chart plans a chart over the session's current handle. An empty theme
// takes the configured default.
func (s *Service) Chart(ctx context.Context, id string, req engine.ChartRequest) (spec *engine.ChartSpec, err error) {
	defer func() { s.metrics.observeChart(chartLabel(req.Kind), err) }()

	_, h, err := s.current(id)
	if err != nil {
		return nil, err
	}
	if req.Theme == "" {
		req.Theme = s.opts.Theme
	}
	spec, err = engine.Plan(h, req)
	if err != nil {
		return nil, err
	}
	logging.WithFields(ctx, "session_id", id).Debug("chart planned",
		"kind", req.Kind,
		"rows_used", spec.RowsUsed,
		"rows_skipped", spec.RowsSkipped,
	)
	return spec, nil
}

// Export serializes the session's handle and names the download after the
// uploaded file.
func (s *Service) Export(ctx context.Context, id string) (string, []byte, error) {
	sess, h, err := s.current(id)
	if err != nil {
		return "", nil, err
	}
	data, err := h.Bytes()
	if err != nil {
		return "", nil, fmt.Errorf("export %s: %w", id, err)
	}

	entry := newHistoryEntry(ctx, sess.id, ActionExport, h)
	entry.Message = fmt.Sprintf("Exported %d rows.", h.RowCount())
	s.record(ctx, entry)

	return ModifiedFileName(sess.fileName), data, nil
}

// UniqueValues lists a column's distinct values for the value-mapping form.
func (s *Service) UniqueValues(_ context.Context, id, column string) ([]string, error) {
	_, h, err := s.current(id)
	if err != nil {
		return nil, err
	}
	return engine.UniqueValues(h, column, engine.DefaultUniqueLimit)
}

// History lists the session's recorded events, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	if _, err := s.lookup(id); err != nil {
		return nil, err
	}
	entries, err := s.history.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// Delete drops a session and its history.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.metrics.activeSessions.Set(float64(n))

	if err := s.history.Purge(ctx, id); err != nil {
		return fmt.Errorf("purge history: %w", err)
	}
	logging.WithFields(ctx, "session_id", id).Info("session deleted")
	return nil
}

// record stores a history entry. A failing store is logged but never fails
// the operation that produced the entry.
func (s *Service) record(ctx context.Context, entry HistoryEntry) {
	if err := s.history.Record(ctx, entry); err != nil {
		logging.WithFields(ctx, "session_id", entry.SessionID).Warn("history record failed",
			"action", entry.Action,
			"error", err,
		)
	}
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Status reports session and upload-slot usage.
func (s *Service) Status() ServiceStatus {
	return ServiceStatus{Sessions: s.SessionCount(), Uploads: s.limiter.Status()}
}

// Drain waits for in-flight uploads to finish.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
