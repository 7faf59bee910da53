package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dataprep/internal/engine"
)

const ageCityCSV = "age,city\n25,NY\n,LA\n40,NY\n"

func mustHandle(t *testing.T, raw string) *engine.Handle {
	t.Helper()
	h, err := engine.Load([]byte(raw))
	require.NoError(t, err)
	return h
}

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	return NewService(NewMemoryHistory(), NewMetrics(), opts)
}

func upload(t *testing.T, svc *Service, raw string) *DatasetView {
	t.Helper()
	view, err := svc.Upload(context.Background(), "people.csv", strings.NewReader(raw))
	require.NoError(t, err)
	return view
}

func TestService_Upload(t *testing.T) {
	svc := newTestService(t, Options{})
	view := upload(t, svc, ageCityCSV)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "people.csv", view.FileName)
	assert.Equal(t, []string{"age", "city"}, view.Columns)
	assert.Equal(t, 3, view.Profile.Rows)
	assert.Len(t, view.Preview, 3)
	assert.True(t, view.Flags["age"].Has(engine.FlagHasMissing))
	assert.Equal(t, []string{"age"}, view.MissingColumns())
	assert.Equal(t, []string{"age"}, view.NumericColumns())
	assert.Equal(t, 1, svc.SessionCount())
}

func TestService_UploadErrors(t *testing.T) {
	svc := newTestService(t, Options{MaxFileSize: 16})
	ctx := context.Background()

	_, err := svc.Upload(ctx, "big.csv", strings.NewReader(strings.Repeat("a,b\n", 10)))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.Upload(ctx, "blank.csv", strings.NewReader("  \n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = svc.Upload(ctx, "none.csv", nil)
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = svc.Upload(ctx, "bad.csv", strings.NewReader("a,b\n1\n"))
	var pe *engine.ParseError
	assert.True(t, errors.As(err, &pe))

	assert.Equal(t, 0, svc.SessionCount(), "failed uploads must not create sessions")
}

func TestService_UploadUsesEngineOptions(t *testing.T) {
	svc := newTestService(t, Options{Delimiter: ';', ExtraMissingTokens: []string{"?"}})
	view := upload(t, svc, "a;b\n1;?\n2;x\n")

	assert.Equal(t, []string{"a", "b"}, view.Columns)
	b, ok := view.Profile.Column("b")
	require.True(t, ok)
	assert.Equal(t, 1, b.Missing)
}

func TestService_ApplyAndHistory(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()
	view := upload(t, svc, ageCityCSV)

	res, err := svc.Apply(ctx, view.ID, ApplyRequest{
		Operation:   engine.Operation{Kind: engine.OpFillMean},
		Fingerprint: view.Fingerprint,
	})
	require.NoError(t, err)
	assert.Equal(t, "Filled 1 missing numeric values with the column mean.", res.Message)
	assert.Equal(t, "32.5", res.View.Preview[1][0])

	again, err := svc.Dataset(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Profile.Columns[0].Missing, "session must hold the new handle")

	entries, err := svc.History(ctx, view.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionUpload, entries[0].Action)
	assert.Equal(t, ActionOperation, entries[1].Action)
	require.NotNil(t, entries[1].Operation)
	assert.Equal(t, engine.OpFillMean, entries[1].Operation.Kind)
}

func TestService_ApplyStaleFingerprint(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()
	view := upload(t, svc, ageCityCSV)

	_, err := svc.Apply(ctx, view.ID, ApplyRequest{
		Operation:   engine.Operation{Kind: engine.OpDropColumn, Column: "age"},
		Fingerprint: view.Fingerprint,
	})
	require.NoError(t, err)

	// A second client still holding the original fingerprint.
	_, err = svc.Apply(ctx, view.ID, ApplyRequest{
		Operation:   engine.Operation{Kind: engine.OpDropRows},
		Fingerprint: view.Fingerprint,
	})
	var sme *engine.SchemaMismatchError
	require.True(t, errors.As(err, &sme), "got %v", err)

	_, err = svc.Apply(ctx, view.ID, ApplyRequest{
		Operation:      engine.Operation{Kind: engine.OpDropRows},
		ExpectedSchema: view.Profile.Schema,
	})
	assert.True(t, errors.As(err, &sme), "explicit schema must be checked too")
}

func TestService_ApplyFailureKeepsHandle(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()
	view := upload(t, svc, "a,b\n1,\n,2\n")

	_, err := svc.Apply(ctx, view.ID, ApplyRequest{Operation: engine.Operation{Kind: engine.OpDropCols}})
	var ace *engine.AllColumnsRemovedError
	require.True(t, errors.As(err, &ace))

	after, err := svc.Dataset(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Fingerprint, after.Fingerprint)
}

func TestService_ConcurrentApplySerialized(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	var sb strings.Builder
	sb.WriteString("a,b\n")
	for i := 0; i < 50; i++ {
		sb.WriteString("1,x\n")
	}
	view := upload(t, svc, sb.String())

	// All writers hold the same fingerprint; once one rename lands the rest
	// must see a changed schema.
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Apply(ctx, view.ID, ApplyRequest{
				Operation:   engine.Operation{Kind: engine.OpRename, Column: "a", NewName: "renamed"},
				Fingerprint: view.Fingerprint,
			})
			if err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied, "only the first writer may apply against the original schema")
	final, err := svc.Dataset(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"renamed", "b"}, final.Columns)
}

func TestService_ChartExportValues(t *testing.T) {
	svc := newTestService(t, Options{Theme: "plasma"})
	ctx := context.Background()
	view := upload(t, svc, "x,y,c\n1,2,a\n2,4,b\n3,6,a\n")

	spec, err := svc.Chart(ctx, view.ID, engine.ChartRequest{Kind: engine.ChartScatter, Columns: []string{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, "plasma", spec.Theme)

	_, err = svc.Chart(ctx, view.ID, engine.ChartRequest{Kind: engine.ChartScatter3D})
	var ice *engine.InvalidChartRequestError
	assert.True(t, errors.As(err, &ice))

	name, data, err := svc.Export(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "people_modified.csv", name)
	assert.Equal(t, "x,y,c\n1,2,a\n2,4,b\n3,6,a\n", string(data))

	vals, err := svc.UniqueValues(ctx, view.ID, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, vals)
}

func TestService_UnknownSession(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.Dataset(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Apply(ctx, "missing", ApplyRequest{Operation: engine.Operation{Kind: engine.OpDropRows}})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, _, err = svc.Export(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "missing"), ErrSessionNotFound)
}

func TestService_Delete(t *testing.T) {
	history := NewMemoryHistory()
	svc := NewService(history, nil, Options{})
	ctx := context.Background()
	view := upload(t, svc, ageCityCSV)

	require.NoError(t, svc.Delete(ctx, view.ID))
	assert.Equal(t, 0, svc.SessionCount())

	entries, err := history.List(ctx, view.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_ReapIdle(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()
	stale := upload(t, svc, ageCityCSV)

	cutoff := time.Now()
	time.Sleep(2 * time.Millisecond)
	fresh := upload(t, svc, ageCityCSV)

	evicted := svc.ReapIdle(ctx, cutoff.Add(time.Millisecond))
	assert.Equal(t, []string{stale.ID}, evicted)

	_, err := svc.Dataset(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Dataset(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestService_SessionReaperStops(t *testing.T) {
	svc := newTestService(t, Options{})
	upload(t, svc, ageCityCSV)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartSessionReaper(ctx, ReaperConfig{TTL: time.Nanosecond, CheckInterval: 5 * time.Millisecond})
		close(done)
	}()

	assert.Eventually(t, func() bool { return svc.SessionCount() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}

func TestService_Status(t *testing.T) {
	svc := newTestService(t, Options{MaxConcurrentUploads: 3})
	upload(t, svc, ageCityCSV)

	status := svc.Status()
	assert.Equal(t, 1, status.Sessions)
	assert.Equal(t, 3, status.Uploads.MaxConcurrent)
	assert.Equal(t, 0, status.Uploads.Active)
	assert.NoError(t, svc.Drain(context.Background()))
}
