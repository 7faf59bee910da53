// Package core provides the session layer over the dataset engine.
//
// The engine works on immutable [engine.Handle] values and knows nothing
// about users or requests. This package gives each uploaded file a session
// id, keeps the session's current handle and serializes the operations
// applied to it. It can be used by web handlers, the CLI or tests without
// modification.
//
// # Sessions
//
// A session is created by [Service.Upload] and moves forward one operation
// at a time through [Service.Apply]:
//
//	view, err := svc.Upload(ctx, "sales.csv", file)
//	res, err := svc.Apply(ctx, view.ID, core.ApplyRequest{
//	    Operation:   engine.Operation{Kind: engine.OpFillMean},
//	    Fingerprint: view.Fingerprint,
//	})
//
// Callers echo back the schema fingerprint they last rendered. If another
// request changed the dataset in between, Apply fails with
// *engine.SchemaMismatchError instead of operating on a layout the caller
// never saw.
//
// Sessions live in memory. [Service.StartSessionReaper] evicts any session
// idle longer than the configured TTL.
//
// # History
//
// Uploads, operations and exports are recorded through a [HistoryStore].
// [MemoryHistory] is the default; [PgHistory] persists to PostgreSQL when a
// database is configured. A failing store is logged and never fails the
// request that produced the entry.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DS001-DS003: Dataset errors (parse, schema mismatch, bad operation)
//   - CLN001: Cleaning errors
//   - CHT001: Chart errors
//   - FILE001-FILE005, UPL002-UPL005: Upload errors (size, busy, cancelled)
//
// # Metrics
//
// [Metrics] owns a Prometheus registry with upload, operation, chart and
// session collectors. Serve it with [Metrics.Handler].
package core
