// Package engine is the stateless data engine behind dataprep.
//
// It owns every piece of real logic in the application and nothing else:
// no logging, no HTTP, no storage. Callers hand it raw CSV bytes or an
// existing [Handle] and get back a new value. Handles are never mutated, so
// any number of goroutines may read the same Handle concurrently.
//
// # Dataset Handle
//
// [Load] parses delimited text into a [Handle]. Every column carries a
// [ColumnType] derived from its cells:
//
//   - numeric: every non-missing cell parses as a decimal number
//   - categorical: at least one non-missing cell is not a number
//   - other: the column has no non-missing cell at all
//
// The type is computed whenever a Handle is built, including after every
// transformation, and is never carried over from a previous Handle.
//
// # Profiling
//
// [Profile] computes a [DatasetProfile] and [Classify] derives a [FlagSet]
// per column from it (has_missing, all_missing, constant, high_cardinality).
//
// # Cleaning
//
// Each cleaning operation is a function from Handle to Handle:
//
//	h2, err := engine.ImputeNumeric(h, engine.StrategyMean)
//
// [Apply] dispatches an [Operation] by kind and refuses to run against a
// Handle whose [Schema] no longer matches the one the caller profiled.
//
// # Charts
//
// [Plan] validates a [ChartRequest] against the column types of a Handle and
// materializes the data series a renderer needs. Each chart kind has exactly
// one rule in a lookup table.
//
// # Errors
//
// Failures are typed so callers can branch with errors.As:
// [ParseError], [SchemaMismatchError], [InvalidChartRequestError],
// [AllColumnsRemovedError] and [InvalidOperationError].
package engine
