package engine

import (
	"encoding/json"
	"strings"
)

// Flag is a boolean data-quality signal for a column.
type Flag string

const (
	FlagHasMissing      Flag = "has_missing"
	FlagAllMissing      Flag = "all_missing"
	FlagConstant        Flag = "constant"
	FlagHighCardinality Flag = "high_cardinality"
)

// allFlags fixes the bit position and listing order of every flag.
var allFlags = []Flag{FlagHasMissing, FlagAllMissing, FlagConstant, FlagHighCardinality}

// DefaultHighCardinalityThreshold is the unique/rows ratio above which a
// column is flagged high_cardinality.
const DefaultHighCardinalityThreshold = 0.9

// FlagSet is a set of Flags.
type FlagSet uint8

func flagBit(f Flag) FlagSet {
	for i, g := range allFlags {
		if g == f {
			return 1 << i
		}
	}
	return 0
}

// With returns s with f added.
func (s FlagSet) With(f Flag) FlagSet { return s | flagBit(f) }

// Has reports whether f is in the set.
func (s FlagSet) Has(f Flag) bool {
	b := flagBit(f)
	return b != 0 && s&b != 0
}

// Flags lists the set's members in a fixed order.
func (s FlagSet) Flags() []Flag {
	out := []Flag{}
	for _, f := range allFlags {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FlagSet) String() string {
	flags := s.Flags()
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}

// MarshalJSON encodes the set as an array of flag names.
func (s FlagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Flags())
}

// ClassifyOptions tunes the classifier.
type ClassifyOptions struct {
	// HighCardinalityThreshold defaults to DefaultHighCardinalityThreshold
	// when zero or negative.
	HighCardinalityThreshold float64
}

func (o ClassifyOptions) threshold() float64 {
	if o.HighCardinalityThreshold <= 0 {
		return DefaultHighCardinalityThreshold
	}
	return o.HighCardinalityThreshold
}

// ClassifyColumn derives the flags of a single column profile.
func ClassifyColumn(cp ColumnProfile, rows int, opts ClassifyOptions) FlagSet {
	var s FlagSet
	if cp.Missing > 0 {
		s = s.With(FlagHasMissing)
	}
	if rows > 0 && cp.Missing == rows {
		s = s.With(FlagAllMissing)
	}
	if rows > 0 && cp.Unique <= 1 {
		s = s.With(FlagConstant)
	}
	if rows > 1 && float64(cp.Unique)/float64(rows) > opts.threshold() {
		s = s.With(FlagHighCardinality)
	}
	return s
}

// Classify derives the flag set of every column in p, keyed by column name.
func Classify(p *DatasetProfile, opts ClassifyOptions) map[string]FlagSet {
	out := make(map[string]FlagSet, len(p.Columns))
	for _, cp := range p.Columns {
		out[cp.Name] = ClassifyColumn(cp, p.Rows, opts)
	}
	return out
}
