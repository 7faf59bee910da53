package engine

// load.go converts between raw delimited bytes and a Handle.
//
// Input cleanup mirrors what spreadsheet exports tend to need:
//   - a leading UTF-8 BOM (Excel on Windows) is dropped
//   - invalid UTF-8 sequences are replaced with U+FFFD
//
// The first record is always the header. Column count is fixed by the header;
// any ragged row is a ParseError rather than being padded or truncated.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultDelimiter is the field separator used when none is configured.
const DefaultDelimiter = ','

// DefaultMissingTokens are the cell texts (after trimming) treated as missing
// in addition to the empty string.
var DefaultMissingTokens = []string{
	"NA", "N/A", "n/a", "NaN", "nan", "-NaN", "-nan",
	"null", "NULL", "None", "<NA>", "#N/A", "#NA", "#N/A N/A",
	"1.#IND", "1.#QNAN", "-1.#IND", "-1.#QNAN",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type missingTokens map[string]struct{}

func newMissingTokens(tokens []string) missingTokens {
	m := make(missingTokens, len(tokens))
	for _, t := range tokens {
		m[strings.TrimSpace(t)] = struct{}{}
	}
	return m
}

func (m missingTokens) isMissing(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	_, ok := m[t]
	return ok
}

type loadConfig struct {
	delim  rune
	tokens []string
}

// LoadOption customizes Load.
type LoadOption func(*loadConfig)

// WithDelimiter sets the field separator. Zero keeps the default comma.
func WithDelimiter(r rune) LoadOption {
	return func(c *loadConfig) {
		if r != 0 {
			c.delim = r
		}
	}
}

// WithMissingTokens replaces DefaultMissingTokens. Empty cells are always
// missing regardless of this list.
func WithMissingTokens(tokens []string) LoadOption {
	return func(c *loadConfig) {
		if tokens != nil {
			c.tokens = tokens
		}
	}
}

// Load parses delimited text into a Handle.
//
// It fails with *ParseError when the text is not well formed (unbalanced
// quotes, rows with a different field count than the header), when there is
// no header (zero columns), or when a column name repeats.
func Load(raw []byte, opts ...LoadOption) (*Handle, error) {
	cfg := loadConfig{delim: DefaultDelimiter, tokens: DefaultMissingTokens}
	for _, opt := range opts {
		opt(&cfg)
	}

	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		raw = bytes.ToValidUTF8(raw, []byte("�"))
	}

	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = cfg.delim
	r.FieldsPerRecord = 0 // header fixes the width

	records, err := r.ReadAll()
	if err != nil {
		return nil, wrapCSVError(err)
	}
	if len(records) == 0 {
		return nil, &ParseError{Reason: "no header row: dataset has zero columns"}
	}

	header := records[0]
	if len(header) == 1 && strings.TrimSpace(header[0]) == "" {
		return nil, &ParseError{Line: 1, Reason: "empty header: dataset has zero columns"}
	}
	seen := make(map[string]struct{}, len(header))
	for _, name := range header {
		if _, dup := seen[name]; dup {
			return nil, &ParseError{Line: 1, Reason: fmt.Sprintf("duplicate column name %q", name)}
		}
		seen[name] = struct{}{}
	}

	tokens := newMissingTokens(cfg.tokens)
	data := records[1:]
	cells := make([][]Cell, len(header))
	for j := range header {
		col := make([]Cell, len(data))
		for i, rec := range data {
			col[i] = Cell{Text: rec[j], Missing: tokens.isMissing(rec[j])}
		}
		cells[j] = col
	}

	return newHandle(header, cells, cfg.delim, tokens), nil
}

// wrapCSVError converts an encoding/csv error into a ParseError.
func wrapCSVError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		reason := pe.Err.Error()
		if errors.Is(pe.Err, csv.ErrFieldCount) {
			reason = "row has a different number of fields than the header"
		}
		return &ParseError{Line: pe.Line, Reason: reason, Err: err}
	}
	return &ParseError{Reason: err.Error(), Err: err}
}

// Bytes serializes the handle back to delimited text with a header row.
// Column order is preserved and every cell is written with its original text,
// so Load(h.Bytes()) reproduces the same cells.
func (h *Handle) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = h.delim

	if err := w.Write(h.Columns()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < h.rows; i++ {
		row := h.Row(i)
		if len(row) == 1 && row[0] == "" {
			// A bare empty line would be skipped on reload; quote it.
			w.Flush()
			buf.WriteString("\"\"\n")
			continue
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
