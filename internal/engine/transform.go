package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// OpKind names a cleaning or transformation operation.
type OpKind string

const (
	OpDropRows   OpKind = "drop_rows"
	OpDropCols   OpKind = "drop_cols"
	OpDropColumn OpKind = "drop_column"
	OpFillMean   OpKind = "fill_mean"
	OpFillZero   OpKind = "fill_zero"
	OpFillMode   OpKind = "fill_mode"
	OpRename     OpKind = "rename"
	OpMapValues  OpKind = "map_values"
	OpEncode     OpKind = "encode"
)

// OpKinds lists every operation kind Apply accepts.
func OpKinds() []OpKind {
	return []OpKind{
		OpDropRows, OpDropCols, OpDropColumn,
		OpFillMean, OpFillZero, OpFillMode,
		OpRename, OpMapValues, OpEncode,
	}
}

// AllColumnsTarget as an Operation column selects every column of the type
// the fill operation works on. An empty column does the same.
const AllColumnsTarget = "ALL"

// DefaultUniqueLimit caps UniqueValues when no limit is given.
const DefaultUniqueLimit = 50

// EncodingMethod selects how Encode turns text into numbers.
type EncodingMethod string

const (
	EncodeLabel   EncodingMethod = "label"
	EncodeOrdinal EncodingMethod = "ordinal"
	EncodeOneHot  EncodingMethod = "onehot"
)

// missingLabel is the text missing cells sort and encode as under label
// encoding.
const missingLabel = "nan"

// Operation is a serializable cleaning step.
type Operation struct {
	Kind    OpKind            `json:"kind"`
	Column  string            `json:"column,omitempty"`
	NewName string            `json:"new_name,omitempty"`
	Mapping map[string]string `json:"mapping,omitempty"`
	Method  EncodingMethod    `json:"method,omitempty"`
}

func (op Operation) String() string {
	switch op.Kind {
	case OpRename:
		return fmt.Sprintf("%s %s->%s", op.Kind, op.Column, op.NewName)
	case OpEncode:
		return fmt.Sprintf("%s %s (%s)", op.Kind, op.Column, op.Method)
	}
	if op.Column != "" {
		return fmt.Sprintf("%s %s", op.Kind, op.Column)
	}
	return string(op.Kind)
}

// Apply runs op against h. When expected is non-empty it must equal
// h.Schema(); otherwise Apply fails with *SchemaMismatchError without doing
// any work. Unknown kinds and bad parameters yield *InvalidOperationError.
func Apply(h *Handle, op Operation, expected Schema) (*Handle, error) {
	if len(expected) > 0 {
		actual := h.Schema()
		if reason := expected.diff(actual); reason != "" {
			return nil, &SchemaMismatchError{Expected: expected, Actual: actual, Reason: reason}
		}
	}

	switch op.Kind {
	case OpDropRows:
		return DropRowsWithMissing(h)
	case OpDropCols:
		return DropColumnsWithMissing(h)
	case OpDropColumn:
		return DropColumn(h, op.Column)
	case OpFillMean:
		return ImputeNumeric(h, StrategyMean, targets(op.Column)...)
	case OpFillZero:
		return ImputeNumeric(h, StrategyZero, targets(op.Column)...)
	case OpFillMode:
		return ImputeCategorical(h, targets(op.Column)...)
	case OpRename:
		return RenameColumn(h, op.Column, op.NewName)
	case OpMapValues:
		return MapValues(h, op.Column, op.Mapping)
	case OpEncode:
		return Encode(h, op.Column, op.Method)
	case "":
		return nil, &InvalidOperationError{Reason: "missing operation kind"}
	default:
		return nil, &InvalidOperationError{Op: op.Kind, Reason: "unknown operation kind"}
	}
}

func targets(column string) []string {
	if column == "" || column == AllColumnsTarget {
		return nil
	}
	return []string{column}
}

// RenameColumn gives a column a new name. The new name must be non-empty and
// not already used by another column.
func RenameColumn(h *Handle, oldName, newName string) (*Handle, error) {
	idx, ok := h.index[oldName]
	if !ok {
		return nil, invalidOp(OpRename, "column %q not found", oldName)
	}
	if strings.TrimSpace(newName) == "" {
		return nil, invalidOp(OpRename, "new name is empty")
	}
	if j, taken := h.index[newName]; taken && j != idx {
		return nil, invalidOp(OpRename, "column %q already exists", newName)
	}

	names := h.Columns()
	names[idx] = newName
	return h.derive(names, h.cellsOf()), nil
}

// MapValues replaces non-missing cells whose text equals a mapping key with
// the mapped text. Empty targets are ignored. Missing cells are left alone.
func MapValues(h *Handle, column string, mapping map[string]string) (*Handle, error) {
	idx, ok := h.index[column]
	if !ok {
		return nil, invalidOp(OpMapValues, "column %q not found", column)
	}

	active := make(map[string]string, len(mapping))
	for from, to := range mapping {
		if to != "" {
			active[from] = to
		}
	}

	cells := h.cellsOf()
	if len(active) == 0 {
		return h.derive(h.Columns(), cells), nil
	}

	src := cells[idx]
	out := make([]Cell, len(src))
	for i, cell := range src {
		if to, hit := active[cell.Text]; hit && !cell.Missing {
			out[i] = h.newCell(to)
		} else {
			out[i] = cell
		}
	}
	cells[idx] = out
	return h.derive(h.Columns(), cells), nil
}

// UniqueValues returns the sorted distinct non-missing texts of a column. It
// returns an empty slice when the column has more than limit distinct values;
// limit <= 0 means DefaultUniqueLimit.
func UniqueValues(h *Handle, column string, limit int) ([]string, error) {
	idx, ok := h.index[column]
	if !ok {
		return nil, invalidOp(OpMapValues, "column %q not found", column)
	}
	if limit <= 0 {
		limit = DefaultUniqueLimit
	}

	vals := distinctSorted(h.cols[idx], false)
	if len(vals) > limit {
		return []string{}, nil
	}
	return vals, nil
}

// distinctSorted returns the sorted distinct texts of a column. With
// withMissing, missing cells contribute missingLabel.
func distinctSorted(c *column, withMissing bool) []string {
	seen := make(map[string]struct{})
	for _, cell := range c.cells {
		switch {
		case !cell.Missing:
			seen[cell.Text] = struct{}{}
		case withMissing:
			seen[missingLabel] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Encode converts a column's text into numbers.
//
//   - label: every distinct text, with missing cells read as "nan", gets its
//     index in sorted order
//   - ordinal: the rank of each non-missing value; missing cells get -1.
//     Numeric columns rank by value, others by text
//   - onehot: the column is replaced by one 0/1 column per distinct
//     non-missing text, named <column>_<value> and appended at the end
func Encode(h *Handle, column string, method EncodingMethod) (*Handle, error) {
	idx, ok := h.index[column]
	if !ok {
		return nil, invalidOp(OpEncode, "column %q not found", column)
	}
	c := h.cols[idx]

	switch method {
	case EncodeLabel, EncodeOrdinal:
		withMissing := method == EncodeLabel
		codes := indexOf(distinctSorted(c, withMissing))
		code := func(i int) int { return codes[c.cells[i].Text] }
		if method == EncodeOrdinal && c.typ == TypeNumeric {
			ranks := rankValues(c)
			code = func(i int) int { return ranks[c.nums[i]] }
		}
		out := make([]Cell, len(c.cells))
		for i, cell := range c.cells {
			switch {
			case !cell.Missing:
				out[i] = Cell{Text: strconv.Itoa(code(i))}
			case withMissing:
				out[i] = Cell{Text: strconv.Itoa(codes[missingLabel])}
			default:
				out[i] = Cell{Text: "-1"}
			}
		}
		cells := h.cellsOf()
		cells[idx] = out
		return h.derive(h.Columns(), cells), nil

	case EncodeOneHot:
		return oneHot(h, idx)

	default:
		return nil, invalidOp(OpEncode, "unknown method %q (want label, ordinal or onehot)", method)
	}
}

func oneHot(h *Handle, idx int) (*Handle, error) {
	c := h.cols[idx]
	values := distinctSorted(c, false)
	if len(values) == 0 {
		return nil, invalidOp(OpEncode, "column %q has no values to encode", c.name)
	}

	names := make([]string, 0, len(h.cols)-1+len(values))
	cells := make([][]Cell, 0, cap(names))
	for j, other := range h.cols {
		if j == idx {
			continue
		}
		names = append(names, other.name)
		cells = append(cells, other.cells)
	}

	for _, v := range values {
		name := c.name + "_" + v
		if j, taken := h.index[name]; taken && j != idx {
			return nil, invalidOp(OpEncode, "column %q already exists", name)
		}
		col := make([]Cell, len(c.cells))
		for i, cell := range c.cells {
			if !cell.Missing && cell.Text == v {
				col[i] = Cell{Text: "1"}
			} else {
				col[i] = Cell{Text: "0"}
			}
		}
		names = append(names, name)
		cells = append(cells, col)
	}
	return h.derive(names, cells), nil
}

// rankValues maps each distinct present value of a numeric column to its
// position in ascending order. "10" and "10.0" share a rank.
func rankValues(c *column) map[float64]int {
	vals := sortedCopy(presentValues(c))
	ranks := make(map[float64]int, len(vals))
	for _, v := range vals {
		if _, ok := ranks[v]; !ok {
			ranks[v] = len(ranks)
		}
	}
	return ranks
}

func indexOf(sorted []string) map[string]int {
	m := make(map[string]int, len(sorted))
	for i, v := range sorted {
		m[v] = i
	}
	return m
}

// Summarize describes the effect of op, which turned before into after, as a
// sentence suitable for a flash message or history entry.
func Summarize(op Operation, before, after *Handle) string {
	switch op.Kind {
	case OpDropRows:
		return fmt.Sprintf("Dropped %d rows with missing values.", before.rows-after.rows)
	case OpDropCols:
		n := len(before.cols) - len(after.cols)
		return fmt.Sprintf("Dropped %s with missing values.", describeColumns(n))
	case OpDropColumn:
		return fmt.Sprintf("Dropped column '%s'.", op.Column)
	case OpFillMean:
		return fmt.Sprintf("Filled %d missing numeric values with the column mean.", filled(before, after))
	case OpFillZero:
		return fmt.Sprintf("Filled %d missing numeric values with 0.", filled(before, after))
	case OpFillMode:
		return fmt.Sprintf("Filled %d missing categorical values with the column mode.", filled(before, after))
	case OpRename:
		return fmt.Sprintf("Renamed column '%s' to '%s'.", op.Column, op.NewName)
	case OpMapValues:
		return fmt.Sprintf("Mapped values in column '%s'.", op.Column)
	case OpEncode:
		if op.Method == EncodeOneHot {
			added := len(after.cols) - len(before.cols) + 1
			return fmt.Sprintf("One-hot encoded column '%s' into %s.", op.Column, describeColumns(added))
		}
		return fmt.Sprintf("Applied %s encoding to column '%s'.", op.Method, op.Column)
	}
	return fmt.Sprintf("Applied %s.", op.Kind)
}

func filled(before, after *Handle) int {
	return totalMissing(before) - totalMissing(after)
}

func totalMissing(h *Handle) int {
	n := 0
	for _, c := range h.cols {
		n += c.nMiss
	}
	return n
}
