package engine

// clean.go holds the missing-value operations. Every function reads its input
// Handle and builds a new one; untouched columns share cell storage with the
// input, which is safe because cells are never written after construction.

import "fmt"

// ImputeStrategy selects the fill value for numeric imputation.
type ImputeStrategy string

const (
	StrategyMean ImputeStrategy = "mean"
	StrategyZero ImputeStrategy = "zero"
)

// DropRowsWithMissing removes every row that has at least one missing cell.
// Removing every row is not an error: the result simply has zero rows.
func DropRowsWithMissing(h *Handle) (*Handle, error) {
	keep := make([]int, 0, h.rows)
	for i := 0; i < h.rows; i++ {
		complete := true
		for _, c := range h.cols {
			if c.cells[i].Missing {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}
	if len(keep) == h.rows {
		return h.derive(h.Columns(), h.cellsOf()), nil
	}

	cells := make([][]Cell, len(h.cols))
	for j, c := range h.cols {
		col := make([]Cell, len(keep))
		for k, i := range keep {
			col[k] = c.cells[i]
		}
		cells[j] = col
	}
	return h.derive(h.Columns(), cells), nil
}

// DropColumnsWithMissing removes every column with at least one missing cell.
// If that would remove every column it fails with *AllColumnsRemovedError.
func DropColumnsWithMissing(h *Handle) (*Handle, error) {
	var names []string
	var cells [][]Cell
	for _, c := range h.cols {
		if c.nMiss == 0 {
			names = append(names, c.name)
			cells = append(cells, c.cells)
		}
	}
	if len(names) == 0 && len(h.cols) > 0 {
		return nil, &AllColumnsRemovedError{Operation: OpDropCols, Columns: len(h.cols)}
	}
	return h.derive(names, cells), nil
}

// DropColumn removes a single named column.
func DropColumn(h *Handle, name string) (*Handle, error) {
	idx, ok := h.index[name]
	if !ok {
		return nil, invalidOp(OpDropColumn, "column %q not found", name)
	}
	if len(h.cols) == 1 {
		return nil, &AllColumnsRemovedError{Operation: OpDropColumn, Columns: 1}
	}

	names := make([]string, 0, len(h.cols)-1)
	cells := make([][]Cell, 0, len(h.cols)-1)
	for j, c := range h.cols {
		if j == idx {
			continue
		}
		names = append(names, c.name)
		cells = append(cells, c.cells)
	}
	return h.derive(names, cells), nil
}

// ImputeNumeric fills missing cells of numeric columns. With StrategyMean the
// fill value is the mean of the column's present values (0 if there are none);
// with StrategyZero it is 0. When columns is empty every numeric column is
// imputed and other columns pass through unchanged; naming a non-numeric
// column is an error.
func ImputeNumeric(h *Handle, strategy ImputeStrategy, columns ...string) (*Handle, error) {
	op := OpFillMean
	switch strategy {
	case StrategyMean:
	case StrategyZero:
		op = OpFillZero
	default:
		return nil, invalidOp(op, "unknown strategy %q", strategy)
	}

	targets, err := h.targetColumns(op, TypeNumeric, columns)
	if err != nil {
		return nil, err
	}

	cells := h.cellsOf()
	for _, j := range targets {
		c := h.cols[j]
		if c.nMiss == 0 {
			continue
		}
		fill := 0.0
		if strategy == StrategyMean {
			fill = mean(presentValues(c))
		}
		cells[j] = fillMissing(c.cells, formatNumber(fill))
	}
	return h.derive(h.Columns(), cells), nil
}

// ImputeCategorical fills missing cells of categorical columns with the
// column's mode (ties go to the first value in row order). A column without
// any present value has no mode and passes through unchanged. Columns
// selection follows the same rules as ImputeNumeric.
func ImputeCategorical(h *Handle, columns ...string) (*Handle, error) {
	targets, err := h.targetColumns(OpFillMode, TypeCategorical, columns)
	if err != nil {
		return nil, err
	}

	cells := h.cellsOf()
	for _, j := range targets {
		c := h.cols[j]
		if c.nMiss == 0 {
			continue
		}
		mode, ok := modeOf(c)
		if !ok {
			continue
		}
		cells[j] = fillMissing(c.cells, mode)
	}
	return h.derive(h.Columns(), cells), nil
}

// targetColumns resolves the column indexes an imputation applies to.
func (h *Handle) targetColumns(op OpKind, want ColumnType, columns []string) ([]int, error) {
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == AllColumnsTarget) {
		var idx []int
		for j, c := range h.cols {
			if c.typ == want {
				idx = append(idx, j)
			}
		}
		return idx, nil
	}

	idx := make([]int, 0, len(columns))
	for _, name := range columns {
		j, ok := h.index[name]
		if !ok {
			return nil, invalidOp(op, "column %q not found", name)
		}
		if t := h.cols[j].typ; t != want {
			return nil, invalidOp(op, "column %q is %s, not %s", name, t, want)
		}
		idx = append(idx, j)
	}
	return idx, nil
}

func fillMissing(src []Cell, text string) []Cell {
	out := make([]Cell, len(src))
	for i, cell := range src {
		if cell.Missing {
			out[i] = Cell{Text: text}
		} else {
			out[i] = cell
		}
	}
	return out
}

// describeColumns is used in operation summaries.
func describeColumns(n int) string {
	if n == 1 {
		return "1 column"
	}
	return fmt.Sprintf("%d columns", n)
}
