package engine

import (
	"math"
	"sort"
)

// presentValues returns the non-missing values of a numeric column.
func presentValues(c *column) []float64 {
	if c.typ != TypeNumeric {
		return nil
	}
	vals := make([]float64, 0, len(c.cells)-c.nMiss)
	for i, cell := range c.cells {
		if !cell.Missing {
			vals = append(vals, c.nums[i])
		}
	}
	return vals
}

// maxAbs is the largest magnitude in vals.
func maxAbs(vals []float64) float64 {
	var m float64
	for _, v := range vals {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	if !math.IsInf(sum, 0) {
		return sum / float64(len(vals))
	}
	// Overflowed near the float64 limit: sum the values scaled into [-1, 1].
	scale := maxAbs(vals)
	sum = 0
	for _, v := range vals {
		sum += v / scale
	}
	return sum / float64(len(vals)) * scale
}

// stddev is the sample standard deviation (n-1 denominator). It is +Inf only
// when the deviation itself exceeds the float64 range.
func stddev(vals []float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	ss := sumSquares(vals, 1)
	if !math.IsInf(ss, 0) {
		return math.Sqrt(ss / float64(len(vals)-1))
	}
	scale := maxAbs(vals)
	return math.Sqrt(sumSquares(vals, scale)/float64(len(vals)-1)) * scale
}

// sumSquares is the sum of squared deviations from the mean of vals/scale.
func sumSquares(vals []float64, scale float64) float64 {
	m := mean(vals) / scale
	var ss float64
	for _, v := range vals {
		d := v/scale - m
		ss += d * d
	}
	return ss
}

func sortedCopy(vals []float64) []float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	return s
}

// quantile uses linear interpolation between closest ranks. sorted must be
// non-empty and ascending.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	if d := sorted[hi] - sorted[lo]; !math.IsInf(d, 0) {
		return sorted[lo] + d*frac
	}
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// pearson computes the correlation of x and y over rows where both are
// present. It returns NaN with fewer than two pairs or zero variance.
func pearson(x, y *column) float64 {
	var xs, ys []float64
	for i := range x.cells {
		if x.cells[i].Missing || y.cells[i].Missing {
			continue
		}
		xs = append(xs, x.nums[i])
		ys = append(ys, y.nums[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}

	r, ok := correlate(xs, ys, 1, 1)
	if !ok {
		// Correlation is scale invariant; retry with both sides in [-1, 1].
		r, _ = correlate(xs, ys, maxAbs(xs), maxAbs(ys))
	}
	if math.IsNaN(r) {
		return r
	}
	// Clamp rounding drift so perfectly correlated data reads as exactly ±1.
	return math.Max(-1, math.Min(1, r))
}

// correlate computes Pearson's r over xs/sx and ys/sy. ok is false when an
// intermediate sum overflowed.
func correlate(xs, ys []float64, sx, sy float64) (r float64, ok bool) {
	mx, my := mean(xs)/sx, mean(ys)/sy
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]/sx-mx, ys[i]/sy-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if math.IsInf(sxx, 0) || math.IsInf(syy, 0) || math.IsInf(sxy, 0) {
		return math.NaN(), false
	}
	if sxx == 0 || syy == 0 {
		return math.NaN(), true
	}
	if d := sxx * syy; !math.IsInf(d, 0) {
		return sxy / math.Sqrt(d), true
	}
	return sxy / math.Sqrt(sxx) / math.Sqrt(syy), true
}

// floatPtr returns nil for values JSON cannot carry.
func floatPtr(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
