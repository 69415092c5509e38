// Package analysis classifies query result columns and computes summary
// statistics for results and uploaded datasets.
package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/askcsv/internal/dataset"
	"github.com/KaramelBytes/askcsv/internal/store"
)

// Class is the chart-facing classification of a result column.
type Class string

const (
	Numeric     Class = "numeric"
	Categorical Class = "categorical"
)

// Stats summarizes one numeric column. A statistic that is undefined for the
// available values is nil and omitted from JSON.
type Stats struct {
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean,omitempty"`
	Median *float64 `json:"median,omitempty"`
	Std    *float64 `json:"std,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// ClassifyValues reports Numeric when there is at least one non-null value
// and every non-null value is a number.
func ClassifyValues(vals []dataset.Value) Class {
	seen := false
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		if !v.IsNumber() {
			return Categorical
		}
		seen = true
	}
	if !seen {
		return Categorical
	}
	return Numeric
}

// Classify returns one class per result column, in column order.
func Classify(res *store.Result) []Class {
	if res == nil {
		return nil
	}
	out := make([]Class, len(res.Columns))
	for i := range res.Columns {
		out[i] = ClassifyValues(res.Column(i))
	}
	return out
}

// Summarize computes Stats for every numeric column of res, keyed by column
// name.
func Summarize(res *store.Result) map[string]Stats {
	out := map[string]Stats{}
	if res == nil {
		return out
	}
	for i, name := range res.Columns {
		vals := res.Column(i)
		if ClassifyValues(vals) != Numeric {
			continue
		}
		out[name] = Describe(numbers(vals))
	}
	return out
}

// Describe computes Stats over xs. Std uses the sample (n-1) denominator.
// Non-finite inputs are skipped, and a statistic that overflows is left nil.
func Describe(xs []float64) Stats {
	xs = finiteOnly(xs)
	s := Stats{Count: len(xs)}
	if len(xs) == 0 {
		return s
	}
	// Welford
	var n int
	var mean, m2 float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		n++
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	median := quantile(sorted, 0.5)

	s.Mean = finitePtr(mean)
	s.Median = finitePtr(median)
	s.Min = finitePtr(lo)
	s.Max = finitePtr(hi)
	if n > 1 {
		s.Std = finitePtr(math.Sqrt(m2 / float64(n-1)))
	}
	return s
}

func finiteOnly(xs []float64) []float64 {
	for i, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			out := append([]float64(nil), xs[:i]...)
			for _, y := range xs[i+1:] {
				if !math.IsNaN(y) && !math.IsInf(y, 0) {
					out = append(out, y)
				}
			}
			return out
		}
	}
	return xs
}

func finitePtr(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

func numbers(vals []dataset.Value) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if f, ok := v.Finite(); ok {
			out = append(out, f)
		}
	}
	return out
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Quantile is quantile over an unsorted copy of xs.
func Quantile(xs []float64, q float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return quantile(sorted, q)
}
