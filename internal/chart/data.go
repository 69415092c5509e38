package chart

import (
	"math"
	"sort"

	"github.com/KaramelBytes/askcsv/internal/analysis"
	"github.com/KaramelBytes/askcsv/internal/dataset"
	"github.com/KaramelBytes/askcsv/internal/store"
)

// Bin is one histogram bucket covering [Lo, Hi). The last bin is closed.
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Point is one scatter sample.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box holds the five-number summary of one boxplot group.
type Box struct {
	Group  string  `json:"group"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// Crosstab counts co-occurrences of two categorical columns. Counts[i][j]
// pairs Rows[i] with Cols[j].
type Crosstab struct {
	Rows   []string `json:"rows"`
	Cols   []string `json:"cols"`
	Counts [][]int  `json:"counts"`
}

// Data is the render-independent payload of a chart.
type Data struct {
	Bins     []Bin                    `json:"bins,omitempty"`
	Counts   []analysis.CategoryCount `json:"counts,omitempty"`
	Points   []Point                  `json:"points,omitempty"`
	Boxes    []Box                    `json:"boxes,omitempty"`
	Crosstab *Crosstab                `json:"crosstab,omitempty"`
}

// BuildData derives the chart payload for spec from res. It returns nil for
// KindNone or when an axis column is missing from res.
func BuildData(spec Spec, res *store.Result) *Data {
	if spec.None() || res == nil {
		return nil
	}
	x, ok := columnIndex(res, spec.X)
	if !ok {
		return nil
	}
	y := -1
	if spec.Y != "" {
		if y, ok = columnIndex(res, spec.Y); !ok {
			return nil
		}
	}
	switch spec.Kind {
	case KindHistogram:
		return &Data{Bins: histogram(floats(res.Column(x)))}
	case KindBar:
		return &Data{Counts: valueCounts(res.Column(x))}
	case KindScatter:
		return &Data{Points: points(res.Column(x), res.Column(y))}
	case KindBoxplot:
		return &Data{Boxes: boxes(res.Column(x), res.Column(y))}
	case KindHeatmap:
		return &Data{Crosstab: crosstab(res.Column(x), res.Column(y))}
	}
	return nil
}

func columnIndex(res *store.Result, name string) (int, bool) {
	for i, c := range res.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

func floats(vals []dataset.Value) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if f, ok := v.Finite(); ok {
			out = append(out, f)
		}
	}
	return out
}

// sturges returns the Sturges bin count for n samples.
func sturges(n int) int {
	if n < 2 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(n)))) + 1
}

func histogram(xs []float64) []Bin {
	if len(xs) == 0 {
		return nil
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if lo == hi {
		return []Bin{{Lo: lo, Hi: hi, Count: len(xs)}}
	}
	k := sturges(len(xs))
	width := (hi - lo) / float64(k)
	bins := make([]Bin, k)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*width
		bins[i].Hi = lo + float64(i+1)*width
	}
	bins[k-1].Hi = hi
	for _, x := range xs {
		i := int((x - lo) / width)
		if i >= k {
			i = k - 1
		}
		bins[i].Count++
	}
	return bins
}

// valueCounts orders distinct non-null values by descending frequency.
func valueCounts(vals []dataset.Value) []analysis.CategoryCount {
	counts := map[string]int{}
	var order []string
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		k := v.String()
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	out := make([]analysis.CategoryCount, len(order))
	for i, k := range order {
		out[i] = analysis.CategoryCount{Value: k, Count: counts[k]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func points(xs, ys []dataset.Value) []Point {
	out := make([]Point, 0, len(xs))
	for i := range xs {
		x, okx := xs[i].Finite()
		y, oky := ys[i].Finite()
		if okx && oky {
			out = append(out, Point{X: x, Y: y})
		}
	}
	return out
}

// boxes groups values by category in order of first appearance.
func boxes(groups, vals []dataset.Value) []Box {
	byGroup := map[string][]float64{}
	var order []string
	for i := range groups {
		if groups[i].IsNull() {
			continue
		}
		v, ok := vals[i].Finite()
		if !ok {
			continue
		}
		g := groups[i].String()
		if _, seen := byGroup[g]; !seen {
			order = append(order, g)
		}
		byGroup[g] = append(byGroup[g], v)
	}
	out := make([]Box, 0, len(order))
	for _, g := range order {
		xs := byGroup[g]
		sort.Float64s(xs)
		out = append(out, Box{
			Group:  g,
			Count:  len(xs),
			Min:    xs[0],
			Q1:     analysis.Quantile(xs, 0.25),
			Median: analysis.Quantile(xs, 0.5),
			Q3:     analysis.Quantile(xs, 0.75),
			Max:    xs[len(xs)-1],
		})
	}
	return out
}

// crosstab counts pairs of non-null values with sorted row and column labels.
func crosstab(as, bs []dataset.Value) *Crosstab {
	rowIdx, colIdx := map[string]int{}, map[string]int{}
	type pair struct{ a, b string }
	var pairs []pair
	for i := range as {
		if as[i].IsNull() || bs[i].IsNull() {
			continue
		}
		p := pair{as[i].String(), bs[i].String()}
		rowIdx[p.a] = 0
		colIdx[p.b] = 0
		pairs = append(pairs, p)
	}
	ct := &Crosstab{Rows: sortedKeys(rowIdx), Cols: sortedKeys(colIdx)}
	for i, k := range ct.Rows {
		rowIdx[k] = i
	}
	for j, k := range ct.Cols {
		colIdx[k] = j
	}
	ct.Counts = make([][]int, len(ct.Rows))
	for i := range ct.Counts {
		ct.Counts[i] = make([]int, len(ct.Cols))
	}
	for _, p := range pairs {
		ct.Counts[rowIdx[p.a]][colIdx[p.b]]++
	}
	return ct
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
