package chart

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/askcsv/internal/analysis"
	"github.com/KaramelBytes/askcsv/internal/dataset"
	"github.com/KaramelBytes/askcsv/internal/store"
)

const (
	num = analysis.Numeric
	cat = analysis.Categorical
)

func TestSelectRuleTable(t *testing.T) {
	cases := []struct {
		name    string
		columns []string
		classes []analysis.Class
		want    Spec
	}{
		{"one_numeric", []string{"age"}, []analysis.Class{num},
			Spec{Kind: KindHistogram, X: "age", Density: true, Title: "Distribution of age"}},
		{"one_categorical", []string{"brand"}, []analysis.Class{cat},
			Spec{Kind: KindBar, X: "brand", Title: "Frequency of brand"}},
		{"two_numeric", []string{"price", "rating"}, []analysis.Class{num, num},
			Spec{Kind: KindScatter, X: "price", Y: "rating", Title: "rating vs price"}},
		{"categorical_then_numeric", []string{"brand", "price"}, []analysis.Class{cat, num},
			Spec{Kind: KindBoxplot, X: "brand", Y: "price", Title: "price by brand"}},
		{"numeric_then_categorical", []string{"price", "brand"}, []analysis.Class{num, cat},
			Spec{Kind: KindBoxplot, X: "brand", Y: "price", Title: "price by brand"}},
		{"two_categorical", []string{"brand", "color"}, []analysis.Class{cat, cat},
			Spec{Kind: KindHeatmap, X: "brand", Y: "color", Title: "Heatmap of brand vs color"}},
		{"no_columns", nil, nil, Spec{Kind: KindNone}},
		{"three_columns", []string{"a", "b", "c"}, []analysis.Class{num, num, num}, Spec{Kind: KindNone}},
		{"mismatched", []string{"a"}, nil, Spec{Kind: KindNone}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Select(tc.columns, tc.classes)
			require.Equal(t, tc.want, got)
			require.Equal(t, got, Select(tc.columns, tc.classes))
		})
	}
}

func TestNumericColumnIsAlwaysValueAxis(t *testing.T) {
	a := Select([]string{"brand", "price"}, []analysis.Class{cat, num})
	b := Select([]string{"price", "brand"}, []analysis.Class{num, cat})
	require.Equal(t, "price", a.Y)
	require.Equal(t, a.Y, b.Y)
	require.Equal(t, a.X, b.X)
}

func TestBuildHistogram(t *testing.T) {
	res := &store.Result{Columns: []string{"age"}}
	for _, v := range []int64{20, 21, 22, 30, 40, 50, 60, 80} {
		res.Rows = append(res.Rows, []dataset.Value{dataset.Int(v)})
	}
	res.Rows = append(res.Rows, []dataset.Value{dataset.Null()})
	data := BuildData(Select(res.Columns, analysis.Classify(res)), res)
	require.NotNil(t, data)
	require.Len(t, data.Bins, 4)
	require.Equal(t, 20.0, data.Bins[0].Lo)
	require.Equal(t, 80.0, data.Bins[3].Hi)
	total := 0
	for _, b := range data.Bins {
		total += b.Count
	}
	require.Equal(t, 8, total)
	require.Equal(t, []int{4, 1, 2, 1}, []int{data.Bins[0].Count, data.Bins[1].Count, data.Bins[2].Count, data.Bins[3].Count})
}

func TestBuildHistogramConstantColumn(t *testing.T) {
	res := &store.Result{Columns: []string{"v"}, Rows: [][]dataset.Value{{dataset.Real(1)}, {dataset.Real(1)}}}
	data := BuildData(Spec{Kind: KindHistogram, X: "v"}, res)
	require.Equal(t, []Bin{{Lo: 1, Hi: 1, Count: 2}}, data.Bins)
}

func TestBuildBarCounts(t *testing.T) {
	res := &store.Result{Columns: []string{"brand"}, Rows: [][]dataset.Value{
		{dataset.Text("Nokia")}, {dataset.Text("Apple")}, {dataset.Text("Apple")}, {dataset.Null()},
	}}
	data := BuildData(Spec{Kind: KindBar, X: "brand"}, res)
	require.Equal(t, []analysis.CategoryCount{{Value: "Apple", Count: 2}, {Value: "Nokia", Count: 1}}, data.Counts)
}

func TestBuildBoxplot(t *testing.T) {
	res := &store.Result{Columns: []string{"price", "brand"}, Rows: [][]dataset.Value{
		{dataset.Int(999), dataset.Text("Apple")},
		{dataset.Int(199), dataset.Text("Nokia")},
		{dataset.Int(1099), dataset.Text("Apple")},
	}}
	spec := Select(res.Columns, analysis.Classify(res))
	data := BuildData(spec, res)
	require.Len(t, data.Boxes, 2)
	apple := data.Boxes[0]
	require.Equal(t, "Apple", apple.Group)
	require.Equal(t, 2, apple.Count)
	require.Equal(t, 999.0, apple.Min)
	require.Equal(t, 1049.0, apple.Median)
	require.Equal(t, 1099.0, apple.Max)
	require.Equal(t, "Nokia", data.Boxes[1].Group)
}

func TestBuildScatter(t *testing.T) {
	res := &store.Result{Columns: []string{"price", "rating"}, Rows: [][]dataset.Value{
		{dataset.Int(999), dataset.Real(4.5)},
		{dataset.Int(799), dataset.Null()},
	}}
	data := BuildData(Select(res.Columns, analysis.Classify(res)), res)
	require.Equal(t, []Point{{X: 999, Y: 4.5}}, data.Points)
}

func TestBuildDataDropsNonFinite(t *testing.T) {
	scatter := &store.Result{Columns: []string{"price", "rating"}, Rows: [][]dataset.Value{
		{dataset.Real(math.Inf(1)), dataset.Real(4.5)},
		{dataset.Int(799), dataset.Real(math.NaN())},
		{dataset.Int(199), dataset.Real(3.9)},
	}}
	data := BuildData(Select(scatter.Columns, analysis.Classify(scatter)), scatter)
	require.Equal(t, []Point{{X: 199, Y: 3.9}}, data.Points)

	box := &store.Result{Columns: []string{"price", "brand"}, Rows: [][]dataset.Value{
		{dataset.Real(math.Inf(-1)), dataset.Text("Apple")},
		{dataset.Int(999), dataset.Text("Apple")},
		{dataset.Real(math.Inf(1)), dataset.Text("Nokia")},
	}}
	data = BuildData(Select(box.Columns, analysis.Classify(box)), box)
	require.Len(t, data.Boxes, 1)
	require.Equal(t, 1, data.Boxes[0].Count)
	require.Equal(t, 999.0, data.Boxes[0].Min)

	_, err := json.Marshal(data)
	require.NoError(t, err)
}

func TestBuildCrosstab(t *testing.T) {
	res := &store.Result{Columns: []string{"brand", "color"}, Rows: [][]dataset.Value{
		{dataset.Text("b"), dataset.Text("red")},
		{dataset.Text("a"), dataset.Text("red")},
		{dataset.Text("a"), dataset.Text("blue")},
		{dataset.Text("a"), dataset.Text("red")},
	}}
	data := BuildData(Select(res.Columns, analysis.Classify(res)), res)
	require.Equal(t, &Crosstab{
		Rows:   []string{"a", "b"},
		Cols:   []string{"blue", "red"},
		Counts: [][]int{{1, 2}, {0, 1}},
	}, data.Crosstab)
}

func TestBuildDataNone(t *testing.T) {
	require.Nil(t, BuildData(Spec{Kind: KindNone}, &store.Result{}))
	require.Nil(t, BuildData(Spec{Kind: KindBar, X: "missing"}, &store.Result{Columns: []string{"a"}}))
}
