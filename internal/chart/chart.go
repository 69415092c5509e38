// Package chart picks a chart for a query result and derives the data needed
// to draw it. Rendering is left to the client.
package chart

import (
	"fmt"

	"github.com/KaramelBytes/askcsv/internal/analysis"
)

// Kind tags a chart description.
type Kind string

const (
	KindNone      Kind = "none"
	KindHistogram Kind = "histogram"
	KindBar       Kind = "bar"
	KindScatter   Kind = "scatter"
	KindBoxplot   Kind = "boxplot"
	KindHeatmap   Kind = "heatmap"
)

// Spec describes which chart to draw and which result columns feed its axes.
// For boxplots X is the grouping column and Y the value column.
type Spec struct {
	Kind    Kind   `json:"kind"`
	X       string `json:"x,omitempty"`
	Y       string `json:"y,omitempty"`
	Density bool   `json:"density,omitempty"`
	Title   string `json:"title,omitempty"`
	Data    *Data  `json:"data,omitempty"`
}

// None reports whether no chart was selected.
func (s Spec) None() bool { return s.Kind == "" || s.Kind == KindNone }

// Select maps result columns and their classes to a chart. It depends only on
// its arguments.
func Select(columns []string, classes []analysis.Class) Spec {
	if len(columns) != len(classes) {
		return Spec{Kind: KindNone}
	}
	switch len(columns) {
	case 1:
		col := columns[0]
		if classes[0] == analysis.Numeric {
			return Spec{Kind: KindHistogram, X: col, Density: true, Title: fmt.Sprintf("Distribution of %s", col)}
		}
		return Spec{Kind: KindBar, X: col, Title: fmt.Sprintf("Frequency of %s", col)}
	case 2:
		a, b := columns[0], columns[1]
		aNum, bNum := classes[0] == analysis.Numeric, classes[1] == analysis.Numeric
		switch {
		case aNum && bNum:
			return Spec{Kind: KindScatter, X: a, Y: b, Title: fmt.Sprintf("%s vs %s", b, a)}
		case aNum:
			return Spec{Kind: KindBoxplot, X: b, Y: a, Title: fmt.Sprintf("%s by %s", a, b)}
		case bNum:
			return Spec{Kind: KindBoxplot, X: a, Y: b, Title: fmt.Sprintf("%s by %s", b, a)}
		default:
			return Spec{Kind: KindHeatmap, X: a, Y: b, Title: fmt.Sprintf("Heatmap of %s vs %s", a, b)}
		}
	}
	return Spec{Kind: KindNone}
}
