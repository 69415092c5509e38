package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// maxRenderedRows caps the result table in Markdown output.
const maxRenderedRows = 50

// Markdown renders the response for a terminal.
func (r *Response) Markdown() string {
	var b strings.Builder
	if r.SQLQuery != "" {
		b.WriteString("[SQL]\n")
		b.WriteString(r.SQLQuery)
		b.WriteString("\n\n")
	}
	if !r.OK() {
		fmt.Fprintf(&b, "[ERROR]\n%s\n", r.Error)
		return b.String()
	}

	fmt.Fprintf(&b, "[RESULT] %d row(s)\n", len(r.Rows.Rows))
	b.WriteString("| " + strings.Join(escapeCells(r.Columns), " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(r.Columns)) + "\n")
	for i, row := range r.Rows.Rows {
		if i == maxRenderedRows {
			fmt.Fprintf(&b, "... %d more row(s)\n", len(r.Rows.Rows)-maxRenderedRows)
			break
		}
		cells := make([]string, len(row))
		for c, v := range row {
			cells[c] = v.String()
		}
		b.WriteString("| " + strings.Join(escapeCells(cells), " | ") + " |\n")
	}

	if len(r.Summary) > 0 {
		b.WriteString("\n[SUMMARY]\n")
		names := make([]string, 0, len(r.Summary))
		for k := range r.Summary {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, name := range names {
			st := r.Summary[name]
			fmt.Fprintf(&b, "- %s:", name)
			for _, f := range []struct {
				label string
				v     *float64
			}{{"mean", st.Mean}, {"median", st.Median}, {"std", st.Std}, {"min", st.Min}, {"max", st.Max}} {
				if f.v != nil {
					fmt.Fprintf(&b, " %s=%.4g", f.label, *f.v)
				}
			}
			b.WriteString("\n")
		}
	}

	if r.Chart != nil {
		fmt.Fprintf(&b, "\n[CHART]\n%s: %s\n", r.Chart.Kind, r.Chart.Title)
	}
	return b.String()
}

func escapeCells(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
	}
	return out
}
