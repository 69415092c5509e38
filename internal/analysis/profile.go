package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/askcsv/internal/dataset"
)

// CategoryCount is one distinct value of a text column and its frequency.
type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnProfile captures the inferred type and statistics of one dataset
// column.
type ColumnProfile struct {
	Name    string             `json:"name"`
	Type    dataset.ColumnType `json:"type"`
	NonNull int                `json:"non_null"`
	Missing int                `json:"missing"`
	Unique  int                `json:"unique"`
	// Numeric columns only.
	Stats *Stats `json:"stats,omitempty"`
	// Text columns only.
	TopValues []CategoryCount `json:"top_values,omitempty"`
}

// Profile is the upload-time summary of a dataset.
type Profile struct {
	Name    string          `json:"name"`
	Rows    int             `json:"rows"`
	Columns int             `json:"columns"`
	Cols    []ColumnProfile `json:"column_stats"`
	Samples [][]string      `json:"-"`
}

const maxTopValues = 8

// ProfileDataset summarizes every column of ds and keeps the first
// sampleRows rows for display.
func ProfileDataset(ds *dataset.Dataset, sampleRows int) *Profile {
	p := &Profile{Name: ds.Name, Rows: ds.NumRows(), Columns: len(ds.Columns)}
	for _, col := range ds.Columns {
		cp := ColumnProfile{Name: col.Name, Type: col.Type}
		distinct := map[string]int{}
		for _, v := range col.Values {
			if v.IsNull() {
				cp.Missing++
				continue
			}
			cp.NonNull++
			distinct[v.String()]++
		}
		cp.Unique = len(distinct)
		switch col.Type {
		case dataset.TypeInteger, dataset.TypeReal:
			st := Describe(numbers(col.Values))
			cp.Stats = &st
		default:
			cp.TopValues = topValues(distinct, maxTopValues)
		}
		p.Cols = append(p.Cols, cp)
	}
	if sampleRows > 0 {
		p.Samples = ds.Head(sampleRows)
	}
	return p
}

func topValues(counts map[string]int, n int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > n {
		tops = tops[:n]
	}
	return tops
}

// Markdown renders the profile for terminals and prompts.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if p.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", p.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", p.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", p.Columns))

	b.WriteString("[SCHEMA]\n")
	for _, c := range p.Cols {
		missPct := 0.0
		if total := c.NonNull + c.Missing; total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%, unique %d)", c.Name, c.Type, c.NonNull, missPct, c.Unique))
		if st := c.Stats; st != nil && st.Mean != nil && st.Median != nil && st.Min != nil && st.Max != nil {
			b.WriteString(fmt.Sprintf("; min %.4g, max %.4g, mean %.4g, median %.4g", *st.Min, *st.Max, *st.Mean, *st.Median))
			if st.Std != nil {
				b.WriteString(fmt.Sprintf(", std %.4g", *st.Std))
			}
		}
		if len(c.TopValues) > 0 {
			b.WriteString("; top: ")
			for i, kv := range c.TopValues {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
			}
		}
		b.WriteString("\n")
	}

	if len(p.Samples) > 0 {
		b.WriteString("\n[HEAD]\n")
		names := make([]string, len(p.Cols))
		rule := make([]string, len(p.Cols))
		for i, c := range p.Cols {
			names[i] = safeVal(c.Name)
			rule[i] = "---"
		}
		b.WriteString("| " + strings.Join(names, " | ") + " |\n")
		b.WriteString("| " + strings.Join(rule, " | ") + " |\n")
		for _, row := range p.Samples {
			cells := make([]string, len(row))
			for i, v := range row {
				if len(v) > 80 {
					v = v[:77] + "..."
				}
				cells[i] = safeVal(v)
			}
			b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
