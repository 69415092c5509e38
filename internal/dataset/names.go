package dataset

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var separatorRun = regexp.MustCompile(`[\s\-]+`)

// NormalizeColumnName maps whitespace and hyphen runs to a single underscore.
func NormalizeColumnName(raw string) string {
	s := strings.TrimPrefix(raw, "\ufeff")
	s = norm.NFC.String(s)
	s = strings.TrimSpace(s)
	return separatorRun.ReplaceAllString(s, "_")
}

// FoldName returns the case-folded key SQLite uses to compare identifiers.
func FoldName(s string) string {
	return cases.Fold().String(s)
}

// SameName reports whether a and b name the same column.
func SameName(a, b string) bool {
	return FoldName(a) == FoldName(b)
}

// UniqueNames normalizes a header row. Empty names become column_<n> and
// case-insensitive duplicates get a numeric suffix.
func UniqueNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := NormalizeColumnName(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		base := name
		for n := 2; ; n++ {
			if _, dup := seen[FoldName(name)]; !dup {
				break
			}
			name = fmt.Sprintf("%s_%d", base, n)
		}
		seen[FoldName(name)] = i
		out[i] = name
	}
	return out
}
