package query

import (
	"regexp"
	"strings"
	"unicode"
)

// maskLiterals blanks the inside of single-quoted literals so keyword
// searches skip them. The result has the same byte length as s.
func maskLiterals(s string) string {
	b := []byte(s)
	in := false
	for i := 0; i < len(b); i++ {
		if b[i] == '\'' {
			if in && i+1 < len(b) && b[i+1] == '\'' {
				b[i], b[i+1] = ' ', ' '
				i++
				continue
			}
			in = !in
			continue
		}
		if in {
			b[i] = ' '
		}
	}
	return string(b)
}

// mapOutsideLiterals applies f to every stretch of s that is not inside a
// single-quoted literal.
func mapOutsideLiterals(s string, f func(string) string) string {
	var b strings.Builder
	start, in := 0, false
	for i := 0; i < len(s); i++ {
		if s[i] != '\'' {
			continue
		}
		if in {
			if i+1 < len(s) && s[i+1] == '\'' {
				i++
				continue
			}
			b.WriteString(s[start : i+1])
			start, in = i+1, false
			continue
		}
		b.WriteString(f(s[start:i]))
		start, in = i, true
	}
	if in {
		b.WriteString(s[start:])
	} else {
		b.WriteString(f(s[start:]))
	}
	return b.String()
}

// splitTerminator separates trailing semicolons and whitespace from s.
func splitTerminator(s string) (body string, terminated bool) {
	trimmed := strings.TrimRightFunc(s, unicode.IsSpace)
	body = strings.TrimRight(trimmed, "; \t\r\n")
	return body, len(body) < len(trimmed)
}

func joinTerminator(body string, terminated bool) string {
	if terminated && body != "" {
		return body + ";"
	}
	return body
}

// depthAt returns the parenthesis depth of masked just before pos.
func depthAt(masked string, pos int) int {
	d := 0
	for i := 0; i < pos && i < len(masked); i++ {
		switch masked[i] {
		case '(':
			d++
		case ')':
			d--
		}
	}
	return d
}

// findTopLevel returns the start and end of the first match of re at or after
// from that sits outside any parentheses, or -1.
func findTopLevel(masked string, re *regexp.Regexp, from int) (int, int) {
	if from > len(masked) {
		return -1, -1
	}
	for _, loc := range re.FindAllStringIndex(masked[from:], -1) {
		start := loc[0] + from
		if depthAt(masked, start) == 0 {
			return start, loc[1] + from
		}
	}
	return -1, -1
}

// splitTopLevel splits s on commas that sit outside parentheses and literals.
func splitTopLevel(s string) []string {
	masked := maskLiterals(s)
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(masked); i++ {
		switch masked[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

var simpleIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// identifier renders a column name bare when SQLite accepts it unquoted.
func identifier(name string) string {
	if simpleIdent.MatchString(name) && !isKeyword(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var keywords = map[string]struct{}{
	"select": {}, "from": {}, "where": {}, "group": {}, "order": {}, "by": {},
	"having": {}, "limit": {}, "offset": {}, "and": {}, "or": {}, "not": {},
	"asc": {}, "desc": {}, "as": {}, "on": {}, "in": {}, "is": {}, "null": {},
	"like": {}, "between": {}, "distinct": {}, "count": {}, "sum": {}, "avg": {},
	"min": {}, "max": {}, "case": {}, "when": {}, "then": {}, "else": {},
	"end": {}, "union": {}, "join": {}, "all": {},
}

func isKeyword(s string) bool {
	_, ok := keywords[strings.ToLower(s)]
	return ok
}
