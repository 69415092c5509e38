// Package query repairs and validates candidate SQL produced by a generator.
package query

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/KaramelBytes/askcsv/internal/dataset"
)

// Rule is one named text transformation in the repair pipeline.
type Rule struct {
	Name  string
	Apply func(string) string
}

// Repairer applies an ordered table of rules to candidate SQL text.
type Repairer struct {
	columns []string
	rules   []Rule
}

// maxRounds bounds the fixed-point iteration in Repair.
const maxRounds = 4

// NewRepairer builds the rule table for a dataset with the given columns.
func NewRepairer(columns []string) *Repairer {
	r := &Repairer{columns: append([]string(nil), columns...)}
	norm := newColumnNormalizer(r.columns)
	r.rules = []Rule{
		{Name: "strip_code_fence", Apply: StripCodeFence},
		{Name: "strip_label", Apply: stripLabel},
		{Name: "coerce_select_from", Apply: coerceSelectFrom},
		{Name: "normalize_columns", Apply: norm.apply},
		{Name: "complete_truncation", Apply: func(s string) string { return completeTruncation(s, r.columns) }},
		{Name: "synthesize_group_by", Apply: func(s string) string { return synthesizeGroupBy(s, r.columns) }},
		{Name: "drop_dangling_clause", Apply: dropDanglingClause},
		{Name: "terminate", Apply: terminate},
	}
	return r
}

// Rules returns the rule names in application order.
func (r *Repairer) Rules() []string {
	out := make([]string, len(r.rules))
	for i, rule := range r.rules {
		out[i] = rule.Name
	}
	return out
}

// Repair runs the rule table until the text stops changing. Every rule is a
// pure function, so Repair(Repair(x)) == Repair(x).
func (r *Repairer) Repair(text string) string {
	out, _ := r.Trace(text)
	return out
}

// Trace is Repair that also reports which rules changed the text.
func (r *Repairer) Trace(text string) (string, []string) {
	cur := strings.TrimSpace(text)
	var fired []string
	for round := 0; round < maxRounds; round++ {
		next := cur
		for _, rule := range r.rules {
			out := strings.TrimSpace(rule.Apply(next))
			if out != next {
				fired = append(fired, rule.Name)
			}
			next = out
		}
		if next == cur {
			break
		}
		cur = next
	}
	return cur, fired
}

var (
	fencedBlock  = regexp.MustCompile("(?s)```(?:[A-Za-z]+[ \\t]*\\n)?(.*?)```")
	openFenceTag = regexp.MustCompile(`^[A-Za-z]+[ \t]*\n`)
)

// StripCodeFence returns the body of the first Markdown code fence in s, or s
// unchanged when there is none. An unclosed fence keeps everything after it.
func StripCodeFence(s string) string {
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if i := strings.Index(s, "```"); i >= 0 {
		rest := openFenceTag.ReplaceAllString(s[i+3:], "")
		return strings.TrimSpace(rest)
	}
	return s
}

var (
	leadingLabel = regexp.MustCompile(`(?i)^\s*(?:sql\s+query|sql|query)\b\s*(:?)\s*`)
	startsSelect = regexp.MustCompile(`(?i)^\s*select\b`)
)

// stripLabel removes leading "SQL:"/"QUERY:" labels. A bare word without a
// colon is only a label when SELECT follows it.
func stripLabel(s string) string {
	for {
		m := leadingLabel.FindStringSubmatchIndex(s)
		if m == nil {
			return s
		}
		rest := s[m[1]:]
		if m[3] == m[2] && !startsSelect.MatchString(rest) {
			return s
		}
		s = rest
	}
}

var (
	fromWord    = regexp.MustCompile(`(?i)\bfrom\b`)
	clauseStart = regexp.MustCompile(`(?i)\b(?:where|group\s+by|order\s+by|having|limit)\b`)
)

func coerceSelectFrom(s string) string {
	body, term := splitTerminator(s)
	if strings.TrimSpace(body) == "" {
		return s
	}
	if !startsSelect.MatchString(body) {
		body = "SELECT " + strings.TrimSpace(body)
	}
	if !fromWord.MatchString(maskLiterals(body)) {
		from := " FROM " + dataset.TableName
		if start, _ := findTopLevel(maskLiterals(body), clauseStart, 0); start >= 0 {
			body = strings.TrimRightFunc(body[:start], unicode.IsSpace) + from + " " + body[start:]
		} else {
			body = strings.TrimRightFunc(body, unicode.IsSpace) + from
		}
	}
	return joinTerminator(body, term)
}

type columnPattern struct {
	name string
	re   *regexp.Regexp
}

type columnNormalizer struct {
	patterns []columnPattern
}

// newColumnNormalizer builds one case-insensitive pattern per column in which
// spaces and underscores are interchangeable. Longer names match first.
func newColumnNormalizer(columns []string) *columnNormalizer {
	ordered := append([]string(nil), columns...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if len(ordered[i]) != len(ordered[j]) {
			return len(ordered[i]) > len(ordered[j])
		}
		return ordered[i] < ordered[j]
	})
	n := &columnNormalizer{}
	for _, col := range ordered {
		parts := strings.FieldsFunc(col, func(r rune) bool { return r == '_' || unicode.IsSpace(r) })
		if len(parts) == 0 {
			continue
		}
		quoted := make([]string, len(parts))
		for i, p := range parts {
			quoted[i] = regexp.QuoteMeta(p)
		}
		expr := strings.Join(quoted, `[ _]+`)
		if isWordByte(col[0]) {
			expr = `\b` + expr
		}
		if isWordByte(col[len(col)-1]) {
			expr += `\b`
		}
		n.patterns = append(n.patterns, columnPattern{name: col, re: regexp.MustCompile(`(?i)` + expr)})
	}
	return n
}

func (n *columnNormalizer) apply(s string) string {
	if len(n.patterns) == 0 {
		return s
	}
	return mapOutsideLiterals(s, func(seg string) string {
		for _, p := range n.patterns {
			seg = p.re.ReplaceAllLiteralString(seg, p.name)
		}
		return seg
	})
}

var (
	lastToken      = regexp.MustCompile(`[A-Za-z0-9_]+$`)
	truncatedTails = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?i)\bgroup\s+b$`), "GROUP BY"},
		{regexp.MustCompile(`(?i)\border\s+b$`), "ORDER BY"},
		{regexp.MustCompile(`(?i)\bdes$`), "DESC"},
	}
	fromTail = regexp.MustCompile(`(?i)\bfrom\s+([A-Za-z0-9_]+)$`)
)

// completeTruncation patches a final token that was cut off mid-word. Only
// completions with a single possible result are applied.
func completeTruncation(s string, columns []string) string {
	body, term := splitTerminator(s)
	tok := lastToken.FindString(body)
	if tok == "" {
		return s
	}
	for _, c := range columns {
		if dataset.SameName(c, tok) {
			return s
		}
	}
	head := body[:len(body)-len(tok)]
	for _, t := range truncatedTails {
		if loc := t.re.FindStringIndex(body); loc != nil {
			return joinTerminator(body[:loc[0]]+t.repl, term)
		}
	}
	if m := fromTail.FindStringSubmatch(body); m != nil {
		table := dataset.TableName
		if len(tok) >= 4 && len(tok) < len(table) && strings.HasPrefix(table, strings.ToLower(tok)) {
			return joinTerminator(head+table, term)
		}
		return s
	}
	if len(tok) < 3 || isKeyword(tok) {
		return s
	}
	var match string
	for _, c := range columns {
		if len(c) > len(tok) && strings.HasPrefix(dataset.FoldName(c), dataset.FoldName(tok)) {
			if match != "" {
				return s
			}
			match = c
		}
	}
	if match == "" {
		return s
	}
	return joinTerminator(head+match, term)
}

var (
	aggregateCall    = regexp.MustCompile(`(?i)\b(?:max|min|avg|sum)\s*\(`)
	groupByPopulated = regexp.MustCompile(`(?i)\bgroup\s+by\s+[^\s;]`)
	selectWord       = regexp.MustCompile(`(?i)^\s*select\s+(?:distinct\s+)?`)
	afterGroupBy     = regexp.MustCompile(`(?i)\b(?:having|order\s+by|limit)\b`)
	aliasSuffix      = regexp.MustCompile(`(?i)^(.*?)\s+as\s+\S+$`)
)

// synthesizeGroupBy adds a GROUP BY over the plain columns of an aggregate
// projection that lacks one.
func synthesizeGroupBy(s string, columns []string) string {
	body, term := splitTerminator(s)
	masked := maskLiterals(body)
	if !aggregateCall.MatchString(masked) || groupByPopulated.MatchString(masked) {
		return s
	}
	sel := selectWord.FindStringIndex(masked)
	if sel == nil {
		return s
	}
	fromStart, fromEnd := findTopLevel(masked, fromWord, sel[1])
	if fromStart < 0 {
		return s
	}
	var group []string
	seen := map[string]bool{}
	for _, item := range splitTopLevel(body[sel[1]:fromStart]) {
		item = strings.TrimSpace(item)
		if aggregateCall.MatchString(maskLiterals(item)) {
			continue
		}
		if m := aliasSuffix.FindStringSubmatch(item); m != nil {
			item = strings.TrimSpace(m[1])
		}
		item = strings.Trim(item, `"`+"`")
		for _, c := range columns {
			if dataset.SameName(c, item) && !seen[c] {
				seen[c] = true
				group = append(group, identifier(c))
			}
		}
	}
	if len(group) == 0 {
		return s
	}
	clause := "GROUP BY " + strings.Join(group, ", ")
	// Clause keywords with nothing after them would end up in front of the
	// new GROUP BY.
	body = trimDanglingClauses(body)
	masked = maskLiterals(body)
	if start, _ := findTopLevel(masked, afterGroupBy, fromEnd); start >= 0 {
		body = strings.TrimRightFunc(body[:start], unicode.IsSpace) + " " + clause + " " + body[start:]
		return joinTerminator(body, term)
	}
	return joinTerminator(strings.TrimRightFunc(body, unicode.IsSpace)+" "+clause, term)
}

var danglingClause = regexp.MustCompile(`(?i)\s*\b(?:where|group\s+by|order\s+by|having)\s*$`)

// dropDanglingClause removes clause keywords left with nothing after them.
func dropDanglingClause(s string) string {
	body, term := splitTerminator(s)
	return joinTerminator(trimDanglingClauses(body), term)
}

func trimDanglingClauses(body string) string {
	for {
		next := danglingClause.ReplaceAllString(body, "")
		if next == body {
			return body
		}
		body = next
	}
}

// terminate leaves exactly one trailing semicolon.
func terminate(s string) string {
	body, _ := splitTerminator(s)
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	return body + ";"
}
