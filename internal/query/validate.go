package query

import (
	"fmt"
	"regexp"
	"strings"
)

// InvalidQueryError reports why a repaired query was rejected.
type InvalidQueryError struct {
	Query  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

var (
	hasFrom = regexp.MustCompile(`(?i)\bfrom\b`)
	// DROP, DELETE, UPDATE and INSERT, plus statements that change the
	// connection or attach other databases.
	disallowedWord = regexp.MustCompile(`(?i)\b(drop|delete|update|insert|alter|create|attach|detach|pragma|vacuum)\b`)
)

// Validate checks that q is a single read-only SELECT over a FROM clause.
// It is a syntactic gate, not a parser.
func Validate(q string) error {
	text := strings.TrimSpace(q)
	reject := func(reason string) error {
		return &InvalidQueryError{Query: q, Reason: reason}
	}
	if text == "" {
		return reject("query is empty")
	}
	if !startsSelect.MatchString(text) {
		return reject("query must start with SELECT")
	}
	if !hasFrom.MatchString(maskLiterals(text)) {
		return reject("query has no FROM clause")
	}
	if open, closed := strings.Count(text, "("), strings.Count(text, ")"); open != closed {
		return reject(fmt.Sprintf("unbalanced parentheses (%d open, %d close)", open, closed))
	}
	if m := disallowedWord.FindString(text); m != "" {
		return reject(fmt.Sprintf("disallowed keyword %s", strings.ToUpper(m)))
	}
	if strings.Contains(text, "--") || strings.Contains(text, "/*") {
		return reject("comments are not allowed")
	}
	if i := strings.Index(text, ";"); i >= 0 && strings.TrimSpace(text[i+1:]) != "" {
		return reject("multiple statements are not allowed")
	}
	return nil
}

// Generated is one candidate query as it moves through repair and validation.
type Generated struct {
	Raw      string   `json:"raw"`
	Repaired string   `json:"repaired"`
	Valid    bool     `json:"valid"`
	Rules    []string `json:"rules,omitempty"`
}

// Prepare repairs raw text for a dataset with the given columns and
// validates the result.
func Prepare(raw string, columns []string) (Generated, error) {
	repaired, fired := NewRepairer(columns).Trace(raw)
	g := Generated{Raw: raw, Repaired: repaired, Rules: fired}
	if err := Validate(repaired); err != nil {
		return g, err
	}
	g.Valid = true
	return g, nil
}
