package generator

import (
	"strings"

	"github.com/KaramelBytes/askcsv/internal/ai"
	"github.com/KaramelBytes/askcsv/internal/dataset"
	"github.com/KaramelBytes/askcsv/internal/utils"
)

// Style selects how a Prompt is rendered for a backend.
type Style string

const (
	// StyleChat is an instruction prompt for chat models.
	StyleChat Style = "chat"
	// StyleCompact is the seq2seq input used by text-to-SQL models.
	StyleCompact Style = "compact"
)

// DefaultSampleRows is how many dataset rows a prompt carries by default.
const DefaultSampleRows = 3

// Prompt is everything a backend sees for one question.
type Prompt struct {
	Schema   dataset.Schema
	Samples  [][]string
	Question string
}

// NewPrompt builds a prompt from the first sampleRows rows of ds.
func NewPrompt(ds *dataset.Dataset, question string, sampleRows int) Prompt {
	if sampleRows < 0 {
		sampleRows = DefaultSampleRows
	}
	return Prompt{
		Schema:   dataset.Describe(ds),
		Samples:  ds.Head(sampleRows),
		Question: strings.TrimSpace(question),
	}
}

// Compact renders "tables:\n<CREATE TABLE ...>\nquery for:<question>".
func (p Prompt) Compact() string {
	return "tables:\n" + p.Schema.String() + "\nquery for:" + p.Question
}

const systemPrompt = `You translate questions about a CSV file into one SQLite query.
Rules:
- Use the SQLite dialect.
- Write a single SELECT statement against the table data_table.
- Use column names exactly as given; double-quote names that contain spaces.
- Aggregate with MAX, MIN, AVG, SUM or COUNT and add GROUP BY when mixing aggregates with plain columns.
- Return only the SQL, with no explanation.`

// Chat renders the instruction prompt as system and user messages.
func (p Prompt) Chat() []ai.Message {
	var b strings.Builder
	b.WriteString("[SCHEMA]\n")
	b.WriteString(p.Schema.String())
	b.WriteString("\n")
	if len(p.Samples) > 0 {
		b.WriteString("\n[SAMPLE ROWS]\n")
		writeTable(&b, p.Schema.ColumnNames(), p.Samples)
	}
	b.WriteString("\n[QUESTION]\n")
	b.WriteString(p.Question)
	b.WriteString("\n")
	return []ai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// Messages renders p in the given style.
func (p Prompt) Messages(style Style) []ai.Message {
	if style == StyleCompact {
		return []ai.Message{{Role: "user", Content: p.Compact()}}
	}
	return p.Chat()
}

// Tokens estimates the size of p rendered in style.
func (p Prompt) Tokens(style Style) int {
	n := 0
	for _, m := range p.Messages(style) {
		n += utils.CountTokens(m.Content)
	}
	return n
}

// Fit drops sample rows from the end until p fits budget tokens. The schema
// and question are never dropped.
func (p Prompt) Fit(style Style, budget int) Prompt {
	for len(p.Samples) > 0 && p.Tokens(style) > budget {
		p.Samples = p.Samples[:len(p.Samples)-1]
	}
	return p
}

func writeTable(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("| ")
	b.WriteString(strings.Join(cells(header), " | "))
	b.WriteString(" |\n|")
	for range header {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString("| ")
		b.WriteString(strings.Join(cells(r), " | "))
		b.WriteString(" |\n")
	}
}

func cells(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.ReplaceAll(strings.ReplaceAll(c, "\n", " "), "|", "/")
	}
	return out
}
