package dataset

import "strings"

// TableName is the single relation every dataset is materialized as.
const TableName = "data_table"

// SchemaColumn is a (name, SQL type) pair.
type SchemaColumn struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is the relational description handed to the query generator.
type Schema struct {
	Table   string         `json:"table"`
	Columns []SchemaColumn `json:"columns"`
}

// Describe derives the schema of ds. The result depends only on column
// names, order and types.
func Describe(ds *Dataset) Schema {
	s := Schema{Table: TableName, Columns: make([]SchemaColumn, len(ds.Columns))}
	for i, c := range ds.Columns {
		s.Columns[i] = SchemaColumn{Name: c.Name, Type: c.Type}
	}
	return s
}

// ColumnNames lists the schema's column names in order.
func (s Schema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// String renders the schema as a CREATE TABLE statement, e.g.
// CREATE TABLE data_table ("brand" TEXT, "price" REAL).
func (s Schema) String() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(s.Table)
	b.WriteString(" (")
	for i, c := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(QuoteIdent(c.Name))
		b.WriteByte(' ')
		b.WriteString(string(c.Type))
	}
	b.WriteString(")")
	return b.String()
}

// QuoteIdent double-quotes an identifier for SQLite.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
