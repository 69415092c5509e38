// Package dataset holds uploaded tabular data and its relational description.
package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ColumnType is the SQL type a column is materialized with.
type ColumnType string

const (
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeText    ColumnType = "TEXT"
)

var (
	ErrNoColumns  = errors.New("dataset has no columns")
	ErrRaggedRows = errors.New("row length does not match header")
)

// Column is one named, typed column of cells.
type Column struct {
	Name   string
	Type   ColumnType
	Values []Value
}

// Dataset is an immutable snapshot of an uploaded table.
type Dataset struct {
	Name    string
	Columns []Column
}

// missingMarkers are the cell spellings treated as absent values.
var missingMarkers = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {},
	"null": {}, "NULL": {}, "None": {}, "<NA>": {}, "#N/A": {},
}

// IsMissing reports whether a raw cell denotes a missing value.
func IsMissing(cell string) bool {
	_, ok := missingMarkers[strings.TrimSpace(cell)]
	return ok
}

// New builds a dataset from a raw header and string records, inferring a type
// per column.
func New(name string, header []string, records [][]string) (*Dataset, error) {
	if len(header) == 0 {
		return nil, ErrNoColumns
	}
	names := UniqueNames(header)
	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, want %d", ErrRaggedRows, i+1, len(rec), len(header))
		}
	}
	ds := &Dataset{Name: name, Columns: make([]Column, len(names))}
	cells := make([]string, len(records))
	for c, n := range names {
		for r, rec := range records {
			cells[r] = rec[c]
		}
		ds.Columns[c] = inferColumn(n, cells)
	}
	return ds, nil
}

// inferColumn picks INTEGER when every cell is an integer and none is
// missing, REAL when every present cell is numeric, and TEXT otherwise.
func inferColumn(name string, cells []string) Column {
	allInt, allNum, missing := true, true, 0
	for _, raw := range cells {
		if IsMissing(raw) {
			missing++
			continue
		}
		s := strings.TrimSpace(raw)
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			allInt = false
		}
		if _, ok := parseReal(s); !ok {
			allNum = false
			break
		}
	}
	col := Column{Name: name, Values: make([]Value, len(cells))}
	switch {
	case len(cells) == 0:
		col.Type = TypeText
	case allNum && allInt && missing == 0:
		col.Type = TypeInteger
		for i, raw := range cells {
			n, _ := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			col.Values[i] = Int(n)
		}
	case allNum:
		col.Type = TypeReal
		for i, raw := range cells {
			if IsMissing(raw) {
				col.Values[i] = Null()
				continue
			}
			f, _ := parseReal(strings.TrimSpace(raw))
			col.Values[i] = Real(f)
		}
	default:
		col.Type = TypeText
		for i, raw := range cells {
			if IsMissing(raw) {
				col.Values[i] = Null()
				continue
			}
			col.Values[i] = Text(raw)
		}
	}
	return col
}

func parseReal(s string) (float64, bool) {
	// ParseFloat accepts hex floats, which CSV readers do not.
	if strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// NumRows returns the row count shared by every column.
func (d *Dataset) NumRows() int {
	if d == nil || len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Values)
}

// ColumnNames lists column names in order.
func (d *Dataset) ColumnNames() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Column finds a column by case-insensitive name.
func (d *Dataset) Column(name string) (*Column, bool) {
	for i := range d.Columns {
		if SameName(d.Columns[i].Name, name) {
			return &d.Columns[i], true
		}
	}
	return nil, false
}

// Row returns the cells of row i in column order.
func (d *Dataset) Row(i int) []Value {
	row := make([]Value, len(d.Columns))
	for c := range d.Columns {
		row[c] = d.Columns[c].Values[i]
	}
	return row
}

// Head renders the first n rows as strings.
func (d *Dataset) Head(n int) [][]string {
	if n > d.NumRows() {
		n = d.NumRows()
	}
	out := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row := d.Row(i)
		cells := make([]string, len(row))
		for c, v := range row {
			cells[c] = v.String()
		}
		out = append(out, cells)
	}
	return out
}
