package dataset

import (
	"html/template"
	"strings"
)

var previewTmpl = template.Must(template.New("preview").Parse(
	`<table border="1" class="dataframe table table-striped">` +
		`<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>` +
		`<tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody>` +
		`</table>`))

// PreviewHTML renders the first n rows as an HTML table.
func PreviewHTML(ds *Dataset, n int) (string, error) {
	var b strings.Builder
	err := previewTmpl.Execute(&b, struct {
		Columns []string
		Rows    [][]string
	}{ds.ColumnNames(), ds.Head(n)})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
