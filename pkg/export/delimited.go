package export

import (
	"bytes"
	"encoding/csv"
	"html/template"

	"github.com/ethoflow/ethoflow/pkg/table"
)

func encodeDelimited(t *table.ResultTable, sep rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = sep
	if err := w.WriteAll(t.Records()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var htmlTemplate = template.Must(template.New("table").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Instantaneous sampling</title>
</head>
<body>
<table>
<thead>
<tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
</thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</body>
</html>
`))

func encodeHTML(t *table.ResultTable) ([]byte, error) {
	records := t.Records()
	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, struct {
		Header []string
		Rows   [][]string
	}{records[0], records[1:]})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
