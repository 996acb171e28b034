package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"

	"github.com/ethoflow/ethoflow/pkg/table"
)

const odsMimetype = "application/vnd.oasis.opendocument.spreadsheet"

const odsManifest = `<?xml version="1.0" encoding="UTF-8"?>
<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">
 <manifest:file-entry manifest:full-path="/" manifest:version="1.2" manifest:media-type="application/vnd.oasis.opendocument.spreadsheet"/>
 <manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"/>
</manifest:manifest>
`

const odsContentHead = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0" office:version="1.2">
<office:body>
<office:spreadsheet>
`

const odsContentTail = `</office:spreadsheet>
</office:body>
</office:document-content>
`

// encodeODS writes a minimal OpenDocument spreadsheet. The mimetype entry
// must come first and be stored uncompressed.
func encodeODS(t *table.ResultTable, name string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(mt, odsMimetype); err != nil {
		return nil, err
	}

	manifest, err := zw.Create("META-INF/manifest.xml")
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(manifest, odsManifest); err != nil {
		return nil, err
	}

	content, err := zw.Create("content.xml")
	if err != nil {
		return nil, err
	}
	if err := writeODSContent(content, t, name); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeODSContent(w io.Writer, t *table.ResultTable, name string) error {
	var b bytes.Buffer
	b.WriteString(odsContentHead)
	b.WriteString(`<table:table table:name="`)
	xml.EscapeText(&b, []byte(name))
	b.WriteString("\">\n")

	b.WriteString("<table:table-row>")
	for _, h := range t.Headers {
		odsStringCell(&b, h)
	}
	b.WriteString("</table:table-row>\n")

	for _, row := range t.Rows {
		b.WriteString("<table:table-row>")
		odsFloatCell(&b, row.Time.String())
		for _, c := range row.Cells {
			if c == 1 {
				odsFloatCell(&b, "1")
			} else {
				odsFloatCell(&b, "0")
			}
		}
		b.WriteString("</table:table-row>\n")
	}

	b.WriteString("</table:table>\n")
	b.WriteString(odsContentTail)
	_, err := w.Write(b.Bytes())
	return err
}

func odsStringCell(b *bytes.Buffer, v string) {
	b.WriteString(`<table:table-cell office:value-type="string"><text:p>`)
	xml.EscapeText(b, []byte(v))
	b.WriteString(`</text:p></table:table-cell>`)
}

func odsFloatCell(b *bytes.Buffer, v string) {
	b.WriteString(`<table:table-cell office:value-type="float" office:value="`)
	b.WriteString(v)
	b.WriteString(`"><text:p>`)
	b.WriteString(v)
	b.WriteString(`</text:p></table:table-cell>`)
}
