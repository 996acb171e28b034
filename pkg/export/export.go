// Package export serializes result tables to files.
package export

import (
	"fmt"
	"strings"

	eferrors "github.com/ethoflow/ethoflow/pkg/errors"
	"github.com/ethoflow/ethoflow/pkg/table"
)

// Format is an output file format.
type Format string

const (
	FormatTSV     Format = "tsv"
	FormatCSV     Format = "csv"
	FormatHTML    Format = "html"
	FormatXLSX    Format = "xlsx"
	FormatODS     Format = "ods"
	FormatXLS     Format = "xls"
	FormatParquet Format = "parquet"
)

// Formats lists every recognized format in display order.
var Formats = []Format{FormatTSV, FormatCSV, FormatODS, FormatXLSX, FormatXLS, FormatHTML, FormatParquet}

// ParseFormat parses a format name or file extension.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (valid: %s)", s, formatList())
}

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Supported reports whether Export can produce the format.
// Legacy xls is recognized but not written.
func (f Format) Supported() bool {
	switch f {
	case FormatTSV, FormatCSV, FormatHTML, FormatXLSX, FormatODS, FormatParquet:
		return true
	}
	return false
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Binary reports whether the encoded form is not text.
func (f Format) Binary() bool {
	switch f {
	case FormatXLSX, FormatODS, FormatXLS, FormatParquet:
		return true
	}
	return false
}

// Options tunes encoders that support it.
type Options struct {
	// Compression applies to parquet output.
	Compression Compression

	// SheetName names the worksheet for xlsx and ods.
	SheetName string
}

// DefaultOptions returns the options used by Export.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionSnappy,
		SheetName:   "Instantaneous sampling",
	}
}

// Export encodes t in the given format with default options.
func Export(t *table.ResultTable, f Format) ([]byte, error) {
	return ExportWithOptions(t, f, DefaultOptions())
}

// ExportWithOptions encodes t in the given format.
func ExportWithOptions(t *table.ResultTable, f Format, opts Options) ([]byte, error) {
	if t == nil {
		return nil, eferrors.New(eferrors.CodeExportFailure, "nil result table")
	}
	if !f.Supported() {
		return nil, eferrors.UnsupportedFormat(string(f))
	}
	if opts.SheetName == "" {
		opts.SheetName = DefaultOptions().SheetName
	}

	var (
		data []byte
		err  error
	)
	switch f {
	case FormatTSV:
		data, err = encodeDelimited(t, '\t')
	case FormatCSV:
		data, err = encodeDelimited(t, ',')
	case FormatHTML:
		data, err = encodeHTML(t)
	case FormatXLSX:
		data, err = encodeXLSX(t, opts.SheetName)
	case FormatODS:
		data, err = encodeODS(t, opts.SheetName)
	case FormatParquet:
		data, err = encodeParquet(t, opts.Compression)
	}
	if err != nil {
		return nil, eferrors.Wrapf(err, eferrors.CodeExportFailure, "encode %s", f)
	}
	return data, nil
}
