package export

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/ethoflow/ethoflow/pkg/table"
)

// Compression represents Parquet compression options.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionSnappy
	CompressionGzip
	CompressionZstd
	CompressionLZ4
)

// String returns the compression name.
func (c Compression) String() string {
	switch c {
	case CompressionSnappy:
		return "snappy"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "none"
	}
}

// ParseCompression parses a compression name. Unknown names mean none.
func ParseCompression(s string) Compression {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "gzip":
		return CompressionGzip
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

func (c Compression) codec() compress.Compression {
	switch c {
	case CompressionSnappy:
		return compress.Codecs.Snappy
	case CompressionGzip:
		return compress.Codecs.Gzip
	case CompressionZstd:
		return compress.Codecs.Zstd
	case CompressionLZ4:
		return compress.Codecs.Lz4
	default:
		return compress.Codecs.Uncompressed
	}
}

// tableSchema has a float64 time column followed by one uint8 column per label.
func tableSchema(t *table.ResultTable) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(t.Headers))
	fields = append(fields, arrow.Field{Name: table.TimeHeader, Type: arrow.PrimitiveTypes.Float64})
	for _, l := range t.Labels() {
		fields = append(fields, arrow.Field{Name: l, Type: arrow.PrimitiveTypes.Uint8})
	}
	return arrow.NewSchema(fields, nil)
}

func encodeParquet(t *table.ResultTable, c Compression) ([]byte, error) {
	allocator := memory.NewGoAllocator()
	schema := tableSchema(t)

	b := array.NewRecordBuilder(allocator, schema)
	defer b.Release()
	b.Reserve(len(t.Rows))

	timeBuilder := b.Field(0).(*array.Float64Builder)
	cellBuilders := make([]*array.Uint8Builder, t.Width())
	for i := range cellBuilders {
		cellBuilders[i] = b.Field(i + 1).(*array.Uint8Builder)
	}
	for _, row := range t.Rows {
		timeBuilder.Append(row.Time.Seconds())
		for i, v := range row.Cells {
			cellBuilders[i].Append(v)
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(c.codec()),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	var buf bytes.Buffer
	w, err := pqarrow.NewFileWriter(schema, &buf, writerProps, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, fmt.Errorf("write record batch: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
