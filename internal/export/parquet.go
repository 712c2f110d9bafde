package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/fpang/product-catalog/internal/catalog"
)

// parquetWriters is the number of goroutines the parquet writer uses.
const parquetWriters = 4

// parquetSchema maps Columns onto a flat, all-optional schema. Column names
// have spaces and punctuation replaced with underscores.
func parquetSchema() []string {
	meta := make([]string, len(Columns))
	for i, col := range Columns {
		name := parquetName(col)
		if col == "Processing Time (ms)" {
			meta[i] = fmt.Sprintf("name=%s, type=INT64, repetitiontype=OPTIONAL", name)
			continue
		}
		meta[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", name)
	}
	return meta
}

func parquetName(col string) string {
	r := strings.NewReplacer(" ", "_", "(", "", ")", "")
	return strings.Trim(r.Replace(col), "_")
}

// WriteParquet writes the table as Snappy-compressed Parquet.
func WriteParquet(w io.Writer, report catalog.BatchReport) error {
	fw := writerfile.NewWriterFile(w)
	pw, err := writer.NewCSVWriter(parquetSchema(), fw, parquetWriters)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range Rows(report) {
		values := row.Values()
		rec := make([]*string, len(values))
		for i := range values {
			v := values[i]
			rec[i] = &v
		}
		if err := pw.WriteString(rec); err != nil {
			return fmt.Errorf("write parquet row %s: %w", row.ImageName, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet: %w", err)
	}
	return nil
}
