package export

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/colplan/colplan/internal/report"
)

// encodeParquet writes the result with a schema built at runtime from the
// report's column list. Every column is an optional string; report shapes
// are ad hoc, so values are rendered the same way as in CSV output and
// NULLs stay null.
func encodeParquet(result report.Result) ([]byte, error) {
	if len(result.Columns) == 0 {
		return nil, fmt.Errorf("result has no columns")
	}

	group := parquet.Group{}
	for _, column := range result.Columns {
		group[column] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema(result.TableName, group)

	rows := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) != len(result.Columns) {
			return nil, fmt.Errorf("row has %d values, want %d", len(row), len(result.Columns))
		}
		record := make(map[string]any, len(result.Columns))
		for i, value := range row {
			if value == nil {
				continue
			}
			record[result.Columns[i]] = formatValue(value)
		}
		rows = append(rows, record)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[map[string]any](buf, schema)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
