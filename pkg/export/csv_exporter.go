package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Sheet is an ordered tabular report, such as a batch attendance sheet.
// Rows are positional and must match the column count.
type Sheet struct {
	Title   string
	Columns []string
	Rows    [][]string
}

func (s Sheet) validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("sheet has no columns")
	}
	for i, row := range s.Rows {
		if len(row) != len(s.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(s.Columns))
		}
	}
	return nil
}

// CSVExporter renders sheets into CSV bytes. The title is dropped so the
// output stays machine-readable.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the sheet.
func (e *CSVExporter) Render(sheet Sheet) ([]byte, error) {
	if err := sheet.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(sheet.Columns); err != nil {
		return nil, fmt.Errorf("write csv columns: %w", err)
	}
	if err := w.WriteAll(sheet.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
