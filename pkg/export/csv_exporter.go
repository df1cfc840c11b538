package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Sheet is a printable result sheet: a title block, a table and summary lines.
type Sheet struct {
	Title   string
	Meta    []string
	Headers []string
	Rows    [][]string
	Summary []string
}

func (s Sheet) validate() error {
	if len(s.Headers) == 0 {
		return fmt.Errorf("sheet requires at least one header")
	}
	for i, row := range s.Rows {
		if len(row) != len(s.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(s.Headers))
		}
	}
	return nil
}

// CSVExporter renders the table of a Sheet. Title and summary lines are left
// out so the file stays machine readable.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType of the rendered bytes.
func (e *CSVExporter) ContentType() string { return "text/csv" }

// Extension used for stored files.
func (e *CSVExporter) Extension() string { return "csv" }

// Render produces CSV encoded bytes for the sheet.
func (e *CSVExporter) Render(sheet Sheet) ([]byte, error) {
	if err := sheet.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(sheet.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	if err := writer.WriteAll(sheet.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}
