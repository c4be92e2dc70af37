package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset defines tabular export content. Rows are positional and must have
// one cell per header.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  []string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOption customises a CSVExporter.
type CSVOption func(*CSVExporter)

// WithByteOrderMark prefixes output with a UTF-8 BOM so spreadsheet tools
// detect the encoding of non-ASCII student names.
func WithByteOrderMark() CSVOption {
	return func(e *CSVExporter) { e.bom = true }
}

// WithCRLF terminates records with \r\n.
func WithCRLF() CSVOption {
	return func(e *CSVExporter) { e.crlf = true }
}

// CSVExporter renders a Dataset as RFC 4180 CSV. Title and footer are not
// emitted so every record has the header's column count.
type CSVExporter struct {
	bom  bool
	crlf bool
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter(opts ...CSVOption) *CSVExporter {
	e := &CSVExporter{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render encodes the dataset. Cells containing commas, quotes or newlines are
// quoted by encoding/csv.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	var buf bytes.Buffer
	if e.bom {
		buf.Write(utf8BOM)
	}
	w := csv.NewWriter(&buf)
	w.UseCRLF = e.crlf

	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, data.Headers)
	for i, row := range data.Rows {
		if len(row) != len(data.Headers) {
			return nil, fmt.Errorf("csv row %d has %d cells, want %d", i+1, len(row), len(data.Headers))
		}
		records = append(records, row)
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}
