package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth    = 277.0
	nameColWidth = 45.0
)

// PDFExporter renders datasets into a landscape tabular PDF sized for broadsheets.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with the dataset title, table body and footer lines.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 9, tr(strings.ToUpper(data.Title)), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	widths, nameIdx := columnWidths(data.Headers)
	fontSize := 7.0
	if len(data.Headers) <= 12 {
		fontSize = 9
	}

	header := func() {
		pdf.SetFont("Arial", "B", fontSize)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	header()

	pdf.SetFont("Arial", "", fontSize)
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range data.Rows {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			header()
			pdf.SetFont("Arial", "", fontSize)
		}
		for i := range data.Headers {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			align := "C"
			if i == nameIdx {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, tr(value), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(data.Footer) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 9)
		for _, line := range data.Footer {
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths gives the name column a fixed width and splits the rest evenly.
// It also returns the index of the name column, or -1.
func columnWidths(headers []string) ([]float64, int) {
	widths := make([]float64, len(headers))
	nameIdx := -1
	for i, h := range headers {
		if strings.EqualFold(h, "name") {
			nameIdx = i
			break
		}
	}
	remaining := pageWidth
	others := len(headers)
	if nameIdx >= 0 && len(headers) > 1 {
		widths[nameIdx] = nameColWidth
		remaining -= nameColWidth
		others--
	}
	share := remaining / float64(others)
	for i := range widths {
		if i != nameIdx || len(headers) == 1 {
			widths[i] = share
		}
	}
	return widths, nameIdx
}
