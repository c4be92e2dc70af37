package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterQuotesCells(t *testing.T) {
	data := Dataset{
		Headers: []string{"S/N", "Name", "Total Average"},
		Rows:    [][]string{{"1", "Okafor, Ada", "78"}, {"2", `Bayo "BJ" Ade`, "64"}},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "S/N,Name,Total Average\n1,\"Okafor, Ada\",78\n2,\"Bayo \"\"BJ\"\" Ade\",64\n", string(out))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{Headers: []string{"a", "b"}, Rows: [][]string{{"1"}}})
	assert.Error(t, err)

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestCSVExporterOptions(t *testing.T) {
	data := Dataset{Headers: []string{"Name"}, Rows: [][]string{{"Adé"}}}

	out, err := NewCSVExporter(WithByteOrderMark(), WithCRLF()).Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}))
	assert.Equal(t, "Name\r\nAdé\r\n", string(out[3:]))
}

func TestPDFExporterRenders(t *testing.T) {
	data := Dataset{
		Title:   "JSS 1A 2025/2026",
		Headers: []string{"S/N", "Admission No", "Name", "Total Average", "Grade", "Position"},
		Rows:    [][]string{{"1", "ADM/001", "Ada Obi", "78", "B", "1"}},
		Footer:  []string{"Class average: 78.00"},
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths, nameIdx := columnWidths([]string{"S/N", "Name", "A", "B"})
	assert.Equal(t, 1, nameIdx)
	assert.Equal(t, nameColWidth, widths[1])
	total := 0.0
	for _, w := range widths {
		total += w
	}
	assert.InDelta(t, pageWidth, total, 0.001)
}
