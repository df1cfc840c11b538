package export

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
)

const (
	landscapeColumns = 9
	minColumnWidth   = 10.0
)

// PDFExporter renders a Sheet as a printable table, switching to landscape
// when there are many subject columns.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ContentType of the rendered bytes.
func (e *PDFExporter) ContentType() string { return "application/pdf" }

// Extension used for stored files.
func (e *PDFExporter) Extension() string { return "pdf" }

// Render creates the PDF document.
func (e *PDFExporter) Render(sheet Sheet) ([]byte, error) {
	if err := sheet.validate(); err != nil {
		return nil, err
	}
	orientation := "P"
	if len(sheet.Headers) >= landscapeColumns {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	pageWidth, _ := pdf.GetPageSize()
	usable := pageWidth - 20

	if sheet.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, sheet.Title, "", 1, "C", false, 0, "")
	}
	if len(sheet.Meta) > 0 {
		pdf.SetFont("Arial", "", 9)
		for _, line := range sheet.Meta {
			pdf.CellFormat(0, 5, line, "", 1, "C", false, 0, "")
		}
	}
	pdf.Ln(4)

	widths := columnWidths(sheet, usable)
	header := func() {
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range sheet.Headers {
			pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	header()
	_, pageHeight := pdf.GetPageSize()
	for _, row := range sheet.Rows {
		if pdf.GetY()+6 > pageHeight-15 {
			pdf.AddPage()
			header()
		}
		for i, cell := range row {
			align := "C"
			if i == 1 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, cell, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(sheet.Summary) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 9)
		for _, line := range sheet.Summary {
			pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths shares the usable width in proportion to the longest cell of
// each column, with a floor so short columns stay legible.
func columnWidths(sheet Sheet, usable float64) []float64 {
	weights := make([]float64, len(sheet.Headers))
	for i, h := range sheet.Headers {
		weights[i] = float64(utf8.RuneCountInString(h))
	}
	for _, row := range sheet.Rows {
		for i, cell := range row {
			if n := float64(utf8.RuneCountInString(cell)); n > weights[i] {
				weights[i] = n
			}
		}
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	widths := make([]float64, len(weights))
	if total == 0 {
		for i := range widths {
			widths[i] = usable / float64(len(widths))
		}
		return widths
	}
	for i, w := range weights {
		widths[i] = w / total * usable
		if widths[i] < minColumnWidth {
			widths[i] = minColumnWidth
		}
	}
	return widths
}
