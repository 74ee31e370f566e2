// Package document renders a stored invoice as a printable PDF.
package document

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// Column widths of the line item table, in mm.
var columns = []struct {
	title string
	width float64
	align string
}{
	{"Description", 90, "L"},
	{"Qty", 20, "R"},
	{"Price", 35, "R"},
	{"Subtotal", 35, "R"},
}

// RenderPDF lays out inv on a single A4 page.
func RenderPDF(inv models.Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, "INVOICE", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	field := func(label, value string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(40, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 7, tr(value), "", 1, "L", false, 0, "")
	}
	field("Vendor", inv.VendorName)
	field("Invoice Number", inv.InvoiceNumber)
	field("Date", inv.Date)
	field("Status", string(inv.Status))
	if inv.FileName != "" {
		field("Source File", inv.FileName)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range columns {
		pdf.CellFormat(col.width, 8, col.title, "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 11)
	for _, item := range inv.LineItems {
		cells := []string{
			tr(item.Description),
			strconv.Itoa(item.Quantity),
			item.Price.StringFixed(2),
			item.Subtotal.StringFixed(2),
		}
		for i, col := range columns {
			pdf.CellFormat(col.width, 7, cells[i], "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	labelWidth := columns[0].width + columns[1].width + columns[2].width
	total := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 11)
		pdf.CellFormat(labelWidth, 7, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(columns[3].width, 7, value, "", 1, "R", false, 0, "")
	}
	total("Subtotal", inv.Subtotal.StringFixed(2), false)
	total(fmt.Sprintf("Tax (%s%%)", models.TaxRate.Shift(2).String()), inv.Tax.StringFixed(2), false)
	total("Total", inv.Total.StringFixed(2), true)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename names the PDF for inv.
func Filename(inv models.Invoice) string {
	name := inv.InvoiceNumber
	if name == "" {
		name = inv.ID
	}
	return "invoice_" + name + ".pdf"
}
