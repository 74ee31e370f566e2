package analytics

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// InvoicesCSV renders invoices as CSV, one row per invoice.
func InvoicesCSV(invoices []models.Invoice) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"ID", "Invoice Number", "Date", "Vendor", "Status",
		"Items", "Subtotal", "Tax", "Total", "File Name", "Created",
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range invoices {
		inv := &invoices[i]
		row := []string{
			inv.ID,
			inv.InvoiceNumber,
			inv.Date,
			inv.VendorName,
			string(inv.Status),
			strconv.Itoa(len(inv.LineItems)),
			inv.Subtotal.StringFixed(2),
			inv.Tax.StringFixed(2),
			inv.Total.StringFixed(2),
			inv.FileName,
			inv.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ReportFilename names an export made at now, like
// "invoices_2026-06-01.csv".
func ReportFilename(now time.Time) string {
	return fmt.Sprintf("invoices_%s.csv", now.Format("2006-01-02"))
}
