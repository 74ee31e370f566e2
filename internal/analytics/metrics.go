// Package analytics summarises a user's invoices: metrics, search, CSV
// export and charts.
package analytics

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// Range limits invoices by creation time. Both ends are inclusive and a
// zero end is open.
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls within r.
func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// TrendPoint is the revenue of one day.
type TrendPoint struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// Metrics summarises the invoices within a Range.
type Metrics struct {
	TotalInvoices int                          `json:"totalInvoices"`
	TotalRevenue  decimal.Decimal              `json:"totalRevenue"`
	StatusCounts  map[models.InvoiceStatus]int `json:"statusCounts"`
	Overdue       []models.Invoice             `json:"overdueInvoices"`
	AverageAmount decimal.Decimal              `json:"averageAmount"`
	Trend         []TrendPoint                 `json:"trend"`
}

// Compute builds Metrics from the invoices created within r. Revenue sums
// invoice totals; the trend is daily revenue, oldest day first.
func Compute(invoices []models.Invoice, r Range) Metrics {
	m := Metrics{
		TotalRevenue:  decimal.Zero,
		AverageAmount: decimal.Zero,
		StatusCounts:  make(map[models.InvoiceStatus]int, len(models.Statuses)),
		Overdue:       []models.Invoice{},
		Trend:         []TrendPoint{},
	}
	for _, s := range models.Statuses {
		m.StatusCounts[s] = 0
	}

	daily := make(map[string]decimal.Decimal)
	for _, inv := range invoices {
		if !r.Contains(inv.CreatedAt) {
			continue
		}
		m.TotalInvoices++
		m.TotalRevenue = m.TotalRevenue.Add(inv.Total)
		m.StatusCounts[inv.Status]++
		if inv.Status == models.StatusOverdue {
			m.Overdue = append(m.Overdue, inv)
		}

		day := inv.CreatedAt.UTC().Format(time.DateOnly)
		daily[day] = daily[day].Add(inv.Total)
	}

	if m.TotalInvoices > 0 {
		m.AverageAmount = m.TotalRevenue.DivRound(decimal.NewFromInt(int64(m.TotalInvoices)), 2)
	}

	for day, amount := range daily {
		m.Trend = append(m.Trend, TrendPoint{Date: day, Amount: amount})
	}
	slices.SortFunc(m.Trend, func(a, b TrendPoint) int { return cmp.Compare(a.Date, b.Date) })

	return m
}

// Search filters invoices by a case-insensitive query on vendor, invoice
// number and file name, and by status when one is given. Order is kept.
func Search(invoices []models.Invoice, query string, status models.InvoiceStatus) []models.Invoice {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if status != "" && inv.Status != status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(inv.VendorName), query) &&
			!strings.Contains(strings.ToLower(inv.InvoiceNumber), query) &&
			!strings.Contains(strings.ToLower(inv.FileName), query) {
			continue
		}
		out = append(out, inv)
	}
	return out
}
