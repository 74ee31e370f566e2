package analytics

import (
	"errors"
	"fmt"

	"github.com/go-analyze/charts"

	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// ErrNoData is returned when there is nothing to chart.
var ErrNoData = errors.New("no invoices to chart")

// StatusChart renders the status breakdown as a PNG pie chart.
func StatusChart(m Metrics) ([]byte, error) {
	if m.TotalInvoices == 0 {
		return nil, ErrNoData
	}

	var values []float64
	var labels []string
	for _, status := range models.Statuses {
		n := m.StatusCounts[status]
		if n == 0 {
			continue
		}
		labels = append(labels, string(status))
		values = append(values, float64(n))
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{
			Text: fmt.Sprintf("Invoice Status - %d invoices", m.TotalInvoices),
		}),
		charts.LegendLabelsOptionFunc(labels),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}

// TrendChart renders daily revenue as a PNG line chart.
func TrendChart(m Metrics) ([]byte, error) {
	if len(m.Trend) == 0 {
		return nil, ErrNoData
	}

	values := make([]float64, 0, len(m.Trend))
	labels := make([]string, 0, len(m.Trend))
	for _, point := range m.Trend {
		values = append(values, point.Amount.InexactFloat64())
		labels = append(labels, point.Date)
	}

	p, err := charts.LineRender(
		[][]float64{values},
		charts.TitleOptionFunc(charts.TitleOption{
			Text: "Revenue Trend",
		}),
		charts.XAxisLabelsOptionFunc(labels),
		charts.LegendLabelsOptionFunc([]string{"Revenue"}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}
