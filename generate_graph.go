//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"gitlab.com/yelinaung/invoice-dashboard/internal/analytics"
	"gitlab.com/yelinaung/invoice-dashboard/internal/extract"
	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

func main() {
	gen := extract.NewGenerator(rand.NewPCG(2026, 1))
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	list := make([]models.Invoice, 0, 20)
	for i := range 20 {
		inv := gen.Generate(fmt.Sprintf("sample_%02d.pdf", i+1))
		inv.ID = fmt.Sprintf("sample-%02d", i+1)
		inv.CreatedAt = start.AddDate(0, 0, i/2)
		list = append(list, inv)
	}

	m := analytics.Compute(list, analytics.Range{})

	charts := []struct {
		file   string
		render func(analytics.Metrics) ([]byte, error)
	}{
		{"status.png", analytics.StatusChart},
		{"trend.png", analytics.TrendChart},
	}

	for _, c := range charts {
		data, err := c.render(m)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(c.file, data, 0600); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Created %s\n", c.file)
	}
}
