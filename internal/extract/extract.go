// Package extract turns an uploaded document into an invoice draft. There is
// no real parsing: the draft is generated from fixed vendor and item
// catalogs.
package extract

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// Vendors is the vendor catalog.
var Vendors = []string{
	"Stark Industries",
	"Wayne Enterprises",
	"Cyberdyne Systems",
	"Acme Corporation",
	"Globex Corporation",
}

// CatalogItem is a billable item with a fixed unit price.
type CatalogItem struct {
	Description string
	Price       decimal.Decimal
}

// Items is the item catalog.
var Items = []CatalogItem{
	{Description: "Quantum Core", Price: decimal.NewFromInt(2500)},
	{Description: "Plasma Injector", Price: decimal.NewFromInt(1200)},
	{Description: "Hyperdrive Coolant", Price: decimal.NewFromInt(350)},
	{Description: "Nanobot Swarm", Price: decimal.NewFromInt(7800)},
	{Description: "Carbonite Plating", Price: decimal.NewFromInt(4500)},
}

const (
	previewBaseURL = "https://placehold.co/800x1100/FFFFFF/000000?text="
	maxAgeDays     = 30
	maxLineItems   = 4
	maxQuantity    = 5
)

// Generator produces invoice drafts. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a Generator drawing from src. A fixed source gives
// reproducible drafts.
func NewGenerator(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src), now: time.Now}
}

// Default creates a Generator with a random seed.
func Default() *Generator {
	return NewGenerator(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// WithClock sets the time the draft date is counted back from.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a draft for fileName. Totals follow models.TaxRate.
func (g *Generator) Generate(fileName string) models.Invoice {
	g.mu.Lock()
	defer g.mu.Unlock()

	vendor := Vendors[g.rng.IntN(len(Vendors))]
	number := fmt.Sprintf("INV-%d", 10000+g.rng.IntN(90000))
	date := g.now().UTC().AddDate(0, 0, -g.rng.IntN(maxAgeDays)).Format(time.DateOnly)

	count := 1 + g.rng.IntN(maxLineItems)
	items := make([]models.LineItem, 0, count)
	for range count {
		item := Items[g.rng.IntN(len(Items))]
		quantity := 1 + g.rng.IntN(maxQuantity)
		items = append(items, models.NewLineItem(item.Description, quantity, item.Price))
	}

	inv := models.Invoice{
		VendorName:    vendor,
		InvoiceNumber: number,
		Date:          date,
		LineItems:     items,
		Status:        models.Statuses[g.rng.IntN(len(models.Statuses))],
		FileName:      fileName,
		FileURL:       PreviewURL(fileName),
	}
	inv.Recalculate()
	return inv
}

// PreviewURL returns the placeholder image shown for an uploaded file. The
// text is a single query value, so spaces are sent as %20.
func PreviewURL(fileName string) string {
	return previewBaseURL + strings.ReplaceAll(url.QueryEscape("Invoice\n"+fileName), "+", "%20")
}

// ErrUnsupportedType is returned for uploads outside the accepted types.
var ErrUnsupportedType = errors.New("unsupported file type")

// AcceptedTypes maps accepted extensions to their MIME type.
var AcceptedTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ValidateUpload checks the file extension and, when given, the declared
// content type. A generic octet-stream type is accepted for any known
// extension.
func ValidateUpload(fileName, contentType string) error {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	want, ok := AcceptedTypes[ext]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if contentType == "" {
		return nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	if mediaType != want && mediaType != "application/octet-stream" {
		return fmt.Errorf("%w: %s does not match %s", ErrUnsupportedType, mediaType, ext)
	}
	return nil
}
