package extract

import (
	"math/rand/v2"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

	t.Run("same seed gives the same draft", func(t *testing.T) {
		t.Parallel()
		a := NewGenerator(rand.NewPCG(1, 2)).WithClock(func() time.Time { return now }).Generate("scan.pdf")
		b := NewGenerator(rand.NewPCG(1, 2)).WithClock(func() time.Time { return now }).Generate("scan.pdf")
		require.Equal(t, a, b)
	})

	t.Run("preview url encodes the file name", func(t *testing.T) {
		t.Parallel()
		inv := NewGenerator(rand.NewPCG(3, 4)).Generate("march bill.png")
		require.Equal(t, "march bill.png", inv.FileName)
		require.Equal(t,
			"https://placehold.co/800x1100/FFFFFF/000000?text=Invoice%0Amarch%20bill.png",
			inv.FileURL)
	})

	t.Run("preview url keeps query delimiters in the text", func(t *testing.T) {
		t.Parallel()
		name := "Q1 & Q2=final+v2#3.pdf"
		u, err := url.Parse(PreviewURL(name))
		require.NoError(t, err)
		require.Equal(t, "Invoice\n"+name, u.Query().Get("text"))
		require.Len(t, u.Query(), 1)
		require.NotContains(t, u.RawQuery, "+")
	})

	t.Run("drafts are not stamped", func(t *testing.T) {
		t.Parallel()
		inv := Default().Generate("x.png")
		require.Empty(t, inv.ID)
		require.Empty(t, inv.UserID)
		require.True(t, inv.CreatedAt.IsZero())
		require.NoError(t, inv.Validate())
	})
}

func TestGenerateProperties(t *testing.T) {
	t.Parallel()

	rate := decimal.RequireFromString("1.15")

	rapid.Check(t, func(t *rapid.T) {
		seed1 := rapid.Uint64().Draw(t, "seed1")
		seed2 := rapid.Uint64().Draw(t, "seed2")
		name := rapid.StringMatching(`[a-zA-Z0-9 _.-]{0,40}`).Draw(t, "name")
		now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

		inv := NewGenerator(rand.NewPCG(seed1, seed2)).
			WithClock(func() time.Time { return now }).
			Generate(name)

		sum := decimal.Zero
		for _, item := range inv.LineItems {
			if item.Quantity < 1 || item.Quantity > 5 {
				t.Fatalf("quantity %d out of range", item.Quantity)
			}
			if !item.Subtotal.Equal(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))) {
				t.Fatalf("line subtotal %s != %d x %s", item.Subtotal, item.Quantity, item.Price)
			}
			sum = sum.Add(item.Subtotal)
		}
		if n := len(inv.LineItems); n < 1 || n > 4 {
			t.Fatalf("%d line items", n)
		}
		if !inv.Subtotal.Equal(sum) {
			t.Fatalf("subtotal %s != sum %s", inv.Subtotal, sum)
		}
		if !inv.Total.Equal(inv.Subtotal.Mul(rate)) {
			t.Fatalf("total %s != subtotal %s x 1.15", inv.Total, inv.Subtotal)
		}
		if !slices.Contains(Vendors, inv.VendorName) {
			t.Fatalf("unknown vendor %q", inv.VendorName)
		}
		if !inv.Status.Valid() {
			t.Fatalf("invalid status %q", inv.Status)
		}
		if !strings.HasPrefix(inv.InvoiceNumber, "INV-") || len(inv.InvoiceNumber) != 9 {
			t.Fatalf("bad invoice number %q", inv.InvoiceNumber)
		}

		date, err := time.Parse(time.DateOnly, inv.Date)
		if err != nil {
			t.Fatalf("bad date %q: %v", inv.Date, err)
		}
		age := now.Sub(date)
		if age < 0 || age > 29*24*time.Hour {
			t.Fatalf("date %s outside the last 30 days", inv.Date)
		}
	})
}

func TestGenerate_StatusesCovered(t *testing.T) {
	t.Parallel()

	g := NewGenerator(rand.NewPCG(7, 7))
	seen := make(map[models.InvoiceStatus]bool)
	for range 200 {
		seen[g.Generate("a.pdf").Status] = true
	}
	require.Len(t, seen, len(models.Statuses))
}

func TestValidateUpload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		file        string
		contentType string
		wantErr     bool
	}{
		{name: "png", file: "a.png", contentType: "image/png"},
		{name: "jpg", file: "a.jpg", contentType: "image/jpeg"},
		{name: "jpeg upper case", file: "A.JPEG", contentType: "image/jpeg"},
		{name: "pdf with params", file: "a.pdf", contentType: "application/pdf; charset=binary"},
		{name: "docx", file: "a.docx", contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{name: "no content type", file: "a.pdf"},
		{name: "octet stream", file: "a.png", contentType: "application/octet-stream"},
		{name: "gif", file: "a.gif", contentType: "image/gif", wantErr: true},
		{name: "doc", file: "a.doc", wantErr: true},
		{name: "no extension", file: "invoice", wantErr: true},
		{name: "mismatched type", file: "a.pdf", contentType: "image/png", wantErr: true},
		{name: "garbage type", file: "a.pdf", contentType: ";;", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateUpload(tt.file, tt.contentType)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
		})
	}
}

func FuzzValidateUpload(f *testing.F) {
	f.Add("invoice.pdf", "application/pdf")
	f.Add("scan.JPG", "")
	f.Add("../../etc/passwd", "text/plain")
	f.Add("a.docx", "application/octet-stream")

	f.Fuzz(func(t *testing.T, name, contentType string) {
		err := ValidateUpload(name, contentType)
		if err == nil {
			ext := strings.ToLower(name[strings.LastIndex(name, "."):])
			ext = strings.TrimSpace(ext)
			if _, ok := AcceptedTypes[ext]; !ok {
				t.Fatalf("accepted %q with extension %q", name, ext)
			}
		}
	})
}
