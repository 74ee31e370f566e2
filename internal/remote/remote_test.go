package remote

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// testClient connects to the Firestore emulator. Skips unless
// FIRESTORE_EMULATOR_HOST is set.
func testClient(t *testing.T) *firestore.Client {
	t.Helper()

	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set, skipping integration test")
	}

	client, err := Connect(context.Background(), "invoice-dashboard-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func sampleInvoice(created time.Time) models.Invoice {
	inv := models.Invoice{
		VendorName:    "Cyberdyne Systems",
		InvoiceNumber: "INV-12345",
		Date:          "2026-05-30",
		LineItems: []models.LineItem{
			models.NewLineItem("Carbonite Plating", 2, decimal.NewFromInt(4500)),
		},
		Status:    models.StatusOverdue,
		FileName:  "scan.pdf",
		CreatedAt: created,
		UpdatedAt: created,
		UserID:    "u1",
	}
	inv.Recalculate()
	return inv
}

func TestDocConversion(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 5, 30, 9, 0, 0, 0, time.UTC)
	in := sampleInvoice(created)

	out := fromDoc("doc-1", toDoc(in))
	require.Equal(t, "doc-1", out.ID)
	require.Equal(t, in.VendorName, out.VendorName)
	require.Equal(t, in.Status, out.Status)
	require.True(t, in.Total.Equal(out.Total))
	require.True(t, decimal.NewFromInt(10350).Equal(out.Total))
	require.Len(t, out.LineItems, 1)
	require.Equal(t, 2, out.LineItems[0].Quantity)
	require.True(t, created.Equal(out.CreatedAt))
}

func TestInvoiceBackend(t *testing.T) {
	client := testClient(t)
	backend := NewInvoiceBackend(client)
	ctx := context.Background()
	uid := uuid.NewString()
	base := time.Date(2026, 5, 30, 9, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	var latest []models.Invoice
	cancel, err := backend.Subscribe(ctx, uid, func(list []models.Invoice) {
		mu.Lock()
		latest = list
		mu.Unlock()
	}, func(err error) {
		t.Errorf("unexpected listener error: %v", err)
	})
	require.NoError(t, err)
	defer cancel()

	first, err := backend.Append(ctx, uid, sampleInvoice(base))
	require.NoError(t, err)
	second, err := backend.Append(ctx, uid, sampleInvoice(base.Add(time.Minute)))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 2 && latest[0].ID == second && latest[1].ID == first
	}, 5*time.Second, 50*time.Millisecond)

	list, err := backend.Query(ctx, uid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second, list[0].ID)
}

func TestInvoiceBackend_RequiresUser(t *testing.T) {
	t.Parallel()

	b := NewInvoiceBackend(nil)
	_, err := b.Append(context.Background(), "", models.Invoice{})
	require.ErrorIs(t, err, ErrNoUser)
	_, err = b.Subscribe(context.Background(), "", nil, nil)
	require.ErrorIs(t, err, ErrNoUser)
}

func TestProfileStore(t *testing.T) {
	client := testClient(t)
	store := NewProfileStore(client)
	ctx := context.Background()
	uid := uuid.NewString()

	p, err := store.Get(ctx, uid)
	require.NoError(t, err)
	require.Nil(t, p)

	now := time.Date(2026, 5, 30, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, uid, models.Profile{
		Name: "Ada", Email: "ada@example.com", CreatedAt: now, UpdatedAt: now,
	}))

	p, err = store.Get(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, "Ada", p.Name)
	require.Equal(t, "ada@example.com", p.Email)
	require.True(t, now.Equal(p.CreatedAt))
}
