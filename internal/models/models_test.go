package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestInvoiceStatus(t *testing.T) {
	t.Parallel()

	t.Run("known statuses are valid", func(t *testing.T) {
		t.Parallel()
		for _, s := range Statuses {
			require.True(t, s.Valid())
		}
		require.False(t, InvoiceStatus("Draft").Valid())
		require.False(t, InvoiceStatus("").Valid())
	})

	t.Run("parses case-insensitively", func(t *testing.T) {
		t.Parallel()
		s, err := ParseStatus(" overdue ")
		require.NoError(t, err)
		require.Equal(t, StatusOverdue, s)

		_, err = ParseStatus("void")
		require.Error(t, err)
	})
}

func TestNewLineItem(t *testing.T) {
	t.Parallel()

	item := NewLineItem("Quantum Core", 3, decimal.NewFromInt(2500))
	require.Equal(t, "Quantum Core", item.Description)
	require.True(t, decimal.NewFromInt(7500).Equal(item.Subtotal))
}

func TestInvoice_Recalculate(t *testing.T) {
	t.Parallel()

	t.Run("computes subtotal tax and total from line items", func(t *testing.T) {
		t.Parallel()
		inv := Invoice{
			LineItems: []LineItem{
				{Description: "Plasma Injector", Quantity: 2, Price: decimal.NewFromInt(1200)},
				{Description: "Hyperdrive Coolant", Quantity: 1, Price: decimal.NewFromInt(350)},
			},
		}
		inv.Recalculate()

		require.True(t, decimal.NewFromInt(2400).Equal(inv.LineItems[0].Subtotal))
		require.True(t, decimal.NewFromInt(2750).Equal(inv.Subtotal))
		require.True(t, decimal.RequireFromString("412.5").Equal(inv.Tax))
		require.True(t, decimal.RequireFromString("3162.5").Equal(inv.Total))
	})

	t.Run("keeps totals without line items", func(t *testing.T) {
		t.Parallel()
		inv := Invoice{Total: decimal.NewFromInt(99)}
		inv.Recalculate()

		require.True(t, decimal.NewFromInt(99).Equal(inv.Total))
		require.True(t, decimal.NewFromInt(99).Equal(inv.Subtotal))
	})
}

func TestInvoice_Validate(t *testing.T) {
	t.Parallel()

	valid := func() Invoice {
		return Invoice{
			VendorName: "Acme Corporation",
			LineItems:  []LineItem{NewLineItem("Nanobot Swarm", 1, decimal.NewFromInt(7800))},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Invoice)
		wantErr error
	}{
		{name: "valid invoice", mutate: func(*Invoice) {}},
		{name: "missing vendor", mutate: func(i *Invoice) { i.VendorName = "  " }, wantErr: ErrVendorRequired},
		{name: "no items and no amount", mutate: func(i *Invoice) { i.LineItems = nil }, wantErr: ErrAmountRequired},
		{name: "amount only", mutate: func(i *Invoice) { i.LineItems = nil; i.Total = decimal.NewFromInt(10) }},
		{name: "zero quantity", mutate: func(i *Invoice) { i.LineItems[0].Quantity = 0 }, wantErr: ErrInvalidQuantity},
		{name: "negative price", mutate: func(i *Invoice) { i.LineItems[0].Price = decimal.NewFromInt(-1) }, wantErr: ErrNegativePrice},
		{name: "unknown status", mutate: func(i *Invoice) { i.Status = "Void" }, wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inv := valid()
			tt.mutate(&inv)
			err := inv.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInvoice_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("accepts vendor and amount aliases", func(t *testing.T) {
		t.Parallel()
		var inv Invoice
		err := json.Unmarshal([]byte(`{"vendor":"Globex Corporation","amount":120.5}`), &inv)
		require.NoError(t, err)
		require.Equal(t, "Globex Corporation", inv.VendorName)
		require.True(t, decimal.RequireFromString("120.5").Equal(inv.Total))
	})

	t.Run("vendorName wins over vendor", func(t *testing.T) {
		t.Parallel()
		var inv Invoice
		err := json.Unmarshal([]byte(`{"vendorName":"Stark Industries","vendor":"Other"}`), &inv)
		require.NoError(t, err)
		require.Equal(t, "Stark Industries", inv.VendorName)
	})

	t.Run("reads the stored form", func(t *testing.T) {
		t.Parallel()
		created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		in := Invoice{
			ID:         "1772359200000",
			VendorName: "Wayne Enterprises",
			Status:     StatusPending,
			CreatedAt:  created,
			UserID:     "u1",
		}
		raw, err := json.Marshal(in)
		require.NoError(t, err)
		require.Contains(t, string(raw), `"createdAt":"2026-03-01T10:00:00Z"`)

		var out Invoice
		require.NoError(t, json.Unmarshal(raw, &out))
		require.Equal(t, in.ID, out.ID)
		require.True(t, created.Equal(out.CreatedAt))
		require.Equal(t, StatusPending, out.Status)
	})
}

func TestProfile_Merge(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("creates lazily", func(t *testing.T) {
		t.Parallel()
		name := "Ada"
		p := Profile{}.Merge(ProfileUpdate{Name: &name}, now)
		require.Equal(t, "Ada", p.Name)
		require.Equal(t, now, p.CreatedAt)
		require.Equal(t, now, p.UpdatedAt)
	})

	t.Run("keeps untouched fields", func(t *testing.T) {
		t.Parallel()
		bio := "Accounts payable"
		created := now.Add(-time.Hour)
		p := Profile{Name: "Ada", CreatedAt: created}.Merge(ProfileUpdate{Bio: &bio}, now)
		require.Equal(t, "Ada", p.Name)
		require.Equal(t, bio, p.Bio)
		require.Equal(t, created, p.CreatedAt)
	})

	t.Run("empty update", func(t *testing.T) {
		t.Parallel()
		require.True(t, ProfileUpdate{}.IsEmpty())
	})
}
