// Package models defines the domain entities for the invoice dashboard.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TaxRate is the flat tax applied to every invoice subtotal.
var TaxRate = decimal.RequireFromString("0.15")

// InvoiceStatus represents the payment status of an invoice.
type InvoiceStatus string

// Invoice statuses. No transitions between them are modelled.
const (
	StatusPaid    InvoiceStatus = "Paid"
	StatusPending InvoiceStatus = "Pending"
	StatusOverdue InvoiceStatus = "Overdue"
)

// Statuses lists every invoice status in display order.
var Statuses = []InvoiceStatus{StatusPaid, StatusPending, StatusOverdue}

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusPaid, StatusPending, StatusOverdue:
		return true
	}
	return false
}

// ParseStatus matches a status name case-insensitively.
func ParseStatus(s string) (InvoiceStatus, error) {
	for _, st := range Statuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown invoice status %q", s)
}

// Validation errors.
var (
	ErrVendorRequired  = errors.New("vendor name is required")
	ErrAmountRequired  = errors.New("line items or an amount are required")
	ErrInvalidQuantity = errors.New("line item quantity must be positive")
	ErrNegativePrice   = errors.New("line item price must not be negative")
	ErrInvalidStatus   = errors.New("invalid invoice status")
)

// LineItem is a single billed row on an invoice.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// NewLineItem creates a line item with its subtotal computed.
func NewLineItem(description string, quantity int, price decimal.Decimal) LineItem {
	return LineItem{
		Description: description,
		Quantity:    quantity,
		Price:       price,
		Subtotal:    price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Invoice is a single invoice record owned by one user.
type Invoice struct {
	ID            string          `json:"id"`
	VendorName    string          `json:"vendorName"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Date          string          `json:"date"`
	LineItems     []LineItem      `json:"lineItems"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Status        InvoiceStatus   `json:"status"`
	FileName      string          `json:"fileName"`
	FileURL       string          `json:"fileURL"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	UserID        string          `json:"userId"`
}

// UnmarshalJSON accepts "vendor" as an alias of "vendorName" and "amount"
// as an alias of "total" for partial records.
func (inv *Invoice) UnmarshalJSON(data []byte) error {
	type plain Invoice
	aux := struct {
		*plain
		Vendor string           `json:"vendor"`
		Amount *decimal.Decimal `json:"amount"`
	}{plain: (*plain)(inv)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if inv.VendorName == "" {
		inv.VendorName = aux.Vendor
	}
	if inv.Total.IsZero() && aux.Amount != nil {
		inv.Total = *aux.Amount
	}
	return nil
}

// Recalculate recomputes line subtotals, subtotal, tax and total from the
// line items. Invoices without line items keep their totals.
func (inv *Invoice) Recalculate() {
	if len(inv.LineItems) == 0 {
		if inv.Subtotal.IsZero() && !inv.Total.IsZero() {
			inv.Subtotal = inv.Total
		}
		return
	}

	subtotal := decimal.Zero
	for i := range inv.LineItems {
		item := &inv.LineItems[i]
		item.Subtotal = item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(item.Subtotal)
	}
	inv.Subtotal = subtotal
	inv.Tax = subtotal.Mul(TaxRate)
	inv.Total = subtotal.Add(inv.Tax)
}

// Validate checks the minimum shape of a record before it is stored.
func (inv *Invoice) Validate() error {
	if strings.TrimSpace(inv.VendorName) == "" {
		return ErrVendorRequired
	}
	if len(inv.LineItems) == 0 && !inv.Total.IsPositive() {
		return ErrAmountRequired
	}
	for _, item := range inv.LineItems {
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if item.Price.IsNegative() {
			return ErrNegativePrice
		}
	}
	if inv.Status != "" && !inv.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Profile is the optional per-user profile record.
type Profile struct {
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	Name *string `json:"name,omitempty"`
	Bio  *string `json:"bio,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Bio == nil
}

// Merge applies the update on top of p and stamps UpdatedAt. A zero
// CreatedAt is set to now, since the record is created lazily.
func (p Profile) Merge(u ProfileUpdate, now time.Time) Profile {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return p
}

// Account is a credential record held by the built-in identity provider.
type Account struct {
	UID          string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}
