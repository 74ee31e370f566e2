// Package remote stores invoices and profiles in Firestore under
// users/{uid}.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gitlab.com/yelinaung/invoice-dashboard/internal/invoices"
	"gitlab.com/yelinaung/invoice-dashboard/internal/logger"
	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// ErrNoUser is returned for operations without a user id.
var ErrNoUser = errors.New("user id is required")

// Connect creates a Firestore client. FIRESTORE_EMULATOR_HOST is honoured by
// the client library.
func Connect(ctx context.Context, projectID string) (*firestore.Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	logger.Log.Info().Str("project", projectID).Msg("Connected to Firestore")
	return client, nil
}

type lineItemDoc struct {
	Description string  `firestore:"description"`
	Quantity    int     `firestore:"quantity"`
	Price       float64 `firestore:"price"`
	Subtotal    float64 `firestore:"subtotal"`
}

type invoiceDoc struct {
	VendorName    string        `firestore:"vendorName"`
	InvoiceNumber string        `firestore:"invoiceNumber"`
	Date          string        `firestore:"date"`
	LineItems     []lineItemDoc `firestore:"lineItems"`
	Subtotal      float64       `firestore:"subtotal"`
	Tax           float64       `firestore:"tax"`
	Total         float64       `firestore:"total"`
	Status        string        `firestore:"status"`
	FileName      string        `firestore:"fileName"`
	FileURL       string        `firestore:"fileURL"`
	CreatedAt     time.Time     `firestore:"createdAt"`
	UpdatedAt     time.Time     `firestore:"updatedAt"`
	UserID        string        `firestore:"userId"`
}

func toDoc(inv models.Invoice) invoiceDoc {
	items := make([]lineItemDoc, 0, len(inv.LineItems))
	for _, item := range inv.LineItems {
		items = append(items, lineItemDoc{
			Description: item.Description,
			Quantity:    item.Quantity,
			Price:       item.Price.InexactFloat64(),
			Subtotal:    item.Subtotal.InexactFloat64(),
		})
	}
	return invoiceDoc{
		VendorName:    inv.VendorName,
		InvoiceNumber: inv.InvoiceNumber,
		Date:          inv.Date,
		LineItems:     items,
		Subtotal:      inv.Subtotal.InexactFloat64(),
		Tax:           inv.Tax.InexactFloat64(),
		Total:         inv.Total.InexactFloat64(),
		Status:        string(inv.Status),
		FileName:      inv.FileName,
		FileURL:       inv.FileURL,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
		UserID:        inv.UserID,
	}
}

func fromDoc(id string, d invoiceDoc) models.Invoice {
	items := make([]models.LineItem, 0, len(d.LineItems))
	for _, item := range d.LineItems {
		items = append(items, models.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			Price:       decimal.NewFromFloat(item.Price),
			Subtotal:    decimal.NewFromFloat(item.Subtotal),
		})
	}
	return models.Invoice{
		ID:            id,
		VendorName:    d.VendorName,
		InvoiceNumber: d.InvoiceNumber,
		Date:          d.Date,
		LineItems:     items,
		Subtotal:      decimal.NewFromFloat(d.Subtotal),
		Tax:           decimal.NewFromFloat(d.Tax),
		Total:         decimal.NewFromFloat(d.Total),
		Status:        models.InvoiceStatus(d.Status),
		FileName:      d.FileName,
		FileURL:       d.FileURL,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		UserID:        d.UserID,
	}
}

// InvoiceBackend keeps invoices in users/{uid}/invoices.
type InvoiceBackend struct {
	client *firestore.Client
}

var _ invoices.LiveBackend = (*InvoiceBackend)(nil)

// NewInvoiceBackend creates an InvoiceBackend.
func NewInvoiceBackend(client *firestore.Client) *InvoiceBackend {
	return &InvoiceBackend{client: client}
}

// Name implements invoices.Backend.
func (b *InvoiceBackend) Name() string { return invoices.SourceRemote }

func (b *InvoiceBackend) collection(userID string) *firestore.CollectionRef {
	return b.client.Collection("users").Doc(userID).Collection("invoices")
}

func (b *InvoiceBackend) ordered(userID string) firestore.Query {
	return b.collection(userID).OrderBy("createdAt", firestore.Desc)
}

// Query implements invoices.Backend.
func (b *InvoiceBackend) Query(ctx context.Context, userID string) ([]models.Invoice, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	docs, err := b.ordered(userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	return decodeAll(docs), nil
}

// Append implements invoices.Backend. The id is assigned by Firestore.
func (b *InvoiceBackend) Append(ctx context.Context, userID string, inv models.Invoice) (string, error) {
	if userID == "" {
		return "", ErrNoUser
	}
	ref, _, err := b.collection(userID).Add(ctx, toDoc(inv))
	if err != nil {
		return "", fmt.Errorf("failed to add invoice: %w", err)
	}
	return ref.ID, nil
}

// Subscribe implements invoices.LiveBackend with a query snapshot listener.
func (b *InvoiceBackend) Subscribe(
	ctx context.Context,
	userID string,
	onSnapshot func([]models.Invoice),
	onError func(error),
) (func(), error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	ctx, cancel := context.WithCancel(ctx)
	iter := b.ordered(userID).Snapshots(ctx)

	go func() {
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
					return
				}
				onError(fmt.Errorf("invoice listener failed: %w", err))
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				onError(fmt.Errorf("failed to read invoice snapshot: %w", err))
				return
			}
			onSnapshot(decodeAll(docs))
		}
	}()

	return cancel, nil
}

func decodeAll(docs []*firestore.DocumentSnapshot) []models.Invoice {
	list := make([]models.Invoice, 0, len(docs))
	for _, doc := range docs {
		var d invoiceDoc
		if err := doc.DataTo(&d); err != nil {
			logger.Log.Warn().Err(err).Str("doc", doc.Ref.ID).Msg("Skipping undecodable invoice")
			continue
		}
		list = append(list, fromDoc(doc.Ref.ID, d))
	}
	return list
}
