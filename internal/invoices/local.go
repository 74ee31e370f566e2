package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gitlab.com/yelinaung/invoice-dashboard/internal/localstore"
	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// LocalBackend keeps each user's invoices as one JSON array under
// localstore.InvoicesKey(userID).
type LocalBackend struct {
	storage localstore.Storage
	now     func() time.Time

	mu sync.Mutex
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend creates a LocalBackend on top of storage.
func NewLocalBackend(storage localstore.Storage) *LocalBackend {
	return &LocalBackend{storage: storage, now: time.Now}
}

// Name implements Backend.
func (b *LocalBackend) Name() string { return SourceLocal }

// Query implements Backend.
func (b *LocalBackend) Query(ctx context.Context, userID string) ([]models.Invoice, error) {
	list, err := b.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(list)
	return list, nil
}

// Append implements Backend. The identifier is the current Unix time in
// milliseconds, bumped past any numeric identifier already in the list.
func (b *LocalBackend) Append(ctx context.Context, userID string, inv models.Invoice) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := b.load(ctx, userID)
	if err != nil {
		return "", err
	}

	inv.ID = nextLocalID(b.now(), list)
	list = append([]models.Invoice{inv}, list...)
	SortNewestFirst(list)

	raw, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode invoices: %w", err)
	}
	if err := b.storage.SetItem(ctx, localstore.InvoicesKey(userID), string(raw)); err != nil {
		return "", fmt.Errorf("failed to persist invoices: %w", err)
	}
	return inv.ID, nil
}

func (b *LocalBackend) load(ctx context.Context, userID string) ([]models.Invoice, error) {
	raw, err := b.storage.GetItem(ctx, localstore.InvoicesKey(userID))
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return []models.Invoice{}, nil
		}
		return nil, fmt.Errorf("failed to read invoices: %w", err)
	}
	if raw == "" {
		return []models.Invoice{}, nil
	}

	var list []models.Invoice
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("failed to decode invoices: %w", err)
	}
	if list == nil {
		list = []models.Invoice{}
	}
	return list, nil
}

func nextLocalID(now time.Time, existing []models.Invoice) string {
	id := now.UnixMilli()
	for _, inv := range existing {
		if n, err := strconv.ParseInt(inv.ID, 10, 64); err == nil && n >= id {
			id = n + 1
		}
	}
	return strconv.FormatInt(id, 10)
}
