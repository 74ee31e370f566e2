// Package invoices keeps each user's invoice list in sync with a remote
// document store and falls back to local durable storage when the remote
// store is absent or failing.
package invoices

import (
	"cmp"
	"context"
	"slices"

	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// Backend names.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// Backend stores invoices in a per-user collection.
type Backend interface {
	Name() string
	// Query returns the user's invoices, newest first.
	Query(ctx context.Context, userID string) ([]models.Invoice, error)
	// Append stores inv and returns the identifier assigned to it.
	Append(ctx context.Context, userID string, inv models.Invoice) (string, error)
}

// LiveBackend is a Backend that can push the user's full list whenever it
// changes.
type LiveBackend interface {
	Backend
	// Subscribe delivers the full list, newest first, to onSnapshot on every
	// change until cancel is called or ctx ends. A failure ends the
	// subscription and is reported once to onError.
	Subscribe(
		ctx context.Context,
		userID string,
		onSnapshot func([]models.Invoice),
		onError func(error),
	) (cancel func(), err error)
}

// SortNewestFirst orders invoices by creation time, newest first. Ties are
// broken by identifier, descending, so the order is total.
func SortNewestFirst(list []models.Invoice) {
	slices.SortStableFunc(list, func(a, b models.Invoice) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// Merge combines lists into one newest-first list without duplicate
// identifiers. When an identifier repeats, the entry from the earliest list
// wins.
func Merge(lists ...[]models.Invoice) []models.Invoice {
	seen := make(map[string]struct{})
	var out []models.Invoice
	for _, list := range lists {
		for _, inv := range list {
			if inv.ID != "" {
				if _, dup := seen[inv.ID]; dup {
					continue
				}
				seen[inv.ID] = struct{}{}
			}
			out = append(out, inv)
		}
	}
	SortNewestFirst(out)
	return out
}
