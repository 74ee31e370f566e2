package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/invoice-dashboard/internal/database"
	"gitlab.com/yelinaung/invoice-dashboard/internal/localstore"
)

// KeyValueRepository implements localstore.Storage on the kv_items table.
type KeyValueRepository struct {
	db database.PGXDB
}

var _ localstore.Storage = (*KeyValueRepository)(nil)

// NewKeyValueRepository creates a new KeyValueRepository.
func NewKeyValueRepository(db database.PGXDB) *KeyValueRepository {
	return &KeyValueRepository{db: db}
}

// GetItem returns the value stored under key.
func (r *KeyValueRepository) GetItem(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM kv_items WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", localstore.ErrNotFound
		}
		return "", fmt.Errorf("failed to get item: %w", err)
	}
	return value, nil
}

// SetItem stores value under key, replacing any previous value.
func (r *KeyValueRepository) SetItem(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO kv_items (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set item: %w", err)
	}
	return nil
}

// RemoveItem deletes key.
func (r *KeyValueRepository) RemoveItem(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM kv_items WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}
