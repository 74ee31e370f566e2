package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/invoice-dashboard/internal/database"
	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// ProfileRepository stores profile records when no remote store is configured.
type ProfileRepository struct {
	db database.PGXDB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db database.PGXDB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get returns the profile for uid, or nil when none was created yet.
func (r *ProfileRepository) Get(ctx context.Context, uid string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.QueryRow(ctx, `
		SELECT name, email, bio, created_at, updated_at FROM profiles WHERE uid = $1
	`, uid).Scan(&p.Name, &p.Email, &p.Bio, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// Save writes the full profile record, creating it if needed.
func (r *ProfileRepository) Save(ctx context.Context, uid string, p models.Profile) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO profiles (uid, name, email, bio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uid) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			bio = EXCLUDED.bio,
			updated_at = EXCLUDED.updated_at
	`, uid, p.Name, p.Email, p.Bio, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
