package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gitlab.com/yelinaung/invoice-dashboard/internal/database"
	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// ErrAccountNotFound is returned when no account matches.
var ErrAccountNotFound = errors.New("account not found")

// ErrEmailTaken is returned when an account already uses the email.
var ErrEmailTaken = errors.New("email already in use")

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// AccountRepository handles identity account operations.
type AccountRepository struct {
	db database.PGXDB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db database.PGXDB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO accounts (uid, email, password_hash, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, account.UID, account.Email, account.PasswordHash, account.DisplayName,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByEmail retrieves an account by email, case-insensitively.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, `
		SELECT uid, email, password_hash, display_name, created_at, updated_at, last_login_at
		FROM accounts WHERE LOWER(email) = LOWER($1)
	`, email)
}

// GetByUID retrieves an account by uid.
func (r *AccountRepository) GetByUID(ctx context.Context, uid string) (*models.Account, error) {
	return r.getOne(ctx, `
		SELECT uid, email, password_hash, display_name, created_at, updated_at, last_login_at
		FROM accounts WHERE uid = $1
	`, uid)
}

func (r *AccountRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	var a models.Account
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&a.UID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.CreatedAt, &a.UpdatedAt, &a.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// UpdateDisplayName changes the display name of an account.
func (r *AccountRepository) UpdateDisplayName(ctx context.Context, uid, name string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET display_name = $2, updated_at = NOW() WHERE uid = $1
	`, uid, name)
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// TouchLogin records a successful sign-in.
func (r *AccountRepository) TouchLogin(ctx context.Context, uid string) error {
	_, err := r.db.Exec(ctx, `UPDATE accounts SET last_login_at = NOW() WHERE uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}
