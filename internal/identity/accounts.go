package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"gitlab.com/yelinaung/invoice-dashboard/internal/logger"
	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
	"gitlab.com/yelinaung/invoice-dashboard/internal/repository"
)

// Failed sign-in limits per email.
const (
	MaxFailedAttempts = 5
	FailureWindow     = 15 * time.Minute
)

// AccountStore persists accounts. repository.AccountRepository implements it.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByUID(ctx context.Context, uid string) (*models.Account, error)
	UpdateDisplayName(ctx context.Context, uid, name string) error
	TouchLogin(ctx context.Context, uid string) error
}

// AccountProvider is a Provider backed by stored accounts with bcrypt
// password hashes.
type AccountProvider struct {
	accounts AccountStore
	hashCost int
	now      func() time.Time

	mu       sync.Mutex
	failures map[string][]time.Time
}

var _ Provider = (*AccountProvider)(nil)

// AccountOption configures an AccountProvider.
type AccountOption func(*AccountProvider)

// WithHashCost sets the bcrypt cost.
func WithHashCost(cost int) AccountOption {
	return func(p *AccountProvider) { p.hashCost = cost }
}

// WithNow overrides the clock used by the attempt limiter.
func WithNow(now func() time.Time) AccountOption {
	return func(p *AccountProvider) { p.now = now }
}

// NewAccountProvider creates an AccountProvider.
func NewAccountProvider(accounts AccountStore, opts ...AccountOption) *AccountProvider {
	p := &AccountProvider{
		accounts: accounts,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		failures: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", newError(CodeInvalidEmail, err)
	}
	return strings.ToLower(email), nil
}

// SignIn checks the password for email.
func (p *AccountProvider) SignIn(ctx context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if p.limited(email) {
		logger.Log.Warn().Str("email", logger.SanitizeEmail(email)).Msg("Sign-in rate limited")
		return nil, newError(CodeTooManyRequests, nil)
	}

	account, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			p.recordFailure(email)
			return nil, newError(CodeUserNotFound, nil)
		}
		return nil, newError(CodeInternal, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		p.recordFailure(email)
		return nil, newError(CodeWrongPassword, nil)
	}

	p.clearFailures(email)
	if err := p.accounts.TouchLogin(ctx, account.UID); err != nil {
		logger.Log.Warn().Err(err).Str("user", logger.HashUserID(account.UID)).Msg("Failed to record login")
	}

	logger.Log.Info().Str("user", logger.HashUserID(account.UID)).Msg("User signed in")
	return userFromAccount(account), nil
}

// SignUp creates an account and signs it in.
func (p *AccountProvider) SignUp(ctx context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, newError(CodeWeakPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.hashCost)
	if err != nil {
		return nil, newError(CodeInternal, err)
	}

	account := &models.Account{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := p.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, newError(CodeEmailAlreadyInUse, nil)
		}
		return nil, newError(CodeInternal, err)
	}

	logger.Log.Info().Str("user", logger.HashUserID(account.UID)).Msg("Account created")
	return userFromAccount(account), nil
}

// SignOut ends the session for uid. Accounts hold no session state, so this
// only validates the call.
func (p *AccountProvider) SignOut(_ context.Context, uid string) error {
	if uid == "" {
		return ErrNoUser
	}
	logger.Log.Info().Str("user", logger.HashUserID(uid)).Msg("User signed out")
	return nil
}

// UpdateDisplayName changes the display name for uid.
func (p *AccountProvider) UpdateDisplayName(ctx context.Context, uid, name string) error {
	if uid == "" {
		return ErrNoUser
	}
	if err := p.accounts.UpdateDisplayName(ctx, uid, name); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return newError(CodeUserNotFound, nil)
		}
		return newError(CodeInternal, err)
	}
	return nil
}

func (p *AccountProvider) limited(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recentLocked(email)) >= MaxFailedAttempts
}

func (p *AccountProvider) recordFailure(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[email] = append(p.recentLocked(email), p.now())
}

func (p *AccountProvider) clearFailures(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, email)
}

// recentLocked drops failures older than the window and returns the rest.
func (p *AccountProvider) recentLocked(email string) []time.Time {
	cutoff := p.now().Add(-FailureWindow)
	kept := p.failures[email][:0]
	for _, at := range p.failures[email] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(p.failures, email)
		return nil
	}
	p.failures[email] = kept
	return kept
}

func userFromAccount(a *models.Account) *User {
	return &User{UID: a.UID, Email: a.Email, DisplayName: a.DisplayName}
}
