// Package theme keeps the light/dark preference of one client.
package theme

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gitlab.com/yelinaung/invoice-dashboard/internal/localstore"
	"gitlab.com/yelinaung/invoice-dashboard/internal/logger"
)

// Persisted values.
const (
	Dark  = "dark"
	Light = "light"
)

// Theme is the light/dark preference. Every change is persisted and passed
// to the apply hook.
type Theme struct {
	storage localstore.Storage
	apply   func(dark bool)

	mu   sync.Mutex
	dark bool
}

// New creates a Theme. apply may be nil.
func New(storage localstore.Storage, apply func(dark bool)) *Theme {
	if apply == nil {
		apply = func(bool) {}
	}
	return &Theme{storage: storage, apply: apply}
}

// Init reads the persisted preference. Anything but "dark", including an
// unreadable store, means light.
func (t *Theme) Init(ctx context.Context) error {
	dark := false
	v, err := t.storage.GetItem(ctx, localstore.ThemeKey)
	switch {
	case err == nil:
		dark = v == Dark
	case errors.Is(err, localstore.ErrNotFound):
	default:
		logger.Log.Warn().Err(err).Msg("Failed to read theme, defaulting to light")
	}
	return t.SetDark(ctx, dark)
}

// IsDark reports the current preference.
func (t *Theme) IsDark() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dark
}

// Name returns "dark" or "light".
func (t *Theme) Name() string {
	if t.IsDark() {
		return Dark
	}
	return Light
}

// Toggle flips the preference and returns the new value.
func (t *Theme) Toggle(ctx context.Context) (bool, error) {
	t.mu.Lock()
	dark := !t.dark
	t.mu.Unlock()
	return dark, t.SetDark(ctx, dark)
}

// SetDark applies and persists the preference. The in-memory value changes
// even if persisting fails.
func (t *Theme) SetDark(ctx context.Context, dark bool) error {
	t.mu.Lock()
	t.dark = dark
	t.mu.Unlock()

	t.apply(dark)

	value := Light
	if dark {
		value = Dark
	}
	if err := t.storage.SetItem(ctx, localstore.ThemeKey, value); err != nil {
		return fmt.Errorf("failed to persist theme: %w", err)
	}
	return nil
}
