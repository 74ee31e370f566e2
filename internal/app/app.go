// Package app composes the per-client state objects: theme, session,
// invoice store and toast.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"gitlab.com/yelinaung/invoice-dashboard/internal/extract"
	"gitlab.com/yelinaung/invoice-dashboard/internal/identity"
	"gitlab.com/yelinaung/invoice-dashboard/internal/invoices"
	"gitlab.com/yelinaung/invoice-dashboard/internal/localstore"
	"gitlab.com/yelinaung/invoice-dashboard/internal/logger"
	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
	"gitlab.com/yelinaung/invoice-dashboard/internal/session"
	"gitlab.com/yelinaung/invoice-dashboard/internal/theme"
	"gitlab.com/yelinaung/invoice-dashboard/internal/toast"
)

// Toast messages for the upload flow.
const (
	MsgInvoiceSaved = "Invoice saved successfully!"
	MsgSaveFailed   = "Could not save invoice"
)

// ErrNoDraft is reported when there is no extracted invoice to save.
var ErrNoDraft = errors.New("no extracted invoice to save")

// Deps are the services shared by every Root. Remote and Provider may be
// nil.
type Deps struct {
	// Storage is the client's local storage, already scoped to the client.
	Storage       localstore.Storage
	Remote        invoices.LiveBackend
	Policy        invoices.FallbackPolicy
	Provider      identity.Provider
	Profiles      session.ProfileStore
	Extractor     *extract.Generator
	ToastDuration time.Duration
}

// Root is the state of one browser client.
type Root struct {
	ID       string
	Theme    *theme.Theme
	Session  *session.Manager
	Invoices *invoices.Store
	Toast    *toast.Notifier

	extractor *extract.Generator

	mu          sync.Mutex
	draft       *models.Invoice
	unsubscribe func()
	lastSeen    time.Time
	closed      bool
}

// New creates a Root. Call Init before use and Close when done.
func New(id string, deps Deps) *Root {
	extractor := deps.Extractor
	if extractor == nil {
		extractor = extract.Default()
	}
	return &Root{
		ID:        id,
		Theme:     theme.New(deps.Storage, nil),
		Session:   session.NewManager(deps.Provider, deps.Profiles),
		Invoices:  invoices.NewStore(deps.Remote, invoices.NewLocalBackend(deps.Storage), invoices.WithFallbackPolicy(deps.Policy)),
		Toast:     toast.New(deps.ToastDuration),
		extractor: extractor,
		lastSeen:  time.Now(),
	}
}

// Init loads the theme and starts the session. Every session change points
// the invoice store at the new user.
func (r *Root) Init(ctx context.Context) {
	if err := r.Theme.Init(ctx); err != nil {
		logger.Log.Warn().Err(err).Str("client", logger.HashClientID(r.ID)).Msg("Failed to persist theme")
	}

	unsubscribe := r.Session.OnChange(func(u *identity.User) {
		uid := ""
		if u != nil {
			uid = u.UID
		}
		r.Invoices.Watch(context.Background(), uid)
	})

	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()

	r.Session.Init(ctx)
}

// Close releases subscriptions and timers. It is safe to call twice.
func (r *Root) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsubscribe := r.unsubscribe
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	r.Invoices.Close()
	r.Toast.Close()
	logger.Log.Debug().Str("client", logger.HashClientID(r.ID)).Msg("Client closed")
}

// Touch records activity at now.
func (r *Root) Touch(now time.Time) {
	r.mu.Lock()
	r.lastSeen = now
	r.mu.Unlock()
}

// LastSeen returns the time of the last recorded activity.
func (r *Root) LastSeen() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen
}

// Extract builds a draft invoice for an uploaded file and keeps it until it
// is confirmed or replaced.
func (r *Root) Extract(fileName string) models.Invoice {
	draft := r.extractor.Generate(fileName)
	r.mu.Lock()
	r.draft = &draft
	r.mu.Unlock()
	return draft
}

// Draft returns the pending draft, if any.
func (r *Root) Draft() (models.Invoice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.draft == nil {
		return models.Invoice{}, false
	}
	return *r.draft, true
}

// ConfirmDraft saves the pending draft and reports the outcome as a toast.
// The draft is kept when saving fails.
func (r *Root) ConfirmDraft(ctx context.Context) invoices.Result {
	draft, ok := r.Draft()
	if !ok {
		return invoices.Result{Error: ErrNoDraft.Error(), Err: ErrNoDraft}
	}

	res := r.Invoices.AddInvoice(ctx, draft)
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = MsgSaveFailed
		}
		r.Toast.Error("Error: " + msg)
		return res
	}

	r.mu.Lock()
	r.draft = nil
	r.mu.Unlock()
	r.Toast.Success(MsgInvoiceSaved)
	return res
}
