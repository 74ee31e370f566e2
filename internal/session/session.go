// Package session tracks who is signed in for one application root and
// turns identity failures into fixed user-facing messages.
package session

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"gitlab.com/yelinaung/invoice-dashboard/internal/identity"
	"gitlab.com/yelinaung/invoice-dashboard/internal/logger"
	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// User-facing messages.
const (
	MsgUserNotFound    = "No account found with this email address."
	MsgWrongPassword   = "Incorrect password."
	MsgEmailInUse      = "An account with this email already exists."
	MsgWeakPassword    = "Password should be at least 6 characters."
	MsgInvalidEmail    = "Invalid email address."
	MsgTooManyRequests = "Too many failed attempts. Please try again later."
	MsgGeneric         = "An error occurred. Please try again."
	MsgNoUser          = "No user logged in"
)

// MessageFor maps an identity failure to its user-facing message. Errors
// without a known code get MsgGeneric.
func MessageFor(err error) string {
	switch identity.CodeOf(err) {
	case identity.CodeUserNotFound:
		return MsgUserNotFound
	case identity.CodeWrongPassword:
		return MsgWrongPassword
	case identity.CodeEmailAlreadyInUse:
		return MsgEmailInUse
	case identity.CodeWeakPassword:
		return MsgWeakPassword
	case identity.CodeInvalidEmail:
		return MsgInvalidEmail
	case identity.CodeTooManyRequests:
		return MsgTooManyRequests
	default:
		return MsgGeneric
	}
}

// ErrNoProvider is reported when an operation needs an identity provider
// and none is configured.
var ErrNoProvider = errors.New("identity provider not configured")

// ProfileStore persists profiles by uid. Get returns nil, nil when the
// profile does not exist yet.
type ProfileStore interface {
	Get(ctx context.Context, uid string) (*models.Profile, error)
	Save(ctx context.Context, uid string, p models.Profile) error
}

// Result is the outcome of a session operation.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() Result { return Result{Success: true} }

func fail(err error) Result {
	return Result{Error: MessageFor(err)}
}

// Manager holds the session of one application root. A nil provider gives
// the anonymous demo session.
type Manager struct {
	provider identity.Provider
	profiles ProfileStore
	now      func() time.Time

	notifyMu sync.Mutex

	mu        sync.Mutex
	user      *identity.User
	profile   *models.Profile
	loading   bool
	listeners map[int]func(*identity.User)
	nextID    int
}

// NewManager creates a Manager. Either dependency may be nil.
func NewManager(provider identity.Provider, profiles ProfileStore) *Manager {
	return &Manager{
		provider:  provider,
		profiles:  profiles,
		now:       time.Now,
		loading:   true,
		listeners: make(map[int]func(*identity.User)),
	}
}

// Init resolves the initial session: the demo user without a provider,
// signed out otherwise.
func (m *Manager) Init(ctx context.Context) {
	if m.provider == nil {
		logger.Log.Warn().Msg("Identity provider not configured, using demo user")
		m.setUser(ctx, identity.DemoUser())
		return
	}
	m.setUser(ctx, nil)
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *identity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// UserID returns the signed-in uid, or "".
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return ""
	}
	return m.user.UID
}

// Profile returns a copy of the profile, or nil.
func (m *Manager) Profile() *models.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile == nil {
		return nil
	}
	p := *m.profile
	return &p
}

// Loading reports whether an operation is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// DisplayName is the profile name, else the provider display name, else
// the email.
func (m *Manager) DisplayName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.profile != nil && m.profile.Name != "":
		return m.profile.Name
	case m.user == nil:
		return ""
	case m.user.DisplayName != "":
		return m.user.DisplayName
	default:
		return m.user.Email
	}
}

// OnChange registers fn to be called with the new user, or nil, whenever
// the session changes. The returned func unregisters it.
func (m *Manager) OnChange(fn func(*identity.User)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Login signs in with email and password.
func (m *Manager) Login(ctx context.Context, email, password string) Result {
	if m.provider == nil {
		return fail(ErrNoProvider)
	}
	m.setLoading(true)
	defer m.setLoading(false)

	user, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		logger.Log.Info().Err(err).Str("email", logger.SanitizeEmail(email)).Msg("Login failed")
		return fail(err)
	}
	m.setUser(ctx, user)
	return ok()
}

// Register creates an account, signs it in, sets its display name and
// creates its profile.
func (m *Manager) Register(ctx context.Context, email, password, name string) Result {
	if m.provider == nil {
		return fail(ErrNoProvider)
	}
	m.setLoading(true)
	defer m.setLoading(false)

	user, err := m.provider.SignUp(ctx, email, password)
	if err != nil {
		logger.Log.Info().Err(err).Str("email", logger.SanitizeEmail(email)).Msg("Registration failed")
		return fail(err)
	}
	m.setUser(ctx, user)

	name = strings.TrimSpace(name)
	if err := m.provider.UpdateDisplayName(ctx, user.UID, name); err != nil {
		logger.Log.Error().Err(err).Str("user", logger.HashUserID(user.UID)).Msg("Failed to set display name")
		return fail(err)
	}

	now := m.now().UTC()
	profile := models.Profile{Name: name, Email: user.Email, CreatedAt: now, UpdatedAt: now}
	if m.profiles != nil {
		if err := m.profiles.Save(ctx, user.UID, profile); err != nil {
			logger.Log.Error().Err(err).Str("user", logger.HashUserID(user.UID)).Msg("Failed to create profile")
			return fail(err)
		}
	}

	m.mu.Lock()
	if m.user != nil && m.user.UID == user.UID {
		m.user.DisplayName = name
		m.profile = &profile
	}
	m.mu.Unlock()
	return ok()
}

// Logout ends the session. The demo session cannot be signed out.
func (m *Manager) Logout(ctx context.Context) Result {
	if m.provider == nil {
		return fail(ErrNoProvider)
	}
	if uid := m.UserID(); uid != "" {
		if err := m.provider.SignOut(ctx, uid); err != nil {
			logger.Log.Error().Err(err).Str("user", logger.HashUserID(uid)).Msg("Logout failed")
			return fail(err)
		}
	}
	m.setUser(ctx, nil)
	return ok()
}

// UpdateProfile merges update into the profile, creating it if needed, and
// renames the account when the name changed.
func (m *Manager) UpdateProfile(ctx context.Context, update models.ProfileUpdate) Result {
	user := m.User()
	if user == nil {
		return Result{Error: MsgNoUser}
	}
	m.setLoading(true)
	defer m.setLoading(false)

	if update.Name != nil && *update.Name != "" && *update.Name != user.DisplayName && m.provider != nil {
		if err := m.provider.UpdateDisplayName(ctx, user.UID, *update.Name); err != nil {
			logger.Log.Error().Err(err).Str("user", logger.HashUserID(user.UID)).Msg("Failed to update display name")
			return fail(err)
		}
	}

	base := models.Profile{Email: user.Email}
	if current := m.Profile(); current != nil {
		base = *current
	}
	merged := base.Merge(update, m.now().UTC())

	if m.profiles != nil {
		if err := m.profiles.Save(ctx, user.UID, merged); err != nil {
			logger.Log.Error().Err(err).Str("user", logger.HashUserID(user.UID)).Msg("Failed to save profile")
			return fail(err)
		}
	}

	m.mu.Lock()
	if m.user != nil && m.user.UID == user.UID {
		if update.Name != nil && *update.Name != "" {
			m.user.DisplayName = *update.Name
		}
		m.profile = &merged
	}
	m.mu.Unlock()

	logger.Log.Info().Str("user", logger.HashUserID(user.UID)).Msg("Profile updated")
	return ok()
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}

// setUser replaces the session, loads the profile and notifies listeners.
func (m *Manager) setUser(ctx context.Context, user *identity.User) {
	var profile *models.Profile
	if user != nil && m.profiles != nil {
		p, err := m.profiles.Get(ctx, user.UID)
		if err != nil {
			logger.Log.Error().Err(err).Str("user", logger.HashUserID(user.UID)).Msg("Failed to load profile")
		}
		profile = p
	}

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.user = user
	m.profile = profile
	m.loading = false
	listeners := slices.Collect(maps.Values(m.listeners))
	m.mu.Unlock()

	var snapshot *identity.User
	if user != nil {
		u := *user
		snapshot = &u
	}
	for _, l := range listeners {
		l(snapshot)
	}
}
