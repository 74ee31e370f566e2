package invoices

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/invoice-dashboard/internal/logger"
	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

const instrumentationName = "gitlab.com/yelinaung/invoice-dashboard/internal/invoices"

// ErrNotAuthenticated is reported when a write is attempted without a user.
var ErrNotAuthenticated = errors.New("User not authenticated")

// State is a snapshot of what a reader sees.
type State struct {
	UserID   string           `json:"-"`
	Invoices []models.Invoice `json:"invoices"`
	Loading  bool             `json:"loading"`
	Err      error            `json:"-"`
	Source   string           `json:"source,omitempty"`
}

// Error returns the surfaced error message, or "".
func (s State) Error() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

func (s State) clone() State {
	s.Invoices = slices.Clone(s.Invoices)
	if s.Invoices == nil {
		s.Invoices = []models.Invoice{}
	}
	return s
}

// Result is the outcome of AddInvoice. It never carries a panic or a raw
// fault; failures are described by Error.
type Result struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
	Source  string `json:"source,omitempty"`
	Err     error  `json:"-"`
}

func failure(err error) Result {
	return Result{Error: err.Error(), Err: err}
}

// Option configures a Store.
type Option func(*Store)

// WithFallbackPolicy sets when a failed remote write falls back to local
// storage.
func WithFallbackPolicy(p FallbackPolicy) Option {
	return func(s *Store) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store holds one user's live invoice list. The remote backend is optional;
// without it every read and write goes to local.
type Store struct {
	remote LiveBackend
	local  Backend
	policy FallbackPolicy
	now    func() time.Time

	tracer trace.Tracer
	writes metric.Int64Counter

	// notifyMu serialises state changes with their notifications so
	// listeners observe them in order.
	notifyMu sync.Mutex

	mu         sync.Mutex
	state      State
	generation uint64
	release    func()
	listeners  map[int]func(State)
	nextID     int
}

// NewStore creates a Store. Pass a nil remote when no remote store is
// configured.
func NewStore(remote LiveBackend, local Backend, opts ...Option) *Store {
	s := &Store{
		remote:    remote,
		local:     local,
		policy:    AnyFailure,
		now:       time.Now,
		tracer:    otel.Tracer(instrumentationName),
		listeners: make(map[int]func(State)),
		state:     State{Invoices: []models.Invoice{}},
	}
	for _, opt := range opts {
		opt(s)
	}

	writes, err := otel.Meter(instrumentationName).Int64Counter(
		"invoices.writes",
		metric.WithDescription("Invoice writes committed, by backend"),
	)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create invoices.writes counter")
		s.writes = noop.Int64Counter{}
	} else {
		s.writes = writes
	}
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Get finds a visible invoice by id.
func (s *Store) Get(id string) (models.Invoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.state.Invoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return models.Invoice{}, false
}

// OnChange registers fn to receive every new state. Listeners run
// synchronously and must not call back into the Store's mutating methods.
// The returned func unregisters fn.
func (s *Store) OnChange(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Watch switches the store to userID. Any previous subscription is released
// first, and anything it delivers afterwards is dropped. An empty userID
// clears the list.
func (s *Store) Watch(ctx context.Context, userID string) {
	ctx, span := s.tracer.Start(ctx, "invoices.watch")
	defer span.End()

	s.mu.Lock()
	s.releaseLocked()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	if userID == "" {
		s.update(gen, func(st *State) { *st = State{} })
		return
	}

	if s.remote == nil {
		s.update(gen, func(st *State) { *st = State{UserID: userID, Loading: true} })
		s.readLocal(ctx, gen, userID, nil)
		return
	}

	span.SetAttributes(attribute.String("backend", s.remote.Name()))
	s.update(gen, func(st *State) { *st = State{UserID: userID, Loading: true} })

	// The subscription outlives the request that started it.
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		cancel()
		return
	}
	s.release = cancel
	s.mu.Unlock()

	stop, err := s.remote.Subscribe(subCtx, userID,
		func(list []models.Invoice) { s.applySnapshot(gen, list) },
		func(err error) { s.subscriptionFailed(subCtx, gen, userID, err) },
	)
	if err != nil {
		cancel()
		span.RecordError(err)
		s.subscriptionFailed(ctx, gen, userID, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		stop()
		cancel()
		return
	}
	s.release = func() {
		stop()
		cancel()
	}
}

// Close releases the subscription. Deliveries still in flight are dropped.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.generation++
}

// AddInvoice stores a new invoice for the current user. The remote backend
// is tried first; on a failure accepted by the fallback policy, or without a
// remote backend, the record is committed to local storage instead. Exactly
// one backend commits.
func (s *Store) AddInvoice(ctx context.Context, partial models.Invoice) (res Result) {
	ctx, span := s.tracer.Start(ctx, "invoices.add")
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error().Interface("panic", r).Msg("Invoice write panicked")
			res = failure(fmt.Errorf("invoice write failed: %v", r))
		}
		if !res.Success {
			span.SetStatus(codes.Error, res.Error)
		}
		span.End()
	}()

	s.mu.Lock()
	userID := s.state.UserID
	gen := s.generation
	s.mu.Unlock()

	if userID == "" {
		return failure(ErrNotAuthenticated)
	}

	inv := partial
	now := s.now().UTC()
	inv.ID = ""
	inv.CreatedAt = now
	inv.UpdatedAt = now
	inv.UserID = userID
	if inv.Status == "" {
		inv.Status = models.StatusPending
	}
	inv.Recalculate()
	if err := inv.Validate(); err != nil {
		return failure(err)
	}

	if s.remote != nil {
		id, err := s.remote.Append(ctx, userID, inv)
		if err == nil {
			s.countWrite(ctx, s.remote.Name())
			span.SetAttributes(attribute.String("backend", s.remote.Name()))
			logger.Log.Info().
				Str("user", logger.HashUserID(userID)).
				Str("backend", s.remote.Name()).
				Msg("Invoice stored")
			return Result{Success: true, ID: id, Source: s.remote.Name()}
		}
		if !s.policy(err) {
			span.RecordError(err)
			logger.Log.Error().Err(err).
				Str("user", logger.HashUserID(userID)).
				Msg("Remote invoice write failed without fallback")
			return failure(fmt.Errorf("failed to store invoice: %w", err))
		}
		logger.Log.Warn().Err(err).
			Str("user", logger.HashUserID(userID)).
			Str("from", s.remote.Name()).
			Str("to", s.local.Name()).
			Msg("Remote invoice write failed, falling back")
	}

	span.SetAttributes(attribute.String("backend", s.local.Name()))
	return s.commitLocal(ctx, gen, userID, inv)
}

func (s *Store) commitLocal(ctx context.Context, gen uint64, userID string, inv models.Invoice) Result {
	id, err := s.local.Append(ctx, userID, inv)
	if err != nil {
		logger.Log.Error().Err(err).
			Str("user", logger.HashUserID(userID)).
			Msg("Local invoice write failed")
		return failure(fmt.Errorf("failed to store invoice: %w", err))
	}
	s.countWrite(ctx, s.local.Name())
	inv.ID = id

	fresh, err := s.local.Query(ctx, userID)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to re-read local invoices")
		fresh = []models.Invoice{inv}
	}

	s.update(gen, func(st *State) {
		if st.UserID != userID {
			return
		}
		st.Invoices = Merge(fresh, st.Invoices)
		if st.Source == "" {
			st.Source = s.local.Name()
		}
	})

	logger.Log.Info().
		Str("user", logger.HashUserID(userID)).
		Str("backend", s.local.Name()).
		Msg("Invoice stored")
	return Result{Success: true, ID: id, Source: s.local.Name()}
}

func (s *Store) applySnapshot(gen uint64, list []models.Invoice) {
	list = slices.Clone(list)
	SortNewestFirst(list)
	s.update(gen, func(st *State) {
		st.Invoices = list
		st.Loading = false
		st.Err = nil
		st.Source = s.remote.Name()
	})
}

func (s *Store) subscriptionFailed(ctx context.Context, gen uint64, userID string, err error) {
	logger.Log.Warn().Err(err).
		Str("user", logger.HashUserID(userID)).
		Msg("Invoice subscription failed, reading local storage")
	s.readLocal(context.WithoutCancel(ctx), gen, userID, err)
}

// readLocal is a one-shot read of the local list. cause is the remote
// failure that led here, if any; it is surfaced with the data.
func (s *Store) readLocal(ctx context.Context, gen uint64, userID string, cause error) {
	list, err := s.local.Query(ctx, userID)
	s.update(gen, func(st *State) {
		if err == nil {
			st.Invoices = Merge(list, st.Invoices)
		}
		st.Err = errors.Join(cause, err)
		st.Loading = false
		st.Source = s.local.Name()
	})
}

// update applies fn to the state if gen is still current, then notifies
// listeners with the result.
func (s *Store) update(gen uint64, fn func(*State)) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	fn(&s.state)
	snap := s.state.clone()
	listeners := slices.Collect(maps.Values(s.listeners))
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
	return true
}

func (s *Store) releaseLocked() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

func (s *Store) countWrite(ctx context.Context, backend string) {
	s.writes.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}
