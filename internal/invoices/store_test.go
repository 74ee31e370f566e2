package invoices

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gitlab.com/yelinaung/invoice-dashboard/internal/localstore"
	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

type fakeSub struct {
	userID     string
	onSnapshot func([]models.Invoice)
	onError    func(error)
	cancelled  bool
}

type fakeRemote struct {
	mu           sync.Mutex
	appendErr    error
	subscribeErr error
	appended     []models.Invoice
	subs         []*fakeSub
}

func (f *fakeRemote) Name() string { return SourceRemote }

func (f *fakeRemote) Query(context.Context, string) ([]models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Invoice(nil), f.appended...), nil
}

func (f *fakeRemote) Append(_ context.Context, _ string, inv models.Invoice) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return "", f.appendErr
	}
	inv.ID = "remote-" + strconv.Itoa(len(f.appended)+1)
	f.appended = append(f.appended, inv)
	return inv.ID, nil
}

func (f *fakeRemote) Subscribe(
	_ context.Context,
	userID string,
	onSnapshot func([]models.Invoice),
	onError func(error),
) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	sub := &fakeSub{userID: userID, onSnapshot: onSnapshot, onError: onError}
	f.subs = append(f.subs, sub)
	return func() {
		f.mu.Lock()
		sub.cancelled = true
		f.mu.Unlock()
	}, nil
}

func (f *fakeRemote) sub(t *testing.T, i int) *fakeSub {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Greater(t, len(f.subs), i)
	return f.subs[i]
}

func (f *fakeRemote) isCancelled(i int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i].cancelled
}

type brokenStorage struct{}

var errDiskFull = errors.New("disk full")

func (brokenStorage) GetItem(context.Context, string) (string, error) { return "", errDiskFull }
func (brokenStorage) SetItem(context.Context, string, string) error   { return errDiskFull }
func (brokenStorage) RemoveItem(context.Context, string) error        { return errDiskFull }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func partialInvoice() models.Invoice {
	return models.Invoice{
		VendorName: "Stark Industries",
		LineItems: []models.LineItem{
			{Description: "Quantum Core", Quantity: 2, Price: decimal.NewFromInt(2500)},
		},
	}
}

func invoiceAt(id string, at time.Time) models.Invoice {
	return models.Invoice{ID: id, VendorName: "Acme Corporation", CreatedAt: at}
}

func TestStore_WithoutRemote(t *testing.T) {
	t.Parallel()

	t.Run("watch resolves immediately from local storage", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		local := NewLocalBackend(localstore.NewMemory())
		_, err := local.Append(ctx, "u1", invoiceAt("", time.Now()))
		require.NoError(t, err)

		s := NewStore(nil, local)
		s.Watch(ctx, "u1")

		st := s.State()
		require.False(t, st.Loading)
		require.NoError(t, st.Err)
		require.Len(t, st.Invoices, 1)
		require.Equal(t, SourceLocal, st.Source)
	})

	t.Run("add commits locally and appears first", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
		local := NewLocalBackend(localstore.NewMemory())
		_, err := local.Append(ctx, "u1", invoiceAt("", now.Add(-time.Hour)))
		require.NoError(t, err)

		s := NewStore(nil, local, WithClock(fixedClock(now)))
		s.Watch(ctx, "u1")

		res := s.AddInvoice(ctx, partialInvoice())
		require.True(t, res.Success, res.Error)
		require.Equal(t, SourceLocal, res.Source)
		_, err = strconv.ParseInt(res.ID, 10, 64)
		require.NoError(t, err, "local ids are time based")

		st := s.State()
		require.Len(t, st.Invoices, 2)
		require.Equal(t, res.ID, st.Invoices[0].ID)

		stored, err := local.Query(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, res.ID, stored[0].ID)
	})

	t.Run("empty user clears state", func(t *testing.T) {
		t.Parallel()
		s := NewStore(nil, NewLocalBackend(localstore.NewMemory()))
		s.Watch(context.Background(), "")

		st := s.State()
		require.False(t, st.Loading)
		require.Empty(t, st.Invoices)
	})
}

func TestStore_AddInvoice(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("rejects writes without a user", func(t *testing.T) {
		t.Parallel()
		s := NewStore(nil, NewLocalBackend(localstore.NewMemory()))

		res := s.AddInvoice(context.Background(), partialInvoice())
		require.False(t, res.Success)
		require.Equal(t, "User not authenticated", res.Error)
		require.ErrorIs(t, res.Err, ErrNotAuthenticated)
	})

	t.Run("stamps ownership and timestamps", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		remote := &fakeRemote{}
		s := NewStore(remote, NewLocalBackend(localstore.NewMemory()), WithClock(fixedClock(now)))
		s.Watch(ctx, "u1")

		partial := partialInvoice()
		partial.UserID = "someone-else"
		partial.CreatedAt = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)

		res := s.AddInvoice(ctx, partial)
		require.True(t, res.Success)

		stored := remote.appended[0]
		require.Equal(t, "u1", stored.UserID)
		require.True(t, now.Equal(stored.CreatedAt))
		require.True(t, now.Equal(stored.UpdatedAt))
		require.True(t, decimal.NewFromInt(5000).Equal(stored.Subtotal))
		require.True(t, decimal.NewFromInt(5750).Equal(stored.Total))
	})

	t.Run("invalid record fails without writing", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		mem := localstore.NewMemory()
		s := NewStore(nil, NewLocalBackend(mem))
		s.Watch(ctx, "u1")

		res := s.AddInvoice(ctx, models.Invoice{})
		require.False(t, res.Success)
		require.ErrorIs(t, res.Err, models.ErrVendorRequired)
		require.Zero(t, mem.Len())
	})

	t.Run("remote success never touches local storage", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		remote := &fakeRemote{}
		mem := localstore.NewMemory()
		s := NewStore(remote, NewLocalBackend(mem))
		s.Watch(ctx, "u1")

		res := s.AddInvoice(ctx, partialInvoice())
		require.True(t, res.Success)
		require.Equal(t, "remote-1", res.ID)
		require.Equal(t, SourceRemote, res.Source)
		require.Zero(t, mem.Len())
		require.Empty(t, s.State().Invoices, "the subscription delivers remote writes")
	})

	t.Run("remote failure commits locally exactly once", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		remote := &fakeRemote{appendErr: errors.New("network down")}
		local := NewLocalBackend(localstore.NewMemory())
		s := NewStore(remote, local, WithClock(fixedClock(now)))
		s.Watch(ctx, "u1")

		res := s.AddInvoice(ctx, partialInvoice())
		require.True(t, res.Success, res.Error)
		require.Equal(t, SourceLocal, res.Source)
		require.Empty(t, remote.appended)

		stored, err := local.Query(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, stored, 1)
		require.Equal(t, res.ID, s.State().Invoices[0].ID)
	})

	t.Run("transient policy keeps permanent failures remote", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		remote := &fakeRemote{appendErr: status.Error(codes.PermissionDenied, "denied")}
		mem := localstore.NewMemory()
		s := NewStore(remote, NewLocalBackend(mem), WithFallbackPolicy(TransientOnly))
		s.Watch(ctx, "u1")

		res := s.AddInvoice(ctx, partialInvoice())
		require.False(t, res.Success)
		require.Contains(t, res.Error, "denied")
		require.Zero(t, mem.Len())
	})

	t.Run("both backends failing returns the local error", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		remote := &fakeRemote{appendErr: status.Error(codes.Unavailable, "offline")}
		s := NewStore(remote, NewLocalBackend(brokenStorage{}))
		s.Watch(ctx, "u1")

		res := s.AddInvoice(ctx, partialInvoice())
		require.False(t, res.Success)
		require.ErrorIs(t, res.Err, errDiskFull)
		require.Contains(t, res.Error, "disk full")
	})

	t.Run("local commit keeps newest first across backends", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		t1 := now.Add(-2 * time.Hour)
		t3 := now.Add(time.Hour)
		remote := &fakeRemote{}
		s := NewStore(remote, NewLocalBackend(localstore.NewMemory()), WithClock(fixedClock(now)))
		s.Watch(ctx, "u1")
		remote.sub(t, 0).onSnapshot([]models.Invoice{invoiceAt("a", t1), invoiceAt("c", t3)})

		remote.mu.Lock()
		remote.appendErr = errors.New("write rejected")
		remote.mu.Unlock()

		res := s.AddInvoice(ctx, partialInvoice())
		require.True(t, res.Success)

		st := s.State()
		require.Len(t, st.Invoices, 3)
		require.Equal(t, "c", st.Invoices[0].ID)
		require.Equal(t, res.ID, st.Invoices[1].ID)
		require.Equal(t, "a", st.Invoices[2].ID)
	})
}

func TestStore_Subscription(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("snapshots replace the list newest first", func(t *testing.T) {
		t.Parallel()
		remote := &fakeRemote{}
		s := NewStore(remote, NewLocalBackend(localstore.NewMemory()))
		s.Watch(context.Background(), "u1")
		require.True(t, s.State().Loading)

		sub := remote.sub(t, 0)
		sub.onSnapshot([]models.Invoice{invoiceAt("old", base), invoiceAt("new", base.Add(time.Hour))})
		st := s.State()
		require.False(t, st.Loading)
		require.Equal(t, SourceRemote, st.Source)
		require.Equal(t, []string{"new", "old"}, ids(st.Invoices))

		sub.onSnapshot([]models.Invoice{invoiceAt("only", base)})
		require.Equal(t, []string{"only"}, ids(s.State().Invoices))
	})

	t.Run("changing user cancels the old subscription and drops its deliveries", func(t *testing.T) {
		t.Parallel()
		remote := &fakeRemote{}
		s := NewStore(remote, NewLocalBackend(localstore.NewMemory()))
		ctx := context.Background()

		s.Watch(ctx, "u1")
		s.Watch(ctx, "u2")
		require.True(t, remote.isCancelled(0))
		require.False(t, remote.isCancelled(1))

		remote.sub(t, 0).onSnapshot([]models.Invoice{invoiceAt("stale", base)})
		remote.sub(t, 0).onError(errors.New("late failure"))
		st := s.State()
		require.Equal(t, "u2", st.UserID)
		require.Empty(t, st.Invoices)
		require.NoError(t, st.Err)

		remote.sub(t, 1).onSnapshot([]models.Invoice{invoiceAt("fresh", base)})
		require.Equal(t, []string{"fresh"}, ids(s.State().Invoices))
	})

	t.Run("subscription error surfaces with the local list", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		local := NewLocalBackend(localstore.NewMemory())
		id, err := local.Append(ctx, "u1", invoiceAt("", base))
		require.NoError(t, err)

		remote := &fakeRemote{}
		s := NewStore(remote, local)
		s.Watch(ctx, "u1")

		failure := status.Error(codes.Unavailable, "connection reset")
		remote.sub(t, 0).onError(failure)

		st := s.State()
		require.False(t, st.Loading)
		require.ErrorIs(t, st.Err, failure)
		require.Equal(t, SourceLocal, st.Source)
		require.Equal(t, []string{id}, ids(st.Invoices))
	})

	t.Run("subscribe failure reads local once", func(t *testing.T) {
		t.Parallel()
		remote := &fakeRemote{subscribeErr: errors.New("no credentials")}
		s := NewStore(remote, NewLocalBackend(localstore.NewMemory()))
		s.Watch(context.Background(), "u1")

		st := s.State()
		require.False(t, st.Loading)
		require.Error(t, st.Err)
		require.Equal(t, SourceLocal, st.Source)
	})

	t.Run("close releases the subscription", func(t *testing.T) {
		t.Parallel()
		remote := &fakeRemote{}
		s := NewStore(remote, NewLocalBackend(localstore.NewMemory()))
		s.Watch(context.Background(), "u1")
		s.Close()

		require.True(t, remote.isCancelled(0))
		remote.sub(t, 0).onSnapshot([]models.Invoice{invoiceAt("late", base)})
		require.Empty(t, s.State().Invoices)
	})
}

func TestStore_OnChange(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{}
	s := NewStore(remote, NewLocalBackend(localstore.NewMemory()))

	var mu sync.Mutex
	var seen []State
	unsubscribe := s.OnChange(func(st State) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	s.Watch(context.Background(), "u1")
	remote.sub(t, 0).onSnapshot([]models.Invoice{invoiceAt("a", time.Now())})

	mu.Lock()
	require.Len(t, seen, 2)
	require.True(t, seen[0].Loading)
	require.Equal(t, []string{"a"}, ids(seen[1].Invoices))
	mu.Unlock()

	unsubscribe()
	remote.sub(t, 0).onSnapshot(nil)

	mu.Lock()
	require.Len(t, seen, 2)
	mu.Unlock()
}

func TestStore_Get(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{}
	s := NewStore(remote, NewLocalBackend(localstore.NewMemory()))
	s.Watch(context.Background(), "u1")
	remote.sub(t, 0).onSnapshot([]models.Invoice{invoiceAt("a", time.Now())})

	inv, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "Acme Corporation", inv.VendorName)

	_, ok = s.Get("missing")
	require.False(t, ok)
}

func ids(list []models.Invoice) []string {
	out := make([]string, 0, len(list))
	for _, inv := range list {
		out = append(out, inv.ID)
	}
	return out
}
