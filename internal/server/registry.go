package server

import (
	"context"
	"sync"
	"time"

	"gitlab.com/yelinaung/invoice-dashboard/internal/app"
	"gitlab.com/yelinaung/invoice-dashboard/internal/logger"
)

// DepsFunc returns the dependencies for a new client root.
type DepsFunc func(clientID string) app.Deps

// Registry holds one app.Root per browser client and closes roots that
// have been idle longer than the ttl.
type Registry struct {
	deps DepsFunc
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

// client is a registry slot. ready is closed once root.Init has returned.
type client struct {
	root  *app.Root
	ready chan struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry(deps DepsFunc, ttl time.Duration) *Registry {
	return &Registry{
		deps:    deps,
		ttl:     ttl,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Get returns the root for clientID, creating and initialising it on first
// use. Concurrent callers for a new client wait until Init has finished.
// Each call counts as activity.
func (g *Registry) Get(ctx context.Context, clientID string) *app.Root {
	g.mu.Lock()
	c, ok := g.clients[clientID]
	if !ok {
		c = &client{
			root:  app.New(clientID, g.deps(clientID)),
			ready: make(chan struct{}),
		}
		c.root.Touch(g.now())
		g.clients[clientID] = c
	}
	g.mu.Unlock()

	if ok {
		<-c.ready
	} else {
		// Subscriptions started here outlive the request.
		c.root.Init(context.WithoutCancel(ctx))
		close(c.ready)
		logger.Log.Debug().Str("client", logger.HashClientID(clientID)).Msg("Client root created")
	}
	c.root.Touch(g.now())
	return c.root
}

// Len returns the number of live roots.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Sweep closes roots idle since before now minus the ttl and returns how
// many were closed. Roots still initialising are left alone.
func (g *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-g.ttl)

	g.mu.Lock()
	var expired []*app.Root
	for id, c := range g.clients {
		select {
		case <-c.ready:
		default:
			continue
		}
		if c.root.LastSeen().Before(cutoff) {
			expired = append(expired, c.root)
			delete(g.clients, id)
		}
	}
	g.mu.Unlock()

	for _, root := range expired {
		root.Close()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes every root.
func (g *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.CloseAll()
			return
		case <-ticker.C:
			if n := g.Sweep(g.now()); n > 0 {
				logger.Log.Info().Int("closed", n).Msg("Expired idle clients")
			}
		}
	}
}

// CloseAll closes and forgets every root, waiting for any still
// initialising.
func (g *Registry) CloseAll() {
	g.mu.Lock()
	clients := g.clients
	g.clients = make(map[string]*client)
	g.mu.Unlock()

	for _, c := range clients {
		<-c.ready
		c.root.Close()
	}
}
