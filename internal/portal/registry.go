package portal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pecportal/internal/platform/metrics"
	"pecportal/internal/syncstate"
)

// Factory builds the App for a new client.
type Factory func(clientID string) *App

type client struct {
	app      *App
	lastSeen time.Time
	ready    chan struct{}
}

// Registry holds one App per browser client and evicts clients that stay idle.
type Registry struct {
	factory Factory
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	clients map[string]*client
	closed  bool
}

// NewRegistry constructs a Registry. A zero ttl disables eviction.
func NewRegistry(factory Factory, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factory: factory,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Get returns the App for clientID, creating and bootstrapping it on first
// use. refreshToken, when set, lets a new App resume the browser's session.
func (r *Registry) Get(ctx context.Context, clientID, refreshToken string) (*App, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	c, ok := r.clients[clientID]
	if ok {
		c.lastSeen = r.now()
		r.mu.Unlock()

		select {
		case <-c.ready:
			return c.app, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c = &client{app: r.factory(clientID), lastSeen: r.now(), ready: make(chan struct{})}
	r.clients[clientID] = c
	r.metrics.SetActiveClients(len(r.clients))
	r.mu.Unlock()

	if refreshToken != "" {
		c.app.Restore(refreshToken)
	}
	c.app.Bootstrap(ctx)
	close(c.ready)
	r.logger.Debug("portal client created", "client_id", clientID, "restored", refreshToken != "")
	return c.app, nil
}

// Lookup returns the App for clientID without creating one.
func (r *Registry) Lookup(clientID string) (*App, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok {
		return nil, false
	}
	c.lastSeen = r.now()
	return c.app, true
}

// Len returns the number of live clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Sweep closes clients idle for longer than the ttl and returns how many it evicted.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	cutoff := r.now().Add(-r.ttl)
	var idle []*client
	for id, c := range r.clients {
		if c.lastSeen.Before(cutoff) {
			idle = append(idle, c)
			delete(r.clients, id)
		}
	}
	r.metrics.SetActiveClients(len(r.clients))
	r.mu.Unlock()

	for _, c := range idle {
		<-c.ready
		c.app.Close()
	}
	if len(idle) > 0 {
		r.logger.Info("evicted idle portal clients", "count", len(idle))
	}
	return len(idle)
}

// RunJanitor sweeps every interval until ctx is cancelled.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// MarkSynced flags the local entry behind a replayed write as synced, if its client is still live.
func (r *Registry) MarkSynced(w PendingWrite) {
	r.mu.Lock()
	c, ok := r.clients[w.ClientID]
	r.mu.Unlock()
	if !ok {
		return
	}
	c.app.markSynced(w.Kind, w.EntityID, syncstate.Synced)
}

// RemoteContext attaches the current credentials of clientID to ctx. A client
// that is no longer live contributes none.
func (r *Registry) RemoteContext(ctx context.Context, clientID string) context.Context {
	r.mu.Lock()
	c, ok := r.clients[clientID]
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("replaying write for departed client", "client_id", clientID)
		return ctx
	}
	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx
	}
	return c.app.remoteContext(ctx)
}

// Close closes every App and rejects further clients.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	clients := r.clients
	r.clients = make(map[string]*client)
	r.metrics.SetActiveClients(0)
	r.mu.Unlock()

	for _, c := range clients {
		<-c.ready
		c.app.Close()
	}
}
