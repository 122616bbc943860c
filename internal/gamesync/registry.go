package gamesync

import (
	"context"
	"log/slog"
	"sync"

	"github.com/playperu/brainy/internal/feed"
)

// Registry shares one registered Coordinator per game among its users. The
// coordinator is registered on the first Acquire and deregistered when the
// last user releases it.
type Registry struct {
	ctx     context.Context
	feed    feed.Feed
	catalog ChallengeCatalog
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	coord *Coordinator
	refs  int
}

// NewRegistry creates a registry whose coordinators live at most as long as
// ctx.
func NewRegistry(ctx context.Context, f feed.Feed, catalog ChallengeCatalog, logger *slog.Logger) *Registry {
	return &Registry{
		ctx:     ctx,
		feed:    f,
		catalog: catalog,
		logger:  logger,
		entries: make(map[string]*registryEntry),
	}
}

func (r *Registry) Feed() feed.Feed { return r.feed }

func (r *Registry) Catalog() ChallengeCatalog { return r.catalog }

// Acquire returns the live coordinator for gameID and a release func that
// must be called exactly once when the caller is done with it.
func (r *Registry) Acquire(gameID string) (*Coordinator, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[gameID]
	if !ok || e.coord.State() == StateTornDown {
		c := NewCoordinator(r.feed, r.catalog, gameID, r.logger)
		if err := c.Register(r.ctx); err != nil {
			return nil, nil, err
		}
		e = &registryEntry{coord: c}
		r.entries[gameID] = e
	}
	e.refs++

	var once sync.Once
	release := func() {
		once.Do(func() { r.release(gameID, e) })
	}
	return e.coord, release, nil
}

func (r *Registry) release(gameID string, e *registryEntry) {
	r.mu.Lock()
	e.refs--
	last := e.refs == 0
	if last && r.entries[gameID] == e {
		delete(r.entries, gameID)
	}
	r.mu.Unlock()

	if last {
		e.coord.Deregister()
	}
}

// Live returns the number of registered coordinators.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close deregisters every coordinator regardless of outstanding users.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.coord.Deregister()
	}
}
