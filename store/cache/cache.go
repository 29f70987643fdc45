/*
Package cache provides a snapshot cache in front of any commission.GridStore.

PURPOSE:
  Quotes are read-heavy: every resolve loads a scope's full grid. Grids
  change only through admin edits, so the decorator keeps one snapshot per
  scope and drops it whenever that scope is written through the cache.

INVALIDATION:
  Save, SaveAll and Delete invalidate the written scope after the inner
  store succeeds. Writes that bypass the decorator (another process, a
  direct store reset) are only picked up when the TTL expires or when
  Invalidate/Flush is called.

  Every invalidation bumps the scope's generation. A load that started
  before the bump returns its entries but does not store them, so a slow
  read never re-caches a grid an admin has since edited.

SNAPSHOTS:
  Entries() returns a fresh copy of the cached slice, so callers may not
  mutate the cached grid.

USAGE:
  grids := cache.New(sqliteStore, 5*time.Minute)
  quoter := commission.NewQuoter(grids)
*/
package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/warp/commission-engine/commission"
)

// Store caches per-scope grid snapshots of an inner GridStore.
type Store struct {
	inner commission.GridStore
	cache *gocache.Cache

	mu    sync.Mutex // guards gens and epoch
	gens  map[commission.Scope]uint64
	epoch uint64
}

// New wraps inner. A ttl <= 0 keeps snapshots until they are invalidated.
func New(inner commission.GridStore, ttl time.Duration) *Store {
	cleanup := 2 * ttl
	if ttl <= 0 {
		ttl = gocache.NoExpiration
		cleanup = 0
	}
	return &Store{
		inner: inner,
		cache: gocache.New(ttl, cleanup),
		gens:  make(map[commission.Scope]uint64),
	}
}

func key(scope commission.Scope) string { return "grid:" + string(scope) }

// Entries serves the scope's snapshot from cache, loading it on a miss.
func (s *Store) Entries(ctx context.Context, scope commission.Scope) ([]commission.GridEntry, error) {
	if cached, found := s.cache.Get(key(scope)); found {
		return clone(cached.([]commission.GridEntry)), nil
	}
	return s.load(ctx, scope)
}

// Warm reloads the scope's snapshot from the inner store.
func (s *Store) Warm(ctx context.Context, scope commission.Scope) error {
	_, err := s.load(ctx, scope)
	return err
}

func (s *Store) load(ctx context.Context, scope commission.Scope) ([]commission.GridEntry, error) {
	s.mu.Lock()
	gen, epoch := s.gens[scope], s.epoch
	s.mu.Unlock()

	entries, err := s.inner.Entries(ctx, scope)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[scope] == gen && s.epoch == epoch {
		s.cache.Set(key(scope), clone(entries), gocache.DefaultExpiration)
	}
	return entries, nil
}

func (s *Store) Get(ctx context.Context, scope commission.Scope, id string) (commission.GridEntry, error) {
	return s.inner.Get(ctx, scope, id)
}

func (s *Store) Save(ctx context.Context, entry commission.GridEntry) error {
	if err := s.inner.Save(ctx, entry); err != nil {
		return err
	}
	s.Invalidate(entry.Scope)
	return nil
}

// SaveAll uses the inner store's atomic batch when it has one.
func (s *Store) SaveAll(ctx context.Context, entries []commission.GridEntry) error {
	if bs, ok := s.inner.(commission.BatchSaver); ok {
		if err := bs.SaveAll(ctx, entries); err != nil {
			return err
		}
	} else {
		for _, e := range entries {
			if err := commission.PrepareSave(e); err != nil {
				return err
			}
		}
		for _, e := range entries {
			if err := s.inner.Save(ctx, e); err != nil {
				return err
			}
		}
	}

	for _, e := range entries {
		s.Invalidate(e.Scope)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, scope commission.Scope, id string) error {
	if err := s.inner.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.Invalidate(scope)
	return nil
}

// Scopes delegates to the inner store when it can enumerate scopes.
func (s *Store) Scopes(ctx context.Context) ([]commission.Scope, error) {
	if sl, ok := s.inner.(commission.ScopeLister); ok {
		return sl.Scopes(ctx)
	}
	return nil, nil
}

// Invalidate drops the scope's snapshot.
func (s *Store) Invalidate(scope commission.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[scope]++
	s.cache.Delete(key(scope))
}

// Flush drops every snapshot.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.cache.Flush()
}

// Cached reports whether the scope currently has a snapshot.
func (s *Store) Cached(scope commission.Scope) bool {
	_, found := s.cache.Get(key(scope))
	return found
}

func clone(entries []commission.GridEntry) []commission.GridEntry {
	out := make([]commission.GridEntry, len(entries))
	copy(out, entries)
	return out
}
