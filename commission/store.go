/*
store.go - Persistence interfaces for commission grids

PURPOSE:
  Defines the boundary between the resolver and wherever grid entries live.
  The resolver itself only needs "given scope, return entries"; the admin
  CRUD surface needs the full GridStore.

KEY INTERFACES:
  GridSource: Read-only snapshot of a scope's entries, in grid order
  GridStore:  GridSource plus Get/Save/Delete for administrative edits
  BatchSaver: Atomic multi-entry save used by bulk imports

TENANCY:
  Every call takes an explicit Scope. There is no ambient session; a store
  never returns entries belonging to another scope.

ORDERING:
  Entries() returns entries in insertion order. Save() on an existing ID
  updates in place and keeps the entry's position, so "first match wins"
  is stable across edits.

IMPLEMENTATIONS:
  - commission/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite
  - store/cache/cache.go: Caching decorator over any GridStore

SEE ALSO:
  - quoter.go: Resolves quotes against a GridSource snapshot
*/
package commission

import "context"

// GridSource supplies the ordered grid entries for a scope.
type GridSource interface {
	Entries(ctx context.Context, scope Scope) ([]GridEntry, error)
}

// GridStore extends GridSource with administrative writes.
type GridStore interface {
	GridSource

	// Get returns ErrEntryNotFound when the ID does not exist in scope.
	Get(ctx context.Context, scope Scope, id string) (GridEntry, error)

	// Save inserts or updates an entry. The entry is validated first.
	Save(ctx context.Context, entry GridEntry) error

	// Delete returns ErrEntryNotFound when the ID does not exist in scope.
	Delete(ctx context.Context, scope Scope, id string) error
}

// BatchSaver is implemented by stores that can save several entries
// atomically: either every entry is written or none is.
type BatchSaver interface {
	SaveAll(ctx context.Context, entries []GridEntry) error
}

// ScopeLister is implemented by stores that can enumerate their scopes.
type ScopeLister interface {
	Scopes(ctx context.Context) ([]Scope, error)
}

// PrepareSave validates an entry before a store write.
func PrepareSave(entry GridEntry) error {
	if entry.Scope == "" {
		return ErrScopeRequired
	}
	return entry.Validate()
}
