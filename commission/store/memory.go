// Package store provides GridStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	entries map[commission.Scope][]commission.GridEntry
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[commission.Scope][]commission.GridEntry),
	}
}

// Entries returns a copy of the scope's entries in insertion order.
func (m *Memory) Entries(_ context.Context, scope commission.Scope) ([]commission.GridEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]commission.GridEntry, len(m.entries[scope]))
	copy(result, m.entries[scope])
	return result, nil
}

func (m *Memory) Get(_ context.Context, scope commission.Scope, id string) (commission.GridEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.indexLocked(scope, id); i >= 0 {
		return m.entries[scope][i], nil
	}
	return commission.GridEntry{}, commission.ErrEntryNotFound
}

// Save appends a new entry or replaces an existing one in place.
func (m *Memory) Save(_ context.Context, entry commission.GridEntry) error {
	if err := commission.PrepareSave(entry); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexLocked(entry.Scope, entry.ID); i >= 0 {
		m.entries[entry.Scope][i] = entry
		return nil
	}
	m.entries[entry.Scope] = append(m.entries[entry.Scope], entry)
	return nil
}

// SaveAll validates every entry before applying any of them.
func (m *Memory) SaveAll(_ context.Context, entries []commission.GridEntry) error {
	for _, e := range entries {
		if err := commission.PrepareSave(e); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if i := m.indexLocked(e.Scope, e.ID); i >= 0 {
			m.entries[e.Scope][i] = e
			continue
		}
		m.entries[e.Scope] = append(m.entries[e.Scope], e)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, scope commission.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(scope, id)
	if i < 0 {
		return commission.ErrEntryNotFound
	}
	entries := m.entries[scope]
	m.entries[scope] = append(entries[:i:i], entries[i+1:]...)
	return nil
}

// Scopes returns every scope holding at least one entry, sorted.
func (m *Memory) Scopes(_ context.Context) ([]commission.Scope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var scopes []commission.Scope
	for s, entries := range m.entries {
		if len(entries) > 0 {
			scopes = append(scopes, s)
		}
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })
	return scopes, nil
}

func (m *Memory) indexLocked(scope commission.Scope, id string) int {
	for i, e := range m.entries[scope] {
		if e.ID == id {
			return i
		}
	}
	return -1
}
