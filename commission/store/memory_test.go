package store_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/commission/store"
)

func entry(scope commission.Scope, id, rate string) commission.GridEntry {
	return commission.GridEntry{
		ID:          id,
		Scope:       scope,
		Line:        commission.LineGeneral,
		Provider:    "P1",
		ProductType: "motor",
		Base: commission.RateComponent{
			Rate:      decimal.RequireFromString(rate),
			Effective: commission.OpenWindow(commission.NewDate(2024, 1, 1)),
		},
		IsActive: true,
	}
}

func ids(entries []commission.GridEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestMemory_SavePreservesPosition(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.Save(ctx, entry("org-1", "a", "10")))
	require.NoError(t, m.Save(ctx, entry("org-1", "b", "11")))
	require.NoError(t, m.Save(ctx, entry("org-1", "c", "12")))

	// Update in place
	require.NoError(t, m.Save(ctx, entry("org-1", "a", "15")))

	got, err := m.Entries(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
	assert.Equal(t, "15", got[0].Base.Rate.String())
}

func TestMemory_ScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Save(ctx, entry("org-1", "a", "10")))
	require.NoError(t, m.Save(ctx, entry("org-2", "a", "20")))

	got, err := m.Get(ctx, "org-2", "a")
	require.NoError(t, err)
	assert.Equal(t, "20", got.Base.Rate.String())

	_, err = m.Get(ctx, "org-3", "a")
	assert.ErrorIs(t, err, commission.ErrEntryNotFound)

	scopes, err := m.Scopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []commission.Scope{"org-1", "org-2"}, scopes)
}

func TestMemory_DeleteDoesNotMutateSnapshots(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.Save(ctx, entry("org-1", id, "10")))
	}

	snapshot, err := m.Entries(ctx, "org-1")
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "org-1", "b"))
	assert.ErrorIs(t, m.Delete(ctx, "org-1", "b"), commission.ErrEntryNotFound)

	after, err := m.Entries(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(after))
	assert.Equal(t, []string{"a", "b", "c"}, ids(snapshot))
}

func TestMemory_SaveRejectsInvalidEntries(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	bad := entry("org-1", "a", "10")
	bad.Base.Effective = commission.EffectiveWindow{}
	assert.ErrorIs(t, m.Save(ctx, bad), commission.ErrInvalidEntry)

	assert.ErrorIs(t, m.Save(ctx, entry("", "a", "10")), commission.ErrScopeRequired)

	got, err := m.Entries(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
