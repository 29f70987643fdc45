package commission_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/commission/store"
)

func seededQuoter(t *testing.T, entries ...commission.GridEntry) *commission.Quoter {
	t.Helper()
	mem := store.NewMemory()
	for _, e := range entries {
		require.NoError(t, mem.Save(context.Background(), e))
	}
	return commission.NewQuoter(mem)
}

func TestQuoter_QuoteUsesScopeSnapshot(t *testing.T) {
	other := motorEntry()
	other.ID = "other-org"
	other.Scope = "org-2"
	other.Base.Rate = dec("50")

	q := seededQuoter(t, other, motorEntry())
	ctx := context.Background()

	result, err := q.Quote(ctx, "org-1", commission.QuoteRequest{
		Provider:      "P1",
		ProductType:   "motor",
		PremiumAmount: dec("20000"),
		AsOf:          date("2024-06-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "grid-1", result.Entry.ID)
	assertDecimal(t, "2000", result.CommissionAmount)

	_, err = q.Quote(ctx, "org-3", commission.QuoteRequest{
		Provider:      "P1",
		ProductType:   "motor",
		PremiumAmount: dec("20000"),
	})
	assert.ErrorIs(t, err, commission.ErrNoMatchingGrid, "scope without grid has nothing configured")
}

func TestQuoter_RequiresScope(t *testing.T) {
	q := seededQuoter(t, motorEntry())

	_, err := q.Quote(context.Background(), "", commission.QuoteRequest{Provider: "P1", ProductType: "motor"})
	assert.ErrorIs(t, err, commission.ErrScopeRequired)
}

func TestQuoter_BatchIsolatesFailures(t *testing.T) {
	q := seededQuoter(t, motorEntry())

	items, err := q.QuoteBatch(context.Background(), "org-1", []commission.QuoteRequest{
		{Provider: "P1", ProductType: "motor", PremiumAmount: dec("1000"), AsOf: date("2024-06-01")},
		{Provider: "P1", ProductType: "motor", PremiumAmount: dec("60000"), AsOf: date("2024-06-01")},
		{Provider: "", ProductType: "motor", PremiumAmount: dec("1000")},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	require.NotNil(t, items[0].Result)
	assertDecimal(t, "100", items[0].Result.CommissionAmount)
	assert.ErrorIs(t, items[1].Err, commission.ErrNoMatchingGrid)
	assert.ErrorIs(t, items[2].Err, commission.ErrInvalidInput)
}

type failingSource struct{}

func (failingSource) Entries(context.Context, commission.Scope) ([]commission.GridEntry, error) {
	return nil, errors.New("connection reset")
}

func TestQuoter_SourceFailureIsWrapped(t *testing.T) {
	q := commission.NewQuoter(failingSource{})

	_, err := q.Quote(context.Background(), "org-1", commission.QuoteRequest{Provider: "P1", ProductType: "motor"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "org-1")
	assert.False(t, commission.IsClientError(err))
	assert.False(t, commission.IsNotConfigured(err))
}
