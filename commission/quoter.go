package commission

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUOTER - Resolves queries against a scope's grid snapshot
// =============================================================================

// QuoteRequest is a Query without the grid; the Quoter supplies it.
type QuoteRequest struct {
	Provider       string
	ProductType    string
	ProductSubtype string
	PremiumAmount  decimal.Decimal
	AsOf           Date
}

// BatchItem is the outcome of one request in a batch.
type BatchItem struct {
	Request QuoteRequest
	Result  *QuoteResult
	Err     error
}

// Quoter fetches a grid snapshot and resolves against it.
type Quoter struct {
	Source   GridSource
	Resolver *Resolver
}

func NewQuoter(source GridSource) *Quoter {
	return &Quoter{Source: source, Resolver: NewResolver()}
}

// Quote resolves a single request for scope.
func (q *Quoter) Quote(ctx context.Context, scope Scope, req QuoteRequest) (QuoteResult, error) {
	grid, err := q.snapshot(ctx, scope)
	if err != nil {
		return QuoteResult{}, err
	}
	return q.Resolver.Resolve(req.query(grid))
}

// QuoteBatch resolves every request against one snapshot. A failing item
// does not abort the batch; only a snapshot failure does.
func (q *Quoter) QuoteBatch(ctx context.Context, scope Scope, reqs []QuoteRequest) ([]BatchItem, error) {
	grid, err := q.snapshot(ctx, scope)
	if err != nil {
		return nil, err
	}

	items := make([]BatchItem, len(reqs))
	for i, req := range reqs {
		items[i].Request = req
		result, err := q.Resolver.Resolve(req.query(grid))
		if err != nil {
			items[i].Err = err
			continue
		}
		items[i].Result = &result
	}
	return items, nil
}

func (q *Quoter) snapshot(ctx context.Context, scope Scope) ([]GridEntry, error) {
	if scope == "" {
		return nil, ErrScopeRequired
	}
	grid, err := q.Source.Entries(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load grid for scope %s: %w", scope, err)
	}
	return grid, nil
}

func (r QuoteRequest) query(grid []GridEntry) Query {
	return Query{
		Provider:       r.Provider,
		ProductType:    r.ProductType,
		ProductSubtype: r.ProductSubtype,
		PremiumAmount:  r.PremiumAmount,
		AsOf:           r.AsOf,
		Grid:           grid,
	}
}
