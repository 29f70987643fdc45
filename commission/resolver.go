package commission

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RESOLVER - Grid lookup and rate computation
// =============================================================================


// Resolver resolves commission quotes. The zero value uses the wall clock.
type Resolver struct {
	// Now supplies "today" for queries without an as-of date.
	Now func() time.Time
}

// NewResolver returns a Resolver using the wall clock.
func NewResolver() *Resolver {
	return &Resolver{Now: time.Now}
}

// Resolve resolves q with the wall clock.
func Resolve(q Query) (QuoteResult, error) {
	return NewResolver().Resolve(q)
}

func (r *Resolver) today() Date {
	if r == nil || r.Now == nil {
		return Today()
	}
	return DateOf(r.Now())
}

// Resolve selects the first active grid entry matching the query and sums
// the components whose own windows cover the as-of date.
func (r *Resolver) Resolve(q Query) (QuoteResult, error) {
	if err := validateQuery(q); err != nil {
		return QuoteResult{}, err
	}

	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = r.today()
	}

	entry, ok := selectEntry(q)
	if !ok {
		return QuoteResult{}, &NoMatchingGridError{
			Provider:       q.Provider,
			ProductType:    q.ProductType,
			ProductSubtype: q.ProductSubtype,
			Premium:        q.PremiumAmount,
		}
	}

	return compute(entry, q.PremiumAmount, asOf), nil
}

func validateQuery(q Query) error {
	if strings.TrimSpace(q.Provider) == "" {
		return &InvalidInputError{Field: "provider", Reason: "is required"}
	}
	if strings.TrimSpace(q.ProductType) == "" {
		return &InvalidInputError{Field: "product_type", Reason: "is required"}
	}
	if q.PremiumAmount.IsNegative() {
		return &InvalidInputError{Field: "premium_amount", Reason: "must not be negative"}
	}
	return nil
}

// selectEntry returns the first entry in grid order passing both filters.
// Ties are not re-ranked.
func selectEntry(q Query) (GridEntry, bool) {
	for _, e := range q.Grid {
		if !e.matches(q.Provider, q.ProductType, q.ProductSubtype) {
			continue
		}
		if !e.PremiumRange.Contains(q.PremiumAmount) {
			continue
		}
		return e, true
	}
	return GridEntry{}, false
}

func compute(entry GridEntry, premium decimal.Decimal, asOf Date) QuoteResult {
	base := entry.Base.EffectiveRate(asOf)
	reward := entry.Reward.EffectiveRate(asOf)
	bonus := entry.Bonus.EffectiveRate(asOf)

	// Not capped at 100.
	total := base.Add(reward).Add(bonus)

	return QuoteResult{
		Entry:            entry,
		AsOf:             asOf,
		EffectiveBase:    base,
		EffectiveReward:  reward,
		EffectiveBonus:   bonus,
		TotalRate:        total,
		CommissionAmount: CommissionAmount(premium, total),
	}
}

// CommissionAmount returns premium * rate / 100 rounded half-up to 2 places.
// Premiums are non-negative, so decimal's half-away-from-zero is half-up.
func CommissionAmount(premium, rate decimal.Decimal) decimal.Decimal {
	return premium.Mul(rate).Shift(-2).Round(2)
}
