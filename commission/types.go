/*
Package commission provides the commission rate engine.

PURPOSE:
  Resolves the commission percentage and amount an agent earns on a policy.
  A grid entry configures a rate for a provider/product combination within a
  premium band. Its rate is split into three components (base, reward, bonus),
  each with its own effective window, so promotional rewards and bonuses can
  start and stop independently of the base rate.

KEY CONCEPTS IN THIS FILE (types.go):
  - Scope: Tenant (organization) that owns a set of grid entries
  - Line: Line of business a grid entry was configured under
  - GridEntry: One configured rate row
  - Query / QuoteResult: Resolver input and output

DESIGN PRINCIPLES:
  1. Precision: Premiums and rates use decimal.Decimal, never float64
  2. Purity: Resolution is a function of the query and the grid snapshot
  3. Explicit tenancy: Every data access takes a Scope argument
  4. First match wins: Overlapping entries are not re-ranked

USAGE:
  result, err := commission.Resolve(commission.Query{
      Provider:      "P1",
      ProductType:   "motor",
      PremiumAmount: decimal.NewFromInt(20000),
      AsOf:          commission.NewDate(2024, time.June, 1),
      Grid:          entries,
  })

SEE ALSO:
  - resolver.go: Matching and rate computation
  - window.go: Effective windows and premium bands
  - store.go: Grid source interfaces
*/
package commission

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Scope identifies the tenant (organization) owning grid entries.
type Scope string

// Line is the line of business a grid entry was configured under.
type Line string

const (
	LineMotor   Line = "motor"
	LineHealth  Line = "health"
	LineGeneral Line = "general"
)

// ParseLine maps a stored or wire value to a Line. Unknown values map to general.
func ParseLine(s string) Line {
	switch Line(strings.ToLower(strings.TrimSpace(s))) {
	case LineMotor:
		return LineMotor
	case LineHealth:
		return LineHealth
	default:
		return LineGeneral
	}
}

// =============================================================================
// GRID ENTRY - One configured commission-rate row
// =============================================================================

type GridEntry struct {
	ID    string
	Scope Scope
	Line  Line

	Provider       string
	ProductType    string
	ProductSubtype string // Empty = no subtype restriction

	PremiumRange PremiumRange

	Base   RateComponent
	Reward RateComponent
	Bonus  RateComponent

	IsActive bool
}

// matches reports whether the entry is eligible for the query's match keys.
func (e GridEntry) matches(provider, productType, subtype string) bool {
	if !e.IsActive || e.Provider != provider || e.ProductType != productType {
		return false
	}
	if subtype == "" || e.ProductSubtype == "" {
		return true
	}
	return e.ProductSubtype == subtype
}

// Validate checks the data invariants of a grid entry.
// Returns *EntryValidationError listing every problem found.
func (e GridEntry) Validate() error {
	var problems []string

	if strings.TrimSpace(e.Provider) == "" {
		problems = append(problems, "provider is required")
	}
	if strings.TrimSpace(e.ProductType) == "" {
		problems = append(problems, "product_type is required")
	}

	if e.PremiumRange.Min != nil && e.PremiumRange.Min.IsNegative() {
		problems = append(problems, "premium min must not be negative")
	}
	if e.PremiumRange.Max != nil && e.PremiumRange.Max.IsNegative() {
		problems = append(problems, "premium max must not be negative")
	}
	if e.PremiumRange.Min != nil && e.PremiumRange.Max != nil &&
		e.PremiumRange.Min.GreaterThan(*e.PremiumRange.Max) {
		problems = append(problems, "premium min must not exceed max")
	}

	for _, c := range []struct {
		name string
		rc   RateComponent
	}{{"base", e.Base}, {"reward", e.Reward}, {"bonus", e.Bonus}} {
		if c.rc.Rate.IsNegative() {
			problems = append(problems, c.name+" rate must not be negative")
		}
		if !c.rc.Rate.IsZero() && !c.rc.Effective.IsSet() {
			problems = append(problems, c.name+" rate requires an effective from date")
		}
		w := c.rc.Effective
		if w.From != nil && w.To != nil && w.To.Before(*w.From) {
			problems = append(problems, c.name+" window ends before it starts")
		}
	}

	if len(problems) > 0 {
		return &EntryValidationError{EntryID: e.ID, Problems: problems}
	}
	return nil
}

// =============================================================================
// QUERY / RESULT
// =============================================================================

// Query is the resolver input.
type Query struct {
	Provider       string
	ProductType    string
	ProductSubtype string // Optional
	PremiumAmount  decimal.Decimal
	AsOf           Date // Zero value = today
	Grid           []GridEntry
}

// QuoteResult is the resolved commission for one query.
type QuoteResult struct {
	Entry            GridEntry
	AsOf             Date
	EffectiveBase    decimal.Decimal
	EffectiveReward  decimal.Decimal
	EffectiveBonus   decimal.Decimal
	TotalRate        decimal.Decimal
	CommissionAmount decimal.Decimal
}
