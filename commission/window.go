package commission

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// EFFECTIVE WINDOW - Date range a rate component applies to
// =============================================================================

// EffectiveWindow is the inclusive range [From, To] during which a rate
// component applies. A nil To is open-ended. A nil From is never effective:
// a rate without a start date cannot be verified as active.
type EffectiveWindow struct {
	From *Date
	To   *Date
}

// OpenWindow returns a window starting at from with no end.
func OpenWindow(from Date) EffectiveWindow {
	return EffectiveWindow{From: DatePtr(from)}
}

// ClosedWindow returns the window [from, to].
func ClosedWindow(from, to Date) EffectiveWindow {
	return EffectiveWindow{From: DatePtr(from), To: DatePtr(to)}
}

// Covers returns true if d falls within the window.
func (w EffectiveWindow) Covers(d Date) bool {
	if w.From == nil {
		return false
	}
	if d.Before(*w.From) {
		return false
	}
	return w.To == nil || d.BeforeOrEqual(*w.To)
}

// IsSet reports whether the window has a start date.
func (w EffectiveWindow) IsSet() bool { return w.From != nil }

func (w EffectiveWindow) String() string {
	if w.From == nil {
		return "[unset]"
	}
	to := "open"
	if w.To != nil {
		to = w.To.String()
	}
	return "[" + w.From.String() + ", " + to + "]"
}

// =============================================================================
// RATE COMPONENT - One independently windowed percentage
// =============================================================================

// RateComponent is a percentage (12.5 means 12.5%) with its own window.
type RateComponent struct {
	Rate      decimal.Decimal
	Effective EffectiveWindow
}

// EffectiveRate returns Rate when asOf is inside the window, zero otherwise.
func (c RateComponent) EffectiveRate(asOf Date) decimal.Decimal {
	if c.Rate.IsZero() || !c.Effective.Covers(asOf) {
		return decimal.Zero
	}
	return c.Rate
}

// =============================================================================
// PREMIUM RANGE - Band a grid entry is restricted to
// =============================================================================

// PremiumRange bounds are both inclusive. A nil bound is unbounded.
type PremiumRange struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

// Contains returns true if amount is within [Min, Max].
func (r PremiumRange) Contains(amount decimal.Decimal) bool {
	if r.Min != nil && amount.LessThan(*r.Min) {
		return false
	}
	if r.Max != nil && amount.GreaterThan(*r.Max) {
		return false
	}
	return true
}

func (r PremiumRange) String() string {
	lo, hi := "-inf", "+inf"
	if r.Min != nil {
		lo = r.Min.String()
	}
	if r.Max != nil {
		hi = r.Max.String()
	}
	return "[" + lo + ", " + hi + "]"
}

// DecimalPtr returns a pointer to d, for optional premium bounds.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal { return &d }
