package commission_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(s string) commission.Date { return commission.MustParseDate(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msg ...string) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msg)
}

// motorEntry is the grid entry used by scenarios A-D.
func motorEntry() commission.GridEntry {
	return commission.GridEntry{
		ID:          "grid-1",
		Scope:       "org-1",
		Line:        commission.LineMotor,
		Provider:    "P1",
		ProductType: "motor",
		PremiumRange: commission.PremiumRange{
			Min: commission.DecimalPtr(dec("0")),
			Max: commission.DecimalPtr(dec("50000")),
		},
		Base: commission.RateComponent{
			Rate:      dec("10"),
			Effective: commission.OpenWindow(date("2024-01-01")),
		},
		IsActive: true,
	}
}

func motorQuery(premium string, asOf string, grid ...commission.GridEntry) commission.Query {
	return commission.Query{
		Provider:      "P1",
		ProductType:   "motor",
		PremiumAmount: dec(premium),
		AsOf:          date(asOf),
		Grid:          grid,
	}
}

// =============================================================================
// REFERENCE QUOTES
// =============================================================================

func TestResolve_BaseOnlyOpenWindow(t *testing.T) {
	result, err := commission.Resolve(motorQuery("20000", "2024-06-01", motorEntry()))
	require.NoError(t, err)

	assertDecimal(t, "10", result.TotalRate)
	assertDecimal(t, "2000.00", result.CommissionAmount)
	assert.Equal(t, "grid-1", result.Entry.ID)
	assert.Equal(t, "2024-06-01", result.AsOf.String())
}

func TestResolve_BeforeBaseWindowMatchesAtZero(t *testing.T) {
	// GIVEN: The base window starts 2024-01-01
	// WHEN: Resolving as of the day before
	// THEN: The entry still matches but contributes nothing
	result, err := commission.Resolve(motorQuery("20000", "2023-12-31", motorEntry()))
	require.NoError(t, err, "entry must still match the filter stage")

	assertDecimal(t, "0", result.EffectiveBase)
	assertDecimal(t, "0", result.TotalRate)
	assertDecimal(t, "0", result.CommissionAmount)
	assert.Equal(t, "0.00", result.CommissionAmount.StringFixed(2))
}

func TestResolve_AbovePremiumBandNotConfigured(t *testing.T) {
	_, err := commission.Resolve(motorQuery("60000", "2024-06-01", motorEntry()))

	require.Error(t, err)
	assert.ErrorIs(t, err, commission.ErrNoMatchingGrid)
	var nm *commission.NoMatchingGridError
	require.ErrorAs(t, err, &nm)
	assert.Equal(t, "P1", nm.Provider)
	assertDecimal(t, "60000", nm.Premium)
	assert.True(t, commission.IsNotConfigured(err))
}

func TestResolve_RewardWindowClosesIndependently(t *testing.T) {
	entry := motorEntry()
	entry.Reward = commission.RateComponent{
		Rate:      dec("3"),
		Effective: commission.ClosedWindow(date("2024-03-01"), date("2024-03-31")),
	}

	inside, err := commission.Resolve(motorQuery("20000", "2024-03-15", entry))
	require.NoError(t, err)
	assertDecimal(t, "3", inside.EffectiveReward)
	assertDecimal(t, "13", inside.TotalRate)
	assertDecimal(t, "2600", inside.CommissionAmount)

	after, err := commission.Resolve(motorQuery("20000", "2024-04-01", entry))
	require.NoError(t, err)
	assertDecimal(t, "0", after.EffectiveReward)
	assertDecimal(t, "10", after.EffectiveBase, "base window still covers the date")
	assertDecimal(t, "10", after.TotalRate)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestResolve_PremiumBandBoundsInclusive(t *testing.T) {
	entry := motorEntry()
	entry.PremiumRange = commission.PremiumRange{
		Min: commission.DecimalPtr(dec("1000")),
		Max: commission.DecimalPtr(dec("50000")),
	}

	tests := []struct {
		premium string
		match   bool
	}{
		{"1000", true},
		{"50000", true},
		{"999.99", false},
		{"50000.01", false},
	}

	for _, tt := range tests {
		t.Run(tt.premium, func(t *testing.T) {
			_, err := commission.Resolve(motorQuery(tt.premium, "2024-06-01", entry))
			if tt.match {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, commission.ErrNoMatchingGrid)
			}
		})
	}
}

func TestResolve_UnboundedPremiumRange(t *testing.T) {
	entry := motorEntry()
	entry.PremiumRange = commission.PremiumRange{}

	_, err := commission.Resolve(motorQuery("99999999", "2024-06-01", entry))
	assert.NoError(t, err)
	_, err = commission.Resolve(motorQuery("0", "2024-06-01", entry))
	assert.NoError(t, err)
}

func TestResolve_ComponentWindowEdges(t *testing.T) {
	entry := motorEntry()
	entry.Bonus = commission.RateComponent{
		Rate:      dec("2.5"),
		Effective: commission.ClosedWindow(date("2024-05-10"), date("2024-05-20")),
	}

	tests := []struct {
		asOf  string
		bonus string
	}{
		{"2024-05-09", "0"},
		{"2024-05-10", "2.5"},
		{"2024-05-20", "2.5"},
		{"2024-05-21", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.asOf, func(t *testing.T) {
			result, err := commission.Resolve(motorQuery("1000", tt.asOf, entry))
			require.NoError(t, err)
			assertDecimal(t, tt.bonus, result.EffectiveBonus)
		})
	}
}

func TestResolve_ComponentWithoutFromIsNeverEffective(t *testing.T) {
	entry := motorEntry()
	entry.Bonus = commission.RateComponent{
		Rate:      dec("5"),
		Effective: commission.EffectiveWindow{To: commission.DatePtr(date("2030-01-01"))},
	}

	result, err := commission.Resolve(motorQuery("1000", "2024-06-01", entry))
	require.NoError(t, err)
	assertDecimal(t, "0", result.EffectiveBonus)
	assertDecimal(t, "10", result.TotalRate)
}

func TestResolve_ComponentsAreIndependent(t *testing.T) {
	// GIVEN: Two entries that differ only in the reward window
	a := motorEntry()
	a.Reward = commission.RateComponent{Rate: dec("3"), Effective: commission.OpenWindow(date("2024-01-01"))}
	a.Bonus = commission.RateComponent{Rate: dec("1"), Effective: commission.OpenWindow(date("2024-01-01"))}
	b := a
	b.Reward.Effective = commission.ClosedWindow(date("2023-01-01"), date("2023-12-31"))

	ra, err := commission.Resolve(motorQuery("1000", "2024-06-01", a))
	require.NoError(t, err)
	rb, err := commission.Resolve(motorQuery("1000", "2024-06-01", b))
	require.NoError(t, err)

	// THEN: Base and bonus are unaffected; total is the arithmetic sum
	assert.True(t, ra.EffectiveBase.Equal(rb.EffectiveBase))
	assert.True(t, ra.EffectiveBonus.Equal(rb.EffectiveBonus))
	assertDecimal(t, "14", ra.TotalRate)
	assertDecimal(t, "11", rb.TotalRate)
	for _, r := range []commission.QuoteResult{ra, rb} {
		assert.True(t, r.TotalRate.Equal(r.EffectiveBase.Add(r.EffectiveReward).Add(r.EffectiveBonus)))
	}
}

func TestResolve_TotalRateNotCapped(t *testing.T) {
	entry := motorEntry()
	entry.Base.Rate = dec("90")
	entry.Bonus = commission.RateComponent{Rate: dec("25"), Effective: commission.OpenWindow(date("2024-01-01"))}

	result, err := commission.Resolve(motorQuery("1000", "2024-06-01", entry))
	require.NoError(t, err)
	assertDecimal(t, "115", result.TotalRate)
	assertDecimal(t, "1150", result.CommissionAmount)
}

func TestCommissionAmount_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		premium, rate, want string
	}{
		{"0.05", "10", "0.01"},         // 0.005
		{"333.33", "12.5", "41.67"},    // 41.66625
		{"100", "0.125", "0.13"},       // 0.125
		{"100", "0.135", "0.14"},       // 0.135, not banker's
		{"12345.67", "7.25", "895.06"}, // 895.061075
		// exact product sits just under the half; no intermediate rounding
		{"0.004999999999999999999", "100", "0.00"},
		{"0.004999999999999999999", "1", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.premium+"@"+tt.rate, func(t *testing.T) {
			got := commission.CommissionAmount(dec(tt.premium), dec(tt.rate))
			assert.Equal(t, tt.want, got.StringFixed(2))
			assert.True(t, got.Equal(got.Round(2)), "must have at most 2 decimals")
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	q := motorQuery("12345.67", "2024-06-01", motorEntry())

	first, err1 := commission.Resolve(q)
	second, err2 := commission.Resolve(q)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}

// =============================================================================
// MATCHING
// =============================================================================

func TestResolve_FirstMatchWins(t *testing.T) {
	first := motorEntry()
	second := motorEntry()
	second.ID = "grid-2"
	second.Base.Rate = dec("20")

	result, err := commission.Resolve(motorQuery("1000", "2024-06-01", first, second))
	require.NoError(t, err)
	assert.Equal(t, "grid-1", result.Entry.ID)

	result, err = commission.Resolve(motorQuery("1000", "2024-06-01", second, first))
	require.NoError(t, err)
	assert.Equal(t, "grid-2", result.Entry.ID)
}

func TestResolve_SkipsInactiveAndMismatched(t *testing.T) {
	inactive := motorEntry()
	inactive.ID = "inactive"
	inactive.IsActive = false

	otherProvider := motorEntry()
	otherProvider.ID = "other-provider"
	otherProvider.Provider = "P2"

	otherProduct := motorEntry()
	otherProduct.ID = "other-product"
	otherProduct.ProductType = "health"

	outOfBand := motorEntry()
	outOfBand.ID = "out-of-band"
	outOfBand.PremiumRange.Min = commission.DecimalPtr(dec("5000"))

	target := motorEntry()
	target.ID = "target"

	result, err := commission.Resolve(motorQuery("1000", "2024-06-01",
		inactive, otherProvider, otherProduct, outOfBand, target))
	require.NoError(t, err)
	assert.Equal(t, "target", result.Entry.ID)
}

func TestResolve_OnlyInactiveEntries(t *testing.T) {
	entry := motorEntry()
	entry.IsActive = false

	_, err := commission.Resolve(motorQuery("1000", "2024-06-01", entry))
	assert.ErrorIs(t, err, commission.ErrNoMatchingGrid)
}

func TestResolve_SubtypeMatching(t *testing.T) {
	private := motorEntry()
	private.ID = "private"
	private.ProductSubtype = "private_car"

	anySubtype := motorEntry()
	anySubtype.ID = "any"

	commercial := motorEntry()
	commercial.ID = "commercial"
	commercial.ProductSubtype = "commercial_vehicle"

	tests := []struct {
		name    string
		subtype string
		grid    []commission.GridEntry
		want    string
	}{
		{"exact subtype", "commercial_vehicle", []commission.GridEntry{private, commercial}, "commercial"},
		{"unrestricted entry accepts subtype", "two_wheeler", []commission.GridEntry{private, anySubtype}, "any"},
		{"no query subtype matches restricted entry", "", []commission.GridEntry{private, anySubtype}, "private"},
		{"no match", "two_wheeler", []commission.GridEntry{private, commercial}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := motorQuery("1000", "2024-06-01", tt.grid...)
			q.ProductSubtype = tt.subtype
			result, err := commission.Resolve(q)
			if tt.want == "" {
				assert.ErrorIs(t, err, commission.ErrNoMatchingGrid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Entry.ID)
		})
	}
}

func TestResolve_ProviderMatchIsExact(t *testing.T) {
	q := motorQuery("1000", "2024-06-01", motorEntry())
	q.Provider = "p1"

	_, err := commission.Resolve(q)
	assert.ErrorIs(t, err, commission.ErrNoMatchingGrid)
}

// =============================================================================
// INPUT VALIDATION
// =============================================================================

func TestResolve_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*commission.Query)
		field string
	}{
		{"empty provider", func(q *commission.Query) { q.Provider = "" }, "provider"},
		{"blank provider", func(q *commission.Query) { q.Provider = "   " }, "provider"},
		{"empty product type", func(q *commission.Query) { q.ProductType = "" }, "product_type"},
		{"negative premium", func(q *commission.Query) { q.PremiumAmount = dec("-0.01") }, "premium_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := motorQuery("1000", "2024-06-01", motorEntry())
			tt.mod(&q)

			_, err := commission.Resolve(q)
			require.Error(t, err)
			assert.ErrorIs(t, err, commission.ErrInvalidInput)
			assert.False(t, errors.Is(err, commission.ErrNoMatchingGrid))
			var ie *commission.InvalidInputError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.field, ie.Field)
			assert.True(t, commission.IsClientError(err))
		})
	}
}

func TestResolve_InvalidInputCheckedBeforeMatching(t *testing.T) {
	q := motorQuery("-5", "2024-06-01") // empty grid would otherwise be NoMatchingGrid
	_, err := commission.Resolve(q)
	assert.ErrorIs(t, err, commission.ErrInvalidInput)
}

// =============================================================================
// AS-OF DEFAULT
// =============================================================================

func TestResolver_DefaultsAsOfToToday(t *testing.T) {
	entry := motorEntry()
	entry.Reward = commission.RateComponent{
		Rate:      dec("3"),
		Effective: commission.ClosedWindow(date("2024-03-01"), date("2024-03-31")),
	}
	r := &commission.Resolver{Now: func() time.Time {
		return time.Date(2024, time.March, 15, 18, 30, 0, 0, time.UTC)
	}}

	q := motorQuery("1000", "2024-01-01", entry)
	q.AsOf = commission.Date{}

	result, err := r.Resolve(q)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", result.AsOf.String())
	assertDecimal(t, "13", result.TotalRate)
}
