package commission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
)

func TestGridEntry_ValidateAcceptsScenarioEntry(t *testing.T) {
	assert.NoError(t, motorEntry().Validate())
}

func TestGridEntry_ValidateReportsEveryProblem(t *testing.T) {
	entry := motorEntry()
	entry.Provider = ""
	entry.PremiumRange.Min = commission.DecimalPtr(dec("60000"))
	entry.Reward = commission.RateComponent{Rate: dec("2")} // no window
	entry.Bonus = commission.RateComponent{
		Rate:      dec("-1"),
		Effective: commission.ClosedWindow(date("2024-05-01"), date("2024-04-01")),
	}

	err := entry.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, commission.ErrInvalidEntry)

	var ve *commission.EntryValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{
		"provider is required",
		"premium min must not exceed max",
		"reward rate requires an effective from date",
		"bonus rate must not be negative",
		"bonus window ends before it starts",
	}, ve.Problems)
}

func TestGridEntry_ZeroRateNeedsNoWindow(t *testing.T) {
	entry := motorEntry()
	entry.Reward = commission.RateComponent{}
	entry.Bonus = commission.RateComponent{}

	assert.NoError(t, entry.Validate())
}

func TestEffectiveWindow_Covers(t *testing.T) {
	open := commission.OpenWindow(date("2024-01-01"))
	assert.False(t, open.Covers(date("2023-12-31")))
	assert.True(t, open.Covers(date("2024-01-01")))
	assert.True(t, open.Covers(date("2099-12-31")))

	unset := commission.EffectiveWindow{}
	assert.False(t, unset.Covers(date("2024-01-01")))
	assert.Equal(t, "[unset]", unset.String())
	assert.Equal(t, "[2024-01-01, open]", open.String())
}

func TestParseDate(t *testing.T) {
	d, err := commission.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
	assert.Equal(t, "2024-03-01", d.AddDays(1).String())

	_, err = commission.ParseDate("29/02/2024")
	assert.Error(t, err)
}

func TestParseLine(t *testing.T) {
	assert.Equal(t, commission.LineMotor, commission.ParseLine(" Motor "))
	assert.Equal(t, commission.LineHealth, commission.ParseLine("health"))
	assert.Equal(t, commission.LineGeneral, commission.ParseLine("life"))
}
