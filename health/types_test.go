package health

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTieredPayoutJSON_BonusSharesBaseStart(t *testing.T) {
	var row PayoutRow
	require.NoError(t, json.Unmarshal(TieredPayoutJSON("h-1", "H1", FamilyFloater, "0", "", "18", "2", "2024-04-01"), &row))

	assert.Equal(t, "H1", row.InsurerName)
	assert.Equal(t, FamilyFloater, row.PlanType)
	assert.Equal(t, "2", row.BonusPercentage)
	assert.Equal(t, "2024-04-01", row.BonusValidFrom)
	assert.Equal(t, "active", row.Status)
}

func TestTieredPayoutJSON_ZeroBonusOmitted(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal(TieredPayoutJSON("h-2", "H1", Individual, "0", "20000", "15", "0", "2024-04-01"), &raw))

	assert.NotContains(t, raw, "bonus_percentage")
	assert.NotContains(t, raw, "bonus_valid_from")
	assert.Equal(t, "20000", raw["premium_to"])
}
