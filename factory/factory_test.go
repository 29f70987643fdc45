package factory_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/health"
	"github.com/warp/commission-engine/motor"
)

// =============================================================================
// MAPPING VALIDATION
// =============================================================================

func TestBuiltInMappingsLoad(t *testing.T) {
	assert.NotPanics(t, func() { factory.NewGridFactory() })
	assert.NotPanics(t, func() { factory.NewPolicyFactory() })

	assert.Equal(t, []string{
		"commission_rules/v1",
		"grid/v2",
		"health_payout_grid/v1",
		"motor_payout_grid/v1",
	}, factory.NewGridFactory().Shapes())
	assert.Equal(t, []string{"health-form/v1", "motor-form/v1", "policy/v1"}, factory.NewPolicyFactory().Shapes())
}

func TestMappingValidation(t *testing.T) {
	tests := []struct {
		name    string
		mapping factory.Mapping
	}{
		{
			name: "missing required field",
			mapping: factory.Mapping{Shape: "x", Version: 1, Fields: map[factory.Field]string{
				factory.FieldProvider: "p", factory.FieldProductType: "t",
			}, Required: []factory.Field{factory.FieldProvider, factory.FieldProductType, factory.FieldBaseRate}},
		},
		{
			name: "duplicate source key",
			mapping: factory.Mapping{Shape: "x", Version: 1, Fields: map[factory.Field]string{
				factory.FieldBaseRate: "rate", factory.FieldRewardRate: "rate",
			}},
		},
		{
			name: "unknown canonical field",
			mapping: factory.Mapping{Shape: "x", Version: 1, Fields: map[factory.Field]string{
				factory.Field("colour"): "colour",
			}},
		},
		{
			name:    "missing version",
			mapping: factory.Mapping{Shape: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.NewGridFactoryWith(tt.mapping)
			assert.ErrorIs(t, err, factory.ErrInvalidMapping)
		})
	}
}

func TestMappingValidation_FixedProductTypeSatisfiesRequirement(t *testing.T) {
	_, err := factory.NewGridFactoryWith(factory.Mapping{
		Shape: "x", Version: 1, ProductType: "motor",
		Fields:   map[factory.Field]string{factory.FieldProvider: "p", factory.FieldBaseRate: "r"},
		Required: []factory.Field{factory.FieldProvider, factory.FieldProductType, factory.FieldBaseRate},
	})
	assert.NoError(t, err)
}

// =============================================================================
// GRID ROWS
// =============================================================================

func TestParseRow_MotorPayoutGrid(t *testing.T) {
	f := factory.NewGridFactory()
	row := motor.StandardPayoutJSON("m-1", "P1", motor.PrivateCar, "0", "50000", "10", "2024-01-01")

	entry, err := f.ParseRow("motor_payout_grid/v1", "org-1", row)
	require.NoError(t, err)

	assert.Equal(t, "m-1", entry.ID)
	assert.Equal(t, commission.Scope("org-1"), entry.Scope)
	assert.Equal(t, commission.LineMotor, entry.Line)
	assert.Equal(t, "P1", entry.Provider)
	assert.Equal(t, "motor", entry.ProductType)
	assert.Equal(t, "private_car", entry.ProductSubtype)
	assert.Equal(t, "[0, 50000]", entry.PremiumRange.String())
	assert.Equal(t, "10", entry.Base.Rate.String())
	assert.Equal(t, "[2024-01-01, open]", entry.Base.Effective.String())
	assert.True(t, entry.Reward.Rate.IsZero())
	assert.True(t, entry.IsActive)
}

func TestParseRow_HealthPayoutGridStatus(t *testing.T) {
	f := factory.NewGridFactory()
	row := json.RawMessage(`{
		"insurer_name": "H1", "plan_type": "individual",
		"premium_from": 0, "premium_to": "25,000",
		"base_percentage": "15%", "base_valid_from": "2024-04-01T00:00:00Z",
		"status": "inactive"
	}`)

	entry, err := f.ParseRow("health_payout_grid/v1", "org-1", row)
	require.NoError(t, err)

	assert.Equal(t, "health", entry.ProductType)
	assert.Equal(t, "25000", entry.PremiumRange.Max.String())
	assert.Equal(t, "15", entry.Base.Rate.String())
	assert.Equal(t, "2024-04-01", entry.Base.Effective.From.String())
	assert.False(t, entry.IsActive)
	assert.Empty(t, entry.ID)
}

func TestParseRow_CommissionRules(t *testing.T) {
	f := factory.NewGridFactory()
	row := json.RawMessage(`{
		"id": 42, "provider_id": "P9", "product_type": "travel",
		"min_premium": null, "max_premium": 10000,
		"commission_rate": 7.5, "effective_from": "2024-01-01", "effective_to": "2024-12-31",
		"bonus_rate": 1, "bonus_effective_from": "2024-06-01",
		"is_active": 1
	}`)

	entry, err := f.ParseRow("commission_rules/v1", "org-1", row)
	require.NoError(t, err)

	assert.Equal(t, "42", entry.ID)
	assert.Equal(t, commission.LineGeneral, entry.Line)
	assert.Nil(t, entry.PremiumRange.Min)
	assert.Equal(t, "7.5", entry.Base.Rate.String())
	assert.Equal(t, "[2024-01-01, 2024-12-31]", entry.Base.Effective.String())
	assert.Equal(t, "[2024-06-01, open]", entry.Bonus.Effective.String())
	assert.True(t, entry.IsActive)
}

func TestParseRow_CanonicalShape(t *testing.T) {
	f := factory.NewGridFactory()
	row := json.RawMessage(`{
		"provider": "P1", "product_type": "motor",
		"premium_range": {"min": "0", "max": "50000"},
		"base": {"rate": "10", "from": "2024-01-01"},
		"reward": {"rate": "3", "from": "2024-03-01", "to": "2024-03-31"},
		"is_active": true
	}`)

	entry, err := f.ParseRow(factory.CanonicalGridShape, "org-1", row)
	require.NoError(t, err)
	assert.Equal(t, commission.LineMotor, entry.Line, "line follows a known product type")
	assert.Equal(t, "[2024-03-01, 2024-03-31]", entry.Reward.Effective.String())
	assert.Equal(t, "3", entry.Reward.Rate.String())
}

func TestParseRow_Errors(t *testing.T) {
	f := factory.NewGridFactory()

	_, err := f.ParseRow("motor_payout_grid/v9", "org-1", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, factory.ErrUnknownShape)

	_, err = f.ParseRow("motor_payout_grid/v1", "org-1", json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, factory.ErrInvalidPayload)

	_, err = f.ParseRow("motor_payout_grid/v1", "org-1", json.RawMessage(`{"base_payout": "10", "base_start": "2024-01-01"}`))
	var fe *factory.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, factory.FieldProvider, fe.Field)
	assert.Equal(t, "insurer", fe.Source)

	_, err = f.ParseRow("motor_payout_grid/v1", "org-1", json.RawMessage(`{"insurer": "P1", "base_payout": "ten"}`))
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, factory.FieldBaseRate, fe.Field)

	_, err = f.ParseRow("motor_payout_grid/v1", "org-1", json.RawMessage(`{"insurer": "P1", "base_payout": "10", "base_start": "01/01/2024"}`))
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, factory.FieldBaseFrom, fe.Field)

	// Mapped cleanly but breaks an entry invariant
	_, err = f.ParseRow("motor_payout_grid/v1", "org-1", json.RawMessage(`{"insurer": "P1", "base_payout": "10"}`))
	assert.ErrorIs(t, err, commission.ErrInvalidEntry)
}

func TestParseRows_AllOrNothing(t *testing.T) {
	f := factory.NewGridFactory()
	rows := []json.RawMessage{
		health.TieredPayoutJSON("h-1", "H1", health.Individual, "0", "20000", "15", "2", "2024-01-01"),
		json.RawMessage(`{"insurer_name": "H1"}`),
	}

	entries, err := f.ParseRows("health_payout_grid/v1", "org-1", rows)
	assert.Nil(t, entries)

	var re *factory.RowError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Row)
	assert.ErrorIs(t, err, factory.ErrInvalidPayload)
}

// =============================================================================
// POLICY PAYLOADS
// =============================================================================

func TestNormalize_MotorForm(t *testing.T) {
	f := factory.NewPolicyFactory()
	payload := json.RawMessage(`{
		"policyNumber": "MOT-001",
		"insurer": "P1",
		"vehicle": {"category": "private_car", "registration": "KA01AB1234"},
		"netPremium": "20000.50",
		"policyStartDate": "2024-06-01",
		"customer": {"name": "A. Sharma"},
		"agentId": "agent-7"
	}`)

	p, err := f.Normalize("motor-form/v1", "org-1", payload)
	require.NoError(t, err)

	assert.Equal(t, "motor-form/v1", p.Shape)
	assert.Equal(t, "MOT-001", p.PolicyNumber)
	assert.Equal(t, "motor", p.ProductType)
	assert.Equal(t, "private_car", p.ProductSubtype)
	assert.Equal(t, "20000.5", p.Premium.String())
	assert.Equal(t, "2024-06-01", p.IssueDate.String())
	assert.Equal(t, "A. Sharma", p.HolderName)
	assert.Equal(t, "agent-7", p.AgentID)

	req := p.QuoteRequest()
	assert.Equal(t, "P1", req.Provider)
	assert.Equal(t, p.IssueDate, req.AsOf)
}

func TestNormalize_HealthFormWithoutDate(t *testing.T) {
	f := factory.NewPolicyFactory()
	payload := json.RawMessage(`{
		"policy_no": "HLT-9", "insurance_company": "H1",
		"plan": {"type": "family_floater"}, "premium_amount": 18000
	}`)

	p, err := f.Normalize("health-form/v1", "org-1", payload)
	require.NoError(t, err)
	assert.Equal(t, "health", p.ProductType)
	assert.Equal(t, "family_floater", p.ProductSubtype)
	assert.True(t, p.IssueDate.IsZero())
}

func TestNormalize_MissingRequired(t *testing.T) {
	f := factory.NewPolicyFactory()

	_, err := f.Normalize("policy/v1", "org-1", json.RawMessage(`{"policy_number": "X", "provider": "P1", "product_type": "motor"}`))
	var fe *factory.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, factory.FieldPremium, fe.Field)
}
