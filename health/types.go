// Package health holds health line-of-business constants and payout grid presets.
package health

import "encoding/json"

// ProductType is the product type every health grid row and policy carries.
const ProductType = "health"

// PlanType is the health product subtype.
type PlanType string

const (
	Individual    PlanType = "individual"
	FamilyFloater PlanType = "family_floater"
	SeniorCitizen PlanType = "senior_citizen"
	TopUp         PlanType = "top_up"
)

// PlanTypes lists the known subtypes in display order.
var PlanTypes = []PlanType{Individual, FamilyFloater, SeniorCitizen, TopUp}

// =============================================================================
// PAYOUT ROWS - health_payout_grid/v1 shape
// =============================================================================

// PayoutRow is one row of the health_payout_grid table.
type PayoutRow struct {
	ID               string   `json:"id,omitempty"`
	InsurerName      string   `json:"insurer_name"`
	PlanType         PlanType `json:"plan_type,omitempty"`
	PremiumFrom      string   `json:"premium_from,omitempty"`
	PremiumTo        string   `json:"premium_to,omitempty"`
	BasePercentage   string   `json:"base_percentage"`
	BaseValidFrom    string   `json:"base_valid_from,omitempty"`
	BaseValidTo      string   `json:"base_valid_to,omitempty"`
	RewardPercentage string   `json:"reward_percentage,omitempty"`
	RewardValidFrom  string   `json:"reward_valid_from,omitempty"`
	RewardValidTo    string   `json:"reward_valid_to,omitempty"`
	BonusPercentage  string   `json:"bonus_percentage,omitempty"`
	BonusValidFrom   string   `json:"bonus_valid_from,omitempty"`
	BonusValidTo     string   `json:"bonus_valid_to,omitempty"`
	Status           string   `json:"status"` // "active" | "inactive"
}

func (r PayoutRow) JSON() json.RawMessage {
	b, _ := json.Marshal(r)
	return b
}

// TieredPayoutJSON returns one band of a tiered health grid: base plus a
// standing bonus from the same start date.
func TieredPayoutJSON(id, insurer string, plan PlanType, premiumFrom, premiumTo, baseRate, bonusRate, from string) json.RawMessage {
	row := PayoutRow{
		ID:             id,
		InsurerName:    insurer,
		PlanType:       plan,
		PremiumFrom:    premiumFrom,
		PremiumTo:      premiumTo,
		BasePercentage: baseRate,
		BaseValidFrom:  from,
		Status:         "active",
	}
	if bonusRate != "" && bonusRate != "0" {
		row.BonusPercentage = bonusRate
		row.BonusValidFrom = from
	}
	return row.JSON()
}
