/*
grids.go - Pre-built motor payout grid rows

PURPOSE:
  Ready-to-use rows in the motor_payout_grid/v1 shape. Used by demo
  scenarios and tests; an admin import sends the same JSON.

AVAILABLE ROWS:
  StandardPayoutJSON: Base rate for a premium band, open-ended
  SeasonalPayoutJSON: Base rate plus a reward that runs for a fixed window

EXAMPLE:
  row := motor.StandardPayoutJSON("m-1", "P1", motor.PrivateCar, "0", "50000", "10", "2024-01-01")
  entry, err := factory.NewGridFactory().ParseRow("motor_payout_grid/v1", scope, row)

SEE ALSO:
  - factory/grid.go: motor_payout_grid/v1 mapping
*/
package motor

import "encoding/json"

// PayoutRow is one row of the motor_payout_grid table.
// Amounts and percentages are decimal strings.
type PayoutRow struct {
	ID           string      `json:"id,omitempty"`
	Insurer      string      `json:"insurer"`
	VehicleType  VehicleType `json:"vehicle_type,omitempty"`
	PremiumMin   string      `json:"premium_min,omitempty"`
	PremiumMax   string      `json:"premium_max,omitempty"`
	BasePayout   string      `json:"base_payout"`
	BaseStart    string      `json:"base_start,omitempty"`
	BaseEnd      string      `json:"base_end,omitempty"`
	RewardPayout string      `json:"reward_payout,omitempty"`
	RewardStart  string      `json:"reward_start,omitempty"`
	RewardEnd    string      `json:"reward_end,omitempty"`
	BonusPayout  string      `json:"bonus_payout,omitempty"`
	BonusStart   string      `json:"bonus_start,omitempty"`
	BonusEnd     string      `json:"bonus_end,omitempty"`
	Active       bool        `json:"active"`
}

// JSON encodes the row.
func (r PayoutRow) JSON() json.RawMessage {
	b, _ := json.Marshal(r)
	return b
}

// StandardPayoutJSON returns an active row with only a base rate.
func StandardPayoutJSON(id, insurer string, vehicle VehicleType, premiumMin, premiumMax, baseRate, from string) json.RawMessage {
	return PayoutRow{
		ID:          id,
		Insurer:     insurer,
		VehicleType: vehicle,
		PremiumMin:  premiumMin,
		PremiumMax:  premiumMax,
		BasePayout:  baseRate,
		BaseStart:   from,
		Active:      true,
	}.JSON()
}

// SeasonalPayoutJSON adds a reward valid for [rewardFrom, rewardTo].
func SeasonalPayoutJSON(id, insurer string, vehicle VehicleType, baseRate, from, rewardRate, rewardFrom, rewardTo string) json.RawMessage {
	return PayoutRow{
		ID:           id,
		Insurer:      insurer,
		VehicleType:  vehicle,
		BasePayout:   baseRate,
		BaseStart:    from,
		RewardPayout: rewardRate,
		RewardStart:  rewardFrom,
		RewardEnd:    rewardTo,
		Active:       true,
	}.JSON()
}
