package factory

import (
	"encoding/json"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/health"
	"github.com/warp/commission-engine/motor"
)

// =============================================================================
// GRID FIELDS
// =============================================================================

const (
	FieldID             Field = "id"
	FieldProvider       Field = "provider"
	FieldProductType    Field = "product_type"
	FieldProductSubtype Field = "product_subtype"
	FieldPremiumMin     Field = "premium_min"
	FieldPremiumMax     Field = "premium_max"
	FieldBaseRate       Field = "base_rate"
	FieldBaseFrom       Field = "base_from"
	FieldBaseTo         Field = "base_to"
	FieldRewardRate     Field = "reward_rate"
	FieldRewardFrom     Field = "reward_from"
	FieldRewardTo       Field = "reward_to"
	FieldBonusRate      Field = "bonus_rate"
	FieldBonusFrom      Field = "bonus_from"
	FieldBonusTo        Field = "bonus_to"
	FieldActive         Field = "active"
)

var gridFields = map[Field]bool{
	FieldID: true, FieldProvider: true, FieldProductType: true, FieldProductSubtype: true,
	FieldPremiumMin: true, FieldPremiumMax: true,
	FieldBaseRate: true, FieldBaseFrom: true, FieldBaseTo: true,
	FieldRewardRate: true, FieldRewardFrom: true, FieldRewardTo: true,
	FieldBonusRate: true, FieldBonusFrom: true, FieldBonusTo: true,
	FieldActive: true,
}

var gridRequired = []Field{FieldProvider, FieldProductType, FieldBaseRate}

// =============================================================================
// GRID SHAPES
// =============================================================================

// CanonicalGridShape is the shape the API accepts for hand-entered rows.
const CanonicalGridShape = "grid/v2"

// GridMappings are the built-in grid row shapes.
var GridMappings = []Mapping{
	{
		// Canonical nested shape, mirrors api.GridDTO.
		Shape:   "grid",
		Version: 2,
		Line:    commission.LineGeneral,
		Fields: map[Field]string{
			FieldID:             "id",
			FieldProvider:       "provider",
			FieldProductType:    "product_type",
			FieldProductSubtype: "product_subtype",
			FieldPremiumMin:     "premium_range.min",
			FieldPremiumMax:     "premium_range.max",
			FieldBaseRate:       "base.rate",
			FieldBaseFrom:       "base.from",
			FieldBaseTo:         "base.to",
			FieldRewardRate:     "reward.rate",
			FieldRewardFrom:     "reward.from",
			FieldRewardTo:       "reward.to",
			FieldBonusRate:      "bonus.rate",
			FieldBonusFrom:      "bonus.from",
			FieldBonusTo:        "bonus.to",
			FieldActive:         "is_active",
		},
		Required: gridRequired,
	},
	{
		// Generic commission_rules table: one effective range shared by the
		// base rate, separate ranges for reward and bonus.
		Shape:   "commission_rules",
		Version: 1,
		Line:    commission.LineGeneral,
		Fields: map[Field]string{
			FieldID:             "id",
			FieldProvider:       "provider_id",
			FieldProductType:    "product_type",
			FieldProductSubtype: "product_subtype",
			FieldPremiumMin:     "min_premium",
			FieldPremiumMax:     "max_premium",
			FieldBaseRate:       "commission_rate",
			FieldBaseFrom:       "effective_from",
			FieldBaseTo:         "effective_to",
			FieldRewardRate:     "reward_rate",
			FieldRewardFrom:     "reward_effective_from",
			FieldRewardTo:       "reward_effective_to",
			FieldBonusRate:      "bonus_rate",
			FieldBonusFrom:      "bonus_effective_from",
			FieldBonusTo:        "bonus_effective_to",
			FieldActive:         "is_active",
		},
		Required: gridRequired,
	},
	{
		Shape:       "motor_payout_grid",
		Version:     1,
		Line:        commission.LineMotor,
		ProductType: motor.ProductType,
		Fields: map[Field]string{
			FieldID:             "id",
			FieldProvider:       "insurer",
			FieldProductSubtype: "vehicle_type",
			FieldPremiumMin:     "premium_min",
			FieldPremiumMax:     "premium_max",
			FieldBaseRate:       "base_payout",
			FieldBaseFrom:       "base_start",
			FieldBaseTo:         "base_end",
			FieldRewardRate:     "reward_payout",
			FieldRewardFrom:     "reward_start",
			FieldRewardTo:       "reward_end",
			FieldBonusRate:      "bonus_payout",
			FieldBonusFrom:      "bonus_start",
			FieldBonusTo:        "bonus_end",
			FieldActive:         "active",
		},
		Required: gridRequired,
	},
	{
		Shape:       "health_payout_grid",
		Version:     1,
		Line:        commission.LineHealth,
		ProductType: health.ProductType,
		Fields: map[Field]string{
			FieldID:             "id",
			FieldProvider:       "insurer_name",
			FieldProductSubtype: "plan_type",
			FieldPremiumMin:     "premium_from",
			FieldPremiumMax:     "premium_to",
			FieldBaseRate:       "base_percentage",
			FieldBaseFrom:       "base_valid_from",
			FieldBaseTo:         "base_valid_to",
			FieldRewardRate:     "reward_percentage",
			FieldRewardFrom:     "reward_valid_from",
			FieldRewardTo:       "reward_valid_to",
			FieldBonusRate:      "bonus_percentage",
			FieldBonusFrom:      "bonus_valid_from",
			FieldBonusTo:        "bonus_valid_to",
			FieldActive:         "status",
		},
		Required: gridRequired,
	},
}

// =============================================================================
// GRID FACTORY
// =============================================================================

// GridFactory converts grid rows into commission.GridEntry values.
type GridFactory struct {
	reg *registry
}

// NewGridFactory builds a factory over the built-in shapes.
// Panics if a built-in mapping is invalid.
func NewGridFactory() *GridFactory {
	f, err := NewGridFactoryWith(GridMappings...)
	if err != nil {
		panic(err)
	}
	return f
}

// NewGridFactoryWith builds a factory over the given mappings, validating each.
func NewGridFactoryWith(mappings ...Mapping) (*GridFactory, error) {
	reg, err := newRegistry(gridFields, mappings)
	if err != nil {
		return nil, err
	}
	return &GridFactory{reg: reg}, nil
}

// Shapes lists the registered shape keys.
func (f *GridFactory) Shapes() []string { return f.reg.shapes() }

// ParseRow maps one row to a grid entry owned by scope and validates it.
// The ID is empty when the shape carries none; the caller assigns one.
func (f *GridFactory) ParseRow(shape string, scope commission.Scope, raw json.RawMessage) (commission.GridEntry, error) {
	m, err := f.reg.lookup(shape)
	if err != nil {
		return commission.GridEntry{}, err
	}
	r, err := decodeRow(m, raw)
	if err != nil {
		return commission.GridEntry{}, err
	}

	entry, err := r.gridEntry()
	if err != nil {
		return commission.GridEntry{}, err
	}
	entry.Scope = scope
	if err := entry.Validate(); err != nil {
		return commission.GridEntry{}, err
	}
	return entry, nil
}

// ParseRows maps every row or none. The first failure is returned as *RowError.
func (f *GridFactory) ParseRows(shape string, scope commission.Scope, rows []json.RawMessage) ([]commission.GridEntry, error) {
	entries := make([]commission.GridEntry, 0, len(rows))
	for i, raw := range rows {
		entry, err := f.ParseRow(shape, scope, raw)
		if err != nil {
			return nil, &RowError{Row: i, Err: err}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *row) gridEntry() (commission.GridEntry, error) {
	var (
		e   = commission.GridEntry{Line: r.mapping.Line}
		err error
	)

	if e.ID, err = r.str(FieldID); err != nil {
		return e, err
	}
	if e.Provider, err = r.str(FieldProvider); err != nil {
		return e, err
	}
	if r.mapping.ProductType != "" {
		e.ProductType = r.mapping.ProductType
	} else if e.ProductType, err = r.str(FieldProductType); err != nil {
		return e, err
	}
	if e.Line == commission.LineGeneral {
		e.Line = commission.ParseLine(e.ProductType)
	}
	if e.ProductSubtype, err = r.str(FieldProductSubtype); err != nil {
		return e, err
	}
	if e.PremiumRange.Min, err = r.decimal(FieldPremiumMin); err != nil {
		return e, err
	}
	if e.PremiumRange.Max, err = r.decimal(FieldPremiumMax); err != nil {
		return e, err
	}
	if e.Base, err = r.component(FieldBaseRate, FieldBaseFrom, FieldBaseTo); err != nil {
		return e, err
	}
	if e.Reward, err = r.component(FieldRewardRate, FieldRewardFrom, FieldRewardTo); err != nil {
		return e, err
	}
	if e.Bonus, err = r.component(FieldBonusRate, FieldBonusFrom, FieldBonusTo); err != nil {
		return e, err
	}
	if e.IsActive, err = r.boolean(FieldActive, true); err != nil {
		return e, err
	}
	return e, nil
}

func (r *row) component(rate, from, to Field) (commission.RateComponent, error) {
	var (
		c   commission.RateComponent
		err error
	)
	if c.Rate, err = r.rate(rate); err != nil {
		return c, err
	}
	if c.Effective.From, err = r.date(from); err != nil {
		return c, err
	}
	if c.Effective.To, err = r.date(to); err != nil {
		return c, err
	}
	return c, nil
}
