/*
scenarios.go - Demo grid loaders for testing and demonstrations

PURPOSE:

	Provides pre-built grids that populate the caller's scope with realistic
	data for testing and demos. Each scenario imports rows through the same
	factory shapes an admin import uses, so loading one also exercises the
	mappings.

AVAILABLE SCENARIOS:

	reference-grid: One motor band with a March reward window
	motor-bands:    Motor grid by vehicle type with premium bands
	health-tiers:   Health grid with tiered base rates and standing bonuses
	mixed-lines:    Motor, health and a legacy commission_rules row together

HOW SCENARIOS WORK:
 1. Reset the caller's scope (grids, policies, quotes)
 2. Build rows with the motor/health presets or raw JSON
 3. Parse them through the factory
 4. Save every entry in one batch

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "motor-bands"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add its row sets to scenarioRows

NOTE:

	Scenarios reset the scope. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Grid import endpoint
  - motor/grids.go, health/types.go: Row presets
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/health"
	"github.com/warp/commission-engine/motor"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "reference-grid",
		Name:        "Reference Grid",
		Description: "P1 motor at 10% for premiums up to 50,000, plus a 3% reward during March 2024",
		Category:    "motor",
	},
	{
		ID:          "motor-bands",
		Name:        "Motor Bands",
		Description: "Private car bands, two-wheelers, and a seasonal taxi reward",
		Category:    "motor",
	},
	{
		ID:          "health-tiers",
		Name:        "Health Tiers",
		Description: "Tiered base rates by premium with a standing bonus on larger plans",
		Category:    "health",
	},
	{
		ID:          "mixed-lines",
		Name:        "Mixed Lines",
		Description: "Motor and health grids plus a legacy commission_rules travel row",
		Category:    "mixed",
	},
}

// rowSet is one batch of rows in a single shape.
type rowSet struct {
	shape string
	rows  []json.RawMessage
}

func motorRows(rows ...json.RawMessage) rowSet {
	return rowSet{shape: "motor_payout_grid/v1", rows: rows}
}

func healthRows(rows ...json.RawMessage) rowSet {
	return rowSet{shape: "health_payout_grid/v1", rows: rows}
}

func referenceRows() []rowSet {
	row := motor.PayoutRow{
		ID:           "ref-p1-motor",
		Insurer:      "P1",
		PremiumMin:   "0",
		PremiumMax:   "50000",
		BasePayout:   "10",
		BaseStart:    "2024-01-01",
		RewardPayout: "3",
		RewardStart:  "2024-03-01",
		RewardEnd:    "2024-03-31",
		Active:       true,
	}
	return []rowSet{motorRows(row.JSON())}
}

func motorBandRows() []rowSet {
	return []rowSet{motorRows(
		motor.StandardPayoutJSON("car-p1-low", "P1", motor.PrivateCar, "0", "50000", "10", "2024-01-01"),
		motor.StandardPayoutJSON("car-p1-high", "P1", motor.PrivateCar, "50000", "", "8", "2024-01-01"),
		motor.StandardPayoutJSON("tw-p1", "P1", motor.TwoWheeler, "", "", "12.5", "2024-01-01"),
		motor.StandardPayoutJSON("cv-p2", "P2", motor.CommercialVehicle, "0", "200000", "6", "2024-04-01"),
		motor.SeasonalPayoutJSON("taxi-p2", "P2", motor.Taxi, "7", "2024-01-01", "2", "2024-10-01", "2024-12-31"),
	)}
}

func healthTierRows() []rowSet {
	return []rowSet{healthRows(
		health.TieredPayoutJSON("ind-h1-1", "H1", health.Individual, "0", "20000", "15", "0", "2024-04-01"),
		health.TieredPayoutJSON("ind-h1-2", "H1", health.Individual, "20000", "", "17.5", "2.5", "2024-04-01"),
		health.TieredPayoutJSON("fam-h1", "H1", health.FamilyFloater, "", "", "18", "2", "2024-04-01"),
		health.TieredPayoutJSON("sen-h2", "H2", health.SeniorCitizen, "", "", "12", "0", "2024-04-01"),
		health.TieredPayoutJSON("top-h2", "H2", health.TopUp, "", "", "20", "0", "2024-04-01"),
	)}
}

func mixedRows() []rowSet {
	legacy := json.RawMessage(`{
		"id": "travel-p3",
		"provider_id": "P3",
		"product_type": "travel",
		"commission_rate": "9",
		"effective_from": "2024-01-01",
		"bonus_rate": "1",
		"bonus_effective_from": "2024-07-01",
		"bonus_effective_to": "2024-08-31",
		"is_active": 1
	}`)

	sets := append(motorBandRows(), healthTierRows()...)
	return append(sets, rowSet{shape: "commission_rules/v1", rows: []json.RawMessage{legacy}})
}

var scenarioRows = map[string]func() []rowSet{
	"reference-grid": referenceRows,
	"motor-bands":    motorBandRows,
	"health-tiers":   healthTierRows,
	"mixed-lines":    mixedRows,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario replaces the caller's scope with a predefined grid.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	build, ok := scenarioRows[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	scope := ScopeFrom(ctx)

	if err := h.resetScope(ctx, scope); err != nil {
		h.fail(w, r, "Failed to reset scope", err)
		return
	}

	loaded, err := h.loadRows(ctx, scope, build())
	if err != nil {
		h.fail(w, r, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.Log.WithField("scope", scope).WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"entries":  loaded,
	})
}

// ResetScenario clears the caller's scope.
func (h *Handler) ResetScenario(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFrom(r.Context())
	if err := h.resetScope(r.Context(), scope); err != nil {
		h.fail(w, r, "Failed to reset scope", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadRows(ctx context.Context, scope commission.Scope, sets []rowSet) (int, error) {
	var entries []commission.GridEntry
	for _, set := range sets {
		parsed, err := h.GridFactory.ParseRows(set.shape, scope, set.rows)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", set.shape, err)
		}
		entries = append(entries, parsed...)
	}

	if err := h.saveAll(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// invalidator is implemented by grid caches.
type invalidator interface {
	Invalidate(scope commission.Scope)
}

func (h *Handler) resetScope(ctx context.Context, scope commission.Scope) error {
	if err := h.Store.ResetScope(ctx, scope); err != nil {
		return err
	}
	if inv, ok := h.Grids.(invalidator); ok {
		inv.Invalidate(scope)
	}
	return nil
}
