/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

WIRE FORMAT:
  Rates and money are decimal strings ("12.5", "2000.00"), never floats.
  Commission amounts always carry two decimal places. Dates are
  "YYYY-MM-DD". Absent premium bounds and window ends are omitted.

  GridDTO is exactly the grid/v2 row shape, so a grid read from the API can
  be posted back unchanged.

TYPES:
  Grids:     GridDTO, ComponentDTO, RangeDTO, ImportGridsRequest
  Quotes:    QuoteRequestDTO, QuoteDTO, BatchQuoteRequest, BatchItemDTO
  Policies:  PolicyIntakeRequest, PolicyDTO
  Scenarios: ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/grid.go: grid/v2 mapping
*/
package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/store/sqlite"
)

// =============================================================================
// GRID TYPES
// =============================================================================

// GridDTO represents a grid entry in API responses.
type GridDTO struct {
	ID             string       `json:"id"`
	Line           string       `json:"line"`
	Provider       string       `json:"provider"`
	ProductType    string       `json:"product_type"`
	ProductSubtype string       `json:"product_subtype,omitempty"`
	PremiumRange   RangeDTO     `json:"premium_range"`
	Base           ComponentDTO `json:"base"`
	Reward         ComponentDTO `json:"reward"`
	Bonus          ComponentDTO `json:"bonus"`
	IsActive       bool         `json:"is_active"`
}

type RangeDTO struct {
	Min *string `json:"min,omitempty"`
	Max *string `json:"max,omitempty"`
}

type ComponentDTO struct {
	Rate string  `json:"rate"`
	From *string `json:"from,omitempty"`
	To   *string `json:"to,omitempty"`
}

// ImportGridsRequest is a bulk import in any registered grid shape.
type ImportGridsRequest struct {
	Shape string            `json:"shape"`
	Rows  []json.RawMessage `json:"rows"`
}

// ImportGridsResponse reports what an import saved.
type ImportGridsResponse struct {
	Shape    string    `json:"shape"`
	Imported int       `json:"imported"`
	Entries  []GridDTO `json:"entries"`
}

// ShapesDTO lists the registered mapping keys.
type ShapesDTO struct {
	Grid   []string `json:"grid"`
	Policy []string `json:"policy"`
}

// =============================================================================
// QUOTE TYPES
// =============================================================================

// QuoteRequestDTO is the body of POST /api/quotes/resolve.
type QuoteRequestDTO struct {
	Provider       string           `json:"provider"`
	ProductType    string           `json:"product_type"`
	ProductSubtype string           `json:"product_subtype,omitempty"`
	PremiumAmount  *decimal.Decimal `json:"premium_amount"`
	AsOf           string           `json:"as_of,omitempty"` // YYYY-MM-DD, default today
}

// QuoteDTO represents a resolved quote.
type QuoteDTO struct {
	ID               string `json:"id,omitempty"`
	PolicyID         string `json:"policy_id,omitempty"`
	EntryID          string `json:"entry_id"`
	Provider         string `json:"provider"`
	ProductType      string `json:"product_type"`
	ProductSubtype   string `json:"product_subtype,omitempty"`
	PremiumAmount    string `json:"premium_amount"`
	AsOf             string `json:"as_of"`
	EffectiveBase    string `json:"effective_base"`
	EffectiveReward  string `json:"effective_reward"`
	EffectiveBonus   string `json:"effective_bonus"`
	TotalRate        string `json:"total_rate"`
	CommissionAmount string `json:"commission_amount"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// BatchQuoteRequest resolves several quotes against one grid snapshot.
type BatchQuoteRequest struct {
	Quotes []QuoteRequestDTO `json:"quotes"`
}

// BatchItemDTO is one outcome of a batch, in request order.
type BatchItemDTO struct {
	Index  int            `json:"index"`
	Status int            `json:"status"`
	Quote  *QuoteDTO      `json:"quote,omitempty"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// =============================================================================
// POLICY TYPES
// =============================================================================

// PolicyIntakeRequest carries a policy payload in a registered form shape.
type PolicyIntakeRequest struct {
	Shape   string          `json:"shape"`
	Payload json.RawMessage `json:"payload"`
}

// PolicyDTO represents a policy and its commission outcome.
type PolicyDTO struct {
	ID               string    `json:"id"`
	Shape            string    `json:"shape"`
	PolicyNumber     string    `json:"policy_number"`
	Provider         string    `json:"provider"`
	ProductType      string    `json:"product_type"`
	ProductSubtype   string    `json:"product_subtype,omitempty"`
	Premium          string    `json:"premium"`
	IssueDate        string    `json:"issue_date,omitempty"`
	HolderName       string    `json:"holder_name,omitempty"`
	AgentID          string    `json:"agent_id,omitempty"`
	CommissionStatus string    `json:"commission_status"`
	QuoteID          string    `json:"quote_id,omitempty"`
	Quote            *QuoteDTO `json:"quote,omitempty"`
	CreatedAt        string    `json:"created_at,omitempty"`
}

// =============================================================================
// SCENARIO AND ERROR TYPES
// =============================================================================

// ScenarioDTO describes a demo grid set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toGridDTO(e commission.GridEntry) GridDTO {
	return GridDTO{
		ID:             e.ID,
		Line:           string(e.Line),
		Provider:       e.Provider,
		ProductType:    e.ProductType,
		ProductSubtype: e.ProductSubtype,
		PremiumRange: RangeDTO{
			Min: decimalStr(e.PremiumRange.Min),
			Max: decimalStr(e.PremiumRange.Max),
		},
		Base:     toComponentDTO(e.Base),
		Reward:   toComponentDTO(e.Reward),
		Bonus:    toComponentDTO(e.Bonus),
		IsActive: e.IsActive,
	}
}

func toGridDTOs(entries []commission.GridEntry) []GridDTO {
	dtos := make([]GridDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toGridDTO(e)
	}
	return dtos
}

func toComponentDTO(c commission.RateComponent) ComponentDTO {
	return ComponentDTO{
		Rate: c.Rate.String(),
		From: dateStr(c.Effective.From),
		To:   dateStr(c.Effective.To),
	}
}

// toQuoteRequest validates the wire fields the resolver cannot see.
func (d QuoteRequestDTO) toQuoteRequest() (commission.QuoteRequest, error) {
	if d.PremiumAmount == nil {
		return commission.QuoteRequest{}, &commission.InvalidInputError{Field: "premium_amount", Reason: "is required"}
	}
	req := commission.QuoteRequest{
		Provider:       d.Provider,
		ProductType:    d.ProductType,
		ProductSubtype: d.ProductSubtype,
		PremiumAmount:  *d.PremiumAmount,
	}
	if s := strings.TrimSpace(d.AsOf); s != "" {
		asOf, err := commission.ParseDate(s)
		if err != nil {
			return commission.QuoteRequest{}, &commission.InvalidInputError{Field: "as_of", Reason: "must be YYYY-MM-DD"}
		}
		req.AsOf = asOf
	}
	return req, nil
}

func toQuoteDTO(req commission.QuoteRequest, res commission.QuoteResult) QuoteDTO {
	return QuoteDTO{
		EntryID:          res.Entry.ID,
		Provider:         req.Provider,
		ProductType:      req.ProductType,
		ProductSubtype:   req.ProductSubtype,
		PremiumAmount:    req.PremiumAmount.String(),
		AsOf:             res.AsOf.String(),
		EffectiveBase:    res.EffectiveBase.String(),
		EffectiveReward:  res.EffectiveReward.String(),
		EffectiveBonus:   res.EffectiveBonus.String(),
		TotalRate:        res.TotalRate.String(),
		CommissionAmount: res.CommissionAmount.StringFixed(2),
	}
}

func toQuoteRecordDTO(q sqlite.QuoteRecord) QuoteDTO {
	dto := toQuoteDTO(q.Request, q.Result)
	dto.ID = q.ID
	dto.PolicyID = q.PolicyID
	if !q.CreatedAt.IsZero() {
		dto.CreatedAt = q.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toPolicyDTO(p sqlite.StoredPolicy) PolicyDTO {
	dto := PolicyDTO{
		ID:               p.ID,
		Shape:            p.Shape,
		PolicyNumber:     p.PolicyNumber,
		Provider:         p.Provider,
		ProductType:      p.ProductType,
		ProductSubtype:   p.ProductSubtype,
		Premium:          p.Premium.String(),
		HolderName:       p.HolderName,
		AgentID:          p.AgentID,
		CommissionStatus: p.CommissionStatus,
		QuoteID:          p.QuoteID,
	}
	if !p.IssueDate.IsZero() {
		dto.IssueDate = p.IssueDate.String()
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func decimalStr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func dateStr(d *commission.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
