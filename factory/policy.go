package factory

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/health"
	"github.com/warp/commission-engine/motor"
)

// =============================================================================
// POLICY RECORD - Canonical policy produced from any intake form
// =============================================================================

// PolicyRecord is a normalized policy, the input to commission resolution.
type PolicyRecord struct {
	ID             string
	Scope          commission.Scope
	Shape          string
	PolicyNumber   string
	Provider       string
	ProductType    string
	ProductSubtype string
	Premium        decimal.Decimal
	IssueDate      commission.Date // Zero = resolve as of today
	HolderName     string
	AgentID        string
}

// QuoteRequest builds the commission request for this policy.
func (p PolicyRecord) QuoteRequest() commission.QuoteRequest {
	return commission.QuoteRequest{
		Provider:       p.Provider,
		ProductType:    p.ProductType,
		ProductSubtype: p.ProductSubtype,
		PremiumAmount:  p.Premium,
		AsOf:           p.IssueDate,
	}
}

// =============================================================================
// POLICY FIELDS AND SHAPES
// =============================================================================

const (
	FieldPolicyNumber Field = "policy_number"
	FieldPremium      Field = "premium"
	FieldIssueDate    Field = "issue_date"
	FieldHolderName   Field = "holder_name"
	FieldAgentID      Field = "agent_id"
)

var policyFields = map[Field]bool{
	FieldPolicyNumber: true, FieldProvider: true, FieldProductType: true,
	FieldProductSubtype: true, FieldPremium: true, FieldIssueDate: true,
	FieldHolderName: true, FieldAgentID: true,
}

var policyRequired = []Field{FieldPolicyNumber, FieldProvider, FieldProductType, FieldPremium}

// PolicyMappings are the built-in policy intake shapes.
var PolicyMappings = []Mapping{
	{
		Shape:   "policy",
		Version: 1,
		Line:    commission.LineGeneral,
		Fields: map[Field]string{
			FieldPolicyNumber:   "policy_number",
			FieldProvider:       "provider",
			FieldProductType:    "product_type",
			FieldProductSubtype: "product_subtype",
			FieldPremium:        "premium",
			FieldIssueDate:      "issue_date",
			FieldHolderName:     "holder_name",
			FieldAgentID:        "agent_id",
		},
		Required: policyRequired,
	},
	{
		Shape:       "motor-form",
		Version:     1,
		Line:        commission.LineMotor,
		ProductType: motor.ProductType,
		Fields: map[Field]string{
			FieldPolicyNumber:   "policyNumber",
			FieldProvider:       "insurer",
			FieldProductSubtype: "vehicle.category",
			FieldPremium:        "netPremium",
			FieldIssueDate:      "policyStartDate",
			FieldHolderName:     "customer.name",
			FieldAgentID:        "agentId",
		},
		Required: policyRequired,
	},
	{
		Shape:       "health-form",
		Version:     1,
		Line:        commission.LineHealth,
		ProductType: health.ProductType,
		Fields: map[Field]string{
			FieldPolicyNumber:   "policy_no",
			FieldProvider:       "insurance_company",
			FieldProductSubtype: "plan.type",
			FieldPremium:        "premium_amount",
			FieldIssueDate:      "start_date",
			FieldHolderName:     "proposer_name",
			FieldAgentID:        "agent_code",
		},
		Required: policyRequired,
	},
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory normalizes intake payloads into PolicyRecords.
type PolicyFactory struct {
	reg *registry
}

// NewPolicyFactory builds a factory over the built-in shapes.
// Panics if a built-in mapping is invalid.
func NewPolicyFactory() *PolicyFactory {
	f, err := NewPolicyFactoryWith(PolicyMappings...)
	if err != nil {
		panic(err)
	}
	return f
}

func NewPolicyFactoryWith(mappings ...Mapping) (*PolicyFactory, error) {
	reg, err := newRegistry(policyFields, mappings)
	if err != nil {
		return nil, err
	}
	return &PolicyFactory{reg: reg}, nil
}

func (f *PolicyFactory) Shapes() []string { return f.reg.shapes() }

// Normalize maps one payload to a PolicyRecord owned by scope.
func (f *PolicyFactory) Normalize(shape string, scope commission.Scope, raw json.RawMessage) (PolicyRecord, error) {
	m, err := f.reg.lookup(shape)
	if err != nil {
		return PolicyRecord{}, err
	}
	r, err := decodeRow(m, raw)
	if err != nil {
		return PolicyRecord{}, err
	}

	p := PolicyRecord{Scope: scope, Shape: m.Key()}
	if p.PolicyNumber, err = r.str(FieldPolicyNumber); err != nil {
		return PolicyRecord{}, err
	}
	if p.Provider, err = r.str(FieldProvider); err != nil {
		return PolicyRecord{}, err
	}
	if m.ProductType != "" {
		p.ProductType = m.ProductType
	} else if p.ProductType, err = r.str(FieldProductType); err != nil {
		return PolicyRecord{}, err
	}
	if p.ProductSubtype, err = r.str(FieldProductSubtype); err != nil {
		return PolicyRecord{}, err
	}
	if p.Premium, err = r.rate(FieldPremium); err != nil {
		return PolicyRecord{}, err
	}
	issue, err := r.date(FieldIssueDate)
	if err != nil {
		return PolicyRecord{}, err
	}
	if issue != nil {
		p.IssueDate = *issue
	}
	if p.HolderName, err = r.str(FieldHolderName); err != nil {
		return PolicyRecord{}, err
	}
	if p.AgentID, err = r.str(FieldAgentID); err != nil {
		return PolicyRecord{}, err
	}
	return p, nil
}
