package scoring

import "fmt"

// Plan is the difficulty tier that decides how a challenge's refund is computed.
type Plan string

const (
	PlanBasic        Plan = "basic"
	PlanIntermediate Plan = "intermediate"
	PlanAdvanced     Plan = "advanced"
)

// planOrder is the unlock order. Index 0 is always available.
var planOrder = []Plan{PlanBasic, PlanIntermediate, PlanAdvanced}

func (p Plan) rank() int {
	for i, candidate := range planOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is one of the known tiers.
func (p Plan) Valid() bool {
	return p.rank() >= 0
}

// Next returns the tier unlocked by completing p. Advanced has no successor.
func (p Plan) Next() (Plan, bool) {
	r := p.rank()
	if r < 0 || r+1 >= len(planOrder) {
		return "", false
	}
	return planOrder[r+1], true
}

// ParsePlan converts a stored or user supplied value into a Plan.
func ParsePlan(s string) (Plan, error) {
	p := Plan(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, s)
	}
	return p, nil
}

// DisplayName is the label shown on the completion screen.
func (p Plan) DisplayName() string {
	switch p {
	case PlanBasic:
		return "初級"
	case PlanIntermediate:
		return "中級"
	case PlanAdvanced:
		return "上級"
	default:
		return string(p)
	}
}
