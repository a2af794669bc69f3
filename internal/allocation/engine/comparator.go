package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/medflow/allocation-engine/pkg/errors"
)

// DefaultCostTolerance is the relative band within which two strategies'
// total costs are treated as tied (0.10 = within 10% of the cheapest).
const DefaultCostTolerance = 0.10

// StrategySummary is the per-strategy row of a scenario comparison.
type StrategySummary struct {
	Strategy       Strategy         `json:"strategy"`
	TotalCost      decimal.Decimal  `json:"total_cost"`
	LineCount      int              `json:"line_count"`
	Shortfall      decimal.Decimal  `json:"shortfall"`
	ViolationCount int              `json:"violation_count"`
	EarliestKey    *int64           `json:"earliest_order_key_used,omitempty"`
	Valid          bool             `json:"valid"`
	Allocation     *Allocation      `json:"allocation"`
	Validation     ValidationResult `json:"validation"`
	Violations     ViolationReport  `json:"violations"`
}

// ScenarioComparison ranks several strategies over the same pool snapshot.
type ScenarioComparison struct {
	Summaries   []StrategySummary `json:"summaries"`
	Recommended Strategy          `json:"recommended"`
	Reason      string            `json:"reason"`
}

// Comparator runs the engine once per strategy over an identical pool
// snapshot and recommends one strategy deterministically.
type Comparator struct {
	engine        *Engine
	costTolerance float64
}

// NewComparator creates a comparator with the default cost tolerance.
func NewComparator(eng *Engine) *Comparator {
	return &Comparator{engine: eng, costTolerance: DefaultCostTolerance}
}

// NewComparatorWithTolerance creates a comparator with a caller-supplied
// relative cost tolerance. Negative tolerances are rejected.
func NewComparatorWithTolerance(eng *Engine, tolerance float64) (*Comparator, error) {
	if tolerance < 0 {
		return nil, errors.InvalidRequest("cost tolerance must not be negative")
	}
	return &Comparator{engine: eng, costTolerance: tolerance}, nil
}

// Compare allocates once per strategy against the same unmodified pool,
// validates and violation-checks each result, and recommends a strategy:
// constraint-invalid plans are discarded first, then plans with shortfall
// (unless every plan has one), then the cheapest wins with costs inside the
// tolerance band treated as tied, broken by fewest FEFO violations and
// finally by strategy declaration order.
func (c *Comparator) Compare(pool []BatchRecord, required decimal.Decimal, strategies []Strategy, constraints *ConstraintSet) (*ScenarioComparison, error) {
	if len(strategies) == 0 {
		strategies = AllStrategies()
	}

	comparison := &ScenarioComparison{Summaries: make([]StrategySummary, 0, len(strategies))}

	for _, strategy := range strategies {
		alloc, err := c.engine.Allocate(pool, required, strategy, nil, constraints)
		if err != nil {
			return nil, err
		}

		validation := ValidateAllocation(alloc, pool, constraints)
		violations := CountFEFOViolations(alloc, pool, nil, constraints)

		comparison.Summaries = append(comparison.Summaries, StrategySummary{
			Strategy:       strategy,
			TotalCost:      alloc.TotalCost,
			LineCount:      len(alloc.Lines),
			Shortfall:      alloc.Shortfall,
			ViolationCount: violations.Count,
			EarliestKey:    earliestKey(alloc),
			Valid:          validation.Valid,
			Allocation:     alloc,
			Validation:     validation,
			Violations:     violations,
		})
	}

	c.recommend(comparison)
	return comparison, nil
}

func (c *Comparator) recommend(comparison *ScenarioComparison) {
	candidates := make([]*StrategySummary, 0, len(comparison.Summaries))
	for i := range comparison.Summaries {
		if comparison.Summaries[i].Valid {
			candidates = append(candidates, &comparison.Summaries[i])
		}
	}

	noneValid := len(candidates) == 0
	if noneValid {
		// Rank every plan anyway so callers still get a least-bad answer.
		for i := range comparison.Summaries {
			candidates = append(candidates, &comparison.Summaries[i])
		}
	}

	fulfilled := make([]*StrategySummary, 0, len(candidates))
	for _, s := range candidates {
		if s.Shortfall.IsZero() {
			fulfilled = append(fulfilled, s)
		}
	}
	allShort := len(fulfilled) == 0
	if !allShort {
		candidates = fulfilled
	}

	if len(candidates) == 0 {
		return
	}

	minCost := candidates[0].TotalCost
	for _, s := range candidates[1:] {
		if s.TotalCost.LessThan(minCost) {
			minCost = s.TotalCost
		}
	}
	threshold := minCost.Mul(decimal.NewFromFloat(1 + c.costTolerance))

	tied := make([]*StrategySummary, 0, len(candidates))
	for _, s := range candidates {
		if s.TotalCost.LessThanOrEqual(threshold) {
			tied = append(tied, s)
		}
	}

	// Full ties fall back to declaration order, regardless of the order
	// the caller listed the strategies in.
	winner := tied[0]
	for _, s := range tied[1:] {
		if s.ViolationCount < winner.ViolationCount {
			winner = s
			continue
		}
		if s.ViolationCount == winner.ViolationCount &&
			declarationIndex(s.Strategy) < declarationIndex(winner.Strategy) {
			winner = s
		}
	}

	comparison.Recommended = winner.Strategy
	comparison.Reason = c.reason(winner, minCost, len(tied), noneValid, allShort)
}

func (c *Comparator) reason(winner *StrategySummary, minCost decimal.Decimal, tiedCount int, noneValid, allShort bool) string {
	var reason string
	cheapest := winner.TotalCost.Equal(minCost)

	switch {
	case cheapest && winner.ViolationCount == 0:
		reason = "lowest cost with zero FEFO violations"
	case winner.ViolationCount == 0:
		reason = fmt.Sprintf("zero FEFO violations at a total cost within %.0f%% of the cheapest alternative", c.costTolerance*100)
	case cheapest && tiedCount == 1:
		reason = "lowest total cost"
	default:
		reason = "fewest FEFO violations among cost-equivalent strategies"
	}

	if allShort {
		reason += "; requirement exceeds available supply for every strategy"
	}
	if noneValid {
		reason += "; no strategy satisfies all constraints"
	}
	return reason
}

// declarationIndex returns the strategy's position in AllStrategies.
// Unknown strategies sort last.
func declarationIndex(s Strategy) int {
	for i, known := range AllStrategies() {
		if known == s {
			return i
		}
	}
	return len(AllStrategies())
}

func earliestKey(alloc *Allocation) *int64 {
	if len(alloc.Lines) == 0 {
		return nil
	}
	earliest := alloc.Lines[0].OrderKey
	for _, line := range alloc.Lines[1:] {
		if line.OrderKey < earliest {
			earliest = line.OrderKey
		}
	}
	return &earliest
}
