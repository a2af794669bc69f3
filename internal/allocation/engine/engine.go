package engine

import (
	"github.com/shopspring/decimal"

	"github.com/medflow/allocation-engine/pkg/errors"
)

// AllocationLine is one consumed batch inside an Allocation.
type AllocationLine struct {
	BatchID       string          `json:"batch_id"`
	QuantityTaken decimal.Decimal `json:"quantity_taken"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	LineCost      decimal.Decimal `json:"line_cost"`
	// Rank is the 1-based position in the strategy's consumption order.
	Rank      int    `json:"rank"`
	OrderKey  int64  `json:"order_key"`
	Warehouse string `json:"warehouse,omitempty"`
}

// Allocation is the result of one allocate call. It is never mutated after
// construction; validators and detectors produce separate reports.
type Allocation struct {
	Lines             []AllocationLine `json:"lines"`
	RequestedQuantity decimal.Decimal  `json:"requested_quantity"`
	FulfilledQuantity decimal.Decimal  `json:"fulfilled_quantity"`
	Shortfall         decimal.Decimal  `json:"shortfall"`
	TotalCost         decimal.Decimal  `json:"total_cost"`
	Strategy          Strategy         `json:"strategy_used"`
}

// Engine allocates required quantities against batch pools. It holds only
// tuning (balanced-strategy weights); every call is an independent,
// side-effect-free computation, safe for concurrent use.
type Engine struct {
	weights Weights
}

// New creates an engine with the default balanced-strategy weights.
func New() *Engine {
	return &Engine{weights: DefaultWeights}
}

// NewWithWeights creates an engine with caller-supplied weights for the
// fefo_cost_balanced strategy. Weights that do not sum to a positive value
// are rejected.
func NewWithWeights(w Weights) (*Engine, error) {
	if _, err := w.normalized(); err != nil {
		return nil, err
	}
	return &Engine{weights: w}, nil
}

// Weights returns the engine's balanced-strategy weights.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Allocate decides which batches to consume, and in what amounts, to cover
// required under the given strategy.
//
// Ineligible batches, excluded IDs (from both the parameter and the
// constraint set) and batches failing the warehouse or shelf-life
// constraints never enter the ordering. A shortfall is a legitimate result,
// not an error; only malformed input (negative quantity, unknown strategy,
// degenerate weights) is rejected. The constraint set's max_lines is
// deliberately not enforced here: the allocator returns the full greedy
// plan and the validator reports the breach, so callers can see why a plan
// is infeasible instead of getting a silently truncated one.
func (e *Engine) Allocate(pool []BatchRecord, required decimal.Decimal, strategy Strategy, excludeIDs []string, constraints *ConstraintSet) (*Allocation, error) {
	if !strategy.IsValid() {
		return nil, errors.InvalidRequestf("unknown allocation strategy %q", strategy)
	}
	if required.IsNegative() {
		return nil, errors.InvalidRequest("required quantity must not be negative")
	}

	alloc := &Allocation{
		Lines:             []AllocationLine{},
		RequestedQuantity: required,
		FulfilledQuantity: decimal.Zero,
		Shortfall:         decimal.Zero,
		TotalCost:         decimal.Zero,
		Strategy:          strategy,
	}

	// Zero-quantity requests are valid no-ops.
	if required.IsZero() {
		return alloc, nil
	}

	eligible := filterPool(pool, excludeIDs, constraints)

	ordered, err := orderPool(eligible, strategy, e.weights)
	if err != nil {
		return nil, err
	}

	remaining := required
	for i := range ordered {
		if !remaining.IsPositive() {
			break
		}
		batch := &ordered[i]

		take := decimal.Min(batch.AvailableQuantity, remaining)
		if !take.IsPositive() {
			continue
		}

		alloc.Lines = append(alloc.Lines, AllocationLine{
			BatchID:       batch.ID,
			QuantityTaken: take,
			UnitCost:      batch.UnitCost,
			LineCost:      take.Mul(batch.UnitCost),
			Rank:          len(alloc.Lines) + 1,
			OrderKey:      batch.OrderKey,
			Warehouse:     batch.Warehouse,
		})

		alloc.FulfilledQuantity = alloc.FulfilledQuantity.Add(take)
		alloc.TotalCost = alloc.TotalCost.Add(take.Mul(batch.UnitCost))
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		alloc.Shortfall = remaining
	}

	return alloc, nil
}

// filterPool drops batches the allocation may never touch. The returned
// slice is new; the input pool is untouched.
func filterPool(pool []BatchRecord, excludeIDs []string, constraints *ConstraintSet) []BatchRecord {
	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	eligible := make([]BatchRecord, 0, len(pool))
	for i := range pool {
		b := &pool[i]
		if !b.Eligible {
			continue
		}
		if _, ok := excluded[b.ID]; ok {
			continue
		}
		if constraints.excludes(b.ID) {
			continue
		}
		if !constraints.AllowsWarehouse(b.Warehouse) {
			continue
		}
		if !constraints.MeetsShelfLife(b) {
			continue
		}
		if !b.AvailableQuantity.IsPositive() {
			continue
		}
		eligible = append(eligible, *b)
	}
	return eligible
}
