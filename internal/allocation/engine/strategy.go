package engine

import (
	"sort"

	"github.com/medflow/allocation-engine/pkg/errors"
)

// Strategy identifies a deterministic consumption ordering over a batch pool.
type Strategy string

const (
	// StrategyStrictFEFO consumes strictly in expiry order. Zero FEFO
	// violations by construction.
	StrategyStrictFEFO Strategy = "strict_fefo"
	// StrategyMinimizeCost consumes the cheapest lots first, accepting
	// whatever FEFO violations that produces.
	StrategyMinimizeCost Strategy = "minimize_cost"
	// StrategyFEFOCostBalanced blends expiry order and cost via a
	// weighted rank score.
	StrategyFEFOCostBalanced Strategy = "fefo_cost_balanced"
	// StrategyMinimumLots touches the fewest physical lots by draining
	// the largest ones first.
	StrategyMinimumLots Strategy = "minimum_lots"
)

// AllStrategies returns the built-in strategies in declaration order.
// Declaration order is the final tie-break of the scenario comparator.
func AllStrategies() []Strategy {
	return []Strategy{
		StrategyStrictFEFO,
		StrategyMinimizeCost,
		StrategyFEFOCostBalanced,
		StrategyMinimumLots,
	}
}

// String returns the strategy name
func (s Strategy) String() string { return string(s) }

// IsValid reports whether s is a built-in strategy
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyStrictFEFO, StrategyMinimizeCost, StrategyFEFOCostBalanced, StrategyMinimumLots:
		return true
	}
	return false
}

// Description returns a human-readable summary of the strategy
func (s Strategy) Description() string {
	switch s {
	case StrategyStrictFEFO:
		return "Consume batches strictly in expiry order (first expired, first out)"
	case StrategyMinimizeCost:
		return "Consume the cheapest batches first, regardless of expiry order"
	case StrategyFEFOCostBalanced:
		return "Balance expiry order against unit cost using weighted rank scores"
	case StrategyMinimumLots:
		return "Touch as few physical lots as possible by draining the largest batches first"
	}
	return ""
}

// Weights controls the fefo_cost_balanced score. The two weights must sum
// to a positive value; they are normalized before use.
type Weights struct {
	FEFO float64 `json:"fefo"`
	Cost float64 `json:"cost"`
}

// DefaultWeights is the out-of-the-box balance: expiry order dominates.
var DefaultWeights = Weights{FEFO: 0.6, Cost: 0.4}

func (w Weights) normalized() (Weights, error) {
	if w.FEFO < 0 || w.Cost < 0 {
		return Weights{}, errors.InvalidRequest("strategy weights must not be negative")
	}
	sum := w.FEFO + w.Cost
	if sum <= 0 {
		return Weights{}, errors.InvalidRequest("strategy weights must sum to a positive value")
	}
	return Weights{FEFO: w.FEFO / sum, Cost: w.Cost / sum}, nil
}

// orderPool returns a new slice holding a stable permutation of pool in the
// strategy's consumption order. The input is never modified.
func orderPool(pool []BatchRecord, strategy Strategy, weights Weights) ([]BatchRecord, error) {
	ordered := make([]BatchRecord, len(pool))
	copy(ordered, pool)

	switch strategy {
	case StrategyStrictFEFO:
		sort.SliceStable(ordered, func(i, j int) bool {
			return lessFEFO(&ordered[i], &ordered[j])
		})

	case StrategyMinimizeCost:
		sort.SliceStable(ordered, func(i, j int) bool {
			a, b := &ordered[i], &ordered[j]
			if cmp := a.UnitCost.Cmp(b.UnitCost); cmp != 0 {
				return cmp < 0
			}
			return lessFEFO(a, b)
		})

	case StrategyFEFOCostBalanced:
		w, err := weights.normalized()
		if err != nil {
			return nil, err
		}
		scores := balancedScores(ordered, w)
		sort.SliceStable(ordered, func(i, j int) bool {
			a, b := &ordered[i], &ordered[j]
			sa, sb := scores[a.ID], scores[b.ID]
			if sa != sb {
				return sa < sb
			}
			return lessFEFO(a, b)
		})

	case StrategyMinimumLots:
		sort.SliceStable(ordered, func(i, j int) bool {
			a, b := &ordered[i], &ordered[j]
			if cmp := a.AvailableQuantity.Cmp(b.AvailableQuantity); cmp != 0 {
				return cmp > 0
			}
			return lessFEFO(a, b)
		})

	default:
		return nil, errors.InvalidRequestf("unknown allocation strategy %q", strategy)
	}

	return ordered, nil
}

// lessFEFO orders by expiry key ascending, then by ID for determinism.
// Batches without a key carry the OrderKeyNone sentinel and sort last.
func lessFEFO(a, b *BatchRecord) bool {
	if a.OrderKey != b.OrderKey {
		return a.OrderKey < b.OrderKey
	}
	return a.ID < b.ID
}

// balancedScores computes the fefo_cost_balanced score per batch ID:
// score = w.FEFO*rank(orderKey) + w.Cost*rank(unitCost), with each rank
// normalized to [0,1] within the pool. Lower scores are consumed first.
// Equal keys (or equal costs) share a rank, so ties fall through to the
// FEFO tie-break deterministically.
func balancedScores(pool []BatchRecord, w Weights) map[string]float64 {
	scores := make(map[string]float64, len(pool))
	if len(pool) == 0 {
		return scores
	}

	keyRanks := normalizedRanks(pool, func(a, b *BatchRecord) bool {
		return a.OrderKey < b.OrderKey
	})
	costRanks := normalizedRanks(pool, func(a, b *BatchRecord) bool {
		return a.UnitCost.Cmp(b.UnitCost) < 0
	})

	for i := range pool {
		id := pool[i].ID
		scores[id] = w.FEFO*keyRanks[id] + w.Cost*costRanks[id]
	}
	return scores
}

// normalizedRanks assigns each batch the fraction of pool members strictly
// below it under less, normalized by len(pool)-1. A single-batch pool ranks 0.
func normalizedRanks(pool []BatchRecord, less func(a, b *BatchRecord) bool) map[string]float64 {
	ranks := make(map[string]float64, len(pool))
	denom := float64(len(pool) - 1)
	if denom <= 0 {
		for i := range pool {
			ranks[pool[i].ID] = 0
		}
		return ranks
	}

	for i := range pool {
		below := 0
		for j := range pool {
			if less(&pool[j], &pool[i]) {
				below++
			}
		}
		ranks[pool[i].ID] = float64(below) / denom
	}
	return ranks
}
