package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/allocation-engine/internal/allocation/engine"
)

func TestStrategy(t *testing.T) {
	t.Run("IsValid returns true for built-in strategies", func(t *testing.T) {
		for _, s := range engine.AllStrategies() {
			assert.True(t, s.IsValid())
		}
	})

	t.Run("IsValid returns false for unknown strategy", func(t *testing.T) {
		assert.False(t, engine.Strategy("lifo").IsValid())
	})

	t.Run("AllStrategies keeps declaration order", func(t *testing.T) {
		assert.Equal(t, []engine.Strategy{
			engine.StrategyStrictFEFO,
			engine.StrategyMinimizeCost,
			engine.StrategyFEFOCostBalanced,
			engine.StrategyMinimumLots,
		}, engine.AllStrategies())
	})

	t.Run("every strategy has a description", func(t *testing.T) {
		for _, s := range engine.AllStrategies() {
			assert.NotEmpty(t, s.Description())
		}
	})
}

// orderedIDs allocates the whole pool and returns the batch IDs in
// consumption order, which is the evaluator's ordering.
func orderedIDs(t *testing.T, eng *engine.Engine, pool []engine.BatchRecord, strategy engine.Strategy) []string {
	t.Helper()

	total := decimal.Zero
	for _, b := range pool {
		total = total.Add(b.AvailableQuantity)
	}

	alloc, err := eng.Allocate(pool, total, strategy, nil, nil)
	require.NoError(t, err)

	ids := make([]string, len(alloc.Lines))
	for i, line := range alloc.Lines {
		ids[i] = line.BatchID
	}
	return ids
}

func TestStrategyOrdering(t *testing.T) {
	eng := engine.New()

	t.Run("strict_fefo orders by key then ID", func(t *testing.T) {
		pool := []engine.BatchRecord{
			testBatch("C", 10, 1, 20250101),
			testBatch("B", 10, 2, 20240101),
			testBatch("A", 10, 3, 20240101),
		}
		assert.Equal(t, []string{"A", "B", "C"}, orderedIDs(t, eng, pool, engine.StrategyStrictFEFO))
	})

	t.Run("batches without a key sort last", func(t *testing.T) {
		pool := []engine.BatchRecord{
			testBatch("NOKEY", 10, 1, engine.OrderKeyNone),
			testBatch("KEYED", 10, 2, 20991231),
		}
		assert.Equal(t, []string{"KEYED", "NOKEY"}, orderedIDs(t, eng, pool, engine.StrategyStrictFEFO))
	})

	t.Run("minimize_cost orders by cost then key then ID", func(t *testing.T) {
		pool := []engine.BatchRecord{
			testBatch("A", 10, 5, 20240101),
			testBatch("B", 10, 3, 20250101),
			testBatch("C", 10, 3, 20240601),
		}
		assert.Equal(t, []string{"C", "B", "A"}, orderedIDs(t, eng, pool, engine.StrategyMinimizeCost))
	})

	t.Run("minimum_lots orders by quantity descending then key", func(t *testing.T) {
		pool := []engine.BatchRecord{
			testBatch("SMALL", 5, 1, 20240101),
			testBatch("BIG", 50, 9, 20250101),
			testBatch("MID", 20, 5, 20240601),
		}
		assert.Equal(t, []string{"BIG", "MID", "SMALL"}, orderedIDs(t, eng, pool, engine.StrategyMinimumLots))
	})

	t.Run("fefo_cost_balanced prefers the oldest under default weights", func(t *testing.T) {
		// A: key rank 0, cost rank 1 -> 0.4; B: key rank 1, cost rank 0 -> 0.6
		pool := twoBatchPool()
		assert.Equal(t, []string{"A", "B"}, orderedIDs(t, eng, pool, engine.StrategyFEFOCostBalanced))
	})

	t.Run("fefo_cost_balanced follows cost when cost weight dominates", func(t *testing.T) {
		weighted, err := engine.NewWithWeights(engine.Weights{FEFO: 0.1, Cost: 0.9})
		require.NoError(t, err)

		pool := twoBatchPool()
		assert.Equal(t, []string{"B", "A"}, orderedIDs(t, weighted, pool, engine.StrategyFEFOCostBalanced))
	})

	t.Run("unnormalized weights are normalized", func(t *testing.T) {
		// 3:2 normalizes to 0.6:0.4, identical to the defaults.
		weighted, err := engine.NewWithWeights(engine.Weights{FEFO: 3, Cost: 2})
		require.NoError(t, err)

		pool := twoBatchPool()
		assert.Equal(t,
			orderedIDs(t, engine.New(), pool, engine.StrategyFEFOCostBalanced),
			orderedIDs(t, weighted, pool, engine.StrategyFEFOCostBalanced))
	})
}

func TestNewWithWeights(t *testing.T) {
	t.Run("rejects zero weights", func(t *testing.T) {
		_, err := engine.NewWithWeights(engine.Weights{FEFO: 0, Cost: 0})
		assert.Error(t, err)
	})

	t.Run("rejects negative weights", func(t *testing.T) {
		_, err := engine.NewWithWeights(engine.Weights{FEFO: -1, Cost: 2})
		assert.Error(t, err)
	})
}

func TestStrategyPermutationProperty(t *testing.T) {
	eng := engine.New()
	pool := []engine.BatchRecord{
		testBatch("A", 12, 9, 20240301),
		testBatch("B", 7, 4, engine.OrderKeyNone),
		testBatch("C", 33, 4, 20240301),
		testBatch("D", 1, 15, 20231201),
		testBatch("E", 20, 7, 20250701),
	}

	for _, strategy := range engine.AllStrategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			ids := orderedIDs(t, eng, pool, strategy)

			assert.Len(t, ids, len(pool))
			seen := map[string]bool{}
			for _, id := range ids {
				assert.False(t, seen[id], "duplicate batch %s", id)
				seen[id] = true
			}
			for _, b := range pool {
				assert.True(t, seen[b.ID], "missing batch %s", b.ID)
			}
		})
	}
}
