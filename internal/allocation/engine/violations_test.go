package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/allocation-engine/internal/allocation/engine"
)

func TestCountFEFOViolations_CostDrivenPartialConsumption(t *testing.T) {
	pool := twoBatchPool()
	alloc := allocate(t, pool, 120, engine.StrategyMinimizeCost, nil)

	report := engine.CountFEFOViolations(alloc, pool, nil, nil)

	// B (cheaper, later-expiring) was drained first, leaving 80 units of
	// the older A unused: one violation.
	require.Equal(t, 1, report.Count)
	detail := report.Details[0]
	assert.Equal(t, "B", detail.ConsumedBatchID)
	assert.Equal(t, "A", detail.SkippedBatchID)
	assert.Equal(t, int64(20240615), detail.SkippedKey)
	assert.True(t, detail.UnusedQuantity.Equal(decimal.NewFromInt(80)))
}

func TestCountFEFOViolations_StrictFEFOIsAlwaysClean(t *testing.T) {
	pools := map[string][]engine.BatchRecord{
		"two batches": twoBatchPool(),
		"many batches with ties": {
			testBatch("P1", 10, 50, 20240110),
			testBatch("P2", 30, 20, 20240110),
			testBatch("P3", 25, 35, 20240301),
			testBatch("P4", 40, 10, 20240615),
			testBatch("P5", 15, 60, 20250101),
		},
	}

	for name, pool := range pools {
		t.Run(name, func(t *testing.T) {
			for _, qty := range []float64{1, 35, 60, 1000} {
				alloc := allocate(t, pool, qty, engine.StrategyStrictFEFO, nil)
				report := engine.CountFEFOViolations(alloc, pool, nil, nil)
				assert.Zero(t, report.Count, "quantity %v", qty)
			}
		})
	}
}

func TestCountFEFOViolations_CountedOncePerSkippedBatch(t *testing.T) {
	// Two newer batches consumed while the oldest stays untouched: still
	// one violation, attributed to the first consuming line.
	pool := []engine.BatchRecord{
		testBatch("OLD", 100, 90, 20240101),
		testBatch("MID", 50, 10, 20240601),
		testBatch("NEW", 50, 12, 20241201),
	}

	alloc := allocate(t, pool, 100, engine.StrategyMinimizeCost, nil)
	require.Len(t, alloc.Lines, 2)

	report := engine.CountFEFOViolations(alloc, pool, nil, nil)
	require.Equal(t, 1, report.Count)
	assert.Equal(t, "MID", report.Details[0].ConsumedBatchID)
	assert.Equal(t, "OLD", report.Details[0].SkippedBatchID)
}

func TestCountFEFOViolations_MultipleSkippedBatches(t *testing.T) {
	// One newer line skipping two older batches counts once per batch.
	pool := []engine.BatchRecord{
		testBatch("OLD-1", 40, 90, 20240101),
		testBatch("OLD-2", 40, 85, 20240201),
		testBatch("NEW", 80, 10, 20241201),
	}

	alloc := allocate(t, pool, 80, engine.StrategyMinimizeCost, nil)

	report := engine.CountFEFOViolations(alloc, pool, nil, nil)
	assert.Equal(t, 2, report.Count)
}

func TestCountFEFOViolations_IneligibleBatchesAreNotSkippable(t *testing.T) {
	pool := []engine.BatchRecord{
		testBatch("QUARANTINED", 100, 10, 20240101),
		testBatch("B", 100, 40, 20250110),
	}
	pool[0].Eligible = false

	alloc := allocate(t, pool, 50, engine.StrategyStrictFEFO, nil)

	report := engine.CountFEFOViolations(alloc, pool, nil, nil)
	assert.Zero(t, report.Count)
}

func TestCountFEFOViolations_ForbiddenBatchesAreNotSkippable(t *testing.T) {
	// An allocation that was barred from the older batch by exclusion or
	// constraints is never charged for leaving it behind.
	old := testBatch("OLD", 100, 10, 20240101)
	newer := testBatch("NEW", 100, 40, 20250110)

	t.Run("excluded by ID", func(t *testing.T) {
		pool := []engine.BatchRecord{old, newer}
		excludeIDs := []string{"OLD"}

		alloc, err := engine.New().Allocate(pool, decimal.NewFromInt(50), engine.StrategyStrictFEFO, excludeIDs, nil)
		require.NoError(t, err)
		require.Equal(t, "NEW", alloc.Lines[0].BatchID)

		report := engine.CountFEFOViolations(alloc, pool, excludeIDs, nil)
		assert.Zero(t, report.Count)
	})

	t.Run("excluded by constraint set", func(t *testing.T) {
		pool := []engine.BatchRecord{old, newer}
		constraints := &engine.ConstraintSet{ExcludedBatchIDs: []string{"OLD"}}

		alloc := allocate(t, pool, 50, engine.StrategyStrictFEFO, constraints)

		report := engine.CountFEFOViolations(alloc, pool, nil, constraints)
		assert.Zero(t, report.Count)
	})

	t.Run("disallowed warehouse", func(t *testing.T) {
		pool := []engine.BatchRecord{old, newer}
		pool[0].Warehouse = "quarantine"
		pool[1].Warehouse = "main"
		constraints := &engine.ConstraintSet{AllowedWarehouses: []string{"main"}}

		alloc := allocate(t, pool, 50, engine.StrategyStrictFEFO, constraints)

		report := engine.CountFEFOViolations(alloc, pool, nil, constraints)
		assert.Zero(t, report.Count)
	})

	t.Run("insufficient shelf life", func(t *testing.T) {
		pool := []engine.BatchRecord{old, newer}
		pool[0].ShelfLifeDays = intPtr(5)
		pool[1].ShelfLifeDays = intPtr(90)
		constraints := &engine.ConstraintSet{MinShelfLifeDays: intPtr(30)}

		alloc := allocate(t, pool, 50, engine.StrategyStrictFEFO, constraints)

		report := engine.CountFEFOViolations(alloc, pool, nil, constraints)
		assert.Zero(t, report.Count)
	})

	t.Run("without the exclusion the same plan is charged", func(t *testing.T) {
		pool := []engine.BatchRecord{old, newer}

		alloc, err := engine.New().Allocate(pool, decimal.NewFromInt(50), engine.StrategyStrictFEFO, []string{"OLD"}, nil)
		require.NoError(t, err)

		report := engine.CountFEFOViolations(alloc, pool, nil, nil)
		assert.Equal(t, 1, report.Count)
	})
}

func TestCountFEFOViolations_PartiallyConsumedOlderBatchCounts(t *testing.T) {
	// Taking some of the older batch does not excuse leaving the rest
	// while a newer batch is consumed.
	pool := []engine.BatchRecord{
		testBatch("OLD", 100, 90, 20240101),
		testBatch("NEW", 100, 10, 20241201),
	}

	alloc, err := engine.New().Allocate(pool, decimal.NewFromInt(150), engine.StrategyMinimizeCost, nil, nil)
	require.NoError(t, err)
	require.Len(t, alloc.Lines, 2)

	report := engine.CountFEFOViolations(alloc, pool, nil, nil)
	assert.Equal(t, 1, report.Count)
	assert.True(t, report.Details[0].UnusedQuantity.Equal(decimal.NewFromInt(50)))
}

func TestCountFEFOViolations_EmptyAllocation(t *testing.T) {
	pool := twoBatchPool()

	report := engine.CountFEFOViolations(&engine.Allocation{}, pool, nil, nil)
	assert.Zero(t, report.Count)
	assert.Empty(t, report.Details)

	report = engine.CountFEFOViolations(nil, pool, nil, nil)
	assert.Zero(t, report.Count)
}
