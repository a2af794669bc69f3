package consumers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/allocation-engine/internal/allocation/engine"
	"github.com/medflow/allocation-engine/pkg/messaging"
)

func int64Ptr(i int64) *int64 { return &i }

func intPtr(i int) *int { return &i }

func TestToAllocateInput(t *testing.T) {
	maxCost := decimal.NewFromInt(50)
	data := messaging.AllocationRequestedEvent{
		RequestID:        "req-1",
		Strategy:         "fefo_cost_balanced",
		RequiredQuantity: decimal.NewFromInt(120),
		Pool: []messaging.BatchPayload{
			{ID: "A", AvailableQuantity: decimal.NewFromInt(100), UnitCost: decimal.NewFromInt(45), OrderKey: int64Ptr(20240615), IsEligible: true, Warehouse: "main"},
			{ID: "B", AvailableQuantity: decimal.NewFromInt(100), UnitCost: decimal.NewFromInt(40), IsEligible: true},
		},
		ExcludeIDs: []string{"C"},
		Constraints: &messaging.ConstraintPayload{
			MinShelfLifeDays:       intPtr(30),
			MaxLines:               intPtr(2),
			AllowedWarehouses:      []string{"main"},
			ExcludedBatchIDs:       []string{"D"},
			RequireSingleWarehouse: true,
			MaxCostPerUnit:         &maxCost,
		},
		Weights: &messaging.WeightsPayload{FEFO: 0.3, Cost: 0.7},
	}

	in := toAllocateInput(&data)

	assert.Equal(t, "req-1", in.RequestID)
	assert.Equal(t, engine.StrategyFEFOCostBalanced, in.Strategy)
	assert.True(t, in.Required.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, []string{"C"}, in.ExcludeIDs)

	require.Len(t, in.Pool, 2)
	assert.Equal(t, int64(20240615), in.Pool[0].OrderKey)
	// A missing order key sorts after every known key.
	assert.Equal(t, engine.OrderKeyNone, in.Pool[1].OrderKey)
	assert.True(t, in.Pool[0].Eligible)
	assert.Equal(t, "main", in.Pool[0].Warehouse)

	require.NotNil(t, in.Constraints)
	assert.Equal(t, 30, *in.Constraints.MinShelfLifeDays)
	assert.Equal(t, 2, *in.Constraints.MaxLines)
	assert.Equal(t, []string{"main"}, in.Constraints.AllowedWarehouses)
	assert.Equal(t, []string{"D"}, in.Constraints.ExcludedBatchIDs)
	assert.True(t, in.Constraints.RequireSingleWarehouse)
	require.NotNil(t, in.Constraints.MaxCostPerUnit)
	assert.True(t, in.Constraints.MaxCostPerUnit.Equal(maxCost))

	require.NotNil(t, in.Weights)
	assert.Equal(t, 0.3, in.Weights.FEFO)
	assert.Equal(t, 0.7, in.Weights.Cost)
}

func TestToAllocateInput_OptionalFieldsAbsent(t *testing.T) {
	data := messaging.AllocationRequestedEvent{
		RequestID:        "req-2",
		Strategy:         "strict_fefo",
		RequiredQuantity: decimal.NewFromInt(10),
		Pool: []messaging.BatchPayload{
			{ID: "A", AvailableQuantity: decimal.NewFromInt(10), UnitCost: decimal.NewFromInt(5), IsEligible: true},
		},
	}

	in := toAllocateInput(&data)

	assert.Nil(t, in.Constraints)
	assert.Nil(t, in.Weights)
	assert.Empty(t, in.ExcludeIDs)
}
