package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

// OrderKeyNone marks a batch whose expiry ordering key could not be
// derived. Such batches sort after every batch that has a key.
const OrderKeyNone int64 = math.MaxInt64

// BatchRecord is one inventory lot the engine can draw from. The engine
// only ever reads it; callers own the pool and keep it immutable for the
// duration of a call.
type BatchRecord struct {
	ID                string          `json:"id"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	// OrderKey establishes FEFO order: lower keys are consumed earlier.
	// Typically an expiry date encoded as YYYYMMDD, or a pre-computed
	// composite key. OrderKeyNone when no key could be parsed.
	OrderKey      int64  `json:"order_key"`
	Eligible      bool   `json:"is_eligible"`
	Warehouse     string `json:"warehouse,omitempty"`
	ShelfLifeDays *int   `json:"remaining_shelf_life_days,omitempty"`
}

// HasOrderKey reports whether the batch carries a parseable ordering key.
func (b *BatchRecord) HasOrderKey() bool {
	return b.OrderKey != OrderKeyNone
}

// ConstraintSet is a declarative, caller-supplied rule set. A nil field
// means no restriction. The allocator pre-filters on AllowedWarehouses,
// MinShelfLifeDays and ExcludedBatchIDs; the validator checks everything.
type ConstraintSet struct {
	MinShelfLifeDays       *int             `json:"min_remaining_shelf_life_days,omitempty"`
	MaxLines               *int             `json:"max_lines,omitempty"`
	AllowedWarehouses      []string         `json:"allowed_warehouses,omitempty"`
	ExcludedBatchIDs       []string         `json:"excluded_batch_ids,omitempty"`
	RequireSingleWarehouse bool             `json:"require_single_warehouse,omitempty"`
	MaxCostPerUnit         *decimal.Decimal `json:"max_cost_per_unit,omitempty"`
}

// AllowsWarehouse reports whether a batch from the given warehouse may be
// consumed. An empty AllowedWarehouses list allows everything.
func (c *ConstraintSet) AllowsWarehouse(warehouse string) bool {
	if c == nil || len(c.AllowedWarehouses) == 0 {
		return true
	}
	for _, w := range c.AllowedWarehouses {
		if w == warehouse {
			return true
		}
	}
	return false
}

// MeetsShelfLife reports whether a batch satisfies the minimum remaining
// shelf life. Batches with unknown shelf life fail a set constraint: the
// engine cannot prove they qualify.
func (c *ConstraintSet) MeetsShelfLife(b *BatchRecord) bool {
	if c == nil || c.MinShelfLifeDays == nil {
		return true
	}
	return b.ShelfLifeDays != nil && *b.ShelfLifeDays >= *c.MinShelfLifeDays
}

func (c *ConstraintSet) excludes(id string) bool {
	if c == nil {
		return false
	}
	for _, excluded := range c.ExcludedBatchIDs {
		if excluded == id {
			return true
		}
	}
	return false
}
