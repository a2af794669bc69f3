package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/medflow/allocation-engine/internal/allocation/engine"
	"github.com/medflow/allocation-engine/internal/allocation/service"
	"github.com/medflow/allocation-engine/pkg/httputil"
	"github.com/medflow/allocation-engine/pkg/logger"
)

// AllocationHandler handles allocation endpoints
type AllocationHandler struct {
	service *service.AllocationService
	logger  *logger.Logger
}

// NewAllocationHandler creates a new allocation handler
func NewAllocationHandler(svc *service.AllocationService, log *logger.Logger) *AllocationHandler {
	return &AllocationHandler{
		service: svc,
		logger:  log,
	}
}

// batchRequest is the wire form of one pool batch. A missing order key
// means unknown expiry and sorts last under every expiry-aware strategy.
type batchRequest struct {
	ID                string          `json:"id" validate:"required"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	OrderKey          *int64          `json:"order_key,omitempty"`
	IsEligible        bool            `json:"is_eligible"`
	Warehouse         string          `json:"warehouse,omitempty"`
	ShelfLifeDays     *int            `json:"remaining_shelf_life_days,omitempty"`
}

type constraintRequest struct {
	MinShelfLifeDays       *int             `json:"min_remaining_shelf_life_days,omitempty"`
	MaxLines               *int             `json:"max_lines,omitempty" validate:"omitempty,min=1"`
	AllowedWarehouses      []string         `json:"allowed_warehouses,omitempty"`
	ExcludedBatchIDs       []string         `json:"excluded_batch_ids,omitempty"`
	RequireSingleWarehouse bool             `json:"require_single_warehouse,omitempty"`
	MaxCostPerUnit         *decimal.Decimal `json:"max_cost_per_unit,omitempty"`
}

type weightsRequest struct {
	FEFO float64 `json:"fefo_weight"`
	Cost float64 `json:"cost_weight"`
}

type allocateRequest struct {
	Strategy         string             `json:"strategy" validate:"required"`
	RequiredQuantity decimal.Decimal    `json:"required_quantity"`
	Pool             []batchRequest     `json:"pool" validate:"dive"`
	ExcludeIDs       []string           `json:"exclude_ids,omitempty"`
	Constraints      *constraintRequest `json:"constraints,omitempty"`
	Weights          *weightsRequest    `json:"weights,omitempty"`
}

type compareRequest struct {
	RequiredQuantity decimal.Decimal    `json:"required_quantity"`
	Pool             []batchRequest     `json:"pool" validate:"dive"`
	Strategies       []string           `json:"strategies,omitempty"`
	Constraints      *constraintRequest `json:"constraints,omitempty"`
}

// Allocate runs a single strategy over the submitted pool
func (h *AllocationHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	in := service.AllocateInput{
		Pool:        toBatchRecords(req.Pool),
		Required:    req.RequiredQuantity,
		Strategy:    engine.Strategy(req.Strategy),
		ExcludeIDs:  req.ExcludeIDs,
		Constraints: toConstraintSet(req.Constraints),
	}
	if req.Weights != nil {
		in.Weights = &engine.Weights{FEFO: req.Weights.FEFO, Cost: req.Weights.Cost}
	}

	result, err := h.service.Allocate(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Compare runs a scenario comparison over the submitted pool
func (h *AllocationHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	strategies := make([]engine.Strategy, len(req.Strategies))
	for i, s := range req.Strategies {
		strategies[i] = engine.Strategy(s)
	}

	result, err := h.service.Compare(r.Context(), service.CompareInput{
		Pool:        toBatchRecords(req.Pool),
		Required:    req.RequiredQuantity,
		Strategies:  strategies,
		Constraints: toConstraintSet(req.Constraints),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Strategies lists the selectable strategies
func (h *AllocationHandler) Strategies(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.service.Strategies())
}

func toBatchRecords(pool []batchRequest) []engine.BatchRecord {
	records := make([]engine.BatchRecord, len(pool))
	for i, b := range pool {
		key := engine.OrderKeyNone
		if b.OrderKey != nil {
			key = *b.OrderKey
		}
		records[i] = engine.BatchRecord{
			ID:                b.ID,
			AvailableQuantity: b.AvailableQuantity,
			UnitCost:          b.UnitCost,
			OrderKey:          key,
			Eligible:          b.IsEligible,
			Warehouse:         b.Warehouse,
			ShelfLifeDays:     b.ShelfLifeDays,
		}
	}
	return records
}

func toConstraintSet(c *constraintRequest) *engine.ConstraintSet {
	if c == nil {
		return nil
	}
	return &engine.ConstraintSet{
		MinShelfLifeDays:       c.MinShelfLifeDays,
		MaxLines:               c.MaxLines,
		AllowedWarehouses:      c.AllowedWarehouses,
		ExcludedBatchIDs:       c.ExcludedBatchIDs,
		RequireSingleWarehouse: c.RequireSingleWarehouse,
		MaxCostPerUnit:         c.MaxCostPerUnit,
	}
}
