package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medflow/allocation-engine/internal/allocation/engine"
	"github.com/medflow/allocation-engine/internal/allocation/events"
	"github.com/medflow/allocation-engine/pkg/logger"
)

// AllocationService runs the allocation engine over caller-supplied pool
// snapshots and publishes the results. It holds no inventory state of its
// own; every call carries the complete pool it operates on.
type AllocationService struct {
	engine     *engine.Engine
	comparator *engine.Comparator
	publisher  *events.AllocationEventPublisher
	logger     *logger.Logger
}

// NewAllocationService creates a new allocation service
func NewAllocationService(
	eng *engine.Engine,
	comparator *engine.Comparator,
	publisher *events.AllocationEventPublisher,
	log *logger.Logger,
) *AllocationService {
	return &AllocationService{
		engine:     eng,
		comparator: comparator,
		publisher:  publisher,
		logger:     log,
	}
}

// AllocateInput is one allocation run over a pool snapshot.
type AllocateInput struct {
	Pool        []engine.BatchRecord
	Required    decimal.Decimal
	Strategy    engine.Strategy
	ExcludeIDs  []string
	Constraints *engine.ConstraintSet
	// Weights overrides the engine's configured weights for this request
	// only. Only fefo_cost_balanced reads them.
	Weights *engine.Weights
	// RequestID is carried through to the computed event when the run
	// was triggered by an allocation request event.
	RequestID string
}

// CompareInput is one scenario comparison over a pool snapshot.
type CompareInput struct {
	Pool        []engine.BatchRecord
	Required    decimal.Decimal
	Strategies  []engine.Strategy
	Constraints *engine.ConstraintSet
}

// AllocationResult bundles an allocation with its diagnostics.
type AllocationResult struct {
	ID         string                  `json:"allocation_id"`
	Allocation *engine.Allocation      `json:"allocation"`
	Validation engine.ValidationResult `json:"validation"`
	Violations engine.ViolationReport  `json:"fefo_violations"`
}

// ComparisonResult bundles a scenario comparison with its generated ID.
type ComparisonResult struct {
	ID         string                     `json:"comparison_id"`
	Comparison *engine.ScenarioComparison `json:"comparison"`
}

// StrategyInfo describes one selectable strategy.
type StrategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Allocate runs one strategy, validates the result, counts FEFO
// violations, and publishes an allocation computed event.
func (s *AllocationService) Allocate(ctx context.Context, in AllocateInput) (*AllocationResult, error) {
	eng := s.engine
	if in.Weights != nil {
		var err error
		eng, err = engine.NewWithWeights(*in.Weights)
		if err != nil {
			return nil, err
		}
	}

	alloc, err := eng.Allocate(in.Pool, in.Required, in.Strategy, in.ExcludeIDs, in.Constraints)
	if err != nil {
		return nil, err
	}

	validation := engine.ValidateAllocation(alloc, in.Pool, in.Constraints)
	violations := engine.CountFEFOViolations(alloc, in.Pool, in.ExcludeIDs, in.Constraints)

	result := &AllocationResult{
		ID:         uuid.New().String(),
		Allocation: alloc,
		Validation: validation,
		Violations: violations,
	}

	s.logger.Info().
		Str("allocation_id", result.ID).
		Str("strategy", in.Strategy.String()).
		Str("required", in.Required.String()).
		Str("fulfilled", alloc.FulfilledQuantity.String()).
		Str("shortfall", alloc.Shortfall.String()).
		Int("lines", len(alloc.Lines)).
		Int("fefo_violations", violations.Count).
		Bool("valid", validation.Valid).
		Msg("allocation computed")

	s.publisher.PublishAllocationComputed(ctx, result.ID, in.RequestID, alloc, violations.Count)

	return result, nil
}

// Compare runs a scenario comparison and publishes a comparison completed
// event.
func (s *AllocationService) Compare(ctx context.Context, in CompareInput) (*ComparisonResult, error) {
	comparison, err := s.comparator.Compare(in.Pool, in.Required, in.Strategies, in.Constraints)
	if err != nil {
		return nil, err
	}

	result := &ComparisonResult{
		ID:         uuid.New().String(),
		Comparison: comparison,
	}

	s.logger.Info().
		Str("comparison_id", result.ID).
		Str("recommended", comparison.Recommended.String()).
		Int("strategies", len(comparison.Summaries)).
		Msg("scenario comparison completed")

	s.publisher.PublishComparisonCompleted(ctx, result.ID, comparison)

	return result, nil
}

// Strategies lists the selectable strategies in evaluation order.
func (s *AllocationService) Strategies() []StrategyInfo {
	all := engine.AllStrategies()
	infos := make([]StrategyInfo, len(all))
	for i, strategy := range all {
		infos[i] = StrategyInfo{
			Name:        strategy.String(),
			Description: strategy.Description(),
		}
	}
	return infos
}
