package events

import (
	"context"

	"github.com/medflow/allocation-engine/internal/allocation/engine"
	"github.com/medflow/allocation-engine/pkg/logger"
	"github.com/medflow/allocation-engine/pkg/messaging"
)

// AllocationEventPublisher publishes allocation-related events
type AllocationEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewAllocationEventPublisher creates a new allocation event publisher
func NewAllocationEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*AllocationEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeAllocationEvents, "allocation-service", log)
	if err != nil {
		return nil, err
	}

	return &AllocationEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishAllocationComputed publishes an allocation computed event. A nil
// receiver is a no-op so the service can run without a broker.
func (p *AllocationEventPublisher) PublishAllocationComputed(ctx context.Context, allocationID, requestID string, alloc *engine.Allocation, violationCount int) {
	if p == nil {
		return
	}

	data := messaging.AllocationComputedEvent{
		AllocationID:      allocationID,
		RequestID:         requestID,
		Strategy:          alloc.Strategy.String(),
		RequestedQuantity: alloc.RequestedQuantity,
		FulfilledQuantity: alloc.FulfilledQuantity,
		Shortfall:         alloc.Shortfall,
		TotalCost:         alloc.TotalCost,
		LineCount:         len(alloc.Lines),
		FEFOViolations:    violationCount,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAllocationComputed, data); err != nil {
		p.logger.Error().Err(err).Str("allocation_id", allocationID).Msg("failed to publish allocation computed event")
	}
}

// PublishComparisonCompleted publishes a comparison completed event
func (p *AllocationEventPublisher) PublishComparisonCompleted(ctx context.Context, comparisonID string, comparison *engine.ScenarioComparison) {
	if p == nil {
		return
	}

	evaluated := make([]string, len(comparison.Summaries))
	for i, s := range comparison.Summaries {
		evaluated[i] = s.Strategy.String()
	}

	data := messaging.ComparisonCompletedEvent{
		ComparisonID:        comparisonID,
		StrategiesEvaluated: evaluated,
		Recommended:         comparison.Recommended.String(),
		Reason:              comparison.Reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventComparisonCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("comparison_id", comparisonID).Msg("failed to publish comparison completed event")
	}
}
