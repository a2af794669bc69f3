package consumers

import (
	"context"

	"github.com/medflow/allocation-engine/internal/allocation/engine"
	"github.com/medflow/allocation-engine/internal/allocation/service"
	"github.com/medflow/allocation-engine/pkg/logger"
	"github.com/medflow/allocation-engine/pkg/messaging"
)

// RequestConsumer consumes allocation request events. The requesting
// service ships the full pool snapshot inside the event, so handling a
// request needs no lookups; the computed result goes back out on the same
// exchange.
type RequestConsumer struct {
	consumer *messaging.Consumer
	service  *service.AllocationService
	logger   *logger.Logger
}

// NewRequestConsumer creates a new allocation request consumer
func NewRequestConsumer(rmq *messaging.RabbitMQ, svc *service.AllocationService, log *logger.Logger) (*RequestConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "allocation-service.requests", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeAllocationEvents, messaging.EventAllocationRequested); err != nil {
		return nil, err
	}

	c := &RequestConsumer{
		consumer: consumer,
		service:  svc,
		logger:   log,
	}

	consumer.RegisterHandler(messaging.EventAllocationRequested, c.handleAllocationRequested)

	return c, nil
}

// Start starts consuming messages
func (c *RequestConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *RequestConsumer) handleAllocationRequested(ctx context.Context, event *messaging.Event) error {
	var data messaging.AllocationRequestedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("request_id", data.RequestID).
		Str("strategy", data.Strategy).
		Int("pool_size", len(data.Pool)).
		Msg("received allocation request event")

	ctx = messaging.WithCorrelationID(ctx, event.CorrelationID)

	_, err := c.service.Allocate(ctx, toAllocateInput(&data))
	if err != nil {
		c.logger.Error().Err(err).
			Str("request_id", data.RequestID).
			Msg("failed to handle allocation request")
		return err
	}

	return nil
}

// toAllocateInput maps the event payload onto a service input. Constraints
// and weights are optional and carry the same semantics as the HTTP body.
func toAllocateInput(data *messaging.AllocationRequestedEvent) service.AllocateInput {
	in := service.AllocateInput{
		Pool:       toBatchRecords(data.Pool),
		Required:   data.RequiredQuantity,
		Strategy:   engine.Strategy(data.Strategy),
		ExcludeIDs: data.ExcludeIDs,
		RequestID:  data.RequestID,
	}
	if c := data.Constraints; c != nil {
		in.Constraints = &engine.ConstraintSet{
			MinShelfLifeDays:       c.MinShelfLifeDays,
			MaxLines:               c.MaxLines,
			AllowedWarehouses:      c.AllowedWarehouses,
			ExcludedBatchIDs:       c.ExcludedBatchIDs,
			RequireSingleWarehouse: c.RequireSingleWarehouse,
			MaxCostPerUnit:         c.MaxCostPerUnit,
		}
	}
	if w := data.Weights; w != nil {
		in.Weights = &engine.Weights{FEFO: w.FEFO, Cost: w.Cost}
	}
	return in
}

func toBatchRecords(pool []messaging.BatchPayload) []engine.BatchRecord {
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
