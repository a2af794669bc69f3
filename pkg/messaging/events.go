package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	// Allocation events
	EventAllocationRequested = "allocation.requested"
	EventAllocationComputed  = "allocation.computed"
	EventComparisonCompleted = "allocation.comparison.completed"
)

// Exchange names
const (
	ExchangeAllocationEvents = "allocation.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Allocation Events

// BatchPayload is the wire representation of an inventory batch inside
// allocation request events.
type BatchPayload struct {
	ID                string          `json:"id"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	OrderKey          *int64          `json:"order_key,omitempty"`
	IsEligible        bool            `json:"is_eligible"`
	Warehouse         string          `json:"warehouse,omitempty"`
	ShelfLifeDays     *int            `json:"remaining_shelf_life_days,omitempty"`
}

// ConstraintPayload is the wire representation of an allocation constraint
// set.
type ConstraintPayload struct {
	MinShelfLifeDays       *int             `json:"min_remaining_shelf_life_days,omitempty"`
	MaxLines               *int             `json:"max_lines,omitempty"`
	AllowedWarehouses      []string         `json:"allowed_warehouses,omitempty"`
	ExcludedBatchIDs       []string         `json:"excluded_batch_ids,omitempty"`
	RequireSingleWarehouse bool             `json:"require_single_warehouse,omitempty"`
	MaxCostPerUnit         *decimal.Decimal `json:"max_cost_per_unit,omitempty"`
}

// WeightsPayload overrides the balanced strategy's weights for one request.
type WeightsPayload struct {
	FEFO float64 `json:"fefo_weight"`
	Cost float64 `json:"cost_weight"`
}

// AllocationRequestedEvent asks the allocation service to run one strategy
// over a caller-supplied pool. The pool travels with the event; the service
// never looks inventory up anywhere. Constraints and weights are optional
// and mirror the HTTP request body.
type AllocationRequestedEvent struct {
	RequestID        string             `json:"request_id"`
	Strategy         string             `json:"strategy"`
	RequiredQuantity decimal.Decimal    `json:"required_quantity"`
	Pool             []BatchPayload     `json:"pool"`
	ExcludeIDs       []string           `json:"exclude_ids,omitempty"`
	Constraints      *ConstraintPayload `json:"constraints,omitempty"`
	Weights          *WeightsPayload    `json:"weights,omitempty"`
}

// AllocationComputedEvent is published when an allocation has been computed
type AllocationComputedEvent struct {
	AllocationID      string          `json:"allocation_id"`
	RequestID         string          `json:"request_id,omitempty"`
	Strategy          string          `json:"strategy"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
	FulfilledQuantity decimal.Decimal `json:"fulfilled_quantity"`
	Shortfall         decimal.Decimal `json:"shortfall"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	LineCount         int             `json:"line_count"`
	FEFOViolations    int             `json:"fefo_violations"`
}

// ComparisonCompletedEvent is published when a scenario comparison finishes
type ComparisonCompletedEvent struct {
	ComparisonID        string   `json:"comparison_id"`
	StrategiesEvaluated []string `json:"strategies_evaluated"`
	Recommended         string   `json:"recommended"`
	Reason              string   `json:"reason"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
