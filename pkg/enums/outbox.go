package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder            OutboxAggregateType = "aggregate_order"
	AggregateStatusTransition OutboxAggregateType = "status_transition"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateStatusTransition,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventIntentAccumulated      OutboxEventType = "intent_accumulated"
	EventExternalOrderLinked    OutboxEventType = "external_order_linked"
	EventStatusTransitionLogged OutboxEventType = "status_transition_logged"
	EventAggregateDeleted       OutboxEventType = "aggregate_deleted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventIntentAccumulated,
	EventExternalOrderLinked,
	EventStatusTransitionLogged,
	EventAggregateDeleted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
