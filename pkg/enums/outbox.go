package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateStockEntry   OutboxAggregateType = "stock_entry"
	AggregateVendor       OutboxAggregateType = "vendor"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateStockEntry,
	AggregateVendor,
	AggregateNotification,
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

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderAccepted         OutboxEventType = "order_accepted"
	EventOrderRejected         OutboxEventType = "order_rejected"
	EventOrderReady            OutboxEventType = "order_ready"
	EventOrderCompleted        OutboxEventType = "order_completed"
	EventOrderRedeemed         OutboxEventType = "order_redeemed"
	EventStockUpdated          OutboxEventType = "stock_updated"
	EventStockDepleted         OutboxEventType = "stock_depleted"
	EventVendorCapacityChanged OutboxEventType = "vendor_capacity_changed"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderAccepted,
	EventOrderRejected,
	EventOrderReady,
	EventOrderCompleted,
	EventOrderRedeemed,
	EventStockUpdated,
	EventStockDepleted,
	EventVendorCapacityChanged,
	EventNotificationRequested,
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
