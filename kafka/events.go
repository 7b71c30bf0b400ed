package kafka

import "time"

// LowStockCrossedEvent is emitted when available stock crosses below the
// minimum stock level for a (location, sku) pair
type LowStockCrossedEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	SignalID   string    `json:"signal_id"`
	LocationID string    `json:"location_id"`
	SKU        string    `json:"sku"`
	Available  int       `json:"available"`
	Minimum    int       `json:"minimum"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReservationExpiredEvent is emitted when the expiry sweep releases a hold
type ReservationExpiredEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	ReservationID string    `json:"reservation_id"`
	ReferenceID   string    `json:"reference_id"`
	ReferenceType string    `json:"reference_type"`
	LocationID    string    `json:"location_id"`
	SKU           string    `json:"sku"`
	Quantity      int       `json:"quantity"`
	Timestamp     time.Time `json:"timestamp"`
}

// TransferCompletedEvent is emitted when a transfer reaches a received state
type TransferCompletedEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	TransferID    string    `json:"transfer_id"`
	SourceID      string    `json:"source_location_id"`
	DestinationID string    `json:"destination_location_id"`
	Partial       bool      `json:"partial"`
	Timestamp     time.Time `json:"timestamp"`
}

// OrderLifecycleEvent is consumed from the checkout/order collaborators and
// drives reservation commit/release by reference
type OrderLifecycleEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	OrderID       string    `json:"order_id"`
	ReferenceID   string    `json:"reference_id"`
	ReferenceType string    `json:"reference_type"`
	Timestamp     time.Time `json:"timestamp"`
}

// Event types
const (
	EventTypeLowStockCrossed    = "stock.low"
	EventTypeReservationExpired = "reservation.expired"
	EventTypeTransferCompleted  = "transfer.completed"
	EventTypeOrderPaid          = "order.paid"
	EventTypeOrderCancelled     = "order.cancelled"
)

// Kafka topics
const (
	TopicStockEvents = "stock-events"
	TopicOrderEvents = "order-events"
)
