package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"

	// Inventory события
	EventTypeReconciliationRequired EventType = "inventory.reconciliation_required"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "orders.order.events"
	TopicDeadLetterQueue = "orders.dlq" // Dead Letter Queue для failed messages
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   int64                  `json:"order_id"`
	ClientID  int64                  `json:"client_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, clientID int64, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		ClientID:  clientID,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// ReconciliationEvent описывает списания, которые не удалось компенсировать
// после частичного отказа мутации склада.
type ReconciliationEvent struct {
	EventType  EventType `json:"event_type"`
	ClientID   int64     `json:"client_id"`
	ProductIDs []int64   `json:"product_ids"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewReconciliationEvent создает событие для ручной сверки остатков.
func NewReconciliationEvent(clientID int64, productIDs []int64, reason string) *ReconciliationEvent {
	return &ReconciliationEvent{
		EventType:  EventTypeReconciliationRequired,
		ClientID:   clientID,
		ProductIDs: productIDs,
		Reason:     reason,
		Timestamp:  time.Now(),
	}
}
