package domain

import (
	"context"
	"time"
)

// ClientDirectory описывает взаимодействие с клиентским справочником.
type ClientDirectory interface {
	// ValidateClient подтверждает существование клиента и возвращает его имя.
	ValidateClient(ctx context.Context, clientID int64) (Client, error)
}

// ProductCatalog описывает взаимодействие с каталогом товаров.
type ProductCatalog interface {
	// ValidateProducts возвращает снимок цены/остатка по каждому найденному товару.
	// Отсутствующие товары в ответ не попадают.
	ValidateProducts(ctx context.Context, productIDs []int64) ([]CatalogEntry, error)
}

// InventoryService описывает мутацию складских остатков.
type InventoryService interface {
	// Decrement списывает qty единиц товара.
	Decrement(ctx context.Context, productID int64, qty int32) error
	// Increment возвращает qty единиц товара на склад (компенсация).
	Increment(ctx context.Context, productID int64, qty int32) error
}

// OrderRepository — долговременное хранилище заказов и их позиций.
type OrderRepository interface {
	// CreateWithItems атомарно сохраняет заказ вместе со всеми позициями:
	// либо появляется всё, либо ничего.
	CreateWithItems(ctx context.Context, order Order, items []OrderItem) (Order, error)
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)
	// List возвращает все заказы без обогащения.
	List(ctx context.Context) ([]Order, error)
	// UpdateStatus записывает новый статус и возвращает обновлённый заказ.
	UpdateStatus(ctx context.Context, id int64, status OrderStatus) (Order, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
