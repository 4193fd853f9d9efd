package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/expirians/orders-ms/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		nextID: 1,
		items:  make(map[int64]domain.Order),
	}
}

// CreateWithItems атомарно сохраняет заказ вместе с позициями и назначает ID.
func (r *orderRepositoryInMemory) CreateWithItems(_ context.Context, order domain.Order, items []domain.OrderItem) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	order.ID = r.nextID
	r.nextID++
	order.Status = domain.OrderStatusPending
	order.Paid = false
	order.PaidAt = nil
	order.CreatedAt = now
	order.UpdatedAt = now

	// Сохраняем копию позиций, чтобы избежать непредсказуемых мутаций извне.
	order.Items = make([]domain.OrderItem, len(items))
	for i, item := range items {
		item.OrderID = order.ID
		order.Items[i] = item
	}

	r.items[order.ID] = cloneOrder(order)
	return order, nil
}

// Get возвращает заказ с позициями или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// List возвращает все заказы, новые в начале.
func (r *orderRepositoryInMemory) List(_ context.Context) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// UpdateStatus записывает новый статус и возвращает обновлённый заказ.
func (r *orderRepositoryInMemory) UpdateStatus(_ context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	r.items[id] = order
	return cloneOrder(order), nil
}

func cloneOrder(order domain.Order) domain.Order {
	clone := order
	if order.Items != nil {
		clone.Items = make([]domain.OrderItem, len(order.Items))
		copy(clone.Items, order.Items)
	}
	if order.PaidAt != nil {
		paidAt := *order.PaidAt
		clone.PaidAt = &paidAt
	}
	return clone
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
