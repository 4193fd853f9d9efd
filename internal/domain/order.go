package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, склад уже списан, доставка не началась.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusDelivered — заказ доставлен клиенту.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus проверяет строку и возвращает статус из закрытого перечисления.
func ParseOrderStatus(value string) (OrderStatus, error) {
	switch OrderStatus(value) {
	case OrderStatusPending, OrderStatusDelivered, OrderStatusCancelled:
		return OrderStatus(value), nil
	default:
		return "", ErrStatusUnknown
	}
}

// Valid сообщает, входит ли статус в закрытое перечисление.
func (s OrderStatus) Valid() bool {
	_, err := ParseOrderStatus(string(s))
	return err == nil
}

// OrderItem — одна позиция заказа. Цена фиксируется на момент создания
// и больше никогда не пересчитывается по каталогу.
type OrderItem struct {
	OrderID    int64
	ProductID  int64
	Qty        int32
	PriceMinor int64
}

// Order агрегирует состояние заказа. Поля ID, Status, Paid и таймстемпы
// назначаются хранилищем при создании.
type Order struct {
	ID               int64
	ClientID         int64
	TotalAmountMinor int64
	TotalItems       int32
	Status           OrderStatus
	Paid             bool
	PaidAt           *time.Time
	Items            []OrderItem
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OrderLine — одна строка запроса на создание заказа.
type OrderLine struct {
	ProductID int64
	Qty       int32
}

// CreateOrderRequest — входной контракт оркестратора создания заказа.
type CreateOrderRequest struct {
	ClientID int64
	Items    []OrderLine
}

// Validate проверяет базовые инварианты запроса и возвращает список замечаний.
func (r CreateOrderRequest) Validate() []error {
	var errs []error

	if r.ClientID <= 0 {
		errs = append(errs, ErrClientIDInvalid)
	}
	if len(r.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, item := range r.Items {
		if item.ProductID <= 0 {
			errs = append(errs, ErrProductIDInvalid)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
	}

	return errs
}

// ProductIDs возвращает уникальные productId в порядке первого упоминания.
func (r CreateOrderRequest) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(r.Items))
	ids := make([]int64, 0, len(r.Items))
	for _, item := range r.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// CatalogEntry — снимок товара из каталога на момент валидации заказа.
type CatalogEntry struct {
	ProductID  int64
	Name       string
	PriceMinor int64
	Stock      int32
}

// Client — запись клиентского справочника.
type Client struct {
	ID   int64
	Name string
}

// OrderItemView — позиция заказа, обогащённая названием товара.
type OrderItemView struct {
	ProductID   int64
	ProductName string
	Qty         int32
	PriceMinor  int64
}

// OrderView — ответная форма: заказ, его позиции и имя клиента.
// Вычисляется на лету и не персистится.
type OrderView struct {
	Order      Order
	ClientName string
	Items      []OrderItemView
}
