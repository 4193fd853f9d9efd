package products

import (
	"context"
	"fmt"
	"sync"

	"github.com/expirians/orders-ms/internal/domain"
)

const mockDefaultStock = 1000

// MockCatalog — конфигурируемая заглушка каталога и склада для тестов
// и локального запуска без сервиса товаров. Потокобезопасна.
type MockCatalog struct {
	mu      sync.Mutex
	entries map[int64]domain.CatalogEntry

	ValidateErr  error
	DecrementErr error
	IncrementErr error

	ValidateCalls  int
	DecrementCalls int
	IncrementCalls int
}

// NewMockCatalog возвращает mock, синтезирующий запись для любого товара.
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{}
}

// NewMockCatalogWithEntries возвращает mock с фиксированным ассортиментом.
func NewMockCatalogWithEntries(entries []domain.CatalogEntry) *MockCatalog {
	byID := make(map[int64]domain.CatalogEntry, len(entries))
	for _, entry := range entries {
		byID[entry.ProductID] = entry
	}
	return &MockCatalog{entries: byID}
}

// ValidateProducts возвращает снимки по найденным товарам.
func (m *MockCatalog) ValidateProducts(_ context.Context, productIDs []int64) ([]domain.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ValidateCalls++
	if m.ValidateErr != nil {
		return nil, m.ValidateErr
	}

	result := make([]domain.CatalogEntry, 0, len(productIDs))
	for _, id := range productIDs {
		if m.entries != nil {
			entry, ok := m.entries[id]
			if !ok {
				continue
			}
			result = append(result, entry)
			continue
		}
		result = append(result, domain.CatalogEntry{
			ProductID:  id,
			Name:       fmt.Sprintf("product-%d", id),
			PriceMinor: 1000,
			Stock:      mockDefaultStock,
		})
	}
	return result, nil
}

// Decrement списывает остаток, если ассортимент сконфигурирован.
func (m *MockCatalog) Decrement(_ context.Context, productID int64, qty int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DecrementCalls++
	if m.DecrementErr != nil {
		return m.DecrementErr
	}
	if m.entries != nil {
		entry, ok := m.entries[productID]
		if !ok {
			return &domain.Fault{
				Kind:      domain.FaultNotFound,
				Message:   fmt.Sprintf("product %d not found", productID),
				ProductID: productID,
			}
		}
		if entry.Stock < qty {
			return &domain.Fault{
				Kind:      domain.FaultInsufficientStock,
				Message:   fmt.Sprintf("product %d has %d in stock, %d requested", productID, entry.Stock, qty),
				ProductID: productID,
				Available: entry.Stock,
				Requested: qty,
			}
		}
		entry.Stock -= qty
		m.entries[productID] = entry
	}
	return nil
}

// Increment возвращает остаток на склад.
func (m *MockCatalog) Increment(_ context.Context, productID int64, qty int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.IncrementCalls++
	if m.IncrementErr != nil {
		return m.IncrementErr
	}
	if m.entries != nil {
		entry, ok := m.entries[productID]
		if !ok {
			return &domain.Fault{
				Kind:      domain.FaultNotFound,
				Message:   fmt.Sprintf("product %d not found", productID),
				ProductID: productID,
			}
		}
		entry.Stock += qty
		m.entries[productID] = entry
	}
	return nil
}

// Stock возвращает текущий остаток товара в сконфигурированном ассортименте.
func (m *MockCatalog) Stock(productID int64) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries == nil {
		return mockDefaultStock
	}
	return m.entries[productID].Stock
}

var (
	_ domain.ProductCatalog   = (*MockCatalog)(nil)
	_ domain.InventoryService = (*MockCatalog)(nil)
)
