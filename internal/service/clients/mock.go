package clients

import (
	"context"
	"fmt"

	"github.com/expirians/orders-ms/internal/domain"
)

// MockDirectory — конфигурируемая заглушка ClientDirectory для тестов
// и локального запуска без клиентского сервиса.
type MockDirectory struct {
	Clients     map[int64]domain.Client
	ValidateErr error

	ValidateCalls int
}

// NewMockDirectory возвращает mock, подтверждающий любого клиента.
func NewMockDirectory() *MockDirectory {
	return &MockDirectory{}
}

// ValidateClient возвращает настроенного клиента или синтезирует запись.
func (m *MockDirectory) ValidateClient(_ context.Context, clientID int64) (domain.Client, error) {
	m.ValidateCalls++
	if m.ValidateErr != nil {
		return domain.Client{}, m.ValidateErr
	}
	if m.Clients != nil {
		client, ok := m.Clients[clientID]
		if !ok {
			return domain.Client{}, &domain.Fault{
				Kind:     domain.FaultValidationFailed,
				Message:  fmt.Sprintf("client %d does not exist", clientID),
				ClientID: clientID,
			}
		}
		return client, nil
	}
	return domain.Client{ID: clientID, Name: fmt.Sprintf("client-%d", clientID)}, nil
}

var _ domain.ClientDirectory = (*MockDirectory)(nil)
