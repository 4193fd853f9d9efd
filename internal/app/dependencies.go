package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/expirians/orders-ms/internal/domain"
	"github.com/expirians/orders-ms/internal/service/clients"
	"github.com/expirians/orders-ms/internal/service/products"
	"github.com/expirians/orders-ms/internal/storage/memory"
	"github.com/expirians/orders-ms/internal/storage/postgres"
	"github.com/expirians/orders-ms/internal/transport/tcprpc"
)

// Dependencies содержит все зависимости приложения: хранилище, клиентов
// внешних микросервисов и пул ресурсов, требующих закрытия при остановке.
type Dependencies struct {
	Repo       domain.OrderRepository
	OutboxRepo domain.OutboxRepository
	Directory  domain.ClientDirectory
	Catalog    domain.ProductCatalog
	Inventory  domain.InventoryService
	Store      *postgres.Store
	Logger     *log.Entry

	closers []func() error
}

// NewDependencies создаёт и инициализирует зависимости приложения по конфигу.
// Пустой PostgresDSN включает in-memory хранилище, пустые адреса внешних
// сервисов — mock-реализации для локальной разработки.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		deps.Store = store
		deps.Repo = postgres.NewOrderRepository(store)
		deps.OutboxRepo = postgres.NewOutboxRepository(store)
		deps.closers = append(deps.closers, store.Close)
		logger.Info("postgres storage initialized")
	} else {
		deps.Repo = memory.NewOrderRepository()
		deps.OutboxRepo = memory.NewOutboxRepository()
		logger.Info("in-memory storage initialized")
	}

	if cfg.ClientsAddr != "" {
		rpcClient := tcprpc.NewClient(cfg.ClientsAddr,
			tcprpc.WithClientLogger(logger.WithField("target", "clients-ms")))
		deps.Directory = clients.NewDirectoryClient(rpcClient, logger.WithField("collaborator", "clients"))
		deps.closers = append(deps.closers, rpcClient.Close)
		logger.WithField("addr", cfg.ClientsAddr).Info("clients-ms connection configured")
	} else {
		deps.Directory = clients.NewMockDirectory()
		logger.Info("using mock client directory")
	}

	if cfg.ProductsAddr != "" {
		rpcClient := tcprpc.NewClient(cfg.ProductsAddr,
			tcprpc.WithClientLogger(logger.WithField("target", "products-ms")))
		catalog := products.NewCatalogClient(rpcClient, logger.WithField("collaborator", "products"))
		deps.Catalog = catalog
		deps.Inventory = catalog
		deps.closers = append(deps.closers, rpcClient.Close)
		logger.WithField("addr", cfg.ProductsAddr).Info("products-ms connection configured")
	} else {
		catalog := products.NewMockCatalog()
		deps.Catalog = catalog
		deps.Inventory = catalog
		logger.Info("using mock product catalog")
	}

	return deps, nil
}

// Close закрывает все ресурсы в обратном порядке создания.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Logger.WithError(err).Warn("failed to close dependency")
		}
	}
	d.closers = nil
}
