package products

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/expirians/orders-ms/internal/domain"
	"github.com/expirians/orders-ms/internal/transport/tcprpc"
)

const (
	commandValidateProducts = "validateProducts"
	commandRestockDecrement = "restockDecrement"
	commandRestockIncrement = "restockIncrement"
)

type validateProductsRequest struct {
	ProductIDs []int64 `json:"productIds"`
}

type productEntry struct {
	ProductID  int64  `json:"productId"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"priceMinor"`
	Stock      int32  `json:"stock"`
}

type restockRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
}

type restockResponse struct {
	ProductID int64 `json:"productId"`
	Stock     int32 `json:"stock"`
}

// CatalogClient ходит в сервис товаров по внутреннему RPC. Он закрывает
// обе роли каталога: чтение снимков и мутацию остатков.
type CatalogClient struct {
	rpc    *tcprpc.Client
	logger *log.Entry
}

// NewCatalogClient создаёт клиента каталога поверх tcprpc.
func NewCatalogClient(rpc *tcprpc.Client, logger *log.Entry) *CatalogClient {
	if logger == nil {
		logger = log.New().WithField("component", "products-catalog")
	}
	return &CatalogClient{rpc: rpc, logger: logger}
}

// ValidateProducts возвращает снимок цены/остатка по каждому найденному
// товару. Отсутствующие товары в ответ не попадают.
func (c *CatalogClient) ValidateProducts(ctx context.Context, productIDs []int64) ([]domain.CatalogEntry, error) {
	var resp []productEntry
	err := c.rpc.Invoke(ctx, commandValidateProducts, validateProductsRequest{ProductIDs: productIDs}, &resp)
	if err != nil {
		c.logger.WithError(err).Warn("product validation call failed")
		return nil, faultFromRPC(err)
	}

	entries := make([]domain.CatalogEntry, 0, len(resp))
	for _, entry := range resp {
		entries = append(entries, domain.CatalogEntry{
			ProductID:  entry.ProductID,
			Name:       entry.Name,
			PriceMinor: entry.PriceMinor,
			Stock:      entry.Stock,
		})
	}
	return entries, nil
}

// Decrement списывает qty единиц товара.
func (c *CatalogClient) Decrement(ctx context.Context, productID int64, qty int32) error {
	return c.restock(ctx, commandRestockDecrement, productID, qty)
}

// Increment возвращает qty единиц товара на склад.
func (c *CatalogClient) Increment(ctx context.Context, productID int64, qty int32) error {
	return c.restock(ctx, commandRestockIncrement, productID, qty)
}

func (c *CatalogClient) restock(ctx context.Context, command string, productID int64, qty int32) error {
	var resp restockResponse
	err := c.rpc.Invoke(ctx, command, restockRequest{ProductID: productID, Quantity: qty}, &resp)
	if err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"command":    command,
			"product_id": productID,
			"qty":        qty,
		}).Warn("restock call failed")
		return faultFromRPC(err)
	}
	return nil
}

// faultFromRPC переводит транспортную ошибку в структурированный отказ домена.
func faultFromRPC(err error) error {
	var rpcErr *tcprpc.Error
	if errors.As(err, &rpcErr) {
		kind := domain.FaultKind(rpcErr.Kind)
		switch kind {
		case domain.FaultNotFound, domain.FaultValidationFailed, domain.FaultInsufficientStock:
			return &domain.Fault{
				Kind:    kind,
				Message: rpcErr.Message,
				Err:     err,
			}
		}
		return &domain.Fault{
			Kind:    domain.FaultDependencyFailure,
			Message: rpcErr.Message,
			Err:     err,
		}
	}
	return err
}

var (
	_ domain.ProductCatalog   = (*CatalogClient)(nil)
	_ domain.InventoryService = (*CatalogClient)(nil)
)
