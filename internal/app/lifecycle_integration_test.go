package app

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/expirians/orders-ms/internal/domain"
	"github.com/expirians/orders-ms/internal/service/orders"
	"github.com/expirians/orders-ms/internal/service/products"
	ordersrpc "github.com/expirians/orders-ms/internal/service/rpc"
	"github.com/expirians/orders-ms/internal/transport/tcprpc"
)

// Полный жизненный цикл заказа через TCP-интерфейс: создание, просмотр,
// смена статуса и выборка списка — на in-memory хранилище и mock-сервисах.
func TestOrderLifecycleOverTCP(t *testing.T) {
	logger := log.WithField("test", "lifecycle")

	deps, err := NewDependencies(context.Background(), DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	defer deps.Close()

	catalog := products.NewMockCatalogWithEntries([]domain.CatalogEntry{
		{ProductID: 1, Name: "keyboard", PriceMinor: 4500, Stock: 10},
		{ProductID: 2, Name: "mouse", PriceMinor: 1500, Stock: 5},
	})

	orderService := orders.NewService(
		deps.Repo,
		deps.Directory,
		catalog,
		catalog,
		deps.OutboxRepo,
		logger,
	)

	server := tcprpc.NewServer(logger)
	ordersrpc.NewHandler(orderService, logger).Register(server)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	serveDone := make(chan error, 1)
	go func() { serveDone <- server.Serve(lis) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		<-serveDone
	}()

	client := tcprpc.NewClient(lis.Addr().String())
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type itemPayload struct {
		ProductID   int64  `json:"productId"`
		ProductName string `json:"productName"`
		Quantity    int32  `json:"quantity"`
		PriceMinor  int64  `json:"priceMinor"`
	}
	type orderPayload struct {
		ID               int64         `json:"id"`
		ClientID         int64         `json:"clientId"`
		ClientName       string        `json:"clientName"`
		TotalAmountMinor int64         `json:"totalAmountMinor"`
		TotalItems       int32         `json:"totalItems"`
		Status           string        `json:"status"`
		OrderItems       []itemPayload `json:"orderItems"`
	}

	// Создаём заказ.
	var created orderPayload
	createReq := map[string]any{
		"clientId": int64(7),
		"orderItems": []map[string]any{
			{"productId": int64(1), "quantity": int32(2)},
			{"productId": int64(2), "quantity": int32(1)},
		},
	}
	if err := client.Invoke(ctx, ordersrpc.CommandCreateOrder, createReq, &created); err != nil {
		t.Fatalf("createOrder: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned order id")
	}
	if created.TotalAmountMinor != 2*4500+1500 {
		t.Errorf("unexpected total: %d", created.TotalAmountMinor)
	}
	if created.Status != string(domain.OrderStatusPending) {
		t.Errorf("expected pending status, got %s", created.Status)
	}
	if catalog.Stock(1) != 8 || catalog.Stock(2) != 4 {
		t.Errorf("expected stock decremented to 8/4, got %d/%d", catalog.Stock(1), catalog.Stock(2))
	}

	// Читаем его обратно с обогащением.
	var found orderPayload
	if err := client.Invoke(ctx, ordersrpc.CommandFindOneOrder, map[string]any{"id": created.ID}, &found); err != nil {
		t.Fatalf("findOneOrder: %v", err)
	}
	if found.ClientName == "" {
		t.Error("expected client name enrichment in findOneOrder")
	}
	if len(found.OrderItems) != 2 {
		t.Fatalf("expected 2 items, got %d", len(found.OrderItems))
	}
	if found.OrderItems[0].ProductName != "keyboard" {
		t.Errorf("expected product name enrichment, got %q", found.OrderItems[0].ProductName)
	}

	// Меняем статус.
	var changed orderPayload
	changeReq := map[string]any{"id": created.ID, "status": "delivered"}
	if err := client.Invoke(ctx, ordersrpc.CommandChangeOrderStatus, changeReq, &changed); err != nil {
		t.Fatalf("changeOrderStatus: %v", err)
	}
	if changed.Status != string(domain.OrderStatusDelivered) {
		t.Errorf("expected delivered, got %s", changed.Status)
	}

	// Повторная установка того же статуса отклоняется.
	err = client.Invoke(ctx, ordersrpc.CommandChangeOrderStatus, changeReq, &changed)
	if err == nil {
		t.Fatal("expected invalid transition error")
	}
	var rpcErr *tcprpc.Error
	if !errors.As(err, &rpcErr) || rpcErr.Kind != string(domain.FaultInvalidTransition) {
		t.Errorf("expected %s, got %v", domain.FaultInvalidTransition, err)
	}

	// Список заказов отдаётся без обогащения.
	var list []orderPayload
	if err := client.Invoke(ctx, ordersrpc.CommandFindAllOrders, struct{}{}, &list); err != nil {
		t.Fatalf("findAllOrders: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 order, got %d", len(list))
	}
	if list[0].ClientName != "" {
		t.Error("findAllOrders must not enrich client names")
	}
	if list[0].Status != string(domain.OrderStatusDelivered) {
		t.Errorf("expected delivered in list, got %s", list[0].Status)
	}
}
