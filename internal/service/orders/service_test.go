package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/expirians/orders-ms/internal/domain"
	"github.com/expirians/orders-ms/internal/messaging/kafka"
	"github.com/expirians/orders-ms/internal/storage/memory"
)

type stubDirectory struct {
	client domain.Client
	err    error
	delay  time.Duration
	calls  int
}

func (s *stubDirectory) ValidateClient(ctx context.Context, clientID int64) (domain.Client, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return domain.Client{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return domain.Client{}, s.err
	}
	if s.client.ID != 0 {
		return s.client, nil
	}
	return domain.Client{ID: clientID, Name: fmt.Sprintf("client-%d", clientID)}, nil
}

type stubCatalog struct {
	entries []domain.CatalogEntry
	err     error
	calls   int
}

func (s *stubCatalog) ValidateProducts(_ context.Context, productIDs []int64) ([]domain.CatalogEntry, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	byID := make(map[int64]domain.CatalogEntry, len(s.entries))
	for _, entry := range s.entries {
		byID[entry.ProductID] = entry
	}
	result := make([]domain.CatalogEntry, 0, len(productIDs))
	for _, id := range productIDs {
		if entry, ok := byID[id]; ok {
			result = append(result, entry)
		}
	}
	return result, nil
}

type inventoryCall struct {
	op        string
	productID int64
	qty       int32
}

type stubInventory struct {
	failDecrement map[int64]error
	failIncrement map[int64]error
	onDecrement   func(productID int64)
	calls         []inventoryCall
}

func (s *stubInventory) Decrement(_ context.Context, productID int64, qty int32) error {
	if s.onDecrement != nil {
		s.onDecrement(productID)
	}
	if err, ok := s.failDecrement[productID]; ok {
		return err
	}
	s.calls = append(s.calls, inventoryCall{op: "decrement", productID: productID, qty: qty})
	return nil
}

func (s *stubInventory) Increment(_ context.Context, productID int64, qty int32) error {
	if err, ok := s.failIncrement[productID]; ok {
		return err
	}
	s.calls = append(s.calls, inventoryCall{op: "increment", productID: productID, qty: qty})
	return nil
}

type failingOrderRepository struct {
	err error
}

func (r *failingOrderRepository) CreateWithItems(context.Context, domain.Order, []domain.OrderItem) (domain.Order, error) {
	return domain.Order{}, r.err
}

func (r *failingOrderRepository) Get(context.Context, int64) (domain.Order, error) {
	return domain.Order{}, r.err
}

func (r *failingOrderRepository) List(context.Context) ([]domain.Order, error) {
	return nil, r.err
}

func (r *failingOrderRepository) UpdateStatus(context.Context, int64, domain.OrderStatus) (domain.Order, error) {
	return domain.Order{}, r.err
}

type serviceEnv struct {
	service   *Service
	directory *stubDirectory
	catalog   *stubCatalog
	inventory *stubInventory
	outbox    domain.OutboxRepository
}

func newServiceEnv(t *testing.T, options ...Option) *serviceEnv {
	t.Helper()

	env := &serviceEnv{
		directory: &stubDirectory{},
		catalog: &stubCatalog{
			entries: []domain.CatalogEntry{
				{ProductID: 1, Name: "keyboard", PriceMinor: 4500, Stock: 10},
				{ProductID: 2, Name: "mouse", PriceMinor: 1500, Stock: 5},
				{ProductID: 3, Name: "monitor", PriceMinor: 30000, Stock: 2},
			},
		},
		inventory: &stubInventory{},
		outbox:    memory.NewOutboxRepository(),
	}
	env.service = NewService(
		memory.NewOrderRepository(),
		env.directory,
		env.catalog,
		env.inventory,
		env.outbox,
		nil,
		options...,
	)
	return env
}

func validRequest() domain.CreateOrderRequest {
	return domain.CreateOrderRequest{
		ClientID: 7,
		Items: []domain.OrderLine{
			{ProductID: 1, Qty: 2},
			{ProductID: 2, Qty: 1},
		},
	}
}

func TestCreateOrder_Success(t *testing.T) {
	env := newServiceEnv(t)

	view, err := env.service.CreateOrder(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if view.Order.ID == 0 {
		t.Fatal("expected assigned order id")
	}
	if view.Order.Status != domain.OrderStatusPending {
		t.Fatalf("expected status pending, got %s", view.Order.Status)
	}
	if view.Order.TotalAmountMinor != 2*4500+1500 {
		t.Fatalf("unexpected total amount: %d", view.Order.TotalAmountMinor)
	}
	if view.Order.TotalItems != 3 {
		t.Fatalf("unexpected total items: %d", view.Order.TotalItems)
	}
	if view.ClientName != "client-7" {
		t.Fatalf("unexpected client name: %s", view.ClientName)
	}
	if len(view.Items) != 2 {
		t.Fatalf("expected 2 item views, got %d", len(view.Items))
	}
	if view.Items[0].ProductName != "keyboard" {
		t.Fatalf("unexpected product name: %s", view.Items[0].ProductName)
	}
	if view.Items[0].PriceMinor != 4500 {
		t.Fatalf("expected snapshot price 4500, got %d", view.Items[0].PriceMinor)
	}

	if len(env.inventory.calls) != 2 {
		t.Fatalf("expected 2 decrements, got %d", len(env.inventory.calls))
	}
	if env.inventory.calls[0] != (inventoryCall{op: "decrement", productID: 1, qty: 2}) {
		t.Fatalf("unexpected first decrement: %+v", env.inventory.calls[0])
	}

	pending, err := env.outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(pending))
	}
	if pending[0].EventType != string(kafka.EventTypeOrderCreated) {
		t.Fatalf("unexpected event type: %s", pending[0].EventType)
	}
}

func TestCreateOrder_AggregatesDuplicateLines(t *testing.T) {
	env := newServiceEnv(t)

	req := domain.CreateOrderRequest{
		ClientID: 7,
		Items: []domain.OrderLine{
			{ProductID: 1, Qty: 2},
			{ProductID: 2, Qty: 1},
			{ProductID: 1, Qty: 3},
		},
	}

	view, err := env.service.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if len(view.Order.Items) != 2 {
		t.Fatalf("expected 2 aggregated items, got %d", len(view.Order.Items))
	}
	if view.Order.Items[0].Qty != 5 {
		t.Fatalf("expected aggregated qty 5, got %d", view.Order.Items[0].Qty)
	}
	if view.Order.TotalAmountMinor != 5*4500+1500 {
		t.Fatalf("unexpected total amount: %d", view.Order.TotalAmountMinor)
	}
	if len(env.inventory.calls) != 2 {
		t.Fatalf("expected one decrement per product, got %d", len(env.inventory.calls))
	}
}

func TestCreateOrder_ValidationFailed(t *testing.T) {
	env := newServiceEnv(t)

	tests := []struct {
		name string
		req  domain.CreateOrderRequest
	}{
		{"zero client", domain.CreateOrderRequest{Items: []domain.OrderLine{{ProductID: 1, Qty: 1}}}},
		{"no items", domain.CreateOrderRequest{ClientID: 7}},
		{"bad qty", domain.CreateOrderRequest{ClientID: 7, Items: []domain.OrderLine{{ProductID: 1, Qty: 0}}}},
		{"bad product id", domain.CreateOrderRequest{ClientID: 7, Items: []domain.OrderLine{{ProductID: -1, Qty: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.CreateOrder(context.Background(), tt.req)
			if !domain.IsFault(err, domain.FaultValidationFailed) {
				t.Fatalf("expected validation fault, got %v", err)
			}
			if len(env.inventory.calls) != 0 {
				t.Fatalf("no stock mutations expected, got %d", len(env.inventory.calls))
			}
		})
	}
}

func TestCreateOrder_MissingProducts(t *testing.T) {
	env := newServiceEnv(t)

	req := domain.CreateOrderRequest{
		ClientID: 7,
		Items: []domain.OrderLine{
			{ProductID: 1, Qty: 1},
			{ProductID: 99, Qty: 1},
		},
	}

	_, err := env.service.CreateOrder(context.Background(), req)
	if !domain.IsFault(err, domain.FaultNotFound) {
		t.Fatalf("expected not found fault, got %v", err)
	}
	fault, _ := domain.AsFault(err)
	if fault.ProductID != 99 {
		t.Fatalf("expected missing product 99 in fault, got %d", fault.ProductID)
	}
	if len(env.inventory.calls) != 0 {
		t.Fatal("no stock mutations expected for missing products")
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	env := newServiceEnv(t)

	req := domain.CreateOrderRequest{
		ClientID: 7,
		Items: []domain.OrderLine{
			{ProductID: 1, Qty: 1},
			{ProductID: 3, Qty: 5}, // только 2 на складе
		},
	}

	_, err := env.service.CreateOrder(context.Background(), req)
	if !domain.IsFault(err, domain.FaultInsufficientStock) {
		t.Fatalf("expected insufficient stock fault, got %v", err)
	}
	fault, _ := domain.AsFault(err)
	if fault.ProductID != 3 || fault.Available != 2 || fault.Requested != 5 {
		t.Fatalf("unexpected fault payload: %+v", fault)
	}
	if len(env.inventory.calls) != 0 {
		t.Fatal("stock check must run before any decrement")
	}
}

func TestCreateOrder_ClientValidationFails(t *testing.T) {
	env := newServiceEnv(t)
	env.directory.err = &domain.Fault{
		Kind:     domain.FaultValidationFailed,
		Message:  "client 7 does not exist",
		ClientID: 7,
	}

	_, err := env.service.CreateOrder(context.Background(), validRequest())
	if !domain.IsFault(err, domain.FaultValidationFailed) {
		t.Fatalf("expected validation fault, got %v", err)
	}
	if len(env.inventory.calls) != 0 {
		t.Fatal("no stock mutations expected when client validation fails")
	}
}

func TestCreateOrder_DirectoryUnavailable(t *testing.T) {
	env := newServiceEnv(t)
	env.directory.err = errors.New("connection refused")

	_, err := env.service.CreateOrder(context.Background(), validRequest())
	if !domain.IsFault(err, domain.FaultDependencyFailure) {
		t.Fatalf("expected dependency failure, got %v", err)
	}
	if len(env.inventory.calls) != 0 {
		t.Fatal("no stock mutations expected when directory is down")
	}
}

func TestCreateOrder_DirectoryTimeout(t *testing.T) {
	env := newServiceEnv(t, WithCallTimeout(20*time.Millisecond))
	env.directory.delay = time.Second

	_, err := env.service.CreateOrder(context.Background(), validRequest())
	if !domain.IsFault(err, domain.FaultTimeout) {
		t.Fatalf("expected timeout fault, got %v", err)
	}
}

func TestCreateOrder_ValidatesCollaboratorsConcurrently(t *testing.T) {
	env := newServiceEnv(t)

	if _, err := env.service.CreateOrder(context.Background(), validRequest()); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if env.directory.calls != 1 {
		t.Fatalf("expected 1 directory call, got %d", env.directory.calls)
	}
	if env.catalog.calls != 1 {
		t.Fatalf("expected 1 catalog call, got %d", env.catalog.calls)
	}
}

func TestCreateOrder_FirstDecrementFails(t *testing.T) {
	env := newServiceEnv(t)
	env.inventory.failDecrement = map[int64]error{1: errors.New("restock service down")}

	_, err := env.service.CreateOrder(context.Background(), validRequest())
	if !domain.IsFault(err, domain.FaultDependencyFailure) {
		t.Fatalf("expected dependency failure for clean first-step failure, got %v", err)
	}
	for _, call := range env.inventory.calls {
		if call.op == "increment" {
			t.Fatal("no compensation expected when nothing was decremented")
		}
	}
}

func TestCreateOrder_MidSequenceDecrementFails(t *testing.T) {
	env := newServiceEnv(t)
	env.inventory.failDecrement = map[int64]error{2: errors.New("restock service down")}

	_, err := env.service.CreateOrder(context.Background(), validRequest())
	if !domain.IsFault(err, domain.FaultPartialMutation) {
		t.Fatalf("expected partial mutation fault, got %v", err)
	}
	fault, _ := domain.AsFault(err)
	if !fault.Compensated {
		t.Fatal("expected fault to report successful compensation")
	}
	if fault.ProductID != 2 {
		t.Fatalf("expected fault to name failed product 2, got %d", fault.ProductID)
	}
	if len(fault.CompletedProducts) != 1 || fault.CompletedProducts[0] != 1 {
		t.Fatalf("unexpected completed products: %v", fault.CompletedProducts)
	}

	// Списание товара 1, затем компенсирующий возврат.
	want := []inventoryCall{
		{op: "decrement", productID: 1, qty: 2},
		{op: "increment", productID: 1, qty: 2},
	}
	if len(env.inventory.calls) != len(want) {
		t.Fatalf("unexpected inventory calls: %+v", env.inventory.calls)
	}
	for i, call := range want {
		if env.inventory.calls[i] != call {
			t.Fatalf("unexpected inventory call %d: %+v", i, env.inventory.calls[i])
		}
	}
}

func TestCreateOrder_CancelledDuringValidation(t *testing.T) {
	env := newServiceEnv(t)
	env.directory.delay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(10*time.Millisecond, cancel)
	defer timer.Stop()

	_, err := env.service.CreateOrder(ctx, validRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if len(env.inventory.calls) != 0 {
		t.Fatal("no stock mutations expected after early cancellation")
	}
}

func TestCreateOrder_CancelledMidDecrement(t *testing.T) {
	env := newServiceEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Отмена приходит во время первого списания: второе стартовать не должно.
	env.inventory.onDecrement = func(productID int64) {
		if productID == 1 {
			cancel()
		}
	}

	_, err := env.service.CreateOrder(ctx, validRequest())
	if !domain.IsFault(err, domain.FaultPartialMutation) {
		t.Fatalf("expected partial mutation fault, got %v", err)
	}
	fault, _ := domain.AsFault(err)
	if !fault.Compensated {
		t.Fatal("expected fault to report successful compensation")
	}
	if fault.ProductID != 2 {
		t.Fatalf("expected fault to name product 2, got %d", fault.ProductID)
	}

	// Завершённое списание товара 1 компенсировано, товар 2 не тронут.
	want := []inventoryCall{
		{op: "decrement", productID: 1, qty: 2},
		{op: "increment", productID: 1, qty: 2},
	}
	if len(env.inventory.calls) != len(want) {
		t.Fatalf("unexpected inventory calls: %+v", env.inventory.calls)
	}
	for i, call := range want {
		if env.inventory.calls[i] != call {
			t.Fatalf("unexpected inventory call %d: %+v", i, env.inventory.calls[i])
		}
	}
}

func TestCreateOrder_CompensationFails(t *testing.T) {
	env := newServiceEnv(t)
	env.inventory.failDecrement = map[int64]error{2: errors.New("restock service down")}
	env.inventory.failIncrement = map[int64]error{1: errors.New("restock service down")}

	_, err := env.service.CreateOrder(context.Background(), validRequest())
	if !domain.IsFault(err, domain.FaultPartialMutation) {
		t.Fatalf("expected partial mutation fault, got %v", err)
	}
	fault, _ := domain.AsFault(err)
	if fault.Compensated {
		t.Fatal("expected fault to report failed compensation")
	}

	pending, err := env.outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected reconciliation event, got %d messages", len(pending))
	}
	if pending[0].EventType != string(kafka.EventTypeReconciliationRequired) {
		t.Fatalf("unexpected event type: %s", pending[0].EventType)
	}
}

func TestCreateOrder_PersistenceFailureCompensatesAll(t *testing.T) {
	env := newServiceEnv(t)
	repoErr := errors.New("connection reset")
	env.service = NewService(
		&failingOrderRepository{err: repoErr},
		env.directory,
		env.catalog,
		env.inventory,
		env.outbox,
		nil,
	)

	_, err := env.service.CreateOrder(context.Background(), validRequest())
	if !domain.IsFault(err, domain.FaultDependencyFailure) {
		t.Fatalf("expected dependency failure, got %v", err)
	}
	fault, _ := domain.AsFault(err)
	if !fault.Compensated {
		t.Fatal("expected full compensation after persistence failure")
	}

	// Оба списания компенсированы, в обратном порядке.
	var increments []inventoryCall
	for _, call := range env.inventory.calls {
		if call.op == "increment" {
			increments = append(increments, call)
		}
	}
	if len(increments) != 2 {
		t.Fatalf("expected 2 increments, got %d", len(increments))
	}
	if increments[0].productID != 2 || increments[1].productID != 1 {
		t.Fatalf("expected reverse-order compensation, got %+v", increments)
	}
}

func TestChangeStatus_Success(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	view, err := env.service.CreateOrder(ctx, validRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	updated, err := env.service.ChangeStatus(ctx, view.Order.ID, domain.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("change status failed: %v", err)
	}
	if updated.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected status delivered, got %s", updated.Status)
	}

	pending, err := env.outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	var found bool
	for _, msg := range pending {
		if msg.EventType == string(kafka.EventTypeOrderStatusChanged) {
			found = true
		}
	}
	if !found {
		t.Fatal("expected status change event in outbox")
	}
}

func TestChangeStatus_NoOpRejected(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	view, err := env.service.CreateOrder(ctx, validRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	_, err = env.service.ChangeStatus(ctx, view.Order.ID, domain.OrderStatusPending)
	if !domain.IsFault(err, domain.FaultInvalidTransition) {
		t.Fatalf("expected invalid transition fault, got %v", err)
	}
}

func TestChangeStatus_BackwardTransitionAllowed(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	view, err := env.service.CreateOrder(ctx, validRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if _, err := env.service.ChangeStatus(ctx, view.Order.ID, domain.OrderStatusCancelled); err != nil {
		t.Fatalf("change to cancelled failed: %v", err)
	}
	if _, err := env.service.ChangeStatus(ctx, view.Order.ID, domain.OrderStatusPending); err != nil {
		t.Fatalf("change back to pending failed: %v", err)
	}
}

func TestChangeStatus_DirectoryFailureIsFatal(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	view, err := env.service.CreateOrder(ctx, validRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	// Чтение заказа идёт через FindOne, так что отказ справочника
	// блокирует смену статуса.
	env.directory.err = errors.New("connection refused")
	_, err = env.service.ChangeStatus(ctx, view.Order.ID, domain.OrderStatusDelivered)
	if !domain.IsFault(err, domain.FaultDependencyFailure) {
		t.Fatalf("expected dependency failure, got %v", err)
	}
}

func TestChangeStatus_Errors(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	_, err := env.service.ChangeStatus(ctx, 404, domain.OrderStatusDelivered)
	if !domain.IsFault(err, domain.FaultNotFound) {
		t.Fatalf("expected not found fault, got %v", err)
	}

	_, err = env.service.ChangeStatus(ctx, 1, domain.OrderStatus("shipped"))
	if !domain.IsFault(err, domain.FaultValidationFailed) {
		t.Fatalf("expected validation fault for unknown status, got %v", err)
	}
}

func TestFindOne_Success(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	view, err := env.service.CreateOrder(ctx, validRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	found, err := env.service.FindOne(ctx, view.Order.ID)
	if err != nil {
		t.Fatalf("find one failed: %v", err)
	}
	if found.ClientName != "client-7" {
		t.Fatalf("unexpected client name: %s", found.ClientName)
	}
	if len(found.Items) != 2 || found.Items[0].ProductName == "" {
		t.Fatalf("expected enriched items, got %+v", found.Items)
	}
}

func TestFindOne_NotFound(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.service.FindOne(context.Background(), 404)
	if !domain.IsFault(err, domain.FaultNotFound) {
		t.Fatalf("expected not found fault, got %v", err)
	}
}

func TestFindOne_DirectoryFailureIsFatal(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	view, err := env.service.CreateOrder(ctx, validRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	env.directory.err = errors.New("connection refused")
	_, err = env.service.FindOne(ctx, view.Order.ID)
	if !domain.IsFault(err, domain.FaultDependencyFailure) {
		t.Fatalf("expected dependency failure, got %v", err)
	}
}

func TestFindOne_CatalogFailureIsBestEffort(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	view, err := env.service.CreateOrder(ctx, validRequest())
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	env.catalog.err = errors.New("catalog down")
	found, err := env.service.FindOne(ctx, view.Order.ID)
	if err != nil {
		t.Fatalf("find one must survive catalog failure: %v", err)
	}
	if len(found.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(found.Items))
	}
	if found.Items[0].ProductName != "" {
		t.Fatal("expected empty product names when catalog is down")
	}
}

func TestFindAll(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.service.CreateOrder(ctx, validRequest()); err != nil {
			t.Fatalf("create order failed: %v", err)
		}
	}

	orders, err := env.service.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all failed: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}

	// findAll не обогащается внешними справочниками.
	if env.directory.calls != 3 {
		t.Fatalf("expected no extra directory calls, got %d", env.directory.calls)
	}
}

func TestFindAll_RepositoryError(t *testing.T) {
	env := newServiceEnv(t)
	env.service = NewService(
		&failingOrderRepository{err: errors.New("connection reset")},
		env.directory,
		env.catalog,
		env.inventory,
		env.outbox,
		nil,
	)

	_, err := env.service.FindAll(context.Background())
	if !domain.IsFault(err, domain.FaultDependencyFailure) {
		t.Fatalf("expected dependency failure, got %v", err)
	}
}

func TestTransitionAllowed(t *testing.T) {
	if transitionAllowed(domain.OrderStatusPending, domain.OrderStatusPending) {
		t.Fatal("no-op transition must be rejected")
	}
	if !transitionAllowed(domain.OrderStatusPending, domain.OrderStatusDelivered) {
		t.Fatal("forward transition must be allowed")
	}
	if !transitionAllowed(domain.OrderStatusDelivered, domain.OrderStatusPending) {
		t.Fatal("backward transition must be allowed")
	}
}
