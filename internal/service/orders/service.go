package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/expirians/orders-ms/internal/domain"
	"github.com/expirians/orders-ms/internal/messaging/kafka"
	"github.com/expirians/orders-ms/internal/metrics"
)

const defaultCallTimeout = 5 * time.Second

// Service оркестрирует жизненный цикл заказа: создание со списанием склада,
// смену статуса и чтение с обогащением из внешних справочников.
type Service struct {
	repo        domain.OrderRepository
	directory   domain.ClientDirectory
	catalog     domain.ProductCatalog
	inventory   domain.InventoryService
	outbox      domain.OutboxRepository
	logger      *log.Entry
	metrics     *metrics.OrderMetrics
	callTimeout time.Duration
}

// Option настраивает Service при создании.
type Option func(*Service)

// WithCallTimeout задаёт таймаут на каждый удалённый вызов.
func WithCallTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.callTimeout = timeout
		}
	}
}

// WithMetrics подключает сбор метрик.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService создаёт рабочий экземпляр оркестратора заказов.
func NewService(
	repo domain.OrderRepository,
	directory domain.ClientDirectory,
	catalog domain.ProductCatalog,
	inventory domain.InventoryService,
	outbox domain.OutboxRepository,
	logger *log.Entry,
	options ...Option,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	s := &Service{
		repo:        repo,
		directory:   directory,
		catalog:     catalog,
		inventory:   inventory,
		outbox:      outbox,
		logger:      logger,
		callTimeout: defaultCallTimeout,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// CreateOrder проводит заказ через полную цепочку: валидация клиента и товаров,
// проверка остатков, последовательное списание склада, фиксация заказа и
// событие в outbox. Цены берутся из снимка каталога на момент валидации.
func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.OrderView, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCreateDuration(time.Since(start))
		}
	}()

	if errs := req.Validate(); len(errs) > 0 {
		return domain.OrderView{}, s.fail(&domain.Fault{
			Kind:     domain.FaultValidationFailed,
			Message:  joinErrors(errs),
			ClientID: req.ClientID,
		})
	}

	client, entries, err := s.validateCollaborators(ctx, req)
	if err != nil {
		return domain.OrderView{}, s.fail(err)
	}

	catalogByID := make(map[int64]domain.CatalogEntry, len(entries))
	for _, entry := range entries {
		catalogByID[entry.ProductID] = entry
	}

	if fault := s.checkCatalogCoverage(req, catalogByID); fault != nil {
		return domain.OrderView{}, s.fail(fault)
	}

	lines := aggregateLines(req.Items)

	if fault := checkStock(lines, catalogByID); fault != nil {
		return domain.OrderView{}, s.fail(fault)
	}

	completed, err := s.decrementStock(ctx, req.ClientID, lines)
	if err != nil {
		return domain.OrderView{}, s.fail(err)
	}

	order, items := buildOrder(req.ClientID, lines, catalogByID)

	created, err := s.repo.CreateWithItems(ctx, order, items)
	if err != nil {
		s.logger.WithError(err).WithField("client_id", req.ClientID).Error("order persistence failed, compensating stock")
		return domain.OrderView{}, s.fail(s.compensate(ctx, req.ClientID, completed, err, 0, domain.FaultDependencyFailure))
	}

	s.enqueueOrderEvent(kafka.EventTypeOrderCreated, created, nil)

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	s.logger.WithFields(log.Fields{
		"order_id":  created.ID,
		"client_id": created.ClientID,
		"total":     created.TotalAmountMinor,
		"items":     created.TotalItems,
	}).Info("order created")

	return assembleView(created, client.Name, catalogByID), nil
}

// FindAll возвращает все заказы без обогащения внешними справочниками.
func (s *Service) FindAll(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.fail(&domain.Fault{
			Kind:    domain.FaultDependencyFailure,
			Message: "failed to list orders",
			Err:     err,
		})
	}
	return orders, nil
}

// FindOne возвращает заказ, обогащённый именем клиента. Отказ клиентского
// справочника фатален; имена товаров подставляются по возможности.
func (s *Service) FindOne(ctx context.Context, id int64) (domain.OrderView, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.OrderView{}, s.fail(&domain.Fault{
				Kind:    domain.FaultNotFound,
				Message: fmt.Sprintf("order %d not found", id),
				OrderID: id,
			})
		}
		return domain.OrderView{}, s.fail(&domain.Fault{
			Kind:    domain.FaultDependencyFailure,
			Message: "failed to load order",
			OrderID: id,
			Err:     err,
		})
	}

	callCtx, cancel := s.remoteCtx(ctx)
	client, err := s.directory.ValidateClient(callCtx, order.ClientID)
	cancel()
	if err != nil {
		return domain.OrderView{}, s.fail(s.faultFromRemote(err, "client lookup failed", order.ClientID))
	}

	names := s.lookupProductNames(ctx, order)

	return assembleView(order, client.Name, names), nil
}

// ChangeStatus переводит заказ в новый статус. Заказ читается через FindOne,
// поэтому недоступность клиентского справочника блокирует смену статуса.
// Повторная установка текущего статуса отклоняется, остальные переходы разрешены.
func (s *Service) ChangeStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, s.fail(&domain.Fault{
			Kind:    domain.FaultValidationFailed,
			Message: fmt.Sprintf("unknown order status %q", status),
			OrderID: id,
		})
	}

	view, err := s.FindOne(ctx, id)
	if err != nil {
		// FindOne уже зафиксировал отказ в метриках.
		return domain.Order{}, err
	}
	order := view.Order

	if !transitionAllowed(order.Status, status) {
		return domain.Order{}, s.fail(&domain.Fault{
			Kind:    domain.FaultInvalidTransition,
			Message: fmt.Sprintf("order %d is already %s", id, status),
			OrderID: id,
		})
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, s.fail(&domain.Fault{
				Kind:    domain.FaultNotFound,
				Message: fmt.Sprintf("order %d not found", id),
				OrderID: id,
			})
		}
		return domain.Order{}, s.fail(&domain.Fault{
			Kind:    domain.FaultDependencyFailure,
			Message: "failed to update order status",
			OrderID: id,
			Err:     err,
		})
	}

	s.enqueueOrderEvent(kafka.EventTypeOrderStatusChanged, updated, map[string]interface{}{
		"previous_status": string(order.Status),
	})

	if s.metrics != nil {
		s.metrics.RecordStatusChanged()
	}
	s.logger.WithFields(log.Fields{
		"order_id": updated.ID,
		"from":     string(order.Status),
		"to":       string(updated.Status),
	}).Info("order status changed")

	return updated, nil
}

// transitionAllowed — единственная точка принятия решения о смене статуса.
// Запрещён только переход в текущий статус.
func transitionAllowed(from, to domain.OrderStatus) bool {
	return from != to
}

// validateCollaborators параллельно подтверждает клиента и товары.
func (s *Service) validateCollaborators(ctx context.Context, req domain.CreateOrderRequest) (domain.Client, []domain.CatalogEntry, error) {
	var (
		client  domain.Client
		entries []domain.CatalogEntry
	)

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		callCtx, cancel := s.remoteCtx(groupCtx)
		defer cancel()

		c, err := s.directory.ValidateClient(callCtx, req.ClientID)
		if err != nil {
			return s.faultFromRemote(err, "client validation failed", req.ClientID)
		}
		client = c
		return nil
	})

	g.Go(func() error {
		callCtx, cancel := s.remoteCtx(groupCtx)
		defer cancel()

		found, err := s.catalog.ValidateProducts(callCtx, req.ProductIDs())
		if err != nil {
			return s.faultFromRemote(err, "product validation failed", req.ClientID)
		}
		entries = found
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.Client{}, nil, err
	}
	return client, entries, nil
}

// checkCatalogCoverage требует, чтобы каталог подтвердил каждый товар запроса.
func (s *Service) checkCatalogCoverage(req domain.CreateOrderRequest, catalogByID map[int64]domain.CatalogEntry) *domain.Fault {
	var missing []int64
	for _, id := range req.ProductIDs() {
		if _, ok := catalogByID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &domain.Fault{
		Kind:      domain.FaultNotFound,
		Message:   fmt.Sprintf("products not found in catalog: %s", formatIDs(missing)),
		ClientID:  req.ClientID,
		ProductID: missing[0],
	}
}

// checkStock выполняет полный проход по остаткам до первого списания.
func checkStock(lines []domain.OrderLine, catalogByID map[int64]domain.CatalogEntry) *domain.Fault {
	for _, line := range lines {
		entry := catalogByID[line.ProductID]
		if entry.Stock < line.Qty {
			return &domain.Fault{
				Kind:      domain.FaultInsufficientStock,
				Message:   fmt.Sprintf("product %d has %d in stock, %d requested", line.ProductID, entry.Stock, line.Qty),
				ProductID: line.ProductID,
				Available: entry.Stock,
				Requested: line.Qty,
			}
		}
	}
	return nil
}

// decrementStock списывает позиции строго последовательно, в порядке запроса.
// Отмена запроса останавливает цикл перед следующим списанием; при отказе
// или отмене в середине выполняется компенсация уже списанных позиций.
func (s *Service) decrementStock(ctx context.Context, clientID int64, lines []domain.OrderLine) ([]domain.OrderLine, error) {
	completed := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			if len(completed) == 0 {
				return nil, err
			}
			return nil, s.compensate(ctx, clientID, completed, err, line.ProductID, domain.FaultPartialMutation)
		}

		callCtx, cancel := s.remoteCtx(ctx)
		err := s.inventory.Decrement(callCtx, line.ProductID, line.Qty)
		cancel()
		if err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"product_id": line.ProductID,
				"qty":        line.Qty,
			}).Error("stock decrement failed")

			if len(completed) == 0 {
				// Ничего ещё не списано, состояние склада не тронуто.
				return nil, s.faultFromRemote(err, fmt.Sprintf("stock decrement failed for product %d", line.ProductID), clientID)
			}
			return nil, s.compensate(ctx, clientID, completed, err, line.ProductID, domain.FaultPartialMutation)
		}
		if s.metrics != nil {
			s.metrics.RecordDecrement()
		}
		completed = append(completed, line)
	}
	return completed, nil
}

// compensate возвращает на склад уже списанные позиции в обратном порядке.
// failedProductID — товар, на котором прервалась сага (0, если отказ не связан
// с конкретной позицией). fullKind задаёт вид отказа при полностью успешной
// компенсации; если возврат не удался, отказ всегда PartialMutation и в outbox
// фиксируется событие для ручной сверки.
func (s *Service) compensate(ctx context.Context, clientID int64, completed []domain.OrderLine, cause error, failedProductID int64, fullKind domain.FaultKind) error {
	// Компенсация должна пройти даже после отмены исходного запроса.
	compCtx := context.WithoutCancel(ctx)

	var failedProducts []int64
	for i := len(completed) - 1; i >= 0; i-- {
		line := completed[i]
		callCtx, cancel := context.WithTimeout(compCtx, s.callTimeout)
		err := s.inventory.Increment(callCtx, line.ProductID, line.Qty)
		cancel()
		if err != nil {
			s.logger.WithError(err).WithField("product_id", line.ProductID).Error("stock compensation failed")
			failedProducts = append(failedProducts, line.ProductID)
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordCompensation()
		}
	}

	completedProducts := make([]int64, 0, len(completed))
	for _, line := range completed {
		completedProducts = append(completedProducts, line.ProductID)
	}

	fault := &domain.Fault{
		ClientID:          clientID,
		ProductID:         failedProductID,
		CompletedProducts: completedProducts,
		Err:               cause,
	}

	if len(failedProducts) > 0 {
		s.enqueueReconciliation(clientID, failedProducts)
		if s.metrics != nil {
			s.metrics.RecordReconciliationRequired()
		}
		fault.Kind = domain.FaultPartialMutation
		fault.Compensated = false
		fault.Message = fmt.Sprintf("stock mutation failed and compensation is incomplete for products %s", formatIDs(failedProducts))
		return fault
	}

	fault.Kind = fullKind
	fault.Compensated = true
	fault.Message = "order creation failed, stock changes were rolled back"
	if failedProductID != 0 {
		fault.Message = fmt.Sprintf("stock decrement stopped at product %d, stock changes were rolled back", failedProductID)
	}
	if fullKind != domain.FaultPartialMutation && errors.Is(cause, context.DeadlineExceeded) {
		fault.Kind = domain.FaultTimeout
		fault.Message = "order creation timed out, stock changes were rolled back"
	}
	return fault
}

// enqueueOrderEvent кладёт событие заказа в outbox. Отказ outbox не фатален
// для уже зафиксированного заказа.
func (s *Service) enqueueOrderEvent(eventType kafka.EventType, order domain.Order, metadata map[string]interface{}) {
	if s.outbox == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.ClientID, string(order.Status), metadata)
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal order event")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   fmt.Sprintf("%d", order.ID),
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to enqueue order event")
		return
	}

	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}

// enqueueReconciliation фиксирует невосстановленные списания для ручной сверки.
func (s *Service) enqueueReconciliation(clientID int64, productIDs []int64) {
	if s.outbox == nil {
		return
	}

	event := kafka.NewReconciliationEvent(clientID, productIDs, "stock compensation failed")
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal reconciliation event")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "inventory",
		AggregateID:   fmt.Sprintf("%d", clientID),
		EventType:     string(kafka.EventTypeReconciliationRequired),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).Error("failed to enqueue reconciliation event")
		return
	}

	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}

// lookupProductNames подтягивает имена товаров. Отказ каталога не мешает
// вернуть заказ, имена тогда остаются пустыми.
func (s *Service) lookupProductNames(ctx context.Context, order domain.Order) map[int64]domain.CatalogEntry {
	ids := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	if len(ids) == 0 {
		return nil
	}

	callCtx, cancel := s.remoteCtx(ctx)
	defer cancel()

	entries, err := s.catalog.ValidateProducts(callCtx, ids)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("product name enrichment failed")
		return nil
	}

	byID := make(map[int64]domain.CatalogEntry, len(entries))
	for _, entry := range entries {
		byID[entry.ProductID] = entry
	}
	return byID
}

func (s *Service) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.callTimeout)
}

// faultFromRemote переводит ошибку удалённого вызова в структурированный отказ.
// Отмена вызывающей стороной возвращается как есть: это не сбой зависимости.
func (s *Service) faultFromRemote(err error, message string, clientID int64) error {
	var fault *domain.Fault
	if errors.As(err, &fault) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.Fault{
			Kind:     domain.FaultTimeout,
			Message:  message + ": call timed out",
			ClientID: clientID,
			Err:      err,
		}
	}
	return &domain.Fault{
		Kind:     domain.FaultDependencyFailure,
		Message:  message,
		ClientID: clientID,
		Err:      err,
	}
}

// fail записывает метрику отказа и возвращает ошибку как есть.
func (s *Service) fail(err error) error {
	if err == nil {
		return nil
	}
	if s.metrics != nil {
		s.metrics.RecordOrderFailed(string(domain.KindOf(err)))
	}
	return err
}

// aggregateLines складывает повторяющиеся товары в одну строку,
// сохраняя порядок первого упоминания.
func aggregateLines(items []domain.OrderLine) []domain.OrderLine {
	index := make(map[int64]int, len(items))
	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			lines[i].Qty += item.Qty
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, item)
	}
	return lines
}

// buildOrder считает итоги по снимку цен каталога и формирует позиции заказа.
func buildOrder(clientID int64, lines []domain.OrderLine, catalogByID map[int64]domain.CatalogEntry) (domain.Order, []domain.OrderItem) {
	var (
		totalAmount int64
		totalItems  int32
	)
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		entry := catalogByID[line.ProductID]
		totalAmount += entry.PriceMinor * int64(line.Qty)
		totalItems += line.Qty
		items = append(items, domain.OrderItem{
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: entry.PriceMinor,
		})
	}

	order := domain.Order{
		ClientID:         clientID,
		TotalAmountMinor: totalAmount,
		TotalItems:       totalItems,
	}
	return order, items
}

// assembleView собирает ответную форму заказа с именем клиента и товаров.
func assembleView(order domain.Order, clientName string, catalogByID map[int64]domain.CatalogEntry) domain.OrderView {
	items := make([]domain.OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		view := domain.OrderItemView{
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		}
		if entry, ok := catalogByID[item.ProductID]; ok {
			view.ProductName = entry.Name
		}
		items = append(items, view)
	}
	return domain.OrderView{
		Order:      order,
		ClientName: clientName,
		Items:      items,
	}
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

func formatIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, ", ")
}
