package rpc

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/expirians/orders-ms/internal/domain"
	"github.com/expirians/orders-ms/internal/service/orders"
	"github.com/expirians/orders-ms/internal/transport/tcprpc"
)

// Имена команд внутреннего RPC.
const (
	CommandCreateOrder       = "createOrder"
	CommandFindAllOrders     = "findAllOrders"
	CommandFindOneOrder      = "findOneOrder"
	CommandChangeOrderStatus = "changeOrderStatus"
)

// Handler привязывает команды внутреннего RPC к оркестратору заказов.
type Handler struct {
	service *orders.Service
	logger  *log.Entry
}

// NewHandler создаёт обработчик команд.
func NewHandler(service *orders.Service, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "orders-rpc")
	}
	return &Handler{service: service, logger: logger}
}

// Register регистрирует все команды на сервере.
func (h *Handler) Register(server *tcprpc.Server) {
	server.Handle(CommandCreateOrder, h.createOrder)
	server.Handle(CommandFindAllOrders, h.findAllOrders)
	server.Handle(CommandFindOneOrder, h.findOneOrder)
	server.Handle(CommandChangeOrderStatus, h.changeOrderStatus)
}

type orderItemDTO struct {
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
}

type createOrderDTO struct {
	ClientID   int64          `json:"clientId"`
	OrderItems []orderItemDTO `json:"orderItems"`
}

type orderItemViewDTO struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Quantity    int32  `json:"quantity"`
	PriceMinor  int64  `json:"priceMinor"`
}

type orderDTO struct {
	ID               int64              `json:"id"`
	ClientID         int64              `json:"clientId"`
	ClientName       string             `json:"clientName,omitempty"`
	TotalAmountMinor int64              `json:"totalAmountMinor"`
	TotalItems       int32              `json:"totalItems"`
	Status           string             `json:"status"`
	Paid             bool               `json:"paid"`
	PaidAt           *time.Time         `json:"paidAt,omitempty"`
	OrderItems       []orderItemViewDTO `json:"orderItems,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

type findOneOrderDTO struct {
	ID int64 `json:"id"`
}

type changeOrderStatusDTO struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (h *Handler) createOrder(ctx context.Context, data json.RawMessage) (any, error) {
	var dto createOrderDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, badPayload(err)
	}

	req := domain.CreateOrderRequest{
		ClientID: dto.ClientID,
		Items:    make([]domain.OrderLine, 0, len(dto.OrderItems)),
	}
	for _, item := range dto.OrderItems {
		req.Items = append(req.Items, domain.OrderLine{
			ProductID: item.ProductID,
			Qty:       item.Quantity,
		})
	}

	view, err := h.service.CreateOrder(ctx, req)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return viewToDTO(view), nil
}

func (h *Handler) findAllOrders(ctx context.Context, _ json.RawMessage) (any, error) {
	orderList, err := h.service.FindAll(ctx)
	if err != nil {
		return nil, h.rpcError(err)
	}

	result := make([]orderDTO, 0, len(orderList))
	for _, order := range orderList {
		result = append(result, orderToDTO(order, ""))
	}
	return result, nil
}

func (h *Handler) findOneOrder(ctx context.Context, data json.RawMessage) (any, error) {
	var dto findOneOrderDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, badPayload(err)
	}

	view, err := h.service.FindOne(ctx, dto.ID)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return viewToDTO(view), nil
}

func (h *Handler) changeOrderStatus(ctx context.Context, data json.RawMessage) (any, error) {
	var dto changeOrderStatusDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, badPayload(err)
	}

	status, err := domain.ParseOrderStatus(dto.Status)
	if err != nil {
		return nil, &tcprpc.Error{
			Kind:    string(domain.FaultValidationFailed),
			Message: "unknown order status: " + dto.Status,
		}
	}

	order, err := h.service.ChangeStatus(ctx, dto.ID, status)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return orderToDTO(order, ""), nil
}

// rpcError переводит отказ домена в транспортную ошибку с сохранением вида.
func (h *Handler) rpcError(err error) error {
	fault, ok := domain.AsFault(err)
	if !ok {
		h.logger.WithError(err).Error("unexpected internal error")
		return &tcprpc.Error{
			Kind:    tcprpc.KindInternal,
			Message: "internal error",
		}
	}

	details := map[string]any{}
	if fault.OrderID != 0 {
		details["orderId"] = fault.OrderID
	}
	if fault.ClientID != 0 {
		details["clientId"] = fault.ClientID
	}
	if fault.ProductID != 0 {
		details["productId"] = fault.ProductID
	}
	if fault.Kind == domain.FaultInsufficientStock {
		details["available"] = fault.Available
		details["requested"] = fault.Requested
	}
	if fault.Kind == domain.FaultPartialMutation {
		details["completedProducts"] = fault.CompletedProducts
		details["compensated"] = fault.Compensated
	}
	if len(details) == 0 {
		details = nil
	}

	return &tcprpc.Error{
		Kind:    string(fault.Kind),
		Message: fault.Message,
		Details: details,
	}
}

func badPayload(err error) error {
	return &tcprpc.Error{
		Kind:    string(domain.FaultValidationFailed),
		Message: "malformed request payload: " + err.Error(),
	}
}

func orderToDTO(order domain.Order, clientName string) orderDTO {
	dto := orderDTO{
		ID:               order.ID,
		ClientID:         order.ClientID,
		ClientName:       clientName,
		TotalAmountMinor: order.TotalAmountMinor,
		TotalItems:       order.TotalItems,
		Status:           string(order.Status),
		Paid:             order.Paid,
		PaidAt:           order.PaidAt,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.OrderItems = append(dto.OrderItems, orderItemViewDTO{
			ProductID:  item.ProductID,
			Quantity:   item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	return dto
}

func viewToDTO(view domain.OrderView) orderDTO {
	dto := orderToDTO(view.Order, view.ClientName)
	dto.OrderItems = dto.OrderItems[:0]
	for _, item := range view.Items {
		dto.OrderItems = append(dto.OrderItems, orderItemViewDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Qty,
			PriceMinor:  item.PriceMinor,
		})
	}
	return dto
}
