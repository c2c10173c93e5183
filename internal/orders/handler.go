package orders

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/joao-fontenele/caicara-stock/internal/domain"
	"github.com/joao-fontenele/caicara-stock/internal/httpx"
	"github.com/joao-fontenele/caicara-stock/internal/listing"
	"github.com/joao-fontenele/caicara-stock/internal/telemetry"
	"github.com/joao-fontenele/caicara-stock/internal/validation"
)

// OrderStore is the persistence used by Handler; *OrderRepository
// implements it.
type OrderStore interface {
	List(ctx context.Context, filter domain.OrderFilter, params listing.Params) (listing.Result[domain.Order], error)
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	Update(ctx context.Context, id int64, patch domain.OrderPatch) (*domain.Order, error)
	Delete(ctx context.Context, id int64) (domain.OrderStatus, error)
	AddItem(ctx context.Context, orderID, productID int64, quantity int) (*domain.OrderItem, error)
	UpdateItem(ctx context.Context, orderID, itemID int64, quantity int) (*domain.OrderItem, error)
	RemoveItem(ctx context.Context, orderID, itemID int64) error
	Complete(ctx context.Context, id int64) (*domain.OrderCompletedEvent, error)
}

type Handler struct {
	store     OrderStore
	validator *validation.Validator
	metrics   *telemetry.StockMetrics
	logger    *slog.Logger
}

func NewHandler(store OrderStore, metrics *telemetry.StockMetrics, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		validator: validation.New(),
		metrics:   metrics,
		logger:    logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(h.HandleList))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(h.HandleCreate))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(h.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}", telemetry.WithHTTPRoute(h.HandleUpdate))
	mux.HandleFunc("DELETE /orders/{id}", telemetry.WithHTTPRoute(h.HandleDelete))
	mux.HandleFunc("POST /orders/{id}/items", telemetry.WithHTTPRoute(h.HandleAddItem))
	mux.HandleFunc("PATCH /orders/{id}/items/{itemId}", telemetry.WithHTTPRoute(h.HandleUpdateItem))
	mux.HandleFunc("DELETE /orders/{id}/items/{itemId}", telemetry.WithHTTPRoute(h.HandleRemoveItem))
	mux.HandleFunc("POST /orders/{id}/complete", telemetry.WithHTTPRoute(h.HandleComplete))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter, err := parseOrderFilter(q)
	if err != nil {
		h.writeError(w, r, err, "invalid order filter")
		return
	}

	params, err := listing.ParseParams(q)
	if err != nil {
		h.writeError(w, r, err, "invalid pagination")
		return
	}

	result, err := h.store.List(r.Context(), filter, params)
	if err != nil {
		h.writeError(w, r, err, "failed to list orders")
		return
	}

	h.logger.Info("orders listed", "count", len(result.Items), "mode", params.Mode().String())
	h.writeJSON(w, http.StatusOK, result)
}

func parseOrderFilter(q url.Values) (domain.OrderFilter, error) {
	filter := domain.OrderFilter{Descending: true}

	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		filter.Descending = false
	default:
		return filter, domain.NewValidationError("order", "must be asc or desc")
	}

	if raw := q.Get("dateFrom"); raw != "" {
		d, err := domain.ParseDate(raw)
		if err != nil {
			return filter, domain.NewValidationError("dateFrom", err.Error())
		}
		filter.DateFrom = &d
	}

	if raw := q.Get("dateTo"); raw != "" {
		d, err := domain.ParseDate(raw)
		if err != nil {
			return filter, domain.NewValidationError("dateTo", err.Error())
		}
		filter.DateTo = &d
	}

	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return filter, domain.NewValidationError("dateTo", "must not be before dateFrom")
	}

	return filter, nil
}

type createItemRequest struct {
	ProductID int64             `json:"product_id" validate:"gt=0"`
	Quantity  int               `json:"quantity" validate:"gt=0,max=2147483647"`
	Price     validation.Scalar `json:"price" validate:"required,price"`
}

type createOrderRequest struct {
	OrderDate string              `json:"order_date" validate:"required,date"`
	Status    *string             `json:"status" validate:"omitnil,oneof=pending cancelled"`
	Items     []createItemRequest `json:"items" validate:"dive"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, r, err, "invalid order")
		return
	}

	order, err := req.toOrder()
	if err != nil {
		h.writeError(w, r, err, "invalid order")
		return
	}

	if err := h.store.Create(r.Context(), order); err != nil {
		h.writeError(w, r, err, "failed to create order")
		return
	}

	h.logger.Info("order created", "order_id", order.ID, "items", len(order.Items), "total_price", order.TotalPrice.String())
	h.writeJSON(w, http.StatusCreated, order)
}

func (req createOrderRequest) toOrder() (*domain.Order, error) {
	date, err := domain.ParseDate(req.OrderDate)
	if err != nil {
		return nil, domain.NewValidationError("order_date", err.Error())
	}

	order := &domain.Order{
		OrderDate: date,
		Status:    domain.OrderStatusPending,
		Items:     make([]domain.OrderItem, 0, len(req.Items)),
	}

	if req.Status != nil {
		order.Status = domain.OrderStatus(*req.Status)
	}

	for _, line := range req.Items {
		price, err := domain.ParsePrice(string(line.Price))
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     price,
		})
	}

	return order, nil
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "invalid order id")
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "failed to get order", "order_id", id)
		return
	}

	h.logger.Info("order retrieved", "order_id", order.ID)
	h.writeJSON(w, http.StatusOK, order)
}

type updateOrderRequest struct {
	OrderDate *string `json:"order_date" validate:"omitnil,date"`
	Status    *string `json:"status" validate:"omitnil,order_status"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "invalid order id")
		return
	}

	var req updateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, r, err, "invalid order patch", "order_id", id)
		return
	}

	var patch domain.OrderPatch
	if req.OrderDate != nil {
		date, err := domain.ParseDate(*req.OrderDate)
		if err != nil {
			h.writeError(w, r, domain.NewValidationError("order_date", err.Error()), "invalid order patch", "order_id", id)
			return
		}
		patch.OrderDate = &date
	}
	if req.Status != nil {
		status := domain.OrderStatus(*req.Status)
		patch.Status = &status
	}

	order, err := h.store.Update(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err, "failed to update order", "order_id", id)
		return
	}

	h.logger.Info("order updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "invalid order id")
		return
	}

	status, err := h.store.Delete(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "failed to delete order", "order_id", id)
		return
	}

	if status == domain.OrderStatusCompleted {
		h.logger.Warn("completed order deleted, restocked quantities are kept", "order_id", id)
	} else {
		h.logger.Info("order deleted", "order_id", id, "status", status)
	}
	h.writeJSON(w, http.StatusOK, httpx.Success)
}

type addItemRequest struct {
	ProductID int64 `json:"product_id" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gt=0,max=2147483647"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "invalid order id")
		return
	}

	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, r, err, "invalid order item", "order_id", id)
		return
	}

	item, err := h.store.AddItem(r.Context(), id, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err, "failed to add order item", "order_id", id, "product_id", req.ProductID)
		return
	}

	h.logger.Info("order item added", "order_id", id, "item_id", item.ID, "product_id", item.ProductID, "quantity", item.Quantity)
	h.writeJSON(w, http.StatusCreated, item)
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"gt=0,max=2147483647"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, itemID, err := itemPath(r)
	if err != nil {
		h.writeError(w, r, err, "invalid order item path")
		return
	}

	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, r, err, "invalid order item", "order_id", id, "item_id", itemID)
		return
	}

	item, err := h.store.UpdateItem(r.Context(), id, itemID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err, "failed to update order item", "order_id", id, "item_id", itemID)
		return
	}

	h.logger.Info("order item updated", "order_id", id, "item_id", itemID, "quantity", item.Quantity)
	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, itemID, err := itemPath(r)
	if err != nil {
		h.writeError(w, r, err, "invalid order item path")
		return
	}

	if err := h.store.RemoveItem(r.Context(), id, itemID); err != nil {
		h.writeError(w, r, err, "failed to remove order item", "order_id", id, "item_id", itemID)
		return
	}

	h.logger.Info("order item removed", "order_id", id, "item_id", itemID)
	h.writeJSON(w, http.StatusOK, httpx.Success)
}

func itemPath(r *http.Request) (int64, int64, error) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	itemID, err := httpx.PathID(r, "itemId")
	if err != nil {
		return 0, 0, err
	}
	return id, itemID, nil
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "invalid order id")
		return
	}

	event, err := h.store.Complete(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "failed to complete order", "order_id", id)
		return
	}

	units := 0
	for _, item := range event.Items {
		units += item.Quantity
	}
	h.metrics.OrderCompleted(r.Context(), units)

	h.logger.Info("order completed", "order_id", id, "products", len(event.Items), "units_restocked", units)
	h.writeJSON(w, http.StatusOK, httpx.Success)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := httpx.WriteJSON(w, status, data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, msg string, args ...any) {
	status, body := httpx.ErrorResponse(err)

	args = append(args, "error", err, "status", status, "request_id", httpx.RequestIDFrom(r.Context()))
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, args...)
	} else {
		h.logger.Debug(msg, args...)
	}

	h.writeJSON(w, status, body)
}
