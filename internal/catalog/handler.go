package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/joao-fontenele/caicara-stock/internal/domain"
	"github.com/joao-fontenele/caicara-stock/internal/httpx"
	"github.com/joao-fontenele/caicara-stock/internal/listing"
	"github.com/joao-fontenele/caicara-stock/internal/telemetry"
	"github.com/joao-fontenele/caicara-stock/internal/validation"
)

const maxDescriptionLength = 256

// ProductStore is the persistence used by Handler; *ProductRepository
// implements it.
type ProductStore interface {
	List(ctx context.Context, filter domain.ProductFilter, search string, params listing.Params) (listing.Result[domain.Product], error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error)
	Disable(ctx context.Context, id int64) (*domain.ProductDisabledEvent, error)
	Restore(ctx context.Context, id int64) error
	AdjustQuantity(ctx context.Context, id int64, delta int) (*domain.StockLevel, error)
	CountPendingOrders(ctx context.Context, id int64) (int, error)
	Purge(ctx context.Context, id int64) error
}

type Handler struct {
	store     ProductStore
	validator *validation.Validator
	metrics   *telemetry.StockMetrics
	logger    *slog.Logger
}

func NewHandler(store ProductStore, metrics *telemetry.StockMetrics, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		validator: validation.New(),
		metrics:   metrics,
		logger:    logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /products/all", telemetry.WithHTTPRoute(h.HandleListAll))
	mux.HandleFunc("GET /products/disabled", telemetry.WithHTTPRoute(h.HandleListDisabled))
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(h.HandleList))
	mux.HandleFunc("POST /products", telemetry.WithHTTPRoute(h.HandleCreate))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(h.HandleGet))
	mux.HandleFunc("PATCH /products/{id}", telemetry.WithHTTPRoute(h.HandleUpdate))
	mux.HandleFunc("DELETE /products/{id}", telemetry.WithHTTPRoute(h.HandleDisable))
	mux.HandleFunc("POST /products/{id}/restore", telemetry.WithHTTPRoute(h.HandleRestore))
	mux.HandleFunc("POST /products/{id}/adjust", telemetry.WithHTTPRoute(h.HandleAdjustQuantity))
	mux.HandleFunc("GET /products/{id}/pending-orders", telemetry.WithHTTPRoute(h.HandleCountPendingOrders))
	mux.HandleFunc("DELETE /products/{id}/purge", telemetry.WithHTTPRoute(h.HandlePurge))
}

// HandleListAll returns every active product as a plain array.
func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.List(r.Context(), domain.ProductFilterActive, "", listing.Params{Limit: listing.DefaultLimit})
	if err != nil {
		h.writeError(w, r, err, "failed to list products")
		return
	}

	h.logger.Info("products listed", "count", len(result.Items), "mode", listing.ModeFull.String())
	h.writeJSON(w, http.StatusOK, result.Items)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := domain.ParseProductFilter(r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err, "invalid status filter")
		return
	}
	h.list(w, r, filter)
}

func (h *Handler) HandleListDisabled(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.ProductFilterDisabled)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter domain.ProductFilter) {
	q := r.URL.Query()

	params, err := listing.ParseParams(q)
	if err != nil {
		h.writeError(w, r, err, "invalid pagination")
		return
	}

	result, err := h.store.List(r.Context(), filter, q.Get("search"), params)
	if err != nil {
		h.writeError(w, r, err, "failed to list products", "status", filter)
		return
	}

	h.logger.Info("products listed", "count", len(result.Items), "status", filter, "mode", params.Mode().String())
	h.writeJSON(w, http.StatusOK, result)
}

type createProductRequest struct {
	Name        string            `json:"name" validate:"required,max=256"`
	Description *string           `json:"description" validate:"omitnil,max=256"`
	Price       validation.Scalar `json:"price" validate:"required,price"`
	Quantity    validation.Scalar `json:"quantity" validate:"required,quantity"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = normalizeDescription(req.Description)

	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, r, err, "invalid product")
		return
	}

	price, err := domain.ParsePrice(string(req.Price))
	if err != nil {
		h.writeError(w, r, err, "invalid product")
		return
	}
	quantity, err := domain.ParseQuantity(string(req.Quantity))
	if err != nil {
		h.writeError(w, r, err, "invalid product")
		return
	}

	product := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Quantity:    quantity,
	}

	if err := h.store.Create(r.Context(), product); err != nil {
		h.writeError(w, r, err, "failed to create product")
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "price", product.Price.String(), "quantity", product.Quantity)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "invalid product id")
		return
	}

	product, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "failed to get product", "product_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

// optionalText distinguishes an absent JSON field from an explicit null.
type optionalText struct {
	Set   bool
	Value *string
}

func (o *optionalText) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

type updateProductRequest struct {
	Name        *string            `json:"name" validate:"omitnil,min=1,max=256"`
	Description optionalText       `json:"description" validate:"-"`
	Price       *validation.Scalar `json:"price" validate:"omitnil,price"`
	Quantity    *validation.Scalar `json:"quantity" validate:"omitnil,quantity"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "invalid product id")
		return
	}

	var req updateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, "invalid request body")
		return
	}

	patch, err := h.buildPatch(req)
	if err != nil {
		h.writeError(w, r, err, "invalid product patch", "product_id", id)
		return
	}

	var product *domain.Product
	if patch.Empty() {
		product, err = h.store.Get(r.Context(), id)
	} else {
		product, err = h.store.Update(r.Context(), id, patch)
	}
	if err != nil {
		h.writeError(w, r, err, "failed to update product", "product_id", id)
		return
	}

	h.logger.Info("product updated", "product_id", id)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) buildPatch(req updateProductRequest) (domain.ProductPatch, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}

	if err := h.validator.Struct(req); err != nil {
		return domain.ProductPatch{}, err
	}

	patch := domain.ProductPatch{Name: req.Name}

	if req.Description.Set {
		desc := normalizeDescription(req.Description.Value)
		if desc != nil && utf8.RuneCountInString(*desc) > maxDescriptionLength {
			return patch, domain.NewValidationError("description", "must be at most 256 characters")
		}
		patch.SetDescription = true
		patch.Description = desc
	}

	if req.Price != nil {
		price, err := domain.ParsePrice(string(*req.Price))
		if err != nil {
			return patch, err
		}
		patch.Price = &price
	}

	if req.Quantity != nil {
		quantity, err := domain.ParseQuantity(string(*req.Quantity))
		if err != nil {
			return patch, err
		}
		patch.Quantity = &quantity
	}

	return patch, nil
}

// normalizeDescription maps blank descriptions to NULL.
func normalizeDescription(desc *string) *string {
	if desc == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*desc)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (h *Handler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "invalid product id")
		return
	}

	event, err := h.store.Disable(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "failed to disable product", "product_id", id)
		return
	}

	h.metrics.ProductDisabled(r.Context(), len(event.AffectedOrderIDs))
	h.logger.Info("product disabled", "product_id", id, "affected_orders", event.AffectedOrderIDs)
	h.writeJSON(w, http.StatusOK, httpx.Success)
}

func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "invalid product id")
		return
	}

	if err := h.store.Restore(r.Context(), id); err != nil {
		h.writeError(w, r, err, "failed to restore product", "product_id", id)
		return
	}

	h.logger.Info("product restored", "product_id", id)
	h.writeJSON(w, http.StatusOK, httpx.Success)
}

type adjustQuantityRequest struct {
	Delta *int `json:"delta" validate:"required,min=-2147483647,max=2147483647"`
}

func (h *Handler) HandleAdjustQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "invalid product id")
		return
	}

	var req adjustQuantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, r, err, "invalid adjustment")
		return
	}

	stock, err := h.store.AdjustQuantity(r.Context(), id, *req.Delta)
	if err != nil {
		h.writeError(w, r, err, "failed to adjust quantity", "product_id", id, "delta", *req.Delta)
		return
	}

	h.metrics.StockAdjusted(r.Context(), *req.Delta)
	h.logger.Info("product quantity adjusted", "product_id", id, "delta", *req.Delta, "quantity", stock.Quantity)
	h.writeJSON(w, http.StatusOK, stock)
}

func (h *Handler) HandleCountPendingOrders(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "invalid product id")
		return
	}

	count, err := h.store.CountPendingOrders(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "failed to count pending orders", "product_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.writeError(w, r, err, "invalid product id")
		return
	}

	if err := h.store.Purge(r.Context(), id); err != nil {
		h.writeError(w, r, err, "failed to purge product", "product_id", id)
		return
	}

	h.logger.Info("product purged", "product_id", id)
	h.writeJSON(w, http.StatusOK, httpx.Success)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := httpx.WriteJSON(w, status, data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError logs unexpected failures at error level and client mistakes at
// debug level, then writes the mapped response.
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
