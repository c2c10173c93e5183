package gateway

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/caicara-stock/internal/httpx"
	"github.com/joao-fontenele/caicara-stock/internal/telemetry"
)

type Handler struct {
	catalogProxy *ServiceProxy
	ordersProxy  *ServiceProxy
	logger       *slog.Logger
}

func NewHandler(catalogProxy, ordersProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		catalogProxy: catalogProxy,
		ordersProxy:  ordersProxy,
		logger:       logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/products", telemetry.WithHTTPRoute(h.HandleProducts))
	mux.HandleFunc("/products/", telemetry.WithHTTPRoute(h.HandleProducts))
	mux.HandleFunc("/orders", telemetry.WithHTTPRoute(h.HandleOrders))
	mux.HandleFunc("/orders/", telemetry.WithHTTPRoute(h.HandleOrders))
}

func (h *Handler) HandleProducts(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.catalogProxy)
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy) {
	path := r.URL.Path

	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "method", r.Method, "path", path)
		if err := httpx.WriteJSON(w, http.StatusBadGateway, httpx.ErrorBody{Error: "service unavailable"}); err != nil {
			h.logger.Error("failed to encode error response", "error", err)
		}
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range []string{"Content-Type", httpx.RequestIDHeader} {
		if value := resp.Header.Get(name); value != "" {
			w.Header().Set(name, value)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}
