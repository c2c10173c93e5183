package email

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/caicara-stock/internal/httpx"
	"github.com/joao-fontenele/caicara-stock/internal/validation"
)

// Handler accepts notification emails. Delivery is simulated by logging.
type Handler struct {
	validator *validation.Validator
	logger    *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		validator: validation.New(),
		logger:    logger,
	}
}

type SendRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=256"`
	Body    string `json:"body" validate:"required"`
}

type SendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /send", h.HandleSend)
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, err)
		return
	}

	id := uuid.NewString()
	h.logger.Info("email sent", "email_id", id, "to", req.To, "subject", req.Subject)

	h.writeJSON(w, http.StatusOK, SendResponse{ID: id, Status: "sent"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := httpx.WriteJSON(w, status, data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, body := httpx.ErrorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("failed to send email", "error", err)
	}
	h.writeJSON(w, status, body)
}
