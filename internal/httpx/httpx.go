// Package httpx holds the JSON response and error plumbing shared by the
// catalog and orders handlers.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/joao-fontenele/caicara-stock/internal/domain"
)

const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// ErrorBody is the payload of every non-2xx response.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type SuccessBody struct {
	Success bool `json:"success"`
}

var Success = SuccessBody{Success: true}

func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse maps err onto an HTTP status and body. Errors outside the
// domain taxonomy become a generic 500.
func ErrorResponse(err error) (int, ErrorBody) {
	var (
		ve  *domain.ValidationError
		nf  *domain.NotFoundError
		ise *domain.InvalidStateError
		ce  *domain.ConflictError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorBody{Error: "validation failed", Fields: ve.Fields}
	case errors.As(err, &nf):
		return http.StatusNotFound, ErrorBody{Error: nf.Error()}
	case errors.As(err, &ise):
		return http.StatusConflict, ErrorBody{Error: ise.Error()}
	case errors.As(err, &ce):
		return http.StatusConflict, ErrorBody{Error: ce.Error()}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: "internal server error"}
	}
}

// PathID parses a positive integer path parameter.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return err
		}
		return domain.NewValidationError("body", "invalid request body: "+err.Error())
	}
	return nil
}

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz reports 200 while db answers pings and 503 otherwise.
func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			_ = WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
