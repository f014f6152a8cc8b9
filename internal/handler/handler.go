// Package handler implements the JSON HTTP API over the menu catalogue and
// the order service.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pizzeria/internal/domain/menu"
	"github.com/xenking/pizzeria/internal/domain/order"
)

// maxBodySize caps request bodies.
const maxBodySize = 1 << 20

// Handler serves the /api routes.
type Handler struct {
	menu   menu.Repository
	orders *order.Service
	mux    *http.ServeMux
}

var _ http.Handler = (*Handler)(nil)

// New constructs a Handler with the required domain dependencies.
func New(menus menu.Repository, orders *order.Service) *Handler {
	h := &Handler{
		menu:   menus,
		orders: orders,
		mux:    http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /api/menu", h.GetMenu)
	h.mux.HandleFunc("POST /api/orders", h.PlaceOrder)
	h.mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	h.mux.HandleFunc("PATCH /api/orders/{id}/notes", h.UpdateNotes)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Route returns the registered pattern that matches r, or an empty string.
func (h *Handler) Route(r *http.Request) string {
	_, pattern := h.mux.Handler(r)
	return pattern
}

// errBadRequest marks malformed input that never reached the service.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return errors.Wrapf(errBadRequest, format, args...)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid order id %q", r.PathValue("id"))
	}
	return id, nil
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, order.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, menu.ErrNotFound):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = http.StatusText(code)
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, code, &e)
}

func writeJSON(w http.ResponseWriter, code int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// The status is already sent; a failed write means the client is gone.
	_, _ = w.Write(e.Bytes())
}
