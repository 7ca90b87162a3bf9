package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/alfagnish/users-api/internal/apperr"
	"go.uber.org/zap"
)

// HandlerFunc is an HTTP handler that reports failure by returning an
// error instead of writing an error response.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// errorBody is the envelope written for every failed request.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Stack   string `json:"stack,omitempty"`
}

// ErrorHandler is the single place that turns errors into HTTP responses.
type ErrorHandler struct {
	log         *zap.Logger
	exposeStack bool
}

// NewErrorHandler creates an ErrorHandler. Stacks are included in
// responses only when exposeStack is set.
func NewErrorHandler(log *zap.Logger, exposeStack bool) *ErrorHandler {
	return &ErrorHandler{log: log, exposeStack: exposeStack}
}

// Handle adapts fn to http.HandlerFunc, forwarding any returned error to Respond.
func (h *ErrorHandler) Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.Respond(w, r, err)
		}
	}
}

// NotFound answers requests that matched no route.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.Respond(w, r, apperr.RouteNotFound("Ruta no encontrada - "+r.URL.RequestURI()))
}

// Respond writes the error envelope for err. The status comes from the
// error's kind, 500 for errors without one.
func (h *ErrorHandler) Respond(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusOf(err)

	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("method", r.Method),
			zap.String("url", r.RequestURI),
			zap.Stringer("kind", apperr.KindOf(err)),
			zap.Error(err),
		)
	}

	body := errorBody{Success: false, Error: err.Error()}
	if h.exposeStack {
		body.Stack = apperr.StackOf(err)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Debug("write error response", zap.Error(err))
	}
}

// Rescue recovers panics in downstream handlers and reports them through
// the error stage as internal errors.
func (h *ErrorHandler) Rescue(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}
			h.log.Error("request panic",
				zap.String("request_id", RequestIDFromContext(r.Context())),
				zap.String("uri", r.RequestURI),
				zap.Any("panic", p),
				zap.Stack("stack"),
			)
			err, ok := p.(error)
			if !ok {
				err = fmt.Errorf("%v", p)
			}
			h.Respond(w, r, apperr.Wrap(apperr.InternalKind, err, ""))
		}()
		next.ServeHTTP(w, r)
	})
}
