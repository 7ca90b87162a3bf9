package handlers

import (
	"net/http"

	"github.com/alfagnish/users-api/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// HealthHandler serves the liveness endpoint. It does not touch the store.
type HealthHandler struct {
	errs *middleware.ErrorHandler
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(errs *middleware.ErrorHandler) *HealthHandler {
	return &HealthHandler{errs: errs}
}

// Routes registers the health route on the given chi router.
func (h *HealthHandler) Routes(r chi.Router) {
	r.Get("/", h.errs.Handle(h.Health))
}

// Health always reports the server as up.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Servidor OK"})
}
