package handlers

import (
	"net/http"
	"strconv"

	"github.com/alfagnish/users-api/internal/apperr"
	"github.com/alfagnish/users-api/internal/middleware"
	"github.com/alfagnish/users-api/internal/users"
	"github.com/go-chi/chi/v5"
)

const (
	msgUserNotFound  = "Usuario no encontrado"
	msgMissingFields = "Por favor proporciona name, email y age"
	msgEmptyFields   = "name y email no pueden estar vacíos"
	msgUserDeleted   = "Usuario eliminado"
)

// UsersHandler provides the user CRUD endpoints.
type UsersHandler struct {
	store *users.Store
	errs  *middleware.ErrorHandler
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(store *users.Store, errs *middleware.ErrorHandler) *UsersHandler {
	return &UsersHandler{store: store, errs: errs}
}

// Routes registers user routes on the given chi router.
func (h *UsersHandler) Routes(r chi.Router) {
	r.Get("/", h.errs.Handle(h.ListUsers))
	r.Post("/", h.errs.Handle(h.CreateUser))
	r.Get("/{id}", h.errs.Handle(h.GetUser))
	r.Put("/{id}", h.errs.Handle(h.UpdateUser))
	r.Delete("/{id}", h.errs.Handle(h.DeleteUser))
}

type listResponse struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Data    []users.User `json:"data"`
}

type userResponse struct {
	Success bool       `json:"success"`
	Data    users.User `json:"data"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListUsers returns all users.
func (h *UsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) error {
	all := h.store.FindAll()
	return writeJSON(w, http.StatusOK, listResponse{Success: true, Count: len(all), Data: all})
}

// GetUser returns one user by id.
func (h *UsersHandler) GetUser(w http.ResponseWriter, r *http.Request) error {
	id, ok := userID(r)
	if !ok {
		return apperr.NotFound(msgUserNotFound)
	}
	u, ok := h.store.FindByID(id)
	if !ok {
		return apperr.NotFound(msgUserNotFound)
	}
	return writeJSON(w, http.StatusOK, userResponse{Success: true, Data: u})
}

// CreateUser creates a user from a body carrying name, email and age.
func (h *UsersHandler) CreateUser(w http.ResponseWriter, r *http.Request) error {
	p, err := decodeUserPayload(r)
	if err != nil {
		return err
	}
	if !p.complete() {
		return apperr.InvalidInput(msgMissingFields)
	}

	u, err := h.store.Create(users.Fields{Name: *p.Name, Email: *p.Email, Age: *p.Age})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, userResponse{Success: true, Data: u})
}

// UpdateUser overwrites the fields present in the body.
func (h *UsersHandler) UpdateUser(w http.ResponseWriter, r *http.Request) error {
	id, ok := userID(r)
	if !ok {
		return apperr.NotFound(msgUserNotFound)
	}
	p, err := decodeUserPayload(r)
	if err != nil {
		return err
	}
	if (p.Name != nil && *p.Name == "") || (p.Email != nil && *p.Email == "") {
		return apperr.InvalidInput(msgEmptyFields)
	}

	u, found, err := h.store.Update(id, users.Patch{Name: p.Name, Email: p.Email, Age: p.Age})
	if !found {
		return apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, userResponse{Success: true, Data: u})
}

// DeleteUser deletes a user by id.
func (h *UsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) error {
	id, ok := userID(r)
	if !ok || !h.store.Delete(id) {
		return apperr.NotFound(msgUserNotFound)
	}
	return writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: msgUserDeleted})
}

func userID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, false
	}
	return id, true
}
