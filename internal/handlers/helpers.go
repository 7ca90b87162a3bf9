package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/alfagnish/users-api/internal/apperr"
	"github.com/alfagnish/users-api/internal/middleware"
)

// writeJSON serialises v as JSON and writes it to the response with the
// given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

// userPayload is the body accepted by POST and PUT. Nil fields were absent.
type userPayload struct {
	Name  *string  `json:"name"`
	Email *string  `json:"email"`
	Age   *float64 `json:"age"`
}

// decodeUserPayload reads a JSON or url-encoded body. Any other content
// type, and an empty body, yield an empty payload.
func decodeUserPayload(r *http.Request) (userPayload, error) {
	var p userPayload

	switch {
	case middleware.IsJSON(r):
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&p); err != nil {
			if errors.Is(err, io.EOF) {
				return p, nil
			}
			return p, jsonError(err)
		}
		// the body must hold exactly one JSON value
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			if err == nil {
				err = errors.New("unexpected data after top-level value")
			}
			return userPayload{}, jsonError(err)
		}
		return p, nil

	case isForm(r):
		if err := r.ParseForm(); err != nil {
			return p, apperr.Wrap(apperr.InvalidInputKind, err, "formulario inválido: "+err.Error())
		}
		form := r.PostForm
		if form.Has("name") {
			v := form.Get("name")
			p.Name = &v
		}
		if form.Has("email") {
			v := form.Get("email")
			p.Email = &v
		}
		if form.Has("age") {
			age, err := strconv.ParseFloat(form.Get("age"), 64)
			if err != nil {
				return p, apperr.Wrap(apperr.InvalidInputKind, err, "age debe ser un número")
			}
			p.Age = &age
		}
	}
	return p, nil
}

func jsonError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.PayloadTooLarge("request entity too large")
	}
	return apperr.Wrap(apperr.InvalidInputKind, err, "JSON inválido: "+err.Error())
}

func isForm(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/x-www-form-urlencoded"
}

// complete reports whether name, email and age are all present and non-zero.
func (p userPayload) complete() bool {
	return p.Name != nil && *p.Name != "" &&
		p.Email != nil && *p.Email != "" &&
		p.Age != nil && *p.Age != 0
}
