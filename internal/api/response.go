// Package api implements the Delivery API HTTP layer. It uses Chi as the
// router. Authentication (Authenticate middleware) is enforced on the
// browse, play, record and upload routes; the player manifest, the service
// root, the OAuth handoff routes and /metrics are open. Access control is
// authenticated-or-not — there is no further role gate.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gisst-archive/gisst/internal/apierr"
)

// envelope is the standard JSON response wrapper for all API responses.
//
// Success:  {"data": <payload>}
// Error:    {"error": {"message": "...", "code": "..."}}
type envelope map[string]any

// JSON writes a JSON-encoded response with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Ok writes a 200 OK response with the payload wrapped in {"data": payload}.
func Ok(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusOK, envelope{"data": payload})
}

// Created writes a 201 Created response with the payload wrapped in {"data": payload}.
func Created(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusCreated, envelope{"data": payload})
}

// NoContent writes a 204 No Content response with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// errorResponse is the shape of the "error" object in error responses.
type errorResponse struct {
	Message string      `json:"message"`
	Code    apierr.Kind `json:"code"`
}

func errJSON(w http.ResponseWriter, status int, message string, code apierr.Kind) {
	JSON(w, status, envelope{
		"error": errorResponse{Message: message, Code: code},
	})
}

// Err writes err as a JSON error response, mapping its apierr.Kind (via
// apierr.KindOf) to the appropriate HTTP status. Unwrapped errors are
// treated as KindInternal and their detail is not exposed to the client.
func Err(w http.ResponseWriter, err error) {
	kind := apierr.KindOf(err)
	message := "an internal error occurred"
	if kind != apierr.KindInternal {
		message = err.Error()
	}
	errJSON(w, kind.HTTPStatus(), message, kind)
}

// ErrBadRequest writes a 400 Bad Request error response for malformed
// requests that never reached domain logic (e.g. bad JSON, bad path param).
func ErrBadRequest(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusBadRequest, message, apierr.KindInput)
}

// ErrUnauthorized writes a 401 Unauthorized error response.
func ErrUnauthorized(w http.ResponseWriter) {
	errJSON(w, http.StatusUnauthorized, "authentication required", apierr.KindAuth)
}

// decodeJSON decodes the request body into dst. Returns false and writes an
// appropriate error response if decoding fails, so callers can early-return.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		ErrBadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}
