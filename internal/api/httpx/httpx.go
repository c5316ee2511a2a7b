// Package httpx holds the JSON response, error mapping and query parsing
// helpers shared by the catalog HTTP handlers.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Koalla18/TakeSmart/internal/domain"
	"github.com/Koalla18/TakeSmart/internal/logging"
)

// MaxPageLimit bounds offset/limit listings.
const MaxPageLimit = 500

// RequestState is filled in while a request moves through the handler chain
// and read back by the access log.
type RequestState struct {
	Route       string
	TraceID     string
	Invalidated []string
	Err         error
}

type stateKey struct{}

// WithState attaches st to ctx.
func WithState(ctx context.Context, st *RequestState) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// State returns the request state, or nil outside an instrumented request.
func State(ctx context.Context) *RequestState {
	st, _ := ctx.Value(stateKey{}).(*RequestState)
	return st
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Op().Debug("write response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// StatusOf maps a catalog error to an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSearchInputInvalid), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError maps err to a status and writes it as {"error": ...}. Internal
// errors are logged and their detail is not sent to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if st := State(r.Context()); st != nil {
		st.Err = err
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	WriteJSON(w, status, errorBody{Error: msg})
}

// BadRequest writes a 400 with msg.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	WriteError(w, r, fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg))
}

// PathID parses the {name} path value as a positive int64.
func PathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", domain.ErrInvalidInput, name, raw)
	}
	return id, nil
}

// QueryInt parses an optional non-negative integer query parameter.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, name)
	}
	return n, nil
}

// QueryID parses an optional positive id query parameter; absent yields nil.
func QueryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: invalid %s %q", domain.ErrInvalidInput, name, raw)
	}
	return &id, nil
}

// Page parses offset and limit, applying defLimit when limit is absent or 0.
func Page(r *http.Request, defLimit int) (offset, limit int, err error) {
	if offset, err = QueryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	if limit, err = QueryInt(r, "limit", defLimit); err != nil {
		return 0, 0, err
	}
	if limit == 0 {
		limit = defLimit
	}
	if limit > MaxPageLimit {
		return 0, 0, fmt.Errorf("%w: limit must be at most %d", domain.ErrInvalidInput, MaxPageLimit)
	}
	return offset, limit, nil
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
