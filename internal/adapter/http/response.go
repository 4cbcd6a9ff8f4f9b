package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/go-playground/validator/v10"
)

type envelope struct {
	Data any  `json:"data"`
	Meta meta `json:"meta"`
}

type meta struct {
	Count int `json:"count"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func writeData(w http.ResponseWriter, data any, count int) {
	writeJSON(w, http.StatusOK, envelope{Data: data, Meta: meta{Count: count}})
}

// writeItems writes a slice or a single value, counting slice elements.
func writeItems(w http.ResponseWriter, data any) {
	count := 1
	if v := reflect.ValueOf(data); v.Kind() == reflect.Slice {
		count = v.Len()
	}
	writeData(w, data, count)
}

// statusOf maps the relay's error taxonomy to an HTTP status and error kind.
func statusOf(err error) (int, string) {
	var ve validator.ValidationErrors
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.As(err, &ve):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrParse):
		return http.StatusBadGateway, "upstream_malformed"
	case errors.Is(err, domain.ErrTransport):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", RequestID(r.Context()), "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: kind, Message: msg})
}
