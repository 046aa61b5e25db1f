package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"go.uber.org/zap"

	"github.com/michojekunle/amala-atlas/internal/model"
	"github.com/michojekunle/amala-atlas/internal/places"
	"github.com/michojekunle/amala-atlas/internal/store"
	"github.com/michojekunle/amala-atlas/internal/verification"
)

const maxBodyBytes = 1 << 20

var (
	errBadUserID = errors.New("invalid " + UserIDHeader + " header")
	errBadBody   = errors.New("invalid request body")
	errBadID     = errors.New("invalid id")
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields model.FieldErrors `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

// writeError maps err to a status code and JSON body. notFound is the
// message used when err wraps store.ErrNotFound.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var fe model.FieldErrors
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: fe})
	case errors.Is(err, verification.ErrUnknownAction):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown action"})
	case errors.Is(err, errBadUserID), errors.Is(err, errBadBody), errors.Is(err, errBadID):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: notFound})
	case errors.Is(err, places.ErrInvalidPage):
		writeJSON(w, http.StatusNotFound, errorBody{Error: places.ErrInvalidPage.Error()})
	default:
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decodeBody reads a JSON request body into v. A value of the wrong JSON
// type for a known field is reported against that field.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close() //nolint:errcheck
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return model.FieldErrors{typeErr.Field: {typeMessage(typeErr.Type)}}
		}
		return errBadBody
	}
	return nil
}

func typeMessage(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "Invalid value."
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "A valid integer is required."
	case reflect.Float32, reflect.Float64:
		return "A valid number is required."
	case reflect.String:
		return "Not a valid string."
	case reflect.Slice, reflect.Array:
		return "Expected a list of items."
	default:
		return "Invalid value."
	}
}
