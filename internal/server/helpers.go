package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/actis-dev/actis/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the `{error, code}` JSON error shape.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

// writeActisError maps a typed error onto an HTTP status and the standard
// error shape.
func writeActisError(w http.ResponseWriter, err error) {
	var aerr *schema.ActisError
	if !errors.As(err, &aerr) {
		writeError(w, http.StatusInternalServerError, schema.ErrCodeExecution, err.Error())
		return
	}
	writeError(w, httpStatus(aerr.Code), aerr.Code, aerr.Message)
}

// httpStatus maps error codes onto HTTP statuses.
func httpStatus(code string) int {
	switch code {
	case schema.ErrCodeValidation, schema.ErrCodeInterpolation:
		return http.StatusBadRequest
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeConflict:
		return http.StatusConflict
	case schema.ErrCodeCircuitOpen:
		return http.StatusServiceUnavailable
	case schema.ErrCodeResolution:
		return http.StatusBadGateway
	case schema.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
