package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/screener/internal/analysis"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/external/llm"
)

// ErrorBody is the JSON error payload
type ErrorBody struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Field  string            `json:"field,omitempty"`
	Fields []ValidationError `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorBody{Error: message})
}

// errorStatus maps the domain error taxonomy onto HTTP status codes
func errorStatus(err error) int {
	switch analysis.ErrorKind(err) {
	case "input_validation":
		return http.StatusBadRequest
	case "no_weight", "range", "data_alignment", "computation":
		return http.StatusUnprocessableEntity
	case "commentary_disabled":
		return http.StatusServiceUnavailable
	case "canceled":
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusRequestTimeout
	}
	if errors.Is(err, llm.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func errorBody(err error) ErrorBody {
	body := ErrorBody{Error: err.Error(), Kind: analysis.ErrorKind(err)}

	var ve *contracts.InputValidationError
	var re *contracts.RangeError
	switch {
	case errors.As(err, &ve):
		body.Field = ve.Field
	case errors.As(err, &re):
		body.Field = re.Field
	}
	return body
}

// respondDomainError writes err with the status its kind maps to
func respondDomainError(w http.ResponseWriter, err error) {
	respondJSON(w, errorStatus(err), errorBody(err))
}

// NotFound is the router's fallback handler
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "route not found")
}
