// Package httputil writes the JSON envelopes shared by every handler.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "nfcattend/pkg/domain-errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorResponse is the envelope for every failed request.
type ErrorResponse struct {
	Status           string `json:"status"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into its HTTP status and envelope.
// Errors without a code are reported as internal errors, and the description
// of internal or storage errors is never exposed.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusFor(err), NewErrorResponse(err))
}

// StatusFor returns the HTTP status WriteError would use for err.
func StatusFor(err error) int {
	return dErrors.ToHTTPStatus(dErrors.CodeOf(err))
}

// NewErrorResponse builds the envelope for err.
func NewErrorResponse(err error) ErrorResponse {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Status: StatusError, Error: string(code)}
	if !dErrors.IsClientSafe(code) {
		return resp
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		resp.ErrorDescription = de.Message
	} else if err != nil {
		resp.ErrorDescription = err.Error()
	}
	return resp
}

// DecodeJSON decodes the request body into dst. Unknown fields are allowed so
// reader firmware can add fields without breaking the API.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
