// Package httpx provides the operator-facing HTTP surface of the
// notification reliability layer.
package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"

	apperrors "github.com/andretaki/alliance-form-sub000/internal/errors"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid JSON body"))
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// errorResponse is the wire shape for failed requests. The error field carries
// the application error code so operator tooling can branch on it.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError renders an application error, mapping its code to an HTTP status.
// Errors without a code render as internal.
func WriteError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	if code == "" {
		code = apperrors.ErrCodeInternal
	}

	WriteJSON(w, statusForCode(code), errorResponse{
		Error:   string(code),
		Message: err.Error(),
	})
}

func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeStoreUnavailable, apperrors.ErrCodeDeliveryFailure:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
