package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

// WriteJSON sends v with a generated request id echoed in the response
// header, so failures can be correlated with server logs.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	if w.Header().Get("x-request-id") == "" {
		w.Header().Set("x-request-id", NewRequestID())
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodes a request body strictly: unknown fields are rejected so
// client typos fail loudly instead of silently dropping options.
func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	reqID := NewRequestID()
	w.Header().Set("x-request-id", reqID)
	WriteJSON(w, status, map[string]any{
		"request_id": reqID,
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	})
}
