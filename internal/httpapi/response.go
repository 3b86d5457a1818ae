package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/getailigned/dependency-service/internal/apierr"
)

// envelope is the {success, data, error, message, timestamp} response shape
// every endpoint returns (spec.md §6).
type envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Timestamp: time.Now()})
}

func writeCreated(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: data, Timestamp: time.Now()})
}

// writeError classifies err into an apierr.Code, if possible, and writes
// the corresponding HTTP status and error code (spec.md §7). Errors that
// aren't an *apierr.Error are reported as INTERNAL_ERROR without leaking
// their message.
func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, envelope{
			Success:   false,
			Error:     string(apierr.CodeInternalError),
			Message:   "internal error",
			Timestamp: time.Now(),
		})
		return
	}
	writeJSON(w, apiErr.Code.HTTPStatus(), envelope{
		Success:   false,
		Error:     string(apiErr.Code),
		Message:   apiErr.Message,
		Timestamp: time.Now(),
	})
}
