package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the response shape shared by every order endpoint: a message,
// paired success/error flags, and an optional data payload.
type Envelope struct {
	Message string `json:"message"`
	Error   bool   `json:"error"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// OK writes a success envelope with the given message and payload.
func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{
		Message: message,
		Error:   false,
		Success: true,
		Data:    data,
	})
}

// Fail writes a failure envelope carrying the error message.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{
		Message: message,
		Error:   true,
		Success: false,
	})
}
