// Package envelope defines the uniform JSON wrapper returned by every HTTP
// surface: success with a payload, or error with a reason.
package envelope

import (
	"encoding/json"
	"net/http"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MessageServiceUnavailable is the only message exposed when routing or
// forwarding fails.
const MessageServiceUnavailable = "service unavailable"

type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func Success(data any) Envelope {
	return Envelope{Status: StatusSuccess, Data: data}
}

// Acknowledge is a success envelope carrying only a message.
func Acknowledge(message string) Envelope {
	return Envelope{Status: StatusSuccess, Message: message}
}

func Failure(message string) Envelope {
	return Envelope{Status: StatusError, Message: message}
}

// OK reports whether the envelope is a success.
func (e Envelope) OK() bool {
	return e.Status == StatusSuccess
}

// Write encodes env as the response body with the given status code.
func Write(w http.ResponseWriter, code int, env Envelope) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(env)
}

// ServiceUnavailable writes the 503 envelope used for exhausted selection and
// failed forwards.
func ServiceUnavailable(w http.ResponseWriter) error {
	return Write(w, http.StatusServiceUnavailable, Failure(MessageServiceUnavailable))
}
