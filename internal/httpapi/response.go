package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/denismitr/lemonrest"
	"github.com/denismitr/lemonrest/options"
	"github.com/pkg/errors"
)

var errBodyTooLarge = errors.New("request body too large")
var errRateLimited = errors.New("rate limit exceeded")
var errRouteNotFound = errors.New("route not found")
var errMethodNotAllowed = errors.New("method not allowed")

// StatusClientClosedRequest reports a request whose client went away
// before the response was ready.
const StatusClientClosedRequest = 499

// Envelope wraps every response body.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Success: false, Error: message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lemonrest.ErrRecordNotFound), errors.Is(err, errRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, lemonrest.ErrInvalidID),
		errors.Is(err, lemonrest.ErrInvalidRecord),
		errors.Is(err, options.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, lemonrest.ErrCollectionClosed), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	}

	return http.StatusInternalServerError
}

// messageFor hides server side details from clients.
func messageFor(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}

	return errors.Cause(err).Error()
}
