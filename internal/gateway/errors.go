package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrWaterfallNotReady means the capture has no completed waterfall artifact.
var ErrWaterfallNotReady = errors.New("waterfall data is not ready")

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// UserMessage turns a fetch error into the single message shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrWaterfallNotReady):
		return "Waterfall data is not available for this capture yet."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled before the gateway answered."
	case errors.As(err, &apiErr):
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return "Capture not found or you do not have permission to view it."
		case apiErr.StatusCode == http.StatusForbidden, apiErr.StatusCode == http.StatusUnauthorized:
			return "You do not have permission to view this capture."
		case apiErr.StatusCode >= 500:
			return "The gateway had a server error. Please try again later."
		default:
			return fmt.Sprintf("The gateway rejected the request (status %d).", apiErr.StatusCode)
		}
	default:
		return "Could not reach the gateway. Check your connection and try again."
	}
}
