package middleware

import (
	"net/http"
	"time"
)

// Timeout bounds handler run time. The websocket stream must not be wrapped:
// http.TimeoutHandler buffers the response and cannot be hijacked.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message := `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"request timed out"}}`

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}
