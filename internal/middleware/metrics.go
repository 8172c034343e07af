package middleware

import (
	"net/http"
	"time"

	"guild-overlay/internal/metrics"
)

// Metrics records request counts and latency per method and status.
func Metrics(recorder metrics.Recorder) func(http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			recorder.RecordHTTPRequest(r.Method, wrapped.status, time.Since(started))
		})
	}
}
