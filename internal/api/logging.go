package api

import (
	"net/http"
	"time"

	"github.com/banshee-data/capture.gateway/internal/monitoring"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and duration. Frame and hover
// polling is frequent, so only non-GET requests and failures are logged.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		if r.Method == http.MethodGet && lrw.statusCode < 400 {
			return
		}
		monitoring.Logf("[API] [%d] %s %s %.2fms",
			lrw.statusCode, r.Method, r.URL.RequestURI(),
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}
