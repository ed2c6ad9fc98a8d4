package middleware

import (
	"net/http"
	"time"

	"github.com/HammerMeetNail/splitsync/internal/logging"
)

type RequestLogger struct {
	logger *logging.Logger
}

func NewRequestLogger(logger *logging.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Apply logs each request on completion. Server errors log at ERROR,
// client errors at WARN, everything else at INFO.
func (rl *RequestLogger) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_ip":   GetClientIP(r),
		}
		if q := r.URL.RawQuery; q != "" {
			fields["query"] = q
		}

		switch {
		case rec.status >= http.StatusInternalServerError:
			rl.logger.Error("Request failed", fields)
		case rec.status >= http.StatusBadRequest:
			rl.logger.Warn("Request rejected", fields)
		default:
			rl.logger.Info("Request completed", fields)
		}
	})
}
