package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging assigns each request an id, exposes a request-scoped logger via
// Logger and logs one line per completed request.
func Logging(log logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		reqLog := log.WithField("request_id", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, reqLog)))

		entry := reqLog.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("request failed")
		} else {
			entry.Info("request handled")
		}
	})
}

// Logger returns the request-scoped logger, or fallback outside Logging.
func Logger(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	if l, ok := ctx.Value(ctxKey{}).(logrus.FieldLogger); ok {
		return l
	}
	return fallback
}
