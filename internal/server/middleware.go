package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"contact-functions/internal/common/errors"
	"contact-functions/internal/common/logger"
	"contact-functions/internal/common/metrics"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestIDFromContext returns the id assigned by requestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *statusRecorder) WriteHeader(status int) {
	if sr.wroteHeader {
		return
	}
	sr.status = status
	sr.wroteHeader = true
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.wroteHeader {
		sr.wroteHeader = true
	}
	return sr.ResponseWriter.Write(b)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func loggingMiddleware(log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		recorder := newStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(recorder, r)

		log.Info("Request completed", map[string]interface{}{
			"requestId":  RequestIDFromContext(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     recorder.status,
			"durationMs": time.Since(start).Milliseconds(),
		})
	})
}

func metricsMiddleware(observer RequestObserver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := newStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(recorder, r)
		duration := time.Since(start)

		// The mux fills in Pattern; unmatched paths share one label.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}

		metrics.RequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(recorder.status)).
			Observe(duration.Seconds())
		if observer != nil {
			observer.RecordRequest(r.Context(), route, recorder.status, duration)
		}
	})
}

// recoveryMiddleware turns a panic into a 500 so no request goes unanswered.
func recoveryMiddleware(log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := newStatusRecorder(w)
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Handler panicked", map[string]interface{}{
					"requestId": RequestIDFromContext(r.Context()),
					"panic":     rec,
					"stack":     string(debug.Stack()),
				})
				if !recorder.wroteHeader {
					stdErr := errors.NewInternalError(fmt.Errorf("panic: %v", rec))
					errors.WriteJSON(recorder, http.StatusInternalServerError, errors.BodyFor(stdErr))
				}
			}
		}()
		next.ServeHTTP(recorder, r)
	})
}
