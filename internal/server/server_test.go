package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"contact-functions/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFunction struct {
	path    string
	handler http.HandlerFunc
}

func (f stubFunction) Path() string { return f.path }

func (f stubFunction) ServeHTTP(w http.ResponseWriter, r *http.Request) { f.handler(w, r) }

type recordingObserver struct {
	mu     sync.Mutex
	routes []string
	codes  []int
}

func (o *recordingObserver) RecordRequest(ctx context.Context, route string, status int, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes = append(o.routes, route)
	o.codes = append(o.codes, status)
}

func newTestServer(t *testing.T, cfg Config, functions ...Function) http.Handler {
	t.Helper()
	cfg.Logger = logger.NewTestLogger(t)
	return New(cfg, functions...).Handler()
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := serve(h, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestServer_Ready(t *testing.T) {
	healthy := newTestServer(t, Config{ReadyChecks: map[string]ReadinessCheck{
		"redis": func(context.Context) error { return nil },
	}})
	rec := serve(healthy, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())

	failing := newTestServer(t, Config{ReadyChecks: map[string]ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("redis ping failed") },
	}})
	rec = serve(failing, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, map[string]interface{}{"redis": "redis ping failed"}, body["checks"])
}

func TestServer_Metrics(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := serve(h, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_MountsFunctionsAndObserves(t *testing.T) {
	observer := &recordingObserver{}
	fn := stubFunction{path: "/api/submit-contact", handler: func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, RequestIDFromContext(r.Context()))
		w.WriteHeader(http.StatusAccepted)
	}}
	h := newTestServer(t, Config{Observer: observer}, fn)

	rec := serve(h, http.MethodPost, "/api/submit-contact")
	missing := serve(h, http.MethodGet, "/nope")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, []string{"/api/submit-contact", "unmatched"}, observer.routes)
	assert.Equal(t, []int{http.StatusAccepted, http.StatusNotFound}, observer.codes)
}

func TestServer_KeepsCallerRequestID(t *testing.T) {
	h := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestServer_RecoversFromPanic(t *testing.T) {
	fn := stubFunction{path: "/boom", handler: func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected nil")
	}}
	h := newTestServer(t, Config{}, fn)

	rec := serve(h, http.MethodPost, "/boom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to submit form","details":"internal error"}`, rec.Body.String())
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := New(Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second, Logger: logger.NewTestLogger(t)})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, <-errCh)
}
