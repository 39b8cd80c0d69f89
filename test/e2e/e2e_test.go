// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"contact-functions/internal/common/config"
	"contact-functions/internal/common/database"
	"contact-functions/internal/common/logger"
	"contact-functions/internal/common/ratelimit"
	"contact-functions/internal/common/sheets"
	submitcontact "contact-functions/internal/functions/submit-contact"
	"contact-functions/internal/models"
	"contact-functions/internal/server"
)

const (
	spreadsheetID = "ledger-e2e"
	frontend      = "https://cethatch.github.io"
)

// fakeSheets speaks enough of the Sheets v4 REST API for the ledger:
// values append/get/update and batchUpdate addSheet.
type fakeSheets struct {
	mu        sync.Mutex
	tabs      map[string][][]interface{}
	calls     []string
	forbidden bool
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{tabs: map[string][][]interface{}{}}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := "/v4/spreadsheets/" + spreadsheetID
	path := strings.TrimPrefix(r.URL.Path, prefix)

	if f.forbidden {
		f.calls = append(f.calls, r.Method+" "+path)
		writeAPIError(w, http.StatusForbidden, "The caller does not have permission")
		return
	}

	switch {
	case r.Method == http.MethodPost && path == ":batchUpdate":
		f.calls = append(f.calls, "addSheet")
		var req gsheets.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIError(w, http.StatusBadRequest, err.Error())
			return
		}
		title := req.Requests[0].AddSheet.Properties.Title
		if _, ok := f.tabs[title]; ok {
			writeAPIError(w, http.StatusBadRequest, fmt.Sprintf("Invalid requests[0].addSheet: A sheet with the name %q already exists.", title))
			return
		}
		f.tabs[title] = [][]interface{}{}
		writeJSON(w, map[string]interface{}{"spreadsheetId": spreadsheetID})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		rng := strings.TrimSuffix(strings.TrimPrefix(path, "/values/"), ":append")
		f.calls = append(f.calls, "append "+rng)
		tab := f.tabFor(rng)
		rows, ok := f.tabs[tab]
		if !ok {
			writeAPIError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
			return
		}
		var body gsheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.tabs[tab] = append(rows, body.Values...)
		writeJSON(w, map[string]interface{}{"spreadsheetId": spreadsheetID})

	case r.Method == http.MethodPut && strings.HasPrefix(path, "/values/"):
		rng := strings.TrimPrefix(path, "/values/")
		f.calls = append(f.calls, "update "+rng)
		tab := f.tabFor(rng)
		rows, ok := f.tabs[tab]
		if !ok {
			writeAPIError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
			return
		}
		var body gsheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(rows) == 0 {
			f.tabs[tab] = body.Values
		} else {
			rows[0] = body.Values[0]
		}
		writeJSON(w, map[string]interface{}{"updatedRange": rng})

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/values/"):
		rng := strings.TrimPrefix(path, "/values/")
		f.calls = append(f.calls, "get "+rng)
		rows, ok := f.tabs[f.tabFor(rng)]
		if !ok {
			writeAPIError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
			return
		}
		writeJSON(w, map[string]interface{}{"range": rng, "values": rows})

	default:
		writeAPIError(w, http.StatusNotFound, "unexpected request "+r.Method+" "+path)
	}
}

func (f *fakeSheets) tabFor(rng string) string {
	tab, _, _ := strings.Cut(rng, "!")
	return strings.Trim(tab, "'")
}

func (f *fakeSheets) rows(tab string) [][]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tabs[tab]
}

func (f *fakeSheets) takeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls
	f.calls = nil
	return calls
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"code": code, "message": message},
	})
}

type environment struct {
	sheets  *fakeSheets
	ledger  *submitcontact.LedgerWriter
	handler *submitcontact.Handler
	api     *httptest.Server
}

type envOption func(t *testing.T, cfg *config.Config, opts *submitcontact.HandlerOptions)

func withRateLimit(limit int) envOption {
	return func(t *testing.T, cfg *config.Config, opts *submitcontact.HandlerOptions) {
		mr := miniredis.RunT(t)
		redis, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = redis.Close() })

		limiter, err := ratelimit.NewLimiter(redis, limit, time.Minute)
		require.NoError(t, err)
		opts.Limiter = limiter
	}
}

// newEnvironment serves the full middleware chain with the ledger backed by
// fakeSheets. The clock sits just after midnight UTC on New Year's Day, which
// is still December 31 in the ledger's zone.
func newEnvironment(t *testing.T, options ...envOption) *environment {
	t.Helper()

	fake := newFakeSheets()
	sheetsSrv := httptest.NewServer(fake)
	t.Cleanup(sheetsSrv.Close)

	svc, err := gsheets.NewService(context.Background(),
		option.WithEndpoint(sheetsSrv.URL+"/"),
		option.WithHTTPClient(sheetsSrv.Client()),
	)
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	ledger := submitcontact.NewLedgerWriter(sheets.NewClientWithService(spreadsheetID, svc), log)

	cfg := &config.Config{}
	cfg.Server.SubmitPath = "/api/submit-contact"
	cfg.Ledger.TimeZone = "America/Los_Angeles"
	cfg.Ledger.DateLayout = "01-02-2006"
	cfg.CORS.AllowedOrigins = []string{frontend}

	opts := submitcontact.HandlerOptions{
		Recorder: ledger,
		Logger:   log,
		Now: func() time.Time {
			return time.Date(2026, time.January, 1, 3, 0, 0, 0, time.UTC)
		},
	}
	for _, o := range options {
		o(t, cfg, &opts)
	}
	opts.AppConfig = cfg

	handler, err := submitcontact.NewHandler(opts)
	require.NoError(t, err)

	srv := server.New(server.Config{Logger: log}, handler)
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return &environment{sheets: fake, ledger: ledger, handler: handler, api: api}
}

func (e *environment) submit(t *testing.T, method, body string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(method, e.api.URL+"/api/submit-contact", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Origin", frontend)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.api.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp, decoded
}

const validBody = `{"name":"Jane Doe","email":"jane@example.com","phone":"555-0100","message":"Do you have openings in January?"}`

// ==========================
// Submission flow
// ==========================

func TestE2E_FirstSubmissionCreatesPartition(t *testing.T) {
	env := newEnvironment(t)

	resp, body := env.submit(t, http.MethodPost, validBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"success": true, "message": submitcontact.SuccessMessage}, body)
	assert.Equal(t, frontend, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	assert.Equal(t, []string{
		"append 2025!A:F",
		"addSheet",
		"update 2025!A1:F1",
		"append 2025!A:F",
	}, env.sheets.takeCalls())

	rows := env.sheets.rows("2025")
	require.Len(t, rows, 2)
	assert.Equal(t, models.LedgerHeader, rows[0])
	assert.Equal(t, []interface{}{
		"12-31-2025", models.StatusNewInquiry, "Jane Doe", "555-0100", "jane@example.com", "Do you have openings in January?",
	}, rows[1])

	resp, _ = env.submit(t, http.MethodPost, `{"name":"Sam","email":"sam@example.com","message":"Hi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"append 2025!A:F"}, env.sheets.takeCalls())
	assert.Len(t, env.sheets.rows("2025"), 3)
}

func TestE2E_RejectedRequestsNeverReachTheLedger(t *testing.T) {
	env := newEnvironment(t)

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantError  string
	}{
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed, "HTTP Method 'GET' not allowed."},
		{"malformed json", http.MethodPost, `{"name":`, http.StatusBadRequest, "Invalid JSON in request body."},
		{"missing email", http.MethodPost, `{"name":"Jane","message":"Hi"}`, http.StatusBadRequest, "Email is a required field and must be a valid string."},
		{"blank message", http.MethodPost, `{"name":"Jane","email":"j@x.io","message":"   "}`, http.StatusBadRequest, "Message is a required field and must be a valid string."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.submit(t, tt.method, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, map[string]interface{}{"error": tt.wantError}, body)
		})
	}

	assert.Empty(t, env.sheets.takeCalls())
}

func TestE2E_Preflight(t *testing.T) {
	env := newEnvironment(t)

	resp, body := env.submit(t, http.MethodOptions, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body)
	assert.Equal(t, "POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, frontend, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, env.sheets.takeCalls())
}

func TestE2E_StoreFailureReportsDetails(t *testing.T) {
	env := newEnvironment(t)
	env.sheets.forbidden = true

	resp, body := env.submit(t, http.MethodPost, validBody)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{
		"error":   "Failed to submit form",
		"details": "The caller does not have permission",
	}, body)
	assert.Len(t, env.sheets.takeCalls(), 1)
}

func TestE2E_RateLimitedClient(t *testing.T) {
	env := newEnvironment(t, withRateLimit(1))

	resp, _ := env.submit(t, http.MethodPost, validBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.submit(t, http.MethodPost, validBody)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	assert.Equal(t, map[string]interface{}{"error": "Too many submissions. Please try again later."}, body)
	assert.Len(t, env.sheets.rows("2025"), 2)
}

// ==========================
// Ledger maintenance
// ==========================

func TestE2E_EnsurePartition(t *testing.T) {
	env := newEnvironment(t)
	ctx := context.Background()

	created, err := env.ledger.EnsurePartition(ctx, "2026")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = env.ledger.EnsurePartition(ctx, "2026")
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, [][]interface{}{models.LedgerHeader}, env.sheets.rows("2026"))
}
