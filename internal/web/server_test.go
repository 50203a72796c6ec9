package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/robodata/internal/core"
)

type fakeSource struct {
	connected bool
	limiter   *core.ValidationLimiter
}

func (f *fakeSource) BrokerConnected(context.Context) bool { return f.connected }
func (f *fakeSource) Limiter() *core.ValidationLimiter { return f.limiter }

func newFakeSource(connected bool) *fakeSource {
	return &fakeSource{connected: connected, limiter: core.NewValidationLimiter(3, time.Second)}
}

func serve(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := NewServer(newFakeSource(false))
	rec := serve(t, s, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	ok := Check{Name: "database", Ping: func(context.Context) error { return nil }}
	down := Check{Name: "storage", Ping: func(context.Context) error {
		return fmt.Errorf("ping bucket: %w", core.ErrStorageUnavailable)
	}}

	tests := []struct {
		name         string
		connected    bool
		checks       []Check
		wantStatus   int
		wantDispatch core.DispatchMode
	}{
		{"all healthy queued", true, []Check{ok}, http.StatusOK, core.ModeQueued},
		{"broker down still ready", false, []Check{ok}, http.StatusOK, core.ModeInline},
		{"dependency down", true, []Check{ok, down}, http.StatusServiceUnavailable, core.ModeQueued},
		{"no checks", false, nil, http.StatusOK, core.ModeInline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(newFakeSource(tt.connected), tt.checks...)
			rec := serve(t, s, http.MethodGet, "/readyz")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantDispatch, resp.Dispatch)
			assert.Len(t, resp.Checks, len(tt.checks))

			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "ready", resp.Status)
				return
			}
			assert.Equal(t, "unavailable", resp.Status)
			assert.Equal(t, "ok", resp.Checks["database"].Status)
			assert.Equal(t, "error", resp.Checks["storage"].Status)
			assert.Equal(t, "STO001", resp.Checks["storage"].Code)
		})
	}
}

func TestLimiterStatus(t *testing.T) {
	src := newFakeSource(false)
	require.NoError(t, src.limiter.Acquire(context.Background()))
	defer src.limiter.Release()

	rec := serve(t, NewServer(src), http.MethodGet, "/status/limiter")
	assert.Equal(t, http.StatusOK, rec.Code)

	var status core.ValidationLimiterStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Active)
	assert.Equal(t, 2, status.Available)
	assert.Equal(t, 3, status.MaxConcurrent)
}

func TestUnknownRoutes(t *testing.T) {
	s := NewServer(newFakeSource(false))

	rec := serve(t, s, http.MethodGet, "/datasets")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "WEB001", body.Code)

	rec = serve(t, s, http.MethodPost, "/healthz")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "WEB002", body.Code)
}

func TestSecurityHeaders(t *testing.T) {
	rec := serve(t, NewServer(newFakeSource(false)), http.MethodGet, "/healthz")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRespondError_LogLevel(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantCode  string
	}{
		{"mapped error logs warn", errRouteNotFound, "WARN", "WEB001"},
		{"unmapped error logs error", errors.New("boom"), "ERROR", "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			prev := slog.Default()
			slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
			defer slog.SetDefault(prev)

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			rec := httptest.NewRecorder()
			respondError(rec, req, tt.err, http.StatusBadRequest)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, tt.wantCode, entry["code"])
		})
	}
}
