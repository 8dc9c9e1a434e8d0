package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spark200410/consultancy/internal/metrics"
)

func pingOK(context.Context) error { return nil }
func pingDown(context.Context) error { return errors.New("connection refused") }

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     []Check
		wantCode   int
		wantStatus string
	}{
		{
			name:       "all up",
			checks:     []Check{{Name: "backend", Critical: true, Ping: pingOK}, {Name: "redis", Ping: pingOK}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "optional dependency down",
			checks:     []Check{{Name: "backend", Critical: true, Ping: pingOK}, {Name: "postgres", Ping: pingDown}},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name:       "critical dependency down",
			checks:     []Check{{Name: "backend", Critical: true, Ping: pingDown}, {Name: "postgres", Ping: pingDown}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks, "test", "v1")
			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp ReadinessResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Dependencies, len(tt.checks))
		})
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveChatMessage("text", "ok")

	p := newTestPortal(t, newFakeBooking(), func(cfg *RouterConfig) {
		cfg.Checks = []Check{{Name: "backend", Critical: true, Ping: pingOK}}
		cfg.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	})

	resp, body := p.get("/health/live")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, body = p.get("/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "chat_messages_total")

	resp, _ = p.get("/static/style.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
