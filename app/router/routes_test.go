package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/order-sequencer/app/dto"
	"github.com/amirphl/order-sequencer/app/handlers"
	businessflow "github.com/amirphl/order-sequencer/business_flow"
	"github.com/amirphl/order-sequencer/config"
	"github.com/amirphl/order-sequencer/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.ProductionConfig {
	return &config.ProductionConfig{
		Server: config.ServerConfig{
			BodyLimit:    64 * 1024,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
		Security: config.SecurityConfig{
			AllowedOrigins:  []string{"http://localhost:5173"},
			AllowedMethods:  []string{"GET", "POST"},
			AllowedHeaders:  []string{"Content-Type", "X-API-Key"},
			GlobalRateLimit: 1000,
			RateLimitWindow: time.Minute,
			RequireAPIKey:   true,
			APIKeyHeader:    "X-API-Key",
			AllowedAPIKeys:  []string{"secret-key"},
		},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Sequence: config.SequenceConfig{Backend: config.BackendMemory},
	}
}

func newTestRouter(cfg *config.ProductionConfig) Router {
	seqFlow := businessflow.NewSequenceFlow(repository.NewMemorySequenceCounterRepository(), nil, businessflow.SequenceFlowOptions{})
	orderFlow := businessflow.NewOrderNumberFlow(seqFlow, nil, businessflow.OrderNumberFlowOptions{Prefix: "ORD-", Padding: 6})

	r := NewFiberRouter(cfg, nil,
		handlers.NewSequenceHandler(seqFlow, 0),
		handlers.NewOrderNumberHandler(orderFlow, 0),
		handlers.NewHealthHandler(cfg.Sequence.Backend, "test", func(context.Context) error { return nil }),
	)
	r.SetupRoutes()
	return r
}

func send(t *testing.T, r Router, req *http.Request) (*http.Response, dto.APIResponse) {
	t.Helper()
	resp, err := r.GetApp().Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var body dto.APIResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp, body
}

func TestRouter_HealthIsPublic(t *testing.T) {
	r := newTestRouter(testConfig())

	resp, body := send(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRouter_RequiresAPIKey(t *testing.T) {
	r := newTestRouter(testConfig())

	resp, body := send(t, r, httptest.NewRequest(http.MethodPost, "/api/v1/orders/number", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_API_KEY", body.Error.(map[string]any)["code"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sequences/orderNumber/next", nil)
	req.Header.Set("X-API-Key", "wrong")
	resp, body = send(t, r, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_API_KEY", body.Error.(map[string]any)["code"])

	req = httptest.NewRequest(http.MethodPost, "/api/v1/sequences/orderNumber/next", nil)
	req.Header.Set("X-API-Key", "secret-key")
	resp, body = send(t, r, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body.Data.(map[string]any)["value"])
}

func TestRouter_APIKeyDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = false
	r := newTestRouter(cfg)

	resp, body := send(t, r, httptest.NewRequest(http.MethodPost, "/api/v1/orders/number", nil))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ORD-000001", body.Data.(map[string]any)["display"])
}

func TestRouter_NotFound(t *testing.T) {
	r := newTestRouter(testConfig())

	resp, body := send(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body.Error.(map[string]any)["code"])
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	r := newTestRouter(testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sequences/metricsProbe/next", nil)
	req.Header.Set("X-API-Key", "secret-key")
	resp, _ := send(t, r, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := r.GetApp().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `sequence_allocations_total{counter="metricsProbe",result="success"} 1`)
	assert.Contains(t, string(raw), "http_requests_total")
}
