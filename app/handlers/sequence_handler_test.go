package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amirphl/order-sequencer/app/dto"
	businessflow "github.com/amirphl/order-sequencer/business_flow"
	"github.com/amirphl/order-sequencer/models"
	"github.com/amirphl/order-sequencer/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// downRepository fails every operation like an unreachable store
type downRepository struct{}

var errDown = errors.New("connection refused")

func (downRepository) Increment(context.Context, string) (int64, error) { return 0, errDown }
func (downRepository) ByName(context.Context, string) (*models.SequenceCounter, error) {
	return nil, errDown
}
func (downRepository) ByFilter(context.Context, models.SequenceCounterFilter, string, int, int) ([]*models.SequenceCounter, error) {
	return nil, errDown
}
func (downRepository) SaveIfAbsent(context.Context, *models.SequenceCounter) (bool, error) {
	return false, errDown
}

func newSequenceApp(repo repository.SequenceCounterRepository) *fiber.App {
	seqFlow := businessflow.NewSequenceFlow(repo, nil, businessflow.SequenceFlowOptions{})
	seq := NewSequenceHandler(seqFlow, 0)
	orders := NewOrderNumberHandler(businessflow.NewOrderNumberFlow(seqFlow, nil, businessflow.OrderNumberFlowOptions{
		Prefix:  "ORD-",
		Padding: 6,
	}), 0)

	app := fiber.New()
	app.Get("/api/v1/sequences", seq.List)
	app.Get("/api/v1/sequences/:name", seq.Current)
	app.Post("/api/v1/sequences/:name/next", seq.Next)
	app.Post("/api/v1/sequences/:name/seed", seq.Seed)
	app.Post("/api/v1/orders/number", orders.Next)
	return app
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Details any    `json:"details"`
	} `json:"error"`
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestSequenceHandler_NextAndCurrent(t *testing.T) {
	app := newSequenceApp(repository.NewMemorySequenceCounterRepository())

	for want := int64(1); want <= 3; want++ {
		status, env := doRequest(t, app, http.MethodPost, "/api/v1/sequences/orderNumber/next", "")
		require.Equal(t, http.StatusOK, status)
		assert.True(t, env.Success)

		var data dto.NextValueResponse
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "orderNumber", data.Name)
		assert.Equal(t, want, data.Value)
	}

	status, env := doRequest(t, app, http.MethodGet, "/api/v1/sequences/orderNumber", "")
	require.Equal(t, http.StatusOK, status)
	var current dto.CurrentValueResponse
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, int64(3), current.Value)
}

func TestSequenceHandler_InvalidName(t *testing.T) {
	app := newSequenceApp(repository.NewMemorySequenceCounterRepository())

	status, env := doRequest(t, app, http.MethodPost, "/api/v1/sequences/-bad/next", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Equal(t, businessflow.CodeInvalidCounterName, env.Error.Code)
}

func TestSequenceHandler_CurrentNotFound(t *testing.T) {
	app := newSequenceApp(repository.NewMemorySequenceCounterRepository())

	status, env := doRequest(t, app, http.MethodGet, "/api/v1/sequences/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, businessflow.CodeCounterNotFound, env.Error.Code)
}

func TestSequenceHandler_StorageUnavailable(t *testing.T) {
	app := newSequenceApp(downRepository{})

	status, env := doRequest(t, app, http.MethodPost, "/api/v1/sequences/orderNumber/next", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, businessflow.CodeStorageUnavailable, env.Error.Code)
	// Driver details stay out of the response
	assert.Nil(t, env.Error.Details)

	status, env = doRequest(t, app, http.MethodPost, "/api/v1/orders/number", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, businessflow.CodeStorageUnavailable, env.Error.Code)
	assert.Empty(t, env.Data)
}

func TestSequenceHandler_SeedAndList(t *testing.T) {
	app := newSequenceApp(repository.NewMemorySequenceCounterRepository())

	status, env := doRequest(t, app, http.MethodPost, "/api/v1/sequences/orderNumber/seed", `{"value": 10500}`)
	require.Equal(t, http.StatusCreated, status)
	var seeded dto.SeedCounterResponse
	require.NoError(t, json.Unmarshal(env.Data, &seeded))
	assert.Equal(t, int64(10500), seeded.Counter.Value)

	status, env = doRequest(t, app, http.MethodPost, "/api/v1/sequences/orderNumber/seed", `{"value": 1}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, businessflow.CodeCounterAlreadyExists, env.Error.Code)

	_, _ = doRequest(t, app, http.MethodPost, "/api/v1/sequences/invoices/next", "")

	status, env = doRequest(t, app, http.MethodGet, "/api/v1/sequences", "")
	require.Equal(t, http.StatusOK, status)
	var list dto.ListSequenceCountersResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "invoices", list.Counters[0].Name)
	assert.Equal(t, "orderNumber", list.Counters[1].Name)
	assert.Equal(t, int64(10500), list.Counters[1].Value)
}

func TestSequenceHandler_InterleavedCountersKeepTheirNames(t *testing.T) {
	repo := repository.NewMemorySequenceCounterRepository()
	app := newSequenceApp(repo)

	nextValue := func(name string) int64 {
		t.Helper()
		status, env := doRequest(t, app, http.MethodPost, "/api/v1/sequences/"+name+"/next", "")
		require.Equal(t, http.StatusOK, status)
		var data dto.NextValueResponse
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, name, data.Name)
		return data.Value
	}

	names := []string{"alpha", "bravo", "charlie", "delta"}
	for _, name := range names {
		assert.Equal(t, int64(1), nextValue(name))
	}
	_, _ = doRequest(t, app, http.MethodGet, "/api/v1/sequences/unrelated-counter", "")

	rows, err := repo.ByFilter(context.Background(), models.SequenceCounterFilter{}, "", 0, 0)
	require.NoError(t, err)
	stored := make([]string, 0, len(rows))
	for _, row := range rows {
		stored = append(stored, row.Name)
	}
	assert.Equal(t, names, stored)

	counter, err := repo.ByName(context.Background(), "alpha")
	require.NoError(t, err)
	require.NotNil(t, counter)

	assert.Equal(t, int64(2), nextValue("alpha"))
	assert.Equal(t, int64(2), nextValue("delta"))

	status, env := doRequest(t, app, http.MethodGet, "/api/v1/sequences/alpha", "")
	require.Equal(t, http.StatusOK, status)
	var current dto.CurrentValueResponse
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, int64(2), current.Value)
}

func TestSequenceHandler_MetricsGatherAfterAllocations(t *testing.T) {
	app := newSequenceApp(repository.NewMemorySequenceCounterRepository())

	for _, name := range []string{"invoices", "orders99", "receipts"} {
		status, _ := doRequest(t, app, http.MethodPost, "/api/v1/sequences/"+name+"/next", "")
		require.Equal(t, http.StatusOK, status)
	}
	_, _ = doRequest(t, app, http.MethodGet, "/api/v1/sequences", "")
	_, _ = doRequest(t, app, http.MethodGet, "/api/v1/sequences/some-other-name", "")

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var counters []string
	for _, family := range families {
		if family.GetName() != "sequence_allocations_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "counter" {
					counters = append(counters, label.GetValue())
				}
			}
		}
	}
	assert.Contains(t, counters, "invoices")
	assert.Contains(t, counters, "orders99")
	assert.Contains(t, counters, "receipts")
}

func TestSequenceHandler_SeedValidation(t *testing.T) {
	app := newSequenceApp(repository.NewMemorySequenceCounterRepository())

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing value", `{}`, "VALIDATION_ERROR"},
		{"negative value", `{"value": -5}`, "VALIDATION_ERROR"},
		{"malformed body", `{"value":`, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := doRequest(t, app, http.MethodPost, "/api/v1/sequences/orders/seed", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestOrderNumberHandler_Next(t *testing.T) {
	app := newSequenceApp(repository.NewMemorySequenceCounterRepository())

	status, env := doRequest(t, app, http.MethodPost, "/api/v1/orders/number", "")
	require.Equal(t, http.StatusCreated, status)

	var res dto.OrderNumberResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, int64(1), res.Number)
	assert.Equal(t, "ORD-000001", res.Display)
}

func TestHealthHandler(t *testing.T) {
	healthy := NewHealthHandler("memory", "1.2.3", nil)
	failing := NewHealthHandler("database", "1.2.3", func(context.Context) error { return errDown })

	app := fiber.New()
	app.Get("/ok", healthy.Check)
	app.Get("/down", failing.Check)

	status, env := doRequest(t, app, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusOK, status)
	var res dto.HealthResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, "memory", res.Backend)

	status, env = doRequest(t, app, http.MethodGet, "/down", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "STORAGE_UNAVAILABLE", env.Error.Code)
}
