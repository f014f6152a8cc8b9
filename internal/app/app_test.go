package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/pizzeria/pkg/httpmiddleware"
)

func testConfig() *Config {
	return &Config{
		Storage:  StorageMemory,
		MenuFile: "../../db/seed/menu.yaml",
		Order: OrderConfig{
			Address:         "Main street 1",
			Cutoff:          "19:30",
			CutoffInclusive: true,
			Timezone:        "UTC",
		},
		RateLimit: RateLimitConfig{Max: 2, Window: time.Minute},
	}
}

func TestBuild(t *testing.T) {
	svc, release, err := build(t.Context(), zaptest.NewLogger(t), testConfig(),
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	t.Cleanup(release)

	serve := func(method, target, body string) *httptest.ResponseRecorder {
		var r *http.Request
		if body == "" {
			r = httptest.NewRequest(method, target, nil)
		} else {
			r = httptest.NewRequest(method, target, strings.NewReader(body))
		}
		w := httptest.NewRecorder()
		svc.handler.ServeHTTP(w, r)
		return w
	}

	w := serve(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	svc.health.SetReady(true)
	w = serve(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(httpmiddleware.RequestIDHeader))

	w = serve(http.MethodGet, "/livez", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(http.MethodGet, "/api/menu", "")
	require.Equal(t, http.StatusOK, w.Code)
	var m struct {
		Pizzas []struct {
			ID    int64  `json:"id"`
			Name  string `json:"name"`
			Total string `json:"total"`
		} `json:"pizzas"`
		Sizes []struct {
			ID          int64  `json:"id"`
			Description string `json:"description"`
		} `json:"sizes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	require.Len(t, m.Pizzas, 2)
	require.Len(t, m.Sizes, 3)
	assert.Equal(t, "Pepperoni", m.Pizzas[0].Name)
	assert.Equal(t, "12.00", m.Pizzas[0].Total)

	// Pepperoni (12.00) in Large (32.50).
	body := `{"items":[{"pizzaId":1,"sizeId":3}]}`
	w = serve(http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var o struct {
		Price   string `json:"price"`
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &o))
	assert.Equal(t, "44.50", o.Price)
	assert.Equal(t, "Main street 1", o.Address)

	// Order writes are rate limited, reads are not.
	require.Equal(t, http.StatusCreated, serve(http.MethodPost, "/api/orders", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(http.MethodPost, "/api/orders", body).Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/orders/1", "").Code)
}

func TestBuild_BadMenuFile(t *testing.T) {
	cfg := testConfig()
	cfg.MenuFile = "testdata/missing.yaml"

	_, _, err := build(t.Context(), zaptest.NewLogger(t), cfg,
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.Error(t, err)
}
