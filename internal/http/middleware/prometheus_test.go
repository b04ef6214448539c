package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetricsApp(t *testing.T) (*fiber.App, *PrometheusMiddleware, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMiddleware(reg)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(m.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendString("# metrics") })
	app.Get("/images/:public_id/url", func(c *fiber.Ctx) error { return c.SendString("/uploads/" + c.Params("public_id")) })
	app.Delete("/images/:public_id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Post("/images", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "image is required") })
	app.Post("/images/:public_id/approve", func(c *fiber.Ctx) error { return errors.New("backend down") })
	return app, m, reg
}

func TestPrometheusMiddleware_Counts(t *testing.T) {
	app, m, _ := newMetricsApp(t)

	requests := []struct {
		method, target string
		status         int
	}{
		{fiber.MethodGet, "/images/cat.png/url", fiber.StatusOK},
		{fiber.MethodGet, "/images/dog.png/url", fiber.StatusOK},
		{fiber.MethodDelete, "/images/cat.png", fiber.StatusNoContent},
		{fiber.MethodPost, "/images", fiber.StatusBadRequest},
		{fiber.MethodPost, "/images/cat.png/approve", fiber.StatusInternalServerError},
	}
	for _, r := range requests {
		resp, err := app.Test(httptest.NewRequest(r.method, r.target, nil))
		require.NoError(t, err)
		assert.Equal(t, r.status, resp.StatusCode, r.target)
	}

	tests := []struct {
		labels []string
		want   float64
	}{
		{[]string{"GET", "/images/:public_id/url", "200"}, 2},
		{[]string{"DELETE", "/images/:public_id", "204"}, 1},
		{[]string{"POST", "/images", "400"}, 1},
		{[]string{"POST", "/images/:public_id/approve", "500"}, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, testutil.ToFloat64(m.requestCount.WithLabelValues(tt.labels...)), tt.labels)
	}
	assert.Equal(t, 4, testutil.CollectAndCount(m.requestDuration))
}

func TestPrometheusMiddleware_SkipsMetricsEndpoint(t *testing.T) {
	app, m, _ := newMetricsApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Zero(t, testutil.CollectAndCount(m.requestCount))
	assert.Zero(t, testutil.CollectAndCount(m.requestDuration))
}

func TestPrometheusMiddleware_UnmatchedPaths(t *testing.T) {
	app, m, _ := newMetricsApp(t)

	for _, target := range []string{"/nope/1", "/nope/2", "/wp-admin.php"} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, target, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.requestCount.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestCount))
}

func TestPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	_, _, reg := newMetricsApp(t)

	_, err := NewPrometheusMiddleware(reg)
	var already prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &already)
}
