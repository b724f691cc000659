package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestServer_Readiness(t *testing.T) {
	t.Run("готов", func(t *testing.T) {
		s := NewServer(":0", WithReadinessCheck(func(ctx context.Context) error { return nil }))

		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
	})

	t.Run("не готов", func(t *testing.T) {
		s := NewServer(":0", WithReadinessCheck(func(ctx context.Context) error { return errors.New("mysql down") }))

		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "mysql")
	})
}

func TestGinMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMetricsMiddleware("metrics-test"))
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("metrics-test", "/orders/:id", "error"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/42", nil))

	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("metrics-test", "/orders/:id", "error"))
	assert.Equal(t, before+1, after)
}
