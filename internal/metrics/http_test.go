package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	provider, err := NewProvider("http_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	router := gin.New()
	router.Use(HTTPMetricsMiddleware(provider.MeterProvider(), "http_test"))
	router.GET("/v1/users/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	router.POST("/v1/users", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	})

	for _, path := range []string{"/v1/users/a", "/v1/users/b", "/v1/users/c"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/users", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	output := scrape(t, provider)

	assertMetricLine(t, output, `http_test_http_requests_total`,
		`method="GET".*path="/v1/users/:id".*status_code="200"`, `3`)
	assertMetricLine(t, output, `http_test_http_requests_total`,
		`method="POST".*path="/v1/users".*status_code="409"`, `1`)
	assertMetricLine(t, output, `http_test_http_requests_total`,
		`path="unknown".*status_code="404"`, `1`)
	assert.NotContains(t, output, `/v1/users/a`)
}

func TestRoutePattern(t *testing.T) {
	assert.Equal(t, "unknown", routePattern(""))
	assert.Equal(t, "/v1/users/:id/contact", routePattern("/v1/users/:id/contact"))
}
