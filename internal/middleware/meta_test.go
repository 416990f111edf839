package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/campus-schedule-api/internal/service"
	"github.com/noah-isme/campus-schedule-api/pkg/middleware/requestid"
)

func TestMetaCarriesCacheHitAndRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(requestid.Middleware(), Metrics(metrics), ResponseMeta())

	var meta map[string]interface{}
	r.GET("/schedule", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = Meta(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/schedule", nil)
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "req-42", meta["request_id"])
	assert.Contains(t, meta, "processing_time_ms")
	assert.EqualValues(t, 1, metrics.Snapshot().TotalRequests)
}

func TestMetricsLabelsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.EqualValues(t, 1, metrics.Snapshot().TotalRequests)
}
