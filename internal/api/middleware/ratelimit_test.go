package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"estatehub/api/internal/config"
)

func newLimitedRouter(rm *RateLimiterMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(rm.Limit())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rm := NewRateLimiterMiddleware(&config.Config{RateLimitBucketSize: 2, RateLimitRefillRate: 0})
	defer rm.Close()
	router := newLimitedRouter(rm)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rm := NewRateLimiterMiddleware(&config.Config{RateLimitBucketSize: 1, RateLimitRefillRate: 1})
	defer rm.Close()

	rm.getClientLimiter("a")
	rm.getClientLimiter("b")
	rm.mu.Lock()
	rm.clients["a"].lastSeen = time.Now().Add(-time.Hour)
	rm.mu.Unlock()

	assert.Equal(t, 1, rm.evictIdle(time.Now().Add(-clientIdleAfter)))
	rm.mu.Lock()
	defer rm.mu.Unlock()
	assert.Contains(t, rm.clients, "b")
	assert.NotContains(t, rm.clients, "a")
}
