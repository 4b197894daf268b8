package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func do(r http.Handler, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireUser(t *testing.T) {
	r := newRouter(Logger(zap.NewNop()), RequireUser())

	w := do(r, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), UserHeader)

	w = do(r, "alice")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(100 * time.Millisecond)
	rl.now = func() time.Time { return now }
	r := newRouter(rl.Middleware())

	assert.Equal(t, http.StatusOK, do(r, "alice").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "alice").Code)
	assert.Equal(t, http.StatusOK, do(r, "bob").Code, "callers are limited independently")

	now = now.Add(100 * time.Millisecond)
	assert.Equal(t, http.StatusOK, do(r, "alice").Code)
}

func TestRateLimiterForgetsIdleCallers(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(100 * time.Millisecond)
	rl.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		require.True(t, rl.allow(fmt.Sprintf("user:%d", i)))
	}
	assert.Len(t, rl.clients, 50)

	now = now.Add(50 * time.Millisecond)
	require.True(t, rl.allow("user:late"))
	assert.Len(t, rl.clients, 51, "nobody is idle for a full interval yet")

	now = now.Add(60 * time.Millisecond)
	require.True(t, rl.allow("user:0"))
	assert.Len(t, rl.clients, 2)
	assert.Contains(t, rl.clients, "user:late")
	require.False(t, rl.allow("user:late"), "pruning keeps recent callers limited")
}
