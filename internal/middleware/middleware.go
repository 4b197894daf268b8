package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/olyamironova/spot-exchange/internal/api/dto"
)

const (
	UserHeader = "X-User-ID"
	userKey    = "user_id"
)

// RequireUser rejects requests without an X-User-ID header and stores the
// id for UserID.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: UserHeader + " header required"})
			return
		}
		c.Set(userKey, userID)
		c.Next()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(userKey)
}

// RateLimiter admits one request per caller every limit. Callers are keyed
// by X-User-ID, falling back to the client IP. Callers idle for longer than
// limit are forgotten.
type RateLimiter struct {
	clients   map[string]time.Time
	mu        sync.Mutex
	limit     time.Duration
	lastPrune time.Time
	now       func() time.Time
}

func NewRateLimiter(limit time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]time.Time),
		limit:   limit,
		now:     time.Now,
	}
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.allow(callerKey(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if now.Sub(r.lastPrune) >= r.limit {
		r.prune(now)
	}
	last, exists := r.clients[key]
	if exists && now.Sub(last) < r.limit {
		return false
	}
	r.clients[key] = now
	return true
}

// prune drops callers whose last request is at least limit old; they would
// be admitted anyway. Callers hold r.mu.
func (r *RateLimiter) prune(now time.Time) {
	for key, last := range r.clients {
		if now.Sub(last) >= r.limit {
			delete(r.clients, key)
		}
	}
	r.lastPrune = now
}

func callerKey(c *gin.Context) string {
	if id := c.GetHeader(UserHeader); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

// Logger logs one line per request.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if id := c.GetHeader(UserHeader); id != "" {
			fields = append(fields, zap.String("user_id", id))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("request failed", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
