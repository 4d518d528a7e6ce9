package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/form16-extractor/internal/common"
)

const headerRequestID = "X-Request-ID"

// requestContext stores a request id and a request-scoped logger in the
// request context and logs one line per request.
func requestContext(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader(headerRequestID)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Header(headerRequestID, rid)

		reqLog := logger.With(zap.String("req_id", rid))
		ctx := common.WithRequestID(c.Request.Context(), rid)
		ctx = common.WithLogger(ctx, reqLog)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		reqLog.Info("http.request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
	}
}

// corsMiddleware allows cross-origin uploads from origin; empty disables CORS.
func corsMiddleware(origin string) gin.HandlerFunc {
	if origin == "" {
		return func(c *gin.Context) { c.Next() }
	}
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	if origin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = strings.Split(origin, ",")
		for i := range cfg.AllowOrigins {
			cfg.AllowOrigins[i] = strings.TrimSpace(cfg.AllowOrigins[i])
		}
	}
	return cors.New(cfg)
}

// rateLimit applies one process-wide token bucket; nil disables it.
func rateLimit(l *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l != nil && !l.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
