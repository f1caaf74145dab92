package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xscopehub/datajud-bridge/internal/audit"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// requestID propagates or generates a request ID and records the client
// address on the request context.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)

		ctx := withValue(c.Request.Context(), requestIDKey, id)
		ctx = withValue(ctx, clientKey, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", RequestID(c.Request.Context()),
		)
	}
}

// authenticate verifies the bearer token when auth is enabled and stores the
// token subject on the request context.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := s.auth.Verify(c.Request)
		if err != nil {
			s.reject(c, err)
			return
		}
		if subject != "" {
			c.Request = c.Request.WithContext(withValue(c.Request.Context(), subjectKey, subject))
		}
		c.Next()
	}
}

// rateLimit keys buckets by token subject, falling back to the client IP.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := valueOf(ctx, subjectKey)
		if key == "" {
			key = c.ClientIP()
		}
		if err := s.limiter.Allow(ctx, key); err != nil {
			s.reject(c, err)
			return
		}
		c.Next()
	}
}

// reject aborts a request refused before reaching a tool.
func (s *Server) reject(c *gin.Context, err error) {
	ctx := c.Request.Context()
	tool := c.Param("tool")
	if tool == "" {
		tool = "mcp"
	}
	status := statusOf(err)

	s.metrics.ObserveInvocation(s.toolLabel(tool), outcomeOf(status))
	s.audit.Log(ctx, audit.Entry{
		RequestID: RequestID(ctx),
		Client:    valueOf(ctx, clientKey),
		Subject:   valueOf(ctx, subjectKey),
		Tool:      tool,
		Status:    status,
		Error:     err.Error(),
	})
	writeError(c, status, err.Error())
}
