package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cast"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/xscopehub/datajud-bridge/internal/audit"
	"github.com/xscopehub/datajud-bridge/internal/auth"
	"github.com/xscopehub/datajud-bridge/internal/config"
	"github.com/xscopehub/datajud-bridge/internal/limiter"
	"github.com/xscopehub/datajud-bridge/internal/mcpbridge"
	"github.com/xscopehub/datajud-bridge/internal/metrics"
	"github.com/xscopehub/datajud-bridge/internal/registry"
	"github.com/xscopehub/datajud-bridge/internal/tools"
	"github.com/xscopehub/datajud-bridge/internal/types"
	"github.com/xscopehub/datajud-bridge/pkg/manifest"
)

// Server represents the HTTP API server.
type Server struct {
	cfg      config.Config
	engine   *gin.Engine
	registry *registry.Registry
	auth     *auth.Authenticator
	limiter  *limiter.Limiter
	audit    *audit.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option customises a Server.
type Option func(*Server)

// WithAuth enables bearer token verification on tool routes.
func WithAuth(a *auth.Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithLimiter enables per-client rate limiting on tool routes.
func WithLimiter(l *limiter.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithAudit records every invocation to l.
func WithAudit(l *audit.Logger) Option {
	return func(s *Server) { s.audit = l }
}

// WithMetrics sets the collectors and the gatherer served on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New constructs a server exposing the tools in reg.
func New(cfg config.Config, reg *registry.Registry, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		registry: reg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		promReg := prometheus.NewRegistry()
		s.metrics = metrics.New(promReg)
		s.gatherer = promReg
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.cfg.SSE.PingInterval <= 0 {
		s.cfg.SSE.PingInterval = config.Default().SSE.PingInterval
	}

	mcpHandler, err := mcpbridge.New(reg.ListTools(), s)
	if err != nil {
		return nil, fmt.Errorf("init mcp endpoint: %w", err)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Telemetry.Service))
	r.Use(requestID())
	r.Use(requestLogger(s.logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/sse", s.handleSSE)
	r.GET("/tools", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tools": s.registry.ListTools()})
	})
	r.GET("/manifest", func(c *gin.Context) {
		c.JSON(http.StatusOK, manifest.New(s.registry.Names()))
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	guarded := r.Group("/", s.authenticate(), s.rateLimit())
	guarded.POST("/invoke/:tool", s.handleInvoke)
	guarded.Any("/mcp", gin.WrapH(mcpHandler))

	s.engine = r
	return s, nil
}

// Handler exposes the HTTP handler for embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP server until context cancellation. Open discovery
// streams observe the cancellation through their request context.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Address,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "address", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Invoke runs a tool and records the invocation. It serves both the
// /invoke routes and the MCP endpoint.
func (s *Server) Invoke(ctx context.Context, tool string, args types.Arguments) (types.Envelope, error) {
	start := time.Now()
	env, err := s.registry.InvokeTool(ctx, tool, args)
	status := statusOf(err)

	s.metrics.ObserveInvocation(s.toolLabel(tool), outcomeOf(status))

	entry := audit.Entry{
		RequestID: RequestID(ctx),
		Client:    valueOf(ctx, clientKey),
		Subject:   valueOf(ctx, subjectKey),
		Tool:      tool,
		Alias:     s.aliasOf(args),
		Status:    status,
		Duration:  time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
		s.logger.Warn("invocation failed", "tool", tool, "status", status, "error", err,
			"request_id", entry.RequestID)
	}
	s.audit.Log(ctx, entry)
	return env, err
}

func (s *Server) handleInvoke(c *gin.Context) {
	tool := c.Param("tool")

	body, err := decodeBody(c.Request.Body)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	env, err := s.Invoke(c.Request.Context(), tool, tools.Normalize(body))
	if err != nil {
		writeError(c, statusOf(err), messageOf(err, tool))
		return
	}
	c.JSON(http.StatusOK, env)
}

// decodeBody reads a JSON object. An empty body yields a nil map.
func decodeBody(r io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errInvalidBody
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errInvalidBody
	}
	return obj, nil
}

// toolLabel bounds metric label cardinality to registered tool names.
func (s *Server) toolLabel(tool string) string {
	if tool == "mcp" || s.registry.Has(tool) {
		return tool
	}
	return "unknown"
}

func (s *Server) aliasOf(args types.Arguments) string {
	alias := strings.TrimSpace(cast.ToString(args["alias"]))
	if alias == "" {
		return s.cfg.Upstream.DefaultAlias
	}
	return alias
}
