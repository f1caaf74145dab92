package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	daemon "github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"

	"github.com/xscopehub/datajud-bridge/internal/audit"
	"github.com/xscopehub/datajud-bridge/internal/auth"
	"github.com/xscopehub/datajud-bridge/internal/config"
	"github.com/xscopehub/datajud-bridge/internal/datajud"
	"github.com/xscopehub/datajud-bridge/internal/limiter"
	"github.com/xscopehub/datajud-bridge/internal/metrics"
	"github.com/xscopehub/datajud-bridge/internal/registry"
	"github.com/xscopehub/datajud-bridge/internal/server"
	"github.com/xscopehub/datajud-bridge/internal/tools"
	logpkg "github.com/xscopehub/datajud-bridge/pkg/log"
	"github.com/xscopehub/datajud-bridge/pkg/manifest"
	"github.com/xscopehub/datajud-bridge/pkg/telemetry"
)

var (
	configPath string
	envFile    string
	daemonMode bool
	pidFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "datajud-bridge",
		Short:   "DataJud public records search tools over HTTP, SSE and MCP",
		Version: manifest.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemonMode {
				cntxt := &daemon.Context{
					PidFileName: pidFile,
					PidFilePerm: 0644,
				}
				child, err := cntxt.Reborn()
				if err != nil {
					return err
				}
				if child != nil {
					return nil
				}
				defer cntxt.Release()
			}
			return run()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/datajud-bridge.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional KEY=VALUE file loaded before the config")
	rootCmd.PersistentFlags().BoolVar(&daemonMode, "daemon", false, "run in background")
	rootCmd.PersistentFlags().StringVar(&pidFile, "pid-file", "datajud-bridge.pid", "pid file used with --daemon")
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if _, err := os.Stat(envFile); err == nil {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, cfg.Telemetry.Service, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			_ = shutdown(context.Background())
		}()
	}

	logger := logpkg.New(cfg.Telemetry.Service, logpkg.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		OTel:   cfg.Telemetry.Enabled,
	})
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	m := metrics.New(prometheus.DefaultRegisterer)

	client, err := datajud.New(cfg.Upstream, datajud.WithObserver(m), datajud.WithLogger(logger))
	if err != nil {
		return err
	}
	if cfg.Upstream.APIKey == "" {
		logger.Warn("no DataJud API key configured, requests are sent without Authorization", "env", config.APIKeyEnv)
	}

	reg := registry.New()
	tools.Register(reg, tools.NewService(client), client.DefaultAlias())

	rl, err := newLimiter(cfg.RateLimiter)
	if err != nil {
		return err
	}
	defer rl.Close()

	authn, err := auth.New(ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	auditLog, err := audit.FromConfig(cfg.Audit, logger)
	if err != nil {
		return fmt.Errorf("init audit: %w", err)
	}
	defer auditLog.Close()

	srv, err := server.New(cfg, reg,
		server.WithAuth(authn),
		server.WithLimiter(rl),
		server.WithAudit(auditLog),
		server.WithMetrics(m, prometheus.DefaultGatherer),
		server.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	logger.Info("starting datajud-bridge", "address", cfg.Server.Address,
		"default_alias", client.DefaultAlias(), "tools", reg.Names())
	return srv.Run(ctx)
}

func newLimiter(cfg config.RateLimiterConfig) (*limiter.Limiter, error) {
	lc := limiter.Config{
		Enabled:           cfg.Enabled,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Window:            cfg.Window,
		NumCounters:       cfg.NumCounters,
		MaxClients:        cfg.MaxClients,
		ClientTTL:         cfg.ClientTTL,
	}
	if cfg.Enabled && cfg.RedisAddr != "" {
		lc.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return limiter.New(lc)
}
