package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DataJudBaseURL is the public DataJud search API root.
	DataJudBaseURL = "https://api-publica.datajud.cnj.jus.br"
	// DefaultAlias selects the TJ/RJ index.
	DefaultAlias = "api_publica_tjrj"
	// APIKeyEnv names the environment variable holding the DataJud API key.
	APIKeyEnv = "DATAJUD_API_KEY"
)

// Config represents the application configuration. It is built once at
// startup and treated as read-only afterwards.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	SSE         SSEConfig         `yaml:"sse"`
	RateLimiter RateLimiterConfig `yaml:"rate_limiter"`
	Auth        AuthConfig        `yaml:"auth"`
	Audit       AuditConfig       `yaml:"audit"`
	Log         LogConfig         `yaml:"log"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig controls HTTP server settings.
type ServerConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	TrustedProxies []string      `yaml:"trusted_proxies"`
}

// UpstreamConfig describes the DataJud endpoint. BaseURL, DefaultAlias and
// APIKey are not read from YAML.
type UpstreamConfig struct {
	BaseURL        string        `yaml:"-"`
	DefaultAlias   string        `yaml:"-"`
	APIKey         string        `yaml:"-"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Timeout        time.Duration `yaml:"timeout"`
}

// SSEConfig configures the discovery stream.
type SSEConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
}

// RateLimiterConfig defines per-client rate limiting behaviour.
type RateLimiterConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Window            time.Duration `yaml:"window"`
	NumCounters       int64         `yaml:"num_counters"`
	MaxClients        int64         `yaml:"max_clients"`
	ClientTTL         time.Duration `yaml:"client_ttl"`
	RedisAddr         string        `yaml:"redis_addr"`
	RedisUsername     string        `yaml:"redis_username"`
	RedisPassword     string        `yaml:"redis_password"`
	RedisDB           int           `yaml:"redis_db"`
}

// AuthConfig configures optional JWT authentication of tool invocations.
type AuthConfig struct {
	Enabled  bool          `yaml:"enabled"`
	JWKSURL  string        `yaml:"jwks_url"`
	Audience []string      `yaml:"audience"`
	Issuer   string        `yaml:"issuer"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// AuditConfig configures invocation auditing.
type AuditConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Sink         string   `yaml:"sink"`
	NatsURL      string   `yaml:"nats_url"`
	NatsSubject  string   `yaml:"nats_subject"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

// LogConfig selects slog level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig toggles OpenTelemetry export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Service  string `yaml:"service"`
	Endpoint string `yaml:"endpoint"`
}

// Load reads configuration from the supplied path or returns defaults, then
// applies the environment. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("unmarshal config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.Upstream.APIKey = strings.TrimSpace(os.Getenv(APIKeyEnv))
	cfg.fillDefaults()
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:     ":8000",
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:        DataJudBaseURL,
			DefaultAlias:   DefaultAlias,
			ConnectTimeout: 15 * time.Second,
			Timeout:        30 * time.Second,
		},
		SSE: SSEConfig{PingInterval: 15 * time.Second},
		RateLimiter: RateLimiterConfig{
			Enabled:           false,
			RequestsPerSecond: 10,
			Burst:             20,
			Window:            time.Minute,
			NumCounters:       1e5,
			MaxClients:        1e4,
			ClientTTL:         10 * time.Minute,
		},
		Auth: AuthConfig{CacheTTL: time.Hour},
		Audit: AuditConfig{
			Enabled:     true,
			Sink:        "stdout",
			NatsSubject: "datajud.bridge.audit",
			KafkaTopic:  "datajud-bridge-audit",
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{
			Service:  "datajud-bridge",
			Endpoint: "localhost:4317",
		},
	}
}

// fillDefaults repairs zero values a partial YAML file may leave behind.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.Address == "" {
		c.Server.Address = def.Server.Address
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = def.Upstream.BaseURL
	}
	if c.Upstream.DefaultAlias == "" {
		c.Upstream.DefaultAlias = def.Upstream.DefaultAlias
	}
	if c.Upstream.ConnectTimeout <= 0 {
		c.Upstream.ConnectTimeout = def.Upstream.ConnectTimeout
	}
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = def.Upstream.Timeout
	}
	if c.SSE.PingInterval <= 0 {
		c.SSE.PingInterval = def.SSE.PingInterval
	}
	if c.Telemetry.Service == "" {
		c.Telemetry.Service = def.Telemetry.Service
	}
}
