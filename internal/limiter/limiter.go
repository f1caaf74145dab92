package limiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// ErrRateLimited indicates the client exceeded its rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter enforces per-client limits using local token buckets and an
// optional Redis sliding window. Buckets live in a bounded ristretto cache so
// that idle clients are evicted.
type Limiter struct {
	enabled bool

	rps    float64
	burst  int
	window time.Duration
	ttl    time.Duration

	mu      sync.Mutex
	buckets *ristretto.Cache

	redis redis.UniversalClient
}

// Config contains parameters for limiter construction.
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	Window            time.Duration
	NumCounters       int64
	MaxClients        int64
	ClientTTL         time.Duration
	Redis             redis.UniversalClient
}

// New creates a Limiter from the supplied configuration.
func New(cfg Config) (*Limiter, error) {
	if !cfg.Enabled {
		return &Limiter{enabled: false}, nil
	}

	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 1e4
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = cfg.MaxClients * 10
	}
	if cfg.ClientTTL <= 0 {
		cfg.ClientTTL = 10 * time.Minute
	}

	buckets, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxClients,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("init limiter buckets: %w", err)
	}

	return &Limiter{
		enabled: true,
		rps:     cfg.RequestsPerSecond,
		burst:   cfg.Burst,
		window:  cfg.Window,
		ttl:     cfg.ClientTTL,
		buckets: buckets,
		redis:   cfg.Redis,
	}, nil
}

// Enabled reports whether limits are enforced.
func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow verifies whether the client may perform the next invocation.
func (l *Limiter) Allow(ctx context.Context, client string) error {
	if !l.Enabled() || client == "" {
		return nil
	}

	if !l.bucket(client).Allow() {
		return ErrRateLimited
	}

	if l.redis != nil {
		allowed, err := l.allowRedis(ctx, client)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrRateLimited
		}
	}

	return nil
}

// Close releases the bucket cache and the Redis client.
func (l *Limiter) Close() {
	if !l.Enabled() {
		return
	}
	l.buckets.Close()
	if l.redis != nil {
		_ = l.redis.Close()
	}
}

// bucket returns the client's token bucket, creating it on first use. A
// bucket dropped by the cache admission policy is recreated full.
func (l *Limiter) bucket(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.buckets.Get(client); ok {
		if b, ok := v.(*rate.Limiter); ok {
			return b
		}
	}

	limit := rate.Inf
	if l.rps > 0 {
		limit = rate.Limit(l.rps)
	}
	b := rate.NewLimiter(limit, l.burst)
	l.buckets.SetWithTTL(client, b, 1, l.ttl)
	l.buckets.Wait()
	return b
}

var redisScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

func (l *Limiter) allowRedis(ctx context.Context, client string) (bool, error) {
	limit := l.burst
	if limit <= 0 {
		limit = 1
	}

	now := time.Now().UnixMilli()
	window := l.window.Milliseconds()
	if window <= 0 {
		window = time.Minute.Milliseconds()
	}

	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()
	res, err := redisScript.Run(ctx, l.redis, []string{"datajud-bridge:rate:" + client}, now, window, limit, member).Int()
	if err != nil {
		return false, err
	}

	return res == 1, nil
}
