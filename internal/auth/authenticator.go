package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/xscopehub/datajud-bridge/internal/config"
)

// ErrUnauthorized wraps every verification failure.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator performs JWT authentication backed by a JWK set. When
// disabled every request is accepted anonymously.
type Authenticator struct {
	enabled bool
	cfg     config.AuthConfig

	mu        sync.RWMutex
	set       jwk.Set
	fetchedAt time.Time
	client    *http.Client
}

// New creates an authenticator using the provided configuration. The key
// set is fetched once up front so misconfiguration fails at startup.
func New(ctx context.Context, cfg config.AuthConfig) (*Authenticator, error) {
	a := &Authenticator{enabled: cfg.Enabled, cfg: cfg}
	if !cfg.Enabled {
		return a, nil
	}
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("jwks_url required when auth enabled")
	}

	a.client = &http.Client{Timeout: 10 * time.Second}
	if err := a.refresh(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Enabled returns whether authentication is active.
func (a *Authenticator) Enabled() bool {
	return a != nil && a.enabled
}

// Verify validates the bearer token of r and returns its subject.
func (a *Authenticator) Verify(r *http.Request) (string, error) {
	if !a.Enabled() {
		return "", nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("%w: authorization header required", ErrUnauthorized)
	}
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", fmt.Errorf("%w: authorization header must be bearer token", ErrUnauthorized)
	}
	tokenString := strings.TrimSpace(header[7:])
	if tokenString == "" {
		return "", fmt.Errorf("%w: empty bearer token", ErrUnauthorized)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	set, err := a.getKeySet(ctx)
	if err != nil {
		return "", err
	}

	options := []jwt.ParseOption{jwt.WithKeySet(set), jwt.WithValidate(true)}
	for _, aud := range a.cfg.Audience {
		if aud != "" {
			options = append(options, jwt.WithAudience(aud))
		}
	}
	if a.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(a.cfg.Issuer))
	}

	token, err := jwt.ParseString(tokenString, options...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return token.Subject(), nil
}

func (a *Authenticator) getKeySet(ctx context.Context) (jwk.Set, error) {
	ttl := a.cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	a.mu.RLock()
	set := a.set
	fetched := a.fetchedAt
	a.mu.RUnlock()

	if set != nil && time.Since(fetched) < ttl {
		return set, nil
	}

	if err := a.refresh(ctx); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.set, nil
}

func (a *Authenticator) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	set, err := jwk.Fetch(ctx, a.cfg.JWKSURL, jwk.WithHTTPClient(a.client))
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.set = set
	a.fetchedAt = time.Now()
	return nil
}
