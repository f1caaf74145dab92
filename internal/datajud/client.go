package datajud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xscopehub/datajud-bridge/internal/config"
)

// Observer receives the outcome of every upstream call. Status is 0 when no
// HTTP response was received.
type Observer interface {
	ObserveUpstream(alias string, status int, elapsed time.Duration)
}

// Client talks to the DataJud search API.
type Client struct {
	baseURL      *url.URL
	defaultAlias string
	apiKey       string
	http         *http.Client
	observer     Observer
	logger       *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithObserver registers an upstream call observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a DataJud client from the upstream configuration.
func New(cfg config.UpstreamConfig, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("datajud base url required")
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 15 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout

	c := &Client{
		baseURL:      parsed,
		defaultAlias: cfg.DefaultAlias,
		apiKey:       cfg.APIKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DefaultAlias returns the partition used when a request names none.
func (c *Client) DefaultAlias() string {
	return c.defaultAlias
}

// ResolveAlias returns alias, or the default alias when alias is blank.
func (c *Client) ResolveAlias(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return c.defaultAlias
	}
	return alias
}

// SearchURL returns the _search endpoint for alias.
func (c *Client) SearchURL(alias string) string {
	u := *c.baseURL
	u.Path = path.Join("/", c.baseURL.Path, c.ResolveAlias(alias), "_search")
	return u.String()
}

// Search posts q to the alias index and returns the raw response. Statuses
// of 400 and above are returned as *StatusError carrying the body verbatim.
func (c *Client) Search(ctx context.Context, alias string, q Query) (Result, error) {
	alias = c.ResolveAlias(alias)
	if !ValidAlias(alias) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidAlias, alias)
	}

	payload, err := json.Marshal(q)
	if err != nil {
		return Result{}, fmt.Errorf("encode query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SearchURL(alias), bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	c.applyHeaders(httpReq)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe(alias, 0, start)
		c.logger.Warn("datajud request failed", "alias", alias, "error", err)
		return Result{}, &TransportError{Alias: alias, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.observe(alias, resp.StatusCode, start)
	if err != nil {
		return Result{}, &TransportError{Alias: alias, Err: err}
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("datajud error response", "alias", alias, "status", resp.StatusCode)
		return Result{}, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	if !gjson.ValidBytes(body) {
		c.logger.Warn("datajud malformed response", "alias", alias, "status", resp.StatusCode, "bytes", len(body))
		return Result{}, &DecodeError{Alias: alias, Status: resp.StatusCode}
	}

	return Result{Alias: alias, Raw: json.RawMessage(body)}, nil
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "APIKey "+c.apiKey)
	}
}

func (c *Client) observe(alias string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveUpstream(alias, status, time.Since(start))
	}
}
