package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ecoride/ecoride/pkg/httpclient"
	"github.com/ecoride/ecoride/pkg/resilience"
	"github.com/ecoride/ecoride/pkg/tracing"
)

// Config wires the gateway to one backend deployment. Retry and Breaker
// are tuned from the resilience configuration; nil picks the defaults.
type Config struct {
	BaseURL      string
	WebSocketURL string
	APIKey       string
	Timeout      time.Duration
	Retry        *resilience.RetryConfig
	Breaker      *resilience.Settings
}

// TokenSource supplies the current access token for authenticated calls.
// It is consulted per request so a refreshed session takes effect
// without rebuilding the gateway.
type TokenSource func() string

// Gateway implements the backend collaborator interfaces the domain
// services depend on (driver lookup, ride persistence, auth, history,
// subscriptions, profile) over HTTP plus a websocket status feed.
//
// Reads go through a circuit breaker and the client's retry policy.
// Writes are sent exactly once; a failed booking or status update is
// surfaced to the caller instead of being replayed.
type Gateway struct {
	client *httpclient.Client
	reads  *resilience.CircuitBreaker
	token  TokenSource
	wsURL  string
	apiKey string
}

// Option configures optional gateway behavior.
type Option func(*Gateway)

// WithTokenSource attaches the session token provider.
func WithTokenSource(source TokenSource) Option {
	return func(g *Gateway) {
		g.token = source
	}
}

// WithReadBreaker replaces the default read-path circuit breaker.
func WithReadBreaker(breaker *resilience.CircuitBreaker) Option {
	return func(g *Gateway) {
		g.reads = breaker
	}
}

// New builds a gateway against the given backend.
func New(cfg Config, opts ...Option) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var clientOpts []httpclient.Option
	if cfg.Retry != nil {
		retry := *cfg.Retry
		if retry.RetryableChecker == nil {
			retry.RetryableChecker = httpRetryable
		}
		clientOpts = append(clientOpts, httpclient.WithRetry(retry))
	} else {
		clientOpts = append(clientOpts, httpclient.WithDefaultRetry())
	}
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, httpclient.WithAPIKey(cfg.APIKey))
	}

	breakerSettings := resilience.Settings{
		Name:             "backend_reads",
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
	if cfg.Breaker != nil {
		breakerSettings = *cfg.Breaker
		if breakerSettings.Name == "" {
			breakerSettings.Name = "backend_reads"
		}
	}

	g := &Gateway{
		wsURL:  websocketBase(cfg),
		apiKey: cfg.APIKey,
		client: httpclient.NewClient(cfg.BaseURL, timeout, clientOpts...),
		reads:  resilience.NewCircuitBreaker(breakerSettings, nil),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// websocketBase prefers the dedicated websocket endpoint and falls back
// to the HTTP base URL (feedURL rewrites the scheme).
func websocketBase(cfg Config) string {
	if cfg.WebSocketURL != "" {
		return cfg.WebSocketURL
	}
	return cfg.BaseURL
}

func httpRetryable(err error) bool {
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		return resilience.IsRetryableHTTPStatus(httpErr.StatusCode)
	}
	return true
}

func (g *Gateway) headers() map[string]string {
	if g.token == nil {
		return nil
	}
	token := g.token()
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// getJSON performs a breaker-guarded, retryable GET and decodes the body.
func (g *Gateway) getJSON(ctx context.Context, path, operation string, out interface{}) error {
	var payload []byte
	err := tracing.TraceBackendCall(ctx, "gateway", "backend", operation, func(ctx context.Context) error {
		result, err := g.reads.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return g.client.Get(ctx, path, g.headers())
		})
		if err != nil {
			return err
		}
		payload = result.([]byte)
		return nil
	})
	if err != nil {
		return mapError(err, operation)
	}
	return decode(payload, operation, out)
}

// postJSON performs a single-shot POST and decodes the body when out is non-nil.
func (g *Gateway) postJSON(ctx context.Context, path, operation string, body, out interface{}) error {
	var payload []byte
	err := tracing.TraceBackendCall(ctx, "gateway", "backend", operation, func(ctx context.Context) error {
		respBody, err := g.client.Post(ctx, path, body, g.headers())
		if err != nil {
			return err
		}
		payload = respBody
		return nil
	})
	if err != nil {
		return mapError(err, operation)
	}
	if out == nil {
		return nil
	}
	return decode(payload, operation, out)
}

// patchJSON performs a single-shot PATCH and decodes the body when out is non-nil.
func (g *Gateway) patchJSON(ctx context.Context, path, operation string, body, out interface{}) error {
	var payload []byte
	err := tracing.TraceBackendCall(ctx, "gateway", "backend", operation, func(ctx context.Context) error {
		respBody, err := g.client.Patch(ctx, path, body, g.headers())
		if err != nil {
			return err
		}
		payload = respBody
		return nil
	})
	if err != nil {
		return mapError(err, operation)
	}
	if out == nil {
		return nil
	}
	return decode(payload, operation, out)
}

func decode(body []byte, operation string, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", operation, err)
	}
	return nil
}
