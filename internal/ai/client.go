// Package ai bridges the chat to the Gemini generative-language API:
// translation with bounded retry, streamed contact replies, and the
// bidirectional live-audio session used by calls.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is the public Gemini REST endpoint.
	DefaultEndpoint = "https://generativelanguage.googleapis.com"
	// DefaultModel serves translation and chat replies.
	DefaultModel = "gemini-3-flash-preview"

	maxResponseSize = 4 << 20
)

// Observer receives request outcomes. The metrics package implements it.
type Observer interface {
	ObserveRequest(op, outcome string)
	ObserveRetry(op string)
	ObserveFallback()
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, string) {}
func (nopObserver) ObserveRetry(string)           {}
func (nopObserver) ObserveFallback()              {}

// Config selects the API endpoint and model.
type Config struct {
	APIKey   string
	Endpoint string
	Model    string
}

// Client talks to the Gemini REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      RetryConfig
	limiter    *rate.Limiter
	sleep      Sleeper
	jitter     func(time.Duration) time.Duration
	observer   Observer
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithRetryConfig sets the translate retry policy.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(cl *Client) {
		cl.retry = cfg
	}
}

// WithLimiter throttles outgoing requests.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(cl *Client) {
		cl.limiter = l
	}
}

// WithSleeper replaces the backoff wait, mainly for tests.
func WithSleeper(s Sleeper) ClientOption {
	return func(cl *Client) {
		cl.sleep = s
	}
}

// WithJitter replaces the backoff jitter source. f receives the base delay
// and must return a value in [0, base).
func WithJitter(f func(time.Duration) time.Duration) ClientOption {
	return func(cl *Client) {
		cl.jitter = f
	}
}

// WithObserver reports request outcomes to o.
func WithObserver(o Observer) ClientOption {
	return func(cl *Client) {
		cl.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient creates a client. Empty config fields take the defaults.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retry:      DefaultRetryConfig(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		sleep:      sleepContext,
		jitter:     uniformJitter,
		observer:   nopObserver{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("ai")
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	return c
}

func (c *Client) modelURL(method string, query url.Values) string {
	u := fmt.Sprintf("%s/v1beta/models/%s:%s", c.cfg.Endpoint, url.PathEscape(c.cfg.Model), method)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// post sends body to the model method and returns the open response. The
// caller closes the body. Non-200 responses are classified and closed here.
func (c *Client) post(ctx context.Context, method string, query url.Values, body any) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, NewFatalError(fmt.Errorf("rate limiter: %w", err))
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL(method, query), bytes.NewReader(payload))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are transient.
		return nil, NewTransientError(fmt.Errorf("request failed: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classifyHTTPError(resp.StatusCode, b)
	}
	return resp, nil
}

// generate performs one non-streaming generateContent call.
func (c *Client) generate(ctx context.Context, req generateRequest) (string, error) {
	resp, err := c.post(ctx, "generateContent", nil, req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", NewTransientError(fmt.Errorf("read response: %w", err))
	}
	var out generateResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return "", NewFatalError(fmt.Errorf("decode response: %w", err))
	}
	if out.Error != nil {
		return "", classifyHTTPError(out.Error.Code, []byte(out.Error.Message))
	}
	return out.text(), nil
}
