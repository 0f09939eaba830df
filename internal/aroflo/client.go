package aroflo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the AroFlo API endpoint. Every zone is served from it.
	DefaultBaseURL = "https://api.aroflo.com/"

	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultCallsPerMinute is the documented API limit.
	DefaultCallsPerMinute = 120

	// DefaultAttempts is the attempt budget for one call.
	DefaultAttempts = 3

	acceptJSON  = "text/json"
	contentForm = "application/x-www-form-urlencoded"
)

// Client is an AroFlo API client. Calls through one Client are sequential
// and share a single rate-limit watermark; separate Clients do not
// coordinate with each other.
type Client struct {
	baseURL     string
	signer      Signer
	httpClient  *http.Client
	logger      zerolog.Logger
	limiter     *rate.Limiter
	backoffBase time.Duration
	now         func() time.Time
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCallsPerMinute sets the minimum spacing between requests to
// 60s/callsPerMinute.
func WithCallsPerMinute(callsPerMinute int) Option {
	return func(c *Client) {
		if callsPerMinute > 0 {
			c.limiter = newWatermark(time.Minute / time.Duration(callsPerMinute))
		}
	}
}

// WithBackoffBase sets the first retry delay; later delays double.
func WithBackoffBase(base time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.backoffBase = base
		}
	}
}

// WithNow sets the clock used for request timestamps.
func WithNow(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a client for the given credentials. Credentials are checked
// on every call, not here, so a client can be built before configuration
// is complete.
func New(creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		signer:  Signer{Credentials: creds},
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:      zerolog.Nop(),
		limiter:     newWatermark(time.Minute / DefaultCallsPerMinute),
		backoffBase: time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newWatermark allows one request per interval with no burst, which is an
// "earliest next request time" that advances on every dispatch.
func newWatermark(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Request performs a signed GET against zone and returns the unwrapped
// payload. maxAttempts < 1 means DefaultAttempts.
func (c *Client) Request(ctx context.Context, zone string, params Params, maxAttempts int) (Payload, error) {
	return c.do(ctx, http.MethodGet, zone, VarString(zone, params), maxAttempts)
}

// post sends a form-encoded postxml body for zone.
func (c *Client) post(ctx context.Context, zone, postXML string, maxAttempts int) (Payload, error) {
	varString := "zone=" + quote(zone) + "&postxml=" + quote(postXML)
	return c.do(ctx, http.MethodPost, zone, varString, maxAttempts)
}

func (c *Client) do(ctx context.Context, method, zone, varString string, maxAttempts int) (Payload, error) {
	if err := c.signer.Credentials.Validate(); err != nil {
		return nil, err
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultAttempts
	}

	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewExponential(c.backoffBase))
	var (
		payload  Payload
		attempts int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		attempts++
		body, err := c.send(ctx, method, varString)
		if err != nil {
			var status *StatusError
			if errors.As(err, &status) && !status.Temporary() {
				return err
			}
			c.logger.Warn().Err(err).Str("zone", zone).Int("attempt", attempts).Msg("AroFlo request failed")
			return retry.RetryableError(err)
		}
		p, err := unwrapBody(zone, body)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return err
			}
			c.logger.Warn().Err(err).Str("zone", zone).Int("attempt", attempts).Msg("AroFlo response not decodable")
			return retry.RetryableError(fmt.Errorf("decode response: %w", err))
		}
		payload = p
		return nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, &TransportError{Zone: zone, Attempts: attempts, Err: err}
	}
	return payload, nil
}

// send performs one signed attempt with a fresh timestamp.
func (c *Client) send(ctx context.Context, method, varString string) ([]byte, error) {
	var (
		req *http.Request
		err error
	)
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL, strings.NewReader(varString))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+"?"+varString, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.signer.Sign(method, varString, acceptJSON, c.now()) {
		req.Header.Set(k, v)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", contentForm)
	}

	c.logger.Debug().Str("method", method).Str("url", c.baseURL).Msg("AroFlo API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
