// Package notion is a small client for the Notion REST API, covering what is
// needed to mirror transcriptions into a database.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Notion API endpoint.
	DefaultBaseURL = "https://api.notion.com/v1"
	// APIVersion is the pinned Notion-Version header value.
	APIVersion = "2022-06-28"

	defaultTimeout  = 30 * time.Second
	defaultMaxTries = 4
	// Notion allows an average of three requests per second per integration.
	defaultRate  = rate.Limit(3)
	defaultBurst = 3
)

// Sentinel errors matched by *HTTPError.
var (
	ErrUnauthorized = errors.New("notion: unauthorized")
	ErrNotFound     = errors.New("notion: not found")
)

// HTTPError is a non-2xx response from Notion.
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// Is maps auth and lookup failures onto the package sentinels.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

func (e *HTTPError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func newHTTPError(statusCode int, url string, body []byte) *HTTPError {
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = string(body)
	}
	return &HTTPError{StatusCode: statusCode, URL: url, Message: msg}
}

// Client talks to one Notion database.
type Client struct {
	baseURL    string
	apiKey     string
	databaseID string
	client     *http.Client
	limiter    *rate.Limiter
	maxTries   uint
	newBackOff func() backoff.BackOff
	logger     *slog.Logger

	mu            sync.RWMutex
	titleProperty string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRateLimit overrides the client-side request rate.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithRetry sets how many attempts a request gets and the backoff between them.
func WithRetry(maxTries uint, newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		c.maxTries = maxTries
		if newBackOff != nil {
			c.newBackOff = newBackOff
		}
	}
}

// New creates a client for the database identified by databaseID.
func New(apiKey, databaseID string, opts ...Option) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		apiKey:        apiKey,
		databaseID:    databaseID,
		client:        &http.Client{Timeout: defaultTimeout},
		limiter:       rate.NewLimiter(defaultRate, defaultBurst),
		maxTries:      defaultMaxTries,
		newBackOff:    func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:        slog.Default(),
		titleProperty: "Name",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DatabaseID returns the target database.
func (c *Client) DatabaseID() string {
	return c.databaseID
}

// TitleProperty returns the name of the database's title property.
func (c *Client) TitleProperty() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.titleProperty
}

func (c *Client) setTitleProperty(name string) {
	c.mu.Lock()
	c.titleProperty = name
	c.mu.Unlock()
}

// do sends one API request and returns the response body. Rate limit and
// server errors are retried with backoff; other failures are returned as is.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	op := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Notion-Version", APIVersion)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("notion request failed: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read notion response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			httpErr := newHTTPError(resp.StatusCode, req.URL.String(), b)
			if httpErr.retryable() {
				c.logger.Debug("Retrying Notion request", "method", method, "path", path, "status", resp.StatusCode)
				return nil, httpErr
			}
			return nil, backoff.Permanent(httpErr)
		}
		return b, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
}
