package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps how much of a response is read.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// snippetLength is how much of an error body is kept for diagnostics.
	snippetLength = 300
)

// ErrBodyTooLarge is returned when a response exceeds the configured maximum size
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError is returned for any non-2xx response
type StatusError struct {
	StatusCode int
	URL        string
	Snippet    string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Snippet)
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is a cookie-keeping HTTP client that paces its requests.
// Cookies set by one response (e.g. a warm-up page) are sent on later requests to the same host.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	userAgent   string
	maxBodySize int64
	logger      arbor.ILogger
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent sent with every request.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithMaxBodySize caps the response size.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithRequestInterval sets the minimum delay between requests. Zero disables pacing.
func WithRequestInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client with a fresh cookie jar
func New(opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: DefaultTimeout,
		},
		limiter:     rate.NewLimiter(rate.Inf, 1),
		maxBodySize: DefaultMaxBodySize,
		logger:      arbor.NewNoOpLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Get performs a GET request and reads the whole body.
// Non-2xx statuses are returned as *StatusError; the body is still drained.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, c.maxBodySize, rawURL)
	}

	c.logger.Debug().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Str("elapsed", time.Since(started).String()).
		Msg("HTTP request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        rawURL,
			Snippet:    Snippet(body, snippetLength),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// FetchPage retrieves an HTML page
func (c *Client) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	resp, err := c.Get(ctx, pageURL, header)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Snippet returns at most n bytes of body, cut on a rune boundary
func Snippet(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	cut := body[:n]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut)
}
