// Package notion is a small REST client for the parts of the Notion API the
// exporter reads: database queries, pages and block children.
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
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/notionhugo/internal/models"
)

const (
	DefaultBaseURL = "https://api.notion.com"
	DefaultVersion = "2022-06-28"
	// DefaultRate is the documented average request budget per integration.
	DefaultRate = 3.0

	pageSize        = 100
	maxResponseSize = 16 << 20
)

// APIError is a non-success response of the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion: %s (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("notion: HTTP %d: %s", e.Status, e.Message)
}

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Doer sends HTTP requests.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the Notion REST API.
type Client struct {
	token   string
	baseURL string
	version string
	http    Doer
	limiter *rate.Limiter
	// attempts is the number of tries per request; 1 means no retries.
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithVersion overrides the Notion-Version header.
func WithVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.version = v
		}
	}
}

// WithHTTPClient sets the transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithRate limits requests per second. Zero or less disables limiting.
func WithRate(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRetries lets a request that failed with 429 or 5xx be repeated up to n
// more times. Requests are attempted once by default.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n < 0 {
			n = 0
		}
		c.attempts = n + 1
	}
}

// WithBackoff sets the base delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client authenticating with token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		version: DefaultVersion,
		http:    &http.Client{Timeout: 60 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(DefaultRate), 1),
		attempts: 1,
		backoff:  500 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListChildren returns one page of the children of a block or page.
func (c *Client) ListChildren(ctx context.Context, parentID, cursor string) (models.BlockPage, error) {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(pageSize))
	if cursor != "" {
		q.Set("start_cursor", cursor)
	}
	var resp blockList
	path := "/v1/blocks/" + url.PathEscape(parentID) + "/children?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return models.BlockPage{}, fmt.Errorf("notion: children of %s: %w", parentID, err)
	}
	page := models.BlockPage{HasMore: resp.HasMore}
	if resp.NextCursor != nil {
		page.NextCursor = *resp.NextCursor
	}
	for _, b := range resp.Results {
		page.Results = append(page.Results, b.model(parentID))
	}
	return page, nil
}

// QueryDatabase returns every page of databaseID whose Status equals status.
// An empty status returns all pages.
func (c *Client) QueryDatabase(ctx context.Context, databaseID, status string) ([]models.Document, error) {
	req := queryRequest{PageSize: pageSize}
	if status != "" {
		req.Filter = &statusFilter{Property: "Status", Status: &equalsFilter{Equals: status}}
	}

	var docs []models.Document
	for {
		var resp pageList
		if err := c.do(ctx, http.MethodPost, "/v1/databases/"+url.PathEscape(databaseID)+"/query", req, &resp); err != nil {
			return nil, fmt.Errorf("notion: query %s: %w", databaseID, err)
		}
		for _, p := range resp.Results {
			docs = append(docs, p.model())
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return docs, nil
		}
		req.StartCursor = *resp.NextCursor
	}
}

// GetPage returns one page with its properties.
func (c *Client) GetPage(ctx context.Context, id string) (models.Document, error) {
	var p page
	if err := c.do(ctx, http.MethodGet, "/v1/pages/"+url.PathEscape(id), nil, &p); err != nil {
		return models.Document{}, fmt.Errorf("notion: page %s: %w", id, err)
	}
	return p.model(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<(attempt-1))
			var apiErr *retryAfterError
			if errors.As(lastErr, &apiErr) && apiErr.after > delay {
				delay = apiErr.after
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.once(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() {
			return err
		}
		c.logger.Warn("notion request retry",
			slog.String("path", path),
			slog.Int("status", apiErr.Status),
			slog.Int("attempt", attempt+1))
	}
	return lastErr
}

// retryAfterError carries the server's requested delay next to the API error.
type retryAfterError struct {
	*APIError
	after time.Duration
}

func (e *retryAfterError) Unwrap() error { return e.APIError }

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(data) > maxResponseSize {
		return fmt.Errorf("response exceeds %d bytes", maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var e errorBody
		if json.Unmarshal(data, &e) == nil && e.Message != "" {
			apiErr.Code, apiErr.Message = e.Code, e.Message
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return &retryAfterError{APIError: apiErr, after: time.Duration(secs) * time.Second}
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
