package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/claimlink/internal/model"
)

// ErrNotConfigured is returned when the OCR service has no base URL
var ErrNotConfigured = errors.New("extractor base URL not configured")

// ErrUnreadable is returned when a document yields no usable record
var ErrUnreadable = errors.New("document unreadable")

// extractSleepFunc is the sleep function used between retries (injectable for tests)
var extractSleepFunc = sleepCtx

// Service endpoints, relative to the base URL
const (
	passportPath     = "/v1/passport"
	flightTicketPath = "/v1/flight-ticket"
	baggageTagPath   = "/v1/baggage-tag"
)

// Waiter blocks until a request to rawURL may proceed
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// StatusError is a non-2xx response from the OCR service
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Client calls the OCR extraction service
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	timeout    time.Duration
	maxRetries int
	limiter    Waiter
	tags       *TagParser
	logger     *slog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLimiter rate limits calls to the service
func WithLimiter(w Waiter) ClientOption {
	return func(c *Client) { c.limiter = w }
}

// WithTagParser sets the baggage tag airline patterns
func WithTagParser(p *TagParser) ClientOption {
	return func(c *Client) { c.tags = p }
}

// WithClientLogger sets the logger
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates an OCR service client
func NewClient(cfg model.ExtractorConfig, httpClient *http.Client, userAgent string, opts ...ClientOption) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		userAgent:  userAgent,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tags == nil {
		tags, err := LoadTagParser(cfg.AirlineConfigPath)
		if err != nil {
			return nil, err
		}
		c.tags = tags
	}
	return c, nil
}

// ExtractPassport scans a passport image
func (c *Client) ExtractPassport(ctx context.Context, doc Document) (*model.PassportRecord, error) {
	body, err := c.postWithRetry(ctx, passportPath, doc)
	if err != nil {
		return nil, err
	}
	return ParsePassportResponse(body)
}

// ExtractFlightTicket reads the regions of a flight ticket
func (c *Client) ExtractFlightTicket(ctx context.Context, doc Document) (*model.FlightTicketRecord, error) {
	body, err := c.postWithRetry(ctx, flightTicketPath, doc)
	if err != nil {
		return nil, err
	}
	return ParseTicketResponse(body)
}

// ExtractBaggageTag reads baggage tag text and barcode
func (c *Client) ExtractBaggageTag(ctx context.Context, doc Document) (*model.BaggageTagRecord, error) {
	body, err := c.postWithRetry(ctx, baggageTagPath, doc)
	if err != nil {
		return nil, err
	}
	var resp tagResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode baggage tag response: %w", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	rec, airline := c.tags.Parse(resp.Text, resp.Barcode)
	if rec == nil {
		return nil, fmt.Errorf("%w: no text, barcode or known airline", ErrUnreadable)
	}
	c.logger.Debug("baggage tag parsed", "document", doc.Name, "airline", airline)
	return rec, nil
}

// postWithRetry retries transient failures with exponential backoff
func (c *Client) postWithRetry(ctx context.Context, path string, doc Document) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		body, err := c.post(ctx, path, doc)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isRetryableExtractError(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < c.maxRetries {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			c.logger.Debug("retrying extraction", "path", path, "attempt", attempt+1, "backoff", backoff, "error", err)
			if err := extractSleepFunc(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, path string, doc Document) ([]byte, error) {
	url := c.baseURL + path
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, url); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(doc.Data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if doc.Name != "" {
		req.Header.Set("X-Document-Name", doc.Name)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// isRetryableExtractError returns true for transient failures
func isRetryableExtractError(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return isRetryableNetworkError(err.Error())
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
