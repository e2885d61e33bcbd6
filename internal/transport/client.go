// Package transport is the HTTP edge of the sync layer: it fetches raw
// per-channel thread payloads for the adapters to normalize, and carries
// bulk actions and outbound messages to the backend.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/uniboxhq/unibox/internal/inbox"
	"github.com/uniboxhq/unibox/internal/logging"
)

// TokenProvider returns the bearer credential for API calls.
type TokenProvider func(ctx context.Context) (string, error)

// ClientOptions configures a Client. Zero values fall back to defaults.
type ClientOptions struct {
	BaseURL       string
	TokenProvider TokenProvider
	HTTPClient    *http.Client
	UserAgent     string
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
}

// Client talks to the unified inbox backend. Fetches retry on 429 and
// 5xx with capped exponential backoff; writes are dispatched exactly
// once per call so the coordinator's settle-or-rollback contract holds.
type Client struct {
	baseURL       string
	tokenProvider TokenProvider
	httpClient    *http.Client
	userAgent     string
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
	logger        zerolog.Logger
}

// NewClient creates a backend client.
func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &Client{
		baseURL:       baseURL,
		tokenProvider: opts.TokenProvider,
		httpClient:    httpClient,
		userAgent:     strings.TrimSpace(opts.UserAgent),
		maxRetries:    maxRetries,
		baseDelay:     baseDelay,
		maxDelay:      maxDelay,
		logger:        logging.Component("transport"),
	}
}

var _ inbox.BulkSender = (*Client)(nil)

// FetchSMS returns the raw SMS thread records.
func (c *Client) FetchSMS(ctx context.Context) ([]json.RawMessage, error) {
	return c.fetchThreads(ctx, "/v1/channels/sms/threads")
}

// FetchSocial returns the raw Facebook and Instagram thread records.
func (c *Client) FetchSocial(ctx context.Context) ([]json.RawMessage, error) {
	return c.fetchThreads(ctx, "/v1/channels/social/threads")
}

// FetchEmail returns the raw email thread records.
func (c *Client) FetchEmail(ctx context.Context) ([]json.RawMessage, error) {
	return c.fetchThreads(ctx, "/v1/channels/email/threads")
}

// SendBulkAction dispatches one bulk action batch. The backend treats a
// batch as all-or-nothing; a non-success response fails the whole batch.
func (c *Client) SendBulkAction(ctx context.Context, action inbox.Action, threadIDs []string) error {
	payload := struct {
		Action    string   `json:"action"`
		ThreadIDs []string `json:"thread_ids"`
	}{Action: string(action), ThreadIDs: threadIDs}

	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}
	if err := c.post(ctx, "/v1/inbox/bulk", payload, &result); err != nil {
		return err
	}
	if !result.Success {
		if result.Message != "" {
			return fmt.Errorf("bulk action rejected: %s", result.Message)
		}
		return fmt.Errorf("bulk action rejected")
	}
	return nil
}

// SendMessage posts one outbound message to a thread.
func (c *Client) SendMessage(ctx context.Context, threadID, content string) error {
	if threadID == "" {
		return fmt.Errorf("thread id is required")
	}
	payload := struct {
		Content string `json:"content"`
	}{Content: content}

	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}
	path := "/v1/threads/" + threadID + "/messages"
	if err := c.post(ctx, path, payload, &result); err != nil {
		return err
	}
	if !result.Success {
		if result.Message != "" {
			return fmt.Errorf("send rejected: %s", result.Message)
		}
		return fmt.Errorf("send rejected")
	}
	return nil
}

// fetchThreads GETs one channel endpoint, retrying transient failures.
// Records stay opaque here: the channel adapters own field resolution.
func (c *Client) fetchThreads(ctx context.Context, path string) ([]json.RawMessage, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + path

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, fmt.Errorf("fetch %s: %w", path, err)
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			var parsed struct {
				Threads []json.RawMessage `json:"threads"`
			}
			if err := json.Unmarshal(body, &parsed); err != nil {
				return nil, fmt.Errorf("decode %s response: %w", path, err)
			}
			return parsed.Threads, nil
		}

		if retriable(resp.StatusCode) && attempt < c.maxRetries {
			c.logger.Warn().
				Int("status", resp.StatusCode).
				Int("attempt", attempt+1).
				Str("path", path).
				Msg("fetch retrying")
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return nil, waitErr
			}
			continue
		}
		return nil, httpError(path, resp.StatusCode, body)
	}
}

// post sends one JSON request without retry. Bulk and send writes are
// not idempotent; retrying could double-apply an action server-side.
func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	respBody, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpError(path, resp.StatusCode, respBody)
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokenProvider == nil {
		return "", nil
	}
	token, err := c.tokenProvider(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve credential: %w", err)
	}
	return strings.TrimSpace(token), nil
}

func (c *Client) setHeaders(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func retriable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

func httpError(path string, status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			message = parsed.Message
		} else if parsed.Error != "" {
			message = parsed.Error
		}
	}
	if message == "" {
		return fmt.Errorf("request %s failed: status=%d", path, status)
	}
	return fmt.Errorf("request %s failed: status=%d message=%s", path, status, message)
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
