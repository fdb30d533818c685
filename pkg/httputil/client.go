package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/redis"
)

// Client is an HTTP client wrapper with retry logic and logging
// ⭐ SSOT: 모든 외부 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient   *http.Client
	logger       *logger.Logger
	retryConfig  RetryConfig
	rateLimiter  *redis.RateLimiter
	rateLimitCfg *redis.RateLimitConfig
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Enabled      bool
}

// New creates a new HTTP client
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
		retryConfig: RetryConfig{
			MaxRetries:   3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     10 * time.Second,
			Enabled:      true,
		},
	}
}

// WithRetry configures retry behavior
func (c *Client) WithRetry(maxRetries int, initialDelay time.Duration) *Client {
	c.retryConfig.MaxRetries = maxRetries
	c.retryConfig.InitialDelay = initialDelay
	c.retryConfig.Enabled = true
	return c
}

// DisableRetry disables automatic retry
func (c *Client) DisableRetry() *Client {
	c.retryConfig.Enabled = false
	return c
}

// WithRateLimiter sets a shared (Redis) rate limiter for this client
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) *Client {
	c.rateLimiter = limiter
	c.rateLimitCfg = &cfg
	return c
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	return c.Do(req)
}

// PostJSON performs a POST request with a JSON body and extra headers
func (c *Client) PostJSON(ctx context.Context, url string, data interface{}, header http.Header) (*http.Response, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	return c.Do(req)
}

// Do executes the request with rate limiting, retry and logging
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.rateLimiter != nil && c.rateLimitCfg != nil {
		if err := c.rateLimiter.Wait(req.Context(), *c.rateLimitCfg); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	start := time.Now()
	fields := map[string]interface{}{
		"method": req.Method,
		"host":   req.URL.Host,
		"path":   req.URL.Path,
	}
	c.logger.WithFields(fields).Debug("HTTP request started")

	var resp *http.Response
	var err error
	if c.retryConfig.Enabled {
		resp, err = c.doWithRetry(req)
	} else {
		resp, err = c.httpClient.Do(req)
	}

	fields["duration"] = time.Since(start).String()
	if err != nil {
		c.logger.WithFields(fields).WithError(err).Error("HTTP request failed")
		return nil, err
	}

	fields["status_code"] = resp.StatusCode
	c.logger.WithFields(fields).Debug("HTTP request completed")
	return resp, nil
}

// doWithRetry retries transport errors, 5xx and 429 with exponential backoff
func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	delay := c.retryConfig.InitialDelay
	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			// 재시도 시 본문을 다시 읽을 수 있어야 함
			if req, err = rewind(req); err != nil {
				return nil, err
			}
		}

		resp, err = c.httpClient.Do(req)
		if err == nil && !IsRetryableError(resp.StatusCode) {
			return resp, nil
		}
		if attempt == c.retryConfig.MaxRetries {
			break
		}

		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   delay.String(),
			"path":    req.URL.Path,
		}).Warn("Retrying HTTP request")

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.retryConfig.MaxDelay {
			delay = c.retryConfig.MaxDelay
		}
	}

	return resp, err
}

// rewind clones the request with a fresh body
func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.GetBody == nil {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

// IsRetryableError checks if a status code should be retried
func IsRetryableError(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
