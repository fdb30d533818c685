package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/httputil"
	"github.com/wonny/screener/pkg/logger"
)

// ErrUnavailable is returned while the circuit breaker is open
var ErrUnavailable = errors.New("completion service unavailable")

// APIError is a non-2xx response from the completion service
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("completion API error (status %d, %s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("completion API error (status %d): %s", e.StatusCode, e.Message)
}

// Client talks to an OpenAI-compatible chat completions endpoint
// ⭐ SSOT: 외부 LLM 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a new completion client
func NewClient(cfg config.LLMConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	perSec := cfg.RequestsPerSec
	if perSec <= 0 {
		perSec = 1
	}

	st := gobreaker.Settings{
		Name:     "llm",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// 4xx 는 요청 문제이므로 서비스 장애로 보지 않음
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
		breaker:    gobreaker.NewCircuitBreaker(st),
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

type chatRequest struct {
	Model    string              `json:"model"`
	Messages []contracts.Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message      contracts.Message `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete implements contracts.Completer
func (c *Client) Complete(ctx context.Context, messages []contracts.Message) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait failed: %w", err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, messages)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *Client) complete(ctx context.Context, messages []contracts.Message) (string, error) {
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.PostJSON(ctx, c.baseURL+"/chat/completions", chatRequest{
		Model:    c.model,
		Messages: messages,
	}, header)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
			apiErr.Message = er.Error.Message
			apiErr.Type = er.Error.Type
		}
		return "", apiErr
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("failed to decode completion: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	c.logger.WithFields(map[string]interface{}{
		"model":             c.model,
		"prompt_tokens":     cr.Usage.PromptTokens,
		"completion_tokens": cr.Usage.CompletionTokens,
	}).Debug("Completion received")

	return cr.Choices[0].Message.Content, nil
}
