// Package llm is the outbound client for the chat-completions service.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Long-form generation can hold a connection open for minutes.
const defaultCompletionTimeout = 180 * time.Second

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 16384
)

// Completer is the outbound text-generation port.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ClientConfig parameterizes the completion client.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client calls an OpenRouter-compatible chat-completions endpoint.
type Client struct {
	client      *resty.Client
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

var _ Completer = (*Client)(nil)

func NewClient(cfg ClientConfig) (*Client, error) {
	client := resty.New()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCompletionTimeout
	}
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(0)

	return NewClientWithResty(cfg, client)
}

func NewClientWithResty(cfg ClientConfig, client *resty.Client) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("completion base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid completion base url: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("completion api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("completion model is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultCompletionTimeout)
	}
	client.SetRetryCount(0)

	return &Client{
		client:      client,
		endpoint:    strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete sends one prompt and returns the raw assistant message content.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("client is not initialized")
	}

	reqBody := completionRequest{
		Model:       c.model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var parsed completionResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(reqBody).
		SetResult(&parsed).
		Post(c.endpoint)
	if err != nil {
		return "", &Error{
			Message:   "completion request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return "", &Error{
			Message:   "completion service returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode == http.StatusTooManyRequests {
		return "", &Error{
			StatusCode:  statusCode,
			Message:     "completion service rate limited",
			RateLimited: true,
			Transient:   true,
		}
	}
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return "", &Error{
			StatusCode: statusCode,
			Message:    statusErrorMessage(statusCode, response.String()),
			Transient:  statusCode >= http.StatusInternalServerError && statusCode <= 599,
		}
	}

	if len(parsed.Choices) == 0 {
		return "", &Error{
			StatusCode: statusCode,
			Message:    "completion response has no choices",
			Transient:  true,
		}
	}

	return parsed.Choices[0].Message.Content, nil
}

func statusErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("completion service returned status %d", statusCode)
	body = strings.TrimSpace(body)
	if body == "" {
		return base
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("%s: %s", base, body)
}
