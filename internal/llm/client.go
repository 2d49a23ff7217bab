// internal/llm/client.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	commonhttp "ethics-advisor/internal/common/http"
	"ethics-advisor/internal/common/logger"
)

var (
	ErrLLMTimeout      = errors.New("LLM_TIMEOUT")
	ErrLLMUnavailable  = errors.New("LLM_UNAVAILABLE")
	ErrEmptyCompletion = errors.New("EMPTY_COMPLETION")
)

// Client is the text-generation backend used by the planner and assessor.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithOptions(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// HTTPClient talks to an OpenAI-style chat-completions endpoint.
type HTTPClient struct {
	config *Config
	client *commonhttp.Client
	logger logger.Logger
}

func NewHTTPClient(config *Config, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		config: config,
		// No transport-level timeout; each call carries its own context deadline.
		client: commonhttp.NewClient(0),
		logger: log.With(map[string]interface{}{
			"component": "llm-client",
		}),
	}
}

// Complete runs a single-shot completion with the configured defaults.
func (c *HTTPClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CompleteWithOptions(ctx, CompletionRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// CompleteWithOptions runs one generation call, retrying transient failures
// with exponential backoff until the context deadline wins.
func (c *HTTPClient) CompleteWithOptions(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", ErrEmptyCompletion)
	}

	model := req.Model
	if model == "" {
		model = c.config.Model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.config.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	headers := map[string]string{}
	if c.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.config.APIKey
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrLLMTimeout
			}
		}

		resp, lastErr = c.client.PostJSON(ctx, c.config.BaseURL+"/v1/chat/completions", headers, body)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}

		if ctx.Err() != nil {
			return nil, ErrLLMTimeout
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrLLMTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, lastErr)
	}

	if resp == nil {
		return nil, fmt.Errorf("%w: no successful response after retries", ErrLLMUnavailable)
	}
	defer resp.Body.Close()

	var apiResponse chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrLLMUnavailable, err)
	}

	if len(apiResponse.Choices) == 0 || strings.TrimSpace(apiResponse.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyCompletion
	}

	c.logger.Debug("completion finished", map[string]interface{}{
		"model":         apiResponse.Model,
		"contentLength": len(apiResponse.Choices[0].Message.Content),
	})

	return &CompletionResponse{
		Content: apiResponse.Choices[0].Message.Content,
		Model:   apiResponse.Model,
	}, nil
}

// PlannerModel exposes the configured lightweight model name for planning calls.
func (c *HTTPClient) PlannerModel() string {
	if c.config.PlannerModel != "" {
		return c.config.PlannerModel
	}
	return c.config.Model
}
