package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/edgard/bymbot/internal/config"
	"github.com/edgard/bymbot/internal/llm"
)

// Client is an OpenAI-compatible llm.Model.
type Client struct {
	openAIClient  *openai.Client
	model         string
	maxAttempts   int
	backoff       time.Duration
	maxToolRounds int
	log           *slog.Logger
}

// New creates a client for cfg. An empty BaseURL keeps the official endpoint.
func New(cfg *config.OpenAIConfig, maxToolRounds int, log *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}

	openAICfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openAICfg.BaseURL = cfg.BaseURL
	}
	openAICfg.HTTPClient = &http.Client{Timeout: httpClientTimeout}

	backoff := initialBackoffDuration
	if cfg.RetryDelaySeconds > 0 {
		backoff = time.Duration(cfg.RetryDelaySeconds) * time.Second
	}

	return &Client{
		openAIClient:  openai.NewClientWithConfig(openAICfg),
		model:         cfg.Model,
		maxAttempts:   max(cfg.MaxRetries+1, minRetryAttempts),
		backoff:       backoff,
		maxToolRounds: maxToolRounds,
		log:           log.With("component", "openai_client"),
	}, nil
}

// Generate runs one completion, executing requested tool calls and feeding
// their results back until the model replies with text.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 4)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, userMessage(req))
	tools := toolDefinitions(req.Tools)

	out := &llm.Response{}
	for round := 0; ; round++ {
		chatReq := openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxOutputTokens,
		}
		if round < c.maxToolRounds {
			chatReq.Tools = tools
		}

		resp, err := retryWithBackoff(ctx, c.maxAttempts, c.backoff, func() (openai.ChatCompletionResponse, error) {
			return c.openAIClient.CreateChatCompletion(ctx, chatReq)
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, ErrNoChoices
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 || round >= c.maxToolRounds {
			out.Text = strings.TrimSpace(msg.Content)
			return out, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			c.log.DebugContext(ctx, "Running tool", "tool", call.Function.Name, "round", round+1)
			result := llm.RunTool(ctx, req.Tools, call.Function.Name, json.RawMessage(call.Function.Arguments))
			out.ToolCalls++
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
	}
}

func userMessage(req *llm.Request) openai.ChatCompletionMessage {
	if req.Image == nil {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Text}
	}
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Text},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: req.Image.DataURL()}},
		},
	}
}

func toolDefinitions(tools []llm.Tool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	defs := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// isPermanentAPIError reports errors that retrying cannot fix.
func isPermanentAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return false
		}
		if apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 {
			return true
		}
	}
	msg := err.Error()
	for _, errType := range invalidRequestErrors {
		if strings.Contains(msg, errType) {
			return true
		}
	}
	return false
}

// retryWithBackoff runs op up to attempts times, doubling the delay after each
// transient failure.
func retryWithBackoff[T any](ctx context.Context, attempts int, backoff time.Duration, op func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context error: %w", err)
		}

		result, err := op()
		if err == nil {
			return result, nil
		}
		if isPermanentAPIError(err) {
			return zero, fmt.Errorf("permanent API error: %w", err)
		}
		lastErr = err

		if attempt+1 < attempts {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("context error: %w", ctx.Err())
			case <-timer.C:
				backoff *= 2
			}
		}
	}
	return zero, fmt.Errorf("all %d API attempts failed: %w", attempts, lastErr)
}
