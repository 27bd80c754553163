// Package gemini implements llm.Model on top of Google's Gemini API, including
// the function-calling loop that runs the engine's tools.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/bymbot/internal/config"
	"github.com/edgard/bymbot/internal/llm"
)

// Client is a Gemini-backed llm.Model.
type Client struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	modelName     string
	maxRetries    int
	retryDelay    time.Duration
	maxToolRounds int
}

// NewClient connects to the Gemini API.
func NewClient(ctx context.Context, cfg config.GeminiConfig, maxToolRounds int, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized", "model", cfg.ModelName)
	return &Client{
		genaiClient:   gi,
		log:           logger,
		modelName:     cfg.ModelName,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    time.Duration(cfg.RetryDelaySeconds) * time.Second,
		maxToolRounds: maxToolRounds,
	}, nil
}

// Generate sends the request and resolves function calls until the model
// answers with text or the tool round budget is spent.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	cfg := buildConfig(req)

	parts := []*genai.Part{genai.NewPartFromText(req.Text)}
	if req.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	out := &llm.Response{}
	for round := 0; ; round++ {
		if round >= c.maxToolRounds {
			cfg = withoutTools(cfg)
		}
		resp, err := c.generateContentWithRetries(ctx, contents, cfg)
		if err != nil {
			return nil, err
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 || round >= c.maxToolRounds {
			text, err := c.extractTextFromResponse(ctx, resp)
			if err != nil {
				return nil, err
			}
			out.Text = text
			return out, nil
		}

		contents = append(contents, resp.Candidates[0].Content)
		results := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			args, err := marshalArgs(call.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to encode arguments for %s: %w", call.Name, err)
			}
			c.log.DebugContext(ctx, "Running tool", "tool", call.Name, "round", round+1)
			result := llm.RunTool(ctx, req.Tools, call.Name, args)
			out.ToolCalls++
			results = append(results, genai.NewPartFromFunctionResponse(call.Name, map[string]any{"output": result}))
		}
		contents = append(contents, genai.NewContentFromParts(results, genai.RoleUser))
	}
}

func buildConfig(req *llm.Request) *genai.GenerateContentConfig {
	temperature := req.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
		//nolint:gosec // bounded by the caller
		MaxOutputTokens: int32(req.MaxOutputTokens),
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if decls := functionDeclarations(req.Tools); len(decls) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

// withoutTools returns a copy of cfg that offers no functions, so the final
// round has to answer in text.
func withoutTools(cfg *genai.GenerateContentConfig) *genai.GenerateContentConfig {
	if len(cfg.Tools) == 0 && cfg.ToolConfig == nil {
		return cfg
	}
	stripped := *cfg
	stripped.Tools = nil
	stripped.ToolConfig = nil
	return &stripped
}

func (c *Client) generateContentWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	for i := 0; ; i++ {
		resp, err := c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && retriable(apiErr.Code) && i < c.maxRetries {
			c.log.WarnContext(ctx, "Retrying Gemini API call", "attempt", i+1, "max_retries", c.maxRetries, "code", apiErr.Code, "delay", c.retryDelay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
			continue
		}
		return nil, fmt.Errorf("gemini API call failed after %d attempts: %w", i+1, err)
	}
}

func retriable(code int) bool {
	return code == 429 || code == 500 || code == 503
}

// extractTextFromResponse returns the reply text. A blocked prompt is an
// error; a candidate without text yields an empty reply.
func (c *Client) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return "", fmt.Errorf("gemini request blocked by safety filter: %s", reason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		c.log.WarnContext(ctx, "Gemini response has no content")
		return "", nil
	}
	return resp.Text(), nil
}
