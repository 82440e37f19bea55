package openailm

import (
	"context"
	"fmt"

	"orbit/pkg/llm"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// Client is a wrapper around the official OpenAI Go SDK
type Client struct {
	client   *openai.Client
	provider string
	model    string
	options  map[string]any
}

// NewClient creates a new OpenAI client. baseURL points the SDK at any
// Responses-compatible endpoint.
func NewClient(provider string, apiKey string, model string, baseURL string, options map[string]any) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)
	return &Client{
		client:   &client,
		provider: provider,
		model:    model,
		options:  options,
	}
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) IsTransientError(err error) bool {
	// Everything else (400 Bad Request, 401 Unauthorized, etc.) is non-transient
	return llm.ContainsAny(err,
		"context deadline exceeded", "connection refused", "timeout",
		"500 internal", "502 bad gateway", "503 service unavailable", "overloaded",
	)
}

func (c *Client) Generate(ctx context.Context, prompt, instruction string) (string, error) {
	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	}
	if instruction != "" {
		params.Instructions = openai.String(instruction)
	}

	var opts []option.RequestOption

	// Handle unified "thinking_effort" option
	if effortStr, ok := c.options["thinking_effort"].(string); ok && effortStr != "" && effortStr != "off" {
		var effort shared.ReasoningEffort
		switch effortStr {
		case "low":
			effort = shared.ReasoningEffortLow
		case "high":
			effort = shared.ReasoningEffortHigh
		default:
			effort = shared.ReasoningEffortMedium
		}
		params.Reasoning = shared.ReasoningParam{Effort: effort}
	}
	if t, ok := c.options["temperature"].(float64); ok {
		opts = append(opts, option.WithJSONSet("temperature", t))
	}
	if p, ok := c.options["top_p"].(float64); ok {
		opts = append(opts, option.WithJSONSet("top_p", p))
	}
	if maxTok, ok := c.options["max_tokens"].(float64); ok {
		opts = append(opts, option.WithJSONSet("max_output_tokens", int(maxTok)))
	}

	resp, err := c.client.Responses.New(ctx, params, opts...)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", c.provider, c.model, err)
	}

	llm.LogUsage(ctx, c.provider, c.model, llm.Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		StopReason:       string(resp.Status),
	})
	return resp.OutputText(), nil
}
