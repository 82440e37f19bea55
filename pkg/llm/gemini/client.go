package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"orbit/pkg/llm"

	"google.golang.org/genai"
)

// Client Google Gemini API client
type Client struct {
	client     *genai.Client
	model      string
	useThought bool
	options    map[string]any
}

// NewClient creates a Gemini client with a single model and API key.
func NewClient(ctx context.Context, apiKey string, model string, useThought bool, options map[string]any) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{
		client:     client,
		model:      model,
		useThought: useThought,
		options:    options,
	}, nil
}

func (g *Client) Provider() string {
	return "gemini"
}

func (g *Client) Generate(ctx context.Context, prompt, instruction string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if instruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(instruction, genai.RoleUser)
	}
	if g.useThought {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	if t, ok := g.options["temperature"].(float64); ok {
		temp := float32(t)
		cfg.Temperature = &temp
	}
	if maxTok, ok := g.options["max_tokens"].(float64); ok {
		cfg.MaxOutputTokens = int32(maxTok)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", g.model, err)
	}

	var usage llm.Usage
	if u := resp.UsageMetadata; u != nil {
		usage.PromptTokens = int(u.PromptTokenCount)
		usage.CompletionTokens = int(u.CandidatesTokenCount)
	}

	var out strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.FinishReason != "" {
			usage.StopReason = string(candidate.FinishReason)
			if candidate.FinishReason == genai.FinishReasonMaxTokens {
				slog.WarnContext(ctx, "Response truncated due to length", "provider", "gemini", "model", g.model)
			}
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			// 思考內容不回傳給使用者
			if part.Text == "" || part.Thought {
				continue
			}
			out.WriteString(part.Text)
		}
		// 只取第一個候選
		break
	}

	llm.LogUsage(ctx, "gemini", g.model, usage)
	return out.String(), nil
}

// IsTransientError reports overload, rate limits and occasional server crashes.
func (g *Client) IsTransientError(err error) bool {
	return llm.ContainsAny(err,
		"503", "overloaded",
		"429", "resource exhausted",
		"500", "internal error",
	)
}
