// Package anthropic generates answers with Claude models, either through the
// Anthropic API or through AWS Bedrock.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"orbit/pkg/llm"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

const defaultMaxTokens = 4096

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	Model string
	// APIKey is ignored when UseAWSBedrock is set.
	APIKey    string
	BaseURL   string
	MaxTokens int64

	UseAWSBedrock bool
	AWSRegion     string
	AWSProfile    string
}

// Client wraps the Anthropic SDK client.
type Client struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
	provider  string
}

// NewClient creates a new Anthropic client.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic: model is required")
	}

	var opts []option.RequestOption
	provider := "anthropic"
	model := anthropic.Model(cfg.Model)

	if cfg.UseAWSBedrock {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
		provider = "bedrock"
		model = bedrockModel(model)
	} else {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic: api key is required")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		inner:     anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		provider:  provider,
	}, nil
}

// bedrockModel converts a plain model id to the cross-region inference
// profile form us.anthropic.{model}-v1:0.
func bedrockModel(model anthropic.Model) anthropic.Model {
	m := string(model)
	if strings.HasPrefix(m, "us.anthropic") || strings.HasPrefix(m, "arn:") {
		return model
	}
	return anthropic.Model("us.anthropic." + m + "-v1:0")
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) Generate(ctx context.Context, prompt, instruction string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if instruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: instruction}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", c.provider, c.model, err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(variant.Text)
		}
	}

	llm.LogUsage(ctx, c.provider, string(c.model), llm.Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		StopReason:       string(resp.StopReason),
	})
	return out.String(), nil
}

// IsTransientError reports rate limits, overload and upstream 5xx.
func (c *Client) IsTransientError(err error) bool {
	return llm.ContainsAny(err,
		"429", "rate_limit", "529", "overloaded",
		"500", "502", "503", "connection reset", "timeout",
	)
}
