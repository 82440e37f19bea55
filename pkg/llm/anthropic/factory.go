package anthropic

import (
	"context"
	"log/slog"

	"orbit/pkg/config"
	"orbit/pkg/llm"
)

// Factory handles creation of Anthropic clients. Setting the "bedrock"
// option routes every model of the group through AWS Bedrock using the
// default AWS credential chain.
type Factory struct{}

// Create implements llm.ProviderFactory.
func (f *Factory) Create(cfg llm.ProviderGroupConfig, _ *config.SystemConfig) ([]llm.Generator, error) {
	base := ClientConfig{
		BaseURL:       cfg.BaseURL,
		MaxTokens:     int64(cfg.IntOption("max_tokens", defaultMaxTokens)),
		UseAWSBedrock: cfg.BoolOption("bedrock"),
		AWSRegion:     cfg.StringOption("aws_region", ""),
		AWSProfile:    cfg.StringOption("aws_profile", ""),
	}

	keys := cfg.APIKeys
	if base.UseAWSBedrock || len(keys) == 0 {
		keys = []string{""}
	}

	var gens []llm.Generator
	for _, model := range cfg.Models {
		for _, key := range keys {
			cc := base
			cc.Model = model
			cc.APIKey = key
			client, err := NewClient(context.Background(), cc)
			if err != nil {
				slog.Warn("Failed to create Anthropic client", "model", model, "error", err)
				continue
			}
			gens = append(gens, client)
		}
	}
	return gens, nil
}

func init() {
	llm.RegisterProvider("anthropic", &Factory{})
}
