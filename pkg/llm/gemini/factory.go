package gemini

import (
	"context"
	"log/slog"

	"orbit/pkg/config"
	"orbit/pkg/llm"
)

// Factory handles creation of Gemini clients.
type Factory struct{}

// Create implements llm.ProviderFactory.
func (f *Factory) Create(cfg llm.ProviderGroupConfig, _ *config.SystemConfig) ([]llm.Generator, error) {
	useThought := false
	if effort := cfg.StringOption("thinking_effort", ""); effort != "" && effort != "off" {
		useThought = true
	}

	// Cartesian Product: Models x Keys (prioritize models)
	var gens []llm.Generator
	for _, model := range cfg.Models {
		for _, key := range cfg.APIKeys {
			client, err := NewClient(context.Background(), key, model, useThought, cfg.Options)
			if err != nil {
				slog.Warn("Failed to create Gemini client", "model", model, "error", err)
				continue
			}
			gens = append(gens, client)
		}
	}
	return gens, nil
}

func init() {
	llm.RegisterProvider("gemini", &Factory{})
}
