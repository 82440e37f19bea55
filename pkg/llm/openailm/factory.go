package openailm

import (
	"orbit/pkg/config"
	"orbit/pkg/llm"
)

// Factory handles creation of OpenAI clients.
type Factory struct {
	provider string
}

// Create implements llm.ProviderFactory. Only the first API key is used.
func (f *Factory) Create(cfg llm.ProviderGroupConfig, _ *config.SystemConfig) ([]llm.Generator, error) {
	apiKey := ""
	if len(cfg.APIKeys) > 0 {
		apiKey = cfg.APIKeys[0]
	}

	gens := make([]llm.Generator, 0, len(cfg.Models))
	for _, model := range cfg.Models {
		gens = append(gens, NewClient(f.provider, apiKey, model, cfg.BaseURL, cfg.Options))
	}
	return gens, nil
}

func init() {
	llm.RegisterProvider("openai", &Factory{provider: "openai"})
	// OpenAI-compatible servers (vLLM, LM Studio) configured through base_url
	llm.RegisterProvider("openai-compatible", &Factory{provider: "openai-compatible"})
}
