package ollama

import (
	"log/slog"

	"orbit/pkg/config"
	"orbit/pkg/llm"
)

// Factory handles creation of Ollama clients.
type Factory struct{}

// Create implements llm.ProviderFactory. One client is built per model.
func (f *Factory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.Generator, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sys.OllamaDefaultURL
	}

	var gens []llm.Generator
	for _, model := range cfg.Models {
		client, err := NewClient(model, baseURL, cfg.Options)
		if err != nil {
			slog.Warn("Failed to create Ollama client", "model", model, "error", err)
			continue
		}
		gens = append(gens, client)
	}
	return gens, nil
}

func init() {
	llm.RegisterProvider("ollama", &Factory{})
}
