package llm

import (
	"fmt"
	"log/slog"

	"orbit/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

// NewFromConfig 根據設定檔建立 Generator
func NewFromConfig(rawLLM jsoniter.RawMessage, system *config.SystemConfig) (Generator, error) {
	if len(rawLLM) == 0 {
		return nil, fmt.Errorf("missing 'llm' config")
	}

	var groups []ProviderGroupConfig
	if err := json.Unmarshal(rawLLM, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse 'llm' config: %w", err)
	}

	var atomic []Generator
	for _, group := range groups {
		slog.Info("Loading backend group", "type", group.Type, "models", len(group.Models))

		factory, ok := GetProviderFactory(group.Type)
		if !ok {
			slog.Warn("Unknown provider type", "type", group.Type, "known", Providers())
			continue
		}

		gens, err := factory.Create(group, system)
		if err != nil {
			slog.Warn("Failed to create generators", "type", group.Type, "error", err)
			continue
		}
		atomic = append(atomic, gens...)
	}

	if len(atomic) == 0 {
		return nil, fmt.Errorf("no backend generators could be initialized")
	}
	slog.Info("Backend generators initialized", "count", len(atomic))

	if system.DebugBackend {
		for i, g := range atomic {
			atomic[i] = NewDebugGenerator(g)
		}
	}

	// 如果只有一個，直接回傳
	if len(atomic) == 1 {
		return atomic[0], nil
	}

	// 否則包裹在 FallbackGenerator 中，並代入系統層級的重試設定
	return &FallbackGenerator{
		Generators: atomic,
		MaxRetries: system.MaxRetries,
		RetryDelay: system.RetryDelay(),
	}, nil
}
