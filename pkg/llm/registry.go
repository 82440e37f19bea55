package llm

import (
	"sort"

	"orbit/pkg/config"
)

// ProviderGroupConfig 定義一組模型的配置，作為 Factory 的輸入標準
type ProviderGroupConfig struct {
	Type    string         `json:"type"`
	APIKeys []string       `json:"api_keys,omitempty"`
	Models  []string       `json:"models"`
	BaseURL string         `json:"base_url,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// StringOption returns a string option or def.
func (g ProviderGroupConfig) StringOption(key, def string) string {
	if v, ok := g.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// BoolOption returns a boolean option or false.
func (g ProviderGroupConfig) BoolOption(key string) bool {
	v, _ := g.Options[key].(bool)
	return v
}

// IntOption returns a numeric option or def. JSON numbers decode as float64.
func (g ProviderGroupConfig) IntOption(key string, def int) int {
	switch v := g.Options[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// ProviderFactory 定義建立 Generator 的工廠介面
type ProviderFactory interface {
	// Create 根據配置建立一組 atomic generators
	Create(groupConfig ProviderGroupConfig, systemConfig *config.SystemConfig) ([]Generator, error)
}

// 全域 Provider 註冊表，只在 init() 階段寫入
var providerRegistry = make(map[string]ProviderFactory)

// RegisterProvider 註冊一個 Provider Factory
func RegisterProvider(name string, factory ProviderFactory) {
	providerRegistry[name] = factory
}

// GetProviderFactory 取得指定名稱的 Provider Factory
func GetProviderFactory(name string) (ProviderFactory, bool) {
	f, ok := providerRegistry[name]
	return f, ok
}

// Providers lists the registered provider names.
func Providers() []string {
	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
