package channels

import (
	"log/slog"

	"orbit/pkg/config"
	"orbit/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

// LoadFromConfig resolves a factory for every configured channel and
// returns the channels it could build. Unknown or broken entries are
// logged and skipped.
func LoadFromConfig(configs map[string]jsoniter.RawMessage, system *config.SystemConfig) []gateway.Channel {
	var out []gateway.Channel
	for name, rawConfig := range configs {
		factory, ok := GetChannelFactory(name)
		if !ok {
			slog.Warn("Unknown channel type", "name", name, "known", Names())
			continue
		}

		channel, err := factory.Create(rawConfig, system)
		if err != nil {
			slog.Error("Failed to create channel", "name", name, "error", err)
			continue
		}

		// If Create returns nil (e.g., disabled in config), skip
		if channel == nil {
			continue
		}

		out = append(out, channel)
		slog.Info("Channel loaded", "name", name)
	}
	return out
}
