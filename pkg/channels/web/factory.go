package web

import (
	"fmt"

	"orbit/pkg/channels"
	"orbit/pkg/config"
	"orbit/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

// WebFactory 負責建立 Web Channels
type WebFactory struct{}

// Create 實作 ChannelFactory
func (f *WebFactory) Create(rawConfig jsoniter.RawMessage, _ *config.SystemConfig) (gateway.Channel, error) {
	var pCfg WebConfig
	// 設定預設 Port
	pCfg.Port = 8080

	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &pCfg); err != nil {
			return nil, fmt.Errorf("failed to parse web config: %w", err)
		}
	}

	return NewWebChannel(pCfg), nil
}

func init() {
	channels.RegisterChannel("web", &WebFactory{})
}
