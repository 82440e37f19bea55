package mcp

import (
	"fmt"

	"orbit/pkg/channels"
	"orbit/pkg/config"
	"orbit/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MCPFactory 負責建立 MCP Channels
type MCPFactory struct{}

// Create 實作 ChannelFactory
func (f *MCPFactory) Create(rawConfig jsoniter.RawMessage, _ *config.SystemConfig) (gateway.Channel, error) {
	var cfg MCPConfig
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse mcp config: %w", err)
		}
	}
	// stdio 會與 serve 的終端輸出衝突，改用 orbit mcp
	if cfg.Transport == TransportStdio {
		return nil, fmt.Errorf("mcp stdio transport is served by the mcp command, not serve")
	}
	return NewMCPChannel(cfg), nil
}

func init() {
	channels.RegisterChannel("mcp", &MCPFactory{})
}
