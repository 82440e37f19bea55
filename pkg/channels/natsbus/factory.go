package natsbus

import (
	"fmt"

	"orbit/pkg/channels"
	"orbit/pkg/config"
	"orbit/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
	comms "github.com/nats-io/nats.go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Defaults applied when the config leaves a field empty.
const (
	DefaultSubject = "orbit.ask"
	DefaultQueue   = "orbit"
	DefaultName    = "orbit-router"
)

// NATSFactory 負責建立 NATS Channels
type NATSFactory struct{}

// Create 實作 ChannelFactory
func (f *NATSFactory) Create(rawConfig jsoniter.RawMessage, _ *config.SystemConfig) (gateway.Channel, error) {
	cfg := NATSConfig{URL: comms.DefaultURL}
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse nats config: %w", err)
		}
	}
	return NewNATSChannel(cfg), nil
}

func init() {
	channels.RegisterChannel("nats", &NATSFactory{})
}
