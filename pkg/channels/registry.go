package channels

import (
	"sort"
	"sync"

	"orbit/pkg/config"
	"orbit/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

// ChannelFactory defines the abstract interface for platform-specific
// channel creators. New caller surfaces plug in without touching the gateway.
type ChannelFactory interface {
	// Create instantiates a concrete Channel implementation using the
	// provided configuration and shared system resources.
	Create(rawConfig jsoniter.RawMessage, system *config.SystemConfig) (gateway.Channel, error)
}

var (
	mu sync.RWMutex
	// channelRegistry maps platform names (e.g., "telegram") to their factories.
	channelRegistry = make(map[string]ChannelFactory)
)

// RegisterChannel adds a new ChannelFactory to the global internal registry.
// This is typically called during the package's init() phase.
func RegisterChannel(name string, factory ChannelFactory) {
	mu.Lock()
	defer mu.Unlock()
	channelRegistry[name] = factory
}

// GetChannelFactory retrieves a registered ChannelFactory by platform name.
func GetChannelFactory(name string) (ChannelFactory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := channelRegistry[name]
	return f, ok
}

// Names lists the registered platform names in order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(channelRegistry))
	for n := range channelRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
