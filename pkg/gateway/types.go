package gateway

import (
	"orbit/pkg/api"
)

// Re-export types from api package via aliases so callers only need gateway.
type Channel = api.Channel
type SignalingChannel = api.SignalingChannel
type MessageResponder = api.MessageResponder
type ChannelContext = api.ChannelContext
type UnifiedMessage = api.UnifiedMessage
type SessionContext = api.SessionContext
type Asker = api.Asker
