// Package api holds the contracts shared between the gateway and the
// channel implementations, so neither has to import the other's internals.
package api

import (
	"context"
	"time"

	"orbit/pkg/messages"
)

// Signals a channel may receive through SignalingChannel.
const (
	SignalThinking = "thinking"
)

// Channel defines the standardized lifecycle interface for caller surfaces.
type Channel interface {
	ID() string
	Start(ctx ChannelContext) error
	Stop() error
	Send(session SessionContext, message string) error
}

// SignalingChannel is an optional extension of the Channel interface for
// platforms that support control signals (e.g., typing indicators).
type SignalingChannel interface {
	Channel
	// SendSignal transmits a control signal to the target session to
	// change UI state.
	SendSignal(session SessionContext, signal string) error
}

// ChannelContext provides the interface for a Channel implementation to
// communicate back with the Gateway core.
type ChannelContext interface {
	MessageResponder
	OnMessage(channelID string, msg *UnifiedMessage)
}

// MessageResponder defines the capabilities for sending responses back to a channel.
type MessageResponder interface {
	SendReply(session SessionContext, content string) error
	SendSignal(session SessionContext, signal string) error
}

// Asker answers one natural-language question. *orchestrator.Router is the
// production implementation.
type Asker interface {
	Ask(ctx context.Context, text string, timeout time.Duration) (messages.Answer, error)
}

// UnifiedMessage is the standardized form of a question arriving on any channel.
type UnifiedMessage struct {
	Session SessionContext // Contextual information about the source (User, Chat)
	Content string         // The question text
	Timeout time.Duration  // Per-message override of the ask timeout; zero keeps the default
	Raw     any            // Optional storage for the original platform-specific payload object

	// Reply, when set, receives the answer instead of Channel.Send. Request
	// and reply transports (NATS) use it to answer on the request's inbox.
	Reply func(answer messages.Answer, err error)
}

// SessionContext encapsulates identity and routing information for a specific
// conversation unit on a specific communication channel.
type SessionContext struct {
	ChannelID string // Identifier of the channel that originated the session (e.g., "telegram")
	UserID    string // Platform-specific unique identifier for the user
	ChatID    string // Platform-specific identifier for the chat or group (may match UserID for DMs)
	Username  string // Display name or nickname of the user as provided by the platform
}
