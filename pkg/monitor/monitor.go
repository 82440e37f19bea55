package monitor

import "time"

// Message types seen by a Monitor.
const (
	TypeUser      = "USER"
	TypeAssistant = "ASSISTANT"
)

// MonitorMessage 代表一則監控訊息
type MonitorMessage struct {
	Timestamp   time.Time
	MessageType string // TypeUser or TypeAssistant
	ChannelID   string
	Username    string
	QueryID     string
	Responder   string        // set on answers when a responder was chosen
	Latency     time.Duration // set on answers: time since the question arrived
	Content     string
}

// Monitor 介面定義了監控器的行為
type Monitor interface {
	// Start 啟動監控器
	Start() error

	// Stop 停止監控器
	Stop() error

	// OnMessage 接收並顯示監控訊息
	OnMessage(msg MonitorMessage)
}
