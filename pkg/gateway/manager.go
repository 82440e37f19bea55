package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"orbit/pkg/actor"
	"orbit/pkg/api"
	"orbit/pkg/config"
	"orbit/pkg/messages"
	"orbit/pkg/monitor"
)

// Texts sent to a caller when no answer could be produced.
const (
	TimeoutText = "Sorry, that question took too long to answer. Please try again."
	ErrorText   = "Sorry, something went wrong while answering. Please try again."
)

// GatewayManager 負責管理所有的 Channels 並統一路由訊息
type GatewayManager struct {
	channels   map[string]Channel
	asker      Asker
	monitor    monitor.Monitor // 監控器
	askTimeout time.Duration   // 單一問題的預設逾時
	mu         sync.RWMutex

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// NewGatewayManager 建立一個新的 GatewayManager
func NewGatewayManager() *GatewayManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &GatewayManager{
		channels:   make(map[string]Channel),
		askTimeout: config.DefaultSystemConfig().AskTimeout(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// WithSystemConfig 套用系統層級參數
func (g *GatewayManager) WithSystemConfig(cfg *config.SystemConfig) {
	if t := cfg.AskTimeout(); t > 0 {
		g.askTimeout = t
	}
}

// SetAsker 設定回答問題的核心 (通常是 orchestrator.Router)
func (g *GatewayManager) SetAsker(a Asker) {
	g.asker = a
}

// SetMonitor 設定監控器
func (g *GatewayManager) SetMonitor(m monitor.Monitor) {
	g.monitor = m
}

// Register 註冊一個 Channel
func (g *GatewayManager) Register(c Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[c.ID()] = c
}

// GetChannel 取得特定的 Channel (通常用於主動發送訊息)
func (g *GatewayManager) GetChannel(id string) (Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.channels[id]
	return c, ok
}

// StartAll 啟動所有已註冊的 Channels
func (g *GatewayManager) StartAll() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, c := range g.channels {
		slog.Info("Starting channel", "channel", id)
		// 啟動 Channel，並傳入 self 作為 Context
		if err := c.Start(g); err != nil {
			return fmt.Errorf("failed to start channel %s: %w", id, err)
		}
	}
	return nil
}

// StopAll 取消進行中的問題，等待回覆送出後停止所有 Channels
func (g *GatewayManager) StopAll() {
	g.cancel()
	g.inflight.Wait()

	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, c := range g.channels {
		slog.Info("Stopping channel", "channel", id)
		if err := c.Stop(); err != nil {
			slog.Error("Error stopping channel", "channel", id, "error", err)
		}
	}
}

// SendReply 統一的回覆介面，透過 Channel 介面送回訊息
func (g *GatewayManager) SendReply(session SessionContext, content string) error {
	g.observe(session, messages.Answer{Text: content}, 0)
	return g.send(session, content)
}

func (g *GatewayManager) send(session SessionContext, content string) error {
	slog.Debug("Reply", "channel", session.ChannelID, "user", session.Username, "content", content)

	c, ok := g.GetChannel(session.ChannelID)
	if !ok {
		return fmt.Errorf("channel %s not found", session.ChannelID)
	}
	return c.Send(session, content)
}

// SendSignal 發送一個控制訊號 (如 thinking) 到 Channel
func (g *GatewayManager) SendSignal(session SessionContext, signal string) error {
	c, ok := g.GetChannel(session.ChannelID)
	if !ok {
		return fmt.Errorf("channel %s not found", session.ChannelID)
	}

	// 檢查 Channel 是否支援訊號介面
	if sc, ok := c.(SignalingChannel); ok {
		return sc.SendSignal(session, signal)
	}

	// 不支援的通道安靜地忽略
	return nil
}

// OnMessage 實作 ChannelContext 介面，接收來自 Channel 的訊息
func (g *GatewayManager) OnMessage(channelID string, msg *UnifiedMessage) {
	slog.Info("Question received", "channel", channelID, "user", msg.Session.Username, "user_id", msg.Session.UserID)

	// 廣播到監控器
	if g.monitor != nil {
		g.monitor.OnMessage(monitor.MonitorMessage{
			Timestamp:   time.Now(),
			MessageType: monitor.TypeUser,
			ChannelID:   channelID,
			Username:    msg.Session.Username,
			Content:     msg.Content,
		})
	}

	if g.asker == nil {
		slog.Warn("No asker set, dropping question", "channel", channelID)
		if msg.Reply != nil {
			msg.Reply(messages.Answer{}, errors.New("gateway: no asker configured"))
		}
		return
	}

	if g.ctx.Err() != nil {
		if msg.Reply != nil {
			msg.Reply(messages.Answer{}, g.ctx.Err())
		}
		return
	}

	g.inflight.Add(1)
	go g.answer(msg, time.Now())
}

// answer 在獨立 goroutine 中詢問 Asker，並把結果送回來源 Channel
func (g *GatewayManager) answer(msg *UnifiedMessage, received time.Time) {
	defer g.inflight.Done()

	session := msg.Session
	if msg.Reply == nil {
		if err := g.SendSignal(session, api.SignalThinking); err != nil {
			slog.Debug("Signal failed", "channel", session.ChannelID, "error", err)
		}
	}

	timeout := g.askTimeout
	if msg.Timeout > 0 {
		timeout = msg.Timeout
	}

	ans, err := g.asker.Ask(g.ctx, msg.Content, timeout)
	latency := time.Since(received)
	if err != nil {
		slog.Warn("Question failed", "channel", session.ChannelID, "query_id", ans.QueryID, "latency", latency, "error", err)
	}

	if msg.Reply != nil {
		g.observe(session, ans, latency)
		msg.Reply(ans, err)
		return
	}

	if err != nil {
		ans.Text = FailureText(err)
	}
	g.observe(session, ans, latency)

	if err := g.send(session, ans.Text); err != nil {
		slog.Error("Failed to deliver answer", "channel", session.ChannelID, "user", session.Username, "error", err)
	}
}

func (g *GatewayManager) observe(session SessionContext, ans messages.Answer, latency time.Duration) {
	if g.monitor == nil {
		return
	}
	g.monitor.OnMessage(monitor.MonitorMessage{
		Timestamp:   time.Now(),
		MessageType: monitor.TypeAssistant,
		ChannelID:   session.ChannelID,
		Username:    session.Username,
		QueryID:     ans.QueryID,
		Responder:   ans.Responder,
		Latency:     latency,
		Content:     ans.Text,
	})
}

// FailureText maps an Ask error to the text shown to the caller.
func FailureText(err error) string {
	if errors.Is(err, actor.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return TimeoutText
	}
	return ErrorText
}
