package web

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"orbit/pkg/api"
	"orbit/pkg/gateway"
	"orbit/pkg/messages"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for decoupled UI
	},
}

type WebConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"` // Default: 8080
}

// IncomingMessage is the JSON form of a question. Plain text frames are
// accepted as well. ID is echoed back on the answer.
type IncomingMessage struct {
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

// OutgoingMessage is every frame the server writes.
type OutgoingMessage struct {
	Type      string `json:"type"` // "answer" or "signal"
	ID        string `json:"id,omitempty"`
	QueryID   string `json:"query_id,omitempty"`
	Responder string `json:"responder,omitempty"`
	Text      string `json:"text,omitempty"`
	Value     string `json:"value,omitempty"`
	Error     bool   `json:"error,omitempty"`
}

type SafeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (sc *SafeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.Conn.WriteMessage(websocket.TextMessage, data)
}

type WebChannel struct {
	config      WebConfig
	server      *http.Server
	listener    net.Listener
	connections map[string]*SafeConn // Map UserID -> WS Connection
	mu          sync.RWMutex
}

func NewWebChannel(cfg WebConfig) *WebChannel {
	return &WebChannel{
		config:      cfg,
		connections: make(map[string]*SafeConn),
	}
}

func (c *WebChannel) ID() string {
	return "web"
}

// Handler returns the HTTP handler serving /ws.
func (c *WebChannel) Handler(ctx api.ChannelContext) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		c.handleWebSocket(w, r, ctx)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (c *WebChannel) Start(ctx api.ChannelContext) error {
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web listen on %s: %w", addr, err)
	}
	c.listener = ln
	c.server = &http.Server{
		Handler:           c.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Web API listening", "addr", ln.Addr().String())

	go func() {
		if err := c.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("Web API server error", "error", err)
		}
	}()

	return nil
}

func (c *WebChannel) Stop() error {
	c.mu.Lock()
	for id, conn := range c.connections {
		conn.Close()
		delete(c.connections, id)
	}
	c.mu.Unlock()

	if c.server != nil {
		return c.server.Close()
	}
	return nil
}

func (c *WebChannel) conn(userID string) (*SafeConn, error) {
	c.mu.RLock()
	conn, ok := c.connections[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("web user %s not connected", userID)
	}
	return conn, nil
}

func (c *WebChannel) Send(session api.SessionContext, message string) error {
	conn, err := c.conn(session.UserID)
	if err != nil {
		return err
	}
	return conn.WriteJSON(OutgoingMessage{Type: "answer", Text: message})
}

// SendSignal implements the gateway.SignalingChannel interface
func (c *WebChannel) SendSignal(session api.SessionContext, signal string) error {
	conn, err := c.conn(session.UserID)
	if err != nil {
		return err
	}
	return conn.WriteJSON(OutgoingMessage{Type: "signal", Value: signal})
}

func (c *WebChannel) handleWebSocket(w http.ResponseWriter, r *http.Request, ctx api.ChannelContext) {
	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS Upgrade failed", "error", err)
		return
	}

	// Wrap connection
	conn := &SafeConn{Conn: rawConn}

	// Simple UserID based on RemoteAddr
	userID := r.RemoteAddr

	c.mu.Lock()
	c.connections[userID] = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.connections, userID)
		c.mu.Unlock()
		conn.Close()
	}()

	session := api.SessionContext{
		ChannelID: c.ID(),
		UserID:    userID,
		ChatID:    userID,
		Username:  "WebUser",
	}

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		// Try to parse as JSON first
		var incoming IncomingMessage
		if err := json.Unmarshal(msgBytes, &incoming); err != nil || incoming.Text == "" {
			// Fallback: treat as plain text
			incoming = IncomingMessage{Text: string(msgBytes)}
		}

		if strings.TrimSpace(incoming.Text) == "" {
			continue
		}

		if err := conn.WriteJSON(OutgoingMessage{Type: "signal", ID: incoming.ID, Value: api.SignalThinking}); err != nil {
			slog.Debug("WS signal failed", "user", userID, "error", err)
		}
		ctx.OnMessage(c.ID(), &api.UnifiedMessage{
			Session: session,
			Content: incoming.Text,
			Timeout: time.Duration(incoming.TimeoutMs) * time.Millisecond,
			Raw:     incoming,
			Reply:   answerTo(conn, incoming.ID),
		})
	}
}

// answerTo writes one answer frame tagged with the client id and query id,
// so answers to concurrent questions on one socket can be told apart.
func answerTo(conn *SafeConn, id string) func(messages.Answer, error) {
	return func(ans messages.Answer, err error) {
		out := OutgoingMessage{Type: "answer", ID: id, QueryID: ans.QueryID, Responder: ans.Responder, Text: ans.Text}
		if err != nil {
			out.Text = gateway.FailureText(err)
			out.Error = true
		}
		if werr := conn.WriteJSON(out); werr != nil {
			slog.Warn("WS answer not delivered", "query_id", ans.QueryID, "error", werr)
		}
	}
}
