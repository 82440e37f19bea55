// Package natsbus exposes the router as a NATS request/reply service.
// A request on the ask subject carries a Request; the reply is a Response.
package natsbus

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"orbit/pkg/api"
	"orbit/pkg/gateway"
	"orbit/pkg/messages"

	comms "github.com/nats-io/nats.go"
)

// NATSConfig selects the server and the subject questions arrive on.
type NATSConfig struct {
	URL     string `json:"url"`
	Subject string `json:"subject"`
	// Queue groups several router instances so each request is answered once.
	Queue string `json:"queue"`
	Name  string `json:"name"`
}

// Request is the payload of one ask request.
type Request struct {
	Query     string `json:"query"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

// Response is the payload sent back on the request's reply subject.
type Response struct {
	QueryID   string `json:"query_id,omitempty"`
	Responder string `json:"responder,omitempty"`
	Answer    string `json:"answer,omitempty"`
	Error     string `json:"error,omitempty"`
}

type NATSChannel struct {
	config NATSConfig
	mu     sync.Mutex
	nc     *comms.Conn
	sub    *comms.Subscription
}

func NewNATSChannel(cfg NATSConfig) *NATSChannel {
	if cfg.URL == "" {
		cfg.URL = comms.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	return &NATSChannel{config: cfg}
}

func (c *NATSChannel) ID() string {
	return "nats"
}

func (c *NATSChannel) Start(ctx api.ChannelContext) error {
	nc, err := connect(c.config.URL, c.config.Name)
	if err != nil {
		return err
	}

	sub, err := nc.QueueSubscribe(c.config.Subject, c.config.Queue, func(msg *comms.Msg) {
		c.handle(ctx, msg)
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", c.config.Subject, err)
	}

	c.mu.Lock()
	c.nc, c.sub = nc, sub
	c.mu.Unlock()

	slog.Info("NATS ask service listening", "subject", c.config.Subject, "queue", c.config.Queue)
	return nil
}

func connect(url, name string) (*comms.Conn, error) {
	nc, err := comms.Connect(url,
		comms.Name(name),
		comms.Timeout(10*time.Second),
		comms.ReconnectWait(2*time.Second),
		comms.MaxReconnects(60),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	slog.Info("Connected to NATS", "url", nc.ConnectedUrl())
	return nc, nil
}

func (c *NATSChannel) handle(ctx api.ChannelContext, msg *comms.Msg) {
	if msg.Reply == "" {
		slog.Warn("NATS ask without reply subject dropped", "subject", msg.Subject)
		return
	}

	var req Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		respond(msg, Response{Error: "invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respond(msg, Response{Error: "query is empty"})
		return
	}

	ctx.OnMessage(c.ID(), &api.UnifiedMessage{
		Session: api.SessionContext{
			ChannelID: c.ID(),
			UserID:    msg.Reply,
			ChatID:    msg.Reply,
			Username:  "nats",
		},
		Content: req.Query,
		Timeout: time.Duration(req.TimeoutMs) * time.Millisecond,
		Raw:     msg,
		Reply: func(ans messages.Answer, err error) {
			resp := Response{QueryID: ans.QueryID, Responder: ans.Responder, Answer: ans.Text}
			if err != nil {
				resp.Error = err.Error()
				resp.Answer = gateway.FailureText(err)
			}
			respond(msg, resp)
		},
	})
}

func respond(msg *comms.Msg, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("Failed to encode NATS response", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Error("Failed to send NATS response", "reply", msg.Reply, "error", err)
	}
}

// Send publishes a bare answer to the session's reply subject.
func (c *NATSChannel) Send(session api.SessionContext, message string) error {
	c.mu.Lock()
	nc := c.nc
	c.mu.Unlock()
	if nc == nil {
		return fmt.Errorf("nats channel not started")
	}

	data, err := json.Marshal(Response{Answer: message})
	if err != nil {
		return err
	}
	return nc.Publish(session.UserID, data)
}

func (c *NATSChannel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			slog.Warn("NATS unsubscribe failed", "error", err)
		}
		c.sub = nil
	}
	if c.nc != nil {
		c.nc.Close()
		c.nc = nil
	}
	return nil
}
