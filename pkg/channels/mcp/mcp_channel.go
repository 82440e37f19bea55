// Package mcp exposes the router to MCP clients as the query_orbit_agent
// tool, over streamable HTTP or stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"orbit/pkg/api"
	"orbit/pkg/gateway"
	"orbit/pkg/messages"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients during initialize.
var Version = "dev"

// Transports and defaults.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"

	DefaultPort = 8090
	DefaultPath = "/mcp"

	ToolName = "query_orbit_agent"
)

type MCPConfig struct {
	Transport string `json:"transport"` // Default: http
	Host      string `json:"host"`
	Port      int    `json:"port"` // Default: 8090
	Path      string `json:"path"` // Default: /mcp
}

type MCPChannel struct {
	config MCPConfig
	server *server.MCPServer

	mu         sync.RWMutex
	gw         api.ChannelContext
	httpServer *http.Server
	cancel     context.CancelFunc
	done       chan struct{}

	stdin  io.Reader
	stdout io.Writer
}

func NewMCPChannel(cfg MCPConfig) *MCPChannel {
	if cfg.Transport == "" {
		cfg.Transport = TransportHTTP
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	c := &MCPChannel{config: cfg, done: make(chan struct{}), stdin: os.Stdin, stdout: os.Stdout}
	c.server = server.NewMCPServer(
		"orbit",
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Ask ORBIT questions about the framework, troubleshooting across repositories, or any configured topic. Pass supporting material in context."),
	)
	c.server.AddTool(queryTool(), c.handleQuery)
	return c
}

func queryTool() mcpgo.Tool {
	return mcpgo.NewTool(ToolName,
		mcpgo.WithDescription("Send a query to ORBIT. It is routed to the most suitable specialized responder and that responder's answer is returned."),
		mcpgo.WithString("query", mcpgo.Required(), mcpgo.Description("The user's question or request")),
		mcpgo.WithString("context", mcpgo.Description("Optional additional context such as repository URLs or code snippets")),
		mcpgo.WithNumber("timeout_ms", mcpgo.Description("Optional answer deadline in milliseconds")),
	)
}

func (c *MCPChannel) ID() string {
	return "mcp"
}

// Server returns the underlying MCP server.
func (c *MCPChannel) Server() *server.MCPServer {
	return c.server
}

// Done is closed once the stdio transport reaches end of input.
func (c *MCPChannel) Done() <-chan struct{} {
	return c.done
}

func (c *MCPChannel) attach(ctx api.ChannelContext) {
	c.mu.Lock()
	c.gw = ctx
	c.mu.Unlock()
}

func (c *MCPChannel) Start(ctx api.ChannelContext) error {
	c.attach(ctx)

	switch c.config.Transport {
	case TransportHTTP:
		return c.serveHTTP()
	case TransportStdio:
		c.serveStdio()
		return nil
	default:
		return fmt.Errorf("unknown mcp transport %q", c.config.Transport)
	}
}

func (c *MCPChannel) serveHTTP() error {
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mcp listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, server.NewStreamableHTTPServer(c.server, server.WithEndpointPath(c.config.Path)))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	c.mu.Lock()
	c.httpServer = srv
	c.mu.Unlock()

	slog.Info("MCP server listening", "addr", ln.Addr().String(), "path", c.config.Path)
	go func() {
		defer close(c.done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("MCP server error", "error", err)
		}
	}()
	return nil
}

// serveStdio speaks MCP over stdin/stdout. Logs must go to stderr.
func (c *MCPChannel) serveStdio() {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	stdio := server.NewStdioServer(c.server)
	go func() {
		defer close(c.done)
		if err := stdio.Listen(ctx, c.stdin, c.stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		slog.Info("MCP stdio session ended")
	}()
}

func (c *MCPChannel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.httpServer != nil {
		err := c.httpServer.Close()
		c.httpServer = nil
		return err
	}
	return nil
}

// Send is not supported: MCP answers only travel as tool results.
func (c *MCPChannel) Send(session api.SessionContext, _ string) error {
	return fmt.Errorf("mcp session %s: answers are returned as tool results", session.UserID)
}

// CompleteQuery appends optional caller context to the question.
func CompleteQuery(query, extra string) string {
	if strings.TrimSpace(extra) == "" {
		return query
	}
	return query + "\n\nAdditional Context:\n" + extra
}

type outcome struct {
	ans messages.Answer
	err error
}

func (c *MCPChannel) handleQuery(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcpgo.NewToolResultError("query is empty"), nil
	}

	c.mu.RLock()
	gw := c.gw
	c.mu.RUnlock()
	if gw == nil {
		return mcpgo.NewToolResultError("orbit is not ready"), nil
	}

	userID := "mcp"
	if session := server.ClientSessionFromContext(ctx); session != nil {
		userID = session.SessionID()
	}

	done := make(chan outcome, 1)
	gw.OnMessage(c.ID(), &api.UnifiedMessage{
		Session: api.SessionContext{
			ChannelID: c.ID(),
			UserID:    userID,
			ChatID:    userID,
			Username:  "mcp",
		},
		Content: CompleteQuery(query, req.GetString("context", "")),
		Timeout: time.Duration(req.GetInt("timeout_ms", 0)) * time.Millisecond,
		Raw:     req,
		Reply: func(ans messages.Answer, err error) {
			done <- outcome{ans: ans, err: err}
		},
	})

	select {
	case out := <-done:
		if out.err != nil {
			return mcpgo.NewToolResultError(gateway.FailureText(out.err)), nil
		}
		return mcpgo.NewToolResultText(out.ans.Text), nil
	case <-ctx.Done():
		return mcpgo.NewToolResultError(gateway.FailureText(ctx.Err())), nil
	}
}
