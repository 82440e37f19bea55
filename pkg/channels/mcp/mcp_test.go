package mcp

import (
	"context"
	"testing"
	"time"

	"orbit/pkg/actor"
	"orbit/pkg/api"
	"orbit/pkg/gateway"
	"orbit/pkg/messages"

	"github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type askFunc func(ctx context.Context, text string, timeout time.Duration) (messages.Answer, error)

func (f askFunc) Ask(ctx context.Context, text string, timeout time.Duration) (messages.Answer, error) {
	return f(ctx, text, timeout)
}

// connect attaches the channel to a gateway and returns an initialized
// in-process MCP client talking to it.
func connect(t *testing.T, asker gateway.Asker) *client.Client {
	t.Helper()
	ch := NewMCPChannel(MCPConfig{})
	gw := gateway.NewGatewayManager()
	gw.SetAsker(asker)
	gw.Register(ch)
	ch.attach(gw)
	t.Cleanup(gw.StopAll)

	c, err := client.NewInProcessClient(ch.Server())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	var initReq mcpgo.InitializeRequest
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "orbit-test", Version: "0.0.1"}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)
	return c
}

func call(t *testing.T, c *client.Client, args map[string]any) *mcpgo.CallToolResult {
	t.Helper()
	var req mcpgo.CallToolRequest
	req.Params.Name = ToolName
	req.Params.Arguments = args
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res, err := c.CallTool(ctx, req)
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcpgo.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcpgo.TextContent)
	require.True(t, ok, "content %T", res.Content[0])
	return tc.Text
}

func TestToolIsListed(t *testing.T) {
	c := connect(t, askFunc(func(context.Context, string, time.Duration) (messages.Answer, error) {
		return messages.Answer{}, nil
	}))

	tools, err := c.ListTools(context.Background(), mcpgo.ListToolsRequest{})
	require.NoError(t, err)
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, ToolName, tools.Tools[0].Name)
	assert.Contains(t, tools.Tools[0].InputSchema.Required, "query")
}

func TestQueryWithContext(t *testing.T) {
	type asked struct {
		text    string
		timeout time.Duration
	}
	got := make(chan asked, 1)
	c := connect(t, askFunc(func(_ context.Context, q string, timeout time.Duration) (messages.Answer, error) {
		got <- asked{text: q, timeout: timeout}
		return messages.Answer{QueryID: "q1", Responder: "OrbitAgent", Text: "use orbit init"}, nil
	}))

	res := call(t, c, map[string]any{
		"query":      "how do I start?",
		"context":    "repo: github.com/example/orbit",
		"timeout_ms": 1500,
	})
	assert.False(t, res.IsError)
	assert.Equal(t, "use orbit init", text(t, res))

	a := <-got
	assert.Equal(t, "how do I start?\n\nAdditional Context:\nrepo: github.com/example/orbit", a.text)
	assert.Equal(t, 1500*time.Millisecond, a.timeout)
}

func TestQueryTimeoutBecomesErrorResult(t *testing.T) {
	c := connect(t, askFunc(func(context.Context, string, time.Duration) (messages.Answer, error) {
		return messages.Answer{QueryID: "q1"}, actor.ErrTimeout
	}))

	res := call(t, c, map[string]any{"query": "slow one"})
	assert.True(t, res.IsError)
	assert.Equal(t, gateway.TimeoutText, text(t, res))
}

func TestMissingQueryIsRejected(t *testing.T) {
	c := connect(t, askFunc(func(context.Context, string, time.Duration) (messages.Answer, error) {
		t.Error("asker must not be reached")
		return messages.Answer{}, nil
	}))

	assert.True(t, call(t, c, map[string]any{"context": "only context"}).IsError)
	assert.True(t, call(t, c, map[string]any{"query": "   "}).IsError)
}

func TestCompleteQuery(t *testing.T) {
	assert.Equal(t, "q", CompleteQuery("q", ""))
	assert.Equal(t, "q", CompleteQuery("q", "  \n"))
	assert.Equal(t, "q\n\nAdditional Context:\nctx", CompleteQuery("q", "ctx"))
}

func TestFactory(t *testing.T) {
	c, err := (&MCPFactory{}).Create(nil, nil)
	require.NoError(t, err)
	ch := c.(*MCPChannel)
	assert.Equal(t, TransportHTTP, ch.config.Transport)
	assert.Equal(t, DefaultPort, ch.config.Port)
	assert.Equal(t, DefaultPath, ch.config.Path)
	assert.Error(t, ch.Send(api.SessionContext{UserID: "someone"}, "hi"))

	_, err = (&MCPFactory{}).Create([]byte(`{"transport":"stdio"}`), nil)
	assert.Error(t, err)
	_, err = (&MCPFactory{}).Create([]byte(`{bad`), nil)
	assert.Error(t, err)
}
