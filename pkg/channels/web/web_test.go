package web

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"orbit/pkg/actor"
	"orbit/pkg/api"
	"orbit/pkg/gateway"
	"orbit/pkg/messages"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoGateway answers every question by sending it back through the channel.
type echoGateway struct {
	ch  *WebChannel
	mu  sync.Mutex
	got []*api.UnifiedMessage
}

func (e *echoGateway) SendReply(s api.SessionContext, content string) error {
	return e.ch.Send(s, content)
}

func (e *echoGateway) SendSignal(s api.SessionContext, signal string) error {
	return e.ch.SendSignal(s, signal)
}

// OnMessage answers through the message's Reply. "slow" questions time out.
func (e *echoGateway) OnMessage(_ string, msg *api.UnifiedMessage) {
	e.mu.Lock()
	e.got = append(e.got, msg)
	e.mu.Unlock()
	if msg.Content == "slow" {
		msg.Reply(messages.Answer{QueryID: "q-slow"}, actor.ErrTimeout)
		return
	}
	msg.Reply(messages.Answer{QueryID: "q-" + msg.Content, Responder: "EchoAgent", Text: "echo: " + msg.Content}, nil)
}

func dial(t *testing.T) (*websocket.Conn, *echoGateway) {
	t.Helper()
	ch := NewWebChannel(WebConfig{})
	gw := &echoGateway{ch: ch}
	srv := httptest.NewServer(ch.Handler(gw))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, gw
}

func read(t *testing.T, conn *websocket.Conn) OutgoingMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out OutgoingMessage
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestWebSocketJSONQuestion(t *testing.T) {
	conn, gw := dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"text":"what is orbit?","timeout_ms":1500}`)))

	assert.Equal(t, OutgoingMessage{Type: "signal", Value: api.SignalThinking}, read(t, conn))
	assert.Equal(t, OutgoingMessage{
		Type:      "answer",
		QueryID:   "q-what is orbit?",
		Responder: "EchoAgent",
		Text:      "echo: what is orbit?",
	}, read(t, conn))

	gw.mu.Lock()
	defer gw.mu.Unlock()
	require.Len(t, gw.got, 1)
	assert.Equal(t, 1500*time.Millisecond, gw.got[0].Timeout)
	assert.Equal(t, "web", gw.got[0].Session.ChannelID)
}

func TestWebSocketPlainTextQuestion(t *testing.T) {
	conn, _ := dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("plain question")))
	read(t, conn)
	assert.Equal(t, "echo: plain question", read(t, conn).Text)
}

func TestAnswersCarryClientAndQueryIDs(t *testing.T) {
	conn, _ := dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"a","text":"first"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"b","text":"second"}`)))

	answers := map[string]OutgoingMessage{}
	for len(answers) < 2 {
		out := read(t, conn)
		if out.Type == "answer" {
			answers[out.ID] = out
		}
	}
	assert.Equal(t, "q-first", answers["a"].QueryID)
	assert.Equal(t, "echo: first", answers["a"].Text)
	assert.Equal(t, "q-second", answers["b"].QueryID)
}

func TestFailedQuestionSendsFailureText(t *testing.T) {
	conn, _ := dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"s","text":"slow"}`)))
	assert.Equal(t, "signal", read(t, conn).Type)

	out := read(t, conn)
	assert.Equal(t, "s", out.ID)
	assert.Equal(t, "q-slow", out.QueryID)
	assert.True(t, out.Error)
	assert.Equal(t, gateway.TimeoutText, out.Text)
}

func TestSendToUnknownUser(t *testing.T) {
	ch := NewWebChannel(WebConfig{})
	assert.Error(t, ch.Send(api.SessionContext{UserID: "ghost"}, "hi"))
	assert.NoError(t, ch.Stop())
}

func TestFactoryDefaults(t *testing.T) {
	c, err := (&WebFactory{}).Create(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, c.(*WebChannel).config.Port)

	_, err = (&WebFactory{}).Create([]byte(`{bad`), nil)
	assert.Error(t, err)
}
