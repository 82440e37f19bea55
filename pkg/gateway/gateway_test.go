package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"orbit/pkg/actor"
	"orbit/pkg/api"
	"orbit/pkg/config"
	"orbit/pkg/messages"
	"orbit/pkg/monitor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeChannel struct {
	mu      sync.Mutex
	ctx     ChannelContext
	sent    []string
	signals []string
	stopped bool
	got     chan string
}

func newFakeChannel() *fakeChannel { return &fakeChannel{got: make(chan string, 8)} }

func (f *fakeChannel) ID() string { return "fake" }

func (f *fakeChannel) Start(ctx ChannelContext) error {
	f.ctx = ctx
	return nil
}

func (f *fakeChannel) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeChannel) Send(_ SessionContext, message string) error {
	f.mu.Lock()
	f.sent = append(f.sent, message)
	f.mu.Unlock()
	f.got <- message
	return nil
}

func (f *fakeChannel) SendSignal(_ SessionContext, signal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, signal)
	return nil
}

type askFunc func(ctx context.Context, text string, timeout time.Duration) (messages.Answer, error)

func (f askFunc) Ask(ctx context.Context, text string, timeout time.Duration) (messages.Answer, error) {
	return f(ctx, text, timeout)
}

type recordingMonitor struct {
	mu   sync.Mutex
	msgs []monitor.MonitorMessage
}

func (r *recordingMonitor) Start() error { return nil }
func (r *recordingMonitor) Stop() error  { return nil }
func (r *recordingMonitor) OnMessage(m monitor.MonitorMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recordingMonitor) snapshot() []monitor.MonitorMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]monitor.MonitorMessage(nil), r.msgs...)
}

var session = SessionContext{ChannelID: "fake", UserID: "u1", Username: "alice"}

func build(t *testing.T, asker Asker, mon monitor.Monitor) (*GatewayManager, *fakeChannel) {
	t.Helper()
	ch := newFakeChannel()
	b := NewGatewayBuilder().WithChannel(ch).WithAsker(asker).WithSystemConfig(config.DefaultSystemConfig())
	if mon != nil {
		b = b.WithMonitor(mon)
	}
	gw, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(gw.StopAll)
	require.NotNil(t, ch.ctx)
	return gw, ch
}

func receive(t *testing.T, ch *fakeChannel) string {
	t.Helper()
	select {
	case m := <-ch.got:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no reply delivered")
		return ""
	}
}

func TestAnswerIsSentBackOnTheChannel(t *testing.T) {
	mon := &recordingMonitor{}
	var gotTimeout time.Duration
	_, ch := build(t, askFunc(func(_ context.Context, text string, timeout time.Duration) (messages.Answer, error) {
		gotTimeout = timeout
		return messages.Answer{QueryID: "q1", Responder: "OrbitAgent", Text: "answer to " + text}, nil
	}), mon)

	ch.ctx.OnMessage("fake", &UnifiedMessage{Session: session, Content: "what is orbit?"})
	assert.Equal(t, "answer to what is orbit?", receive(t, ch))
	assert.Equal(t, config.DefaultSystemConfig().AskTimeout(), gotTimeout)
	assert.Equal(t, []string{api.SignalThinking}, ch.signals)

	msgs := mon.snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, monitor.TypeUser, msgs[0].MessageType)
	assert.Equal(t, "alice", msgs[0].Username)
	assert.Equal(t, monitor.TypeAssistant, msgs[1].MessageType)
	assert.Equal(t, "OrbitAgent", msgs[1].Responder)
	assert.Equal(t, "q1", msgs[1].QueryID)
}

func TestMessageTimeoutOverridesDefault(t *testing.T) {
	got := make(chan time.Duration, 1)
	_, ch := build(t, askFunc(func(_ context.Context, _ string, timeout time.Duration) (messages.Answer, error) {
		got <- timeout
		return messages.Answer{Text: "ok"}, nil
	}), nil)

	ch.ctx.OnMessage("fake", &UnifiedMessage{Session: session, Content: "q", Timeout: 3 * time.Second})
	receive(t, ch)
	assert.Equal(t, 3*time.Second, <-got)
}

func TestFailuresBecomeCallerText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", actor.ErrTimeout, TimeoutText},
		{"deadline", context.DeadlineExceeded, TimeoutText},
		{"other", errors.New("boom"), ErrorText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ch := build(t, askFunc(func(context.Context, string, time.Duration) (messages.Answer, error) {
				return messages.Answer{QueryID: "q"}, tt.err
			}), nil)
			ch.ctx.OnMessage("fake", &UnifiedMessage{Session: session, Content: "q"})
			assert.Equal(t, tt.want, receive(t, ch))
		})
	}
}

func TestReplyCallbackBypassesChannel(t *testing.T) {
	_, ch := build(t, askFunc(func(context.Context, string, time.Duration) (messages.Answer, error) {
		return messages.Answer{Text: "direct"}, nil
	}), nil)

	done := make(chan messages.Answer, 1)
	ch.ctx.OnMessage("fake", &UnifiedMessage{Session: session, Content: "q", Reply: func(a messages.Answer, err error) {
		assert.NoError(t, err)
		done <- a
	}})

	select {
	case a := <-done:
		assert.Equal(t, "direct", a.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("reply callback not called")
	}
	assert.Empty(t, ch.sent)
	assert.Empty(t, ch.signals)
}

func TestStopAllCancelsInflightQuestions(t *testing.T) {
	started := make(chan struct{})
	ch := newFakeChannel()
	gw, err := NewGatewayBuilder().WithChannel(ch).WithAsker(askFunc(func(ctx context.Context, _ string, _ time.Duration) (messages.Answer, error) {
		close(started)
		<-ctx.Done()
		return messages.Answer{}, ctx.Err()
	})).Build()
	require.NoError(t, err)

	ch.ctx.OnMessage("fake", &UnifiedMessage{Session: session, Content: "slow"})
	<-started
	gw.StopAll()

	assert.Equal(t, []string{ErrorText}, ch.sent)
	assert.True(t, ch.stopped)

	// Questions after shutdown are refused.
	refused := make(chan error, 1)
	ch.ctx.OnMessage("fake", &UnifiedMessage{Session: session, Content: "late", Reply: func(_ messages.Answer, err error) { refused <- err }})
	assert.ErrorIs(t, <-refused, context.Canceled)
}

func TestBuildRequiresAsker(t *testing.T) {
	_, err := NewGatewayBuilder().Build()
	assert.Error(t, err)
}

func TestSendReplyUnknownChannel(t *testing.T) {
	gw := NewGatewayManager()
	err := gw.SendReply(SessionContext{ChannelID: "nope"}, "hi")
	assert.Error(t, err)
	assert.Error(t, gw.SendSignal(SessionContext{ChannelID: "nope"}, api.SignalThinking))
}
