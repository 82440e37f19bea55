package orchestrator

import (
	"errors"
	"testing"

	"orbit/pkg/actor"
	"orbit/pkg/chain"
	"orbit/pkg/messages"
	"orbit/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to  string
	msg any
}

// fakeActions records what handlers ask the orchestrator to do. Spawns go
// to a real system so refs carry names; sends are only recorded.
type fakeActions struct {
	sys      *actor.System
	spawnErr error
	sendErr  error
	spawned  []string
	sent     []sent
}

func (f *fakeActions) SpawnNamed(name string, _ actor.Props) (*actor.Ref, error) {
	if f.spawnErr != nil {
		return nil, f.spawnErr
	}
	f.spawned = append(f.spawned, name)
	return f.sys.SpawnNamed(name, actor.PropsFunc(func(*actor.Context, any) {}))
}

func (f *fakeActions) Send(to *actor.Ref, msg any) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sent{to: to.Name(), msg: msg})
	return nil
}

func testRegistry() *registry.Registry {
	reg := registry.New()
	noop := actor.PropsFunc(func(*actor.Context, any) {})
	reg.Register("OrbitAgent", noop, "framework help")
	reg.Register("TroubleshootingAgent", noop, "debugging")
	return reg
}

func run(t *testing.T, acts *fakeActions, msg messages.Message) chain.Result {
	t.Helper()
	acts.sys = newTestSystem(t)
	head := NewChain("IntentAgent", actor.PropsFunc(func(*actor.Context, any) {}), testRegistry())
	return head.Handle(chain.DispatchContext{Message: msg, Orchestrator: acts})
}

func TestQueryGoesToClassifier(t *testing.T) {
	acts := &fakeActions{}
	q := messages.Query{ID: "q1", Text: "hello"}

	res := run(t, acts, q)
	assert.False(t, res.IsTerminal())
	assert.Equal(t, []string{"IntentAgent"}, acts.spawned)
	require.Len(t, acts.sent, 1)
	assert.Equal(t, sent{to: "IntentAgent", msg: q}, acts.sent[0])
}

func TestQueryClassifierUnavailable(t *testing.T) {
	res := run(t, &fakeActions{spawnErr: actor.ErrSystemClosed}, messages.Query{Text: "hello"})
	require.True(t, res.IsTerminal())
	assert.Equal(t, UnavailableAnswer, res.Answer.Text)
}

func TestIntentRoutesToResponder(t *testing.T) {
	acts := &fakeActions{}
	ir := messages.IntentResult{QueryID: "q1", Decision: messages.RoutingDecision{Responder: "OrbitAgent", Query: "hello"}}

	res := run(t, acts, ir)
	assert.False(t, res.IsTerminal())
	require.Len(t, acts.sent, 1)
	assert.Equal(t, sent{to: "OrbitAgent", msg: ir}, acts.sent[0])
}

func TestIntentFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		acts     *fakeActions
		decision messages.RoutingDecision
	}{
		{"null decision", &fakeActions{}, messages.RoutingDecision{Query: "q", Reason: "no braces"}},
		{"unknown responder", &fakeActions{}, messages.RoutingDecision{Responder: "Nobody", Query: "q"}},
		{"spawn failure", &fakeActions{spawnErr: errors.New("closed")}, messages.RoutingDecision{Responder: "OrbitAgent", Query: "q"}},
		{"send failure", &fakeActions{sendErr: actor.ErrStopped}, messages.RoutingDecision{Responder: "OrbitAgent", Query: "q"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.acts, messages.IntentResult{Decision: tt.decision})
			require.True(t, res.IsTerminal())
			assert.Equal(t, FallbackAnswer, res.Answer.Text)
		})
	}
}

func TestAnswerIsTerminal(t *testing.T) {
	acts := &fakeActions{}
	res := run(t, acts, messages.AgentAnswer{Responder: "OrbitAgent", Text: "use Start"})
	require.True(t, res.IsTerminal())
	assert.Equal(t, messages.Answer{Responder: "OrbitAgent", Text: "use Start"}, res.Answer)
	assert.Empty(t, acts.sent)
}

func TestSignalsPass(t *testing.T) {
	acts := &fakeActions{}
	for _, sig := range []actor.Signal{
		actor.PoisonMessage{Message: "x", Reason: "boom"},
		actor.ChildExited{},
		actor.Wakeup{},
	} {
		res := run(t, acts, messages.SystemSignal{Signal: sig})
		assert.False(t, res.IsTerminal())
	}
	assert.Empty(t, acts.sent)
	assert.Empty(t, acts.spawned)
}

func TestPoisonedRoundTripEndsWithErrorAnswer(t *testing.T) {
	for _, inner := range []any{
		messages.Query{ID: "q", Text: "hello"},
		messages.IntentResult{QueryID: "q", Decision: messages.RoutingDecision{Responder: "OrbitAgent"}},
	} {
		res := run(t, &fakeActions{}, messages.SystemSignal{Signal: actor.PoisonMessage{Message: inner, Reason: "provider bug"}})
		require.True(t, res.IsTerminal(), "%T", inner)
		assert.Equal(t, ErrorAnswer, res.Answer.Text)
	}
}

// auditHandler claims a message kind nobody else handles.
type auditHandler struct {
	chain.Link
	seen int
}

func (h *auditHandler) Handle(dc chain.DispatchContext) chain.Result {
	if _, ok := dc.Message.(messages.SystemSignal); ok {
		h.seen++
	}
	return h.Next(dc)
}

func TestExtraHandlerLeavesOutcomesAlone(t *testing.T) {
	reg := testRegistry()
	noop := actor.PropsFunc(func(*actor.Context, any) {})
	inputs := []messages.Message{
		messages.Query{ID: "q", Text: "hello"},
		messages.IntentResult{Decision: messages.RoutingDecision{Responder: "OrbitAgent", Query: "hello"}},
		messages.IntentResult{Decision: messages.RoutingDecision{Query: "hello"}},
		messages.AgentAnswer{Text: "done"},
	}

	for _, in := range inputs {
		base := &fakeActions{sys: newTestSystem(t)}
		want := NewChain("IntentAgent", noop, reg).Handle(chain.DispatchContext{Message: in, Orchestrator: base})

		extended := &fakeActions{sys: newTestSystem(t)}
		audit := &auditHandler{}
		head := chain.Build(&AnswerHandler{}, audit, &QueryHandler{ClassifierName: "IntentAgent", ClassifierProps: noop},
			&SignalHandler{}, &IntentHandler{Responders: reg})
		got := head.Handle(chain.DispatchContext{Message: in, Orchestrator: extended})

		assert.Equal(t, want.IsTerminal(), got.IsTerminal(), "%T", in)
		assert.Equal(t, want.Answer, got.Answer, "%T", in)
		assert.Equal(t, base.sent, extended.sent, "%T", in)
		assert.Zero(t, audit.seen)
	}
}
