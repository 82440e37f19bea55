package messages

import (
	"testing"
	"time"

	"orbit/pkg/actor"

	"github.com/stretchr/testify/assert"
)

func TestFromPayload(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		kind    Kind
		ok      bool
	}{
		{"query", Query{Text: "hi"}, KindQuery, true},
		{"intent", IntentResult{Decision: RoutingDecision{Responder: "OrbitAgent"}}, KindIntentResult, true},
		{"answer", AgentAnswer{Text: "done"}, KindAgentAnswer, true},
		{"poison signal", actor.PoisonMessage{Reason: "x"}, KindSystemSignal, true},
		{"exit signal", actor.ExitRequest{}, KindSystemSignal, true},
		{"wrapped signal", SystemSignal{Signal: actor.Wakeup{}}, KindSystemSignal, true},
		{"plain string", "Unknown command", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, ok := FromPayload(tc.payload)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.kind, msg.Kind())
			} else {
				assert.Nil(t, msg)
			}
		})
	}
}

func TestRoutingDecisionResolved(t *testing.T) {
	assert.True(t, RoutingDecision{Responder: "OrbitAgent"}.Resolved())
	assert.False(t, RoutingDecision{Reason: "unparseable"}.Resolved())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "query", KindQuery.String())
	assert.Equal(t, "system_signal", KindSystemSignal.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestQueryLeaseDeadline(t *testing.T) {
	_, ok := Query{Text: "hi"}.LeaseDeadline()
	assert.False(t, ok)

	dl := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got, ok := Query{Text: "hi", Deadline: dl}.LeaseDeadline()
	assert.True(t, ok)
	assert.Equal(t, dl.Add(LeaseGrace), got)

	var _ actor.LeaseBound = Query{}
}
