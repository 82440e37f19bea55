// Package messages defines the closed set of messages the orchestrator
// dispatches on.
package messages

import (
	"time"

	"orbit/pkg/actor"
)

// LeaseGrace is how long past a query's deadline the orchestrator serving it
// may stay checked out. The orchestrator expires the round trip itself at the
// deadline; the grace only bounds a stuck one.
const LeaseGrace = time.Second

// Kind tags each Message variant.
type Kind int

const (
	KindQuery Kind = iota + 1
	KindIntentResult
	KindAgentAnswer
	KindSystemSignal
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindIntentResult:
		return "intent_result"
	case KindAgentAnswer:
		return "agent_answer"
	case KindSystemSignal:
		return "system_signal"
	default:
		return "unknown"
	}
}

// Message is implemented only by the types in this package.
type Message interface {
	Kind() Kind
	sealed()
}

// Query is a raw user question entering the system. A zero Deadline means
// the caller is not waiting on a clock.
type Query struct {
	ID       string
	Text     string
	Deadline time.Time
}

// LeaseDeadline implements actor.LeaseBound.
func (q Query) LeaseDeadline() (time.Time, bool) {
	if q.Deadline.IsZero() {
		return time.Time{}, false
	}
	return q.Deadline.Add(LeaseGrace), true
}

// RoutingDecision is the classifier's verdict. An empty Responder means no
// responder could be chosen; Reason then says why.
type RoutingDecision struct {
	Responder string
	Query     string
	Reason    string
}

// Resolved reports whether a responder name was chosen.
func (d RoutingDecision) Resolved() bool { return d.Responder != "" }

// IntentResult carries a RoutingDecision back from the classifier and on to
// the chosen responder.
type IntentResult struct {
	QueryID  string
	Decision RoutingDecision
}

// AgentAnswer is a responder's reply. Failed answers still carry user-facing
// text; Failed only marks them for logging.
type AgentAnswer struct {
	QueryID   string
	Responder string
	Text      string
	Failed    bool
}

// SystemSignal wraps a runtime lifecycle signal.
type SystemSignal struct {
	Signal actor.Signal
}

// Answer is what the caller finally receives.
type Answer struct {
	QueryID   string `json:"query_id,omitempty"`
	Responder string `json:"responder,omitempty"`
	Text      string `json:"text"`
}

func (Query) Kind() Kind        { return KindQuery }
func (IntentResult) Kind() Kind { return KindIntentResult }
func (AgentAnswer) Kind() Kind  { return KindAgentAnswer }
func (SystemSignal) Kind() Kind { return KindSystemSignal }

func (Query) sealed()        {}
func (IntentResult) sealed() {}
func (AgentAnswer) sealed()  {}
func (SystemSignal) sealed() {}

// FromPayload maps a raw actor payload onto the Message union.
func FromPayload(payload any) (Message, bool) {
	switch m := payload.(type) {
	case Message:
		return m, true
	case actor.Signal:
		return SystemSignal{Signal: m}, true
	default:
		return nil, false
	}
}
