// Package orchestrator runs one query round trip: classify the query, hand
// it to the chosen responder, and return the responder's answer to the
// caller. Each orchestrator instance serves one round trip at a time; a
// pool of them serves concurrent callers.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"orbit/pkg/actor"
	"orbit/pkg/chain"
	"orbit/pkg/messages"
	"orbit/pkg/monitor"
)

// State is the position of an orchestrator in its round trip.
type State int

const (
	Idle State = iota
	AwaitingIntent
	AwaitingResponderAnswer
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingIntent:
		return "AwaitingIntent"
	case AwaitingResponderAnswer:
		return "AwaitingResponderAnswer"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Orchestrator is the actor behind one round trip.
type Orchestrator struct {
	chain   chain.Handler
	state   State
	replyTo *actor.Ref
	queryID  string
	started  time.Time
	deadline time.Time
}

// New returns an idle orchestrator dispatching through handlers.
func New(handlers chain.Handler) *Orchestrator {
	return &Orchestrator{chain: handlers}
}

// State reports the current state.
func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) Receive(ctx *actor.Context, payload any) {
	msg, ok := messages.FromPayload(payload)
	if !ok {
		slog.Debug("Orchestrator ignored unknown payload", "type", fmt.Sprintf("%T", payload))
		return
	}

	switch m := msg.(type) {
	case messages.Query:
		if o.state != Idle {
			slog.Warn("Query arrived while busy", "query_id", m.ID, "state", o.state)
			_ = ctx.Reply(messages.Answer{QueryID: m.ID, Text: BusyAnswer})
			return
		}
		o.replyTo = ctx.Sender()
		o.queryID = m.ID
		o.started = time.Now()
		o.deadline = m.Deadline
		o.state = AwaitingIntent
		if !m.Deadline.IsZero() {
			ctx.WakeupAfter(time.Until(m.Deadline))
		}
	case messages.SystemSignal:
		if _, ok := m.Signal.(actor.Wakeup); ok {
			o.expire(ctx)
			return
		}
	default:
		if o.state == Idle {
			slog.Debug("Dropping late reply", "type", msg.Kind())
			return
		}
		if id := queryIDOf(msg); id != "" && id != o.queryID {
			slog.Debug("Dropping reply for another query", "query_id", id, "current", o.queryID)
			return
		}
	}

	res := o.dispatch(ctx, msg)
	if sig, isSignal := msg.(messages.SystemSignal); isSignal {
		// only a failure on the current round trip may end it
		if res.IsTerminal() && o.state != Idle && o.owns(sig) {
			o.finish(ctx, res.Answer)
		}
		return
	}

	if !res.IsTerminal() {
		if _, ok := msg.(messages.IntentResult); ok {
			o.state = AwaitingResponderAnswer
		}
		return
	}
	o.finish(ctx, res.Answer)
}

// dispatch runs the chain, turning a panic into a terminal error answer.
func (o *Orchestrator) dispatch(ctx *actor.Context, msg messages.Message) (res chain.Result) {
	dc := chain.DispatchContext{Message: msg, Orchestrator: actions{ctx}, ReplyTo: o.replyTo}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Handler chain panicked", "query_id", o.queryID, "panic", r, "stack", string(debug.Stack()))
			res = chain.Terminal(dc, ErrorAnswer)
		}
	}()
	return o.chain.Handle(dc)
}

func (o *Orchestrator) finish(ctx *actor.Context, answer messages.Answer) {
	answer.QueryID = o.queryID
	qctx := monitor.WithQueryID(context.Background(), o.queryID)
	if err := ctx.Send(o.replyTo, answer); err != nil {
		slog.WarnContext(qctx, "Caller gone before answer", "error", err)
	}
	slog.InfoContext(qctx, "Round trip finished", "responder", answer.Responder, "elapsed", time.Since(o.started))

	o.reset(ctx)
}

// expire abandons a round trip whose caller has stopped waiting.
func (o *Orchestrator) expire(ctx *actor.Context) {
	if o.state == Idle || o.deadline.IsZero() || time.Now().Before(o.deadline) {
		return
	}
	qctx := monitor.WithQueryID(context.Background(), o.queryID)
	slog.WarnContext(qctx, "Round trip expired", "state", o.state, "elapsed", time.Since(o.started))
	o.reset(ctx)
}

func (o *Orchestrator) reset(ctx *actor.Context) {
	o.state = Idle
	o.replyTo = nil
	o.queryID = ""
	o.deadline = time.Time{}
	ctx.Release()
}

// owns reports whether a poison signal wraps a message of the current query.
func (o *Orchestrator) owns(sig messages.SystemSignal) bool {
	p, ok := sig.Signal.(actor.PoisonMessage)
	if !ok {
		return false
	}
	inner, ok := p.Message.(messages.Message)
	return ok && queryIDOf(inner) == o.queryID
}

func queryIDOf(msg messages.Message) string {
	switch m := msg.(type) {
	case messages.Query:
		return m.ID
	case messages.IntentResult:
		return m.QueryID
	case messages.AgentAnswer:
		return m.QueryID
	}
	return ""
}

func typeName(v any) string { return fmt.Sprintf("%T", v) }

// actions exposes the orchestrator's actor context to handlers.
type actions struct {
	ctx *actor.Context
}

func (a actions) Send(to *actor.Ref, msg any) error { return a.ctx.Send(to, msg) }

func (a actions) SpawnNamed(name string, props actor.Props) (*actor.Ref, error) {
	return a.ctx.SpawnNamed(name, props)
}

// Props builds orchestrators sharing one handler chain shape. Every instance
// gets its own chain so handlers never share state across round trips.
func Props(newChain func() chain.Handler, pool *actor.PoolConfig, restart actor.RestartPolicy) actor.Props {
	return actor.Props{
		New:     func() actor.Actor { return New(newChain()) },
		Pool:    pool,
		Restart: restart,
	}
}
