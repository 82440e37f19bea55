// Package responder holds the agents that answer routed queries and the
// actor adapter that runs them.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"orbit/pkg/actor"
	"orbit/pkg/messages"
	"orbit/pkg/monitor"
)

// Responder answers one routed query.
type Responder interface {
	Handle(ctx context.Context, query string) (messages.Answer, error)
}

// Func adapts a function to Responder.
type Func func(ctx context.Context, query string) (messages.Answer, error)

func (f Func) Handle(ctx context.Context, query string) (messages.Answer, error) {
	return f(ctx, query)
}

// FailureText is what the caller reads when a responder errors out. The
// cause is logged, never returned.
const FailureText = "Sorry, I could not answer that right now. Please try again later."

// UnknownCommand is the reply to payloads other than an IntentResult.
func UnknownCommand(name string) string {
	return fmt.Sprintf("Unknown command. Please send an IntentResult to receive assistance from %s.", name)
}

// Options tunes the actor built by Props.
type Options struct {
	Pool    *actor.PoolConfig
	Restart actor.RestartPolicy
}

// Props wraps a Responder as an actor. newResponder runs once per worker.
func Props(name string, newResponder func() Responder, opts Options) actor.Props {
	return actor.Props{
		New: func() actor.Actor {
			return &responderActor{name: name, responder: newResponder()}
		},
		Pool:    opts.Pool,
		Restart: opts.Restart,
	}
}

type responderActor struct {
	name      string
	responder Responder
}

func (a *responderActor) Receive(ctx *actor.Context, msg any) {
	switch m := msg.(type) {
	case messages.IntentResult:
		qctx := monitor.WithQueryID(ctx.Context(), m.QueryID)
		answer := a.answer(qctx, m)
		if err := ctx.Reply(answer); err != nil {
			slog.WarnContext(qctx, "Failed to deliver answer", "responder", a.name, "error", err)
		}
	case actor.Signal:
		slog.Debug("Responder signal", "responder", a.name, "signal", fmt.Sprintf("%T", m))
	default:
		_ = ctx.Reply(messages.AgentAnswer{Responder: a.name, Text: UnknownCommand(a.name), Failed: true})
	}
}

func (a *responderActor) answer(ctx context.Context, m messages.IntentResult) (out messages.AgentAnswer) {
	out = messages.AgentAnswer{QueryID: m.QueryID, Responder: a.name}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Responder panicked", "responder", a.name, "panic", r, "stack", string(debug.Stack()))
			out.Text, out.Failed = FailureText, true
		}
	}()

	slog.InfoContext(ctx, "Responder handling query", "responder", a.name)
	ans, err := a.responder.Handle(ctx, m.Decision.Query)
	if err != nil {
		slog.ErrorContext(ctx, "Responder failed", "responder", a.name, "error", err)
		out.Text, out.Failed = FailureText, true
		return out
	}
	out.Text = ans.Text
	return out
}
