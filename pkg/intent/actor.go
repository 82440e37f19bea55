package intent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"orbit/pkg/actor"
	"orbit/pkg/messages"
	"orbit/pkg/monitor"
	"orbit/pkg/registry"
)

// Name is the global actor name of the intent classifier.
const Name = "IntentAgent"

// PanicReason marks the decision produced when classification panicked.
const PanicReason = "classifier panicked"

// UnknownCommand is the reply to anything that is not a Query.
const UnknownCommand = "Unknown command. Please send a QueryMessage to identify intent."

// Descriptions supplies the responder catalogue at classification time.
type Descriptions interface {
	Descriptions() map[string]string
}

var _ Descriptions = (*registry.Registry)(nil)

type classifierActor struct {
	classifier *Classifier
	catalogue  Descriptions
}

// Props returns the actor props for the classifier. A non-nil pool runs it
// as a pool of identical workers.
func Props(c *Classifier, catalogue Descriptions, pool *actor.PoolConfig) actor.Props {
	return actor.Props{
		New: func() actor.Actor {
			return &classifierActor{classifier: c, catalogue: catalogue}
		},
		Pool: pool,
	}
}

func (a *classifierActor) Receive(ctx *actor.Context, msg any) {
	switch m := msg.(type) {
	case messages.Query:
		qctx := monitor.WithQueryID(ctx.Context(), m.ID)
		decision := a.classify(qctx, m.Text)
		if err := ctx.Reply(messages.IntentResult{QueryID: m.ID, Decision: decision}); err != nil {
			slog.WarnContext(qctx, "Failed to deliver intent result", "error", err)
		}
	case actor.Signal:
		slog.Debug("Intent agent signal", "signal", fmt.Sprintf("%T", m))
	default:
		_ = ctx.Reply(messages.AgentAnswer{Responder: Name, Text: UnknownCommand, Failed: true})
	}
}


// classify turns a panicking backend into an unresolved decision so the
// orchestrator is never left waiting on it.
func (a *classifierActor) classify(ctx context.Context, text string) (d messages.RoutingDecision) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Intent classification panicked", "panic", r, "stack", string(debug.Stack()))
			d = messages.RoutingDecision{Query: text, Reason: PanicReason}
		}
	}()
	return a.classifier.Classify(ctx, text, a.catalogue.Descriptions())
}
