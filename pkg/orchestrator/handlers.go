package orchestrator

import (
	"log/slog"

	"orbit/pkg/actor"
	"orbit/pkg/chain"
	"orbit/pkg/messages"
	"orbit/pkg/registry"
)

// Caller-facing texts produced by the orchestrator itself.
const (
	FallbackAnswer    = "Sorry, I could not determine how to help with that. Please rephrase your question."
	UnavailableAnswer = "Sorry, the router is unavailable right now. Please try again later."
	ErrorAnswer       = "Sorry, something went wrong while routing your question."
	BusyAnswer        = "This router instance is busy with another query. Please retry."
)

// Lookup resolves responder names. *registry.Registry satisfies it.
type Lookup interface {
	Get(name string) (registry.Registration, bool)
}

// AnswerHandler ends the round trip with a responder's answer.
type AnswerHandler struct {
	chain.Link
}

func (h *AnswerHandler) Handle(dc chain.DispatchContext) chain.Result {
	a, ok := dc.Message.(messages.AgentAnswer)
	if !ok {
		return h.Next(dc)
	}
	res := chain.Terminal(dc, a.Text)
	res.Answer.Responder = a.Responder
	return res
}

// QueryHandler forwards a fresh query to the intent classifier.
type QueryHandler struct {
	chain.Link
	ClassifierName  string
	ClassifierProps actor.Props
}

func (h *QueryHandler) Handle(dc chain.DispatchContext) chain.Result {
	q, ok := dc.Message.(messages.Query)
	if !ok {
		return h.Next(dc)
	}

	ref, err := dc.Orchestrator.SpawnNamed(h.ClassifierName, h.ClassifierProps)
	if err != nil {
		slog.Error("Failed to spawn intent classifier", "error", err)
		return chain.Terminal(dc, UnavailableAnswer)
	}
	if err := dc.Orchestrator.Send(ref, q); err != nil {
		slog.Error("Failed to forward query to intent classifier", "error", err)
		return chain.Terminal(dc, UnavailableAnswer)
	}
	return h.Next(dc)
}

// SignalHandler logs lifecycle signals. A downstream panic on a Query or
// IntentResult ends the round trip with ErrorAnswer; every other signal
// passes on.
type SignalHandler struct {
	chain.Link
}

func (h *SignalHandler) Handle(dc chain.DispatchContext) chain.Result {
	s, ok := dc.Message.(messages.SystemSignal)
	if !ok {
		return h.Next(dc)
	}

	switch sig := s.Signal.(type) {
	case actor.PoisonMessage:
		slog.Warn("Downstream actor failed on a message", "message", typeName(sig.Message), "reason", sig.Reason)
		switch sig.Message.(type) {
		case messages.Query, messages.IntentResult:
			return chain.Terminal(dc, ErrorAnswer)
		}
	case actor.ChildExited:
		slog.Info("Child actor exited", "child", sig.Child.String())
	default:
		slog.Debug("Lifecycle signal", "signal", typeName(sig))
	}
	return h.Next(dc)
}

// IntentHandler forwards a classified query to the chosen responder.
// Unresolved decisions end the round trip with FallbackAnswer.
type IntentHandler struct {
	chain.Link
	Responders Lookup
}

func (h *IntentHandler) Handle(dc chain.DispatchContext) chain.Result {
	ir, ok := dc.Message.(messages.IntentResult)
	if !ok {
		return h.Next(dc)
	}

	d := ir.Decision
	if !d.Resolved() {
		slog.Info("Query could not be classified", "reason", d.Reason)
		return chain.Terminal(dc, FallbackAnswer)
	}

	reg, found := h.Responders.Get(d.Responder)
	if !found {
		slog.Warn("Classifier named an unknown responder", "responder", d.Responder)
		return chain.Terminal(dc, FallbackAnswer)
	}

	ref, err := dc.Orchestrator.SpawnNamed(reg.Name, reg.Props)
	if err != nil {
		slog.Error("Failed to spawn responder", "responder", reg.Name, "error", err)
		return chain.Terminal(dc, FallbackAnswer)
	}
	if err := dc.Orchestrator.Send(ref, ir); err != nil {
		slog.Error("Failed to forward query to responder", "responder", reg.Name, "error", err)
		return chain.Terminal(dc, FallbackAnswer)
	}
	slog.Info("Query routed", "responder", reg.Name)
	return h.Next(dc)
}

// NewChain wires the handlers in their fixed order.
func NewChain(classifierName string, classifierProps actor.Props, responders Lookup) chain.Handler {
	return chain.Build(
		&AnswerHandler{},
		&QueryHandler{ClassifierName: classifierName, ClassifierProps: classifierProps},
		&SignalHandler{},
		&IntentHandler{Responders: responders},
	)
}
