// Package chain is a chain-of-responsibility dispatcher. Each handler either
// consumes the message, producing a terminal answer, or passes the context to
// the next link.
package chain

import (
	"orbit/pkg/actor"
	"orbit/pkg/messages"
)

// Actions is the part of the orchestrator a handler may use.
type Actions interface {
	Send(to *actor.Ref, msg any) error
	SpawnNamed(name string, props actor.Props) (*actor.Ref, error)
}

// DispatchContext is built once per inbound message and never mutated.
type DispatchContext struct {
	Message      messages.Message
	Orchestrator Actions
	ReplyTo      *actor.Ref
}

// Result is what a handler hands back: the context to continue with, or a
// terminal answer for the caller.
type Result struct {
	Context  DispatchContext
	Answer   messages.Answer
	terminal bool
}

// Pass continues with dc.
func Pass(dc DispatchContext) Result {
	return Result{Context: dc}
}

// Terminal stops the chain with an answer for the caller.
func Terminal(dc DispatchContext, text string) Result {
	return Result{Context: dc, Answer: messages.Answer{Text: text}, terminal: true}
}

// IsTerminal reports whether the chain produced a final answer.
func (r Result) IsTerminal() bool { return r.terminal }

// Handler is one link of the chain.
type Handler interface {
	Handle(dc DispatchContext) Result
	SetNext(next Handler) Handler
}

// Link provides the forwarding half of Handler. Embed it and call Next once
// the handler's own work is done.
type Link struct {
	next Handler
}

// SetNext wires next after this link and returns it for chaining.
func (l *Link) SetNext(next Handler) Handler {
	l.next = next
	return next
}

// Next forwards to the following link. The end of the chain passes the
// context through untouched, which means "wait for the async reply".
func (l *Link) Next(dc DispatchContext) Result {
	if l.next == nil {
		return Pass(dc)
	}
	return l.next.Handle(dc)
}

// Build links handlers in order and returns the head. An empty list yields
// a chain that passes everything.
func Build(handlers ...Handler) Handler {
	if len(handlers) == 0 {
		return &passThrough{}
	}
	for i := 0; i+1 < len(handlers); i++ {
		handlers[i].SetNext(handlers[i+1])
	}
	return handlers[0]
}

type passThrough struct {
	Link
}

func (p *passThrough) Handle(dc DispatchContext) Result { return p.Next(dc) }
