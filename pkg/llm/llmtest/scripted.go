// Package llmtest provides a scripted llm.Generator for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"
)

// ErrTransient is treated as transient by Scripted.
var ErrTransient = errors.New("llmtest: 503 overloaded")

// Call records one Generate invocation.
type Call struct {
	Prompt      string
	Instruction string
}

// Reply is one scripted outcome.
type Reply struct {
	Text string
	Err  error
}

// Scripted returns its replies in order and repeats the last one once the
// script runs out. Respond, when set, takes precedence over the script.
type Scripted struct {
	Name    string
	Respond func(prompt, instruction string) (string, error)

	mu      sync.Mutex
	replies []Reply
	calls   []Call
}

// New returns a Scripted answering with the given texts.
func New(texts ...string) *Scripted {
	s := &Scripted{Name: "scripted"}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Failing returns a Scripted that always fails with err.
func Failing(err error) *Scripted {
	return &Scripted{Name: "scripted", replies: []Reply{{Err: err}}}
}

// Then appends a reply to the script.
func (s *Scripted) Then(r Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, r)
	return s
}

func (s *Scripted) Generate(ctx context.Context, prompt, instruction string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Prompt: prompt, Instruction: instruction})
	respond := s.Respond
	var r Reply
	switch {
	case respond != nil:
	case len(s.replies) == 0:
	case len(s.replies) == 1:
		r = s.replies[0]
	default:
		r, s.replies = s.replies[0], s.replies[1:]
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if respond != nil {
		return respond(prompt, instruction)
	}
	return r.Text, r.Err
}

func (s *Scripted) IsTransientError(err error) bool {
	return errors.Is(err, ErrTransient)
}

func (s *Scripted) Provider() string { return s.Name }

// Calls returns a copy of every recorded call.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}
