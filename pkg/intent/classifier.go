// Package intent decides which registered responder should answer a query.
package intent

import (
	"context"
	_ "embed"
	"log/slog"
	"strings"
	"time"

	"orbit/pkg/llm"
	"orbit/pkg/messages"
)

//go:embed guidelines.md
var DefaultInstruction string

// Classifier asks a generative backend to name a responder.
type Classifier struct {
	gen         llm.Generator
	instruction string
	timeout     time.Duration
}

// NewClassifier returns a Classifier. An empty instruction selects
// DefaultInstruction; a zero timeout leaves the caller's deadline alone.
func NewClassifier(gen llm.Generator, instruction string, timeout time.Duration) *Classifier {
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction
	}
	return &Classifier{gen: gen, instruction: instruction, timeout: timeout}
}

// Prompt serializes the responder descriptions and the query into one prompt.
func Prompt(query string, descriptions map[string]string) string {
	raw, err := json.Marshal(descriptions)
	if err != nil {
		raw = []byte("{}")
	}
	return "Agent Names and descriptions: " + string(raw) + " Query from User: " + query
}

// Classify returns the routing decision for query. Backend failures and
// unusable output yield an unresolved decision carrying a Reason.
func (c *Classifier) Classify(ctx context.Context, query string, descriptions map[string]string) messages.RoutingDecision {
	decision := messages.RoutingDecision{Query: query}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prompt := Prompt(query, descriptions)
	slog.DebugContext(ctx, "Classifying query", "responders", len(descriptions))

	text, err := c.gen.Generate(ctx, prompt, c.instruction)
	if err != nil {
		slog.WarnContext(ctx, "Intent backend failed", "provider", c.gen.Provider(), "error", err)
		decision.Reason = "backend error: " + err.Error()
		return decision
	}
	slog.DebugContext(ctx, "Intent backend replied", "text", text)

	switch r := Parse(text).(type) {
	case Parsed:
		name, ok := r.Fields["response"].(string)
		if !ok || strings.TrimSpace(name) == "" {
			decision.Reason = "no responder named in output"
			slog.InfoContext(ctx, "Classifier named no responder", "strategy", r.Strategy)
			return decision
		}
		decision.Responder = strings.TrimSpace(name)
		slog.InfoContext(ctx, "Query classified", "responder", decision.Responder, "strategy", r.Strategy)
	case Unparseable:
		decision.Reason = r.Reason
		slog.WarnContext(ctx, "Failed to parse intent output", "reason", r.Reason)
	}
	return decision
}
