package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"orbit/pkg/actor"
	"orbit/pkg/llm/llmtest"
	"orbit/pkg/messages"
	"orbit/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		strategy Strategy
	}{
		{
			name:     "fenced json block",
			input:    "Here you go:\n```json\n{\"response\": \"OrbitAgent\", \"confidence\": 0.9}\n```",
			want:     "OrbitAgent",
			strategy: StrategyFenced,
		},
		{
			name:     "fenced block without language",
			input:    "```\n{\"response\": \"TroubleshootingAgent\"}\n```",
			want:     "TroubleshootingAgent",
			strategy: StrategyFenced,
		},
		{
			name:     "response object inside prose",
			input:    `Sure! Here's my answer: {"response": "OrbitAgent"} Hope that helps.`,
			want:     "OrbitAgent",
			strategy: StrategyRegex,
		},
		{
			name:     "broken fence falls through to regex",
			input:    "```json\n{response: OrbitAgent}\n``` {\"response\": \"OrbitAgent\"}",
			want:     "OrbitAgent",
			strategy: StrategyRegex,
		},
		{
			name:     "nested object by brace matching",
			input:    `I think {"response": "OrbitAgent", "meta": {"score": 1}} is right`,
			want:     "OrbitAgent",
			strategy: StrategyBraces,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input).(Parsed)
			require.True(t, ok, "expected Parsed")
			assert.Equal(t, tt.want, got.Fields["response"])
			assert.Equal(t, tt.strategy, got.Strategy)
		})
	}
}

func TestParseUnparseable(t *testing.T) {
	for _, input := range []string{
		"I cannot decide.",
		"",
		`{"response": "OrbitAgent"`,
		"{not json at all}",
	} {
		_, ok := Parse(input).(Unparseable)
		assert.True(t, ok, "input %q", input)
	}
}

var catalogue = map[string]string{
	"OrbitAgent":           "answers questions about the orbit framework",
	"TroubleshootingAgent": "diagnoses problems across repositories",
}

func TestPrompt(t *testing.T) {
	p := Prompt("how do I start?", catalogue)
	assert.True(t, strings.HasPrefix(p, "Agent Names and descriptions: {"))
	assert.Contains(t, p, `"OrbitAgent":"answers questions about the orbit framework"`)
	assert.True(t, strings.HasSuffix(p, " Query from User: how do I start?"))
}

func TestClassify(t *testing.T) {
	gen := llmtest.New(`{"response": "OrbitAgent"}`)
	c := NewClassifier(gen, "", time.Second)

	d := c.Classify(context.Background(), "how do I start?", catalogue)
	assert.True(t, d.Resolved())
	assert.Equal(t, "OrbitAgent", d.Responder)
	assert.Equal(t, "how do I start?", d.Query)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, DefaultInstruction, calls[0].Instruction)
}

func TestClassifyUnresolved(t *testing.T) {
	tests := []struct {
		name string
		gen  *llmtest.Scripted
	}{
		{"no braces", llmtest.New("I am not sure which agent fits.")},
		{"null response", llmtest.New(`{"response": null}`)},
		{"missing key", llmtest.New(`{"agent": "OrbitAgent"}`)},
		{"backend error", llmtest.Failing(errors.New("connection refused"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewClassifier(tt.gen, "custom", 0).Classify(context.Background(), "q", catalogue)
			assert.False(t, d.Resolved())
			assert.NotEmpty(t, d.Reason)
			assert.Equal(t, "q", d.Query)
		})
	}
}

func TestClassifierActor(t *testing.T) {
	sys := actor.NewSystem(actor.Options{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, sys.Shutdown(ctx))
	})

	reg := registry.New()
	reg.Register("OrbitAgent", actor.PropsFunc(func(*actor.Context, any) {}), catalogue["OrbitAgent"])

	gen := llmtest.New(`{"response": "OrbitAgent"}`)
	ref, err := sys.SpawnNamed(Name, Props(NewClassifier(gen, "", 0), reg, nil))
	require.NoError(t, err)

	reply, err := sys.AskTimeout(ref, messages.Query{ID: "q1", Text: "hello"}, time.Second)
	require.NoError(t, err)
	res, ok := reply.(messages.IntentResult)
	require.True(t, ok)
	assert.Equal(t, "q1", res.QueryID)
	assert.Equal(t, "OrbitAgent", res.Decision.Responder)
	assert.Contains(t, gen.Calls()[0].Prompt, "OrbitAgent")

	reply, err = sys.AskTimeout(ref, "what is this", time.Second)
	require.NoError(t, err)
	ans, ok := reply.(messages.AgentAnswer)
	require.True(t, ok)
	assert.Equal(t, UnknownCommand, ans.Text)
}

func TestClassifierActorSurvivesPanickingBackend(t *testing.T) {
	sys := actor.NewSystem(actor.Options{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, sys.Shutdown(ctx))
	})

	gen := &llmtest.Scripted{Name: "scripted", Respond: func(string, string) (string, error) {
		panic("provider bug")
	}}
	ref, err := sys.SpawnNamed(Name, Props(NewClassifier(gen, "", 0), registry.New(), nil))
	require.NoError(t, err)

	for _, id := range []string{"q1", "q2"} {
		reply, err := sys.AskTimeout(ref, messages.Query{ID: id, Text: "hello"}, time.Second)
		require.NoError(t, err)
		res, ok := reply.(messages.IntentResult)
		require.True(t, ok, "got %T", reply)
		assert.Equal(t, id, res.QueryID)
		assert.False(t, res.Decision.Resolved())
		assert.Equal(t, PanicReason, res.Decision.Reason)
	}
	assert.True(t, ref.Alive())
}
