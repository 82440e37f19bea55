package llm_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"orbit/pkg/config"
	"orbit/pkg/llm"
	"orbit/pkg/llm/llmtest"
	"orbit/pkg/monitor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackRetriesTransientErrors(t *testing.T) {
	flaky := llmtest.Failing(llmtest.ErrTransient).Then(llmtest.Reply{Text: "recovered"})
	f := &llm.FallbackGenerator{Generators: []llm.Generator{flaky}, MaxRetries: 3, RetryDelay: time.Millisecond}

	text, err := f.Generate(context.Background(), "p", "i")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Len(t, flaky.Calls(), 2)
}

func TestFallbackMovesToNextProviderOnPermanentError(t *testing.T) {
	broken := llmtest.Failing(errors.New("401 unauthorized"))
	backup := llmtest.New("from backup")
	f := &llm.FallbackGenerator{Generators: []llm.Generator{broken, backup}, MaxRetries: 3}

	text, err := f.Generate(context.Background(), "p", "i")
	require.NoError(t, err)
	assert.Equal(t, "from backup", text)
	assert.Len(t, broken.Calls(), 1)
}

func TestFallbackTreatsEmptyAsFailure(t *testing.T) {
	empty := llmtest.New("   ")
	f := &llm.FallbackGenerator{Generators: []llm.Generator{empty}, MaxRetries: 2}

	_, err := f.Generate(context.Background(), "p", "i")
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestFallbackStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &llm.FallbackGenerator{Generators: []llm.Generator{llmtest.New("x")}}

	_, err := f.Generate(ctx, "p", "i")
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeFactory struct {
	gens []llm.Generator
	err  error
}

func (f *fakeFactory) Create(llm.ProviderGroupConfig, *config.SystemConfig) ([]llm.Generator, error) {
	return f.gens, f.err
}

func TestNewFromConfig(t *testing.T) {
	one := llmtest.New("one")
	two := llmtest.New("two")
	llm.RegisterProvider("test-single", &fakeFactory{gens: []llm.Generator{one}})
	llm.RegisterProvider("test-pair", &fakeFactory{gens: []llm.Generator{one, two}})
	llm.RegisterProvider("test-broken", &fakeFactory{err: errors.New("nope")})
	sys := config.DefaultSystemConfig()

	gen, err := llm.NewFromConfig([]byte(`[{"type":"test-single"}]`), sys)
	require.NoError(t, err)
	assert.Same(t, one, gen)

	gen, err = llm.NewFromConfig([]byte(`[{"type":"test-pair"},{"type":"unknown"},{"type":"test-broken"}]`), sys)
	require.NoError(t, err)
	fb, ok := gen.(*llm.FallbackGenerator)
	require.True(t, ok)
	assert.Len(t, fb.Generators, 2)
	assert.Equal(t, sys.MaxRetries, fb.MaxRetries)

	_, err = llm.NewFromConfig([]byte(`[{"type":"unknown"}]`), sys)
	assert.Error(t, err)

	_, err = llm.NewFromConfig(nil, sys)
	assert.Error(t, err)

	_, err = llm.NewFromConfig([]byte(`{not json`), sys)
	assert.Error(t, err)
}

func TestDebugGeneratorWritesTranscript(t *testing.T) {
	llm.DebugRoot = t.TempDir()
	gen := llm.NewDebugGenerator(llmtest.New("the answer"))

	ctx := monitor.WithQueryID(context.Background(), "q1")
	text, err := gen.Generate(ctx, "the prompt", "the instruction")
	require.NoError(t, err)
	assert.Equal(t, "the answer", text)

	files, err := filepath.Glob(filepath.Join(llm.DebugRoot, "scripted", "q1", "*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	body := string(raw)
	for _, want := range []string{"INSTRUCTION", "the instruction", "PROMPT", "the prompt", "RESPONSE", "the answer"} {
		assert.True(t, strings.Contains(body, want), "transcript missing %q", want)
	}
}

func TestProviderGroupOptions(t *testing.T) {
	g := llm.ProviderGroupConfig{Options: map[string]any{"region": "us-west-2", "bedrock": true, "max_tokens": float64(2048)}}
	assert.Equal(t, "us-west-2", g.StringOption("region", ""))
	assert.Equal(t, "fallback", g.StringOption("missing", "fallback"))
	assert.True(t, g.BoolOption("bedrock"))
	assert.Equal(t, 2048, g.IntOption("max_tokens", 1))
	assert.Equal(t, 7, g.IntOption("missing", 7))
}

func TestContainsAny(t *testing.T) {
	assert.True(t, llm.ContainsAny(errors.New("HTTP 503 Service Unavailable"), "503"))
	assert.False(t, llm.ContainsAny(nil, "503"))
	assert.False(t, llm.ContainsAny(errors.New("bad request"), "503", "overloaded"))
}
