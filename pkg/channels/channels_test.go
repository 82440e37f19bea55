package channels

import (
	"errors"
	"testing"

	"orbit/pkg/config"
	"orbit/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannel struct{ id string }

func (s stubChannel) ID() string                                { return s.id }
func (s stubChannel) Start(gateway.ChannelContext) error        { return nil }
func (s stubChannel) Stop() error                               { return nil }
func (s stubChannel) Send(gateway.SessionContext, string) error { return nil }

type stubFactory struct {
	ch  gateway.Channel
	err error
}

func (f stubFactory) Create(jsoniter.RawMessage, *config.SystemConfig) (gateway.Channel, error) {
	return f.ch, f.err
}

func TestLoadFromConfig(t *testing.T) {
	RegisterChannel("stub-ok", stubFactory{ch: stubChannel{id: "stub-ok"}})
	RegisterChannel("stub-off", stubFactory{})
	RegisterChannel("stub-broken", stubFactory{err: errors.New("bad token")})

	got := LoadFromConfig(map[string]jsoniter.RawMessage{
		"stub-ok":        jsoniter.RawMessage(`{}`),
		"stub-off":       jsoniter.RawMessage(`{}`),
		"stub-broken":    jsoniter.RawMessage(`{}`),
		"carrier-pigeon": jsoniter.RawMessage(`{}`),
	}, config.DefaultSystemConfig())

	require.Len(t, got, 1)
	assert.Equal(t, "stub-ok", got[0].ID())
	assert.Contains(t, Names(), "stub-ok")
}
