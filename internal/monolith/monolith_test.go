package monolith

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/liquidity-engine/internal/config"
	"github.com/fd1az/liquidity-engine/internal/di"
	"github.com/fd1az/liquidity-engine/internal/logger"
)

type recordingModule struct {
	name  string
	trace *[]string
}

func (m recordingModule) RegisterServices(c di.Container) error {
	c.Register(m.name, m.name+"-service")
	*m.trace = append(*m.trace, "register:"+m.name)
	return nil
}

func (m recordingModule) Startup(ctx context.Context, mono Monolith) error {
	*m.trace = append(*m.trace, "start:"+m.name)
	mono.OnClose(func() error {
		*m.trace = append(*m.trace, "close:"+m.name)
		return nil
	})
	return nil
}

func TestMonolith_Lifecycle(t *testing.T) {
	cfg := &config.Config{}
	mono, err := New(cfg, logger.New(io.Discard, logger.LevelError, "test", nil))
	require.NoError(t, err)

	var trace []string
	a := recordingModule{name: "a", trace: &trace}
	b := recordingModule{name: "b", trace: &trace}

	require.NoError(t, mono.RegisterModules(a, b))
	require.NoError(t, mono.StartModules(context.Background(), a, b))
	require.NoError(t, mono.Close())

	assert.Equal(t, []string{
		"register:a", "register:b",
		"start:a", "start:b",
		"close:b", "close:a",
	}, trace)
	assert.Same(t, cfg, mono.Services().Get("config"))
	assert.Equal(t, "a-service", mono.Services().Get("a"))
}

func TestMonolith_CloseJoinsErrors(t *testing.T) {
	mono, err := New(&config.Config{}, logger.New(io.Discard, logger.LevelError, "test", nil))
	require.NoError(t, err)

	first := errors.New("first")
	mono.OnClose(func() error { return first })
	mono.OnClose(func() error { return nil })

	assert.ErrorIs(t, mono.Close(), first)
	assert.NoError(t, mono.Close(), "hooks run once")
}
