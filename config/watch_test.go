package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watchConfigV1 = `
env: test
strategy:
  tradeCapital: 1000
  cyclesPerStock: 3
`

const watchConfigV2 = `
env: test
strategy:
  tradeCapital: 2000
  cyclesPerStock: 5
`

func TestWatcherDeliversUpdatedConfig(t *testing.T) {
	path := writeTempConfig(t, watchConfigV1)

	w, err := NewWatcher(path, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	updates := make(chan AppConfig, 4)
	require.NoError(t, w.Start(context.Background(), func(cfg AppConfig) {
		updates <- cfg
	}))

	require.NoError(t, os.WriteFile(path, []byte(watchConfigV2), 0o644))

	select {
	case cfg := <-updates:
		assert.Equal(t, 2000.0, cfg.Strategy.TradeCapital)
		assert.Equal(t, 5, cfg.Strategy.CyclesPerStock)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatcherIgnoresBrokenConfig(t *testing.T) {
	path := writeTempConfig(t, watchConfigV1)

	w, err := NewWatcher(path, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	updates := make(chan AppConfig, 4)
	require.NoError(t, w.Start(context.Background(), func(cfg AppConfig) {
		updates <- cfg
	}))

	// 非法 yaml 不触发回调
	require.NoError(t, os.WriteFile(path, []byte(":::: not yaml"), 0o644))

	select {
	case <-updates:
		t.Fatal("broken config must not be applied")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	path := writeTempConfig(t, watchConfigV1)
	w, err := NewWatcher(path, 0)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), nil))

	assert.NoError(t, w.Stop())
}

func TestWatcherMissingFile(t *testing.T) {
	w, err := NewWatcher("/nonexistent/config.yaml", 0)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background(), nil))
}
