package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsAndNormalization(t *testing.T) {
	path := writeTempConfig(t, `
env: test
gateway:
  clientId: CID
  accessToken: TOKEN
strategy:
  tradeCapital: 1000
  maxLadderStocks: 5
  topNGainers: 3
  topNLosers: 4
  addOnPct: 0.5
  initialStopLossPct: 0.5
  trailingStopLossPct: 0.5
  targetPct: 2.0
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://api.dhan.co", cfg.Gateway.BaseURL)
	require.Equal(t, 1.0, cfg.Gateway.RequestsPerSec)
	require.Equal(t, 5, cfg.Gateway.MaxConnections)
	// clamp-sum 在加载时即生效
	require.Equal(t, 3, cfg.Strategy.TopNGainers)
	require.Equal(t, 2, cfg.Strategy.TopNLosers)
}

func TestLoadRejectsMissingEnv(t *testing.T) {
	path := writeTempConfig(t, `
gateway:
  clientId: CID
strategy:
  tradeCapital: 1000
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
env: test
strategy:
  tradeCapital: 500
`)
	t.Setenv("DHAN_CLIENT_ID", "ENV_CID")
	t.Setenv("DHAN_ACCESS_TOKEN", "ENV_TOKEN")

	cfg, err := LoadWithEnvOverrides(path)
	require.NoError(t, err)
	require.Equal(t, "ENV_CID", cfg.Gateway.ClientID)
	require.Equal(t, "ENV_TOKEN", cfg.Gateway.AccessToken)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
