package relayserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9090\"\nmetrics: false\nrate:\n  burst: 3\n"), 0o600))
	t.Setenv("HEARTX_RELAY_RATE_RPS", "0.5")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.False(t, cfg.Metrics)
	assert.Equal(t, 3, cfg.Rate.Burst)
	assert.Equal(t, 0.5, cfg.Rate.RPS)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
