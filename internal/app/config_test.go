package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartx/internal/app"
	"heartx/internal/domain"
)

func flagsFor(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("home", "", "")
	fs.String("identity", "", "")
	fs.String("relay", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := app.LoadConfig(flagsFor(t, "--home", home))
	require.NoError(t, err)

	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Relay.URL)
	assert.Equal(t, 10*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, 1024, cfg.Directory.MaxEntries)
	assert.Equal(t, 24*time.Hour, cfg.Directory.MaxAge)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "raw", cfg.Heart.SelfSignature)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileEnvFlagPrecedence(t *testing.T) {
	home := t.TempDir()
	yaml := "identity: from-file\nsender_tag: cs\npoll:\n  interval: 5s\nheart:\n  self_signature: hkdf\nrelay:\n  url: http://file:1\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("HEARTX_IDENTITY", "from-env")
	t.Setenv("HEARTX_DIRECTORY_TTL", "1m")

	cfg, err := app.LoadConfig(flagsFor(t, "--home", home, "--relay", "https://flag:2"))
	require.NoError(t, err)

	assert.Equal(t, domain.Identity("from-env"), cfg.Identity)
	assert.Equal(t, domain.SenderTag("cs"), cfg.SenderTag)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, time.Minute, cfg.Directory.TTL)
	assert.Equal(t, "hkdf", cfg.Heart.SelfSignature)
	assert.Equal(t, "https://flag:2", cfg.Relay.URL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HEARTX_HEART_SELF_SIGNATURE", "rot13")
	_, err := app.LoadConfig(flagsFor(t, "--home", home))
	assert.ErrorContains(t, err, "self_signature")

	t.Setenv("HEARTX_HEART_SELF_SIGNATURE", "raw")
	_, err = app.LoadConfig(flagsFor(t, "--home", home, "--relay", "ftp://x"))
	assert.ErrorContains(t, err, "relay.url")

	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("poll: [unclosed"), 0o600))
	_, err = app.LoadConfig(flagsFor(t, "--home", home))
	assert.ErrorContains(t, err, "read config")
}
