package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	require.Equal(t, DefaultEndpoints, cfg.Endpoints)
	require.Equal(t, "./erc20_tokens.txt", cfg.Out)
	require.Equal(t, 8*time.Hour, cfg.UTCOffset)
	require.Equal(t, 4*time.Second, cfg.PollInterval)
	require.Equal(t, 60*time.Second, cfg.StallTimeout)
	require.Equal(t, 256, cfg.QueueSize)
	require.False(t, cfg.UseReceipts)
	require.False(t, cfg.ForcePolling)
	require.Equal(t, "info", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("WATCHER_ENDPOINTS", "wss://a.example/ws, ,https://b.example")
	t.Setenv("WATCHER_STALL_TIMEOUT", "30s")
	t.Setenv("WATCHER_FORCE_POLLING", "true")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"wss://a.example/ws", "https://b.example"}, cfg.Endpoints)
	require.Equal(t, 30*time.Second, cfg.StallTimeout)
	require.True(t, cfg.ForcePolling)
}

func TestLoadFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringSlice("endpoints", nil, "")
	flags.Duration("utc-offset", 0, "")
	flags.String("out", "", "")
	flags.Bool("force-polling", false, "")
	require.NoError(t, flags.Parse([]string{"--endpoints=https://x,https://y", "--utc-offset=-5h", "--force-polling"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	require.Equal(t, []string{"https://x", "https://y"}, cfg.Endpoints)
	require.Equal(t, -5*time.Hour, cfg.UTCOffset)
	require.Equal(t, "./erc20_tokens.txt", cfg.Out)
	require.True(t, cfg.ForcePolling)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watcher.yaml")
	content := "endpoints:\n  - https://one\n  - https://two\nout: /tmp/tokens.txt\nuse-receipts: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"https://one", "https://two"}, cfg.Endpoints)
	require.Equal(t, "/tmp/tokens.txt", cfg.Out)
	require.True(t, cfg.UseReceipts)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	empty := cfg
	empty.Endpoints = nil
	require.Error(t, empty.Validate())

	noQueue := cfg
	noQueue.QueueSize = 0
	require.Error(t, noQueue.Validate())

	negative := cfg
	negative.StallTimeout = -time.Second
	require.Error(t, negative.Validate())
}

func TestFixedZone(t *testing.T) {
	loc := FixedZone(8 * time.Hour)
	ts := time.Date(2024, 1, 1, 16, 30, 0, 0, time.UTC).In(loc)
	require.Equal(t, "2024-01-02 00:30", ts.Format("2006-01-02 15:04"))
	require.Equal(t, "UTC+08:00", loc.String())

	require.Equal(t, "UTC-05:30", FixedZone(-5*time.Hour-30*time.Minute).String())
}
