package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:3001", cfg.Listen)
	assert.Equal(t, "v2", cfg.ResultSchema)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "GITHUB_TOKEN", cfg.GitHub.TokenEnv)
	assert.Equal(t, "https://api.github.com/graphql", cfg.GitHub.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.False(t, cfg.Cache.DedupeInflight)
	assert.Equal(t, 60*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Backoff.Initial)
	assert.Equal(t, 5*time.Minute, cfg.Backoff.Max)
	assert.Equal(t, 3*time.Second, cfg.TUI.RefreshInterval)
	assert.Empty(t, cfg.Token, "missing token is not a load error")
	assert.NotEmpty(t, cfg.LogFile)
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("MY_GH_TOKEN", "  ghp_secret  ")
	path := writeFile(t, "config.yaml", `
listen: 0.0.0.0:8080
default_repo: octocat/Hello-World
result_schema: v1
ui_resource_uri: ui://workflow-monitor/board
github:
  token_env: MY_GH_TOKEN
  timeout: 10s
cache:
  ttl: 45s
  max_entries: 20
  dedupe_inflight: true
poll_interval: 2m
watch:
  - repo: octocat/Hello-World
  - repo: " o/r "
    pr: 12
log:
  level: debug
tui:
  refresh_interval: 1s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Listen)
	assert.Equal(t, "octocat/Hello-World", cfg.DefaultRepo)
	assert.Equal(t, "v1", cfg.ResultSchema)
	assert.Equal(t, "ui://workflow-monitor/board", cfg.UIResourceURI)
	assert.Equal(t, "ghp_secret", cfg.Token)
	assert.Equal(t, 10*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, 45*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 20, cfg.Cache.MaxEntries)
	assert.True(t, cfg.Cache.DedupeInflight)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
	assert.Equal(t, []WatchConfig{{Repo: "octocat/Hello-World"}, {Repo: "o/r", PR: 12}}, cfg.Watch)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.TUI.RefreshInterval)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
listen = "127.0.0.1:9000"
default_repo = "o/r"
poll_interval = "30s"

[cache]
ttl_ms = 1500

[rate_limit_backoff]
initial = "1s"
max = "10s"

[[watch]]
repo = "o/r"
pr = 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, "o/r", cfg.DefaultRepo)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.Cache.TTL)
	assert.Equal(t, time.Second, cfg.Backoff.Initial)
	assert.Equal(t, 10*time.Second, cfg.Backoff.Max)
	assert.Equal(t, []WatchConfig{{Repo: "o/r", PR: 3}}, cfg.Watch)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `
listen: 127.0.0.1:3001
default_repo: a/b
cache:
  ttl: 10s
  max_entries: 5
`)
	t.Setenv("WORKFLOW_MONITOR_LISTEN", ":4000")
	t.Setenv("WORKFLOW_MONITOR_DEFAULT_REPO", "c/d")
	t.Setenv("WORKFLOW_MONITOR_CACHE_TTL_MS", "250")
	t.Setenv("WORKFLOW_MONITOR_CACHE_MAX_ENTRIES", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Listen)
	assert.Equal(t, "c/d", cfg.DefaultRepo)
	assert.Equal(t, 250*time.Millisecond, cfg.Cache.TTL)
	assert.Equal(t, 7, cfg.Cache.MaxEntries)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "bad default repo",
			content: "default_repo: no-slash\n",
			wantErr: "default_repo",
		},
		{
			name:    "bad result schema",
			content: "result_schema: v3\n",
			wantErr: "result_schema",
		},
		{
			name:    "bad log level",
			content: "log:\n  level: loud\n",
			wantErr: "log.level",
		},
		{
			name:    "bad poll interval",
			content: "poll_interval: soon\n",
			wantErr: "poll_interval",
		},
		{
			name:    "negative poll interval",
			content: "poll_interval: -1s\n",
			wantErr: "poll_interval must be positive",
		},
		{
			name:    "bad watch repo",
			content: "watch:\n  - repo: nope\n",
			wantErr: "watch[0]",
		},
		{
			name:    "negative watch pr",
			content: "watch:\n  - repo: o/r\n    pr: -2\n",
			wantErr: "watch[0]: pr must be positive",
		},
		{
			name:    "backoff max below initial",
			content: "rate_limit_backoff:\n  initial: 1m\n  max: 10s\n",
			wantErr: "rate_limit_backoff.max",
		},
		{
			name:    "non-numeric ttl env",
			content: "listen: :1\n",
			env:     map[string]string{"WORKFLOW_MONITOR_CACHE_TTL_MS": "fast"},
			wantErr: "WORKFLOW_MONITOR_CACHE_TTL_MS",
		},
		{
			name:    "malformed yaml",
			content: "listen: [\n",
			wantErr: "parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, "config.yaml", tt.content)

			_, err := Load(path)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
