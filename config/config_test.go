package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/agentwatch/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5, cfg.MaxTracked)
	assert.Equal(t, 300*time.Second, cfg.StaleAfter.Duration)
	assert.Equal(t, 60*time.Second, cfg.SweepInterval.Duration)
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.SettleDelay.Duration)
	assert.Equal(t, 30, cfg.Watch.OpenRetryLimit)
	assert.Equal(t, 10*time.Millisecond, cfg.Lock.InitialBackoff.Duration)
	assert.Equal(t, RegistrationAsk, cfg.Registration.Mode)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	t.Setenv("AW_STATE_ROOT", "/srv/state")
	content := `
state_file: ${AW_STATE_ROOT}/sessions.json
max_tracked: 3
stale_after: 2m
watch:
  settle_delay: 250ms
registration:
  mode: auto
discovery:
  ignore:
    - /tmp/**
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/state/sessions.json", cfg.StatePath())
	assert.Equal(t, 3, cfg.MaxTracked)
	assert.Equal(t, 2*time.Minute, cfg.StaleAfter.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.SettleDelay.Duration)
	// Untouched values keep their defaults.
	assert.Equal(t, time.Second, cfg.Watch.OpenRetryInterval.Duration)
	assert.Equal(t, 60*time.Second, cfg.SweepInterval.Duration)
	assert.Equal(t, RegistrationAuto, cfg.Registration.Mode)
	assert.Equal(t, []string{"/tmp/**"}, cfg.Discovery.Ignore)

	var logCfg struct {
		Level string `yaml:"level"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "debug", logCfg.Level)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
max_tracked = 7
sweep_interval = "30s"

[lock]
retries = 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxTracked)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval.Duration)
	assert.Equal(t, 4, cfg.Lock.Retries)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad mode", "registration:\n  mode: sometimes\n"},
		{"zero capacity", "max_tracked: 0\n"},
		{"bad duration", "stale_after: soon\n"},
		{"not yaml", "max_tracked: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.content), "yaml")
			require.Error(t, err)
			code := errors.GetCode(err)
			assert.True(t, code == errors.ErrCodeConfigValidation || code == errors.ErrCodeConfigInvalid, "code %s", code)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "config.yml"))
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestLoadDefaultWithoutFile(t *testing.T) {
	t.Setenv("AGENTWATCH_HOME", t.TempDir())
	cfg, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, Default().MaxTracked, cfg.MaxTracked)
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_tracked")
	assert.Contains(t, string(data), "settle_delay")
	assert.NotContains(t, string(data), "Extensions")
}

func TestHookCommandOverride(t *testing.T) {
	cfg := Default()
	cfg.Registration.Command = "/opt/bin/agentwatch hook"
	assert.Equal(t, "/opt/bin/agentwatch hook", cfg.HookCommand())
}

func TestHookCommandQuotesExecutable(t *testing.T) {
	tests := []struct {
		exe  string
		want string
	}{
		{"/usr/local/bin/agentwatch", "/usr/local/bin/agentwatch hook"},
		{"/Users/me/My Tools/agentwatch", "'/Users/me/My Tools/agentwatch' hook"},
		{"/opt/it's/agentwatch", `'/opt/it'\''s/agentwatch' hook`},
		{"/opt/$HOME/agentwatch", "'/opt/$HOME/agentwatch' hook"},
	}
	for _, tt := range tests {
		t.Run(tt.exe, func(t *testing.T) {
			assert.Equal(t, tt.want, hookCommandFor(tt.exe))
		})
	}
}
