package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"stderr"}, cfg.Log.OutputPaths)

	assert.Equal(t, "transcripts", cfg.Transcripts.Dir)
	assert.Equal(t, "templates", cfg.Templates.Dir)
	assert.Equal(t, "catalog.db", cfg.Catalog.Path)

	assert.Equal(t, "default", cfg.Defaults.Template)
	assert.Equal(t, 1.0, cfg.Defaults.Temperature)
	assert.Equal(t, 0, cfg.Defaults.MaxTurns)

	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.Backends.Anthropic.KeyEnv)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Backends.OpenAI.KeyEnv)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Backends.Gemini.KeyEnv)
	assert.Equal(t, "WORLD_INTERFACE_KEY", cfg.Backends.WorldInterface.KeyEnv)
}

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "transcripts", cfg.Transcripts.Dir)
	assert.Equal(t, 1.0, cfg.Defaults.Temperature)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "parley.yaml")
	yamlContent := `
log:
  level: debug
  format: json
  output_paths: [stdout]

transcripts:
  dir: /var/lib/parley/transcripts

templates:
  dir: /etc/parley/templates

catalog:
  path: /var/lib/parley/catalog.db

defaults:
  template: cli
  temperature: 0.7
  max_turns: 30

backends:
  anthropic:
    base_url: https://anthropic.proxy.internal
    key_env: TEAM_ANTHROPIC_KEY
    timeout: 90s
    rate_rps: 0.5
    rate_burst: 2
  openai:
    max_tokens: 2048
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"stdout"}, cfg.Log.OutputPaths)

	assert.Equal(t, "/var/lib/parley/transcripts", cfg.Transcripts.Dir)
	assert.Equal(t, "/etc/parley/templates", cfg.Templates.Dir)
	assert.Equal(t, "/var/lib/parley/catalog.db", cfg.Catalog.Path)

	assert.Equal(t, "cli", cfg.Defaults.Template)
	assert.Equal(t, 0.7, cfg.Defaults.Temperature)
	assert.Equal(t, 30, cfg.Defaults.MaxTurns)

	assert.Equal(t, "https://anthropic.proxy.internal", cfg.Backends.Anthropic.BaseURL)
	assert.Equal(t, "TEAM_ANTHROPIC_KEY", cfg.Backends.Anthropic.KeyEnv)
	assert.Equal(t, 90*time.Second, cfg.Backends.Anthropic.Timeout)
	assert.Equal(t, 0.5, cfg.Backends.Anthropic.RateRPS)
	assert.Equal(t, 2, cfg.Backends.Anthropic.RateBurst)

	assert.Equal(t, 2048, cfg.Backends.OpenAI.MaxTokens)
	// Untouched sections keep their defaults.
	assert.Equal(t, "OPENAI_API_KEY", cfg.Backends.OpenAI.KeyEnv)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("PARLEY_LOG_LEVEL", "warn")
	t.Setenv("PARLEY_LOG_OUTPUT_PATHS", "stdout, stderr")
	t.Setenv("PARLEY_TRANSCRIPTS_DIR", "/tmp/parley-transcripts")
	t.Setenv("PARLEY_DEFAULTS_MAX_TURNS", "12")
	t.Setenv("PARLEY_DEFAULTS_TEMPERATURE", "0.3")
	t.Setenv("PARLEY_BACKENDS_OPENAI_KEY_ENV", "MY_OPENAI_KEY")
	t.Setenv("PARLEY_BACKENDS_ANTHROPIC_TIMEOUT", "45s")
	t.Setenv("PARLEY_LOG_ENABLE_CALLER", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"stdout", "stderr"}, cfg.Log.OutputPaths)
	assert.True(t, cfg.Log.EnableCaller)
	assert.Equal(t, "/tmp/parley-transcripts", cfg.Transcripts.Dir)
	assert.Equal(t, 12, cfg.Defaults.MaxTurns)
	assert.Equal(t, 0.3, cfg.Defaults.Temperature)
	assert.Equal(t, "MY_OPENAI_KEY", cfg.Backends.OpenAI.KeyEnv)
	assert.Equal(t, 45*time.Second, cfg.Backends.Anthropic.Timeout)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "parley.yaml")
	yamlContent := `
log:
  level: debug
defaults:
  template: yaml-template
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	t.Setenv("PARLEY_LOG_LEVEL", "error")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Log.Level)
	// YAML values without an env override stay put.
	assert.Equal(t, "yaml-template", cfg.Defaults.Template)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_DEFAULTS_MAX_TURNS", "7")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Defaults.MaxTurns)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/no/such/parley.yaml").Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "transcripts", cfg.Transcripts.Dir)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log: [not: valid"), 0o644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestLoader_RejectsInvalidValues(t *testing.T) {
	t.Setenv("PARLEY_DEFAULTS_TEMPERATURE", "3.5")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidConfig))
}

func TestLoader_BadEnvValueSurfaces(t *testing.T) {
	t.Setenv("PARLEY_DEFAULTS_MAX_TURNS", "many")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PARLEY_DEFAULTS_MAX_TURNS")
}

func TestLoader_WithValidator(t *testing.T) {
	rejectAll := func(cfg *Config) error { return assert.AnError }

	_, err := NewLoader().WithValidator(rejectAll).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log level",
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log format",
		},
		{
			name:    "empty transcripts dir",
			modify:  func(c *Config) { c.Transcripts.Dir = "  " },
			wantErr: "transcripts dir",
		},
		{
			name:    "empty catalog path",
			modify:  func(c *Config) { c.Catalog.Path = "" },
			wantErr: "catalog path",
		},
		{
			name:    "temperature out of range",
			modify:  func(c *Config) { c.Defaults.Temperature = 2.5 },
			wantErr: "temperature",
		},
		{
			name:    "negative max turns",
			modify:  func(c *Config) { c.Defaults.MaxTurns = -1 },
			wantErr: "max_turns",
		},
		{
			name:    "negative backend rate",
			modify:  func(c *Config) { c.Backends.Gemini.RateRPS = -1 },
			wantErr: "gemini rate_rps",
		},
		{
			name:    "negative backend timeout",
			modify:  func(c *Config) { c.Backends.OpenAI.Timeout = -time.Second },
			wantErr: "openai timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, types.IsCode(err, types.ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBackendsConfig_ByFamily(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backends.Anthropic.BaseURL = "https://a.example"
	cfg.Backends.WorldInterface.BaseURL = "https://w.example"

	assert.Equal(t, "https://a.example", cfg.Backends.ByFamily(backend.FamilyAnthropic).BaseURL)
	assert.Equal(t, "https://w.example", cfg.Backends.ByFamily(backend.FamilyWorldInterface).BaseURL)
	assert.Equal(t, BackendConfig{}, cfg.Backends.ByFamily(backend.Family("nonsense")))
}

func TestMustLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "parley.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("defaults:\n  max_turns: 5\n"), 0o644))

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 5, cfg.Defaults.MaxTurns)
	})

	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("defaults: [oops"), 0o644))
	assert.Panics(t, func() { MustLoad(broken) })
}
