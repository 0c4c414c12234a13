package config

import (
	"github.com/parleyhq/parley/backend"
)

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Log:         DefaultLogConfig(),
		Transcripts: TranscriptsConfig{Dir: "transcripts"},
		Templates:   TemplatesConfig{Dir: "templates"},
		Catalog:     CatalogConfig{Path: "catalog.db"},
		Defaults:    DefaultRunDefaults(),
		Backends:    DefaultBackendsConfig(),
	}
}

// DefaultLogConfig logs human-readable lines to stderr so stdout stays
// clean for transcript echo.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	}
}

// DefaultRunDefaults: the stock two-slot template, temperature 1.0 and an
// unbounded turn budget.
func DefaultRunDefaults() RunDefaults {
	return RunDefaults{
		Template:    "default",
		Temperature: 1.0,
		MaxTurns:    0,
	}
}

// DefaultBackendsConfig names each family's conventional key variable and
// leaves everything else to the adapters.
func DefaultBackendsConfig() BackendsConfig {
	return BackendsConfig{
		Anthropic:      BackendConfig{KeyEnv: backend.DefaultCredentialEnv(backend.FamilyAnthropic)},
		OpenAI:         BackendConfig{KeyEnv: backend.DefaultCredentialEnv(backend.FamilyOpenAI)},
		Gemini:         BackendConfig{KeyEnv: backend.DefaultCredentialEnv(backend.FamilyGemini)},
		WorldInterface: BackendConfig{KeyEnv: backend.DefaultCredentialEnv(backend.FamilyWorldInterface)},
	}
}
