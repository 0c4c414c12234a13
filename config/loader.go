package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/types"
)

// DefaultPath is where the CLI looks for a config file when no --config
// flag is given. A missing file is not an error; defaults apply.
const DefaultPath = "parley.yaml"

// Config is the full runtime configuration.
type Config struct {
	Log         LogConfig         `yaml:"log" env:"LOG"`
	Transcripts TranscriptsConfig `yaml:"transcripts" env:"TRANSCRIPTS"`
	Templates   TemplatesConfig   `yaml:"templates" env:"TEMPLATES"`
	Catalog     CatalogConfig     `yaml:"catalog" env:"CATALOG"`
	Defaults    RunDefaults       `yaml:"defaults" env:"DEFAULTS"`
	Backends    BackendsConfig    `yaml:"backends" env:"BACKENDS"`
}

// LogConfig drives the zap logger the CLI builds at startup.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths in zap's sink syntax (stdout, stderr, file paths).
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TranscriptsConfig locates the transcript tree runs write into.
type TranscriptsConfig struct {
	Dir string `yaml:"dir" env:"DIR"`
}

// TemplatesConfig locates the template store directory.
type TemplatesConfig struct {
	Dir string `yaml:"dir" env:"DIR"`
}

// CatalogConfig locates the sqlite catalog file.
type CatalogConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// RunDefaults applies when an invocation leaves the knob unset.
type RunDefaults struct {
	Template    string  `yaml:"template" env:"TEMPLATE"`
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// MaxTurns 0 runs until a control sequence or cancellation.
	MaxTurns int `yaml:"max_turns" env:"MAX_TURNS"`
}

// BackendsConfig holds one section per backend family.
type BackendsConfig struct {
	Anthropic      BackendConfig `yaml:"anthropic" env:"ANTHROPIC"`
	OpenAI         BackendConfig `yaml:"openai" env:"OPENAI"`
	Gemini         BackendConfig `yaml:"gemini" env:"GEMINI"`
	WorldInterface BackendConfig `yaml:"world_interface" env:"WORLD_INTERFACE"`
}

// BackendConfig tunes one provider family. Zero values defer to the
// adapter's own defaults; RateRPS 0 means unthrottled.
type BackendConfig struct {
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// KeyEnv names the environment variable holding the API key.
	KeyEnv  string        `yaml:"key_env" env:"KEY_ENV"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// MaxTokens overrides the descriptor's completion budget when positive.
	MaxTokens int     `yaml:"max_tokens" env:"MAX_TOKENS"`
	RateRPS   float64 `yaml:"rate_rps" env:"RATE_RPS"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_BURST"`
}

// ByFamily returns the section for a backend family. Unknown families get a
// zero section, which means adapter defaults all the way down.
func (b BackendsConfig) ByFamily(family backend.Family) BackendConfig {
	switch family {
	case backend.FamilyAnthropic:
		return b.Anthropic
	case backend.FamilyOpenAI:
		return b.OpenAI
	case backend.FamilyGemini:
		return b.Gemini
	case backend.FamilyWorldInterface:
		return b.WorldInterface
	default:
		return BackendConfig{}
	}
}

// Loader assembles a Config from defaults, a YAML file and the environment.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the PARLEY env prefix and no file.
func NewLoader() *Loader {
	return &Loader{envPrefix: "PARLEY"}
}

// WithConfigPath sets the YAML file to load. A missing file is tolerated.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a validation hook run after the built-in checks.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration: defaults, then file, then env, then
// validation. The returned Config is safe to use as-is.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", l.configPath, err)
	}
	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks the struct, joining env tags with underscores:
// Backends.Anthropic.KeyEnv becomes PARLEY_BACKENDS_ANTHROPIC_KEY_ENV.
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("set %s: %w", envKey, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	}
	return nil
}

// MustLoad loads the given file and panics on failure. Meant for examples
// and tooling, not library code.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}
	return cfg
}

// LoadFromEnv builds a config from defaults and environment alone.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks the configuration for values no component can honor.
func (c *Config) Validate() error {
	var errs []string

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	if strings.TrimSpace(c.Transcripts.Dir) == "" {
		errs = append(errs, "transcripts dir must not be empty")
	}
	if strings.TrimSpace(c.Templates.Dir) == "" {
		errs = append(errs, "templates dir must not be empty")
	}
	if strings.TrimSpace(c.Catalog.Path) == "" {
		errs = append(errs, "catalog path must not be empty")
	}

	if c.Defaults.Temperature < 0 || c.Defaults.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("default temperature %.2f must be between 0 and 2", c.Defaults.Temperature))
	}
	if c.Defaults.MaxTurns < 0 {
		errs = append(errs, "default max_turns must not be negative")
	}

	for _, fam := range []struct {
		name string
		cfg  BackendConfig
	}{
		{"anthropic", c.Backends.Anthropic},
		{"openai", c.Backends.OpenAI},
		{"gemini", c.Backends.Gemini},
		{"world_interface", c.Backends.WorldInterface},
	} {
		if fam.cfg.Timeout < 0 {
			errs = append(errs, fmt.Sprintf("%s timeout must not be negative", fam.name))
		}
		if fam.cfg.MaxTokens < 0 {
			errs = append(errs, fmt.Sprintf("%s max_tokens must not be negative", fam.name))
		}
		if fam.cfg.RateRPS < 0 {
			errs = append(errs, fmt.Sprintf("%s rate_rps must not be negative", fam.name))
		}
		if fam.cfg.RateBurst < 0 {
			errs = append(errs, fmt.Sprintf("%s rate_burst must not be negative", fam.name))
		}
	}

	if len(errs) > 0 {
		return types.Errorf(types.ErrInvalidConfig, "config validation: %s", strings.Join(errs, "; "))
	}
	return nil
}
