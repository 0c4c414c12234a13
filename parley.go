// Package parley runs multi-turn conversations between language model
// backends and works with the transcripts they leave behind.
//
// Usage:
//
//	res, err := parley.Run(ctx, parley.Options{
//		BackendKeys: []string{"opus", "gpt4o"},
//		MaxTurns:    20,
//	})
//	rec, err := parley.ParseFile(res.TranscriptPath)
//	out, err := parley.Recreate(ctx, res.TranscriptPath, parley.RecreateOptions{})
//
// The facade assembles configuration, the descriptor registry, the template
// store, actors, and the orchestrator. Embedders needing finer control use
// the underlying packages directly; the CLI consumes only this package and
// config.
package parley

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/backend/anthropic"
	"github.com/parleyhq/parley/backend/gemini"
	"github.com/parleyhq/parley/backend/openai"
	"github.com/parleyhq/parley/backend/worldiface"
	"github.com/parleyhq/parley/catalog"
	"github.com/parleyhq/parley/config"
	"github.com/parleyhq/parley/conversation"
	"github.com/parleyhq/parley/matrix"
	"github.com/parleyhq/parley/recreate"
	"github.com/parleyhq/parley/template"
	"github.com/parleyhq/parley/transcript"
	"github.com/parleyhq/parley/types"
)

// NewAdapterFactory returns the production adapter constructor: it dispatches
// on the descriptor's family and applies the config's per-family settings.
// A positive MaxTokens in the family config overrides the descriptor's output
// budget.
func NewAdapterFactory(cfg *config.Config, logger *zap.Logger) matrix.AdapterFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return func(desc backend.Descriptor) (backend.Adapter, error) {
		bc := cfg.Backends.ByFamily(desc.Family)
		if bc.MaxTokens > 0 {
			desc.MaxOutputTokens = bc.MaxTokens
		}
		switch desc.Family {
		case backend.FamilyAnthropic:
			return anthropic.New(desc, anthropic.Config{BaseURL: bc.BaseURL, APIKeyEnv: bc.KeyEnv, Timeout: bc.Timeout}, logger), nil
		case backend.FamilyOpenAI:
			return openai.New(desc, openai.Config{BaseURL: bc.BaseURL, APIKeyEnv: bc.KeyEnv, Timeout: bc.Timeout}, logger), nil
		case backend.FamilyGemini:
			return gemini.New(desc, gemini.Config{BaseURL: bc.BaseURL, APIKeyEnv: bc.KeyEnv, Timeout: bc.Timeout}, logger), nil
		case backend.FamilyWorldInterface:
			return worldiface.New(desc, worldiface.Config{BaseURL: bc.BaseURL, APIKeyEnv: bc.KeyEnv, Timeout: bc.Timeout}, logger), nil
		}
		return nil, types.Errorf(types.ErrBackendUnavailable, "no adapter for backend family %q", desc.Family)
	}
}

// Options configures one conversation run. Zero values defer to the config's
// defaults section.
type Options struct {
	// Config supplies directories, backend settings, and run defaults; nil
	// means config.DefaultConfig().
	Config *config.Config
	// Registry resolves backend keys; nil means the builtin registry.
	Registry *backend.Registry
	// Template names the conversation template; empty means the config
	// default.
	Template string
	// BackendKeys selects one backend per template slot, in slot order.
	BackendKeys []string
	// Temperature applies to every actor; 0 means the config default.
	Temperature float64
	// MaxTurns bounds the run; 0 means the config default, which itself may
	// be 0 for unbounded.
	MaxTurns int
	// RunID identifies the run; the zero value means a fresh id.
	RunID uuid.UUID
	// Sink receives each turn as it is produced, for console echo.
	Sink conversation.TurnSink
	// NewAdapter overrides the production adapter constructor; nil means
	// NewAdapterFactory(Config, Logger). Tests substitute scripted backends
	// here.
	NewAdapter matrix.AdapterFactory
	// Logger may be nil.
	Logger *zap.Logger
}

// Run executes one conversation: template slots are bound to the selected
// backends, placeholders resolved, and every produced turn buffered into a
// transcript that flushes exactly once at termination. The returned result
// is non-nil whenever the run started; the error reports the backend failure
// that ended it, if any.
func Run(ctx context.Context, opts Options) (*conversation.Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = backend.BuiltinRegistry()
	}

	if len(opts.BackendKeys) == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "a run needs at least one backend key")
	}
	descs := make([]backend.Descriptor, len(opts.BackendKeys))
	for i, key := range opts.BackendKeys {
		d, ok := reg.Lookup(key)
		if !ok {
			return nil, types.Errorf(types.ErrBackendUnavailable, "unknown backend key %q", key)
		}
		descs[i] = d
	}

	templateName := opts.Template
	if templateName == "" {
		templateName = cfg.Defaults.Template
	}
	store := template.NewStore(cfg.Templates.Dir, logger)
	configs, err := store.Load(templateName, len(descs))
	if err != nil {
		return nil, err
	}

	temp := opts.Temperature
	if temp == 0 {
		temp = cfg.Defaults.Temperature
	}
	maxTurns := opts.MaxTurns
	if maxTurns == 0 {
		maxTurns = cfg.Defaults.MaxTurns
	}

	factory := opts.NewAdapter
	if factory == nil {
		factory = NewAdapterFactory(cfg, logger)
	}
	limiters := familyLimiters(cfg.Backends)

	specs := make([]conversation.ActorSpec, len(configs))
	adapters := make([]backend.Adapter, len(configs))
	for i, tc := range configs {
		specs[i] = conversation.ActorSpec{
			SystemPrompt: tc.SystemPrompt,
			Context:      tc.Context,
			Temperature:  temp,
		}
		adapter, err := factory(descs[i])
		if err != nil {
			return nil, err
		}
		adapters[i] = backend.WithRateLimit(adapter, limiters[descs[i].Family])
	}

	actors, err := conversation.BuildActors(specs, adapters)
	if err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}

	names := make([]string, len(actors))
	prompts := make([]*string, len(actors))
	temps := make([]float64, len(actors))
	for i, actor := range actors {
		names[i] = actor.Name
		prompt := actor.SystemPrompt
		prompts[i] = &prompt
		temps[i] = actor.Temperature
	}

	writer, err := transcript.NewWriter(cfg.Transcripts.Dir, transcript.Meta{
		Template:      templateName,
		RunID:         runID,
		Descriptors:   descs,
		ActorNames:    names,
		SystemPrompts: prompts,
		Temperatures:  temps,
	}, logger)
	if err != nil {
		return nil, err
	}

	orch, err := conversation.NewOrchestrator(actors, conversation.RunConfig{RunID: runID, MaxTurns: maxTurns}, writer, opts.Sink, logger)
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx)
}

// ParseFile reads one transcript in any supported layout and returns its
// parsed record. Structural oddities land in the record's Anomalies, never
// in the error.
func ParseFile(path string) (*transcript.Record, error) {
	return transcript.NewParser(nil).ParseFile(path)
}

// RecreateOptions steers Recreate.
type RecreateOptions struct {
	// Config locates the template store; nil means config.DefaultConfig().
	Config *config.Config
	// Registry resolves backend ids; nil means the builtin registry.
	Registry *backend.Registry
	// Personality applies a built-in profile to every rebuilt slot.
	Personality string
	// MaxSeedTurns caps how many turns seed each slot's context; 0 seeds all.
	MaxSeedTurns int
	// BackendKeys replaces the per-slot backend selection.
	BackendKeys []string
	// AllowAnomalies rebuilds records carrying structural anomalies.
	AllowAnomalies bool
	// Logger may be nil.
	Logger *zap.Logger
}

// RecreateResult reports the rebuilt template and where it was stored.
type RecreateResult struct {
	Template     *recreate.Template
	TemplatePath string
	// Keys are the backend keys a follow-up run should select, slot-ordered.
	Keys []string
}

// Recreate parses a transcript, rebuilds it into template form, and writes
// the template into the config's store so a follow-up run can pick the
// conversation back up.
func Recreate(ctx context.Context, path string, opts RecreateOptions) (*RecreateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rec, err := transcript.NewParser(logger).ParseFile(path)
	if err != nil {
		return nil, err
	}
	tpl, err := recreate.Build(rec, opts.Registry, recreate.Options{
		Personality:    opts.Personality,
		MaxSeedTurns:   opts.MaxSeedTurns,
		BackendKeys:    opts.BackendKeys,
		AllowAnomalies: opts.AllowAnomalies,
	})
	if err != nil {
		return nil, err
	}

	store := template.NewStore(cfg.Templates.Dir, logger)
	tplPath, err := store.Create(tpl.Name, tpl.Configs)
	if err != nil {
		return nil, err
	}
	return &RecreateResult{Template: tpl, TemplatePath: tplPath, Keys: tpl.Keys}, nil
}

// MatrixOptions configures a batch sweep. Zero values defer to the config's
// defaults section.
type MatrixOptions struct {
	Config   *config.Config
	Registry *backend.Registry
	// Keys expand into every ordered pair, self-pairs included.
	Keys []string
	// Pairs overrides the cartesian product when non-empty.
	Pairs       [][2]string
	Template    string
	Temperature float64
	MaxTurns    int
	// Parallel bounds concurrently running pairs.
	Parallel int
	// NewAdapter overrides the production adapter constructor; nil means
	// NewAdapterFactory(Config, Logger).
	NewAdapter matrix.AdapterFactory
	Logger     *zap.Logger
}

// Matrix sweeps every pair through the shared template with production
// adapters, honoring the config's per-family rate limits across the whole
// batch.
func Matrix(ctx context.Context, opts MatrixOptions) ([]matrix.PairResult, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	templateName := opts.Template
	if templateName == "" {
		templateName = cfg.Defaults.Template
	}
	temp := opts.Temperature
	if temp == 0 {
		temp = cfg.Defaults.Temperature
	}
	maxTurns := opts.MaxTurns
	if maxTurns == 0 {
		maxTurns = cfg.Defaults.MaxTurns
	}

	factory := opts.NewAdapter
	if factory == nil {
		factory = NewAdapterFactory(cfg, logger)
	}

	return matrix.Run(ctx, opts.Keys, templateName, matrix.Options{
		Pairs:         opts.Pairs,
		TranscriptDir: cfg.Transcripts.Dir,
		Templates:     template.NewStore(cfg.Templates.Dir, logger),
		NewAdapter:    factory,
		Registry:      opts.Registry,
		Temperature:   temp,
		MaxTurns:      maxTurns,
		Parallel:      opts.Parallel,
		FamilyLimits:  FamilyLimits(cfg.Backends),
		Logger:        logger,
	})
}

// Templates opens the template store at the config's templates directory.
func Templates(cfg *config.Config, logger *zap.Logger) *template.Store {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return template.NewStore(cfg.Templates.Dir, logger)
}

// OpenCatalog opens the transcript catalog at the config's catalog path,
// creating the database on first use. The caller owns Close.
func OpenCatalog(cfg *config.Config, logger *zap.Logger) (*catalog.Store, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return catalog.Open(cfg.Catalog.Path, logger)
}

// FamilyLimits converts the config's per-family rate settings into matrix
// limits. Families with a non-positive rate are left unthrottled.
func FamilyLimits(b config.BackendsConfig) map[backend.Family]matrix.FamilyLimit {
	limits := make(map[backend.Family]matrix.FamilyLimit)
	for family, bc := range perFamily(b) {
		if bc.RateRPS <= 0 {
			continue
		}
		limits[family] = matrix.FamilyLimit{RPS: bc.RateRPS, Burst: bc.RateBurst}
	}
	return limits
}

func familyLimiters(b config.BackendsConfig) map[backend.Family]*rate.Limiter {
	limiters := make(map[backend.Family]*rate.Limiter)
	for family, bc := range perFamily(b) {
		if bc.RateRPS <= 0 {
			continue
		}
		burst := bc.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiters[family] = rate.NewLimiter(rate.Limit(bc.RateRPS), burst)
	}
	return limiters
}

func perFamily(b config.BackendsConfig) map[backend.Family]config.BackendConfig {
	return map[backend.Family]config.BackendConfig{
		backend.FamilyAnthropic:      b.Anthropic,
		backend.FamilyOpenAI:         b.OpenAI,
		backend.FamilyGemini:         b.Gemini,
		backend.FamilyWorldInterface: b.WorldInterface,
	}
}
