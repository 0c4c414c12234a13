package matrix

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/conversation"
	"github.com/parleyhq/parley/template"
	"github.com/parleyhq/parley/transcript"
	"github.com/parleyhq/parley/types"
)

// defaultTemperature applies when Options.Temperature is zero.
const defaultTemperature = 1.0

// AdapterFactory builds a live adapter for one descriptor. The root package
// provides the production factory; tests substitute scripted backends.
type AdapterFactory func(desc backend.Descriptor) (backend.Adapter, error)

// FamilyLimit caps the request rate for one backend family across the whole
// matrix.
type FamilyLimit struct {
	RPS   float64
	Burst int
}

// Options configures a matrix run.
type Options struct {
	// Pairs overrides the cartesian product when non-empty. Entries should
	// be distinct.
	Pairs [][2]string
	// TranscriptDir receives one transcript per pair.
	TranscriptDir string
	// Templates loads the conversation template.
	Templates *template.Store
	// NewAdapter builds the per-slot adapters.
	NewAdapter AdapterFactory
	// Registry resolves backend keys; nil means the builtin registry.
	Registry *backend.Registry
	// Temperature applies to both slots of every pair; 0 means 1.0.
	Temperature float64
	// MaxTurns bounds each conversation; 0 means unbounded.
	MaxTurns int
	// Parallel bounds concurrently running pairs; values below 1 mean 1.
	Parallel int
	// FamilyLimits installs one shared token bucket per family. Families
	// without an entry, or with RPS <= 0, run unthrottled.
	FamilyLimits map[backend.Family]FamilyLimit
	// Logger may be nil.
	Logger *zap.Logger
}

// PairResult reports one pair's outcome. Err is set when the pair failed to
// assemble or its run ended in a backend failure; sibling pairs are
// unaffected either way.
type PairResult struct {
	Pair           [2]string
	TranscriptPath string
	Turns          int
	Reason         conversation.TerminationReason
	Err            error
}

// Run executes one conversation per pair and returns the results in pair
// order. Setup problems that poison every pair (an unknown key, a missing
// or wrong-arity template) fail the whole matrix before any backend
// traffic; everything after that is collected per pair.
func Run(ctx context.Context, keys []string, templateName string, opts Options) ([]PairResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "matrix"))

	if opts.Templates == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "matrix needs a template store")
	}
	if opts.NewAdapter == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "matrix needs an adapter factory")
	}
	if strings.TrimSpace(opts.TranscriptDir) == "" {
		return nil, types.NewError(types.ErrInvalidConfig, "matrix needs a transcript directory")
	}

	pairs := opts.Pairs
	if len(pairs) == 0 {
		pairs = cartesian(dedupe(keys))
	}
	if len(pairs) == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "no backend pairs to run")
	}

	reg := opts.Registry
	if reg == nil {
		reg = backend.BuiltinRegistry()
	}

	descs := make(map[string]backend.Descriptor)
	for _, pair := range pairs {
		for _, key := range pair {
			if _, ok := descs[key]; ok {
				continue
			}
			desc, ok := reg.Lookup(key)
			if !ok {
				return nil, types.Errorf(types.ErrBackendUnavailable, "unknown backend key %q", key)
			}
			descs[key] = desc
		}
	}

	// Every pair shares the same two-slot template.
	configs, err := opts.Templates.Load(templateName, 2)
	if err != nil {
		return nil, err
	}

	temp := opts.Temperature
	if temp == 0 {
		temp = defaultTemperature
	}

	limiters := make(map[backend.Family]*rate.Limiter)
	for family, limit := range opts.FamilyLimits {
		if limit.RPS <= 0 {
			continue
		}
		burst := limit.Burst
		if burst < 1 {
			burst = 1
		}
		limiters[family] = rate.NewLimiter(rate.Limit(limit.RPS), burst)
	}

	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 1
	}

	logger.Info("matrix started",
		zap.Int("pairs", len(pairs)),
		zap.String("template", templateName),
		zap.Int("parallel", parallel))

	params := runParams{
		templateName: templateName,
		dir:          opts.TranscriptDir,
		temperature:  temp,
		maxTurns:     opts.MaxTurns,
		factory:      opts.NewAdapter,
		limiters:     limiters,
		logger:       logger,
	}

	results := make([]PairResult, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, pair := range pairs {
		i, pair := i, pair
		results[i].Pair = pair
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i].Err = gctx.Err()
				return nil
			}
			res, err := runPair(gctx, [2]backend.Descriptor{descs[pair[0]], descs[pair[1]]}, configs, params)
			if res != nil {
				results[i].TranscriptPath = res.TranscriptPath
				results[i].Turns = res.Turns
				results[i].Reason = res.Reason
			}
			if err != nil {
				results[i].Err = err
				logger.Warn("pair failed",
					zap.String("first", pair[0]),
					zap.String("second", pair[1]),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i := range results {
		if results[i].Err != nil {
			failed++
		}
	}
	logger.Info("matrix finished",
		zap.Int("pairs", len(pairs)),
		zap.Int("failed", failed))
	return results, ctx.Err()
}

type runParams struct {
	templateName string
	dir          string
	temperature  float64
	maxTurns     int
	factory      AdapterFactory
	limiters     map[backend.Family]*rate.Limiter
	logger       *zap.Logger
}

// runPair assembles and drives one conversation. Partial transcripts flush
// through the orchestrator even when the run dies mid-way.
func runPair(ctx context.Context, descs [2]backend.Descriptor, configs []template.ActorConfig, p runParams) (*conversation.Result, error) {
	specs := make([]conversation.ActorSpec, len(configs))
	adapters := make([]backend.Adapter, len(configs))
	for i, cfg := range configs {
		specs[i] = conversation.ActorSpec{
			SystemPrompt: cfg.SystemPrompt,
			Context:      cfg.Context,
			Temperature:  p.temperature,
		}
		adapter, err := p.factory(descs[i])
		if err != nil {
			return nil, err
		}
		adapters[i] = backend.WithRateLimit(adapter, p.limiters[descs[i].Family])
	}

	actors, err := conversation.BuildActors(specs, adapters)
	if err != nil {
		return nil, err
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

	// One id for both the header and the run, so the transcript's "run:" line
	// matches the orchestrator's logs.
	runID := uuid.New()
	writer, err := transcript.NewWriter(p.dir, transcript.Meta{
		Template:      p.templateName,
		RunID:         runID,
		Descriptors:   descs[:],
		ActorNames:    names,
		SystemPrompts: prompts,
		Temperatures:  temps,
	}, p.logger)
	if err != nil {
		return nil, err
	}

	orch, err := conversation.NewOrchestrator(actors, conversation.RunConfig{RunID: runID, MaxTurns: p.maxTurns}, writer, nil, p.logger)
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx)
}

// dedupe keeps first occurrences, preserving order.
func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// cartesian expands keys into every ordered pair, diagonal included.
func cartesian(keys []string) [][2]string {
	pairs := make([][2]string, 0, len(keys)*len(keys))
	for _, a := range keys {
		for _, b := range keys {
			pairs = append(pairs, [2]string{a, b})
		}
	}
	return pairs
}
