package recreate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/personality"
	"github.com/parleyhq/parley/template"
	"github.com/parleyhq/parley/transcript"
	"github.com/parleyhq/parley/types"
)

// Options steer a rebuild.
type Options struct {
	// Personality applies a built-in profile's prompt modifier to every
	// rebuilt slot.
	Personality string
	// MaxSeedTurns caps how many of the record's turns seed each slot's
	// context; zero or less seeds all of them.
	MaxSeedTurns int
	// BackendKeys replaces the per-slot backend selection. Empty derives the
	// keys from the record's backend ids.
	BackendKeys []string
	// AllowAnomalies rebuilds records carrying structural anomalies instead
	// of rejecting them.
	AllowAnomalies bool
}

// Template is a rebuilt transcript, ready for the template store and a new
// run.
type Template struct {
	Name    string
	Configs []template.ActorConfig
	Keys    []string
}

// Build converts a parsed record into template form. reg may be nil for the
// builtin registry.
func Build(rec *transcript.Record, reg *backend.Registry, opts Options) (*Template, error) {
	if rec == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "nil transcript record")
	}
	if reg == nil {
		reg = backend.BuiltinRegistry()
	}
	n := len(rec.Actors)
	if n == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "transcript record has no actors")
	}
	if rec.Anomalous() && !opts.AllowAnomalies {
		return nil, types.Errorf(types.ErrInvalidConfig,
			"transcript carries %d structural anomalies (first: %s); set AllowAnomalies to rebuild it",
			len(rec.Anomalies), rec.Anomalies[0].Detail)
	}

	keys, descs, err := resolveSlots(rec, reg, opts.BackendKeys)
	if err != nil {
		return nil, err
	}

	turns := rec.Turns
	if opts.MaxSeedTurns > 0 && len(turns) > opts.MaxSeedTurns {
		turns = turns[:opts.MaxSeedTurns]
	}

	configs := make([]template.ActorConfig, n)
	for i := 0; i < n; i++ {
		cfg := template.ActorConfig{
			CLI:     descs[i].Tool,
			Context: make([]types.Message, 0, len(turns)),
		}
		if rec.SystemPrompts[i] != nil {
			cfg.SystemPrompt = *rec.SystemPrompts[i]
		}
		// Each slot sees the run from its own side: its turns replay as
		// assistant output, everyone else's as user input.
		for _, turn := range turns {
			if turn.ActorIndex == i {
				cfg.Context = append(cfg.Context, types.NewAssistantMessage(turn.Content))
			} else {
				cfg.Context = append(cfg.Context, types.NewUserMessage(turn.Content))
			}
		}
		configs[i] = cfg
	}

	if opts.Personality != "" {
		profile, ok := personality.Lookup(opts.Personality)
		if !ok {
			return nil, types.Errorf(types.ErrInvalidConfig,
				"unknown personality %q (available: %s)", opts.Personality, strings.Join(personality.Keys(), ", "))
		}
		for i := range configs {
			configs[i] = personality.Apply(configs[i], profile)
		}
	}

	return &Template{
		Name:    fmt.Sprintf("recreated_%s_%d", rec.Template, rec.Timestamp.Unix()),
		Configs: configs,
		Keys:    keys,
	}, nil
}

// resolveSlots pairs every transcript actor with a backend descriptor, either
// from the caller's replacement keys or from the ids the record carries.
func resolveSlots(rec *transcript.Record, reg *backend.Registry, override []string) ([]string, []backend.Descriptor, error) {
	n := len(rec.Actors)
	keys := make([]string, n)
	descs := make([]backend.Descriptor, n)

	if len(override) > 0 {
		if len(override) != n {
			return nil, nil, types.Errorf(types.ErrActorCountMismatch,
				"%d replacement backends for %d transcript actors", len(override), n)
		}
		for i, key := range override {
			d, ok := reg.Lookup(key)
			if !ok {
				return nil, nil, types.Errorf(types.ErrBackendUnavailable, "unknown backend key %q", key)
			}
			keys[i] = d.Key
			descs[i] = d
		}
		return keys, descs, nil
	}

	for i, id := range rec.BackendIDs {
		d, ok := reg.Resolve(id)
		if !ok {
			return nil, nil, types.Errorf(types.ErrBackendUnavailable,
				"transcript backend %q matches no registered descriptor; pass replacement keys", id)
		}
		keys[i] = d.Key
		descs[i] = d
	}
	return keys, descs, nil
}

// BatchItem is the outcome for one input file of a batch rebuild. Exactly one
// of Template and Err is set.
type BatchItem struct {
	File     string
	Template *Template
	Err      error
}

// BatchRecreate parses and rebuilds many transcripts concurrently. Per-file
// failures land in the item, never abort siblings; results align with the
// input order. The returned error reports only context cancellation.
func BatchRecreate(ctx context.Context, files []string, parallel int, reg *backend.Registry, opts Options, logger *zap.Logger) ([]BatchItem, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "recreate"))
	if parallel < 1 {
		parallel = 1
	}

	parser := transcript.NewParser(logger)
	items := make([]BatchItem, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, file := range files {
		i, file := i, file
		items[i].File = file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			rec, err := parser.ParseFile(file)
			if err != nil {
				items[i].Err = err
				logger.Warn("transcript rejected", zap.String("file", file), zap.Error(err))
				return nil
			}
			tpl, err := Build(rec, reg, opts)
			if err != nil {
				items[i].Err = err
				logger.Warn("rebuild failed", zap.String("file", file), zap.Error(err))
				return nil
			}
			items[i].Template = tpl
			return nil
		})
	}
	_ = g.Wait()
	return items, ctx.Err()
}
