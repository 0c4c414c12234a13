package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/types"
)

// InterruptMarker is one interrupt token; two in a row form the control
// sequence that ends a run.
const InterruptMarker = "^C"

// ControlSequence is the fixed two-marker token pair an actor emits to stop
// the conversation.
const ControlSequence = InterruptMarker + InterruptMarker

// TerminationReason classifies how a run ended.
type TerminationReason string

const (
	// ReasonMaxTurns: the configured turn limit was reached.
	ReasonMaxTurns TerminationReason = "maxTurnsReached"
	// ReasonControlSequence: a produced turn contained the control sequence.
	ReasonControlSequence TerminationReason = "controlSequenceDetected"
	// ReasonBackendFailure: a backend call failed; the partial transcript was
	// still flushed.
	ReasonBackendFailure TerminationReason = "backendFailure"
)

// Recorder buffers turns during a run and flushes them once at termination.
// transcript.Writer satisfies this; tests substitute lighter fakes.
type Recorder interface {
	// Record appends one produced turn to the buffer.
	Record(actorIndex int, actorName, content string)
	// Finalize writes the buffered run out exactly once and returns the
	// artifact path. cause is non-nil only for backend failures.
	Finalize(reason string, cause error) (string, error)
}

// TurnSink receives every produced turn as it happens, for console echo.
// A nil sink disables echoing.
type TurnSink func(turnIndex, actorIndex int, actorName, content string)

// ActorSpec is one resolved template slot ready for assembly: prompt and
// seed context still carry unresolved placeholders at this point.
type ActorSpec struct {
	SystemPrompt string
	Context      []types.Message
	Temperature  float64
}

// BuildActors binds template slots to the selected backend adapters.
//
// Validation happens here, before any backend traffic: the slot count must
// equal the adapter count (ACTOR_COUNT_MISMATCH otherwise), and every
// selected adapter must hold its credential (BACKEND_UNAVAILABLE surfaces
// from CheckCredentials). Unselected families are never checked.
//
// Placeholders in prompts and seed context resolve against the final actor
// line-up; seed entries keep their authored roles.
func BuildActors(specs []ActorSpec, adapters []backend.Adapter) ([]*Actor, error) {
	if len(specs) != len(adapters) {
		return nil, types.Errorf(types.ErrActorCountMismatch,
			"template provides %d actor slots but %d backends were selected", len(specs), len(adapters))
	}

	for _, ad := range adapters {
		if err := ad.CheckCredentials(); err != nil {
			return nil, err
		}
	}

	bindings := make([]ActorBinding, len(adapters))
	for i, ad := range adapters {
		d := ad.Descriptor()
		bindings[i] = ActorBinding{Name: d.ActorName(i + 1), Family: string(d.Family)}
	}

	actors := make([]*Actor, len(specs))
	for i, spec := range specs {
		prompt := ResolvePlaceholders(spec.SystemPrompt, bindings)
		a := NewActor(bindings[i].Name, adapters[i], prompt, spec.Temperature)
		for _, m := range spec.Context {
			a.Observe(m.Role, ResolvePlaceholders(m.Content, bindings))
		}
		actors[i] = a
	}
	return actors, nil
}

// RunConfig configures one run.
type RunConfig struct {
	// RunID identifies the run in logs and the transcript header. The zero
	// value means a fresh id is generated at construction.
	RunID uuid.UUID
	// MaxTurns limits the total turn count; 0 means unbounded.
	MaxTurns int
}

// Result is the outcome of a terminated run.
type Result struct {
	RunID          uuid.UUID
	Turns          int
	Reason         TerminationReason
	TranscriptPath string
	Duration       time.Duration
}

// Orchestrator owns an ordered actor list for the lifetime of one run and
// drives the sequential turn loop. Independent runs share nothing and may
// execute in parallel; a single Orchestrator must not be reused.
type Orchestrator struct {
	actors   []*Actor
	cfg      RunConfig
	recorder Recorder
	sink     TurnSink
	logger   *zap.Logger
}

// NewOrchestrator assembles a single-use orchestrator. recorder may be nil
// when the caller does not want a transcript (tests, dry runs); sink may be
// nil to disable echo.
func NewOrchestrator(actors []*Actor, cfg RunConfig, recorder Recorder, sink TurnSink, logger *zap.Logger) (*Orchestrator, error) {
	if len(actors) == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "a run needs at least one actor")
	}
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		actors:   actors,
		cfg:      cfg,
		recorder: recorder,
		sink:     sink,
		logger:   logger.With(zap.String("component", "orchestrator"), zap.String("run_id", cfg.RunID.String())),
	}, nil
}

// Run drives the turn loop until termination and flushes the recorder
// exactly once. The returned Result is always non-nil with the reason set.
// The error is the backend failure that ended the run, or the flush error
// when the run itself succeeded but the transcript could not be written.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	o.logger.Info("run started",
		zap.Int("actors", len(o.actors)),
		zap.Int("max_turns", o.cfg.MaxTurns))

	var (
		reason TerminationReason
		cause  error
		turn   int
	)
	for {
		if o.cfg.MaxTurns > 0 && turn >= o.cfg.MaxTurns {
			reason = ReasonMaxTurns
			break
		}

		idx := turn % len(o.actors)
		actor := o.actors[idx]

		content, err := actor.Produce(ctx)
		if err != nil {
			reason = ReasonBackendFailure
			cause = err
			o.logger.Warn("turn failed",
				zap.Int("turn", turn),
				zap.String("actor", actor.Name),
				zap.String("backend", actor.Descriptor().Key),
				zap.Error(err))
			break
		}

		if o.recorder != nil {
			o.recorder.Record(idx, actor.Name, content)
		}
		if o.sink != nil {
			o.sink(turn, idx, actor.Name, content)
		}
		for j, other := range o.actors {
			if j != idx {
				other.Observe(types.RoleUser, content)
			}
		}
		o.logger.Debug("turn completed",
			zap.Int("turn", turn),
			zap.String("actor", actor.Name),
			zap.Int("content_len", len(content)))
		turn++

		if strings.Contains(content, ControlSequence) {
			reason = ReasonControlSequence
			break
		}
	}

	result := &Result{
		RunID:    o.cfg.RunID,
		Turns:    turn,
		Reason:   reason,
		Duration: time.Since(start),
	}

	if o.recorder != nil {
		path, ferr := o.recorder.Finalize(string(reason), cause)
		if ferr != nil {
			o.logger.Error("transcript flush failed", zap.Error(ferr))
			if cause == nil {
				cause = ferr
			}
		}
		result.TranscriptPath = path
	}

	o.logger.Info("run ended",
		zap.String("reason", string(reason)),
		zap.Int("turns", turn),
		zap.String("transcript", result.TranscriptPath),
		zap.Duration("duration", result.Duration))
	return result, cause
}
