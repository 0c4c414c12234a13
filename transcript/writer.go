package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/conversation"
	"github.com/parleyhq/parley/types"
)

// Header status values for the two non-failure terminations. Backend
// failures write "aborted (<cause>)".
const (
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
)

// Meta fixes a transcript's header before the first turn arrives. All
// per-actor slices are slot-ordered and must have equal length.
type Meta struct {
	Template    string
	RunID       uuid.UUID // zero value: generated
	Started     time.Time // zero value: now
	Descriptors []backend.Descriptor
	ActorNames  []string
	// SystemPrompts[i] == nil means slot i's prompt is unknown and no block
	// is written; a known-empty prompt is a pointer to "" and writes an
	// empty block.
	SystemPrompts []*string
	Temperatures  []float64
}

type bufferedTurn struct {
	actorIndex int
	actorName  string
	content    string
}

// Writer accumulates turns in memory and flushes the whole run exactly once
// at termination. It satisfies conversation.Recorder. Record and Finalize
// are safe for concurrent use, though the orchestrator's sequential loop
// never needs that.
type Writer struct {
	dir    string
	meta   Meta
	logger *zap.Logger

	mu    sync.Mutex
	turns []bufferedTurn
	done  bool
	path  string
}

// NewWriter validates the header metadata up front so a run can fail before
// any backend traffic rather than at flush time.
func NewWriter(dir string, meta Meta, logger *zap.Logger) (*Writer, error) {
	if dir == "" {
		return nil, types.NewError(types.ErrInvalidConfig, "transcript directory is required")
	}
	if meta.Template == "" {
		return nil, types.NewError(types.ErrInvalidConfig, "template name is required for the transcript header")
	}
	n := len(meta.Descriptors)
	if n == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "a transcript needs at least one actor")
	}
	if len(meta.ActorNames) != n || len(meta.SystemPrompts) != n || len(meta.Temperatures) != n {
		return nil, types.Errorf(types.ErrInvalidConfig,
			"header slices disagree: %d descriptors, %d names, %d prompts, %d temperatures",
			n, len(meta.ActorNames), len(meta.SystemPrompts), len(meta.Temperatures))
	}
	if meta.RunID == uuid.Nil {
		meta.RunID = uuid.New()
	}
	if meta.Started.IsZero() {
		meta.Started = time.Now()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		dir:    dir,
		meta:   meta,
		logger: logger.With(zap.String("component", "transcript_writer"), zap.String("run_id", meta.RunID.String())),
	}, nil
}

// Record appends one produced turn to the buffer. Nothing touches disk here;
// the single flush happens in Finalize. Turns arriving after the flush are
// dropped.
func (w *Writer) Record(actorIndex int, actorName, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	w.turns = append(w.turns, bufferedTurn{actorIndex: actorIndex, actorName: actorName, content: content})
}

// Finalize performs the run's single flush and returns the artifact path.
// cause is non-nil only for backend failures and is tagged into the status
// line so partial transcripts are never silently truncated. Calling Finalize
// again returns the already-written path.
func (w *Writer) Finalize(reason string, cause error) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return w.path, nil
	}

	status := statusFor(reason, cause)
	path := w.targetPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create transcript directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(w.render(status)), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	w.done = true
	w.path = path

	w.logger.Info("transcript flushed",
		zap.String("path", path),
		zap.Int("turns", len(w.turns)),
		zap.String("status", status))
	return path, nil
}

// targetPath derives <dir>/<family join>/<key join>_<template>_<stamp>.txt.
func (w *Writer) targetPath() string {
	var families []string
	seen := make(map[backend.Family]bool, len(w.meta.Descriptors))
	keys := make([]string, len(w.meta.Descriptors))
	for i, d := range w.meta.Descriptors {
		keys[i] = d.Key
		if !seen[d.Family] {
			seen[d.Family] = true
			families = append(families, string(d.Family))
		}
	}
	name := fmt.Sprintf("%s_%s_%s.txt",
		strings.Join(keys, "_"), w.meta.Template, w.meta.Started.Format("20060102_150405"))
	return filepath.Join(w.dir, strings.Join(families, "_"), name)
}

func (w *Writer) render(status string) string {
	apiNames := make([]string, len(w.meta.Descriptors))
	for i, d := range w.meta.Descriptors {
		apiNames[i] = d.APIName
	}
	temps := make([]string, len(w.meta.Temperatures))
	for i, t := range w.meta.Temperatures {
		temps[i] = fmt.Sprintf("%.2f", t)
	}

	var b strings.Builder
	b.WriteString("template: " + w.meta.Template + "\n")
	b.WriteString("models: " + strings.Join(apiNames, "_") + "\n")
	b.WriteString("actors: " + strings.Join(w.meta.ActorNames, ", ") + "\n")
	b.WriteString("temp: " + strings.Join(temps, ", ") + "\n")
	b.WriteString("started: " + w.meta.Started.Format(time.RFC3339) + "\n")
	b.WriteString("run: " + w.meta.RunID.String() + "\n")
	b.WriteString("status: " + status + "\n\n")

	for i, p := range w.meta.SystemPrompts {
		if p == nil {
			continue
		}
		fmt.Fprintf(&b, "<%s#SYSTEM>\n%s\n</s>\n\n", w.meta.ActorNames[i], *p)
	}
	for _, t := range w.turns {
		fmt.Fprintf(&b, "### %s ###\n%s\n\n", t.actorName, t.content)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// statusFor maps a termination reason onto the header status line.
func statusFor(reason string, cause error) string {
	switch reason {
	case string(conversation.ReasonMaxTurns), "":
		return StatusCompleted
	case string(conversation.ReasonControlSequence):
		return StatusInterrupted
	case string(conversation.ReasonBackendFailure):
		detail := "backend failure"
		if cause != nil {
			detail = firstLine(cause.Error())
		}
		return fmt.Sprintf("aborted (%s)", detail)
	}
	return reason
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
