package backend

import (
	"context"

	"github.com/parleyhq/parley/types"
)

// Request is the uniform completion request every adapter accepts. The
// adapter translates it into the backend-specific wire shape; callers never
// see per-family conventions.
type Request struct {
	// SystemPrompt is the actor's system prompt. Empty means none. How it
	// reaches the backend (dedicated channel vs. folded into the first user
	// message) is the adapter's concern.
	SystemPrompt string

	// History is the actor-relative conversation so far, oldest first.
	History []types.Message

	// Temperature is the sampling temperature requested by the run. Adapters
	// clamp or drop it per family rules.
	Temperature float64
}

// LastContent returns the content of the most recent history entry, or ""
// when the history is empty. Tool backends forward exactly this.
func (r *Request) LastContent() string {
	if len(r.History) == 0 {
		return ""
	}
	return r.History[len(r.History)-1].Content
}

// Adapter is the single interface the conversation engine calls. One adapter
// instance is bound to one Descriptor for the lifetime of a run.
//
// CheckCredentials runs once at setup, before any turn; a missing credential
// surfaces as BACKEND_UNAVAILABLE and no network traffic occurs. Complete is
// invoked once per turn, strictly sequentially within a run, and owns its own
// wall-clock timeout. Adapters never retry; failures surface as
// BACKEND_CALL_FAILED (or TIMEOUT_EXCEEDED) for the orchestrator to handle.
type Adapter interface {
	// Name returns the adapter's identifying name, usually the family.
	Name() string

	// Descriptor returns the static capability record this adapter serves.
	Descriptor() Descriptor

	// CheckCredentials verifies the required credential is present in the
	// environment. Called at run setup only for selected families.
	CheckCredentials() error

	// Complete produces the next turn's content for the given request.
	Complete(ctx context.Context, req *Request) (string, error)
}
