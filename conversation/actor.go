package conversation

import (
	"context"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/types"
)

// Actor is one participant slot in a run, bound to a backend adapter. It
// accumulates a private, actor-relative view of the conversation: its own
// prior output carries role assistant, everything it observed carries the
// role it was observed with.
//
// An Actor is not safe for concurrent use. The orchestrator's sequential
// turn loop is the only caller during a run, which provides the required
// serialization; no two Produce calls on the same actor may overlap.
type Actor struct {
	Name         string
	SystemPrompt string
	Temperature  float64

	adapter backend.Adapter
	history []types.Message
}

// NewActor binds a display name, adapter, resolved system prompt and sampling
// temperature into a fresh actor with empty history.
func NewActor(name string, adapter backend.Adapter, systemPrompt string, temperature float64) *Actor {
	return &Actor{
		Name:         name,
		SystemPrompt: systemPrompt,
		Temperature:  temperature,
		adapter:      adapter,
	}
}

// Descriptor exposes the bound backend's capability record.
func (a *Actor) Descriptor() backend.Descriptor {
	return a.adapter.Descriptor()
}

// Observe appends one entry to the actor's history with the role given by
// the caller. Other actors' turns arrive as user; seed context arrives with
// its authored role untouched.
func (a *Actor) Observe(role types.Role, content string) {
	a.history = append(a.history, types.Message{Role: role, Content: content})
}

// Seed replays template context entries into the history verbatim. Seed data
// is authored from the actor's own perspective already, so no role flip
// applies.
func (a *Actor) Seed(messages []types.Message) {
	for _, m := range messages {
		a.Observe(m.Role, m.Content)
	}
}

// Produce asks the bound backend for the actor's next turn, appends the
// reply to the history as assistant, and returns it. The adapter owns the
// wall-clock timeout; ctx only carries run-scoped cancellation.
func (a *Actor) Produce(ctx context.Context) (string, error) {
	reply, err := a.adapter.Complete(ctx, &backend.Request{
		SystemPrompt: a.SystemPrompt,
		History:      a.history,
		Temperature:  a.Temperature,
	})
	if err != nil {
		return "", err
	}
	a.Observe(types.RoleAssistant, reply)
	return reply, nil
}

// History returns a copy of the accumulated entries.
func (a *Actor) History() []types.Message {
	return types.CloneMessages(a.history)
}
