package backend

import (
	"fmt"
	"sort"
	"strings"
)

// Family identifies one backend calling convention.
type Family string

const (
	FamilyAnthropic      Family = "anthropic"
	FamilyOpenAI         Family = "openai"
	FamilyGemini         Family = "gemini"
	FamilyWorldInterface Family = "world-interface"
)

// DefaultCredentialEnv returns the environment variable conventionally
// holding the family's API key.
func DefaultCredentialEnv(f Family) string {
	switch f {
	case FamilyAnthropic:
		return "ANTHROPIC_API_KEY"
	case FamilyOpenAI:
		return "OPENAI_API_KEY"
	case FamilyGemini:
		return "GEMINI_API_KEY"
	case FamilyWorldInterface:
		return "WORLD_INTERFACE_KEY"
	}
	return ""
}

// Descriptor is the static capability record for one selectable backend.
// Descriptors are plain values; the hidden bookkeeping some families need
// (reasoning-token headroom, temperature clamps) stays inside their adapters
// and is never visible here.
type Descriptor struct {
	// Key is the short alias used on the command line and in filenames.
	Key string `json:"key"`
	// APIName is the wire-level model identifier sent to the backend and
	// written into transcript headers.
	APIName string `json:"api_name"`
	// DisplayName seeds actor names ("Claude 1", "GPT4o 2").
	DisplayName string `json:"display_name"`
	// Family selects the adapter implementation.
	Family Family `json:"family"`
	// MaxOutputTokens is the externally visible per-turn output budget.
	MaxOutputTokens int `json:"max_output_tokens"`
	// SupportsSystemRole is true when the backend accepts a dedicated
	// system-instruction channel; otherwise adapters fold the prompt into
	// the first user message.
	SupportsSystemRole bool `json:"supports_system_role"`
	// Tool marks the world-interface variant: no generative model, the
	// latest turn is forwarded to the command-execution collaborator.
	Tool bool `json:"tool"`
}

// ActorName derives the display name for the actor occupying the given
// 1-based slot. Tool backends keep their bare display name.
func (d Descriptor) ActorName(ordinal int) string {
	if d.Tool {
		return d.DisplayName
	}
	return fmt.Sprintf("%s %d", d.DisplayName, ordinal)
}

// Builtin returns the descriptor set shipped with the module.
func Builtin() []Descriptor {
	return []Descriptor{
		{Key: "sonnet", APIName: "claude-3-5-sonnet-20240620", DisplayName: "Claude", Family: FamilyAnthropic, MaxOutputTokens: 1024, SupportsSystemRole: true},
		{Key: "opus", APIName: "claude-3-opus-20240229", DisplayName: "Claude", Family: FamilyAnthropic, MaxOutputTokens: 1024, SupportsSystemRole: true},
		{Key: "gpt4o", APIName: "gpt-4o-2024-08-06", DisplayName: "GPT4o", Family: FamilyOpenAI, MaxOutputTokens: 1024},
		{Key: "o1-preview", APIName: "o1-preview", DisplayName: "O1", Family: FamilyOpenAI, MaxOutputTokens: 1024},
		{Key: "o1-mini", APIName: "o1-mini", DisplayName: "Mini", Family: FamilyOpenAI, MaxOutputTokens: 1024},
		{Key: "gemini", APIName: "gemini-1.5-pro", DisplayName: "Gemini", Family: FamilyGemini, MaxOutputTokens: 1024, SupportsSystemRole: true},
		{Key: "cli", APIName: "world-interface", DisplayName: "CLI", Family: FamilyWorldInterface, Tool: true},
	}
}

// Registry is an immutable descriptor lookup. It is built once at startup and
// passed explicitly to whoever needs it; there is no mutation after
// construction, so concurrent reads need no synchronization.
type Registry struct {
	byKey  map[string]Descriptor
	byAPI  map[string]Descriptor
	sorted []Descriptor
}

// NewRegistry builds a registry from the given descriptors. Duplicate keys
// are rejected.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		byKey: make(map[string]Descriptor, len(descs)),
		byAPI: make(map[string]Descriptor, len(descs)),
	}
	for _, d := range descs {
		key := strings.ToLower(d.Key)
		if key == "" {
			return nil, fmt.Errorf("descriptor %q has an empty key", d.APIName)
		}
		if _, dup := r.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate descriptor key %q", d.Key)
		}
		r.byKey[key] = d
		if d.APIName != "" {
			r.byAPI[strings.ToLower(d.APIName)] = d
		}
		r.sorted = append(r.sorted, d)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].Key < r.sorted[j].Key })
	return r, nil
}

// BuiltinRegistry returns a registry over Builtin(). It never fails: the
// builtin set is validated by tests.
func BuiltinRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup finds a descriptor by its key alias, case-insensitively.
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	d, ok := r.byKey[strings.ToLower(strings.TrimSpace(key))]
	return d, ok
}

// ByAPIName finds a descriptor by its wire-level model identifier.
func (r *Registry) ByAPIName(name string) (Descriptor, bool) {
	d, ok := r.byAPI[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// Resolve tries Lookup first, then ByAPIName. Transcript headers carry either
// form depending on the layout generation.
func (r *Registry) Resolve(s string) (Descriptor, bool) {
	if d, ok := r.Lookup(s); ok {
		return d, true
	}
	return r.ByAPIName(s)
}

// List returns all descriptors sorted by key.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.sorted))
	copy(out, r.sorted)
	return out
}

// Keys returns all descriptor keys sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.sorted))
	for _, d := range r.sorted {
		keys = append(keys, d.Key)
	}
	return keys
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	return len(r.sorted)
}
