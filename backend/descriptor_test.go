package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinRegistry(t *testing.T) {
	r := BuiltinRegistry()
	require.Equal(t, len(Builtin()), r.Len())

	tests := []struct {
		key     string
		apiName string
		family  Family
		system  bool
		tool    bool
	}{
		{"sonnet", "claude-3-5-sonnet-20240620", FamilyAnthropic, true, false},
		{"opus", "claude-3-opus-20240229", FamilyAnthropic, true, false},
		{"gpt4o", "gpt-4o-2024-08-06", FamilyOpenAI, false, false},
		{"o1-preview", "o1-preview", FamilyOpenAI, false, false},
		{"o1-mini", "o1-mini", FamilyOpenAI, false, false},
		{"gemini", "gemini-1.5-pro", FamilyGemini, true, false},
		{"cli", "world-interface", FamilyWorldInterface, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			d, ok := r.Lookup(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.apiName, d.APIName)
			assert.Equal(t, tt.family, d.Family)
			assert.Equal(t, tt.system, d.SupportsSystemRole)
			assert.Equal(t, tt.tool, d.Tool)
		})
	}
}

func TestRegistry_LookupIsCaseInsensitive(t *testing.T) {
	r := BuiltinRegistry()

	d, ok := r.Lookup("  OPUS ")
	require.True(t, ok)
	assert.Equal(t, "opus", d.Key)

	d, ok = r.ByAPIName("Claude-3-Opus-20240229")
	require.True(t, ok)
	assert.Equal(t, "opus", d.Key)
}

func TestRegistry_ResolveTriesKeyThenAPIName(t *testing.T) {
	r := BuiltinRegistry()

	d, ok := r.Resolve("gpt4o")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-2024-08-06", d.APIName)

	d, ok = r.Resolve("gpt-4o-2024-08-06")
	require.True(t, ok)
	assert.Equal(t, "gpt4o", d.Key)

	_, ok = r.Resolve("unknown-model")
	assert.False(t, ok)
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		Descriptor{Key: "a", APIName: "model-a"},
		Descriptor{Key: "A", APIName: "model-a2"},
	)
	require.Error(t, err)

	_, err = NewRegistry(Descriptor{APIName: "nameless"})
	require.Error(t, err)
}

func TestDescriptor_ActorName(t *testing.T) {
	r := BuiltinRegistry()

	opus, _ := r.Lookup("opus")
	assert.Equal(t, "Claude 1", opus.ActorName(1))
	assert.Equal(t, "Claude 2", opus.ActorName(2))

	cli, _ := r.Lookup("cli")
	assert.Equal(t, "CLI", cli.ActorName(2))
}

func TestRegistry_ListReturnsCopy(t *testing.T) {
	r := BuiltinRegistry()
	list := r.List()
	require.NotEmpty(t, list)
	list[0].Key = "mutated"

	fresh := r.List()
	assert.NotEqual(t, "mutated", fresh[0].Key)
}
