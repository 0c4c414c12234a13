package conversation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func twoBindings() []ActorBinding {
	return []ActorBinding{
		{Name: "Claude 1", Family: "anthropic"},
		{Name: "GPT4o 2", Family: "openai"},
	}
}

func TestResolvePlaceholders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"actor token", "you are {lm1_actor}", "you are Claude 1"},
		{"company token", "built by {lm2_company}", "built by openai"},
		{"both actors", "{lm1_actor} talks to {lm2_actor}", "Claude 1 talks to GPT4o 2"},
		{"repeated token", "{lm1_actor} and {lm1_actor}", "Claude 1 and Claude 1"},
		{"ordinal out of range", "greet {lm3_actor}", "greet {lm3_actor}"},
		{"ordinal zero", "greet {lm0_actor}", "greet {lm0_actor}"},
		{"unknown field", "{lm1_role} stays", "{lm1_role} stays"},
		{"malformed token", "{lm_actor} stays", "{lm_actor} stays"},
		{"no tokens", "plain text", "plain text"},
		{"empty input", "", ""},
		{"mixed recognized and not", "{lm1_actor} meets {lm9_company}", "Claude 1 meets {lm9_company}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ResolvePlaceholders(tt.in, twoBindings()))
		})
	}
}

func TestResolvePlaceholders_NoBindings(t *testing.T) {
	t.Parallel()
	in := "hello {lm1_actor}"
	assert.Equal(t, in, ResolvePlaceholders(in, nil))
}

func TestProperty_ResolvePlaceholders_TokenFree(t *testing.T) {
	// Text without braces passes through untouched regardless of bindings.
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`[a-zA-Z0-9 .,!?\n-]*`).Draw(rt, "text")
		n := rapid.IntRange(0, 5).Draw(rt, "bindings")
		bindings := make([]ActorBinding, n)
		for i := range bindings {
			bindings[i] = ActorBinding{Name: fmt.Sprintf("Actor %d", i+1), Family: "anthropic"}
		}
		assert.Equal(t, text, ResolvePlaceholders(text, bindings))
	})
}

func TestProperty_ResolvePlaceholders_InRangeTokens(t *testing.T) {
	// Every in-range token resolves; out-of-range ordinals survive verbatim.
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "actors")
		bindings := make([]ActorBinding, n)
		for i := range bindings {
			bindings[i] = ActorBinding{
				Name:   fmt.Sprintf("Actor %d", i+1),
				Family: fmt.Sprintf("family-%d", i+1),
			}
		}

		ordinal := rapid.IntRange(1, 12).Draw(rt, "ordinal")
		field := rapid.SampledFrom([]string{"actor", "company"}).Draw(rt, "field")
		token := fmt.Sprintf("{lm%d_%s}", ordinal, field)
		out := ResolvePlaceholders("prefix "+token+" suffix", bindings)

		if ordinal > n {
			assert.Contains(t, out, token)
			return
		}
		assert.NotContains(t, out, token)
		if field == "actor" {
			assert.True(t, strings.Contains(out, bindings[ordinal-1].Name))
		} else {
			assert.True(t, strings.Contains(out, bindings[ordinal-1].Family))
		}
	})
}
