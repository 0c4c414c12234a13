package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/testutil"
	"github.com/parleyhq/parley/testutil/mocks"
	"github.com/parleyhq/parley/types"
)

func sonnetDesc() backend.Descriptor {
	return backend.Descriptor{
		Key:                "sonnet",
		APIName:            "claude-3-5-sonnet-20240620",
		DisplayName:        "Claude",
		Family:             backend.FamilyAnthropic,
		MaxOutputTokens:    1024,
		SupportsSystemRole: true,
	}
}

func TestActor_ProduceAppendsAssistant(t *testing.T) {
	t.Parallel()

	sb := mocks.NewScriptedBackend(sonnetDesc()).WithResponse("the lights hum softly")
	actor := NewActor("Claude 1", sb, "you are a terminal", 0.8)
	actor.Observe(types.RoleUser, "what do you see?")

	reply, err := actor.Produce(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, "the lights hum softly", reply)

	testutil.AssertMessagesEqual(t, []types.Message{
		types.NewUserMessage("what do you see?"),
		types.NewAssistantMessage("the lights hum softly"),
	}, actor.History())

	// The backend saw the pre-reply history plus prompt and temperature.
	call, ok := sb.LastCall()
	require.True(t, ok)
	assert.Equal(t, "you are a terminal", call.SystemPrompt)
	assert.Equal(t, 0.8, call.Temperature)
	testutil.AssertMessagesEqual(t, []types.Message{
		types.NewUserMessage("what do you see?"),
	}, call.History)
}

func TestActor_SeedKeepsAuthoredRoles(t *testing.T) {
	t.Parallel()

	actor := NewActor("Claude 1", mocks.NewScriptedBackend(sonnetDesc()), "", 1.0)
	actor.Seed([]types.Message{
		types.NewUserMessage("simulator@anthropic:~/$"),
		types.NewAssistantMessage("ls"),
	})

	testutil.AssertMessagesEqual(t, []types.Message{
		types.NewUserMessage("simulator@anthropic:~/$"),
		types.NewAssistantMessage("ls"),
	}, actor.History())
}

func TestActor_ProduceErrorLeavesHistoryUntouched(t *testing.T) {
	t.Parallel()

	boom := types.NewError(types.ErrBackendCallFailed, "upstream 500")
	sb := mocks.NewScriptedBackend(sonnetDesc()).WithError(boom)
	actor := NewActor("Claude 1", sb, "", 1.0)
	actor.Observe(types.RoleUser, "hello")

	_, err := actor.Produce(testutil.TestContext(t))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrBackendCallFailed))
	assert.Len(t, actor.History(), 1)
}

func TestActor_HistoryReturnsCopy(t *testing.T) {
	t.Parallel()

	actor := NewActor("Claude 1", mocks.NewScriptedBackend(sonnetDesc()), "", 1.0)
	actor.Observe(types.RoleUser, "original")

	got := actor.History()
	got[0].Content = "mutated"
	assert.Equal(t, "original", actor.History()[0].Content)
}
