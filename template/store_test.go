package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/testutil"
	"github.com/parleyhq/parley/types"
)

func sampleConfigs() []ActorConfig {
	return []ActorConfig{
		{
			SystemPrompt: "You are {lm1_actor} exploring with {lm2_actor}.",
			Context:      []types.Message{types.NewUserMessage("begin when ready")},
		},
		{
			CLI: true,
		},
	}
}

func TestStore_CreateAndLoad(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir(), nil)

	path, err := store.Create("cli", sampleConfigs())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		`{"system_prompt":"You are {lm1_actor} exploring with {lm2_actor}.","context":[{"role":"user","content":"begin when ready"}]}`+"\n"+
			`{"system_prompt":"","context":[],"cli":true}`+"\n",
		string(data))

	loaded, err := store.Load("cli", 2)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "You are {lm1_actor} exploring with {lm2_actor}.", loaded[0].SystemPrompt)
	assert.Equal(t, []types.Message{types.NewUserMessage("begin when ready")}, loaded[0].Context)
	assert.False(t, loaded[0].CLI)
	assert.True(t, loaded[1].CLI)
	assert.Empty(t, loaded[1].SystemPrompt)
}

func TestStore_LoadCountMismatch(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir(), nil)
	_, err := store.Create("pair", sampleConfigs())
	require.NoError(t, err)

	_, err = store.Load("pair", 3)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrActorCountMismatch))
	assert.Contains(t, err.Error(), "2 actor slots")
	assert.Contains(t, err.Error(), "3 backends")
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir(), nil)
	_, err := store.Load("ghost", 2)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTemplateNotFound))
}

func TestStore_LoadInvalidLine(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir, nil)
	content := `{"system_prompt":"fine","context":[]}` + "\n" + `{broken` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.jsonl"), []byte(content), 0o644))

	_, err := store.Load("bad", 2)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTemplateInvalid))
	assert.Contains(t, err.Error(), "line 2")
}

func TestStore_LoadSkipsBlankLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir, nil)
	content := "\n" + `{"system_prompt":"a","context":[]}` + "\n\n" + `{"system_prompt":"b","context":[]}` + "\n\n\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gaps.jsonl"), []byte(content), 0o644))

	configs, err := store.Load("gaps", 2)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "a", configs[0].SystemPrompt)
	assert.Equal(t, "b", configs[1].SystemPrompt)
}

func TestStore_LoadEmptyFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "void.jsonl"), []byte("\n  \n"), 0o644))

	_, err := store.Load("void", 2)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTemplateInvalid))
}

func TestStore_DefaultMaterializedOnDemand(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir, nil)

	configs, err := store.Load(DefaultName, 2)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Empty(t, configs[0].SystemPrompt)
	assert.Empty(t, configs[0].Context)
	assert.False(t, configs[1].CLI)

	_, err = os.Stat(filepath.Join(dir, DefaultName+".jsonl"))
	require.NoError(t, err)

	// The materialized default is a normal template afterwards: the count
	// check still applies.
	_, err = store.Load(DefaultName, 3)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrActorCountMismatch))
}

func TestStore_List(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewStore(dir, nil)

	names, err := store.List()
	require.NoError(t, err)
	assert.Nil(t, names)

	_, err = store.Create("beta", sampleConfigs())
	require.NoError(t, err)
	_, err = store.Create("alpha", sampleConfigs())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a template"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jsonl"), 0o755))

	names, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)
}

func TestStore_ListMissingDirIsEmpty(t *testing.T) {
	t.Parallel()
	store := NewStore(filepath.Join(t.TempDir(), "never-created"), nil)
	names, err := store.List()
	require.NoError(t, err)
	assert.Nil(t, names)
}

func TestStore_Validate(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir(), nil)

	_, err := store.Create("spicy", []ActorConfig{
		{
			SystemPrompt: "You are {lm1_actor} from {lm1_company}.",
			Context:      []types.Message{types.NewUserMessage("greet {lm2_actor} during {weather}")},
		},
		{SystemPrompt: "Defer to {lm5_company}."},
	})
	require.NoError(t, err)

	warnings, err := store.Validate("spicy")
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "slot 1")
	assert.Contains(t, warnings[0], "{weather}")
	assert.Contains(t, warnings[1], "slot 2")
	assert.Contains(t, warnings[1], "{lm5_company}")
}

func TestStore_ValidateCleanTemplate(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir(), nil)
	_, err := store.Create("clean", sampleConfigs())
	require.NoError(t, err)

	warnings, err := store.Validate("clean")
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestStore_NameValidation(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir(), nil)

	for _, name := range []string{"", ".", "..", "a/b", "../escape"} {
		_, err := store.Create(name, sampleConfigs())
		require.Error(t, err, "name %q", name)
		assert.True(t, types.IsCode(err, types.ErrInvalidConfig), "name %q", name)

		_, err = store.Load(name, 2)
		require.Error(t, err, "name %q", name)
		assert.True(t, types.IsCode(err, types.ErrInvalidConfig), "name %q", name)
	}

	_, err := store.Create("ok", nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidConfig))
}

func TestStore_RoundTripThroughFile(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir(), nil)

	in := []ActorConfig{
		{
			SystemPrompt: "multi\nline\nprompt",
			Context: []types.Message{
				types.NewUserMessage("first"),
				types.NewAssistantMessage("second"),
			},
		},
		{SystemPrompt: "solo"},
	}
	_, err := store.Create("rt", in)
	require.NoError(t, err)

	out, err := store.Load("rt", 2)
	require.NoError(t, err)
	assert.Equal(t, in[0].SystemPrompt, out[0].SystemPrompt)
	testutil.AssertMessagesEqual(t, in[0].Context, out[0].Context)
	assert.Equal(t, "solo", out[1].SystemPrompt)
	assert.Empty(t, out[1].Context)
}
