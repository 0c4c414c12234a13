package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/testutil"
	"github.com/parleyhq/parley/testutil/fixtures"
	"github.com/parleyhq/parley/transcript"
	"github.com/parleyhq/parley/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// writeTree lays out a realistic transcript directory: one file per known
// layout in the writer's family subdirectories, one non-transcript .txt and
// one .md that the scan must skip.
func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write(filepath.Join("claude", "cli_20240712_093000.txt"), fixtures.V2())
	write(filepath.Join("claude_gpt4o", "student_20240620_153045.txt"), fixtures.Legacy())
	write(fixtures.ScrapedFilename, fixtures.Scraped())
	write(filepath.Join("claude", "bogus.txt"), fixtures.Unrecognized())
	write(filepath.Join("claude", "notes.md"), "not a transcript")
	return dir
}

func TestOpen_CreatesNestedPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "catalog.db")

	store, err := Open(path, nil)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)

	n, err := store.Count(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_BadDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file, not dir"), 0o644))

	_, err := Open(filepath.Join(blocker, "catalog.db"), nil)
	assert.Error(t, err)
}

func TestRebuild_IndexesTree(t *testing.T) {
	store := openTestStore(t)
	dir := writeTree(t)
	ctx := testutil.TestContext(t)

	rep, err := store.Rebuild(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, 4, rep.Scanned)
	assert.Equal(t, 3, rep.Indexed)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, filepath.Join("claude", "bogus.txt"), rep.Failures[0].File)
	assert.True(t, types.IsCode(rep.Failures[0].Err, types.ErrUnrecognizedHeader))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	entries, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byName := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byName[e.Filename] = e
	}

	v2, ok := byName[filepath.Join("claude", "cli_20240712_093000.txt")]
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, v2.ID)
	assert.Equal(t, "cli", v2.Template)
	assert.Equal(t, transcript.StatusCompleted, v2.Status)
	assert.Equal(t, "claude-3-opus-20240229,claude-3-5-sonnet-20240620", v2.BackendIDs)
	assert.Equal(t, "Claude 1,Claude 2", v2.Actors)
	assert.Equal(t, "1.00,0.80", v2.Temperatures)
	assert.Equal(t, 3, v2.NumTurns)
	assert.Equal(t, 0, v2.Anomalies)
	assert.GreaterOrEqual(t, v2.Tokens, 0)
	assert.True(t, v2.StartedAt.Equal(time.Date(2024, 7, 12, 9, 30, 0, 0, time.UTC)),
		"started at %v", v2.StartedAt)

	rec, err := transcript.NewParser(nil).Parse("cli_20240712_093000.txt", []byte(fixtures.V2()))
	require.NoError(t, err)
	wantChars := 0
	for _, turn := range rec.Turns {
		wantChars += utf8.RuneCountInString(turn.Content)
	}
	assert.Equal(t, wantChars, v2.Chars)

	scraped, ok := byName[fixtures.ScrapedFilename]
	require.True(t, ok)
	assert.Equal(t, "vanilla_backrooms", scraped.Template)
	assert.Equal(t, "", scraped.Status)
	assert.Equal(t, "claude-3-opus-20240229,claude-3-opus-20240229", scraped.BackendIDs)
	assert.Equal(t, "1.00,1.00", scraped.Temperatures)
	assert.Equal(t, 2, scraped.NumTurns)

	legacy, ok := byName[filepath.Join("claude_gpt4o", "student_20240620_153045.txt")]
	require.True(t, ok)
	assert.Equal(t, "student", legacy.Template)
	assert.Equal(t, "opus,gpt4o", legacy.BackendIDs)
	assert.Equal(t, "Claude 1,GPT4o 2", legacy.Actors)
	assert.Equal(t, "", legacy.Temperatures, "legacy layout has no temperature line")
	assert.Equal(t, 3, legacy.NumTurns)
}

func TestRebuild_Idempotent(t *testing.T) {
	store := openTestStore(t)
	dir := writeTree(t)
	ctx := testutil.TestContext(t)

	first, err := store.Rebuild(ctx, dir)
	require.NoError(t, err)
	before, err := store.List(ctx, 0)
	require.NoError(t, err)

	second, err := store.Rebuild(ctx, dir)
	require.NoError(t, err)
	after, err := store.List(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, first.Indexed, second.Indexed)
	require.Equal(t, len(before), len(after))

	byName := make(map[string]Entry, len(before))
	for _, e := range before {
		byName[e.Filename] = e
	}
	for _, e := range after {
		prev, ok := byName[e.Filename]
		require.True(t, ok)
		assert.Equal(t, prev.ID, e.ID, "row identity should survive a rebuild")
		assert.True(t, prev.CreatedAt.Equal(e.CreatedAt), "first-indexed time should survive a rebuild")
	}
}

func TestRebuild_ReindexesChangedFile(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "cli_20240712_093000.txt")
	require.NoError(t, os.WriteFile(path, []byte(fixtures.V2()), 0o644))
	ctx := testutil.TestContext(t)

	_, err := store.Rebuild(ctx, dir)
	require.NoError(t, err)
	before, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, before, 1)
	require.Equal(t, 3, before[0].NumTurns)

	grown := fixtures.V2() + "\n### Claude 2 ###\nreadme says: keep digging\n"
	require.NoError(t, os.WriteFile(path, []byte(grown), 0o644))

	_, err = store.Rebuild(ctx, dir)
	require.NoError(t, err)
	after, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, after, 1)

	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, 4, after[0].NumTurns)
	assert.Greater(t, after[0].Chars, before[0].Chars)
}

func TestRebuild_MissingDirIsEmpty(t *testing.T) {
	store := openTestStore(t)

	rep, err := store.Rebuild(testutil.TestContext(t), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, rep.Scanned)
	assert.Zero(t, rep.Indexed)
	assert.Empty(t, rep.Failures)
}

func TestRebuild_Cancelled(t *testing.T) {
	store := openTestStore(t)
	dir := writeTree(t)

	rep, err := store.Rebuild(testutil.CancelledContext(), dir)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)
	assert.Zero(t, rep.Indexed)
	assert.Len(t, rep.Failures, rep.Scanned)
}

func TestStats_PerFamily(t *testing.T) {
	store := openTestStore(t)
	dir := writeTree(t)
	ctx := testutil.TestContext(t)

	_, err := store.Rebuild(ctx, dir)
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	// v2 + legacy + scraped all involve anthropic; only legacy involves
	// openai. The all-anthropic pair counts once for its family.
	assert.Equal(t, string(backend.FamilyAnthropic), stats[0].Family)
	assert.Equal(t, 3, stats[0].Transcripts)
	assert.Equal(t, 8, stats[0].Turns)

	assert.Equal(t, string(backend.FamilyOpenAI), stats[1].Family)
	assert.Equal(t, 1, stats[1].Transcripts)
	assert.Equal(t, 3, stats[1].Turns)
}

func TestStats_EmptyCatalog(t *testing.T) {
	store := openTestStore(t)

	stats, err := store.Stats(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	store := openTestStore(t)
	dir := writeTree(t)
	ctx := testutil.TestContext(t)

	_, err := store.Rebuild(ctx, dir)
	require.NoError(t, err)

	entries, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, filepath.Join("claude", "cli_20240712_093000.txt"), entries[0].Filename)
	assert.Equal(t, filepath.Join("claude_gpt4o", "student_20240620_153045.txt"), entries[1].Filename)
}

func TestJoinTemps(t *testing.T) {
	assert.Equal(t, "", joinTemps(nil))
	assert.Equal(t, "1.00", joinTemps([]float64{1}))
	assert.Equal(t, "1.00,0.85", joinTemps([]float64{1, 0.85}))
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList("a,b"))
}
