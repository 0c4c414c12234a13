package transcript

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/conversation"
	"github.com/parleyhq/parley/types"
)

// generativeKeys are registry entries whose actor names carry ordinals, so a
// synthesized run never produces two actors with the same delimiter name.
var generativeKeys = []string{"sonnet", "opus", "gpt4o", "o1-preview", "o1-mini", "gemini"}

// syntheticRun is a writer input derived deterministically from one rng, so a
// failing case replays from its seed.
type syntheticRun struct {
	meta  Meta
	turns []string
}

func synthesizeRun(rng *rand.Rand, actorCount, turnCount int) syntheticRun {
	reg := backend.BuiltinRegistry()

	meta := Meta{
		Template:      []string{"cli", "student", "gallery"}[rng.Intn(3)],
		Started:       time.Unix(1600000000+int64(rng.Intn(200000000)), 0).UTC(),
		Descriptors:   make([]backend.Descriptor, actorCount),
		ActorNames:    make([]string, actorCount),
		SystemPrompts: make([]*string, actorCount),
		Temperatures:  make([]float64, actorCount),
	}
	for i := 0; i < actorCount; i++ {
		desc, _ := reg.Lookup(generativeKeys[rng.Intn(len(generativeKeys))])
		meta.Descriptors[i] = desc
		meta.ActorNames[i] = desc.ActorName(i + 1)
		// Hundredths survive the header's %.2f formatting exactly.
		meta.Temperatures[i] = float64(rng.Intn(201)) / 100
		switch rng.Intn(3) {
		case 0: // never configured
		case 1:
			empty := ""
			meta.SystemPrompts[i] = &empty
		default:
			prompt := randomLines(rng, 1+rng.Intn(3))
			meta.SystemPrompts[i] = &prompt
		}
	}

	turns := make([]string, turnCount)
	for i := range turns {
		turns[i] = randomLines(rng, rng.Intn(4))
	}
	return syntheticRun{meta: meta, turns: turns}
}

// randomLines builds content from a charset that cannot collide with turn
// delimiters or tagged blocks. Lines may be empty and so may the whole text.
func randomLines(rng *rand.Rand, lines int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 .,:!?'-"
	out := make([]string, lines)
	for i := range out {
		var sb strings.Builder
		for n := rng.Intn(41); n > 0; n-- {
			sb.WriteByte(charset[rng.Intn(len(charset))])
		}
		out[i] = sb.String()
	}
	return strings.Join(out, "\n")
}

func TestProperty_TranscriptRoundTrip(t *testing.T) {
	dir := t.TempDir()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("written transcripts parse back to the same record", prop.ForAll(
		func(actorCount, turnCount int, seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			run := synthesizeRun(rng, actorCount, turnCount)

			w, err := NewWriter(dir, run.meta, nil)
			if err != nil {
				t.Logf("NewWriter failed: %v", err)
				return false
			}
			for i, content := range run.turns {
				w.Record(i%actorCount, run.meta.ActorNames[i%actorCount], content)
			}
			path, err := w.Finalize(string(conversation.ReasonMaxTurns), nil)
			if err != nil {
				t.Logf("Finalize failed: %v", err)
				return false
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Logf("ReadFile failed: %v", err)
				return false
			}
			rec, err := NewParser(nil).Parse(filepath.Base(path), data)
			if err != nil {
				t.Logf("Parse failed: %v", err)
				return false
			}

			if len(rec.Anomalies) != 0 {
				t.Logf("clean run parsed with anomalies: %+v", rec.Anomalies)
				return false
			}
			if rec.Template != run.meta.Template || rec.Status != StatusCompleted {
				t.Logf("header mismatch: template %q status %q", rec.Template, rec.Status)
				return false
			}
			if !rec.Timestamp.Equal(run.meta.Started) {
				t.Logf("timestamp mismatch: %v != %v", rec.Timestamp, run.meta.Started)
				return false
			}
			if len(rec.Actors) != actorCount {
				t.Logf("actor count mismatch: %d != %d", len(rec.Actors), actorCount)
				return false
			}
			for i := 0; i < actorCount; i++ {
				if rec.Actors[i] != run.meta.ActorNames[i] {
					t.Logf("actor %d name mismatch: %q", i, rec.Actors[i])
					return false
				}
				if rec.BackendIDs[i] != run.meta.Descriptors[i].APIName {
					t.Logf("actor %d backend mismatch: %q", i, rec.BackendIDs[i])
					return false
				}
				if rec.Temperatures[i] != run.meta.Temperatures[i] {
					t.Logf("actor %d temperature mismatch: %v != %v", i, rec.Temperatures[i], run.meta.Temperatures[i])
					return false
				}
				want, got := run.meta.SystemPrompts[i], rec.SystemPrompts[i]
				if (want == nil) != (got == nil) {
					t.Logf("actor %d prompt presence mismatch", i)
					return false
				}
				if want != nil && *want != *got {
					t.Logf("actor %d prompt mismatch: %q != %q", i, *got, *want)
					return false
				}
			}
			if len(rec.Turns) != turnCount {
				t.Logf("turn count mismatch: %d != %d", len(rec.Turns), turnCount)
				return false
			}
			for i, turn := range rec.Turns {
				if turn.ActorIndex != i%actorCount {
					t.Logf("turn %d actor mismatch: %d", i, turn.ActorIndex)
					return false
				}
				if turn.Content != run.turns[i] {
					t.Logf("turn %d content mismatch: %q != %q", i, turn.Content, run.turns[i])
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 4),
		gen.IntRange(0, 10),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestProperty_ParserNeverReturnsPartialRecords(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("arbitrary input yields a full record or a typed rejection", prop.ForAll(
		func(text string) bool {
			rec, err := NewParser(nil).Parse("fuzz.txt", []byte(text))
			if err != nil {
				if !types.IsCode(err, types.ErrUnrecognizedHeader) {
					t.Logf("unexpected error code: %v", err)
					return false
				}
				return rec == nil
			}
			if rec == nil {
				t.Logf("nil record without error")
				return false
			}
			if len(rec.SystemPrompts) != len(rec.Actors) || len(rec.BackendIDs) != len(rec.Actors) {
				t.Logf("parallel slices diverged: %d actors, %d prompts, %d backends",
					len(rec.Actors), len(rec.SystemPrompts), len(rec.BackendIDs))
				return false
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
