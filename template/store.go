package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/parleyhq/parley/types"
)

// DefaultName is the template used when the caller selects none. It is
// created on demand with two empty slots.
const DefaultName = "default"

// ActorConfig is one actor slot of a template, decoded from a single JSONL
// line. An empty SystemPrompt means the actor runs without one. CLI marks
// the slot reserved for the tool backend.
type ActorConfig struct {
	SystemPrompt string          `json:"system_prompt"`
	Context      []types.Message `json:"context"`
	CLI          bool            `json:"cli,omitempty"`
}

var (
	// tokenPattern finds anything placeholder-shaped.
	tokenPattern = regexp.MustCompile(`\{[^{}]+\}`)
	// lmTokenPattern matches the tokens the resolver understands.
	lmTokenPattern = regexp.MustCompile(`^\{lm(\d+)_(?:actor|company)\}$`)
)

// Store reads and writes templates under a single directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates a store rooted at dir. logger may be nil.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:    dir,
		logger: logger.With(zap.String("component", "template_store")),
	}
}

// Load reads the named template and checks its slot count against the
// invocation's backend selection. The count check runs here so a bad pairing
// dies before any credential or network use.
func (s *Store) Load(name string, actorCount int) ([]ActorConfig, error) {
	configs, err := s.read(name)
	if err != nil {
		return nil, err
	}
	if len(configs) != actorCount {
		return nil, types.Errorf(types.ErrActorCountMismatch,
			"template %q provides %d actor slots but %d backends were selected", name, len(configs), actorCount)
	}
	return configs, nil
}

// List returns the sorted names of every template in the store. A missing
// directory is an empty store, not an error.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read templates directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".jsonl"))
	}
	sort.Strings(names)
	return names, nil
}

// Create writes a new template file and returns its path. Slots with a nil
// context are written with an empty list so every line carries the full
// shape.
func (s *Store) Create(name string, configs []ActorConfig) (string, error) {
	if !validName(name) {
		return "", types.Errorf(types.ErrInvalidConfig, "invalid template name %q", name)
	}
	if len(configs) == 0 {
		return "", types.Errorf(types.ErrInvalidConfig, "template %q needs at least one actor slot", name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create templates directory: %w", err)
	}

	var buf bytes.Buffer
	for _, cfg := range configs {
		if cfg.Context == nil {
			cfg.Context = []types.Message{}
		}
		line, err := json.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("encode template slot: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	path := s.path(name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write template: %w", err)
	}
	s.logger.Info("template created",
		zap.String("template", name),
		zap.Int("slots", len(configs)),
		zap.String("path", path))
	return path, nil
}

// Validate loads the named template and reports placeholder tokens that can
// never resolve: unknown token shapes and ordinals beyond the slot count.
// Warnings are advisory; the resolver leaves such tokens verbatim at run
// time.
func (s *Store) Validate(name string) ([]string, error) {
	configs, err := s.read(name)
	if err != nil {
		return nil, err
	}
	var warnings []string
	for i, cfg := range configs {
		var text strings.Builder
		text.WriteString(cfg.SystemPrompt)
		for _, msg := range cfg.Context {
			text.WriteByte(' ')
			text.WriteString(msg.Content)
		}
		for _, tok := range tokenPattern.FindAllString(text.String(), -1) {
			m := lmTokenPattern.FindStringSubmatch(tok)
			if m == nil {
				warnings = append(warnings, fmt.Sprintf("slot %d: unknown placeholder %s", i+1, tok))
				continue
			}
			ord, convErr := strconv.Atoi(m[1])
			if convErr != nil || ord < 1 || ord > len(configs) {
				warnings = append(warnings, fmt.Sprintf("slot %d: placeholder %s refers to actor %s of %d", i+1, tok, m[1], len(configs)))
			}
		}
	}
	return warnings, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".jsonl")
}

// read decodes every non-blank line of the named template. Asking for the
// built-in default materializes it first.
func (s *Store) read(name string) ([]ActorConfig, error) {
	if !validName(name) {
		return nil, types.Errorf(types.ErrInvalidConfig, "invalid template name %q", name)
	}
	path := s.path(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && name == DefaultName {
		if _, createErr := s.Create(DefaultName, []ActorConfig{{}, {}}); createErr != nil {
			return nil, createErr
		}
		data, err = os.ReadFile(path)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, types.Errorf(types.ErrTemplateNotFound, "template %q not found at %s", name, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	var configs []ActorConfig
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var cfg ActorConfig
		if err := json.Unmarshal([]byte(line), &cfg); err != nil {
			return nil, types.Errorf(types.ErrTemplateInvalid, "template %q line %d is not a valid actor slot", name, n+1).WithCause(err)
		}
		configs = append(configs, cfg)
	}
	if len(configs) == 0 {
		return nil, types.Errorf(types.ErrTemplateInvalid, "template %q has no actor slots", name)
	}
	return configs, nil
}

// validName keeps template names inside the store directory.
func validName(name string) bool {
	return name != "" && name == filepath.Base(name) && name != "." && name != ".."
}
