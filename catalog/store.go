package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/internal/database"
)

// Entry is one catalog row describing a transcript file on disk.
type Entry struct {
	ID           uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	Filename     string    `gorm:"size:512;uniqueIndex" json:"filename"` // relative to the transcript root
	Template     string    `gorm:"size:128;index" json:"template"`
	StartedAt    time.Time `gorm:"index" json:"started_at"`
	Status       string    `gorm:"size:32" json:"status"`
	BackendIDs   string    `gorm:"size:512" json:"backend_ids"`   // comma-joined, slot order
	Actors       string    `gorm:"size:512" json:"actors"`        // comma-joined, slot order
	Temperatures string    `gorm:"size:128" json:"temperatures"`  // two-decimal CSV, "" when the layout had none
	NumTurns     int       `gorm:"default:0" json:"num_turns"`
	Chars        int       `gorm:"default:0" json:"chars"`
	Tokens       int       `gorm:"default:0" json:"tokens"` // 0 when the token encoding is unavailable
	Anomalies    int       `gorm:"default:0" json:"anomalies"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName keeps the table readable for anyone opening the file directly.
func (Entry) TableName() string { return "transcripts" }

// Store is the sqlite-backed transcript catalog.
type Store struct {
	pool   *database.PoolManager
	reg    *backend.Registry
	logger *zap.Logger

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// Open creates or opens the catalog database at path and migrates the
// schema. Parent directories are created as needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "catalog"))

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}

	// gorm's own logger stays silent: catalog diagnostics go through zap.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate catalog schema: %w", err)
	}

	pool, err := database.NewPoolManager(db, database.SingleConnConfig(), logger)
	if err != nil {
		return nil, err
	}

	return &Store{pool: pool, reg: backend.BuiltinRegistry(), logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Count reports the number of indexed transcripts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.DB().WithContext(ctx).Model(&Entry{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count catalog entries: %w", err)
	}
	return n, nil
}

// List returns entries newest first. A limit of 0 returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	q := s.pool.DB().WithContext(ctx).Order("started_at DESC, filename ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	return entries, nil
}

// FamilyStats aggregates catalog rows for one backend family.
type FamilyStats struct {
	Family      string `json:"family"`
	Transcripts int    `json:"transcripts"`
	Turns       int    `json:"turns"`
	Tokens      int    `json:"tokens"`
}

// unknownFamily labels backend ids no registered descriptor resolves.
const unknownFamily = "unknown"

// Stats aggregates transcript, turn and token counts per backend family,
// sorted by family name. A transcript counts toward every family it
// involves, so a cross-family pair shows up under both.
func (s *Store) Stats(ctx context.Context) ([]FamilyStats, error) {
	var entries []Entry
	if err := s.pool.DB().WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load catalog entries: %w", err)
	}

	byFamily := make(map[string]*FamilyStats)
	for _, e := range entries {
		seen := make(map[string]bool)
		for _, id := range splitList(e.BackendIDs) {
			family := unknownFamily
			if desc, ok := s.reg.Resolve(id); ok {
				family = string(desc.Family)
			}
			if seen[family] {
				continue
			}
			seen[family] = true

			fs := byFamily[family]
			if fs == nil {
				fs = &FamilyStats{Family: family}
				byFamily[family] = fs
			}
			fs.Transcripts++
			fs.Turns += e.NumTurns
			fs.Tokens += e.Tokens
		}
	}

	out := make([]FamilyStats, 0, len(byFamily))
	for _, fs := range byFamily {
		out = append(out, *fs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Family < out[j].Family })
	return out, nil
}

func splitList(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

func joinTemps(temps []float64) string {
	if len(temps) == 0 {
		return ""
	}
	parts := make([]string, len(temps))
	for i, temp := range temps {
		parts[i] = fmt.Sprintf("%.2f", temp)
	}
	return strings.Join(parts, ",")
}
