package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/parleyhq/parley/transcript"
)

// rebuildWorkers bounds concurrent parses during a rebuild.
const rebuildWorkers = 8

// tokenEncoding is the tiktoken encoding behind the Tokens column.
const tokenEncoding = "cl100k_base"

// Report summarizes one rebuild pass.
type Report struct {
	Scanned  int
	Indexed  int
	Failures []FileError
}

// FileError records one file the rebuild could not index.
type FileError struct {
	File string
	Err  error
}

// Rebuild walks every .txt under dir, parses each transcript and upserts
// its metadata row. Per-file failures land in the report instead of
// aborting the scan, and row identity survives repeat runs: an already
// indexed filename keeps its ID and first-indexed time. A missing dir
// yields an empty report.
func (s *Store) Rebuild(ctx context.Context, dir string) (*Report, error) {
	files, err := listTranscriptFiles(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Report{}, nil
		}
		return nil, fmt.Errorf("scan transcript tree: %w", err)
	}

	failures := make([]error, len(files))
	parser := transcript.NewParser(s.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildWorkers)
	for i, rel := range files {
		i, rel := i, rel
		g.Go(func() error {
			if gctx.Err() != nil {
				failures[i] = gctx.Err()
				return nil
			}
			rec, err := parser.ParseFile(filepath.Join(dir, rel))
			if err != nil {
				failures[i] = err
				s.logger.Warn("transcript rejected during rebuild",
					zap.String("file", rel), zap.Error(err))
				return nil
			}
			if err := s.upsert(gctx, rel, rec); err != nil {
				failures[i] = err
				s.logger.Warn("catalog upsert failed",
					zap.String("file", rel), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := &Report{Scanned: len(files)}
	for i, ferr := range failures {
		if ferr != nil {
			rep.Failures = append(rep.Failures, FileError{File: files[i], Err: ferr})
			continue
		}
		rep.Indexed++
	}
	if ctx.Err() != nil {
		return rep, ctx.Err()
	}

	s.logger.Info("catalog rebuilt",
		zap.Int("scanned", rep.Scanned),
		zap.Int("indexed", rep.Indexed),
		zap.Int("failed", len(rep.Failures)),
	)
	return rep, nil
}

// listTranscriptFiles returns relative paths of every .txt under dir,
// sorted for deterministic reports.
func listTranscriptFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".txt") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// upsert writes rec's metadata row, preserving identity when the filename
// is already indexed.
func (s *Store) upsert(ctx context.Context, rel string, rec *transcript.Record) error {
	entry := s.entryFromRecord(rel, rec)
	return s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var existing Entry
		err := tx.Where("filename = ?", rel).First(&existing).Error
		switch {
		case err == nil:
			entry.ID = existing.ID
			entry.CreatedAt = existing.CreatedAt
			return tx.Save(&entry).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&entry).Error
		default:
			return err
		}
	})
}

func (s *Store) entryFromRecord(rel string, rec *transcript.Record) Entry {
	chars := 0
	for _, turn := range rec.Turns {
		chars += utf8.RuneCountInString(turn.Content)
	}

	return Entry{
		ID:           uuid.New(),
		Filename:     rel,
		Template:     rec.Template,
		StartedAt:    rec.Timestamp,
		Status:       rec.Status,
		BackendIDs:   strings.Join(rec.BackendIDs, ","),
		Actors:       strings.Join(rec.Actors, ","),
		Temperatures: joinTemps(rec.Temperatures),
		NumTurns:     len(rec.Turns),
		Chars:        chars,
		Tokens:       s.countTokens(rec),
		Anomalies:    len(rec.Anomalies),
	}
}

// countTokens sums turn tokens under the cl100k_base encoding. The encoding
// loads once; when the load fails (offline hosts fetching BPE data), every
// count degrades to zero rather than failing the rebuild.
func (s *Store) countTokens(rec *transcript.Record) int {
	s.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tokenEncoding)
		if err != nil {
			s.logger.Warn("token encoding unavailable, token counts degrade to zero",
				zap.String("encoding", tokenEncoding), zap.Error(err))
			return
		}
		s.enc = enc
	})
	if s.enc == nil {
		return 0
	}

	total := 0
	for _, turn := range rec.Turns {
		total += len(s.enc.Encode(turn.Content, nil, nil))
	}
	return total
}
