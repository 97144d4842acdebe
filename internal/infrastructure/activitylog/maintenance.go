package activitylog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"go.uber.org/zap"
)

var (
	// ErrLegacyNotFound means there is no legacy file for the day
	ErrLegacyNotFound = errors.New("activitylog: legacy log file not found")
	// ErrInvalidRetention means days_to_keep is not positive
	ErrInvalidRetention = errors.New("activitylog: days to keep must be positive")
)

// Archiver stores a copy of a log file before Cleanup removes it. key is
// relative to the log tree, e.g. 2024/06/01/order-42.log.
type Archiver interface {
	Archive(ctx context.Context, key string, body io.Reader, size int64) error
}

// ---- Migration ----

// MigrationResult counts what MigrateLegacy did
type MigrationResult struct {
	Date     string `json:"date"`
	Migrated int    `json:"migrated"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// MigrateLegacy copies the entries of one legacy day file into the sharded
// tree, keeping their timestamps. Entries already present in the target order
// file are skipped, so running it twice adds nothing.
func (s *Store) MigrateLegacy(ctx context.Context, day time.Time) (MigrationResult, error) {
	day = startOfDay(day)
	result := MigrationResult{Date: day.Format(dateLayout)}

	legacy, found, err := readEntries(s.fs, s.layout.legacyFile(day), s.logger, nil)
	if err != nil {
		return result, err
	}
	if !found {
		return result, fmt.Errorf("%w: %s", ErrLegacyNotFound, result.Date)
	}

	// existing lines per target file, keyed by canonical JSON
	existing := make(map[string]map[string]struct{})
	for _, e := range legacy {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !e.ActivityType.IsValid() || e.Timestamp.IsZero() {
			result.Failed++
			continue
		}
		e.Timestamp = e.Timestamp.UTC()

		path := s.layout.orderFile(startOfDay(e.Timestamp), e.OrderID)
		seen, ok := existing[path]
		if !ok {
			seen, err = s.canonicalLines(path)
			if err != nil {
				return result, err
			}
			existing[path] = seen
		}

		key, err := canonical(e)
		if err != nil {
			result.Failed++
			continue
		}
		if _, dup := seen[key]; dup {
			result.Skipped++
			continue
		}
		if err := s.write(ctx, e); err != nil {
			s.logger.Warn("failed to migrate activity entry",
				zap.Int64("order_id", e.OrderID),
				zap.Error(err),
			)
			result.Failed++
			continue
		}
		seen[key] = struct{}{}
		result.Migrated++
	}

	s.logger.Info("legacy activity log migrated",
		zap.String("date", result.Date),
		zap.Int("migrated", result.Migrated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Store) canonicalLines(path string) (map[string]struct{}, error) {
	entries, _, err := readEntries(s.fs, path, s.logger, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		key, err := canonical(e)
		if err != nil {
			continue
		}
		out[key] = struct{}{}
	}
	return out, nil
}

func canonical(e ordersync.ActivityEntry) (string, error) {
	e.Timestamp = e.Timestamp.UTC()
	b, err := json.Marshal(e)
	return string(b), err
}

// ---- Retention ----

// CleanupResult counts what Cleanup removed
type CleanupResult struct {
	Cutoff             string `json:"cutoff"`
	DaysRemoved        int    `json:"days_removed"`
	LegacyFilesRemoved int    `json:"legacy_files_removed"`
	FilesArchived      int    `json:"files_archived"`
	DaysKept           int    `json:"days_kept_on_archive_error"`
}

// Cleanup deletes day directories and legacy files older than daysToKeep
// days, then prunes empty month and year directories. With an archiver set,
// a day is only deleted once all its files were archived.
func (s *Store) Cleanup(ctx context.Context, daysToKeep int) (CleanupResult, error) {
	if daysToKeep <= 0 {
		return CleanupResult{}, ErrInvalidRetention
	}
	cutoff := startOfDay(s.now()).AddDate(0, 0, -daysToKeep)
	result := CleanupResult{Cutoff: cutoff.Format(dateLayout)}

	err := walkDays(s.fs, s.layout.base, func(day time.Time, dir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !day.Before(cutoff) {
			return nil
		}
		archived, err := s.archiveDay(ctx, day, dir)
		result.FilesArchived += archived
		if err != nil {
			s.logger.Warn("keeping day directory after archive failure",
				zap.String("dir", dir),
				zap.Error(err),
			)
			result.DaysKept++
			return nil
		}
		if err := s.fs.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
		result.DaysRemoved++
		return nil
	})
	if err != nil {
		return result, err
	}

	s.pruneEmptyDirs()

	for _, day := range legacyDays(s.fs, s.layout.base) {
		if !day.Before(cutoff) {
			continue
		}
		path := s.layout.legacyFile(day)
		if s.archiver != nil {
			if err := s.archiveFile(ctx, path, "legacy/"+filepath.Base(path)); err != nil {
				s.logger.Warn("keeping legacy file after archive failure", zap.String("file", path), zap.Error(err))
				continue
			}
			result.FilesArchived++
		}
		if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return result, fmt.Errorf("remove %s: %w", path, err)
		}
		result.LegacyFilesRemoved++
	}

	s.logger.Info("activity log cleanup finished",
		zap.String("cutoff", result.Cutoff),
		zap.Int("days_removed", result.DaysRemoved),
		zap.Int("legacy_files_removed", result.LegacyFilesRemoved),
		zap.Int("files_archived", result.FilesArchived),
	)
	return result, nil
}

func (s *Store) archiveDay(ctx context.Context, day time.Time, dir string) (int, error) {
	if s.archiver == nil {
		return 0, nil
	}
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	archived := 0
	prefix := day.Format("2006/01/02")
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := s.archiveFile(ctx, filepath.Join(dir, e.Name()), prefix+"/"+e.Name()); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

func (s *Store) archiveFile(ctx context.Context, path, key string) error {
	info, err := s.fs.Stat(path)
	if err != nil {
		return err
	}
	f, err := s.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.archiver.Archive(ctx, key, f, info.Size())
}

// pruneEmptyDirs removes month and year directories left empty
func (s *Store) pruneEmptyDirs() {
	years, _ := readDirs(s.fs, s.layout.base, 4)
	for _, y := range years {
		yearDir := filepath.Join(s.layout.base, y)
		months, _ := readDirs(s.fs, yearDir, 2)
		for _, m := range months {
			monthDir := filepath.Join(yearDir, m)
			if s.isEmptyDir(monthDir) {
				_ = s.fs.Remove(monthDir)
			}
		}
		if s.isEmptyDir(yearDir) {
			_ = s.fs.Remove(yearDir)
		}
	}
}

func (s *Store) isEmptyDir(dir string) bool {
	entries, err := s.fs.ReadDir(dir)
	return err == nil && len(entries) == 0
}

// ---- Statistics ----

// Statistics describes one day of the log
type Statistics struct {
	Date                 string  `json:"date"`
	Sharded              bool    `json:"sharded"`
	OrderFiles           int     `json:"order_files"`
	TotalFiles           int     `json:"total_files"`
	TotalEntries         int     `json:"total_entries"`
	TotalBytes           int64   `json:"total_bytes"`
	LegacyFileExists     bool    `json:"legacy_file_exists"`
	LegacyEntries        int     `json:"legacy_entries"`
	LegacyBytes          int64   `json:"legacy_bytes"`
	ScanReductionPercent float64 `json:"scan_reduction_percent"`
}

// Statistics reports file and entry counts of one day. ScanReductionPercent
// is the share of files a single-order lookup no longer reads compared with
// scanning the whole day.
func (s *Store) Statistics(ctx context.Context, day time.Time) (Statistics, error) {
	day = startOfDay(day)
	stats := Statistics{Date: day.Format(dateLayout)}

	dir := s.layout.dayDir(day)
	entries, err := s.fs.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return stats, err
	}
	stats.Sharded = err == nil

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		stats.TotalFiles++
		path := filepath.Join(dir, e.Name())
		if info, err := s.fs.Stat(path); err == nil {
			stats.TotalBytes += info.Size()
		}
		if e.Name() == SummaryFileName {
			n, err := countLines(s.fs, path)
			if err != nil {
				return stats, err
			}
			stats.TotalEntries = n
			continue
		}
		if _, ok := parseOrderFileName(e.Name()); ok {
			stats.OrderFiles++
		}
	}

	legacyPath := s.layout.legacyFile(day)
	if info, err := s.fs.Stat(legacyPath); err == nil {
		stats.LegacyFileExists = true
		stats.LegacyBytes = info.Size()
		n, err := countLines(s.fs, legacyPath)
		if err != nil {
			return stats, err
		}
		stats.LegacyEntries = n
	}

	if stats.OrderFiles > 1 {
		stats.ScanReductionPercent = (1 - 1/float64(stats.OrderFiles)) * 100
	}
	return stats, nil
}

func countLines(fsys FileSystem, path string) (int, error) {
	n := 0
	_, err := scanLines(fsys, path, func([]byte) { n++ })
	return n, err
}
