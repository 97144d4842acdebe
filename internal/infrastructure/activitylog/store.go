// Package activitylog persists the order activity trail as day-sharded JSON
// line files:
//
//	{root}/order-activity-logs/YYYY/MM/DD/order-{id}.log
//	{root}/order-activity-logs/YYYY/MM/DD/daily-summary.log
//
// Days written before sharding live in flat
// order-activity-YYYY-MM-DD.log files and are served by LegacyReader.
package activitylog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"go.uber.org/zap"
)

const (
	dirPerm  fs.FileMode = 0o755
	filePerm fs.FileMode = 0o644

	maxLineSize = 4 << 20

	// lockStripes bounds the in-process append mutexes; flock still
	// serializes writers per file
	lockStripes = 64
)

// Store is the activity log. It is safe for concurrent use and across
// processes sharing the same root.
type Store struct {
	fs             FileSystem
	layout         layout
	now            func() time.Time
	logger         *zap.Logger
	legacyFallback bool
	archiver       Archiver
	reader         Reader

	locks [lockStripes]sync.Mutex
}

var _ ordersync.ActivityRecorder = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithFileSystem replaces the OS file system
func WithFileSystem(fsys FileSystem) Option {
	return func(s *Store) { s.fs = fsys }
}

// WithClock sets the time source used to stamp entries and compute cutoffs
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLegacyFallback makes reads fall back to flat legacy files for days
// that have no sharded data
func WithLegacyFallback(enabled bool) Option {
	return func(s *Store) { s.legacyFallback = enabled }
}

// WithArchiver uploads files before Cleanup deletes them
func WithArchiver(a Archiver) Option {
	return func(s *Store) { s.archiver = a }
}

// NewStore creates a store rooted at root
func NewStore(root string, opts ...Option) *Store {
	s := &Store{
		fs:     OSFileSystem{},
		layout: newLayout(root),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	sharded := NewShardedReader(s.fs, root, s.logger)
	if s.legacyFallback {
		s.reader = NewFallbackReader(sharded, NewLegacyReader(s.fs, root, s.logger))
	} else {
		s.reader = sharded
	}
	return s
}

// Reader returns the read strategy in use
func (s *Store) Reader() Reader {
	return s.reader
}

// ---- Write path ----

// Append stamps the entry with the current time and writes it to its order
// file and the day summary.
func (s *Store) Append(ctx context.Context, entry ordersync.ActivityEntry) error {
	if !entry.ActivityType.IsValid() {
		return fmt.Errorf("%w: unknown activity type %q", ordersync.ErrInvalidActivity, entry.ActivityType)
	}
	if entry.OrderID < 0 {
		return fmt.Errorf("%w: negative order id", ordersync.ErrInvalidActivity)
	}
	entry.Timestamp = s.now().UTC()
	return s.write(ctx, entry)
}

// write persists an entry keeping its timestamp
func (s *Store) write(ctx context.Context, entry ordersync.ActivityEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", ordersync.ErrLogWrite, err)
	}
	summary, err := json.Marshal(entry.Summary())
	if err != nil {
		return fmt.Errorf("%w: %v", ordersync.ErrLogWrite, err)
	}

	day := startOfDay(entry.Timestamp)
	if err := s.ensureDir(s.layout.dayDir(day)); err != nil {
		return fmt.Errorf("%w: %v", ordersync.ErrLogWrite, err)
	}
	if err := s.appendLine(s.layout.orderFile(day, entry.OrderID), line); err != nil {
		return fmt.Errorf("%w: %v", ordersync.ErrLogWrite, err)
	}
	if err := s.appendLine(s.layout.summaryFile(day), summary); err != nil {
		return fmt.Errorf("%w: %v", ordersync.ErrLogWrite, err)
	}
	return nil
}

func (s *Store) ensureDir(dir string) error {
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	return nil
}

func (s *Store) pathLock(path string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return &s.locks[h.Sum32()%lockStripes]
}

// appendLine writes line plus a newline in a single write under both the
// in-process path mutex and an exclusive flock
func (s *Store) appendLine(path string, line []byte) (err error) {
	mu := s.pathLock(path)
	mu.Lock()
	defer mu.Unlock()

	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	unlock, err := flock(f)
	if err != nil {
		return fmt.Errorf("lock %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if uerr := unlock(); err == nil {
			err = uerr
		}
	}()

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	_, err = f.Write(buf)
	return err
}

// ---- Read path ----

// GetForOrder returns the entries of one order on one day
func (s *Store) GetForOrder(ctx context.Context, orderID int64, day time.Time) ([]ordersync.ActivityEntry, error) {
	if orderID < 0 {
		return nil, ordersync.ErrInvalidOrderID
	}
	entries, _, err := s.reader.OrderDay(ctx, orderID, startOfDay(day))
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetForOrderAllDates returns every entry of an order across all days,
// oldest first, restricted by filter
func (s *Store) GetForOrderAllDates(ctx context.Context, orderID int64, filter ordersync.ActivityFilter) ([]ordersync.ActivityEntry, error) {
	if orderID <= 0 {
		return nil, ordersync.ErrInvalidOrderID
	}
	filter.OrderID = orderID

	byDay, err := s.reader.OrderDays(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var out []ordersync.ActivityEntry
	for _, entries := range byDay {
		for _, e := range entries {
			if filter.Matches(e) {
				out = append(out, e)
			}
		}
	}
	sortEntries(out)
	return out, nil
}

// GetRange returns entries between start and end (inclusive days) that
// satisfy filter
func (s *Store) GetRange(ctx context.Context, start, end time.Time, filter ordersync.ActivityFilter) ([]ordersync.ActivityEntry, error) {
	start, end = startOfDay(start), startOfDay(end)
	if end.Before(start) {
		return nil, ordersync.ErrInvalidDateRange
	}

	var out []ordersync.ActivityEntry
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, _, err := s.reader.Day(ctx, day, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// ---- Shared helpers ----

// readEntries reads every well-formed entry of a file. found is false when
// the file does not exist.
func readEntries(fsys FileSystem, path string, logger *zap.Logger, keep func(ordersync.ActivityEntry) bool) ([]ordersync.ActivityEntry, bool, error) {
	var out []ordersync.ActivityEntry
	found, err := scanLines(fsys, path, func(line []byte) {
		var e ordersync.ActivityEntry
		if err := json.Unmarshal(line, &e); err != nil {
			logger.Debug("skipping malformed activity line", zap.String("file", path), zap.Error(err))
			return
		}
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	})
	return out, found, err
}

func scanLines(fsys FileSystem, path string, fn func(line []byte)) (bool, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil {
		return true, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func sortEntries(entries []ordersync.ActivityEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
