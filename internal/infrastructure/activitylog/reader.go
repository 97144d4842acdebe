package activitylog

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"strconv"
	"time"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"go.uber.org/zap"
)

// Reader is a read strategy over one on-disk format. found reports whether
// the format holds any data for the requested day.
type Reader interface {
	OrderDay(ctx context.Context, orderID int64, day time.Time) (entries []ordersync.ActivityEntry, found bool, err error)
	Day(ctx context.Context, day time.Time, filter ordersync.ActivityFilter) (entries []ordersync.ActivityEntry, found bool, err error)
	OrderDays(ctx context.Context, orderID int64) (map[time.Time][]ordersync.ActivityEntry, error)
}

// ---------------------------------------------------------------------------
// ShardedReader
// ---------------------------------------------------------------------------

// ShardedReader reads the YYYY/MM/DD tree
type ShardedReader struct {
	fs     FileSystem
	layout layout
	logger *zap.Logger
}

var _ Reader = (*ShardedReader)(nil)

// NewShardedReader creates a reader over root
func NewShardedReader(fsys FileSystem, root string, logger *zap.Logger) *ShardedReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShardedReader{fs: fsys, layout: newLayout(root), logger: logger}
}

// OrderDay opens only the order's file of that day
func (r *ShardedReader) OrderDay(ctx context.Context, orderID int64, day time.Time) ([]ordersync.ActivityEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return readEntries(r.fs, r.layout.orderFile(day, orderID), r.logger, nil)
}

// Day answers a filtered day query. An order filter goes straight to the
// order file; otherwise the summary selects which order files to open.
func (r *ShardedReader) Day(ctx context.Context, day time.Time, filter ordersync.ActivityFilter) ([]ordersync.ActivityEntry, bool, error) {
	if filter.OrderID != 0 {
		entries, found, err := r.OrderDay(ctx, filter.OrderID, day)
		if err != nil || !found {
			return nil, found, err
		}
		return keepMatching(entries, filter), true, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var orderIDs []int64
	seen := make(map[int64]struct{})
	found, err := scanLines(r.fs, r.layout.summaryFile(day), func(line []byte) {
		var s ordersync.ActivitySummary
		if err := json.Unmarshal(line, &s); err != nil {
			r.logger.Debug("skipping malformed summary line", zap.Error(err))
			return
		}
		if !filter.MatchesSummary(s) {
			return
		}
		if _, ok := seen[s.OrderID]; !ok {
			seen[s.OrderID] = struct{}{}
			orderIDs = append(orderIDs, s.OrderID)
		}
	})
	if err != nil || !found {
		return nil, found, err
	}

	var out []ordersync.ActivityEntry
	for _, id := range orderIDs {
		entries, _, err := readEntries(r.fs, r.layout.orderFile(day, id), r.logger, filter.Matches)
		if err != nil {
			return nil, true, err
		}
		out = append(out, entries...)
	}
	sortEntries(out)
	return out, true, nil
}

// OrderDays walks year, month and day directories and opens the order file
// of each day
func (r *ShardedReader) OrderDays(ctx context.Context, orderID int64) (map[time.Time][]ordersync.ActivityEntry, error) {
	out := make(map[time.Time][]ordersync.ActivityEntry)
	err := walkDays(r.fs, r.layout.base, func(day time.Time, dir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, found, err := readEntries(r.fs, r.layout.orderFile(day, orderID), r.logger, nil)
		if err != nil {
			return err
		}
		if found && len(entries) > 0 {
			out[day] = entries
		}
		return nil
	})
	return out, err
}

// walkDays calls fn for each YYYY/MM/DD directory under base in ascending
// order. A missing base is not an error.
func walkDays(fsys FileSystem, base string, fn func(day time.Time, dir string) error) error {
	years, err := readDirs(fsys, base, 4)
	if err != nil {
		return err
	}
	for _, y := range years {
		yearDir := filepath.Join(base, y)
		months, err := readDirs(fsys, yearDir, 2)
		if err != nil {
			return err
		}
		for _, m := range months {
			monthDir := filepath.Join(yearDir, m)
			days, err := readDirs(fsys, monthDir, 2)
			if err != nil {
				return err
			}
			for _, d := range days {
				day, err := time.Parse("2006/01/02", y+"/"+m+"/"+d)
				if err != nil {
					continue
				}
				if err := fn(day, filepath.Join(monthDir, d)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// readDirs lists numeric subdirectory names of the given width, sorted
func readDirs(fsys FileSystem, dir string, width int) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || len(name) != width {
			continue
		}
		if _, err := strconv.Atoi(name); err != nil {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// LegacyReader
// ---------------------------------------------------------------------------

// LegacyReader reads flat per-day files. Every query is a full-file scan.
type LegacyReader struct {
	fs     FileSystem
	layout layout
	logger *zap.Logger
}

var _ Reader = (*LegacyReader)(nil)

// NewLegacyReader creates a reader over root
func NewLegacyReader(fsys FileSystem, root string, logger *zap.Logger) *LegacyReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LegacyReader{fs: fsys, layout: newLayout(root), logger: logger}
}

// OrderDay scans the day file for the order
func (r *LegacyReader) OrderDay(ctx context.Context, orderID int64, day time.Time) ([]ordersync.ActivityEntry, bool, error) {
	return r.Day(ctx, day, ordersync.ActivityFilter{OrderID: orderID})
}

// Day scans the day file for filter matches. A zero OrderID in the filter
// matches every order.
func (r *LegacyReader) Day(ctx context.Context, day time.Time, filter ordersync.ActivityFilter) ([]ordersync.ActivityEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return readEntries(r.fs, r.layout.legacyFile(day), r.logger, filter.Matches)
}

// OrderDays scans every legacy file for the order
func (r *LegacyReader) OrderDays(ctx context.Context, orderID int64) (map[time.Time][]ordersync.ActivityEntry, error) {
	out := make(map[time.Time][]ordersync.ActivityEntry)
	for _, day := range legacyDays(r.fs, r.layout.base) {
		entries, _, err := r.OrderDay(ctx, orderID, day)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			out[day] = entries
		}
	}
	return out, nil
}

// legacyDays lists the days that have a legacy file
func legacyDays(fsys FileSystem, base string) []time.Time {
	entries, err := fsys.ReadDir(base)
	if err != nil {
		return nil
	}
	var days []time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if day, ok := parseLegacyFileName(e.Name()); ok {
			days = append(days, day)
		}
	}
	return days
}

// ---------------------------------------------------------------------------
// FallbackReader
// ---------------------------------------------------------------------------

// FallbackReader serves each day from primary and falls back to secondary
// for days primary has no data for
type FallbackReader struct {
	primary   Reader
	secondary Reader
}

var _ Reader = (*FallbackReader)(nil)

// NewFallbackReader composes two readers
func NewFallbackReader(primary, secondary Reader) *FallbackReader {
	return &FallbackReader{primary: primary, secondary: secondary}
}

func (r *FallbackReader) OrderDay(ctx context.Context, orderID int64, day time.Time) ([]ordersync.ActivityEntry, bool, error) {
	entries, found, err := r.primary.OrderDay(ctx, orderID, day)
	if err != nil || found {
		return entries, found, err
	}
	return r.secondary.OrderDay(ctx, orderID, day)
}

func (r *FallbackReader) Day(ctx context.Context, day time.Time, filter ordersync.ActivityFilter) ([]ordersync.ActivityEntry, bool, error) {
	entries, found, err := r.primary.Day(ctx, day, filter)
	if err != nil || found {
		return entries, found, err
	}
	return r.secondary.Day(ctx, day, filter)
}

func (r *FallbackReader) OrderDays(ctx context.Context, orderID int64) (map[time.Time][]ordersync.ActivityEntry, error) {
	out, err := r.primary.OrderDays(ctx, orderID)
	if err != nil {
		return nil, err
	}
	legacy, err := r.secondary.OrderDays(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for day, entries := range legacy {
		if _, ok := out[day]; !ok {
			out[day] = entries
		}
	}
	return out, nil
}

func keepMatching(entries []ordersync.ActivityEntry, filter ordersync.ActivityFilter) []ordersync.ActivityEntry {
	out := entries[:0]
	for _, e := range entries {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}
