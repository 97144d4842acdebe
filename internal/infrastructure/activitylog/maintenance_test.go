package activitylog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateLegacy(t *testing.T) {
	s, root, _ := newTestStore(t)
	ctx := context.Background()
	d := day(2024, 3, 15)
	writeLegacy(t, root, d,
		legacyEntry(42, d, ordersync.ActivityOrderCreated),
		legacyEntry(42, d.Add(time.Hour), ordersync.ActivityOdooOrderSent),
		legacyEntry(0, d.Add(time.Hour), ordersync.ActivityBulkAction),
		legacyEntry(7, d, "unknown"),
	)

	res, err := s.MigrateLegacy(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, MigrationResult{Date: "2024-03-15", Migrated: 3, Failed: 1}, res)

	got, err := s.GetForOrder(ctx, 42, d)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, d, got[0].Timestamp)

	again, err := s.MigrateLegacy(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Migrated)
	assert.Equal(t, 3, again.Skipped)

	lines := readLines(t, filepath.Join(root, LogDirName, "2024", "03", "15", "order-42.log"))
	assert.Len(t, lines, 2)
	summary := readLines(t, filepath.Join(root, LogDirName, "2024", "03", "15", SummaryFileName))
	assert.Len(t, summary, 3)
}

func TestMigrateLegacy_MissingFile(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.MigrateLegacy(context.Background(), day(2020, 1, 1))
	assert.ErrorIs(t, err, ErrLegacyNotFound)
}

func TestCleanup(t *testing.T) {
	archiver := &recordingArchiver{}
	s, root, clock := newTestStore(t, WithArchiver(archiver))
	ctx := context.Background()

	clock.Set(day(2023, 11, 20))
	require.NoError(t, s.Append(ctx, entry(1, ordersync.ActivityOrderCreated)))
	clock.Set(day(2024, 5, 1))
	require.NoError(t, s.Append(ctx, entry(2, ordersync.ActivityOrderCreated)))
	clock.Set(day(2024, 6, 1))
	require.NoError(t, s.Append(ctx, entry(3, ordersync.ActivityOrderCreated)))
	writeLegacy(t, root, day(2024, 1, 1), legacyEntry(4, day(2024, 1, 1), ordersync.ActivityOrderCreated))
	writeLegacy(t, root, day(2024, 5, 30), legacyEntry(5, day(2024, 5, 30), ordersync.ActivityOrderCreated))

	res, err := s.Cleanup(ctx, 30)
	require.NoError(t, err)

	assert.Equal(t, "2024-05-02", res.Cutoff)
	assert.Equal(t, 2, res.DaysRemoved)
	assert.Equal(t, 1, res.LegacyFilesRemoved)
	assert.Equal(t, 5, res.FilesArchived)
	assert.Contains(t, archiver.keys, "2023/11/20/order-1.log")
	assert.Contains(t, archiver.keys, "2024/05/01/daily-summary.log")
	assert.Contains(t, archiver.keys, "legacy/order-activity-2024-01-01.log")

	base := filepath.Join(root, LogDirName)
	assert.NoDirExists(t, filepath.Join(base, "2023"))
	assert.NoDirExists(t, filepath.Join(base, "2024", "05"))
	assert.DirExists(t, filepath.Join(base, "2024", "06", "01"))
	assert.NoFileExists(t, filepath.Join(base, "order-activity-2024-01-01.log"))
	assert.FileExists(t, filepath.Join(base, "order-activity-2024-05-30.log"))
}

func TestCleanup_ArchiveFailureKeepsData(t *testing.T) {
	s, root, clock := newTestStore(t, WithArchiver(&recordingArchiver{fail: true}))
	ctx := context.Background()

	clock.Set(day(2024, 1, 1))
	require.NoError(t, s.Append(ctx, entry(1, ordersync.ActivityOrderCreated)))
	clock.Set(day(2024, 6, 1))

	res, err := s.Cleanup(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, res.DaysRemoved)
	assert.Equal(t, 1, res.DaysKept)
	assert.DirExists(t, filepath.Join(root, LogDirName, "2024", "01", "01"))
}

func TestCleanup_InvalidRetention(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.Cleanup(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidRetention)
}

func TestStatistics(t *testing.T) {
	s, root, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3, 4} {
		require.NoError(t, s.Append(ctx, entry(id, ordersync.ActivityStatusChange)))
	}
	require.NoError(t, s.Append(ctx, entry(1, ordersync.ActivityOdooOrderSent)))
	writeLegacy(t, root, day(2024, 6, 1), legacyEntry(1, day(2024, 6, 1), ordersync.ActivityOrderCreated))

	stats, err := s.Statistics(ctx, day(2024, 6, 1))
	require.NoError(t, err)

	assert.True(t, stats.Sharded)
	assert.Equal(t, 4, stats.OrderFiles)
	assert.Equal(t, 5, stats.TotalFiles)
	assert.Equal(t, 5, stats.TotalEntries)
	assert.Positive(t, stats.TotalBytes)
	assert.True(t, stats.LegacyFileExists)
	assert.Equal(t, 2, stats.LegacyEntries)
	assert.InDelta(t, 75.0, stats.ScanReductionPercent, 1e-9)

	info, err := os.Stat(filepath.Join(root, LogDirName, "order-activity-2024-06-01.log"))
	require.NoError(t, err)
	assert.Equal(t, info.Size(), stats.LegacyBytes)
}

func TestStatistics_EmptyDay(t *testing.T) {
	s, _, _ := newTestStore(t)
	stats, err := s.Statistics(context.Background(), day(2020, 2, 2))
	require.NoError(t, err)
	assert.False(t, stats.Sharded)
	assert.Zero(t, stats.TotalFiles)
	assert.Zero(t, stats.ScanReductionPercent)
}
