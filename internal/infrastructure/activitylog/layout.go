package activitylog

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// LogDirName is the directory under the root holding all shards
	LogDirName = "order-activity-logs"
	// SummaryFileName is the per-day summary file
	SummaryFileName = "daily-summary.log"
	// SystemFileName holds entries without an order
	SystemFileName = "order-system.log"

	legacyPrefix = "order-activity-"
	dateLayout   = "2006-01-02"
)

// layout resolves paths inside the log tree
type layout struct {
	base string
}

func newLayout(root string) layout {
	return layout{base: filepath.Join(root, LogDirName)}
}

// dayDir is {base}/YYYY/MM/DD
func (l layout) dayDir(day time.Time) string {
	return filepath.Join(l.base, day.Format("2006"), day.Format("01"), day.Format("02"))
}

func (l layout) orderFile(day time.Time, orderID int64) string {
	return filepath.Join(l.dayDir(day), orderFileName(orderID))
}

func (l layout) summaryFile(day time.Time) string {
	return filepath.Join(l.dayDir(day), SummaryFileName)
}

// legacyFile is the flat pre-sharding file of one day
func (l layout) legacyFile(day time.Time) string {
	return filepath.Join(l.base, legacyFileName(day))
}

func orderFileName(orderID int64) string {
	if orderID == 0 {
		return SystemFileName
	}
	return fmt.Sprintf("order-%d.log", orderID)
}

func legacyFileName(day time.Time) string {
	return legacyPrefix + day.Format(dateLayout) + ".log"
}

// parseOrderFileName returns the order id of an order-{id}.log name; the
// system file maps to zero
func parseOrderFileName(name string) (int64, bool) {
	if name == SystemFileName {
		return 0, true
	}
	if !strings.HasPrefix(name, "order-") || !strings.HasSuffix(name, ".log") {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, "order-"), ".log"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseLegacyFileName returns the day of an order-activity-YYYY-MM-DD.log name
func parseLegacyFileName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, legacyPrefix) || !strings.HasSuffix(name, ".log") {
		return time.Time{}, false
	}
	day, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, legacyPrefix), ".log"))
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// startOfDay truncates t to midnight UTC
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
