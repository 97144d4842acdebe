package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls gorm query spans
type DBTracingConfig struct {
	Enabled bool
	// DBName is reported as db.name on every span
	DBName string
	// WithQueryVariables includes bound values in db.statement
	WithQueryVariables bool
	// SlowQueryThreshold marks spans of slower queries. Zero means 200ms.
	SlowQueryThreshold time.Duration
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm and a slow-query marker on db
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.WithQueryVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	threshold := cfg.SlowQueryThreshold
	if threshold <= 0 {
		threshold = 200 * time.Millisecond
	}
	if err := registerSlowQueryCallbacks(db, threshold); err != nil {
		return err
	}

	logger.Info("database tracing enabled", zap.Duration("slow_query_threshold", threshold))
	return nil
}

func registerSlowQueryCallbacks(db *gorm.DB, threshold time.Duration) error {
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) {
		markSlowQuery(tx, threshold)
	}

	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("odoosync:start_create", before),
		cb.Query().Before("gorm:query").Register("odoosync:start_query", before),
		cb.Update().Before("gorm:update").Register("odoosync:start_update", before),
		cb.Delete().Before("gorm:delete").Register("odoosync:start_delete", before),
		cb.Row().Before("gorm:row").Register("odoosync:start_row", before),
		cb.Raw().Before("gorm:raw").Register("odoosync:start_raw", before),
		cb.Create().After("gorm:create").Register("odoosync:slow_create", after),
		cb.Query().After("gorm:query").Register("odoosync:slow_query", after),
		cb.Update().After("gorm:update").Register("odoosync:slow_update", after),
		cb.Delete().After("gorm:delete").Register("odoosync:slow_delete", after),
		cb.Row().After("gorm:row").Register("odoosync:slow_row", after),
		cb.Raw().After("gorm:raw").Register("odoosync:slow_raw", after),
	)
}

// markSlowQuery flags the statement's span when it ran longer than threshold
func markSlowQuery(tx *gorm.DB, threshold time.Duration) bool {
	ctx := tx.Statement.Context
	if ctx == nil {
		return false
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return false
	}
	elapsed := time.Since(start)
	if elapsed <= threshold {
		return false
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Bool("db.slow_query", true),
		attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
	)
	span.AddEvent("slow_query", trace.WithAttributes(
		attribute.String("db.sql.table", tx.Statement.Table),
		attribute.Int64("threshold_ms", threshold.Milliseconds()),
	))
	return true
}
