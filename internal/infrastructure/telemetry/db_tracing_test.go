package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestRegisterDBTracing(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{Enabled: false}, zap.NewNop()))
	assert.Nil(t, db.Callback().Query().Get("odoosync:slow_query"))

	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{Enabled: true, DBName: "odoosync"}, zap.NewNop()))
	assert.NotNil(t, db.Callback().Query().Get("odoosync:slow_query"))

	var n int
	require.NoError(t, db.WithContext(context.Background()).Raw("SELECT 1").Scan(&n).Error)
	assert.Equal(t, 1, n)
}

func TestMarkSlowQuery(t *testing.T) {
	db := openTestDB(t)

	fresh := db.WithContext(context.WithValue(context.Background(), queryStartKey{}, time.Now()))
	assert.False(t, markSlowQuery(fresh, time.Hour))

	slow := db.WithContext(context.WithValue(context.Background(), queryStartKey{}, time.Now().Add(-time.Second)))
	assert.True(t, markSlowQuery(slow, time.Millisecond))

	assert.False(t, markSlowQuery(db.WithContext(context.Background()), time.Millisecond))
}
