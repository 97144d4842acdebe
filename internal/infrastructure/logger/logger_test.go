package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNew_FileOutputAndExtraCore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")
	extraCore, extra := observer.New(zapcore.InfoLevel)

	log := New(&Config{Level: "info", Format: "json", Output: path}, extraCore)
	log.Debug("hidden")
	log.Info("order synced", zap.Int64("order_id", 42))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"order synced"`)
	assert.Contains(t, string(data), `"order_id":42`)
	assert.NotContains(t, string(data), "hidden")
	assert.Equal(t, 1, extra.Len())
}

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	assert.NotNil(t, FromContext(context.Background()))

	ctx := WithRequestID(context.Background(), base, "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(ctx, "op")
	L(ctx).Info("with trace")
	span.End()

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.NotEmpty(t, fields["span_id"])
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("request_id", "req-9") })
	r.Use(GinMiddleware(zap.New(core)), Recovery(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) {
		assert.Equal(t, "req-9", GetRequestID(c.Request.Context()))
		GetGinLogger(c).Info("inside")
		c.Status(http.StatusOK)
	})
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	for _, path := range []string{"/ok", "/missing", "/panic"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	levels := map[string]zapcore.Level{}
	for _, e := range logs.FilterMessage("HTTP request").All() {
		levels[e.ContextMap()["path"].(string)] = e.Level
	}
	assert.Equal(t, zapcore.InfoLevel, levels["/ok"])
	assert.Equal(t, zapcore.WarnLevel, levels["/missing"])
	assert.Equal(t, zapcore.ErrorLevel, levels["/panic"])
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	assert.Equal(t, "req-9", logs.FilterMessage("inside").All()[0].ContextMap()["request_id"])
}

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Warn, 100*time.Millisecond)
	sql := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	gl.Trace(ctx, time.Now(), sql, nil)
	assert.Equal(t, 0, logs.Len(), "fast queries are below warn")

	gl.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Equal(t, 1, logs.FilterMessage("slow sql").Len())

	gl.Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)
	gl.Trace(ctx, time.Now(), sql, errors.New("locked"))
	assert.Equal(t, 1, logs.FilterMessage("sql error").Len())

	gl.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), sql, errors.New("locked"))
	assert.Equal(t, 1, logs.FilterMessage("sql error").Len())
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
