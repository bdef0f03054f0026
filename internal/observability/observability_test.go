package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_AddsContextValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "production")

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = context.WithValue(ctx, UserIDKey, uint(7))
	logger.InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "req-1", rec["request_id"])
	assert.EqualValues(t, 7, rec["user_id"])
}

func TestComponentLogger_WarnIncludesError(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger
	SetLogger(NewLogger(&buf, "production"))
	defer SetLogger(prev)

	NewComponentLogger("feed").Warn(context.Background(), "load_next_page", errors.New("boom"), map[string]any{"offset": 10})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "feed", rec["component"])
	assert.Equal(t, "boom", rec["error"])
	assert.EqualValues(t, 10, rec["offset"])
}

func TestExtractRequestID_Missing(t *testing.T) {
	assert.Empty(t, ExtractRequestID(context.Background()))
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "civicfeed-test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	span, ctx := StartSpan(context.Background(), "test")
	assert.NotNil(t, ctx)
	span.SetError(errors.New("ignored"))
	span.End()
	assert.Empty(t, span.TraceID())
}

func TestMetrics_CounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(PageLoads.WithLabelValues("first", "ok"))
	PageLoads.WithLabelValues("first", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PageLoads.WithLabelValues("first", "ok")))
}
