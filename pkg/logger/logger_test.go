package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevels(t *testing.T) {
	for _, tc := range []struct {
		name          string
		log           func(Logger, string)
		expectedLevel zapcore.Level
	}{
		{"debug", func(l Logger, m string) { l.Debug(m) }, zapcore.DebugLevel},
		{"info", func(l Logger, m string) { l.Info(m) }, zapcore.InfoLevel},
		{"warn", func(l Logger, m string) { l.Warn(m) }, zapcore.WarnLevel},
		{"error", func(l Logger, m string) { l.Error(m) }, zapcore.ErrorLevel},
		{"debug_with_context", func(l Logger, m string) { l.DebugWithContext(context.Background(), m) }, zapcore.DebugLevel},
		{"info_with_context", func(l Logger, m string) { l.InfoWithContext(context.Background(), m) }, zapcore.InfoLevel},
		{"warn_with_context", func(l Logger, m string) { l.WarnWithContext(context.Background(), m) }, zapcore.WarnLevel},
		{"error_with_context", func(l Logger, m string) { l.ErrorWithContext(context.Background(), m) }, zapcore.ErrorLevel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dut, logs := NewObserverLogger("debug")
			tc.log(dut, "ABC")

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			require.Equal(t, "ABC", entry.Message)
			require.Empty(t, entry.ContextMap())
			require.Equal(t, tc.expectedLevel, entry.Level)
		})
	}
}

func TestContextAddsSpanIDs(t *testing.T) {
	dut, logs := NewObserverLogger("debug")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{2},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	dut.InfoWithContext(ctx, "drained", zap.Int("rounds", 3))
	fields := logs.All()[0].ContextMap()
	require.Equal(t, sc.TraceID().String(), fields["trace_id"])
	require.Equal(t, sc.SpanID().String(), fields["span_id"])
	require.EqualValues(t, 3, fields["rounds"])
}

func TestWithFields(t *testing.T) {
	logger, logs := NewObserverLogger("info")

	child := logger.With(zap.String("container", "c1"))
	child.Info("ABC")
	require.Equal(t, map[string]interface{}{"container": "c1"}, logs.All()[0].ContextMap())

	logger.Info("ABC")
	require.Empty(t, logs.All()[1].ContextMap())

	logger.Debug("filtered")
	require.Equal(t, 2, logs.Len())
}

func TestNewLogger(t *testing.T) {
	for _, tc := range []struct {
		format, level string
		ok            bool
	}{
		{"json", "info", true},
		{"text", "debug", true},
		{"json", "none", true},
		{"json", "verbose", false},
		{"json", "fatal", false},
		{"xml", "info", false},
	} {
		t.Run(tc.format+"_"+tc.level, func(t *testing.T) {
			l, err := NewLogger(tc.format, tc.level)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
		})
	}

	require.Panics(t, func() { MustNewLogger("json", "verbose") })
}
