package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantJSON    bool
	}{
		{name: "production uses json", environment: "production", wantJSON: true},
		{name: "development uses pretty", environment: "development", wantJSON: false},
		{name: "test uses pretty", environment: "test", wantJSON: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf})
			log.Info("fit complete")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"fit complete"`)
			} else {
				assert.Contains(t, buf.String(), "fit complete")
				assert.NotContains(t, buf.String(), `"msg"`)
			}
		})
	}
}

func TestNew_ExplicitFormatWins(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Environment: "development", Writer: &buf})
	log.Info("run started")

	assert.Contains(t, buf.String(), `"msg":"run started"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	handler := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})

	assert.False(t, handler.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelError))
}

func TestPrettyHandler_ComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	log := &Logger{Logger: slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))}

	log.Component("anomaly").Info("fit complete", "records", 3)

	out := buf.String()
	assert.Contains(t, out, "[anomaly]")
	assert.Contains(t, out, "records=3")
	assert.NotContains(t, out, "component=")
}

func TestPrettyHandler_GroupPrefixesAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	log.WithGroup("baseline").Info("fitted", "q1", 40)

	assert.Contains(t, buf.String(), "baseline.q1=40")
}

func TestPrettyHandler_WithGroupEmptyReturnsSame(t *testing.T) {
	handler := NewPrettyHandler(&bytes.Buffer{}, nil)
	assert.Equal(t, handler, handler.WithGroup(""))
}

func TestPrettyHandler_LevelFormatting(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, "DBG"},
		{slog.LevelInfo, "INF"},
		{slog.LevelWarn, "WRN"},
		{slog.LevelError, "ERR"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			log.Log(context.Background(), tt.level, "x")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestPrettyHandler_WithSource(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo, AddSource: true}))
	log.Info("with source")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestFormatValue(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "passage", formatValue(slog.StringValue("passage")))
	assert.Equal(t, now.Format(time.RFC3339), formatValue(slog.TimeValue(now)))
	assert.Equal(t, "2s", formatValue(slog.DurationValue(2*time.Second)))
	assert.Equal(t, "0.85", formatValue(slog.Float64Value(0.85)))
	assert.Equal(t, "42", formatValue(slog.IntValue(42)))
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.WithError(errors.New("lookup timed out")).
		Warn("metadata lookup failed", "title", "Frankenstein")

	out := buf.String()
	assert.Contains(t, out, `"error":"lookup timed out"`)
	assert.Contains(t, out, `"title":"Frankenstein"`)
}

func TestOrDiscard(t *testing.T) {
	require.NotNil(t, OrDiscard(nil))

	l := slog.New(NewPrettyHandler(&bytes.Buffer{}, nil))
	assert.Same(t, l, OrDiscard(l))

	// Must not panic.
	Discard().Error("dropped")
}
