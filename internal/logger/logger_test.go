package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("Should write text output with fields", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: InfoLevel, Output: &buf, TimeFormat: "15:04:05"})
		l.With("collection", "pdf_report").Info("indexed", "chunks", 4)

		out := buf.String()
		assert.Contains(t, out, "indexed")
		assert.Contains(t, out, "pdf_report")
		assert.Contains(t, out, "chunks")
	})

	t.Run("Should write JSON when enabled", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})
		l.Warn("query failed")

		out := buf.String()
		assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
		assert.Contains(t, out, "query failed")
	})

	t.Run("Should filter below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: WarnLevel, Output: &buf})
		l.Debug("hidden debug")
		l.Info("hidden info")
		l.Warn("shown warn")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "shown warn")
	})

	t.Run("Should discard everything when disabled", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: DisabledLevel, Output: &buf})
		l.Error("nope")
		assert.Empty(t, buf.String())
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"off":     DisabledLevel,
		"bogus":   InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestFromContext(t *testing.T) {
	t.Run("Should return logger stored in context", func(t *testing.T) {
		expected := NewLogger(TestConfig())
		ctx := ContextWithLogger(context.Background(), expected)
		assert.Equal(t, expected, FromContext(ctx))
	})

	t.Run("Should fall back to the default logger", func(t *testing.T) {
		l := FromContext(context.Background())
		require.NotNil(t, l)
		assert.Equal(t, Default(), l)
	})
}
