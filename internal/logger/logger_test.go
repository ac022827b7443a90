package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Run("Should accept known levels case-insensitively", func(t *testing.T) {
		assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
		assert.Equal(t, WarnLevel, ParseLevel(" warn "))
		assert.Equal(t, ErrorLevel, ParseLevel("error"))
	})

	t.Run("Should fall back to info", func(t *testing.T) {
		assert.Equal(t, InfoLevel, ParseLevel("verbose"))
		assert.Equal(t, InfoLevel, ParseLevel(""))
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should filter below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: WarnLevel, Output: &buf})

		l.Info("hidden")
		l.Warn("skipping module", "path", "1")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "skipping module")
		assert.Contains(t, out, "path=1")
	})

	t.Run("Should write JSON entries", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: DebugLevel, Output: &buf, JSON: true})

		l.Debug("step", "groups", 2)

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
		assert.Equal(t, "step", entry["msg"])
		assert.EqualValues(t, 2, entry["groups"])
	})

	t.Run("Should attach fields with With", func(t *testing.T) {
		var buf bytes.Buffer
		l := With(NewLogger(&Config{Level: InfoLevel, Output: &buf}), "run", "abc")

		l.Info("done")

		assert.Contains(t, buf.String(), "run=abc")
	})
}

func TestNop(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x")
	})
	assert.Equal(t, l, With(l, "k", "v"))
}
