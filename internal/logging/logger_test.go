package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidLevels(t *testing.T) {
	levels := ValidLevels()
	require.Equal(t, []string{"info", "debug", "error", "warn"}, levels)
}

func TestLoggerRecordsMessages(t *testing.T) {
	var out bytes.Buffer
	l := NewLogger(Options{Level: "debug", Output: &out})

	l.Debug("building client", "deployment", "gpt-4o-mini")
	l.Warn("reply truncated", "finish_reason", "length")

	msgs := l.List()
	require.Len(t, msgs, 2)
	assert.Equal(t, "DEBUG", msgs[0].Level)
	assert.Equal(t, "building client", msgs[0].Message)
	require.Len(t, msgs[0].Attributes, 1)
	assert.Equal(t, Attr{Key: "deployment", Value: "gpt-4o-mini"}, msgs[0].Attributes[0])
	assert.NotEmpty(t, msgs[0].ID)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)

	assert.Contains(t, out.String(), "reply truncated")
}

func TestLoggerLevelFilter(t *testing.T) {
	l := NewLogger(Options{Level: "nonsense"})
	l.Debug("hidden")
	l.Info("shown")

	msgs := l.List()
	require.Len(t, msgs, 1)
	assert.Equal(t, "shown", msgs[0].Message)
}

func TestLoggerKeepsRecentMessages(t *testing.T) {
	l := NewLogger(Options{MaxMessages: 3})
	for i := range 10 {
		l.Info("reply truncated", "n", i)
	}

	msgs := l.List()
	require.Len(t, msgs, 3)
	assert.Equal(t, Attr{Key: "n", Value: "7"}, msgs[0].Attributes[0])
	assert.Equal(t, Attr{Key: "n", Value: "9"}, msgs[2].Attributes[0])

	l = NewLogger(Options{})
	for range DefaultMaxMessages + 50 {
		l.Warn("finish_reason=length")
	}
	assert.Len(t, l.List(), DefaultMaxMessages)
}

func TestLoggerWithoutRecording(t *testing.T) {
	var out bytes.Buffer
	l := NewLogger(Options{Output: &out, MaxMessages: -1})
	l.Info("passed through")

	assert.Empty(t, l.List())
	assert.Contains(t, out.String(), "passed through")
}

func TestDefaultLogger(t *testing.T) {
	prev := Get()
	t.Cleanup(func() { SetDefault(prev) })

	l := NewLogger(Options{Level: "warn"})
	SetDefault(l)
	Info("dropped")
	Error("kept", "code", 5)

	msgs := l.List()
	require.Len(t, msgs, 1)
	assert.Equal(t, "kept", msgs[0].Message)
}
