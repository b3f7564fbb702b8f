package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "orchestrator.log")
	t.Cleanup(func() { _ = Close() })

	logger, err := New(Config{Level: "debug", FilePath: path})
	require.NoError(t, err)

	logger.Info().Str("model", "llama3.1:8b").Msg("dispatch complete")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dispatch complete")
	assert.Contains(t, string(data), "llama3.1:8b")
}

func TestNew_RespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiet.log")
	t.Cleanup(func() { _ = Close() })

	logger, err := New(Config{Level: "warn", FilePath: path})
	require.NoError(t, err)

	logger.Info().Msg("should not appear")
	logger.Warn().Msg("should appear")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should not appear")
	assert.Contains(t, string(data), "should appear")
}

func TestDetachContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
	detached := DetachContext(parent)
	cancel()

	assert.Error(t, parent.Err())
	assert.NoError(t, detached.Err())
	assert.Equal(t, "v", detached.Value(ctxKey{}))
}

func TestDetachContextWithTimeout(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	detached, detachedCancel := DetachContextWithTimeout(parent, 50*time.Millisecond)
	defer detachedCancel()

	cancel()
	assert.NoError(t, detached.Err(), "parent cancellation must not propagate")

	_, ok := detached.Deadline()
	assert.True(t, ok)

	<-detached.Done()
	assert.ErrorIs(t, detached.Err(), context.DeadlineExceeded)
}

type ctxKey struct{}
