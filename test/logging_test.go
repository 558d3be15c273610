package test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecorder(t *testing.T) {
	logs := NewLogRecorder()
	logs.Logger.Debug("first", slog.String("taskARN", "arn:1"))
	logs.Logger.Warn("second")
	logs.Logger.Warn("first")

	require.Len(t, logs.Records(t), 3)
	first := logs.WithMessage(t, "first")
	require.Len(t, first, 2)
	assert.Equal(t, "DEBUG", first[0][slog.LevelKey])
	assert.Equal(t, "arn:1", first[0]["taskARN"])
	assert.Equal(t, "WARN", first[1][slog.LevelKey])
	assert.Empty(t, logs.WithMessage(t, "third"))
}
