package test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/Fretadao/run-ecs-task/logging"
	"github.com/stretchr/testify/require"
)

// SetLogLevel sets the log level for a test and restores the original level once the test is complete.
// For example, if you want to avoid a lot of Info logging in a test do
// SetLogLevel(t, slog.LevelError)
func SetLogLevel(t *testing.T, level slog.Level) {
	originalLogLevel := logging.Level.Level()
	logging.Level.Set(level)
	t.Cleanup(func() {
		logging.Level.Set(originalLogLevel)
	})
}

// LogRecorder is a JSON logger at debug level that keeps its output for inspection
type LogRecorder struct {
	Logger *slog.Logger
	buf    bytes.Buffer
}

func NewLogRecorder() *LogRecorder {
	r := &LogRecorder{}
	r.Logger = slog.New(slog.NewJSONHandler(&r.buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return r
}

// Records returns each logged line decoded as a map
func (r *LogRecorder) Records(t require.TestingT) []map[string]any {
	var records []map[string]any
	decoder := json.NewDecoder(bytes.NewReader(r.buf.Bytes()))
	for decoder.More() {
		var record map[string]any
		require.NoError(t, decoder.Decode(&record))
		records = append(records, record)
	}
	return records
}

// WithMessage returns the records whose msg is message
func (r *LogRecorder) WithMessage(t require.TestingT, message string) []map[string]any {
	var matching []map[string]any
	for _, record := range r.Records(t) {
		if record[slog.MessageKey] == message {
			matching = append(matching, record)
		}
	}
	return matching
}
