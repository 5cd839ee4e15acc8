package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestZerologProvider_LevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo)
	logger := p.GetLoggerWithName("pipeline").With(ModelNameKey, "GBDTClassifier")

	logger.Debug("hidden")
	logger.Info("Training started", SamplesKey, 1600, OperationKey, OperationFit)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "Training started", entries[0]["message"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "pipeline", entries[0]["component"])
	assert.Equal(t, "GBDTClassifier", entries[0][ModelNameKey])
	assert.Equal(t, 1600.0, entries[0][SamplesKey])
	assert.Equal(t, OperationFit, entries[0][OperationKey])
}

func TestZerologProvider_ErrorWithStack(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologProvider(&buf, LevelDebug).GetLogger()

	err := lsErrors.NewConfigError("training.test_size", "required key is missing", nil)
	logger.Error("Configuration rejected", err, ConfigPathKey, "configs/config.yaml")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0][ErrAttrKey], "training.test_size")
	assert.NotEmpty(t, entries[0][StacktraceAttrKey])
	detail, ok := entries[0][ErrAttrKey+"_detail"].(map[string]interface{})
	require.True(t, ok, "typed errors should be expanded")
	assert.Equal(t, "ConfigError", detail["type"])
}

func TestZerologProvider_Enabled(t *testing.T) {
	p := NewZerologProvider(&bytes.Buffer{}, LevelWarn)
	logger := p.GetLogger()
	ctx := context.Background()

	assert.False(t, logger.Enabled(ctx, LevelInfo))
	assert.True(t, logger.Enabled(ctx, LevelWarn))
	assert.True(t, logger.Enabled(ctx, LevelError))

	p.SetLevel(LevelDebug)
	assert.True(t, p.GetLogger().Enabled(ctx, LevelDebug))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", LevelInfo, false},
		{"debug", LevelDebug, false},
		{"WARN", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				var cfgErr *lsErrors.ConfigError
				assert.True(t, lsErrors.As(err, &cfgErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLogger_RoutesWarnings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupLogger(Options{Level: "debug", Output: &buf}))
	defer lsErrors.SetZerologWarnFunc(nil)

	lsErrors.Warn(lsErrors.NewUndefinedMetricWarning("precision", "no predicted samples", 0))

	entries := decodeLines(t, &buf)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, "warn", last["level"])
	assert.Equal(t, "warnings", last["component"])
	assert.Equal(t, "*errors.UndefinedMetricWarning", last[ErrorTypeKey])
}

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("test error"), ErrorTypeKey, "FitError")

	assert.NotEmpty(t, buffer.String())
	assert.True(t, testLogger.ContainsMessage("debug message"))
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "test error"))
	assert.True(t, testLogger.ContainsField(ErrorTypeKey, "FitError"))

	ctxLogger := testLogger.With(TrialKey, 3)
	ctxLogger.Info("trial finished")
	assert.True(t, testLogger.ContainsField(TrialKey, 3.0))

	testLogger.Clear()
	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTestLogger_ConcurrentWrites(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			testLogger.With(TrialKey, i).Info("trial finished")
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 16)
}

func TestUseTestProvider(t *testing.T) {
	logger, restore := UseTestProvider(LevelInfo)
	defer restore()

	GetLoggerWithName("tuning").Info("search started")
	assert.True(t, logger.ContainsField("component", "tuning"))
}
