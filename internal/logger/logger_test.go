package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	prevLogger, prevOutput := Logger, output
	t.Cleanup(func() {
		Logger, output = prevLogger, prevOutput
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"WARN", log.WarnLevel},
		{" error ", log.ErrorLevel},
		{"", log.InfoLevel},
		{"verbose", log.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestConfigure_EnvFallback(t *testing.T) {
	restoreLogger(t)
	t.Setenv("TUTOR_LOG_LEVEL", "debug")

	require.NoError(t, Configure("", ""))
	assert.True(t, IsDebug())

	require.NoError(t, Configure("warn", ""))
	assert.False(t, IsDebug())
	assert.Equal(t, log.WarnLevel, Logger.GetLevel())
}

func TestConfigure_LogFile(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "tutor.log")

	require.NoError(t, Configure("info", path))
	Info("turn finished", "outcome", "succeeded")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "turn finished")
	assert.Contains(t, string(data), "outcome=succeeded")
}

func TestNewStyledLogger(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	SetOutput(&buf)
	Logger.SetLevel(log.WarnLevel)

	l := NewStyledLogger("Pipeline")
	l.Info("hidden")
	l.Warn("audit failed", "attempt", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "Pipeline")
	assert.Contains(t, out, "audit failed")
}
