package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/helpdesk/internal/logger"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, logger.ParseLevel(in), in)
	}
}

func TestNew_WritesServiceAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, slog.LevelInfo, "helpdesk", "test")

	l.Debug("dropped")
	l.Info("chamado created", "chamado_id", 7)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "chamado created", record["msg"])
	assert.Equal(t, "helpdesk", record["service"])
	assert.Equal(t, "test", record["env"])
	assert.EqualValues(t, 7, record["chamado_id"])
	assert.Contains(t, record, "source")
}
