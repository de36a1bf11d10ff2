package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "payment.log")

	logger, err := NewLogger(Options{Service: "payment", Env: "test", File: path})
	require.NoError(t, err)
	logger.Info("payment_start", zap.String("identity", "alice"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "payment_start", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "payment", entry["service"])
	assert.Equal(t, "test", entry["env"])
	assert.Equal(t, "alice", entry["identity"])
	assert.Contains(t, entry, "ts")
}

func TestNewLogger_Level(t *testing.T) {
	logger, err := NewLogger(Options{Service: "payment", Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := NewLogger(Options{Level: "loud"})
	require.Error(t, err)
	assert.Panics(t, func() { MustNewLogger(Options{Level: "loud"}) })
}
