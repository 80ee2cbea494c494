package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newLogger(&Config{ExperimentPath: "/tmp/experiments/teleport", LogLevel: "warn", LogFormat: "json"}, buf)

	logger.Info("dropped")
	logger.Warn("kept", "virtual_time", 1500*time.Microsecond)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "1.5ms", record["virtual_time"])
	assert.Equal(t, "teleport", record["experiment"])
}

func TestNewLogger_TextAndUnknownLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newLogger(&Config{ExperimentPath: "exp", LogLevel: "loud"}, buf)

	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown experiment=exp")
}
