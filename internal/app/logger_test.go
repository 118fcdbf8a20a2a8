package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_LevelParsing(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger("warn", "text", &buf)
	logger.Info("hidden")
	logger.Warn("visible")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")

	// Unrecognized levels fall back to info rather than failing.
	buf.Reset()
	logger = newLogger("chatty", "text", &buf)
	logger.Debug("hidden")
	logger.Info("visible")
	out = buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger("info", "json", &buf).Info("ready")
	assert.Contains(t, buf.String(), `"msg":"ready"`)
}
