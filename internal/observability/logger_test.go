package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "key", "earthquake:latest")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "earthquake:latest", line["key"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "TEXT")
	logger.Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "INFO", parseLevel("bogus").String())
	assert.Equal(t, "ERROR", parseLevel("Error").String())
	assert.Equal(t, "WARN", parseLevel("warning").String())
}

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	m.CacheRequests.WithLabelValues("local", "hit").Inc()
	m.ResolveTotal.WithLabelValues("latest", "coalesced").Inc()
	assert.NotNil(t, m.CacheRemoteUp)
}
