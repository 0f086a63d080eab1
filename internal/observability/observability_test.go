package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "info")

	logger.Debug("hidden")
	logger.Info("exported", "artifact", "stations.yaml")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "exported", rec["msg"])
	assert.Equal(t, "stations.yaml", rec["artifact"])
	assert.Equal(t, "weathervis", rec["service"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "text", "debug")
	logger.Debug("tracing border", "points", 10)
	assert.Contains(t, buf.String(), "msg=\"tracing border\"")
	assert.Contains(t, buf.String(), "points=10")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	m.ConfigExports.WithLabelValues("stations.yaml", "success").Inc()
	m.ConfigExports.WithLabelValues("stations.yaml", "success").Inc()
	m.GridIngests.WithLabelValues("existing").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConfigExports.WithLabelValues("stations.yaml", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GridIngests.WithLabelValues("existing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.GridIngests.WithLabelValues("created")))
}
