package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/weathervis-go/internal/app"
	"github.com/bbernstein/weathervis-go/internal/config"
	"github.com/bbernstein/weathervis-go/internal/observability"
)

func newApp(t *testing.T) *app.App {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Env:          "test",
		HTTPTimeout:  time.Second,
		DatabaseURL:  "file:" + filepath.Join(dir, "weathervis.db"),
		DataDir:      filepath.Join(dir, "data"),
		GridCacheDir: filepath.Join(dir, "cache"),
	}
	a, err := app.New(cfg, observability.Discard(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestDispatch_Stations(t *testing.T) {
	a := newApp(t)
	file := filepath.Join(t.TempDir(), "stations.ini.yaml")
	require.NoError(t, os.WriteFile(file, []byte("Andenes:\n  lat: 69.3\n  lon: 16.1\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, dispatch(context.Background(), a, []string{"stations", file}, &out))
	assert.Equal(t, "stations: 1 created, 0 existing\n", out.String())

	data, err := os.ReadFile(a.Exporter.Paths().Stations)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Andenes:")
}

func TestDispatch_Export(t *testing.T) {
	a := newApp(t)
	var out bytes.Buffer
	require.NoError(t, dispatch(context.Background(), a, []string{"export"}, &out))
	assert.Equal(t, "configuration exported\n", out.String())
	_, err := os.Stat(a.Exporter.Paths().Plots)
	assert.NoError(t, err)
}

func TestDispatch_Usage(t *testing.T) {
	a := newApp(t)
	for _, args := range [][]string{
		{"unknown"},
		{"stations"},
		{"border", "only-name"},
		{"grids"},
	} {
		err := dispatch(context.Background(), a, args, &bytes.Buffer{})
		assert.True(t, errors.Is(err, errUsage), "%v: %v", args, err)
	}
}

func TestRun_NoCommand(t *testing.T) {
	err := run(context.Background(), nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, errUsage)
}
