package cmd

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/linecheck/internal/config"
	"github.com/MeKo-Tech/linecheck/internal/cycle"
	"github.com/MeKo-Tech/linecheck/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path) //nolint:gosec // test file
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func testNodeConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ModelsDir = t.TempDir()
	cfg.OCR.Backend = pipeline.OCRBackendNone
	cfg.Output.Format = "none"
	return &cfg
}

func TestNewNodeWiresSinks(t *testing.T) {
	cfg := testNodeConfig(t)
	cfg.Output.Format = "json"
	cfg.Output.File = filepath.Join(t.TempDir(), "out.json")

	n, err := newNode(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = n.Close() }()

	assert.True(t, n.pipeline.Detector.Simulated())

	res, err := n.orch.Trigger(context.Background(), cycle.Request{Trigger: "test"})
	require.NoError(t, err)
	assert.Equal(t, res, n.orch.Last())
	assert.NotEmpty(t, res.Serial, "base64 codec issues a serial")
	require.NotNil(t, res.Verification)

	data, err := os.ReadFile(cfg.Output.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), res.ID.String())
}

func TestNewNodeSources(t *testing.T) {
	for _, src := range []config.SourceConfig{
		{Type: config.SourceFile, Path: filepath.Join(t.TempDir(), "frame.txt")},
		{Type: config.SourceDir, Path: filepath.Join(t.TempDir(), "missing")},
	} {
		t.Run(src.Type, func(t *testing.T) {
			cfg := testNodeConfig(t)
			cfg.Cycle.Source = src
			_, err := newNode(context.Background(), cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestNewNodeUnknownCodec(t *testing.T) {
	cfg := testNodeConfig(t)
	cfg.Cycle.Codec = "rot13"

	n, err := newNode(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Nil(t, n)
}

func TestNodeCloseIsSafe(t *testing.T) {
	var missing *node
	assert.NoError(t, missing.Close())

	n, err := newNode(context.Background(), testNodeConfig(t), nil)
	require.NoError(t, err)
	assert.NoError(t, n.Close())
	assert.NoError(t, n.Close())
}

func TestNewNodeRedisUnavailable(t *testing.T) {
	cfg := testNodeConfig(t)
	cfg.Upload.Redis.Enabled = true
	cfg.Upload.Redis.Addr = "127.0.0.1:1"

	_, err := newNode(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}

func TestServeHTTPGracefulShutdown(t *testing.T) {
	cfg := testNodeConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 1

	n, err := newNode(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = n.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.NoError(t, serveHTTP(ctx, cfg, n.server()))
}
