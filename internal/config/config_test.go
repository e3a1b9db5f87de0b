package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/airsense/internal/config"
	"github.com/airsense/airsense/internal/record"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
schema:
  value_keys: [vBat, pm, aqi]
  tag_keys: [location]
defaults:
  node_type: Catena 4630
  application_name: aq-net
batch:
  concurrency: 8
  timeout: 2s
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"vBat", "pm", "aqi"}, cfg.Schema.ValueKeys)
	assert.Equal(t, []string{"location"}, cfg.Schema.TagKeys)
	assert.Equal(t, "Catena 4630", cfg.Defaults.NodeType)
	assert.Equal(t, "aq-net", cfg.Defaults.ApplicationName)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Batch.Timeout)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`defaults: {radio_type: LoRaWAN}`))
	require.NoError(t, err)

	assert.Equal(t, record.DefaultSchema(), cfg.Schema)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Batch.Timeout)
	assert.Equal(t, "LoRaWAN", cfg.Defaults.RadioType)
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, record.DefaultSchema(), cfg.Schema)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "schema: [unclosed"},
		{"negative concurrency", "batch: {concurrency: -1}"},
		{"negative timeout", "batch: {timeout: -1s}"},
		{"empty key", `schema: {value_keys: ["vBat", ""]}`},
		{"duplicate value key", "schema: {value_keys: [pm, pm]}"},
		{"key in both sections", "schema: {value_keys: [pm], tag_keys: [pm]}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatch_Reloads(t *testing.T) {
	path := writeFile(t, t.TempDir(), "schema: {value_keys: [vBat]}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var latest atomic.Pointer[config.Config]
	done := make(chan error, 1)
	go func() {
		done <- config.Watch(ctx, path, zerolog.Nop(), func(c *config.Config) {
			latest.Store(c)
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("schema: {value_keys: [vBat, rh]}\n"), 0o600))

	require.Eventually(t, func() bool {
		c := latest.Load()
		return c != nil && len(c.Schema.ValueKeys) == 2
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_ReloadsAfterAtomicSave(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schema: {value_keys: [vBat]}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var latest atomic.Pointer[config.Config]
	go func() {
		_ = config.Watch(ctx, path, zerolog.Nop(), func(c *config.Config) {
			latest.Store(c)
		})
	}()
	time.Sleep(100 * time.Millisecond)

	tmp := filepath.Join(dir, ".airsense.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("schema: {value_keys: [vBat, rh]}\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool {
		c := latest.Load()
		return c != nil && len(c.Schema.ValueKeys) == 2
	}, 2*time.Second, 20*time.Millisecond)

	// Later in-place writes to the replaced file still reload.
	require.NoError(t, os.WriteFile(path, []byte("schema: {value_keys: [vBat, rh, pm]}\n"), 0o600))

	require.Eventually(t, func() bool {
		c := latest.Load()
		return c != nil && len(c.Schema.ValueKeys) == 3
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schema: {value_keys: [vBat]}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	go func() {
		_ = config.Watch(ctx, path, zerolog.Nop(), func(*config.Config) {
			reloads.Add(1)
		})
	}()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, int32(0), reloads.Load())
}

func TestWatch_MissingFile(t *testing.T) {
	err := config.Watch(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), zerolog.Nop(), func(*config.Config) {})
	assert.Error(t, err)
}
