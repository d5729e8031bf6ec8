package config

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	backend, err := cfg.BackendType()
	require.NoError(t, err)
	assert.Equal(t, rhi.BackendVulkan, backend)

	desc, err := cfg.SwapChainDesc()
	require.NoError(t, err)
	assert.Equal(t, uint32(1280), desc.Width)
	assert.Equal(t, uint32(720), desc.Height)
	assert.Equal(t, rhi.FormatB8G8R8A8Unorm, desc.Format)
	assert.Equal(t, uint32(2), desc.BufferCount)
	assert.Equal(t, rhi.PresentMailbox|rhi.PresentFifo, desc.Flags)
	assert.Len(t, cfg.PipelineOptions(), 2)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[application]
log_level = "debug"

[window]
width = 800
height = 600

[renderer]
backend = "headless"
buffer_count = 3
present_mode = ["immediate"]
reverse_z = true
`))
	require.NoError(t, err)

	assert.Equal(t, "Anima RHI", cfg.Application.Name)
	assert.Equal(t, "debug", cfg.Application.LogLevel)
	assert.Equal(t, uint32(800), cfg.Window.Width)
	assert.Equal(t, int32(100), cfg.Window.X)
	assert.Equal(t, "headless", cfg.Renderer.Backend)
	assert.Equal(t, uint32(3), cfg.Renderer.BufferCount)
	assert.Equal(t, []string{"immediate"}, cfg.Renderer.PresentMode)
	assert.True(t, cfg.Renderer.ReverseZ)
	assert.Equal(t, "b8g8r8a8_unorm", cfg.Renderer.Format)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "[renderer]\nbackedn = \"vulkan\"\n"},
		{"syntax", "[renderer\n"},
		{"backend", "[renderer]\nbackend = \"metal\"\n"},
		{"format", "[renderer]\nformat = \"rgb565\"\n"},
		{"present mode", "[renderer]\npresent_mode = [\"vsync\"]\n"},
		{"no present mode", "[renderer]\npresent_mode = []\n"},
		{"buffer count", "[renderer]\nbuffer_count = 0\n"},
		{"zero width", "[window]\nwidth = 0\n"},
		{"too tall", "[window]\nheight = 20000\n"},
		{"bind slots", "[renderer]\nmax_bind_slots = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Renderer.Backend = "metal"
	cfg.Window.Width = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownBackend))
	assert.True(t, errors.Is(err, core.ErrInvalidResolution))
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Renderer.Backend = "headless"
	cfg.Renderer.VertexShader = "shaders/vert.spv"

	data, err := cfg.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "[renderer]")

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(dir, "anima.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window]\nwidth = 320\nheight = 240\n"), 0o644))
	cfg, err = LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(320), cfg.Window.Width)
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anima.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window]\nwidth = 320\nheight = 240\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// give the watcher time to register before writing
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte("[window]\nwidth = 640\nheight = 480\n"), 0o644); err != nil {
			return false
		}
		select {
		case cfg := <-reloaded:
			return cfg.Window.Width == 640
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
