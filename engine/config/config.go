package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/math"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

const DefaultPath = "anima.toml"

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Window      WindowConfig      `toml:"window"`
	Renderer    RendererConfig    `toml:"renderer"`
}

type ApplicationConfig struct {
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
}

type WindowConfig struct {
	X      int32  `toml:"x"`
	Y      int32  `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	Backend       string   `toml:"backend"`
	Format        string   `toml:"format"`
	BufferCount   uint32   `toml:"buffer_count"`
	PresentMode   []string `toml:"present_mode"`
	MaxResolution uint32   `toml:"max_resolution"`
	ReverseZ      bool     `toml:"reverse_z"`
	MaxBindSlots  uint32   `toml:"max_bind_slots"`
	Validation    bool     `toml:"validation"`
	// Precompiled SPIR-V, optional. Without a vertex shader frames are only cleared.
	VertexShader string `toml:"vertex_shader,omitempty"`
	PixelShader  string `toml:"pixel_shader,omitempty"`
}

func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:     "Anima RHI",
			LogLevel: "info",
		},
		Window: WindowConfig{
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			Backend:       rhi.BackendVulkan.String(),
			Format:        rhi.FormatB8G8R8A8Unorm.String(),
			BufferCount:   2,
			PresentMode:   []string{"mailbox", "fifo"},
			MaxResolution: rhi.DefaultMaxResolution,
			MaxBindSlots:  rhi.DefaultMaxSlots,
		},
	}
}

// Load reads path on top of the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read config %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		err = fmt.Errorf("config %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		core.LogInfo("no config at %s, using defaults", path)
		return Default(), nil
	}
	return Load(path)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("line %d column %d: %w", row, col, err)
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Config) Validate() error {
	var errs []error
	r := c.Renderer

	if _, err := rhi.ParseBackendType(r.Backend); err != nil {
		errs = append(errs, err)
	}
	if _, err := rhi.ParseFormat(r.Format); err != nil {
		errs = append(errs, err)
	}
	if flags, err := rhi.ParsePresentFlags(r.PresentMode); err != nil {
		errs = append(errs, err)
	} else if flags == 0 {
		errs = append(errs, fmt.Errorf("present_mode: at least one mode is required"))
	}
	if r.BufferCount < 1 {
		errs = append(errs, fmt.Errorf("buffer_count must be at least 1, got %d", r.BufferCount))
	}
	if r.MaxResolution == 0 {
		errs = append(errs, fmt.Errorf("max_resolution must be positive"))
	}
	if !math.InRange(c.Window.Width, 1, r.MaxResolution) || !math.InRange(c.Window.Height, 1, r.MaxResolution) {
		errs = append(errs, fmt.Errorf("window %dx%d outside 1..%d: %w",
			c.Window.Width, c.Window.Height, r.MaxResolution, core.ErrInvalidResolution))
	}
	if r.MaxBindSlots < 1 {
		errs = append(errs, fmt.Errorf("max_bind_slots must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c *Config) BackendType() (rhi.BackendType, error) {
	return rhi.ParseBackendType(c.Renderer.Backend)
}

// SwapChainDesc builds the swap chain request for the configured window.
func (c *Config) SwapChainDesc() (rhi.SwapChainDesc, error) {
	format, err := rhi.ParseFormat(c.Renderer.Format)
	if err != nil {
		return rhi.SwapChainDesc{}, err
	}
	flags, err := rhi.ParsePresentFlags(c.Renderer.PresentMode)
	if err != nil {
		return rhi.SwapChainDesc{}, err
	}
	return rhi.SwapChainDesc{
		Width:         c.Window.Width,
		Height:        c.Window.Height,
		Format:        format,
		BufferCount:   c.Renderer.BufferCount,
		Flags:         flags,
		MaxResolution: c.Renderer.MaxResolution,
	}, nil
}

// PipelineOptions maps the renderer section onto rhi.Pipeline options.
func (c *Config) PipelineOptions() []rhi.PipelineOption {
	return []rhi.PipelineOption{
		rhi.WithReverseZ(c.Renderer.ReverseZ),
		rhi.WithMaxSlots(c.Renderer.MaxBindSlots),
	}
}
