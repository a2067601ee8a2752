package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/camera"
	"github.com/shadowP12/visibility-buffer/engine/renderer"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
)

// Config is the viewer configuration file. Zero values keep the library defaults.
type Config struct {
	Model  string `yaml:"model"`
	Script string `yaml:"script"`
	Debug  bool   `yaml:"debug"`

	Window    WindowConfig    `yaml:"window"`
	Renderer  RendererConfig  `yaml:"renderer"`
	Camera    CameraConfig    `yaml:"camera"`
	Profiling ProfilingConfig `yaml:"profiling"`

	TickRate   float64 `yaml:"tick_rate"`
	FrameLimit float64 `yaml:"frame_limit"`
}

type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type RendererConfig struct {
	PresentMode     string `yaml:"present_mode"`
	ShadingMode     string `yaml:"shading_mode"`
	OverflowPolicy  string `yaml:"overflow_policy"`
	MaxDrawCommands int    `yaml:"max_draw_commands"`
	BatchCount      int    `yaml:"batch_count"`
	Software        bool   `yaml:"software"`
	ClusterBounds   bool   `yaml:"cluster_bounds"`

	// Pointers distinguish "unset" from an explicit false.
	FrustumCulling          *bool `yaml:"frustum_culling"`
	TriangleBackfaceCulling *bool `yaml:"triangle_backface_culling"`
	PackMeshes              *bool `yaml:"pack_meshes"`
}

type CameraConfig struct {
	Position *[3]float32 `yaml:"position"`
	Rotation *[3]float32 `yaml:"rotation"`
	Fov      float32     `yaml:"fov"` // degrees
	Near     float32     `yaml:"near"`
	Far      float32     `yaml:"far"`
}

type ProfilingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
}

func defaultConfig() Config {
	return Config{
		Window:    WindowConfig{Title: "Visibility Buffer", Width: 1280, Height: 720},
		Profiling: ProfilingConfig{Enabled: true, Interval: "1s"},
		TickRate:  60,
	}
}

// loadConfig reads a YAML file over the defaults. Unknown keys are rejected.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	return decodeConfig(cfg, data, path)
}

func decodeConfig(cfg Config, data []byte, name string) (Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return cfg, nil
}

// profilingInterval parses the interval; an empty string means one second.
func (c Config) profilingInterval() (time.Duration, error) {
	if c.Profiling.Interval == "" {
		return time.Second, nil
	}
	d, err := time.ParseDuration(c.Profiling.Interval)
	if err != nil {
		return 0, fmt.Errorf("profiling.interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("profiling.interval must be positive, got %s", d)
	}
	return d, nil
}

// rendererOptions maps the renderer section onto renderer options.
func (c Config) rendererOptions(logger common.Logger) ([]renderer.RendererBuilderOption, error) {
	rc := c.Renderer
	present, ok := renderer.ParsePresentMode(rc.PresentMode)
	if !ok {
		return nil, fmt.Errorf("renderer.present_mode: unknown mode %q", rc.PresentMode)
	}
	shading, err := renderer.ParseShadingMode(rc.ShadingMode)
	if err != nil {
		return nil, fmt.Errorf("renderer.shading_mode: %w", err)
	}
	overflow, err := filtering.ParseOverflowPolicy(rc.OverflowPolicy)
	if err != nil {
		return nil, fmt.Errorf("renderer.overflow_policy: %w", err)
	}

	opts := []renderer.RendererBuilderOption{
		renderer.WithLogger(logger),
		renderer.WithPresentMode(present),
		renderer.WithShadingMode(shading),
		renderer.WithOverflowPolicy(overflow),
		renderer.WithForceSoftwareRenderer(rc.Software),
		renderer.WithClusterBounds(rc.ClusterBounds),
	}
	if rc.MaxDrawCommands != 0 {
		opts = append(opts, renderer.WithMaxDrawCommands(rc.MaxDrawCommands))
	}
	if rc.BatchCount != 0 {
		opts = append(opts, renderer.WithBatchCount(rc.BatchCount))
	}
	if rc.FrustumCulling != nil {
		opts = append(opts, renderer.WithFrustumCulling(*rc.FrustumCulling))
	}
	if rc.TriangleBackfaceCulling != nil {
		opts = append(opts, renderer.WithTriangleBackfaceCulling(*rc.TriangleBackfaceCulling))
	}
	if rc.PackMeshes != nil {
		opts = append(opts, renderer.WithPackMeshes(*rc.PackMeshes))
	}
	return opts, nil
}

// cameraOptions maps the camera section onto camera options.
func (c Config) cameraOptions(aspect float32) ([]camera.CameraBuilderOption, error) {
	cc := c.Camera
	opts := []camera.CameraBuilderOption{camera.WithAspect(aspect)}
	if cc.Position != nil {
		opts = append(opts, camera.WithTranslation(mgl32.Vec3(*cc.Position)))
	}
	if cc.Rotation != nil {
		opts = append(opts, camera.WithEuler(mgl32.Vec3(*cc.Rotation)))
	}
	if cc.Fov != 0 {
		if cc.Fov < 0 || cc.Fov >= 180 {
			return nil, fmt.Errorf("camera.fov must be in (0, 180) degrees, got %g", cc.Fov)
		}
		opts = append(opts, camera.WithFov(mgl32.DegToRad(cc.Fov)))
	}
	if cc.Near != 0 || cc.Far != 0 {
		if cc.Near <= 0 || cc.Far <= cc.Near {
			return nil, fmt.Errorf("camera near/far must satisfy 0 < near < far, got %g/%g", cc.Near, cc.Far)
		}
		opts = append(opts, camera.WithNearFar(cc.Near, cc.Far))
	}
	return opts, nil
}
