// Command viewer renders a glTF model through the cluster culling and visibility buffer
// pipeline.
//
// Usage:
//
//	viewer -model scene.glb [-config viewer.yaml] [-script orbit] [-debug]
//
// Drag with the left mouse button to look around and scroll to move. Keys 1 to 4 switch
// between lit, normal, draw and triangle shading; B toggles the cluster bounds overlay.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine"
	"github.com/shadowP12/visibility-buffer/engine/camera"
	"github.com/shadowP12/visibility-buffer/engine/loader"
	"github.com/shadowP12/visibility-buffer/engine/renderer"
	"github.com/shadowP12/visibility-buffer/engine/scene"
	"github.com/shadowP12/visibility-buffer/engine/script"
	"github.com/shadowP12/visibility-buffer/engine/window"
)

func main() {
	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, "viewer:", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "viewer:", err)
		os.Exit(1)
	}
}

// parseArgs loads the -config file and applies the explicitly set flags over it.
func parseArgs(args []string, output io.Writer) (Config, error) {
	fs := flag.NewFlagSet("viewer", flag.ContinueOnError)
	fs.SetOutput(output)
	modelPath := fs.String("model", "", "glTF 2.0 model to view (.gltf or .glb)")
	configPath := fs.String("config", "", "YAML configuration file")
	scriptPath := fs.String("script", "", "Lua camera script, or the name of a builtin such as orbit")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.Model = *modelPath
		case "script":
			cfg.Script = *scriptPath
		case "debug":
			cfg.Debug = *debug
		}
	})
	if cfg.Model == "" && fs.NArg() > 0 {
		cfg.Model = fs.Arg(0)
	}
	if cfg.Model == "" {
		return cfg, fmt.Errorf("no model given; use -model or set model in the config file")
	}
	return cfg, nil
}

func run(cfg Config) error {
	logger := common.NewDefaultLogger("viewer", cfg.Debug)
	title := common.Coalesce(cfg.Window.Title, filepath.Base(cfg.Model))

	rendererOpts, err := cfg.rendererOptions(common.NewDefaultLogger("renderer", cfg.Debug))
	if err != nil {
		return err
	}
	interval, err := cfg.profilingInterval()
	if err != nil {
		return err
	}

	imported, err := loader.NewLoader(loader.BackendTypeGLTF, loader.WithLogger(logger)).Load(cfg.Model)
	if err != nil {
		return err
	}

	win, err := window.NewWindow(
		window.WithTitle(title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, win, rendererOpts...)
	if err != nil {
		return err
	}
	defer r.Release()

	sc, err := scene.NewScene(imported, r.Uploader(), scene.WithLogger(logger))
	if err != nil {
		return err
	}
	defer sc.Release()

	aspect := float32(max(win.Width(), 1)) / float32(max(win.Height(), 1))
	camOpts, err := cfg.cameraOptions(aspect)
	if err != nil {
		return err
	}
	cam := camera.NewCamera(camOpts...)

	eng, err := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithCamera(cam),
		engine.WithScene(sc),
		engine.WithLogger(logger),
		engine.WithTitle(title),
		engine.WithProfiling(cfg.Profiling.Enabled, interval),
		engine.WithTickRate(cfg.TickRate),
		engine.WithRenderFrameLimit(cfg.FrameLimit),
	)
	if err != nil {
		return err
	}

	if cfg.Script != "" {
		host, err := script.NewScriptHost(cam,
			script.WithLogger(logger),
			script.WithViewControl(r),
			script.WithBounds(sc),
		)
		if err != nil {
			return err
		}
		defer host.Close()
		if err := loadScript(host, cfg.Script); err != nil {
			return err
		}
		eng.SetTickCallback(func(dt float32) {
			if err := host.Update(dt); err != nil {
				logger.Errorf("%v", err)
				eng.Quit()
			}
		})
	}

	logger.Infof("viewing %s: %d meshes, %d triangles", cfg.Model, sc.MeshCount(), sc.TriangleCount())
	return eng.Run()
}

// loadScript treats names without a path separator or .lua suffix as builtin scripts.
func loadScript(host script.ScriptHost, name string) error {
	if !strings.HasSuffix(name, ".lua") && !strings.ContainsRune(name, filepath.Separator) {
		return host.LoadBuiltin(name)
	}
	return host.LoadFile(name)
}
