// Command clusterstat builds the clusters of one or more glTF files and reports how well they
// cull.
//
// For every file it prints cluster counts, the share of clusters without a usable normal cone
// and a histogram of cone angles. With -heatmap it also plans a frame from camera positions
// sampled on a sphere around the scene and writes the share of culled triangles per direction
// as a BMP image.
//
// Usage:
//
//	clusterstat [-heatmap out.bmp] [-samples 64x32] [-distance 1.5] model.glb...
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/cluster"
	"github.com/shadowP12/visibility-buffer/engine/loader"
	"github.com/shadowP12/visibility-buffer/engine/renderer/filtering"
)

type options struct {
	heatmap    string
	samplesX   int
	samplesY   int
	distance   float64
	imageWidth int
	workers    int
	debug      bool
	files      []string
}

type report struct {
	stats   Stats
	cullMap *CullMap
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, "clusterstat:", err)
		os.Exit(2)
	}
	logger := common.NewDefaultLogger("clusterstat", opts.debug)
	if err := run(context.Background(), opts, logger, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "clusterstat:", err)
		os.Exit(1)
	}
}

func parseOptions(args []string, output io.Writer) (options, error) {
	var o options
	var samples string
	fs := flag.NewFlagSet("clusterstat", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&o.heatmap, "heatmap", "", "write a cull rate heatmap BMP; with several files the file name is inserted before the extension")
	fs.StringVar(&samples, "samples", "64x32", "heatmap sample grid as COLUMNSxROWS")
	fs.Float64Var(&o.distance, "distance", 1.5, "camera distance in multiples of the scene radius")
	fs.IntVar(&o.imageWidth, "width", 512, "heatmap image width in pixels")
	fs.IntVar(&o.workers, "workers", runtime.NumCPU(), "maximum number of files and meshes processed concurrently")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if _, err := fmt.Sscanf(samples, "%dx%d", &o.samplesX, &o.samplesY); err != nil || o.samplesX <= 0 || o.samplesY <= 0 {
		return o, fmt.Errorf("invalid -samples %q, want COLUMNSxROWS", samples)
	}
	if o.distance <= 0 {
		return o, fmt.Errorf("-distance must be positive, got %g", o.distance)
	}
	o.workers = max(o.workers, 1)
	o.files = fs.Args()
	if len(o.files) == 0 {
		return o, fmt.Errorf("no input files")
	}
	return o, nil
}

// heatmapPath returns where the heatmap of file goes.
func heatmapPath(pattern, file string, multiple bool) string {
	if !multiple {
		return pattern
	}
	ext := filepath.Ext(pattern)
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return strings.TrimSuffix(pattern, ext) + "_" + stem + ext
}

func run(ctx context.Context, o options, logger common.Logger, out io.Writer) error {
	ld := loader.NewLoader(loader.BackendTypeGLTF, loader.WithLogger(logger))
	reports := make([]report, len(o.files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, file := range o.files {
		g.Go(func() error {
			r, err := analyze(ctx, ld, file, o)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			reports[i] = r
			if o.heatmap != "" {
				path := heatmapPath(o.heatmap, file, len(o.files) > 1)
				if err := saveHeatmap(path, r.cullMap, filepath.Base(file), o.imageWidth); err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				logger.Infof("wrote %s", path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	width := terminalWidth(out)
	for i := range reports {
		printReport(p, out, &reports[i], width)
	}
	return nil
}

func analyze(ctx context.Context, ld loader.Loader, file string, o options) (report, error) {
	imported, err := ld.Load(file)
	if err != nil {
		return report{}, err
	}
	meshes, err := clusterScene(ctx, imported, o.workers)
	if err != nil {
		return report{}, err
	}
	r := report{stats: summarize(filepath.Base(file), meshes)}
	if o.heatmap == "" {
		return r, nil
	}

	cfg := filtering.DefaultConfig()
	cfg.PackMeshes = true
	r.cullMap, err = buildCullMap(ctx, meshes, r.stats, o.samplesX, o.samplesY, float32(o.distance), cfg)
	return r, err
}

func saveHeatmap(path string, m *CullMap, title string, width int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeHeatmap(f, m, title, width); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// terminalWidth returns the column count of out when it is a terminal, 80 otherwise.
func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 80
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func printReport(p *message.Printer, out io.Writer, r *report, width int) {
	s := &r.stats
	p.Fprintf(out, "%s\n", s.Name)
	p.Fprintf(out, "  meshes     %d\n", s.Meshes)
	p.Fprintf(out, "  triangles  %d\n", s.Triangles)
	p.Fprintf(out, "  clusters   %d (%d full, %d triangles per cluster)\n", s.Clusters, s.Full, cluster.ClusterSize)
	p.Fprintf(out, "  invalid    %d (%.1f%%)\n", s.Clusters-s.Valid, s.InvalidRatio()*100)
	p.Fprintf(out, "  cone angle mean %.1f°\n", s.MeanConeAngle)
	printHistogram(p, out, s.ConeHistogram[:], width)
	if r.cullMap != nil {
		m := r.cullMap
		p.Fprintf(out, "  culled     min %.1f%%  mean %.1f%%  max %.1f%%  (%dx%d samples)\n",
			m.Min*100, m.Mean*100, m.Max*100, m.Width, m.Height)
	}
}

// printHistogram draws one bar per 10 degree bucket, scaled to the available width.
func printHistogram(p *message.Printer, out io.Writer, buckets []int, width int) {
	peak := 0
	for _, n := range buckets {
		peak = max(peak, n)
	}
	if peak == 0 {
		return
	}
	const labelWidth = 24
	barWidth := max(width-labelWidth, 10)
	for i, n := range buckets {
		label := fmt.Sprintf("%d-%d°", i*10, (i+1)*10)
		if i == len(buckets)-1 {
			label = fmt.Sprintf("%d°+", i*10)
		}
		bar := strings.Repeat("#", n*barWidth/peak)
		p.Fprintf(out, "    %-8s %8d %s\n", label, n, bar)
	}
}
