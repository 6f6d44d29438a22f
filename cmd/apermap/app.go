package main

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
	"github.com/banshee-data/ifum-apermap/internal/apermap/fitsframe"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l1profiles"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l2peaks"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l3tracks"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l4fibers"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l5traces"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l6apermap"
	"github.com/banshee-data/ifum-apermap/internal/apermap/monitor"
	"github.com/banshee-data/ifum-apermap/internal/apermap/pipeline"
	"github.com/banshee-data/ifum-apermap/internal/config"
	"github.com/banshee-data/ifum-apermap/internal/db"
	"github.com/banshee-data/ifum-apermap/internal/fsutil"
	"github.com/banshee-data/ifum-apermap/internal/monitoring"
	"github.com/banshee-data/ifum-apermap/internal/timeutil"
	"github.com/banshee-data/ifum-apermap/internal/version"
)

// options is the parsed command line.
type options struct {
	TracePath   string
	IFU         string
	Side        string
	Binning     int
	Curve       string
	Edges       string
	ConfigPath  string
	TemplateDir string
	OutDir      string
	DBPath      string
	PlotDir     string
	Rectify     bool
	Mask        bool
	LogLevel    string
}

// app carries the collaborators a run needs.
type app struct {
	fs    fsutil.FileSystem
	clock timeutil.Clock
}

// run traces one side and writes its products. It returns a one-line
// summary for the terminal.
func (a *app) run(o options) (string, error) {
	tuning, err := loadTuning(o.ConfigPath)
	if err != nil {
		return "", err
	}
	side, err := apermap.ParseSide(o.Side)
	if err != nil {
		return "", err
	}
	ifu, err := l4fibers.Lookup(o.IFU)
	if err != nil {
		return "", err
	}
	if o.TracePath == "" {
		return "", fmt.Errorf("%w: -trace is required", apermap.ErrConfiguration)
	}

	exp, err := a.readFrame(o.TracePath)
	if err != nil {
		return "", err
	}
	binning := o.Binning
	if binning == 0 {
		binning = exp.Binning
	}
	curvature, err := parseCurvature(o.Curve, o.Edges, exp.Frame.Cols)
	if err != nil {
		return "", err
	}

	cfg := pipeline.ConfigFromTuning(tuning)
	cfg.Rectify = o.Rectify
	cfg.MaskEdges = o.Mask

	dir := o.TemplateDir
	if dir == "" {
		dir = tuning.GetTemplateDir()
	}
	tpl, err := l4fibers.NewLoader(a.fs, dir, tuning.GetTemplateNativeBinning()).Load(ifu, side)
	if err != nil {
		return "", err
	}

	runner, err := pipeline.NewRunner(cfg, monitoring.EventLogger(monitoring.ParseLevel(o.LogLevel)))
	if err != nil {
		return "", err
	}
	started := a.clock.Now()
	res, err := runner.Run(pipeline.Input{
		Frame:     exp.Frame,
		Curvature: curvature,
		IFU:       ifu,
		Side:      side,
		Binning:   binning,
		Template:  tpl,
	})
	if err != nil {
		return "", err
	}
	elapsed := a.clock.Since(started)

	if err := a.writeOutputs(o.OutDir, res); err != nil {
		return "", err
	}
	if o.PlotDir != "" {
		if err := a.writePlots(o.PlotDir, res); err != nil {
			return "", err
		}
	}
	if o.DBPath != "" {
		if err := a.recordRun(o.DBPath, o.TracePath, res, cfg, started, elapsed); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("run %s: %s side %s traced %d/%d fibers, missing %v, NMAX %d -> %s",
		res.RunID, res.IFU.Label, res.Side, len(res.Fibers), res.Expected, res.Missing(), res.MaxPixels, o.OutDir), nil
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func (a *app) readFrame(path string) (*fitsframe.Exposure, error) {
	f, err := a.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace exposure: %w", err)
	}
	defer f.Close()
	exp, err := fitsframe.Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return exp, nil
}

// parseCurvature reads "A,B,C" and an optional "X1,dX"; without edges the
// spectral region spans the whole frame width.
func parseCurvature(curve, edges string, cols int) (apermap.Curvature, error) {
	abc, err := parseFloats(curve, 3)
	if err != nil {
		return apermap.Curvature{}, fmt.Errorf("%w: -curve: %v", apermap.ErrConfiguration, err)
	}
	c := apermap.Curvature{A: abc[0], B: abc[1], C: abc[2], DX: float64(cols)}
	if edges != "" {
		e, err := parseFloats(edges, 2)
		if err != nil {
			return apermap.Curvature{}, fmt.Errorf("%w: -edges: %v", apermap.ErrConfiguration, err)
		}
		if e[1] <= 0 {
			return apermap.Curvature{}, fmt.Errorf("%w: -edges: width must be positive, got %g", apermap.ErrConfiguration, e[1])
		}
		c.X1, c.DX = e[0], e[1]
	}
	return c, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated values, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// outputNames returns the aperture map, coefficient and midpoint file
// names for one side, as downstream reduction expects them.
func outputNames(side apermap.Side, ifu string) (mapFile, tracesFile, midpointsFile string) {
	return fmt.Sprintf("ap%s_%s_apermap.fits", side, ifu),
		fmt.Sprintf("%s_%s_traces.csv", side, ifu),
		fmt.Sprintf("%s_%s_midpoints.txt", side, ifu)
}

func (a *app) writeOutputs(dir string, res *pipeline.Result) error {
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	mapFile, tracesFile, midpointsFile := outputNames(res.Side, res.IFU.Label)
	hdr := fitsframe.MapHeader{
		IFU:       res.IFU,
		Slits:     len(res.Fibers),
		MaxPixels: res.MaxPixels,
		Binning:   res.Binning,
	}
	if err := a.writeFile(filepath.Join(dir, mapFile), func(w io.Writer) error {
		return fitsframe.WriteMap(w, res.Map, hdr)
	}); err != nil {
		return err
	}
	if err := a.writeFile(filepath.Join(dir, tracesFile), func(w io.Writer) error {
		return l6apermap.WriteCoefficients(w, res.Traces())
	}); err != nil {
		return err
	}
	return a.writeFile(filepath.Join(dir, midpointsFile), func(w io.Writer) error {
		return l6apermap.WriteMidpoints(w, res.Midpoints)
	})
}

func (a *app) writePlots(dir string, res *pipeline.Result) error {
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	title := fmt.Sprintf("%s %s traces", res.IFU.Label, res.Side)
	overlay := monitor.NewOverlay(title, res.Map.Rows, res.Map.Cols, res.Fibers)
	base := filepath.Join(dir, fmt.Sprintf("%s_%s_traces", res.Side, res.IFU.Label))
	if err := a.writeFile(base+".png", overlay.WritePNG); err != nil {
		return err
	}
	return a.writeFile(base+".html", overlay.RenderHTML)
}

func (a *app) recordRun(path, framePath string, res *pipeline.Result, cfg pipeline.Config, started time.Time, elapsed time.Duration) error {
	store, err := db.NewDBWithClock(path, a.clock)
	if err != nil {
		return fmt.Errorf("open run database: %w", err)
	}
	defer store.Close()

	run, err := db.NewTraceRun(res, cfg, framePath, started, elapsed)
	if err != nil {
		return err
	}
	run.Version = version.Version
	if err := store.RecordRun(run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	monitoring.Logf("recorded run %s in %s", res.RunID, path)
	return nil
}

func (a *app) writeFile(path string, write func(io.Writer) error) error {
	f, err := a.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// setupLogging routes the layer streams to w up to the requested
// verbosity. Pipeline progress arrives as events through monitoring.Logf,
// so the pipeline's own streams stay off.
func setupLogging(level string, w io.Writer) {
	lvl := monitoring.ParseLevel(level)
	var diag, trace io.Writer
	if lvl >= pipeline.LevelDiag {
		diag = w
	}
	if lvl >= pipeline.LevelTrace {
		trace = w
	}
	l1profiles.SetLogWriters(w, diag, trace)
	l2peaks.SetLogWriters(w, diag, trace)
	l3tracks.SetLogWriters(w, diag, trace)
	l4fibers.SetLogWriters(w, diag, trace)
	l5traces.SetLogWriters(w, diag, trace)
	l6apermap.SetLogWriters(w, diag, trace)
	pipeline.SetLogWriters(nil, nil, nil)
	monitoring.SetLogger(log.New(w, "[apermap] ", log.LstdFlags|log.Lmicroseconds).Printf)
}
