// Command apermap traces the fibers of an IFU-M trace exposure and writes
// the aperture map, trace coefficients and midpoints for one side.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/ifum-apermap/internal/fsutil"
	"github.com/banshee-data/ifum-apermap/internal/timeutil"
	"github.com/banshee-data/ifum-apermap/internal/version"
)

var (
	tracePath   = flag.String("trace", "", "Path to the trace exposure FITS file")
	ifuLabel    = flag.String("ifu", "", "IFU configuration (LSB, STD, HR, M2FS)")
	sideName    = flag.String("side", "", "Spectrograph side (b or r)")
	binning     = flag.Int("binning", 0, "Spatial binning factor (0 reads the BINNING card)")
	curve       = flag.String("curve", "0,0,0", "Curvature parabola A,B,C")
	edges       = flag.String("edges", "", "Spectral region X1,dX (default: full frame width)")
	configPath  = flag.String("config", "", "Path to a JSON tuning config (default: built-in defaults)")
	templateDir = flag.String("templates", "", "Template directory (overrides template_dir in the config)")
	outDir      = flag.String("out", ".", "Output directory")
	dbPath      = flag.String("db", "", "Record the run in this SQLite database (disabled when empty)")
	plotDir     = flag.String("plots", "", "Write PNG and HTML trace plots to this directory (disabled when empty)")
	rectify     = flag.Bool("rectify", true, "Shift rows by the curvature before stacking columns")
	mask        = flag.Bool("mask", false, "Zero pixels outside the spectral region before tracing")
	logLevel    = flag.String("log", "ops", "Log verbosity: ops, diag or trace")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	opts := options{
		TracePath:   *tracePath,
		IFU:         *ifuLabel,
		Side:        *sideName,
		Binning:     *binning,
		Curve:       *curve,
		Edges:       *edges,
		ConfigPath:  *configPath,
		TemplateDir: *templateDir,
		OutDir:      *outDir,
		DBPath:      *dbPath,
		PlotDir:     *plotDir,
		Rectify:     *rectify,
		Mask:        *mask,
		LogLevel:    *logLevel,
	}
	setupLogging(opts.LogLevel, os.Stderr)

	a := &app{fs: fsutil.OSFileSystem{}, clock: timeutil.RealClock{}}
	summary, err := a.run(opts)
	if err != nil {
		log.Fatalf("apermap: %v", err)
	}
	fmt.Println(summary)
}
