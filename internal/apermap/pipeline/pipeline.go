package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l1profiles"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l2peaks"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l3tracks"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l4fibers"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l5traces"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l6apermap"
)

// Input is everything a run consumes.
type Input struct {
	Frame     *apermap.Frame
	Curvature apermap.Curvature
	IFU       l4fibers.IFU
	Side      apermap.Side
	Binning   int
	// Template is the layout at its native binning; the run scales it.
	Template l4fibers.Template
}

// Result is everything a run produces.
type Result struct {
	RunID   string
	IFU     l4fibers.IFU
	Side    apermap.Side
	Binning int

	Profiles         []l1profiles.ColumnProfile
	Thresholds       l2peaks.Thresholds
	ReferenceProfile int
	ReferenceColumn  float64
	CleanTracks      int
	Resolution       l4fibers.Resolution
	Fibers           []l5traces.Fiber

	Map       *l6apermap.ApertureMap
	Midpoints []int
	Pixels    []int
	MaxPixels int

	// Expected is the IFU's per-side fiber count. A run may legitimately
	// end with a different number of fibers.
	Expected int
	// Vanished lists labels with no pixels left after clipping.
	Vanished []int
}

// Traces returns the trace polynomials in label order.
func (r *Result) Traces() []apermap.Polynomial {
	out := make([]apermap.Polynomial, len(r.Fibers))
	for i, f := range r.Fibers {
		out[i] = f.Trace
	}
	return out
}

// Missing returns the 1-based labels of synthesised fibers.
func (r *Result) Missing() []int { return r.Resolution.Missing }

// CountMismatch reports whether the resolved fiber count differs from
// the IFU's expected count.
func (r *Result) CountMismatch() bool { return len(r.Fibers) != r.Expected }

// Runner executes tracing runs with a fixed configuration. A Runner holds
// no per-run state and may be shared by concurrent runs.
type Runner struct {
	cfg  Config
	sink EventSink
}

// NewRunner validates cfg and returns a runner. sink may be nil.
func NewRunner(cfg Config, sink EventSink) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, sink: sink}, nil
}

// Config returns the runner's configuration.
func (r *Runner) Config() Config { return r.cfg }

type run struct {
	*Runner
	id string
}

func (r *run) emit(stage Stage, level Level, fields map[string]any, format string, args ...any) {
	e := Event{RunID: r.id, Stage: stage, Level: level, Message: fmt.Sprintf(format, args...), Fields: fields}
	switch level {
	case LevelOps:
		opsf("%s %s", r.id, e)
	case LevelDiag:
		diagf("%s %s", r.id, e)
	default:
		tracef("%s %s", r.id, e)
	}
	if r.sink != nil {
		r.sink.Emit(e)
	}
}

func (r *run) fail(stage Stage, err error) error {
	r.emit(stage, LevelOps, map[string]any{"error": err.Error()}, "run failed")
	return fmt.Errorf("%s: %w", stage, err)
}

// inferTolerance is how close a fiber count must be to an IFU's per-side
// total before a mismatch report names that IFU.
const inferTolerance = 20

// Run traces every fiber in in.Frame and builds its aperture map.
func (r *Runner) Run(in Input) (*Result, error) {
	rn := &run{Runner: r, id: uuid.NewString()}
	cfg := r.cfg

	if err := in.Frame.Validate(); err != nil {
		return nil, rn.fail(StageProfiles, err)
	}
	if in.Binning <= 0 {
		return nil, rn.fail(StageFibers, fmt.Errorf("%w: binning %d", apermap.ErrConfiguration, in.Binning))
	}
	if in.IFU.Label == "" {
		return nil, rn.fail(StageFibers, fmt.Errorf("%w: no IFU configuration", apermap.ErrConfiguration))
	}

	res := &Result{
		RunID:    rn.id,
		IFU:      in.IFU,
		Side:     in.Side,
		Binning:  in.Binning,
		Expected: in.IFU.Expected(),
	}

	frame := in.Frame
	if cfg.MaskEdges {
		frame = l1profiles.MaskByEdges(frame, in.Curvature)
	}
	// Profile columns are local to the rectified region; without
	// rectification they are already absolute.
	toAbsolute := apermap.Curvature{}
	if cfg.Rectify {
		frame = l1profiles.Rectify(frame, in.Curvature)
		toAbsolute = in.Curvature
	}

	profiles, err := l1profiles.Extract(frame, cfg.TraceStep, cfg.NLines)
	if err != nil {
		return nil, rn.fail(StageProfiles, err)
	}
	res.Profiles = profiles
	rn.emit(StageProfiles, LevelDiag, map[string]any{"profiles": len(profiles)},
		"stacked %d column profiles", len(profiles))

	th, err := l2peaks.PreAnalyze(profiles, cfg.Peaks)
	if err != nil {
		return nil, rn.fail(StagePeaks, err)
	}
	res.Thresholds = th
	rn.emit(StagePeaks, LevelDiag, map[string]any{
		"half_width": th.HalfWidth, "width_cut": th.WidthCut,
		"distance_cut": th.DistanceCut, "prominence_cut": th.ProminenceCut,
	}, "derived detection thresholds")

	peaks, err := l2peaks.Detect(profiles, th)
	if err != nil {
		return nil, rn.fail(StagePeaks, err)
	}
	for i, p := range peaks {
		rn.emit(StagePeaks, LevelTrace, map[string]any{"profile": i, "peaks": len(p)}, "refined pass")
	}

	tracks, err := l3tracks.Align(peaks, cfg.MatchTolerance)
	if err != nil {
		return nil, rn.fail(StageTracks, err)
	}
	cleaned, err := l3tracks.Clean(tracks, cfg.MaxGapFraction)
	if err != nil {
		return nil, rn.fail(StageTracks, err)
	}
	res.ReferenceProfile = cleaned.Reference
	res.ReferenceColumn = profiles[cleaned.Reference].Center
	res.CleanTracks = len(cleaned.Tracks)
	rn.emit(StageTracks, LevelDiag, map[string]any{
		"aligned": len(tracks), "kept": len(cleaned.Tracks),
		"reference": cleaned.Reference, "dropped_gappy": cleaned.DroppedGappy,
		"dropped_at_reference": cleaned.DroppedAtReference,
	}, "cleaned tracks")

	tpl, err := in.Template.Scaled(in.Binning)
	if err != nil {
		return nil, rn.fail(StageFibers, err)
	}
	if len(tpl.Positions) == 0 {
		return nil, rn.fail(StageFibers, fmt.Errorf("%w: empty template for %s %s", apermap.ErrTemplateLoad, in.IFU.Label, in.Side))
	}
	res.Resolution = l4fibers.Resolve(tpl.Positions, cleaned.Positions(), l4fibers.Options{
		Layout:            in.IFU.Layout,
		Expected:          in.IFU.Expected(),
		HalfWidth:         float64(th.HalfWidth),
		GapFactor:         cfg.GapFactor,
		MatchRadiusFactor: cfg.MatchRadiusFactor,
		GapWindow:         cfg.GapWindow,
		Degree:            cfg.PolyDegree,
	})
	level := LevelDiag
	if len(res.Resolution.Missing) > 0 {
		level = LevelOps
	}
	rn.emit(StageFibers, level, map[string]any{
		"missing": res.Resolution.Missing, "unmatched": res.Resolution.Unmatched,
		"slots": len(res.Resolution.Slots),
	}, "resolved %s layout against template", in.IFU.Layout)

	fit, err := l5traces.Fit(l5traces.Input{
		Profiles:  profiles,
		Tracks:    cleaned.Tracks,
		Slots:     res.Resolution.Slots,
		Curvature: toAbsolute,
		Degree:    cfg.PolyDegree,
	})
	if err != nil {
		return nil, rn.fail(StageTraces, err)
	}
	res.Fibers = fit.Fibers
	rn.emit(StageTraces, LevelDiag, map[string]any{
		"fibers": len(fit.Fibers), "synthesized_points": fit.SynthesizedPoints,
	}, "fitted traces")
	if res.CountMismatch() {
		fields := map[string]any{"found": len(res.Fibers), "expected": res.Expected}
		if u, ok := l4fibers.InferIFU(len(res.Fibers), inferTolerance); ok && u.Label != in.IFU.Label {
			fields["resembles"] = u.Label
		}
		rn.emit(StageTraces, LevelOps, fields, "fiber count differs from %s expectation", in.IFU.Label)
	}

	built, err := l6apermap.Build(in.Frame.Rows, in.Frame.Cols, fit.Traces(), th.HalfWidth, in.Curvature)
	if err != nil {
		return nil, rn.fail(StageApermap, err)
	}
	res.Map = built.Map
	res.Midpoints = built.Midpoints
	res.Pixels = built.Pixels
	res.MaxPixels = built.MaxPixels
	res.Vanished = built.Vanished()
	if len(res.Vanished) > 0 {
		rn.emit(StageApermap, LevelOps, map[string]any{"labels": res.Vanished}, "apertures lost to overlap or clipping")
	}
	rn.emit(StageApermap, LevelDiag, map[string]any{"nmax": res.MaxPixels}, "built aperture map")
	return res, nil
}
