package monitor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l5traces"
)

// traceSamples is the number of columns each trace curve is drawn at.
const traceSamples = 64

// FiberSeries is one fiber's fit points and trace.
type FiberSeries struct {
	Label       int
	Synthesized bool
	X, Y        []float64
	Trace       apermap.Polynomial
}

// Overlay collects everything needed to draw a run.
type Overlay struct {
	Title  string
	Rows   int
	Cols   int
	Fibers []FiberSeries
}

// NewOverlay builds an overlay from fitted fibers on a rows x cols frame.
func NewOverlay(title string, rows, cols int, fibers []l5traces.Fiber) *Overlay {
	o := &Overlay{Title: title, Rows: rows, Cols: cols}
	for _, f := range fibers {
		o.Fibers = append(o.Fibers, FiberSeries{
			Label:       f.Label,
			Synthesized: f.Synthesized,
			X:           f.X,
			Y:           f.Y,
			Trace:       f.Trace,
		})
	}
	return o
}

// Curve samples a fiber's trace across the frame width.
func (o *Overlay) Curve(i int) (xs, ys []float64) {
	n := traceSamples
	if o.Cols < n {
		n = max(o.Cols, 2)
	}
	xs = floats.Span(make([]float64, n), 0, float64(max(o.Cols-1, 1)))
	ys = make([]float64, n)
	for k, x := range xs {
		ys[k] = o.Fibers[i].Trace.Eval(x)
	}
	return xs, ys
}

// Residuals returns each fiber's RMS distance between its fit points and
// its trace. Fibers without points report NaN.
func (o *Overlay) Residuals() []float64 {
	out := make([]float64, len(o.Fibers))
	for i, f := range o.Fibers {
		if len(f.X) == 0 {
			out[i] = math.NaN()
			continue
		}
		d := make([]float64, len(f.X))
		for k, x := range f.X {
			d[k] = f.Y[k] - f.Trace.Eval(x)
		}
		out[i] = floats.Norm(d, 2) / math.Sqrt(float64(len(d)))
	}
	return out
}

func (o *Overlay) subtitle() string {
	synth := 0
	for _, f := range o.Fibers {
		if f.Synthesized {
			synth++
		}
	}
	return fmt.Sprintf("frame=%dx%d fibers=%d synthesized=%d", o.Rows, o.Cols, len(o.Fibers), synth)
}
