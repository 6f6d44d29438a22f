package monitor

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WritePNG draws every fiber's fit points and trace as a PNG image.
// Synthesized fibers are drawn dashed.
func (o *Overlay) WritePNG(w io.Writer) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", o.Title, o.subtitle())
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "Row"
	p.X.Min, p.X.Max = 0, float64(o.Cols)
	p.Y.Min, p.Y.Max = 0, float64(o.Rows)

	colors := generateColors(len(o.Fibers))
	for i, f := range o.Fibers {
		if len(f.X) > 0 {
			pts := make(plotter.XYs, len(f.X))
			for k := range f.X {
				pts[k] = plotter.XY{X: f.X[k], Y: f.Y[k]}
			}
			sc, err := plotter.NewScatter(pts)
			if err != nil {
				return err
			}
			sc.GlyphStyle.Color = colors[i]
			sc.GlyphStyle.Radius = vg.Points(1)
			p.Add(sc)
		}

		xs, ys := o.Curve(i)
		curve := make(plotter.XYs, len(xs))
		for k := range xs {
			curve[k] = plotter.XY{X: xs[k], Y: ys[k]}
		}
		line, err := plotter.NewLine(curve)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(0.5)
		if f.Synthesized {
			line.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}
		}
		p.Add(line)
	}

	wt, err := p.WriterTo(14*vg.Inch, 14*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render trace plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write trace plot: %w", err)
	}
	return nil
}

// generateColors spreads n hues evenly around the HSL wheel so neighbouring
// fibers stay distinguishable.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		// Stride through the wheel so adjacent labels land far apart.
		hue := float64((i*7)%n) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
