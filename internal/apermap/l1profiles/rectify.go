package l1profiles

import (
	"math"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
)

// Rectify shifts every row left by floor(offset(row)) so the curved
// spectral region starts near local column 0. Pixels shifted in from
// outside the frame are zero with infinite uncertainty, which removes
// them from inverse-variance stacking.
func Rectify(frame *apermap.Frame, curve apermap.Curvature) *apermap.Frame {
	out := apermap.NewFrame(frame.Rows, frame.Cols)
	out.Uncertainty = make([]float64, len(out.Data))
	for r := 0; r < frame.Rows; r++ {
		shift := int(math.Floor(curve.Offset(float64(r))))
		for c := 0; c < frame.Cols; c++ {
			i := r*frame.Cols + c
			src := c + shift
			if src < 0 || src >= frame.Cols {
				out.Uncertainty[i] = math.Inf(1)
				continue
			}
			out.Data[i] = frame.At(r, src)
			out.Uncertainty[i] = frame.Sigma(r, src)
		}
	}
	return out
}

// MaskByEdges zeroes every pixel outside the valid span of its row.
func MaskByEdges(frame *apermap.Frame, curve apermap.Curvature) *apermap.Frame {
	out := apermap.NewFrame(frame.Rows, frame.Cols)
	if frame.Uncertainty != nil {
		out.Uncertainty = append([]float64(nil), frame.Uncertainty...)
	}
	for r := 0; r < frame.Rows; r++ {
		lo, hi := curve.Span(r)
		lo = max(lo, 0)
		hi = min(hi, frame.Cols)
		for c := lo; c < hi; c++ {
			out.Set(r, c, frame.At(r, c))
		}
	}
	return out
}
