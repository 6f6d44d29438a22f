package apermap

import (
	"fmt"
	"math"
)

// Side identifies one of the two spectrograph shoes.
type Side string

const (
	SideBlue Side = "b"
	SideRed  Side = "r"
)

// ParseSide accepts "b"/"r" as well as "blue"/"red".
func ParseSide(s string) (Side, error) {
	switch s {
	case "b", "blue", "B":
		return SideBlue, nil
	case "r", "red", "R":
		return SideRed, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", ErrConfiguration, s)
}

// Frame is a read-only 2-D detector image. Rows are the spatial axis,
// columns the dispersion axis. Data is row-major.
type Frame struct {
	Rows int
	Cols int
	Data []float64

	// Uncertainty is the per-pixel 1-sigma error, row-major. Nil means
	// unit uncertainty everywhere.
	Uncertainty []float64
}

// NewFrame allocates a zeroed frame.
func NewFrame(rows, cols int) *Frame {
	return &Frame{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the pixel value at (row, col).
func (f *Frame) At(row, col int) float64 {
	return f.Data[row*f.Cols+col]
}

// Set stores v at (row, col).
func (f *Frame) Set(row, col int, v float64) {
	f.Data[row*f.Cols+col] = v
}

// Sigma returns the uncertainty at (row, col), 1 when none was supplied.
func (f *Frame) Sigma(row, col int) float64 {
	if f.Uncertainty == nil {
		return 1
	}
	return f.Uncertainty[row*f.Cols+col]
}

// Validate checks that the buffers match the declared shape.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrConfiguration)
	}
	if f.Rows <= 0 || f.Cols <= 0 {
		return fmt.Errorf("%w: frame shape %dx%d", ErrConfiguration, f.Rows, f.Cols)
	}
	if len(f.Data) != f.Rows*f.Cols {
		return fmt.Errorf("%w: frame data has %d pixels, want %d", ErrConfiguration, len(f.Data), f.Rows*f.Cols)
	}
	if f.Uncertainty != nil && len(f.Uncertainty) != len(f.Data) {
		return fmt.Errorf("%w: uncertainty has %d pixels, want %d", ErrConfiguration, len(f.Uncertainty), len(f.Data))
	}
	return nil
}

// Curvature is the parabolic column offset of the spectral region:
// offset(row) = A*(row-B)^2 + C. The valid span of each row is
// [offset+X1, offset+X1+DX).
type Curvature struct {
	A, B, C float64
	X1, DX  float64
}

// Offset returns the expected column offset at row.
func (c Curvature) Offset(row float64) float64 {
	d := row - c.B
	return c.A*d*d + c.C
}

// Span returns the half-open integer column range [lo, hi) that is valid
// for row, before clipping to the frame.
func (c Curvature) Span(row int) (lo, hi int) {
	off := c.Offset(float64(row))
	lo = int(math.Floor(off + c.X1))
	hi = int(math.Ceil(off + c.X1 + c.DX))
	return lo, hi
}

// Entry is one cell of a fiber track: either a detected sub-pixel
// position or a gap where the fiber was not found in that profile.
type Entry struct {
	Pos      float64
	Detected bool
}

// Detected returns an entry holding pos.
func Detected(pos float64) Entry { return Entry{Pos: pos, Detected: true} }

// Gap returns a placeholder entry.
func Gap() Entry { return Entry{} }

func (e Entry) String() string {
	if !e.Detected {
		return "gap"
	}
	return fmt.Sprintf("%.2f", e.Pos)
}
