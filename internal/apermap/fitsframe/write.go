package fitsframe

import (
	"fmt"
	"io"
	"os"

	"github.com/astrogo/fitsio"

	"github.com/banshee-data/ifum-apermap/internal/apermap/l4fibers"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l6apermap"
)

// MapHeader describes an aperture map for its FITS header.
type MapHeader struct {
	IFU       l4fibers.IFU
	Slits     int
	MaxPixels int
	Binning   int
}

// Cards renders the header as FITS cards in the order downstream
// reduction expects them.
func (h MapHeader) Cards() []fitsio.Card {
	binning := max(h.Binning, 1)
	return []fitsio.Card{
		{Name: "IFUTYPE", Value: h.IFU.Label, Comment: "type of IFU"},
		{Name: "NIFU1", Value: h.IFU.Nx, Comment: "number of IFU columns"},
		{Name: "NIFU2", Value: h.IFU.Ny, Comment: "number of IFU rows"},
		{Name: "NSLITS", Value: h.Slits, Comment: "number of slits"},
		{Name: "NMAX", Value: h.MaxPixels, Comment: "maximum number of pixels among all apertures"},
		{Name: "BINNING", Value: fmt.Sprintf("%dx%d", binning, binning), Comment: "binning"},
	}
}

// WriteMap encodes m as the 32-bit integer primary image of a new FITS
// stream.
func WriteMap(w io.Writer, m *l6apermap.ApertureMap, h MapHeader) error {
	if m == nil || m.Rows <= 0 || m.Cols <= 0 || len(m.Labels) != m.Rows*m.Cols {
		return fmt.Errorf("%w: invalid aperture map", ErrFormat)
	}
	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("create FITS stream: %w", err)
	}
	defer f.Close()

	img := fitsio.NewImage(32, []int{m.Cols, m.Rows})
	defer img.Close()

	if err := img.Header().Append(h.Cards()...); err != nil {
		return fmt.Errorf("append map header: %w", err)
	}
	if err := img.Write(m.Labels); err != nil {
		return fmt.Errorf("write map pixels: %w", err)
	}
	if err := f.Write(img); err != nil {
		return fmt.Errorf("write map HDU: %w", err)
	}
	return nil
}

// WriteMapFile writes the map to path, replacing any existing file.
func WriteMapFile(path string, m *l6apermap.ApertureMap, h MapHeader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", path, err)
	}
	if err := WriteMap(out, m, h); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
