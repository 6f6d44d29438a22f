package fitsframe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
)

// ErrFormat reports FITS content the reader cannot turn into a frame.
var ErrFormat = errors.New("fitsframe: unsupported FITS content")

// Exposure is a decoded trace exposure.
type Exposure struct {
	Frame *apermap.Frame

	// Binning is the spatial binning factor from the BINNING card, 1 when
	// the card is absent.
	Binning int

	// Cards holds the primary header as read, in order.
	Cards []fitsio.Card
}

// Card returns the header card with the given name, or nil.
func (e *Exposure) Card(name string) *fitsio.Card {
	for i := range e.Cards {
		if e.Cards[i].Name == name {
			return &e.Cards[i]
		}
	}
	return nil
}

// ReadFile opens path and decodes its primary image.
func ReadFile(path string) (*Exposure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes the primary image HDU of a FITS stream. NAXIS1 becomes the
// column count and NAXIS2 the row count.
func Read(r io.Reader) (*Exposure, error) {
	ff, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	defer ff.Close()

	img, ok := ff.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%w: primary HDU is not an image", ErrFormat)
	}
	hdr := img.Header()
	axes := hdr.Axes()
	if len(axes) != 2 {
		return nil, fmt.Errorf("%w: primary image has %d axes, want 2", ErrFormat, len(axes))
	}
	cols, rows := axes[0], axes[1]

	data, err := decodePixels(img.Raw(), hdr.Bitpix(), rows*cols)
	if err != nil {
		return nil, err
	}
	scale := cardFloat(hdr.Get("BSCALE"), 1)
	zero := cardFloat(hdr.Get("BZERO"), 0)
	if scale != 1 || zero != 0 {
		for i, v := range data {
			data[i] = v*scale + zero
		}
	}

	exp := &Exposure{
		Frame:   &apermap.Frame{Rows: rows, Cols: cols, Data: data},
		Binning: 1,
	}
	for i := range hdr.Keys() {
		exp.Cards = append(exp.Cards, *hdr.Card(i))
	}
	if c := hdr.Get("BINNING"); c != nil {
		b, err := ParseBinning(fmt.Sprint(c.Value))
		if err != nil {
			return nil, err
		}
		exp.Binning = b
	}
	return exp, nil
}

// ParseBinning reads a binning card value such as "2x2" or "1". The first
// factor is the spatial one.
func ParseBinning(s string) (int, error) {
	s = strings.TrimSpace(s)
	first, _, _ := strings.Cut(strings.ToLower(s), "x")
	b, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || b < 1 {
		return 0, fmt.Errorf("%w: binning %q", apermap.ErrConfiguration, s)
	}
	return b, nil
}

func decodePixels(raw []byte, bitpix, n int) ([]float64, error) {
	size := bitpix / 8
	if size < 0 {
		size = -size
	}
	if size == 0 || len(raw) < n*size {
		return nil, fmt.Errorf("%w: %d bytes of BITPIX %d data for %d pixels", ErrFormat, len(raw), bitpix, n)
	}
	out := make([]float64, n)
	be := binary.BigEndian
	for i := range out {
		b := raw[i*size : (i+1)*size]
		switch bitpix {
		case 8:
			out[i] = float64(b[0])
		case 16:
			out[i] = float64(int16(be.Uint16(b)))
		case 32:
			out[i] = float64(int32(be.Uint32(b)))
		case 64:
			out[i] = float64(int64(be.Uint64(b)))
		case -32:
			out[i] = float64(math.Float32frombits(be.Uint32(b)))
		case -64:
			out[i] = math.Float64frombits(be.Uint64(b))
		default:
			return nil, fmt.Errorf("%w: BITPIX %d", ErrFormat, bitpix)
		}
	}
	return out, nil
}

func cardFloat(c *fitsio.Card, def float64) float64 {
	if c == nil {
		return def
	}
	switch v := c.Value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	}
	return def
}
