package l4fibers

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
)

// Template is the trusted fiber layout at the reference profile for one
// (IFU, side), recorded at NativeBinning.
type Template struct {
	IFU           string
	Side          apermap.Side
	NativeBinning int
	Positions     []float64
}

// Scaled returns a copy with positions multiplied by
// NativeBinning/frameBinning.
func (t Template) Scaled(frameBinning int) (Template, error) {
	if frameBinning <= 0 || t.NativeBinning <= 0 {
		return Template{}, fmt.Errorf("%w: binning native=%d frame=%d", apermap.ErrConfiguration, t.NativeBinning, frameBinning)
	}
	factor := float64(t.NativeBinning) / float64(frameBinning)
	out := t
	out.NativeBinning = frameBinning
	out.Positions = make([]float64, len(t.Positions))
	for i, p := range t.Positions {
		out.Positions[i] = p * factor
	}
	return out, nil
}

// ParseTemplate reads one position per line. Blank lines and lines
// starting with '#' are skipped.
func ParseTemplate(r io.Reader) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", apermap.ErrTemplateLoad, line, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: line %d: non-finite position", apermap.ErrTemplateLoad, line)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apermap.ErrTemplateLoad, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no positions", apermap.ErrTemplateLoad)
	}
	return out, nil
}
