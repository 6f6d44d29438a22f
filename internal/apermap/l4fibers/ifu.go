package l4fibers

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
)

// Layout selects the missing-fiber strategy for an IFU.
type Layout int

const (
	// LayoutGrouped IFUs have fibers packed in bundles separated by wider
	// gaps that can be matched between template and frame.
	LayoutGrouped Layout = iota
	// LayoutUngrouped IFUs have no distinguishable bundle gaps.
	LayoutUngrouped
)

func (l Layout) String() string {
	if l == LayoutUngrouped {
		return "ungrouped"
	}
	return "grouped"
}

// IFU describes one integral field unit. Each spectrograph side sees half
// of its Nx*Ny fibers.
type IFU struct {
	Label  string
	Nx     int
	Ny     int
	Layout Layout
}

// Total is the fiber count over both sides.
func (u IFU) Total() int { return u.Nx * u.Ny }

// Expected is the fiber count on one side.
func (u IFU) Expected() int { return u.Total() / 2 }

var ifuTable = []IFU{
	{Label: "LSB", Nx: 18, Ny: 20, Layout: LayoutUngrouped},
	{Label: "STD", Nx: 23, Ny: 24, Layout: LayoutGrouped},
	{Label: "HR", Nx: 27, Ny: 32, Layout: LayoutGrouped},
	{Label: "M2FS", Nx: 16, Ny: 16, Layout: LayoutGrouped},
}

// IFUs returns the known configurations in lookup order.
func IFUs() []IFU {
	return append([]IFU(nil), ifuTable...)
}

// Lookup finds an IFU by label, ignoring case.
func Lookup(label string) (IFU, error) {
	for _, u := range ifuTable {
		if strings.EqualFold(u.Label, label) {
			return u, nil
		}
	}
	return IFU{}, fmt.Errorf("%w: unknown IFU %q", apermap.ErrConfiguration, label)
}

// InferIFU returns the first IFU whose per-side count lies strictly within
// tolerance of n.
func InferIFU(n, tolerance int) (IFU, bool) {
	for _, u := range ifuTable {
		if math.Abs(float64(n)-float64(u.Total())/2) < float64(tolerance) {
			return u, true
		}
	}
	return IFU{}, false
}
