package l4fibers

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ifum-apermap/internal/testutil"
)

// bundled returns nBundles bundles of size fibers, spacing px apart with
// an extra gapPx between bundles.
func bundled(first float64, nBundles, size int, spacing, gapPx float64) []float64 {
	var out []float64
	pos := first
	for b := 0; b < nBundles; b++ {
		for i := 0; i < size; i++ {
			out = append(out, pos)
			pos += spacing
		}
		pos += gapPx - spacing
	}
	return out
}

func TestResolveGroupedFindsMissing(t *testing.T) {
	t.Parallel()

	tpl := bundled(100, 4, 5, 8, 20)
	require.Len(t, tpl, 20)
	obs := testutil.Without(tpl, 3, 9, 15)

	opts := DefaultOptions(LayoutGrouped)
	opts.Expected = 20
	opts.HalfWidth = 4
	r := Resolve(tpl, obs, opts)

	assert.ElementsMatch(t, []int{3, 9, 15}, r.Missing)
	assert.Zero(t, r.Unmatched)
	require.Len(t, r.Slots, 20)
	for i, s := range r.Slots {
		assert.InDelta(t, tpl[i], s.Template, 1e-9)
		assert.InDelta(t, tpl[i], s.Position, 1e-6)
	}
	assert.Equal(t, -1, r.Slots[2].Track)
	assert.Equal(t, 2, r.Slots[3].Track)
}

func TestResolveGroupedShiftedAndStretched(t *testing.T) {
	t.Parallel()

	tpl := bundled(100, 6, 6, 8, 22)
	obs := make([]float64, len(tpl))
	for i, p := range tpl {
		obs[i] = 1.02*p + 13
	}
	obs = testutil.Without(obs, 1, 7, 20, 36)

	opts := DefaultOptions(LayoutGrouped)
	opts.HalfWidth = 4
	r := Resolve(tpl, obs, opts)
	assert.Equal(t, []int{1, 7, 20, 36}, r.Missing)
	require.Len(t, r.Slots, len(tpl))
	assert.InDelta(t, 1.02*tpl[0]+13, r.Slots[0].Position, 0.5)
}

func TestResolveGroupedEvenlySpacedFallsBackToCoarseMap(t *testing.T) {
	t.Parallel()

	tpl := testutil.EvenlySpaced(1000, 8, 10)
	opts := DefaultOptions(LayoutGrouped)
	opts.HalfWidth = 4

	r := Resolve(tpl, tpl, opts)
	assert.Empty(t, r.Missing)
	require.Len(t, r.Slots, 10)
	for i, s := range r.Slots {
		assert.Equal(t, i, s.Track)
	}
}

func TestResolveGroupedKeepsExtraDetections(t *testing.T) {
	t.Parallel()

	tpl := testutil.EvenlySpaced(100, 10, 8)
	obs := append(append([]float64(nil), tpl...), 300)

	opts := DefaultOptions(LayoutGrouped)
	opts.HalfWidth = 4
	r := Resolve(tpl, obs, opts)
	assert.Empty(t, r.Missing)
	assert.Equal(t, 1, r.Unmatched)
	require.Len(t, r.Slots, 9)
	last := r.Slots[8]
	assert.Equal(t, 8, last.Track)
	assert.InDelta(t, 300, last.Template, 1e-6)
}

func TestResolveUngroupedInsertsMarkers(t *testing.T) {
	t.Parallel()

	tpl := testutil.EvenlySpaced(50, 8, 20)
	obs := testutil.Without(tpl, 3, 9, 15)

	opts := DefaultOptions(LayoutUngrouped)
	opts.Expected = 20
	r := Resolve(tpl, obs, opts)

	assert.Equal(t, []int{3, 9, 15}, r.Missing)
	require.Len(t, r.Slots, 20)
	for i, s := range r.Slots {
		assert.InDelta(t, tpl[i], s.Position, 1e-9)
		assert.Equal(t, tpl[i], s.Template)
	}
}

func TestResolveUngroupedStopsAtExpected(t *testing.T) {
	t.Parallel()

	tpl := testutil.EvenlySpaced(0, 10, 5)
	obs := []float64{0, 40} // three fibers missing in one gap

	opts := DefaultOptions(LayoutUngrouped)
	opts.Expected = 4
	r := Resolve(tpl, obs, opts)
	assert.Equal(t, []int{2, 3}, r.Missing)
	assert.Len(t, r.Slots, 4)
}

func TestResolveEmptySides(t *testing.T) {
	t.Parallel()

	tpl := []float64{10, 20, 30}
	r := Resolve(tpl, nil, DefaultOptions(LayoutGrouped))
	assert.Equal(t, []int{1, 2, 3}, r.Missing)

	r = Resolve(nil, tpl, DefaultOptions(LayoutUngrouped))
	assert.Empty(t, r.Missing)
	assert.Equal(t, 3, r.Unmatched)
}

func TestMatchNearestOneToOne(t *testing.T) {
	t.Parallel()

	got := matchNearest([]float64{0, 1, 10}, []float64{0.9, 50}, 2, true)
	if diff := cmp.Diff([]int{-1, 0, -1}, got); diff != "" {
		t.Errorf("matchNearest mismatch (-want +got):\n%s", diff)
	}
}

func TestBundleGaps(t *testing.T) {
	t.Parallel()

	gaps := bundleGaps(bundled(0, 3, 4, 5, 15), 1.5, 5)
	require.Len(t, gaps, 2)
	assert.Equal(t, gap{Left: 15, Right: 30}, gaps[0])
	assert.Equal(t, gap{Left: 45, Right: 60}, gaps[1])
}
