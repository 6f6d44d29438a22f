package l1profiles

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
	"github.com/banshee-data/ifum-apermap/internal/testutil"
)

func TestBoundariesDropsClosingGroup(t *testing.T) {
	t.Parallel()

	starts, err := Boundaries(2000, 20)
	require.NoError(t, err)
	assert.Len(t, starts, 99)
	assert.Equal(t, 0, starts[0])
	assert.Equal(t, 20, starts[1]) // 2000/99 = 20.2
	assert.Less(t, starts[len(starts)-1], 2000)
}

func TestBoundariesConfiguration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		cols, step int
	}{
		{"zero step", 100, 0},
		{"step wider than frame", 100, 101},
		{"one group", 100, 50},
		{"two boundaries", 100, 40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Boundaries(tc.cols, tc.step)
			assert.ErrorIs(t, err, apermap.ErrConfiguration)
		})
	}

	starts, err := Boundaries(100, 33)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 50}, starts)
}

func TestExtractProfileCountAndCenters(t *testing.T) {
	t.Parallel()

	frame := apermap.NewFrame(8, 2000)
	profiles, err := Extract(frame, 20, 11)
	require.NoError(t, err)
	require.Len(t, profiles, 99)

	assert.Equal(t, 5.0, profiles[0].Center)
	assert.Len(t, profiles[0].Columns, 11)
	for i, p := range profiles {
		assert.Equal(t, i, p.Index)
		assert.Len(t, p.Flux, 8)
	}
	assert.Equal(t, Centers(profiles)[1], profiles[1].Center)
}

func TestExtractInverseVarianceWeights(t *testing.T) {
	t.Parallel()

	frame := apermap.NewFrame(1, 30)
	frame.Uncertainty = make([]float64, 30)
	for c := 0; c < 30; c++ {
		frame.Uncertainty[c] = 1
	}
	// Column 0 is bright but noisy, column 1 faint and precise.
	frame.Set(0, 0, 100)
	frame.Uncertainty[0] = 10
	frame.Set(0, 1, 10)
	frame.Uncertainty[1] = 1
	frame.Uncertainty[2] = math.NaN()

	profiles, err := Extract(frame, 10, 2)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	// weights 0.01 and 1 -> (1 + 10) / 1.01
	assert.InDelta(t, 11/1.01, profiles[0].Flux[0], 1e-9)
	assert.Equal(t, 0.5, profiles[0].Center)
}

func TestExtractClipsTrailingGroup(t *testing.T) {
	t.Parallel()

	frame := apermap.NewFrame(4, 30)
	profiles, err := Extract(frame, 10, 25)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	last := profiles[1]
	assert.Equal(t, 15, last.Columns[0])
	assert.Equal(t, 29, last.Columns[len(last.Columns)-1])
	assert.Equal(t, 22.0, last.Center)
}

func TestExtractRecoversFiberProfile(t *testing.T) {
	t.Parallel()

	frame := testutil.FiberFrame(100, 200, []float64{30, 60}, 1.5, 500)
	profiles, err := Extract(frame, 20, 11)
	require.NoError(t, err)
	for _, p := range profiles {
		assert.InDelta(t, 500, p.Flux[30], 1e-9)
		assert.InDelta(t, 500, p.Flux[60], 1e-9)
		assert.Equal(t, 0.0, p.Flux[0])
	}
}

func TestExtractRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := Extract(apermap.NewFrame(4, 100), 10, 0)
	assert.ErrorIs(t, err, apermap.ErrConfiguration)

	_, err = Extract(&apermap.Frame{Rows: 2, Cols: 2}, 1, 1)
	assert.ErrorIs(t, err, apermap.ErrConfiguration)
}

func TestRectifyShiftsRows(t *testing.T) {
	t.Parallel()

	frame := apermap.NewFrame(3, 10)
	for r := 0; r < 3; r++ {
		for c := 0; c < 10; c++ {
			frame.Set(r, c, float64(c))
		}
	}
	curve := apermap.Curvature{A: 1, B: 0, C: 0.5} // shifts 0, 1, 4
	out := Rectify(frame, curve)

	assert.Equal(t, 0.0, out.At(0, 0))
	assert.Equal(t, 1.0, out.At(1, 0))
	assert.Equal(t, 4.0, out.At(2, 0))
	assert.Equal(t, 0.0, out.At(2, 9))
	assert.True(t, math.IsInf(out.Sigma(2, 9), 1))
	assert.Equal(t, 1.0, out.Sigma(2, 5))
}

func TestMaskByEdges(t *testing.T) {
	t.Parallel()

	frame := apermap.NewFrame(2, 10)
	for i := range frame.Data {
		frame.Data[i] = 1
	}
	curve := apermap.Curvature{A: 0, C: 2, X1: 1, DX: 4}
	out := MaskByEdges(frame, curve)
	for r := 0; r < 2; r++ {
		for c := 0; c < 10; c++ {
			want := 0.0
			if c >= 3 && c < 7 {
				want = 1
			}
			assert.Equal(t, want, out.At(r, c), "row %d col %d", r, c)
		}
	}
}
