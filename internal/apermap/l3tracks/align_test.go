package l3tracks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
)

func positions(t Track) []float64 {
	out := make([]float64, len(t))
	for i, e := range t {
		if e.Detected {
			out[i] = e.Pos
		} else {
			out[i] = -1
		}
	}
	return out
}

func TestAlignFollowsDrift(t *testing.T) {
	t.Parallel()

	peaks := [][]float64{
		{10, 20, 30},
		{11, 21, 31},
		{12.5, 22.5, 32.5},
	}
	tracks, err := Align(peaks, 3)
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	assert.Equal(t, []float64{10, 11, 12.5}, positions(tracks[0]))
	assert.Equal(t, []float64{20, 21, 22.5}, positions(tracks[1]))
	assert.Equal(t, []float64{30, 31, 32.5}, positions(tracks[2]))
}

func TestAlignGapsAndNewTracks(t *testing.T) {
	t.Parallel()

	peaks := [][]float64{
		{10, 20, 30},
		{10, 30},        // fiber at 20 missed
		{10, 20, 30},    // and found again
		{5, 10, 20, 30}, // a new fiber appears
		{10, 20},
	}
	tracks, err := Align(peaks, 3)
	require.NoError(t, err)
	require.Len(t, tracks, 4)
	for _, tr := range tracks {
		assert.Len(t, tr, len(peaks))
	}
	// Ordered by last detected position.
	assert.Equal(t, []float64{-1, -1, -1, 5, -1}, positions(tracks[0]))
	assert.Equal(t, []float64{10, 10, 10, 10, 10}, positions(tracks[1]))
	assert.Equal(t, []float64{20, -1, 20, 20, 20}, positions(tracks[2]))
	assert.Equal(t, []float64{30, 30, 30, 30, -1}, positions(tracks[3]))
}

func TestAlignToleranceIsStrict(t *testing.T) {
	t.Parallel()

	tracks, err := Align([][]float64{{10}, {13}}, 3)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, []float64{10, -1}, positions(tracks[0]))
	assert.Equal(t, []float64{-1, 13}, positions(tracks[1]))
}

func TestAlignEmptyFirstProfile(t *testing.T) {
	t.Parallel()

	tracks, err := Align([][]float64{{}, {7}}, 3)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, Track{apermap.Gap(), apermap.Detected(7)}, tracks[0])
}

func TestAlignRejectsTolerance(t *testing.T) {
	t.Parallel()

	_, err := Align([][]float64{{1}}, 0)
	assert.ErrorIs(t, err, apermap.ErrConfiguration)
}
