package fitsframe

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l4fibers"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l6apermap"
)

func writeImage(t *testing.T, bitpix int, cols, rows int, data any, cards ...fitsio.Card) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	require.NoError(t, err)
	img := fitsio.NewImage(bitpix, []int{cols, rows})
	if len(cards) > 0 {
		require.NoError(t, img.Header().Append(cards...))
	}
	require.NoError(t, img.Write(data))
	require.NoError(t, f.Write(img))
	require.NoError(t, img.Close())
	require.NoError(t, f.Close())
	return &buf
}

func TestReadFloatImage(t *testing.T) {
	t.Parallel()
	data := []float64{
		0, 1, 2,
		10, 11, 12,
	}
	buf := writeImage(t, -64, 3, 2, data, fitsio.Card{Name: "BINNING", Value: "2x2"})

	exp, err := Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, exp.Frame.Rows)
	assert.Equal(t, 3, exp.Frame.Cols)
	assert.Equal(t, 12.0, exp.Frame.At(1, 2))
	assert.Equal(t, 1.0, exp.Frame.At(0, 1))
	assert.Nil(t, exp.Frame.Uncertainty)
	assert.Equal(t, 2, exp.Binning)
	require.NotNil(t, exp.Card("BINNING"))
	assert.Nil(t, exp.Card("NOSUCH"))
}

func TestReadScaledIntegerImage(t *testing.T) {
	t.Parallel()
	data := []int16{-32768, 0, 100, 32767}
	buf := writeImage(t, 16, 2, 2, data, fitsio.Card{Name: "BZERO", Value: 32768.0})

	exp, err := Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 32768, 32868, 65535}, exp.Frame.Data)
	assert.Equal(t, 1, exp.Binning)
}

func TestReadRejectsCube(t *testing.T) {
	t.Parallel()
	buf := writeImage(t, -32, 2, 2, []float32{1, 2, 3, 4})
	var cube bytes.Buffer
	f, err := fitsio.Create(&cube)
	require.NoError(t, err)
	img := fitsio.NewImage(32, []int{2, 2, 2})
	require.NoError(t, img.Write(make([]int32, 8)))
	require.NoError(t, f.Write(img))
	require.NoError(t, f.Close())

	_, err = Read(&cube)
	assert.True(t, errors.Is(err, ErrFormat))

	_, err = Read(buf)
	assert.NoError(t, err)

	_, err = Read(bytes.NewReader([]byte("not a fits file")))
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestParseBinning(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]int{"1x1": 1, "2x2": 2, " 4X4 ": 4, "3": 3} {
		got, err := ParseBinning(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "x2", "0x0", "-1"} {
		_, err := ParseBinning(bad)
		assert.True(t, errors.Is(err, apermap.ErrConfiguration), bad)
	}
}

func TestWriteMapRoundTrip(t *testing.T) {
	t.Parallel()
	m := &l6apermap.ApertureMap{Rows: 3, Cols: 4, Labels: []int32{
		0, 0, 0, 0,
		1, 1, 1, 1,
		2, 2, 0, 0,
	}}
	hr, err := l4fibers.Lookup("HR")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "apb_HR_apermap.fits")
	require.NoError(t, WriteMapFile(path, m, MapHeader{IFU: hr, Slits: 2, MaxPixels: 4, Binning: 2}))

	exp, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, exp.Frame.Rows)
	assert.Equal(t, 4, exp.Frame.Cols)
	for i, v := range m.Labels {
		assert.Equal(t, float64(v), exp.Frame.Data[i])
	}
	assert.Equal(t, 2, exp.Binning)
	assert.Equal(t, "HR", strings.TrimSpace(fmt.Sprint(exp.Card("IFUTYPE").Value)))
	assert.EqualValues(t, 27, exp.Card("NIFU1").Value)
	assert.EqualValues(t, 32, exp.Card("NIFU2").Value)
	assert.EqualValues(t, 2, exp.Card("NSLITS").Value)
	assert.EqualValues(t, 4, exp.Card("NMAX").Value)
}

func TestWriteMapRejectsBadShape(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := WriteMap(&buf, &l6apermap.ApertureMap{Rows: 2, Cols: 2, Labels: []int32{1}}, MapHeader{})
	assert.True(t, errors.Is(err, ErrFormat))
	assert.True(t, errors.Is(WriteMap(&buf, nil, MapHeader{}), ErrFormat))
}
