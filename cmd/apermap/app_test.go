package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
	"github.com/banshee-data/ifum-apermap/internal/apermap/fitsframe"
	"github.com/banshee-data/ifum-apermap/internal/db"
	"github.com/banshee-data/ifum-apermap/internal/fsutil"
	"github.com/banshee-data/ifum-apermap/internal/monitoring"
	"github.com/banshee-data/ifum-apermap/internal/testutil"
	"github.com/banshee-data/ifum-apermap/internal/timeutil"
)

const (
	testRows = 256
	testCols = 600
)

// newTestApp returns an app over an in-memory filesystem holding a
// 12-fiber red-side trace exposure and its STD template.
func newTestApp(t *testing.T) (*app, *fsutil.MemoryFileSystem, *timeutil.MockClock) {
	t.Helper()
	monitoring.SetLogger(nil)
	setupLogging("ops", io.Discard)

	tpl := testutil.EvenlySpaced(100, 8, 12)
	frame := testutil.FiberFrame(testRows, testCols, tpl, 1.5, 1000)

	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	require.NoError(t, err)
	img := fitsio.NewImage(-64, []int{testCols, testRows})
	require.NoError(t, img.Header().Append(fitsio.Card{Name: "BINNING", Value: "1x1"}))
	require.NoError(t, img.Write(frame.Data))
	require.NoError(t, f.Write(img))
	require.NoError(t, f.Close())

	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("in/r0042.fits", buf.Bytes(), 0o644))

	var lines []string
	for _, p := range tpl {
		lines = append(lines, fmt.Sprintf("%g", p))
	}
	require.NoError(t, mfs.WriteFile("templates/STD_r.txt", []byte("# STD red\n"+strings.Join(lines, "\n")+"\n"), 0o644))

	clock := timeutil.NewMockClock(time.Date(2024, 2, 14, 3, 0, 0, 0, time.UTC))
	clock.SetStep(time.Second)
	return &app{fs: mfs, clock: clock}, mfs, clock
}

func baseOptions() options {
	return options{
		TracePath:   "in/r0042.fits",
		IFU:         "STD",
		Side:        "r",
		Curve:       "0,0,0",
		TemplateDir: "templates",
		OutDir:      "out",
		Rectify:     true,
		LogLevel:    "ops",
	}
}

func TestRunWritesProducts(t *testing.T) {
	a, mfs, _ := newTestApp(t)

	summary, err := a.run(baseOptions())
	require.NoError(t, err)
	assert.Contains(t, summary, "traced 12/276 fibers")

	assert.Equal(t, []string{
		"out/apr_STD_apermap.fits",
		"out/r_STD_midpoints.txt",
		"out/r_STD_traces.csv",
	}, mfs.Files("out"))

	f, err := mfs.Open("out/apr_STD_apermap.fits")
	require.NoError(t, err)
	defer f.Close()
	exp, err := fitsframe.Read(f)
	require.NoError(t, err)
	assert.Equal(t, testRows, exp.Frame.Rows)
	assert.Equal(t, testCols, exp.Frame.Cols)
	assert.EqualValues(t, 12, exp.Card("NSLITS").Value)
	assert.EqualValues(t, 23, exp.Card("NIFU1").Value)

	seen := map[float64]bool{}
	for _, v := range exp.Frame.Data {
		seen[v] = true
	}
	for label := 1; label <= 12; label++ {
		assert.True(t, seen[float64(label)], "label %d in map", label)
	}
	assert.False(t, seen[13])

	csv, err := mfs.ReadFile("out/r_STD_traces.csv")
	require.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(string(csv)), "\n")
	require.Len(t, rows, 13)
	assert.True(t, strings.HasPrefix(rows[0], "fiber,c0,c1"))
	assert.True(t, strings.HasPrefix(rows[1], "1,"))

	mid, err := mfs.ReadFile("out/r_STD_midpoints.txt")
	require.NoError(t, err)
	midLines := strings.Split(strings.TrimSpace(string(mid)), "\n")
	require.Len(t, midLines, 12)
	assert.Equal(t, "1 100", midLines[0])
	assert.Equal(t, "12 188", midLines[11])
}

func TestRunRecordsAndPlots(t *testing.T) {
	a, mfs, _ := newTestApp(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	o := baseOptions()
	o.DBPath = dbPath
	o.PlotDir = "plots"
	_, err := a.run(o)
	require.NoError(t, err)

	assert.Equal(t, []string{"plots/r_STD_traces.html", "plots/r_STD_traces.png"}, mfs.Files("plots"))

	store, err := db.NewDB(dbPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns("STD", "r", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 12, runs[0].Found)
	assert.Equal(t, 276, runs[0].Expected)
	assert.Equal(t, "in/r0042.fits", runs[0].FramePath)
	assert.Equal(t, time.Second, runs[0].Duration)
	assert.True(t, runs[0].CountMismatch())
}

func TestRunErrors(t *testing.T) {
	a, _, _ := newTestApp(t)

	cases := []struct {
		name   string
		modify func(*options)
		want   error
	}{
		{"unknown IFU", func(o *options) { o.IFU = "XL" }, apermap.ErrConfiguration},
		{"bad side", func(o *options) { o.Side = "g" }, apermap.ErrConfiguration},
		{"no trace", func(o *options) { o.TracePath = "" }, apermap.ErrConfiguration},
		{"bad curve", func(o *options) { o.Curve = "1,2" }, apermap.ErrConfiguration},
		{"missing template", func(o *options) { o.Side = "b" }, nil},
		{"template dir", func(o *options) { o.TemplateDir = "elsewhere" }, apermap.ErrTemplateLoad},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := baseOptions()
			tc.modify(&o)
			_, err := a.run(o)
			require.Error(t, err)
			if tc.want != nil {
				assert.True(t, errors.Is(err, tc.want), "got %v", err)
			}
		})
	}

	o := baseOptions()
	o.TracePath = "in/missing.fits"
	_, err := a.run(o)
	assert.Error(t, err)
}

func TestParseCurvature(t *testing.T) {
	c, err := parseCurvature("1e-5, 1024, 3", "", 2048)
	require.NoError(t, err)
	assert.Equal(t, apermap.Curvature{A: 1e-5, B: 1024, C: 3, X1: 0, DX: 2048}, c)

	c, err = parseCurvature("0,0,0", "10,2000", 2048)
	require.NoError(t, err)
	assert.Equal(t, 10.0, c.X1)
	assert.Equal(t, 2000.0, c.DX)

	for _, bad := range [][2]string{{"a,b,c", ""}, {"1,2,3,4", ""}, {"0,0,0", "10"}, {"0,0,0", "10,0"}} {
		_, err := parseCurvature(bad[0], bad[1], 100)
		assert.True(t, errors.Is(err, apermap.ErrConfiguration), "%v", bad)
	}
}

func TestOutputNames(t *testing.T) {
	m, tr, mid := outputNames(apermap.SideBlue, "HR")
	assert.Equal(t, "apb_HR_apermap.fits", m)
	assert.Equal(t, "b_HR_traces.csv", tr)
	assert.Equal(t, "b_HR_midpoints.txt", mid)
}

func TestVersionFlagDefined(t *testing.T) {
	if showVersion == nil || *showVersion {
		t.Fatal("version flag should exist and default to false")
	}
	if !*rectify {
		t.Error("rectify should default to true")
	}
	if *logLevel != "ops" {
		t.Errorf("log default = %q, want ops", *logLevel)
	}
}
