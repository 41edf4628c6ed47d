package plotting

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invasiondepth/pkg/aggregate"
)

func sampleCurve(label string, scale float64) aggregate.Curve {
	points, _ := aggregate.SurvivalCurve(
		[]float64{0, 10 * scale, 40 * scale, 90 * scale, 200 * scale},
		[][]float64{{0, 10 * scale}, {40 * scale, 90 * scale, 200 * scale}},
		20, aggregate.Midpoint)
	return aggregate.Curve{Label: label, Points: points, Samples: 5}
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestSurvivalPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figures", "invasion-depth.png")
	opts := DefaultOptions()
	opts.Title = "U87"
	opts.Width, opts.Height, opts.DPI = 4, 3, 50

	err := SurvivalPlot([]aggregate.Curve{sampleCurve("CNTRL", 1), sampleCurve("ROCK", 1.5)}, opts, path)
	require.NoError(t, err)

	w, h := decodeSize(t, path)
	assert.Equal(t, 200, w)
	assert.Equal(t, 150, h)
}

func TestPositionsPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.png")
	opts := DefaultOptions()
	opts.DPI = 30

	err := PositionsPlot([]aggregate.Curve{sampleCurve("pos00", 1), sampleCurve("pos01", 2)}, opts, path)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestQQPlot(t *testing.T) {
	points, err := aggregate.QQ([]float64{1, 5, 9}, []float64{2, 4, 8, 16}, aggregate.Linear)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "qq.png")
	opts := DefaultOptions()
	opts.XLabel, opts.YLabel, opts.DPI = "manual", "automatic", 30
	require.NoError(t, QQPlot(points, opts, path))
	assert.FileExists(t, path)
}

func TestPlotsRejectEmptyInput(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, SurvivalPlot(nil, DefaultOptions(), filepath.Join(dir, "a.png")))
	assert.Error(t, PositionsPlot(nil, DefaultOptions(), filepath.Join(dir, "b.png")))
	assert.Error(t, QQPlot(nil, DefaultOptions(), filepath.Join(dir, "c.png")))
}
