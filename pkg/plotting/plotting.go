// Package plotting draws invasion depth distributions as PNG figures.
package plotting

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"invasiondepth/pkg/aggregate"
)

// bandAlpha is the opacity of the position spread band
const bandAlpha = 0.25

// Options sets the axes and output size of a figure
type Options struct {
	Title  string
	XLabel string
	YLabel string

	// Axis limits. The probability axis runs from XMax on the left to XMin on
	// the right and depth grows downward.
	XMin, XMax float64
	YMin, YMax float64

	// Width and Height in inches
	Width, Height float64
	DPI           int
}

// DefaultOptions returns the layout of the invasion depth figures
func DefaultOptions() Options {
	return Options{
		XLabel: "Probability of (Invasion depth ≥ D)",
		YLabel: "Invasion depth D [µm]",
		XMin:   1e-4,
		XMax:   1,
		YMin:   -50,
		YMax:   201 * 2 * 1.33,
		Width:  6.4,
		Height: 4.8,
		DPI:    200,
	}
}

// SurvivalPlot draws one line per condition with a translucent band of
// ± the position spread
func SurvivalPlot(curves []aggregate.Curve, opts Options, path string) error {
	if len(curves) == 0 {
		return errors.New("no curves to plot")
	}
	p := depthPlot(opts)

	for i, c := range curves {
		col := plotutil.Color(i)

		band, err := bandPolygon(c.Points)
		if err != nil {
			return fmt.Errorf("band of %s: %w", c.Label, err)
		}
		band.Color = withAlpha(col, bandAlpha)
		band.LineStyle.Width = 0
		p.Add(band)

		line, err := plotter.NewLine(curveXYs(c.Points))
		if err != nil {
			return fmt.Errorf("line of %s: %w", c.Label, err)
		}
		line.Color = col
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (n=%d)", c.Label, c.Samples), line)
	}

	return save(p, opts, path)
}

// PositionsPlot draws one line per position without bands
func PositionsPlot(curves []aggregate.Curve, opts Options, path string) error {
	if len(curves) == 0 {
		return errors.New("no curves to plot")
	}
	p := depthPlot(opts)

	for i, c := range curves {
		line, err := plotter.NewLine(curveXYs(c.Points))
		if err != nil {
			return fmt.Errorf("line of %s: %w", c.Label, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(c.Label, line)
	}

	return save(p, opts, path)
}

// QQPlot draws matching quantiles of two distributions against the y = x
// reference
func QQPlot(points []aggregate.QQPoint, opts Options, path string) error {
	if len(points) == 0 {
		return errors.New("no quantiles to plot")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(points))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, q := range points {
		xys[i] = plotter.XY{X: q.X, Y: q.Y}
		lo = math.Min(lo, math.Min(q.X, q.Y))
		hi = math.Max(hi, math.Max(q.X, q.Y))
	}

	ref, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return err
	}
	ref.Color = plotutil.Color(1)
	ref.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(ref)

	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.Color = plotutil.Color(0)
	line.Width = vg.Points(1.5)
	p.Add(line)

	return save(p, opts, path)
}

// depthPlot prepares the shared axes of the depth figures
func depthPlot(opts Options) *plot.Plot {
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel

	p.X.Min, p.X.Max = opts.XMin, opts.XMax
	p.Y.Min, p.Y.Max = opts.YMin, opts.YMax
	p.X.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}

	p.Add(plotter.NewGrid())

	// gel surface
	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Color = color.Black
	zero.Width = vg.Points(1)
	p.Add(zero)

	p.Legend.Top = false
	p.Legend.Left = true
	p.Legend.XOffs = vg.Points(10)
	p.Legend.YOffs = vg.Points(10)

	return p
}

func curveXYs(points []aggregate.Point) plotter.XYs {
	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i] = plotter.XY{X: pt.P, Y: pt.D}
	}
	return xys
}

// bandPolygon outlines D ± Band: the upper edge forward, the lower edge back
func bandPolygon(points []aggregate.Point) (*plotter.Polygon, error) {
	ring := make(plotter.XYs, 0, 2*len(points))
	for _, pt := range points {
		ring = append(ring, plotter.XY{X: pt.P, Y: pt.D + pt.Band})
	}
	for i := len(points) - 1; i >= 0; i-- {
		pt := points[i]
		ring = append(ring, plotter.XY{X: pt.P, Y: pt.D - pt.Band})
	}
	return plotter.NewPolygon(ring)
}

func withAlpha(c color.Color, alpha float64) color.Color {
	r, g, b, _ := c.RGBA()
	a := alpha * 0xffff
	return color.NRGBA64{R: uint16(r), G: uint16(g), B: uint16(b), A: uint16(a)}
}

// save renders the plot at the configured size and resolution as PNG
func save(p *plot.Plot, opts Options, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create figure directory: %w", err)
		}
	}

	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(opts.Width)*vg.Inch, vg.Length(opts.Height)*vg.Inch),
		vgimg.UseDPI(opts.DPI),
	)
	p.Draw(draw.New(c))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create figure: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write figure: %w", err)
	}
	return file.Close()
}
