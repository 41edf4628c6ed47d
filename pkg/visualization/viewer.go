// Package visualization renders projections, index maps and masks as images
// for inspecting the depth estimation of a position.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"invasiondepth/internal/models"
)

var (
	maskColor   = color.RGBA{R: 0, G: 160, B: 255, A: 255}
	markerColor = color.RGBA{R: 31, G: 255, B: 0, A: 255}
	flagColor   = color.RGBA{R: 255, G: 40, B: 40, A: 255}
)

// Viewer writes debug images into a single directory
type Viewer struct {
	// dir receives every saved image
	dir string
}

// NewViewer creates a viewer writing into dir
func NewViewer(dir string) *Viewer {
	return &Viewer{dir: dir}
}

// Dir returns the output directory
func (v *Viewer) Dir() string {
	return v.dir
}

// GridImage stretches the value range of a grid over 16-bit gray levels.
// A constant grid renders black.
func (v *Viewer) GridImage(g *models.Grid) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, g.Width, g.Height))
	if len(g.Data) == 0 {
		return img
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, val := range g.Data {
		lo = math.Min(lo, val)
		hi = math.Max(hi, val)
	}
	span := hi - lo
	if span == 0 {
		return img
	}

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			value := uint16(math.Max(0, math.Min(65535, (g.At(x, y)-lo)/span*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img
}

// IndexImage maps stack indices 0..slices-1 onto 16-bit gray levels, so
// deeper slices render brighter
func (v *Viewer) IndexImage(m *models.IndexMap, slices int) (*image.Gray16, error) {
	if slices < 1 {
		return nil, fmt.Errorf("index image needs at least one slice, got %d", slices)
	}
	img := image.NewGray16(image.Rect(0, 0, m.Width, m.Height))
	scale := 65535.0
	if slices > 1 {
		scale /= float64(slices - 1)
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			idx := m.At(x, y)
			if idx < 0 || idx >= slices {
				return nil, fmt.Errorf("index %d at (%d,%d) outside stack of %d slices", idx, x, y, slices)
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(float64(idx) * scale)})
		}
	}
	return img, nil
}

// MaskImage renders foreground white on black
func (v *Viewer) MaskImage(m *models.Mask) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.At(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// Overlay draws the mask and a labelled cross per detection over a grid.
// Flagged detections are drawn in red.
func (v *Viewer) Overlay(base *models.Grid, mask *models.Mask, dets []models.Detection) *image.RGBA {
	bounds := image.Rect(0, 0, base.Width, base.Height)
	img := image.NewRGBA(bounds)
	draw.Draw(img, bounds, v.GridImage(base), image.Point{}, draw.Src)

	if mask != nil {
		for y := 0; y < mask.Height; y++ {
			for x := 0; x < mask.Width; x++ {
				if mask.At(x, y) {
					img.SetRGBA(x, y, blend(img.RGBAAt(x, y), maskColor))
				}
			}
		}
	}

	for _, d := range dets {
		c := markerColor
		if d.Flagged() {
			c = flagColor
		}
		cx, cy := int(math.Round(d.X)), int(math.Round(d.Y))
		for i := -3; i <= 3; i++ {
			setIn(img, cx+i, cy, c)
			setIn(img, cx, cy+i, c)
		}

		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(c),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(cx+5, cy-5),
		}
		drawer.DrawString(fmt.Sprintf("%.1f", d.Z))
	}

	return img
}

// Save encodes img as PNG under the viewer directory
func (v *Viewer) Save(name string, img image.Image) error {
	if err := os.MkdirAll(v.dir, 0755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	file, err := os.Create(filepath.Join(v.dir, name))
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return file.Close()
}

func setIn(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// blend mixes two colors half and half
func blend(a, b color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8((uint16(a.R) + uint16(b.R)) / 2),
		G: uint8((uint16(a.G) + uint16(b.G)) / 2),
		B: uint8((uint16(a.B) + uint16(b.B)) / 2),
		A: 255,
	}
}
