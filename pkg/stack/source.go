// Package stack reads a position's z-stack one slice at a time and reduces it
// to min/max projections.
package stack

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"

	"invasiondepth/internal/models"
	"invasiondepth/pkg/imagedb"
)

// Source yields the slices of one channel's z-stack in order.
// Frame may decode from disk; callers should not hold more than one slice.
type Source interface {
	Len() int
	Frame(i int) (*models.Grid, error)
}

// MemorySource serves slices that are already in memory
type MemorySource []*models.Grid

// Len implements Source
func (s MemorySource) Len() int {
	return len(s)
}

// Frame implements Source
func (s MemorySource) Frame(i int) (*models.Grid, error) {
	if i < 0 || i >= len(s) {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", i, len(s))
	}
	return s[i], nil
}

// DBSource streams the frames of one database layer from disk
type DBSource struct {
	db    *imagedb.DB
	layer string
	dir   string
	n     int
}

// NewDBSource creates a source over a layer. Image paths are resolved relative
// to the directory holding the database file.
func NewDBSource(db *imagedb.DB, layer string) (*DBSource, error) {
	n, err := db.ImageCount(layer)
	if err != nil {
		return nil, err
	}
	return &DBSource{
		db:    db,
		layer: layer,
		dir:   filepath.Dir(db.Path()),
		n:     n,
	}, nil
}

// Len implements Source
func (s *DBSource) Len() int {
	return s.n
}

// Frame implements Source
func (s *DBSource) Frame(i int) (*models.Grid, error) {
	img, err := s.db.Image(s.layer, i)
	if err != nil {
		return nil, err
	}

	path := img.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	return LoadGrid(filepath.Join(path, img.Filename))
}

// LoadGrid decodes a TIFF file into a grid of raw intensities
func LoadGrid(path string) (*models.Grid, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := tiff.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return ImageToGrid(img), nil
}

// ImageToGrid converts an image to a grid. 16-bit and 8-bit grayscale images
// keep their raw values; other images use the red channel of RGBA().
func ImageToGrid(img image.Image) *models.Grid {
	bounds := img.Bounds()
	g := models.NewGrid(bounds.Dx(), bounds.Dy())

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				g.Set(x, y, float64(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
	case *image.Gray:
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				g.Set(x, y, float64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
	default:
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				g.Set(x, y, float64(r))
			}
		}
	}

	return g
}
