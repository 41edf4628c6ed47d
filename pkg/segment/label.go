// Package segment finds connected cell regions in a foreground mask and
// measures them.
package segment

import (
	"image"

	"invasiondepth/internal/models"
)

// Labels assigns every foreground pixel the number of its connected component.
// Background is 0; components are numbered from 1 in raster order of their
// first pixel.
type Labels struct {
	Width  int
	Height int
	Data   []int
	Count  int
}

// At returns the label at column x, row y
func (l *Labels) At(x, y int) int {
	return l.Data[y*l.Width+x]
}

// neighbors8 lists the offsets of the 8-connected neighborhood
var neighbors8 = []image.Point{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// neighbors4 lists the offsets of the 4-connected neighborhood
var neighbors4 = []image.Point{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}

// Label finds the 8-connected components of a mask
func Label(mask *models.Mask) *Labels {
	l := &Labels{Width: mask.Width, Height: mask.Height, Data: make([]int, len(mask.Data))}

	queue := make([]image.Point, 0, 64)
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if !mask.At(x, y) || l.At(x, y) != 0 {
				continue
			}

			l.Count++
			l.Data[y*l.Width+x] = l.Count
			queue = append(queue[:0], image.Pt(x, y))

			for len(queue) > 0 {
				p := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				for _, d := range neighbors8 {
					q := p.Add(d)
					if !mask.At(q.X, q.Y) || l.Data[q.Y*l.Width+q.X] != 0 {
						continue
					}
					l.Data[q.Y*l.Width+q.X] = l.Count
					queue = append(queue, q)
				}
			}
		}
	}

	return l
}

// Region is one connected component
type Region struct {
	Label  int
	Pixels []image.Point
}

// Area returns the number of pixels in the region
func (r Region) Area() int {
	return len(r.Pixels)
}

// Centroid returns the mean pixel position
func (r Region) Centroid() (x, y float64) {
	if len(r.Pixels) == 0 {
		return 0, 0
	}
	for _, p := range r.Pixels {
		x += float64(p.X)
		y += float64(p.Y)
	}
	n := float64(len(r.Pixels))
	return x / n, y / n
}

// WeightedCentroid returns the pixel position weighted by intensity.
// Regions with zero total weight fall back to the unweighted centroid.
func (r Region) WeightedCentroid(intensity *models.Grid) (x, y float64) {
	var total float64
	for _, p := range r.Pixels {
		w := intensity.At(p.X, p.Y)
		x += w * float64(p.X)
		y += w * float64(p.Y)
		total += w
	}
	if total == 0 {
		return r.Centroid()
	}
	return x / total, y / total
}

// Regions groups labelled pixels by component, ordered by label
func Regions(l *Labels) []Region {
	regions := make([]Region, l.Count)
	for i := range regions {
		regions[i].Label = i + 1
	}
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			if id := l.At(x, y); id != 0 {
				regions[id-1].Pixels = append(regions[id-1].Pixels, image.Pt(x, y))
			}
		}
	}
	return regions
}
