package stack

import (
	"fmt"
	"math"

	"invasiondepth/internal/models"
)

// Projection holds the pixel-wise extremes of a z-stack and the stack index at
// which each extreme first occurred
type Projection struct {
	Max      *models.Grid
	Min      *models.Grid
	MaxIndex *models.IndexMap
	MinIndex *models.IndexMap
	Slices   int
}

// Project reduces a stack to its projections, reading one slice at a time so
// the stack never has to fit in memory. Ties keep the earliest index.
// An empty source yields a nil projection and no error.
func Project(src Source) (*Projection, error) {
	n := src.Len()
	if n == 0 {
		return nil, nil
	}

	var p *Projection
	for i := 0; i < n; i++ {
		shot, err := src.Frame(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read slice %d: %w", i, err)
		}

		if p == nil {
			p = newProjection(shot.Width, shot.Height)
		} else if !shot.SameShape(p.Max.Width, p.Max.Height) {
			return nil, fmt.Errorf("slice %d is %dx%d, expected %dx%d",
				i, shot.Width, shot.Height, p.Max.Width, p.Max.Height)
		}

		for j, v := range shot.Data {
			if v < p.Min.Data[j] {
				p.Min.Data[j] = v
				p.MinIndex.Data[j] = i
			}
			if v > p.Max.Data[j] {
				p.Max.Data[j] = v
				p.MaxIndex.Data[j] = i
			}
		}
		p.Slices++
	}

	return p, nil
}

func newProjection(width, height int) *Projection {
	p := &Projection{
		Max:      models.NewGrid(width, height),
		Min:      models.NewGrid(width, height),
		MaxIndex: models.NewIndexMap(width, height),
		MinIndex: models.NewIndexMap(width, height),
	}
	p.Max.Fill(math.Inf(-1))
	p.Min.Fill(math.Inf(1))
	return p
}
