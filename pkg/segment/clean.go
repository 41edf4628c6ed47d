package segment

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"invasiondepth/internal/models"
)

// Candidate is a region center before any depth is known
type Candidate struct {
	X, Y float64
	Area int
}

// Candidates returns the intensity-weighted centroid of every region
func Candidates(mask *models.Mask, intensity *models.Grid) []Candidate {
	regions := Regions(Label(mask))
	out := make([]Candidate, 0, len(regions))
	for _, r := range regions {
		x, y := r.WeightedCentroid(intensity)
		out = append(out, Candidate{X: x, Y: y, Area: r.Area()})
	}
	return out
}

// ExcludeNearEdge removes regions whose weighted centroid lies within margin
// pixels of the image border. A region is kept only when
// margin < x < width−margin and margin < y < height−margin.
func ExcludeNearEdge(mask *models.Mask, intensity *models.Grid, margin float64) *models.Mask {
	out := mask.Clone()
	w, h := float64(mask.Width), float64(mask.Height)

	for _, r := range Regions(Label(mask)) {
		x, y := r.WeightedCentroid(intensity)
		inside := margin < x && x < w-margin && margin < y && y < h-margin
		if inside {
			continue
		}
		for _, p := range r.Pixels {
			out.Set(p.X, p.Y, false)
		}
	}
	return out
}

// RemoveSmall drops regions whose area is below mean − factor·std of all
// region areas (sample std; a single region has std 0). It returns the new
// mask and the minimum area that was applied.
func RemoveSmall(mask *models.Mask, factor float64) (*models.Mask, float64) {
	regions := Regions(Label(mask))
	if len(regions) == 0 {
		return mask.Clone(), 0
	}

	areas := make([]float64, len(regions))
	for i, r := range regions {
		areas[i] = float64(r.Area())
	}
	mean, std := stat.MeanStdDev(areas, nil)
	if len(areas) < 2 || math.IsNaN(std) {
		std = 0
	}
	minArea := mean - factor*std

	out := mask.Clone()
	for i, r := range regions {
		if areas[i] >= minArea {
			continue
		}
		for _, p := range r.Pixels {
			out.Set(p.X, p.Y, false)
		}
	}
	return out, minArea
}

// Clean closes gaps, fills enclosed holes and drops undersized fragments
func Clean(mask *models.Mask, iterations int, areaFactor float64) *models.Mask {
	out := Close(mask, iterations)
	out = FillHoles(out)
	out, _ = RemoveSmall(out, areaFactor)
	return out
}
