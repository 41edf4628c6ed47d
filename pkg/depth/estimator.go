// Package depth estimates how deep each fluorescent cell sits in a position's
// z-stack and runs that estimation over every position of an experiment.
package depth

import (
	"fmt"
	"image"
	"log"
	"math"

	"gonum.org/v1/gonum/stat"

	"invasiondepth/internal/models"
	"invasiondepth/pkg/filter"
	"invasiondepth/pkg/segment"
	"invasiondepth/pkg/stack"
	"invasiondepth/pkg/visualization"
)

// Params holds the detection parameters
type Params struct {
	// GaussLow and GaussHigh are the band-pass radii in pixels
	GaussLow  float64
	GaussHigh float64

	Threshold filter.ThresholdParams

	// ClosingIterations of dilation and erosion merge fragmented cells
	ClosingIterations int

	// AreaFactor scales the standard deviation in the small-object filter
	AreaFactor float64

	// ExcludeCloseToEdge drops cells whose weighted centroid is within
	// EdgeMargin pixels of the border
	ExcludeCloseToEdge bool
	EdgeMargin         float64

	// VariationThreshold flags cells whose depth dispersion exceeds it,
	// in stack index units
	VariationThreshold float64

	Verbose bool

	// SaveIntermediaryResults writes projection, mask and overlay images
	// into IntermediaryDir
	SaveIntermediaryResults bool
	IntermediaryDir         string
}

// DefaultParams returns the parameters used for the fluorescence channel
func DefaultParams() Params {
	return Params{
		GaussLow:  1,
		GaussHigh: 2,
		Threshold: filter.ThresholdParams{
			Method: filter.Otsu,
			Factor: 1,
			K:      5,
			Value:  1,
		},
		ClosingIterations:  4,
		AreaFactor:         1,
		EdgeMargin:         75,
		VariationThreshold: 2,
	}
}

// Estimator finds cells in a z-stack and assigns each a depth.
//
// The estimation consists of these steps:
// 1. Streaming max/min projection with the index of the extreme slice
// 2. Band-pass filtering of the max projection
// 3. Thresholding into a foreground mask
// 4. Optional removal of cells near the image border
// 5. Mask cleanup: closing, hole filling, small-object removal
// 6. Depth and dispersion per connected region
// 7. Flagging of regions with a high depth dispersion
type Estimator struct {
	params Params
	viewer *visualization.Viewer
}

// NewEstimator creates an estimator with the provided parameters
func NewEstimator(params Params) *Estimator {
	e := &Estimator{params: params}
	if params.SaveIntermediaryResults {
		e.viewer = visualization.NewViewer(params.IntermediaryDir)
	}
	return e
}

// Process runs the estimation over one stack. An empty stack or an empty
// mask yields no detections and no error.
func (e *Estimator) Process(src stack.Source) ([]models.Detection, error) {
	e.logf("Step 1: Projecting %d slices...", src.Len())
	proj, err := stack.Project(src)
	if err != nil {
		return nil, fmt.Errorf("failed to project stack: %w", err)
	}
	if proj == nil {
		e.logf("Stack is empty, nothing to detect")
		return nil, nil
	}
	e.save("01_max_projection.png", func() (image.Image, error) {
		return e.viewer.GridImage(proj.Max), nil
	})
	e.save("02_max_index.png", func() (image.Image, error) {
		return e.viewer.IndexImage(proj.MaxIndex, proj.Slices)
	})

	e.logf("Step 2: Band-pass filtering (sigma %g, %g)...", e.params.GaussLow, e.params.GaussHigh)
	filtered := filter.Bandpass(proj.Max, e.params.GaussLow, e.params.GaussHigh)
	e.save("03_bandpass.png", func() (image.Image, error) {
		return e.viewer.GridImage(filtered), nil
	})

	e.logf("Step 3: Thresholding (%s)...", e.params.Threshold.Method)
	th, err := filter.Threshold(filtered, e.params.Threshold)
	if err != nil {
		return nil, err
	}
	mask := filter.Binarize(filtered, th)
	e.logf("Threshold %.4g marks %d pixels", th, mask.Count())

	if e.params.ExcludeCloseToEdge {
		e.logf("Step 4: Excluding cells within %g px of the border...", e.params.EdgeMargin)
		mask = segment.ExcludeNearEdge(mask, filtered, e.params.EdgeMargin)
	} else {
		e.logf("Step 4: Keeping cells near the border")
	}
	if e.params.Verbose {
		e.logf("%d candidate cells", len(segment.Candidates(mask, filtered)))
	}

	e.logf("Step 5: Cleaning mask (%d closing iterations)...", e.params.ClosingIterations)
	mask = segment.Clean(mask, e.params.ClosingIterations, e.params.AreaFactor)
	e.save("04_mask.png", func() (image.Image, error) {
		return e.viewer.MaskImage(mask), nil
	})

	e.logf("Step 6: Assigning depths...")
	dets := AssignDepths(mask, proj.MaxIndex)

	e.logf("Step 7: Flagging depth variation above %g...", e.params.VariationThreshold)
	flagged := FlagVariation(dets, e.params.VariationThreshold)
	e.logf("%d cells, %d flagged", len(dets), flagged)

	e.save("05_overlay.png", func() (image.Image, error) {
		return e.viewer.Overlay(proj.Max, mask, dets), nil
	})

	return dets, nil
}

// AssignDepths measures every 8-connected region of the mask: its unweighted
// centroid, the mean of the max-projection indices under it as depth, and
// their sample standard deviation as dispersion. A single-pixel region has
// zero dispersion.
func AssignDepths(mask *models.Mask, maxIndex *models.IndexMap) []models.Detection {
	regions := segment.Regions(segment.Label(mask))
	dets := make([]models.Detection, 0, len(regions))

	for _, r := range regions {
		indices := make([]float64, len(r.Pixels))
		for i, p := range r.Pixels {
			indices[i] = float64(maxIndex.At(p.X, p.Y))
		}

		mean, std := stat.MeanStdDev(indices, nil)
		if len(indices) < 2 || math.IsNaN(std) {
			std = 0
		}

		x, y := r.Centroid()
		dets = append(dets, models.Detection{
			X:         x,
			Y:         y,
			Z:         mean,
			Variation: std,
			Area:      r.Area(),
		})
	}

	return dets
}

// FlagVariation annotates detections whose dispersion is strictly above
// threshold and returns how many were flagged
func FlagVariation(dets []models.Detection, threshold float64) int {
	n := 0
	for i := range dets {
		if dets[i].Variation > threshold {
			dets[i].Flag = fmt.Sprintf("high variation (%.1f)", dets[i].Variation)
			n++
		}
	}
	return n
}

func (e *Estimator) logf(format string, args ...any) {
	if e.params.Verbose {
		log.Printf("[detect] "+format, args...)
	}
}

// save renders and writes an intermediary image when enabled; failures are
// logged, not returned
func (e *Estimator) save(name string, render func() (image.Image, error)) {
	if e.viewer == nil {
		return
	}
	img, err := render()
	if err == nil {
		err = e.viewer.Save(name, img)
	}
	if err != nil {
		log.Printf("[detect] Warning: failed to save %s: %v", name, err)
	}
}
