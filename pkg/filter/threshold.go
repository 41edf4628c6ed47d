package filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"invasiondepth/internal/models"
)

// Method selects how the segmentation threshold is derived
type Method string

const (
	// Otsu maximises the between-class variance of a 256-bin histogram
	Otsu Method = "otsu"
	// MeanStd uses mean + k·(sample standard deviation) of all pixels
	MeanStd Method = "mean_std"
	// Absolute uses a fixed value
	Absolute Method = "absolute"
)

// ParseMethod validates a method name
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case Otsu, MeanStd, Absolute:
		return m, nil
	}
	return "", fmt.Errorf("unknown threshold method %q", s)
}

// ThresholdParams configures Threshold
type ThresholdParams struct {
	Method Method
	// Factor scales the threshold of every method
	Factor float64
	// K is the standard deviation multiplier of MeanStd
	K float64
	// Value is the threshold of Absolute before scaling
	Value float64
}

// OtsuBins is the histogram resolution of the Otsu threshold
const OtsuBins = 256

// Threshold computes the scaled threshold for an image
func Threshold(g *models.Grid, p ThresholdParams) (float64, error) {
	var th float64
	switch p.Method {
	case Otsu:
		th = OtsuThreshold(g.Data, OtsuBins)
	case MeanStd:
		mean, std := meanStd(g.Data)
		th = mean + p.K*std
	case Absolute:
		th = p.Value
	default:
		return 0, fmt.Errorf("unknown threshold method %q", p.Method)
	}
	return th * p.Factor, nil
}

// Binarize marks every pixel strictly above th
func Binarize(g *models.Grid, th float64) *models.Mask {
	mask := models.NewMask(g.Width, g.Height)
	for i, v := range g.Data {
		mask.Data[i] = v > th
	}
	return mask
}

// OtsuThreshold returns the center of the histogram bin that best separates
// the values into two classes. Constant input returns that constant.
func OtsuThreshold(data []float64, nbins int) float64 {
	if len(data) == 0 {
		return 0
	}
	lo, hi := floats.Min(data), floats.Max(data)
	if lo == hi {
		return lo
	}

	width := (hi - lo) / float64(nbins)
	hist := make([]float64, nbins)
	for _, v := range data {
		b := int((v - lo) / width)
		if b >= nbins {
			b = nbins - 1
		}
		hist[b]++
	}

	centers := make([]float64, nbins)
	for i := range centers {
		centers[i] = lo + (float64(i)+0.5)*width
	}

	weighted := make([]float64, nbins)
	floats.MulTo(weighted, hist, centers)

	// class below the split, accumulated from the left
	weight1 := floats.CumSum(make([]float64, nbins), hist)
	sum1 := floats.CumSum(make([]float64, nbins), weighted)

	// class above the split, accumulated from the right
	weight2 := make([]float64, nbins)
	sum2 := make([]float64, nbins)
	var w, s float64
	for i := nbins - 1; i >= 0; i-- {
		w += hist[i]
		s += weighted[i]
		weight2[i] = w
		sum2[i] = s
	}

	variance := make([]float64, nbins-1)
	for i := 0; i < nbins-1; i++ {
		if weight1[i] == 0 || weight2[i+1] == 0 {
			continue
		}
		mean1 := sum1[i] / weight1[i]
		mean2 := sum2[i+1] / weight2[i+1]
		variance[i] = weight1[i] * weight2[i+1] * (mean1 - mean2) * (mean1 - mean2)
	}

	return centers[floats.MaxIdx(variance)]
}

// meanStd returns the mean and sample standard deviation; a single value has
// zero deviation
func meanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	mean, std := stat.MeanStdDev(data, nil)
	if len(data) < 2 || math.IsNaN(std) {
		std = 0
	}
	return mean, std
}
