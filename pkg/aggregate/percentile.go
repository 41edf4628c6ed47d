package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Interpolation selects how a percentile between two samples is resolved.
// Runs that are compared must use the same convention.
type Interpolation string

const (
	Lower    Interpolation = "lower"
	Higher   Interpolation = "higher"
	Nearest  Interpolation = "nearest"
	Midpoint Interpolation = "midpoint"
	Linear   Interpolation = "linear"
)

// ErrNoData is returned for percentiles of an empty list
var ErrNoData = errors.New("no data")

// ParseInterpolation validates an interpolation name
func ParseInterpolation(s string) (Interpolation, error) {
	switch i := Interpolation(s); i {
	case Lower, Higher, Nearest, Midpoint, Linear:
		return i, nil
	}
	return "", fmt.Errorf("unknown percentile interpolation %q", s)
}

// Percentile returns the q-th percentile (0..100) of data. The fractional
// rank is q/100·(n−1) over the sorted values; Nearest rounds half to even.
func Percentile(data []float64, q float64, interp Interpolation) (float64, error) {
	if len(data) == 0 {
		return 0, ErrNoData
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	return percentileSorted(sorted, q, interp)
}

func percentileSorted(sorted []float64, q float64, interp Interpolation) (float64, error) {
	n := len(sorted)
	if n == 0 {
		return 0, ErrNoData
	}
	if math.IsNaN(q) {
		return 0, errors.New("percentile is NaN")
	}
	q = math.Max(0, math.Min(100, q))

	rank := q / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if hi > n-1 {
		hi = n - 1
	}
	if lo > hi {
		lo = hi
	}

	switch interp {
	case Lower:
		return sorted[lo], nil
	case Higher:
		return sorted[hi], nil
	case Nearest:
		return sorted[int(math.RoundToEven(rank))], nil
	case Midpoint:
		return (sorted[lo] + sorted[hi]) / 2, nil
	case Linear:
		return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo)), nil
	}
	return 0, fmt.Errorf("unknown percentile interpolation %q", interp)
}

// Linspace returns n evenly spaced values from start to stop inclusive
func Linspace(start, stop float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{start}
	}
	dst := floats.Span(make([]float64, n), start, stop)
	dst[n-1] = stop
	return dst
}
