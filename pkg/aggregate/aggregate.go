// Package aggregate pools the depth results of many positions into
// per-condition invasion depth distributions.
package aggregate

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"

	"invasiondepth/pkg/config"
	"invasiondepth/pkg/results"
)

// Clip returns a copy of z with every value above cutoff replaced by cutoff.
// Cells above the gel surface are not more invaded than the surface itself.
func Clip(z []float64, cutoff float64) []float64 {
	out := make([]float64, len(z))
	for i, v := range z {
		if v > cutoff {
			v = cutoff
		}
		out[i] = v
	}
	return out
}

// ToPhysical converts stack indices to depth below the surface:
// (surface − z)·thickness
func ToPhysical(z []float64, surface, thickness float64) []float64 {
	out := make([]float64, len(z))
	for i, v := range z {
		out[i] = (surface - v) * thickness
	}
	return out
}

// Position holds the physical depths of one position's cells
type Position struct {
	Name   string
	Path   string
	Depths []float64
}

// Condition is one experimental condition with its positions
type Condition struct {
	Name      string
	Label     string
	Positions []Position
}

// Pooled returns the depths of all positions together
func (c Condition) Pooled() []float64 {
	var all []float64
	for _, p := range c.Positions {
		all = append(all, p.Depths...)
	}
	return all
}

// Point is one level of a survival curve: the fraction P of cells at least D
// deep, with Band the spread of D across positions
type Point struct {
	P    float64
	D    float64
	Band float64
}

// Curve is the survival curve of a condition or a single position
type Curve struct {
	Label   string
	Points  []Point
	Samples int
}

// QQPoint pairs the same quantile of two distributions
type QQPoint struct {
	Q    float64
	X, Y float64
}

// Params configures an Aggregator
type Params struct {
	SurfaceIndex   float64
	SliceThickness float64
	Interpolation  Interpolation

	// Resolution is the number of probability levels; 0 uses the pooled sample count
	Resolution int

	Verbose bool
}

// Aggregator loads result files and derives depth distributions
type Aggregator struct {
	params Params
}

// NewAggregator creates an aggregator with the provided parameters
func NewAggregator(params Params) *Aggregator {
	return &Aggregator{params: params}
}

// Load reads the result files of a condition. Files come from the explicit
// list and the glob pattern; positions without cells are skipped.
func (a *Aggregator) Load(cond config.Condition) (Condition, error) {
	c := Condition{Name: cond.Name, Label: cond.Label}
	if c.Label == "" {
		c.Label = c.Name
	}

	files := append([]string(nil), cond.Files...)
	if cond.Glob != "" {
		matches, err := filepath.Glob(cond.Glob)
		if err != nil {
			return c, fmt.Errorf("condition %s: %w", cond.Name, err)
		}
		files = append(files, matches...)
	}
	files = dedupe(files)

	for _, f := range files {
		z, err := results.ReadDepths(f)
		if err != nil {
			return c, fmt.Errorf("condition %s: %w", cond.Name, err)
		}
		if len(z) == 0 {
			log.Printf("[aggregate] %s: no cells in %s, skipped", cond.Name, f)
			continue
		}

		depths := ToPhysical(Clip(z, a.params.SurfaceIndex), a.params.SurfaceIndex, a.params.SliceThickness)
		c.Positions = append(c.Positions, Position{
			Name:   filepath.Base(filepath.Dir(f)),
			Path:   f,
			Depths: depths,
		})
	}

	if a.params.Verbose {
		log.Printf("[aggregate] %s: %d positions, %d cells", c.Name, len(c.Positions), len(c.Pooled()))
	}
	return c, nil
}

// Survival computes the pooled survival curve of a condition with the
// position-to-position band
func (a *Aggregator) Survival(c Condition) (Curve, error) {
	perPosition := make([][]float64, len(c.Positions))
	for i, p := range c.Positions {
		perPosition[i] = p.Depths
	}

	pooled := c.Pooled()
	points, err := SurvivalCurve(pooled, perPosition, a.params.Resolution, a.params.Interpolation)
	if err != nil {
		return Curve{}, fmt.Errorf("condition %s: %w", c.Name, err)
	}
	return Curve{Label: c.Label, Points: points, Samples: len(pooled)}, nil
}

// PositionCurves computes one survival curve per position, without band
func (a *Aggregator) PositionCurves(c Condition) ([]Curve, error) {
	curves := make([]Curve, 0, len(c.Positions))
	for _, p := range c.Positions {
		points, err := SurvivalCurve(p.Depths, nil, a.params.Resolution, a.params.Interpolation)
		if err != nil {
			return nil, fmt.Errorf("position %s: %w", p.Path, err)
		}
		curves = append(curves, Curve{
			Label:   fmt.Sprintf("%s %s", c.Label, p.Name),
			Points:  points,
			Samples: len(p.Depths),
		})
	}
	return curves, nil
}

// QQ compares the pooled depths of two conditions
func (a *Aggregator) QQ(x, y Condition) ([]QQPoint, error) {
	return QQ(x.Pooled(), y.Pooled(), a.params.Interpolation)
}

// SurvivalCurve evaluates the percentile function of pooled at resolution
// probability levels p from 1 down to 0 and returns P = 1 − p against the
// p-th percentile. Band is the population standard deviation of the same
// percentile over the non-empty perPosition lists. A resolution of 0 uses
// len(pooled) levels.
func SurvivalCurve(pooled []float64, perPosition [][]float64, resolution int, interp Interpolation) ([]Point, error) {
	if len(pooled) == 0 {
		return nil, ErrNoData
	}
	if resolution <= 0 {
		resolution = len(pooled)
	}

	sortedPooled := sortedCopy(pooled)
	var sortedPositions [][]float64
	for _, p := range perPosition {
		if len(p) > 0 {
			sortedPositions = append(sortedPositions, sortedCopy(p))
		}
	}

	levels := Linspace(1, 0, resolution)
	points := make([]Point, len(levels))
	spread := make([]float64, len(sortedPositions))

	for i, p := range levels {
		d, err := percentileSorted(sortedPooled, 100*p, interp)
		if err != nil {
			return nil, err
		}
		for j, s := range sortedPositions {
			if spread[j], err = percentileSorted(s, 100*p, interp); err != nil {
				return nil, err
			}
		}

		var band float64
		if len(spread) > 0 {
			band = stat.PopStdDev(spread, nil)
		}
		points[i] = Point{P: 1 - p, D: d, Band: band}
	}

	return points, nil
}

// QQ returns matching quantiles of a and b at max(len(a), len(b)) evenly
// spaced percentiles from 0 to 100
func QQ(a, b []float64, interp Interpolation) ([]QQPoint, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, ErrNoData
	}
	n := max(len(a), len(b))

	sa, sb := sortedCopy(a), sortedCopy(b)
	qs := Linspace(0, 100, n)
	points := make([]QQPoint, len(qs))
	for i, q := range qs {
		x, err := percentileSorted(sa, q, interp)
		if err != nil {
			return nil, err
		}
		y, err := percentileSorted(sb, q, interp)
		if err != nil {
			return nil, err
		}
		points[i] = QQPoint{Q: q, X: x, Y: y}
	}
	return points, nil
}

func sortedCopy(v []float64) []float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	return s
}

func dedupe(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := files[:0]
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
