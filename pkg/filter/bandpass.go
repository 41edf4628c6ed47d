// Package filter emphasises cell-sized detail in a projection and turns it into
// a foreground mask.
package filter

import (
	"gonum.org/v1/gonum/floats"

	"invasiondepth/internal/models"
)

// Bandpass subtracts a wide Gaussian blur from a narrow one (difference of
// Gaussians). Structures much larger than sigmaHigh and pixel noise below
// sigmaLow are suppressed. The result keeps the units of the input.
func Bandpass(g *models.Grid, sigmaLow, sigmaHigh float64) *models.Grid {
	narrow := GaussianBlur(g, sigmaLow)
	wide := GaussianBlur(g, sigmaHigh)

	out := models.NewGrid(g.Width, g.Height)
	floats.SubTo(out.Data, narrow.Data, wide.Data)
	return out
}
