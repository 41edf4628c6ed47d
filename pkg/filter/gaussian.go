package filter

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"invasiondepth/internal/models"
)

// gaussianKernel samples exp(-x²/2σ²) on [-r, r] with r = ceil(3σ) and
// normalises it to sum 1
func gaussianKernel(sigma float64) []float64 {
	r := int(math.Ceil(3 * sigma))
	k := make([]float64, 2*r+1)
	for i := range k {
		x := float64(i - r)
		k[i] = math.Exp(-x * x / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// lineBlur convolves lines of a fixed length with a Gaussian kernel. Each
// line is padded by repeating its edge values, so the result matches a
// direct convolution with clamped borders.
type lineBlur struct {
	n, r   int
	fft    *fourier.FFT
	kernel []complex128
	padded []float64
	coeff  []complex128
	seq    []float64
}

func newLineBlur(n int, kernel []float64) *lineBlur {
	r := len(kernel) / 2
	size := n + 4*r
	b := &lineBlur{
		n:      n,
		r:      r,
		fft:    fourier.NewFFT(size),
		padded: make([]float64, size),
		coeff:  make([]complex128, size/2+1),
		seq:    make([]float64, size),
	}

	k := make([]float64, size)
	copy(k, kernel)
	b.kernel = b.fft.Coefficients(nil, k)
	// Sequence is unnormalised
	scale := complex(1/float64(size), 0)
	for i := range b.kernel {
		b.kernel[i] *= scale
	}
	return b
}

// apply blurs line in place
func (b *lineBlur) apply(line []float64) {
	for i := 0; i < b.n+2*b.r; i++ {
		src := min(max(i-b.r, 0), b.n-1)
		b.padded[i] = line[src]
	}

	b.fft.Coefficients(b.coeff, b.padded)
	for i := range b.coeff {
		b.coeff[i] *= b.kernel[i]
	}
	b.fft.Sequence(b.seq, b.coeff)

	copy(line, b.seq[2*b.r:2*b.r+b.n])
}

// GaussianBlur smooths g with a separable Gaussian of the given sigma and
// returns a new grid. Values stay in the units of g. A sigma of zero or less
// returns a copy.
func GaussianBlur(g *models.Grid, sigma float64) *models.Grid {
	out := models.NewGrid(g.Width, g.Height)
	copy(out.Data, g.Data)
	if sigma <= 0 || g.Width == 0 || g.Height == 0 {
		return out
	}
	kernel := gaussianKernel(sigma)

	rows := newLineBlur(g.Width, kernel)
	for y := 0; y < g.Height; y++ {
		rows.apply(out.Data[y*g.Width : (y+1)*g.Width])
	}

	cols := newLineBlur(g.Height, kernel)
	col := make([]float64, g.Height)
	for x := 0; x < g.Width; x++ {
		for y := range col {
			col[y] = out.Data[y*g.Width+x]
		}
		cols.apply(col)
		for y, v := range col {
			out.Data[y*g.Width+x] = v
		}
	}

	return out
}
