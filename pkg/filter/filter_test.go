package filter

import (
	"math"
	"testing"

	"invasiondepth/internal/models"
)

func blockGrid(size, x0, y0, w int, v float64) *models.Grid {
	g := models.NewGrid(size, size)
	for y := y0; y < y0+w; y++ {
		for x := x0; x < x0+w; x++ {
			g.Set(x, y, v)
		}
	}
	return g
}

func TestBandpassConstantImageIsFlat(t *testing.T) {
	g := models.NewGrid(16, 16)
	g.Fill(500)

	out := Bandpass(g, 1, 2)
	for i, v := range out.Data {
		if math.Abs(v) > 1e-9 {
			t.Fatalf("Expected flat output, pixel %d is %g", i, v)
		}
	}
}

func TestBandpassHighlightsSmallBlob(t *testing.T) {
	g := blockGrid(32, 15, 15, 3, 1000)

	out := Bandpass(g, 1, 2)

	center := out.At(16, 16)
	if center < 300 || center > 600 {
		t.Errorf("Expected center response near 450, got %g", center)
	}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if out.At(x, y) > center {
				t.Fatalf("Pixel (%d,%d)=%g exceeds the blob center %g", x, y, out.At(x, y), center)
			}
		}
	}
	if far := out.At(2, 2); math.Abs(far) > 1 {
		t.Errorf("Expected no response far from the blob, got %g", far)
	}
}

// directBlur convolves with the sampled kernel, clamping coordinates at the
// border
func directBlur(g *models.Grid, sigma float64) *models.Grid {
	k := gaussianKernel(sigma)
	r := len(k) / 2
	clamp := func(v, n int) int { return min(max(v, 0), n-1) }

	tmp := models.NewGrid(g.Width, g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			var s float64
			for i, w := range k {
				s += w * g.At(clamp(x+i-r, g.Width), y)
			}
			tmp.Set(x, y, s)
		}
	}
	out := models.NewGrid(g.Width, g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			var s float64
			for i, w := range k {
				s += w * tmp.At(x, clamp(y+i-r, g.Height))
			}
			out.Set(x, y, s)
		}
	}
	return out
}

func TestGaussianKernel(t *testing.T) {
	k := gaussianKernel(2)
	if len(k) != 13 {
		t.Fatalf("Expected 13 taps for sigma 2, got %d", len(k))
	}
	var sum float64
	for i, w := range k {
		sum += w
		if w != k[len(k)-1-i] {
			t.Errorf("Kernel not symmetric at %d", i)
		}
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("Expected kernel sum 1, got %g", sum)
	}
}

func TestGaussianBlurMatchesDirectConvolution(t *testing.T) {
	g := models.NewGrid(23, 17)
	for i := range g.Data {
		g.Data[i] = float64((i*37)%101) - 20
	}
	g.Set(0, 0, 5000)
	g.Set(22, 16, -300)

	for _, sigma := range []float64{0.7, 1, 2, 4} {
		got := GaussianBlur(g, sigma)
		want := directBlur(g, sigma)
		for i := range want.Data {
			if math.Abs(got.Data[i]-want.Data[i]) > 1e-8 {
				t.Fatalf("sigma %g: pixel %d is %g, expected %g", sigma, i, got.Data[i], want.Data[i])
			}
		}
	}
}

func TestGaussianBlurZeroSigmaCopies(t *testing.T) {
	g := blockGrid(8, 2, 2, 2, 7)
	out := GaussianBlur(g, 0)
	out.Set(2, 2, 0)
	if g.At(2, 2) != 7 {
		t.Error("Expected GaussianBlur to return a copy")
	}
}

func TestBandpassIgnoresDistantHotPixel(t *testing.T) {
	dim := func() *models.Grid {
		g := models.NewGrid(64, 64)
		g.Fill(100)
		for y := 40; y < 43; y++ {
			for x := 40; x < 43; x++ {
				g.Set(x, y, 106)
			}
		}
		return g
	}

	clean := Bandpass(dim(), 1, 2)
	hot := dim()
	hot.Set(2, 2, math.MaxUint16)
	withHot := Bandpass(hot, 1, 2)

	center, corner, ring := clean.At(41, 41), clean.At(40, 40), clean.At(39, 41)
	if !(center > corner && corner > ring) {
		t.Fatalf("Expected center %g > corner %g > ring %g", center, corner, ring)
	}
	for y := 30; y < 54; y++ {
		for x := 30; x < 54; x++ {
			if math.Abs(clean.At(x, y)-withHot.At(x, y)) > 1e-6 {
				t.Fatalf("Pixel (%d,%d) changed from %g to %g by a hot pixel at (2,2)",
					x, y, clean.At(x, y), withHot.At(x, y))
			}
		}
	}
}

func TestOtsuThresholdSeparatesModes(t *testing.T) {
	var data []float64
	for i := 0; i < 100; i++ {
		data = append(data, float64(i%10))
		data = append(data, 100+float64(i%10))
	}

	th := OtsuThreshold(data, OtsuBins)
	if th < 9 || th >= 100 {
		t.Errorf("Expected threshold between the modes, got %g", th)
	}
}

func TestOtsuThresholdConstant(t *testing.T) {
	if th := OtsuThreshold([]float64{4, 4, 4}, OtsuBins); th != 4 {
		t.Errorf("Expected 4 for constant data, got %g", th)
	}
}

func TestThresholdMethods(t *testing.T) {
	g := &models.Grid{Width: 5, Height: 1, Data: []float64{1, 2, 3, 4, 5}}

	th, err := Threshold(g, ThresholdParams{Method: MeanStd, K: 5, Factor: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := 3 + 5*math.Sqrt(2.5)
	if math.Abs(th-want) > 1e-9 {
		t.Errorf("Expected mean_std threshold %g, got %g", want, th)
	}

	th, err = Threshold(g, ThresholdParams{Method: Absolute, Value: 1, Factor: 2})
	if err != nil {
		t.Fatal(err)
	}
	if th != 2 {
		t.Errorf("Expected absolute threshold 2, got %g", th)
	}

	if _, err := Threshold(g, ThresholdParams{Method: "triangle"}); err == nil {
		t.Error("Expected error for unknown method")
	}
}

func TestBinarizeIsStrict(t *testing.T) {
	g := &models.Grid{Width: 3, Height: 1, Data: []float64{1, 2, 3}}
	mask := Binarize(g, 2)
	if mask.At(0, 0) || mask.At(1, 0) || !mask.At(2, 0) {
		t.Errorf("Expected only the pixel above 2 to be set, got %v", mask.Data)
	}
}

func TestParseMethod(t *testing.T) {
	for _, s := range []string{"otsu", "mean_std", "absolute"} {
		if _, err := ParseMethod(s); err != nil {
			t.Errorf("ParseMethod(%q): %v", s, err)
		}
	}
	if _, err := ParseMethod("li"); err == nil {
		t.Error("Expected error for unknown method")
	}
}
