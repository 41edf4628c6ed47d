package visualization

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"invasiondepth/internal/models"
)

// TestGridImageStretchesRange verifies that the lowest value renders black and the highest white
func TestGridImageStretchesRange(t *testing.T) {
	g := &models.Grid{Width: 3, Height: 1, Data: []float64{10, 15, 20}}
	viewer := NewViewer(t.TempDir())

	img := viewer.GridImage(g)

	if got := img.Gray16At(0, 0).Y; got != 0 {
		t.Errorf("Expected minimum to render 0, got %d", got)
	}
	if got := img.Gray16At(2, 0).Y; got != 65535 {
		t.Errorf("Expected maximum to render 65535, got %d", got)
	}
	mid := img.Gray16At(1, 0).Y
	if mid < 32000 || mid > 33000 {
		t.Errorf("Expected mid value near 32767, got %d", mid)
	}
}

// TestGridImageConstant verifies that a flat grid does not divide by zero
func TestGridImageConstant(t *testing.T) {
	g := models.NewGrid(4, 4)
	g.Fill(7)

	img := NewViewer(t.TempDir()).GridImage(g)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if img.Gray16At(x, y).Y != 0 {
				t.Fatalf("Expected black pixel at (%d,%d)", x, y)
			}
		}
	}
}

func TestIndexImage(t *testing.T) {
	m := &models.IndexMap{Width: 2, Height: 1, Data: []int{0, 4}}
	viewer := NewViewer(t.TempDir())

	img, err := viewer.IndexImage(m, 5)
	if err != nil {
		t.Fatal(err)
	}
	if img.Gray16At(0, 0).Y != 0 || img.Gray16At(1, 0).Y != 65535 {
		t.Errorf("Unexpected index levels %d and %d", img.Gray16At(0, 0).Y, img.Gray16At(1, 0).Y)
	}

	if _, err := viewer.IndexImage(m, 3); err == nil {
		t.Error("Expected error for an index outside the stack")
	}
	if _, err := viewer.IndexImage(m, 0); err == nil {
		t.Error("Expected error for an empty stack")
	}
}

// TestOverlaySave verifies that overlays are written as readable PNG files
func TestOverlaySave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "debug")
	viewer := NewViewer(dir)

	base := models.NewGrid(40, 30)
	mask := models.NewMask(40, 30)
	mask.Set(10, 10, true)
	dets := []models.Detection{
		{X: 10, Y: 10, Z: 3},
		{X: 39, Y: 29, Z: 8, Flag: "high variation (2.5)"},
	}

	img := viewer.Overlay(base, mask, dets)
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
		t.Fatalf("Unexpected overlay bounds %v", img.Bounds())
	}
	if c := img.RGBAAt(10, 10); c != markerColor {
		t.Errorf("Expected marker color at the detection, got %v", c)
	}
	if c := img.RGBAAt(39, 29); c != flagColor {
		t.Errorf("Expected flag color at the flagged detection, got %v", c)
	}

	if err := viewer.Save("overlay.png", img); err != nil {
		t.Fatalf("Failed to save overlay: %v", err)
	}

	file, err := os.Open(filepath.Join(dir, "overlay.png"))
	if err != nil {
		t.Fatalf("Overlay file missing: %v", err)
	}
	defer file.Close()

	decoded, err := png.Decode(file)
	if err != nil {
		t.Fatalf("Failed to decode overlay: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Errorf("Expected bounds %v, got %v", img.Bounds(), decoded.Bounds())
	}
}

func TestSaveReportsEncodeFailure(t *testing.T) {
	dir := t.TempDir()
	viewer := NewViewer(dir)

	if err := viewer.Save("empty.png", image.NewGray(image.Rect(0, 0, 0, 0))); err == nil {
		t.Fatal("Expected an error for an empty image")
	}
	if err := viewer.Save("missing/overlay.png", image.NewGray(image.Rect(0, 0, 2, 2))); err == nil {
		t.Fatal("Expected an error for a missing subdirectory")
	}
	if err := viewer.Save("ok.png", image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
}

func TestMaskImage(t *testing.T) {
	m := models.NewMask(2, 2)
	m.Set(1, 1, true)

	img := NewViewer(t.TempDir()).MaskImage(m)
	if img.GrayAt(1, 1).Y != 255 || img.GrayAt(0, 0).Y != 0 {
		t.Error("Expected foreground white and background black")
	}
}
