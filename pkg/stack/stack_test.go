package stack

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"invasiondepth/internal/models"
	"invasiondepth/pkg/imagedb"
)

// constantSlice returns a slice filled with v
func constantSlice(width, height int, v float64) *models.Grid {
	g := models.NewGrid(width, height)
	g.Fill(v)
	return g
}

// countingSource counts frame reads
type countingSource struct {
	MemorySource
	reads int
}

func (c *countingSource) Frame(i int) (*models.Grid, error) {
	c.reads++
	return c.MemorySource.Frame(i)
}

func TestProjectMaxMinAndIndices(t *testing.T) {
	slices := MemorySource{
		constantSlice(3, 2, 5),
		constantSlice(3, 2, 2),
		constantSlice(3, 2, 9),
		constantSlice(3, 2, 1),
	}
	// pixel (1, 1) peaks on slice 1 and bottoms out on slice 2
	slices[1].Set(1, 1, 20)
	slices[2].Set(1, 1, 0)

	p, err := Project(slices)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}

	if p.Slices != 4 {
		t.Errorf("Expected 4 slices, got %d", p.Slices)
	}
	if p.Max.At(0, 0) != 9 || p.MaxIndex.At(0, 0) != 2 {
		t.Errorf("Expected max 9 at index 2, got %g at %d", p.Max.At(0, 0), p.MaxIndex.At(0, 0))
	}
	if p.Min.At(0, 0) != 1 || p.MinIndex.At(0, 0) != 3 {
		t.Errorf("Expected min 1 at index 3, got %g at %d", p.Min.At(0, 0), p.MinIndex.At(0, 0))
	}
	if p.Max.At(1, 1) != 20 || p.MaxIndex.At(1, 1) != 1 {
		t.Errorf("Expected max 20 at index 1, got %g at %d", p.Max.At(1, 1), p.MaxIndex.At(1, 1))
	}
	if p.Min.At(1, 1) != 0 || p.MinIndex.At(1, 1) != 2 {
		t.Errorf("Expected min 0 at index 2, got %g at %d", p.Min.At(1, 1), p.MinIndex.At(1, 1))
	}
}

func TestProjectTiesKeepFirstIndex(t *testing.T) {
	slices := MemorySource{constantSlice(2, 2, 7), constantSlice(2, 2, 7), constantSlice(2, 2, 7)}
	p, err := Project(slices)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	for i := range p.MaxIndex.Data {
		if p.MaxIndex.Data[i] != 0 || p.MinIndex.Data[i] != 0 {
			t.Fatalf("Expected index 0 for tied pixels, got max %d min %d", p.MaxIndex.Data[i], p.MinIndex.Data[i])
		}
	}
}

func TestProjectReadsEachSliceOnce(t *testing.T) {
	src := &countingSource{MemorySource: MemorySource{
		constantSlice(4, 4, 1), constantSlice(4, 4, 2), constantSlice(4, 4, 3),
	}}
	if _, err := Project(src); err != nil {
		t.Fatalf("Project: %v", err)
	}
	if src.reads != 3 {
		t.Errorf("Expected 3 slice reads, got %d", src.reads)
	}
}

func TestProjectEmptyStack(t *testing.T) {
	p, err := Project(MemorySource{})
	if err != nil {
		t.Fatalf("Expected no error for empty stack, got %v", err)
	}
	if p != nil {
		t.Errorf("Expected nil projection for empty stack")
	}
}

func TestProjectShapeMismatch(t *testing.T) {
	_, err := Project(MemorySource{constantSlice(4, 4, 1), constantSlice(5, 4, 1)})
	if err == nil {
		t.Fatal("Expected error for mismatched slice shapes")
	}
}

func writeTIFF(t *testing.T, path string, width, height int, pattern func(x, y int) uint16) {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: pattern(x, y)})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatal(err)
	}
}

func TestLoadGridKeepsRawValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slice.tif")
	writeTIFF(t, path, 4, 3, func(x, y int) uint16 { return uint16(1000*y + x) })

	g, err := LoadGrid(path)
	if err != nil {
		t.Fatalf("LoadGrid: %v", err)
	}
	if g.Width != 4 || g.Height != 3 {
		t.Fatalf("Expected 4x3, got %dx%d", g.Width, g.Height)
	}
	if g.At(3, 2) != 2003 {
		t.Errorf("Expected raw value 2003, got %g", g.At(3, 2))
	}
}

func TestDBSourceStreamsFrames(t *testing.T) {
	dir := t.TempDir()
	for z := 0; z < 3; z++ {
		name := filepath.Join(dir, []string{"a.tif", "b.tif", "c.tif"}[z])
		value := uint16(10 * (z + 1))
		writeTIFF(t, name, 2, 2, func(x, y int) uint16 { return value })
	}

	db, err := imagedb.Open(filepath.Join(dir, "sorted.cdb"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	layer, err := db.SetLayer("modeFluo5")
	if err != nil {
		t.Fatal(err)
	}
	pathID, err := db.SetPath(".")
	if err != nil {
		t.Fatal(err)
	}
	for i, name := range []string{"a.tif", "b.tif", "c.tif"} {
		if _, err := db.AddImage(name, pathID, layer, i); err != nil {
			t.Fatal(err)
		}
	}

	src, err := NewDBSource(db, "modeFluo5")
	if err != nil {
		t.Fatalf("NewDBSource: %v", err)
	}
	if src.Len() != 3 {
		t.Fatalf("Expected 3 frames, got %d", src.Len())
	}

	p, err := Project(src)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if p.Max.At(0, 0) != 30 || p.MaxIndex.At(0, 0) != 2 {
		t.Errorf("Expected max 30 at index 2, got %g at %d", p.Max.At(0, 0), p.MaxIndex.At(0, 0))
	}
}
