package models

import "fmt"

// Grid is a 2D float image stored in row-major order
type Grid struct {
	Width  int
	Height int
	Data   []float64
}

// NewGrid allocates a zeroed grid
func NewGrid(width, height int) *Grid {
	return &Grid{Width: width, Height: height, Data: make([]float64, width*height)}
}

// At returns the value at column x, row y
func (g *Grid) At(x, y int) float64 {
	return g.Data[y*g.Width+x]
}

// Set stores v at column x, row y
func (g *Grid) Set(x, y int, v float64) {
	g.Data[y*g.Width+x] = v
}

// Fill sets every pixel to v
func (g *Grid) Fill(v float64) {
	for i := range g.Data {
		g.Data[i] = v
	}
}

// SameShape reports whether both grids cover the same pixel grid
func (g *Grid) SameShape(width, height int) bool {
	return g.Width == width && g.Height == height
}

// String implements fmt.Stringer
func (g *Grid) String() string {
	return fmt.Sprintf("grid %dx%d", g.Width, g.Height)
}

// IndexMap records a stack index per pixel
type IndexMap struct {
	Width  int
	Height int
	Data   []int
}

// NewIndexMap allocates a zeroed index map
func NewIndexMap(width, height int) *IndexMap {
	return &IndexMap{Width: width, Height: height, Data: make([]int, width*height)}
}

// At returns the index at column x, row y
func (m *IndexMap) At(x, y int) int {
	return m.Data[y*m.Width+x]
}

// Set stores v at column x, row y
func (m *IndexMap) Set(x, y int, v int) {
	m.Data[y*m.Width+x] = v
}

// Mask is a boolean segmentation over a pixel grid
type Mask struct {
	Width  int
	Height int
	Data   []bool
}

// NewMask allocates an empty mask
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Data: make([]bool, width*height)}
}

// At reports whether the pixel at column x, row y is foreground.
// Coordinates outside the mask are background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Data[y*m.Width+x]
}

// Set marks the pixel at column x, row y
func (m *Mask) Set(x, y int, v bool) {
	m.Data[y*m.Width+x] = v
}

// Clone returns a deep copy of the mask
func (m *Mask) Clone() *Mask {
	c := NewMask(m.Width, m.Height)
	copy(c.Data, m.Data)
	return c
}

// Count returns the number of foreground pixels
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}
