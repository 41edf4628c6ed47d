package models

// Frame describes one z-slice of a position's image stack as registered in the
// image database
type Frame struct {
	// Index is the position of this slice in the stack (the database sort index)
	Index int

	// Layer is the imaging channel the slice belongs to, e.g. "modeFluo5"
	Layer string

	// Filename is the original filename of the slice
	Filename string

	// Path is the directory holding the file
	Path string
}

// Detection is one cell found in a position's stack
type Detection struct {
	// X and Y are the unweighted centroid of the cell's region in pixels
	X, Y float64

	// Z is the mean of the max-projection indices inside the region,
	// in stack index units
	Z float64

	// Variation is the sample standard deviation of those indices.
	// A single-pixel region has zero variation.
	Variation float64

	// Area is the number of pixels in the region
	Area int

	// Flag holds the reviewer annotation, empty unless the variation is high
	Flag string
}

// Flagged reports whether the detection carries a high variation annotation
func (d Detection) Flagged() bool {
	return d.Flag != ""
}
