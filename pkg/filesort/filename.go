package filesort

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// filenamePattern matches acquisition file names such as
// 20200304-101530_Mic3_rep0_pos03_x0_y0_modeFluo5_z012.tif
var filenamePattern = regexp.MustCompile(`(\d{8})-(\d{6})_(.*)_rep(\d{1,6})_pos(\d{1,6})_.*`)

var zPattern = regexp.MustCompile(`_z(\d+)`)

// Filename holds the fields encoded in an acquisition file name
type Filename struct {
	Name       string
	Date       string
	Time       string
	Microscope string
	Rep        int
	// Pos is the position token exactly as written, leading zeros included
	Pos string
	// Z is the z-slice token, -1 when the name has none
	Z int
}

// PositionDir returns the folder name of the file's position, e.g. "pos03"
func (f Filename) PositionDir() string {
	return "pos" + f.Pos
}

// FilenameError reports a file name that does not follow the acquisition
// naming scheme. Routing such a file could place it in the wrong position.
type FilenameError struct {
	Name string
}

func (e *FilenameError) Error() string {
	return fmt.Sprintf("file name %q does not match <date>-<time>_<mic>_rep<N>_pos<N>_...", e.Name)
}

// ParseFilename extracts the acquisition fields from a file name or path
func ParseFilename(name string) (Filename, error) {
	base := filepath.Base(name)
	m := filenamePattern.FindStringSubmatch(base)
	if m == nil {
		return Filename{}, &FilenameError{Name: base}
	}

	rep, err := strconv.Atoi(m[4])
	if err != nil {
		return Filename{}, &FilenameError{Name: base}
	}

	f := Filename{
		Name:       base,
		Date:       m[1],
		Time:       m[2],
		Microscope: m[3],
		Rep:        rep,
		Pos:        m[5],
		Z:          -1,
	}

	// the greedy microscope group may swallow a z token, so search the whole name
	if zm := zPattern.FindAllStringSubmatch(base, -1); len(zm) > 0 {
		if z, err := strconv.Atoi(zm[len(zm)-1][1]); err == nil {
			f.Z = z
		}
	}

	return f, nil
}
