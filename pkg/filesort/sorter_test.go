package filesort

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("tif"), 0644))
}

func TestParseFilename(t *testing.T) {
	f, err := ParseFilename("/data/HA/20200304-101530_Mic3_rep0_pos03_x0_y0_modeFluo5_z012.tif")
	require.NoError(t, err)

	assert.Equal(t, "20200304", f.Date)
	assert.Equal(t, "101530", f.Time)
	assert.Equal(t, "Mic3", f.Microscope)
	assert.Equal(t, 0, f.Rep)
	assert.Equal(t, "03", f.Pos)
	assert.Equal(t, 12, f.Z)
	assert.Equal(t, "pos03", f.PositionDir())
}

func TestParseFilenameWithoutZ(t *testing.T) {
	f, err := ParseFilename("20200304-101530_Mic3_rep12_pos7_x0_y0_modeBF.tif")
	require.NoError(t, err)
	assert.Equal(t, 12, f.Rep)
	assert.Equal(t, "pos7", f.PositionDir())
	assert.Equal(t, -1, f.Z)
}

func TestParseFilenameMalformed(t *testing.T) {
	_, err := ParseFilename("overview.tif")
	require.Error(t, err)

	var fe *FilenameError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "overview.tif", fe.Name)
}

func TestSorterRun(t *testing.T) {
	root := t.TempDir()

	files := []string{
		"20200304-101530_Mic3_rep0_pos00_x0_y0_modeBF_z0.tif",
		"20200304-101531_Mic3_rep0_pos00_x0_y0_modeFluo5_z1.tif",
		"20200304-101532_Mic3_rep0_pos01_x0_y0_modeBF_z0.tif",
		"20200304-101533_Mic3_rep0_pos01_x0_y0_modeFluo5_z3.tif",
		// position 02 has no anchor file, so it has no folder
		"20200304-101534_Mic3_rep0_pos02_x0_y0_modeFluo5_z1.tif",
	}
	for _, f := range files {
		touch(t, root, f)
	}
	touch(t, root, "notes.txt")

	report, err := NewSorter(Params{
		AnchorPattern: "*rep0_pos*_x0_y0_modeBF*_z*0.tif",
		Extension:     ".tif",
	}).Run(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"pos00", "pos01"}, report.Positions)
	assert.Len(t, report.Moved, 4)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, files[4], report.Skipped[0].File)

	assert.FileExists(t, filepath.Join(root, "pos00", files[1]))
	assert.FileExists(t, filepath.Join(root, "pos01", files[3]))
	assert.FileExists(t, filepath.Join(root, files[4]))
	assert.FileExists(t, filepath.Join(root, "notes.txt"))
}

func TestSorterRunMalformedNameIsFatal(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "20200304-101530_Mic3_rep0_pos00_x0_y0_modeBF_z0.tif")
	touch(t, root, "stitched.tif")

	_, err := NewSorter(Params{AnchorPattern: "*modeBF*_z*0.tif"}).Run(root)

	var fe *FilenameError
	require.True(t, errors.As(err, &fe), "expected FilenameError, got %v", err)
	assert.Equal(t, "stitched.tif", fe.Name)
}
