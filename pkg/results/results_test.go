package results

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invasiondepth/internal/models"
)

func TestWriteFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xyz_positions.txt")
	dets := []models.Detection{
		{X: 11, Y: 11.333, Z: 5},
		{X: 0.005, Y: 100, Z: 42.125},
	}

	require.NoError(t, Write(path, dets))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "# x,y,z\n11.00 11.33 5.00\n0.01 100.00 42.12\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("result file mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xyz_positions.txt")
	require.NoError(t, Write(path, []models.Detection{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6.5}}))

	rows, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []Row{{1, 2, 3}, {4, 5, 6.5}}, rows)

	z, err := ReadDepths(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 6.5}, z)
}

func TestWriteOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xyz_positions.txt")
	require.NoError(t, Write(path, []models.Detection{{X: 1, Y: 2, Z: 3}}))
	require.NoError(t, Write(path, nil))

	rows, err := Read(path)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xyz_positions.txt")
	require.NoError(t, os.WriteFile(path, []byte("x y z\n1 2 3\n"), 0644))

	_, err := Read(path)
	assert.True(t, errors.Is(err, ErrBadHeader), "got %v", err)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = Read(empty)
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestReadBadRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xyz_positions.txt")
	require.NoError(t, os.WriteFile(path, []byte("# x,y,z\n1 2\n"), 0644))

	_, err := Read(path)
	assert.Error(t, err)
}

func TestReadHeightList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heights.txt")
	require.NoError(t, os.WriteFile(path, []byte("12, 30,45.5,\nignored\n"), 0644))

	h, err := ReadHeightList(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{12, 30, 45.5}, h)
}
