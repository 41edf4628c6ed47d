// Package results reads and writes the per-position detection files that
// connect depth estimation to aggregation.
package results

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"invasiondepth/internal/models"
)

// Header is the first line of every result file
const Header = "# x,y,z"

// ErrBadHeader is returned when a result file does not start with Header
var ErrBadHeader = errors.New("result file header is not \"" + Header + "\"")

// Row is one detection as stored on disk
type Row struct {
	X, Y, Z float64
}

// Write replaces path with one row per detection, two decimals per value
func Write(path string, dets []models.Detection) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create result file: %w", err)
	}

	w := bufio.NewWriter(file)
	fmt.Fprintln(w, Header)
	for _, d := range dets {
		fmt.Fprintf(w, "%.2f %.2f %.2f\n", d.X, d.Y, d.Z)
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return file.Close()
}

// Read parses a result file. A file holding only the header has no rows.
func Read(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", path, ErrBadHeader)
	}
	if strings.TrimSpace(scanner.Text()) != Header {
		return nil, fmt.Errorf("%s: %w", path, ErrBadHeader)
	}

	var rows []Row
	line := 1
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s:%d: expected 3 columns, got %d", path, line, len(fields))
		}
		var vals [3]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
			vals[i] = v
		}
		rows = append(rows, Row{X: vals[0], Y: vals[1], Z: vals[2]})
	}
	return rows, scanner.Err()
}

// ReadDepths returns the z column of a result file
func ReadDepths(path string) ([]float64, error) {
	rows, err := Read(path)
	if err != nil {
		return nil, err
	}
	z := make([]float64, len(rows))
	for i, r := range rows {
		z[i] = r.Z
	}
	return z, nil
}

// ReadHeightList parses a manually recorded height list: comma separated
// stack indices on the first line
func ReadHeightList(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	first, _, _ := strings.Cut(string(data), "\n")

	var heights []float64
	for _, f := range strings.Split(first, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		heights = append(heights, v)
	}
	return heights, nil
}
