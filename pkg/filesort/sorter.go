// Package filesort moves acquisition images into one folder per imaged position.
package filesort

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Params configures a Sorter
type Params struct {
	// AnchorPattern is a glob selecting one file per position. Only positions
	// that have an anchor file get a folder.
	AnchorPattern string

	// Extension of the files that are moved, e.g. ".tif"
	Extension string

	// Verbose logs every moved file
	Verbose bool
}

// Skip records a file that was left in place
type Skip struct {
	File   string
	Reason string
}

// Report summarises one sorting run
type Report struct {
	// Positions lists the position folders that were found or created
	Positions []string
	Moved     []string
	Skipped   []Skip
}

// Sorter routes image files into per-position folders
type Sorter struct {
	params Params
}

// NewSorter creates a sorter with the given parameters
func NewSorter(params Params) *Sorter {
	if params.Extension == "" {
		params.Extension = ".tif"
	}
	return &Sorter{params: params}
}

// Run sorts the files directly inside root.
//
// A file whose destination folder is missing, or that cannot be moved, is
// skipped and listed in the report. A file name that cannot be parsed aborts
// the run with a *FilenameError; files moved before that point stay moved.
func (s *Sorter) Run(root string) (Report, error) {
	var report Report

	positions, err := s.createPositionFolders(root)
	if err != nil {
		return report, err
	}
	report.Positions = positions
	log.Printf("[sort] searching folder %s - %d positions found", root, len(positions))

	entries, err := os.ReadDir(root)
	if err != nil {
		return report, fmt.Errorf("failed to read %s: %w", root, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), s.params.Extension) {
			continue
		}

		name, err := ParseFilename(entry.Name())
		if err != nil {
			return report, err
		}

		destination := filepath.Join(root, name.PositionDir())
		if info, err := os.Stat(destination); err != nil || !info.IsDir() {
			log.Printf("[sort] couldn't find position folder for %s", entry.Name())
			report.Skipped = append(report.Skipped, Skip{File: entry.Name(), Reason: "missing position folder " + name.PositionDir()})
			continue
		}

		if err := os.Rename(filepath.Join(root, entry.Name()), filepath.Join(destination, entry.Name())); err != nil {
			log.Printf("[sort] cannot move file %s: %v", entry.Name(), err)
			report.Skipped = append(report.Skipped, Skip{File: entry.Name(), Reason: err.Error()})
			continue
		}

		if s.params.Verbose {
			log.Printf("[sort] moved file %s", entry.Name())
		}
		report.Moved = append(report.Moved, entry.Name())
	}

	return report, nil
}

// createPositionFolders creates a folder for every position that has an anchor file
func (s *Sorter) createPositionFolders(root string) ([]string, error) {
	pattern := s.params.AnchorPattern
	if pattern == "" {
		pattern = "*" + s.params.Extension
	}

	anchors, err := filepath.Glob(filepath.Join(root, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad anchor pattern %q: %w", pattern, err)
	}

	seen := make(map[string]bool)
	for _, anchor := range anchors {
		name, err := ParseFilename(anchor)
		if err != nil {
			return nil, err
		}

		dir := name.PositionDir()
		if seen[dir] {
			continue
		}
		seen[dir] = true

		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}

	positions := make([]string, 0, len(seen))
	for dir := range seen {
		positions = append(positions, dir)
	}
	sort.Strings(positions)

	return positions, nil
}
