// Package builder imports the sorted images of each position folder into a
// fresh image database, one layer per imaging channel.
package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"invasiondepth/pkg/filesort"
	"invasiondepth/pkg/imagedb"
)

// MarkerType is created in every new database
type MarkerType struct {
	Name  string
	Color string
}

// Params configures a Builder
type Params struct {
	// FileName of the database inside each position folder
	FileName string

	// Channels become layers; a file belongs to the first channel its name contains
	Channels []string

	// PathName is stored as the image path, relative to the database file
	PathName string

	MarkerTypes []MarkerType

	Verbose bool
}

// Report summarises the import of one position
type Report struct {
	Position   string
	Registered map[string]int
	Duplicates []string
}

// Builder creates position databases
type Builder struct {
	params Params
}

// NewBuilder creates a builder with the given parameters
func NewBuilder(params Params) *Builder {
	if params.FileName == "" {
		params.FileName = "sorted.cdb"
	}
	if params.PathName == "" {
		params.PathName = "."
	}
	return &Builder{params: params}
}

// Build replaces the database of one position folder.
// Duplicate registrations are skipped and listed in the report.
func (b *Builder) Build(posDir string) (Report, error) {
	report := Report{Position: posDir, Registered: make(map[string]int)}

	info, err := os.Stat(posDir)
	if err != nil {
		return report, fmt.Errorf("position folder %s: %w", posDir, err)
	}
	if !info.IsDir() {
		return report, fmt.Errorf("position folder %s is not a directory", posDir)
	}

	dbPath := filepath.Join(posDir, b.params.FileName)
	if err := os.Remove(dbPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return report, fmt.Errorf("failed to remove old database: %w", err)
	}

	db, err := imagedb.Open(dbPath)
	if err != nil {
		return report, err
	}
	defer db.Close()

	files, err := b.channelFiles(posDir)
	if err != nil {
		return report, err
	}

	pathID, err := db.SetPath(b.params.PathName)
	if err != nil {
		return report, err
	}

	for _, channel := range b.params.Channels {
		layer, err := db.SetLayer(channel)
		if err != nil {
			return report, err
		}

		for i, name := range files[channel] {
			if _, err := db.AddImage(name, pathID, layer, i); err != nil {
				if errors.Is(err, imagedb.ErrDuplicateImage) {
					report.Duplicates = append(report.Duplicates, name)
					continue
				}
				return report, err
			}
			report.Registered[channel]++
		}

		if len(files[channel]) == 0 {
			log.Printf("[build] %s: no images for channel %s", posDir, channel)
		}
	}

	for _, mt := range b.params.MarkerTypes {
		if _, err := db.SetMarkerType(mt.Name, mt.Color, imagedb.ModeTrack); err != nil {
			return report, err
		}
	}

	if b.params.Verbose {
		log.Printf("[build] %s: registered %v, %d duplicates skipped", posDir, report.Registered, len(report.Duplicates))
	}

	return report, nil
}

// channelFiles groups the files of a folder by channel, each list in stack order
func (b *Builder) channelFiles(posDir string) (map[string][]string, error) {
	entries, err := os.ReadDir(posDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", posDir, err)
	}

	files := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == b.params.FileName {
			continue
		}
		for _, channel := range b.params.Channels {
			if strings.Contains(entry.Name(), channel) {
				files[channel] = append(files[channel], entry.Name())
				break
			}
		}
	}

	for _, names := range files {
		SortStack(names)
	}
	return files, nil
}

// SortStack orders file names by their z token, then by name.
// Names without a parsable z token sort after those with one.
func SortStack(names []string) {
	z := make(map[string]int, len(names))
	for _, name := range names {
		z[name] = -1
		if f, err := filesort.ParseFilename(name); err == nil {
			z[name] = f.Z
		}
	}

	sort.SliceStable(names, func(i, j int) bool {
		zi, zj := z[names[i]], z[names[j]]
		if (zi < 0) != (zj < 0) {
			return zi >= 0
		}
		if zi != zj {
			return zi < zj
		}
		return names[i] < names[j]
	})
}

// FindPositions returns the folders below root whose name contains "pos"
func FindPositions(root string) ([]string, error) {
	var positions []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && strings.Contains(d.Name(), "pos") {
			positions = append(positions, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %s for position folders: %w", root, err)
	}
	return positions, nil
}

// BuildAll builds the database of every position folder below root.
// A failing position does not stop the others; all failures are returned together.
func (b *Builder) BuildAll(root string) ([]Report, error) {
	positions, err := FindPositions(root)
	if err != nil {
		return nil, err
	}
	log.Printf("[build] %d position folders found", len(positions))

	var reports []Report
	var errs []error
	for _, pos := range positions {
		report, err := b.Build(pos)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pos, err))
			continue
		}
		reports = append(reports, report)
	}

	return reports, errors.Join(errs...)
}
