package depth

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"invasiondepth/internal/models"
	"invasiondepth/pkg/imagedb"
	"invasiondepth/pkg/results"
	"invasiondepth/pkg/stack"
)

// ErrNoDatabase is returned for a position folder without an image database
var ErrNoDatabase = errors.New("no image database")

// Display options written next to the markers
const (
	OptionTrailing = "tracking_show_trailing"
	OptionLeading  = "tracking_show_leading"
)

// RunnerParams configures batch estimation over position folders
type RunnerParams struct {
	// DBFileName is the image database inside each position folder
	DBFileName string

	// Layer holds the fluorescence stack
	Layer string

	// PositionPattern selects position folders by base name
	PositionPattern string

	// ResultFile is written inside each position folder
	ResultFile string

	// WriteMarkers stores one track marker per detection in the database,
	// replacing earlier markers of MarkerType
	WriteMarkers  bool
	MarkerType    string
	MarkerColor   string
	TrackTrailing int
	TrackLeading  int

	// NumCores positions are processed concurrently
	NumCores int

	// IntermediaryDir is joined to each position folder when intermediary
	// results are enabled
	IntermediaryDir string

	Estimator Params
}

// PositionResult is the outcome of one position
type PositionResult struct {
	Position   string
	Detections []models.Detection
	Flagged    int
}

// Runner estimates depths position by position
type Runner struct {
	params  RunnerParams
	pattern *regexp.Regexp
}

// NewRunner validates the position pattern and creates a runner
func NewRunner(params RunnerParams) (*Runner, error) {
	pattern, err := regexp.Compile(params.PositionPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid position pattern %q: %w", params.PositionPattern, err)
	}
	if params.NumCores < 1 {
		params.NumCores = 1
	}
	return &Runner{params: params, pattern: pattern}, nil
}

// RunPosition estimates the depths of one position folder and writes its
// result file and markers
func (r *Runner) RunPosition(dir string) (PositionResult, error) {
	res := PositionResult{Position: dir}

	dbPath := filepath.Join(dir, r.params.DBFileName)
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return res, fmt.Errorf("%w: %s", ErrNoDatabase, dbPath)
	} else if err != nil {
		return res, err
	}

	db, err := imagedb.Open(dbPath)
	if err != nil {
		return res, err
	}
	defer db.Close()

	if _, err := db.GetLayer(r.params.Layer); err != nil {
		return res, err
	}
	src, err := stack.NewDBSource(db, r.params.Layer)
	if err != nil {
		return res, err
	}

	params := r.params.Estimator
	if params.SaveIntermediaryResults {
		params.IntermediaryDir = filepath.Join(dir, r.params.IntermediaryDir)
	}
	dets, err := NewEstimator(params).Process(src)
	if err != nil {
		return res, err
	}
	res.Detections = dets
	for _, d := range dets {
		if d.Flagged() {
			res.Flagged++
		}
	}

	if err := results.Write(filepath.Join(dir, r.params.ResultFile), dets); err != nil {
		return res, err
	}

	if r.params.WriteMarkers {
		if err := r.writeMarkers(db, dets); err != nil {
			return res, err
		}
	}

	return res, nil
}

// writeMarkers replaces the markers of the configured type with one single
// marker track per detection, placed on the frame nearest its depth
func (r *Runner) writeMarkers(db *imagedb.DB, dets []models.Detection) error {
	mt, err := db.SetMarkerType(r.params.MarkerType, r.params.MarkerColor, imagedb.ModeTrack)
	if err != nil {
		return err
	}
	if err := db.DeleteMarkersOfType(mt); err != nil {
		return err
	}

	for _, d := range dets {
		track, err := db.NewTrack(mt)
		if err != nil {
			return err
		}
		err = db.SetMarker(imagedb.Marker{
			Frame:   int(math.RoundToEven(d.Z)),
			Layer:   r.params.Layer,
			X:       d.X,
			Y:       d.Y,
			Type:    mt.Name,
			TrackID: track.ID,
			Text:    d.Flag,
		})
		if err != nil {
			return err
		}
	}

	if err := db.SetOption(OptionTrailing, strconv.Itoa(r.params.TrackTrailing)); err != nil {
		return err
	}
	return db.SetOption(OptionLeading, strconv.Itoa(r.params.TrackLeading))
}

// FindPositions returns the folders below root whose base name matches the
// position pattern
func (r *Runner) FindPositions(root string) ([]string, error) {
	var positions []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && r.pattern.MatchString(d.Name()) {
			positions = append(positions, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %s for position folders: %w", root, err)
	}
	return positions, nil
}

// RunAll processes every position below root with NumCores workers. Each
// position is handled by exactly one worker. Failing positions are reported
// together after all others finished.
func (r *Runner) RunAll(root string) ([]PositionResult, error) {
	positions, err := r.FindPositions(root)
	if err != nil {
		return nil, err
	}
	log.Printf("[detect] %d position folders found", len(positions))

	type outcome struct {
		res PositionResult
		err error
	}
	outcomes := make([]outcome, len(positions))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.params.NumCores; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := r.RunPosition(positions[i])
				outcomes[i] = outcome{res: res, err: err}
				if err == nil {
					log.Printf("[detect] %s: %d cells, %d flagged", positions[i], len(res.Detections), res.Flagged)
				}
			}
		}()
	}
	for i := range positions {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var all []PositionResult
	var errs []error
	for i, o := range outcomes {
		if o.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", positions[i], o.err))
			continue
		}
		all = append(all, o.res)
	}

	return all, errors.Join(errs...)
}
