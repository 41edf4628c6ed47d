// Package config provides configuration loading and management for invasiondepth.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// MarkerType describes a marker type registered in every position database
type MarkerType struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// Condition groups the result files of one experimental condition
type Condition struct {
	// Name identifies the condition, e.g. "CNTRL"
	Name string `yaml:"name"`

	// Label is the legend text; Name is used when empty
	Label string `yaml:"label"`

	// Files lists xyz_positions.txt files explicitly
	Files []string `yaml:"files"`

	// Glob adds every file matching the pattern
	Glob string `yaml:"glob"`
}

// Processing holds parameters shared by every stage
type Processing struct {
	// NumCores specifies how many positions are processed concurrently
	NumCores int `yaml:"numCores"`

	// Verbose controls the level of logging output
	Verbose bool `yaml:"verbose"`

	// SaveIntermediaryResults writes projection and mask images per position
	SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

	// IntermediaryDir is created inside each position folder
	IntermediaryDir string `yaml:"intermediaryDir"`
}

// Sorter holds the file sorting parameters
type Sorter struct {
	// RootDir is the folder holding the unsorted images
	RootDir string `yaml:"rootDir"`

	// AnchorPattern selects the one file per position that defines its folder
	AnchorPattern string `yaml:"anchorPattern"`

	// Extension of the image files that are moved
	Extension string `yaml:"extension"`
}

// Database holds the image database parameters
type Database struct {
	// RootDir is searched for position folders by the builder
	RootDir string `yaml:"rootDir"`

	// FileName of the database inside each position folder
	FileName string `yaml:"fileName"`

	// Channels become database layers, matched as substrings of file names
	Channels []string `yaml:"channels"`

	// PathName is the image path stored in the database, relative to the database
	PathName string `yaml:"pathName"`

	// MarkerTypes are created in every new database
	MarkerTypes []MarkerType `yaml:"markerTypes"`
}

// Detection holds the depth estimation parameters
type Detection struct {
	RootDir         string `yaml:"rootDir"`
	PositionPattern string `yaml:"positionPattern"`
	Layer           string `yaml:"layer"`

	// Band-pass radii, GaussLow < GaussHigh
	GaussLow  float64 `yaml:"gaussLow"`
	GaussHigh float64 `yaml:"gaussHigh"`

	// ThresholdMethod is one of "otsu", "mean_std" or "absolute"
	ThresholdMethod   string  `yaml:"thresholdMethod"`
	ThresholdFactor   float64 `yaml:"thresholdFactor"`
	MeanStdK          float64 `yaml:"meanStdK"`
	AbsoluteThreshold float64 `yaml:"absoluteThreshold"`

	ClosingIterations int     `yaml:"closingIterations"`
	AreaFactor        float64 `yaml:"areaFactor"`

	ExcludeCloseToEdge bool    `yaml:"excludeCloseToEdge"`
	EdgeMargin         float64 `yaml:"edgeMargin"`

	// VariationThreshold in stack index units
	VariationThreshold float64 `yaml:"variationThreshold"`

	ResultFile    string `yaml:"resultFile"`
	WriteMarkers  bool   `yaml:"writeMarkers"`
	MarkerType    string `yaml:"markerType"`
	MarkerColor   string `yaml:"markerColor"`
	TrackTrailing int    `yaml:"trackTrailing"`
	TrackLeading  int    `yaml:"trackLeading"`
}

// Aggregate holds the depth distribution parameters
type Aggregate struct {
	// SurfaceIndex is the stack index of the gel surface. Depths above it are
	// clipped to it and it maps to zero physical depth.
	SurfaceIndex float64 `yaml:"surfaceIndex"`

	// SliceThickness converts one stack index to micrometers
	SliceThickness float64 `yaml:"sliceThickness"`

	// Interpolation is the percentile convention: lower, higher, nearest, midpoint or linear
	Interpolation string `yaml:"interpolation"`

	// Resolution is the number of probability levels; 0 uses the pooled sample count
	Resolution int `yaml:"resolution"`

	Conditions []Condition `yaml:"conditions"`
}

// Plot holds the figure parameters
type Plot struct {
	Title           string  `yaml:"title"`
	Output          string  `yaml:"output"`
	PositionsOutput string  `yaml:"positionsOutput"`
	QQOutput        string  `yaml:"qqOutput"`
	DPI             int     `yaml:"dpi"`
	Width           float64 `yaml:"width"`
	Height          float64 `yaml:"height"`
	XMin            float64 `yaml:"xMin"`
	XMax            float64 `yaml:"xMax"`
	YMin            float64 `yaml:"yMin"`
	YMax            float64 `yaml:"yMax"`
	XLabel          string  `yaml:"xLabel"`
	YLabel          string  `yaml:"yLabel"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	Processing Processing `yaml:"processing"`
	Sorter     Sorter     `yaml:"sorter"`
	Database   Database   `yaml:"database"`
	Detection  Detection  `yaml:"detection"`
	Aggregate  Aggregate  `yaml:"aggregate"`
	Plot       Plot       `yaml:"plot"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Verbose = true
	cfg.Processing.SaveIntermediaryResults = false
	cfg.Processing.IntermediaryDir = "intermediary_results"

	cfg.Sorter.AnchorPattern = "*rep0_pos*_x0_y0_modeBF*_z*0.tif"
	cfg.Sorter.Extension = ".tif"

	cfg.Database.FileName = "sorted.cdb"
	cfg.Database.Channels = []string{"modeBF", "modeFluo5"}
	cfg.Database.PathName = "."
	cfg.Database.MarkerTypes = []MarkerType{
		{Name: "cell_in_focus", Color: "#ff0000"},
		{Name: "not_a_cell", Color: "#e2ff00"},
	}

	cfg.Detection.PositionPattern = `^pos\d{2,}$`
	cfg.Detection.Layer = "modeFluo5"
	cfg.Detection.GaussLow = 1
	cfg.Detection.GaussHigh = 2
	cfg.Detection.ThresholdMethod = "otsu"
	cfg.Detection.ThresholdFactor = 1
	cfg.Detection.MeanStdK = 5
	cfg.Detection.AbsoluteThreshold = 1
	cfg.Detection.ClosingIterations = 4
	cfg.Detection.AreaFactor = 1
	cfg.Detection.ExcludeCloseToEdge = false
	cfg.Detection.EdgeMargin = 75
	cfg.Detection.VariationThreshold = 2
	cfg.Detection.ResultFile = "xyz_positions.txt"
	cfg.Detection.WriteMarkers = true
	cfg.Detection.MarkerType = "cell_in_focus"
	cfg.Detection.MarkerColor = "#1fff00"
	cfg.Detection.TrackTrailing = 300
	cfg.Detection.TrackLeading = 300

	cfg.Aggregate.SurfaceIndex = 100
	cfg.Aggregate.SliceThickness = 5 * 1.33
	cfg.Aggregate.Interpolation = "midpoint"
	cfg.Aggregate.Resolution = 0

	cfg.Plot.Title = "U87"
	cfg.Plot.Output = "invasion-depth.png"
	cfg.Plot.PositionsOutput = "invasion-depth-positions.png"
	cfg.Plot.QQOutput = "qq.png"
	cfg.Plot.DPI = 200
	cfg.Plot.Width = 6.4
	cfg.Plot.Height = 4.8
	cfg.Plot.XMin = 1e-4
	cfg.Plot.XMax = 1
	cfg.Plot.YMin = -50
	cfg.Plot.YMax = 201 * 2 * 1.33
	cfg.Plot.XLabel = "Probability of (Invasion depth ≥ D)"
	cfg.Plot.YLabel = "Invasion depth D [µm]"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// Validate checks parameter combinations that would make a stage misbehave
func (c *Config) Validate() error {
	var errs []error

	if c.Processing.NumCores < 1 {
		errs = append(errs, fmt.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores))
	}
	if c.Detection.GaussLow <= 0 || c.Detection.GaussLow >= c.Detection.GaussHigh {
		errs = append(errs, fmt.Errorf("detection.gaussLow must be positive and below gaussHigh (%g, %g)",
			c.Detection.GaussLow, c.Detection.GaussHigh))
	}
	switch c.Detection.ThresholdMethod {
	case "otsu", "mean_std", "absolute":
	default:
		errs = append(errs, fmt.Errorf("detection.thresholdMethod %q is not one of otsu, mean_std, absolute",
			c.Detection.ThresholdMethod))
	}
	if c.Detection.ClosingIterations < 0 {
		errs = append(errs, fmt.Errorf("detection.closingIterations must not be negative"))
	}
	if c.Detection.Layer == "" {
		errs = append(errs, errors.New("detection.layer must be set"))
	}
	switch c.Aggregate.Interpolation {
	case "lower", "higher", "nearest", "midpoint", "linear":
	default:
		errs = append(errs, fmt.Errorf("aggregate.interpolation %q is not one of lower, higher, nearest, midpoint, linear",
			c.Aggregate.Interpolation))
	}
	if c.Aggregate.SliceThickness <= 0 {
		errs = append(errs, fmt.Errorf("aggregate.sliceThickness must be positive"))
	}
	if c.Aggregate.Resolution < 0 {
		errs = append(errs, fmt.Errorf("aggregate.resolution must not be negative"))
	}
	if len(c.Database.Channels) == 0 {
		errs = append(errs, errors.New("database.channels must list at least one channel"))
	}

	return errors.Join(errs...)
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
