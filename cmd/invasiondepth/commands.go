package main

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"invasiondepth/pkg/aggregate"
	"invasiondepth/pkg/builder"
	"invasiondepth/pkg/config"
	"invasiondepth/pkg/depth"
	"invasiondepth/pkg/filesort"
	"invasiondepth/pkg/filter"
	"invasiondepth/pkg/plotting"
	"invasiondepth/pkg/results"
)

// conditionFlags collects "label=glob" condition arguments
type conditionFlags []config.Condition

func (c *conditionFlags) String() string {
	names := make([]string, len(*c))
	for i, cond := range *c {
		names[i] = cond.Name
	}
	return strings.Join(names, ",")
}

func (c *conditionFlags) Set(v string) error {
	name, glob, ok := strings.Cut(v, "=")
	if !ok || name == "" || glob == "" {
		return fmt.Errorf("condition %q is not label=glob", v)
	}
	*c = append(*c, config.Condition{Name: name, Glob: glob})
	return nil
}

func runSort(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sort", flag.ExitOnError)
	root := fs.String("root", cfg.Sorter.RootDir, "Folder holding the unsorted images")
	fs.Parse(args)
	if *root == "" {
		return errors.New("no root folder given (-root or sorter.rootDir)")
	}

	sorter := filesort.NewSorter(filesort.Params{
		AnchorPattern: cfg.Sorter.AnchorPattern,
		Extension:     cfg.Sorter.Extension,
		Verbose:       cfg.Processing.Verbose,
	})

	fmt.Println("Sorting images into position folders...")
	report, err := sorter.Run(*root)
	fmt.Printf("Positions: %d, moved: %d, skipped: %d\n", len(report.Positions), len(report.Moved), len(report.Skipped))
	for _, s := range report.Skipped {
		fmt.Printf("- skipped %s: %s\n", s.File, s.Reason)
	}
	return err
}

func runBuild(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	root := fs.String("root", cfg.Database.RootDir, "Folder searched for position folders")
	fs.Parse(args)
	if *root == "" {
		return errors.New("no root folder given (-root or database.rootDir)")
	}

	b := builder.NewBuilder(builderParams(cfg))

	fmt.Println("Building position databases...")
	reports, err := b.BuildAll(*root)
	for _, r := range reports {
		fmt.Printf("- %s: %v", r.Position, r.Registered)
		if len(r.Duplicates) > 0 {
			fmt.Printf(", %d duplicates skipped", len(r.Duplicates))
		}
		fmt.Println()
	}
	return err
}

func runDetect(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	root := fs.String("root", cfg.Detection.RootDir, "Folder searched for position folders")
	cores := fs.Int("cores", cfg.Processing.NumCores, "Number of positions processed concurrently")
	saveIntermediary := fs.Bool("save-intermediary", cfg.Processing.SaveIntermediaryResults, "Save projection and mask images per position")
	fs.Parse(args)
	if *root == "" {
		return errors.New("no root folder given (-root or detection.rootDir)")
	}
	cfg.Processing.NumCores = *cores
	cfg.Processing.SaveIntermediaryResults = *saveIntermediary

	params, err := runnerParams(cfg)
	if err != nil {
		return err
	}
	runner, err := depth.NewRunner(params)
	if err != nil {
		return err
	}

	fmt.Printf("Estimating cell depths with %d workers...\n", params.NumCores)
	all, err := runner.RunAll(*root)

	var cells, flagged int
	for _, r := range all {
		cells += len(r.Detections)
		flagged += r.Flagged
	}
	fmt.Printf("Positions: %d, cells: %d, flagged for review: %d\n", len(all), cells, flagged)
	if *saveIntermediary {
		fmt.Printf("Intermediary images saved to <position>/%s\n", cfg.Processing.IntermediaryDir)
	}
	return err
}

func runAggregate(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("aggregate", flag.ExitOnError)
	output := fs.String("o", cfg.Plot.Output, "Output PNG file")
	var extra conditionFlags
	fs.Var(&extra, "condition", "Additional condition as label=glob (repeatable)")
	fs.Parse(args)

	agg, conditions, err := loadConditions(cfg, extra)
	if err != nil {
		return err
	}

	var curves []aggregate.Curve
	for _, c := range conditions {
		if len(c.Positions) == 0 {
			fmt.Printf("- %s: no cells, not plotted\n", c.Label)
			continue
		}
		curve, err := agg.Survival(c)
		if err != nil {
			return err
		}
		fmt.Printf("- %s: %d positions, %d cells\n", c.Label, len(c.Positions), curve.Samples)
		curves = append(curves, curve)
	}

	if err := plotting.SurvivalPlot(curves, plotOptions(cfg), *output); err != nil {
		return err
	}
	fmt.Printf("Figure saved to: %s\n", *output)
	return nil
}

func runPositions(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("positions", flag.ExitOnError)
	output := fs.String("o", cfg.Plot.PositionsOutput, "Output PNG file")
	var extra conditionFlags
	fs.Var(&extra, "condition", "Additional condition as label=glob (repeatable)")
	fs.Parse(args)

	agg, conditions, err := loadConditions(cfg, extra)
	if err != nil {
		return err
	}

	var curves []aggregate.Curve
	for _, c := range conditions {
		cc, err := agg.PositionCurves(c)
		if err != nil {
			return err
		}
		curves = append(curves, cc...)
	}

	if err := plotting.PositionsPlot(curves, plotOptions(cfg), *output); err != nil {
		return err
	}
	fmt.Printf("Figure with %d positions saved to: %s\n", len(curves), *output)
	return nil
}

func runQQ(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("qq", flag.ExitOnError)
	manual := fs.String("manual", "", "Manually recorded height list (comma separated)")
	detected := fs.String("detected", "", "Result file of the same position")
	output := fs.String("o", cfg.Plot.QQOutput, "Output PNG file")
	fs.Parse(args)
	if *manual == "" || *detected == "" {
		return errors.New("qq needs -manual and -detected")
	}

	interp, err := aggregate.ParseInterpolation(cfg.Aggregate.Interpolation)
	if err != nil {
		return err
	}
	x, err := results.ReadHeightList(*manual)
	if err != nil {
		return err
	}
	y, err := results.ReadDepths(*detected)
	if err != nil {
		return err
	}

	points, err := aggregate.QQ(x, y, interp)
	if err != nil {
		return err
	}

	opts := plotOptions(cfg)
	opts.Title = filepath.Base(filepath.Dir(*detected))
	opts.XLabel = "Manual height [slice]"
	opts.YLabel = "Detected height [slice]"
	if err := plotting.QQPlot(points, opts, *output); err != nil {
		return err
	}
	fmt.Printf("QQ plot of %d manual and %d detected heights saved to: %s\n", len(x), len(y), *output)
	return nil
}

func runInitConfig(_ *config.Config, args []string) error {
	path := args[0]
	if len(args) > 1 {
		path = args[1]
	}
	if err := config.CreateDefaultConfigFile(path); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to: %s\n", path)
	return nil
}

func builderParams(cfg *config.Config) builder.Params {
	types := make([]builder.MarkerType, len(cfg.Database.MarkerTypes))
	for i, mt := range cfg.Database.MarkerTypes {
		types[i] = builder.MarkerType{Name: mt.Name, Color: mt.Color}
	}
	return builder.Params{
		FileName:    cfg.Database.FileName,
		Channels:    cfg.Database.Channels,
		PathName:    cfg.Database.PathName,
		MarkerTypes: types,
		Verbose:     cfg.Processing.Verbose,
	}
}

func runnerParams(cfg *config.Config) (depth.RunnerParams, error) {
	d := cfg.Detection
	method, err := filter.ParseMethod(d.ThresholdMethod)
	if err != nil {
		return depth.RunnerParams{}, err
	}

	return depth.RunnerParams{
		DBFileName:      cfg.Database.FileName,
		Layer:           d.Layer,
		PositionPattern: d.PositionPattern,
		ResultFile:      d.ResultFile,
		WriteMarkers:    d.WriteMarkers,
		MarkerType:      d.MarkerType,
		MarkerColor:     d.MarkerColor,
		TrackTrailing:   d.TrackTrailing,
		TrackLeading:    d.TrackLeading,
		NumCores:        cfg.Processing.NumCores,
		IntermediaryDir: cfg.Processing.IntermediaryDir,
		Estimator: depth.Params{
			GaussLow:  d.GaussLow,
			GaussHigh: d.GaussHigh,
			Threshold: filter.ThresholdParams{
				Method: method,
				Factor: d.ThresholdFactor,
				K:      d.MeanStdK,
				Value:  d.AbsoluteThreshold,
			},
			ClosingIterations:       d.ClosingIterations,
			AreaFactor:              d.AreaFactor,
			ExcludeCloseToEdge:      d.ExcludeCloseToEdge,
			EdgeMargin:              d.EdgeMargin,
			VariationThreshold:      d.VariationThreshold,
			Verbose:                 cfg.Processing.Verbose,
			SaveIntermediaryResults: cfg.Processing.SaveIntermediaryResults,
		},
	}, nil
}

func loadConditions(cfg *config.Config, extra []config.Condition) (*aggregate.Aggregator, []aggregate.Condition, error) {
	interp, err := aggregate.ParseInterpolation(cfg.Aggregate.Interpolation)
	if err != nil {
		return nil, nil, err
	}
	agg := aggregate.NewAggregator(aggregate.Params{
		SurfaceIndex:   cfg.Aggregate.SurfaceIndex,
		SliceThickness: cfg.Aggregate.SliceThickness,
		Interpolation:  interp,
		Resolution:     cfg.Aggregate.Resolution,
		Verbose:        cfg.Processing.Verbose,
	})

	conds := append(append([]config.Condition(nil), cfg.Aggregate.Conditions...), extra...)
	if len(conds) == 0 {
		return nil, nil, errors.New("no conditions configured (aggregate.conditions or -condition)")
	}

	conditions := make([]aggregate.Condition, 0, len(conds))
	for _, cc := range conds {
		c, err := agg.Load(cc)
		if err != nil {
			return nil, nil, err
		}
		conditions = append(conditions, c)
	}
	return agg, conditions, nil
}

func plotOptions(cfg *config.Config) plotting.Options {
	p := cfg.Plot
	return plotting.Options{
		Title:  p.Title,
		XLabel: p.XLabel,
		YLabel: p.YLabel,
		XMin:   p.XMin,
		XMax:   p.XMax,
		YMin:   p.YMin,
		YMax:   p.YMax,
		Width:  p.Width,
		Height: p.Height,
		DPI:    p.DPI,
	}
}
