package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invasiondepth/pkg/config"
	"invasiondepth/pkg/filter"
)

func TestRunnerParamsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Detection.ThresholdMethod = "mean_std"
	cfg.Detection.MeanStdK = 3

	params, err := runnerParams(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sorted.cdb", params.DBFileName)
	assert.Equal(t, "modeFluo5", params.Layer)
	assert.Equal(t, filter.MeanStd, params.Estimator.Threshold.Method)
	assert.Equal(t, 3.0, params.Estimator.Threshold.K)
	assert.Equal(t, 4, params.Estimator.ClosingIterations)

	cfg.Detection.ThresholdMethod = "triangle"
	_, err = runnerParams(cfg)
	assert.Error(t, err)
}

func TestConditionFlags(t *testing.T) {
	var c conditionFlags
	require.NoError(t, c.Set("CNTRL=data/CNTRL/*/xyz_positions.txt"))
	assert.Error(t, c.Set("no-glob"))
	assert.Equal(t, "CNTRL", c.String())
	assert.Equal(t, "data/CNTRL/*/xyz_positions.txt", c[0].Glob)
}

func TestInitConfigWritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invasiondepth.yaml")
	require.NoError(t, runInitConfig(nil, []string{path}))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Detection, cfg.Detection)
}
