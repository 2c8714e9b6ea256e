package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvonguyen/finops-pipeline/internal/anomaly"
	"github.com/lvonguyen/finops-pipeline/internal/config"
)

func TestWindow(t *testing.T) {
	now := time.Date(2024, 3, 15, 17, 42, 0, 0, time.FixedZone("CET", 3600))

	start, end := window(now, 30)

	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), start)
}

func TestDetectorFrom(t *testing.T) {
	d := detectorFrom(config.PipelineConfig{AnomalySensitivity: "low", AnomalyEstimator: "population"})

	days := []anomaly.DailyCost{}
	for i, c := range []float64{10, 10, 10, 10, 100} {
		days = append(days, anomaly.DailyCost{Date: time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC), TotalCost: c})
	}

	_, baseline, err := d.Detect(days)
	require.NoError(t, err)
	assert.InDelta(t, 28+3*36, baseline.Threshold, 1e-9)
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "extract", "transform", "upload", "schedule"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}
