package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssrl-px/interceptor/constants"
	"github.com/ssrl-px/interceptor/models/common"
	"github.com/ssrl-px/interceptor/models/data"
	"github.com/ssrl-px/interceptor/util/cli"
)

func testReader(t *testing.T) *Reader {
	config := &common.Config{
		Processing: common.ProcessingConfig{
			HType:       constants.HTypeRunHeader,
			HeaderKeys:  data.DefaultHeaderKeys(),
			SignalSigma: 3.0,
			MinSpotArea: 2,
			MaxSpotArea: 100,
			MinBragg:    10,
		},
	}
	ctx := common.NewContextFromConfig(config)
	return NewReader(ctx, 0, cli.Options{Host: "localhost", Port: "8121"})
}

func TestReaderHandlesFullSeries(t *testing.T) {
	reader := testReader(t)
	sim := NewSimulator(nil, "8121", 9, 1)
	sim.Width = 256
	sim.Height = 256

	// Run header first: cached, and acknowledged with a sentinel
	// result.
	result := reader.handleFrames(sim.RunHeaderFrames())
	require.NotNil(t, result)
	assert.Equal(t, constants.StateHeaderFrame, result.State)
	assert.Equal(t, constants.HeaderSeries, result.Series)
	assert.Equal(t, constants.HeaderFrame, result.FrameIdx)
	require.NotNil(t, reader.runHeader)
	assert.InDelta(t, 250.0, reader.geom.DistanceMM, 0.001)

	// An image inherits identity from the cached header.
	frames, err := sim.ImageFrames(0)
	require.Nil(t, err)
	result = reader.handleFrames(frames)
	require.NotNil(t, result)
	assert.Equal(t, constants.StateProcess, result.State)
	assert.Equal(t, 9, result.Series)
	assert.Equal(t, 0, result.FrameIdx)
	assert.Equal(t, "run_9_master.h5", result.Filename)
	assert.Equal(t, "/data/sim/run_9_master.h5", result.FullPath)
	assert.Equal(t, "collect_9", result.Mapping)
	assert.True(t, result.NSpots > 0)
	assert.True(t, result.ProcTime > 0)

	// Series end is forwarded, not swallowed.
	result = reader.handleFrames(sim.SeriesEndFrames())
	require.NotNil(t, result)
	assert.Equal(t, constants.StateSeriesEnd, result.State)
	assert.Equal(t, 9, result.Series)
}

func TestReaderHandlesInlineHeader(t *testing.T) {
	reader := testReader(t)
	sim := NewSimulator(nil, "8121", 3, 1)
	sim.Width = 128
	sim.Height = 128

	// Streams can repeat the run header in front of every image.
	frames, err := sim.ImageFrames(5)
	require.Nil(t, err)
	combined := append(sim.RunHeaderFrames(), frames...)

	result := reader.handleFrames(combined)
	require.NotNil(t, result)
	assert.Equal(t, constants.StateProcess, result.State)
	assert.Equal(t, 3, result.Series)
	assert.Equal(t, 5, result.FrameIdx)
	assert.Equal(t, "run_3_master.h5", result.Filename)
}

func TestReaderHandlesGarbage(t *testing.T) {
	reader := testReader(t)
	result := reader.handleFrames([][]byte{[]byte("not json")})
	require.NotNil(t, result)
	assert.Equal(t, constants.StateError, result.State)
	assert.Contains(t, result.DataError, "DATA ERROR")
}

func TestReaderImageBeforeHeader(t *testing.T) {
	reader := testReader(t)
	sim := NewSimulator(nil, "8121", 2, 1)
	sim.Width = 128
	sim.Height = 128

	frames, err := sim.ImageFrames(0)
	require.Nil(t, err)
	result := reader.handleFrames(frames)
	require.NotNil(t, result)
	// Processed, but without identity fields to inherit.
	assert.Equal(t, constants.StateProcess, result.State)
	assert.Equal(t, "", result.Filename)
}
