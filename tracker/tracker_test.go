package tracker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssrl-px/interceptor/constants"
	"github.com/ssrl-px/interceptor/models/data"
	"github.com/ssrl-px/interceptor/tracker"
)

func TestTrackerSnapshot(t *testing.T) {
	trk := tracker.NewTracker(10)
	trk.Add(44, 0, 25, 2.1, "NA", "NA", false)
	trk.Add(44, 1, 3, 0, "NA", "NA", false)
	trk.Add(44, 2, 80, 1.7, "P43212", "79 79 38 90 90 90", true)
	trk.Add(44, 3, 40, 1.9, "P43212", "79 79 38 90 90 90", true)
	trk.Add(44, 4, 12, 3.4, "P1", "10 10 10 90 90 90", true)

	stats := trk.Snapshot(44)
	assert.Equal(t, 44, stats.Run)
	assert.Equal(t, 5, stats.Frames)
	assert.Equal(t, 4, stats.Hits)
	assert.Equal(t, 3, stats.Indexed)
	assert.InDelta(t, 2.0, stats.MedianRes, 0.001)
	assert.Equal(t, "P43212", stats.BestLattice)
	assert.Equal(t, "79 79 38 90 90 90", stats.BestUnitCell)
}

func TestTrackerDedupesRedeliveredFrames(t *testing.T) {
	trk := tracker.NewTracker(10)
	trk.Add(1, 0, 5, 0, "NA", "NA", false)
	trk.Add(1, 0, 50, 1.8, "NA", "NA", false)

	stats := trk.Snapshot(1)
	assert.Equal(t, 1, stats.Frames)
	assert.Equal(t, 1, stats.Hits)
}

func TestTrackerEmptyRun(t *testing.T) {
	trk := tracker.NewTracker(10)
	stats := trk.Snapshot(99)
	assert.Equal(t, 0, stats.Frames)
	assert.Equal(t, 0.0, stats.MedianRes)
	assert.Equal(t, constants.NoSpaceGroup, stats.BestLattice)
}

func TestTrackerIgnoresCappedResolution(t *testing.T) {
	trk := tracker.NewTracker(10)
	trk.Add(1, 0, 50, constants.ResolutionCap, "NA", "NA", false)
	trk.Add(1, 1, 50, 2.0, "NA", "NA", false)

	stats := trk.Snapshot(1)
	assert.InDelta(t, 2.0, stats.MedianRes, 0.001)
}

func TestTrackerRunsSorted(t *testing.T) {
	trk := tracker.NewTracker(10)
	trk.Add(9, 0, 1, 0, "NA", "NA", false)
	trk.Add(2, 0, 1, 0, "NA", "NA", false)
	trk.Add(5, 0, 1, 0, "NA", "NA", false)
	assert.Equal(t, []int{2, 5, 9}, trk.Runs())
}

func TestTrackerAddResult(t *testing.T) {
	trk := tracker.NewTracker(10)
	r := data.NewResult("ZMQ_000", "tcp://test")
	r.Series = 3
	r.FrameIdx = 7
	r.NSpots = 30
	r.HRes = 1.6
	r.NIndexed = 25
	r.SpaceGroup = "C2"
	r.UnitCell = "50 60 70 90 100 90"
	trk.AddResult(r)

	stats := trk.Snapshot(3)
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, "C2", stats.BestLattice)
}

func TestStatsJSONRoundTrip(t *testing.T) {
	stats := tracker.Stats{
		Run: 44, Frames: 100, Hits: 62, Indexed: 40,
		MedianRes: 1.92, BestLattice: "P43212", BestUnitCell: "79 79 38 90 90 90",
	}
	jsonData, err := stats.ToJSON()
	require.Nil(t, err)
	restored, err := tracker.StatsFromJSON(jsonData)
	require.Nil(t, err)
	assert.Equal(t, stats, restored)
}
