package tracker_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ssrl-px/interceptor/models/common"
	"github.com/ssrl-px/interceptor/tracker"
)

func testMonitor(out *bytes.Buffer) *tracker.Monitor {
	config := &common.Config{
		Processing: common.ProcessingConfig{MinBragg: 10},
	}
	ctx := common.NewContextFromConfig(config)
	return tracker.NewMonitor(ctx, "9998", time.Second, out)
}

func TestMonitorIngest(t *testing.T) {
	var out bytes.Buffer
	monitor := testMonitor(&out)

	monitor.Ingest("htos_note image_score run 44 frame 0 result {25 0 25 2.10 0 1.00 NA NA {}} mapping {c44} filename m.h5")
	monitor.Ingest("htos_note image_score run 44 frame 1 result {3 0 3 99.00 0 0.00 NA NA {}} mapping {c44} filename m.h5")
	monitor.Ingest("htos_note image_score run 45 frame 0 result {80 1 78 1.70 1 1.20 NA NA {}} mapping {c45} filename m2.h5")

	stats := monitor.Tracker().Snapshot(44)
	assert.Equal(t, 2, stats.Frames)
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, []int{44, 45}, monitor.Tracker().Runs())
}

func TestMonitorIngestSkipsNotes(t *testing.T) {
	var out bytes.Buffer
	monitor := testMonitor(&out)

	monitor.Ingest("operator note: beam refill at 14:00")
	assert.Empty(t, monitor.Tracker().Runs())
}

func TestMonitorIngestSkipsSentinelRuns(t *testing.T) {
	var out bytes.Buffer
	monitor := testMonitor(&out)

	// Header-frame results carry run -999 and must not show up as a
	// run of their own.
	monitor.Ingest("htos_note image_score run -999 frame -999 result {0 0 0 99.00 0 0.00 NA NA {}} mapping {} filename ")
	assert.Empty(t, monitor.Tracker().Runs())
}

func TestMonitorRender(t *testing.T) {
	var out bytes.Buffer
	monitor := testMonitor(&out)

	monitor.Ingest("htos_note image_score run 44 frame 0 result {25 0 25 2.10 0 1.00 NA NA {}} mapping {c44} filename m.h5")
	monitor.Render()

	table := out.String()
	assert.Contains(t, table, "RUN")
	assert.Contains(t, table, "44")
	assert.Contains(t, table, "2.10")
}