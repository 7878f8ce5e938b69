package tracker

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/ssrl-px/interceptor/constants"
	"github.com/ssrl-px/interceptor/models/data"
)

// Tracker aggregates per-run statistics from the result stream: how
// many frames were hits (spot count at or above the Bragg cutoff),
// how many indexed, the median resolution, and the best lattice seen
// so far. The monitor renders snapshots of it; the collector saves
// them to Redis at end of run.
type Tracker struct {
	mu       sync.RWMutex
	minBragg int
	runs     map[int]*runData
}

type frameRec struct {
	nSpots  int
	hres    float64
	indexed bool
}

type runData struct {
	frames   map[int]frameRec
	lattices map[string]int
	cells    map[string]string
}

// Stats is one run's aggregate snapshot.
type Stats struct {
	Run          int     `json:"run"`
	Frames       int     `json:"frames"`
	Hits         int     `json:"hits"`
	Indexed      int     `json:"indexed"`
	MedianRes    float64 `json:"median_res"`
	BestLattice  string  `json:"best_lattice"`
	BestUnitCell string  `json:"best_uc"`
}

func NewTracker(minBragg int) *Tracker {
	if minBragg <= 0 {
		minBragg = 10
	}
	return &Tracker{
		minBragg: minBragg,
		runs:     make(map[int]*runData),
	}
}

// Add records one frame observation. Re-delivered frames overwrite
// in place, so requeued results do not inflate the counts.
func (t *Tracker) Add(run, frame, nSpots int, hres float64, sg, uc string, indexed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rd, ok := t.runs[run]
	if !ok {
		rd = &runData{
			frames:   make(map[int]frameRec),
			lattices: make(map[string]int),
			cells:    make(map[string]string),
		}
		t.runs[run] = rd
	}
	rd.frames[frame] = frameRec{nSpots: nSpots, hres: hres, indexed: indexed}
	if indexed && sg != "" && sg != constants.NoSpaceGroup {
		rd.lattices[sg]++
		rd.cells[sg] = uc
	}
}

// AddResult records a reader result.
func (t *Tracker) AddResult(r *data.Result) {
	t.Add(r.Series, r.FrameIdx, r.NSpots, r.HRes, r.SpaceGroup, r.UnitCell, r.NIndexed > 0)
}

// AddRecord records a parsed UI message, the monitor's input.
func (t *Tracker) AddRecord(rec *data.UIRecord) {
	sg := constants.NoSpaceGroup
	if rec.Indexed {
		sg = "indexed"
	}
	t.Add(rec.Run, rec.Frame, rec.NSpots, rec.HRes, sg, "", rec.Indexed)
}

// Runs returns the run numbers seen so far, ascending.
func (t *Tracker) Runs() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	runs := make([]int, 0, len(t.runs))
	for run := range t.runs {
		runs = append(runs, run)
	}
	sort.Ints(runs)
	return runs
}

// Snapshot returns the aggregate stats for one run.
func (t *Tracker) Snapshot(run int) Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	stats := Stats{
		Run:          run,
		BestLattice:  constants.NoSpaceGroup,
		BestUnitCell: constants.NoUnitCell,
	}
	rd, ok := t.runs[run]
	if !ok {
		return stats
	}
	stats.Frames = len(rd.frames)

	resolutions := make([]float64, 0, len(rd.frames))
	for _, fr := range rd.frames {
		if fr.nSpots >= t.minBragg {
			stats.Hits++
		}
		if fr.indexed {
			stats.Indexed++
		}
		if fr.hres > 0 && fr.hres < constants.ResolutionCap {
			resolutions = append(resolutions, fr.hres)
		}
	}
	stats.MedianRes = median(resolutions)

	best := 0
	for sg, count := range rd.lattices {
		if count > best {
			best = count
			stats.BestLattice = sg
			stats.BestUnitCell = rd.cells[sg]
		}
	}
	return stats
}

// ToJSON serializes a snapshot for the Redis stats key.
func (s Stats) ToJSON() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func StatsFromJSON(jsonData string) (Stats, error) {
	var s Stats
	err := json.Unmarshal([]byte(jsonData), &s)
	return s, err
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
