package data

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ssrl-px/interceptor/constants"
)

// Result is the record one reader produces for one frame (or for a
// stream event such as a run header or end-of-series marker). It is
// what travels from reader to collector, gets stored in Redis, and
// feeds the result and UI strings.
type Result struct {
	State    string `json:"state"`
	ProcName string `json:"proc_name"`
	ProcURL  string `json:"proc_url"`

	Series   int    `json:"series"`
	FrameIdx int    `json:"frame_idx"`
	Filename string `json:"filename"`
	FullPath string `json:"full_path,omitempty"`
	Mapping  string `json:"mapping"`

	// Reporting is the UI message tag from the run header. Empty
	// means use the default.
	Reporting string `json:"reporting"`

	// DataError holds the data/header/conversion error text when
	// State is "error".
	DataError string `json:"dat_error,omitempty"`

	NSpots         int     `json:"n_spots"`
	NOverloads     int     `json:"n_overloads"`
	HRes           float64 `json:"hres"`
	Score          int     `json:"score"`
	NIceRings      int     `json:"n_ice_rings"`
	MeanShapeRatio float64 `json:"mean_shape_ratio"`
	NIndexed       int     `json:"n_indexed"`
	SpaceGroup     string  `json:"sg"`
	UnitCell       string  `json:"uc"`
	Comment        string  `json:"comment"`

	ReceiveTime float64 `json:"receive_time"`
	WaitTime    float64 `json:"wait_time"`
	ProcTime    float64 `json:"proc_time"`
	TotalTime   float64 `json:"total_time"`
}

// NewResult returns a Result in the import state with analysis
// fields at their sentinel values.
func NewResult(procName, procURL string) *Result {
	return &Result{
		State:      constants.StateImport,
		ProcName:   procName,
		ProcURL:    procURL,
		Series:     constants.NoSeries,
		FrameIdx:   constants.NoFrame,
		HRes:       constants.ResolutionCap,
		SpaceGroup: constants.NoSpaceGroup,
		UnitCell:   constants.NoUnitCell,
	}
}

func ResultFromJSON(data []byte) (*Result, error) {
	r := &Result{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Result) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// SetError marks the result as failed. The prefix mirrors the error
// classes the collector reports: DATA, HEADER, CONVERSION.
func (r *Result) SetError(prefix string, err error) {
	r.State = constants.StateError
	r.DataError = fmt.Sprintf("%s ERROR: %v", prefix, err)
}

// errorText joins the error and comment fields for the result string.
func (r *Result) errorText() string {
	parts := []string{}
	if r.DataError != "" {
		parts = append(parts, r.DataError)
	}
	if r.Comment != "" {
		parts = append(parts, r.Comment)
	}
	return strings.Join(parts, "; ")
}

// fieldValue formats one named result field. Unknown names format as
// a literal "?", which shows up in output rather than silently
// vanishing.
func (r *Result) fieldValue(name string) string {
	switch name {
	case "n_spots":
		return strconv.Itoa(r.NSpots)
	case "n_overloads":
		return strconv.Itoa(r.NOverloads)
	case "score":
		return strconv.Itoa(r.Score)
	case "hres":
		return fmt.Sprintf("%.2f", r.HRes)
	case "n_ice_rings":
		return strconv.Itoa(r.NIceRings)
	case "mean_shape_ratio":
		return fmt.Sprintf("%.2f", r.MeanShapeRatio)
	case "n_indexed":
		return strconv.Itoa(r.NIndexed)
	case "sg":
		return r.SpaceGroup
	case "uc":
		return r.UnitCell
	}
	return "?"
}

// ResultString renders the space-separated analysis fields in the
// order given, followed by the error text in braces. A nil or empty
// field list falls back to the default order.
func (r *Result) ResultString(fields []string) string {
	if len(fields) == 0 {
		fields = constants.ResultFields
	}
	vals := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		vals = append(vals, r.fieldValue(f))
	}
	vals = append(vals, "{"+r.errorText()+"}")
	return strings.Join(vals, " ")
}

// UIMessage renders the full message sent to the downstream UI or
// DHS: reporting tag, run and frame numbers, the result string in
// braces, the mapping in braces, and the master filename.
func (r *Result) UIMessage(fields []string, defaultReporting string) string {
	reporting := r.Reporting
	if reporting == "" {
		reporting = defaultReporting
	}
	if reporting == "" {
		reporting = constants.DefaultReporting
	}
	return fmt.Sprintf("%s run %d frame %d result {%s} mapping {%s} filename %s",
		reporting,
		r.Series,
		r.FrameIdx,
		r.ResultString(fields),
		r.Mapping,
		r.Filename,
	)
}

// UIRecord is the parsed form of a UI message, as consumed by the
// monitor.
type UIRecord struct {
	Reporting string
	Run       int
	Frame     int
	NSpots    int
	HRes      float64
	Indexed   bool
	Result    string
	Mapping   string
	Filename  string
}

// ParseUIMessage parses a message produced by UIMessage with the
// default field order. The monitor uses this to rebuild per-run
// statistics from the collector's stream.
func ParseUIMessage(msg string) (*UIRecord, error) {
	runIdx := strings.Index(msg, " run ")
	if runIdx < 0 {
		return nil, fmt.Errorf("no run number in UI message")
	}
	rec := &UIRecord{Reporting: msg[:runIdx]}

	rest := msg[runIdx+len(" run "):]
	frameIdx := strings.Index(rest, " frame ")
	if frameIdx < 0 {
		return nil, fmt.Errorf("no frame number in UI message")
	}
	run, err := strconv.Atoi(rest[:frameIdx])
	if err != nil {
		return nil, fmt.Errorf("bad run number: %v", err)
	}
	rec.Run = run

	rest = rest[frameIdx+len(" frame "):]
	resIdx := strings.Index(rest, " result {")
	if resIdx < 0 {
		return nil, fmt.Errorf("no result block in UI message")
	}
	frame, err := strconv.Atoi(rest[:resIdx])
	if err != nil {
		return nil, fmt.Errorf("bad frame number: %v", err)
	}
	rec.Frame = frame

	rest = rest[resIdx+len(" result {"):]
	end := strings.LastIndex(rest, "} mapping {")
	if end < 0 {
		return nil, fmt.Errorf("no mapping block in UI message")
	}
	rec.Result = rest[:end]

	rest = rest[end+len("} mapping {"):]
	end = strings.LastIndex(rest, "} filename ")
	if end < 0 {
		return nil, fmt.Errorf("no filename in UI message")
	}
	rec.Mapping = rest[:end]
	rec.Filename = rest[end+len("} filename "):]

	// First two result fields are n_spots and the resolution lives
	// in position four under the default order. Tolerate custom
	// orders by best effort.
	fields := strings.Fields(rec.Result)
	if len(fields) > 0 {
		rec.NSpots, _ = strconv.Atoi(fields[0])
	}
	if len(fields) > 3 {
		rec.HRes, _ = strconv.ParseFloat(fields[3], 64)
	}
	if len(fields) > 6 {
		rec.Indexed = fields[6] != constants.NoSpaceGroup
	}
	return rec, nil
}
