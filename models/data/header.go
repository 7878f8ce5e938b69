package data

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// HeaderKeys names the custom keys the beamline splitter appends to
// the Eiger run header. Beamlines disagree on spelling, so the
// processing config can remap them.
type HeaderKeys struct {
	MasterFile string
	Mapping    string
	Reporting  string
}

// DefaultHeaderKeys returns the key names used at SSRL.
func DefaultHeaderKeys() HeaderKeys {
	return HeaderKeys{
		MasterFile: "master_file",
		Mapping:    "mapping",
		Reporting:  "reporting",
	}
}

// Header is a decoded Eiger stream header. Values keep their JSON
// types; use the typed accessors.
type Header map[string]interface{}

// TrimNull strips the trailing NUL byte the splitter appends to every
// frame except raw image data.
func TrimNull(frame []byte) []byte {
	if len(frame) > 0 && frame[len(frame)-1] == 0 {
		return frame[:len(frame)-1]
	}
	return frame
}

// DecodeHeader decodes one JSON header frame. The trailing NUL, if
// present, is stripped first.
func DecodeHeader(frame []byte) (Header, error) {
	frame = bytes.TrimSpace(TrimNull(frame))
	hdr := Header{}
	if err := json.Unmarshal(frame, &hdr); err != nil {
		return nil, fmt.Errorf("cannot decode header frame: %v", err)
	}
	return hdr, nil
}

// HType returns the htype key, or an empty string if the header has
// none. A header without htype is invalid on this stream.
func (h Header) HType() string {
	return h.String("htype")
}

func (h Header) Has(key string) bool {
	_, ok := h[key]
	return ok
}

// String returns the value for key as a string, or "" when missing
// or not a string.
func (h Header) String(key string) string {
	if v, ok := h[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the value for key as an int. JSON numbers arrive as
// float64.
func (h Header) Int(key string) int {
	switch v := h[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Float returns the value for key as a float64.
func (h Header) Float(key string) float64 {
	switch v := h[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// RunHeader is the cached two-part run header for the series
// currently on the stream. Part one carries the series envelope plus
// the splitter's custom keys; part two carries detector detail
// (beam center, wavelength, distance and so on).
type RunHeader struct {
	General Header
	Detail  Header
}

// NewRunHeader decodes the first two frames of a dheader message.
func NewRunHeader(general, detail []byte) (*RunHeader, error) {
	gen, err := DecodeHeader(general)
	if err != nil {
		return nil, fmt.Errorf("run header part 1: %v", err)
	}
	var det Header
	if len(detail) > 0 {
		det, err = DecodeHeader(detail)
		if err != nil {
			return nil, fmt.Errorf("run header part 2: %v", err)
		}
	} else {
		det = Header{}
	}
	return &RunHeader{General: gen, Detail: det}, nil
}

// MasterFile returns the master file path from the custom header keys.
func (rh *RunHeader) MasterFile(keys HeaderKeys) string {
	return rh.General.String(keys.MasterFile)
}

// Mapping returns the beamline mapping string, used verbatim in UI
// messages.
func (rh *RunHeader) Mapping(keys HeaderKeys) string {
	return rh.General.String(keys.Mapping)
}

// Reporting returns the reporting tag for UI messages, or "" when the
// run header does not set one.
func (rh *RunHeader) Reporting(keys HeaderKeys) string {
	return rh.General.String(keys.Reporting)
}

// Geometry describes the detector geometry needed to turn a spot
// position into a resolution estimate.
type Geometry struct {
	// DistanceMM is the sample-to-detector distance in mm.
	DistanceMM float64
	// Wavelength is the beam wavelength in Angstrom.
	Wavelength float64
	// PixelSizeMM is the edge length of one pixel in mm.
	PixelSizeMM float64
	// BeamCenterX and BeamCenterY are in pixels.
	BeamCenterX float64
	BeamCenterY float64
	// Overload is the saturation count; pixels at or above it are
	// overloaded. Pixels at the detector's bit ceiling are module
	// gaps and are masked.
	Overload float64
}

// GeometryFromHeader overlays values found in the run header detail
// onto the configured defaults. The detail frame uses the SIMPLON
// key names; distances arrive in meters and are converted to mm.
func GeometryFromHeader(defaults Geometry, rh *RunHeader) Geometry {
	g := defaults
	if rh == nil {
		return g
	}
	d := rh.Detail
	if d.Has("detector_distance") {
		g.DistanceMM = d.Float("detector_distance") * 1000.0
	}
	if d.Has("wavelength") {
		g.Wavelength = d.Float("wavelength")
	}
	if d.Has("x_pixel_size") {
		g.PixelSizeMM = d.Float("x_pixel_size") * 1000.0
	}
	if d.Has("beam_center_x") {
		g.BeamCenterX = d.Float("beam_center_x")
	}
	if d.Has("beam_center_y") {
		g.BeamCenterY = d.Float("beam_center_y")
	}
	if d.Has("countrate_correction_count_cutoff") {
		g.Overload = d.Float("countrate_correction_count_cutoff")
	}
	return g
}
