package data_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssrl-px/interceptor/models/data"
)

func TestTrimNull(t *testing.T) {
	assert.Equal(t, []byte(`{"a":1}`), data.TrimNull([]byte("{\"a\":1}\x00")))
	assert.Equal(t, []byte(`{"a":1}`), data.TrimNull([]byte(`{"a":1}`)))
	assert.Equal(t, []byte{}, data.TrimNull([]byte{0}))
	assert.Nil(t, data.TrimNull(nil))
}

func TestDecodeHeader(t *testing.T) {
	hdr, err := data.DecodeHeader([]byte("{\"htype\": \"dheader-1.0\", \"series\": 44}\x00"))
	require.Nil(t, err)
	assert.Equal(t, "dheader-1.0", hdr.HType())
	assert.Equal(t, 44, hdr.Int("series"))
	assert.True(t, hdr.Has("series"))
	assert.False(t, hdr.Has("frame"))

	_, err = data.DecodeHeader([]byte("not json"))
	assert.NotNil(t, err)
}

func TestHeaderAccessors(t *testing.T) {
	hdr := data.Header{
		"name":  "run_44_master.h5",
		"count": float64(12),
		"dist":  0.215,
	}
	assert.Equal(t, "run_44_master.h5", hdr.String("name"))
	assert.Equal(t, "", hdr.String("count"))
	assert.Equal(t, 12, hdr.Int("count"))
	assert.Equal(t, 0, hdr.Int("missing"))
	assert.Equal(t, 0.215, hdr.Float("dist"))
	assert.Equal(t, 12.0, hdr.Float("count"))
}

func TestRunHeaderCustomKeys(t *testing.T) {
	general := []byte(`{"htype": "dheader-1.0", "series": 3,
		"master_file": "/data/run_3_master.h5",
		"mapping": "collect_3",
		"reporting": "htos_note image_score"}`)
	detail := []byte(`{"htype": "header-1.0", "wavelength": 0.9795}`)

	rh, err := data.NewRunHeader(general, detail)
	require.Nil(t, err)

	keys := data.DefaultHeaderKeys()
	assert.Equal(t, "/data/run_3_master.h5", rh.MasterFile(keys))
	assert.Equal(t, "collect_3", rh.Mapping(keys))
	assert.Equal(t, "htos_note image_score", rh.Reporting(keys))
}

func TestRunHeaderRemappedKeys(t *testing.T) {
	general := []byte(`{"htype": "dheader-1.0",
		"masterfile": "/data/x_master.h5",
		"dcss_map": "c1"}`)
	rh, err := data.NewRunHeader(general, nil)
	require.Nil(t, err)

	keys := data.HeaderKeys{
		MasterFile: "masterfile",
		Mapping:    "dcss_map",
		Reporting:  "note",
	}
	assert.Equal(t, "/data/x_master.h5", rh.MasterFile(keys))
	assert.Equal(t, "c1", rh.Mapping(keys))
	assert.Equal(t, "", rh.Reporting(keys))
}

func TestGeometryFromHeader(t *testing.T) {
	defaults := data.Geometry{
		DistanceMM:  200,
		Wavelength:  1.0,
		PixelSizeMM: 0.075,
		Overload:    65535,
	}

	general := []byte(`{"htype": "dheader-1.0", "series": 1}`)
	detail := []byte(`{"htype": "header-1.0",
		"detector_distance": 0.25,
		"wavelength": 0.9795,
		"x_pixel_size": 0.000075,
		"beam_center_x": 2100.5,
		"beam_center_y": 2200.5,
		"countrate_correction_count_cutoff": 65000}`)
	rh, err := data.NewRunHeader(general, detail)
	require.Nil(t, err)

	geom := data.GeometryFromHeader(defaults, rh)
	assert.InDelta(t, 250.0, geom.DistanceMM, 0.001)
	assert.InDelta(t, 0.9795, geom.Wavelength, 0.0001)
	assert.InDelta(t, 0.075, geom.PixelSizeMM, 0.0001)
	assert.InDelta(t, 2100.5, geom.BeamCenterX, 0.001)
	assert.InDelta(t, 2200.5, geom.BeamCenterY, 0.001)
	assert.InDelta(t, 65000.0, geom.Overload, 0.001)
}

func TestGeometryFromHeaderKeepsDefaults(t *testing.T) {
	defaults := data.Geometry{DistanceMM: 200, Wavelength: 1.0, PixelSizeMM: 0.075}

	rh, err := data.NewRunHeader([]byte(`{"htype": "dheader-1.0"}`), nil)
	require.Nil(t, err)
	geom := data.GeometryFromHeader(defaults, rh)
	assert.Equal(t, defaults, geom)

	assert.Equal(t, defaults, data.GeometryFromHeader(defaults, nil))
}
