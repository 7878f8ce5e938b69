package data_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssrl-px/interceptor/constants"
	"github.com/ssrl-px/interceptor/models/data"
)

func TestClassifyFramesRunHeader(t *testing.T) {
	frames := [][]byte{
		[]byte("{\"htype\": \"dheader-1.0\", \"series\": 7, \"master_file\": \"/data/m.h5\"}\x00"),
		[]byte("{\"htype\": \"header-1.0\", \"wavelength\": 0.98}\x00"),
	}
	fs, err := data.ClassifyFrames(frames, "dheader-1.0")
	require.Nil(t, err)
	assert.Equal(t, data.KindRunHeader, fs.Kind)
	assert.Equal(t, 7, fs.Series)
	assert.Equal(t, constants.NoFrame, fs.Frame)
	assert.NotEmpty(t, fs.HeaderGeneral)
	assert.NotEmpty(t, fs.HeaderDetail)

	// The kept frames must parse without the trailing NUL.
	rh, err := data.NewRunHeader(fs.HeaderGeneral, fs.HeaderDetail)
	require.Nil(t, err)
	assert.Equal(t, "/data/m.h5", rh.MasterFile(data.DefaultHeaderKeys()))
}

func TestClassifyFramesSeriesEnd(t *testing.T) {
	frames := [][]byte{
		[]byte("{\"htype\": \"dseries_end-1.0\", \"series\": 7}\x00"),
	}
	fs, err := data.ClassifyFrames(frames, "dheader-1.0")
	require.Nil(t, err)
	assert.Equal(t, data.KindSeriesEnd, fs.Kind)
	assert.Equal(t, 7, fs.Series)
}

func TestClassifyFramesImage(t *testing.T) {
	pixelData := []byte{1, 2, 3, 4}
	frames := [][]byte{
		[]byte("{\"htype\": \"dimage-1.0\", \"series\": 7, \"frame\": 41}\x00"),
		[]byte("{\"htype\": \"dimage_d-1.0\", \"shape\": [2, 1], \"type\": \"uint16\", \"encoding\": \"<\", \"size\": 4}\x00"),
		pixelData,
		[]byte("{\"htype\": \"dconfig-1.0\", \"start_time\": 12345}\x00"),
	}
	fs, err := data.ClassifyFrames(frames, "dheader-1.0")
	require.Nil(t, err)
	assert.Equal(t, data.KindImage, fs.Kind)
	assert.Equal(t, 7, fs.Series)
	assert.Equal(t, 41, fs.Frame)
	assert.Equal(t, []int{2, 1}, fs.DataHeader.Shape)
	assert.Equal(t, "uint16", fs.DataHeader.Type)
	assert.Equal(t, "<", fs.DataHeader.Encoding)
	// Pixel data keeps every byte, trailing NUL included.
	assert.Equal(t, pixelData, fs.Data)
}

func TestClassifyFramesErrors(t *testing.T) {
	_, err := data.ClassifyFrames(nil, "dheader-1.0")
	assert.NotNil(t, err)

	_, err = data.ClassifyFrames([][]byte{[]byte(`{"series": 1}`)}, "dheader-1.0")
	assert.NotNil(t, err)

	_, err = data.ClassifyFrames([][]byte{[]byte(`{"htype": "dweird-9.9"}`)}, "dheader-1.0")
	assert.NotNil(t, err)

	frames := [][]byte{
		[]byte(`{"htype": "dheader-1.0"}`),
		[]byte(`{}`),
		[]byte{},
		[]byte{},
	}
	// Four frames with a non-dimage envelope do not classify.
	_, err = data.ClassifyFrames(frames, "dheader-1.0")
	assert.NotNil(t, err)
}

func TestImageDataHeaderPixels(t *testing.T) {
	dh := data.ImageDataHeader{Shape: []int{4150, 4371}}
	assert.Equal(t, 4150*4371, dh.Pixels())
	assert.Equal(t, 0, data.ImageDataHeader{}.Pixels())
}

func TestImageDataHeaderBytesPerPixel(t *testing.T) {
	bpp, err := data.ImageDataHeader{Type: "uint16"}.BytesPerPixel()
	require.Nil(t, err)
	assert.Equal(t, 2, bpp)

	bpp, err = data.ImageDataHeader{Type: "uint32"}.BytesPerPixel()
	require.Nil(t, err)
	assert.Equal(t, 4, bpp)

	_, err = data.ImageDataHeader{Type: "float64"}.BytesPerPixel()
	assert.NotNil(t, err)
}
