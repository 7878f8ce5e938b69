package data

import (
	"fmt"
	"strings"

	"github.com/ssrl-px/interceptor/constants"
)

// FrameKind classifies a multipart message pulled off the stream.
type FrameKind int

const (
	KindInvalid FrameKind = iota
	KindRunHeader
	KindSeriesEnd
	KindImage
)

func (k FrameKind) String() string {
	switch k {
	case KindRunHeader:
		return "run-header"
	case KindSeriesEnd:
		return "series-end"
	case KindImage:
		return "image"
	}
	return "invalid"
}

// ImageEnvelope is the first frame of a dimage message.
type ImageEnvelope struct {
	HType  string `json:"htype"`
	Series int    `json:"series"`
	Frame  int    `json:"frame"`
	Hash   string `json:"hash,omitempty"`
}

// ImageDataHeader is the second frame of a dimage message and
// describes the pixel data that follows.
type ImageDataHeader struct {
	HType    string `json:"htype"`
	Shape    []int  `json:"shape"`
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Size     int    `json:"size"`
}

// FrameSet is one classified multipart message. For KindImage the
// envelope, data header, raw data and footer are populated. For
// KindRunHeader the two header frames are kept raw so the reader can
// cache them across the series.
type FrameSet struct {
	Kind FrameKind

	Series int
	Frame  int

	// Run header frames (KindRunHeader).
	HeaderGeneral []byte
	HeaderDetail  []byte

	// Image frames (KindImage).
	Envelope   ImageEnvelope
	DataHeader ImageDataHeader
	Data       []byte
	Footer     []byte
}

// ClassifyFrames inspects a multipart message from the splitter and
// sorts it into a run header, a series-end marker, or an image.
// A message of one or two frames is a header or end-of-series; a
// longer one is an image: envelope, data header, pixel data, footer.
// Param htype is the run-header htype this beamline expects
// (normally dheader-1.0).
func ClassifyFrames(frames [][]byte, htype string) (*FrameSet, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("empty frame set")
	}

	if len(frames) <= 2 {
		hdr, err := DecodeHeader(frames[0])
		if err != nil {
			return nil, err
		}
		ht := hdr.HType()
		if ht == "" {
			return nil, fmt.Errorf(`invalid entry: no "htype" key`)
		}
		if strings.Contains(ht, "dseries_end") {
			return &FrameSet{
				Kind:   KindSeriesEnd,
				Series: hdr.Int("series"),
				Frame:  constants.NoFrame,
			}, nil
		}
		if strings.Contains(ht, htype) {
			fs := &FrameSet{
				Kind:          KindRunHeader,
				Series:        hdr.Int("series"),
				Frame:         constants.NoFrame,
				HeaderGeneral: TrimNull(frames[0]),
			}
			if len(frames) > 1 {
				fs.HeaderDetail = TrimNull(frames[1])
			}
			return fs, nil
		}
		return nil, fmt.Errorf("unexpected htype %q in short frame set", ht)
	}

	return classifyImage(frames)
}

// classifyImage handles the 4-part dimage layout. Streams configured
// to repeat the run header prepend two extra frames; the caller
// strips those before we get here.
func classifyImage(frames [][]byte) (*FrameSet, error) {
	fs := &FrameSet{Kind: KindImage}

	env, err := DecodeHeader(frames[0])
	if err != nil {
		return nil, fmt.Errorf("image envelope: %v", err)
	}
	if !strings.Contains(env.HType(), "dimage") {
		return nil, fmt.Errorf("expected dimage envelope, got htype %q", env.HType())
	}
	fs.Envelope = ImageEnvelope{
		HType:  env.HType(),
		Series: env.Int("series"),
		Frame:  env.Int("frame"),
	}
	fs.Series = fs.Envelope.Series
	fs.Frame = fs.Envelope.Frame

	if len(frames) > 1 {
		dh, err := DecodeHeader(frames[1])
		if err != nil {
			return nil, fmt.Errorf("image data header: %v", err)
		}
		fs.DataHeader = ImageDataHeader{
			HType:    dh.HType(),
			Type:     dh.String("type"),
			Encoding: dh.String("encoding"),
			Size:     dh.Int("size"),
		}
		if shape, ok := dh["shape"].([]interface{}); ok {
			for _, dim := range shape {
				if f, ok := dim.(float64); ok {
					fs.DataHeader.Shape = append(fs.DataHeader.Shape, int(f))
				}
			}
		}
	}
	if len(frames) > 2 {
		// The pixel data frame is the one frame that keeps its
		// trailing byte: it is raw compressed data, not JSON.
		fs.Data = frames[2]
	}
	if len(frames) > 3 {
		fs.Footer = TrimNull(frames[3])
	}
	return fs, nil
}

// Pixels returns the number of pixels the data header promises.
func (dh ImageDataHeader) Pixels() int {
	n := 1
	for _, dim := range dh.Shape {
		n *= dim
	}
	if len(dh.Shape) == 0 {
		return 0
	}
	return n
}

// BytesPerPixel maps the data header type to its element width.
func (dh ImageDataHeader) BytesPerPixel() (int, error) {
	switch dh.Type {
	case "uint8", "int8":
		return 1, nil
	case constants.PixelTypeU16, "int16":
		return 2, nil
	case constants.PixelTypeU32, constants.PixelTypeInt32, "float32":
		return 4, nil
	}
	return 0, fmt.Errorf("unsupported pixel type %q", dh.Type)
}
