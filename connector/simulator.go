package connector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/ssrl-px/interceptor/constants"
	"github.com/ssrl-px/interceptor/models/common"
	"github.com/ssrl-px/interceptor/network"
)

// Simulator plays the splitter's part: it binds a PUSH socket and
// emits a run header, a series of synthetic images, and a series-end
// marker, in the SIMPLON multipart layout. Images carry a flat noisy
// background plus a configurable number of bright spots, so the
// spotfinder has something real to chew on.
type Simulator struct {
	Context *common.Context

	Port       string
	Series     int
	NumFrames  int
	Width      int
	Height     int
	NumSpots   int
	Delay      time.Duration
	MasterFile string
	Verbose    bool

	rng *rand.Rand
}

func NewSimulator(ctx *common.Context, port string, series, numFrames int) *Simulator {
	return &Simulator{
		Context:    ctx,
		Port:       port,
		Series:     series,
		NumFrames:  numFrames,
		Width:      512,
		Height:     512,
		NumSpots:   40,
		MasterFile: fmt.Sprintf("/data/sim/run_%d_master.h5", series),
		rng:        rand.New(rand.NewSource(int64(series))),
	}
}

// withNull appends the trailing NUL the splitter adds to every frame
// except raw pixel data.
func withNull(frame []byte) []byte {
	return append(frame, 0)
}

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// RunHeaderFrames builds the two-part dheader message, custom keys
// included.
func (s *Simulator) RunHeaderFrames() [][]byte {
	general := map[string]interface{}{
		"htype":       constants.HTypeRunHeader,
		"series":      s.Series,
		"master_file": s.MasterFile,
		"mapping":     fmt.Sprintf("collect_%d", s.Series),
		"reporting":   constants.DefaultReporting,
	}
	detail := map[string]interface{}{
		"htype":                             constants.HTypeRunHeaderID,
		"detector_distance":                 0.25,
		"wavelength":                        0.9795,
		"x_pixel_size":                      0.000075,
		"beam_center_x":                     float64(s.Width) / 2,
		"beam_center_y":                     float64(s.Height) / 2,
		"countrate_correction_count_cutoff": 65000.0,
	}
	return [][]byte{
		withNull(mustJSON(general)),
		withNull(mustJSON(detail)),
	}
}

// ImageFrames builds one 4-part dimage message with bitshuffled
// uint16 pixel data.
func (s *Simulator) ImageFrames(frame int) ([][]byte, error) {
	pixels := s.renderImage()
	raw := make([]byte, len(pixels)*2)
	for i, v := range pixels {
		binary.LittleEndian.PutUint16(raw[i*2:], v)
	}
	compressed, err := EncodeBitshuffleLZ4(raw, 2, 0)
	if err != nil {
		return nil, err
	}

	envelope := map[string]interface{}{
		"htype":  constants.HTypeImage,
		"series": s.Series,
		"frame":  frame,
	}
	dataHeader := map[string]interface{}{
		"htype":    constants.HTypeImageData,
		"shape":    []int{s.Width, s.Height},
		"type":     constants.PixelTypeU16,
		"encoding": constants.EncodingBS16,
		"size":     len(compressed),
	}
	footer := map[string]interface{}{
		"htype":      "dconfig-1.0",
		"start_time": time.Now().UnixNano(),
	}
	return [][]byte{
		withNull(mustJSON(envelope)),
		withNull(mustJSON(dataHeader)),
		compressed,
		withNull(mustJSON(footer)),
	}, nil
}

// SeriesEndFrames builds the end-of-series marker.
func (s *Simulator) SeriesEndFrames() [][]byte {
	end := map[string]interface{}{
		"htype":  constants.HTypeSeriesEnd,
		"series": s.Series,
	}
	return [][]byte{withNull(mustJSON(end))}
}

// renderImage paints a flat noisy background and NumSpots bright 3x3
// spots at random positions away from the edges.
func (s *Simulator) renderImage() []uint16 {
	pixels := make([]uint16, s.Width*s.Height)
	for i := range pixels {
		pixels[i] = uint16(s.rng.Intn(6))
	}
	for n := 0; n < s.NumSpots; n++ {
		cx := 2 + s.rng.Intn(s.Width-4)
		cy := 2 + s.rng.Intn(s.Height-4)
		peak := uint16(500 + s.rng.Intn(5000))
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				idx := (cy+dy)*s.Width + (cx + dx)
				v := peak
				if dx != 0 || dy != 0 {
					v = peak / 3
				}
				if pixels[idx] < v {
					pixels[idx] = v
				}
			}
		}
	}
	return pixels
}

// Run binds the PUSH socket and plays the whole series.
func (s *Simulator) Run(ctx context.Context) error {
	sock, err := network.MakeSocket(ctx, network.SocketSpec{
		Port:    s.Port,
		Type:    constants.SocketPush,
		Bind:    true,
		Verbose: s.Verbose,
		WID:     "SIM",
	}, s.Context.Logger)
	if err != nil {
		return err
	}
	defer sock.Close()

	send := func(frames [][]byte) error {
		return sock.Send(zmq4.NewMsgFrom(frames...))
	}

	if err := send(s.RunHeaderFrames()); err != nil {
		return fmt.Errorf("SIM: cannot send run header: %v", err)
	}
	for frame := 0; frame < s.NumFrames; frame++ {
		if ctx.Err() != nil {
			return nil
		}
		frames, err := s.ImageFrames(frame)
		if err != nil {
			return fmt.Errorf("SIM: frame %d: %v", frame, err)
		}
		if err := send(frames); err != nil {
			return fmt.Errorf("SIM: cannot send frame %d: %v", frame, err)
		}
		if s.Verbose {
			s.Context.Logger.Infof("SIM: sent run %d frame %d", s.Series, frame)
		}
		if s.Delay > 0 {
			select {
			case <-time.After(s.Delay):
			case <-ctx.Done():
				return nil
			}
		}
	}
	if err := send(s.SeriesEndFrames()); err != nil {
		return fmt.Errorf("SIM: cannot send series end: %v", err)
	}
	s.Context.Logger.Infof("SIM: run %d complete, %d frames", s.Series, s.NumFrames)
	return nil
}
