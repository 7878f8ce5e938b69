package connector

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ssrl-px/interceptor/constants"
	"github.com/ssrl-px/interceptor/models/common"
	"github.com/ssrl-px/interceptor/models/data"
)

// Processor analyzes one image frame and fills in the analysis
// fields of the result. Implementations must be safe for use from a
// single reader goroutine; each reader owns its own Processor.
type Processor interface {
	Process(fs *data.FrameSet, geom data.Geometry, result *data.Result) error
}

// FastProcessor is the first-pass spotfinder: threshold the image
// above background, count connected spots, flag overloads and ice
// rings, and estimate the high-resolution boundary from the furthest
// accepted spot. It does no indexing; sg and uc stay at their
// placeholders for a downstream stage to fill.
type FastProcessor struct {
	cfg common.ProcessingConfig
}

func NewFastProcessor(cfg common.ProcessingConfig) *FastProcessor {
	return &FastProcessor{cfg: cfg}
}

// spot accumulates per-component statistics during labeling.
type spot struct {
	area        int
	minX, maxX  int
	minY, maxY  int
	sumX, sumY  int
	hasOverload bool
}

func (p *FastProcessor) Process(fs *data.FrameSet, geom data.Geometry, result *data.Result) error {
	pixels, width, height, err := decodeImage(fs)
	if err != nil {
		return err
	}

	// Pixels at the type's bit ceiling are module gaps; pixels at or
	// above the saturation cutoff (but below the ceiling) are
	// overloads.
	bpp, _ := fs.DataHeader.BytesPerPixel()
	gap := math.Pow(2, float64(8*bpp)) - 1
	overload := geom.Overload
	if overload <= 0 || overload > gap {
		overload = gap
	}

	mean, sigma := imageStats(pixels, overload)
	threshold := mean + p.cfg.SignalSigma*sigma
	if threshold < 1 {
		threshold = 1
	}

	spots, nOverloads := findSpots(pixels, width, height, threshold, overload, gap)

	accepted := make([]spot, 0, len(spots))
	for _, s := range spots {
		if s.area >= p.cfg.MinSpotArea && s.area <= p.cfg.MaxSpotArea {
			accepted = append(accepted, s)
		}
	}

	result.NSpots = len(accepted)
	result.NOverloads = nOverloads
	result.MeanShapeRatio = meanShapeRatio(accepted)
	result.HRes, result.NIceRings = resolutionStats(accepted, width, height, geom)
	result.Score = score(result)
	return nil
}

// decodeImage decompresses the data frame and widens pixels to
// uint32 regardless of the stream's pixel depth.
func decodeImage(fs *data.FrameSet) ([]uint32, int, int, error) {
	if len(fs.DataHeader.Shape) < 2 {
		return nil, 0, 0, fmt.Errorf("image data header has shape %v", fs.DataHeader.Shape)
	}
	// SIMPLON shape order is [width, height].
	width := fs.DataHeader.Shape[0]
	height := fs.DataHeader.Shape[1]

	raw, err := DecodeFrameData(fs.DataHeader, fs.Data)
	if err != nil {
		return nil, 0, 0, err
	}
	bpp, err := fs.DataHeader.BytesPerPixel()
	if err != nil {
		return nil, 0, 0, err
	}

	n := len(raw) / bpp
	pixels := make([]uint32, n)
	switch bpp {
	case 1:
		for i := 0; i < n; i++ {
			pixels[i] = uint32(raw[i])
		}
	case 2:
		for i := 0; i < n; i++ {
			pixels[i] = uint32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case 4:
		for i := 0; i < n; i++ {
			pixels[i] = binary.LittleEndian.Uint32(raw[i*4:])
		}
	}
	if n < width*height {
		return nil, 0, 0, fmt.Errorf("image has %d pixels, header says %dx%d", n, width, height)
	}
	return pixels[:width*height], width, height, nil
}

// imageStats returns mean and standard deviation of the valid
// pixels. Everything at or past the saturation cutoff is either an
// overload or a gap; exclude both from background stats.
func imageStats(pixels []uint32, overload float64) (mean, sigma float64) {
	var sum, sumSq float64
	var count int
	for _, v := range pixels {
		f := float64(v)
		if f >= overload {
			continue
		}
		sum += f
		sumSq += f * f
		count++
	}
	if count == 0 {
		return 0, 0
	}
	mean = sum / float64(count)
	variance := sumSq/float64(count) - mean*mean
	if variance > 0 {
		sigma = math.Sqrt(variance)
	}
	return mean, sigma
}

// findSpots labels 4-connected components above threshold and counts
// overloaded pixels. Gap pixels (>= gap) never join a spot but
// saturated ones below the ceiling are counted as overloads.
func findSpots(pixels []uint32, width, height int, threshold, overload, gap float64) ([]spot, int) {
	nOverloads := 0
	visited := make([]bool, len(pixels))
	spots := []spot{}
	queue := make([]int, 0, 64)

	isSignal := func(idx int) bool {
		f := float64(pixels[idx])
		return f > threshold && f < gap
	}

	for idx := range pixels {
		f := float64(pixels[idx])
		if overload > 0 && f >= overload && f < gap {
			nOverloads++
		}
		if visited[idx] || !isSignal(idx) {
			continue
		}
		s := spot{minX: width, minY: height}
		queue = append(queue[:0], idx)
		visited[idx] = true
		for len(queue) > 0 {
			cur := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x := cur % width
			y := cur / width
			s.area++
			s.sumX += x
			s.sumY += y
			if x < s.minX {
				s.minX = x
			}
			if x > s.maxX {
				s.maxX = x
			}
			if y < s.minY {
				s.minY = y
			}
			if y > s.maxY {
				s.maxY = y
			}
			if overload > 0 && float64(pixels[cur]) >= overload {
				s.hasOverload = true
			}
			for _, next := range [4]int{cur - 1, cur + 1, cur - width, cur + width} {
				if next < 0 || next >= len(pixels) || visited[next] {
					continue
				}
				// Stay on the same row for horizontal moves.
				if (next == cur-1 || next == cur+1) && next/width != y {
					continue
				}
				if isSignal(next) {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		spots = append(spots, s)
	}
	return spots, nOverloads
}

// meanShapeRatio averages bounding-box elongation over spots. A
// round spot scores 1.0; streaks score higher.
func meanShapeRatio(spots []spot) float64 {
	if len(spots) == 0 {
		return 0
	}
	var sum float64
	for _, s := range spots {
		w := float64(s.maxX-s.minX) + 1
		h := float64(s.maxY-s.minY) + 1
		if h > w {
			w, h = h, w
		}
		sum += w / h
	}
	return sum / float64(len(spots))
}

// resolutionStats converts each spot's distance from the beam center
// into a d-spacing and returns the highest resolution reached plus
// the number of ice rings with at least one spot. Without usable
// geometry the resolution stays at the cap.
func resolutionStats(spots []spot, width, height int, geom data.Geometry) (float64, int) {
	if len(spots) == 0 || geom.DistanceMM <= 0 || geom.Wavelength <= 0 || geom.PixelSizeMM <= 0 {
		return constants.ResolutionCap, 0
	}
	cx := geom.BeamCenterX
	cy := geom.BeamCenterY
	if cx == 0 && cy == 0 {
		cx = float64(width) / 2
		cy = float64(height) / 2
	}

	hres := constants.ResolutionCap
	ringHit := make([]bool, len(constants.IceRings))
	for _, s := range spots {
		x := float64(s.sumX) / float64(s.area)
		y := float64(s.sumY) / float64(s.area)
		rPx := math.Hypot(x-cx, y-cy)
		if rPx == 0 {
			continue
		}
		theta := 0.5 * math.Atan(rPx*geom.PixelSizeMM/geom.DistanceMM)
		d := geom.Wavelength / (2 * math.Sin(theta))
		if d < hres {
			hres = d
		}
		for i, ring := range constants.IceRings {
			if d <= ring[0] && d >= ring[1] {
				ringHit[i] = true
			}
		}
	}
	nIceRings := 0
	for _, hit := range ringHit {
		if hit {
			nIceRings++
		}
	}
	return hres, nIceRings
}

// score folds the spotfinding signals into the composite the UI
// ranks frames by: spot count, minus ice contamination and streaky
// spot shapes.
func score(r *data.Result) int {
	s := r.NSpots
	s -= 2 * r.NIceRings
	if r.MeanShapeRatio > 2.0 {
		s -= int(math.Round(float64(r.NSpots) * 0.25))
	}
	if s < 0 {
		s = 0
	}
	return s
}
