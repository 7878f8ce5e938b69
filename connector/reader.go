package connector

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"

	"github.com/ssrl-px/interceptor/constants"
	"github.com/ssrl-px/interceptor/models/common"
	"github.com/ssrl-px/interceptor/models/data"
	"github.com/ssrl-px/interceptor/network"
	"github.com/ssrl-px/interceptor/util/cli"
)

// Reader is one worker on the stream: it checks in over REQ, gets a
// multipart frame set back, classifies and decodes it, runs the
// processor, and pushes the result to the collector. Run headers are
// cached across the series so every image result can name its master
// file, mapping and reporting tag.
type Reader struct {
	Context *common.Context

	name      string
	opts      cli.Options
	processor Processor
	sessionID string

	// runHeader is the cached header for the series currently on
	// the stream.
	runHeader *data.RunHeader
	geom      data.Geometry

	dataSocket   zmq4.Socket
	resultSocket zmq4.Socket
}

// NewReader builds reader number idx. Each reader owns its own
// processor; processors are not shared across goroutines.
func NewReader(ctx *common.Context, idx int, opts cli.Options) *Reader {
	return &Reader{
		Context:   ctx,
		name:      fmt.Sprintf("ZMQ_%03d", idx),
		opts:      opts,
		processor: NewFastProcessor(ctx.Config.Processing),
		sessionID: uuid.New().String(),
		geom:      ctx.Config.Processing.Geometry,
	}
}

// initializeSockets opens the REQ data socket (to the broker, or
// straight to the splitter when the broker is off) and the PUSH
// result socket to the collector.
func (r *Reader) initializeSockets(ctx context.Context) error {
	dhost, dport := r.opts.Host, r.opts.Port
	if r.opts.Broker {
		dhost = "localhost"
		dport = network.ReadPort(r.opts.Port)
	}
	dataSocket, err := network.MakeSocket(ctx, network.SocketSpec{
		Host:    dhost,
		Port:    dport,
		Type:    constants.SocketReq,
		Verbose: r.opts.Verbose,
		WID:     r.name,
	}, r.Context.Logger)
	if err != nil {
		return err
	}
	resultSocket, err := network.MakeSocket(ctx, network.SocketSpec{
		Host:    "localhost",
		Port:    network.ResultPort(r.opts.Port),
		Type:    constants.SocketPush,
		Verbose: r.opts.Verbose,
		WID:     r.name + "_2C",
	}, r.Context.Logger)
	if err != nil {
		dataSocket.Close()
		return err
	}
	r.dataSocket = dataSocket
	r.resultSocket = resultSocket
	return nil
}

// procURL is the endpoint this reader is consuming, recorded on
// every result.
func (r *Reader) procURL() string {
	return fmt.Sprintf("tcp://%s:%s", r.opts.Host, r.opts.Port)
}

// Run is the reader's REQ loop. It exits when ctx is done.
func (r *Reader) Run(ctx context.Context) error {
	if err := r.initializeSockets(ctx); err != nil {
		return fmt.Errorf("%s: socket error: %v", r.name, err)
	}
	defer r.dataSocket.Close()
	defer r.resultSocket.Close()

	// Tell the collector we're up.
	connected := data.NewResult(r.name, r.procURL())
	connected.State = constants.StateConnected
	connected.Comment = "session " + r.sessionID
	r.pushResult(connected)

	for {
		if ctx.Err() != nil {
			return nil
		}
		start := time.Now()
		if err := r.dataSocket.Send(zmq4.NewMsgString("READY")); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.Context.Logger.Errorf("%s: check-in failed: %v", r.name, err)
			continue
		}
		fetchStart := time.Now()
		msg, err := r.dataSocket.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.Context.Logger.Errorf("%s: receive failed: %v", r.name, err)
			continue
		}
		receiveTime := time.Since(fetchStart).Seconds()
		waitTime := fetchStart.Sub(start).Seconds()

		frames := msg.Frames
		if r.opts.Broker && len(frames) >= 2 {
			// Strip the BROKER tag and its delimiter.
			frames = frames[2:]
		}

		if r.opts.Drain {
			if r.opts.Verbose {
				r.Context.Logger.Infof("%s: drained %d frames, rcv time: %.4f sec",
					r.name, len(frames), receiveTime)
			}
			continue
		}

		result := r.handleFrames(frames)
		if result == nil {
			continue
		}
		result.ReceiveTime = receiveTime
		result.WaitTime = waitTime
		result.TotalTime = time.Since(start).Seconds()
		r.pushResult(result)
	}
}

// handleFrames turns one multipart message into a result, running
// the processor for image frames. Series-end markers become results
// too; the collector needs them to close out the run.
func (r *Reader) handleFrames(frames [][]byte) *data.Result {
	result := data.NewResult(r.name, r.procURL())

	fs, err := r.classify(frames)
	if err != nil {
		result.SetError("DATA", err)
		return result
	}

	switch fs.Kind {
	case data.KindRunHeader:
		rh, err := data.NewRunHeader(fs.HeaderGeneral, fs.HeaderDetail)
		if err != nil {
			result.SetError("HEADER", err)
			return result
		}
		r.runHeader = rh
		r.geom = data.GeometryFromHeader(r.Context.Config.Processing.Geometry, rh)
		result.State = constants.StateHeaderFrame
		result.Series = constants.HeaderSeries
		result.FrameIdx = constants.HeaderFrame
		return result

	case data.KindSeriesEnd:
		result.State = constants.StateSeriesEnd
		result.Series = fs.Series
		return result

	case data.KindImage:
		return r.processImage(fs)
	}

	result.SetError("DATA", fmt.Errorf("unclassifiable frame set of %d frames", len(frames)))
	return result
}

// classify splits off inline run-header frames when the stream
// repeats them in front of every image, then classifies the rest.
func (r *Reader) classify(frames [][]byte) (*data.FrameSet, error) {
	htype := r.Context.Config.Processing.HType
	if len(frames) > 2 && !r.opts.Headerless {
		// A long frame set can lead with the two run-header frames.
		if hdr, err := data.DecodeHeader(frames[0]); err == nil &&
			hdr.HType() != "" && hdr.HType() != constants.HTypeImage &&
			!hdr.Has("frame") {
			headerSet, err := data.ClassifyFrames(frames[:2], htype)
			if err == nil && headerSet.Kind == data.KindRunHeader {
				rh, err := data.NewRunHeader(headerSet.HeaderGeneral, headerSet.HeaderDetail)
				if err != nil {
					return nil, err
				}
				r.runHeader = rh
				r.geom = data.GeometryFromHeader(r.Context.Config.Processing.Geometry, rh)
				frames = frames[2:]
			}
		}
	}
	return data.ClassifyFrames(frames, htype)
}

// processImage fills in identity from the cached run header, runs
// the processor, and stamps processing time.
func (r *Reader) processImage(fs *data.FrameSet) *data.Result {
	result := data.NewResult(r.name, r.procURL())
	result.Series = fs.Series
	result.FrameIdx = fs.Frame

	keys := r.Context.Config.Processing.HeaderKeys
	if r.runHeader != nil {
		master := r.runHeader.MasterFile(keys)
		result.Filename = filepath.Base(master)
		result.FullPath = master
		result.Mapping = r.runHeader.Mapping(keys)
		result.Reporting = r.runHeader.Reporting(keys)
	}

	result.State = constants.StateProcess
	procStart := time.Now()
	if err := r.processor.Process(fs, r.geom, result); err != nil {
		result.SetError("CONVERSION", err)
	}
	result.ProcTime = time.Since(procStart).Seconds()
	return result
}

// pushResult sends a result JSON to the collector. Failures are
// logged and dropped; the stream will not wait.
func (r *Reader) pushResult(result *data.Result) {
	jsonData, err := result.ToJSON()
	if err != nil {
		r.Context.Logger.Errorf("%s: cannot encode result: %v", r.name, err)
		return
	}
	if err := r.resultSocket.Send(zmq4.NewMsg(jsonData)); err != nil {
		r.Context.Logger.Errorf("%s: cannot push result: %v", r.name, err)
	}
}
