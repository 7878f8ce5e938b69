package connector

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/go-zeromq/zmq4"

	"github.com/ssrl-px/interceptor/constants"
	"github.com/ssrl-px/interceptor/models/common"
	"github.com/ssrl-px/interceptor/models/data"
	"github.com/ssrl-px/interceptor/network"
)

// Broker sits between the splitter and the readers: a PULL backend
// facing the splitter's PUSH, and a ROUTER frontend facing the
// readers' REQ sockets. Each frame set goes to a ready reader; when
// none is ready the frame is dropped with a warning, because on a
// live stream a stale frame is worth less than keeping up. The
// broker also shields the splitter, which is busy writing data to
// disk, from reader churn.
type Broker struct {
	Context *common.Context

	name    string
	host    string
	port    string
	verbose bool

	readEnd zmq4.Socket
	dataEnd zmq4.Socket

	// ready carries reader identities that have checked in and are
	// waiting for a frame.
	ready chan []byte

	// dropped counts frames discarded because no reader was ready.
	dropped int64
}

func NewBroker(ctx *common.Context, host, port string, verbose bool) *Broker {
	return &Broker{
		Context: ctx,
		name:    "CONN",
		host:    host,
		port:    port,
		verbose: verbose,
		ready:   make(chan []byte, 256),
	}
}

// initializeEnds opens the frontend and backend sockets.
func (b *Broker) initializeEnds(ctx context.Context) error {
	readEnd, err := network.MakeSocket(ctx, network.SocketSpec{
		Port:    network.ReadPort(b.port),
		Type:    constants.SocketRouter,
		Bind:    true,
		Verbose: b.verbose,
		WID:     b.name + "_READ",
	}, b.Context.Logger)
	if err != nil {
		return err
	}
	dataEnd, err := network.MakeSocket(ctx, network.SocketSpec{
		Host:    b.host,
		Port:    b.port,
		Type:    constants.SocketPull,
		Verbose: b.verbose,
		WID:     b.name + "_DATA",
	}, b.Context.Logger)
	if err != nil {
		readEnd.Close()
		return err
	}
	b.readEnd = readEnd
	b.dataEnd = dataEnd
	return nil
}

// Run opens both ends and forwards frames until ctx is done.
func (b *Broker) Run(ctx context.Context) error {
	if err := b.initializeEnds(ctx); err != nil {
		return err
	}
	defer b.readEnd.Close()
	defer b.dataEnd.Close()

	go b.collectReaders(ctx)
	return b.forwardFrames(ctx)
}

// collectReaders drains reader check-ins from the frontend and
// queues their identities.
func (b *Broker) collectReaders(ctx context.Context) {
	for {
		msg, err := b.readEnd.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.Context.Logger.Errorf("%s: frontend recv: %v", b.name, err)
			continue
		}
		if len(msg.Frames) == 0 {
			continue
		}
		identity := msg.Frames[0]
		select {
		case b.ready <- identity:
		default:
			// More check-ins than the queue holds means a reader
			// restarted in a loop; dropping the extra is harmless.
			b.Context.Logger.Warningf("%s: ready queue full, ignoring reader check-in", b.name)
		}
	}
}

// forwardFrames pulls frame sets from the splitter and hands each to
// the next ready reader.
func (b *Broker) forwardFrames(ctx context.Context) error {
	for {
		msg, err := b.dataEnd.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%s: backend recv: %v", b.name, err)
		}

		select {
		case identity := <-b.ready:
			out := make([][]byte, 0, len(msg.Frames)+4)
			out = append(out, identity, []byte{}, []byte("BROKER"), []byte{})
			out = append(out, msg.Frames...)
			if err := b.readEnd.Send(zmq4.NewMsgFrom(out...)); err != nil {
				b.Context.Logger.Errorf("%s: cannot route frame to reader: %v", b.name, err)
			}
		default:
			atomic.AddInt64(&b.dropped, 1)
			b.Context.Logger.Warningf("%s: NO READY READERS! Skipping frame #%s",
				b.name, dropFrameNumber(msg.Frames))
		}
	}
}

// DroppedCount returns how many frames have been discarded so far.
func (b *Broker) DroppedCount() int64 {
	return atomic.LoadInt64(&b.dropped)
}

// dropFrameNumber digs the frame index out of a frame set about to
// be dropped. Streams that repeat the run header carry the image
// envelope behind the two header frames, so scan for the frame key
// instead of trusting a position.
func dropFrameNumber(frames [][]byte) string {
	for _, f := range frames {
		hdr, err := data.DecodeHeader(f)
		if err != nil || !hdr.Has("frame") {
			continue
		}
		return strconv.Itoa(hdr.Int("frame"))
	}
	return "?"
}
