package connector

import (
	"context"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssrl-px/interceptor/constants"
	"github.com/ssrl-px/interceptor/models/common"
	"github.com/ssrl-px/interceptor/network"
)

// startBroker binds a fake splitter PUSH on port, wires a broker to
// it, and starts both broker loops.
func startBroker(t *testing.T, ctx context.Context, port string) (zmq4.Socket, *Broker) {
	splitter, err := network.MakeSocket(ctx, network.SocketSpec{
		Port: port,
		Type: constants.SocketPush,
		Bind: true,
		WID:  "SPLIT",
	}, nil)
	require.Nil(t, err)
	t.Cleanup(func() { splitter.Close() })

	broker := NewBroker(common.NewContextFromConfig(&common.Config{}), "localhost", port, false)
	require.Nil(t, broker.initializeEnds(ctx))
	t.Cleanup(func() {
		broker.readEnd.Close()
		broker.dataEnd.Close()
	})
	go broker.collectReaders(ctx)
	go broker.forwardFrames(ctx)
	return splitter, broker
}

func TestBrokerRoutesFramesToReadyReader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	splitter, broker := startBroker(t, ctx, "8127")

	reader, err := network.MakeSocket(ctx, network.SocketSpec{
		Host: "localhost",
		Port: network.ReadPort("8127"),
		Type: constants.SocketReq,
		WID:  "ZMQ_900",
	}, nil)
	require.Nil(t, err)
	defer reader.Close()

	require.Nil(t, reader.Send(zmq4.NewMsgString("READY")))
	require.Eventually(t, func() bool { return len(broker.ready) == 1 },
		5*time.Second, 10*time.Millisecond)

	payload := [][]byte{
		[]byte(`{"htype": "dimage-1.0", "series": 1, "frame": 7}`),
		[]byte(`{"htype": "dimage_d-1.0", "shape": [2, 2], "type": "uint16"}`),
		[]byte("pixels"),
	}
	require.Nil(t, splitter.Send(zmq4.NewMsgFrom(payload...)))

	msg, err := reader.Recv()
	require.Nil(t, err)
	require.True(t, len(msg.Frames) == len(payload)+2,
		"expected tag, delimiter and payload, got %d frames", len(msg.Frames))
	assert.Equal(t, "BROKER", string(msg.Frames[0]))
	assert.Empty(t, msg.Frames[1])
	// What survives the reader's envelope strip is the payload.
	assert.Equal(t, payload, [][]byte(msg.Frames[2:]))

	assert.Equal(t, int64(0), broker.DroppedCount())
}

func TestBrokerDropsWhenNoReaderReady(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	splitter, broker := startBroker(t, ctx, "8129")

	// Run header attached in front of the image envelope, the layout
	// the drop warning has to see through.
	frames := [][]byte{
		[]byte(`{"htype": "dheader-1.0", "series": 2}`),
		[]byte(`{"htype": "header-1.0"}`),
		[]byte(`{"htype": "dimage-1.0", "series": 2, "frame": 13}`),
		[]byte(`{"htype": "dimage_d-1.0"}`),
		[]byte("pixels"),
	}
	require.Nil(t, splitter.Send(zmq4.NewMsgFrom(frames...)))

	require.Eventually(t, func() bool { return broker.DroppedCount() == 1 },
		5*time.Second, 10*time.Millisecond)
}

func TestDropFrameNumber(t *testing.T) {
	envelope := []byte(`{"htype": "dimage-1.0", "series": 1, "frame": 42}`)
	header := []byte(`{"htype": "dheader-1.0", "series": 1}`)
	detail := []byte(`{"htype": "header-1.0"}`)
	pixels := []byte("\x01\x02raw")

	assert.Equal(t, "42", dropFrameNumber([][]byte{envelope, []byte(`{}`), pixels}))
	assert.Equal(t, "42", dropFrameNumber([][]byte{header, detail, envelope, []byte(`{}`), pixels}))
	assert.Equal(t, "?", dropFrameNumber([][]byte{header, detail}))
	assert.Equal(t, "?", dropFrameNumber(nil))
}
