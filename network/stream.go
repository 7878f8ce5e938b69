package network

import (
	"context"
	"fmt"

	"github.com/go-zeromq/zmq4"
	"github.com/op/go-logging"

	"github.com/ssrl-px/interceptor/constants"
)

// SocketSpec describes one ZMQ socket the way the connector wires
// them: a type, an endpoint, whether to bind or connect, and a
// worker id used as the socket identity and in log lines.
type SocketSpec struct {
	Host    string
	Port    string
	Type    string
	WID     string
	Bind    bool
	Verbose bool
}

// URL renders the tcp endpoint. Binds listen on all interfaces.
func (s SocketSpec) URL() string {
	if s.Bind {
		return fmt.Sprintf("tcp://*:%s", s.Port)
	}
	return fmt.Sprintf("tcp://%s:%s", s.Host, s.Port)
}

// MakeSocket builds, and binds or connects, one socket. The caller
// owns the socket and must Close it.
func MakeSocket(ctx context.Context, spec SocketSpec, log *logging.Logger) (zmq4.Socket, error) {
	var sock zmq4.Socket
	id := zmq4.WithID(zmq4.SocketIdentity(spec.WID))
	switch spec.Type {
	case constants.SocketPush:
		sock = zmq4.NewPush(ctx, id)
	case constants.SocketPull:
		sock = zmq4.NewPull(ctx, id)
	case constants.SocketReq:
		sock = zmq4.NewReq(ctx, id)
	case constants.SocketRouter:
		sock = zmq4.NewRouter(ctx, id)
	default:
		return nil, fmt.Errorf("unknown socket type %q", spec.Type)
	}

	url := spec.URL()
	var err error
	if spec.Bind {
		err = sock.Listen(url)
	} else {
		err = sock.Dial(url)
	}
	if err != nil {
		sock.Close()
		return nil, fmt.Errorf("%s: cannot open %s socket at %s: %v",
			spec.WID, spec.Type, url, err)
	}
	if spec.Verbose && log != nil {
		action := "connected to"
		if spec.Bind {
			action = "bound to"
		}
		log.Infof("%s: %s socket %s %s", spec.WID, spec.Type, action, url)
	}
	return sock, nil
}

// ReadPort derives the broker's reader-facing port from the splitter
// port by swapping the leading digit for 6, e.g. 8121 -> 6121.
func ReadPort(port string) string {
	if len(port) < 2 {
		return port
	}
	return "6" + port[1:]
}

// ResultPort derives the collector's pull port from the splitter
// port by swapping the leading digit for 7, e.g. 8121 -> 7121.
func ResultPort(port string) string {
	if len(port) < 2 {
		return port
	}
	return "7" + port[1:]
}
