package connector

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/ssrl-px/interceptor/constants"
	"github.com/ssrl-px/interceptor/models/common"
	"github.com/ssrl-px/interceptor/models/data"
	"github.com/ssrl-px/interceptor/models/service"
	"github.com/ssrl-px/interceptor/network"
	"github.com/ssrl-px/interceptor/tracker"
	"github.com/ssrl-px/interceptor/util/cli"
)

// Collector pulls results from all readers, formats and fans them
// out: stdout when verbose, the record file, the downstream UI
// socket, Redis, and the run tracker. At end of series it flushes the
// run's stats to Redis and ships the record file to the archive.
type Collector struct {
	Context *common.Context

	name    string
	opts    cli.Options
	tracker *tracker.Tracker

	pullSocket zmq4.Socket
	uiSocket   zmq4.Socket

	// ProcessChannel carries decoded results from the pull loop to
	// the handler; ErrorChannel carries results whose state is
	// error so they are logged off the hot path.
	ProcessChannel chan *data.Result
	ErrorChannel   chan *data.Result

	recordMutex sync.Mutex
	recordFile  *os.File
	recordPath  string
}

func NewCollector(ctx *common.Context, opts cli.Options) *Collector {
	bufSize := opts.BufSize
	if bufSize <= 0 {
		bufSize = 20
	}
	return &Collector{
		Context:        ctx,
		name:           "COLLECT",
		opts:           opts,
		tracker:        tracker.NewTracker(ctx.Config.Processing.MinBragg),
		ProcessChannel: make(chan *data.Result, bufSize),
		ErrorChannel:   make(chan *data.Result, bufSize),
	}
}

// Tracker exposes the run tracker for the monitor and for tests.
func (c *Collector) Tracker() *tracker.Tracker {
	return c.tracker
}

func (c *Collector) initializeSockets(ctx context.Context) error {
	pullSocket, err := network.MakeSocket(ctx, network.SocketSpec{
		Port:    network.ResultPort(c.opts.Port),
		Type:    constants.SocketPull,
		Bind:    true,
		Verbose: c.opts.Verbose,
		WID:     c.name,
	}, c.Context.Logger)
	if err != nil {
		return err
	}
	c.pullSocket = pullSocket

	uiHost := c.opts.UIHost
	uiPort := c.opts.UIPort
	if uiHost == "" {
		uiHost = c.Context.Config.UIHost
	}
	if uiPort == "" {
		uiPort = c.Context.Config.UIPort
	}
	switch {
	case uiHost != "" && uiPort != "":
		uiSocket, err := network.MakeSocket(ctx, network.SocketSpec{
			Host:    uiHost,
			Port:    uiPort,
			Type:    constants.SocketPush,
			Verbose: c.opts.Verbose,
			WID:     c.name + "_UI",
		}, c.Context.Logger)
		if err != nil {
			pullSocket.Close()
			return err
		}
		c.uiSocket = uiSocket
	case c.opts.Send && uiPort != "":
		// No UI host configured but -send asked for the stream
		// anyway; push to a local consumer bound on the UI port,
		// e.g. the monitor. The UI socket always connects, never
		// binds.
		uiSocket, err := network.MakeSocket(ctx, network.SocketSpec{
			Host:    "localhost",
			Port:    uiPort,
			Type:    constants.SocketPush,
			Verbose: c.opts.Verbose,
			WID:     c.name + "_UI",
		}, c.Context.Logger)
		if err != nil {
			pullSocket.Close()
			return err
		}
		c.uiSocket = uiSocket
	}
	return nil
}

func (c *Collector) openRecordFile() error {
	if c.opts.Record == "" {
		return nil
	}
	f, err := os.OpenFile(c.opts.Record, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%s: cannot open record file: %v", c.name, err)
	}
	c.recordFile = f
	c.recordPath = c.opts.Record
	return nil
}

// Run pulls and handles results until ctx is done.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.initializeSockets(ctx); err != nil {
		return err
	}
	defer c.pullSocket.Close()
	if c.uiSocket != nil {
		defer c.uiSocket.Close()
	}
	if err := c.openRecordFile(); err != nil {
		return err
	}
	if c.recordFile != nil {
		defer c.recordFile.Close()
	}

	go c.handleResults(ctx)
	go c.handleErrors(ctx)

	for {
		msg, err := c.pullSocket.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Context.Logger.Errorf("%s: recv failed: %v", c.name, err)
			continue
		}
		if len(msg.Frames) == 0 {
			continue
		}
		result, err := data.ResultFromJSON(msg.Frames[0])
		if err != nil {
			c.Context.Logger.Errorf("%s: cannot decode result: %v", c.name, err)
			continue
		}
		if result.State == constants.StateError {
			c.ErrorChannel <- result
			continue
		}
		c.ProcessChannel <- result
	}
}

// handleResults is the routing loop for non-error results.
func (c *Collector) handleResults(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case result := <-c.ProcessChannel:
			switch result.State {
			case constants.StateConnected:
				c.Context.Logger.Infof("%s: reader %s connected (%s)",
					c.name, result.ProcName, result.Comment)
			case constants.StateHeaderFrame:
				c.Context.Logger.Infof("%s: run header received by %s",
					c.name, result.ProcName)
			case constants.StateSeriesEnd:
				c.finishRun(ctx, result)
			default:
				c.handleFrameResult(result)
			}
		}
	}
}

// handleErrors logs failed frames and still forwards them, so the UI
// sees the gap rather than silence.
func (c *Collector) handleErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case result := <-c.ErrorChannel:
			procErr := service.NewProcessingError(result.Series, result.FrameIdx,
				result.ProcName, result.DataError, true)
			c.Context.Logger.Errorf("%s: %s", c.name, procErr.Error())
			c.handleFrameResult(result)
		}
	}
}

// handleFrameResult formats one frame result and fans it out.
func (c *Collector) handleFrameResult(result *data.Result) {
	cfg := c.Context.Config.Processing
	uiMsg := result.UIMessage(cfg.ResultFields, cfg.Reporting)

	if c.opts.Verbose {
		fmt.Println(uiMsg)
		fmt.Printf("    rcv time: %.4f sec, wait time: %.4f sec, proc time: %.4f sec, total: %.4f sec\n",
			result.ReceiveTime, result.WaitTime, result.ProcTime, result.TotalTime)
	}

	c.appendRecord(uiMsg)
	c.sendToUI(uiMsg)

	// Results that never got a series number (data errors before the
	// envelope decoded, header sentinels) have no run to account
	// against.
	if result.Series < 0 {
		return
	}
	if c.Context.RedisClient != nil && !c.opts.Test {
		if err := c.Context.RedisClient.ResultSave(result); err != nil {
			c.Context.Logger.Errorf("%s: cannot save result to redis: %v", c.name, err)
		}
	}
	c.tracker.AddResult(result)
}

// finishRun closes out a series: stats to Redis, record file to the
// archive.
func (c *Collector) finishRun(ctx context.Context, result *data.Result) {
	c.Context.Logger.Infof("%s: end of run %d", c.name, result.Series)

	if c.Context.RedisClient != nil && !c.opts.Test {
		stats := c.tracker.Snapshot(result.Series)
		statsJSON, err := stats.ToJSON()
		if err == nil {
			err = c.Context.RedisClient.RunStatsSave(result.Series, statsJSON)
		}
		if err != nil {
			c.Context.Logger.Errorf("%s: cannot save stats for run %d: %v",
				c.name, result.Series, err)
		}
	}

	if c.Context.ArchiveClient != nil && !c.opts.Test && c.recordPath != "" {
		c.syncRecord()
		if err := c.Context.ArchiveClient.ArchiveRecord(ctx, result.Series, c.recordPath); err != nil {
			c.Context.Logger.Errorf("%s: %v", c.name, err)
		}
	}
}

func (c *Collector) appendRecord(line string) {
	if c.recordFile == nil {
		return
	}
	c.recordMutex.Lock()
	defer c.recordMutex.Unlock()
	stamp := time.Now().Format("2006-01-02 15:04:05.000")
	if _, err := fmt.Fprintf(c.recordFile, "%s %s\n", stamp, line); err != nil {
		c.Context.Logger.Errorf("%s: cannot write record: %v", c.name, err)
	}
}

func (c *Collector) syncRecord() {
	if c.recordFile == nil {
		return
	}
	c.recordMutex.Lock()
	defer c.recordMutex.Unlock()
	if err := c.recordFile.Sync(); err != nil {
		c.Context.Logger.Errorf("%s: cannot sync record: %v", c.name, err)
	}
}

func (c *Collector) sendToUI(uiMsg string) {
	if c.uiSocket == nil {
		return
	}
	if err := c.uiSocket.Send(zmq4.NewMsgString(uiMsg)); err != nil {
		c.Context.Logger.Errorf("%s: cannot forward to UI: %v", c.name, err)
	}
}
