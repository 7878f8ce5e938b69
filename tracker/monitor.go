package tracker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ssrl-px/interceptor/constants"
	"github.com/ssrl-px/interceptor/models/common"
	"github.com/ssrl-px/interceptor/models/data"
	"github.com/ssrl-px/interceptor/network"
)

// Monitor is the terminal replacement for the old beamline GUI: it
// binds the UI port, parses the collector's messages, and redraws a
// per-run summary table on an interval.
type Monitor struct {
	Context *common.Context

	port     string
	interval time.Duration
	tracker  *Tracker
	out      io.Writer
}

func NewMonitor(ctx *common.Context, port string, interval time.Duration, out io.Writer) *Monitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Monitor{
		Context:  ctx,
		port:     port,
		interval: interval,
		tracker:  NewTracker(ctx.Config.Processing.MinBragg),
		out:      out,
	}
}

// Tracker exposes the underlying tracker for tests.
func (m *Monitor) Tracker() *Tracker {
	return m.tracker
}

// Ingest parses and records one UI message. Unparsable messages are
// logged and skipped; the stream can carry notes meant for humans.
func (m *Monitor) Ingest(msg string) {
	rec, err := data.ParseUIMessage(msg)
	if err != nil {
		m.Context.Logger.Debugf("MONITOR: skipping message: %v", err)
		return
	}
	if rec.Run < 0 {
		return
	}
	m.tracker.AddRecord(rec)
}

// Render writes the current per-run table.
func (m *Monitor) Render() {
	runs := m.tracker.Runs()
	fmt.Fprintf(m.out, "\n%-8s %-8s %-8s %-8s %-10s %-12s\n",
		"RUN", "FRAMES", "HITS", "INDEXED", "RES (MED)", "LATTICE")
	for _, run := range runs {
		stats := m.tracker.Snapshot(run)
		res := "-"
		if stats.MedianRes > 0 {
			res = fmt.Sprintf("%.2f", stats.MedianRes)
		}
		fmt.Fprintf(m.out, "%-8d %-8d %-8d %-8d %-10s %-12s\n",
			stats.Run, stats.Frames, stats.Hits, stats.Indexed, res, stats.BestLattice)
	}
}

// Run binds the UI port and consumes messages until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	sock, err := network.MakeSocket(ctx, network.SocketSpec{
		Port: m.port,
		Type: constants.SocketPull,
		Bind: true,
		WID:  "MONITOR",
	}, m.Context.Logger)
	if err != nil {
		return err
	}
	defer sock.Close()

	msgChan := make(chan string, 64)
	go func() {
		defer close(msgChan)
		for {
			msg, err := sock.Recv()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.Context.Logger.Errorf("MONITOR: recv failed: %v", err)
				continue
			}
			if len(msg.Frames) > 0 {
				msgChan <- string(msg.Frames[0])
			}
		}
	}()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgChan:
			if !ok {
				return nil
			}
			m.Ingest(msg)
		case <-ticker.C:
			m.Render()
		}
	}
}
