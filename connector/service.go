package connector

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ssrl-px/interceptor/models/common"
	"github.com/ssrl-px/interceptor/util"
	"github.com/ssrl-px/interceptor/util/cli"
)

// Service runs one complete connector: the broker, a pool of
// readers, and the collector, wired over the ports derived from the
// splitter port. One service per beamline node; a pid file keeps a
// second copy from binding the same ports.
type Service struct {
	Context *common.Context

	opts      cli.Options
	broker    *Broker
	readers   []*Reader
	collector *Collector
}

// NewService resolves the connection target (flags beat the beamline
// preset, which beats the startup config) and builds the parts.
func NewService(ctx *common.Context, opts cli.Options) (*Service, error) {
	host, port, err := resolveEndpoint(ctx.Config, opts)
	if err != nil {
		return nil, err
	}
	opts.Host = host
	opts.Port = port
	if opts.HType != "" {
		ctx.Config.Processing.HType = opts.HType
	}

	numWorkers := opts.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}

	s := &Service{
		Context:   ctx,
		opts:      opts,
		collector: NewCollector(ctx, opts),
	}
	if opts.Broker {
		s.broker = NewBroker(ctx, host, port, opts.Verbose)
	}
	for i := 0; i < numWorkers; i++ {
		s.readers = append(s.readers, NewReader(ctx, i, opts))
	}
	return s, nil
}

// resolveEndpoint picks the splitter host and port. Explicit -host
// and -port flags win; then the -beamline preset; then the startup
// config's [connection] section.
func resolveEndpoint(config *common.Config, opts cli.Options) (string, string, error) {
	host, port := config.Host, config.Port
	if opts.Beamline != "" {
		bl, ok := config.Beamline(opts.Beamline)
		if !ok {
			return "", "", fmt.Errorf("unknown beamline preset %q", opts.Beamline)
		}
		host, port = bl.Host, bl.Port
	}
	if opts.Host != "" {
		host = opts.Host
	}
	if opts.Port != "" {
		port = opts.Port
	}
	if host == "" || port == "" {
		return "", "", fmt.Errorf("no splitter endpoint: set -host/-port, -beamline, or the startup config")
	}
	return host, port, nil
}

// Collector exposes the collector, mostly for tests.
func (s *Service) Collector() *Collector {
	return s.collector
}

// PidFilePath is where the service records its pid, keyed by the
// splitter port so connectors for different beamlines can coexist.
func (s *Service) PidFilePath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("intxr_connect_%s.pid", s.opts.Port))
}

// Run starts all parts and blocks until ctx is done or a part fails.
// SIGINT and SIGTERM cancel the context for a clean shutdown.
func (s *Service) Run(ctx context.Context) error {
	pidFile := s.PidFilePath()
	if util.IsRunningInOtherProcess(pidFile) {
		return fmt.Errorf("another connector for port %s is already running (pid file %s)",
			s.opts.Port, pidFile)
	}
	if err := util.WritePidFile(pidFile); err != nil {
		return fmt.Errorf("cannot write pid file %s: %v", pidFile, err)
	}
	defer func() {
		if err := util.DeletePidFile(pidFile); err != nil {
			s.Context.Logger.Warningf("SERVICE: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			s.Context.Logger.Infof("SERVICE: received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	s.Context.Logger.Infof("SERVICE: connecting to splitter at tcp://%s:%s with %d readers",
		s.opts.Host, s.opts.Port, len(s.readers))

	errChan := make(chan error, len(s.readers)+2)

	go func() {
		errChan <- s.collector.Run(ctx)
	}()
	if s.broker != nil {
		go func() {
			errChan <- s.broker.Run(ctx)
		}()
	}
	for _, r := range s.readers {
		reader := r
		go func() {
			errChan <- reader.Run(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		if err != nil {
			cancel()
			return err
		}
		// A part exited cleanly before shutdown; keep waiting on the
		// rest.
		<-ctx.Done()
		return nil
	}
}
