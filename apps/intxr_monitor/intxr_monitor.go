package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ssrl-px/interceptor/models/common"
	"github.com/ssrl-px/interceptor/tracker"
	"github.com/ssrl-px/interceptor/util/cli"
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		cli.PrintDefaults()
		os.Exit(0)
	}

	appCtx := common.NewContext()
	port := opts.UIPort
	if port == "" {
		port = appCtx.Config.UIPort
	}
	if port == "" {
		fmt.Fprintln(os.Stderr, "no UI port: set -uiport or the startup config's [ui] section")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	monitor := tracker.NewMonitor(appCtx, port, 2*time.Second, os.Stdout)
	if err := monitor.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printHelp() {
	message := `
intxr_monitor listens on the UI port for the collector's result
stream and redraws a per-run summary table: frames seen, hits above
the Bragg cutoff, indexed frames, median resolution, and the most
common lattice.

Point the collector at this process with -uihost/-uiport, or run the
collector with -send and connect the monitor to the same port.

`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
