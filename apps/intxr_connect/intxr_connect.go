package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ssrl-px/interceptor/connector"
	"github.com/ssrl-px/interceptor/models/common"
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

	ctx := common.NewContext()
	service, err := connector.NewService(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := service.Run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printHelp() {
	message := `
intxr_connect attaches to a beamline splitter's ZMQ stream and runs
live first-pass analysis on every image. It starts an LRU broker, a
pool of reader workers, and a collector that formats results, appends
them to the record file, forwards them to the downstream UI, and
stores them in Redis.

The splitter endpoint comes from -host/-port, from a -beamline preset
defined in the startup config, or from the config's [connection]
section, in that order of precedence.

`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
